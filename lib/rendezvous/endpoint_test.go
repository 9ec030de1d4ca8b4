// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestAliasShortName(t *testing.T) {
	if got := Alias("qsort", "partition", 3); got != "partition" {
		t.Errorf("Alias = %q, want the function name unchanged", got)
	}
}

func TestAliasBudget(t *testing.T) {
	benchmark := "bench"
	// 107 - 5 - 1 - 2 = 99 characters fit with a one-digit instance.
	fits := strings.Repeat("f", 99)
	if got := Alias(benchmark, fits, 7); got != fits {
		t.Errorf("99-character function was aliased to %q", got)
	}
	if got := Alias(benchmark, fits, 10); got == fits {
		t.Error("99-character function was not aliased with a two-digit instance")
	}
}

func TestAliasLongName(t *testing.T) {
	function := "_ZN4llvm" + strings.Repeat("VeryLongTemplateInstantiation", 8)
	alias := Alias("bench", function, 0)

	if len(alias) != 43 {
		t.Errorf("alias length = %d, want 43", len(alias))
	}
	if _, err := base64.RawURLEncoding.DecodeString(alias); err != nil {
		t.Errorf("alias %q is not unpadded base64url: %v", alias, err)
	}
	if again := Alias("bench", function, 0); again != alias {
		t.Errorf("Alias is not deterministic: %q then %q", alias, again)
	}
	if other := Alias("bench", function+"x", 0); other == alias {
		t.Error("different functions share an alias")
	}

	endpoint := Endpoint{Benchmark: "bench", Function: function, Alias: alias, Instance: 0}
	if name := strings.TrimPrefix(endpoint.ClientAddress(), "@"); len(name) > MaxNameLength {
		t.Errorf("client address %q exceeds %d characters", name, MaxNameLength)
	}
}

func TestEndpointAddresses(t *testing.T) {
	endpoint := Endpoint{Benchmark: "qsort", Function: "partition", Alias: "partition", Instance: 2}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"key", endpoint.Key(), "qsort:partition"},
		{"client", endpoint.ClientAddress(), "@qsort:partition_2"},
		{"worker", endpoint.WorkerAddress(), "@qsort:partition:backend"},
		{"worker dir", endpoint.WorkerDir("/var/lib/passgym"), "/var/lib/passgym/qsort:partition"},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("%s = %q, want %q", test.name, test.got, test.want)
		}
	}

	endpoint.SocketDir = "/run/passgym"
	if got := endpoint.WorkerAddress(); got != "/run/passgym/qsort:partition:backend" {
		t.Errorf("worker address with socket dir = %q", got)
	}
}
