// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"errors"
	"slices"
	"testing"
)

func TestParseQuery(t *testing.T) {
	params, err := ParseQuery("bench_name=qsort&fun_name=partition&run_string=100&run_string=200")
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if params.BenchName() != "qsort" {
		t.Errorf("BenchName = %q", params.BenchName())
	}
	if params.FunName() != "partition" {
		t.Errorf("FunName = %q", params.FunName())
	}
	if got := params[KeyRunString]; !slices.Equal(got, []string{"100", "200"}) {
		t.Errorf("run strings = %v", got)
	}
}

func TestValidate(t *testing.T) {
	if err := (Params{KeyBenchName: {"b"}, KeyFunName: {"f"}}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	err := Params{KeyBenchName: {"b"}}.Validate()
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("Validate without fun_name = %v, want ErrMissingKey", err)
	}
}

func TestWorkerArgsFull(t *testing.T) {
	params := Params{
		KeyBenchName:       {"qsort"},
		KeyFunName:         {"partition"},
		KeyEmbeddingLength: {"99"},
		KeyBuildString:     {"gcc", "-O2", "-lstdc"},
		KeyRunString:       {"small.txt", "large.txt"},
		KeyBenchRepeats:    {"5"},
		KeyPluginPath:      {"/opt/plugin.so"},
	}

	got := params.WorkerArgs("partition", 2)
	want := []string{
		"-e", "99",
		"-bgcc -O2 -lstdc++",
		"-rsmall.txt",
		"-rlarge.txt",
		"-p/opt/plugin.so",
		"-nqsort",
		"-fpartition",
		"-i2",
		"--repeats", "5",
	}
	if !slices.Equal(got, want) {
		t.Errorf("WorkerArgs =\n  %q\nwant\n  %q", got, want)
	}
}

func TestWorkerArgsOmitsEmptyValues(t *testing.T) {
	params := Params{
		KeyBenchName:   {"crc"},
		KeyFunName:     {"update"},
		KeyBuildString: {""},
		KeyRunString:   {""},
	}
	got := params.WorkerArgs("update", 0)
	want := []string{"-ncrc", "-fupdate", "-i0"}
	if !slices.Equal(got, want) {
		t.Errorf("WorkerArgs = %q, want %q", got, want)
	}
}

func TestFixupBuildStringIdempotent(t *testing.T) {
	if got := fixupBuildString("g++ -lstdc++"); got != "g++ -lstdc++" {
		t.Errorf("fixupBuildString rewrote an already fixed string: %q", got)
	}
}
