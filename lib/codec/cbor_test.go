// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type sampleRecord struct {
	Benchmark string    `cbor:"benchmark"`
	Instance  int       `cbor:"instance"`
	Passes    []string  `cbor:"passes,omitempty"`
	Started   time.Time `cbor:"started"`
}

type sampleDualRecord struct {
	Size       int64   `json:"size"`
	RuntimeSec float64 `json:"runtime_sec"`
}

func TestMarshalUnmarshal(t *testing.T) {
	original := sampleRecord{
		Benchmark: "qsort",
		Instance:  3,
		Passes:    []string{"fix_loops", "loop", ">loopinit"},
		Started:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Benchmark != original.Benchmark || decoded.Instance != original.Instance {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
	if strings.Join(decoded.Passes, ",") != strings.Join(original.Passes, ",") {
		t.Errorf("Passes = %v, want %v", decoded.Passes, original.Passes)
	}
	if !decoded.Started.Equal(original.Started) {
		t.Errorf("Started = %v, want %v", decoded.Started, original.Started)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": 2, "mid": []int{1, 2}}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal produced different bytes for the same map")
		}
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for i := range 3 {
		if err := encoder.Encode(sampleRecord{Benchmark: "b", Instance: i}); err != nil {
			t.Fatalf("Encode %d: %v", i, err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i := range 3 {
		var record sampleRecord
		if err := decoder.Decode(&record); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if record.Instance != i {
			t.Errorf("record %d Instance = %d", i, record.Instance)
		}
	}
	var extra sampleRecord
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past end = %v, want io.EOF", err)
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(sampleDualRecord{Size: 900, RuntimeSec: 1.8})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var generic map[string]any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := generic["runtime_sec"]; !ok {
		t.Errorf("json tag name not used as CBOR key: %v", generic)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var record sampleRecord
	if err := Unmarshal([]byte{0xff, 0x00}, &record); err == nil {
		t.Fatal("expected error for invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]int{"size": 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if diagnostic != `{"size": 7}` {
		t.Errorf("Diagnose = %q", diagnostic)
	}
}
