// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mockworker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/passgym/lib/embedding"
	"github.com/bureau-foundation/passgym/lib/pass"
	"github.com/bureau-foundation/passgym/lib/testutil"
	"github.com/bureau-foundation/passgym/lib/wire"
)

func TestTelemetryDeterministic(t *testing.T) {
	model := Model{Benchmark: "bench", Function: "main"}
	request := wire.Request{Kind: wire.RequestList, Passes: []string{"dce", "sroa"}}

	first := model.Telemetry(request)
	second := model.Telemetry(request)
	if first.Size != second.Size || first.RuntimeSec != second.RuntimeSec {
		t.Fatalf("telemetry differs between calls: %+v vs %+v", first, second)
	}

	baseline := wire.Request{Kind: wire.RequestBaseline}
	mine := model.Telemetry(baseline)
	other := Model{Benchmark: "bench", Function: "other"}.Telemetry(baseline)
	if mine.Size == other.Size && mine.RuntimeSec == other.RuntimeSec {
		t.Error("different functions produced identical baselines")
	}
}

func TestTelemetryUnoptimizedIsWorse(t *testing.T) {
	model := Model{Benchmark: "bench", Function: "main"}
	base := model.Telemetry(wire.Request{Kind: wire.RequestBaseline})
	empty := model.Telemetry(wire.Request{Kind: wire.RequestEmpty})
	if empty.Size <= base.Size {
		t.Errorf("unoptimized size %d not above baseline %d", empty.Size, base.Size)
	}
	if empty.RuntimeSec <= base.RuntimeSec {
		t.Errorf("unoptimized runtime %v not above baseline %v", empty.RuntimeSec, base.RuntimeSec)
	}
	if empty.RuntimePercent != base.RuntimePercent {
		t.Errorf("unoptimized share %v, want baseline share %v", empty.RuntimePercent, base.RuntimePercent)
	}
}

func TestEmbeddingSplits(t *testing.T) {
	model := Model{Benchmark: "bench", Function: "main", MaxEdges: 3}
	for _, passes := range [][]string{nil, {"a"}, {"a", "b", "c", "d", "e", "f", "g", "h"}} {
		telemetry := model.Telemetry(wire.Request{Kind: wire.RequestList, Passes: passes})
		control, value, err := embedding.Split(telemetry.Embedding)
		if err != nil {
			t.Fatalf("Split(%v): %v", passes, err)
		}
		if len(control) > 6 || len(value) > 6 {
			t.Errorf("passes %v: edge lists %d/%d exceed MaxEdges", passes, len(control), len(value))
		}
		if len(control)%2 != 0 || len(value)%2 != 0 {
			t.Errorf("passes %v: odd edge list lengths %d/%d", passes, len(control), len(value))
		}

		pipeline, err := embedding.NewPipeline(embedding.HashedEdges{}, 8)
		if err != nil {
			t.Fatal(err)
		}
		vector, err := pipeline.Compute(telemetry.Embedding, pass.Properties{})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if len(vector) != pipeline.Length() {
			t.Errorf("vector length %d, want %d", len(vector), pipeline.Length())
		}
	}
}

func TestServe(t *testing.T) {
	address := testutil.AbstractName("mockworker")
	model := Model{Benchmark: "bench", Function: "main"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	responder, err := wire.Listen(address)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() {
		defer responder.Close()
		done <- ServeResponder(ctx, responder, Options{Model: model, Probe: true})
	}()

	client, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: testutil.AbstractName("client"), Net: "unixgram"})
	if err != nil {
		t.Fatalf("binding client: %v", err)
	}
	worker := &net.UnixAddr{Name: address, Net: "unixgram"}
	if _, err := client.WriteToUnix(wire.BaselineRequest(), worker); err != nil {
		t.Fatalf("sending request: %v", err)
	}
	defer client.Close()

	buffer := make([]byte, wire.BufferSize(1))
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, _, err := client.ReadFromUnix(buffer)
	if err != nil {
		t.Fatalf("reading probe: %v", err)
	}
	if n != 0 {
		t.Fatalf("first datagram is %d bytes, want a zero-length probe", n)
	}
	n, _, err = client.ReadFromUnix(buffer)
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	telemetry, err := wire.DecodeReply(buffer[:n])
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if want := model.Telemetry(wire.Request{Kind: wire.RequestBaseline}); telemetry.Size != want.Size {
		t.Errorf("reply size %d, want %d", telemetry.Size, want.Size)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return"); err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
