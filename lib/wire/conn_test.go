// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire_test

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/passgym/lib/testutil"
	"github.com/bureau-foundation/passgym/lib/wire"
	"github.com/bureau-foundation/passgym/lib/wire/wiretest"
)

func dial(t *testing.T, worker string, multiplier int) *wire.Conn {
	t.Helper()
	local := &net.UnixAddr{Name: testutil.AbstractName("client"), Net: "unixgram"}
	remote := &net.UnixAddr{Name: worker, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", local, remote)
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}
	c := wire.NewConn(conn, multiplier)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTripDiscardsProbes(t *testing.T) {
	address := testutil.AbstractName("worker")
	reply := wire.Telemetry{Embedding: []int32{4, 5, 6}, RuntimePercent: 50, RuntimeSec: 2, Size: 1000}
	worker := wiretest.Start(t, address, wiretest.Static(reply), wire.ServeOptions{ProbeBeforeReply: true})

	conn := dial(t, address, 1)
	var probes atomic.Int32
	conn.OnProbe = func() { probes.Add(1) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := conn.RoundTrip(ctx, wire.ListRequest([]string{"dce"}))
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if got.Size != 1000 || !slices.Equal(got.Embedding, reply.Embedding) {
		t.Errorf("RoundTrip = %+v", got)
	}
	if probes.Load() != 1 {
		t.Errorf("probes discarded = %d, want 1", probes.Load())
	}

	requests := worker.Requests()
	if len(requests) != 1 || requests[0].Kind != wire.RequestList || requests[0].Passes[0] != "dce" {
		t.Errorf("worker saw %+v", requests)
	}
}

func TestRoundTripSequence(t *testing.T) {
	address := testutil.AbstractName("worker")
	worker := wiretest.Start(t, address, func(_ context.Context, request wire.Request) (wire.Telemetry, error) {
		return wire.Telemetry{Size: int64(100 + len(request.Passes))}, nil
	}, wire.ServeOptions{})
	conn := dial(t, address, 1)
	ctx := context.Background()

	for i, request := range [][]byte{wire.BaselineRequest(), wire.ListRequest(nil), wire.ListRequest([]string{"a", "b"})} {
		got, err := conn.RoundTrip(ctx, request)
		if err != nil {
			t.Fatalf("RoundTrip %d: %v", i, err)
		}
		if i == 2 && got.Size != 102 {
			t.Errorf("size after list = %d, want 102", got.Size)
		}
	}
	kinds := []wire.RequestKind{}
	for _, request := range worker.Requests() {
		kinds = append(kinds, request.Kind)
	}
	if !slices.Equal(kinds, []wire.RequestKind{wire.RequestBaseline, wire.RequestEmpty, wire.RequestList}) {
		t.Errorf("request kinds = %v", kinds)
	}
}

func TestRoundTripTruncatedReply(t *testing.T) {
	address := testutil.AbstractName("worker")
	large := make([]int32, 512) // 2 KiB payload, buffer holds 1 KiB
	wiretest.Start(t, address, wiretest.Static(wire.Telemetry{Embedding: large}), wire.ServeOptions{})
	conn := dial(t, address, 1)

	_, err := conn.RoundTrip(context.Background(), wire.BaselineRequest())
	if !errors.Is(err, wire.ErrProtocol) {
		t.Fatalf("RoundTrip = %v, want ErrProtocol", err)
	}
}

func TestRoundTripCancelled(t *testing.T) {
	address := testutil.AbstractName("worker")
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	wiretest.Start(t, address, func(ctx context.Context, _ wire.Request) (wire.Telemetry, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return wire.Telemetry{}, errors.New("never replies")
	}, wire.ServeOptions{})
	conn := dial(t, address, 1)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := conn.RoundTrip(ctx, wire.BaselineRequest())
		result <- err
	}()
	cancel()

	err := testutil.RequireReceive(t, result, 5*time.Second, "RoundTrip after cancel")
	if !errors.Is(err, wire.ErrProtocol) || !errors.Is(err, context.Canceled) {
		t.Fatalf("RoundTrip = %v, want ErrProtocol wrapping context.Canceled", err)
	}
}
