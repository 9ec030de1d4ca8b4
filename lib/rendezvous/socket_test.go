// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/passgym/lib/clock"
	"github.com/bureau-foundation/passgym/lib/testutil"
	"github.com/bureau-foundation/passgym/lib/wire"
	"github.com/bureau-foundation/passgym/lib/wire/wiretest"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testEndpoint() Endpoint {
	benchmark := testutil.UniqueName("bench")
	return Endpoint{Benchmark: benchmark, Function: "main", Alias: "main"}
}

func TestBindInstanceConflict(t *testing.T) {
	endpoint := testEndpoint()

	first, firstEndpoint, err := bindInstance(context.Background(), endpoint, 4, nil)
	if err != nil {
		t.Fatalf("first bind: %v", err)
	}
	defer first.close()
	if firstEndpoint.Instance != 0 {
		t.Errorf("first instance = %d, want 0", firstEndpoint.Instance)
	}

	var conflicts []int
	second, secondEndpoint, err := bindInstance(context.Background(), endpoint, 4, func(taken Endpoint) {
		conflicts = append(conflicts, taken.Instance)
	})
	if err != nil {
		t.Fatalf("second bind: %v", err)
	}
	defer second.close()
	if secondEndpoint.Instance != 1 {
		t.Errorf("second instance = %d, want 1", secondEndpoint.Instance)
	}
	if len(conflicts) != 1 || conflicts[0] != 0 {
		t.Errorf("conflicts = %v, want [0]", conflicts)
	}

	_, _, err = bindInstance(context.Background(), endpoint, 2, nil)
	if !errors.Is(err, ErrInstancesExhausted) {
		t.Errorf("third bind with two instances = %v, want ErrInstancesExhausted", err)
	}
}

func TestBindInstanceRemovesStaleSocket(t *testing.T) {
	endpoint := testEndpoint()
	endpoint.SocketDir = testutil.SocketDir(t)

	// A session that exits without closing leaves its socket file.
	stale, _, err := bindInstance(context.Background(), endpoint, 2, nil)
	if err != nil {
		t.Fatalf("first bind: %v", err)
	}
	stale.close()
	if _, err := os.Stat(endpoint.ClientAddress()); err != nil {
		t.Fatalf("stale socket file: %v", err)
	}

	sock, bound, err := bindInstance(context.Background(), endpoint, 2, func(Endpoint) {
		t.Error("stale socket reported as a conflict")
	})
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	defer sock.close()
	if bound.Instance != 0 {
		t.Errorf("rebound instance = %d, want 0", bound.Instance)
	}

	// A live binding is still a conflict.
	live, liveEndpoint, err := bindInstance(context.Background(), endpoint, 2, nil)
	if err != nil {
		t.Fatalf("bind beside live socket: %v", err)
	}
	defer live.close()
	if liveEndpoint.Instance != 1 {
		t.Errorf("instance beside live socket = %d, want 1", liveEndpoint.Instance)
	}

	sock.close()
	if err := unlinkClient(bound); err != nil {
		t.Fatalf("unlinkClient: %v", err)
	}
	if _, err := os.Stat(bound.ClientAddress()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("client socket after unlink: %v", err)
	}
}

func TestBindInstanceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := bindInstance(ctx, testEndpoint(), 4, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("bind with cancelled context = %v, want context.Canceled", err)
	}
}

func TestConnectWorkerBackoff(t *testing.T) {
	endpoint := testEndpoint()
	sock, endpoint, err := bindInstance(context.Background(), endpoint, 1, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer sock.close()

	fake := clock.Fake(epoch)
	backoff := Backoff{Initial: 10 * time.Millisecond, Max: 25 * time.Millisecond, Timeout: time.Minute}

	var delays []time.Duration
	result := make(chan error, 1)
	go func() {
		result <- connectWorker(context.Background(), sock, endpoint.WorkerAddress(), backoff, fake,
			func(_ int, delay time.Duration, _ error) { delays = append(delays, delay) })
	}()

	for _, delay := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond} {
		fake.WaitForTimers(1)
		fake.Advance(delay)
	}

	fake.WaitForTimers(1)
	wiretest.Start(t, endpoint.WorkerAddress(), wiretest.Static(wire.Telemetry{}), wire.ServeOptions{})
	fake.Advance(25 * time.Millisecond)

	if err := testutil.RequireReceive(t, result, 5*time.Second, "connect did not finish"); err != nil {
		t.Fatalf("connectWorker: %v", err)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %s, want %s", i, delays[i], want[i])
		}
	}
}

func TestConnectWorkerTimeout(t *testing.T) {
	sock, endpoint, err := bindInstance(context.Background(), testEndpoint(), 1, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer sock.close()

	fake := clock.Fake(epoch)
	backoff := Backoff{Initial: 40 * time.Millisecond, Max: time.Second, Timeout: 100 * time.Millisecond}

	result := make(chan error, 1)
	go func() {
		result <- connectWorker(context.Background(), sock, endpoint.WorkerAddress(), backoff, fake, nil)
	}()

	// Waits of 40ms, 60ms (clipped to the remaining budget), then the
	// budget is spent.
	fake.WaitForTimers(1)
	fake.Advance(40 * time.Millisecond)
	fake.WaitForTimers(1)
	fake.Advance(60 * time.Millisecond)

	err = testutil.RequireReceive(t, result, 5*time.Second, "connect did not time out")
	if !errors.Is(err, ErrConnectTimeout) {
		t.Errorf("connectWorker = %v, want ErrConnectTimeout", err)
	}
}

func TestConnectWorkerCancelled(t *testing.T) {
	sock, endpoint, err := bindInstance(context.Background(), testEndpoint(), 1, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer sock.close()

	fake := clock.Fake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- connectWorker(ctx, sock, endpoint.WorkerAddress(), Backoff{Initial: time.Second}, fake, nil)
	}()

	fake.WaitForTimers(1)
	cancel()

	err = testutil.RequireReceive(t, result, 5*time.Second, "connect did not observe cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("connectWorker = %v, want context.Canceled", err)
	}
}
