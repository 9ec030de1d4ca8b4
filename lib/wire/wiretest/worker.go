// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wiretest provides an in-process worker for tests that need
// the other end of a passgym datagram socket.
package wiretest

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/bureau-foundation/passgym/lib/wire"
)

// Worker is a fake compiler worker bound to a real datagram address.
// It records every request it answers.
type Worker struct {
	responder *wire.Responder

	mu       sync.Mutex
	requests []wire.Request
}

// Start binds address and serves handler until the test ends.
func Start(t *testing.T, address string, handler wire.Handler, options wire.ServeOptions) *Worker {
	t.Helper()
	responder, err := wire.Listen(address)
	if err != nil {
		t.Fatalf("starting fake worker: %v", err)
	}
	worker := &Worker{responder: responder}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		responder.Serve(ctx, func(ctx context.Context, request wire.Request) (wire.Telemetry, error) {
			worker.mu.Lock()
			worker.requests = append(worker.requests, request)
			worker.mu.Unlock()
			return handler(ctx, request)
		}, options)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		responder.Close()
	})
	return worker
}

// Requests returns the requests answered so far.
func (w *Worker) Requests() []wire.Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.requests)
}

// Static returns a handler that answers every request with telemetry.
func Static(telemetry wire.Telemetry) wire.Handler {
	return func(context.Context, wire.Request) (wire.Telemetry, error) {
		return telemetry, nil
	}
}
