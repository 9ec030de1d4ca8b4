// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by passgym's
// retry loops and step timing.
//
// Production code holds a Clock field set to Real(). Tests use Fake()
// and drive time explicitly, which keeps the rendezvous backoff tests
// deterministic:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go manager.Connect(ctx, socket, endpoint) // sleeps between attempts
//	c.WaitForTimers(1)
//	c.Advance(time.Millisecond)
//
// WaitForTimers blocks until the goroutine under test has registered
// its pending sleep, so Advance never races the registration.
package clock
