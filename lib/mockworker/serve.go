// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mockworker

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bureau-foundation/passgym/lib/wire"
)

// Options configures Serve.
type Options struct {
	// Address is the worker address, usually
	// rendezvous.Endpoint.WorkerAddress.
	Address string

	Model Model

	// Latency delays each reply, imitating a compile-and-run cycle.
	Latency time.Duration

	// Probe sends a probe datagram before each reply.
	Probe bool

	Logger *slog.Logger
}

// Serve binds options.Address and answers requests until ctx is
// cancelled.
func Serve(ctx context.Context, options Options) error {
	responder, err := wire.Listen(options.Address)
	if err != nil {
		return err
	}
	defer responder.Close()
	return ServeResponder(ctx, responder, options)
}

// ServeResponder answers requests on an already bound responder.
func ServeResponder(ctx context.Context, responder *wire.Responder, options Options) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("mock worker listening",
		"address", responder.Addr().String(),
		"benchmark", options.Model.Benchmark,
		"function", options.Model.Function,
	)

	handler := func(ctx context.Context, request wire.Request) (wire.Telemetry, error) {
		if options.Latency > 0 {
			select {
			case <-time.After(options.Latency):
			case <-ctx.Done():
				return wire.Telemetry{}, ctx.Err()
			}
		}
		telemetry := options.Model.Telemetry(request)
		logger.Debug("answering request",
			"kind", request.Kind.String(),
			"passes", len(request.Passes),
			"size", telemetry.Size,
		)
		return telemetry, nil
	}

	return responder.Serve(ctx, handler, wire.ServeOptions{
		ProbeBeforeReply: options.Probe,
		OnError: func(sender *net.UnixAddr, err error) {
			from := ""
			if sender != nil {
				from = sender.Name
			}
			logger.Warn("dropping request", "from", from, "error", err)
		},
	})
}
