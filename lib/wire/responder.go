// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// maxRequestSize bounds a single request datagram. Pass lists are a
// few hundred short tokens at most.
const maxRequestSize = 64 * 1024

// Responder is the worker side of the protocol: it owns the worker's
// well-known address and answers each session at the address the
// session bound.
type Responder struct {
	conn   *net.UnixConn
	buffer []byte
}

// Listen binds the worker address. Names starting with '@' are in the
// Linux abstract namespace; other names are filesystem paths, and a
// stale socket file at the path is removed first.
func Listen(address string) (*Responder, error) {
	if len(address) > 0 && address[0] != '@' {
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale socket %s: %w", address, err)
		}
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: address, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return &Responder{conn: conn, buffer: make([]byte, maxRequestSize)}, nil
}

// Addr returns the bound worker address.
func (r *Responder) Addr() net.Addr { return r.conn.LocalAddr() }

// ReadRequest waits for the next request and returns it with the
// sender's address. Zero-length datagrams are skipped.
func (r *Responder) ReadRequest(ctx context.Context) (Request, *net.UnixAddr, error) {
	r.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		r.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		n, sender, err := r.conn.ReadFromUnix(r.buffer)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Request{}, nil, ctxErr
			}
			return Request{}, nil, fmt.Errorf("reading request: %w", err)
		}
		if n == 0 {
			continue
		}
		if sender == nil || sender.Name == "" {
			return Request{}, nil, fmt.Errorf("%w: request from an unbound socket", ErrProtocol)
		}
		request, err := ParseRequest(r.buffer[:n])
		if err != nil {
			return Request{}, sender, err
		}
		return request, sender, nil
	}
}

// WriteReply sends telemetry to a session.
func (r *Responder) WriteReply(to *net.UnixAddr, telemetry Telemetry) error {
	if _, err := r.conn.WriteToUnix(EncodeReply(telemetry), to); err != nil {
		return fmt.Errorf("replying to %s: %w", to.Name, err)
	}
	return nil
}

// SendProbe sends a zero-length datagram to a session.
func (r *Responder) SendProbe(to *net.UnixAddr) error {
	if _, err := r.conn.WriteToUnix(nil, to); err != nil {
		return fmt.Errorf("probing %s: %w", to.Name, err)
	}
	return nil
}

// Close releases the worker address.
func (r *Responder) Close() error {
	return r.conn.Close()
}

// Handler computes the reply to one request.
type Handler func(ctx context.Context, request Request) (Telemetry, error)

// ServeOptions tunes Serve.
type ServeOptions struct {
	// ProbeBeforeReply sends a probe datagram ahead of each reply, the
	// way a worker checks that the session is still listening.
	ProbeBeforeReply bool

	// OnError is called for requests that fail to parse or whose
	// handler fails. Such requests get no reply. Nil ignores them.
	OnError func(sender *net.UnixAddr, err error)
}

// Serve answers requests until ctx is cancelled, then returns nil.
func (r *Responder) Serve(ctx context.Context, handler Handler, options ServeOptions) error {
	for {
		request, sender, err := r.ReadRequest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrProtocol) {
				if options.OnError != nil {
					options.OnError(sender, err)
				}
				continue
			}
			return err
		}

		telemetry, err := handler(ctx, request)
		if err != nil {
			if options.OnError != nil {
				options.OnError(sender, err)
			}
			continue
		}
		if options.ProbeBeforeReply {
			if err := r.SendProbe(sender); err != nil {
				if options.OnError != nil {
					options.OnError(sender, err)
				}
				continue
			}
		}
		if err := r.WriteReply(sender, telemetry); err != nil && options.OnError != nil {
			options.OnError(sender, err)
		}
	}
}
