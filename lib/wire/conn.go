// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Conn is the session side of a connected datagram socket. It allows
// one outstanding request at a time and is not safe for concurrent
// use.
type Conn struct {
	conn   *net.UnixConn
	buffer []byte

	// OnProbe, if set, is called for every discarded probe datagram.
	OnProbe func()

	// OnClose, if set, runs after the socket is closed. It releases
	// whatever the address held outside the descriptor.
	OnClose func() error
}

// NewConn wraps a connected unixgram socket. multiplier sizes the
// receive buffer (see BufferSize).
func NewConn(conn *net.UnixConn, multiplier int) *Conn {
	return &Conn{
		conn:   conn,
		buffer: make([]byte, BufferSize(multiplier)),
	}
}

// LocalAddr returns the session's bound address.
func (c *Conn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RoundTrip sends request and waits for the worker's reply. Probes
// arriving before the reply are discarded. Cancelling ctx or reaching
// its deadline aborts the exchange; the Conn must not be reused after
// any error.
func (c *Conn) RoundTrip(ctx context.Context, request []byte) (Telemetry, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
	// An already-past deadline unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := c.conn.Write(request); err != nil {
		return Telemetry{}, c.ioError(ctx, "sending request", err)
	}

	for {
		n, _, flags, _, err := c.conn.ReadMsgUnix(c.buffer, nil)
		if err != nil {
			return Telemetry{}, c.ioError(ctx, "receiving reply", err)
		}
		if flags&unix.MSG_TRUNC != 0 {
			return Telemetry{}, fmt.Errorf("%w: reply larger than the %d byte receive buffer", ErrProtocol, len(c.buffer))
		}
		if n == 0 {
			if c.OnProbe != nil {
				c.OnProbe()
			}
			continue
		}
		return DecodeReply(c.buffer[:n])
	}
}

// Close closes the socket.
func (c *Conn) Close() error {
	err := c.conn.Close()
	if c.OnClose != nil {
		err = errors.Join(err, c.OnClose())
		c.OnClose = nil
	}
	return err
}

func (c *Conn) ioError(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrProtocol, operation, ctxErr)
	}
	return fmt.Errorf("%w: %s: %w", ErrProtocol, operation, err)
}
