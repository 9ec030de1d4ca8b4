// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/passgym/lib/clock"
)

var (
	// ErrInstancesExhausted is returned when every instance id up to
	// the configured maximum is bound by another session.
	ErrInstancesExhausted = errors.New("all rendezvous instances in use")

	// ErrConnectTimeout is returned when the worker does not accept a
	// connection within the connect timeout.
	ErrConnectTimeout = errors.New("timed out connecting to worker")
)

// socket is an unconnected or connected AF_UNIX datagram descriptor.
type socket struct {
	fd int
}

func openSocket() (*socket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating datagram socket: %w", err)
	}
	return &socket{fd: fd}, nil
}

func (s *socket) bind(address string) error {
	return unix.Bind(s.fd, &unix.SockaddrUnix{Name: address})
}

func (s *socket) connect(address string) error {
	return unix.Connect(s.fd, &unix.SockaddrUnix{Name: address})
}

func (s *socket) close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// unixConn hands the descriptor to the net package. The socket no
// longer owns the descriptor afterwards.
func (s *socket) unixConn(name string) (*net.UnixConn, error) {
	file := os.NewFile(uintptr(s.fd), name)
	s.fd = -1
	defer file.Close()

	conn, err := net.FileConn(file)
	if err != nil {
		return nil, fmt.Errorf("wrapping socket %s: %w", name, err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("wrapping socket %s: got %T, want *net.UnixConn", name, conn)
	}
	return unixConn, nil
}

// bindInstance binds the first free instance of endpoint at or above
// endpoint.Instance and returns the socket with the endpoint updated
// to the instance it holds. onConflict is called for every instance
// found in use.
func bindInstance(ctx context.Context, endpoint Endpoint, maxInstances int, onConflict func(Endpoint)) (*socket, Endpoint, error) {
	for ; endpoint.Instance < maxInstances; endpoint.Instance++ {
		if err := ctx.Err(); err != nil {
			return nil, endpoint, err
		}

		sock, err := openSocket()
		if err != nil {
			return nil, endpoint, err
		}
		err = sock.bind(endpoint.ClientAddress())
		if errors.Is(err, unix.EADDRINUSE) && endpoint.SocketDir != "" && removeStale(endpoint.ClientAddress()) {
			err = sock.bind(endpoint.ClientAddress())
		}
		if err == nil {
			return sock, endpoint, nil
		}
		sock.close()
		if !errors.Is(err, unix.EADDRINUSE) {
			return nil, endpoint, fmt.Errorf("binding client socket %s: %w", endpoint.ClientAddress(), err)
		}
		if onConflict != nil {
			onConflict(endpoint)
		}
	}
	return nil, endpoint, fmt.Errorf("%w: %s (%d instances)", ErrInstancesExhausted, endpoint.Key(), maxInstances)
}

// removeStale unlinks a filesystem socket path that nothing is bound
// to any more, left behind by a session that exited without closing.
// It reports whether the path was removed.
func removeStale(path string) bool {
	check, err := openSocket()
	if err != nil {
		return false
	}
	defer check.close()
	if err := check.connect(path); !errors.Is(err, unix.ECONNREFUSED) {
		return false
	}
	return os.Remove(path) == nil
}

// unlinkClient removes endpoint's client socket file. Abstract
// addresses vanish with their descriptor and need nothing.
func unlinkClient(endpoint Endpoint) error {
	if endpoint.SocketDir == "" {
		return nil
	}
	if err := os.Remove(endpoint.ClientAddress()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing client socket %s: %w", endpoint.ClientAddress(), err)
	}
	return nil
}

// Backoff bounds the connect retry loop.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Timeout time.Duration
}

// next doubles delay, capped at Max.
func (b Backoff) next(delay time.Duration) time.Duration {
	delay *= 2
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// retryable reports whether a connect failure means the worker is not
// listening yet.
func retryable(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.ENOENT)
}

// connectWorker connects sock to address, waiting out a worker that is
// still starting. onRetry is called before every wait.
func connectWorker(ctx context.Context, sock *socket, address string, backoff Backoff, clk clock.Clock, onRetry func(attempt int, delay time.Duration, err error)) error {
	start := clk.Now()
	delay := backoff.Initial
	for attempt := 1; ; attempt++ {
		err := sock.connect(address)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("connecting to worker %s: %w", address, err)
		}

		if backoff.Timeout > 0 {
			remaining := backoff.Timeout - clock.Since(clk, start)
			if remaining <= 0 {
				return fmt.Errorf("%w %s after %d attempts: %w", ErrConnectTimeout, address, attempt, err)
			}
			delay = min(delay, remaining)
		}
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("connecting to worker %s: %w", address, ctx.Err())
		case <-clk.After(delay):
		}
		delay = backoff.next(delay)
	}
}
