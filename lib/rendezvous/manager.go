// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/passgym/lib/benchmark"
	"github.com/bureau-foundation/passgym/lib/clock"
	"github.com/bureau-foundation/passgym/lib/metrics"
	"github.com/bureau-foundation/passgym/lib/wire"
)

// Config is the rendezvous part of the passgym configuration.
type Config struct {
	// WorkerBinary is the worker executable.
	WorkerBinary string

	// WorkerRoot holds one directory per (benchmark, function) worker.
	WorkerRoot string

	// SocketDir, when set, moves socket addresses from the abstract
	// namespace into this directory.
	SocketDir string

	MaxInstances     int
	BufferMultiplier int
	Backoff          Backoff
}

// Manager performs rendezvous for sessions. It holds no per-session
// state and is safe for concurrent use.
type Manager struct {
	config   Config
	launcher Launcher
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithLauncher replaces the ExecLauncher.
func WithLauncher(launcher Launcher) Option {
	return func(m *Manager) { m.launcher = launcher }
}

// WithClock replaces the real clock used for connect backoff.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics records bind conflicts, connect retries and worker
// acquisition.
func WithMetrics(m *metrics.Metrics) Option {
	return func(manager *Manager) { manager.metrics = m }
}

// NewManager returns a Manager for config.
func NewManager(config Config, options ...Option) (*Manager, error) {
	if config.WorkerRoot == "" {
		return nil, errors.New("rendezvous requires a worker root")
	}
	if config.MaxInstances <= 0 {
		return nil, fmt.Errorf("max instances must be positive, got %d", config.MaxInstances)
	}
	if config.BufferMultiplier <= 0 {
		return nil, fmt.Errorf("buffer multiplier must be positive, got %d", config.BufferMultiplier)
	}
	if config.Backoff.Initial <= 0 {
		return nil, fmt.Errorf("initial connect backoff must be positive, got %s", config.Backoff.Initial)
	}

	m := &Manager{
		config: config,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(m)
	}
	if m.launcher == nil {
		m.launcher = ExecLauncher{Logger: m.logger}
	}
	return m, nil
}

// Result is the outcome of a rendezvous.
type Result struct {
	Conn     *wire.Conn
	Endpoint Endpoint

	// Launched is true when this session launched the worker.
	Launched bool
}

// Rendezvous binds a client endpoint for params, makes sure a worker
// exists for its (benchmark, function), and connects to it. sessionID
// is recorded in the worker record when this session launches the
// worker.
func (m *Manager) Rendezvous(ctx context.Context, params benchmark.Params, sessionID string) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}

	// The alias is computed for the widest instance id so it never
	// changes with the instance a session happens to bind.
	endpoint := Endpoint{
		Benchmark: params.BenchName(),
		Function:  params.FunName(),
		Alias:     Alias(params.BenchName(), params.FunName(), m.config.MaxInstances-1),
		SocketDir: m.config.SocketDir,
	}
	logger := m.logger.With("benchmark", endpoint.Benchmark, "function", endpoint.Function)

	sock, endpoint, err := bindInstance(ctx, endpoint, m.config.MaxInstances, func(taken Endpoint) {
		logger.Debug("client address in use", "instance", taken.Instance)
		m.metrics.BindConflict()
	})
	if err != nil {
		return Result{}, err
	}
	logger = logger.With("instance", endpoint.Instance)

	release := func() {
		sock.close()
		if err := unlinkClient(endpoint); err != nil {
			logger.Warn("releasing client address", "error", err)
		}
	}

	launched, err := m.acquire(ctx, endpoint, params, sessionID, logger)
	if err != nil {
		release()
		return Result{}, err
	}
	m.metrics.WorkerAcquired(launched)

	err = connectWorker(ctx, sock, endpoint.WorkerAddress(), m.config.Backoff, m.clock,
		func(attempt int, delay time.Duration, err error) {
			logger.Debug("worker not ready", "attempt", attempt, "delay", delay, "error", err)
			m.metrics.ConnectRetry()
		})
	if err != nil {
		release()
		return Result{}, err
	}

	unixConn, err := sock.unixConn(endpoint.ClientAddress())
	if err != nil {
		release()
		return Result{}, err
	}
	conn := wire.NewConn(unixConn, m.config.BufferMultiplier)
	conn.OnProbe = m.metrics.Probe
	conn.OnClose = func() error { return unlinkClient(endpoint) }

	logger.Info("rendezvous complete", "worker", endpoint.WorkerAddress(), "launched", launched)
	return Result{Conn: conn, Endpoint: endpoint, Launched: launched}, nil
}

// acquire launches the worker for endpoint if no other session has
// claimed its directory. It reports whether this call launched it.
func (m *Manager) acquire(ctx context.Context, endpoint Endpoint, params benchmark.Params, sessionID string, logger *slog.Logger) (bool, error) {
	if err := os.MkdirAll(m.config.WorkerRoot, 0755); err != nil {
		return false, fmt.Errorf("creating worker root: %w", err)
	}

	dir := endpoint.WorkerDir(m.config.WorkerRoot)
	err := os.Mkdir(dir, 0755)
	if errors.Is(err, fs.ErrExist) {
		m.checkRecord(dir, logger)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating worker directory: %w", err)
	}

	if err := m.launch(ctx, dir, endpoint, params, sessionID, logger); err != nil {
		// Release the claim so a later session can try again.
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			logger.Warn("removing worker directory after failed launch", "dir", dir, "error", removeErr)
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) launch(ctx context.Context, dir string, endpoint Endpoint, params benchmark.Params, sessionID string, logger *slog.Logger) error {
	if source := params.First(benchmark.KeySourceDir); source != "" {
		if err := os.CopyFS(dir, os.DirFS(source)); err != nil {
			return fmt.Errorf("copying benchmark source %s: %w", source, err)
		}
	}

	args := params.WorkerArgs(endpoint.Alias, endpoint.Instance)
	pid, err := m.launcher.Launch(ctx, LaunchSpec{Binary: m.config.WorkerBinary, Args: args, Dir: dir})
	if err != nil {
		return fmt.Errorf("launching worker: %w", err)
	}
	logger.Info("launched worker", "pid", pid, "dir", dir, "args", args)

	record := Record{
		PID:      pid,
		Args:     args,
		Instance: endpoint.Instance,
		Binary:   m.config.WorkerBinary,
		Started:  m.clock.Now(),
		Session:  sessionID,
	}
	if digest, err := DigestFile(m.config.WorkerBinary); err == nil {
		record.BinaryDigest = digest
	} else {
		logger.Warn("hashing worker binary", "error", err)
	}
	if err := WriteRecord(dir, record); err != nil {
		logger.Warn("writing worker record", "error", err)
	}
	return nil
}

// checkRecord logs what is known about a worker launched elsewhere.
// The record may not exist yet while its launcher is still starting.
func (m *Manager) checkRecord(dir string, logger *slog.Logger) {
	record, err := ReadRecord(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("attaching to worker being launched", "dir", dir)
		return
	}
	if err != nil {
		logger.Warn("reading worker record", "dir", dir, "error", err)
		return
	}
	logger.Debug("attaching to worker", "pid", record.PID, "launched_by_instance", record.Instance)

	if record.BinaryDigest == "" || m.config.WorkerBinary == "" {
		return
	}
	digest, err := DigestFile(m.config.WorkerBinary)
	if err != nil {
		return
	}
	if digest != record.BinaryDigest {
		logger.Warn("worker binary changed since the worker was launched",
			"pid", record.PID, "binary", m.config.WorkerBinary,
			"running_digest", record.BinaryDigest, "configured_digest", digest)
	}
}
