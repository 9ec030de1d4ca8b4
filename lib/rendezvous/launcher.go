// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// LaunchSpec is everything needed to start one worker.
type LaunchSpec struct {
	Binary string
	Args   []string
	Dir    string
}

// Launcher starts worker processes. The worker must outlive the
// session that launched it; Launch returns once the process has
// started, not when it exits.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (pid int, err error)
}

// WorkerLogFile receives the worker's stdout and stderr.
const WorkerLogFile = "worker.log"

// ExecLauncher runs the worker binary as a child process in its own
// process group, with output appended to WorkerLogFile in the worker
// directory.
type ExecLauncher struct {
	Logger *slog.Logger
}

func (l ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (int, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	output, err := os.OpenFile(filepath.Join(spec.Dir, WorkerLogFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("opening worker log: %w", err)
	}

	// Not CommandContext: the worker is shared and must survive the
	// launching session.
	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		output.Close()
		return 0, fmt.Errorf("starting worker %s: %w", spec.Binary, err)
	}
	pid := cmd.Process.Pid

	go func() {
		err := cmd.Wait()
		output.Close()
		logger.Info("worker exited", "pid", pid, "dir", spec.Dir, "error", err)
	}()
	return pid, nil
}
