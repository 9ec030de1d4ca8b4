// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()
	record := Record{
		PID:          99,
		Args:         []string{"-nqsort", "-i3"},
		Instance:     3,
		Binary:       "/usr/bin/worker",
		BinaryDigest: "abc",
		Started:      epoch,
		Session:      "s",
	}
	if err := WriteRecord(dir, record); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, RecordFile+".tmp")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("temporary record left behind: %v", err)
	}

	got, err := ReadRecord(dir)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.PID != record.PID || got.Instance != record.Instance || !got.Started.Equal(record.Started) || got.Args[1] != "-i3" {
		t.Errorf("ReadRecord = %+v, want %+v", got, record)
	}
}

func TestReadRecordMissing(t *testing.T) {
	if _, err := ReadRecord(t.TempDir()); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadRecord = %v, want fs.ErrNotExist", err)
	}
}

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a")
	second := filepath.Join(dir, "b")
	os.WriteFile(first, []byte("one"), 0644)
	os.WriteFile(second, []byte("two"), 0644)

	a, err := DigestFile(first)
	if err != nil {
		t.Fatalf("DigestFile: %v", err)
	}
	b, _ := DigestFile(second)
	if len(a) != 64 || a == b {
		t.Errorf("digests %q and %q", a, b)
	}
	if _, err := DigestFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("DigestFile of a missing file succeeded")
	}
}

func TestExecLauncher(t *testing.T) {
	shell, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}
	dir := t.TempDir()
	pid, err := ExecLauncher{}.Launch(context.Background(), LaunchSpec{
		Binary: shell,
		Args:   []string{"-c", "echo worker started"},
		Dir:    dir,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d", pid)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		data, _ := os.ReadFile(filepath.Join(dir, WorkerLogFile))
		if strings.Contains(string(data), "worker started") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker log = %q", data)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
