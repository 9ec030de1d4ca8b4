// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// NewLogger returns the logger binaries write to stderr: a text handler
// when stderr is a terminal, JSON otherwise.
func NewLogger(level slog.Level) *slog.Logger {
	return NewLoggerTo(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level)
}

// NewLoggerTo builds the same logger over w.
func NewLoggerTo(w io.Writer, text bool, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// ParseLevel parses a --log-level value.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, Usage("invalid log level %q: %v", name, err)
	}
	return level, nil
}
