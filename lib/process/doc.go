// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for passgym
// binaries: fatal error reporting to stderr before (or after) the
// structured logger exists, and the exit-code convention shared by
// passgym and the mock worker.
package process
