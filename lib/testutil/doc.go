// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for passgym packages.
//
// [SocketDir] creates a short temporary directory for filesystem Unix
// sockets, which are limited to 108 bytes of path. [AbstractName]
// returns an abstract-namespace socket name that is unique across
// concurrently running test binaries, since the abstract namespace is
// shared by every process on the host.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
