// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rendezvous pairs a session with the worker process that
// compiles its (benchmark, function).
//
// Three steps run for every session:
//
//   - Bind: the session binds a private datagram endpoint named
//     "{benchmark}:{alias}_{instance}". The kernel's bind uniqueness
//     hands out instance ids: an address already in use moves the
//     session to the next instance.
//   - Acquire: creating the directory "{worker_root}/{benchmark}:{alias}"
//     is the mutual exclusion between sessions. The session whose
//     os.Mkdir succeeds launches the worker and writes a [Record]; every
//     other session attaches to that worker.
//   - Connect: the session connects to the worker's well-known address
//     "{benchmark}:{alias}:backend", retrying with exponential backoff
//     while the worker is still starting.
//
// Addresses live in the Linux abstract socket namespace unless a
// socket directory is configured, in which case they are filesystem
// paths inside it.
package rendezvous
