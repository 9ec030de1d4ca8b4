// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mockworker is a deterministic stand-in for the compiler
// worker. It speaks the worker side of the datagram protocol through
// [wire.Responder] and derives every reply from the benchmark,
// function and pass list alone, so two runs with the same inputs see
// identical telemetry.
//
// The telemetry model:
//
//   - The baseline (0x00) size, runtime and runtime share come from a
//     BLAKE3 digest of "benchmark/function".
//   - The empty list ('?') is the unoptimized build: 30% larger and
//     40% slower than the baseline.
//   - Each pass token scales the previous size and runtime by factors
//     drawn from the digest of the token and its position, between
//     0.94 and 1.02 for size and 0.92 and 1.03 for runtime.
//   - The embedding is 47 autophase counters followed by a control-
//     flow and a value-flow edge list whose shapes follow the pass
//     list, each capped at MaxEdges pairs.
//
// cmd/passgym-mock-worker wraps [Serve] as a binary; tests of the
// rendezvous path launch it in-process.
package mockworker
