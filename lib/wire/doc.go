// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the datagram protocol spoken between a
// passgym session and a compiler worker.
//
// Every exchange is one request datagram followed by one reply
// datagram. Requests are:
//
//   - a single 0x00 byte: compile with the compiler's default pass
//     list (used once per session, for the baseline);
//   - a single '?': compile with the current, empty, pass list;
//   - otherwise the wire pass tokens, each terminated by '\n'.
//
// A reply is little-endian:
//
//	int32   N                   byte length of the embedding payload
//	int32   embedding[N/4]      raw feature integers
//	float64 runtime_percent
//	float64 runtime_sec
//	int32   size
//	[4]byte padding             optional
//
// Workers periodically send zero-length datagrams to check that the
// session still exists. Receivers discard them.
//
// [Conn] is the session side; [Responder] is the worker side, used by
// the mock worker and by tests.
package wire
