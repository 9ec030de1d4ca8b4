// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session runs one optimization episode against a compiler
// worker.
//
// A [Session] owns a logical pass list (the passes the agent chose) and
// a wire pass list (what the worker is told to run, with loop markers
// and expansions). Each [Session.Step] decodes one agent action,
// validates it against the shared [pass.Registry], and when the pass
// list changed sends the full wire list to the worker and turns the
// reply into a new [Observation] and a reward.
//
// States:
//
//	StateInit ──New──▶ StateReady ──Step──▶ StateStepping ──┐
//	                        ▲                    │  ▲        │
//	                        └────── reset ───────┘  └─ Step ─┘
//
// The reset token ends the episode (Done) and leaves the session at
// its initial observation, ready for the next episode.
//
// An invalid sequence or an exhausted dynamic action space moves the
// session to StateTerminal; from there only the reset token is
// accepted. A protocol failure also moves it to StateTerminal, and
// then every further Step fails with ErrTerminal.
//
// Sessions are not safe for concurrent use. Many sessions may share a
// process, a Registry, and a worker.
package session
