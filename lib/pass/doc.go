// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pass models compiler passes as the agent sees them: the
// tagged actions decoded from agent input, the action space snapshot
// those actions are resolved against, and the translation of logical
// passes into the tokens sent to the worker.
//
// Pass legality is not decided here. It is delegated to a [Validator],
// the capability implemented by the native pass-management library (or
// by lib/pass/catalog). A [Registry] binds one Validator to one pass
// category and precomputes the category's action list; it is built
// once per process and shared by every session.
package pass
