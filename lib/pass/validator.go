// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pass

import "errors"

// ErrInvalidSequence is wrapped by Validator.ValidateSequence when a
// sequence of known passes is not legal.
var ErrInvalidSequence = errors.New("invalid pass sequence")

// Category identifies a pass list (the pass manager's list number).
// Every pass belongs to exactly one category.
type Category int

// Properties summarizes compiler state after a pass history. Original
// holds the compiler's own property bits; Custom holds bits maintained
// by the pass library itself (such as "inside a loop region"). Both are
// appended to the observation embedding.
type Properties struct {
	Original int64 `cbor:"original" json:"original"`
	Custom   int64 `cbor:"custom" json:"custom"`
}

// Validator is the pass-management capability. Implementations must be
// safe for concurrent use: one Validator is shared by all sessions in
// a process.
type Validator interface {
	// Category returns the category owning the named pass, or false
	// if the pass is unknown.
	Category(name string) (Category, bool)

	// Passes returns every pass of a category in canonical order.
	Passes(category Category) []string

	// Properties returns the compiler state after history has run.
	Properties(history []string, category Category) Properties

	// ValidateSequence returns nil if passes may run in this order,
	// or an error wrapping ErrInvalidSequence.
	ValidateSequence(passes []string, category Category) error

	// LegalActions returns the passes of category that may run next
	// given properties.
	LegalActions(properties Properties, category Category) []string

	// InLoop reports whether properties place the next pass inside a
	// loop region.
	InLoop(properties Properties) bool
}
