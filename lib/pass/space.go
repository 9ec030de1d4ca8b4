// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pass

import (
	"fmt"
	"slices"
)

// ActionSpace is an immutable, named list of pass names an agent may
// choose from. Indices in a Ref refer to positions in this list.
type ActionSpace struct {
	name   string
	passes []string
}

// NewActionSpace returns an ActionSpace holding a copy of passes.
func NewActionSpace(name string, passes []string) ActionSpace {
	return ActionSpace{name: name, passes: slices.Clone(passes)}
}

// Name returns the space's name.
func (s ActionSpace) Name() string { return s.name }

// Len returns the number of actions.
func (s ActionSpace) Len() int { return len(s.passes) }

// Passes returns a copy of the pass names.
func (s ActionSpace) Passes() []string { return slices.Clone(s.passes) }

// At returns the pass name at index.
func (s ActionSpace) At(index int) (string, error) {
	if index < 0 || index >= len(s.passes) {
		return "", fmt.Errorf("%w: index %d outside action space %q of %d actions",
			ErrUnknownAction, index, s.name, len(s.passes))
	}
	return s.passes[index], nil
}

// Contains reports whether name is one of the space's actions.
func (s ActionSpace) Contains(name string) bool {
	return slices.Contains(s.passes, name)
}

// Equal reports whether both spaces list the same passes in order.
func (s ActionSpace) Equal(other ActionSpace) bool {
	return slices.Equal(s.passes, other.passes)
}
