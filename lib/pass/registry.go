// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pass

import "fmt"

// Registry binds a Validator to the category sessions operate on and
// holds the category's full action list, computed once. A Registry is
// immutable after NewRegistry and is shared by all sessions in the
// process.
type Registry struct {
	validator Validator
	category  Category
	actions   ActionSpace
	initial   Properties
}

// NewRegistry queries validator for the passes of category and returns
// a Registry exposing them as the action space called spaceName.
func NewRegistry(validator Validator, category Category, spaceName string) (*Registry, error) {
	passes := validator.Passes(category)
	if len(passes) == 0 {
		return nil, fmt.Errorf("pass category %d has no passes", category)
	}
	return &Registry{
		validator: validator,
		category:  category,
		actions:   NewActionSpace(spaceName, passes),
		initial:   validator.Properties(nil, category),
	}, nil
}

// Validator returns the underlying capability.
func (r *Registry) Validator() Validator { return r.validator }

// Category returns the category sessions operate on.
func (r *Registry) Category() Category { return r.category }

// ActionSpace returns the full action list of the category.
func (r *Registry) ActionSpace() ActionSpace { return r.actions }

// InitialProperties returns the properties of the empty pass history.
func (r *Registry) InitialProperties() Properties { return r.initial }

// Check returns nil if name belongs to the registry's category and an
// error wrapping ErrUnknownAction otherwise.
func (r *Registry) Check(name string) error {
	category, ok := r.validator.Category(name)
	if !ok {
		return fmt.Errorf("%w: pass %q", ErrUnknownAction, name)
	}
	if category != r.category {
		return fmt.Errorf("%w: pass %q belongs to category %d, not %d",
			ErrUnknownAction, name, category, r.category)
	}
	return nil
}

// LegalSpace returns the legal next actions for properties as an
// ActionSpace named after the registry's space.
func (r *Registry) LegalSpace(properties Properties) ActionSpace {
	return NewActionSpace(r.actions.Name(), r.validator.LegalActions(properties, r.category))
}
