// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog implements pass.Validator from a declarative pass
// catalog. It stands in for the native pass-management library when
// that library is not available (offline runs, tests, the mock worker).
//
// A catalog is a JSONC document:
//
//	{
//	  // property bits, in bit order
//	  "properties": ["cfg", "ssa", "loops"],
//	  "initial": ["cfg", "ssa"],
//	  "passes": [
//	    {"name": "fix_loops", "category": 2, "requires": ["cfg"],
//	     "provides": ["loops"], "enters_loop": true},
//	    {"name": "unroll", "category": 2, "loop_only": true},
//	    {"name": "loopdone", "category": 2, "exits_loop": true,
//	     "destroys": ["loops"]},
//	  ],
//	}
//
// Properties fold over a history: each pass clears its "destroys" bits
// then sets its "provides" bits. The custom properties carry a single
// bit, [InLoopBit], set by "enters_loop" passes and cleared by
// "exits_loop" passes.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/passgym/lib/pass"
)

// InLoopBit is the custom property bit meaning the next pass runs
// inside a loop region.
const InLoopBit int64 = 1

// Document is the JSON shape of a catalog file.
type Document struct {
	Properties []string   `json:"properties"`
	Initial    []string   `json:"initial,omitempty"`
	Passes     []PassSpec `json:"passes"`
}

// PassSpec describes one pass.
type PassSpec struct {
	Name        string   `json:"name"`
	Category    int      `json:"category"`
	Requires    []string `json:"requires,omitempty"`
	Provides    []string `json:"provides,omitempty"`
	Destroys    []string `json:"destroys,omitempty"`
	EntersLoop  bool     `json:"enters_loop,omitempty"`
	ExitsLoop   bool     `json:"exits_loop,omitempty"`
	LoopOnly    bool     `json:"loop_only,omitempty"`
	OutsideLoop bool     `json:"outside_loop,omitempty"`
}

type entry struct {
	spec     PassSpec
	requires int64
	provides int64
	destroys int64
}

// Catalog is an immutable pass.Validator. Safe for concurrent use.
type Catalog struct {
	entries map[string]*entry
	order   []string
	initial int64
}

var _ pass.Validator = (*Catalog)(nil)

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pass catalog: %w", err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// Parse strips JSONC comments and trailing commas from data and builds
// a Catalog from the result.
func Parse(data []byte) (*Catalog, error) {
	var document Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, fmt.Errorf("parsing pass catalog: %w", err)
	}
	return New(document)
}

// New builds a Catalog from a parsed document.
func New(document Document) (*Catalog, error) {
	if len(document.Properties) > 63 {
		return nil, fmt.Errorf("catalog declares %d properties, at most 63 fit", len(document.Properties))
	}
	bits := make(map[string]int64, len(document.Properties))
	for index, name := range document.Properties {
		if _, exists := bits[name]; exists {
			return nil, fmt.Errorf("property %q declared twice", name)
		}
		bits[name] = 1 << index
	}
	mask := func(owner string, names []string) (int64, error) {
		var value int64
		for _, name := range names {
			bit, ok := bits[name]
			if !ok {
				return 0, fmt.Errorf("%s references undeclared property %q", owner, name)
			}
			value |= bit
		}
		return value, nil
	}

	initial, err := mask("initial", document.Initial)
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{
		entries: make(map[string]*entry, len(document.Passes)),
		initial: initial,
	}
	for _, spec := range document.Passes {
		if spec.Name == "" {
			return nil, fmt.Errorf("pass without a name")
		}
		if _, exists := catalog.entries[spec.Name]; exists {
			return nil, fmt.Errorf("pass %q declared twice", spec.Name)
		}
		if spec.LoopOnly && spec.OutsideLoop {
			return nil, fmt.Errorf("pass %q is both loop_only and outside_loop", spec.Name)
		}
		owner := fmt.Sprintf("pass %q", spec.Name)
		e := &entry{spec: spec}
		if e.requires, err = mask(owner, spec.Requires); err != nil {
			return nil, err
		}
		if e.provides, err = mask(owner, spec.Provides); err != nil {
			return nil, err
		}
		if e.destroys, err = mask(owner, spec.Destroys); err != nil {
			return nil, err
		}
		catalog.entries[spec.Name] = e
		catalog.order = append(catalog.order, spec.Name)
	}
	return catalog, nil
}

// Category implements pass.Validator.
func (c *Catalog) Category(name string) (pass.Category, bool) {
	e, ok := c.entries[name]
	if !ok {
		return 0, false
	}
	return pass.Category(e.spec.Category), true
}

// Passes implements pass.Validator.
func (c *Catalog) Passes(category pass.Category) []string {
	var names []string
	for _, name := range c.order {
		if pass.Category(c.entries[name].spec.Category) == category {
			names = append(names, name)
		}
	}
	return names
}

// Properties implements pass.Validator. Unknown passes in history
// leave the properties unchanged.
func (c *Catalog) Properties(history []string, category pass.Category) pass.Properties {
	properties := pass.Properties{Original: c.initial}
	for _, name := range history {
		if e, ok := c.entries[name]; ok {
			properties = e.apply(properties)
		}
	}
	return properties
}

// ValidateSequence implements pass.Validator.
func (c *Catalog) ValidateSequence(passes []string, category pass.Category) error {
	properties := pass.Properties{Original: c.initial}
	for position, name := range passes {
		e, ok := c.entries[name]
		if !ok || pass.Category(e.spec.Category) != category {
			return fmt.Errorf("%w: %q at position %d is not in category %d",
				pass.ErrInvalidSequence, name, position, category)
		}
		if reason := e.blocked(properties); reason != "" {
			return fmt.Errorf("%w: %q at position %d %s",
				pass.ErrInvalidSequence, name, position, reason)
		}
		properties = e.apply(properties)
	}
	return nil
}

// LegalActions implements pass.Validator.
func (c *Catalog) LegalActions(properties pass.Properties, category pass.Category) []string {
	var names []string
	for _, name := range c.order {
		e := c.entries[name]
		if pass.Category(e.spec.Category) == category && e.blocked(properties) == "" {
			names = append(names, name)
		}
	}
	return names
}

// InLoop implements pass.Validator.
func (c *Catalog) InLoop(properties pass.Properties) bool {
	return properties.Custom&InLoopBit != 0
}

// Names returns every pass name in catalog order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.order)
}

func (e *entry) blocked(properties pass.Properties) string {
	inLoop := properties.Custom&InLoopBit != 0
	switch {
	case properties.Original&e.requires != e.requires:
		return "requires properties not yet provided"
	case e.spec.LoopOnly && !inLoop:
		return "must run inside a loop region"
	case e.spec.OutsideLoop && inLoop:
		return "must not run inside a loop region"
	}
	return ""
}

func (e *entry) apply(properties pass.Properties) pass.Properties {
	properties.Original = properties.Original&^e.destroys | e.provides
	if e.spec.EntersLoop {
		properties.Custom |= InLoopBit
	}
	if e.spec.ExitsLoop {
		properties.Custom &^= InLoopBit
	}
	return properties
}
