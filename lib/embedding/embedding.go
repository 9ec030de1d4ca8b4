// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package embedding turns the raw feature integers reported by a
// worker into the observation vector seen by the agent.
//
// The raw layout is:
//
//	[0, 47)          autophase counters
//	47               C, the length of the control-flow graph encoding
//	[48, 48+C)       control-flow graph edges
//	[48+C, end)      value-flow graph edges
//
// Both graphs are reduced to fixed-size vectors by a [GraphEmbedder].
// The observation vector is the autophase counters, the control-flow
// vector, the value-flow vector and finally the two pass-history
// property words.
package embedding

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/passgym/lib/pass"
)

const (
	// AutophaseLength is the number of autophase counters.
	AutophaseLength = 47

	// DefaultGraphDimension is the size of each graph embedding.
	DefaultGraphDimension = 25

	propertyWords = 2
)

// ErrMalformed is wrapped by errors for raw input that does not follow
// the layout.
var ErrMalformed = errors.New("malformed raw embedding")

// GraphEmbedder reduces an encoded graph to exactly dimension values.
// Implementations must be safe for concurrent use.
type GraphEmbedder interface {
	Embed(edges []int32, dimension int) ([]float64, error)
}

// Pipeline computes observation vectors. The zero value is not usable;
// build one with NewPipeline.
type Pipeline struct {
	embedder  GraphEmbedder
	dimension int
}

// NewPipeline returns a Pipeline embedding both graphs with embedder
// at the given dimension.
func NewPipeline(embedder GraphEmbedder, dimension int) (*Pipeline, error) {
	if embedder == nil {
		return nil, errors.New("embedding pipeline requires a graph embedder")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("graph dimension must be positive, got %d", dimension)
	}
	return &Pipeline{embedder: embedder, dimension: dimension}, nil
}

// Length returns the length of every vector the pipeline produces.
func (p *Pipeline) Length() int {
	return AutophaseLength + 2*p.dimension + propertyWords
}

// Compute builds the observation vector for raw worker features and
// the properties of the current pass history.
func (p *Pipeline) Compute(raw []int32, properties pass.Properties) ([]float64, error) {
	controlFlow, valueFlow, err := Split(raw)
	if err != nil {
		return nil, err
	}

	vector := make([]float64, 0, p.Length())
	for _, value := range raw[:AutophaseLength] {
		vector = append(vector, float64(value))
	}
	for _, graph := range []struct {
		name  string
		edges []int32
	}{
		{"control-flow", controlFlow},
		{"value-flow", valueFlow},
	} {
		embedded, err := p.embedder.Embed(graph.edges, p.dimension)
		if err != nil {
			return nil, fmt.Errorf("embedding %s graph: %w", graph.name, err)
		}
		if len(embedded) != p.dimension {
			return nil, fmt.Errorf("%s graph embedding has %d values, want %d", graph.name, len(embedded), p.dimension)
		}
		vector = append(vector, embedded...)
	}
	vector = append(vector, float64(properties.Original), float64(properties.Custom))
	return vector, nil
}

// Split returns the control-flow and value-flow segments of raw.
func Split(raw []int32) (controlFlow, valueFlow []int32, err error) {
	if len(raw) < AutophaseLength+1 {
		return nil, nil, fmt.Errorf("%w: %d values, need at least %d", ErrMalformed, len(raw), AutophaseLength+1)
	}
	length := int(raw[AutophaseLength])
	rest := raw[AutophaseLength+1:]
	if length < 0 || length > len(rest) {
		return nil, nil, fmt.Errorf("%w: control-flow length %d with %d values remaining", ErrMalformed, length, len(rest))
	}
	return rest[:length], rest[length:], nil
}
