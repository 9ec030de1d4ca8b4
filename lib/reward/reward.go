// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reward converts successive observations of a compiled
// function into scalar rewards.
//
// Every strategy reads a noise-gated runtime signal: when both of the
// runtime percentages being compared fall below the strategy's noise
// floor, the measured runtimes are treated as indistinguishable and
// the runtime term is exactly zero.
package reward

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Strategy names accepted by New.
const (
	NameWeightedDelta           = "weighted_delta"
	NameWeightedDeltaAsymmetric = "weighted_delta_asymmetric"
	NameBaselineRelative        = "baseline_relative"
	NamePotential               = "potential"
)

// ErrUnknownStrategy is returned by New for an unrecognized name.
var ErrUnknownStrategy = errors.New("unknown reward strategy")

// Sample is the part of an observation a strategy reads: the current
// measurements and the session's baseline mirrors.
type Sample struct {
	Size           int64
	RuntimeSec     float64
	RuntimePercent float64

	BaseSize           int64
	BaseRuntimeSec     float64
	BaseRuntimePercent float64
}

// baseline returns the baseline mirrors as a sample of their own.
func (s Sample) baseline() Sample {
	return Sample{
		Size:           s.BaseSize,
		RuntimeSec:     s.BaseRuntimeSec,
		RuntimePercent: s.BaseRuntimePercent,
	}
}

// Strategy turns observations into rewards. Reset is called with the
// observation an episode starts from; Update with each observation
// after a step. Strategies hold per-episode state and are not safe for
// concurrent use.
type Strategy interface {
	Reset(initial Sample)
	Update(current Sample) float64
}

// Config selects and tunes a strategy. Zero-valued tuning fields keep
// the strategy's default.
type Config struct {
	Strategy         string  `yaml:"strategy"`
	NoiseFloor       float64 `yaml:"noise_floor"`
	Weight           float64 `yaml:"weight"`
	RegressionWeight float64 `yaml:"regression_weight"`
}

// Names returns the accepted strategy names in sorted order.
func Names() []string {
	names := []string{NameWeightedDelta, NameWeightedDeltaAsymmetric, NameBaselineRelative, NamePotential}
	slices.Sort(names)
	return names
}

// New builds the strategy named by config.Strategy.
func New(config Config) (Strategy, error) {
	pick := func(value, fallback float64) float64 {
		if value == 0 {
			return fallback
		}
		return value
	}

	switch config.Strategy {
	case NameWeightedDelta, NameWeightedDeltaAsymmetric:
		return &WeightedDelta{
			Weight:     pick(config.Weight, 0.5),
			NoiseFloor: pick(config.NoiseFloor, 1),
			Asymmetric: config.Strategy == NameWeightedDeltaAsymmetric,
		}, nil
	case NameBaselineRelative:
		return &BaselineRelative{
			NoiseFloor:       pick(config.NoiseFloor, 0.5),
			RegressionWeight: pick(config.RegressionWeight, 2),
		}, nil
	case NamePotential:
		return &Potential{NoiseFloor: pick(config.NoiseFloor, 5)}, nil
	default:
		return nil, fmt.Errorf("%w %q (want one of %v)", ErrUnknownStrategy, config.Strategy, Names())
	}
}

// sizeDelta is the relative size improvement from reference to
// current. A zero reference size yields 0.
func sizeDelta(reference, current int64) float64 {
	if reference == 0 {
		return 0
	}
	return float64(reference-current) / float64(reference)
}

// runtimeDelta is the relative runtime improvement from reference to
// current, gated by floor on runtime_percent. A zero reference runtime
// yields 1.
func runtimeDelta(reference, current Sample, floor float64) float64 {
	if reference.RuntimePercent < floor && current.RuntimePercent < floor {
		return 0
	}
	if reference.RuntimeSec == 0 {
		return 1
	}
	return (reference.RuntimeSec - current.RuntimeSec) / reference.RuntimeSec
}

// WeightedDelta rewards the improvement over the previous observation:
// size term plus Weight times the runtime term. With Asymmetric set a
// runtime regression is weighted 1 instead of Weight.
type WeightedDelta struct {
	Weight     float64
	NoiseFloor float64
	Asymmetric bool

	previous Sample
}

func (w *WeightedDelta) Reset(initial Sample) {
	w.previous = initial
}

func (w *WeightedDelta) Update(current Sample) float64 {
	size := sizeDelta(w.previous.Size, current.Size)
	runtime := runtimeDelta(w.previous, current, w.NoiseFloor)
	weight := w.Weight
	if w.Asymmetric && runtime < 0 {
		weight = 1
	}
	w.previous = current
	return size + runtime*weight
}

// BaselineRelative compares every observation with the episode
// baseline. A size regression is returned as is. Otherwise a runtime
// regression is added at RegressionWeight; a runtime improvement is
// ignored.
type BaselineRelative struct {
	NoiseFloor       float64
	RegressionWeight float64
}

func (b *BaselineRelative) Reset(Sample) {}

func (b *BaselineRelative) Update(current Sample) float64 {
	base := current.baseline()
	size := sizeDelta(base.Size, current.Size)
	if size < 0 {
		return size
	}
	runtime := runtimeDelta(base, current, b.NoiseFloor)
	if runtime >= 0 {
		return size
	}
	return size + b.RegressionWeight*runtime
}

// Potential rewards the change in a baseline-relative state value, so
// the rewards of an episode sum to Value(final) - Value(initial)
// whatever path was taken.
type Potential struct {
	NoiseFloor float64

	previous float64
}

// Value is the potential of an observation.
func (p *Potential) Value(s Sample) float64 {
	base := s.baseline()
	size := sizeDelta(base.Size, s.Size)
	if size < 0 {
		return size
	}
	runtime := runtimeDelta(base, s, p.NoiseFloor)
	if runtime > 0 {
		return size
	}
	return size - math.Exp(-runtime)
}

func (p *Potential) Reset(initial Sample) {
	p.previous = p.Value(initial)
}

func (p *Potential) Update(current Sample) float64 {
	value := p.Value(current)
	delta := value - p.previous
	p.previous = value
	return delta
}
