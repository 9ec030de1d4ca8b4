// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reward

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

const epsilon = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < epsilon }

func withBase(base Sample, size int64, runtimeSec, runtimePercent float64) Sample {
	return Sample{
		Size:               size,
		RuntimeSec:         runtimeSec,
		RuntimePercent:     runtimePercent,
		BaseSize:           base.Size,
		BaseRuntimeSec:     base.RuntimeSec,
		BaseRuntimePercent: base.RuntimePercent,
	}
}

func TestWeightedDeltaScenario(t *testing.T) {
	strategy, err := New(Config{Strategy: NameWeightedDelta})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := Sample{Size: 1000, RuntimeSec: 2.0, RuntimePercent: 50}
	strategy.Reset(withBase(base, 1000, 2.0, 50))

	got := strategy.Update(withBase(base, 900, 1.8, 50))
	if !near(got, 0.15) {
		t.Errorf("reward = %v, want 0.15", got)
	}
}

func TestWeightedDeltaAdvancesEveryStep(t *testing.T) {
	strategy := &WeightedDelta{Weight: 0.5, NoiseFloor: 1}
	base := Sample{Size: 1000, RuntimeSec: 2, RuntimePercent: 50}
	strategy.Reset(withBase(base, 1000, 2, 50))
	strategy.Update(withBase(base, 500, 2, 50))

	// Compared with 500, not with the baseline's 1000.
	got := strategy.Update(withBase(base, 500, 2, 50))
	if !near(got, 0) {
		t.Errorf("reward for an unchanged step = %v, want 0", got)
	}
}

func TestWeightedDeltaAsymmetric(t *testing.T) {
	base := Sample{Size: 1000, RuntimeSec: 2, RuntimePercent: 50}
	tests := []struct {
		name       string
		asymmetric bool
		runtime    float64
		want       float64
	}{
		{"symmetric regression", false, 2.2, -0.05},
		{"asymmetric regression", true, 2.2, -0.1},
		{"asymmetric improvement", true, 1.8, 0.05},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			strategy := &WeightedDelta{Weight: 0.5, NoiseFloor: 1, Asymmetric: test.asymmetric}
			strategy.Reset(withBase(base, 1000, 2, 50))
			if got := strategy.Update(withBase(base, 1000, test.runtime, 50)); !near(got, test.want) {
				t.Errorf("reward = %v, want %v", got, test.want)
			}
		})
	}
}

func TestBaselineRelativeScenario(t *testing.T) {
	strategy, err := New(Config{Strategy: NameBaselineRelative})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := Sample{Size: 1000, RuntimeSec: 2.0, RuntimePercent: 10}
	strategy.Reset(withBase(base, 1000, 2.0, 10))

	for _, runtime := range []float64{0.5, 2.0, 9.0} {
		if got := strategy.Update(withBase(base, 1100, runtime, 10)); !near(got, -0.1) {
			t.Errorf("runtime %v: reward = %v, want -0.1", runtime, got)
		}
	}
}

func TestBaselineRelativeRuntimeRegression(t *testing.T) {
	strategy := &BaselineRelative{NoiseFloor: 0.5, RegressionWeight: 2}
	base := Sample{Size: 1000, RuntimeSec: 2.0, RuntimePercent: 10}

	if got := strategy.Update(withBase(base, 900, 1.0, 10)); !near(got, 0.1) {
		t.Errorf("improved runtime: reward = %v, want 0.1", got)
	}
	// 0.1 + 2 * (2.0-3.0)/2.0
	if got := strategy.Update(withBase(base, 900, 3.0, 10)); !near(got, -0.9) {
		t.Errorf("regressed runtime: reward = %v, want -0.9", got)
	}
}

func TestNoiseGating(t *testing.T) {
	base := Sample{Size: 1000, RuntimeSec: 2.0, RuntimePercent: 0.2}
	strategies := map[string]Strategy{
		"weighted_delta":    &WeightedDelta{Weight: 0.5, NoiseFloor: 1},
		"baseline_relative": &BaselineRelative{NoiseFloor: 0.5, RegressionWeight: 2},
	}
	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			for _, runtime := range []float64{0.01, 2.0, 50} {
				strategy.Reset(withBase(base, 1000, 2.0, 0.2))
				if got := strategy.Update(withBase(base, 1000, runtime, 0.3)); got != 0 {
					t.Errorf("runtime %v: reward = %v, want exactly 0", runtime, got)
				}
			}
		})
	}
}

func TestZeroReference(t *testing.T) {
	if got := sizeDelta(0, 10); got != 0 {
		t.Errorf("sizeDelta(0, 10) = %v, want 0", got)
	}
	got := runtimeDelta(Sample{RuntimeSec: 0, RuntimePercent: 50}, Sample{RuntimeSec: 1, RuntimePercent: 50}, 1)
	if got != 1 {
		t.Errorf("runtimeDelta with zero reference = %v, want 1", got)
	}
}

func TestPotentialTelescopes(t *testing.T) {
	random := rand.New(rand.NewPCG(1, 2))
	base := Sample{Size: 1000, RuntimeSec: 2.0, RuntimePercent: 40}

	for episode := range 20 {
		strategy := &Potential{NoiseFloor: 5}
		initial := withBase(base, 1000, 2.0, 40)
		strategy.Reset(initial)

		var total float64
		var final Sample
		for range 1 + random.IntN(15) {
			final = withBase(base,
				int64(800+random.IntN(400)),
				1.5+random.Float64(),
				random.Float64()*10)
			total += strategy.Update(final)
		}

		want := strategy.Value(final) - strategy.Value(initial)
		if !near(total, want) {
			t.Errorf("episode %d: sum of rewards = %v, want %v", episode, total, want)
		}
	}
}

func TestPotentialValue(t *testing.T) {
	strategy := &Potential{NoiseFloor: 5}
	base := Sample{Size: 1000, RuntimeSec: 2.0, RuntimePercent: 50}

	tests := []struct {
		name   string
		sample Sample
		want   float64
	}{
		{"size regression", withBase(base, 1200, 1.0, 50), -0.2},
		{"runtime improvement", withBase(base, 900, 1.0, 50), 0.1},
		{"runtime regression", withBase(base, 900, 4.0, 50), 0.1 - math.Exp(1)},
		{"runtime gated", withBase(Sample{Size: 1000, RuntimeSec: 2, RuntimePercent: 1}, 900, 1.0, 1), 0.1 - 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := strategy.Value(test.sample); !near(got, test.want) {
				t.Errorf("Value = %v, want %v", got, test.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		if _, err := New(Config{Strategy: name}); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New(Config{Strategy: "shortest"}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("New(shortest) = %v, want ErrUnknownStrategy", err)
	}

	strategy, _ := New(Config{Strategy: NamePotential, NoiseFloor: 7})
	if got := strategy.(*Potential).NoiseFloor; got != 7 {
		t.Errorf("NoiseFloor = %v, want 7", got)
	}
}
