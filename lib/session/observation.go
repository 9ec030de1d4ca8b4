// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/passgym/lib/pass"
	"github.com/bureau-foundation/passgym/lib/reward"
	"github.com/bureau-foundation/passgym/lib/trajectory"
)

// Observation channel names accepted by Session.Observe.
const (
	ChannelRuntimeSec         = "runtime_sec"
	ChannelRuntimePercent     = "runtime_percent"
	ChannelSize               = "size"
	ChannelBaseRuntimeSec     = "base_runtime_sec"
	ChannelBaseRuntimePercent = "base_runtime_percent"
	ChannelBaseSize           = "base_size"
	ChannelEmbedding          = "embedding"
	ChannelBaseEmbedding      = "base_embedding"
	ChannelPasses             = "passes"
)

// Channels lists every observation channel.
var Channels = []string{
	ChannelRuntimeSec, ChannelRuntimePercent, ChannelSize,
	ChannelBaseRuntimeSec, ChannelBaseRuntimePercent, ChannelBaseSize,
	ChannelEmbedding, ChannelBaseEmbedding, ChannelPasses,
}

// ErrUnknownChannel is returned by Observe for an unrecognized name.
var ErrUnknownChannel = errors.New("unknown observation channel")

// Observation is the state of the function after a pass list ran.
type Observation struct {
	Size           int64
	RuntimeSec     float64
	RuntimePercent float64
	Embedding      []float64

	// Passes is the logical pass list the observation was taken
	// after.
	Passes     []string
	Properties pass.Properties
}

// Clone returns a deep copy.
func (o Observation) Clone() Observation {
	o.Embedding = slices.Clone(o.Embedding)
	o.Passes = slices.Clone(o.Passes)
	return o
}

// Equal reports whether two observations are identical.
func (o Observation) Equal(other Observation) bool {
	return o.Size == other.Size &&
		o.RuntimeSec == other.RuntimeSec &&
		o.RuntimePercent == other.RuntimePercent &&
		o.Properties == other.Properties &&
		slices.Equal(o.Embedding, other.Embedding) &&
		slices.Equal(o.Passes, other.Passes)
}

func (o Observation) record() trajectory.Observation {
	return trajectory.Observation{
		Size:           o.Size,
		RuntimeSec:     o.RuntimeSec,
		RuntimePercent: o.RuntimePercent,
		Embedding:      o.Embedding,
		Passes:         o.Passes,
	}
}

// sample pairs o with the baseline for the reward strategy.
func sample(o, baseline Observation) reward.Sample {
	return reward.Sample{
		Size:               o.Size,
		RuntimeSec:         o.RuntimeSec,
		RuntimePercent:     o.RuntimePercent,
		BaseSize:           baseline.Size,
		BaseRuntimeSec:     baseline.RuntimeSec,
		BaseRuntimePercent: baseline.RuntimePercent,
	}
}

// Observe returns the value of one observation channel: float64 for
// runtimes, int64 for sizes, []float64 for embeddings and []string for
// passes. Returned slices are copies.
func (s *Session) Observe(channel string) (any, error) {
	current, baseline := s.current, s.baseline
	switch channel {
	case ChannelRuntimeSec:
		return current.RuntimeSec, nil
	case ChannelRuntimePercent:
		return current.RuntimePercent, nil
	case ChannelSize:
		return current.Size, nil
	case ChannelBaseRuntimeSec:
		return baseline.RuntimeSec, nil
	case ChannelBaseRuntimePercent:
		return baseline.RuntimePercent, nil
	case ChannelBaseSize:
		return baseline.Size, nil
	case ChannelEmbedding:
		return slices.Clone(current.Embedding), nil
	case ChannelBaseEmbedding:
		return slices.Clone(baseline.Embedding), nil
	case ChannelPasses:
		return slices.Clone(s.wirePasses), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
}
