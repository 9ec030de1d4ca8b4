// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mockworker

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/passgym/lib/embedding"
	"github.com/bureau-foundation/passgym/lib/wire"
)

// DefaultMaxEdges bounds each edge list when Model.MaxEdges is zero.
const DefaultMaxEdges = 32

// Model computes telemetry for one (benchmark, function) worker.
type Model struct {
	Benchmark string
	Function  string

	// MaxEdges caps the pairs in each edge list.
	MaxEdges int
}

// baseline is the baseline reply before the embedding is attached.
type baseline struct {
	size           int64
	runtimeSec     float64
	runtimePercent float64
}

func digest(parts ...string) uint64 {
	hasher := blake3.New()
	for i, part := range parts {
		if i > 0 {
			hasher.Write([]byte{0})
		}
		hasher.Write([]byte(part))
	}
	var sum [8]byte
	hasher.Digest().Read(sum[:])
	return binary.LittleEndian.Uint64(sum[:])
}

func (m Model) baseline() baseline {
	seed := digest(m.Benchmark, m.Function)
	return baseline{
		size:           2000 + int64(seed%8000),
		runtimeSec:     1 + float64((seed>>16)%4000)/1000,
		runtimePercent: 10 + float64((seed>>32)%80),
	}
}

// Telemetry answers one request.
func (m Model) Telemetry(request wire.Request) wire.Telemetry {
	base := m.baseline()
	if request.Kind == wire.RequestBaseline {
		return wire.Telemetry{
			Size:           base.size,
			RuntimeSec:     base.runtimeSec,
			RuntimePercent: base.runtimePercent,
			Embedding:      m.embedding(base.size, nil),
		}
	}

	size := float64(base.size) * 1.3
	runtime := base.runtimeSec * 1.4
	unoptimized := runtime
	for i, token := range request.Passes {
		seed := digest(token, strconv.Itoa(i))
		size *= 0.94 + float64(seed%9)/100
		runtime *= 0.92 + float64((seed>>8)%12)/100
	}

	percent := math.Min(100, base.runtimePercent*runtime/unoptimized)
	rounded := int64(math.Round(size))
	return wire.Telemetry{
		Size:           rounded,
		RuntimeSec:     runtime,
		RuntimePercent: percent,
		Embedding:      m.embedding(rounded, request.Passes),
	}
}

// embedding lays out autophase counters, the control-flow length, the
// control-flow edges, then the value-flow edges.
func (m Model) embedding(size int64, passes []string) []int32 {
	maxEdges := m.MaxEdges
	if maxEdges <= 0 {
		maxEdges = DefaultMaxEdges
	}

	raw := make([]int32, 0, embedding.AutophaseLength+1+4*maxEdges)
	for i := range embedding.AutophaseLength {
		raw = append(raw, int32((size>>(i%8))%97)+int32(i))
	}

	controlPairs := min(maxEdges, len(passes)%7+1)
	valuePairs := min(maxEdges, len(passes)+2)
	raw = append(raw, int32(2*controlPairs))
	raw = appendEdges(raw, controlPairs, digest(append([]string{"control"}, passes...)...))
	raw = appendEdges(raw, valuePairs, digest(append([]string{"value"}, passes...)...))
	return raw
}

func appendEdges(raw []int32, pairs int, seed uint64) []int32 {
	for i := range pairs {
		source := int32((seed >> (i % 32)) % 64)
		raw = append(raw, source, source+1+int32(i%5))
	}
	return raw
}
