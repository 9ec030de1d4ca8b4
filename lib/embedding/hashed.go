// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package embedding

import "math"

// HashedEdges is a GraphEmbedder that buckets consecutive (source,
// target) pairs of the edge encoding by a multiplicative hash and
// L2-normalizes the bucket counts. It is deterministic and needs no
// trained model; it is the default when no native flow2vec transform
// is wired in. An odd trailing value is ignored. An empty graph embeds
// to the zero vector.
type HashedEdges struct{}

// Embed implements GraphEmbedder.
func (HashedEdges) Embed(edges []int32, dimension int) ([]float64, error) {
	vector := make([]float64, dimension)
	for i := 0; i+1 < len(edges); i += 2 {
		key := uint64(uint32(edges[i]))<<32 | uint64(uint32(edges[i+1]))
		key *= 0x9e3779b97f4a7c15
		vector[key%uint64(dimension)]++
	}

	var norm float64
	for _, value := range vector {
		norm += value * value
	}
	if norm == 0 {
		return vector, nil
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}
	return vector, nil
}
