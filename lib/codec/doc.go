// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides passgym's standard CBOR encoding configuration.
//
// CBOR is used for everything passgym writes for its own consumption:
// the worker record left in each worker directory and the step records
// of episode trajectories. The worker wire protocol is a fixed binary
// layout and lives in lib/wire, not here.
//
// For buffer-oriented operations (record files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (trajectory files):
//
//	encoder := codec.NewEncoder(writer)
//	decoder := codec.NewDecoder(reader)
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same value always produces identical bytes. Types carry `cbor`
// struct tags; types that are also rendered as JSON may rely on their
// `json` tags, which fxamacker/cbor falls back to.
package codec
