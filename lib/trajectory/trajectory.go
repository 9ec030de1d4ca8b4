// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trajectory records episodes to disk and reads them back.
//
// A trajectory file is an 8-byte magic, one compression tag byte, and
// then a (possibly compressed) CBOR sequence: one [Header] followed by
// one [Step] per session step. Files are append-only while an episode
// runs, so a crashed episode still leaves every completed step
// readable up to the last flushed block.
package trajectory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Magic opens every trajectory file.
var Magic = [8]byte{'p', 'g', 'y', 'm', 't', 'r', 'j', 1}

// Extension is the file name suffix used by FileName.
const Extension = ".trj"

// FileName returns the conventional file name for an episode.
func FileName(episode uuid.UUID) string {
	return episode.String() + Extension
}

// Compression identifies how the record stream after the header bytes
// is compressed. The values are stored in files; changing them breaks
// existing recordings.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses the String form of a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown trajectory compression: %q", name)
	}
}

// Observation is the recorded form of a session observation.
type Observation struct {
	Size           int64     `cbor:"size"`
	RuntimeSec     float64   `cbor:"runtime_sec"`
	RuntimePercent float64   `cbor:"runtime_percent"`
	Embedding      []float64 `cbor:"embedding,omitempty"`
	Passes         []string  `cbor:"passes,omitempty"`
}

// Header opens a trajectory.
type Header struct {
	Episode   uuid.UUID `cbor:"episode"`
	Benchmark string    `cbor:"benchmark"`
	Function  string    `cbor:"function"`
	Instance  int       `cbor:"instance"`
	Strategy  string    `cbor:"strategy,omitempty"`
	Started   time.Time `cbor:"started"`

	Baseline Observation `cbor:"baseline"`
	Initial  Observation `cbor:"initial"`
}

// Step is one session step.
type Step struct {
	Index int `cbor:"index"`

	// Actions are the decoded actions of the step's batch, as text.
	Actions []string `cbor:"actions"`

	// WirePasses is the full pass list sent to the worker after the
	// step, or empty when the worker was not contacted.
	WirePasses []string `cbor:"wire_passes,omitempty"`

	Observation Observation   `cbor:"observation"`
	Reward      float64       `cbor:"reward"`
	Done        bool          `cbor:"done"`
	Invalid     bool          `cbor:"invalid"`
	Elapsed     time.Duration `cbor:"elapsed"`
}
