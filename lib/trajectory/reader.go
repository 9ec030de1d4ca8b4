// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trajectory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/passgym/lib/codec"
)

// ErrNotTrajectory is returned for input that does not start with
// Magic.
var ErrNotTrajectory = errors.New("not a trajectory file")

// Reader iterates the steps of a trajectory.
type Reader struct {
	file        io.Closer
	closeStream func()
	decoder     *codec.Decoder
	header      Header
	compression Compression
}

// Open opens the trajectory at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trajectory: %w", err)
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading trajectory %s: %w", path, err)
	}
	reader.file = file
	return reader, nil
}

// NewReader reads the preamble and header from r.
func NewReader(r io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(r)

	var magic [8]byte
	if _, err := io.ReadFull(buffered, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotTrajectory, err)
	}
	if magic != Magic {
		return nil, ErrNotTrajectory
	}
	tag, err := buffered.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("reading trajectory compression: %w", err)
	}

	reader := &Reader{compression: Compression(tag), closeStream: func() {}}
	var stream io.Reader
	switch reader.compression {
	case CompressionNone:
		stream = buffered
	case CompressionLZ4:
		stream = lz4.NewReader(buffered)
	case CompressionZstd:
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		stream = decoder
		reader.closeStream = decoder.Close
	default:
		return nil, fmt.Errorf("unsupported trajectory compression: %s", reader.compression)
	}

	reader.decoder = codec.NewDecoder(stream)
	if err := reader.decoder.Decode(&reader.header); err != nil {
		reader.closeStream()
		return nil, fmt.Errorf("reading trajectory header: %w", err)
	}
	return reader, nil
}

// Header returns the trajectory header.
func (r *Reader) Header() Header { return r.header }

// Compression returns the compression the file was written with.
func (r *Reader) Compression() Compression { return r.compression }

// Next returns the next step, or io.EOF after the last one. A
// trajectory cut short mid-record returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Step, error) {
	var step Step
	if err := r.decoder.Decode(&step); err != nil {
		if errors.Is(err, io.EOF) {
			return Step{}, io.EOF
		}
		return Step{}, fmt.Errorf("reading trajectory step: %w", err)
	}
	return step, nil
}

// NextRaw returns the next step record undecoded, or io.EOF after the
// last one.
func (r *Reader) NextRaw() (codec.RawMessage, error) {
	var record codec.RawMessage
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading trajectory step: %w", err)
	}
	return record, nil
}

// ReadAll returns every remaining step.
func (r *Reader) ReadAll() ([]Step, error) {
	var steps []Step
	for {
		step, err := r.Next()
		if errors.Is(err, io.EOF) {
			return steps, nil
		}
		if err != nil {
			return steps, err
		}
		steps = append(steps, step)
	}
}

// Close releases the decompressor and closes the file opened by Open.
func (r *Reader) Close() error {
	r.closeStream()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
