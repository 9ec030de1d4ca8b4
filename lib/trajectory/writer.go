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

// Writer appends steps to a trajectory. It is not safe for concurrent
// use.
type Writer struct {
	file       io.Closer
	buffer     *bufio.Writer
	compressor io.WriteCloser
	encoder    *codec.Encoder
	steps      int
}

// Create creates the file at path and writes header to it.
func Create(path string, compression Compression, header Header) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating trajectory: %w", err)
	}
	writer, err := NewWriter(file, compression, header)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	writer.file = file
	return writer, nil
}

// NewWriter writes the file preamble and header to w. Closing the
// Writer does not close w.
func NewWriter(w io.Writer, compression Compression, header Header) (*Writer, error) {
	buffer := bufio.NewWriter(w)
	if _, err := buffer.Write(Magic[:]); err != nil {
		return nil, fmt.Errorf("writing trajectory magic: %w", err)
	}
	if err := buffer.WriteByte(byte(compression)); err != nil {
		return nil, fmt.Errorf("writing trajectory compression: %w", err)
	}

	var compressor io.WriteCloser
	switch compression {
	case CompressionNone:
		compressor = nopWriteCloser{buffer}
	case CompressionLZ4:
		compressor = lz4.NewWriter(buffer)
	case CompressionZstd:
		encoder, err := zstd.NewWriter(buffer, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		compressor = encoder
	default:
		return nil, fmt.Errorf("unsupported trajectory compression: %s", compression)
	}

	writer := &Writer{
		buffer:     buffer,
		compressor: compressor,
		encoder:    codec.NewEncoder(compressor),
	}
	if err := writer.encoder.Encode(header); err != nil {
		return nil, fmt.Errorf("writing trajectory header: %w", err)
	}
	return writer, nil
}

// WriteStep appends step.
func (w *Writer) WriteStep(step Step) error {
	if err := w.encoder.Encode(step); err != nil {
		return fmt.Errorf("writing trajectory step %d: %w", step.Index, err)
	}
	w.steps++
	return nil
}

// Steps returns the number of steps written.
func (w *Writer) Steps() int { return w.steps }

// Close flushes the stream and closes the file opened by Create.
func (w *Writer) Close() error {
	var errs []error
	if err := w.compressor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing trajectory compressor: %w", err))
	}
	if err := w.buffer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flushing trajectory: %w", err))
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing trajectory file: %w", err))
		}
	}
	return errors.Join(errs...)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
