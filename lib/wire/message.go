// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrProtocol is wrapped by every error caused by a malformed or
// undeliverable message. A session that sees it is unusable.
var ErrProtocol = errors.New("worker protocol error")

const (
	headerSize = 4

	// ProfileSize is the packed size of the profiling record.
	ProfileSize = 8 + 8 + 4

	// PaddedProfileSize is the profiling record as laid out by a C
	// compiler, with trailing alignment padding.
	PaddedProfileSize = 24

	baselineByte = 0x00
	emptyByte    = '?'
)

// BufferSize returns the receive buffer size for a worker configured
// with the given embedding length multiplier: the embedding payload is
// capped at multiplier KiB.
func BufferSize(multiplier int) int {
	return headerSize + multiplier*1024 + PaddedProfileSize
}

// Telemetry is one decoded worker reply.
type Telemetry struct {
	Embedding      []int32 `cbor:"embedding"`
	RuntimePercent float64 `cbor:"runtime_percent"`
	RuntimeSec     float64 `cbor:"runtime_sec"`
	Size           int64   `cbor:"size"`
}

// RequestKind discriminates the three request forms.
type RequestKind int

const (
	RequestBaseline RequestKind = iota
	RequestEmpty
	RequestList
)

func (k RequestKind) String() string {
	switch k {
	case RequestBaseline:
		return "baseline"
	case RequestEmpty:
		return "empty"
	case RequestList:
		return "list"
	default:
		return fmt.Sprintf("request(%d)", int(k))
	}
}

// Request is a decoded request. Passes is set for RequestList only.
type Request struct {
	Kind   RequestKind
	Passes []string
}

// BaselineRequest asks the worker to compile with its default passes.
func BaselineRequest() []byte { return []byte{baselineByte} }

// EmptyRequest asks the worker to compile with no passes.
func EmptyRequest() []byte { return []byte{emptyByte} }

// ListRequest encodes the wire pass list. An empty list is sent as
// EmptyRequest.
func ListRequest(tokens []string) []byte {
	if len(tokens) == 0 {
		return EmptyRequest()
	}
	var builder strings.Builder
	for _, token := range tokens {
		builder.WriteString(token)
		builder.WriteByte('\n')
	}
	return []byte(builder.String())
}

// ParseRequest decodes a request datagram.
func ParseRequest(data []byte) (Request, error) {
	switch {
	case len(data) == 0:
		return Request{}, fmt.Errorf("%w: empty request", ErrProtocol)
	case len(data) == 1 && data[0] == baselineByte:
		return Request{Kind: RequestBaseline}, nil
	case len(data) == 1 && data[0] == emptyByte:
		return Request{Kind: RequestEmpty}, nil
	}
	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		return Request{}, fmt.Errorf("%w: pass list not newline terminated", ErrProtocol)
	}
	return Request{Kind: RequestList, Passes: strings.Split(strings.TrimSuffix(text, "\n"), "\n")}, nil
}

// EncodeReply encodes telemetry in the padded reply layout.
func EncodeReply(telemetry Telemetry) []byte {
	payload := len(telemetry.Embedding) * 4
	data := make([]byte, headerSize+payload+PaddedProfileSize)
	binary.LittleEndian.PutUint32(data, uint32(payload))
	offset := headerSize
	for _, value := range telemetry.Embedding {
		binary.LittleEndian.PutUint32(data[offset:], uint32(value))
		offset += 4
	}
	binary.LittleEndian.PutUint64(data[offset:], math.Float64bits(telemetry.RuntimePercent))
	binary.LittleEndian.PutUint64(data[offset+8:], math.Float64bits(telemetry.RuntimeSec))
	binary.LittleEndian.PutUint32(data[offset+16:], uint32(int32(telemetry.Size)))
	return data
}

// DecodeReply decodes a reply datagram and checks the value ranges of
// the profiling record.
func DecodeReply(data []byte) (Telemetry, error) {
	if len(data) < headerSize {
		return Telemetry{}, fmt.Errorf("%w: reply of %d bytes has no length header", ErrProtocol, len(data))
	}
	length := int(int32(binary.LittleEndian.Uint32(data)))
	if length < 0 || length%4 != 0 {
		return Telemetry{}, fmt.Errorf("%w: embedding length %d is not a non-negative multiple of 4", ErrProtocol, length)
	}
	profile := data[headerSize:]
	if len(profile) < length {
		return Telemetry{}, fmt.Errorf("%w: embedding length %d exceeds reply size %d", ErrProtocol, length, len(data))
	}
	payload, profile := profile[:length], profile[length:]
	if len(profile) != ProfileSize && len(profile) != PaddedProfileSize {
		return Telemetry{}, fmt.Errorf("%w: profiling record is %d bytes, want %d or %d",
			ErrProtocol, len(profile), ProfileSize, PaddedProfileSize)
	}

	telemetry := Telemetry{
		Embedding:      make([]int32, length/4),
		RuntimePercent: math.Float64frombits(binary.LittleEndian.Uint64(profile)),
		RuntimeSec:     math.Float64frombits(binary.LittleEndian.Uint64(profile[8:])),
		Size:           int64(int32(binary.LittleEndian.Uint32(profile[16:]))),
	}
	for i := range telemetry.Embedding {
		telemetry.Embedding[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
	}

	switch {
	case telemetry.Size < 0:
		return Telemetry{}, fmt.Errorf("%w: negative size %d", ErrProtocol, telemetry.Size)
	case math.IsNaN(telemetry.RuntimeSec) || telemetry.RuntimeSec < 0:
		return Telemetry{}, fmt.Errorf("%w: runtime_sec %v out of range", ErrProtocol, telemetry.RuntimeSec)
	case math.IsNaN(telemetry.RuntimePercent) || telemetry.RuntimePercent < 0 || telemetry.RuntimePercent > 100:
		return Telemetry{}, fmt.Errorf("%w: runtime_percent %v out of range", ErrProtocol, telemetry.RuntimePercent)
	}
	return telemetry, nil
}
