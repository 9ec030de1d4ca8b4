// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/passgym/lib/codec"
)

// RecordFile is the name of the worker record inside a worker
// directory.
const RecordFile = "worker.cbor"

// Record describes the worker launched into a worker directory.
// Sessions that attach to an existing worker read it for diagnostics.
type Record struct {
	PID          int       `cbor:"1,keyasint"`
	Args         []string  `cbor:"2,keyasint"`
	Instance     int       `cbor:"3,keyasint"`
	Binary       string    `cbor:"4,keyasint"`
	BinaryDigest string    `cbor:"5,keyasint"`
	Started      time.Time `cbor:"6,keyasint"`
	Session      string    `cbor:"7,keyasint,omitempty"`
}

// WriteRecord atomically writes record into dir. The record is written
// to a temporary file, synced and renamed into place, so attaching
// sessions never read a partial record.
func WriteRecord(dir string, record Record) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling worker record: %w", err)
	}

	path := filepath.Join(dir, RecordFile)
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary worker record: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary worker record: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary worker record: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary worker record: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming worker record into place: %w", err)
	}

	if directory, err := os.Open(dir); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// ReadRecord reads the worker record in dir. When no record has been
// written yet the error wraps os.ErrNotExist.
func ReadRecord(dir string) (Record, error) {
	path := filepath.Join(dir, RecordFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := codec.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("parsing worker record %s: %w", path, err)
	}
	return record, nil
}

// binaryDomainKey separates worker binary digests from other BLAKE3
// uses.
var binaryDomainKey = [32]byte{
	'p', 'a', 's', 's', 'g', 'y', 'm', '.', 'w', 'o', 'r', 'k', 'e', 'r', '.', 'b',
	'i', 'n', 'a', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// DigestFile returns the hex keyed BLAKE3 digest of the file at path,
// streamed so memory use does not depend on the binary's size.
func DigestFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher, err := blake3.NewKeyed(binaryDomainKey[:])
	if err != nil {
		panic("rendezvous: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
