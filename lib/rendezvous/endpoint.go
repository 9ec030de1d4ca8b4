// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"encoding/base64"
	"path/filepath"
	"strconv"

	"github.com/zeebo/blake3"
)

// MaxNameLength is the usable length of a sockaddr_un path, excluding
// the leading abstract-namespace NUL or the trailing path NUL.
const MaxNameLength = 107

// aliasDomainKey separates function-name aliases from every other
// BLAKE3 use. Changing it renames every aliased worker.
var aliasDomainKey = [32]byte{
	'p', 'a', 's', 's', 'g', 'y', 'm', '.', 'f', 'u', 'n', 'c', 't', 'i', 'o', 'n',
	'.', 'a', 'l', 'i', 'a', 's', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Alias returns function if the client address built from benchmark,
// function and instance fits in MaxNameLength, and otherwise a short
// deterministic alias: the base64url encoding (unpadded) of the keyed
// BLAKE3 digest of function. The alias is 43 characters.
func Alias(benchmark, function string, instance int) string {
	budget := MaxNameLength - len(benchmark) - len(strconv.Itoa(instance)) - 2
	if len(function) <= budget {
		return function
	}

	hasher, err := blake3.NewKeyed(aliasDomainKey[:])
	if err != nil {
		panic("rendezvous: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(function))
	return base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
}

// Endpoint names one session's side of a rendezvous.
type Endpoint struct {
	Benchmark string
	Function  string
	Alias     string
	Instance  int

	// SocketDir, when set, places addresses on the filesystem under it
	// instead of in the abstract namespace.
	SocketDir string
}

func (e Endpoint) address(name string) string {
	if e.SocketDir == "" {
		return "@" + name
	}
	return filepath.Join(e.SocketDir, name)
}

// Key is the "{benchmark}:{alias}" name shared by every session of
// one worker.
func (e Endpoint) Key() string {
	return e.Benchmark + ":" + e.Alias
}

// ClientAddress is the address this session binds.
func (e Endpoint) ClientAddress() string {
	return e.address(e.Key() + "_" + strconv.Itoa(e.Instance))
}

// WorkerAddress is the address the worker listens on.
func (e Endpoint) WorkerAddress() string {
	return e.address(e.Key() + ":backend")
}

// WorkerDir is the worker's directory under root. Creating it is the
// right to launch the worker.
func (e Endpoint) WorkerDir(root string) string {
	return filepath.Join(root, e.Key())
}
