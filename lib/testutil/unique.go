// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer within this process.
//
//	bench := testutil.UniqueID("bench") // "bench-1", "bench-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}

// AbstractName returns "@prefix-PID-N", an abstract socket name no
// other test process will use.
func AbstractName(prefix string) string {
	return fmt.Sprintf("@%s-%d-%d", prefix, os.Getpid(), uniqueCounter.Add(1))
}

// UniqueName returns "prefix-PID-N". Use it for benchmark names whose
// derived socket names must not collide across test processes.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, os.Getpid(), uniqueCounter.Add(1))
}
