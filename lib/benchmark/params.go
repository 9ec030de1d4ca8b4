// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds the parsed form of a benchmark descriptor and
// derives the worker command line from it.
//
// Descriptor files are parsed elsewhere; passgym only consumes the
// resulting key → values mapping. Keys that carry a single value use
// the first element; run strings may repeat.
package benchmark

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Well-known descriptor keys.
const (
	KeyBenchName       = "bench_name"
	KeyFunName         = "fun_name"
	KeyBuildString     = "build_string"
	KeyRunString       = "run_string"
	KeyEmbeddingLength = "embedding_length"
	KeyBenchRepeats    = "bench_repeats"
	KeyPluginPath      = "plugin_path"
	KeySourceDir       = "source_dir"
)

// ErrMissingKey is returned when a required descriptor key is absent or
// empty.
var ErrMissingKey = errors.New("benchmark descriptor key missing")

// Params is a parsed benchmark descriptor.
type Params map[string][]string

// ParseQuery builds Params from a URL query string such as
// "bench_name=qsort&fun_name=partition&run_string=1000". This is the
// form in which descriptors travel between processes.
func ParseQuery(query string) (Params, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("parsing benchmark query: %w", err)
	}
	return Params(values), nil
}

// Joined returns all values of key joined by a single space, or "" if
// the key is absent.
func (p Params) Joined(key string) string {
	return strings.Join(p[key], " ")
}

// First returns the first value of key, or "" if the key is absent.
func (p Params) First(key string) string {
	if values := p[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// BenchName returns the benchmark name.
func (p Params) BenchName() string { return p.Joined(KeyBenchName) }

// FunName returns the name of the function being optimized.
func (p Params) FunName() string { return p.Joined(KeyFunName) }

// Validate checks that the descriptor names a benchmark and a function.
func (p Params) Validate() error {
	var errs []error
	if p.BenchName() == "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingKey, KeyBenchName))
	}
	if p.FunName() == "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingKey, KeyFunName))
	}
	return errors.Join(errs...)
}

// WorkerArgs builds the worker argument list (without the binary path)
// from the non-empty descriptor values. alias is the socket-safe
// function name and instance the launching session's instance id.
//
// The build string's "lstdc" is rewritten to "lstdc++" because '+' does
// not survive the descriptor's query encoding.
func (p Params) WorkerArgs(alias string, instance int) []string {
	var args []string

	if length := p.First(KeyEmbeddingLength); length != "" {
		args = append(args, "-e", length)
	}
	if build := p.Joined(KeyBuildString); build != "" {
		args = append(args, "-b"+fixupBuildString(build))
	}
	for _, run := range p[KeyRunString] {
		if run != "" {
			args = append(args, "-r"+run)
		}
	}
	if plugin := strings.Join(p[KeyPluginPath], ""); plugin != "" {
		args = append(args, "-p"+plugin)
	}
	args = append(args, "-n"+p.BenchName())
	if alias != "" {
		args = append(args, "-f"+alias)
	}
	args = append(args, fmt.Sprintf("-i%d", instance))
	if repeats := p.First(KeyBenchRepeats); repeats != "" {
		args = append(args, "--repeats", repeats)
	}
	return args
}

func fixupBuildString(build string) string {
	if strings.Contains(build, "lstdc++") {
		return build
	}
	return strings.ReplaceAll(build, "lstdc", "lstdc++")
}
