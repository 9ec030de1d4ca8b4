// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// passgym-mock-worker is a stand-in for the compiler worker. It takes
// the worker's command line (the arguments rendezvous launches it
// with), binds the worker address for the benchmark and function
// alias, and answers passgym sessions with deterministic telemetry.
//
// Point worker.binary in passgym.yaml at this binary to exercise the
// full rendezvous path without a compiler:
//
//	worker:
//	  binary: /usr/local/bin/passgym-mock-worker
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/passgym/lib/mockworker"
	"github.com/bureau-foundation/passgym/lib/process"
	"github.com/bureau-foundation/passgym/lib/rendezvous"
	"github.com/bureau-foundation/passgym/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	benchmark string
	alias     string
	function  string
	instance  int

	embeddingLength string
	build           string
	runs            []string
	plugin          string
	repeats         string

	socketDir string
	maxEdges  int
	latency   time.Duration
	noProbe   bool
	logLevel  string
}

func parse(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("passgym-mock-worker", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.benchmark, "benchmark", "n", "", "benchmark name")
	flagSet.StringVarP(&opts.alias, "alias", "f", "", "function alias used in the worker address")
	flagSet.StringVar(&opts.function, "function", "", "function name for the telemetry model (default: the alias)")
	flagSet.IntVarP(&opts.instance, "instance", "i", 0, "instance of the launching session")
	flagSet.StringVarP(&opts.embeddingLength, "embedding-length", "e", "", "accepted for compatibility")
	flagSet.StringVarP(&opts.build, "build", "b", "", "accepted for compatibility")
	flagSet.StringArrayVarP(&opts.runs, "run", "r", nil, "accepted for compatibility")
	flagSet.StringVarP(&opts.plugin, "plugin", "p", "", "accepted for compatibility")
	flagSet.StringVar(&opts.repeats, "repeats", "", "accepted for compatibility")
	flagSet.StringVar(&opts.socketDir, "socket-dir", "", "bind under this directory instead of the abstract namespace")
	flagSet.IntVar(&opts.maxEdges, "max-edges", mockworker.DefaultMaxEdges, "edge pairs per graph")
	flagSet.DurationVar(&opts.latency, "latency", 0, "delay before each reply")
	flagSet.BoolVar(&opts.noProbe, "no-probe", false, "do not send a probe before each reply")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil, nil
		}
		return nil, process.Usage("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil, nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, process.Usage("unexpected argument: %s", rest[0])
	}
	if opts.benchmark == "" || opts.alias == "" {
		return nil, process.Usage("-n (benchmark) and -f (function alias) are required")
	}
	if opts.function == "" {
		opts.function = opts.alias
	}
	return &opts, nil
}

func run(args []string) error {
	// Handle --version before flag parsing to match other passgym binaries.
	if len(args) > 0 && args[0] == "--version" {
		version.Print("passgym-mock-worker")
		return nil
	}

	opts, err := parse(args)
	if err != nil || opts == nil {
		return err
	}
	level, err := process.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := process.NewLogger(level).With("instance", opts.instance)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoint := rendezvous.Endpoint{
		Benchmark: opts.benchmark,
		Alias:     opts.alias,
		SocketDir: opts.socketDir,
	}
	err = mockworker.Serve(ctx, mockworker.Options{
		Address: endpoint.WorkerAddress(),
		Model: mockworker.Model{
			Benchmark: opts.benchmark,
			Function:  opts.function,
			MaxEdges:  opts.maxEdges,
		},
		Latency: opts.latency,
		Probe:   !opts.noProbe,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("serving %s: %w", endpoint.WorkerAddress(), err)
	}
	logger.Info("mock worker stopped")
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `passgym-mock-worker: deterministic stand-in for the compiler worker.

Binds the worker address for -n and -f and answers baseline (0x00),
unoptimized ('?') and pass-list requests.

Usage:
  passgym-mock-worker -n BENCHMARK -f ALIAS [-i INSTANCE] [flags]

Flags:
%s`, flagSet.FlagUsages())
}
