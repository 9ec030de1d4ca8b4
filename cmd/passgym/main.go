// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// passgym drives compiler-pass episodes against a worker from the
// command line.
//
//	passgym run --benchmark 'bench_name=x&fun_name=f&...' --pass dce --pass sroa
//	passgym replay FILE
//	passgym catalog [--catalog F] [--category N]
//
// run performs rendezvous, applies the given actions in order and
// prints one summary row per episode. replay renders a recorded
// trajectory. catalog lists the action space a catalog offers.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/passgym/lib/process"
	"github.com/bureau-foundation/passgym/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return process.Usage("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "--version", "version":
		version.Fprint(stdout, "passgym")
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	case "run":
		return runCommand(rest, stdout)
	case "replay":
		return replayCommand(rest, stdout)
	case "catalog":
		return catalogCommand(rest, stdout)
	default:
		return process.Usage("unknown command %q (run \"passgym help\")", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `passgym: compiler pass-ordering episodes against a compiler worker.

Usage:
  passgym run --benchmark QUERY [--pass ACTION]... [flags]
  passgym replay FILE
  passgym catalog [--catalog FILE] [--category N]
  passgym --version

Run "passgym COMMAND --help" for the flags of a command.
`)
}
