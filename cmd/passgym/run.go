// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/passgym/lib/benchmark"
	"github.com/bureau-foundation/passgym/lib/pass"
	"github.com/bureau-foundation/passgym/lib/process"
	"github.com/bureau-foundation/passgym/lib/session"
)

type runOptions struct {
	configPath  string
	benchmarks  []string
	actions     []string
	episodes    int
	parallel    int
	metricsAddr string
	record      bool
	logLevel    string
}

func parseRunOptions(args []string, stdout io.Writer) (*runOptions, error) {
	var opts runOptions
	flagSet := pflag.NewFlagSet("passgym run", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "passgym.yaml (default: $PASSGYM_CONFIG)")
	flagSet.StringArrayVar(&opts.benchmarks, "benchmark", nil, "benchmark descriptor query (repeatable)")
	flagSet.StringArrayVar(&opts.actions, "pass", nil, "action to apply: a pass name, #INDEX into the action space, or several joined with ';' (repeatable)")
	flagSet.IntVar(&opts.episodes, "episodes", 1, "episodes per benchmark")
	flagSet.IntVar(&opts.parallel, "parallel", 1, "episodes run concurrently")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.address)")
	flagSet.BoolVar(&opts.record, "record", false, "record trajectories (overrides trajectory.enabled)")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printRunHelp(stdout, flagSet)
			return nil, nil
		}
		return nil, process.Usage("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printRunHelp(stdout, flagSet)
		return nil, nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, process.Usage("unexpected argument: %s", rest[0])
	}
	if len(opts.benchmarks) == 0 {
		return nil, process.Usage("at least one --benchmark is required")
	}
	if opts.episodes < 1 || opts.parallel < 1 {
		return nil, process.Usage("--episodes and --parallel must be at least 1")
	}
	return &opts, nil
}

func printRunHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Run episodes against the compiler worker.

Each --benchmark is a query string of benchmark descriptor keys, for
example 'bench_name=qsort&fun_name=partition&build_string=-O2&run_string=1000'.
Every episode applies the --pass actions in order and stops early when
the session reports done.

Usage:
  passgym run --benchmark QUERY [--pass ACTION]... [flags]

Flags:
%s`, flagSet.FlagUsages())
}

func runCommand(args []string, stdout io.Writer) error {
	opts, err := parseRunOptions(args, stdout)
	if err != nil || opts == nil {
		return err
	}
	level, err := process.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := process.NewLogger(level)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Address = opts.metricsAddr
	}
	if opts.record {
		cfg.Trajectory.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	jobs, err := planEpisodes(opts.benchmarks, opts.episodes)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.Address != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Address, env, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	results, err := env.runEpisodes(ctx, jobs, opts.actions, opts.parallel)
	if renderErr := renderSummary(stdout, results); renderErr != nil {
		err = errors.Join(err, fmt.Errorf("rendering summary: %w", renderErr))
	}
	return err
}

// planEpisodes expands the benchmark queries into one job per episode.
func planEpisodes(queries []string, episodes int) ([]benchmark.Params, error) {
	var jobs []benchmark.Params
	for _, query := range queries {
		params, err := benchmark.ParseQuery(query)
		if err != nil {
			return nil, process.Usage("--benchmark %q: %v", query, err)
		}
		if err := params.Validate(); err != nil {
			return nil, process.Usage("--benchmark %q: %v", query, err)
		}
		for range episodes {
			jobs = append(jobs, params)
		}
	}
	return jobs, nil
}

// parseAction turns one --pass value into a session reference.
// "#N" selects by index; ';' separates the actions of one batch.
func parseAction(text string) (pass.Ref, error) {
	if index, ok := strings.CutPrefix(text, "#"); ok {
		n, err := strconv.Atoi(index)
		if err != nil {
			return pass.Ref{}, process.Usage("invalid action index %q", text)
		}
		return pass.ByIndex(n), nil
	}
	return pass.ByName(strings.ReplaceAll(text, ";", "\n")), nil
}

// episodeResult summarizes one episode.
type episodeResult struct {
	Episode   uuid.UUID
	Benchmark string
	Function  string
	Instance  int

	Steps   int
	Return  float64
	Done    bool
	Invalid bool

	BaselineSize int64
	InitialSize  int64
	FinalSize    int64
	Err          error
}

// runEpisodes runs jobs with at most parallel episodes in flight. A
// failed episode does not stop the others; the returned error joins
// every episode error.
func (e *environment) runEpisodes(ctx context.Context, jobs []benchmark.Params, actions []string, parallel int) ([]episodeResult, error) {
	refs := make([]pass.Ref, len(actions))
	for i, text := range actions {
		ref, err := parseAction(text)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}

	results := make([]episodeResult, len(jobs))
	var group errgroup.Group
	group.SetLimit(parallel)
	for i, params := range jobs {
		group.Go(func() error {
			results[i] = e.runEpisode(ctx, params, refs)
			return nil
		})
	}
	var errs []error
	if err := group.Wait(); err != nil {
		errs = append(errs, err)
	}
	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", result.Benchmark, result.Function, result.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (e *environment) runEpisode(ctx context.Context, params benchmark.Params, refs []pass.Ref) episodeResult {
	result := episodeResult{Benchmark: params.BenchName(), Function: params.FunName()}

	s, err := session.New(ctx, e.session, params)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() {
		if err := s.Close(); err != nil && result.Err == nil {
			result.Err = fmt.Errorf("closing session: %w", err)
		}
	}()

	result.Episode = s.ID()
	result.Instance = s.Endpoint().Instance
	result.BaselineSize = s.Baseline().Size
	result.InitialSize = s.Initial().Size
	result.FinalSize = result.InitialSize

	for _, ref := range refs {
		step, err := s.Step(ctx, ref)
		if err != nil {
			result.Err = fmt.Errorf("step %d (%s): %w", result.Steps+1, ref, err)
			return result
		}
		result.Steps++
		result.Return += step.Reward
		result.FinalSize = step.Observation.Size
		if step.InvalidSequence {
			result.Invalid = true
		}
		if step.Done {
			result.Done = true
			break
		}
	}
	return result
}

// serveMetrics exposes the Prometheus registry at /metrics and returns
// a function that shuts the server down.
func serveMetrics(address string, env *environment, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", env.metrics.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("shutting down metrics server", "error", err)
		}
	}, nil
}

// renderSummary prints one row per episode.
func renderSummary(w io.Writer, results []episodeResult) error {
	s := newStyles(w)
	summary := newTable(s, "episode", "function", "inst", "steps", "return", "baseline", "initial", "final", "status")
	for _, column := range []int{2, 3, 4, 5, 6, 7} {
		summary.right[column] = true
	}

	for _, result := range results {
		status, statusStyle := "ok", s.good
		switch {
		case result.Err != nil:
			status, statusStyle = "error", s.bad
		case result.Invalid:
			status, statusStyle = "invalid", s.bad
		case result.Done:
			status, statusStyle = "done", s.plain
		}
		episode := "-"
		if result.Episode != uuid.Nil {
			episode = result.Episode.String()[:8]
		}
		summary.add(
			cell{text: episode, style: s.dim},
			cell{text: result.Benchmark + "/" + result.Function, style: s.plain},
			cell{text: strconv.Itoa(result.Instance), style: s.plain},
			cell{text: strconv.Itoa(result.Steps), style: s.plain},
			cell{text: fmt.Sprintf("%+.4f", result.Return), style: s.plain},
			cell{text: strconv.FormatInt(result.BaselineSize, 10), style: s.plain},
			cell{text: strconv.FormatInt(result.InitialSize, 10), style: s.plain},
			cell{text: strconv.FormatInt(result.FinalSize, 10), style: s.plain},
			cell{text: status, style: statusStyle},
		)
	}
	return summary.render(w)
}
