// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"

	"github.com/bureau-foundation/passgym/lib/benchmark"
	"github.com/bureau-foundation/passgym/lib/embedding"
	"github.com/bureau-foundation/passgym/lib/pass"
	"github.com/bureau-foundation/passgym/lib/pass/catalog"
	"github.com/bureau-foundation/passgym/lib/rendezvous"
	"github.com/bureau-foundation/passgym/lib/testutil"
	"github.com/bureau-foundation/passgym/lib/wire"
	"github.com/bureau-foundation/passgym/lib/wire/wiretest"
)

const loopCatalog = `{
  "properties": ["cfg", "ssa", "loops"],
  "initial": ["cfg"],
  "passes": [
    {"name": "into_ssa", "category": 2, "requires": ["cfg"], "provides": ["ssa"]},
    {"name": "fix_loops", "category": 2, "requires": ["ssa"], "provides": ["loops"], "enters_loop": true},
    {"name": "unroll", "category": 2, "loop_only": true},
    {"name": "loopdone", "category": 2, "exits_loop": true, "destroys": ["loops"]},
    {"name": "dce", "category": 2, "requires": ["ssa"], "outside_loop": true},
    {"name": "expand", "category": 3},
  ],
}`

var testParams = benchmark.Params{
	benchmark.KeyBenchName: {"qsort"},
	benchmark.KeyFunName:   {"partition"},
}

func newRegistry(t *testing.T, document string, category pass.Category) *pass.Registry {
	t.Helper()
	validator, err := catalog.Parse([]byte(document))
	if err != nil {
		t.Fatalf("parsing catalog: %v", err)
	}
	registry, err := pass.NewRegistry(validator, category, "test")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

// rawFeatures returns a degenerate raw embedding whose autophase
// counters all equal value.
func rawFeatures(value int32) []int32 {
	raw := make([]int32, embedding.AutophaseLength+1)
	for i := range embedding.AutophaseLength {
		raw[i] = value
	}
	return raw
}

// compilerModel is the fake worker's behaviour: the default pass list
// gives size 1000 and 2.0s, the empty list 1100 and 2.2s, and every
// pass on the wire shrinks the function by 100 and 0.2s.
func compilerModel(_ context.Context, request wire.Request) (wire.Telemetry, error) {
	switch request.Kind {
	case wire.RequestBaseline:
		return wire.Telemetry{Embedding: rawFeatures(1), RuntimeSec: 2.0, RuntimePercent: 50, Size: 1000}, nil
	case wire.RequestEmpty:
		return wire.Telemetry{Embedding: rawFeatures(0), RuntimeSec: 2.2, RuntimePercent: 50, Size: 1100}, nil
	default:
		n := len(request.Passes)
		return wire.Telemetry{
			Embedding:      rawFeatures(int32(n)),
			RuntimeSec:     math.Max(0, 2.2-0.2*float64(n)),
			RuntimePercent: 50,
			Size:           max(0, 1100-100*int64(n)),
		}, nil
	}
}

// directRendezvous connects sessions straight to an in-process worker.
type directRendezvous struct {
	address string
}

func (d directRendezvous) Rendezvous(_ context.Context, params benchmark.Params, _ string) (rendezvous.Result, error) {
	local := &net.UnixAddr{Name: testutil.AbstractName("session"), Net: "unixgram"}
	remote := &net.UnixAddr{Name: d.address, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", local, remote)
	if err != nil {
		return rendezvous.Result{}, err
	}
	return rendezvous.Result{
		Conn: wire.NewConn(conn, 1),
		Endpoint: rendezvous.Endpoint{
			Benchmark: params.BenchName(),
			Function:  params.FunName(),
			Alias:     params.FunName(),
		},
	}, nil
}

type failingRendezvous struct{}

func (failingRendezvous) Rendezvous(context.Context, benchmark.Params, string) (rendezvous.Result, error) {
	return rendezvous.Result{}, errors.New("no workers today")
}

// fixture starts a fake worker and returns a config wired to it.
func fixture(t *testing.T, handler wire.Handler) (Config, *wiretest.Worker) {
	t.Helper()
	address := testutil.AbstractName("worker")
	worker := wiretest.Start(t, address, handler, wire.ServeOptions{ProbeBeforeReply: true})

	pipeline, err := embedding.NewPipeline(embedding.HashedEdges{}, 4)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return Config{
		Registry:   newRegistry(t, loopCatalog, 2),
		Embedder:   pipeline,
		Rendezvous: directRendezvous{address: address},
	}, worker
}

func openSession(t *testing.T, config Config) *Session {
	t.Helper()
	s, err := New(context.Background(), config, testParams)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func step(t *testing.T, s *Session, text string) StepResult {
	t.Helper()
	result, err := s.Step(context.Background(), pass.ByName(text))
	if err != nil {
		t.Fatalf("Step(%q): %v", text, err)
	}
	return result
}
