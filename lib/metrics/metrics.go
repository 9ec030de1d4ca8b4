// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus collectors for rendezvous,
// protocol and session activity.
//
// Collectors live on a private registry per Metrics value so several
// test processes or embedded environments never collide on the global
// default registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Step outcomes recorded by Step.
const (
	OutcomeApplied = "applied"
	OutcomeReset   = "reset"
	OutcomeNoOp    = "noop"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
	OutcomeExhaust = "exhausted"
)

// Metrics is the set of passgym collectors.
type Metrics struct {
	registry *prometheus.Registry

	bindConflicts   prometheus.Counter
	connectRetries  prometheus.Counter
	workersLaunched prometheus.Counter
	workersAttached prometheus.Counter
	probes          prometheus.Counter
	roundTrip       prometheus.Histogram
	steps           *prometheus.CounterVec
	reward          prometheus.Histogram
	activeSessions  prometheus.Gauge
}

// New registers a fresh set of collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		bindConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgym_bind_conflicts_total",
			Help: "Client socket binds that found the address in use",
		}),
		connectRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgym_connect_retries_total",
			Help: "Connect attempts refused because the worker was not ready",
		}),
		workersLaunched: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgym_workers_launched_total",
			Help: "Worker processes launched by this process",
		}),
		workersAttached: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgym_workers_attached_total",
			Help: "Sessions that attached to a worker launched elsewhere",
		}),
		probes: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgym_probes_discarded_total",
			Help: "Zero-length probe datagrams discarded while awaiting a reply",
		}),
		roundTrip: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "passgym_worker_round_trip_seconds",
			Help:    "Time from sending a request to decoding the worker's reply",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
		}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passgym_steps_total",
			Help: "Session steps by outcome",
		}, []string{"outcome"}),
		reward: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "passgym_step_reward",
			Help:    "Reward returned per applied step",
			Buckets: prometheus.LinearBuckets(-1, 0.25, 9),
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "passgym_active_sessions",
			Help: "Sessions currently open",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BindConflict() {
	if m != nil {
		m.bindConflicts.Inc()
	}
}

func (m *Metrics) ConnectRetry() {
	if m != nil {
		m.connectRetries.Inc()
	}
}

// WorkerAcquired records whether a session launched its worker or
// attached to an existing one.
func (m *Metrics) WorkerAcquired(launched bool) {
	if m == nil {
		return
	}
	if launched {
		m.workersLaunched.Inc()
	} else {
		m.workersAttached.Inc()
	}
}

func (m *Metrics) Probe() {
	if m != nil {
		m.probes.Inc()
	}
}

func (m *Metrics) ObserveRoundTrip(elapsed time.Duration) {
	if m != nil {
		m.roundTrip.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) Step(outcome string) {
	if m != nil {
		m.steps.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveReward(value float64) {
	if m != nil {
		m.reward.Observe(value)
	}
}

// SessionOpened and SessionClosed track the active session gauge.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.activeSessions.Dec()
	}
}
