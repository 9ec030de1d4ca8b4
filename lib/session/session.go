// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/passgym/lib/benchmark"
	"github.com/bureau-foundation/passgym/lib/clock"
	"github.com/bureau-foundation/passgym/lib/metrics"
	"github.com/bureau-foundation/passgym/lib/pass"
	"github.com/bureau-foundation/passgym/lib/rendezvous"
	"github.com/bureau-foundation/passgym/lib/reward"
	"github.com/bureau-foundation/passgym/lib/trajectory"
	"github.com/bureau-foundation/passgym/lib/wire"
)

var (
	// ErrTerminal is returned by Step once the episode is over.
	ErrTerminal = errors.New("session is terminal")

	// ErrEmbeddingLength is returned when an embedding's length
	// differs from the baseline embedding's. The session becomes
	// unusable.
	ErrEmbeddingLength = errors.New("embedding length changed within session")
)

// State is the lifecycle state of a Session.
type State int

const (
	StateInit State = iota
	StateReady
	StateStepping
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StateStepping:
		return "stepping"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Rendezvouser connects a session to the worker for its benchmark.
// *rendezvous.Manager implements it.
type Rendezvouser interface {
	Rendezvous(ctx context.Context, params benchmark.Params, sessionID string) (rendezvous.Result, error)
}

// Embedder computes observation vectors from raw worker features.
// *embedding.Pipeline implements it.
type Embedder interface {
	Compute(raw []int32, properties pass.Properties) ([]float64, error)
}

// Config holds the process-scoped collaborators shared by sessions.
type Config struct {
	Registry   *pass.Registry
	Embedder   Embedder
	Rendezvous Rendezvouser

	// Reward builds the reward strategy for each new session. Nil
	// yields zero rewards.
	Reward func() reward.Strategy

	// StrategyName is recorded in trajectory headers.
	StrategyName string

	// DynamicActions recomputes the legal action space after every
	// accepted step; an empty space ends the episode.
	DynamicActions bool

	// StepTimeout bounds each exchange with the worker. Zero relies
	// on the caller's context alone.
	StepTimeout time.Duration

	// TrajectoryDir, when set, records each episode there.
	TrajectoryDir string
	Compression   trajectory.Compression

	Metrics *metrics.Metrics
	Clock   clock.Clock
	Logger  *slog.Logger
}

// StepResult is the outcome of one Step.
type StepResult struct {
	Observation Observation
	Reward      float64

	// Done marks the end of the episode.
	Done bool

	// InvalidSequence is set when the batch was rejected by the
	// validator. Observation is then unchanged.
	InvalidSequence bool

	// ActionSpace is the space the next action is resolved against.
	ActionSpace pass.ActionSpace
}

// Session is one episode.
type Session struct {
	id       uuid.UUID
	config   Config
	conn     *wire.Conn
	endpoint rendezvous.Endpoint
	strategy reward.Strategy
	recorder *trajectory.Writer
	clock    clock.Clock
	logger   *slog.Logger

	state State
	fatal error

	logical    []string
	wirePasses []string
	properties pass.Properties
	space      pass.ActionSpace

	baseline Observation
	initial  Observation
	current  Observation

	steps  int
	closed bool
}

// New performs rendezvous for params, captures the baseline and the
// initial observation, and returns a session in StateReady.
func New(ctx context.Context, config Config, params benchmark.Params) (*Session, error) {
	if config.Registry == nil || config.Embedder == nil || config.Rendezvous == nil {
		return nil, errors.New("session config requires a registry, an embedder and a rendezvous")
	}

	s := &Session{
		id:     uuid.New(),
		config: config,
		clock:  config.Clock,
		logger: config.Logger,
		state:  StateInit,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if config.Reward != nil {
		s.strategy = config.Reward()
	}

	result, err := config.Rendezvous.Rendezvous(ctx, params, s.id.String())
	if err != nil {
		return nil, fmt.Errorf("rendezvous: %w", err)
	}
	s.conn = result.Conn
	s.endpoint = result.Endpoint
	s.logger = s.logger.With(
		"session", s.id.String(),
		"benchmark", s.endpoint.Benchmark,
		"function", s.endpoint.Function,
		"instance", s.endpoint.Instance,
	)

	if err := s.start(ctx); err != nil {
		s.conn.Close()
		return nil, err
	}
	config.Metrics.SessionOpened()
	s.logger.Info("session ready", "baseline_size", s.baseline.Size, "initial_size", s.initial.Size)
	return s, nil
}

func (s *Session) start(ctx context.Context) error {
	registry := s.config.Registry
	s.properties = registry.InitialProperties()

	telemetry, err := s.exchange(ctx, wire.BaselineRequest())
	if err != nil {
		return fmt.Errorf("capturing baseline: %w", err)
	}
	if s.baseline, err = s.observation(telemetry, nil, s.properties, 0); err != nil {
		return fmt.Errorf("capturing baseline: %w", err)
	}

	telemetry, err = s.exchange(ctx, wire.EmptyRequest())
	if err != nil {
		return fmt.Errorf("capturing initial observation: %w", err)
	}
	if s.initial, err = s.observation(telemetry, nil, s.properties, len(s.baseline.Embedding)); err != nil {
		return fmt.Errorf("capturing initial observation: %w", err)
	}

	s.current = s.initial
	s.space = s.initialSpace()
	if s.strategy != nil {
		s.strategy.Reset(sample(s.initial, s.baseline))
	}
	if err := s.openTrajectory(); err != nil {
		return err
	}
	s.state = StateReady
	return nil
}

func (s *Session) initialSpace() pass.ActionSpace {
	if s.config.DynamicActions {
		return s.config.Registry.LegalSpace(s.properties)
	}
	return s.config.Registry.ActionSpace()
}

// exchange runs one request/reply with the worker under the step
// timeout.
func (s *Session) exchange(ctx context.Context, request []byte) (wire.Telemetry, error) {
	if s.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.StepTimeout)
		defer cancel()
	}
	start := s.clock.Now()
	telemetry, err := s.conn.RoundTrip(ctx, request)
	s.config.Metrics.ObserveRoundTrip(clock.Since(s.clock, start))
	return telemetry, err
}

// observation builds an Observation from worker telemetry. wantLength
// is the required embedding length, or 0 to accept any.
func (s *Session) observation(telemetry wire.Telemetry, passes []string, properties pass.Properties, wantLength int) (Observation, error) {
	vector, err := s.config.Embedder.Compute(telemetry.Embedding, properties)
	if err != nil {
		return Observation{}, fmt.Errorf("computing embedding: %w", err)
	}
	if wantLength != 0 && len(vector) != wantLength {
		return Observation{}, fmt.Errorf("%w: got %d values, baseline has %d", ErrEmbeddingLength, len(vector), wantLength)
	}
	return Observation{
		Size:           telemetry.Size,
		RuntimeSec:     telemetry.RuntimeSec,
		RuntimePercent: telemetry.RuntimePercent,
		Embedding:      vector,
		Passes:         slices.Clone(passes),
		Properties:     properties,
	}, nil
}

// Step applies one agent action. ref is resolved against the action
// space returned by the previous Step (or by ActionSpace before the
// first one).
//
// Unknown passes fail the step with an error wrapping
// pass.ErrUnknownAction and leave the session unchanged. A batch the
// validator rejects is rolled back as a whole and reported through
// StepResult.InvalidSequence. Worker failures are returned as errors
// and end the session.
func (s *Session) Step(ctx context.Context, ref pass.Ref) (StepResult, error) {
	if s.fatal != nil {
		return StepResult{}, fmt.Errorf("%w: %w", ErrTerminal, s.fatal)
	}
	if s.state == StateInit || s.closed {
		return StepResult{}, ErrTerminal
	}

	snapshot := s.space
	text, err := ref.Resolve(snapshot)
	if err != nil {
		s.config.Metrics.Step(metrics.OutcomeError)
		return StepResult{}, err
	}
	actions := pass.Decode(text)

	if len(actions) > 0 && actions[0].Kind == pass.KindReset {
		return s.reset(actions), nil
	}
	if s.state == StateTerminal {
		return StepResult{}, ErrTerminal
	}
	return s.apply(ctx, actions)
}

func (s *Session) reset(actions []pass.Action) StepResult {
	s.logical = nil
	s.wirePasses = nil
	s.properties = s.config.Registry.InitialProperties()
	s.current = s.initial
	s.space = s.initialSpace()
	s.state = StateReady

	// The reset ends the episode. Its reward is the step back to the
	// initial observation, so an episode's rewards still sum to the
	// change between its first and last observation.
	result := StepResult{Observation: s.initial.Clone(), Done: true, ActionSpace: s.space}
	if s.strategy != nil {
		result.Reward = s.strategy.Update(sample(s.initial, s.baseline))
		s.config.Metrics.ObserveReward(result.Reward)
		s.strategy.Reset(sample(s.initial, s.baseline))
	}
	s.config.Metrics.Step(metrics.OutcomeReset)
	s.logger.Debug("session reset", "reward", result.Reward)

	s.record(actions, nil, result, 0)
	return result
}

func (s *Session) apply(ctx context.Context, actions []pass.Action) (StepResult, error) {
	start := s.clock.Now()
	registry := s.config.Registry
	validator := registry.Validator()
	category := registry.Category()

	logical := slices.Clone(s.logical)
	wirePasses := slices.Clone(s.wirePasses)
	applied := 0

	for _, action := range actions {
		if action.Kind != pass.KindApply {
			continue
		}
		if err := registry.Check(action.Pass); err != nil {
			s.config.Metrics.Step(metrics.OutcomeError)
			return StepResult{}, err
		}

		before := validator.Properties(logical, category)
		logical = append(logical, action.Pass)
		if err := validator.ValidateSequence(logical, category); err != nil {
			return s.invalid(actions, action.Pass, err), nil
		}
		wirePasses = append(wirePasses, pass.Translate(action.Pass, validator.InLoop(before))...)
		applied++
	}

	if applied == 0 {
		s.config.Metrics.Step(metrics.OutcomeNoOp)
		result := StepResult{Observation: s.current.Clone(), ActionSpace: s.space}
		s.record(actions, nil, result, clock.Since(s.clock, start))
		return result, nil
	}

	telemetry, err := s.exchange(ctx, wire.ListRequest(wirePasses))
	if err != nil {
		return StepResult{}, s.fail(fmt.Errorf("evaluating pass list: %w", err))
	}
	properties := validator.Properties(logical, category)
	observation, err := s.observation(telemetry, logical, properties, len(s.baseline.Embedding))
	if err != nil {
		return StepResult{}, s.fail(err)
	}

	s.logical = logical
	s.wirePasses = wirePasses
	s.properties = properties
	s.current = observation
	s.state = StateStepping
	s.steps++

	result := StepResult{Observation: observation.Clone()}
	if s.strategy != nil {
		result.Reward = s.strategy.Update(sample(observation, s.baseline))
		s.config.Metrics.ObserveReward(result.Reward)
	}

	outcome := metrics.OutcomeApplied
	if s.config.DynamicActions {
		s.space = registry.LegalSpace(properties)
		if s.space.Len() == 0 {
			result.Done = true
			s.state = StateTerminal
			outcome = metrics.OutcomeExhaust
			s.logger.Info("no legal actions left", "passes", len(s.logical))
		}
	}
	result.ActionSpace = s.space
	s.config.Metrics.Step(outcome)
	s.record(actions, wirePasses, result, clock.Since(s.clock, start))
	return result, nil
}

// invalid ends the episode after the validator rejected a batch. The
// pass lists keep their state from before the batch.
func (s *Session) invalid(actions []pass.Action, name string, err error) StepResult {
	s.state = StateTerminal
	s.config.Metrics.Step(metrics.OutcomeInvalid)
	s.logger.Info("invalid pass sequence", "pass", name, "error", err)

	result := StepResult{
		Observation:     s.current.Clone(),
		Done:            true,
		InvalidSequence: true,
		ActionSpace:     s.space,
	}
	s.record(actions, nil, result, 0)
	return result
}

// fail makes err permanent for the session.
func (s *Session) fail(err error) error {
	s.fatal = err
	s.state = StateTerminal
	s.config.Metrics.Step(metrics.OutcomeError)
	s.logger.Error("session failed", "error", err)
	return err
}

// ID returns the session's episode id.
func (s *Session) ID() uuid.UUID { return s.id }

// Endpoint returns the rendezvous endpoint the session bound.
func (s *Session) Endpoint() rendezvous.Endpoint { return s.endpoint }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Baseline returns the observation of the worker's default pass list.
func (s *Session) Baseline() Observation { return s.baseline.Clone() }

// Initial returns the observation of the empty pass list, captured at
// creation and restored by reset.
func (s *Session) Initial() Observation { return s.initial.Clone() }

// Observation returns the current observation.
func (s *Session) Observation() Observation { return s.current.Clone() }

// ActionSpace returns the space the next action is resolved against.
func (s *Session) ActionSpace() pass.ActionSpace { return s.space }

// Passes returns the logical pass list.
func (s *Session) Passes() []string { return slices.Clone(s.logical) }

// WirePasses returns the pass list as last sent to the worker.
func (s *Session) WirePasses() []string { return slices.Clone(s.wirePasses) }

// Close releases the session's socket and finishes its trajectory. The
// worker keeps running for other sessions.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.state = StateTerminal
	s.config.Metrics.SessionClosed()

	var errs []error
	if err := s.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing worker connection: %w", err))
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("session closed", "steps", s.steps)
	return errors.Join(errs...)
}

func (s *Session) openTrajectory() error {
	if s.config.TrajectoryDir == "" {
		return nil
	}
	header := trajectory.Header{
		Episode:   s.id,
		Benchmark: s.endpoint.Benchmark,
		Function:  s.endpoint.Function,
		Instance:  s.endpoint.Instance,
		Strategy:  s.config.StrategyName,
		Started:   s.clock.Now(),
		Baseline:  s.baseline.record(),
		Initial:   s.initial.record(),
	}
	path := filepath.Join(s.config.TrajectoryDir, trajectory.FileName(s.id))
	recorder, err := trajectory.Create(path, s.config.Compression, header)
	if err != nil {
		return fmt.Errorf("recording trajectory: %w", err)
	}
	s.recorder = recorder
	return nil
}

// record appends a step to the trajectory. Recording failures are
// logged and stop the recording; they never fail the step.
func (s *Session) record(actions []pass.Action, wirePasses []string, result StepResult, elapsed time.Duration) {
	if s.recorder == nil {
		return
	}
	texts := make([]string, len(actions))
	for i, action := range actions {
		texts[i] = action.String()
	}
	step := trajectory.Step{
		Index:       s.recorder.Steps(),
		Actions:     texts,
		WirePasses:  wirePasses,
		Observation: result.Observation.record(),
		Reward:      result.Reward,
		Done:        result.Done,
		Invalid:     result.InvalidSequence,
		Elapsed:     elapsed,
	}
	if err := s.recorder.WriteStep(step); err != nil {
		s.logger.Warn("trajectory recording stopped", "error", err)
		s.recorder.Close()
		s.recorder = nil
	}
}
