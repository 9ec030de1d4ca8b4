// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/passgym/lib/config"
	"github.com/bureau-foundation/passgym/lib/embedding"
	"github.com/bureau-foundation/passgym/lib/metrics"
	"github.com/bureau-foundation/passgym/lib/pass"
	"github.com/bureau-foundation/passgym/lib/pass/catalog"
	"github.com/bureau-foundation/passgym/lib/rendezvous"
	"github.com/bureau-foundation/passgym/lib/reward"
	"github.com/bureau-foundation/passgym/lib/session"
	"github.com/bureau-foundation/passgym/lib/trajectory"
)

// environment holds the process-scoped collaborators every episode
// shares.
type environment struct {
	config  *config.Config
	metrics *metrics.Metrics
	session session.Config
}

// loadConfig reads path, or the file named by PASSGYM_CONFIG when path
// is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// graphEmbedder resolves embedding.embedder.
func graphEmbedder(name string) (embedding.GraphEmbedder, error) {
	switch name {
	case "hashed_edges":
		return embedding.HashedEdges{}, nil
	default:
		return nil, fmt.Errorf("unknown graph embedder %q", name)
	}
}

// newEnvironment wires the catalog, embedding pipeline, reward
// strategy and rendezvous manager described by cfg. cfg must already
// be validated.
func newEnvironment(cfg *config.Config, logger *slog.Logger, options ...rendezvous.Option) (*environment, error) {
	passes, err := catalog.Load(cfg.Paths.Catalog)
	if err != nil {
		return nil, err
	}
	registry, err := pass.NewRegistry(passes, pass.Category(cfg.ActionSpace.Category), cfg.ActionSpace.Name)
	if err != nil {
		return nil, fmt.Errorf("building action space: %w", err)
	}

	embedder, err := graphEmbedder(cfg.Embedding.Embedder)
	if err != nil {
		return nil, err
	}
	pipeline, err := embedding.NewPipeline(embedder, cfg.Embedding.GraphDimension)
	if err != nil {
		return nil, err
	}

	rewardConfig := reward.Config{
		Strategy:         cfg.Reward.Strategy,
		NoiseFloor:       cfg.Reward.NoiseFloor,
		Weight:           cfg.Reward.Weight,
		RegressionWeight: cfg.Reward.RegressionWeight,
	}
	if _, err := reward.New(rewardConfig); err != nil {
		return nil, err
	}
	newStrategy := func() reward.Strategy {
		// Validated above.
		strategy, _ := reward.New(rewardConfig)
		return strategy
	}

	compression, err := trajectory.ParseCompression(cfg.Trajectory.Compression)
	if err != nil {
		return nil, err
	}

	collector := metrics.New()
	manager, err := rendezvous.NewManager(rendezvous.Config{
		WorkerBinary:     cfg.Worker.Binary,
		WorkerRoot:       cfg.Paths.Workers,
		SocketDir:        cfg.Paths.Sockets,
		MaxInstances:     cfg.Rendezvous.MaxInstances,
		BufferMultiplier: cfg.Protocol.BufferMultiplier,
		Backoff: rendezvous.Backoff{
			Initial: cfg.Rendezvous.BackoffInitial,
			Max:     cfg.Rendezvous.BackoffMax,
			Timeout: cfg.Rendezvous.ConnectTimeout,
		},
	}, append([]rendezvous.Option{
		rendezvous.WithLogger(logger),
		rendezvous.WithMetrics(collector),
	}, options...)...)
	if err != nil {
		return nil, err
	}

	sessionConfig := session.Config{
		Registry:       registry,
		Embedder:       pipeline,
		Rendezvous:     manager,
		Reward:         newStrategy,
		StrategyName:   cfg.Reward.Strategy,
		DynamicActions: cfg.ActionSpace.Mode == config.ModeDynamic,
		StepTimeout:    cfg.Protocol.StepTimeout,
		Compression:    compression,
		Metrics:        collector,
		Logger:         logger,
	}
	if cfg.Trajectory.Enabled {
		sessionConfig.TrajectoryDir = cfg.Paths.Trajectories
	}

	logger.Debug("environment ready",
		"catalog", cfg.Paths.Catalog,
		"action_space", registry.ActionSpace().Name(),
		"actions", registry.ActionSpace().Len(),
		"observation_length", pipeline.Length(),
		"reward", cfg.Reward.Strategy,
	)
	return &environment{config: cfg, metrics: collector, session: sessionConfig}, nil
}
