// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "PASSGYM_CONFIG"

// Action space modes.
const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"
)

// Config is the passgym configuration.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Worker      WorkerConfig      `yaml:"worker"`
	Protocol    ProtocolConfig    `yaml:"protocol"`
	Rendezvous  RendezvousConfig  `yaml:"rendezvous"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Reward      RewardConfig      `yaml:"reward"`
	ActionSpace ActionSpaceConfig `yaml:"action_space"`
	Trajectory  TrajectoryConfig  `yaml:"trajectory"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for passgym state.
	Root string `yaml:"root" validate:"required"`

	// Workers holds one directory per (benchmark, function) worker.
	Workers string `yaml:"workers" validate:"required"`

	// Sockets, when set, holds filesystem sockets instead of the
	// abstract namespace.
	Sockets string `yaml:"sockets"`

	// Catalog is the JSONC pass catalog.
	Catalog string `yaml:"catalog" validate:"required"`

	// Trajectories is where recorded episodes are written.
	Trajectories string `yaml:"trajectories"`
}

// WorkerConfig configures the worker process.
type WorkerConfig struct {
	Binary string `yaml:"binary" validate:"required"`
}

// ProtocolConfig configures the datagram exchange with the worker.
type ProtocolConfig struct {
	// BufferMultiplier caps the embedding payload at multiplier × 1024
	// bytes.
	BufferMultiplier int `yaml:"buffer_multiplier" validate:"min=1,max=65536"`

	// StepTimeout bounds one request/reply exchange. Zero waits
	// indefinitely.
	StepTimeout time.Duration `yaml:"step_timeout" validate:"min=0"`
}

// RendezvousConfig configures client binding and worker connection.
type RendezvousConfig struct {
	MaxInstances   int           `yaml:"max_instances" validate:"min=1"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"min=0"`
	BackoffInitial time.Duration `yaml:"backoff_initial" validate:"gt=0"`
	BackoffMax     time.Duration `yaml:"backoff_max" validate:"gt=0"`
}

// EmbeddingConfig configures the observation embedding.
type EmbeddingConfig struct {
	GraphDimension int    `yaml:"graph_dimension" validate:"min=1"`
	Embedder       string `yaml:"embedder" validate:"oneof=hashed_edges"`
}

// RewardConfig selects the reward strategy. Zero tuning values keep the
// strategy's defaults.
type RewardConfig struct {
	Strategy         string  `yaml:"strategy" validate:"oneof=weighted_delta weighted_delta_asymmetric baseline_relative potential"`
	NoiseFloor       float64 `yaml:"noise_floor" validate:"min=0,max=100"`
	Weight           float64 `yaml:"weight" validate:"min=0"`
	RegressionWeight float64 `yaml:"regression_weight" validate:"min=0"`
}

// ActionSpaceConfig selects the pass category offered to the agent.
type ActionSpaceConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Category int    `yaml:"category" validate:"min=0"`
	Mode     string `yaml:"mode" validate:"oneof=static dynamic"`
}

// TrajectoryConfig configures episode recording.
type TrajectoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression" validate:"oneof=none lz4 zstd"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address is the listen address for /metrics. Empty disables the
	// endpoint.
	Address string `yaml:"address" validate:"omitempty,hostname_port"`
}

// Default returns the configuration every file is loaded over.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "passgym")

	return &Config{
		Paths: PathsConfig{
			Root:         defaultRoot,
			Workers:      filepath.Join(defaultRoot, "workers"),
			Catalog:      filepath.Join(defaultRoot, "passes.jsonc"),
			Trajectories: filepath.Join(defaultRoot, "trajectories"),
		},
		Worker: WorkerConfig{
			Binary: "passgym-worker",
		},
		Protocol: ProtocolConfig{
			BufferMultiplier: 64,
		},
		Rendezvous: RendezvousConfig{
			MaxInstances:   1024,
			ConnectTimeout: 2 * time.Minute,
			BackoffInitial: 5 * time.Millisecond,
			BackoffMax:     time.Second,
		},
		Embedding: EmbeddingConfig{
			GraphDimension: 25,
			Embedder:       "hashed_edges",
		},
		Reward: RewardConfig{
			Strategy: "weighted_delta",
		},
		ActionSpace: ActionSpaceConfig{
			Name: "passes",
			Mode: ModeStatic,
		},
		Trajectory: TrajectoryConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the file named by PASSGYM_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your passgym.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over Default and expands
// path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"PASSGYM_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["PASSGYM_ROOT"] = c.Paths.Root

	c.Paths.Workers = expandVars(c.Paths.Workers, vars)
	c.Paths.Sockets = expandVars(c.Paths.Sockets, vars)
	c.Paths.Catalog = expandVars(c.Paths.Catalog, vars)
	c.Paths.Trajectories = expandVars(c.Paths.Trajectories, vars)
	c.Worker.Binary = expandVars(c.Worker.Binary, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fieldError := range fieldErrors {
			errs = append(errs, fmt.Errorf("%s: failed %q (value %v)",
				fieldName(fieldError.Namespace()), fieldError.Tag(), fieldError.Value()))
		}
	}

	if c.Rendezvous.BackoffMax < c.Rendezvous.BackoffInitial {
		errs = append(errs, fmt.Errorf("rendezvous.backoff_max (%s) is less than rendezvous.backoff_initial (%s)",
			c.Rendezvous.BackoffMax, c.Rendezvous.BackoffInitial))
	}
	if c.Trajectory.Enabled && c.Paths.Trajectories == "" {
		errs = append(errs, errors.New("trajectory.enabled requires paths.trajectories"))
	}
	if c.Paths.Sockets != "" && !filepath.IsAbs(c.Paths.Sockets) {
		errs = append(errs, fmt.Errorf("paths.sockets must be absolute, got %q", c.Paths.Sockets))
	}

	return errors.Join(errs...)
}

// fieldName turns a validator namespace such as
// "Config.Rendezvous.BackoffInitial" into the dotted YAML path
// "rendezvous.backoff_initial".
func fieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = snakeCase(part)
	}
	return strings.Join(parts, ".")
}

func snakeCase(name string) string {
	var builder strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				builder.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// EnsurePaths creates the configured state directories.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Root, c.Paths.Workers, c.Paths.Sockets}
	if c.Trajectory.Enabled {
		paths = append(paths, c.Paths.Trajectories)
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
