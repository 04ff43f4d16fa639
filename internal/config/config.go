// Package config loads run configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"pdevo/internal/evo"
	"pdevo/internal/game"
	"pdevo/internal/logging"
	"pdevo/internal/storage"
	"pdevo/internal/strategy"
)

// ErrInvalidConfig is returned by Validate. It is a configuration error in
// the same family as unknown or unconstructible kinds.
var ErrInvalidConfig = fmt.Errorf("%w: invalid run configuration", strategy.ErrConfiguration)

const DefaultDBPath = "pdevo.db"

type RunConfig struct {
	// Population maps strategy kinds to their initial counts.
	Population map[string]int `json:"population" yaml:"population"`

	// MinRounds is inclusive, MaxRounds exclusive.
	MinRounds int `json:"min_rounds" yaml:"min_rounds"`
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`

	Weight       float64 `json:"weight" yaml:"weight"`
	RandomWeight bool    `json:"random_weight" yaml:"random_weight"`

	Seed       int64 `json:"seed" yaml:"seed"`
	RandomSeed bool  `json:"random_seed" yaml:"random_seed"`

	Payoffs PayoffConfig `json:"payoffs" yaml:"payoffs"`

	// Generations limits the run. Zero runs until cancelled.
	Generations int `json:"generations" yaml:"generations"`

	Store   StoreConfig   `json:"store" yaml:"store"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type PayoffConfig struct {
	ExploitComply  float64 `json:"exploit_comply" yaml:"exploit_comply"`
	ComplyExploit  float64 `json:"comply_exploit" yaml:"comply_exploit"`
	ComplyComply   float64 `json:"comply_comply" yaml:"comply_comply"`
	ExploitExploit float64 `json:"exploit_exploit" yaml:"exploit_exploit"`
}

type StoreConfig struct {
	Kind   string `json:"kind" yaml:"kind"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default mirrors the classic console run: exploiters against two kinds of
// retaliators, one to nine rounds per game, weight .75 and seed 1.
func Default() *RunConfig {
	return &RunConfig{
		Population: map[string]int{
			strategy.KindAlwaysExploit:        50,
			strategy.KindTitForTat:            50,
			strategy.KindPermanentRetaliation: 100,
		},
		MinRounds: 1,
		MaxRounds: 10,
		Weight:    0.75,
		Seed:      1,
		Payoffs: PayoffConfig{
			ExploitComply:  10,
			ComplyExploit:  0,
			ComplyComply:   7,
			ExploitExploit: 3,
		},
		Store: StoreConfig{
			Kind:   storage.DefaultStoreKind(),
			DBPath: DefaultDBPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults, or the file at path when path is set, with
// environment overrides applied on top.
func Load(path string) (*RunConfig, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile reads YAML from path. Keys missing from the file keep their
// default values except population, which replaces the default mapping.
func LoadFromFile(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*RunConfig, error) {
	config := Default()
	config.Population = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if config.Population == nil {
		config.Population = Default().Population
	}
	return config, nil
}

func (c *RunConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *RunConfig) Validate() error {
	for kind, count := range c.Population {
		if strings.TrimSpace(kind) == "" {
			return fmt.Errorf("%w: population contains an empty kind name", ErrInvalidConfig)
		}
		if count < 0 {
			return fmt.Errorf("%w: population count for %s must be >= 0, got %d", ErrInvalidConfig, kind, count)
		}
		if _, err := strategy.Lookup(kind); err != nil {
			return err
		}
	}

	if c.MinRounds < 0 {
		return fmt.Errorf("%w: min_rounds must be >= 0, got %d", ErrInvalidConfig, c.MinRounds)
	}
	if c.MaxRounds <= c.MinRounds {
		return fmt.Errorf("%w: max_rounds must be > min_rounds, got min=%d max=%d", ErrInvalidConfig, c.MinRounds, c.MaxRounds)
	}
	if !c.RandomWeight && (math.IsNaN(c.Weight) || c.Weight < 0 || c.Weight > 1) {
		return fmt.Errorf("%w: weight must be between 0 and 1, got %v", ErrInvalidConfig, c.Weight)
	}
	if err := c.GamePayoffs().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Generations < 0 {
		return fmt.Errorf("%w: generations must be >= 0, got %d", ErrInvalidConfig, c.Generations)
	}

	switch c.Store.Kind {
	case "", "memory":
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("%w: store.db_path is required for the sqlite store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: invalid store kind: %s (valid: memory, sqlite)", ErrInvalidConfig, c.Store.Kind)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level: %s (valid: debug, info, warn, error)", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

func (c *RunConfig) GamePayoffs() game.Payoffs {
	return game.Payoffs{
		ExploitComply:  c.Payoffs.ExploitComply,
		ComplyExploit:  c.Payoffs.ComplyExploit,
		ComplyComply:   c.Payoffs.ComplyComply,
		ExploitExploit: c.Payoffs.ExploitExploit,
	}
}

// EngineConfig translates the run configuration for evo.New. The observer
// may be nil.
func (c *RunConfig) EngineConfig(observer evo.Observer) evo.Config {
	initial := make(map[string]int, len(c.Population))
	for kind, count := range c.Population {
		initial[strings.TrimSpace(kind)] += count
	}

	cfg := evo.Config{
		Initial:   initial,
		MinRounds: c.MinRounds,
		MaxRounds: c.MaxRounds,
		Payoffs:   c.GamePayoffs(),
		Observer:  observer,
	}
	if !c.RandomWeight {
		weight := c.Weight
		cfg.Weight = &weight
	}
	if !c.RandomSeed {
		seed := c.Seed
		cfg.Seed = &seed
	}
	return cfg
}

func applyEnvOverrides(config *RunConfig) error {
	if v := os.Getenv("PDEVO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PDEVO_STORE"); v != "" {
		config.Store.Kind = v
	}
	if v := os.Getenv("PDEVO_DB_PATH"); v != "" {
		config.Store.DBPath = v
	}
	if v := os.Getenv("PDEVO_METRICS_ADDR"); v != "" {
		config.Metrics.Addr = v
	}
	if v := os.Getenv("PDEVO_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: PDEVO_SEED: %w", ErrInvalidConfig, err)
		}
		config.Seed = seed
		config.RandomSeed = false
	}
	return nil
}
