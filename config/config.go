// Package config handles loading and applying engine settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/exascience/parfor"
	"github.com/exascience/parfor/concurrency"
	"github.com/exascience/parfor/internal/logging"
	"github.com/exascience/parfor/parallel"
	"github.com/exascience/parfor/pool"
)

// EnvLogLevel names the environment variable that overrides the log
// level. The concurrency is overridden by concurrency.EnvVar.
const EnvLogLevel = "PARFOR_LOG_LEVEL"

// ErrInvalidConfig is wrapped by all validation errors.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the engine settings.
type Config struct {
	// Concurrency is the configured parallelism degree; 0 keeps the
	// detected default.
	Concurrency int `toml:"concurrency"`
	// PoolSize fixes the number of workers of the default pool; 0
	// lets it track Concurrency - 1. The default pool never shrinks, so
	// a smaller size only takes effect if Apply runs before the first
	// parallel loop.
	PoolSize int `toml:"pool_size"`

	// Loop tuning, passed by callers to parallel.ForRangeMin and
	// parallel.RangeReduceMin (see kernels.Tuning).
	MinIterationsPerThread int `toml:"min_iterations_per_thread"`
	RangeThreshold         int `toml:"range_threshold"`

	LogLevel string `toml:"log_level"` // debug, info, warn, error
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MinIterationsPerThread: parfor.DefaultMinIterationsPerThread,
		RangeThreshold:         parallel.DefaultRangeThreshold,
		LogLevel:               "warn",
	}
}

// Load decodes the TOML file at path over the defaults. Unknown keys
// are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// FromEnv applies environment overrides to cfg.
func FromEnv(cfg *Config) error {
	if s, ok := os.LookupEnv(concurrency.EnvVar); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, concurrency.EnvVar, s, err)
		}
		cfg.Concurrency = n
	}
	if s, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = s
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch {
	case c.Concurrency < 0:
		return fmt.Errorf("%w: concurrency must not be negative, got %d", ErrInvalidConfig, c.Concurrency)
	case c.PoolSize < 0:
		return fmt.Errorf("%w: pool_size must not be negative, got %d", ErrInvalidConfig, c.PoolSize)
	case c.MinIterationsPerThread < 0:
		return fmt.Errorf("%w: min_iterations_per_thread must not be negative, got %d", ErrInvalidConfig, c.MinIterationsPerThread)
	case c.RangeThreshold < 0:
		return fmt.Errorf("%w: range_threshold must not be negative, got %d", ErrInvalidConfig, c.RangeThreshold)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q: %w", ErrInvalidConfig, c.LogLevel, err)
	}
	return nil
}

// Apply validates the configuration, then sets the log level, the
// configured concurrency, and the size of the default pool.
func (c *Config) Apply() error {
	if err := c.Validate(); err != nil {
		return err
	}
	level, _ := logging.ParseLevel(c.LogLevel)
	logging.SetLevel(level)
	if c.Concurrency > 0 {
		concurrency.Set(c.Concurrency)
	}
	pool.SetDefaultSize(c.PoolSize)
	p := pool.Default()
	if p.Size() != pool.DefaultSize() {
		logging.Logger().Warn("default pool already larger than configured",
			"pool_size", pool.DefaultSize(), "workers", p.Size())
	}
	logging.Logger().Info("configuration applied",
		"concurrency", concurrency.NumCPUs(),
		"pool_size", p.Size(),
		"log_level", level.String())
	return nil
}
