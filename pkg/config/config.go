// Package config holds the ambient, environment-overridable defaults for
// building and running a kmknn index: no server, cache, or database
// layer here, just what Options and a host program's persistence path
// need.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the defaults an embedding application wires into
// kmknn.Options and kmknn persistence calls.
type Config struct {
	Index   IndexConfig
	Runtime RuntimeConfig
}

// IndexConfig mirrors kmknn.Options: the construction-time knobs that
// matter enough to be environment-overridable outside of code.
type IndexConfig struct {
	Power         float64 // cluster-count exponent: K = ceil(N^Power)
	Metric        string  // "euclidean" or "manhattan"
	UseUpperBound bool    // reverse-triangle-inequality early break
	RandomSeed    int64   // k-means++ seeding
}

// RuntimeConfig holds where a built index lives and how verbosely it
// logs, independent of any one Options instance.
type RuntimeConfig struct {
	DataDir  string // directory holding persisted index blob prefixes
	LogLevel string // DEBUG, INFO, WARN, ERROR, FATAL
}

// Default returns the same defaults kmknn.DefaultOptions applies.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Power:         0.5,
			Metric:        "euclidean",
			UseUpperBound: false,
			RandomSeed:    42,
		},
		Runtime: RuntimeConfig{
			DataDir:  "./data",
			LogLevel: "INFO",
		},
	}
}

// LoadFromEnv overlays KMKNN_-prefixed environment variables onto
// Default(). Malformed values are ignored, leaving the default in place.
func LoadFromEnv() *Config {
	cfg := Default()

	if power := os.Getenv("KMKNN_POWER"); power != "" {
		if p, err := strconv.ParseFloat(power, 64); err == nil {
			cfg.Index.Power = p
		}
	}
	if metric := os.Getenv("KMKNN_METRIC"); metric != "" {
		cfg.Index.Metric = metric
	}
	if upper := os.Getenv("KMKNN_USE_UPPER_BOUND"); upper == "true" {
		cfg.Index.UseUpperBound = true
	}
	if seed := os.Getenv("KMKNN_RANDOM_SEED"); seed != "" {
		if s, err := strconv.ParseInt(seed, 10, 64); err == nil {
			cfg.Index.RandomSeed = s
		}
	}

	if dataDir := os.Getenv("KMKNN_DATA_DIR"); dataDir != "" {
		cfg.Runtime.DataDir = dataDir
	}
	if level := os.Getenv("KMKNN_LOG_LEVEL"); level != "" {
		cfg.Runtime.LogLevel = level
	}

	return cfg
}

// Validate checks a config for values that would fail Options
// construction or the metric registry lookup, so callers can report a
// single clear error instead of an opaque failure deep in Build.
func (c *Config) Validate() error {
	if c.Index.Power <= 0 {
		return fmt.Errorf("invalid power: %g (must be > 0)", c.Index.Power)
	}
	if c.Index.Metric != "euclidean" && c.Index.Metric != "manhattan" {
		return fmt.Errorf("invalid metric: %q (must be euclidean or manhattan)", c.Index.Metric)
	}
	if c.Runtime.DataDir == "" {
		return fmt.Errorf("data directory not specified")
	}
	return nil
}
