// Package config loads the engine's YAML configuration file, the way
// cmd/warren's apply command unmarshals a resource manifest with
// gopkg.in/yaml.v3, but into a single typed Config rather than a generic
// map[string]interface{} spec blob.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConnectionSlots mirrors pkg/txn.DefaultConnectionSlots; kept as its
// own constant here so this package does not need to import pkg/txn just
// for a fallback number.
const DefaultConnectionSlots = 10

// Config is the engine's process-wide configuration: where durable state
// lives, how heap buffers and the connection catalog are sized, and where
// logs/metrics surface.
type Config struct {
	// DataDir holds the durable catalog store and heap buffer page store
	// (BoltDB files) when persistence is enabled.
	DataDir string `yaml:"dataDir"`

	// HeapPageSize bounds how many tuple slots a single heap page holds
	// before a buffer grows by another page.
	HeapPageSize int `yaml:"heapPageSize"`

	// ConnectionSlotsPerShardAccess caps how many live backend connections
	// the transaction manager's connection catalog opens per shard
	// (spec §5's "small fixed-size slot array, default 10").
	ConnectionSlotsPerShardAccess int `yaml:"connectionSlotsPerShardAccess"`

	// LogLevel is one of zerolog's level names: debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// LogJSON selects JSON output instead of the console writer.
	LogJSON bool `yaml:"logJSON"`

	// MetricsAddr is the listen address for the Prometheus scrape endpoint,
	// empty to disable serving it.
	MetricsAddr string `yaml:"metricsAddr"`

	Shards []ShardConfig `yaml:"shards"`
}

// ShardConfig declares one shard's driver and connection target, the
// authentication detail itself coming from outside the config file (an
// environment variable or a separately-sealed credential handle).
type ShardConfig struct {
	ID       string `yaml:"id"`
	Driver   string `yaml:"driver"`
	Address  string `yaml:"address"`
	Database string `yaml:"database"`
}

// Defaults returns a Config with every field set to its fallback value,
// suitable as the base a loaded file or flag overrides are applied onto.
func Defaults() *Config {
	return &Config{
		DataDir:                       "./data",
		HeapPageSize:                  64,
		ConnectionSlotsPerShardAccess: DefaultConnectionSlots,
		LogLevel:                      "info",
		LogJSON:                       false,
		MetricsAddr:                   ":9090",
	}
}

// Load reads and parses a YAML config file, starting from Defaults and
// letting the file override only the fields it sets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects a configuration this module cannot start with.
func (c *Config) Validate() error {
	if c.ConnectionSlotsPerShardAccess <= 0 {
		return fmt.Errorf("config: connectionSlotsPerShardAccess must be positive")
	}
	if c.HeapPageSize <= 0 {
		return fmt.Errorf("config: heapPageSize must be positive")
	}
	for _, s := range c.Shards {
		if s.ID == "" {
			return fmt.Errorf("config: shard entry missing id")
		}
		if s.Driver == "" {
			return fmt.Errorf("config: shard %q missing driver", s.ID)
		}
	}
	return nil
}
