// Package config holds the benchmark configuration: phase sizes, worker
// count, epoch cadence, and input files. A config can come from defaults,
// a YAML or JSON file, or CLI flag overrides applied on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Reference benchmark sizing, kept as the documented defaults.
const (
	DefaultInitCount = 250000000
	DefaultTxnCount  = 1000000000
	DefaultWorkers   = 8
)

// Config describes one benchmark invocation.
type Config struct {
	// Workers is the number of core-bound worker threads per phase.
	Workers int `yaml:"workers" json:"workers"`

	// InitCount and TxnCount are the exact key counts expected in the
	// load and transaction files.
	InitCount int `yaml:"init_count" json:"init_count"`
	TxnCount  int `yaml:"txn_count" json:"txn_count"`

	// ChunkSize is the work-partitioner claim granularity. Zero uses the
	// driver default.
	ChunkSize uint64 `yaml:"chunk_size" json:"chunk_size"`

	// RefreshInterval and CompletePendingInterval set the epoch cadence.
	// Zero uses the driver defaults.
	RefreshInterval         uint64 `yaml:"refresh_interval" json:"refresh_interval"`
	CompletePendingInterval uint64 `yaml:"complete_pending_interval" json:"complete_pending_interval"`

	// Mix names the operation-mix policy for the transaction phase.
	Mix string `yaml:"mix" json:"mix"`

	// LoadFile and RunFile are the binary key files for each phase.
	LoadFile string `yaml:"load_file" json:"load_file"`
	RunFile  string `yaml:"run_file" json:"run_file"`

	// Seed derives per-worker random sources for mix draws.
	Seed int64 `yaml:"seed" json:"seed"`

	// LivenessInterval is how often the orchestrator logs progress during
	// the transaction phase, as a duration string ("30s"). Empty disables
	// the poll.
	LivenessInterval string `yaml:"liveness_interval" json:"liveness_interval"`
}

// Default returns the reference benchmark configuration.
func Default() Config {
	return Config{
		Workers:          DefaultWorkers,
		InitCount:        DefaultInitCount,
		TxnCount:         DefaultTxnCount,
		Mix:              "read-upsert-50-50",
		LivenessInterval: "30s",
	}
}

// LoadFromFile reads a YAML or JSON config file and applies it over the
// defaults, so partial files are valid.
func LoadFromFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}

	return cfg, nil
}

// Validate checks the configuration before any worker starts.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.InitCount <= 0 {
		return fmt.Errorf("init count must be positive, got %d", c.InitCount)
	}
	if c.TxnCount <= 0 {
		return fmt.Errorf("txn count must be positive, got %d", c.TxnCount)
	}
	if c.RefreshInterval != 0 && c.CompletePendingInterval != 0 &&
		c.CompletePendingInterval%c.RefreshInterval != 0 {
		return fmt.Errorf(
			"complete_pending_interval %d must be a multiple of refresh_interval %d",
			c.CompletePendingInterval, c.RefreshInterval,
		)
	}
	if c.Mix == "" {
		return fmt.Errorf("mix must be set")
	}
	if _, err := c.Liveness(); err != nil {
		return err
	}
	return nil
}

// Liveness parses the liveness interval. Empty means disabled.
func (c Config) Liveness() (time.Duration, error) {
	if c.LivenessInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.LivenessInterval)
	if err != nil {
		return 0, fmt.Errorf("parse liveness_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("liveness_interval must not be negative")
	}
	return d, nil
}
