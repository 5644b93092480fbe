// Package config loads and validates the YAML run configuration. The loaded
// struct is immutable for the duration of a run and threaded explicitly
// through the orchestrator; nothing reads configuration from ambient state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dbbench/internal/driver"
	"dbbench/internal/runner"
)

type Config struct {
	// Databases maps backend id to DSN. Only listed backends join the run.
	Databases map[string]string `yaml:"databases"`
	Settings  Settings          `yaml:"benchmark_settings"`
}

type Settings struct {
	DatasetSize       int      `yaml:"dataset_size" json:"dataset_size"`
	Seed              int64    `yaml:"seed" json:"seed"`
	Repetitions       int      `yaml:"repetitions" json:"repetitions"`
	Warmup            int      `yaml:"warmup" json:"warmup"`
	ConcurrentClients int      `yaml:"concurrent_clients" json:"concurrent_clients"`
	Scenarios         []string `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
	OutputPath        string   `yaml:"output_path" json:"output_path"`
	IOTimeout         string   `yaml:"io_timeout,omitempty" json:"io_timeout,omitempty"`
	BatchTimeout      string   `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
}

func Default() *Config {
	return &Config{
		Databases: map[string]string{},
		Settings: Settings{
			DatasetSize:       1000,
			Seed:              42,
			Repetitions:       5,
			Warmup:            runner.DefaultWarmup,
			ConcurrentClients: 10,
			OutputPath:        "results/results.json",
		},
	}
}

// Load reads path and validates the result. Configuration errors are fatal
// to the run; they are the caller's to surface, never to paper over.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	s := &c.Settings
	if len(c.Databases) == 0 {
		return fmt.Errorf("config: no databases configured")
	}
	if s.DatasetSize < 2 {
		return fmt.Errorf("config: dataset_size must be at least 2, got %d", s.DatasetSize)
	}
	if s.Repetitions < 1 {
		return fmt.Errorf("config: repetitions must be at least 1, got %d", s.Repetitions)
	}
	if s.Warmup < 0 {
		return fmt.Errorf("config: warmup must not be negative, got %d", s.Warmup)
	}
	if s.ConcurrentClients < 1 {
		return fmt.Errorf("config: concurrent_clients must be at least 1, got %d", s.ConcurrentClients)
	}
	if s.OutputPath == "" {
		return fmt.Errorf("config: output_path must be set")
	}
	if _, err := parseTimeout(s.IOTimeout, driver.DefaultIOTimeout); err != nil {
		return fmt.Errorf("config: io_timeout: %w", err)
	}
	if _, err := parseTimeout(s.BatchTimeout, runner.DefaultBatchTimeout); err != nil {
		return fmt.Errorf("config: batch_timeout: %w", err)
	}
	return nil
}

// IOTimeoutDuration returns the per-call driver I/O ceiling.
func (s *Settings) IOTimeoutDuration() time.Duration {
	d, _ := parseTimeout(s.IOTimeout, driver.DefaultIOTimeout)
	return d
}

// BatchTimeoutDuration returns the deadline for one concurrent batch.
func (s *Settings) BatchTimeoutDuration() time.Duration {
	d, _ := parseTimeout(s.BatchTimeout, runner.DefaultBatchTimeout)
	return d
}

func parseTimeout(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}
