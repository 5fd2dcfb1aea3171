// Package config provides configuration management for sigflow: JSON files,
// environment variable overrides, presets and validation.
//
// Sources, in order of precedence:
//  1. Environment variables (SIGFLOW_*)
//  2. Configuration file (JSON)
//  3. Defaults
//
// Presets:
//   - default: balanced buffer headroom for most graphs
//   - throughput: large buffers and chunks for bulk streaming
//   - lowlatency: small buffers so samples clear the graph quickly
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sigflow/sigflow/pkg/common/logging"
)

// Config is the complete sigflow runtime configuration.
type Config struct {
	Runtime RuntimeConfig `json:"runtime"`
	Logging LoggingConfig `json:"logging"`
	API     APIConfig     `json:"api"`
}

// RuntimeConfig controls buffer sizing and the worker loop.
type RuntimeConfig struct {
	// BufferSamples is the per-edge ring capacity in samples. It must leave
	// the producer at least one chunk of headroom past the slowest reader.
	BufferSamples int `json:"buffer_samples"`
	// ChunkSamples is the typical Process call size in samples.
	ChunkSamples int `json:"chunk_samples"`
	// MinReadSamples is the default minimum a reader waits for before its
	// block runs.
	MinReadSamples int `json:"min_read_samples"`
	// QueueObjects is the per-edge capacity for object streams.
	QueueObjects int `json:"queue_objects"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file,omitempty"`
}

// APIConfig controls the optional status HTTP server.
type APIConfig struct {
	Enabled  bool   `json:"enabled"`
	Listen   string `json:"listen"`
	MaxConns int    `json:"max_conns"`
}

// DefaultConfig returns the balanced defaults.
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			BufferSamples:  8192,
			ChunkSamples:   1024,
			MinReadSamples: 1,
			QueueObjects:   256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "", // empty means text, or JSON when stdout is a pipe
		},
		API: APIConfig{
			Enabled:  false,
			Listen:   "127.0.0.1:8620",
			MaxConns: 32,
		},
	}
}

// GetPresetConfig returns a named preset.
func GetPresetConfig(preset string) (*Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(preset) {
	case "", "default":
	case "throughput":
		cfg.Runtime.BufferSamples = 65536
		cfg.Runtime.ChunkSamples = 8192
		cfg.Runtime.QueueObjects = 1024
	case "lowlatency":
		cfg.Runtime.BufferSamples = 1024
		cfg.Runtime.ChunkSamples = 128
		cfg.Runtime.QueueObjects = 32
	default:
		return nil, fmt.Errorf("unknown preset %q (want default, throughput or lowlatency)", preset)
	}
	return cfg, nil
}

// LoadConfig reads the file at path (skipped if path is empty or missing),
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGFLOW_BUFFER_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.BufferSamples = n
		}
	}
	if v := os.Getenv("SIGFLOW_CHUNK_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.ChunkSamples = n
		}
	}
	if v := os.Getenv("SIGFLOW_MIN_READ_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.MinReadSamples = n
		}
	}
	if v := os.Getenv("SIGFLOW_QUEUE_OBJECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.QueueObjects = n
		}
	}
	if v := os.Getenv("SIGFLOW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIGFLOW_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SIGFLOW_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("SIGFLOW_API_ENABLED"); v != "" {
		cfg.API.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SIGFLOW_API_LISTEN"); v != "" {
		cfg.API.Listen = v
	}
	if v := os.Getenv("SIGFLOW_API_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.MaxConns = n
		}
	}
}

// Validate checks the configuration for consistency with helpful messages.
func (c *Config) Validate() error {
	if c.Runtime.ChunkSamples <= 0 {
		return fmt.Errorf("runtime.chunk_samples must be positive, got %d", c.Runtime.ChunkSamples)
	}
	if c.Runtime.BufferSamples < 2*c.Runtime.ChunkSamples {
		return fmt.Errorf("runtime.buffer_samples (%d) must be at least twice runtime.chunk_samples (%d) so the producer keeps one chunk of headroom",
			c.Runtime.BufferSamples, c.Runtime.ChunkSamples)
	}
	if c.Runtime.MinReadSamples < 1 {
		return fmt.Errorf("runtime.min_read_samples must be at least 1, got %d", c.Runtime.MinReadSamples)
	}
	if c.Runtime.MinReadSamples > c.Runtime.ChunkSamples {
		return fmt.Errorf("runtime.min_read_samples (%d) cannot exceed runtime.chunk_samples (%d)",
			c.Runtime.MinReadSamples, c.Runtime.ChunkSamples)
	}
	if c.Runtime.QueueObjects <= 0 {
		return fmt.Errorf("runtime.queue_objects must be positive, got %d", c.Runtime.QueueObjects)
	}
	if _, err := logging.ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := logging.ParseLogFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}
	if c.API.Enabled {
		if c.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api.enabled is true")
		}
		if c.API.MaxConns <= 0 {
			return fmt.Errorf("api.max_conns must be positive, got %d", c.API.MaxConns)
		}
	}
	return nil
}

// SaveToFile writes the configuration as indented JSON.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.LogLevel {
	level, _ := logging.ParseLogLevel(c.Logging.Level)
	return level
}

// LogFormat returns the parsed logging format.
func (c *Config) LogFormat() logging.LogFormat {
	format, _ := logging.ParseLogFormat(c.Logging.Format)
	return format
}
