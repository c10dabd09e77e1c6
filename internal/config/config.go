// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then SKILLCAST_ environment variables. Later
// layers override earlier ones.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/skillcast/skillcast/internal/api"
	"github.com/skillcast/skillcast/internal/forecast"
	"github.com/skillcast/skillcast/internal/logging"
	"github.com/skillcast/skillcast/internal/worker"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/skillcast/config.yaml",
	"/etc/skillcast/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "SKILLCAST_CONFIG"

// EnvPrefix namespaces all environment variable overrides:
// SKILLCAST_SERVER_ADDR, SKILLCAST_LEDGER_PATH, and so on.
const EnvPrefix = "SKILLCAST_"

// DatabaseConfig selects the run ledger backend.
type DatabaseConfig struct {
	// Backend is "duckdb" or "memory".
	Backend string `koanf:"backend" validate:"oneof=duckdb memory"`

	// Path is the DuckDB database file. Ignored for the memory backend.
	Path string `koanf:"path" validate:"required_if=Backend duckdb"`
}

// RefDataConfig selects the reference data backend.
type RefDataConfig struct {
	// Backend is "badger" or "memory".
	Backend string `koanf:"backend" validate:"oneof=badger memory"`

	// Dir is the Badger data directory. Ignored for the memory backend.
	Dir string `koanf:"dir" validate:"required_if=Backend badger"`

	// SeedFile, when set, is applied to the store at startup.
	SeedFile string `koanf:"seed_file"`
}

// WorkerConfig gates the async recalculation worker.
type WorkerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Runner  worker.Config `koanf:"runner"`
}

// Config is the root configuration tree.
type Config struct {
	Server   api.ServerConfig     `koanf:"server"`
	API      api.MiddlewareConfig `koanf:"api"`
	Logging  logging.Config       `koanf:"logging"`
	Ledger   DatabaseConfig       `koanf:"ledger"`
	RefData  RefDataConfig        `koanf:"refdata"`
	Forecast forecast.Config      `koanf:"forecast"`
	Worker   WorkerConfig         `koanf:"worker"`
}

// defaultConfig returns the built-in defaults. These run a single-node
// deployment out of the box with persistent storage under /data.
func defaultConfig() *Config {
	return &Config{
		Server:  api.DefaultServerConfig(),
		API:     api.DefaultMiddlewareConfig(),
		Logging: logging.DefaultConfig(),
		Ledger: DatabaseConfig{
			Backend: "duckdb",
			Path:    "/data/skillcast.duckdb",
		},
		RefData: RefDataConfig{
			Backend: "badger",
			Dir:     "/data/refdata",
		},
		Forecast: forecast.DefaultConfig(),
		Worker: WorkerConfig{
			Enabled: true,
			Runner:  worker.DefaultConfig(),
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and SKILLCAST_ environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// SKILLCAST_FORECAST_MODEL_ENABLED=true -> forecast.model.enabled
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the koanf layers cannot.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := c.Forecast.Rules.Validate(); err != nil {
		return fmt.Errorf("forecast.rules: %w", err)
	}
	if c.Forecast.Model.Enabled && c.Forecast.Model.Dir == "" {
		return fmt.Errorf("forecast.model.dir is required when the model engine is enabled")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
