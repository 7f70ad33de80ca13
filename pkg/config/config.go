// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the server configuration stored in
// <base>/config/server.yaml.
package config

import (
	"fmt"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/env"
	"github.com/united-manufacturing-hub/scmstore/pkg/migration"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
)

// Config is the server configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Status    StatusConfig    `yaml:"status"`
	Migration MigrationConfig `yaml:"migration"`
	Sentry    SentryConfig    `yaml:"sentry,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// StoreConfig selects how store documents are encoded.
type StoreConfig struct {
	Format   string `yaml:"format"`             // json or yaml
	Compress bool   `yaml:"compress,omitempty"` // zstd framing
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type StatusConfig struct {
	Port int `yaml:"port"`
}

// MigrationConfig controls the migration of 1.x repositories.
type MigrationConfig struct {
	// DefaultStrategy is used for repositories without a plan entry. Empty
	// means such repositories stop the update.
	DefaultStrategy string `yaml:"defaultStrategy,omitempty"`
	// Parallelism bounds concurrent repository migrations, 0 uses one per CPU.
	Parallelism int `yaml:"parallelism,omitempty"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Default returns the configuration written for a new data directory.
func Default() Config {
	return Config{
		Store:   StoreConfig{Format: persistence.FormatJSON},
		Metrics: MetricsConfig{Port: constants.DefaultMetricsPort},
		Status:  StatusConfig{Port: constants.DefaultStatusPort},
	}
}

// Validate checks values that cannot be repaired silently.
func (c Config) Validate() error {
	if _, err := persistence.CodecFor(c.Store.Format, c.Store.Compress); err != nil {
		return err
	}

	for name, port := range map[string]int{"metrics": c.Metrics.Port, "status": c.Status.Port} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s port %d is out of range", name, port)
		}
	}

	if c.Metrics.Port == c.Status.Port {
		return fmt.Errorf("metrics and status share port %d", c.Status.Port)
	}

	if c.Migration.DefaultStrategy != "" {
		if _, err := migration.ParseStrategy(c.Migration.DefaultStrategy); err != nil {
			return err
		}
	}

	if c.Migration.Parallelism < 0 {
		return fmt.Errorf("migration parallelism must not be negative")
	}

	return nil
}

// DefaultStrategy returns the configured default strategy, or "" if none.
func (c Config) DefaultStrategy() migration.Strategy {
	s, err := migration.ParseStrategy(c.Migration.DefaultStrategy)
	if err != nil {
		return ""
	}

	return s
}

// MigrationParallelism resolves the 0 default.
func (c Config) MigrationParallelism() int {
	if c.Migration.Parallelism > 0 {
		return c.Migration.Parallelism
	}

	return constants.DefaultMigrationParallelism
}

// ApplyEnvironment overrides values with SCM_* variables.
func (c *Config) ApplyEnvironment(r *env.Reader) error {
	if v, ok := r.String("STORE_FORMAT"); ok {
		c.Store.Format = v
	}

	if v, ok, err := r.Bool("STORE_COMPRESS"); err != nil {
		return err
	} else if ok {
		c.Store.Compress = v
	}

	if v, ok, err := r.Int("METRICS_PORT"); err != nil {
		return err
	} else if ok {
		c.Metrics.Port = v
	}

	if v, ok, err := r.Int("STATUS_PORT"); err != nil {
		return err
	} else if ok {
		c.Status.Port = v
	}

	if v, ok := r.String("MIGRATION_STRATEGY"); ok {
		c.Migration.DefaultStrategy = v
	}

	if v, ok, err := r.Int("MIGRATION_PARALLELISM"); err != nil {
		return err
	} else if ok {
		c.Migration.Parallelism = v
	}

	if v, ok := r.String("SENTRY_DSN"); ok {
		c.Sentry.DSN = v
	}

	if v, ok := r.String("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	return nil
}
