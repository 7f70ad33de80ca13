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

package config

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/ctxutil/ctxmutex"
	"github.com/united-manufacturing-hub/scmstore/pkg/ctxutil/ctxrwmutex"
	"github.com/united-manufacturing-hub/scmstore/pkg/env"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
)

// FileName is the name of the configuration file in the config directory.
const FileName = "server.yaml"

// Manager reads and writes the configuration file.
type Manager struct {
	configPath string
	fsService  filesystem.Service
	logger     *zap.SugaredLogger

	// mutexAtomicUpdate serializes read-modify-write cycles
	mutexAtomicUpdate *ctxmutex.CtxMutex

	// mutexReadOrWrite lets reads run in parallel but not next to a write
	mutexReadOrWrite *ctxrwmutex.CtxRWMutex
}

// NewManager creates a manager for the configuration of baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{
		configPath:        filepath.Join(baseDir, constants.ConfigDirectoryName, FileName),
		fsService:         filesystem.NewDefaultService(),
		logger:            logger.For(logger.ComponentConfigManager),
		mutexAtomicUpdate: ctxmutex.NewCtxMutex(),
		mutexReadOrWrite:  ctxrwmutex.NewCtxRWMutex(constants.AmountReadersForConfigFile),
	}
}

// WithFileSystemService replaces the filesystem, mostly for tests.
func (m *Manager) WithFileSystemService(fsService filesystem.Service) *Manager {
	m.fsService = fsService

	return m
}

func (m *Manager) Path() string {
	return m.configPath
}

// GetConfig reads the configuration from disk.
func (m *Manager) GetConfig(ctx context.Context) (Config, error) {
	if err := m.mutexReadOrWrite.RLock(ctx); err != nil {
		return Config{}, fmt.Errorf("failed to lock config file: %w", err)
	}
	defer m.mutexReadOrWrite.RUnlock()

	exists, err := m.fsService.PathExists(ctx, m.configPath)
	if err != nil {
		return Config{}, err
	}

	if !exists {
		return Config{}, fmt.Errorf("config file does not exist: %s", m.configPath)
	}

	data, err := m.fsService.ReadFile(ctx, m.configPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// missing keys keep their defaults
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", m.configPath, err)
	}

	return config, nil
}

// GetConfigWithOverridesOrCreateNew loads the configuration, or the
// defaults if there is none yet, applies the environment overrides and
// persists the result.
func (m *Manager) GetConfigWithOverridesOrCreateNew(ctx context.Context, overrides *env.Reader) (Config, error) {
	if err := m.mutexAtomicUpdate.Lock(ctx); err != nil {
		return Config{}, fmt.Errorf("failed to lock config file: %w", err)
	}
	defer m.mutexAtomicUpdate.Unlock()

	config := Default()

	exists, err := m.fsService.PathExists(ctx, m.configPath)
	switch {
	case err != nil:
		m.logger.Warnf("failed to check if config file exists in %s: %v", m.configPath, err)
	case exists:
		config, err = m.GetConfig(ctx)
		if err != nil {
			return Config{}, fmt.Errorf("failed to get config that exists: %w", err)
		}
	}

	if overrides != nil {
		if err := config.ApplyEnvironment(overrides); err != nil {
			return Config{}, err
		}
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := m.writeConfig(ctx, config); err != nil {
		return Config{}, fmt.Errorf("failed to write new config: %w", err)
	}

	return config, nil
}

// AtomicUpdate applies fn to the current configuration and writes it back.
// Nothing is written if fn fails or the result does not validate.
func (m *Manager) AtomicUpdate(ctx context.Context, fn func(*Config) error) error {
	if err := m.mutexAtomicUpdate.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer m.mutexAtomicUpdate.Unlock()

	config, err := m.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	if err := fn(&config); err != nil {
		return err
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return m.writeConfig(ctx, config)
}

func (m *Manager) writeConfig(ctx context.Context, config Config) error {
	if err := m.mutexReadOrWrite.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer m.mutexReadOrWrite.Unlock()

	if err := m.fsService.EnsureDirectory(ctx, filepath.Dir(m.configPath)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := m.fsService.WriteFile(ctx, m.configPath, data, constants.FilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.logger.Debugf("Wrote config to %s", m.configPath)

	return nil
}
