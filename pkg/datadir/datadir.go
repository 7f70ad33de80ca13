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

// Package datadir knows the layout of the base directory and keeps a second
// server process from opening it.
package datadir

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
)

// ErrLocked is returned when another process holds the base directory.
var ErrLocked = errors.New("base directory is locked by another process")

// Layout resolves the well known paths below a base directory.
type Layout struct {
	Base string
}

func New(base string) (Layout, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return Layout{}, fmt.Errorf("could not resolve base directory %s: %w", base, err)
	}

	return Layout{Base: abs}, nil
}

// ConfigDir holds the store documents and server.yaml.
func (l Layout) ConfigDir() string {
	return filepath.Join(l.Base, constants.ConfigDirectoryName)
}

// RepositoriesDir holds the repository roots.
func (l Layout) RepositoriesDir() string {
	return filepath.Join(l.Base, constants.RepositoriesDirectoryName)
}

// LegacyRepositoryDir is where 1.x kept the data of a repository.
func (l Layout) LegacyRepositoryDir(repositoryType, name string) string {
	return filepath.Join(l.RepositoriesDir(), repositoryType, filepath.FromSlash(name))
}

func (l Layout) LockPath() string {
	return filepath.Join(l.Base, constants.LockFileName)
}

// Ensure creates the base, config and repositories directories.
func (l Layout) Ensure(ctx context.Context, fs filesystem.Service) error {
	for _, dir := range []string{l.Base, l.ConfigDir(), l.RepositoriesDir()} {
		if err := fs.EnsureDirectory(ctx, dir); err != nil {
			return fmt.Errorf("could not create %s: %w", dir, err)
		}
	}

	return nil
}

// Lock is an acquired base directory lock.
type Lock struct {
	lock *flock.Flock
	log  *zap.SugaredLogger
}

// Acquire takes the OS level lock of the base directory, retrying with
// exponential backoff until timeout or ctx ends. It returns ErrLocked if
// the lock stays held by someone else.
func (l Layout) Acquire(ctx context.Context, timeout time.Duration) (*Lock, error) {
	log := logger.For(logger.ComponentDataDir)
	fileLock := flock.New(l.LockPath())

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = timeout

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++

		locked, err := fileLock.TryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("could not lock %s: %w", l.LockPath(), err))
		}

		if !locked {
			if attempt == 1 {
				log.Warnf("Base directory %s is locked, waiting up to %s", l.Base, timeout)
			}

			return ErrLocked
		}

		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}

	log.Debugf("Acquired lock %s", l.LockPath())

	return &Lock{lock: fileLock, log: log}, nil
}

// Release gives the base directory free again.
func (k *Lock) Release() error {
	if err := k.lock.Unlock(); err != nil {
		return fmt.Errorf("could not release %s: %w", k.lock.Path(), err)
	}

	return nil
}
