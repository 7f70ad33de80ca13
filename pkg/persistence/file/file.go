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

// Package file persists each store as one file below the configuration
// directory. Saves go through a temporary file and a rename so a crash never
// leaves a truncated document behind.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/ctxutil/ctxrwmutex"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/metrics"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/sentry"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// Store implements persistence.EntityStore on top of a filesystem.Service.
type Store struct {
	dir   string
	codec persistence.Codec
	fs    filesystem.Service
	log   *zap.SugaredLogger

	locksMu sync.Mutex
	locks   map[string]*ctxrwmutex.CtxRWMutex
}

// NewStore creates a store writing <dir>/<name>.<codec extension>.
func NewStore(dir string, codec persistence.Codec, fs filesystem.Service) *Store {
	return &Store{
		dir:   dir,
		codec: codec,
		fs:    fs,
		log:   logger.For(logger.ComponentFileStore),
		locks: make(map[string]*ctxrwmutex.CtxRWMutex),
	}
}

// Path returns the file backing the named store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+"."+s.codec.Extension())
}

func (s *Store) lockFor(path string) *ctxrwmutex.CtxRWMutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[path]
	if !ok {
		l = ctxrwmutex.NewCtxRWMutex(constants.AmountReadersForStoreFile)
		s.locks[path] = l
	}

	return l
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid store name %q", name)
	}

	return nil
}

// Load implements persistence.EntityStore.
func (s *Store) Load(ctx context.Context, storeType, name string, into any) (found bool, err error) {
	start := time.Now()

	defer func() {
		metrics.RecordStoreOp("load", name, time.Since(start), err)
	}()

	if err := validateName(name); err != nil {
		return false, &standarderrors.StoreError{Op: "load", StoreType: storeType, Name: name, Err: err}
	}

	path := s.Path(name)

	lock := s.lockFor(path)
	if err := lock.RLock(ctx); err != nil {
		return false, err
	}
	defer lock.RUnlock()

	exists, err := s.fs.PathExists(ctx, path)
	if err != nil {
		return false, &standarderrors.StoreError{Op: "load", StoreType: storeType, Name: name, Err: err}
	}

	if !exists {
		return false, nil
	}

	data, err := s.fs.ReadFile(ctx, path)
	if err != nil {
		return false, &standarderrors.StoreError{Op: "load", StoreType: storeType, Name: name, Err: err}
	}

	if err := s.codec.Unmarshal(data, into); err != nil {
		storeErr := &standarderrors.StoreError{Op: "load", StoreType: storeType, Name: name, Err: fmt.Errorf("failed to decode %s: %w", path, err)}
		sentry.ReportStoreError(s.log, name, "load", storeErr)

		return false, storeErr
	}

	return true, nil
}

// Save implements persistence.EntityStore.
func (s *Store) Save(ctx context.Context, storeType, name string, doc any) (err error) {
	start := time.Now()

	defer func() {
		metrics.RecordStoreOp("save", name, time.Since(start), err)
	}()

	if err := validateName(name); err != nil {
		return &standarderrors.StoreError{Op: "save", StoreType: storeType, Name: name, Err: err}
	}

	data, err := s.codec.Marshal(doc)
	if err != nil {
		storeErr := &standarderrors.StoreError{Op: "save", StoreType: storeType, Name: name, Err: fmt.Errorf("failed to encode document: %w", err)}
		sentry.ReportStoreError(s.log, name, "save", storeErr)

		return storeErr
	}

	path := s.Path(name)

	lock := s.lockFor(path)
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := s.writeAtomic(ctx, path, data); err != nil {
		storeErr := &standarderrors.StoreError{Op: "save", StoreType: storeType, Name: name, Err: err}
		sentry.ReportStoreError(s.log, name, "save", storeErr)

		return storeErr
	}

	s.log.Debugf("Saved store %s (%d bytes)", name, len(data))

	return nil
}

// writeAtomic writes data next to path and renames it into place.
func (s *Store) writeAtomic(ctx context.Context, path string, data []byte) error {
	if err := s.fs.EnsureDirectory(ctx, filepath.Dir(path)); err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	// Cleanup must run even when ctx was cancelled half way.
	cleanupCtx := context.WithoutCancel(ctx)

	if err := s.fs.WriteFile(ctx, tmp, data, constants.FilePermissions); err != nil {
		if rmErr := s.fs.Remove(cleanupCtx, tmp); rmErr != nil && !isNotExist(rmErr) {
			s.log.Warnf("Could not remove temporary file %s: %v", tmp, rmErr)
		}

		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := s.fs.Rename(ctx, tmp, path); err != nil {
		if rmErr := s.fs.Remove(cleanupCtx, tmp); rmErr != nil && !isNotExist(rmErr) {
			s.log.Warnf("Could not remove temporary file %s: %v", tmp, rmErr)
		}

		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
