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

package update

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/metrics"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// Engine executes pending steps.
type Engine struct {
	registry *Registry
	store    *StepStore
	repos    RepositoryIterator
	now      func() time.Time
	log      *zap.SugaredLogger
}

// NewEngine creates an engine. repos may be nil when no repository steps are registered.
func NewEngine(registry *Registry, store *StepStore, repos RepositoryIterator) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		repos:    repos,
		now:      time.Now,
		log:      logger.For(logger.ComponentUpdateEngine),
	}
}

// SetRepositories sets the repositories repository steps run for. Startup
// needs this when the repository store itself is created by an update step.
func (e *Engine) SetRepositories(repos RepositoryIterator) {
	e.repos = repos
}

// wrapper unifies global and repository steps for ordering.
type wrapper struct {
	global     Step
	repository RepositoryStep
	index      int
}

func (w wrapper) version() *semver.Version {
	if w.global != nil {
		return w.global.TargetVersion()
	}

	return w.repository.TargetVersion()
}

func (w wrapper) dataType() string {
	if w.global != nil {
		return w.global.AffectedDataType()
	}

	return w.repository.AffectedDataType()
}

func (w wrapper) isCore() bool {
	if w.global == nil {
		return false
	}

	_, ok := w.global.(CoreStep)

	return ok
}

func (w wrapper) name() string {
	if w.global != nil {
		return stepName(w.global)
	}

	return stepName(w.repository)
}

func stepName(s any) string {
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}

	return fmt.Sprintf("%T", s)
}

// ordered sorts by version, then global before repository steps, then core
// before other steps, then registration order.
func ordered(global []Step, repository []RepositoryStep) []wrapper {
	all := make([]wrapper, 0, len(global)+len(repository))

	for _, s := range global {
		all = append(all, wrapper{global: s, index: len(all)})
	}

	for _, s := range repository {
		all = append(all, wrapper{repository: s, index: len(all)})
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]

		if c := a.version().Compare(b.version()); c != 0 {
			return c < 0
		}

		if (a.global != nil) != (b.global != nil) {
			return a.global != nil
		}

		if a.isCore() != b.isCore() {
			return a.isCore()
		}

		return a.index < b.index
	})

	return all
}

// Update runs every step whose target version is above the persisted
// watermark of its data type. It stops at the first failure and returns an
// *standarderrors.UpdateError; steps that succeeded before stay recorded.
func (e *Engine) Update(ctx context.Context) error {
	global, repository := e.registry.snapshot()

	executed := 0

	for _, w := range ordered(global, repository) {
		if w.global != nil {
			ran, err := e.runGlobal(ctx, w)
			if err != nil {
				return err
			}

			if ran {
				executed++
			}

			continue
		}

		if e.repos == nil {
			continue
		}

		err := e.repos.ForEachRepository(ctx, func(id string) error {
			ran, err := e.runRepository(ctx, w, id)
			if ran {
				executed++
			}

			return err
		})
		if err != nil {
			return err
		}
	}

	if executed > 0 {
		e.log.Infof("Executed %d update steps", executed)
	} else {
		e.log.Debug("No pending update steps")
	}

	return nil
}

// UpdateRepository runs pending repository steps for a single repository.
func (e *Engine) UpdateRepository(ctx context.Context, repositoryID string) error {
	_, repository := e.registry.snapshot()

	for _, w := range ordered(nil, repository) {
		if _, err := e.runRepository(ctx, w, repositoryID); err != nil {
			return err
		}
	}

	return nil
}

// MarkRepositoryCurrent records all repository steps as applied for a
// repository that was created in the current format.
func (e *Engine) MarkRepositoryCurrent(ctx context.Context, repositoryID string) error {
	_, repository := e.registry.snapshot()

	for _, w := range ordered(nil, repository) {
		if err := e.store.Record(ctx, w.dataType(), repositoryID, w.version(), e.now().UnixMilli()); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) runGlobal(ctx context.Context, w wrapper) (bool, error) {
	if !e.store.pending(w.dataType(), "", w.version()) {
		return false, nil
	}

	e.log.Infof("Running update step %s for %s to version %s", w.name(), w.dataType(), w.version())

	err := w.global.DoUpdate(ctx)

	return true, e.finish(ctx, w, "", err)
}

func (e *Engine) runRepository(ctx context.Context, w wrapper, repositoryID string) (bool, error) {
	if !e.store.pending(w.dataType(), repositoryID, w.version()) {
		return false, nil
	}

	e.log.Infof("Running update step %s for %s of repository %s to version %s", w.name(), w.dataType(), repositoryID, w.version())

	err := w.repository.DoUpdateRepository(ctx, repositoryID)

	return true, e.finish(ctx, w, repositoryID, err)
}

// finish records a successful step or converts the failure.
func (e *Engine) finish(ctx context.Context, w wrapper, repositoryID string, stepErr error) error {
	version := w.version().String()

	if stepErr == nil {
		stepErr = e.store.Record(ctx, w.dataType(), repositoryID, w.version(), e.now().UnixMilli())
	}

	metrics.RecordUpdateStep(w.dataType(), version, stepErr)

	if stepErr == nil {
		return nil
	}

	// Steps may already report which repository and files failed.
	var updateErr *standarderrors.UpdateError
	if errors.As(stepErr, &updateErr) {
		return stepErr
	}

	return &standarderrors.UpdateError{
		DataType:     w.dataType(),
		Version:      version,
		RepositoryID: repositoryID,
		Step:         w.name(),
		Err:          stepErr,
	}
}
