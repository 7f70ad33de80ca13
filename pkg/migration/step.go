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

package migration

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/dao"
	"github.com/united-manufacturing-hub/scmstore/pkg/location"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/sentry"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// RepositoryV1Step migrates the 1.x repository database and the data of
// every repository listed in it.
type RepositoryV1Step struct {
	resolver        *location.Resolver
	fs              filesystem.Service
	plan            *StrategyDAO
	properties      *dao.DocumentDAO[V1Properties]
	defaultStrategy Strategy
	parallelism     int
	log             *zap.SugaredLogger
}

type StepOption func(*RepositoryV1Step)

// WithDefaultStrategy plans repositories without a plan entry with s instead
// of failing.
func WithDefaultStrategy(s Strategy) StepOption {
	return func(step *RepositoryV1Step) { step.defaultStrategy = s }
}

// WithParallelism bounds how many repositories are migrated at once.
func WithParallelism(n int) StepOption {
	return func(step *RepositoryV1Step) {
		if n > 0 {
			step.parallelism = n
		}
	}
}

func NewRepositoryV1Step(ctx context.Context, resolver *location.Resolver, fs filesystem.Service, plan *StrategyDAO, store persistence.EntityStore, opts ...StepOption) (*RepositoryV1Step, error) {
	properties, err := dao.New[V1Properties](ctx, store, constants.StoreTypeConfigurationEntry, constants.StoreRepositoryPropertiesV1,
		dao.WithKind("v1 repository properties"))
	if err != nil {
		return nil, err
	}

	step := &RepositoryV1Step{
		resolver:    resolver,
		fs:          fs,
		plan:        plan,
		properties:  properties,
		parallelism: constants.DefaultMigrationParallelism,
		log:         logger.For(logger.ComponentMigration),
	}

	for _, opt := range opts {
		opt(step)
	}

	return step, nil
}

func (s *RepositoryV1Step) TargetVersion() *semver.Version { return semver.MustParse(V1TargetVersion) }
func (s *RepositoryV1Step) AffectedDataType() string       { return V1DataType }
func (s *RepositoryV1Step) CoreUpdate()                    {}
func (s *RepositoryV1Step) String() string                 { return "repository-v1" }

// Properties returns the 1.x properties kept for a migrated repository.
func (s *RepositoryV1Step) Properties(id string) (V1Properties, bool) {
	return s.properties.Get(id)
}

func (s *RepositoryV1Step) databasePath() string {
	return filepath.Join(s.resolver.BaseDirectory(), constants.ConfigDirectoryName, v1DatabaseFile)
}

func (s *RepositoryV1Step) readDatabase(ctx context.Context) (v1Database, bool, error) {
	path := s.databasePath()

	exists, err := s.fs.PathExists(ctx, path)
	if err != nil || !exists {
		return v1Database{}, false, err
	}

	data, err := s.fs.ReadFile(ctx, path)
	if err != nil {
		return v1Database{}, false, err
	}

	return parseV1Database(data)
}

// DoUpdate plans every repository first, so that a missing plan entry stops
// the update before any data is touched, then migrates the repositories in
// parallel and finally moves the v1 database aside.
func (s *RepositoryV1Step) DoUpdate(ctx context.Context) error {
	db, ok, err := s.readDatabase(ctx)
	if err != nil {
		return err
	}

	if !ok {
		s.log.Info("No v1 repository database found")

		return nil
	}

	entries := make([]PlanEntry, len(db.Repositories))

	for i, repo := range db.Repositories {
		entry, err := s.planFor(ctx, repo)
		if err != nil {
			return err
		}

		entries[i] = entry
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, repo := range db.Repositories {
		entry := entries[i]

		g.Go(func() error {
			return s.migrate(gctx, repo, entry)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return s.backupDatabase(ctx)
}

func (s *RepositoryV1Step) planFor(ctx context.Context, repo V1Repository) (PlanEntry, error) {
	if _, err := repo.Legacy(); err != nil {
		return PlanEntry{}, fmt.Errorf("repository with id %s and name %s cannot be migrated: %w", repo.ID, repo.Name, err)
	}

	if entry, ok := s.plan.Get(repo.ID); ok {
		return entry, nil
	}

	if s.defaultStrategy == "" {
		return PlanEntry{}, fmt.Errorf("no strategy found for repository with id %s and name %s", repo.ID, repo.Name)
	}

	coordinates := repo.DefaultNamespaceAndName()
	if err := s.plan.Set(ctx, repo.ID, s.defaultStrategy, coordinates.Namespace, coordinates.Name); err != nil {
		return PlanEntry{}, err
	}

	entry, _ := s.plan.Get(repo.ID)

	return entry, nil
}

func (s *RepositoryV1Step) migrate(ctx context.Context, v1 V1Repository, entry PlanEntry) error {
	migrator, err := NewMigrator(entry.Strategy, s.resolver.BaseDirectory(), s.fs)
	if err != nil {
		return err
	}

	repo := v1.toRepository(entry)

	s.log.Infow("Migrating repository",
		"repository", v1.ID, "v1Name", v1.Name, "strategy", entry.Strategy, "target", repo.NamespaceAndName().String())

	legacy, err := v1.Legacy()
	if err != nil {
		return err
	}

	root, err := migrator.Migrate(ctx, legacy)
	if err != nil {
		sentry.ReportMigrationError(s.log, v1.ID, string(entry.Strategy), err)

		return err
	}

	if err := s.resolver.SetLocation(ctx, repo, root); err != nil {
		return s.registrationError(v1, entry, err)
	}

	err = s.properties.Atomic(ctx, "put", func(tx *dao.Tx[V1Properties]) error {
		return tx.Put(V1Properties{RepositoryID: v1.ID, Properties: v1.Properties})
	})
	if err != nil {
		return s.registrationError(v1, entry, err)
	}

	return nil
}

func (s *RepositoryV1Step) registrationError(v1 V1Repository, entry PlanEntry, err error) error {
	return &standarderrors.UpdateError{
		DataType:     V1DataType,
		Version:      V1TargetVersion,
		RepositoryID: v1.ID,
		Step:         string(entry.Strategy),
		Err:          err,
	}
}

func (s *RepositoryV1Step) backupDatabase(ctx context.Context) error {
	path := s.databasePath()
	backup := path + v1BackupSuffix

	s.log.Infof("Moving v1 repository database to %s", backup)

	if err := s.fs.Rename(ctx, path, backup); err != nil {
		return fmt.Errorf("could not backup v1 repository database: %w", err)
	}

	return nil
}

// PendingRepositories lists the 1.x repositories that have no plan entry yet.
func (s *RepositoryV1Step) PendingRepositories(ctx context.Context) ([]V1Repository, error) {
	db, ok, err := s.readDatabase(ctx)
	if err != nil || !ok {
		return nil, err
	}

	var pending []V1Repository

	for _, repo := range db.Repositories {
		if _, planned := s.plan.Get(repo.ID); !planned {
			pending = append(pending, repo)
		}
	}

	return pending, nil
}
