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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/accounts"
	"github.com/united-manufacturing-hub/scmstore/pkg/config"
	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/datadir"
	"github.com/united-manufacturing-hub/scmstore/pkg/env"
	"github.com/united-manufacturing-hub/scmstore/pkg/lifecycle"
	"github.com/united-manufacturing-hub/scmstore/pkg/location"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/metrics"
	"github.com/united-manufacturing-hub/scmstore/pkg/migration"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence/file"
	"github.com/united-manufacturing-hub/scmstore/pkg/repository"
	"github.com/united-manufacturing-hub/scmstore/pkg/sentry"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
	"github.com/united-manufacturing-hub/scmstore/pkg/update"
	"github.com/united-manufacturing-hub/scmstore/pkg/version"
)

// defaultHome is used when SCM_HOME is not set.
const defaultHome = "/var/lib/scm"

// stores holds everything the server works with once startup finished.
type stores struct {
	repositories *repository.DAO
	users        *accounts.UserDAO
	groups       *accounts.GroupDAO
}

func main() {
	// Initialize the global logger first thing
	logger.Initialize()

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting scmstore %s", version.GetAppVersion())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, log)

	cancel()
	_ = logger.Sync()

	os.Exit(code)
}

func run(ctx context.Context, log *zap.SugaredLogger) int {
	overrides := env.NewReader(nil)

	home, ok := overrides.String("HOME")
	if !ok {
		home = defaultHome
	}

	layout, err := datadir.New(home)
	if err != nil {
		log.Errorf("Invalid base directory: %v", err)

		return standarderrors.ExitFailure
	}

	fs := filesystem.NewDefaultService()

	if err := layout.Ensure(ctx, fs); err != nil {
		log.Errorf("Failed to prepare base directory: %v", err)

		return standarderrors.ExitFailure
	}

	lock, err := layout.Acquire(ctx, constants.DataDirectoryLockTimeout)
	if err != nil {
		log.Errorf("Failed to lock base directory %s: %v", layout.Base, err)

		return standarderrors.ExitFailure
	}

	defer func() {
		if err := lock.Release(); err != nil {
			log.Warnf("Failed to release base directory lock: %v", err)
		}
	}()

	cfg, err := config.NewManager(layout.Base).WithFileSystemService(fs).GetConfigWithOverridesOrCreateNew(ctx, overrides)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)

		return standarderrors.ExitFailure
	}

	if cfg.Log.Level != "" {
		logger.SetLevel(cfg.Log.Level)
	}

	sentry.InitSentry(version.GetAppVersion(), cfg.Sentry.DSN, true)

	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Metrics.Port))
	life := lifecycle.New(version.GetAppVersion())
	statusServer := lifecycle.StartStatusServer(life, cfg.Status.Port)

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()

		if err := statusServer.Stop(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown status server: %v", err)
		}

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %v", err)
		}
	}()

	s, err := open(ctx, layout, fs, cfg, life, log)
	if err != nil {
		_ = life.Fail(ctx, err)
		reportStartupFailure(log, err)

		return standarderrors.ExitCode(err)
	}

	if err := life.MarkReady(ctx); err != nil {
		log.Errorf("Failed to mark server ready: %v", err)

		return standarderrors.ExitFailure
	}

	log.Infow("Server ready",
		"base", layout.Base,
		"repositories", len(s.repositories.GetAll()),
		"users", s.users.Len(),
		"groups", s.groups.Len(),
	)

	<-ctx.Done()

	_ = life.Stop(context.WithoutCancel(ctx))
	log.Info("Shutting down")

	return standarderrors.ExitOK
}

// open builds the stores and runs every pending update step before any of
// them is handed out.
func open(ctx context.Context, layout datadir.Layout, fs filesystem.Service, cfg config.Config, life *lifecycle.Lifecycle, log *zap.SugaredLogger) (*stores, error) {
	codec, err := persistence.CodecFor(cfg.Store.Format, cfg.Store.Compress)
	if err != nil {
		return nil, err
	}

	store := file.NewStore(layout.ConfigDir(), codec, fs)

	resolver, err := location.NewResolver(ctx, layout.Base, store, fs)
	if err != nil {
		return nil, err
	}

	plan, err := migration.NewStrategyDAO(ctx, store)
	if err != nil {
		return nil, err
	}

	steps, err := update.NewStepStore(ctx, store)
	if err != nil {
		return nil, err
	}

	v1, err := migration.NewRepositoryV1Step(ctx, resolver, fs, plan, store,
		migration.WithDefaultStrategy(cfg.DefaultStrategy()),
		migration.WithParallelism(cfg.MigrationParallelism()))
	if err != nil {
		return nil, err
	}

	registry := update.NewRegistry()
	if err := registry.Register(v1); err != nil {
		return nil, err
	}

	engine := update.NewEngine(registry, steps, nil)

	repositories, err := repository.NewDAO(ctx, resolver, repository.WithCreationListener(engine))
	if err != nil {
		return nil, err
	}

	engine.SetRepositories(repositories)

	if err := life.Updating(ctx); err != nil {
		return nil, err
	}

	if pending, err := v1.PendingRepositories(ctx); err == nil && len(pending) > 0 && cfg.DefaultStrategy() == "" {
		log.Warnf("%d repositories from version 1 have no migration strategy, configure migration.defaultStrategy or plan them explicitly",
			len(pending))
	}

	if err := engine.Update(ctx); err != nil {
		return nil, err
	}

	users, err := accounts.NewUserDAO(ctx, store)
	if err != nil {
		return nil, err
	}

	groups, err := accounts.NewGroupDAO(ctx, store)
	if err != nil {
		return nil, err
	}

	return &stores{repositories: repositories, users: users, groups: groups}, nil
}

func reportStartupFailure(log *zap.SugaredLogger, err error) {
	var updateErr *standarderrors.UpdateError
	if errors.As(err, &updateErr) {
		sentry.ReportUpdateFailure(log, updateErr.DataType, updateErr.Version, err)

		return
	}

	sentry.ReportIssue(err, sentry.IssueTypeFatal, log)
}
