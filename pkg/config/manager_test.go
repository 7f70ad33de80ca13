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

package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/config"
	"github.com/united-manufacturing-hub/scmstore/pkg/env"
	"github.com/united-manufacturing-hub/scmstore/pkg/migration"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
)

var _ = Describe("Manager", func() {
	var (
		ctx     context.Context
		baseDir string
		fs      *filesystem.MockFileSystem
		manager *config.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		baseDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(os.RemoveAll, baseDir)

		fs = filesystem.NewMockFileSystem()
		manager = config.NewManager(baseDir).WithFileSystemService(fs)
	})

	It("stores the file in the config directory", func() {
		Expect(manager.Path()).To(Equal(filepath.Join(baseDir, "config", "server.yaml")))
	})

	It("fails to read a configuration that was never written", func() {
		_, err := manager.GetConfig(ctx)
		Expect(err).To(MatchError(ContainSubstring("does not exist")))
	})

	It("creates the defaults on first start", func() {
		cfg, err := manager.GetConfigWithOverridesOrCreateNew(ctx, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
		Expect(manager.Path()).To(BeAnExistingFile())

		read, err := manager.GetConfig(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(read).To(Equal(cfg))
	})

	It("applies environment overrides and persists them", func() {
		overrides := env.NewReader(env.FromMap(map[string]string{
			"SCM_STORE_FORMAT":          "yaml",
			"SCM_STORE_COMPRESS":        "yes",
			"SCM_MIGRATION_STRATEGY":    "move",
			"SCM_MIGRATION_PARALLELISM": "3",
			"SCM_METRICS_PORT":          "9100",
		}))

		cfg, err := manager.GetConfigWithOverridesOrCreateNew(ctx, overrides)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Store.Format).To(Equal("yaml"))
		Expect(cfg.Store.Compress).To(BeTrue())
		Expect(cfg.DefaultStrategy()).To(Equal(migration.Move))
		Expect(cfg.MigrationParallelism()).To(Equal(3))
		Expect(cfg.Metrics.Port).To(Equal(9100))

		cfg, err = manager.GetConfigWithOverridesOrCreateNew(ctx, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Metrics.Port).To(Equal(9100))
	})

	It("keeps values from an existing file", func() {
		Expect(os.MkdirAll(filepath.Dir(manager.Path()), 0o755)).To(Succeed())
		Expect(os.WriteFile(manager.Path(), []byte("status:\n  port: 9000\n"), 0o644)).To(Succeed())

		cfg, err := manager.GetConfigWithOverridesOrCreateNew(ctx, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Status.Port).To(Equal(9000))
		Expect(cfg.Metrics.Port).To(Equal(config.Default().Metrics.Port))
	})

	It("rejects invalid overrides without writing", func() {
		overrides := env.NewReader(env.FromMap(map[string]string{"SCM_MIGRATION_STRATEGY": "inline"}))

		_, err := manager.GetConfigWithOverridesOrCreateNew(ctx, overrides)
		Expect(err).To(HaveOccurred())
		Expect(manager.Path()).ToNot(BeAnExistingFile())

		overrides = env.NewReader(env.FromMap(map[string]string{"SCM_STATUS_PORT": "not-a-port"}))
		_, err = manager.GetConfigWithOverridesOrCreateNew(ctx, overrides)
		Expect(err).To(HaveOccurred())
	})

	It("updates atomically", func() {
		_, err := manager.GetConfigWithOverridesOrCreateNew(ctx, nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(manager.AtomicUpdate(ctx, func(c *config.Config) error {
			c.Migration.DefaultStrategy = "COPY"

			return nil
		})).To(Succeed())

		cfg, err := manager.GetConfig(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.DefaultStrategy()).To(Equal(migration.Copy))

		writes := fs.Calls("WriteFile")
		Expect(manager.AtomicUpdate(ctx, func(*config.Config) error { return errors.New("abort") })).ToNot(Succeed())
		Expect(manager.AtomicUpdate(ctx, func(c *config.Config) error {
			c.Status.Port = c.Metrics.Port

			return nil
		})).ToNot(Succeed())
		Expect(fs.Calls("WriteFile")).To(Equal(writes))
	})

	It("gives up when the update lock is not released in time", func() {
		_, err := manager.GetConfigWithOverridesOrCreateNew(ctx, nil)
		Expect(err).ToNot(HaveOccurred())

		release := make(chan struct{})
		entered := make(chan struct{})

		go func() {
			defer GinkgoRecover()

			_ = manager.AtomicUpdate(ctx, func(*config.Config) error {
				close(entered)
				<-release

				return nil
			})
		}()

		<-entered

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		Expect(manager.AtomicUpdate(short, func(*config.Config) error { return nil })).ToNot(Succeed())
		close(release)
	})
})
