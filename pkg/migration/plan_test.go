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

package migration_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/migration"
	"github.com/united-manufacturing-hub/scmstore/pkg/models"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

var _ = Describe("StrategyDAO", func() {
	var (
		ctx   context.Context
		store *memory.Store
		plan  *migration.StrategyDAO
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore()

		var err error
		plan, err = migration.NewStrategyDAO(ctx, store)
		Expect(err).ToNot(HaveOccurred())
	})

	It("persists the chosen strategy", func() {
		Expect(plan.Set(ctx, "42", migration.Copy, "space", "X")).To(Succeed())

		reloaded, err := migration.NewStrategyDAO(ctx, store)
		Expect(err).ToNot(HaveOccurred())

		entry, ok := reloaded.Get("42")
		Expect(ok).To(BeTrue())
		Expect(entry.Strategy).To(Equal(migration.Copy))
		Expect(entry.NewNamespace).To(Equal("space"))
		Expect(entry.NewName).To(Equal("X"))
	})

	It("accepts the same strategy again without writing", func() {
		Expect(plan.Set(ctx, "42", migration.Copy, "space", "X")).To(Succeed())
		saves := store.Saves(constants.StoreTypeConfigurationEntry, constants.StoreMigrationPlan)

		Expect(plan.Set(ctx, "42", migration.Copy, "space", "X")).To(Succeed())
		Expect(store.Saves(constants.StoreTypeConfigurationEntry, constants.StoreMigrationPlan)).To(Equal(saves))
	})

	It("never replaces a recorded strategy with another one", func() {
		Expect(plan.Set(ctx, "42", migration.Copy, "space", "X")).To(Succeed())

		err := plan.Set(ctx, "42", migration.Move, "space", "X")
		Expect(standarderrors.IsAlreadyExists(err)).To(BeTrue())

		entry, _ := plan.Get("42")
		Expect(entry.Strategy).To(Equal(migration.Copy))
	})

	It("records strategies in their canonical spelling", func() {
		Expect(plan.Set(ctx, "42", migration.Strategy(" copy "), "space", "X")).To(Succeed())

		entry, ok := plan.Get("42")
		Expect(ok).To(BeTrue())
		Expect(entry.Strategy).To(Equal(migration.Copy))

		_, err := migration.NewMigrator(entry.Strategy, GinkgoT().TempDir(), filesystem.NewMockFileSystem())
		Expect(err).ToNot(HaveOccurred())

		saves := store.Saves(constants.StoreTypeConfigurationEntry, constants.StoreMigrationPlan)
		Expect(plan.Set(ctx, "42", migration.Copy, "space", "X")).To(Succeed())
		Expect(plan.Set(ctx, "42", migration.Strategy("Copy"), "space", "X")).To(Succeed())
		Expect(store.Saves(constants.StoreTypeConfigurationEntry, constants.StoreMigrationPlan)).To(Equal(saves))

		Expect(standarderrors.IsAlreadyExists(plan.Set(ctx, "42", migration.Strategy("move"), "space", "X"))).To(BeTrue())
	})

	It("rejects ids that are not a directory name", func() {
		Expect(plan.Set(ctx, "../42", migration.Copy, "space", "X")).To(MatchError(models.ErrInvalidID))
		Expect(plan.All()).To(BeEmpty())
	})

	It("rejects unknown strategies", func() {
		Expect(plan.Set(ctx, "42", migration.Strategy("INLINE"), "space", "X")).ToNot(Succeed())
		Expect(plan.All()).To(BeEmpty())
	})
})
