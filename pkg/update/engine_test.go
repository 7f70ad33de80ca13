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

package update_test

import (
	"context"
	"errors"
	"sync"

	"github.com/Masterminds/semver/v3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
	"github.com/united-manufacturing-hub/scmstore/pkg/update"
)

// journal records the order steps ran in.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.entries...)
}

func (j *journal) step(version, dataType string) *update.FuncStep {
	return update.NewFuncStep(version, dataType, func(context.Context) error {
		j.add(dataType + "@" + version)

		return nil
	})
}

type repoList []string

func (r repoList) ForEachRepository(ctx context.Context, fn func(id string) error) error {
	for _, id := range r {
		if err := fn(id); err != nil {
			return err
		}
	}

	return nil
}

var _ = Describe("Engine", func() {
	var (
		ctx      context.Context
		store    *memory.Store
		steps    *update.StepStore
		registry *update.Registry
		j        *journal
	)

	newEngine := func(repos update.RepositoryIterator) *update.Engine {
		return update.NewEngine(registry, steps, repos)
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore()
		registry = update.NewRegistry()
		j = &journal{}

		var err error
		steps, err = update.NewStepStore(ctx, store)
		Expect(err).ToNot(HaveOccurred())
	})

	It("runs only steps above the watermark, in version order", func() {
		Expect(steps.Record(ctx, "scm.user", "", semver.MustParse("1.0.0"), 1)).To(Succeed())

		Expect(registry.Register(
			j.step("2.0.0", "scm.user"),
			j.step("1.0.0", "scm.user"),
			j.step("1.2.0", "scm.user"),
		)).To(Succeed())

		Expect(newEngine(nil).Update(ctx)).To(Succeed())
		Expect(j.list()).To(Equal([]string{"scm.user@1.2.0", "scm.user@2.0.0"}))

		mark, ok := steps.Watermark("scm.user")
		Expect(ok).To(BeTrue())
		Expect(mark.String()).To(Equal("2.0.0"))
	})

	It("does nothing on a second run, also after a restart", func() {
		Expect(registry.Register(j.step("1.0.0", "scm.user"), j.step("1.1.0", "scm.group"))).To(Succeed())
		Expect(newEngine(nil).Update(ctx)).To(Succeed())
		Expect(j.list()).To(HaveLen(2))

		reloaded, err := update.NewStepStore(ctx, store)
		Expect(err).ToNot(HaveOccurred())
		Expect(update.NewEngine(registry, reloaded, nil).Update(ctx)).To(Succeed())
		Expect(j.list()).To(HaveLen(2))
	})

	It("orders core steps before others and global before repository steps", func() {
		Expect(registry.RegisterRepositoryStep(update.NewRepositoryFuncStep("1.1.0", "scm.repo", func(_ context.Context, id string) error {
			j.add("repo:" + id)

			return nil
		}))).To(Succeed())
		Expect(registry.Register(
			j.step("1.1.0", "plugin.data"),
			update.CoreFuncStep{FuncStep: j.step("1.1.0", "scm.core")},
			j.step("1.0.0", "plugin.old"),
		)).To(Succeed())

		Expect(newEngine(repoList{"r1", "r2"}).Update(ctx)).To(Succeed())
		Expect(j.list()).To(Equal([]string{
			"plugin.old@1.0.0",
			"scm.core@1.1.0",
			"plugin.data@1.1.0",
			"repo:r1",
			"repo:r2",
		}))

		mark, ok := steps.RepositoryWatermark("scm.repo", "r2")
		Expect(ok).To(BeTrue())
		Expect(mark.String()).To(Equal("1.1.0"))
	})

	It("stops at the first failure and keeps earlier progress", func() {
		Expect(registry.Register(
			j.step("1.0.0", "scm.user"),
			update.NewFuncStep("1.1.0", "scm.user", func(context.Context) error {
				return errors.New("malformed users.xml")
			}),
			j.step("1.2.0", "scm.user"),
		)).To(Succeed())

		err := newEngine(nil).Update(ctx)

		var updateErr *standarderrors.UpdateError
		Expect(errors.As(err, &updateErr)).To(BeTrue())
		Expect(updateErr.DataType).To(Equal("scm.user"))
		Expect(updateErr.Version).To(Equal("1.1.0"))
		Expect(err.Error()).To(ContainSubstring("malformed users.xml"))
		Expect(standarderrors.ExitCode(err)).To(Equal(standarderrors.ExitUpdateFailed))

		Expect(j.list()).To(Equal([]string{"scm.user@1.0.0"}))

		mark, _ := steps.Watermark("scm.user")
		Expect(mark.String()).To(Equal("1.0.0"))
	})

	It("rejects two steps for the same data type and version", func() {
		Expect(registry.Register(j.step("1.0.0", "scm.user"))).To(Succeed())
		Expect(registry.Register(j.step("1.0.0", "scm.user"))).ToNot(Succeed())
	})

	It("registers nothing from a batch that contains a duplicate", func() {
		Expect(registry.Register(
			j.step("1.0.0", "scm.group"),
			j.step("1.1.0", "scm.user"),
			j.step("1.1.0", "scm.user"),
		)).To(MatchError(ContainSubstring("duplicate update step for scm.user to version 1.1.0")))

		Expect(registry.RegisterRepositoryStep(
			update.NewRepositoryFuncStep("1.0.0", "scm.repo", func(context.Context, string) error { return nil }),
			update.NewRepositoryFuncStep("1.0.0", "scm.repo", func(context.Context, string) error { return nil }),
		)).ToNot(Succeed())

		Expect(newEngine(repoList{"r1"}).Update(ctx)).To(Succeed())
		Expect(j.list()).To(BeEmpty())

		Expect(registry.Register(j.step("1.0.0", "scm.group"), j.step("1.1.0", "scm.user"))).To(Succeed())
		Expect(newEngine(nil).Update(ctx)).To(Succeed())
		Expect(j.list()).To(Equal([]string{"scm.group@1.0.0", "scm.user@1.1.0"}))
	})

	It("names the repository when a repository step fails", func() {
		Expect(registry.RegisterRepositoryStep(update.NewRepositoryFuncStep("2.0.0", "scm.repo", func(_ context.Context, id string) error {
			if id == "broken" {
				return errors.New("cannot read config")
			}

			return nil
		}))).To(Succeed())

		err := newEngine(repoList{"fine", "broken"}).Update(ctx)

		var updateErr *standarderrors.UpdateError
		Expect(errors.As(err, &updateErr)).To(BeTrue())
		Expect(updateErr.RepositoryID).To(Equal("broken"))

		_, ok := steps.RepositoryWatermark("scm.repo", "fine")
		Expect(ok).To(BeTrue())
	})

	It("skips repository steps for repositories created in the current format", func() {
		Expect(registry.RegisterRepositoryStep(update.NewRepositoryFuncStep("2.0.0", "scm.repo", func(_ context.Context, id string) error {
			j.add("repo:" + id)

			return nil
		}))).To(Succeed())

		engine := newEngine(repoList{"new"})
		Expect(engine.MarkRepositoryCurrent(ctx, "new")).To(Succeed())
		Expect(engine.Update(ctx)).To(Succeed())
		Expect(engine.UpdateRepository(ctx, "new")).To(Succeed())
		Expect(j.list()).To(BeEmpty())

		Expect(engine.UpdateRepository(ctx, "imported")).To(Succeed())
		Expect(j.list()).To(Equal([]string{"repo:imported"}))
	})

	It("fails the step when its progress cannot be saved", func() {
		Expect(registry.Register(j.step("1.0.0", "scm.user"))).To(Succeed())
		store.SaveHook = func(string, string) error { return errors.New("read-only") }

		err := newEngine(nil).Update(ctx)
		var updateErr *standarderrors.UpdateError
		Expect(errors.As(err, &updateErr)).To(BeTrue())
		Expect(updateErr.Version).To(Equal("1.0.0"))
	})
})
