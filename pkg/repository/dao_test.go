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

package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/location"
	"github.com/united-manufacturing-hub/scmstore/pkg/models"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/scmstore/pkg/repository"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
	"github.com/united-manufacturing-hub/scmstore/pkg/update"
)

var _ = Describe("Repository DAO", func() {
	var (
		ctx      context.Context
		baseDir  string
		store    *memory.Store
		resolver *location.Resolver
		repos    *repository.DAO
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		baseDir, err = os.MkdirTemp("", "repository-dao-test-*")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(os.RemoveAll, baseDir)

		store = memory.NewStore()
		resolver, err = location.NewResolver(ctx, baseDir, store, filesystem.NewDefaultService())
		Expect(err).ToNot(HaveOccurred())

		repos, err = repository.NewDAO(ctx, resolver)
		Expect(err).ToNot(HaveOccurred())
	})

	It("adds a repository with a directory and finds it by name", func() {
		Expect(repos.Add(ctx, models.Repository{ID: "1", Namespace: "space", Name: "hog", Type: "git"})).To(Succeed())

		got, ok := repos.GetByNamespaceAndName("space", "hog")
		Expect(ok).To(BeTrue())
		Expect(got.ID).To(Equal("1"))
		Expect(got.CreationDate).ToNot(BeZero())

		path, ok := repos.Path("1")
		Expect(ok).To(BeTrue())
		Expect(path).To(Equal(filepath.Join(baseDir, "repositories", "1")))
	})

	It("rejects invalid repositories", func() {
		Expect(repos.Add(ctx, models.Repository{ID: "1", Namespace: "space", Name: "hog", Type: "cvs"})).ToNot(Succeed())
		Expect(repos.Add(ctx, models.Repository{ID: "", Namespace: "space", Name: "hog", Type: "git"})).ToNot(Succeed())
		Expect(repos.Add(ctx, models.Repository{ID: "..", Namespace: "space", Name: "hog", Type: "git"})).
			To(MatchError(models.ErrInvalidID))
		Expect(repos.GetAll()).To(BeEmpty())
	})

	It("protects archived repositories", func() {
		archived := models.Repository{ID: "1", Namespace: "space", Name: "hog", Type: "git", Archived: true}
		Expect(repos.Add(ctx, archived)).To(Succeed())

		archived.Description = "changed"
		Expect(errors.Is(repos.Modify(ctx, archived), repository.ErrArchived)).To(BeTrue())
		Expect(errors.Is(repos.Delete(ctx, archived), repository.ErrArchived)).To(BeTrue())

		archived.Archived = false
		Expect(repos.Modify(ctx, archived)).To(Succeed())
		Expect(repos.Delete(ctx, archived)).To(Succeed())
		Expect(repos.Contains("1")).To(BeFalse())
	})

	It("refuses a delete that was waiting while the repository got archived", func() {
		r := models.Repository{ID: "1", Namespace: "space", Name: "hog", Type: "git"}
		Expect(repos.Add(ctx, r)).To(Succeed())

		release := make(chan struct{})
		entered := make(chan struct{})
		store.SaveHook = func(string, string) error {
			close(entered)
			<-release

			return nil
		}

		archived := r
		archived.Archived = true

		archiving := make(chan error, 1)
		go func() { archiving <- repos.Modify(ctx, archived) }()
		Eventually(entered).Should(BeClosed())

		// The archive is not published yet, so the delete starts from an
		// unarchived snapshot and has to wait for the lock.
		current, ok := repos.Get("1")
		Expect(ok).To(BeTrue())
		Expect(current.Archived).To(BeFalse())

		deleting := make(chan error, 1)
		go func() { deleting <- repos.Delete(ctx, r) }()
		Consistently(deleting, 50*time.Millisecond).ShouldNot(Receive())

		store.SaveHook = nil
		close(release)

		Eventually(archiving).Should(Receive(BeNil()))

		var err error
		Eventually(deleting).Should(Receive(&err))
		Expect(errors.Is(err, repository.ErrArchived)).To(BeTrue())

		stored, ok := repos.Get("1")
		Expect(ok).To(BeTrue())
		Expect(stored.Archived).To(BeTrue())
	})

	It("reports unknown repositories as not found", func() {
		r := models.Repository{ID: "9", Namespace: "space", Name: "hog", Type: "git"}
		Expect(standarderrors.IsNotFound(repos.Modify(ctx, r))).To(BeTrue())
		Expect(standarderrors.IsNotFound(repos.Delete(ctx, r))).To(BeTrue())
	})

	It("renames duplicates found at startup", func() {
		Expect(resolver.SetLocation(ctx, models.Repository{ID: "a", Namespace: "space", Name: "hog", Type: "git"}, "repositories/a")).To(Succeed())

		// Older stores could contain two repositories with one name; write
		// the second one through a resolver that does not know the first.
		other := memory.NewStore()
		otherResolver, err := location.NewResolver(ctx, baseDir, other, filesystem.NewDefaultService())
		Expect(err).ToNot(HaveOccurred())
		Expect(otherResolver.SetLocation(ctx, models.Repository{ID: "b", Namespace: "space", Name: "hog", Type: "git"}, "repositories/b")).To(Succeed())

		merged := mergeStores(ctx, store, other)
		mergedResolver, err := location.NewResolver(ctx, baseDir, merged, filesystem.NewDefaultService())
		Expect(err).ToNot(HaveOccurred())

		dao, err := repository.NewDAO(ctx, mergedResolver)
		Expect(err).ToNot(HaveOccurred())

		_, ok := dao.GetByNamespaceAndName("space", "hog")
		Expect(ok).To(BeTrue())
		renamed, ok := dao.GetByNamespaceAndName("space", "hog-b-DUPLICATE")
		Expect(ok).To(BeTrue())
		Expect(renamed.ID).To(Equal("b"))
	})

	It("iterates all repositories", func() {
		for _, id := range []string{"1", "2", "3"} {
			Expect(repos.Add(ctx, models.Repository{ID: id, Namespace: "space", Name: "r" + id, Type: "hg"})).To(Succeed())
		}

		var ids []string
		Expect(repos.ForEachRepository(ctx, func(id string) error {
			ids = append(ids, id)

			return nil
		})).To(Succeed())
		Expect(ids).To(Equal([]string{"1", "2", "3"}))
	})

	It("marks new repositories as current for repository update steps", func() {
		registry := update.NewRegistry()
		ran := 0
		Expect(registry.RegisterRepositoryStep(update.NewRepositoryFuncStep("2.1.0", "scm.repository.config", func(context.Context, string) error {
			ran++

			return nil
		}))).To(Succeed())

		steps, err := update.NewStepStore(ctx, store)
		Expect(err).ToNot(HaveOccurred())

		engine := update.NewEngine(registry, steps, nil)

		repos, err = repository.NewDAO(ctx, resolver, repository.WithCreationListener(engine))
		Expect(err).ToNot(HaveOccurred())
		engine.SetRepositories(repos)

		Expect(repos.Add(ctx, models.Repository{ID: "new", Namespace: "space", Name: "fresh", Type: "git"})).To(Succeed())

		mark, ok := steps.RepositoryWatermark("scm.repository.config", "new")
		Expect(ok).To(BeTrue())
		Expect(mark.String()).To(Equal("2.1.0"))

		Expect(engine.Update(ctx)).To(Succeed())
		Expect(ran).To(BeZero())
	})
})
