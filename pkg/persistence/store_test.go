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

package persistence_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence/file"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

type pathRecord struct {
	ID   string `json:"id"   yaml:"id"`
	Path string `json:"path" yaml:"path"`
}

func sampleDocument() persistence.Document[pathRecord] {
	return persistence.Document[pathRecord]{
		CreationTime: 1700000000000,
		LastModified: 1700000005000,
		Entities: map[string]pathRecord{
			"3ZOHKUePB3": {ID: "3ZOHKUePB3", Path: "repositories/3ZOHKUePB3"},
			"8AOHKUePB4": {ID: "8AOHKUePB4", Path: "/srv/scm/external/8AOHKUePB4"},
		},
	}
}

var _ = Describe("CodecFor", func() {
	It("rejects unknown formats", func() {
		_, err := persistence.CodecFor("xml", false)
		Expect(err).To(HaveOccurred())
	})

	It("appends .zst for compressed codecs", func() {
		c, err := persistence.CodecFor("yaml", true)
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Extension()).To(Equal("yaml.zst"))
	})
})

var _ = Describe("File store", func() {
	var (
		ctx    context.Context
		tmpDir string
		fs     *filesystem.MockFileSystem
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "file-store-test-*")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		fs = filesystem.NewMockFileSystem()
	})

	DescribeTable("round trips a document",
		func(format string, compress bool) {
			codec, err := persistence.CodecFor(format, compress)
			Expect(err).ToNot(HaveOccurred())

			store := file.NewStore(filepath.Join(tmpDir, "config"), codec, fs)
			Expect(store.Save(ctx, "configuration-entry", "repository-paths", sampleDocument())).To(Succeed())
			Expect(store.Path("repository-paths")).To(BeARegularFile())

			var loaded persistence.Document[pathRecord]
			found, err := store.Load(ctx, "configuration-entry", "repository-paths", &loaded)
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(loaded).To(Equal(sampleDocument()))
		},
		Entry("json", "json", false),
		Entry("yaml", "yaml", false),
		Entry("compressed json", "json", true),
		Entry("compressed yaml", "yaml", true),
	)

	It("reports a missing document as not found", func() {
		store := file.NewStore(tmpDir, persistence.JSONCodec{}, fs)

		var loaded persistence.Document[pathRecord]
		found, err := store.Load(ctx, "configuration-entry", "users", &loaded)
		Expect(err).ToNot(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("keeps the previous document when the write fails", func() {
		store := file.NewStore(tmpDir, persistence.JSONCodec{}, fs)
		Expect(store.Save(ctx, "configuration-entry", "users", sampleDocument())).To(Succeed())
		before, err := os.ReadFile(store.Path("users"))
		Expect(err).ToNot(HaveOccurred())

		fs.WriteFileFunc = func(context.Context, string, []byte, os.FileMode) error {
			return errors.New("no space left on device")
		}

		err = store.Save(ctx, "configuration-entry", "users", persistence.Document[pathRecord]{})
		Expect(err).To(HaveOccurred())

		var storeErr *standarderrors.StoreError
		Expect(errors.As(err, &storeErr)).To(BeTrue())
		Expect(storeErr.Op).To(Equal("save"))

		after, err := os.ReadFile(store.Path("users"))
		Expect(err).ToNot(HaveOccurred())
		Expect(after).To(Equal(before))

		entries, err := os.ReadDir(tmpDir)
		Expect(err).ToNot(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("surfaces corrupt documents as store errors", func() {
		store := file.NewStore(tmpDir, persistence.JSONCodec{}, fs)
		Expect(os.WriteFile(store.Path("groups"), []byte("{not json"), 0o644)).To(Succeed())

		var loaded persistence.Document[pathRecord]
		_, err := store.Load(ctx, "configuration-entry", "groups", &loaded)

		var storeErr *standarderrors.StoreError
		Expect(errors.As(err, &storeErr)).To(BeTrue())
		Expect(storeErr.Name).To(Equal("groups"))
	})

	It("refuses store names that escape the directory", func() {
		store := file.NewStore(tmpDir, persistence.JSONCodec{}, fs)
		Expect(store.Save(ctx, "configuration-entry", "../outside", sampleDocument())).ToNot(Succeed())
	})
})

var _ = Describe("Memory store", func() {
	It("hands out independent copies", func() {
		ctx := context.Background()
		store := memory.NewStore()
		Expect(store.Save(ctx, "configuration-entry", "repository-paths", sampleDocument())).To(Succeed())

		var first persistence.Document[pathRecord]
		_, err := store.Load(ctx, "configuration-entry", "repository-paths", &first)
		Expect(err).ToNot(HaveOccurred())
		first.Entities["3ZOHKUePB3"] = pathRecord{ID: "3ZOHKUePB3", Path: "changed"}

		var second persistence.Document[pathRecord]
		_, err = store.Load(ctx, "configuration-entry", "repository-paths", &second)
		Expect(err).ToNot(HaveOccurred())
		Expect(second.Entities["3ZOHKUePB3"].Path).To(Equal("repositories/3ZOHKUePB3"))
		Expect(store.Saves("configuration-entry", "repository-paths")).To(Equal(1))
	})

	It("returns hook failures without storing anything", func() {
		ctx := context.Background()
		store := memory.NewStore()
		store.SaveHook = func(string, string) error { return errors.New("boom") }

		Expect(store.Save(ctx, "configuration-entry", "users", sampleDocument())).ToNot(Succeed())
		Expect(store.Raw("configuration-entry", "users")).To(BeNil())
	})
})
