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

package filesystem_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
)

func writeTree(root string, files map[string]string) {
	for rel, content := range files {
		p := filepath.Join(root, rel)
		Expect(os.MkdirAll(filepath.Dir(p), 0o755)).To(Succeed())
		Expect(os.WriteFile(p, []byte(content), 0o644)).To(Succeed())
	}
}

func readTree(root string) map[string]string {
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		rel, _ := filepath.Rel(root, p)
		out[rel] = string(data)

		return nil
	})
	Expect(err).ToNot(HaveOccurred())

	return out
}

var _ = Describe("Tree operations", func() {
	var (
		ctx    context.Context
		tmpDir string
		fs     *filesystem.MockFileSystem
		files  map[string]string
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "filesystem-tree-test-*")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		fs = filesystem.NewMockFileSystem()
		files = map[string]string{
			"HEAD":                 "ref: refs/heads/main\n",
			"config":               "[core]\n\tbare = true\n",
			"objects/ab/cdef":      "blob",
			"refs/heads/main":      "0123456789abcdef\n",
			"hooks/post-update.sh": "#!/bin/sh\nexit 0\n",
		}
		writeTree(filepath.Join(tmpDir, "src"), files)
	})

	Describe("CopyDirectory", func() {
		It("copies every file and leaves the source untouched", func() {
			stats, err := filesystem.CopyDirectory(ctx, fs, filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "dst"), filesystem.CopyOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.Copied).To(Equal(len(files)))
			Expect(stats.Skipped).To(BeZero())

			Expect(readTree(filepath.Join(tmpDir, "dst"))).To(Equal(files))
			Expect(readTree(filepath.Join(tmpDir, "src"))).To(Equal(files))
		})

		It("skips files that were already copied on a second run", func() {
			src, dst := filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "dst")

			_, err := filesystem.CopyDirectory(ctx, fs, src, dst, filesystem.CopyOptions{})
			Expect(err).ToNot(HaveOccurred())

			stats, err := filesystem.CopyDirectory(ctx, fs, src, dst, filesystem.CopyOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.Copied).To(BeZero())
			Expect(stats.Skipped).To(Equal(len(files)))
		})

		It("rewrites a partially copied file", func() {
			src, dst := filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "dst")
			writeTree(dst, map[string]string{"config": "[co"})

			var actions []filesystem.CopyAction
			_, err := filesystem.CopyDirectory(ctx, fs, src, dst, filesystem.CopyOptions{
				OnFile: func(rel string, action filesystem.CopyAction, _ int64) {
					if rel == "config" {
						actions = append(actions, action)
					}
				},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(actions).To(Equal([]filesystem.CopyAction{filesystem.ActionCopied}))
			Expect(readTree(dst)).To(Equal(files))
		})

		It("names source and target when a file cannot be copied", func() {
			fs.CopyFileFunc = func(context.Context, string, string, os.FileMode) (int64, error) {
				return 0, errors.New("disk full")
			}

			_, err := filesystem.CopyDirectory(ctx, fs, filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "dst"), filesystem.CopyOptions{})
			Expect(err).To(HaveOccurred())

			var fileErr *filesystem.FileError
			Expect(errors.As(err, &fileErr)).To(BeTrue())
			Expect(fileErr.Source).To(HavePrefix(filepath.Join(tmpDir, "src")))
			Expect(fileErr.Target).To(HavePrefix(filepath.Join(tmpDir, "dst")))
			Expect(err.Error()).To(ContainSubstring("disk full"))
		})
	})

	Describe("MoveDirectory", func() {
		It("renames on the same device", func() {
			src, dst := filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "new", "data")

			result, err := filesystem.MoveDirectory(ctx, fs, src, dst, filesystem.CopyOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(filesystem.MovedByRename))
			Expect(readTree(dst)).To(Equal(files))
			Expect(src).ToNot(BeADirectory())
			Expect(fs.Calls("CopyFile")).To(BeZero())
		})

		It("copies and deletes across devices", func() {
			fs.SameDeviceFunc = func(context.Context, string, string) (bool, error) {
				return false, nil
			}
			src, dst := filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "new", "data")

			result, err := filesystem.MoveDirectory(ctx, fs, src, dst, filesystem.CopyOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(filesystem.MovedByCopy))
			Expect(readTree(dst)).To(Equal(files))
			Expect(src).ToNot(BeADirectory())
		})

		It("treats a missing source with an existing target as already moved", func() {
			src, dst := filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "new", "data")

			_, err := filesystem.MoveDirectory(ctx, fs, src, dst, filesystem.CopyOptions{})
			Expect(err).ToNot(HaveOccurred())

			result, err := filesystem.MoveDirectory(ctx, fs, src, dst, filesystem.CopyOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(filesystem.AlreadyMoved))
		})

		It("fails when neither source nor target exist", func() {
			_, err := filesystem.MoveDirectory(ctx, fs, filepath.Join(tmpDir, "nope"), filepath.Join(tmpDir, "dst"), filesystem.CopyOptions{})
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})
	})

	Describe("DefaultService", func() {
		It("returns the context error once the context is done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := filesystem.NewDefaultService().ReadFile(cctx, filepath.Join(tmpDir, "src", "HEAD"))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("computes equal checksums for equal content", func() {
			svc := filesystem.NewDefaultService()
			writeTree(tmpDir, map[string]string{"a": "same", "b": "same", "c": "different"})

			a, err := svc.Checksum(ctx, filepath.Join(tmpDir, "a"))
			Expect(err).ToNot(HaveOccurred())
			b, err := svc.Checksum(ctx, filepath.Join(tmpDir, "b"))
			Expect(err).ToNot(HaveOccurred())
			c, err := svc.Checksum(ctx, filepath.Join(tmpDir, "c"))
			Expect(err).ToNot(HaveOccurred())

			Expect(a).To(Equal(b))
			Expect(a).ToNot(Equal(c))
		})
	})
})
