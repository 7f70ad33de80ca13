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

package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/metrics"
)

// DefaultService runs every operation against the local filesystem. Each
// operation runs in its own goroutine so a done context returns immediately,
// even when the underlying syscall is stuck on a slow disk.
type DefaultService struct{}

// NewDefaultService creates a new DefaultService.
func NewDefaultService() *DefaultService {
	return &DefaultService{}
}

type result[T any] struct {
	val T
	err error
}

// run executes fn unless ctx is already done and records the operation metric.
func run[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	start := time.Now()

	var zero T

	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("failed to check context: %w", err)
	}

	resCh := make(chan result[T], 1)

	go func() {
		v, err := fn()
		resCh <- result[T]{val: v, err: err}
	}()

	select {
	case res := <-resCh:
		metrics.RecordFilesystemOp(op, time.Since(start), res.err)

		return res.val, res.err
	case <-ctx.Done():
		err := ctx.Err()
		metrics.RecordFilesystemOp(op, time.Since(start), err)

		return zero, err
	}
}

func runErr(ctx context.Context, op string, fn func() error) error {
	_, err := run(ctx, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})

	return err
}

// EnsureDirectory creates a directory if it doesn't exist.
func (s *DefaultService) EnsureDirectory(ctx context.Context, path string) error {
	err := runErr(ctx, "EnsureDirectory", func() error {
		return os.MkdirAll(path, constants.DirectoryPermissions)
	})
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}

	return nil
}

// ReadFile reads a file's contents respecting the context.
func (s *DefaultService) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return run(ctx, "ReadFile", func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

// WriteFile writes data to a file respecting the context.
func (s *DefaultService) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return runErr(ctx, "WriteFile", func() error {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
		if err != nil {
			return err
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()

			return err
		}

		if err := f.Sync(); err != nil {
			_ = f.Close()

			return err
		}

		return f.Close()
	})
}

// PathExists checks if a path exists.
func (s *DefaultService) PathExists(ctx context.Context, path string) (bool, error) {
	return run(ctx, "PathExists", func() (bool, error) {
		_, err := os.Lstat(path)
		if err == nil {
			return true, nil
		}

		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	})
}

// Stat returns file info without following a trailing symlink.
func (s *DefaultService) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	return run(ctx, "Stat", func() (os.FileInfo, error) {
		return os.Lstat(path)
	})
}

// ReadDir reads a directory, returning all its directory entries.
func (s *DefaultService) ReadDir(ctx context.Context, path string) ([]os.DirEntry, error) {
	return run(ctx, "ReadDir", func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}

// Remove removes a file or an empty directory.
func (s *DefaultService) Remove(ctx context.Context, path string) error {
	return runErr(ctx, "Remove", func() error {
		return os.Remove(path)
	})
}

// RemoveAll removes a directory and all its contents.
func (s *DefaultService) RemoveAll(ctx context.Context, path string) error {
	return runErr(ctx, "RemoveAll", func() error {
		return os.RemoveAll(path)
	})
}

// Rename renames (moves) a file or directory.
func (s *DefaultService) Rename(ctx context.Context, oldPath, newPath string) error {
	return runErr(ctx, "Rename", func() error {
		return os.Rename(oldPath, newPath)
	})
}

// Symlink creates a symbolic link at linkPath pointing to target.
func (s *DefaultService) Symlink(ctx context.Context, target, linkPath string) error {
	return runErr(ctx, "Symlink", func() error {
		return os.Symlink(target, linkPath)
	})
}

// Readlink returns the target of a symbolic link.
func (s *DefaultService) Readlink(ctx context.Context, path string) (string, error) {
	return run(ctx, "Readlink", func() (string, error) {
		return os.Readlink(path)
	})
}

// CopyFile streams src into dst and syncs dst before returning.
func (s *DefaultService) CopyFile(ctx context.Context, src, dst string, perm os.FileMode) (int64, error) {
	return run(ctx, "CopyFile", func() (int64, error) {
		in, err := os.Open(src)
		if err != nil {
			return 0, err
		}
		defer in.Close()

		out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
		if err != nil {
			return 0, err
		}

		buf := make([]byte, constants.CopyBufferSize)

		n, err := io.CopyBuffer(out, &ctxReader{ctx: ctx, r: in}, buf)
		if err != nil {
			_ = out.Close()

			return n, err
		}

		if err := out.Sync(); err != nil {
			_ = out.Close()

			return n, err
		}

		return n, out.Close()
	})
}

// Checksum returns the xxhash64 of a file's contents.
func (s *DefaultService) Checksum(ctx context.Context, path string) (uint64, error) {
	return run(ctx, "Checksum", func() (uint64, error) {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		h := xxhash.New()
		if _, err := io.Copy(h, &ctxReader{ctx: ctx, r: f}); err != nil {
			return 0, err
		}

		return h.Sum64(), nil
	})
}

// SameDevice reports whether both paths live on the same mounted filesystem.
func (s *DefaultService) SameDevice(ctx context.Context, a, b string) (bool, error) {
	return run(ctx, "SameDevice", func() (bool, error) {
		return sameDevice(a, b)
	})
}

// ctxReader stops a long copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
