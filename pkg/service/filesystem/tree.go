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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// CopyAction describes what CopyDirectory did with a single file.
type CopyAction string

const (
	ActionCopied  CopyAction = "copied"
	ActionSkipped CopyAction = "skipped"
	ActionLinked  CopyAction = "linked"
)

// FileError names the file a tree operation failed on.
type FileError struct {
	Source string
	Target string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("could not copy %s to %s: %v", e.Source, e.Target, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// CopyStats summarizes a CopyDirectory run.
type CopyStats struct {
	Copied  int
	Skipped int
	Bytes   int64
}

// CopyOptions tune CopyDirectory.
type CopyOptions struct {
	// OnFile is called after every regular file or symlink with its path relative to the source root.
	OnFile func(rel string, action CopyAction, bytes int64)
}

// CopyDirectory copies the tree below src into dst, creating dst if needed.
//
// The copy is resumable: a target file with the same size and xxhash as its
// source is left alone, anything else is rewritten through a temporary file
// and a rename, so a file is never observed half written. Files present only
// in dst are kept.
func CopyDirectory(ctx context.Context, fs Service, src, dst string, opts CopyOptions) (CopyStats, error) {
	var stats CopyStats

	err := copyTree(ctx, fs, src, dst, "", opts, &stats)

	return stats, err
}

func copyTree(ctx context.Context, fs Service, srcRoot, dstRoot, rel string, opts CopyOptions, stats *CopyStats) error {
	src := filepath.Join(srcRoot, rel)
	dst := filepath.Join(dstRoot, rel)

	if err := fs.EnsureDirectory(ctx, dst); err != nil {
		return &FileError{Source: src, Target: dst, Err: err}
	}

	entries, err := fs.ReadDir(ctx, src)
	if err != nil {
		return &FileError{Source: src, Target: dst, Err: err}
	}

	for _, entry := range entries {
		childRel := filepath.Join(rel, entry.Name())

		switch {
		case entry.IsDir():
			if err := copyTree(ctx, fs, srcRoot, dstRoot, childRel, opts, stats); err != nil {
				return err
			}
		case entry.Type()&os.ModeSymlink != 0:
			if err := copySymlink(ctx, fs, filepath.Join(srcRoot, childRel), filepath.Join(dstRoot, childRel)); err != nil {
				return err
			}

			stats.Copied++
			notify(opts, childRel, ActionLinked, 0)
		case entry.Type().IsRegular():
			action, n, err := copyRegular(ctx, fs, filepath.Join(srcRoot, childRel), filepath.Join(dstRoot, childRel))
			if err != nil {
				return err
			}

			if action == ActionSkipped {
				stats.Skipped++
			} else {
				stats.Copied++
				stats.Bytes += n
			}

			notify(opts, childRel, action, n)
		}
	}

	return nil
}

func notify(opts CopyOptions, rel string, action CopyAction, n int64) {
	if opts.OnFile != nil {
		opts.OnFile(rel, action, n)
	}
}

func copyRegular(ctx context.Context, fs Service, src, dst string) (CopyAction, int64, error) {
	srcInfo, err := fs.Stat(ctx, src)
	if err != nil {
		return "", 0, &FileError{Source: src, Target: dst, Err: err}
	}

	same, err := sameContent(ctx, fs, src, dst, srcInfo)
	if err != nil {
		return "", 0, &FileError{Source: src, Target: dst, Err: err}
	}

	if same {
		return ActionSkipped, 0, nil
	}

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+uuid.NewString()+".tmp")

	n, err := fs.CopyFile(ctx, src, tmp, srcInfo.Mode().Perm())
	if err != nil {
		_ = fs.Remove(context.WithoutCancel(ctx), tmp)

		return "", 0, &FileError{Source: src, Target: dst, Err: err}
	}

	if err := fs.Rename(ctx, tmp, dst); err != nil {
		_ = fs.Remove(context.WithoutCancel(ctx), tmp)

		return "", 0, &FileError{Source: src, Target: dst, Err: err}
	}

	return ActionCopied, n, nil
}

// sameContent reports whether dst already holds exactly the bytes of src.
func sameContent(ctx context.Context, fs Service, src, dst string, srcInfo os.FileInfo) (bool, error) {
	dstInfo, err := fs.Stat(ctx, dst)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	if !dstInfo.Mode().IsRegular() || dstInfo.Size() != srcInfo.Size() {
		return false, nil
	}

	srcSum, err := fs.Checksum(ctx, src)
	if err != nil {
		return false, err
	}

	dstSum, err := fs.Checksum(ctx, dst)
	if err != nil {
		return false, err
	}

	return srcSum == dstSum, nil
}

func copySymlink(ctx context.Context, fs Service, src, dst string) error {
	target, err := fs.Readlink(ctx, src)
	if err != nil {
		return &FileError{Source: src, Target: dst, Err: err}
	}

	if existing, err := fs.Readlink(ctx, dst); err == nil && existing == target {
		return nil
	}

	if err := fs.RemoveAll(ctx, dst); err != nil {
		return &FileError{Source: src, Target: dst, Err: err}
	}

	if err := fs.Symlink(ctx, target, dst); err != nil {
		return &FileError{Source: src, Target: dst, Err: err}
	}

	return nil
}

// MoveResult tells how MoveDirectory relocated a tree.
type MoveResult string

const (
	MovedByRename MoveResult = "rename"
	MovedByCopy   MoveResult = "copy"
	AlreadyMoved  MoveResult = "already-moved"
)

// MoveDirectory relocates src to dst. On the same filesystem this is a single
// rename; across filesystems the tree is copied and src removed afterwards.
// When src is gone but dst exists the move is treated as done, so an
// interrupted move can simply be repeated.
func MoveDirectory(ctx context.Context, fs Service, src, dst string, opts CopyOptions) (MoveResult, error) {
	srcExists, err := fs.PathExists(ctx, src)
	if err != nil {
		return "", &FileError{Source: src, Target: dst, Err: err}
	}

	dstExists, err := fs.PathExists(ctx, dst)
	if err != nil {
		return "", &FileError{Source: src, Target: dst, Err: err}
	}

	if !srcExists {
		if dstExists {
			return AlreadyMoved, nil
		}

		return "", &FileError{Source: src, Target: dst, Err: os.ErrNotExist}
	}

	if err := fs.EnsureDirectory(ctx, filepath.Dir(dst)); err != nil {
		return "", &FileError{Source: src, Target: dst, Err: err}
	}

	// A left over target means an earlier cross device move was interrupted.
	if !dstExists {
		same, err := fs.SameDevice(ctx, src, dst)
		if err != nil {
			return "", &FileError{Source: src, Target: dst, Err: err}
		}

		if same {
			err := fs.Rename(ctx, src, dst)
			if err == nil {
				return MovedByRename, nil
			}

			if !IsCrossDevice(err) {
				return "", &FileError{Source: src, Target: dst, Err: err}
			}
		}
	}

	if _, err := CopyDirectory(ctx, fs, src, dst, opts); err != nil {
		return "", err
	}

	if err := fs.RemoveAll(ctx, src); err != nil {
		return "", &FileError{Source: src, Target: dst, Err: fmt.Errorf("copied but could not remove source: %w", err)}
	}

	return MovedByCopy, nil
}
