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
	"os"
)

// Service provides an interface for filesystem operations
// This allows for easier testing and separation of concerns.
type Service interface {
	// EnsureDirectory creates a directory and its parents if they don't exist
	EnsureDirectory(ctx context.Context, path string) error

	// ReadFile reads a file's contents respecting the context
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile writes data to a file respecting the context
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error

	// PathExists checks if a file or directory exists at the given path
	PathExists(ctx context.Context, path string) (bool, error)

	// Stat returns file info without following a trailing symlink
	Stat(ctx context.Context, path string) (os.FileInfo, error)

	// ReadDir reads a directory, returning all its directory entries
	ReadDir(ctx context.Context, path string) ([]os.DirEntry, error)

	// Remove removes a file or an empty directory
	Remove(ctx context.Context, path string) error

	// RemoveAll removes a directory and all its contents
	RemoveAll(ctx context.Context, path string) error

	// Rename renames (moves) a file or directory from oldPath to newPath.
	// This operation is atomic on the same filesystem mount.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Symlink creates a symbolic link at linkPath pointing to target.
	Symlink(ctx context.Context, target, linkPath string) error

	// Readlink returns the target of a symbolic link.
	Readlink(ctx context.Context, path string) (string, error)

	// CopyFile streams src into dst, creating or truncating dst, and returns the bytes written.
	CopyFile(ctx context.Context, src, dst string, perm os.FileMode) (int64, error)

	// Checksum returns the xxhash64 of a file's contents.
	Checksum(ctx context.Context, path string) (uint64, error)

	// SameDevice reports whether both paths live on the same mounted filesystem.
	// Missing paths are resolved through their nearest existing parent.
	SameDevice(ctx context.Context, a, b string) (bool, error)
}
