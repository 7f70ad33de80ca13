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
	"sync"
)

// MockFileSystem wraps another Service and lets tests replace single
// operations. Operations without a hook go to the wrapped service, which is
// the real filesystem unless set otherwise.
type MockFileSystem struct {
	Delegate Service

	EnsureDirectoryFunc func(ctx context.Context, path string) error
	ReadFileFunc        func(ctx context.Context, path string) ([]byte, error)
	WriteFileFunc       func(ctx context.Context, path string, data []byte, perm os.FileMode) error
	RemoveFunc          func(ctx context.Context, path string) error
	RemoveAllFunc       func(ctx context.Context, path string) error
	RenameFunc          func(ctx context.Context, oldPath, newPath string) error
	CopyFileFunc        func(ctx context.Context, src, dst string, perm os.FileMode) (int64, error)
	SameDeviceFunc      func(ctx context.Context, a, b string) (bool, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMockFileSystem creates a mock that passes everything to the local filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Delegate: NewDefaultService(),
		calls:    make(map[string]int),
	}
}

func (m *MockFileSystem) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.calls == nil {
		m.calls = make(map[string]int)
	}

	m.calls[op]++
}

// Calls returns how often op was invoked.
func (m *MockFileSystem) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[op]
}

func (m *MockFileSystem) EnsureDirectory(ctx context.Context, path string) error {
	m.record("EnsureDirectory")

	if m.EnsureDirectoryFunc != nil {
		return m.EnsureDirectoryFunc(ctx, path)
	}

	return m.Delegate.EnsureDirectory(ctx, path)
}

func (m *MockFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.record("ReadFile")

	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(ctx, path)
	}

	return m.Delegate.ReadFile(ctx, path)
}

func (m *MockFileSystem) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	m.record("WriteFile")

	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(ctx, path, data, perm)
	}

	return m.Delegate.WriteFile(ctx, path, data, perm)
}

func (m *MockFileSystem) PathExists(ctx context.Context, path string) (bool, error) {
	m.record("PathExists")

	return m.Delegate.PathExists(ctx, path)
}

func (m *MockFileSystem) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	m.record("Stat")

	return m.Delegate.Stat(ctx, path)
}

func (m *MockFileSystem) ReadDir(ctx context.Context, path string) ([]os.DirEntry, error) {
	m.record("ReadDir")

	return m.Delegate.ReadDir(ctx, path)
}

func (m *MockFileSystem) Remove(ctx context.Context, path string) error {
	m.record("Remove")

	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, path)
	}

	return m.Delegate.Remove(ctx, path)
}

func (m *MockFileSystem) RemoveAll(ctx context.Context, path string) error {
	m.record("RemoveAll")

	if m.RemoveAllFunc != nil {
		return m.RemoveAllFunc(ctx, path)
	}

	return m.Delegate.RemoveAll(ctx, path)
}

func (m *MockFileSystem) Rename(ctx context.Context, oldPath, newPath string) error {
	m.record("Rename")

	if m.RenameFunc != nil {
		return m.RenameFunc(ctx, oldPath, newPath)
	}

	return m.Delegate.Rename(ctx, oldPath, newPath)
}

func (m *MockFileSystem) Symlink(ctx context.Context, target, linkPath string) error {
	m.record("Symlink")

	return m.Delegate.Symlink(ctx, target, linkPath)
}

func (m *MockFileSystem) Readlink(ctx context.Context, path string) (string, error) {
	m.record("Readlink")

	return m.Delegate.Readlink(ctx, path)
}

func (m *MockFileSystem) CopyFile(ctx context.Context, src, dst string, perm os.FileMode) (int64, error) {
	m.record("CopyFile")

	if m.CopyFileFunc != nil {
		return m.CopyFileFunc(ctx, src, dst, perm)
	}

	return m.Delegate.CopyFile(ctx, src, dst, perm)
}

func (m *MockFileSystem) Checksum(ctx context.Context, path string) (uint64, error) {
	m.record("Checksum")

	return m.Delegate.Checksum(ctx, path)
}

func (m *MockFileSystem) SameDevice(ctx context.Context, a, b string) (bool, error) {
	m.record("SameDevice")

	if m.SameDeviceFunc != nil {
		return m.SameDeviceFunc(ctx, a, b)
	}

	return m.Delegate.SameDevice(ctx, a, b)
}
