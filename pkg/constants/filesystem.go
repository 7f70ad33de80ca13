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

package constants

import (
	"os"
	"time"
)

const (
	// ConfigDirectoryName is the directory below the base directory holding all store files.
	ConfigDirectoryName = "config"

	// RepositoriesDirectoryName is the directory below the base directory holding repository roots.
	RepositoriesDirectoryName = "repositories"

	// RepositoryDataDirectoryName is the directory inside a repository root holding the VCS data.
	RepositoryDataDirectoryName = "data"

	// LockFileName is the OS level lock guarding the base directory against a second process.
	LockFileName = ".scm.lock"

	// DirectoryPermissions are used for every directory created below the base directory.
	DirectoryPermissions os.FileMode = 0o755

	// FilePermissions are used for every file written below the base directory.
	FilePermissions os.FileMode = 0o644

	// DataDirectoryLockTimeout is how long startup retries to acquire the base directory lock.
	DataDirectoryLockTimeout = time.Second * 30

	// CopyBufferSize is the buffer size used when copying repository files.
	CopyBufferSize = 1 << 20
)
