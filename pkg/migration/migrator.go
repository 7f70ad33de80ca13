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

package migration

import (
	"context"

	"github.com/united-manufacturing-hub/scmstore/pkg/metrics"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
)

type copyMigrator struct {
	migrator
}

// Migrate creates the new repository root and its data directory, then
// copies the legacy tree into it. Files that are already present with the
// same content are skipped, so a second run only finishes what is missing.
func (m *copyMigrator) Migrate(ctx context.Context, repo LegacyRepository) (string, error) {
	if err := repo.Validate(); err != nil {
		return "", err
	}

	source, root, data := m.paths(repo)

	if err := m.fs.EnsureDirectory(ctx, data); err != nil {
		return "", failure(repo, Copy, source, data, err)
	}

	stats, err := filesystem.CopyDirectory(ctx, m.fs, source, data, m.onFile(Copy))
	if err != nil {
		return "", failure(repo, Copy, source, data, err)
	}

	m.log.Infow("Copied repository data",
		"repository", repo.ID, "source", source, "target", data,
		"copied", stats.Copied, "skipped", stats.Skipped, "bytes", stats.Bytes)

	return root, nil
}

type moveMigrator struct {
	migrator
}

// Migrate moves the legacy tree to the data directory of the new root.
func (m *moveMigrator) Migrate(ctx context.Context, repo LegacyRepository) (string, error) {
	if err := repo.Validate(); err != nil {
		return "", err
	}

	source, root, data := m.paths(repo)

	if err := m.fs.EnsureDirectory(ctx, root); err != nil {
		return "", failure(repo, Move, source, data, err)
	}

	result, err := filesystem.MoveDirectory(ctx, m.fs, source, data, m.onFile(Move))
	if err != nil {
		return "", failure(repo, Move, source, data, err)
	}

	if result == filesystem.MovedByRename {
		metrics.RecordMigratedFile(Move.metricLabel(), string(result), 0)
	}

	m.log.Infow("Moved repository data", "repository", repo.ID, "source", source, "target", data, "result", result)

	return root, nil
}
