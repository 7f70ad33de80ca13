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

// Package migration relocates repository data from the legacy layout
// <base>/repositories/<type>/<name> to the ID based layout
// <base>/repositories/<id>/data.
//
// The strategy used for a repository is persisted in the migration plan
// before any file is touched, so a restarted migration continues with the
// same strategy it started with.
package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/location"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/metrics"
	"github.com/united-manufacturing-hub/scmstore/pkg/models"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// Strategy selects how the data of one repository is relocated.
type Strategy string

const (
	// Copy duplicates the legacy tree and leaves it in place.
	Copy Strategy = "COPY"
	// Move renames the legacy tree, or copies and removes it across devices.
	Move Strategy = "MOVE"
)

// ParseStrategy accepts the strategy names case insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(s))) {
	case Copy:
		return Copy, nil
	case Move:
		return Move, nil
	default:
		return "", fmt.Errorf("unknown migration strategy %q, expected COPY or MOVE", s)
	}
}

func (s Strategy) metricLabel() string {
	return strings.ToLower(string(s))
}

// LegacyRepository identifies a repository in the legacy layout.
type LegacyRepository struct {
	ID   string
	Name string
	Type string
}

// Validate checks that both the legacy and the new directory of the
// repository stay below the repositories directory.
func (r LegacyRepository) Validate() error {
	if err := models.ValidateID(r.ID); err != nil {
		return err
	}

	if err := models.ValidateRelativePath(r.Type + "/" + r.Name); err != nil {
		return fmt.Errorf("legacy repository %s: %w", r.ID, err)
	}

	return nil
}

// SourceDirectory returns the legacy data directory below baseDir.
func (r LegacyRepository) SourceDirectory(baseDir string) string {
	return filepath.Join(baseDir, constants.RepositoriesDirectoryName, r.Type, filepath.FromSlash(r.Name))
}

// TargetDirectory returns the new repository root below baseDir.
func TargetDirectory(baseDir, id string) string {
	return filepath.Join(baseDir, location.DefaultInitialLocation(id))
}

// Migrator relocates the data of a single repository and returns the new
// repository root. Migrate must be safe to call again after an interruption.
type Migrator interface {
	Migrate(ctx context.Context, repo LegacyRepository) (string, error)
}

// NewMigrator returns the implementation of strategy.
func NewMigrator(strategy Strategy, baseDir string, fs filesystem.Service) (Migrator, error) {
	base := migrator{baseDir: baseDir, fs: fs, log: logger.For(logger.ComponentMigration)}

	parsed, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}

	if parsed == Move {
		return &moveMigrator{base}, nil
	}

	return &copyMigrator{base}, nil
}

type migrator struct {
	baseDir string
	fs      filesystem.Service
	log     *zap.SugaredLogger
}

func (m migrator) paths(repo LegacyRepository) (source, root, data string) {
	source = repo.SourceDirectory(m.baseDir)
	root = TargetDirectory(m.baseDir, repo.ID)
	data = filepath.Join(root, constants.RepositoryDataDirectoryName)

	return source, root, data
}

func (m migrator) onFile(strategy Strategy) filesystem.CopyOptions {
	return filesystem.CopyOptions{
		OnFile: func(_ string, action filesystem.CopyAction, n int64) {
			metrics.RecordMigratedFile(strategy.metricLabel(), string(action), n)
		},
	}
}

// failure turns a file level error into an update failure of the repository.
func failure(repo LegacyRepository, strategy Strategy, source, target string, err error) error {
	var fileErr *filesystem.FileError
	if !errors.As(err, &fileErr) {
		err = &filesystem.FileError{Source: source, Target: target, Err: err}
	}

	return &standarderrors.UpdateError{
		DataType:     V1DataType,
		Version:      V1TargetVersion,
		RepositoryID: repo.ID,
		Step:         string(strategy),
		Err:          err,
	}
}
