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

package update

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/dao"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
)

// ExecutedStep is the persisted progress of one data type, globally or for
// one repository.
type ExecutedStep struct {
	ID           string   `json:"id"                     yaml:"id"`
	DataType     string   `json:"dataType"               yaml:"dataType"`
	RepositoryID string   `json:"repositoryId,omitempty" yaml:"repositoryId,omitempty"`
	Version      string   `json:"version"                yaml:"version"`
	History      []string `json:"history,omitempty"      yaml:"history,omitempty"`
	AppliedAt    int64    `json:"appliedAt"              yaml:"appliedAt"`
}

func (e ExecutedStep) GetID() string {
	return e.ID
}

func executedID(dataType, repositoryID string) string {
	if repositoryID == "" {
		return dataType
	}

	return dataType + "@" + repositoryID
}

// StepStore remembers which versions were applied.
type StepStore struct {
	steps *dao.DocumentDAO[ExecutedStep]
}

func NewStepStore(ctx context.Context, store persistence.EntityStore, opts ...dao.Option) (*StepStore, error) {
	d, err := dao.New[ExecutedStep](ctx, store, constants.StoreTypeConfigurationEntry, constants.StoreExecutedUpdates,
		append([]dao.Option{dao.WithKind("executed update")}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &StepStore{steps: d}, nil
}

// Watermark returns the highest version applied for a data type, if any.
func (s *StepStore) Watermark(dataType string) (*semver.Version, bool) {
	return s.watermark(executedID(dataType, ""))
}

// RepositoryWatermark returns the highest version applied for a data type in one repository.
func (s *StepStore) RepositoryWatermark(dataType, repositoryID string) (*semver.Version, bool) {
	return s.watermark(executedID(dataType, repositoryID))
}

func (s *StepStore) watermark(id string) (*semver.Version, bool) {
	e, ok := s.steps.Get(id)
	if !ok {
		return nil, false
	}

	v, err := semver.NewVersion(e.Version)
	if err != nil {
		return nil, false
	}

	return v, true
}

// pending reports whether version was not applied yet.
func (s *StepStore) pending(dataType, repositoryID string, version *semver.Version) bool {
	mark, ok := s.watermark(executedID(dataType, repositoryID))

	return !ok || version.GreaterThan(mark)
}

// Record persists that version was applied. The watermark never moves back.
func (s *StepStore) Record(ctx context.Context, dataType, repositoryID string, version *semver.Version, appliedAt int64) error {
	id := executedID(dataType, repositoryID)

	return s.steps.Atomic(ctx, "record", func(tx *dao.Tx[ExecutedStep]) error {
		e, ok, err := tx.Get(id)
		if err != nil {
			return err
		}

		if !ok {
			e = ExecutedStep{ID: id, DataType: dataType, RepositoryID: repositoryID}
		}

		if current, err := semver.NewVersion(e.Version); err == nil && !version.GreaterThan(current) {
			return nil
		}

		e.Version = version.String()
		e.History = append(e.History, version.String())
		e.AppliedAt = appliedAt

		return tx.Put(e)
	})
}

// All returns every recorded watermark.
func (s *StepStore) All() []ExecutedStep {
	return s.steps.GetAll()
}
