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

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/dao"
	"github.com/united-manufacturing-hub/scmstore/pkg/models"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// PlanEntry is the migration decision for one repository.
type PlanEntry struct {
	RepositoryID string   `json:"repositoryId"           yaml:"repositoryId"`
	Strategy     Strategy `json:"strategy"               yaml:"strategy"`
	NewNamespace string   `json:"newNamespace,omitempty" yaml:"newNamespace,omitempty"`
	NewName      string   `json:"newName,omitempty"      yaml:"newName,omitempty"`
}

func (e PlanEntry) GetID() string {
	return e.RepositoryID
}

// StrategyDAO persists the migration plan. An entry is written once and
// never replaced by a different strategy.
type StrategyDAO struct {
	plan *dao.DocumentDAO[PlanEntry]
}

func NewStrategyDAO(ctx context.Context, store persistence.EntityStore, opts ...dao.Option) (*StrategyDAO, error) {
	d, err := dao.New[PlanEntry](ctx, store, constants.StoreTypeConfigurationEntry, constants.StoreMigrationPlan,
		append([]dao.Option{dao.WithKind("migration strategy")}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &StrategyDAO{plan: d}, nil
}

// Get returns the plan entry of a repository.
func (s *StrategyDAO) Get(repositoryID string) (PlanEntry, bool) {
	return s.plan.Get(repositoryID)
}

// Set records the strategy for a repository. Setting the strategy that is
// already recorded succeeds without writing; a different strategy fails with
// *standarderrors.AlreadyExistsError.
func (s *StrategyDAO) Set(ctx context.Context, repositoryID string, strategy Strategy, newNamespace, newName string) error {
	normalized, err := ParseStrategy(string(strategy))
	if err != nil {
		return err
	}

	if err := models.ValidateID(repositoryID); err != nil {
		return err
	}

	return s.plan.Atomic(ctx, "set", func(tx *dao.Tx[PlanEntry]) error {
		existing, ok, err := tx.Get(repositoryID)
		if err != nil {
			return err
		}

		if ok {
			if recorded, err := ParseStrategy(string(existing.Strategy)); err == nil && recorded == normalized {
				return nil
			}

			return &standarderrors.AlreadyExistsError{Kind: "migration strategy", ID: repositoryID}
		}

		return tx.Put(PlanEntry{
			RepositoryID: repositoryID,
			Strategy:     normalized,
			NewNamespace: newNamespace,
			NewName:      newName,
		})
	})
}

// All returns the plan sorted by repository id.
func (s *StrategyDAO) All() []PlanEntry {
	return s.plan.GetAll()
}

func (s *StrategyDAO) Refresh(ctx context.Context) error {
	return s.plan.Refresh(ctx)
}
