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

// Package accounts stores users and groups.
package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/dao"
	"github.com/united-manufacturing-hub/scmstore/pkg/models"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// UserDAO persists users in the "users" store.
type UserDAO struct {
	*dao.DocumentDAO[models.User]
	now func() time.Time
}

func NewUserDAO(ctx context.Context, store persistence.EntityStore) (*UserDAO, error) {
	d, err := dao.New[models.User](ctx, store, constants.StoreTypeConfigurationEntry, constants.StoreUsers, dao.WithKind("user"))
	if err != nil {
		return nil, err
	}

	return &UserDAO{DocumentDAO: d, now: time.Now}, nil
}

// Add stores a new user and stamps its creation date.
func (d *UserDAO) Add(ctx context.Context, u models.User) error {
	if !models.ValidName(u.Name) {
		return fmt.Errorf("invalid user name %q", u.Name)
	}

	now := d.now().UnixMilli()
	if u.CreationDate == 0 {
		u.CreationDate = now
	}

	u.LastModified = now

	return d.DocumentDAO.Add(ctx, u)
}

// Modify replaces a user, keeping its creation date.
func (d *UserDAO) Modify(ctx context.Context, u models.User) error {
	return d.Atomic(ctx, "modify", func(tx *dao.Tx[models.User]) error {
		stored, ok, err := tx.Get(u.Name)
		if err != nil {
			return err
		}

		if !ok {
			return &standarderrors.NotFoundError{Kind: "user", ID: u.Name}
		}

		u.CreationDate = stored.CreationDate
		u.LastModified = d.now().UnixMilli()

		return tx.Put(u)
	})
}

// GroupDAO persists groups in the "groups" store.
type GroupDAO struct {
	*dao.DocumentDAO[models.Group]
}

func NewGroupDAO(ctx context.Context, store persistence.EntityStore) (*GroupDAO, error) {
	d, err := dao.New[models.Group](ctx, store, constants.StoreTypeConfigurationEntry, constants.StoreGroups, dao.WithKind("group"))
	if err != nil {
		return nil, err
	}

	return &GroupDAO{DocumentDAO: d}, nil
}

// GroupsOf returns the names of all groups listing user as a member.
func (d *GroupDAO) GroupsOf(user string) []string {
	var names []string

	for _, g := range d.GetAll() {
		if g.HasMember(user) {
			names = append(names, g.Name)
		}
	}

	return names
}

// RemoveMember drops user from every group in a single change.
func (d *GroupDAO) RemoveMember(ctx context.Context, user string) error {
	return d.Atomic(ctx, "remove-member", func(tx *dao.Tx[models.Group]) error {
		for _, g := range d.GetAll() {
			if !g.HasMember(user) {
				continue
			}

			members := make([]string, 0, len(g.Members)-1)
			for _, m := range g.Members {
				if m != user {
					members = append(members, m)
				}
			}

			g.Members = members
			if err := tx.Put(g); err != nil {
				return err
			}
		}

		return nil
	})
}
