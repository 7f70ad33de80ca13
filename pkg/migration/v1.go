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
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/united-manufacturing-hub/scmstore/pkg/models"
)

const (
	// V1DataType is the data type migrated by RepositoryV1Step.
	V1DataType = "scm.repository.xml"
	// V1TargetVersion is the version the v1 repository database is migrated to.
	V1TargetVersion = "2.0.0"

	v1DatabaseFile   = "repositories.xml"
	v1BackupSuffix   = ".v1.backup"
	v1DatabaseRootEl = "repository-db"
)

// v1Database is the repository database written by 1.x servers.
type v1Database struct {
	XMLName      xml.Name
	CreationTime int64          `xml:"creation-time"`
	LastModified int64          `xml:"last-modified"`
	Repositories []V1Repository `xml:"repositories>repository"`
}

// V1Repository is one entry of the 1.x repository database.
type V1Repository struct {
	ID           string         `xml:"id"`
	Name         string         `xml:"name"`
	Type         string         `xml:"type"`
	Contact      string         `xml:"contact"`
	Description  string         `xml:"description"`
	CreationDate int64          `xml:"creationDate"`
	LastModified int64          `xml:"lastModified"`
	Public       bool           `xml:"public"`
	Archived     bool           `xml:"archived"`
	Permissions  []V1Permission `xml:"permissions"`
	Properties   []V1Property   `xml:"properties>item"`
}

type V1Permission struct {
	Name            string `xml:"name"`
	Type            string `xml:"type"`
	GroupPermission bool   `xml:"groupPermission"`
}

type V1Property struct {
	Key   string `xml:"key"   json:"key"   yaml:"key"`
	Value string `xml:"value" json:"value" yaml:"value"`
}

// V1Properties keeps the free form properties of a migrated repository.
type V1Properties struct {
	RepositoryID string       `json:"repositoryId"         yaml:"repositoryId"`
	Properties   []V1Property `json:"properties,omitempty" yaml:"properties,omitempty"`
}

func (p V1Properties) GetID() string {
	return p.RepositoryID
}

// parseV1Database returns false if data is not a 1.x database, for example
// a repositories.xml written by an early 2.x server.
func parseV1Database(data []byte) (v1Database, bool, error) {
	var db v1Database
	if err := xml.Unmarshal(data, &db); err != nil {
		return v1Database{}, false, fmt.Errorf("could not read v1 repository database: %w", err)
	}

	if db.XMLName.Local != v1DatabaseRootEl {
		return v1Database{}, false, nil
	}

	return db, true, nil
}

// Legacy returns the location of the repository in the legacy layout. Ids,
// types and names that would leave the repositories directory are rejected.
func (r V1Repository) Legacy() (LegacyRepository, error) {
	legacy := LegacyRepository{ID: r.ID, Name: r.Name, Type: r.Type}
	if err := legacy.Validate(); err != nil {
		return LegacyRepository{}, err
	}

	return legacy, nil
}

// DefaultNamespaceAndName derives the 2.x coordinates from a 1.x name. A
// name with folders keeps the first folder as namespace and joins the rest
// with underscores; a plain name is placed in the namespace of its type.
func (r V1Repository) DefaultNamespaceAndName() models.NamespaceAndName {
	parts := strings.Split(r.Name, "/")
	if len(parts) == 1 {
		return models.NamespaceAndName{Namespace: r.Type, Name: parts[0]}
	}

	return models.NamespaceAndName{Namespace: parts[0], Name: strings.Join(parts[1:], "_")}
}

// toRepository builds the migrated repository from the plan entry.
func (r V1Repository) toRepository(entry PlanEntry) models.Repository {
	coordinates := r.DefaultNamespaceAndName()
	if entry.NewNamespace != "" {
		coordinates.Namespace = entry.NewNamespace
	}

	if entry.NewName != "" {
		coordinates.Name = entry.NewName
	}

	permissions := make([]models.Permission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		permissions = append(permissions, models.Permission{
			Name:            p.Name,
			GroupPermission: p.GroupPermission,
			Role:            p.Type,
		})
	}

	return models.Repository{
		ID:           r.ID,
		Namespace:    coordinates.Namespace,
		Name:         coordinates.Name,
		Type:         r.Type,
		Contact:      r.Contact,
		Description:  r.Description,
		Archived:     r.Archived,
		CreationDate: r.CreationDate,
		LastModified: r.LastModified,
		Permissions:  permissions,
	}
}
