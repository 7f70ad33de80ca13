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

// Package models holds the entities persisted by the DAOs.
// All of them are value types; DAOs deep copy them on every read and write.
package models

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrInvalidID is returned for repository ids that cannot be used as a
	// single directory name.
	ErrInvalidID = errors.New("invalid repository id")
	// ErrInvalidPath is returned for relative paths that leave their parent directory.
	ErrInvalidPath = errors.New("invalid path")

	namePattern = regexp.MustCompile(`^[A-Za-z0-9\.\-_][A-Za-z0-9\.\-_]*$`)

	// KnownRepositoryTypes are the VCS types a repository may have.
	KnownRepositoryTypes = []string{"git", "hg", "svn", "bzr"}
)

// Permission grants verbs on a repository to a user or a group.
type Permission struct {
	Name            string   `json:"name"                      yaml:"name"`
	GroupPermission bool     `json:"groupPermission,omitempty" yaml:"groupPermission,omitempty"`
	Verbs           []string `json:"verbs,omitempty"           yaml:"verbs,omitempty"`
	Role            string   `json:"role,omitempty"            yaml:"role,omitempty"`
}

// NamespaceAndName is the human facing identity of a repository.
type NamespaceAndName struct {
	Namespace string
	Name      string
}

func (n NamespaceAndName) String() string {
	return n.Namespace + "/" + n.Name
}

// Repository is a single VCS repository.
type Repository struct {
	ID           string            `json:"id"                     yaml:"id"`
	Namespace    string            `json:"namespace"              yaml:"namespace"`
	Name         string            `json:"name"                   yaml:"name"`
	Type         string            `json:"type"                   yaml:"type"`
	Contact      string            `json:"contact,omitempty"      yaml:"contact,omitempty"`
	Description  string            `json:"description,omitempty"  yaml:"description,omitempty"`
	Archived     bool              `json:"archived,omitempty"     yaml:"archived,omitempty"`
	CreationDate int64             `json:"creationDate,omitempty" yaml:"creationDate,omitempty"`
	LastModified int64             `json:"lastModified,omitempty" yaml:"lastModified,omitempty"`
	Permissions  []Permission      `json:"permissions,omitempty"  yaml:"permissions,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"   yaml:"properties,omitempty"`
}

func (r Repository) GetID() string {
	return r.ID
}

func (r Repository) NamespaceAndName() NamespaceAndName {
	return NamespaceAndName{Namespace: r.Namespace, Name: r.Name}
}

// Validate checks the fields every stored repository must have.
func (r Repository) Validate() error {
	if err := ValidateID(r.ID); err != nil {
		return fmt.Errorf("repository %s: %w", r.NamespaceAndName(), err)
	}

	if !namePattern.MatchString(r.Namespace) || !namePattern.MatchString(r.Name) {
		return fmt.Errorf("repository %s has an invalid namespace or name", r.NamespaceAndName())
	}

	for _, t := range KnownRepositoryTypes {
		if strings.EqualFold(t, r.Type) {
			return nil
		}
	}

	return fmt.Errorf("repository %s has unknown type %q", r.NamespaceAndName(), r.Type)
}

// ValidName reports whether s can be used as a namespace or repository name.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

// ValidateID checks that id names exactly one directory below the
// repositories directory.
func ValidateID(id string) error {
	return validSegment(id, ErrInvalidID)
}

// ValidateRelativePath checks a slash separated path whose segments must
// all stay below the directory it is joined to.
func ValidateRelativePath(p string) error {
	for _, segment := range strings.Split(p, "/") {
		if err := validSegment(segment, ErrInvalidPath); err != nil {
			return fmt.Errorf("%q: %w", p, err)
		}
	}

	return nil
}

func validSegment(s string, kind error) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", kind)
	case s == "." || s == "..":
		return fmt.Errorf("%w %q", kind, s)
	case strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, os.PathSeparator):
		return fmt.Errorf("%w %q: contains a path separator", kind, s)
	case strings.ContainsRune(s, 0):
		return fmt.Errorf("%w %q: contains a NUL byte", kind, s)
	}

	return nil
}
