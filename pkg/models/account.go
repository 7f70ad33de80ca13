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

package models

// User is an account that can log in.
type User struct {
	Name         string            `json:"name"                   yaml:"name"`
	DisplayName  string            `json:"displayName,omitempty"  yaml:"displayName,omitempty"`
	Mail         string            `json:"mail,omitempty"         yaml:"mail,omitempty"`
	Type         string            `json:"type"                   yaml:"type"`
	Password     string            `json:"password,omitempty"     yaml:"password,omitempty"`
	Active       bool              `json:"active"                 yaml:"active"`
	External     bool              `json:"external,omitempty"     yaml:"external,omitempty"`
	CreationDate int64             `json:"creationDate,omitempty" yaml:"creationDate,omitempty"`
	LastModified int64             `json:"lastModified,omitempty" yaml:"lastModified,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"   yaml:"properties,omitempty"`
}

func (u User) GetID() string {
	return u.Name
}

// Group is a named set of users.
type Group struct {
	Name         string            `json:"name"                   yaml:"name"`
	Description  string            `json:"description,omitempty"  yaml:"description,omitempty"`
	Type         string            `json:"type"                   yaml:"type"`
	External     bool              `json:"external,omitempty"     yaml:"external,omitempty"`
	Members      []string          `json:"members,omitempty"      yaml:"members,omitempty"`
	CreationDate int64             `json:"creationDate,omitempty" yaml:"creationDate,omitempty"`
	LastModified int64             `json:"lastModified,omitempty" yaml:"lastModified,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"   yaml:"properties,omitempty"`
}

func (g Group) GetID() string {
	return g.Name
}

// HasMember reports whether user is listed in the group.
func (g Group) HasMember(user string) bool {
	for _, m := range g.Members {
		if m == user {
			return true
		}
	}

	return false
}
