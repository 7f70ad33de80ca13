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

// Package update evolves persisted data from one version of the server to
// the next.
//
// Each Step transforms one data type to a target version. Steps run at
// startup before any DAO is used, in ascending version order, and each one
// runs exactly once per data directory: the highest applied version of every
// data type is persisted right after the step succeeds. Repository steps run
// once per repository and keep a watermark per repository.
package update

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Step transforms one data type to TargetVersion.
type Step interface {
	TargetVersion() *semver.Version
	AffectedDataType() string
	DoUpdate(ctx context.Context) error
}

// CoreStep marks steps shipped with the server itself. At equal versions
// they run before steps contributed by extensions.
type CoreStep interface {
	Step
	CoreUpdate()
}

// RepositoryStep transforms the data of a single repository.
type RepositoryStep interface {
	TargetVersion() *semver.Version
	AffectedDataType() string
	DoUpdateRepository(ctx context.Context, repositoryID string) error
}

// RepositoryIterator lists the repositories repository steps run for.
type RepositoryIterator interface {
	ForEachRepository(ctx context.Context, fn func(id string) error) error
}

// FuncStep adapts a function to Step.
type FuncStep struct {
	Version  *semver.Version
	DataType string
	Fn       func(ctx context.Context) error
}

// NewFuncStep panics if version is not a semantic version.
func NewFuncStep(version, dataType string, fn func(ctx context.Context) error) *FuncStep {
	return &FuncStep{Version: semver.MustParse(version), DataType: dataType, Fn: fn}
}

func (s *FuncStep) TargetVersion() *semver.Version     { return s.Version }
func (s *FuncStep) AffectedDataType() string           { return s.DataType }
func (s *FuncStep) DoUpdate(ctx context.Context) error { return s.Fn(ctx) }
func (s *FuncStep) String() string                     { return fmt.Sprintf("%s@%s", s.DataType, s.Version) }

// CoreFuncStep is a FuncStep that ships with the server.
type CoreFuncStep struct{ *FuncStep }

func NewCoreFuncStep(version, dataType string, fn func(ctx context.Context) error) CoreFuncStep {
	return CoreFuncStep{NewFuncStep(version, dataType, fn)}
}

func (CoreFuncStep) CoreUpdate() {}

// RepositoryFuncStep adapts a function to RepositoryStep.
type RepositoryFuncStep struct {
	Version  *semver.Version
	DataType string
	Fn       func(ctx context.Context, repositoryID string) error
}

func NewRepositoryFuncStep(version, dataType string, fn func(ctx context.Context, repositoryID string) error) *RepositoryFuncStep {
	return &RepositoryFuncStep{Version: semver.MustParse(version), DataType: dataType, Fn: fn}
}

func (s *RepositoryFuncStep) TargetVersion() *semver.Version { return s.Version }
func (s *RepositoryFuncStep) AffectedDataType() string       { return s.DataType }
func (s *RepositoryFuncStep) DoUpdateRepository(ctx context.Context, id string) error {
	return s.Fn(ctx, id)
}
