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

import "time"

const (
	// StoreLockTimeout bounds how long a DAO mutation waits for the store's mutation lock.
	StoreLockTimeout = time.Second * 30

	// AmountReadersForStoreFile defines the amount of readers that can read one store file at the same time.
	// The actual number does not really matter, it should be "high enough"
	AmountReadersForStoreFile = 100

	// AmountReadersForConfigFile defines the amount of readers that can read the server config at the same time.
	AmountReadersForConfigFile = 100
)

// Store names. Each store is persisted as <base>/config/<name>.<ext>.
const (
	StoreRepositoryPaths        = "repository-paths"
	StoreMigrationPlan          = "migration-plan"
	StoreExecutedUpdates        = "executed-updates"
	StoreRepositoryPropertiesV1 = "repository-properties-v1"
	StoreUsers                  = "users"
	StoreGroups                 = "groups"
)

// Store types group stores by the entity they hold.
const (
	StoreTypeConfigurationEntry = "configuration-entry"
)
