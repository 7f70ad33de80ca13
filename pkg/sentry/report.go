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

package sentry

import (
	"fmt"

	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
	IssueTypeFatal   IssueType = "fatal"
)

// ReportIssue logs err and sends it to sentry. Fatal issues are never debounced;
// the caller decides how to terminate.
func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext reports an issue with additional context data that will be included in Sentry.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if err == nil {
		return
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	switch issueType {
	case IssueTypeFatal:
		reportFatal(err, log, context)
	case IssueTypeError:
		reportError(err, log, context)
	case IssueTypeWarning:
		reportWarning(err, log, context)
	}
}

// ReportStoreError reports a failed load or save of a store document.
func ReportStoreError(log *zap.SugaredLogger, store string, operation string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"store":     store,
		"operation": operation,
	})
}

// ReportUpdateFailure reports an update step that stopped the server from starting.
func ReportUpdateFailure(log *zap.SugaredLogger, dataType, version string, err error) {
	ReportIssueWithContext(err, IssueTypeFatal, log, map[string]interface{}{
		"data_type": dataType,
		"version":   version,
		"operation": "update",
	})
}

// ReportMigrationError reports a repository that could not be migrated.
func ReportMigrationError(log *zap.SugaredLogger, repositoryID, strategy string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"repository_id": repositoryID,
		"strategy":      strategy,
		"operation":     "migrate",
	})
}
