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
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/getsentry/sentry-go"
	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"go.uber.org/zap"
)

// Package-level state for debouncing errors.
var shouldDebounceErrors = true

// fingerprintKeys are context keys that split issues into separate groups.
var fingerprintKeys = []string{"operation", "store", "data_type"}

// EnableTestMode disables debouncing for testing.
func EnableTestMode() {
	shouldDebounceErrors = false
}

// DisableTestMode restores normal debouncing behavior.
func DisableTestMode() {
	shouldDebounceErrors = true
}

// InitSentry initializes the sentry client. Reporting stays disabled for an
// empty DSN or a development build.
func InitSentry(appVersion, dsn string, debounceErrors bool) {
	shouldDebounceErrors = debounceErrors

	if dsn == "" || appVersion == "" || appVersion == constants.DefaultAppVersion {
		zap.S().Debug("Sentry disabled")

		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           dsn,
		Environment:   environmentFor(appVersion),
		Release:       "scmstore@" + appVersion,
		EnableTracing: false,
	})
	if err != nil {
		zap.S().Errorf("Failed to initialize Sentry: %s", err)
	}
}

// environmentFor maps prerelease versions to development.
func environmentFor(appVersion string) string {
	version, err := semver.NewVersion(appVersion)
	if err != nil {
		zap.S().Errorf("Failed to parse app version, using default environment (development): %s", err)

		return constants.DefaultDevelopmentEnvironment
	}

	if version.Prerelease() != "" {
		return constants.DefaultDevelopmentEnvironment
	}

	return constants.DefaultProductionEnvironment
}

// issueTitle is the first phrase of the error message, capped at 100 characters.
func issueTitle(err error) string {
	message := err.Error()

	if idx := strings.IndexAny(message, ".,:"); idx > 0 {
		message = message[:idx]
	}

	if len(message) > 100 {
		message = message[:97] + "..."
	}

	return message
}

func newEvent(level sentry.Level, err error, context map[string]interface{}) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = level
	event.Message = err.Error()
	event.Exception = []sentry.Exception{{
		Type:       issueTitle(err),
		Value:      err.Error(),
		Stacktrace: sentry.ExtractStacktrace(err),
	}}
	event.Fingerprint = []string{"{{ default }}", "level: " + string(level)}

	if level == sentry.LevelFatal {
		threads, raw := goroutineThreads()
		event.Threads = threads
		event.Attachments = append(event.Attachments, &sentry.Attachment{
			Filename:    "goroutines.txt",
			ContentType: "text/plain",
			Payload:     raw,
		})
	}

	if len(context) == 0 {
		return event
	}

	event.Tags = make(map[string]string)

	for key, value := range context {
		switch v := value.(type) {
		case string:
			event.Tags[key] = v
		case int, int64, uint64, bool, float64:
			event.Tags[key] = fmt.Sprintf("%v", v)
		default:
			if event.Extra == nil {
				event.Extra = make(map[string]interface{})
			}

			event.Extra[key] = v
		}
	}

	for _, key := range fingerprintKeys {
		if value, ok := context[key]; ok {
			event.Fingerprint = append(event.Fingerprint, fmt.Sprintf("%s: %v", key, value))
		}
	}

	return event
}

func send(event *sentry.Event) {
	sentry.CurrentHub().Clone().CaptureEvent(event)
}
