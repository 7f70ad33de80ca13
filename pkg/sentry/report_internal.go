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
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const debounceInterval = time.Hour * 2

// debouncer lets one event per level through every debounceInterval.
type debouncer struct {
	mu   sync.Mutex
	last time.Time
}

func (d *debouncer) allow() bool {
	if !shouldDebounceErrors {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.last.IsZero() && time.Since(d.last) < debounceInterval {
		return false
	}

	d.last = time.Now()

	return true
}

var (
	errorDebounce   debouncer
	warningDebounce debouncer
)

// reportFatal logs the error, sends it with all goroutines attached and waits
// for delivery.
func reportFatal(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Errorw("The server has encountered a fatal error and will not continue", "error", err, "context", context)

	send(newEvent(sentry.LevelFatal, err, context))
	sentry.Flush(time.Second * 5)
}

func reportError(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Errorw(err.Error(), "context", context)

	if errorDebounce.allow() {
		send(newEvent(sentry.LevelError, err, context))
	}
}

func reportWarning(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Warnw(err.Error(), "context", context)

	if warningDebounce.allow() {
		send(newEvent(sentry.LevelWarning, err, context))
	}
}
