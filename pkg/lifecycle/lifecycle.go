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

// Package lifecycle tracks server startup. The server only serves requests
// once every pending update step has run.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

const (
	StateStarting = "starting"
	StateUpdating = "updating"
	StateReady    = "ready"
	StateFailed   = "failed"
	StateStopping = "stopping"
)

const (
	EventUpdate = "update"
	EventReady  = "ready"
	EventFail   = "fail"
	EventStop   = "stop"
)

// Status is a snapshot of the lifecycle.
type Status struct {
	State    string    `json:"state"`
	Since    time.Time `json:"since"`
	Version  string    `json:"version"`
	Error    string    `json:"error,omitempty"`
	DataType string    `json:"dataType,omitempty"`
	Target   string    `json:"targetVersion,omitempty"`
}

// Lifecycle is the startup state machine.
type Lifecycle struct {
	machine *fsm.FSM
	log     *zap.SugaredLogger
	version string

	mu     sync.RWMutex
	since  time.Time
	failed error
}

func New(appVersion string) *Lifecycle {
	l := &Lifecycle{
		log:     logger.For(logger.ComponentLifecycle),
		version: appVersion,
		since:   time.Now(),
	}

	l.machine = fsm.NewFSM(
		StateStarting,
		fsm.Events{
			{Name: EventUpdate, Src: []string{StateStarting}, Dst: StateUpdating},
			{Name: EventReady, Src: []string{StateStarting, StateUpdating}, Dst: StateReady},
			{Name: EventFail, Src: []string{StateStarting, StateUpdating}, Dst: StateFailed},
			{Name: EventStop, Src: []string{StateStarting, StateUpdating, StateReady, StateFailed}, Dst: StateStopping},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.mu.Lock()
				l.since = time.Now()
				l.mu.Unlock()

				l.log.Infof("Server %s -> %s", e.Src, e.Dst)
			},
		},
	)

	return l
}

// Current returns the current state.
func (l *Lifecycle) Current() string {
	return l.machine.Current()
}

// Ready reports whether requests may be served.
func (l *Lifecycle) Ready() bool {
	return l.machine.Current() == StateReady
}

func (l *Lifecycle) transition(ctx context.Context, event string) error {
	err := l.machine.Event(ctx, event)

	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}

	return err
}

// Updating is entered while update steps run.
func (l *Lifecycle) Updating(ctx context.Context) error {
	return l.transition(ctx, EventUpdate)
}

// MarkReady is entered once the DAOs are usable.
func (l *Lifecycle) MarkReady(ctx context.Context) error {
	return l.transition(ctx, EventReady)
}

// Fail records why startup was aborted.
func (l *Lifecycle) Fail(ctx context.Context, cause error) error {
	l.mu.Lock()
	l.failed = cause
	l.mu.Unlock()

	return l.transition(ctx, EventFail)
}

func (l *Lifecycle) Stop(ctx context.Context) error {
	return l.transition(ctx, EventStop)
}

// Status returns the current state together with the failure, if any.
func (l *Lifecycle) Status() Status {
	state := l.machine.Current()

	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Status{State: state, Since: l.since, Version: l.version}

	if l.failed != nil {
		s.Error = l.failed.Error()

		var updateErr *standarderrors.UpdateError
		if errors.As(l.failed, &updateErr) {
			s.DataType = updateErr.DataType
			s.Target = updateErr.Version
		}
	}

	return s
}
