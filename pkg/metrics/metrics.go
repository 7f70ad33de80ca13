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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/sentry"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "scm"
	subsystem = "core"

	storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_ops_total",
			Help:      "Total number of store document loads and saves",
		},
		[]string{"operation", "store", "status"},
	)

	storeOpsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_ops_duration_seconds",
			Help:      "Duration of store document loads and saves in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation", "store"},
	)

	daoMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dao_mutations_total",
			Help:      "Total number of DAO mutations by store, operation and result",
		},
		[]string{"store", "operation", "result"},
	)

	updateStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "update_steps_total",
			Help:      "Total number of executed update steps",
		},
		[]string{"data_type", "version", "status"},
	)

	migratedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migrated_files_total",
			Help:      "Total number of files handled while migrating repositories",
		},
		[]string{"strategy", "action"},
	)

	migratedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migrated_bytes_total",
			Help:      "Total number of bytes written while migrating repositories",
		},
		[]string{"strategy"},
	)

	filesystemOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_total",
			Help:      "Total number of filesystem operations by type",
		},
		[]string{"operation", "status"},
	)

	filesystemOpsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_duration_seconds",
			Help:      "Duration of filesystem operations in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)
)

func status(err error) string {
	if err != nil {
		return StatusError
	}

	return StatusSuccess
}

// SetupMetricsEndpoint starts an HTTP server to expose metrics
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeError, logger.For("metrics"))
		}
	}()

	return server
}

// RecordStoreOp records a load or save of a store document.
func RecordStoreOp(operation, store string, duration time.Duration, err error) {
	storeOpsTotal.WithLabelValues(operation, store, status(err)).Inc()
	storeOpsDuration.WithLabelValues(operation, store).Observe(duration.Seconds())
}

// RecordDAOMutation counts an add, modify or delete and whether it was applied.
func RecordDAOMutation(store, operation string, err error) {
	daoMutationsTotal.WithLabelValues(store, operation, status(err)).Inc()
}

// RecordUpdateStep counts an executed update step.
func RecordUpdateStep(dataType, version string, err error) {
	updateStepsTotal.WithLabelValues(dataType, version, status(err)).Inc()
}

// RecordMigratedFile counts one file handled by a migration strategy.
// action is "copied", "skipped" or "moved".
func RecordMigratedFile(strategy, action string, bytes int64) {
	migratedFilesTotal.WithLabelValues(strategy, action).Inc()

	if bytes > 0 {
		migratedBytesTotal.WithLabelValues(strategy).Add(float64(bytes))
	}
}

// RecordFilesystemOp records a filesystem operation metric.
func RecordFilesystemOp(operation string, duration time.Duration, err error) {
	filesystemOpsTotal.WithLabelValues(operation, status(err)).Inc()
	filesystemOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
