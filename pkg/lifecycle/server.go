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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/sentry"
)

// Router serves GET /status. It answers 503 until the server is ready.
func Router(l *Lifecycle, log *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Debugw("Status request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	})

	router.GET("/status", func(c *gin.Context) {
		status := l.Status()

		code := http.StatusServiceUnavailable
		if status.State == StateReady {
			code = http.StatusOK
		}

		c.JSON(code, status)
	})

	return router
}

// StatusServer exposes the lifecycle over HTTP.
type StatusServer struct {
	server *http.Server
	log    *zap.SugaredLogger
}

// StartStatusServer listens on port in the background.
func StartStatusServer(l *Lifecycle, port int) *StatusServer {
	gin.SetMode(gin.ReleaseMode)

	log := logger.For(logger.ComponentStatusServer)

	s := &StatusServer{
		server: &http.Server{
			Addr:        fmt.Sprintf(":%d", port),
			Handler:     Router(l, log),
			ReadTimeout: 5 * time.Second,
		},
		log: log,
	}

	log.Infow("Starting status server", "port", port)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Status server failed: %v", err)
		}
	}()

	return s
}

func (s *StatusServer) Stop(ctx context.Context) error {
	s.log.Info("Stopping status server")

	return s.server.Shutdown(ctx)
}
