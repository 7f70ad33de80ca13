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

package lifecycle_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/lifecycle"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

var _ = Describe("Lifecycle", func() {
	var (
		ctx context.Context
		l   *lifecycle.Lifecycle
	)

	status := func() (int, lifecycle.Status) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		lifecycle.Router(l, logger.For(logger.ComponentStatusServer)).ServeHTTP(rec, req)

		var body lifecycle.Status
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())

		return rec.Code, body
	}

	BeforeEach(func() {
		ctx = context.Background()
		l = lifecycle.New("2.0.0")
	})

	It("moves from starting through updating to ready", func() {
		Expect(l.Current()).To(Equal(lifecycle.StateStarting))
		Expect(l.Updating(ctx)).To(Succeed())
		Expect(l.Current()).To(Equal(lifecycle.StateUpdating))
		Expect(l.Ready()).To(BeFalse())

		Expect(l.MarkReady(ctx)).To(Succeed())
		Expect(l.Ready()).To(BeTrue())
	})

	It("answers 503 until ready", func() {
		code, body := status()
		Expect(code).To(Equal(http.StatusServiceUnavailable))
		Expect(body.State).To(Equal(lifecycle.StateStarting))
		Expect(body.Version).To(Equal("2.0.0"))

		Expect(l.Updating(ctx)).To(Succeed())
		code, _ = status()
		Expect(code).To(Equal(http.StatusServiceUnavailable))

		Expect(l.MarkReady(ctx)).To(Succeed())
		code, body = status()
		Expect(code).To(Equal(http.StatusOK))
		Expect(body.State).To(Equal(lifecycle.StateReady))
	})

	It("reports the update step that stopped startup", func() {
		Expect(l.Updating(ctx)).To(Succeed())
		Expect(l.Fail(ctx, &standarderrors.UpdateError{
			DataType: "scm.repository.xml",
			Version:  "2.0.0",
			Err:      errors.New("disk full"),
		})).To(Succeed())

		code, body := status()
		Expect(code).To(Equal(http.StatusServiceUnavailable))
		Expect(body.State).To(Equal(lifecycle.StateFailed))
		Expect(body.DataType).To(Equal("scm.repository.xml"))
		Expect(body.Target).To(Equal("2.0.0"))
		Expect(body.Error).To(ContainSubstring("disk full"))
	})

	It("never becomes ready after a failure", func() {
		Expect(l.Fail(ctx, errors.New("boom"))).To(Succeed())
		Expect(l.MarkReady(ctx)).ToNot(Succeed())
		Expect(l.Ready()).To(BeFalse())
	})

	It("can be stopped from any state", func() {
		Expect(l.MarkReady(ctx)).To(Succeed())
		Expect(l.Stop(ctx)).To(Succeed())
		Expect(l.Current()).To(Equal(lifecycle.StateStopping))
	})
})
