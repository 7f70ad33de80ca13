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

package standarderrors_test

import (
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

var _ = Describe("Categories", func() {
	wrap := func(err error) error { return fmt.Errorf("while adding: %w", err) }

	DescribeTable("classify wrapped errors",
		func(err error, category standarderrors.Category, status, exit int) {
			Expect(standarderrors.Categorize(wrap(err))).To(Equal(category))
			Expect(standarderrors.HTTPStatus(wrap(err))).To(Equal(status))
			Expect(standarderrors.ExitCode(wrap(err))).To(Equal(exit))
		},
		Entry("duplicate", &standarderrors.AlreadyExistsError{Kind: "user", ID: "trillian"},
			standarderrors.CategoryRecoverable, http.StatusConflict, standarderrors.ExitFailure),
		Entry("missing", &standarderrors.NotFoundError{Kind: "group", ID: "crew"},
			standarderrors.CategoryRecoverable, http.StatusNotFound, standarderrors.ExitFailure),
		Entry("path collision", &standarderrors.PathCollisionError{Path: "/srv/r", ID: "a", OtherID: "b"},
			standarderrors.CategoryFatal, http.StatusInternalServerError, standarderrors.ExitPathCollision),
		Entry("failed update", &standarderrors.UpdateError{DataType: "scm.user", Version: "2.0.0", Err: errors.New("x")},
			standarderrors.CategoryFatal, http.StatusInternalServerError, standarderrors.ExitUpdateFailed),
		Entry("io", errors.New("read-only file system"),
			standarderrors.CategoryInternal, http.StatusInternalServerError, standarderrors.ExitFailure),
	)

	It("maps success to zero values", func() {
		Expect(standarderrors.HTTPStatus(nil)).To(Equal(http.StatusOK))
		Expect(standarderrors.ExitCode(nil)).To(Equal(standarderrors.ExitOK))
		Expect(standarderrors.IsRecoverable(nil)).To(BeFalse())
	})

	It("names data type, version and repository of a failed update", func() {
		cause := errors.New("permission denied")
		err := &standarderrors.UpdateError{DataType: "scm.repository.xml", Version: "2.0.0", RepositoryID: "42", Err: cause}

		Expect(err.Error()).To(ContainSubstring("scm.repository.xml"))
		Expect(err.Error()).To(ContainSubstring("2.0.0"))
		Expect(err.Error()).To(ContainSubstring("42"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})
