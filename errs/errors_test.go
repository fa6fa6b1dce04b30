// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
		msg  string
	}{
		{NotPow2("diag.FromSlice", 3), ErrDimension, "diag.FromSlice: length 3 is not a power of two"},
		{Mismatch("qpe.Run", 4, 5), ErrDimension, "qpe.Run: dimension mismatch: expected 4, got 5"},
		{&DomainError{Op: "diag.ParseCmp", Reason: "unknown code"}, ErrDomain, "diag.ParseCmp: unknown code"},
		{&InfeasibleError{Feasible: 0, Infeasible: 8}, ErrInfeasible, "penalty search: 0 feasible and 8 infeasible states"},
		{&NumericalFailure{Op: "adam", Code: 3, Reason: "gradient is not finite"}, ErrNumerical, "adam: gradient is not finite (code 3)"},
	}
	kinds := []error{ErrDimension, ErrDomain, ErrInfeasible, ErrNumerical}
	for _, c := range cases {
		wrapped := fmt.Errorf("outer: %w", c.err)
		assert.EqualError(t, c.err, c.msg)
		for _, k := range kinds {
			assert.Equal(t, k == c.kind, errors.Is(wrapped, k), "%v vs %v", c.err, k)
		}
	}

	var de *DimensionError
	assert.True(t, errors.As(fmt.Errorf("x: %w", Mismatch("op", 1, 2)), &de))
	assert.Equal(t, 2, de.Actual)
}
