// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs holds the error taxonomy shared by every kernel.
//
// Each error is a pointer struct; errors.Is matches it against the kind
// sentinels below, errors.As recovers the detail.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrDimension matches any *DimensionError.
	ErrDimension = errors.New("dimension error")
	// ErrDomain matches any *DomainError.
	ErrDomain = errors.New("domain error")
	// ErrInfeasible matches any *InfeasibleError.
	ErrInfeasible = errors.New("infeasible")
	// ErrNumerical matches any *NumericalFailure.
	ErrNumerical = errors.New("numerical failure")
)

// DimensionError reports a length that is not a power of two, or two operands
// built over a different number of qubits.
type DimensionError struct {
	Op       string
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	if e.Expected < 0 {
		return fmt.Sprintf("%s: length %d is not a power of two", e.Op, e.Actual)
	}
	return fmt.Sprintf("%s: dimension mismatch: expected %d, got %d", e.Op, e.Expected, e.Actual)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimension }

// NotPow2 builds the DimensionError for a dense array of invalid length.
func NotPow2(op string, length int) error {
	return &DimensionError{Op: op, Expected: -1, Actual: length}
}

// Mismatch builds the DimensionError for operands of different width.
func Mismatch(op string, expected, actual int) error {
	return &DimensionError{Op: op, Expected: expected, Actual: actual}
}

// DomainError reports an argument outside the domain of an operation: a
// bitmask touching a qubit that does not exist, or an unknown comparison code.
type DomainError struct {
	Op     string
	Reason string
}

func (e *DomainError) Error() string { return e.Op + ": " + e.Reason }

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// InfeasibleError reports a penalty search over an operator that has no
// feasible, or no infeasible, basis state.
type InfeasibleError struct {
	Feasible   int
	Infeasible int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("penalty search: %d feasible and %d infeasible states", e.Feasible, e.Infeasible)
}

func (e *InfeasibleError) Is(target error) bool { return target == ErrInfeasible }

// NumericalFailure carries the terminal status of an optimiser that stopped
// on a numerical condition. The best parameters found are still available on
// the optimiser result.
type NumericalFailure struct {
	Op     string
	Code   int
	Reason string
}

func (e *NumericalFailure) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Op, e.Reason, e.Code)
}

func (e *NumericalFailure) Is(target error) bool { return target == ErrNumerical }
