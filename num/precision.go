// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package num fixes the numeric precision shared by operators and statevectors.
//
// Precision is a type parameter chosen once when the first operator is built.
// Every value derived from it carries the same parameter, so a float32 vector
// can never meet a float64 operator inside one computation.
package num

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/curioloop/fastqaoa/errs"
)

// Float is the set of real types a simulation may be instantiated with.
type Float interface {
	~float32 | ~float64
}

// Precision names the width of the real type backing a simulation.
type Precision int

const (
	// Single is 32-bit reals (64-bit complex amplitudes).
	Single Precision = 32
	// Double is 64-bit reals (128-bit complex amplitudes).
	Double Precision = 64
)

func (p Precision) String() string {
	switch p {
	case Single:
		return "float32"
	case Double:
		return "float64"
	default:
		return fmt.Sprintf("Precision(%d)", int(p))
	}
}

// ParsePrecision accepts "32", "64", "single", "double", "float32" and "float64".
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "32", "single", "float32", "f32":
		return Single, nil
	case "64", "double", "float64", "f64":
		return Double, nil
	}
	return 0, &errs.DomainError{Op: "num.ParsePrecision", Reason: fmt.Sprintf("unknown precision %q", s)}
}

// PrecisionOf reports the precision of F.
func PrecisionOf[F Float]() Precision {
	var f F
	if unsafe.Sizeof(f) == 4 {
		return Single
	}
	return Double
}

// CmpTol is the absolute tolerance of equality tests on diagonal values.
const CmpTol = 1e-8

// GradTol returns the agreement expected between two exact gradient
// evaluations at precision F.
func GradTol[F Float]() float64 {
	if PrecisionOf[F]() == Single {
		return 1e-4
	}
	return 1e-6
}

// MaxQubits bounds the register size so that 2^n fits in an int slice index.
const MaxQubits = 40

// Dim returns 2^n.
func Dim(n int) int { return 1 << uint(n) }

// Log2 returns n with 2^n == size, or false if size is not a positive power of two.
func Log2(size int) (int, bool) {
	if size <= 0 || size&(size-1) != 0 {
		return 0, false
	}
	return bits.TrailingZeros(uint(size)), true
}
