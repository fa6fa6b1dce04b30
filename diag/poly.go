// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diag

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
)

// Terms is a sparse multilinear pseudo-Boolean polynomial
//
//	P(x) = Σ c_S · Π_{i∈S} xᵢ   (xᵢ ∈ {0,1})
//
// keyed by the subset bitmask S. The empty key is the constant term.
type Terms map[uint64]float64

// TermsOf builds Terms from index lists, e.g. {{0}: 0.5, {0, 2}: 0.75}.
func TermsOf(vars [][]int, coef []float64) (Terms, error) {
	if len(vars) != len(coef) {
		return nil, errs.Mismatch("diag.TermsOf", len(vars), len(coef))
	}
	t := make(Terms, len(vars))
	for k, idx := range vars {
		var key uint64
		for _, i := range idx {
			if i < 0 || i >= 64 {
				return nil, &errs.DomainError{Op: "diag.TermsOf", Reason: fmt.Sprintf("variable index %d out of range", i)}
			}
			key |= 1 << uint(i)
		}
		t[key] += coef[k]
	}
	return t, nil
}

// BruteForce evaluates the polynomial on all 2ⁿ basis states:
//
//	data[b] = Σ_{S : b∧S = S} c_S
func BruteForce[F num.Float](n int, terms Terms) (*Operator[F], error) {
	if n < 0 || n > num.MaxQubits {
		return nil, &errs.DomainError{Op: "diag.BruteForce", Reason: fmt.Sprintf("qubit count %d out of range", n)}
	}

	keys := make([]uint64, 0, len(terms))
	for s := range terms {
		if bits.Len64(s) > n {
			return nil, &errs.DomainError{
				Op:     "diag.BruteForce",
				Reason: fmt.Sprintf("term %#b references qubit %d of %d", s, bits.Len64(s)-1, n),
			}
		}
		keys = append(keys, s)
	}
	// Fixed summation order keeps results reproducible across map iterations.
	slices.Sort(keys)
	vals := make([]float64, len(keys))
	for k, s := range keys {
		vals[k] = terms[s]
	}

	o := alloc[F](n)
	for b := range o.data {
		u := uint64(b)
		sum := 0.0
		for k, s := range keys {
			if u&s == s {
				sum += vals[k]
			}
		}
		o.data[b] = F(sum)
	}
	o.refresh()
	return o, nil
}
