// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diag implements real-valued operators that are diagonal in the
// computational basis of an n-qubit register.
//
// An Operator stores one value per basis bitmask, i.e. a real function over
// n-bit strings, together with its exact minimum and maximum. The extremes are
// refreshed by every mutation so that callers may read them without a scan.
package diag

import (
	"math"
	"slices"

	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
)

// Operator is a diagonal operator over n qubits with 2ⁿ real entries indexed
// by basis bitmask.
//
// An Operator is owned by whoever built it. Binary combinators return a fresh
// Operator and never mutate their operands; Scale and Shift mutate in place.
type Operator[F num.Float] struct {
	n        int
	data     []F
	min, max F
}

func alloc[F num.Float](n int) *Operator[F] {
	return &Operator[F]{n: n, data: make([]F, num.Dim(n))}
}

// Zeros returns the zero operator over n qubits.
func Zeros[F num.Float](n int) (*Operator[F], error) {
	if n < 0 || n > num.MaxQubits {
		return nil, &errs.DomainError{Op: "diag.Zeros", Reason: "qubit count out of range"}
	}
	o := alloc[F](n)
	return o, nil
}

// FromSlice imports a dense array. The array is copied; its length must be a
// power of two.
func FromSlice[F num.Float](data []F) (*Operator[F], error) {
	n, ok := num.Log2(len(data))
	if !ok {
		return nil, errs.NotPow2("diag.FromSlice", len(data))
	}
	o := &Operator[F]{n: n, data: slices.Clone(data)}
	o.refresh()
	return o, nil
}

// FromFloat64 imports a float64 array into an operator of precision F.
func FromFloat64[F num.Float](data []float64) (*Operator[F], error) {
	n, ok := num.Log2(len(data))
	if !ok {
		return nil, errs.NotPow2("diag.FromFloat64", len(data))
	}
	o := alloc[F](n)
	for i, v := range data {
		o.data[i] = F(v)
	}
	o.refresh()
	return o, nil
}

// Qubits returns the register width n.
func (o *Operator[F]) Qubits() int { return o.n }

// Len returns 2ⁿ.
func (o *Operator[F]) Len() int { return len(o.data) }

// At returns the value on basis state b.
func (o *Operator[F]) At(b int) F { return o.data[b] }

// Min returns the smallest entry.
func (o *Operator[F]) Min() F { return o.min }

// Max returns the largest entry.
func (o *Operator[F]) Max() F { return o.max }

// Data exposes the backing array for read-only use by kernels.
// Writing through it breaks the cached extremes.
func (o *Operator[F]) Data() []F { return o.data }

// Slice exports a copy of the entries.
func (o *Operator[F]) Slice() []F { return slices.Clone(o.data) }

// Float64 exports a float64 copy of the entries.
func (o *Operator[F]) Float64() []float64 {
	out := make([]float64, len(o.data))
	for i, v := range o.data {
		out[i] = float64(v)
	}
	return out
}

// Clone returns an independent deep copy.
func (o *Operator[F]) Clone() *Operator[F] {
	return &Operator[F]{n: o.n, data: slices.Clone(o.data), min: o.min, max: o.max}
}

// Scale multiplies every entry by c in place and returns the receiver.
func (o *Operator[F]) Scale(c F) *Operator[F] {
	for i := range o.data {
		o.data[i] *= c
	}
	if c < 0 {
		o.min, o.max = c*o.max, c*o.min
	} else {
		o.min, o.max = c*o.min, c*o.max
	}
	return o
}

// Shift adds c to every entry in place and returns the receiver.
func (o *Operator[F]) Shift(c F) *Operator[F] {
	for i := range o.data {
		o.data[i] += c
	}
	o.min += c
	o.max += c
	return o
}

// SampleMean averages the operator over sampled basis states.
func (o *Operator[F]) SampleMean(samples []int) float64 {
	if len(samples) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, b := range samples {
		sum += float64(o.data[b])
	}
	return sum / float64(len(samples))
}

func (o *Operator[F]) refresh() {
	if len(o.data) == 0 {
		return
	}
	o.min, o.max = o.data[0], o.data[0]
	for _, v := range o.data[1:] {
		if v < o.min {
			o.min = v
		}
		if v > o.max {
			o.max = v
		}
	}
}

func (o *Operator[F]) sameWidth(op string, other *Operator[F]) error {
	if other.n != o.n {
		return errs.Mismatch(op, o.n, other.n)
	}
	return nil
}
