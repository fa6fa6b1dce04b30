// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package statevec stores the 2ⁿ complex amplitudes of an n-qubit register
// and implements the two QAOA kernels acting on them: the diagonal phase
// separator and the transverse-field mixer.
//
// Amplitudes are held as split real and imaginary arrays of the precision F.
// Every kernel works in place; the vector is expected to be close to unit
// norm but nothing enforces it.
package statevec

import (
	"math"

	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
)

// Vector is the amplitude vector of an n-qubit register.
type Vector[F num.Float] struct {
	n      int
	re, im []F
}

func alloc[F num.Float](n int) *Vector[F] {
	d := num.Dim(n)
	return &Vector[F]{n: n, re: make([]F, d), im: make([]F, d)}
}

func checkQubits(op string, n int) error {
	if n < 0 || n > num.MaxQubits {
		return &errs.DomainError{Op: op, Reason: "qubit count out of range"}
	}
	return nil
}

// New returns the all-zero vector over n qubits.
func New[F num.Float](n int) (*Vector[F], error) {
	if err := checkQubits("statevec.New", n); err != nil {
		return nil, err
	}
	return alloc[F](n), nil
}

// Plus returns the uniform superposition |+⟩^⊗n.
func Plus[F num.Float](n int) (*Vector[F], error) {
	if err := checkQubits("statevec.Plus", n); err != nil {
		return nil, err
	}
	v := alloc[F](n)
	v.ResetPlus()
	return v, nil
}

// Basis returns the computational basis state |b⟩.
func Basis[F num.Float](n, b int) (*Vector[F], error) {
	if err := checkQubits("statevec.Basis", n); err != nil {
		return nil, err
	}
	if b < 0 || b >= num.Dim(n) {
		return nil, &errs.DomainError{Op: "statevec.Basis", Reason: "basis index out of range"}
	}
	v := alloc[F](n)
	v.re[b] = 1
	return v, nil
}

// FromComplex imports a dense amplitude array whose length is a power of two.
func FromComplex[F num.Float](data []complex128) (*Vector[F], error) {
	n, ok := num.Log2(len(data))
	if !ok {
		return nil, errs.NotPow2("statevec.FromComplex", len(data))
	}
	v := alloc[F](n)
	for i, c := range data {
		v.re[i], v.im[i] = F(real(c)), F(imag(c))
	}
	return v, nil
}

// Complex128 exports a copy of the amplitudes.
func (v *Vector[F]) Complex128() []complex128 {
	out := make([]complex128, len(v.re))
	for i := range out {
		out[i] = complex(float64(v.re[i]), float64(v.im[i]))
	}
	return out
}

// Qubits returns n.
func (v *Vector[F]) Qubits() int { return v.n }

// Len returns 2ⁿ.
func (v *Vector[F]) Len() int { return len(v.re) }

// Amp returns the amplitude of basis state b.
func (v *Vector[F]) Amp(b int) complex128 {
	return complex(float64(v.re[b]), float64(v.im[b]))
}

// SetAmp overwrites the amplitude of basis state b.
func (v *Vector[F]) SetAmp(b int, c complex128) {
	v.re[b], v.im[b] = F(real(c)), F(imag(c))
}

// Parts exposes the real and imaginary arrays to sibling kernels.
func (v *Vector[F]) Parts() (re, im []F) { return v.re, v.im }

// Clone returns an independent copy.
func (v *Vector[F]) Clone() *Vector[F] {
	w := alloc[F](v.n)
	copy(w.re, v.re)
	copy(w.im, v.im)
	return w
}

// CopyFrom overwrites the receiver with w.
func (v *Vector[F]) CopyFrom(w *Vector[F]) error {
	if v.n != w.n {
		return errs.Mismatch("statevec.CopyFrom", v.n, w.n)
	}
	copy(v.re, w.re)
	copy(v.im, w.im)
	return nil
}

// ResetPlus overwrites the receiver with |+⟩^⊗n.
func (v *Vector[F]) ResetPlus() {
	a := F(1 / math.Sqrt(float64(len(v.re))))
	for i := range v.re {
		v.re[i], v.im[i] = a, 0
	}
}

// Scale multiplies every amplitude by the real factor s.
func (v *Vector[F]) Scale(s float64) {
	f := F(s)
	for i := range v.re {
		v.re[i] *= f
		v.im[i] *= f
	}
}

// Norm2 returns Σ|aᵦ|².
func (v *Vector[F]) Norm2() float64 {
	sum := 0.0
	for i, r := range v.re {
		x, y := float64(r), float64(v.im[i])
		sum += x*x + y*y
	}
	return sum
}

// Normalize rescales the vector to unit norm and returns the squared norm it
// had before. A zero vector is left untouched.
func (v *Vector[F]) Normalize() float64 {
	p := v.Norm2()
	if p > 0 {
		v.Scale(1 / math.Sqrt(p))
	}
	return p
}

// Probabilities returns the Born distribution |aᵦ|².
func (v *Vector[F]) Probabilities() []float64 {
	p := make([]float64, len(v.re))
	for i, r := range v.re {
		x, y := float64(r), float64(v.im[i])
		p[i] = x*x + y*y
	}
	return p
}

// Dot returns ⟨v|w⟩.
func (v *Vector[F]) Dot(w *Vector[F]) (complex128, error) {
	if v.n != w.n {
		return 0, errs.Mismatch("statevec.Dot", v.n, w.n)
	}
	var sr, si float64
	for i := range v.re {
		ar, ai := float64(v.re[i]), float64(v.im[i])
		br, bi := float64(w.re[i]), float64(w.im[i])
		sr += ar*br + ai*bi
		si += ar*bi - ai*br
	}
	return complex(sr, si), nil
}
