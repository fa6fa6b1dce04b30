// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package statevec

import (
	"math"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
)

// ApplyDiagonal applies the phase separator exp(-iγC):
//
//	aᵦ ← aᵦ · e^{-iγ·cᵦ}
func (v *Vector[F]) ApplyDiagonal(op *diag.Operator[F], gamma float64) error {
	if op.Qubits() != v.n {
		return errs.Mismatch("statevec.ApplyDiagonal", v.n, op.Qubits())
	}
	c := op.Data()
	for i := range v.re {
		s, co := math.Sincos(-gamma * float64(c[i]))
		x, y := float64(v.re[i]), float64(v.im[i])
		v.re[i] = F(x*co - y*s)
		v.im[i] = F(x*s + y*co)
	}
	return nil
}

// ApplyMixer applies exp(-iβ·ΣXⱼ), i.e. RX(2β) = cos β·I - i sin β·X on every
// qubit. Each of the n passes combines the amplitude pairs that differ in one
// bit; no scratch buffer is allocated.
func (v *Vector[F]) ApplyMixer(beta float64) {
	s, c := math.Sincos(beta)
	for q := 0; q < v.n; q++ {
		v.rotateX(q, c, s)
	}
}

// ApplyQubitMixer applies RX(2β) to qubit q alone.
func (v *Vector[F]) ApplyQubitMixer(q int, beta float64) error {
	if q < 0 || q >= v.n {
		return &errs.DomainError{Op: "statevec.ApplyQubitMixer", Reason: "qubit index out of range"}
	}
	s, c := math.Sincos(beta)
	v.rotateX(q, c, s)
	return nil
}

// rotateX maps each pair (a, b) = (a_{i}, a_{i|2^q}) to
//
//	a′ = c·a - i·s·b
//	b′ = c·b - i·s·a
func (v *Vector[F]) rotateX(q int, c, s float64) {
	stride := 1 << uint(q)
	re, im := v.re, v.im
	for base := 0; base < len(re); base += stride << 1 {
		for i := base; i < base+stride; i++ {
			j := i + stride
			ar, ai := float64(re[i]), float64(im[i])
			br, bi := float64(re[j]), float64(im[j])
			re[i] = F(c*ar + s*bi)
			im[i] = F(c*ai - s*br)
			re[j] = F(c*br + s*ai)
			im[j] = F(c*bi - s*ar)
		}
	}
}

// MulDiagonal overwrites v with C|v⟩.
func (v *Vector[F]) MulDiagonal(op *diag.Operator[F]) error {
	if op.Qubits() != v.n {
		return errs.Mismatch("statevec.MulDiagonal", v.n, op.Qubits())
	}
	for i, k := range op.Data() {
		v.re[i] *= k
		v.im[i] *= k
	}
	return nil
}

// Expectation returns ⟨v|C|v⟩ = Σ|aᵦ|²·cᵦ.
func (v *Vector[F]) Expectation(op *diag.Operator[F]) (float64, error) {
	if op.Qubits() != v.n {
		return 0, errs.Mismatch("statevec.Expectation", v.n, op.Qubits())
	}
	c := op.Data()
	sum := 0.0
	for i, r := range v.re {
		x, y := float64(r), float64(v.im[i])
		sum += (x*x + y*y) * float64(c[i])
	}
	return sum, nil
}

// DiagonalOverlap returns ⟨v|C|w⟩.
func (v *Vector[F]) DiagonalOverlap(op *diag.Operator[F], w *Vector[F]) complex128 {
	c := op.Data()
	var sr, si float64
	for i := range v.re {
		ar, ai := float64(v.re[i]), float64(v.im[i])
		br, bi := float64(w.re[i]), float64(w.im[i])
		k := float64(c[i])
		sr += k * (ar*br + ai*bi)
		si += k * (ar*bi - ai*br)
	}
	return complex(sr, si)
}

// MixerOverlap returns ⟨v|B|w⟩ with B = ΣXⱼ, the mixer generator.
func (v *Vector[F]) MixerOverlap(w *Vector[F]) complex128 {
	var sr, si float64
	for i := range v.re {
		var xr, xi float64
		for q := 0; q < v.n; q++ {
			j := i ^ (1 << uint(q))
			xr += float64(w.re[j])
			xi += float64(w.im[j])
		}
		ar, ai := float64(v.re[i]), float64(v.im[i])
		sr += ar*xr + ai*xi
		si += ar*xi - ai*xr
	}
	return complex(sr, si)
}
