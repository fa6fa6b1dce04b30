// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff approximates derivatives of circuit objectives by finite
// differences. It serves as an independent check of the adjoint gradients.
package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward uses the first order forward difference.
	Forward Method = iota
	// Central uses the central difference in the interior and the second
	// order one-sided difference next to a bound.
	Central
)

// Bound is the closed interval [lo, hi] an angle may take. NaN means unbounded.
type Bound [2]float64

// Spec selects how derivatives are approximated.
//
// The default absolute step is h = ε·sign(x)·max(1, |x|) with ε = √eps for
// Forward and ∛eps for Central. RelStep replaces ε and drops the max;
// AbsStep fixes h outright. Steps are shrunk or flipped so that no
// evaluation leaves Bounds.
type Spec struct {
	Method  Method
	Bounds  []Bound
	RelStep float64
	AbsStep float64
}

func (s *Spec) check(x0 []float64) error {
	switch {
	case s.Method != Forward && s.Method != Central:
		return errors.New("unknown method")
	case len(x0) == 0:
		return errors.New("empty x0")
	case s.Bounds != nil && len(s.Bounds) != len(x0):
		return errors.New("invalid bound dimension")
	}
	for i, b := range s.Bounds {
		lo, hi := lower(b), upper(b)
		if lo > hi {
			return errors.New("invalid bound range")
		}
		if x0[i] < lo || x0[i] > hi {
			return errors.New("x0 violates bound constraints")
		}
	}
	return nil
}

func lower(b Bound) float64 {
	if math.IsNaN(b[0]) {
		return math.Inf(-1)
	}
	return b[0]
}

func upper(b Bound) float64 {
	if math.IsNaN(b[1]) {
		return math.Inf(1)
	}
	return b[1]
}

// Gradient fills grad with the derivative of the scalar f at x0. x0 is used
// as scratch and restored before returning.
func (s *Spec) Gradient(f func(x []float64) float64, x0, grad []float64) error {
	if len(grad) != len(x0) {
		return errors.New("invalid gradient dimension")
	}
	vec := func(x, y []float64) { y[0] = f(x) }
	return s.Jacobian(vec, 1, x0, grad)
}

// Jacobian fills jac (row-major, m rows of len(x0)) with the derivatives of
// the m outputs of f at x0. x0 is used as scratch and restored.
func (s *Spec) Jacobian(f func(x, y []float64), m int, x0, jac []float64) error {
	if err := s.check(x0); err != nil {
		return err
	}
	if m <= 0 || len(jac) != m*len(x0) {
		return errors.New("invalid jacobian dimension")
	}
	h, oneSide := s.steps(x0)

	n := len(x0)
	f0, f1, f2 := make([]float64, m), make([]float64, m), make([]float64, m)
	f(x0, f0)
	for i, step := range h {
		xi := x0[i]
		switch {
		case s.Method == Forward:
			x0[i] = xi + step
			f(x0, f1)
			for j := range f0 {
				jac[j*n+i] = (f1[j] - f0[j]) / step
			}
		case oneSide[i]:
			x0[i] = xi + step
			f(x0, f1)
			x0[i] = xi + 2*step
			f(x0, f2)
			for j := range f0 {
				jac[j*n+i] = (4*f1[j] - 3*f0[j] - f2[j]) / (2 * step)
			}
		default:
			x0[i] = xi - step
			f(x0, f1)
			x0[i] = xi + step
			f(x0, f2)
			for j := range f0 {
				jac[j*n+i] = (f2[j] - f1[j]) / (2 * step)
			}
		}
		x0[i] = xi
	}
	return nil
}

// steps returns the absolute step of every coordinate, fitted into Bounds.
func (s *Spec) steps(x0 []float64) (h []float64, oneSide []bool) {
	eps := sqrtEps
	if s.Method == Central {
		eps = cubeEps
	}
	h = make([]float64, len(x0))
	oneSide = make([]bool, len(x0))
	for i, v := range x0 {
		auto := math.Copysign(eps, v) * math.Max(1, math.Abs(v))
		switch {
		case s.AbsStep != 0:
			h[i] = s.AbsStep
		case s.RelStep != 0:
			h[i] = math.Copysign(s.RelStep, v) * math.Abs(v)
		default:
			h[i] = auto
		}
		if (v+h[i])-v == 0 {
			h[i] = auto
		}
		if s.Method == Central {
			h[i] = math.Abs(h[i])
		}
	}
	if s.Bounds == nil {
		return
	}

	for i, v := range x0 {
		lo, hi := lower(s.Bounds[i]), upper(s.Bounds[i])
		ld, ud := v-lo, hi-v
		if s.Method == Forward {
			x := v + h[i]
			fits := math.Abs(h[i]) < math.Max(ld, ud)
			switch {
			case (x < lo || x > hi) && fits:
				h[i] = -h[i]
			case !fits && ud >= ld:
				h[i] = ud
			case !fits:
				h[i] = -ld
			}
			continue
		}
		if ld >= h[i] && ud >= h[i] {
			continue
		}
		if ud >= ld {
			h[i] = math.Min(h[i], ud/2)
		} else {
			h[i] = -math.Min(h[i], ld/2)
		}
		oneSide[i] = true
		if d := math.Min(ld, ud); math.Abs(h[i]) <= d {
			h[i], oneSide[i] = d, false
		}
	}
	return
}
