// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objective adapts circuit simulations to the flat parameter vectors
// that optimisers work on.
//
// A depth-p schedule is packed as x = [β₀ … β_{p-1}, γ₀ … γ_{p-1}].
package objective

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/fastqaoa/circuit"
	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/numdiff"
	"github.com/curioloop/fastqaoa/qpe"
	"github.com/curioloop/fastqaoa/schedule"
)

// Function is a scalar objective of Dim() parameters.
//
// Eval returns f(x) and, when g is not nil, stores ∇f(x) in g. Eval panics
// if len(x) or len(g) differs from Dim().
type Function interface {
	Dim() int
	Eval(x, g []float64) float64
}

// Split views x as (betas, gammas) without copying.
func Split(x []float64) (betas, gammas []float64) {
	p := len(x) / 2
	return x[:p], x[p:]
}

// Pack returns a fresh x from betas and gammas.
func Pack(betas, gammas []float64) []float64 {
	x := make([]float64, 0, len(betas)+len(gammas))
	return append(append(x, betas...), gammas...)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func checkDepth(depth int) error {
	if depth < 1 {
		return &errs.DomainError{Op: "objective", Reason: "depth must be positive"}
	}
	return nil
}

// Unconstrained is ⟨ψ(β, γ)|cost|ψ(β, γ)⟩ of a plain QAOA circuit.
type Unconstrained[F num.Float] struct {
	phase, cost *diag.Operator[F]
	depth       int
}

// NewUnconstrained builds the objective of a depth-p circuit.
func NewUnconstrained[F num.Float](phase, cost *diag.Operator[F], depth int) (*Unconstrained[F], error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	if phase.Qubits() != cost.Qubits() {
		return nil, errs.Mismatch("objective.NewUnconstrained", phase.Qubits(), cost.Qubits())
	}
	return &Unconstrained[F]{phase: phase, cost: cost, depth: depth}, nil
}

func (u *Unconstrained[F]) Dim() int { return 2 * u.depth }

func (u *Unconstrained[F]) Eval(x, g []float64) float64 {
	betas, gammas := Split(x)
	if g == nil {
		v, err := circuit.Energy(u.phase, u.cost, betas, gammas)
		must(err)
		return v
	}
	v, db, dg, err := circuit.Gradient(u.phase, u.cost, betas, gammas)
	must(err)
	copy(g, db)
	copy(g[len(db):], dg)
	return v
}

// Constrained is the conditioned expectation of the projected circuit.
type Constrained[F num.Float] struct {
	phase, cost, indicator *diag.Operator[F]
	depth                  int
}

// NewConstrained builds the objective of a depth-p projected circuit.
func NewConstrained[F num.Float](phase, cost, indicator *diag.Operator[F], depth int) (*Constrained[F], error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	if phase.Qubits() != cost.Qubits() {
		return nil, errs.Mismatch("objective.NewConstrained", phase.Qubits(), cost.Qubits())
	}
	if phase.Qubits() != indicator.Qubits() {
		return nil, errs.Mismatch("objective.NewConstrained", phase.Qubits(), indicator.Qubits())
	}
	return &Constrained[F]{phase: phase, cost: cost, indicator: indicator, depth: depth}, nil
}

func (c *Constrained[F]) Dim() int { return 2 * c.depth }

func (c *Constrained[F]) Eval(x, g []float64) float64 {
	betas, gammas := Split(x)
	if g == nil {
		v, _, err := qpe.Energy(c.phase, c.cost, c.indicator, betas, gammas)
		must(err)
		return v
	}
	res, err := qpe.Gradient(c.phase, c.cost, c.indicator, betas, gammas)
	must(err)
	copy(g, res.DBetas)
	copy(g[len(res.DBetas):], res.DGammas)
	return res.Value
}

// Psucc returns the success probability of the projection at x.
func (c *Constrained[F]) Psucc(x []float64) (float64, error) {
	betas, gammas := Split(x)
	_, ps, err := qpe.Run(c.phase, c.indicator, betas, gammas)
	return ps, err
}

// Ramp restricts a depth-p objective to the two-parameter family
// β = δβ·(1-r), γ = δγ·r of the linear schedule. x = [δβ, δγ].
type Ramp struct {
	inner         Function
	fbeta, fgamma []float64
}

// NewRamp wraps inner, whose Dim must be even.
func NewRamp(inner Function) (*Ramp, error) {
	if inner.Dim()%2 != 0 {
		return nil, &errs.DomainError{Op: "objective.NewRamp", Reason: "inner dimension must be even"}
	}
	fb, fg, err := schedule.Linear(inner.Dim() / 2)
	if err != nil {
		return nil, err
	}
	return &Ramp{inner: inner, fbeta: fb, fgamma: fg}, nil
}

func (r *Ramp) Dim() int { return 2 }

func (r *Ramp) Eval(x, g []float64) float64 {
	y := Pack(r.Expand(x[0], x[1]))
	if g == nil {
		return r.inner.Eval(y, nil)
	}
	gy := make([]float64, len(y))
	v := r.inner.Eval(y, gy)
	gb, gg := Split(gy)
	g[0], g[1] = floats.Dot(gb, r.fbeta), floats.Dot(gg, r.fgamma)
	return v
}

// Expand returns the full schedule for the scales (δβ, δγ).
func (r *Ramp) Expand(db, dg float64) (betas, gammas []float64) {
	betas = floats.ScaleTo(make([]float64, len(r.fbeta)), db, r.fbeta)
	gammas = floats.ScaleTo(make([]float64, len(r.fgamma)), dg, r.fgamma)
	return
}

// CheckGradient compares fn's gradient at x with central finite differences
// and returns the largest absolute deviation.
func CheckGradient(fn Function, x []float64) (float64, error) {
	if len(x) != fn.Dim() {
		return 0, errs.Mismatch("objective.CheckGradient", fn.Dim(), len(x))
	}
	x = append([]float64{}, x...)
	exact := make([]float64, len(x))
	fn.Eval(x, exact)

	approx := make([]float64, len(x))
	spec := numdiff.Spec{Method: numdiff.Central}
	if err := spec.Gradient(func(x []float64) float64 { return fn.Eval(x, nil) }, x, approx); err != nil {
		return 0, err
	}
	return floats.Distance(exact, approx, math.Inf(1)), nil
}
