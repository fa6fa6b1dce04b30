// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qpe runs QAOA with a phase step that also projects toward the
// feasible subspace, as an approximate phase-estimation round on a
// constraint register would.
//
// The constrained phase step multiplies each amplitude by
//
//	f_b(γ) = (½e^{-iγc_b} + ½) + (½e^{-iγc_b} - ½)·k_b
//
// where c is the phase operator and k the constraint indicator. An indicator
// of 1 leaves the ordinary phase e^{-iγc_b}; an indicator of 0 damps the
// amplitude by ½(1 + e^{-iγc_b}). The step is not unitary, so the state is
// renormalised afterwards and the retained mass is reported as the success
// probability of that round.
package qpe

import (
	"math"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/statevec"
)

// factor returns f_b(γ) for phase value c and indicator k.
func factor(c, k, gamma float64) complex128 {
	s, co := math.Sincos(-gamma * c)
	h := complex(co/2, s/2)
	return (h + 0.5) + (h-0.5)*complex(k, 0)
}

// dfactor returns ∂f_b/∂γ = ½(-ic_b)·e^{-iγc_b}·(1 + k_b).
func dfactor(c, k, gamma float64) complex128 {
	s, co := math.Sincos(-gamma * c)
	return complex(0, -c/2) * complex(co, s) * complex(1+k, 0)
}

func checkOperands[F num.Float](op string, sv *statevec.Vector[F], phase, indicator *diag.Operator[F]) error {
	if phase.Qubits() != indicator.Qubits() {
		return errs.Mismatch(op, phase.Qubits(), indicator.Qubits())
	}
	if sv != nil && sv.Qubits() != phase.Qubits() {
		return errs.Mismatch(op, phase.Qubits(), sv.Qubits())
	}
	return nil
}

// multiply applies the constrained phase step without renormalising.
func multiply[F num.Float](sv *statevec.Vector[F], phase, indicator *diag.Operator[F], gamma float64) {
	re, im := sv.Parts()
	c, k := phase.Data(), indicator.Data()
	for b := range re {
		f := factor(float64(c[b]), float64(k[b]), gamma)
		a := complex(float64(re[b]), float64(im[b])) * f
		re[b], im[b] = F(real(a)), F(imag(a))
	}
}

// ApplyConstrained applies the constrained phase step, renormalises sv and
// returns the probability mass that survived.
func ApplyConstrained[F num.Float](sv *statevec.Vector[F], phase, indicator *diag.Operator[F], gamma float64) (float64, error) {
	if err := checkOperands("qpe.ApplyConstrained", sv, phase, indicator); err != nil {
		return 0, err
	}
	multiply(sv, phase, indicator, gamma)
	p := sv.Normalize()
	if !(p > 0) {
		return 0, &errs.NumericalFailure{Op: "qpe.ApplyConstrained", Code: -1, Reason: "no probability mass survived the projection"}
	}
	return p, nil
}

// Run starts from |+⟩^⊗n and applies, per layer, the constrained phase
// step (renormalised) followed by the mixer. The success probability is the
// product of the per-layer retained masses, each conditioned on the
// previous rounds having succeeded.
func Run[F num.Float](phase, indicator *diag.Operator[F], betas, gammas []float64) (*statevec.Vector[F], float64, error) {
	sv, layers, err := RunLayers(phase, indicator, betas, gammas)
	if err != nil {
		return nil, 0, err
	}
	psucc := 1.0
	for _, p := range layers {
		psucc *= p
	}
	return sv, psucc, nil
}

// RunLayers is Run that reports the retained mass of every layer.
func RunLayers[F num.Float](phase, indicator *diag.Operator[F], betas, gammas []float64) (*statevec.Vector[F], []float64, error) {
	if len(betas) != len(gammas) {
		return nil, nil, errs.Mismatch("qpe.Run", len(betas), len(gammas))
	}
	if err := checkOperands[F]("qpe.Run", nil, phase, indicator); err != nil {
		return nil, nil, err
	}
	sv, err := statevec.Plus[F](phase.Qubits())
	if err != nil {
		return nil, nil, err
	}
	layers, err := forward(sv, phase, indicator, betas, gammas)
	if err != nil {
		return nil, nil, err
	}
	return sv, layers, nil
}

func forward[F num.Float](sv *statevec.Vector[F], phase, indicator *diag.Operator[F], betas, gammas []float64) ([]float64, error) {
	layers := make([]float64, len(gammas))
	for i, gamma := range gammas {
		p, err := ApplyConstrained(sv, phase, indicator, gamma)
		if err != nil {
			return nil, err
		}
		layers[i] = p
		sv.ApplyMixer(betas[i])
	}
	return layers, nil
}

// RunRaw applies the same layers without any renormalisation. Its squared
// norm equals the success probability of Run, and normalising it reproduces
// Run's final state.
func RunRaw[F num.Float](phase, indicator *diag.Operator[F], betas, gammas []float64) (*statevec.Vector[F], error) {
	if len(betas) != len(gammas) {
		return nil, errs.Mismatch("qpe.RunRaw", len(betas), len(gammas))
	}
	if err := checkOperands[F]("qpe.RunRaw", nil, phase, indicator); err != nil {
		return nil, err
	}
	sv, err := statevec.Plus[F](phase.Qubits())
	if err != nil {
		return nil, err
	}
	for i, gamma := range gammas {
		multiply(sv, phase, indicator, gamma)
		sv.ApplyMixer(betas[i])
	}
	return sv, nil
}

// Energy returns the conditioned expectation of cost after Run together with
// the success probability.
func Energy[F num.Float](phase, cost, indicator *diag.Operator[F], betas, gammas []float64) (value, psucc float64, err error) {
	if phase.Qubits() != cost.Qubits() {
		return 0, 0, errs.Mismatch("qpe.Energy", phase.Qubits(), cost.Qubits())
	}
	var sv *statevec.Vector[F]
	if sv, psucc, err = Run(phase, indicator, betas, gammas); err != nil {
		return 0, 0, err
	}
	value, err = sv.Expectation(cost)
	return value, psucc, err
}
