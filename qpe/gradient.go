// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpe

import (
	"math"
	"math/cmplx"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/statevec"
)

// Result holds the conditioned expectation, the success probability and
// their derivatives with respect to every angle.
type Result struct {
	Value, Psucc float64

	DBetas, DGammas           []float64
	DPsuccBetas, DPsuccGammas []float64
}

// recoverTol is the smallest |f_b| that backward recovery divides by.
func recoverTol[F num.Float]() float64 {
	if num.PrecisionOf[F]() == num.Single {
		return 1e-2
	}
	return 1e-6
}

// Gradient differentiates the conditioned expectation E = ⟨ψ̃|C|ψ̃⟩/⟨ψ̃|ψ̃⟩
// and the success probability N = ⟨ψ̃|ψ̃⟩ of the unnormalised state ψ̃.
//
// Working on the renormalised states φ_l and the retained masses p_l,
// two co-states are carried backward:
//
//	λ_p = (C - E)·φ_p   gives ∂E   (quotient rule)
//	ν_p = φ_p           gives ∂N/N
//
// and each layer l contributes, with a = M_l†·co-state,
//
//	∂β_l = 2·Im⟨co-state|B|φ_l⟩
//	∂γ_l = 2·Re⟨a|F_l′|φ_{l-1}⟩ / √p_l
//
// before the co-state moves to F_l†·a / √p_l. The pre-layer state is
// recovered as F_l⁻¹·M_l†·φ_l·√p_l, or recomputed forward when some |f_b|
// is too small to divide by.
func Gradient[F num.Float](phase, cost, indicator *diag.Operator[F], betas, gammas []float64) (*Result, error) {
	if phase.Qubits() != cost.Qubits() {
		return nil, errs.Mismatch("qpe.Gradient", phase.Qubits(), cost.Qubits())
	}
	phi, layers, err := RunLayers(phase, indicator, betas, gammas)
	if err != nil {
		return nil, err
	}

	res := &Result{Psucc: 1}
	for _, p := range layers {
		res.Psucc *= p
	}
	if res.Value, err = phi.Expectation(cost); err != nil {
		return nil, err
	}

	lambda := phi.Clone()
	if err = lambda.MulDiagonal(cost); err != nil {
		return nil, err
	}
	lre, lim := lambda.Parts()
	pre, pim := phi.Parts()
	for b := range lre {
		lre[b] = F(float64(lre[b]) - res.Value*float64(pre[b]))
		lim[b] = F(float64(lim[b]) - res.Value*float64(pim[b]))
	}
	nu := phi.Clone()

	p := len(betas)
	res.DBetas, res.DGammas = make([]float64, p), make([]float64, p)
	res.DPsuccBetas, res.DPsuccGammas = make([]float64, p), make([]float64, p)
	for i := p - 1; i >= 0; i-- {
		res.DBetas[i] = 2 * imag(lambda.MixerOverlap(phi))
		res.DPsuccBetas[i] = 2 * res.Psucc * imag(nu.MixerOverlap(phi))

		phi.ApplyMixer(-betas[i])
		lambda.ApplyMixer(-betas[i])
		nu.ApplyMixer(-betas[i])

		sq := math.Sqrt(layers[i])
		if !recoverPrevious(phi, phase, indicator, gammas[i], sq) {
			phi.ResetPlus()
			if _, err = forward(phi, phase, indicator, betas[:i], gammas[:i]); err != nil {
				return nil, err
			}
		}

		dE, dN := backLayer(phi, lambda, nu, phase, indicator, gammas[i], sq)
		res.DGammas[i] = 2 * real(dE) / sq
		res.DPsuccGammas[i] = 2 * res.Psucc * real(dN) / sq
	}
	return res, nil
}

// recoverPrevious overwrites phi = M†φ_l with φ_{l-1} = F⁻¹·phi·√p_l. It
// leaves phi untouched and reports false if some factor is too small.
func recoverPrevious[F num.Float](phi *statevec.Vector[F], phase, indicator *diag.Operator[F], gamma, sq float64) bool {
	re, im := phi.Parts()
	c, k := phase.Data(), indicator.Data()
	tol := recoverTol[F]()
	for b := range re {
		if cmplx.Abs(factor(float64(c[b]), float64(k[b]), gamma)) < tol {
			return false
		}
	}
	for b := range re {
		f := factor(float64(c[b]), float64(k[b]), gamma)
		a := complex(float64(re[b])*sq, float64(im[b])*sq) / f
		re[b], im[b] = F(real(a)), F(imag(a))
	}
	return true
}

// backLayer accumulates ⟨a|F′|φ_{l-1}⟩ for both co-states and then moves
// them across the constrained step: a ← conj(f)·a / √p_l.
func backLayer[F num.Float](phi, lambda, nu *statevec.Vector[F], phase, indicator *diag.Operator[F], gamma, sq float64) (dE, dN complex128) {
	pre, pim := phi.Parts()
	lre, lim := lambda.Parts()
	nre, nim := nu.Parts()
	c, k := phase.Data(), indicator.Data()
	for b := range pre {
		cb, kb := float64(c[b]), float64(k[b])
		d := dfactor(cb, kb, gamma) * complex(float64(pre[b]), float64(pim[b]))

		l := complex(float64(lre[b]), float64(lim[b]))
		n := complex(float64(nre[b]), float64(nim[b]))
		dE += cmplx.Conj(l) * d
		dN += cmplx.Conj(n) * d

		f := cmplx.Conj(factor(cb, kb, gamma)) / complex(sq, 0)
		l *= f
		n *= f
		lre[b], lim[b] = F(real(l)), F(imag(l))
		nre[b], nim[b] = F(real(n)), F(imag(n))
	}
	return
}
