// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package circuit

import (
	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/statevec"
)

// Gradient returns ⟨ψ|cost|ψ⟩ and its derivatives with respect to every
// beta and gamma by reverse-mode (adjoint) differentiation.
//
// After the forward pass φ = ψ and λ = cost·ψ. Layers are then undone from
// last to first; at each point where a generator G sits, the derivative of
// the expectation with respect to that angle is 2·Im⟨λ|G|φ⟩:
//
//	∂βᵢ: G = ΣXⱼ, evaluated after layer i
//	     φ, λ ← exp(+iβᵢB)
//	∂γᵢ: G = phase, evaluated between phase and mixer of layer i
//	     φ, λ ← exp(+iγᵢC)
//
// Two vectors of 2ⁿ amplitudes are held; time is O(p·n·2ⁿ).
func Gradient[F num.Float](phase, cost *diag.Operator[F], betas, gammas []float64) (value float64, dBetas, dGammas []float64, err error) {
	if err = checkAngles("circuit.Gradient", betas, gammas); err != nil {
		return
	}
	if phase.Qubits() != cost.Qubits() {
		err = errs.Mismatch("circuit.Gradient", phase.Qubits(), cost.Qubits())
		return
	}

	var phi *statevec.Vector[F]
	if phi, err = Run(phase, betas, gammas); err != nil {
		return
	}
	if value, err = phi.Expectation(cost); err != nil {
		return
	}
	lambda := phi.Clone()
	if err = lambda.MulDiagonal(cost); err != nil {
		return
	}

	p := len(betas)
	dBetas, dGammas = make([]float64, p), make([]float64, p)
	for i := p - 1; i >= 0; i-- {
		dBetas[i] = 2 * imag(lambda.MixerOverlap(phi))
		phi.ApplyMixer(-betas[i])
		lambda.ApplyMixer(-betas[i])

		dGammas[i] = 2 * imag(lambda.DiagonalOverlap(phase, phi))
		if err = phi.ApplyDiagonal(phase, -gammas[i]); err != nil {
			return
		}
		if err = lambda.ApplyDiagonal(phase, -gammas[i]); err != nil {
			return
		}
	}
	return
}
