// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics scores a final circuit state against its cost table.
//
// Ratios are taken against the cost minimum, so a ratio of 1 means optimal
// for the usual case of a negative minimum.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/statevec"
)

// Optimality thresholds on the relative gap (c - min)/|min|.
const (
	OptTol = num.CmpTol
	Tol999 = 1e-3
	Tol99  = 1e-2
	Tol9   = 1e-1
)

// Metrics summarises the measurement distribution of a state.
type Metrics struct {
	Energy          float64 `yaml:"energy"`            // ⟨cost⟩
	ApproxRatio     float64 `yaml:"approx_ratio"`      // ⟨cost⟩ / min
	FeasRatio       float64 `yaml:"feas_ratio"`        // probability of a feasible outcome
	FeasApproxRatio float64 `yaml:"feas_approx_ratio"` // approximation ratio conditioned on feasibility, NaN if FeasRatio is 0
	POpt            float64 `yaml:"p_opt"`             // probability of an optimal outcome
	P999            float64 `yaml:"p_999"`             // probability of a gap below 0.1%
	P99             float64 `yaml:"p_99"`              // probability of a gap below 1%
	P9              float64 `yaml:"p_9"`               // probability of a gap below 10%
	RndApproxRatio  float64 `yaml:"rnd_approx_ratio"`  // improvement over uniform guessing, 1 at the optimum
	MinVal          float64 `yaml:"min_val"`
	RndVal          float64 `yaml:"rnd_val"` // mean cost under uniform guessing
	MaxVal          float64 `yaml:"max_val"`
}

// Compute scores sv. The cost table may cover fewer qubits than sv, in which
// case the high qubits are ancillas and basis b reads cost[b mod 2^k].
// A basis state is feasible when slack[b] ≥ 0; a nil slack marks every state
// feasible.
func Compute[F num.Float](sv *statevec.Vector[F], cost, slack *diag.Operator[F]) (*Metrics, error) {
	if cost.Qubits() > sv.Qubits() {
		return nil, errs.Mismatch("metrics.Compute", sv.Qubits(), cost.Qubits())
	}
	if slack != nil && slack.Qubits() != cost.Qubits() {
		return nil, errs.Mismatch("metrics.Compute", cost.Qubits(), slack.Qubits())
	}
	lo := float64(cost.Min())
	if lo == 0 {
		return nil, &errs.DomainError{Op: "metrics.Compute", Reason: "ratios need a non-zero cost minimum"}
	}

	c := cost.Float64()
	probs := fold(sv.Probabilities(), len(c))

	m := &Metrics{
		Energy: floats.Dot(probs, c),
		MinVal: lo,
		MaxVal: float64(cost.Max()),
		RndVal: stat.Mean(c, nil),
	}
	m.ApproxRatio = m.Energy / lo

	scale := math.Abs(lo)
	feasApprox := 0.0
	for b, p := range probs {
		if slack == nil || slack.At(b) >= 0 {
			m.FeasRatio += p
			feasApprox += p * c[b] / lo
		}
		gap := (c[b] - lo) / scale
		if gap < OptTol {
			m.POpt += p
		}
		if gap < Tol999 {
			m.P999 += p
		}
		if gap < Tol99 {
			m.P99 += p
		}
		if gap < Tol9 {
			m.P9 += p
		}
	}

	m.FeasApproxRatio = math.NaN()
	if m.FeasRatio > 0 {
		m.FeasApproxRatio = feasApprox / m.FeasRatio
	}
	m.RndApproxRatio = (m.RndVal - m.Energy) / (m.RndVal - lo)
	return m, nil
}

// fold sums probabilities that share the same low bits.
func fold(probs []float64, size int) []float64 {
	if len(probs) == size {
		return probs
	}
	out := make([]float64, size)
	for b := 0; b < len(probs); b += size {
		floats.Add(out, probs[b:b+size])
	}
	return out
}

// Map returns the metrics keyed by their short names.
func (m *Metrics) Map() map[string]float64 {
	return map[string]float64{
		"energy":            m.Energy,
		"approx_ratio":      m.ApproxRatio,
		"feas_ratio":        m.FeasRatio,
		"feas_approx_ratio": m.FeasApproxRatio,
		"p_opt":             m.POpt,
		"p_999":             m.P999,
		"p_99":              m.P99,
		"p_9":               m.P9,
		"rnd_approx_ratio":  m.RndApproxRatio,
		"min_val":           m.MinVal,
		"rnd_val":           m.RndVal,
		"max_val":           m.MaxVal,
	}
}
