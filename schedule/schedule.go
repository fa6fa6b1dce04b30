// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package schedule builds initial angle schedules for depth-p circuits and
// carries a schedule over to a different depth.
package schedule

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/curioloop/fastqaoa/errs"
)

func checkDepth(op string, p int) error {
	if p < 1 {
		return &errs.DomainError{Op: op, Reason: "depth must be positive"}
	}
	return nil
}

// Linear ramps betas down and gammas up over the midpoints rᵢ = (i+½)/p:
// βᵢ = 1 - rᵢ, γᵢ = rᵢ.
func Linear(p int) (betas, gammas []float64, err error) {
	if err = checkDepth("schedule.Linear", p); err != nil {
		return
	}
	betas, gammas = make([]float64, p), make([]float64, p)
	for i := range gammas {
		r := (float64(i) + 0.5) / float64(p)
		betas[i], gammas[i] = 1-r, r
	}
	return
}

// Const sets every angle to 1/p.
func Const(p int) (betas, gammas []float64, err error) {
	if err = checkDepth("schedule.Const", p); err != nil {
		return
	}
	betas, gammas = make([]float64, p), make([]float64, p)
	for i := range betas {
		betas[i], gammas[i] = 1/float64(p), 1/float64(p)
	}
	return
}

// Random draws every angle from the standard normal distribution.
func Random(p int, rng *rand.Rand) (betas, gammas []float64, err error) {
	if err = checkDepth("schedule.Random", p); err != nil {
		return
	}
	betas, gammas = make([]float64, p), make([]float64, p)
	for i := range betas {
		betas[i] = rng.NormFloat64()
	}
	for i := range gammas {
		gammas[i] = rng.NormFloat64()
	}
	return
}

// Interpolate resamples a schedule onto p layers. Both schedules are placed
// on [0, 1], sampled piecewise linearly and scaled by len(old)/p so the
// total rotation is preserved.
func Interpolate(p int, betas, gammas []float64) (newBetas, newGammas []float64, err error) {
	if err = checkDepth("schedule.Interpolate", p); err != nil {
		return
	}
	if len(betas) != len(gammas) {
		err = errs.Mismatch("schedule.Interpolate", len(betas), len(gammas))
		return
	}
	if len(betas) == 0 {
		err = &errs.DomainError{Op: "schedule.Interpolate", Reason: "empty schedule"}
		return
	}
	if newBetas, err = resample(p, betas); err != nil {
		return
	}
	newGammas, err = resample(p, gammas)
	return
}

func resample(p int, ys []float64) ([]float64, error) {
	out := make([]float64, p)
	scale := float64(len(ys)) / float64(p)
	if len(ys) == 1 {
		for i := range out {
			out[i] = ys[0] * scale
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(unitGrid(len(ys)), ys); err != nil {
		return nil, err
	}
	for i, x := range unitGrid(p) {
		out[i] = pl.Predict(x) * scale
	}
	return out, nil
}

// unitGrid returns k evenly spaced points on [0, 1]; a single point sits at 0.
func unitGrid(k int) []float64 {
	if k == 1 {
		return []float64{0}
	}
	return floats.Span(make([]float64, k), 0, 1)
}
