// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpe

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/numdiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instance struct {
	phase, cost, indicator *diag.Operator[float64]
}

func randomInstance(t *testing.T, rng *rand.Rand, n int) instance {
	t.Helper()
	c, o, k := make([]float64, 1<<n), make([]float64, 1<<n), make([]float64, 1<<n)
	for b := range c {
		c[b] = rng.NormFloat64()
		o[b] = rng.NormFloat64()
		k[b] = rng.Float64()
	}
	phase, err := diag.FromSlice(c)
	require.NoError(t, err)
	cost, _ := diag.FromSlice(o)
	indicator, _ := diag.FromSlice(k)
	return instance{phase, cost, indicator}
}

func randomAngles(rng *rand.Rand, p int) (betas, gammas []float64) {
	betas, gammas = make([]float64, p), make([]float64, p)
	for i := range betas {
		betas[i] = 2*rng.Float64() - 1
		gammas[i] = 2*rng.Float64() - 1
	}
	return
}

func TestFactorLimits(t *testing.T) {
	gamma, c := 0.8, 1.7
	assert.InDelta(t, 1, math.Hypot(real(factor(c, 1, gamma)), imag(factor(c, 1, gamma))), 1e-15)
	half := factor(c, 0, gamma)
	wantAbs := math.Abs(math.Cos(gamma * c / 2))
	assert.InDelta(t, wantAbs, math.Hypot(real(half), imag(half)), 1e-15)

	h := 1e-6
	fd := (factor(c, 0.3, gamma+h) - factor(c, 0.3, gamma-h)) / complex(2*h, 0)
	d := dfactor(c, 0.3, gamma)
	assert.InDelta(t, real(fd), real(d), 1e-8)
	assert.InDelta(t, imag(fd), imag(d), 1e-8)
}

func TestSuccessProbabilityBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for range 10 {
		in := randomInstance(t, rng, 5)
		betas, gammas := randomAngles(rng, 4)

		sv, layers, err := RunLayers(in.phase, in.indicator, betas, gammas)
		require.NoError(t, err)
		assert.InDelta(t, 1, sv.Norm2(), 1e-12)
		psucc := 1.0
		for _, p := range layers {
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 1+1e-12)
			psucc *= p
		}

		_, got, err := Run(in.phase, in.indicator, betas, gammas)
		require.NoError(t, err)
		assert.InDelta(t, psucc, got, 1e-15)
	}

	in := randomInstance(t, rng, 3)
	p32, _ := diag.FromFloat64[float32](in.phase.Float64())
	k32, _ := diag.FromFloat64[float32](in.indicator.Float64())
	_, psucc, err := Run(p32, k32, []float64{0.4, -0.2}, []float64{0.9, 0.5})
	require.NoError(t, err)
	assert.True(t, psucc >= 0 && psucc <= 1)
}

func TestConditionedExpectationReproducible(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	in := randomInstance(t, rng, 5)
	betas, gammas := randomAngles(rng, 5)

	value, psucc, err := Energy(in.phase, in.cost, in.indicator, betas, gammas)
	require.NoError(t, err)

	raw, err := RunRaw(in.phase, in.indicator, betas, gammas)
	require.NoError(t, err)
	assert.InDelta(t, psucc, raw.Norm2(), 1e-12)

	unnorm, err := raw.Expectation(in.cost)
	require.NoError(t, err)
	assert.InDelta(t, value, unnorm/psucc, 1e-10)

	sv, _, _ := Run(in.phase, in.indicator, betas, gammas)
	raw.Normalize()
	dot, err := raw.Dot(sv)
	require.NoError(t, err)
	assert.InDelta(t, 1, real(dot), 1e-10)
}

// finiteDifference differentiates (value, psucc) by central differences over
// x = [betas…, gammas…].
func finiteDifference(t *testing.T, in instance, betas, gammas []float64) (jac []float64) {
	t.Helper()
	p := len(betas)
	x := append(append([]float64{}, betas...), gammas...)
	jac = make([]float64, 2*len(x))
	fn := func(x, y []float64) {
		v, ps, err := Energy(in.phase, in.cost, in.indicator, x[:p], x[p:])
		require.NoError(t, err)
		y[0], y[1] = v, ps
	}
	spec := numdiff.Spec{Method: numdiff.Central}
	require.NoError(t, spec.Jacobian(fn, 2, x, jac))
	return
}

func checkGradient(t *testing.T, in instance, betas, gammas []float64, tol float64) {
	t.Helper()
	res, err := Gradient(in.phase, in.cost, in.indicator, betas, gammas)
	require.NoError(t, err)

	value, psucc, _ := Energy(in.phase, in.cost, in.indicator, betas, gammas)
	assert.InDelta(t, value, res.Value, 1e-12)
	assert.InDelta(t, psucc, res.Psucc, 1e-12)

	p := len(betas)
	jac := finiteDifference(t, in, betas, gammas)
	n := 2 * p
	assert.InDeltaSlice(t, jac[:p], res.DBetas, tol)
	assert.InDeltaSlice(t, jac[p:n], res.DGammas, tol)
	assert.InDeltaSlice(t, jac[n:n+p], res.DPsuccBetas, tol)
	assert.InDeltaSlice(t, jac[n+p:], res.DPsuccGammas, tol)
}

func TestGradientMatchesFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	for range 3 {
		in := randomInstance(t, rng, 4)
		betas, gammas := randomAngles(rng, 4)
		checkGradient(t, in, betas, gammas, 1e-6)
	}
}

func TestGradientRecomputesThroughVanishingFactor(t *testing.T) {
	const n = 4
	c, k := make([]float64, 1<<n), make([]float64, 1<<n)
	for b := range c {
		c[b] = float64(b + 1)
		if b < 8 {
			k[b] = 1
		}
	}
	phase, _ := diag.FromSlice(c)
	indicator, _ := diag.FromSlice(k)
	in := instance{phase, phase, indicator}

	// γ = π zeroes f_b for every odd phase value with k_b = 0.
	betas, gammas := []float64{0.3, 0.7, -0.4}, []float64{0.2, math.Pi, 0.5}
	f := factor(c[8], k[8], gammas[1])
	require.Less(t, math.Hypot(real(f), imag(f)), 1e-12)

	checkGradient(t, in, betas, gammas, 1e-6)
}

func TestOperandChecks(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	a, b := randomInstance(t, rng, 3), randomInstance(t, rng, 4)

	_, _, err := Run(a.phase, b.indicator, []float64{1}, []float64{1})
	require.ErrorIs(t, err, errs.ErrDimension)
	_, _, err = Run(a.phase, a.indicator, []float64{1}, nil)
	require.ErrorIs(t, err, errs.ErrDimension)
	_, err = Gradient(a.phase, b.cost, a.indicator, []float64{1}, []float64{1})
	require.ErrorIs(t, err, errs.ErrDimension)
}

func TestProjectionWithoutMass(t *testing.T) {
	phase, _ := diag.FromSlice([]float64{1, 1})
	indicator, _ := diag.FromSlice([]float64{0, 0})
	_, _, err := Run(phase, indicator, []float64{0}, []float64{math.NaN()})
	require.ErrorIs(t, err, errs.ErrNumerical)
}
