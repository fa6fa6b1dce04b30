// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diag

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/curioloop/fastqaoa/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randn(rng *rand.Rand, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = rng.NormFloat64()
	}
	return s
}

func arange(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = float64(i)
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := randn(rng, 1<<10)

	dg, err := FromSlice(s)
	require.NoError(t, err)
	assert.Equal(t, 10, dg.Qubits())
	assert.Equal(t, s, dg.Slice())
	assert.Equal(t, slices.Min(s), dg.Min())
	assert.Equal(t, slices.Max(s), dg.Max())

	s[0] = 1e9
	assert.NotEqual(t, s[0], dg.At(0), "import must copy")

	_, err = FromSlice(make([]float64, 1000))
	require.ErrorIs(t, err, errs.ErrDimension)
	_, err = FromSlice([]float64{})
	require.ErrorIs(t, err, errs.ErrDimension)
}

func TestBruteForce(t *testing.T) {
	dg, err := BruteForce[float64](2, Terms{0b01: -1, 0b10: -1, 0b11: 1.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, -1, -0.5}, dg.Slice())
	assert.Equal(t, -1.0, dg.Min())
	assert.Equal(t, 0.0, dg.Max())

	single, err := BruteForce[float32](2, Terms{0: 2, 0b01: -1, 0b10: -1, 0b11: 1.5})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 1, 1, 1.5}, single.Slice())

	_, err = BruteForce[float64](2, Terms{0b100: 1})
	require.ErrorIs(t, err, errs.ErrDomain)
}

func TestTermsOf(t *testing.T) {
	terms, err := TermsOf([][]int{{0}, {1}, {0, 1}, {1, 0}}, []float64{-1, -1, 1, 0.5})
	require.NoError(t, err)
	assert.Equal(t, Terms{0b01: -1, 0b10: -1, 0b11: 1.5}, terms)

	_, err = TermsOf([][]int{{64}}, []float64{1})
	require.ErrorIs(t, err, errs.ErrDomain)
}

func TestCompare(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	x := arange(16)
	dg, err := FromSlice(x)
	require.NoError(t, err)

	check := func(got *Operator[float64], pred func(v float64) bool) {
		t.Helper()
		for i, v := range x {
			want := 0.0
			if pred(v) {
				want = 1
			}
			require.Equal(t, want, got.At(i), "index %d", i)
		}
	}

	check(dg.CompareLessEqual(5), func(v float64) bool { return v <= 5 })
	check(dg.CompareGreaterEqual(7), func(v float64) bool { return v >= 7 })
	check(dg.CompareEqual(9), func(v float64) bool { return v == 9 })
	check(dg.CompareNotEqual(12), func(v float64) bool { return v != 12 })

	y := randn(rng, 64)
	dy, err := FromSlice(y)
	require.NoError(t, err)
	for range 20 {
		th := rng.NormFloat64()
		lt, err := dy.Compare(th, Less)
		require.NoError(t, err)
		gt, err := dy.Compare(th, Greater)
		require.NoError(t, err)
		for i, v := range y {
			assert.Equal(t, v < th, lt.At(i) == 1)
			assert.Equal(t, v > th, gt.At(i) == 1)
		}
	}

	_, err = dg.Compare(0, Cmp(42))
	require.ErrorIs(t, err, errs.ErrDomain)
}

func TestParseCmp(t *testing.T) {
	for s, want := range map[string]Cmp{"<=": LessEqual, "GE": GreaterEqual, "lt": Less, ">": Greater, "==": Equal, "neq": NotEqual} {
		got, err := ParseCmp(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCmp("~")
	require.ErrorIs(t, err, errs.ErrDomain)
}

func TestMask(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	x := arange(16)
	y := randn(rng, 16)
	dgx, _ := FromSlice(x)
	dgy, _ := FromSlice(y)

	cases := []struct {
		th   float64
		cmp  Cmp
		fill float64
		drop func(v float64) bool
	}{
		{5, LessEqual, 0, func(v float64) bool { return v > 5 }},
		{7, GreaterEqual, 1.5, func(v float64) bool { return v < 7 }},
		{12, NotEqual, -3, func(v float64) bool { return v == 12 }},
	}
	for _, tc := range cases {
		want := slices.Clone(y)
		for i, v := range x {
			if tc.drop(v) {
				want[i] = tc.fill
			}
		}
		got, err := dgy.Mask(dgx, tc.th, tc.cmp, tc.fill)
		require.NoError(t, err)
		assert.Equal(t, want, got.Slice())
		assert.Equal(t, slices.Min(want), got.Min())
		assert.Equal(t, slices.Max(want), got.Max())
	}
	assert.Equal(t, y, dgy.Slice(), "operands must not be mutated")

	small, _ := FromSlice([]float64{1, 2})
	_, err := dgy.Mask(small, 0, LessEqual, 0)
	require.ErrorIs(t, err, errs.ErrDimension)
}

func TestQuadPenalty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	x := arange(16)
	y := randn(rng, 16)
	dgx, _ := FromSlice(x)
	dgy, _ := FromSlice(y)

	cases := []struct {
		th, pen float64
		cmp     Cmp
		viol    func(v float64) bool
	}{
		{5, 1, LessEqual, func(v float64) bool { return v > 5 }},
		{7, 1.5, GreaterEqual, func(v float64) bool { return v < 7 }},
		{12, 5, Equal, func(v float64) bool { return v != 12 }},
	}
	for _, tc := range cases {
		want := slices.Clone(y)
		for i, v := range x {
			if tc.viol(v) {
				want[i] += tc.pen * (v - tc.th) * (v - tc.th)
			}
		}
		got, used, err := dgy.QuadPenalty(dgx, tc.th, tc.cmp, tc.pen)
		require.NoError(t, err)
		assert.Equal(t, tc.pen, used)
		assert.InDeltaSlice(t, want, got.Slice(), 1e-12)
	}
}

func TestAutoQuadPenalty(t *testing.T) {
	x := arange(16)
	y := make([]float64, 16)
	for i := range y {
		y[i] = 0.1 * math.Abs(float64(i)-8.1)
	}
	dgx, _ := FromSlice(x)
	dgy, _ := FromSlice(y)

	for _, tc := range []struct {
		th  float64
		cmp Cmp
	}{{5, LessEqual}, {12, GreaterEqual}} {
		dgp, _, err := dgy.QuadPenalty(dgx, tc.th, tc.cmp, AutoPenalty)
		require.NoError(t, err)

		z := dgp.Slice()
		assert.Equal(t, slices.Min(z), dgp.Min())

		idx := argsort(z)
		feasible := func(i int) bool { return tc.cmp.holds(x[i] - tc.th) }
		assert.True(t, feasible(idx[0]))
		assert.InDelta(t, z[idx[1]], z[idx[2]], 1e-9)
		assert.NotEqual(t, feasible(idx[1]), feasible(idx[2]), "runner-up tie spans both sides")
	}
}

func TestAutoQuadPenaltyRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	x := arange(16)
	dgx, _ := FromSlice(x)

	for range 100 {
		y := randn(rng, 16)
		dgy, _ := FromSlice(y)
		ub := float64(1 + rng.IntN(15))

		dgp, penalty, err := dgy.QuadPenalty(dgx, ub, LessEqual, AutoPenalty)
		require.NoError(t, err)
		require.GreaterOrEqual(t, penalty, 0.0)

		z := dgp.Slice()
		require.Equal(t, slices.Min(z), dgp.Min())

		idx := argsort(z)
		require.LessOrEqual(t, x[idx[0]], ub, "minimiser must be feasible")

		var feas []float64
		for i, v := range x {
			if v <= ub {
				feas = append(feas, y[i])
			}
		}
		slices.Sort(feas)
		second := feas[0]
		for _, f := range feas[1:] {
			if f > feas[0]+1e-8 {
				second = f
				break
			}
		}
		for i, v := range x {
			if v > ub {
				require.GreaterOrEqual(t, z[i], second-1e-9)
			}
		}
	}
}

func TestSearchPenaltyInfeasible(t *testing.T) {
	x := arange(16)
	dgx, _ := FromSlice(x)
	dgy, _ := FromSlice(arange(16))

	_, err := SearchPenalty(dgy, dgx, 20, LessEqual)
	require.ErrorIs(t, err, errs.ErrInfeasible)
	_, err = SearchPenalty(dgy, dgx, -1, LessEqual)
	require.ErrorIs(t, err, errs.ErrInfeasible)

	var ie *errs.InfeasibleError
	_, _, err = dgy.QuadPenalty(dgx, -1, LessEqual, AutoPenalty)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, ie.Feasible)
	assert.Equal(t, 16, ie.Infeasible)
}

func TestAutoQuadPenaltyAllFeasible(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	x := arange(16)
	y := randn(rng, 16)
	dgx, _ := FromSlice(x)
	dgy, _ := FromSlice(y)

	for _, ub := range []float64{15, 20} {
		dgp, penalty, err := dgy.QuadPenalty(dgx, ub, LessEqual, AutoPenalty)
		require.NoError(t, err)
		assert.Zero(t, penalty)
		assert.Equal(t, y, dgp.Slice())
		assert.Equal(t, dgy.Min(), dgp.Min())
		assert.NotSame(t, dgy, dgp)
	}
	assert.Equal(t, y, dgy.Slice())
}

func TestScaleAndShift(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	y := randn(rng, 16)
	for _, c := range []float64{rng.NormFloat64(), -2.5, 3} {
		d := rng.NormFloat64()
		dg, _ := FromSlice(y)
		same := dg.Scale(c).Shift(d)
		assert.Same(t, dg, same)

		want := make([]float64, len(y))
		for i, v := range y {
			want[i] = c*v + d
		}
		assert.InDeltaSlice(t, want, dg.Slice(), 1e-12)
		assert.InDelta(t, slices.Min(want), dg.Min(), 1e-12)
		assert.InDelta(t, slices.Max(want), dg.Max(), 1e-12)
	}
}

func TestCloneIndependent(t *testing.T) {
	dg, _ := FromSlice([]float64{1, 2, 3, 4})
	cp := dg.Clone()
	cp.Scale(-1)
	assert.Equal(t, []float64{1, 2, 3, 4}, dg.Slice())
	assert.Equal(t, -4.0, cp.Min())
}

func TestSampleMean(t *testing.T) {
	dg, _ := FromSlice([]float64{1, 2, 3, 4})
	assert.Equal(t, 2.5, dg.SampleMean([]int{0, 3, 1, 2}))
	assert.True(t, math.IsNaN(dg.SampleMean(nil)))
}

func argsort(z []float64) []int {
	idx := make([]int, len(z))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case z[a] < z[b]:
			return -1
		case z[a] > z[b]:
			return 1
		}
		return 0
	})
	return idx
}
