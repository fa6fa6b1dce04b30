// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgsb

import (
	"context"
	"errors"
	"io"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/objective"
)

var quiet = &Logger{Level: LogNoop}

var verbose = &Logger{Level: LogVerbose, Msg: io.Discard, Out: io.Discard}

func rosenbrock(n int) Evaluation {
	return func(x []float64, g []float64) (f float64) {
		f = 0.25 * math.Pow(x[0]-1.0, 2)
		for i := 1; i < n; i++ {
			f += math.Pow(x[i]-math.Pow(x[i-1], 2), 2)
		}
		f *= 4.0

		t1 := x[1] - math.Pow(x[0], 2)
		g[0] = 2.0*(x[0]-1.0) - 16.0*x[0]*t1
		for i := 1; i < n-1; i++ {
			t2 := t1
			t1 = x[i+1] - math.Pow(x[i], 2)
			g[i] = 8.0*t2 - 16.0*x[i]*t1
		}
		g[n-1] = 8.0 * t1
		return f
	}
}

func quadratic(a, c []float64) Evaluation {
	return func(x []float64, g []float64) (f float64) {
		for i := range x {
			d := x[i] - c[i]
			f += a[i] * d * d
			g[i] = 2 * a[i] * d
		}
		return
	}
}

func fit(t *testing.T, p Problem, logger *Logger, x0 []float64) *Result {
	t.Helper()
	s, err := p.New(logger)
	if err != nil {
		t.Fatal(err)
	}
	return s.Fit(x0, s.Init())
}

func TestBasic(t *testing.T) {

	K := []float64{1., 0.3, 0.5}
	F := [][]float64{
		{1, 1, 1},
		{1, 1, 0},
		{1, 0, 1},
		{1, 0, 0},
		{1, 0, 0},
	}

	eval := func(x []float64, g []float64) (f float64) {
		Fx := make([]float64, len(F))
		sum := 0.0
		for i, row := range F {
			for j, v := range row {
				Fx[i] += v * x[j]
			}
			sum += math.Exp(Fx[i])
		}
		logZ := math.Log(sum)
		f = logZ
		for j, k := range K {
			f -= k * x[j]
			g[j] = -k
		}
		for i, row := range F {
			w := math.Exp(Fx[i] - logZ)
			for j, v := range row {
				g[j] += w * v
			}
		}
		return
	}

	stop := Termination{
		MaxIterations:     100,
		MaxEvaluations:    200,
		EpsAccuracyFactor: 1e7,
		ProjGradTolerance: 1e-5,
	}

	x0 := []float64{0, 0, 0}
	r := fit(t, Problem{N: 3, M: 5, Eval: eval, Stop: stop}, verbose, x0)

	switch {
	case !r.OK:
		t.Fatalf("TestBasic: Not Converge: %v", r.Status)
	case r.F > 1.559132167348348+1e-6:
		t.Fatalf("TestBasic: Object Too Large: %v", r.F)
	case !slices.Equal(x0, []float64{0, 0, 0}):
		t.Fatal("TestBasic: Initial X Modified")
	case len(r.Trace) != r.NumIter+1:
		t.Fatalf("TestBasic: Trace Length %d for %d iterations", len(r.Trace), r.NumIter)
	case r.NumEval < r.NumIter+1:
		t.Fatal("TestBasic: Evaluation Count Too Small")
	}
}

func TestRosenbrock(t *testing.T) {

	const n = 25
	const m = 5

	x := make([]float64, n)
	bounds := make([]Bound, n)
	for i := 0; i < n; i++ {
		if (i+1)%2 == 1 { // Odd variables
			bounds[i].Lower = 1.0
			bounds[i].Upper = 100.0
		} else { // Even variables
			bounds[i].Lower = -100.0
			bounds[i].Upper = 100.0
		}
		x[i] = 3.0
	}

	stop := Termination{
		MaxIterations:     2000,
		MaxEvaluations:    5000,
		EpsAccuracyFactor: 1e7,
		ProjGradTolerance: 1e-5,
	}

	p := Problem{N: n, M: m, Eval: rosenbrock(n), Stop: stop, Bounds: bounds}
	r := fit(t, p, quiet, x)

	switch {
	case r.Status.Failed() && !retryable(r.Status):
		t.Fatalf("TestRosenbrock: Abnormal Status: %v", r.Status)
	case r.F > 1e-4:
		t.Fatalf("TestRosenbrock: Object Too Large: %v", r.F)
	}
	for i, b := range bounds {
		if r.X[i] < b.Lower || r.X[i] > b.Upper {
			t.Fatalf("TestRosenbrock: Bound Violation at %d: %v", i, r.X[i])
		}
	}
	for k := 1; k < len(r.Trace); k++ {
		if r.Trace[k] > r.Trace[k-1] {
			t.Fatalf("TestRosenbrock: Objective Increased at %d", k)
		}
	}
}

func TestBoundClip(t *testing.T) {

	eval := quadratic([]float64{1}, []float64{1})

	stop := Termination{
		MaxIterations:     50,
		MaxEvaluations:    100,
		EpsAccuracyFactor: 1e7,
		ProjGradTolerance: 1e-5,
	}

	tests := []struct {
		init    float64
		bnd     []Bound
		desired float64
	}{
		{10, []Bound{{Lower: math.NaN(), Upper: 0}}, 0},
		{-10, []Bound{{Lower: 2, Upper: math.NaN()}}, 2},
		{-10, []Bound{{Lower: math.NaN(), Upper: 0}}, 0},
		{10, []Bound{{Lower: 2, Upper: math.NaN()}}, 2},
		{-0.5, []Bound{{Lower: -1, Upper: 0}}, 0},
		{10, []Bound{{Lower: -1, Upper: 0}}, 0},
	}

	for _, tt := range tests {
		p := Problem{N: 1, M: 5, Eval: eval, Stop: stop, Bounds: tt.bnd}
		r := fit(t, p, verbose, []float64{tt.init})

		switch {
		case !r.Status.Converged():
			t.Fatalf("TestBoundClip: Not Converge from %v: %v", tt.init, r.Status)
		case math.Abs(r.X[0]-tt.desired) > 1e-10:
			t.Fatalf("TestBoundClip: got %v want %v", r.X[0], tt.desired)
		}
	}
}

func TestSearchMethods(t *testing.T) {

	a := []float64{1, 2, 3, 4}
	c := []float64{-3, 0.5, 4, -0.25}
	bounds := []Bound{
		{Lower: -1, Upper: 1},
		{Lower: math.NaN(), Upper: math.NaN()},
		{Lower: math.NaN(), Upper: 2},
		{Lower: 0, Upper: math.NaN()},
	}
	want := []float64{-1, 0.5, 2, 0}

	for _, method := range []SearchMethod{SearchMoreThuente, SearchBacktracking, SearchBisection} {
		p := Problem{
			N: 4, M: 3,
			Eval:   quadratic(a, c),
			Stop:   Termination{MaxIterations: 200, EpsAccuracyFactor: 1e7, ProjGradTolerance: 1e-6},
			Bounds: bounds,
			Search: &SearchTol{Method: method},
		}
		r := fit(t, p, quiet, []float64{0.5, 3, -1, 2})
		if !r.OK {
			t.Fatalf("TestSearchMethods: %v ended with %v", method, r.Status)
		}
		for i := range want {
			if math.Abs(r.X[i]-want[i]) > 1e-3 {
				t.Fatalf("TestSearchMethods: %v x[%d] = %v want %v", method, i, r.X[i], want[i])
			}
		}
	}
}

func TestMaxIterations(t *testing.T) {
	x0 := []float64{-1.2, 1, -1.2, 1}
	p := Problem{N: 4, M: 5, Eval: rosenbrock(4), Stop: Termination{MaxIterations: 3}}
	r := fit(t, p, verbose, x0)
	switch {
	case r.Status != StopMaxIterations:
		t.Fatalf("TestMaxIterations: status %v", r.Status)
	case r.NumIter != 3 || len(r.Trace) != 4:
		t.Fatalf("TestMaxIterations: %d iterations, %d trace entries", r.NumIter, len(r.Trace))
	case r.Trace[3] != r.F || r.F >= r.Trace[0]:
		t.Fatal("TestMaxIterations: Trace Mismatch")
	case !r.OK:
		t.Fatal("TestMaxIterations: Stop Should Be OK")
	}
}

func TestMaxEvaluations(t *testing.T) {
	x0 := []float64{-1.2, 1, -1.2, 1}
	p := Problem{N: 4, M: 5, Eval: rosenbrock(4), Stop: Termination{MaxIterations: 100, MaxEvaluations: 5}}
	r := fit(t, p, quiet, x0)
	if r.Status != StopMaxEvaluations || r.NumEval > 5 {
		t.Fatalf("TestMaxEvaluations: status %v after %d evaluations", r.Status, r.NumEval)
	}
	g := make([]float64, 4)
	if f := rosenbrock(4)(r.X, g); f != r.F {
		t.Fatalf("TestMaxEvaluations: F %v is not f(X) %v", r.F, f)
	}
}

func TestAlreadyMinimized(t *testing.T) {
	p := Problem{N: 2, M: 3, Eval: quadratic([]float64{1, 1}, []float64{1, 2}), Stop: Termination{MaxIterations: 10}}
	r := fit(t, p, verbose, []float64{1, 2})
	if r.Status != AlreadyMinimized || r.NumIter != 0 || r.NumEval != 1 {
		t.Fatalf("TestAlreadyMinimized: status %v", r.Status)
	}
}

func TestEvalPanic(t *testing.T) {
	calls := 0
	base := quadratic([]float64{1, 1}, []float64{1, 2})
	eval := func(x, g []float64) float64 {
		if calls++; calls == 2 {
			panic("halt")
		}
		return base(x, g)
	}
	x0 := []float64{5, 5}
	r := fit(t, Problem{N: 2, M: 3, Eval: eval, Stop: Termination{MaxIterations: 10}}, verbose, x0)
	switch {
	case r.Status != FailEvalPanic || r.OK:
		t.Fatalf("TestEvalPanic: status %v", r.Status)
	case !strings.HasPrefix(r.Status.String(), "ABNORMAL"):
		t.Fatalf("TestEvalPanic: message %q", r.Status.String())
	case !slices.Equal(r.X, x0) || r.F != 16+9:
		t.Fatalf("TestEvalPanic: best point not restored: %v %v", r.X, r.F)
	case !errors.Is(r.Status.Err(), errs.ErrNumerical):
		t.Fatal("TestEvalPanic: Err Kind")
	}
}

func TestNonFinite(t *testing.T) {
	eval := func(x, g []float64) float64 { return math.NaN() }
	r := fit(t, Problem{N: 1, M: 3, Eval: eval, Stop: Termination{MaxIterations: 10}}, quiet, []float64{0})
	if r.Status != FailNonFinite || !math.IsNaN(r.F) {
		t.Fatalf("TestNonFinite: status %v f %v", r.Status, r.F)
	}
}

func TestCanceled(t *testing.T) {
	p := Problem{N: 2, M: 3, Eval: quadratic([]float64{1, 1}, []float64{1, 2}), Stop: Termination{MaxIterations: 10}}
	s, err := p.New(quiet)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := s.FitContext(ctx, []float64{0, 0}, s.Init())
	if r.Status != FailCanceled || r.NumIter != 0 || r.F != 5 {
		t.Fatalf("TestCanceled: status %v", r.Status)
	}
}

func TestWorkspaceReuse(t *testing.T) {
	p := Problem{N: 4, M: 5, Eval: rosenbrock(4), Stop: Termination{MaxIterations: 20}}
	s, err := p.New(quiet)
	if err != nil {
		t.Fatal(err)
	}
	w := s.Init()
	x0 := []float64{-1.2, 1, -1.2, 1}
	r1 := s.Fit(x0, w)
	r2 := s.Fit(x0, w)
	if r1.F != r2.F || r1.NumEval != r2.NumEval || !slices.Equal(r1.X, r2.X) || !slices.Equal(r1.Trace, r2.Trace) {
		t.Fatal("TestWorkspaceReuse: runs differ")
	}
}

func TestInvalidProblem(t *testing.T) {
	eval := quadratic([]float64{1}, []float64{0})
	stop := Termination{MaxIterations: 10}
	tests := []struct {
		p    Problem
		want Status
	}{
		{Problem{N: 0, M: 1, Eval: eval, Stop: stop}, FailInvalidN},
		{Problem{N: 1, M: 0, Eval: eval, Stop: stop}, FailInvalidM},
		{Problem{N: 1, M: 1, Stop: stop}, FailLogic},
		{Problem{N: 1, M: 1, Eval: eval}, FailInvalidMaxIterations},
		{Problem{N: 1, M: 1, Eval: eval, Stop: Termination{MaxIterations: 1, EpsAccuracyFactor: -1}}, FailInvalidEpsilon},
		{Problem{N: 1, M: 1, Eval: eval, Stop: Termination{MaxIterations: 1, ProjGradTolerance: math.NaN()}}, FailInvalidPGTol},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Bounds: []Bound{{Lower: 1, Upper: 0}}}, FailInvalidBounds},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Bounds: make([]Bound, 2)}, FailInvalidBounds},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Search: &SearchTol{Method: 7}}, FailInvalidLineSearch},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Search: &SearchTol{Alpha: 0.95}}, FailInvalidWolfe},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Search: &SearchTol{Beta: 2}}, FailInvalidGTol},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Search: &SearchTol{Lower: -1}}, FailInvalidMinStep},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Search: &SearchTol{Upper: 1e-30}}, FailInvalidMaxStep},
		{Problem{N: 1, M: 1, Eval: eval, Stop: stop, Search: &SearchTol{MaxEval: -1}}, FailInvalidMaxLineSearch},
	}
	for _, tt := range tests {
		_, err := tt.p.New(nil)
		var nf *errs.NumericalFailure
		if !errors.As(err, &nf) || Status(nf.Code) != tt.want {
			t.Fatalf("TestInvalidProblem: want %v got %v", tt.want, err)
		}
	}
}

func TestStatus(t *testing.T) {
	for _, s := range []Status{Converged, ConvergedRelReduction, AlreadyMinimized} {
		if !s.Converged() || !s.OK() || s.Err() != nil {
			t.Fatalf("TestStatus: %v", s)
		}
	}
	for _, s := range []Status{StopMaxIterations, StopMaxEvaluations, StopGradThreshold} {
		if !s.Stopped() || !s.OK() || s.Converged() {
			t.Fatalf("TestStatus: %v", s)
		}
	}
	for s := FailUnknown; s <= FailNonFinite; s++ {
		if !s.Failed() || s.OK() || s.Err() == nil {
			t.Fatalf("TestStatus: %#x", int(s))
		}
		if _, ok := statusMsg[s]; !ok {
			t.Fatalf("TestStatus: no message for %#x", int(s))
		}
	}
}

func TestCircuitDescent(t *testing.T) {
	// Vertex cover of the path 0-1-2-3.
	terms, err := diag.TermsOf(
		[][]int{{0}, {1}, {2}, {3}, {}, {0}, {1}, {0, 1}, {}, {1}, {2}, {1, 2}, {}, {2}, {3}, {2, 3}},
		[]float64{1, 1, 1, 1, 2, -2, -2, 2, 2, -2, -2, 2, 2, -2, -2, 2},
	)
	if err != nil {
		t.Fatal(err)
	}
	cost, err := diag.BruteForce[float64](4, terms)
	if err != nil {
		t.Fatal(err)
	}
	fn, err := objective.NewUnconstrained(cost, cost, 3)
	if err != nil {
		t.Fatal(err)
	}

	bounds := make([]Bound, fn.Dim())
	for i := range bounds {
		bounds[i] = Bound{Lower: 0, Upper: math.Pi}
	}
	p := Problem{
		N: fn.Dim(), M: 10,
		Eval:   FromObjective(fn),
		Stop:   Termination{MaxIterations: 100, EpsAccuracyFactor: 1e7, ProjGradTolerance: 1e-6},
		Bounds: bounds,
	}
	r := fit(t, p, quiet, objective.Pack([]float64{0.1, 0.1, 0.1}, []float64{0.1, 0.1, 0.1}))
	if r.F >= r.Trace[0] {
		t.Fatalf("TestCircuitDescent: no descent %v >= %v", r.F, r.Trace[0])
	}
	if math.Abs(r.F-fn.Eval(r.X, nil)) > 1e-12 {
		t.Fatal("TestCircuitDescent: F is not f(X)")
	}
}
