// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lbfgsb minimises a smooth function subject to simple bounds
// lᵢ ≤ xᵢ ≤ uᵢ with a projected limited-memory BFGS method.
//
// Each iteration builds the two-loop L-BFGS direction on the free variables,
// drops components that would leave the box through an active bound, caps
// the step at the first bound crossed and hands the one-dimensional problem
// to a gonum line searcher.
package lbfgsb

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/curioloop/fastqaoa/objective"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line at the last iteration
	LogLast LogLevel = 0
	// LogEval print also f and |proj g| every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration except n-vectors
	LogTrace LogLevel = 99
	// LogChange print also the final x
	LogChange LogLevel = 100
	// LogVerbose print details of every iteration including x and g (level > 100)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for the iteration table.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	_, _ = fmt.Fprintf(l.Msg, format, a...)
}

func (l *Logger) out(format string, a ...any) {
	_, _ = fmt.Fprintf(l.Out, format, a...)
}

func (l *Logger) vector(name string, v []float64) {
	l.log("\n %s =", name)
	for i, x := range v {
		l.log(" %.2e", x)
		if (i+1)%6 == 0 && i+1 < len(v) {
			l.log("\n     ")
		}
	}
	l.log("\n")
}

type bndHint uint8

const (
	bndNo bndHint = iota
	bndLow
	bndBoth
	bndUp
)

// Bound represents the bounds for an optimization variable.
// A NaN side is unbounded.
type Bound struct {
	hint         bndHint
	Lower, Upper float64
}

func (b Bound) hasLower() bool { return b.hint == bndLow || b.hint == bndBoth }
func (b Bound) hasUpper() bool { return b.hint == bndUp || b.hint == bndBoth }

// Evaluation returns f(x) and writes ∇f(x) into g.
type Evaluation func(x []float64, g []float64) (f float64)

// FromObjective adapts an objective so that it can be used as Problem.Eval.
func FromObjective(fn objective.Function) Evaluation {
	return func(x, g []float64) float64 { return fn.Eval(x, g) }
}

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// The iteration stop when the total number of function and gradient evaluation exceeds limit.
	// Zero means unlimited.
	MaxEvaluations int
	// The iteration will stop when the function value satisfied:
	//   (fₖ - fₖ₊₁)/𝚖𝚊𝚡(|fₖ|,|fₖ₊₁|,1) ≤ 𝚏𝚊𝚌𝚝𝚛 × 𝚎𝚙𝚜𝚖𝚌𝚑
	EpsAccuracyFactor float64
	// The iteration will stop when the projected gradient satisfied:
	//   𝚖𝚊𝚡( 𝚙𝚛𝚘𝚓 gᵢ₌₁,...,ₙ ) ≤ 𝚙𝚐𝚝𝚘𝚕
	ProjGradTolerance float64
	// The iteration will stop when the search direction satisfied:
	//   ‖ d ‖₂ ≤ 𝚙𝚍𝚝𝚘𝚕 × (|fₖ| + 1)
	GradDescentThreshold float64
}

// Problem specifies the problem for the optimizer.
type Problem struct {
	N      int         // The problem dimension
	M      int         // The correction number of BFGS
	Eval   Evaluation  // Objective function and gradient
	Stop   Termination // Stop condition
	Bounds []Bound     // Optional bounds
	Search *SearchTol  // Optional line-search config
}

// New creates a new optimizer for given problem.
// An invalid setting is reported as a *errs.NumericalFailure whose Code is
// the matching Fail* status.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = &Logger{Level: LogNoop}
	}
	log := *logger
	if log.Msg == nil {
		log.Msg = os.Stdout
	}
	if log.Out == nil {
		log.Out = os.Stderr
	}

	n, m := p.N, p.M
	stop := p.Stop
	search := defaultSearch
	if p.Search != nil {
		search = p.Search.withDefaults()
	}

	stop.MaxEvaluations = max(stop.MaxEvaluations, 0)
	if stop.MaxEvaluations == 0 {
		stop.MaxEvaluations = math.MaxInt
	}

	var fail Status
	switch {
	case n <= 0:
		fail = FailInvalidN
	case m <= 0:
		fail = FailInvalidM
	case p.Eval == nil:
		fail = FailLogic
	case stop.MaxIterations <= 0:
		fail = FailInvalidMaxIterations
	case !(stop.EpsAccuracyFactor >= 0):
		fail = FailInvalidEpsilon
	case !(stop.ProjGradTolerance >= 0):
		fail = FailInvalidPGTol
	case !(stop.GradDescentThreshold >= 0):
		fail = FailInvalidDelta
	case p.Bounds != nil && len(p.Bounds) != n:
		fail = FailInvalidBounds
	default:
		fail = search.validate()
	}
	if fail != 0 {
		return nil, fail.Err()
	}

	bounds := make([]Bound, n)
	for k := range bounds {
		b := Bound{Lower: math.NaN(), Upper: math.NaN()}
		if p.Bounds != nil {
			b = p.Bounds[k]
		}
		l, u := !math.IsNaN(b.Lower), !math.IsNaN(b.Upper)
		if l && u && b.Lower > b.Upper {
			return nil, fmt.Errorf("bound range at %d has no feasible solution: %w", k, FailInvalidBounds.Err())
		}
		switch {
		case l && u:
			b.hint = bndBoth
		case l:
			b.hint = bndLow
		case u:
			b.hint = bndUp
		default:
			b.hint = bndNo
		}
		bounds[k] = b
	}

	optimizer = &Optimizer{
		iterSpec{
			n: n, m: m,
			epsilon: math.Nextafter(1, 2) - 1,
			stop:    stop,
			eval:    p.Eval,
			bounds:  bounds,
			logger:  log,
			search:  search,
		},
	}
	return
}

// iterSpec is the immutable part of an optimizer.
type iterSpec struct {
	n, m    int
	epsilon float64
	stop    Termination
	eval    Evaluation
	bounds  []Bound
	logger  Logger
	search  SearchTol
}

// Optimizer implemented using the projected L-BFGS algorithm.
type Optimizer struct {
	iterSpec
}

// Workspace contains the state and context of the optimization process.
// Given problem dimension n and corrections number m,
// total work space is approximately float64[2×mn + 6×n + 2×m].
type Workspace struct {
	n, m int
	iterCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool      // Whether the run converged or stopped normally.
	F       float64   // Best function value found.
	X, G    []float64 // Best point found and the gradient there.
	Trace   []float64 // Objective after each iteration; Trace[0] is f(x₀).
	Summary           // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status   Status // Final status after optimization.
	NumIter  int    // Number of iterations performed.
	NumEval  int    // Number of function and gradient evaluations performed.
	NumSkip  int    // Number of BFGS updates skipped.
	NumReset int    // Number of times the history was discarded.
}

// Init allocate the workspace for the optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n, w.m = o.n, o.m
	w.init(w.n, w.m)
	return w
}

// Fit runs the optimization process using the initial guess x and workspace w.
// x is not modified.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {
	return o.FitContext(context.Background(), x, w)
}

// FitContext is Fit with cancellation checked between iterations.
func (o *Optimizer) FitContext(ctx context.Context, x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("initial x dimension does not match problem")
	}

	if w.n != o.n || w.m != o.m {
		panic("workspace dimension does not match problem")
	}

	loc := iterLoc{
		x: slices.Clone(x),
		g: make([]float64, len(x)),
	}

	driver := iterDriver{
		ctx:       ctx,
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	res := driver.mainLoop()
	return &Result{
		OK: res.OK(),
		X:  loc.x, F: loc.f, G: loc.g,
		Trace: slices.Clone(w.trace[:min(len(w.trace), w.iter+1)]),
		Summary: Summary{
			Status:   res,
			NumIter:  w.iter,
			NumEval:  w.totalEval,
			NumSkip:  w.totalSkip,
			NumReset: w.totalReset,
		},
	}
}
