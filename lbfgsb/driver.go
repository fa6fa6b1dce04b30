// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgsb

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// iterLoc is the current point with its function value and gradient.
type iterLoc struct {
	x, g []float64
	f    float64
}

// iterCtx is the mutable state of one run.
type iterCtx struct {
	hist   history
	d, q   []float64 // search direction and reduced gradient
	xOld   []float64
	gOld   []float64
	s, y   []float64
	active []bool
	trace  []float64

	fOld   float64
	gd     float64 // gᵀd at the start of the line search
	dNorm  float64 // ‖ d ‖₂
	stp    float64 // accepted step
	sbgNrm float64 // ‖ 𝚙𝚛𝚘𝚓 g ‖∞

	iter       int
	totalEval  int
	totalSkip  int
	totalReset int
	numBack    int // evaluations in the last line search
	numActive  int

	projInitX   bool
	constrained bool
	started     time.Time
}

func (c *iterCtx) init(n, m int) {
	c.hist = newHistory(n, m)
	c.d = make([]float64, n)
	c.q = make([]float64, n)
	c.xOld = make([]float64, n)
	c.gOld = make([]float64, n)
	c.s = make([]float64, n)
	c.y = make([]float64, n)
	c.active = make([]bool, n)
}

func (c *iterCtx) clear() {
	c.hist.clear()
	c.trace = c.trace[:0]
	c.fOld, c.gd, c.dNorm, c.stp, c.sbgNrm = 0, 0, 0, 0, 0
	c.iter, c.totalEval, c.totalSkip, c.totalReset, c.numBack, c.numActive = 0, 0, 0, 0, 0, 0
	c.started = time.Now()
}

// iterDriver is the main driver for iterations in an optimization process,
// responsible for managing the flow of the optimization.
type iterDriver struct {
	ctx       context.Context
	optimizer *Optimizer
	workspace *Workspace
	location  *iterLoc
}

// nextLocation evaluates f and g at the current x.
// A panicking or non-finite evaluation ends the run.
func (d *iterDriver) nextLocation() (task Status) {
	o, w, loc := d.optimizer, d.workspace, d.location
	defer func() {
		if r := recover(); r != nil {
			if log := o.logger; log.enable(LogLast) {
				log.log("Evaluation panicked: %v\n", r)
			}
			task = FailEvalPanic
		}
	}()
	w.totalEval++
	loc.f = o.eval(loc.x, loc.g)
	if math.IsNaN(loc.f) || math.IsInf(loc.f, 0) || floats.HasNaN(loc.g) || math.IsInf(floats.Norm(loc.g, math.Inf(1)), 0) {
		task = FailNonFinite
	}
	return
}

// newIteration counts a completed iteration and checks the budgets.
func (d *iterDriver) newIteration() (task Status) {
	o, w, loc := d.optimizer, d.workspace, d.location
	w.iter++
	w.trace = append(w.trace, loc.f)
	switch {
	case w.iter >= o.stop.MaxIterations:
		task = StopMaxIterations
	case w.totalEval >= o.stop.MaxEvaluations:
		task = StopMaxEvaluations
	case w.stp*w.dNorm <= o.stop.GradDescentThreshold*(1.0+math.Abs(loc.f)):
		task = StopGradThreshold
	}
	return
}

// checkConvergence checks if the convergence criteria have been met based on
// the projected gradient norm and the progress in function value reduction.
func (d *iterDriver) checkConvergence() (task Status) {
	o, w, loc := d.optimizer, d.workspace, d.location
	w.sbgNrm = projGradNorm(loc, &o.iterSpec)
	if w.sbgNrm <= o.stop.ProjGradTolerance {
		return Converged
	}
	if w.iter > 0 {
		tolEps := o.epsilon * o.stop.EpsAccuracyFactor
		change := math.Max(math.Abs(w.fOld), math.Max(math.Abs(loc.f), 1))
		if w.fOld-loc.f <= tolEps*change {
			return ConvergedRelReduction
		}
	}
	return
}

// searchDirection builds d from the reduced gradient and the BFGS history.
// A direction that fails to descend discards the history once.
func (d *iterDriver) searchDirection() Status {
	spec, ctx, loc := &d.optimizer.iterSpec, &d.workspace.iterCtx, d.location

	ctx.numActive = markActive(loc, spec, ctx.active)
	for i, g := range loc.g {
		if ctx.active[i] {
			g = 0
		}
		ctx.q[i] = g
	}

	ctx.hist.direction(ctx.d, ctx.q)
	clipDirection(loc, spec, ctx.active, ctx.d)
	ctx.gd = floats.Dot(loc.g, ctx.d)

	if !(ctx.gd < 0) && ctx.hist.col > 0 {
		d.refresh()
		floats.ScaleTo(ctx.d, -1, ctx.q)
		clipDirection(loc, spec, ctx.active, ctx.d)
		ctx.gd = floats.Dot(loc.g, ctx.d)
	}
	if !(ctx.gd < 0) {
		return FailIncreaseGradient
	}
	ctx.dNorm = floats.Norm(ctx.d, 2)
	return 0
}

// updateBFGS stores the newest correction pair, or skips it when the
// curvature condition fails.
func (d *iterDriver) updateBFGS() {
	o, ctx, loc := d.optimizer, &d.workspace.iterCtx, d.location
	floats.SubTo(ctx.s, loc.x, ctx.xOld)
	floats.SubTo(ctx.y, loc.g, ctx.gOld)
	if !ctx.hist.update(ctx.s, ctx.y, o.epsilon) {
		ctx.totalSkip++
		if log := o.logger; log.enable(LogTrace) {
			log.log("ys < epsmch*yy: skipping L-BFGS update\n")
		}
	}
}

func (d *iterDriver) refresh() {
	ctx := &d.workspace.iterCtx
	ctx.hist.clear()
	ctx.totalReset++
	if log := d.optimizer.logger; log.enable(LogLast) {
		log.log("Refreshing LBFGS memory and restarting iteration.\n")
	}
}

// retryable reports a line-search failure worth a restart from steepest descent.
func retryable(task Status) bool {
	switch task {
	case FailRoundingError, FailMinimumStep, FailMaximumStep, FailMaximumLineSearch,
		FailWidthTooSmall, FailOutOfInterval, FailIncreaseGradient:
		return true
	}
	return false
}

// mainLoop is the main execution loop of the iteration process. The
// location always holds the best point found so far.
func (d *iterDriver) mainLoop() (task Status) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	ctx.clear()
	d.printInit()
	projInit(loc, spec, ctx)

	// Calculate f₀ and g₀
	if task = d.nextLocation(); task == 0 {
		ctx.trace = append(ctx.trace, loc.f)
		if ctx.sbgNrm = projGradNorm(loc, spec); ctx.sbgNrm <= spec.stop.ProjGradTolerance {
			task = AlreadyMinimized
		}
		if log.enable(LogEval) {
			log.log("At iterate %5d    f= %12.5e    |proj g|= %12.5e\n", ctx.iter, loc.f, ctx.sbgNrm)
			log.out(" %4d %4d     -    -       -          -   %10.3e %10.3e\n", ctx.iter, ctx.totalEval, ctx.sbgNrm, loc.f)
		}
	} else {
		loc.f = math.NaN()
	}

	for task == 0 {

		if d.ctx.Err() != nil {
			task = FailCanceled
			break
		}

		if log.enable(LogTrace) {
			log.log("\n\nITERATION %5d\n", ctx.iter+1)
		}

		if task = d.searchDirection(); task != 0 {
			break
		}
		if task = d.lineSearch(); task != 0 {
			if retryable(task) && ctx.hist.col > 0 {
				d.refresh()
				task = 0
				continue
			}
			break
		}

		task = d.newIteration()
		if task == 0 {
			task = d.checkConvergence()
		} else {
			ctx.sbgNrm = projGradNorm(loc, spec)
		}

		d.printIter()

		if task == 0 {
			d.updateBFGS()
		}
	}

	d.printExit(task)
	return
}

// printInit logs the problem header.
func (d *iterDriver) printInit() {

	loc := d.location
	spec := &d.optimizer.iterSpec

	log := spec.logger

	if log.enable(LogLast) {
		log.log("RUNNING THE PROJECTED L-BFGS CODE\n")
		log.log("           * * *\n")
		log.log("Machine precision = %10.3e\n", spec.epsilon)
		log.log("N = %d    M = %d    LINE SEARCH = %s\n", spec.n, spec.m, spec.search.Method)

		if log.enable(LogEval) {
			log.out("RUNNING THE PROJECTED L-BFGS CODE\n\n")
			log.out("N = %d    M = %d\n", spec.n, spec.m)
			log.out("\n   it   nf  nact  itls     stepl     tstep      projg          f\n")
		}

		if log.enable(LogVerbose) {
			lower, upper := make([]float64, spec.n), make([]float64, spec.n)
			for i, b := range spec.bounds {
				lower[i], upper[i] = b.Lower, b.Upper
			}
			log.vector("L ", lower)
			log.vector("X0", loc.x)
			log.vector("U ", upper)
		}
	}
}

// printIter logs the current iteration details, including the function value,
// gradient norm, and other iteration statistics.
func (d *iterDriver) printIter() {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	stpNorm := ctx.stp * ctx.dNorm
	if log.enable(LogTrace) {
		log.log("LINE SEARCH %d times; norm of step = %12.5e\n", ctx.numBack, stpNorm)
		log.log("At iterate %5d    f= %12.5e    |proj g|= %12.5e\n", ctx.iter, loc.f, ctx.sbgNrm)
		if log.enable(LogVerbose) {
			log.vector("X", loc.x)
			log.vector("G", loc.g)
		}
	} else if log.enable(LogEval) {
		if ctx.iter%int(log.Level) == 0 {
			log.log("At iterate %5d    f= %12.5e    |proj g|= %12.5e\n", ctx.iter, loc.f, ctx.sbgNrm)
		}
	}

	if log.enable(LogEval) {
		log.out(" %4d %4d %5d %5d %9.2e %9.2e %10.3e %10.3e\n",
			ctx.iter, ctx.totalEval, ctx.numActive, ctx.numBack, ctx.stp, stpNorm, ctx.sbgNrm, loc.f)
	}
}

// printExit logs the final statistics and exit conditions of the optimization process.
func (d *iterDriver) printExit(task Status) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("Tit   = total number of iterations\n")
	log.log("Tnf   = total number of function evaluations\n")
	log.log("Skip  = number of BFGS updates skipped\n")
	log.log("Rst   = number of BFGS memory refreshes\n")
	log.log("Nact  = number of active bounds at the last direction\n")
	log.log("Projg = norm of the final projected gradient\n")
	log.log("F     = final function value\n")
	log.log("\n           * * *\n")
	log.log("\n   N      Tit      Tnf   Skip    Rst   Nact    Projg         F\n")
	log.log("%5d %6d %7d %6d %6d %6d %6.2e %9.5e\n",
		spec.n, ctx.iter, ctx.totalEval, ctx.totalSkip, ctx.totalReset, ctx.numActive, ctx.sbgNrm, loc.f)

	if log.enable(LogChange) {
		log.vector("X", loc.x)
	}

	if log.enable(LogEval) {
		log.log(" F = %.9e\n", loc.f)
	}

	log.log("\n%s\n", task)

	switch task {
	case FailMaximumLineSearch:
		log.log("\n Line search cannot locate an adequate point after %d function and gradient evaluations.\n", spec.search.MaxEval)
		log.log("   Previous x, f and g restored.\n")
		log.log(" Possible causes: 1 error in function or gradient evaluation;\n")
		log.log("                  2 rounding error dominate computation.\n")
	case FailIncreaseGradient:
		log.log("\n Derivative >= 0, line search impossible.\n")
		log.log("   Previous x, f and g restored.\n")
	case ConvergedRelReduction:
		if ctx.numBack >= searchBackSlow {
			log.log("\n Warning:  more than %d function and gradient evaluations in the last line search.\n", searchBackSlow)
			log.log("   Termination may possibly be caused by a bad search direction.\n")
		}
	}

	log.log("\n Total User time: %s\n", formatNs(time.Since(ctx.started).Nanoseconds()))
}

func formatNs(nanoseconds int64) string {
	switch {
	case nanoseconds >= 1e9: // Convert to seconds
		return fmt.Sprintf("%.2f s", float64(nanoseconds)/1e9)
	case nanoseconds >= 1e6: // Convert to milliseconds
		return fmt.Sprintf("%.2f ms", float64(nanoseconds)/1e6)
	case nanoseconds >= 1e3: // Convert to microseconds
		return fmt.Sprintf("%.2f µs", float64(nanoseconds)/1e3)
	default: // Keep in nanoseconds
		return fmt.Sprintf("%.2f ns", float64(nanoseconds))
	}
}
