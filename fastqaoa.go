// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fastqaoa optimises the angles of exact-state QAOA circuits.
//
// A Problem pairs the phase operator that drives the circuit with the cost
// that is measured. With a Constraint indicator the circuit projects every
// layer onto the feasible subspace and the objective is the conditioned
// expectation.
package fastqaoa

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/fastqaoa/adam"
	"github.com/curioloop/fastqaoa/circuit"
	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/lbfgsb"
	"github.com/curioloop/fastqaoa/metrics"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/objective"
	"github.com/curioloop/fastqaoa/qpe"
	"github.com/curioloop/fastqaoa/statevec"
)

// Problem is one QAOA instance.
type Problem[F num.Float] struct {
	Phase *diag.Operator[F] // drives the phase separator
	Cost  *diag.Operator[F] // measured observable; Phase when nil
	// Constraint is the optional feasibility indicator of the projected circuit.
	Constraint *diag.Operator[F]
	Logger     *zerolog.Logger
}

// Penalized builds a Problem whose phase and cost both carry the quadratic
// penalty for violating constraint op threshold. A negative penalty is
// searched automatically; the penalty used is returned.
func Penalized[F num.Float](cost, constraint *diag.Operator[F], threshold float64, c diag.Cmp, penalty float64) (*Problem[F], float64, error) {
	pen, used, err := cost.QuadPenalty(constraint, threshold, c, penalty)
	if err != nil {
		return nil, 0, err
	}
	return &Problem[F]{Phase: pen, Cost: pen}, used, nil
}

func (p *Problem[F]) cost() *diag.Operator[F] {
	if p.Cost == nil {
		return p.Phase
	}
	return p.Cost
}

func (p *Problem[F]) logger() zerolog.Logger {
	if p.Logger == nil {
		return zerolog.Nop()
	}
	return p.Logger.With().Str("component", "fastqaoa").Logger()
}

// Objective returns the depth-p objective over x = [betas…, gammas…].
func (p *Problem[F]) Objective(depth int) (objective.Function, error) {
	if p.Phase == nil {
		return nil, &errs.DomainError{Op: "fastqaoa.Objective", Reason: "phase operator is required"}
	}
	var (
		fn  objective.Function
		err error
	)
	if p.Constraint == nil {
		fn, err = objective.NewUnconstrained(p.Phase, p.cost(), depth)
	} else {
		fn, err = objective.NewConstrained(p.Phase, p.cost(), p.Constraint, depth)
	}
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// State returns the final circuit state and its success probability,
// which is 1 without a constraint.
func (p *Problem[F]) State(betas, gammas []float64) (*statevec.Vector[F], float64, error) {
	if p.Constraint == nil {
		sv, err := circuit.Run(p.Phase, betas, gammas)
		return sv, 1, err
	}
	return qpe.Run(p.Phase, p.Constraint, betas, gammas)
}

// Metrics scores the final state of the circuit. slack may be nil.
func (p *Problem[F]) Metrics(betas, gammas []float64, slack *diag.Operator[F]) (*metrics.Metrics, error) {
	sv, _, err := p.State(betas, gammas)
	if err != nil {
		return nil, err
	}
	return metrics.Compute(sv, p.cost(), slack)
}

// Method names an optimiser.
type Method string

const (
	Adam  Method = "adam"
	LBFGS Method = "lbfgs"
)

// Result is the outcome of one optimisation.
type Result struct {
	Method        Method
	Depth         int
	Status        string
	OK            bool
	Err           error // non-nil when the optimiser ended abnormally
	Betas, Gammas []float64
	Value         float64
	Psucc         float64 // success probability of the projected circuit, 1 otherwise
	Iterations    int
	Evaluations   int
	Trace         []float64
}

func checkSchedule(op string, betas, gammas []float64) error {
	if len(betas) != len(gammas) {
		return errs.Mismatch(op, len(betas), len(gammas))
	}
	if len(betas) == 0 {
		return &errs.DomainError{Op: op, Reason: "empty schedule"}
	}
	return nil
}

func (p *Problem[F]) finish(res *Result, x []float64) error {
	res.Betas, res.Gammas = objective.Split(x)
	res.Depth = len(res.Betas)
	res.Psucc = 1
	if p.Constraint != nil && !floats.HasNaN(x) && !math.IsInf(floats.Norm(x, math.Inf(1)), 0) {
		_, ps, err := qpe.Run(p.Phase, p.Constraint, res.Betas, res.Gammas)
		if err != nil {
			return err
		}
		res.Psucc = ps
	}
	log := p.logger()
	log.Debug().
		Str("method", string(res.Method)).
		Int("depth", res.Depth).
		Str("status", res.Status).
		Float64("value", res.Value).
		Float64("psucc", res.Psucc).
		Int("iterations", res.Iterations).
		Msg("optimised")
	return nil
}

// Adam optimises from (betas, gammas), which are copied.
func (p *Problem[F]) Adam(betas, gammas []float64, cfg adam.Config) (*Result, error) {
	if err := checkSchedule("fastqaoa.Adam", betas, gammas); err != nil {
		return nil, err
	}
	fn, err := p.Objective(len(betas))
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = p.Logger
	}
	out, err := adam.Minimize(fn, objective.Pack(betas, gammas), cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Method:      Adam,
		Status:      out.Status.String(),
		OK:          out.Status.OK(),
		Err:         out.Status.Err(),
		Value:       out.F,
		Iterations:  out.Iterations,
		Evaluations: len(out.Trace),
		Trace:       out.Trace,
	}
	if out.Status == adam.MaxIterReached {
		res.Evaluations++
	}
	return res, p.finish(res, out.X)
}

// LBFGSConfig tunes the bounded L-BFGS run. Zero fields take the defaults noted.
type LBFGSConfig struct {
	M      int                // history size, 6
	Stop   lbfgsb.Termination // MaxIterations 100, EpsAccuracyFactor 1e7, ProjGradTolerance 1e-5
	Search *lbfgsb.SearchTol
	// Bounds over x = [betas…, gammas…]; nil leaves every angle free.
	Bounds []lbfgsb.Bound
	Trace  *lbfgsb.Logger
}

func (c LBFGSConfig) withDefaults() LBFGSConfig {
	if c.M == 0 {
		c.M = 6
	}
	if c.Stop.MaxIterations == 0 {
		c.Stop.MaxIterations = 100
	}
	if c.Stop.EpsAccuracyFactor == 0 {
		c.Stop.EpsAccuracyFactor = 1e7
	}
	if c.Stop.ProjGradTolerance == 0 {
		c.Stop.ProjGradTolerance = 1e-5
	}
	return c
}

// AngleBounds returns bounds keeping betas in [0, π] and gammas in [0, 2π]
// for a depth-p schedule.
func AngleBounds(depth int) []lbfgsb.Bound {
	b := make([]lbfgsb.Bound, 2*depth)
	for i := range b {
		b[i] = lbfgsb.Bound{Lower: 0, Upper: math.Pi}
		if i >= depth {
			b[i].Upper = 2 * math.Pi
		}
	}
	return b
}

func minimizeLBFGS(ctx context.Context, fn objective.Function, x0 []float64, cfg LBFGSConfig) (*Result, []float64, error) {
	cfg = cfg.withDefaults()
	prob := lbfgsb.Problem{
		N: fn.Dim(), M: cfg.M,
		Eval:   lbfgsb.FromObjective(fn),
		Stop:   cfg.Stop,
		Bounds: cfg.Bounds,
		Search: cfg.Search,
	}
	opt, err := prob.New(cfg.Trace)
	if err != nil {
		return nil, nil, err
	}
	out := opt.FitContext(ctx, x0, opt.Init())
	return &Result{
		Method:      LBFGS,
		Status:      out.Status.String(),
		OK:          out.OK,
		Err:         out.Status.Err(),
		Value:       out.F,
		Iterations:  out.NumIter,
		Evaluations: out.NumEval,
		Trace:       out.Trace,
	}, out.X, nil
}

// LBFGS optimises from (betas, gammas), which are copied.
func (p *Problem[F]) LBFGS(ctx context.Context, betas, gammas []float64, cfg LBFGSConfig) (*Result, error) {
	if err := checkSchedule("fastqaoa.LBFGS", betas, gammas); err != nil {
		return nil, err
	}
	fn, err := p.Objective(len(betas))
	if err != nil {
		return nil, err
	}
	res, x, err := minimizeLBFGS(ctx, fn, objective.Pack(betas, gammas), cfg)
	if err != nil {
		return nil, err
	}
	return res, p.finish(res, x)
}

// LinearResult is the outcome of Linear.
type LinearResult struct {
	*Result
	DeltaBeta, DeltaGamma float64
}

// Linear optimises the two scales of the linear ramp schedule at the given
// depth, starting from (deltaBeta, deltaGamma).
func (p *Problem[F]) Linear(ctx context.Context, depth int, deltaBeta, deltaGamma float64, cfg LBFGSConfig) (*LinearResult, error) {
	inner, err := p.Objective(depth)
	if err != nil {
		return nil, err
	}
	ramp, err := objective.NewRamp(inner)
	if err != nil {
		return nil, err
	}
	cfg.Bounds = nil
	res, x, err := minimizeLBFGS(ctx, ramp, []float64{deltaBeta, deltaGamma}, cfg)
	if err != nil {
		return nil, err
	}
	if err = p.finish(res, objective.Pack(ramp.Expand(x[0], x[1]))); err != nil {
		return nil, err
	}
	return &LinearResult{Result: res, DeltaBeta: x[0], DeltaGamma: x[1]}, nil
}
