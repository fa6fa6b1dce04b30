// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgsb

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// SearchMethod selects the one-dimensional minimiser used along each direction.
type SearchMethod int

const (
	// SearchMoreThuente finds a point satisfying the strong Wolfe conditions
	// by safeguarded cubic interpolation.
	SearchMoreThuente SearchMethod = iota
	// SearchBacktracking halves the step until the Armijo condition holds.
	SearchBacktracking
	// SearchBisection bisects until the strong Wolfe curvature condition holds.
	SearchBisection
)

func (m SearchMethod) String() string {
	switch m {
	case SearchMoreThuente:
		return "more-thuente"
	case SearchBacktracking:
		return "backtracking"
	case SearchBisection:
		return "bisection"
	}
	return "unknown"
}

// SearchTol configures the line search. Zero fields take the defaults below.
type SearchTol struct {
	Method  SearchMethod
	Alpha   float64 // sufficient decrease factor, 1e-3
	Beta    float64 // curvature factor, 0.9
	Eps     float64 // relative width of the interval of uncertainty, 0.1
	Lower   float64 // minimum step, 1e-20
	Upper   float64 // maximum step, 1e20
	MaxEval int     // evaluations per search, 20
}

const (
	searchAlpha    = 1.0e-3
	searchBeta     = 0.9
	searchEps      = 0.1
	searchLower    = 1.0e-20
	searchUpper    = 1.0e+20
	searchBackExit = 20
	searchBackSlow = 10
)

var defaultSearch = SearchTol{
	Method:  SearchMoreThuente,
	Alpha:   searchAlpha,
	Beta:    searchBeta,
	Eps:     searchEps,
	Lower:   searchLower,
	Upper:   searchUpper,
	MaxEval: searchBackExit,
}

func (s SearchTol) withDefaults() SearchTol {
	if s.Alpha == 0 {
		s.Alpha = searchAlpha
	}
	if s.Beta == 0 {
		s.Beta = searchBeta
	}
	if s.Eps == 0 {
		s.Eps = searchEps
	}
	if s.Lower == 0 {
		s.Lower = searchLower
	}
	if s.Upper == 0 {
		s.Upper = searchUpper
	}
	if s.MaxEval == 0 {
		s.MaxEval = searchBackExit
	}
	return s
}

func (s SearchTol) validate() Status {
	switch {
	case s.Method < SearchMoreThuente || s.Method > SearchBisection:
		return FailInvalidLineSearch
	case !(s.Lower >= 0):
		return FailInvalidMinStep
	case !(s.Upper > s.Lower):
		return FailInvalidMaxStep
	case !(s.Alpha > 0 && s.Alpha < 1):
		return FailInvalidFTol
	case !(s.Beta > 0 && s.Beta < 1):
		return FailInvalidGTol
	case s.Alpha >= s.Beta:
		return FailInvalidWolfe
	case !(s.Eps >= 0):
		return FailInvalidXTol
	case s.MaxEval <= 0:
		return FailInvalidMaxLineSearch
	}
	return 0
}

func (s *SearchTol) searcher() optimize.Linesearcher {
	switch s.Method {
	case SearchBacktracking:
		return &optimize.Backtracking{DecreaseFactor: s.Alpha, ContractionFactor: 0.5}
	case SearchBisection:
		return &optimize.Bisection{CurvatureFactor: s.Beta}
	default:
		return &optimize.MoreThuente{
			DecreaseFactor:  s.Alpha,
			CurvatureFactor: s.Beta,
			StepTolerance:   s.Eps,
			MinimumStep:     s.Lower,
			MaximumStep:     s.Upper,
		}
	}
}

// pathDerivative is the one-sided derivative of t ↦ f(P(xₖ + t·dₖ)) at the
// current location, where variables pinned by a bound no longer move.
func pathDerivative(loc *iterLoc, spec *iterSpec, d []float64) (gd float64) {
	for i, b := range spec.bounds {
		di := d[i]
		if di == 0 ||
			di < 0 && b.hasLower() && loc.x[i] <= b.Lower ||
			di > 0 && b.hasUpper() && loc.x[i] >= b.Upper {
			continue
		}
		gd += loc.g[i] * di
	}
	return
}

// initStep chooses the first trial step. Without curvature information the
// step is scaled to unit length; the first bound crossed caps it unless it
// lies closer than the minimum step.
func initStep(ctx *iterCtx, tol *SearchTol, stepMax float64) float64 {
	stp := 1.0
	if ctx.hist.col == 0 {
		stp = 1 / ctx.dNorm
	}
	if stepMax >= tol.Lower && stepMax < stp {
		stp = stepMax
	}
	return math.Max(tol.Lower, math.Min(stp, tol.Upper))
}

// searchFail maps a gonum line searcher error to a status.
func searchFail(err error, stp float64, tol *SearchTol) Status {
	switch {
	case errors.Is(err, optimize.ErrLinesearcherBound):
		if stp >= tol.Upper {
			return FailMaximumStep
		}
		return FailMinimumStep
	case errors.Is(err, optimize.ErrLinesearcherFailure):
		return FailRoundingError
	case errors.Is(err, optimize.ErrNoProgress):
		return FailWidthTooSmall
	case errors.Is(err, optimize.ErrNonDescentDirection):
		return FailIncreaseGradient
	}
	return FailUnknown
}

// lineSearch moves loc along ctx.d until the line searcher accepts a step.
// On failure loc is restored to the starting point.
func (d *iterDriver) lineSearch() (task Status) {

	o, ctx, loc := d.optimizer, &d.workspace.iterCtx, d.location
	spec := &o.iterSpec
	tol := &spec.search

	copy(ctx.xOld, loc.x)
	copy(ctx.gOld, loc.g)
	ctx.fOld = loc.f

	defer func() {
		if task != 0 {
			copy(loc.x, ctx.xOld)
			copy(loc.g, ctx.gOld)
			loc.f = ctx.fOld
		}
	}()

	stepMax := maxStep(loc, spec, ctx.d)
	ctx.stp = initStep(ctx, tol, stepMax)
	ctx.numBack = 0

	ls := tol.searcher()
	op := ls.Init(loc.f, ctx.gd, ctx.stp)
	for {
		if op&(optimize.FuncEvaluation|optimize.GradEvaluation) == 0 {
			return FailLogic
		}
		if ctx.numBack >= tol.MaxEval {
			return FailMaximumLineSearch
		}
		if ctx.totalEval >= spec.stop.MaxEvaluations {
			return StopMaxEvaluations
		}

		moveTo(loc.x, ctx.xOld, ctx.d, ctx.stp, spec)
		if task = d.nextLocation(); task != 0 {
			return
		}
		ctx.numBack++

		var err error
		op, ctx.stp, err = ls.Iterate(loc.f, pathDerivative(loc, spec, ctx.d))
		if err != nil {
			// A step clipped at the maximum still counts when f decreased.
			if op == optimize.MajorIteration && errors.Is(err, optimize.ErrLinesearcherBound) && loc.f < ctx.fOld {
				return 0
			}
			return searchFail(err, ctx.stp, tol)
		}
		if op == optimize.MajorIteration {
			return 0
		}
		if !(ctx.stp > 0) {
			return FailOutOfInterval
		}
	}
}
