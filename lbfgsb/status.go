// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgsb

import (
	"fmt"

	"github.com/curioloop/fastqaoa/errs"
)

// Status is the terminal condition of a run.
// The class bit (convergence, stop or failure) sits above the code.
type Status int

const (
	statusConv Status = 1 << (8 + iota)
	statusStop
	statusFail
)

const (
	// Converged means ‖proj g‖∞ ≤ ProjGradTolerance.
	Converged = statusConv | (1 + iota)
	// ConvergedRelReduction means (fₖ - fₖ₊₁)/max(|fₖ|,|fₖ₊₁|,1) ≤ factr·epsmch.
	ConvergedRelReduction
	// AlreadyMinimized means the initial point already satisfied the gradient test.
	AlreadyMinimized
)

const (
	// StopMaxIterations means the iteration budget ran out.
	StopMaxIterations = statusStop | (1 + iota)
	// StopMaxEvaluations means the evaluation budget ran out.
	StopMaxEvaluations
	// StopGradThreshold means the search direction became negligible.
	StopGradThreshold
)

const (
	FailUnknown = statusFail | (1 + iota)
	FailLogic
	FailCanceled
	FailInvalidN
	FailInvalidM
	FailInvalidX0
	FailInvalidBounds
	FailInvalidEpsilon
	FailInvalidPGTol
	FailInvalidDelta
	FailInvalidMaxIterations
	FailInvalidLineSearch
	FailInvalidMinStep
	FailInvalidMaxStep
	FailInvalidFTol
	FailInvalidWolfe
	FailInvalidGTol
	FailInvalidXTol
	FailInvalidMaxLineSearch
	FailOutOfInterval
	FailIncorrectTMinMax
	FailRoundingError
	FailMinimumStep
	FailMaximumStep
	FailMaximumLineSearch
	FailWidthTooSmall
	FailIncreaseGradient
	FailEvalPanic
	FailNonFinite
)

var statusMsg = map[Status]string{
	Converged:             "CONVERGENCE: NORM_OF_PROJECTED_GRADIENT_<=_PGTOL",
	ConvergedRelReduction: "CONVERGENCE: REL_REDUCTION_OF_F_<=_FACTR*EPSMCH",
	AlreadyMinimized:      "CONVERGENCE: INITIAL X ALREADY MINIMIZED",

	StopMaxIterations:  "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT",
	StopMaxEvaluations: "STOP: TOTAL NO. of f AND g EVALUATIONS EXCEEDS LIMIT",
	StopGradThreshold:  "STOP: THE PROJECTED GRADIENT IS SUFFICIENTLY SMALL",

	FailUnknown:              "ABNORMAL: UNKNOWN ERROR",
	FailLogic:                "ABNORMAL: LOGIC ERROR",
	FailCanceled:             "ABNORMAL: CANCELED",
	FailInvalidN:             "INVALID: N <= 0",
	FailInvalidM:             "INVALID: M <= 0",
	FailInvalidX0:            "INVALID: X0 DIMENSION OR NON-FINITE ENTRY",
	FailInvalidBounds:        "INVALID: LOWER BOUND > UPPER BOUND",
	FailInvalidEpsilon:       "INVALID: FACTR < 0",
	FailInvalidPGTol:         "INVALID: PGTOL < 0",
	FailInvalidDelta:         "INVALID: GRADIENT THRESHOLD < 0",
	FailInvalidMaxIterations: "INVALID: MAX ITERATIONS <= 0",
	FailInvalidLineSearch:    "INVALID: UNKNOWN LINE SEARCH",
	FailInvalidMinStep:       "INVALID: STPMIN < ZERO",
	FailInvalidMaxStep:       "INVALID: STPMAX < STPMIN",
	FailInvalidFTol:          "INVALID: FTOL OUTSIDE (0, 1)",
	FailInvalidWolfe:         "INVALID: FTOL >= GTOL",
	FailInvalidGTol:          "INVALID: GTOL OUTSIDE (0, 1)",
	FailInvalidXTol:          "INVALID: XTOL < ZERO",
	FailInvalidMaxLineSearch: "INVALID: MAX LINE SEARCH <= 0",
	FailOutOfInterval:        "ABNORMAL: STEP OUT OF THE INTERVAL OF UNCERTAINTY",
	FailIncorrectTMinMax:     "ABNORMAL: INTERVAL OF UNCERTAINTY IS INCONSISTENT",
	FailRoundingError:        "ABNORMAL: ROUNDING ERRORS PREVENT PROGRESS",
	FailMinimumStep:          "ABNORMAL: STP = STPMIN",
	FailMaximumStep:          "ABNORMAL: STP = STPMAX",
	FailMaximumLineSearch:    "ABNORMAL_TERMINATION_IN_LNSRCH",
	FailWidthTooSmall:        "ABNORMAL: WIDTH OF THE INTERVAL OF UNCERTAINTY TOO SMALL",
	FailIncreaseGradient:     "ABNORMAL: SEARCH DIRECTION IS NOT A DESCENT DIRECTION",
	FailEvalPanic:            "ABNORMAL: EVALUATION PANICKED",
	FailNonFinite:            "ABNORMAL: NON-FINITE FUNCTION OR GRADIENT VALUE",
}

func (s Status) String() string {
	if msg, ok := statusMsg[s]; ok {
		return msg
	}
	return fmt.Sprintf("Status(%#x)", int(s))
}

// Converged reports a convergence status.
func (s Status) Converged() bool { return s&statusConv > 0 }

// Stopped reports a budget or threshold stop.
func (s Status) Stopped() bool { return s&statusStop > 0 }

// Failed reports an abnormal termination or an invalid setting.
func (s Status) Failed() bool { return s&statusFail > 0 }

// OK reports a status that leaves a usable point: converged or stopped.
func (s Status) OK() bool { return s.Converged() || s.Stopped() }

// Err converts a failure to a *errs.NumericalFailure and returns nil otherwise.
func (s Status) Err() error {
	if !s.Failed() {
		return nil
	}
	return &errs.NumericalFailure{Op: "lbfgsb", Code: int(s), Reason: s.String()}
}
