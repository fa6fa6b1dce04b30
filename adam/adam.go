// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package adam minimises circuit objectives with the Adam method.
//
// Update rule at step t (1-based):
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	x = x - lr·√(1-β2ᵗ)/(1-β1ᵗ) · m/(√v + ε)
package adam

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/objective"
)

// Status reports why Minimize returned.
type Status int

const (
	// Converged means the gradient norm fell below the tolerance.
	Converged Status = iota
	// MaxIterReached means the iteration budget ran out.
	MaxIterReached
	// NonFinite means the objective or its gradient became NaN or infinite.
	NonFinite
	// EvalPanic means the objective panicked.
	EvalPanic
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIterReached:
		return "max iterations reached"
	case NonFinite:
		return "non-finite objective"
	case EvalPanic:
		return "objective panicked"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// OK reports whether the status is a normal termination.
func (s Status) OK() bool { return s == Converged || s == MaxIterReached }

// Err converts an abnormal status to a *errs.NumericalFailure.
func (s Status) Err() error {
	if s.OK() {
		return nil
	}
	return &errs.NumericalFailure{Op: "adam", Code: int(s), Reason: s.String()}
}

// Config holds the step parameters. Zero fields take the defaults noted.
type Config struct {
	LR      float64 // 0.01
	MaxIter int     // 1000
	Tol     float64 // 1e-6, on ‖g‖₂
	Beta1   float64 // 0.9
	Beta2   float64 // 0.999
	Eps     float64 // 1e-8

	Logger *zerolog.Logger
}

func (c Config) withDefaults() (Config, error) {
	if c.LR == 0 {
		c.LR = 0.01
	}
	if c.MaxIter == 0 {
		c.MaxIter = 1000
	}
	if c.Tol == 0 {
		c.Tol = 1e-6
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	switch {
	case c.LR < 0 || math.IsNaN(c.LR):
		return c, errors.New("adam: learning rate must be positive")
	case c.MaxIter < 0:
		return c, errors.New("adam: negative iteration budget")
	case c.Tol < 0:
		return c, errors.New("adam: negative tolerance")
	case c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1:
		return c, errors.New("adam: decay rates must lie in [0, 1)")
	case c.Eps < 0:
		return c, errors.New("adam: negative epsilon")
	}
	return c, nil
}

// Result is the outcome of Minimize.
type Result struct {
	Status Status
	// X is the final point; F is f(X).
	X []float64
	F float64
	// Iterations counts gradient evaluations; Trace holds f at each of them.
	Iterations int
	Trace      []float64
}

// Minimize runs Adam on fn from x0, which is copied.
func Minimize(fn objective.Function, x0 []float64, cfg Config) (res Result, err error) {
	if cfg, err = cfg.withDefaults(); err != nil {
		return
	}
	if len(x0) != fn.Dim() {
		err = errs.Mismatch("adam.Minimize", fn.Dim(), len(x0))
		return
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "adam").Logger()
	}

	n := len(x0)
	x := append([]float64{}, x0...)
	g, m, v := make([]float64, n), make([]float64, n), make([]float64, n)
	res.X = x
	res.Status = MaxIterReached
	res.Trace = make([]float64, 0, cfg.MaxIter)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("iter", res.Iterations).Msg("objective panicked")
			res.Status = EvalPanic
			res.F = math.NaN()
		}
	}()

	for t := 1; t <= cfg.MaxIter; t++ {
		f := fn.Eval(x, g)
		res.Trace = append(res.Trace, f)
		res.Iterations, res.F = t, f

		gnorm := floats.Norm(g, 2)
		if math.IsNaN(f) || math.IsInf(f, 0) || math.IsNaN(gnorm) || math.IsInf(gnorm, 0) {
			res.Status = NonFinite
			log.Warn().Int("iter", t).Float64("f", f).Msg("non-finite objective")
			return
		}
		log.Debug().Int("iter", t).Float64("f", f).Float64("gnorm", gnorm).Msg("step")
		if gnorm < cfg.Tol {
			res.Status = Converged
			log.Debug().Int("iter", t).Float64("f", f).Msg("converged")
			return
		}

		lr := cfg.LR * math.Sqrt(1-math.Pow(cfg.Beta2, float64(t))) / (1 - math.Pow(cfg.Beta1, float64(t)))
		for i, gi := range g {
			m[i] = cfg.Beta1*m[i] + (1-cfg.Beta1)*gi
			v[i] = cfg.Beta2*v[i] + (1-cfg.Beta2)*gi*gi
			x[i] -= lr * m[i] / (math.Sqrt(v[i]) + cfg.Eps)
		}
	}

	res.F = fn.Eval(x, nil)
	log.Debug().Int("iter", res.Iterations).Float64("f", res.F).Msg("iteration budget exhausted")
	return
}
