// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package circuit

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/schedule"
	"github.com/curioloop/fastqaoa/statevec"
)

// BatchExpectation evaluates Energy for every row pair (betaRows[i],
// gammaRows[i]). Rows run concurrently, each on a private vector; the
// operators are only read. Cancellation is observed between rows.
func BatchExpectation[F num.Float](ctx context.Context, phase, cost *diag.Operator[F], betaRows, gammaRows [][]float64) ([]float64, error) {
	if len(betaRows) != len(gammaRows) {
		return nil, errs.Mismatch("circuit.BatchExpectation", len(betaRows), len(gammaRows))
	}
	if phase.Qubits() != cost.Qubits() {
		return nil, errs.Mismatch("circuit.BatchExpectation", phase.Qubits(), cost.Qubits())
	}
	for i := range betaRows {
		if err := checkAngles("circuit.BatchExpectation", betaRows[i], gammaRows[i]); err != nil {
			return nil, err
		}
	}

	out := make([]float64, len(betaRows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range betaRows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sv, err := statevec.New[F](phase.Qubits())
			if err != nil {
				return err
			}
			if err = RunInto(sv, phase, betaRows[i], gammaRows[i]); err != nil {
				return err
			}
			out[i], err = sv.Expectation(cost)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GridPoint is the best cell found by GridSearch.
type GridPoint struct {
	Beta, Gamma float64
	Value       float64
}

// Extent is a half-open interval [Lo, Hi).
type Extent struct{ Lo, Hi float64 }

// DefaultExtent spans [0, π).
var DefaultExtent = Extent{0, math.Pi}

func (e Extent) at(i, dim int) float64 {
	return e.Lo + (e.Hi-e.Lo)*float64(i)/float64(dim)
}

// GridSearch scans a dim×dim grid of (β, γ) scales. At depth 1 a cell is
// the circuit (β, γ) itself; at larger depth the linear schedule is scaled
// by the cell, i.e. betas = β·(1-rᵢ) and gammas = γ·rᵢ.
func GridSearch[F num.Float](ctx context.Context, phase, cost *diag.Operator[F], depth, dim int, betaExtent, gammaExtent Extent) (GridPoint, error) {
	if dim < 1 {
		return GridPoint{}, &errs.DomainError{Op: "circuit.GridSearch", Reason: "grid dimension must be positive"}
	}
	baseB, baseG := []float64{1}, []float64{1}
	if depth != 1 {
		var err error
		if baseB, baseG, err = schedule.Linear(depth); err != nil {
			return GridPoint{}, err
		}
	}

	cells := dim * dim
	betaRows, gammaRows := make([][]float64, cells), make([][]float64, cells)
	for gi := 0; gi < dim; gi++ {
		gamma := gammaExtent.at(gi, dim)
		for bi := 0; bi < dim; bi++ {
			beta := betaExtent.at(bi, dim)
			k := gi*dim + bi
			betaRows[k] = scaled(baseB, beta)
			gammaRows[k] = scaled(baseG, gamma)
		}
	}

	vals, err := BatchExpectation(ctx, phase, cost, betaRows, gammaRows)
	if err != nil {
		return GridPoint{}, err
	}
	best := 0
	for k, v := range vals {
		if v < vals[best] {
			best = k
		}
	}
	return GridPoint{
		Beta:  betaExtent.at(best%dim, dim),
		Gamma: gammaExtent.at(best/dim, dim),
		Value: vals[best],
	}, nil
}

func scaled(base []float64, s float64) []float64 {
	return floats.ScaleTo(make([]float64, len(base)), s, base)
}
