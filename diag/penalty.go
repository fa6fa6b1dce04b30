// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diag

import (
	"math"

	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
)

// SearchPenalty finds the smallest λ ≥ 0 for which the global minimiser of
//
//	cost + λ·(constraint - threshold)²   (on violating states only)
//
// is feasible.
//
// Let f₂ be the second smallest distinct feasible cost (the smallest one when
// all feasible states share a value). Every infeasible state b must satisfy
// cost_b + λ·d_b² ≥ f₂, so
//
//	λ = max_b (f₂ - cost_b) / d_b²
//
// over infeasible b. The binding state then ties with the runner-up feasible
// state, which leaves the feasible optimum strictly in front. When all
// feasible states share one cost, f₂ is that cost and the binding state ties
// the optimum itself. One O(2ⁿ) pass locates f₂, a second computes λ.
func SearchPenalty[F num.Float](cost, constraint *Operator[F], threshold float64, c Cmp) (float64, error) {
	if err := checkCmp("diag.SearchPenalty", c); err != nil {
		return 0, err
	}
	if err := cost.sameWidth("diag.SearchPenalty", constraint); err != nil {
		return 0, err
	}

	best, second := math.Inf(1), math.Inf(1)
	feasible := 0
	for i, v := range constraint.data {
		if !c.holds(float64(v) - threshold) {
			continue
		}
		feasible++
		f := float64(cost.data[i])
		switch {
		case f < best-num.CmpTol:
			second, best = best, f
		case f > best+num.CmpTol && f < second:
			second = f
		case f < best:
			best = f
		}
	}

	infeasible := len(constraint.data) - feasible
	if feasible == 0 || infeasible == 0 {
		return 0, &errs.InfeasibleError{Feasible: feasible, Infeasible: infeasible}
	}
	if math.IsInf(second, 1) {
		second = best
	}

	penalty := 0.0
	for i, v := range constraint.data {
		diff := float64(v) - threshold
		if c.holds(diff) {
			continue
		}
		den := diff * diff
		if den < num.CmpTol {
			den += num.CmpTol
		}
		if p := (second - float64(cost.data[i])) / den; p > penalty {
			penalty = p
		}
	}
	return penalty, nil
}
