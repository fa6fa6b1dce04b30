// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package statevec

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/fastqaoa/errs"
)

// Sample draws k basis indices from the Born distribution of v. The
// distribution is renormalised on the fly, so v need not be of unit norm.
// A single cumulative table is built and each draw is a binary search.
func (v *Vector[F]) Sample(k int, rng *rand.Rand) ([]int, error) {
	if k < 0 {
		return nil, &errs.DomainError{Op: "statevec.Sample", Reason: "negative sample count"}
	}
	cdf := floats.CumSum(make([]float64, len(v.re)), v.Probabilities())
	total := cdf[len(cdf)-1]
	if !(total > 0) {
		return nil, &errs.DomainError{Op: "statevec.Sample", Reason: "zero norm state"}
	}

	out := make([]int, k)
	last := len(cdf) - 1
	for i := range out {
		u := rng.Float64() * total
		j := sort.Search(len(cdf), func(m int) bool { return cdf[m] > u })
		out[i] = min(j, last)
	}
	return out, nil
}
