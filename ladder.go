// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastqaoa

import (
	"context"

	"github.com/curioloop/fastqaoa/adam"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/schedule"
)

// LadderConfig drives Ladder.
type LadderConfig struct {
	Method Method // LBFGS unless Adam
	Adam   adam.Config
	LBFGS  LBFGSConfig
	// Bounded keeps the L-BFGS angles inside AngleBounds at every depth.
	Bounded bool
	// InitValue fills the first schedule when none is given; 0.1 when zero.
	InitValue float64
}

// Ladder optimises the given depths in order. Each depth starts from the
// previous optimum resampled onto the new depth with schedule.Interpolate;
// the first starts from (betas, gammas), or a constant schedule when both
// are nil. Results are returned in depth order.
func (p *Problem[F]) Ladder(ctx context.Context, depths []int, betas, gammas []float64, cfg LadderConfig) ([]*Result, error) {
	if len(depths) == 0 {
		return nil, &errs.DomainError{Op: "fastqaoa.Ladder", Reason: "no depth given"}
	}
	if (betas == nil) != (gammas == nil) {
		return nil, &errs.DomainError{Op: "fastqaoa.Ladder", Reason: "betas and gammas must be given together"}
	}
	if betas == nil {
		init := cfg.InitValue
		if init == 0 {
			init = 0.1
		}
		betas, gammas = make([]float64, depths[0]), make([]float64, depths[0])
		for i := range betas {
			betas[i], gammas[i] = init, init
		}
	}

	log := p.logger()
	results := make([]*Result, 0, len(depths))
	for _, depth := range depths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		b, g, err := schedule.Interpolate(depth, betas, gammas)
		if err != nil {
			return results, err
		}

		var res *Result
		if cfg.Method == Adam {
			res, err = p.Adam(b, g, cfg.Adam)
		} else {
			lc := cfg.LBFGS
			if cfg.Bounded {
				lc.Bounds = AngleBounds(depth)
			}
			res, err = p.LBFGS(ctx, b, g, lc)
		}
		if err != nil {
			return results, err
		}

		log.Info().Int("depth", depth).Float64("value", res.Value).Str("status", res.Status).Msg("ladder step")
		results = append(results, res)
		betas, gammas = res.Betas, res.Gammas
	}
	return results, nil
}
