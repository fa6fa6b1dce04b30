// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgsb

import "math"

// projGradNorm computes the infinity norm of the projected gradient.
func projGradNorm(loc *iterLoc, spec *iterSpec) float64 {

	// gradient projection P(gᵢ,lᵢ,uᵢ) limit the gradient to feasible region:
	//   𝚙𝚛𝚘𝚓 gᵢ = 𝚖𝚊𝚡(xᵢ - uᵢ, gᵢ) if gᵢ < 0
	//   𝚙𝚛𝚘𝚓 gᵢ = 𝚖𝚒𝚗(xᵢ - lᵢ, gᵢ) if gᵢ > 0
	//   𝚙𝚛𝚘𝚓 gᵢ = gᵢ               otherwise

	b, g, x := spec.bounds, loc.g, loc.x
	if len(g) != len(b) || len(x) != len(b) {
		panic("bound check error")
	}

	norm := 0.0 // ‖ 𝚙𝚛𝚘𝚓 g ‖∞
	for i, b := range b {
		gi := g[i]
		if gi < 0 {
			if b.hasUpper() {
				gi = math.Max(x[i]-b.Upper, gi)
			}
		} else if b.hasLower() {
			gi = math.Min(x[i]-b.Lower, gi)
		}
		norm = math.Max(norm, math.Abs(gi))
	}
	return norm
}

// projInit projects the initial loc.x to the feasible set if necessary
// and records whether the problem has any bound at all.
func projInit(loc *iterLoc, spec *iterSpec, ctx *iterCtx) {

	// initial projection P(xᵢ,lᵢ,uᵢ) limit the x to feasible region:
	//   𝚙𝚛𝚘𝚓 xᵢ = uᵢ    if xᵢ > uᵢ
	//   𝚙𝚛𝚘𝚓 xᵢ = lᵢ    if xᵢ < lᵢ
	//   𝚙𝚛𝚘𝚓 xᵢ = xᵢ    otherwise

	numBnd := 0
	projected, constrained := false, false
	for i, b := range spec.bounds {
		if b.hint == bndNo {
			continue
		}
		constrained = true
		xi := loc.x[i]
		if b.hasLower() && xi <= b.Lower {
			if xi < b.Lower {
				projected = true
				loc.x[i] = b.Lower
			}
			numBnd++
		} else if b.hasUpper() && xi >= b.Upper {
			if xi > b.Upper {
				projected = true
				loc.x[i] = b.Upper
			}
			numBnd++
		}
	}

	if log := spec.logger; log.enable(LogLast) {
		if projected {
			log.log("The initial X is infeasible. Restart with its projection.\n")
		}
		if !constrained {
			log.log("This problem is unconstrained.\n")
		}
		if log.enable(LogEval) {
			log.log("At X0 %d variables are exactly at the bounds\n", numBnd)
		}
	}

	ctx.projInitX = projected
	ctx.constrained = constrained
}

// markActive flags the variables held at a bound by the current gradient:
// xᵢ = lᵢ with gᵢ > 0 or xᵢ = uᵢ with gᵢ < 0. It returns the number of them.
func markActive(loc *iterLoc, spec *iterSpec, active []bool) (num int) {
	for i, b := range spec.bounds {
		xi, gi := loc.x[i], loc.g[i]
		active[i] = b.hasLower() && xi <= b.Lower && gi > 0 ||
			b.hasUpper() && xi >= b.Upper && gi < 0
		if active[i] {
			num++
		}
	}
	return
}

// clipDirection zeroes the components of d that are active or that point
// out of the box from a bound.
func clipDirection(loc *iterLoc, spec *iterSpec, active []bool, d []float64) {
	for i, b := range spec.bounds {
		xi := loc.x[i]
		if active[i] ||
			d[i] < 0 && b.hasLower() && xi <= b.Lower ||
			d[i] > 0 && b.hasUpper() && xi >= b.Upper {
			d[i] = 0
		}
	}
}

// maxStep returns the largest t such that x + t·d stays inside the box,
// or +Inf when no bound is crossed along d.
func maxStep(loc *iterLoc, spec *iterSpec, d []float64) float64 {
	step := math.Inf(1)
	for i, b := range spec.bounds {
		di := d[i]
		switch {
		case di < 0 && b.hasLower():
			step = math.Min(step, (b.Lower-loc.x[i])/di)
		case di > 0 && b.hasUpper():
			step = math.Min(step, (b.Upper-loc.x[i])/di)
		}
	}
	return math.Max(step, 0)
}

// moveTo sets x = base + t·d, snapping the variables that hit a bound
// exactly onto it.
func moveTo(x, base, d []float64, t float64, spec *iterSpec) {
	for i, b := range spec.bounds {
		xi := base[i] + t*d[i]
		if b.hasLower() && xi < b.Lower {
			xi = b.Lower
		}
		if b.hasUpper() && xi > b.Upper {
			xi = b.Upper
		}
		x[i] = xi
	}
}
