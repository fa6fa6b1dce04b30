// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgsb

import "gonum.org/v1/gonum/floats"

// history holds the last m correction pairs sₖ = xₖ₊₁ - xₖ, yₖ = gₖ₊₁ - gₖ
// in a ring. head is the slot of the oldest pair.
type history struct {
	s, y  [][]float64
	rho   []float64 // 1 / sₖᵀyₖ
	alpha []float64
	head  int
	col   int
	theta float64 // initial Hessian scale sᵀy / yᵀy of the newest pair
}

func newHistory(n, m int) history {
	h := history{
		s:     make([][]float64, m),
		y:     make([][]float64, m),
		rho:   make([]float64, m),
		alpha: make([]float64, m),
	}
	for i := range h.s {
		h.s[i] = make([]float64, n)
		h.y[i] = make([]float64, n)
	}
	h.clear()
	return h
}

func (h *history) clear() {
	h.head, h.col, h.theta = 0, 0, 1
}

func (h *history) slot(k int) int { return (h.head + k) % len(h.s) }

// update stores the pair (s, y) unless the curvature condition
// sᵀy > ε·yᵀy fails, in which case it reports false.
func (h *history) update(s, y []float64, eps float64) bool {
	sy, yy := floats.Dot(s, y), floats.Dot(y, y)
	if sy <= eps*yy {
		return false
	}
	var k int
	if h.col < len(h.s) {
		k = h.slot(h.col)
		h.col++
	} else {
		k = h.head
		h.head = h.slot(1)
	}
	copy(h.s[k], s)
	copy(h.y[k], y)
	h.rho[k] = 1 / sy
	h.theta = sy / yy
	return true
}

// direction writes d = -H·q using the two-loop recursion, where q is the
// reduced gradient with active components already zeroed. d and q may not alias.
func (h *history) direction(d, q []float64) {
	copy(d, q)
	for k := h.col - 1; k >= 0; k-- {
		i := h.slot(k)
		h.alpha[i] = h.rho[i] * floats.Dot(h.s[i], d)
		floats.AddScaled(d, -h.alpha[i], h.y[i])
	}
	floats.Scale(h.theta, d)
	for k := 0; k < h.col; k++ {
		i := h.slot(k)
		beta := h.rho[i] * floats.Dot(h.y[i], d)
		floats.AddScaled(d, h.alpha[i]-beta, h.s[i])
	}
	floats.Scale(-1, d)
}
