// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diag

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
)

// Cmp selects the relation tested between an operator entry and a threshold.
type Cmp int

const (
	LessEqual Cmp = iota
	GreaterEqual
	Less
	Greater
	Equal
	NotEqual
)

var cmpNames = [...]string{"<=", ">=", "<", ">", "==", "!="}

func (c Cmp) String() string {
	if c.valid() {
		return cmpNames[c]
	}
	return fmt.Sprintf("Cmp(%d)", int(c))
}

func (c Cmp) valid() bool { return c >= LessEqual && c <= NotEqual }

// ParseCmp maps a textual relation to a Cmp.
func ParseCmp(s string) (Cmp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "<=", "le", "lte":
		return LessEqual, nil
	case ">=", "ge", "gte":
		return GreaterEqual, nil
	case "<", "lt":
		return Less, nil
	case ">", "gt":
		return Greater, nil
	case "=", "==", "eq":
		return Equal, nil
	case "!=", "<>", "ne", "neq":
		return NotEqual, nil
	}
	return 0, &errs.DomainError{Op: "diag.ParseCmp", Reason: fmt.Sprintf("unknown comparison %q", s)}
}

// holds tests diff = value - threshold against the relation.
func (c Cmp) holds(diff float64) bool {
	switch c {
	case LessEqual:
		return diff <= 0
	case GreaterEqual:
		return diff >= 0
	case Less:
		return diff < 0
	case Greater:
		return diff > 0
	case Equal:
		return math.Abs(diff) <= num.CmpTol
	case NotEqual:
		return math.Abs(diff) > num.CmpTol
	}
	return false
}

func checkCmp(op string, c Cmp) error {
	if !c.valid() {
		return &errs.DomainError{Op: op, Reason: fmt.Sprintf("unknown comparison code %d", int(c))}
	}
	return nil
}

// Compare returns the 0/1 indicator of (entry c threshold).
func (o *Operator[F]) Compare(threshold float64, c Cmp) (*Operator[F], error) {
	if err := checkCmp("diag.Compare", c); err != nil {
		return nil, err
	}
	return o.compare(threshold, c), nil
}

func (o *Operator[F]) compare(threshold float64, c Cmp) *Operator[F] {
	r := alloc[F](o.n)
	for i, v := range o.data {
		if c.holds(float64(v) - threshold) {
			r.data[i] = 1
		}
	}
	r.refresh()
	return r
}

// CompareLessEqual returns the indicator of entry ≤ t.
func (o *Operator[F]) CompareLessEqual(t float64) *Operator[F] { return o.compare(t, LessEqual) }

// CompareGreaterEqual returns the indicator of entry ≥ t.
func (o *Operator[F]) CompareGreaterEqual(t float64) *Operator[F] { return o.compare(t, GreaterEqual) }

// CompareLess returns the indicator of entry < t.
func (o *Operator[F]) CompareLess(t float64) *Operator[F] { return o.compare(t, Less) }

// CompareGreater returns the indicator of entry > t.
func (o *Operator[F]) CompareGreater(t float64) *Operator[F] { return o.compare(t, Greater) }

// CompareEqual returns the indicator of |entry - t| ≤ 1e-8.
func (o *Operator[F]) CompareEqual(t float64) *Operator[F] { return o.compare(t, Equal) }

// CompareNotEqual returns the indicator of |entry - t| > 1e-8.
func (o *Operator[F]) CompareNotEqual(t float64) *Operator[F] { return o.compare(t, NotEqual) }

// Mask keeps the receiver's entries where (other c threshold) holds and
// replaces the rest with fill.
func (o *Operator[F]) Mask(other *Operator[F], threshold float64, c Cmp, fill F) (*Operator[F], error) {
	if err := checkCmp("diag.Mask", c); err != nil {
		return nil, err
	}
	if err := o.sameWidth("diag.Mask", other); err != nil {
		return nil, err
	}
	r := alloc[F](o.n)
	for i, v := range o.data {
		if c.holds(float64(other.data[i]) - threshold) {
			r.data[i] = v
		} else {
			r.data[i] = fill
		}
	}
	r.refresh()
	return r, nil
}

// AutoPenalty asks QuadPenalty to search for the smallest sufficient penalty.
const AutoPenalty = -1.0

// QuadPenalty returns receiver + penalty·(other - threshold)² on every basis
// state where (other c threshold) is violated. A negative penalty delegates
// to SearchPenalty; when every state is feasible there is nothing to penalise
// and a copy of the receiver comes back with penalty 0. The penalty actually
// applied is returned.
func (o *Operator[F]) QuadPenalty(other *Operator[F], threshold float64, c Cmp, penalty float64) (*Operator[F], float64, error) {
	if err := checkCmp("diag.QuadPenalty", c); err != nil {
		return nil, 0, err
	}
	if err := o.sameWidth("diag.QuadPenalty", other); err != nil {
		return nil, 0, err
	}
	if penalty < 0 {
		var err error
		if penalty, err = SearchPenalty(o, other, threshold, c); err != nil {
			var ie *errs.InfeasibleError
			if errors.As(err, &ie) && ie.Infeasible == 0 {
				return o.Clone(), 0, nil
			}
			return nil, 0, err
		}
	}

	r := o.Clone()
	for i, v := range other.data {
		diff := float64(v) - threshold
		if !c.holds(diff) {
			r.data[i] = F(float64(r.data[i]) + penalty*diff*diff)
		}
	}
	r.refresh()
	return r, penalty, nil
}
