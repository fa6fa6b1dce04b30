// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/curioloop/fastqaoa"
	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/num"
)

// Term is one monomial c·Π xᵢ of a pseudo-Boolean polynomial.
type Term struct {
	Vars []int   `yaml:"vars"`
	Coef float64 `yaml:"coef"`
}

// Constraint restricts the instance to states where Σ terms cmp threshold.
type Constraint struct {
	Terms     []Term  `yaml:"terms"`
	Threshold float64 `yaml:"threshold"`
	Cmp       string  `yaml:"cmp"`
	// Mode is "penalty" (fold a quadratic penalty into the cost) or
	// "projector" (project each layer onto the feasible subspace).
	Mode    string  `yaml:"mode"`
	Penalty float64 `yaml:"penalty"` // negative searches automatically
}

// Instance is the YAML description of a problem.
type Instance struct {
	Name       string      `yaml:"name"`
	Qubits     int         `yaml:"qubits"`
	Cost       []Term      `yaml:"cost"`
	Constraint *Constraint `yaml:"constraint"`
}

// ReadInstance decodes an instance, rejecting unknown fields.
func ReadInstance(r io.Reader) (*Instance, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var inst Instance
	if err := dec.Decode(&inst); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	if inst.Qubits <= 0 || inst.Qubits > num.MaxQubits {
		return nil, fmt.Errorf("instance %q: qubits must lie in [1, %d]", inst.Name, num.MaxQubits)
	}
	if len(inst.Cost) == 0 {
		return nil, fmt.Errorf("instance %q: empty cost", inst.Name)
	}
	if c := inst.Constraint; c != nil {
		if c.Mode == "" {
			c.Mode = "penalty"
		}
		if c.Mode != "penalty" && c.Mode != "projector" {
			return nil, fmt.Errorf("instance %q: unknown constraint mode %q", inst.Name, c.Mode)
		}
		if c.Cmp == "" {
			c.Cmp = "<="
		}
		if c.Penalty == 0 {
			c.Penalty = diag.AutoPenalty
		}
	}
	return &inst, nil
}

// LoadInstance reads an instance file.
func LoadInstance(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadInstance(f)
}

func table[F num.Float](n int, terms []Term) (*diag.Operator[F], error) {
	vars := make([][]int, len(terms))
	coef := make([]float64, len(terms))
	for i, t := range terms {
		vars[i], coef[i] = t.Vars, t.Coef
	}
	poly, err := diag.TermsOf(vars, coef)
	if err != nil {
		return nil, err
	}
	return diag.BruteForce[F](n, poly)
}

// Built is an instance evaluated at one precision.
type Built[F num.Float] struct {
	Problem *fastqaoa.Problem[F]
	// Cost is the unpenalised objective table that metrics are scored on.
	Cost *diag.Operator[F]
	// Slack is 0 on feasible states and -1 elsewhere; nil without a constraint.
	Slack   *diag.Operator[F]
	Penalty float64
}

// Build evaluates the instance tables at precision F.
func Build[F num.Float](inst *Instance) (*Built[F], error) {
	cost, err := table[F](inst.Qubits, inst.Cost)
	if err != nil {
		return nil, err
	}
	c := inst.Constraint
	if c == nil {
		return &Built[F]{Problem: &fastqaoa.Problem[F]{Phase: cost, Cost: cost}, Cost: cost}, nil
	}

	cmp, err := diag.ParseCmp(c.Cmp)
	if err != nil {
		return nil, err
	}
	lhs, err := table[F](inst.Qubits, c.Terms)
	if err != nil {
		return nil, err
	}
	feasible, err := lhs.Compare(c.Threshold, cmp)
	if err != nil {
		return nil, err
	}
	out := &Built[F]{Cost: cost, Slack: feasible.Clone().Shift(-1)}
	if c.Mode == "projector" {
		out.Problem = &fastqaoa.Problem[F]{Phase: cost, Cost: cost, Constraint: feasible}
		return out, nil
	}
	out.Problem, out.Penalty, err = fastqaoa.Penalized(cost, lhs, c.Threshold, cmp, c.Penalty)
	if err != nil {
		return nil, err
	}
	return out, nil
}
