// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package circuit simulates QAOA circuits exactly and differentiates them.
//
// A depth-p circuit starts from |+⟩^⊗n and applies, for i = 0 … p-1,
// the phase separator exp(-iγᵢC) followed by the mixer exp(-iβᵢB)
// where B = ΣXⱼ. The phase operator C and the observable whose expectation
// is reported may differ.
package circuit

import (
	"fmt"

	"github.com/curioloop/fastqaoa/diag"
	"github.com/curioloop/fastqaoa/errs"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/statevec"
)

// Stage is the lifecycle position of a Simulator.
type Stage int

const (
	Init Stage = iota
	LayerApplied
	Done
)

func (s Stage) String() string {
	switch s {
	case Init:
		return "init"
	case LayerApplied:
		return "layer-applied"
	case Done:
		return "done"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Simulator walks a circuit layer by layer over a vector it owns.
type Simulator[F num.Float] struct {
	phase *diag.Operator[F]
	sv    *statevec.Vector[F]
	stage Stage
	layer int
}

// NewSimulator prepares a simulator in the Init stage.
func NewSimulator[F num.Float](phase *diag.Operator[F]) (*Simulator[F], error) {
	sv, err := statevec.Plus[F](phase.Qubits())
	if err != nil {
		return nil, err
	}
	return &Simulator[F]{phase: phase, sv: sv}, nil
}

// Reset returns to |+⟩^⊗n and the Init stage.
func (s *Simulator[F]) Reset() {
	s.sv.ResetPlus()
	s.stage, s.layer = Init, 0
}

// Stage reports the lifecycle stage.
func (s *Simulator[F]) Stage() Stage { return s.stage }

// Layers reports how many layers have been applied since the last Reset.
func (s *Simulator[F]) Layers() int { return s.layer }

// Step applies one layer: phase with gamma, then mixer with beta.
func (s *Simulator[F]) Step(beta, gamma float64) error {
	if s.stage == Done {
		return &errs.DomainError{Op: "circuit.Step", Reason: "simulator already finished"}
	}
	if err := s.sv.ApplyDiagonal(s.phase, gamma); err != nil {
		return err
	}
	s.sv.ApplyMixer(beta)
	s.stage = LayerApplied
	s.layer++
	return nil
}

// Finish moves to Done and returns the final state. The vector stays owned
// by the simulator until the next Reset.
func (s *Simulator[F]) Finish() *statevec.Vector[F] {
	s.stage = Done
	return s.sv
}

func checkAngles(op string, betas, gammas []float64) error {
	if len(betas) != len(gammas) {
		return errs.Mismatch(op, len(betas), len(gammas))
	}
	return nil
}

// Run simulates the circuit from |+⟩^⊗n and returns a fresh final state.
func Run[F num.Float](phase *diag.Operator[F], betas, gammas []float64) (*statevec.Vector[F], error) {
	sv, err := statevec.New[F](phase.Qubits())
	if err != nil {
		return nil, err
	}
	if err = RunInto(sv, phase, betas, gammas); err != nil {
		return nil, err
	}
	return sv, nil
}

// RunInto is Run writing into a caller-owned vector, which is reset first.
func RunInto[F num.Float](sv *statevec.Vector[F], phase *diag.Operator[F], betas, gammas []float64) error {
	if err := checkAngles("circuit.Run", betas, gammas); err != nil {
		return err
	}
	if sv.Qubits() != phase.Qubits() {
		return errs.Mismatch("circuit.Run", phase.Qubits(), sv.Qubits())
	}
	sv.ResetPlus()
	for i, gamma := range gammas {
		if err := sv.ApplyDiagonal(phase, gamma); err != nil {
			return err
		}
		sv.ApplyMixer(betas[i])
	}
	return nil
}

// Expectation returns Σ|aᵦ|²·observable[b].
func Expectation[F num.Float](sv *statevec.Vector[F], observable *diag.Operator[F]) (float64, error) {
	return sv.Expectation(observable)
}

// Energy runs the circuit with phase and measures cost.
func Energy[F num.Float](phase, cost *diag.Operator[F], betas, gammas []float64) (float64, error) {
	if phase.Qubits() != cost.Qubits() {
		return 0, errs.Mismatch("circuit.Energy", phase.Qubits(), cost.Qubits())
	}
	sv, err := Run(phase, betas, gammas)
	if err != nil {
		return 0, err
	}
	return sv.Expectation(cost)
}
