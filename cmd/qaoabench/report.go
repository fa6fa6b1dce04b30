// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/curioloop/fastqaoa"
	"github.com/curioloop/fastqaoa/metrics"
)

type header struct {
	Instance  string  `yaml:"instance"`
	Qubits    int     `yaml:"qubits"`
	Precision string  `yaml:"precision"`
	Mode      string  `yaml:"mode"`
	Penalty   float64 `yaml:"penalty,omitempty"`
}

type evalReport struct {
	header     `yaml:",inline"`
	Betas      []float64        `yaml:"betas,flow"`
	Gammas     []float64        `yaml:"gammas,flow"`
	Psucc      float64          `yaml:"psucc"`
	Metrics    *metrics.Metrics `yaml:"metrics"`
	Shots      int              `yaml:"shots,omitempty"`
	SampleMean *float64         `yaml:"sample_mean,omitempty"`
}

type gridReport struct {
	header `yaml:",inline"`
	Depth  int     `yaml:"depth"`
	Dim    int     `yaml:"dim"`
	Beta   float64 `yaml:"beta"`
	Gamma  float64 `yaml:"gamma"`
	Value  float64 `yaml:"value"`
}

type runReport struct {
	Method      string           `yaml:"method"`
	Depth       int              `yaml:"depth"`
	Status      string           `yaml:"status"`
	OK          bool             `yaml:"ok"`
	Value       float64          `yaml:"value"`
	Psucc       float64          `yaml:"psucc"`
	Iterations  int              `yaml:"iterations"`
	Evaluations int              `yaml:"evaluations"`
	Betas       []float64        `yaml:"betas,flow"`
	Gammas      []float64        `yaml:"gammas,flow"`
	DeltaBeta   *float64         `yaml:"delta_beta,omitempty"`
	DeltaGamma  *float64         `yaml:"delta_gamma,omitempty"`
	Metrics     *metrics.Metrics `yaml:"metrics,omitempty"`
}

type optimizeReport struct {
	header `yaml:",inline"`
	Runs   []runReport `yaml:"runs"`
}

func newRunReport(r *fastqaoa.Result) runReport {
	return runReport{
		Method:      string(r.Method),
		Depth:       r.Depth,
		Status:      r.Status,
		OK:          r.OK,
		Value:       r.Value,
		Psucc:       r.Psucc,
		Iterations:  r.Iterations,
		Evaluations: r.Evaluations,
		Betas:       r.Betas,
		Gammas:      r.Gammas,
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
