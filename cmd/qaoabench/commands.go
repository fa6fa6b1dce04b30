// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/curioloop/fastqaoa"
	"github.com/curioloop/fastqaoa/adam"
	"github.com/curioloop/fastqaoa/circuit"
	"github.com/curioloop/fastqaoa/lbfgsb"
	"github.com/curioloop/fastqaoa/metrics"
	"github.com/curioloop/fastqaoa/num"
	"github.com/curioloop/fastqaoa/schedule"
)

// options carries the persistent flags and what PersistentPreRunE derives from them.
type options struct {
	instancePath string
	precision    string
	logLevel     string

	inst *Instance
	prec num.Precision
	log  zerolog.Logger
}

func (o *options) header(penalty float64) header {
	mode := "plain"
	if c := o.inst.Constraint; c != nil {
		mode = c.Mode
	}
	return header{
		Instance:  o.inst.Name,
		Qubits:    o.inst.Qubits,
		Precision: o.prec.String(),
		Mode:      mode,
		Penalty:   penalty,
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "qaoabench",
		Short: "Exact-state QAOA simulation and angle optimisation",
		Long: `qaoabench loads a pseudo-Boolean instance from YAML and evaluates,
scans or optimises the angles of its QAOA circuit. Results are written to
stdout as YAML; logs go to stderr.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
				Level(level).With().Timestamp().Logger()

			if opts.prec, err = num.ParsePrecision(opts.precision); err != nil {
				return err
			}
			if opts.instancePath == "" {
				return fmt.Errorf("--instance is required")
			}
			if opts.inst, err = LoadInstance(opts.instancePath); err != nil {
				return err
			}
			opts.log.Debug().Str("instance", opts.inst.Name).Int("qubits", opts.inst.Qubits).
				Stringer("precision", opts.prec).Msg("instance loaded")
			return nil
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.instancePath, "instance", "i", "", "instance YAML file")
	pf.StringVar(&opts.precision, "precision", "double", "simulation precision: single or double")
	pf.StringVar(&opts.logLevel, "log-level", "info", "zerolog level")

	rootCmd.AddCommand(
		newEvalCmd(opts),
		newGridCmd(opts),
		newOptimizeCmd(opts),
		newLadderCmd(opts),
	)
	return rootCmd
}

func newEvalCmd(opts *options) *cobra.Command {
	var (
		betas, gammas []float64
		shots         int
		seed          uint64
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Simulate one schedule and report its metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rep *evalReport
			var err error
			if opts.prec == num.Single {
				rep, err = runEval[float32](opts, betas, gammas, shots, seed)
			} else {
				rep, err = runEval[float64](opts, betas, gammas, shots, seed)
			}
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().Float64SliceVar(&betas, "betas", nil, "mixer angles")
	cmd.Flags().Float64SliceVar(&gammas, "gammas", nil, "phase angles")
	cmd.Flags().IntVar(&shots, "shots", 0, "measurement samples drawn from the final state")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "sampling seed")
	return cmd
}

func runEval[F num.Float](opts *options, betas, gammas []float64, shots int, seed uint64) (*evalReport, error) {
	b, err := Build[F](opts.inst)
	if err != nil {
		return nil, err
	}
	b.Problem.Logger = &opts.log
	sv, psucc, err := b.Problem.State(betas, gammas)
	if err != nil {
		return nil, err
	}
	rep := &evalReport{header: opts.header(b.Penalty), Betas: betas, Gammas: gammas, Psucc: psucc}
	if rep.Metrics, err = metrics.Compute(sv, b.Cost, b.Slack); err != nil {
		opts.log.Warn().Err(err).Msg("metrics skipped")
		rep.Metrics = nil
	}
	if shots > 0 {
		samples, err := sv.Sample(shots, rand.New(rand.NewPCG(seed, seed)))
		if err != nil {
			return nil, err
		}
		mean := b.Cost.SampleMean(samples)
		rep.Shots, rep.SampleMean = shots, &mean
	}
	return rep, nil
}

func newGridCmd(opts *options) *cobra.Command {
	var (
		depth, dim      int
		betaHi, gammaHi float64
	)
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Scan the scales of the linear schedule on a grid",
		Long: `grid evaluates the circuit on a dim×dim grid of (β, γ) scales in parallel
and reports the best cell. Projector instances are scanned without the
projection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bx := circuit.Extent{Lo: 0, Hi: betaHi}
			gx := circuit.Extent{Lo: 0, Hi: gammaHi}
			var rep *gridReport
			var err error
			if opts.prec == num.Single {
				rep, err = runGrid[float32](cmd, opts, depth, dim, bx, gx)
			} else {
				rep, err = runGrid[float64](cmd, opts, depth, dim, bx, gx)
			}
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "p", 1, "circuit depth")
	cmd.Flags().IntVar(&dim, "dim", 16, "grid points per axis")
	cmd.Flags().Float64Var(&betaHi, "beta-max", math.Pi, "upper end of the β axis")
	cmd.Flags().Float64Var(&gammaHi, "gamma-max", math.Pi, "upper end of the γ axis")
	return cmd
}

func runGrid[F num.Float](cmd *cobra.Command, opts *options, depth, dim int, bx, gx circuit.Extent) (*gridReport, error) {
	b, err := Build[F](opts.inst)
	if err != nil {
		return nil, err
	}
	phase := b.Problem.Phase
	cost := b.Problem.Cost
	pt, err := circuit.GridSearch(cmd.Context(), phase, cost, depth, dim, bx, gx)
	if err != nil {
		return nil, err
	}
	opts.log.Info().Int("depth", depth).Int("dim", dim).Float64("value", pt.Value).Msg("grid scanned")
	return &gridReport{
		header: opts.header(b.Penalty),
		Depth:  depth, Dim: dim,
		Beta: pt.Beta, Gamma: pt.Gamma, Value: pt.Value,
	}, nil
}

// solverFlags are shared by optimize and ladder.
type solverFlags struct {
	method  string
	bounded bool
	maxIter int
	lr      float64
}

func (s *solverFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.method, "method", "m", string(fastqaoa.LBFGS), "optimiser: lbfgs or adam")
	cmd.Flags().BoolVar(&s.bounded, "bounded", false, "keep L-BFGS angles in [0, π]×[0, 2π]")
	cmd.Flags().IntVar(&s.maxIter, "max-iter", 0, "iteration limit, 0 for the optimiser default")
	cmd.Flags().Float64Var(&s.lr, "lr", 0, "Adam learning rate, 0 for the default")
}

func (s *solverFlags) ladder(log *zerolog.Logger) (fastqaoa.LadderConfig, error) {
	m := fastqaoa.Method(s.method)
	if m != fastqaoa.LBFGS && m != fastqaoa.Adam {
		return fastqaoa.LadderConfig{}, fmt.Errorf("unknown method %q", s.method)
	}
	return fastqaoa.LadderConfig{
		Method:  m,
		Adam:    adam.Config{LR: s.lr, MaxIter: s.maxIter, Logger: log},
		LBFGS:   fastqaoa.LBFGSConfig{Stop: lbfgsStop(s.maxIter)},
		Bounded: s.bounded,
	}, nil
}

func lbfgsStop(maxIter int) lbfgsb.Termination {
	return lbfgsb.Termination{MaxIterations: maxIter}
}

func newOptimizeCmd(opts *options) *cobra.Command {
	var (
		sf            solverFlags
		depth         int
		betas, gammas []float64
		linear        bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimise the angles at one depth",
		Long: `optimize starts from --betas/--gammas, or the linear ramp when they are
omitted, and runs the chosen optimiser. With --linear only the two scales
of the ramp are optimised.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sf.ladder(&opts.log)
			if err != nil {
				return err
			}
			if betas == nil && gammas == nil {
				if betas, gammas, err = schedule.Linear(depth); err != nil {
					return err
				}
			}
			var rep *optimizeReport
			if opts.prec == num.Single {
				rep, err = runOptimize[float32](cmd, opts, cfg, betas, gammas, linear)
			} else {
				rep, err = runOptimize[float64](cmd, opts, cfg, betas, gammas, linear)
			}
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), rep)
		},
	}
	sf.register(cmd)
	cmd.Flags().IntVarP(&depth, "depth", "p", 1, "circuit depth when no schedule is given")
	cmd.Flags().Float64SliceVar(&betas, "betas", nil, "initial mixer angles")
	cmd.Flags().Float64SliceVar(&gammas, "gammas", nil, "initial phase angles")
	cmd.Flags().BoolVar(&linear, "linear", false, "optimise only the scales of the linear ramp")
	return cmd
}

func runOptimize[F num.Float](cmd *cobra.Command, opts *options, cfg fastqaoa.LadderConfig, betas, gammas []float64, linear bool) (*optimizeReport, error) {
	b, err := Build[F](opts.inst)
	if err != nil {
		return nil, err
	}
	p := b.Problem
	p.Logger = &opts.log

	var run runReport
	switch {
	case linear:
		lr, err := p.Linear(cmd.Context(), len(betas), 1, 1, cfg.LBFGS)
		if err != nil {
			return nil, err
		}
		run = newRunReport(lr.Result)
		run.DeltaBeta, run.DeltaGamma = &lr.DeltaBeta, &lr.DeltaGamma
	case cfg.Method == fastqaoa.Adam:
		res, err := p.Adam(betas, gammas, cfg.Adam)
		if err != nil {
			return nil, err
		}
		run = newRunReport(res)
	default:
		lc := cfg.LBFGS
		if cfg.Bounded {
			lc.Bounds = fastqaoa.AngleBounds(len(betas))
		}
		res, err := p.LBFGS(cmd.Context(), betas, gammas, lc)
		if err != nil {
			return nil, err
		}
		run = newRunReport(res)
	}
	run.Metrics = score(opts, b, run.Betas, run.Gammas)
	return &optimizeReport{header: opts.header(b.Penalty), Runs: []runReport{run}}, nil
}

func newLadderCmd(opts *options) *cobra.Command {
	var (
		sf     solverFlags
		depths []int
	)
	cmd := &cobra.Command{
		Use:   "ladder",
		Short: "Optimise increasing depths, warm-starting each from the last",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sf.ladder(&opts.log)
			if err != nil {
				return err
			}
			var rep *optimizeReport
			if opts.prec == num.Single {
				rep, err = runLadder[float32](cmd, opts, cfg, depths)
			} else {
				rep, err = runLadder[float64](cmd, opts, cfg, depths)
			}
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), rep)
		},
	}
	sf.register(cmd)
	cmd.Flags().IntSliceVar(&depths, "depths", []int{1, 2, 3}, "depths to optimise, in order")
	return cmd
}

func runLadder[F num.Float](cmd *cobra.Command, opts *options, cfg fastqaoa.LadderConfig, depths []int) (*optimizeReport, error) {
	b, err := Build[F](opts.inst)
	if err != nil {
		return nil, err
	}
	b.Problem.Logger = &opts.log
	results, err := b.Problem.Ladder(cmd.Context(), depths, nil, nil, cfg)
	if err != nil {
		return nil, err
	}
	rep := &optimizeReport{header: opts.header(b.Penalty)}
	for _, r := range results {
		run := newRunReport(r)
		run.Metrics = score(opts, b, r.Betas, r.Gammas)
		rep.Runs = append(rep.Runs, run)
	}
	return rep, nil
}

func score[F num.Float](opts *options, b *Built[F], betas, gammas []float64) *metrics.Metrics {
	sv, _, err := b.Problem.State(betas, gammas)
	if err == nil {
		var m *metrics.Metrics
		if m, err = metrics.Compute(sv, b.Cost, b.Slack); err == nil {
			return m
		}
	}
	opts.log.Warn().Err(err).Msg("metrics skipped")
	return nil
}
