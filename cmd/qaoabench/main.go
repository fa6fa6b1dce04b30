// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command qaoabench simulates and optimises QAOA circuits for instances
// described in YAML.
//
// An instance lists its cost polynomial and an optional constraint:
//
//	name: knapsack
//	qubits: 4
//	cost:
//	  - {vars: [0], coef: -3}
//	  - {vars: [1], coef: -1}
//	constraint:
//	  terms:
//	    - {vars: [0], coef: 1}
//	    - {vars: [1], coef: 2}
//	  threshold: 3
//	  cmp: "<="
//	  mode: projector
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
