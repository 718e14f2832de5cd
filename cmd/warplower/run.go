// Copyright 2025 go-warplower Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-warplower/interp"
	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/kernels"
	"github.com/ajroetker/go-warplower/lower"
	"github.com/ajroetker/go-warplower/target"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Kernel   string
	Target   string
	N        int
	Lowered  bool
	NoNative bool
	Workers  int
	Dump     bool
}

// RunResult is the outcome of one kernel launch.
type RunResult struct {
	Kernel  string       `json:"kernel"`
	Target  string       `json:"target"`
	N       int          `json:"n"`
	Lowered bool         `json:"lowered"`
	Stats   interp.Stats `json:"stats"`
	Passed  bool         `json:"passed"`
	Error   string       `json:"error,omitempty"`
	Output  string       `json:"output,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute reference kernels on the SIMT interpreter",
		Long: `Build, optionally lower, and execute reference kernels on the SIMT
interpreter, then compare their outputs with a host computation.

The command exits with status 1 when any kernel produces a wrong result.`,
		Example: `  warplower run --kernel all --target gfx90a
  warplower run --kernel inclusive_scan --target sm80 -n 40 --dump
  warplower run --kernel masked_copy --target gfx942 --no-native --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kernel, "kernel", "k", "all", `reference kernel name, or "all"`)
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "sm80", "target preset or YAML target file")
	cmd.Flags().IntVarP(&opts.N, "elements", "n", 100, "number of elements")
	cmd.Flags().BoolVar(&opts.Lowered, "lowered", true, "lower the kernel before executing it")
	cmd.Flags().BoolVar(&opts.NoNative, "no-native", false, "ignore native predicated accesses")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "programs executed in parallel (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "include kernel outputs")

	return cmd
}

func runRun(rootOpts *RootOptions, opts *RunOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

	if opts.N < 0 {
		return out.Failure(ExitCommandError, "invalid --elements", fmt.Errorf("negative element count %d", opts.N))
	}
	tgt, err := resolveTarget(opts.Target, opts.NoNative)
	if err != nil {
		return out.Failure(ExitCommandError, "resolve target", err)
	}
	var selected []kernels.Kernel
	if opts.Kernel == "all" {
		selected = kernels.All()
	} else {
		k, err := kernels.Lookup(opts.Kernel)
		if err != nil {
			return out.Failure(ExitCommandError, "lookup kernel", err)
		}
		selected = []kernels.Kernel{k}
	}

	results := make([]RunResult, 0, len(selected))
	failed := 0
	for _, k := range selected {
		res, err := runKernel(cmd.Context(), rootOpts.logger, k, tgt, opts)
		if err != nil {
			return out.Failure(ExitCommandError, "run "+k.Name, err)
		}
		if !res.Passed {
			failed++
		}
		results = append(results, res)
	}

	if err := out.Success(results, func(w io.Writer) error { return writeRunTable(w, results, opts.Dump) }); err != nil {
		return err
	}
	if failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d of %d kernels failed", failed, len(results)), nil)
	}
	return nil
}

// runKernel builds, lowers and executes one kernel. Errors that prevent a
// launch are returned; a wrong result is recorded in the RunResult.
func runKernel(ctx context.Context, logger *slog.Logger, k kernels.Kernel, tgt target.Target, opts *RunOptions) (RunResult, error) {
	res := RunResult{Kernel: k.Name, Target: tgt.Name, N: opts.N, Lowered: opts.Lowered}

	m := ir.NewModule(k.Name)
	fn := k.Build(m, tgt)
	if opts.Lowered {
		if err := lower.Module(ctx, m, tgt, lower.WithLogger(logger)); err != nil {
			return res, err
		}
	}

	mem := interp.NewMemory(0)
	setup, err := k.Prepare(mem, tgt, opts.N)
	if err != nil {
		return res, err
	}
	launch := setup.Launch
	launch.Workers = opts.Workers

	res.Stats, err = interp.Run(ctx, tgt, fn, launch, mem, interp.WithLogger(logger))
	if err != nil {
		return res, err
	}
	if err := setup.Check(mem); err != nil {
		res.Error = err.Error()
	} else {
		res.Passed = true
	}
	if opts.Dump {
		if res.Output, err = setup.Dump(mem); err != nil {
			return res, err
		}
	}
	return res, nil
}

func writeRunTable(w io.Writer, results []RunResult, dump bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KERNEL\tTARGET\tN\tPROGRAMS\tBLOCKS\tLOADS\tSTORES\tEXCHANGES\tRESULT")
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n", r.Kernel, r.Target, r.N,
			r.Stats.Programs, r.Stats.Blocks, r.Stats.LaneLoads, r.Stats.LaneStores, r.Stats.Exchanges, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if dump {
		for _, r := range results {
			fmt.Fprintf(w, "%s: %s\n", r.Kernel, r.Output)
		}
	}
	return nil
}
