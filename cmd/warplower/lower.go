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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/kernels"
	"github.com/ajroetker/go-warplower/lower"
)

// LowerOptions holds options for the lower command.
type LowerOptions struct {
	Kernel     string
	Target     string
	NoNative   bool
	NoLower    bool
	LoadCache  lower.CacheModifier
	StoreCache lower.CacheModifier
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{}

	cmd := &cobra.Command{
		Use:   "lower",
		Short: "Print a reference kernel before or after lowering",
		Long: `Build a reference kernel for the target and print its IR after
lowering predicated accesses, lane shuffles and program ids.

--load-cache and --store-cache override the cache modifier of every
predicated load or store in the kernel.`,
		Example: `  warplower lower --kernel masked_copy --target gfx90a
  warplower lower --kernel warp_sum --target sm80 --no-lower
  warplower lower --kernel masked_copy --target sm80 --load-cache ca`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kernel, "kernel", "k", "", "reference kernel name (required)")
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "sm80", "target preset or YAML target file")
	cmd.Flags().BoolVar(&opts.NoNative, "no-native", false, "ignore native predicated accesses")
	cmd.Flags().BoolVar(&opts.NoLower, "no-lower", false, "print the kernel before lowering")
	cmd.Flags().Var(&opts.LoadCache, "load-cache", "cache modifier for predicated loads")
	cmd.Flags().Var(&opts.StoreCache, "store-cache", "cache modifier for predicated stores")
	_ = cmd.MarkFlagRequired("kernel")

	return cmd
}

func runLower(rootOpts *RootOptions, opts *LowerOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

	k, err := kernels.Lookup(opts.Kernel)
	if err != nil {
		return out.Failure(ExitCommandError, "lookup kernel", err)
	}
	tgt, err := resolveTarget(opts.Target, opts.NoNative)
	if err != nil {
		return out.Failure(ExitCommandError, "resolve target", err)
	}

	m := ir.NewModule(k.Name)
	fn := k.Build(m, tgt)

	flags := cmd.Flags()
	fn.Walk(func(op *ir.Op) {
		switch {
		case op.Code == ir.OpMaskedLoad && flags.Changed("load-cache"):
			op.Cache = opts.LoadCache.String()
		case op.Code == ir.OpMaskedStore && flags.Changed("store-cache"):
			op.Cache = opts.StoreCache.String()
		}
	})

	if !opts.NoLower {
		err := lower.Module(cmd.Context(), m, tgt, lower.WithLogger(rootOpts.logger))
		if err != nil {
			return out.Failure(ExitCommandError, fmt.Sprintf("lower %s for %s", k.Name, tgt.Name), err)
		}
	}

	text := ir.PrintModule(m)
	data := map[string]any{
		"kernel":  k.Name,
		"target":  tgt.Name,
		"lowered": !opts.NoLower,
		"ir":      text,
	}
	return out.Success(data, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}
