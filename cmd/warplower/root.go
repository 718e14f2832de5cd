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
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-warplower/internal/logging"
	"github.com/ajroetker/go-warplower/target"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogFormat string // "json" | "text"
	LogFile   string

	logger   *slog.Logger
	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the warplower CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "warplower",
		Short: "Lower predicated accesses and lane shuffles for SIMT targets",
		Long: `warplower rewrites masked loads and stores, warp shuffles and program
identifiers of reference kernels into target-level IR for AMDGPU and NVPTX,
and runs kernels on a simulated warp before and after lowering.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			logger, closeLog, err := logging.New(logging.Config{
				Level:   level,
				Format:  opts.LogFormat,
				Output:  cmd.ErrOrStderr(),
				LogFile: opts.LogFile,
			})
			if err != nil {
				return err
			}
			opts.logger, opts.closeLog = logger, closeLog
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log lowering decisions at debug level")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "append logs to this file instead of stderr")

	cmd.AddCommand(NewTargetsCommand(opts))
	cmd.AddCommand(NewKernelsCommand(opts))
	cmd.AddCommand(NewLowerCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd, opts
}

// Execute runs cmd and then closes the log file, also when the command
// failed.
func (o *RootOptions) Execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if o.closeLog != nil {
		if cerr := o.closeLog(); err == nil {
			err = cerr
		}
		o.closeLog = nil
	}
	return err
}

// resolveTarget looks up a preset or target file and applies the
// environment and the --no-native flag.
func resolveTarget(nameOrPath string, noNative bool) (target.Target, error) {
	tgt, err := target.Resolve(nameOrPath)
	if err != nil {
		return target.Target{}, err
	}
	tgt = target.ApplyEnv(tgt)
	if noNative {
		tgt = tgt.WithoutNative()
	}
	return tgt, nil
}
