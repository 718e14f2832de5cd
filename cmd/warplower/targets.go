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
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajroetker/go-warplower/kernels"
	"github.com/ajroetker/go-warplower/target"
)

// NewTargetsCommand creates the targets command.
func NewTargetsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets [name|file]",
		Short: "List built-in targets, or print one target as YAML",
		Long: `Without arguments, list the built-in targets and their capabilities.

With a preset name or a YAML target file, print the resolved description in
the target file format, suitable as a starting point for a custom target.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if len(args) == 1 {
				return showTarget(out, args[0])
			}
			return listTargets(out)
		},
	}
	return cmd
}

// targetRow is the listing form of a target.
type targetRow struct {
	Name         string   `json:"name"`
	Family       string   `json:"family"`
	WarpSize     int      `json:"warp_size"`
	NativeLoads  []string `json:"native_loads"`
	NativeStores []string `json:"native_stores"`
	DPP          bool     `json:"dpp"`
	Swizzle      bool     `json:"swizzle"`
}

func listTargets(out *OutputFormatter) error {
	rows := lo.Map(target.AvailableTargets(), func(name string, _ int) targetRow {
		t, _ := target.Lookup(name)
		return targetRow{
			Name:         t.Name,
			Family:       string(t.Family),
			WarpSize:     t.WarpSize,
			NativeLoads:  t.NativeLoads,
			NativeStores: t.NativeStores,
			DPP:          t.DPP,
			Swizzle:      t.Swizzle,
		}
	})
	return out.Success(rows, func(w io.Writer) error {
		upper := cases.Upper(language.Und)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tFAMILY\tWARP\tNATIVE LOADS\tNATIVE STORES\tDPP\tSWIZZLE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%v\t%v\n", r.Name, upper.String(r.Family), r.WarpSize,
				joinOrDash(r.NativeLoads), joinOrDash(r.NativeStores), r.DPP, r.Swizzle)
		}
		return tw.Flush()
	})
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ",")
}

func showTarget(out *OutputFormatter, nameOrPath string) error {
	tgt, err := target.Resolve(nameOrPath)
	if err != nil {
		return out.Failure(ExitCommandError, "resolve target", err)
	}
	data, err := target.Marshal(tgt)
	if err != nil {
		return out.Failure(ExitCommandError, "marshal target", err)
	}
	return out.Success(tgt, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// NewKernelsCommand creates the kernels command.
func NewKernelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List the reference kernels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			all := kernels.All()
			docs := lo.SliceToMap(all, func(k kernels.Kernel) (string, string) { return k.Name, k.Doc })
			return out.Success(docs, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, k := range all {
					fmt.Fprintf(tw, "%s\t%s\n", k.Name, k.Doc)
				}
				return tw.Flush()
			})
		},
	}
}
