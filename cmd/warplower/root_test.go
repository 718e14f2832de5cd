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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, opts := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := opts.Execute(context.Background(), cmd)
	return stdout.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "warplower", cmd.Use)
	assert.Contains(t, cmd.Long, "AMDGPU and NVPTX")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"targets", "kernels", "lower", "run"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestLowerCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	lowerCmd, _, err := cmd.Find([]string{"lower"})
	require.NoError(t, err)

	tgt := lowerCmd.Flags().Lookup("target")
	require.NotNil(t, tgt)
	assert.Equal(t, "sm80", tgt.DefValue)

	for _, name := range []string{"load-cache", "store-cache"} {
		f := lowerCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "cacheModifier", f.Value.Type())
		assert.Equal(t, "none", f.DefValue)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	n := runCmd.Flags().Lookup("elements")
	require.NotNil(t, n)
	assert.Equal(t, "n", n.Shorthand)
	assert.Equal(t, "100", n.DefValue)
	assert.Equal(t, "true", runCmd.Flags().Lookup("lowered").DefValue)
	assert.Equal(t, "all", runCmd.Flags().Lookup("kernel").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "targets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestTargetsList(t *testing.T) {
	out, err := execute(t, "targets")
	require.NoError(t, err)
	for _, name := range []string{"gfx90a", "gfx942", "gfx1100", "sm80", "generic"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "NATIVE LOADS")
	assert.Contains(t, out, "AMDGPU")
}

func TestTargetsShowAndReload(t *testing.T) {
	out, err := execute(t, "targets", "gfx942")
	require.NoError(t, err)
	assert.Contains(t, out, "family: amdgpu")
	assert.Contains(t, out, "warp_size: 64")

	path := filepath.Join(t.TempDir(), "custom.yaml")
	custom := strings.Replace(out, "name: gfx942", "name: custom", 1)
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	out, err = execute(t, "targets", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name: custom")
}

func TestKernelsList(t *testing.T) {
	out, err := execute(t, "kernels")
	require.NoError(t, err)
	for _, name := range []string{"masked_copy", "warp_sum", "broadcast", "inclusive_scan", "reverse_lanes", "wide_copy"} {
		assert.Contains(t, out, name)
	}
}

func TestLowerNative(t *testing.T) {
	out, err := execute(t, "lower", "--kernel", "masked_copy", "--target", "sm80")
	require.NoError(t, err)
	assert.Contains(t, out, "declare @__predicated_load_CG : value")
	assert.Contains(t, out, "@__predicated_store_WT(")
	assert.NotContains(t, out, "masked_load")
}

func TestLowerSynthesized(t *testing.T) {
	out, err := execute(t, "lower", "--kernel", "masked_copy", "--target", "gfx90a", "--no-native")
	require.NoError(t, err)
	assert.Contains(t, out, "condbr")
	assert.Contains(t, out, `{hint = "glc"}`)
	assert.NotContains(t, out, "__predicated")
}

func TestLowerCacheOverride(t *testing.T) {
	out, err := execute(t, "lower", "--kernel", "masked_copy", "--no-lower", "--load-cache", "ca")
	require.NoError(t, err)
	assert.Contains(t, out, `masked_load`)
	assert.Contains(t, out, `{cache = "ca"}`)

	_, err = execute(t, "lower", "--kernel", "masked_copy", "--load-cache", "bogus")
	require.Error(t, err)
}

func TestLowerRequiresKernel(t *testing.T) {
	_, err := execute(t, "lower")
	require.Error(t, err)
}

func TestRunAllJSON(t *testing.T) {
	out, err := execute(t, "run", "--target", "generic", "-n", "40", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 6)
	for _, r := range resp.Data {
		assert.True(t, r.Passed, "%s: %s", r.Kernel, r.Error)
		assert.Equal(t, int64(2), r.Stats.Programs, r.Kernel)
	}
}

func TestRunDump(t *testing.T) {
	out, err := execute(t, "run", "--kernel", "inclusive_scan", "--target", "generic", "-n", "4", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, "inclusive_scan: [-3 -5 -6 -6]")
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown kernel", []string{"run", "--kernel", "nope"}, ExitCommandError},
		{"unknown target", []string{"run", "--target", "sm99"}, ExitCommandError},
		{"negative n", []string{"run", "-n", "-1"}, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestLogFileClosedOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warplower.log")
	closed := 0

	cmd, opts := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--verbose", "--log-file", path, "lower", "--kernel", "nope"})
	cmd.PersistentPreRunE = wrapPreRun(cmd.PersistentPreRunE, opts, &closed)

	err := opts.Execute(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, 1, closed, "log file not closed after a failing command")
	assert.Nil(t, opts.closeLog)
	assert.FileExists(t, path)
}

// wrapPreRun counts calls to the close function installed by pre.
func wrapPreRun(pre func(*cobra.Command, []string) error, opts *RootOptions, closed *int) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := pre(cmd, args); err != nil {
			return err
		}
		inner := opts.closeLog
		opts.closeLog = func() error {
			*closed++
			return inner()
		}
		return nil
	}
}
