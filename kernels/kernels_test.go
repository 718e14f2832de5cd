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

package kernels_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-warplower/interp"
	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/kernels"
	"github.com/ajroetker/go-warplower/lower"
	"github.com/ajroetker/go-warplower/target"
)

func TestLookup(t *testing.T) {
	k, err := kernels.Lookup("warp_sum")
	require.NoError(t, err)
	assert.Equal(t, "warp_sum", k.Name)

	_, err = kernels.Lookup("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "masked_copy")

	assert.Equal(t, []string{"broadcast", "inclusive_scan", "masked_copy", "reverse_lanes", "warp_sum", "wide_copy"}, kernels.Names())
}

// runKernel builds k for tgt, optionally lowers it, runs it over n
// elements and checks the result.
func runKernel(t *testing.T, k kernels.Kernel, tgt target.Target, n int, lowered bool) interp.Stats {
	t.Helper()
	m := ir.NewModule(k.Name)
	f := k.Build(m, tgt)
	require.NoError(t, ir.Verify(f))
	if lowered {
		require.NoError(t, lower.Module(context.Background(), m, tgt))
		require.NoError(t, ir.VerifyLowered(f))
	}

	mem := interp.NewMemory(0)
	setup, err := k.Prepare(mem, tgt, n)
	require.NoError(t, err)
	st, err := interp.Run(context.Background(), tgt, f, setup.Launch, mem)
	require.NoError(t, err)
	require.NoError(t, setup.Check(mem))
	return st
}

func TestKernelsMatchReference(t *testing.T) {
	for _, name := range target.AvailableTargets() {
		base, err := target.Lookup(name)
		require.NoError(t, err)
		for _, tgt := range []target.Target{base, base.WithoutNative()} {
			for _, k := range kernels.All() {
				for _, n := range []int{tgt.WarpSize - 5, 2*tgt.WarpSize + 7} {
					label := fmt.Sprintf("%s/native=%v/%s/n=%d", name, len(tgt.NativeLoads) > 0, k.Name, n)
					t.Run(label, func(t *testing.T) {
						ref := runKernel(t, k, tgt, n, false)
						got := runKernel(t, k, tgt, n, true)
						assert.Equal(t, ref.Programs, got.Programs)
					})
				}
			}
		}
	}
}

func TestEmptyLaunch(t *testing.T) {
	k, err := kernels.Lookup("masked_copy")
	require.NoError(t, err)
	st := runKernel(t, k, target.SM80(), 0, true)
	assert.Zero(t, st.LaneLoads)
	assert.Zero(t, st.LaneStores)
}

func TestDump(t *testing.T) {
	k, err := kernels.Lookup("inclusive_scan")
	require.NoError(t, err)
	tgt := target.Generic()
	m := ir.NewModule(k.Name)
	f := k.Build(m, tgt)
	mem := interp.NewMemory(0)
	setup, err := k.Prepare(mem, tgt, 4)
	require.NoError(t, err)
	_, err = interp.Run(context.Background(), tgt, f, setup.Launch, mem)
	require.NoError(t, err)

	out, err := setup.Dump(mem)
	require.NoError(t, err)
	// Inputs are -3, -2, -1, 0.
	assert.Equal(t, "[-3 -5 -6 -6]", out)
}
