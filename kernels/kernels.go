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

// Package kernels holds reference kernels written with high-level
// operations. Each kernel can be built into a module, lowered for a
// target, and run on the interpreter with generated inputs and a
// host-computed expectation.
package kernels

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/go-warplower/interp"
	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/simt"
	"github.com/ajroetker/go-warplower/target"
)

// Kernel is a reference kernel.
type Kernel struct {
	Name string
	Doc  string

	// Build adds the kernel function to m.
	Build func(m *ir.Module, tgt target.Target) *ir.Func

	// Prepare allocates inputs for n elements and returns the launch.
	Prepare func(mem *interp.Memory, tgt target.Target, n int) (*Setup, error)
}

// Setup is a prepared launch together with its expected result.
type Setup struct {
	Launch interp.Launch

	// Check compares the outputs in memory with the host expectation.
	Check func(mem *interp.Memory) error

	// Dump renders the outputs for display.
	Dump func(mem *interp.Memory) (string, error)
}

var registry = []Kernel{
	maskedCopyKernel,
	warpSumKernel,
	broadcastKernel,
	inclusiveScanKernel,
	reverseLanesKernel,
	wideCopyKernel,
}

// All returns every reference kernel, sorted by name.
func All() []Kernel {
	out := slices.Clone(registry)
	slices.SortFunc(out, func(a, b Kernel) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the kernel names, sorted.
func Names() []string {
	return lo.Map(All(), func(k Kernel, _ int) string { return k.Name })
}

// Lookup returns the kernel with the given name.
func Lookup(name string) (Kernel, error) {
	k, ok := lo.Find(registry, func(k Kernel) bool { return k.Name == name })
	if !ok {
		return Kernel{}, fmt.Errorf("unknown kernel: %s (valid: %s)", name, strings.Join(Names(), ", "))
	}
	return k, nil
}

// ---- Shared prologue helpers ----

func at(kernel string, line int) ir.Location {
	return ir.Location{File: kernel + ".py", Line: line, Col: 1, Name: kernel}
}

// prologue holds the per-lane indices every kernel starts from.
type prologue struct {
	pid, tid, idx *ir.Value

	// inBounds is idx < n.
	inBounds *ir.Value
}

// globalIndex emits idx = pid * warpSize + tid and the bounds predicate.
func globalIndex(b *ir.Builder, loc ir.Location, tgt target.Target, n *ir.Value) prologue {
	var p prologue
	p.pid = b.GetProgramID(loc, 0)
	p.tid = b.ThreadID(loc, 0)
	base := b.Mul(loc, p.pid, b.I32(loc, int64(tgt.WarpSize)))
	p.idx = b.Add(loc, base, p.tid)
	p.inBounds = b.ICmp(loc, ir.CmpSLT, p.idx, n)
	return p
}

// elemAddr emits base + idx*elemBytes.
func elemAddr(b *ir.Builder, loc ir.Location, base, idx *ir.Value, elemBytes int) *ir.Value {
	off := b.Mul(loc, idx, b.I32(loc, int64(elemBytes)))
	return b.PtrAdd(loc, base, b.SExt(loc, off, ir.I64))
}

func numPrograms(tgt target.Target, n int) int {
	return max(1, (n+tgt.WarpSize-1)/tgt.WarpSize)
}

// hostWarps runs fn on each warp-sized slice of src and writes the lanes
// below n into want.
func hostWarps[T simt.Lanes](src, want []T, ws, n int, fn func(v simt.Vec[T]) simt.Vec[T]) {
	for base := 0; base < n; base += ws {
		res := fn(simt.Load(src[base : base+ws]))
		simt.BlendedStore(res, simt.FirstN(ws, n-base), want[base:base+ws])
	}
}

func mismatch[T comparable](what string, got, want []T) error {
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%s[%d] = %v, want %v", what, i, got[i], want[i])
		}
	}
	return nil
}
