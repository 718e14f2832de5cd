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

package kernels

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/ajroetker/go-warplower/interp"
	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/simt"
	"github.com/ajroetker/go-warplower/target"
)

// Every kernel takes (in, out, n).
var kernelParams = []ir.Type{ir.Ptr(ir.Global), ir.Ptr(ir.Global), ir.I32}

// buffers allocates one input and one output buffer of capacity elements
// and returns the launch covering n elements.
func buffers(mem *interp.Memory, tgt target.Target, n, inBytes, outBytes int) (in, out uint64, launch interp.Launch) {
	in = mem.Alloc(inBytes)
	out = mem.Alloc(outBytes)
	launch = interp.Launch{
		Grid:     [3]int{numPrograms(tgt, n), 1, 1},
		NumWarps: 1,
		Args:     []uint64{in, out, uint64(n)},
	}
	return in, out, launch
}

func capacity(tgt target.Target, n int) int {
	return numPrograms(tgt, n) * tgt.WarpSize
}

var maskedCopyKernel = Kernel{
	Name: "masked_copy",
	Doc:  "f32 copy guarded by idx < n; loads with cg, stores with wt",
	Build: func(m *ir.Module, tgt target.Target) *ir.Func {
		f := m.NewFunc("masked_copy", kernelParams...)
		b := ir.NewBuilder(f)
		in, out, n := f.Param(0), f.Param(1), f.Param(2)
		p := globalIndex(b, at("masked_copy", 2), tgt, n)

		loc := at("masked_copy", 3)
		other := b.ConstFloat(loc, ir.F32, -1)
		v := b.MaskedLoad(loc, elemAddr(b, loc, in, p.idx, 4), ir.F32, p.inBounds, other, "cg")
		loc = at("masked_copy", 4)
		b.MaskedStore(loc, elemAddr(b, loc, out, p.idx, 4), v, p.inBounds, "wt")
		b.Return(at("masked_copy", 5))
		return f
	},
	Prepare: func(mem *interp.Memory, tgt target.Target, n int) (*Setup, error) {
		c := capacity(tgt, n)
		in, out, launch := buffers(mem, tgt, n, c*4, c*4)
		src := make([]float32, c)
		for i := range n {
			src[i] = float32(i)*0.25 - 3
		}
		want := slices.Repeat([]float32{-7}, c)
		copy(want, src[:n])
		if err := mem.SetFloat32s(in, src); err != nil {
			return nil, err
		}
		if err := mem.SetFloat32s(out, slices.Repeat([]float32{-7}, c)); err != nil {
			return nil, err
		}
		return &Setup{
			Launch: launch,
			Check: func(mem *interp.Memory) error {
				got, err := mem.Float32s(out, c)
				if err != nil {
					return err
				}
				return mismatch("out", got, want)
			},
			Dump: func(mem *interp.Memory) (string, error) {
				got, err := mem.Float32s(out, n)
				return fmt.Sprint(got), err
			},
		}, nil
	},
}

var warpSumKernel = Kernel{
	Name: "warp_sum",
	Doc:  "f32 butterfly reduction with xor shuffles; lane 0 writes out[pid]",
	Build: func(m *ir.Module, tgt target.Target) *ir.Func {
		f := m.NewFunc("warp_sum", kernelParams...)
		b := ir.NewBuilder(f)
		in, out, n := f.Param(0), f.Param(1), f.Param(2)
		p := globalIndex(b, at("warp_sum", 2), tgt, n)

		loc := at("warp_sum", 3)
		acc := b.MaskedLoad(loc, elemAddr(b, loc, in, p.idx, 4), ir.F32, p.inBounds, b.ConstFloat(loc, ir.F32, 0), "")
		loc = at("warp_sum", 4)
		for mask := tgt.WarpSize / 2; mask >= 1; mask /= 2 {
			acc = b.FAdd(loc, acc, b.WarpShuffle(loc, "xor", acc, mask, nil))
		}
		loc = at("warp_sum", 5)
		first := b.ICmp(loc, ir.CmpEQ, p.tid, b.I32(loc, 0))
		b.MaskedStore(loc, elemAddr(b, loc, out, p.pid, 4), acc, first, "")
		b.Return(at("warp_sum", 6))
		return f
	},
	Prepare: func(mem *interp.Memory, tgt target.Target, n int) (*Setup, error) {
		c := capacity(tgt, n)
		np := numPrograms(tgt, n)
		in, out, launch := buffers(mem, tgt, n, c*4, np*4)
		src := make([]float32, c)
		for i := range n {
			src[i] = float32(i%17 - 8)
		}
		ws := tgt.WarpSize
		want := make([]float32, np)
		for pid := range want {
			acc := simt.Load(src[pid*ws : (pid+1)*ws])
			for mask := ws / 2; mask >= 1; mask /= 2 {
				acc = simt.Add(acc, simt.XorLanes(acc, mask))
			}
			want[pid] = simt.GetLane(acc, 0)
		}
		if err := mem.SetFloat32s(in, src); err != nil {
			return nil, err
		}
		return &Setup{
			Launch: launch,
			Check: func(mem *interp.Memory) error {
				got, err := mem.Float32s(out, np)
				if err != nil {
					return err
				}
				return mismatch("out", got, want)
			},
			Dump: func(mem *interp.Memory) (string, error) {
				got, err := mem.Float32s(out, np)
				return fmt.Sprint(got), err
			},
		}, nil
	},
}

// broadcastLane is the source lane of the broadcast kernel.
const broadcastLane = 3

var broadcastKernel = Kernel{
	Name: "broadcast",
	Doc:  "f16 idx shuffle with an immediate lane; every lane receives lane 3",
	Build: func(m *ir.Module, tgt target.Target) *ir.Func {
		f := m.NewFunc("broadcast", kernelParams...)
		b := ir.NewBuilder(f)
		in, out, n := f.Param(0), f.Param(1), f.Param(2)
		p := globalIndex(b, at("broadcast", 2), tgt, n)

		loc := at("broadcast", 3)
		v := b.MaskedLoad(loc, elemAddr(b, loc, in, p.idx, 2), ir.F16, p.inBounds, b.ConstFloat(loc, ir.F16, 0), "")
		loc = at("broadcast", 4)
		v = b.WarpShuffle(loc, "idx", v, broadcastLane, nil)
		loc = at("broadcast", 5)
		b.MaskedStore(loc, elemAddr(b, loc, out, p.idx, 2), v, p.inBounds, "")
		b.Return(at("broadcast", 6))
		return f
	},
	Prepare: func(mem *interp.Memory, tgt target.Target, n int) (*Setup, error) {
		const sentinel = 0x7e00
		c := capacity(tgt, n)
		in, out, launch := buffers(mem, tgt, n, c*2, c*2)
		src := make([]uint16, c)
		for i := range n {
			src[i] = simt.Float32ToFloat16(float32(i%29) - 5)
		}
		want := slices.Repeat([]uint16{sentinel}, c)
		hostWarps(src, want, tgt.WarpSize, n, func(v simt.Vec[uint16]) simt.Vec[uint16] {
			return simt.Broadcast(v, broadcastLane)
		})
		if err := mem.SetFloat16s(in, src); err != nil {
			return nil, err
		}
		if err := mem.SetFloat16s(out, slices.Repeat([]uint16{sentinel}, c)); err != nil {
			return nil, err
		}
		return &Setup{
			Launch: launch,
			Check: func(mem *interp.Memory) error {
				got, err := mem.Float16s(out, c)
				if err != nil {
					return err
				}
				return mismatch("out", got, want)
			},
			Dump: func(mem *interp.Memory) (string, error) {
				got, err := mem.Float16s(out, n)
				return fmt.Sprint(lo.Map(got, func(h uint16, _ int) float32 { return simt.Float16ToFloat32(h) })), err
			},
		}, nil
	},
}

var inclusiveScanKernel = Kernel{
	Name: "inclusive_scan",
	Doc:  "i32 per-warp inclusive prefix sum built from up shuffles",
	Build: func(m *ir.Module, tgt target.Target) *ir.Func {
		f := m.NewFunc("inclusive_scan", kernelParams...)
		b := ir.NewBuilder(f)
		in, out, n := f.Param(0), f.Param(1), f.Param(2)
		p := globalIndex(b, at("inclusive_scan", 2), tgt, n)

		loc := at("inclusive_scan", 3)
		acc := b.MaskedLoad(loc, elemAddr(b, loc, in, p.idx, 4), ir.I32, p.inBounds, b.I32(loc, 0), "")
		loc = at("inclusive_scan", 4)
		for offset := 1; offset < tgt.WarpSize; offset *= 2 {
			below := b.WarpShuffle(loc, "up", acc, offset, nil)
			take := b.ICmp(loc, ir.CmpSGE, p.tid, b.I32(loc, int64(offset)))
			acc = b.Select(loc, take, b.Add(loc, acc, below), acc)
		}
		loc = at("inclusive_scan", 5)
		b.MaskedStore(loc, elemAddr(b, loc, out, p.idx, 4), acc, p.inBounds, "")
		b.Return(at("inclusive_scan", 6))
		return f
	},
	Prepare: func(mem *interp.Memory, tgt target.Target, n int) (*Setup, error) {
		const sentinel = 12345
		c := capacity(tgt, n)
		in, out, launch := buffers(mem, tgt, n, c*4, c*4)
		src := make([]int32, c)
		for i := range n {
			src[i] = int32(i%7 - 3)
		}
		ws := tgt.WarpSize
		want := slices.Repeat([]int32{sentinel}, c)
		hostWarps(src, want, ws, n, func(acc simt.Vec[int32]) simt.Vec[int32] {
			for offset := 1; offset < ws; offset *= 2 {
				take := simt.MaskAndNot(simt.AllOn(ws), simt.FirstN(ws, offset))
				acc = simt.IfThenElse(take, simt.Add(acc, simt.SlideUpLanes(acc, offset)), acc)
			}
			return acc
		})
		if err := mem.SetInt32s(in, src); err != nil {
			return nil, err
		}
		if err := mem.SetInt32s(out, slices.Repeat([]int32{sentinel}, c)); err != nil {
			return nil, err
		}
		return &Setup{
			Launch: launch,
			Check: func(mem *interp.Memory) error {
				got, err := mem.Int32s(out, c)
				if err != nil {
					return err
				}
				return mismatch("out", got, want)
			},
			Dump: func(mem *interp.Memory) (string, error) {
				got, err := mem.Int32s(out, n)
				return fmt.Sprint(got), err
			},
		}, nil
	},
}

var reverseLanesKernel = Kernel{
	Name: "reverse_lanes",
	Doc:  "f64 idx shuffle with a per-lane source ws-1-lane",
	Build: func(m *ir.Module, tgt target.Target) *ir.Func {
		f := m.NewFunc("reverse_lanes", kernelParams...)
		b := ir.NewBuilder(f)
		in, out, n := f.Param(0), f.Param(1), f.Param(2)
		p := globalIndex(b, at("reverse_lanes", 2), tgt, n)

		loc := at("reverse_lanes", 3)
		v := b.MaskedLoad(loc, elemAddr(b, loc, in, p.idx, 8), ir.F64, p.inBounds, b.ConstFloat(loc, ir.F64, 0), "")
		loc = at("reverse_lanes", 4)
		src := b.Sub(loc, b.I32(loc, int64(tgt.WarpSize-1)), p.tid)
		v = b.WarpShuffle(loc, "idx", v, 0, src)
		loc = at("reverse_lanes", 5)
		b.MaskedStore(loc, elemAddr(b, loc, out, p.idx, 8), v, p.inBounds, "")
		b.Return(at("reverse_lanes", 6))
		return f
	},
	Prepare: func(mem *interp.Memory, tgt target.Target, n int) (*Setup, error) {
		sentinel := math.Float64bits(-1)
		ws := tgt.WarpSize
		c := capacity(tgt, n)
		in, out, launch := buffers(mem, tgt, n, c*8, c*8)
		src := make([]uint64, c)
		for i := range n {
			src[i] = math.Float64bits(float64(i) + 0.5)
		}
		want := slices.Repeat([]uint64{sentinel}, c)
		reversed := simt.Map(simt.Iota[int32](ws), func(l int32) int32 { return int32(ws-1) - l })
		hostWarps(src, want, ws, n, func(v simt.Vec[uint64]) simt.Vec[uint64] {
			return simt.TableLookupLanes(v, reversed)
		})
		if err := mem.SetUint64s(in, src); err != nil {
			return nil, err
		}
		if err := mem.SetUint64s(out, slices.Repeat([]uint64{sentinel}, c)); err != nil {
			return nil, err
		}
		return &Setup{
			Launch: launch,
			Check: func(mem *interp.Memory) error {
				got, err := mem.Uint64s(out, c)
				if err != nil {
					return err
				}
				return mismatch("out", got, want)
			},
			Dump: func(mem *interp.Memory) (string, error) {
				got, err := mem.Uint64s(out, n)
				return fmt.Sprint(lo.Map(got, func(x uint64, _ int) float64 { return math.Float64frombits(x) })), err
			},
		}, nil
	},
}

// wideLanes is the vector length of the wide copy, 256 bits per access.
const wideLanes = 8

var wideCopyKernel = Kernel{
	Name: "wide_copy",
	Doc:  "vector<8xf32> copy wider than one access; loads with cg, stores with cs",
	Build: func(m *ir.Module, tgt target.Target) *ir.Func {
		f := m.NewFunc("wide_copy", kernelParams...)
		b := ir.NewBuilder(f)
		in, out, n := f.Param(0), f.Param(1), f.Param(2)
		p := globalIndex(b, at("wide_copy", 2), tgt, n)

		loc := at("wide_copy", 3)
		vt := ir.Vector(wideLanes, ir.F32)
		other := b.ConstFloat(loc, vt, -1)
		v := b.MaskedLoad(loc, elemAddr(b, loc, in, p.idx, vt.Bytes()), vt, p.inBounds, other, "cg")
		loc = at("wide_copy", 4)
		b.MaskedStore(loc, elemAddr(b, loc, out, p.idx, vt.Bytes()), v, p.inBounds, "cs")
		b.Return(at("wide_copy", 5))
		return f
	},
	Prepare: func(mem *interp.Memory, tgt target.Target, n int) (*Setup, error) {
		c := capacity(tgt, n) * wideLanes
		in, out, launch := buffers(mem, tgt, n, c*4, c*4)
		src := make([]float32, c)
		for i := range n * wideLanes {
			src[i] = float32(i) + 0.125
		}
		want := slices.Repeat([]float32{-3}, c)
		copy(want, src[:n*wideLanes])
		if err := mem.SetFloat32s(in, src); err != nil {
			return nil, err
		}
		if err := mem.SetFloat32s(out, slices.Repeat([]float32{-3}, c)); err != nil {
			return nil, err
		}
		return &Setup{
			Launch: launch,
			Check: func(mem *interp.Memory) error {
				got, err := mem.Float32s(out, c)
				if err != nil {
					return err
				}
				return mismatch("out", got, want)
			},
			Dump: func(mem *interp.Memory) (string, error) {
				got, err := mem.Float32s(out, n*wideLanes)
				return fmt.Sprint(got), err
			},
		}, nil
	},
}
