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

package interp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-warplower/interp"
	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/simt"
	"github.com/ajroetker/go-warplower/target"
)

var loc = ir.Loc("interp.py", 1, 1)

func laneAddr(b *ir.Builder, base, lane *ir.Value, bytes int) *ir.Value {
	off := b.Mul(loc, lane, b.I32(loc, int64(bytes)))
	return b.PtrAdd(loc, base, b.SExt(loc, off, ir.I64))
}

// runOut runs f(out) on one warp and returns n int32 values of out.
func runOut(t *testing.T, tgt target.Target, f *ir.Func, n int) ([]int32, interp.Stats) {
	t.Helper()
	mem := interp.NewMemory(0)
	out := mem.Alloc(4 * n)
	st, err := interp.Run(context.Background(), tgt, f, interp.Launch{Args: []uint64{out}}, mem)
	require.NoError(t, err)
	got, err := mem.Int32s(out, n)
	require.NoError(t, err)
	return got, st
}

func TestDivergentDiamond(t *testing.T) {
	m := ir.NewModule("diamond")
	f := m.NewFunc("k", ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	then, els, merge := f.NewBlock(), f.NewBlock(), f.NewBlock()
	v := merge.AddArg(ir.I32)

	lane := b.ThreadID(loc, 0)
	even := b.ICmp(loc, ir.CmpEQ, b.URem(loc, lane, b.I32(loc, 2)), b.I32(loc, 0))
	b.CondBr(loc, even, then, nil, els, nil)

	b.SetInsertionPointToEnd(then)
	b.Br(loc, merge, b.Mul(loc, lane, b.I32(loc, 10)))

	b.SetInsertionPointToEnd(els)
	b.Br(loc, merge, b.Add(loc, lane, b.I32(loc, 1000)))

	b.SetInsertionPointToEnd(merge)
	b.Store(loc, laneAddr(b, f.Param(0), lane, 4), v, "")
	b.Return(loc)

	tgt := target.SM80()
	got, st := runOut(t, tgt, f, tgt.WarpSize)
	for l := range tgt.WarpSize {
		want := int32(l + 1000)
		if l%2 == 0 {
			want = int32(l * 10)
		}
		assert.Equal(t, want, got[l], "lane %d", l)
	}
	assert.Equal(t, int64(4), st.Blocks, "warp should reconverge at the merge block")
	assert.Equal(t, int64(tgt.WarpSize), st.LaneStores)
}

func TestLoopWithPerLaneTripCount(t *testing.T) {
	m := ir.NewModule("loop")
	f := m.NewFunc("k", ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	header := f.NewBlock()
	i, acc := header.AddArg(ir.I32), header.AddArg(ir.I32)
	body, exit := f.NewBlock(), f.NewBlock()

	lane := b.ThreadID(loc, 0)
	limit := b.URem(loc, lane, b.I32(loc, 4))
	b.Br(loc, header, b.I32(loc, 0), b.I32(loc, 0))

	b.SetInsertionPointToEnd(header)
	b.CondBr(loc, b.ICmp(loc, ir.CmpSLT, i, limit), body, nil, exit, nil)

	b.SetInsertionPointToEnd(body)
	b.Br(loc, header, b.Add(loc, i, b.I32(loc, 1)), b.Add(loc, acc, b.I32(loc, 5)))

	b.SetInsertionPointToEnd(exit)
	b.Store(loc, laneAddr(b, f.Param(0), lane, 4), acc, "")
	b.Return(loc)
	require.NoError(t, ir.Verify(f))

	tgt := target.GFX1100()
	got, _ := runOut(t, tgt, f, tgt.WarpSize)
	for l := range tgt.WarpSize {
		assert.Equal(t, int32(5*(l%4)), got[l], "lane %d", l)
	}
}

func TestExchangeOps(t *testing.T) {
	tests := []struct {
		name string
		tgt  target.Target
		op   func(b *ir.Builder, val, lane *ir.Value, ws int) *ir.Value
		src  func(l, ws int) int
	}{
		{"dpp quad_perm xor1", target.GFX90A(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.DPP(loc, val, 0xb1)
		}, func(l, _ int) int { return l ^ 1 }},
		{"dpp quad_perm xor2", target.GFX90A(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.DPP(loc, val, 0x4e)
		}, func(l, _ int) int { return l ^ 2 }},
		{"dpp row_ror 8", target.GFX942(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.DPP(loc, val, 0x128)
		}, func(l, _ int) int { return l ^ 8 }},
		{"dpp row_ror 1", target.GFX90A(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.DPP(loc, val, 0x121)
		}, func(l, _ int) int { return l&^15 | (l-1)&15 }},
		{"ds_swizzle xor16", target.GFX90A(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.DsSwizzle(loc, val, 0x401f)
		}, func(l, _ int) int { return l ^ 16 }},
		{"ds_swizzle quad reverse", target.GFX1100(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.DsSwizzle(loc, val, 0x801b)
		}, func(l, _ int) int { return l&^3 | (3 - l&3) }},
		{"ds_bpermute rotate", target.GFX90A(), func(b *ir.Builder, val, lane *ir.Value, ws int) *ir.Value {
			src := b.And(loc, b.Add(loc, lane, b.I32(loc, 5)), b.I32(loc, int64(ws-1)))
			return b.DsBpermute(loc, b.Shl(loc, src, b.I32(loc, 2)), val)
		}, func(l, ws int) int { return (l + 5) % ws }},
		{"shfl.sync bfly", target.SM80(), func(b *ir.Builder, val, _ *ir.Value, ws int) *ir.Value {
			return b.ShflSync(loc, "bfly", val, b.I32(loc, 3), ws-1)
		}, func(l, _ int) int { return l ^ 3 }},
		{"shfl.sync up", target.SM80(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.ShflSync(loc, "up", val, b.I32(loc, 2), 0)
		}, func(l, _ int) int {
			if l < 2 {
				return l
			}
			return l - 2
		}},
		{"shfl.sync idx", target.SM80(), func(b *ir.Builder, val, _ *ir.Value, ws int) *ir.Value {
			return b.ShflSync(loc, "idx", val, b.I32(loc, 7), ws-1)
		}, func(int, int) int { return 7 }},
		{"warp_shuffle xor", target.GFX90A(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.WarpShuffle(loc, "xor", val, 33, nil)
		}, func(l, _ int) int { return l ^ 33 }},
		{"warp_shuffle up keeps low lanes", target.SM80(), func(b *ir.Builder, val, _ *ir.Value, _ int) *ir.Value {
			return b.WarpShuffle(loc, "up", val, 4, nil)
		}, func(l, _ int) int {
			if l < 4 {
				return l
			}
			return l - 4
		}},
		{"warp_shuffle idx value", target.GFX1100(), func(b *ir.Builder, val, lane *ir.Value, ws int) *ir.Value {
			return b.WarpShuffle(loc, "idx", val, 0, b.Sub(loc, b.I32(loc, int64(ws-1)), lane))
		}, func(l, ws int) int { return ws - 1 - l }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := tt.tgt.WarpSize
			m := ir.NewModule("exchange")
			f := m.NewFunc("k", ir.Ptr(ir.Global))
			b := ir.NewBuilder(f)
			lane := b.ThreadID(loc, 0)
			val := b.Add(loc, b.Mul(loc, lane, b.I32(loc, 3)), b.I32(loc, 5))
			y := tt.op(b, val, lane, ws)
			b.Store(loc, laneAddr(b, f.Param(0), lane, 4), y, "")
			b.Return(loc)

			got, st := runOut(t, tt.tgt, f, ws)
			assert.Equal(t, int64(1), st.Exchanges)
			for l := range ws {
				assert.Equal(t, int32(tt.src(l, ws)*3+5), got[l], "lane %d", l)
			}
		})
	}
}

func TestPredicatedIntrinsics(t *testing.T) {
	m := ir.NewModule("intrinsics")
	f := m.NewFunc("k", ir.Ptr(ir.Global), ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	ld, err := m.LookupOrDeclare("__predicated_load_CG", true)
	require.NoError(t, err)
	st, err := m.LookupOrDeclare("__predicated_store_WT", false)
	require.NoError(t, err)

	lane := b.ThreadID(loc, 0)
	pred := b.ICmp(loc, ir.CmpSLT, lane, b.I32(loc, 5))
	v := b.Call(loc, ld, ir.I32, laneAddr(b, f.Param(0), lane, 4), pred, b.I32(loc, -1)).Result()
	b.Call(loc, st, ir.Void, laneAddr(b, f.Param(1), lane, 4), v, b.True(loc))
	b.Return(loc)

	tgt := target.SM80()
	mem := interp.NewMemory(0)
	in := mem.Alloc(4 * tgt.WarpSize)
	out := mem.Alloc(4 * tgt.WarpSize)
	src := make([]int32, tgt.WarpSize)
	for i := range src {
		src[i] = int32(100 + i)
	}
	require.NoError(t, mem.SetInt32s(in, src))

	stats, err := interp.Run(context.Background(), tgt, f, interp.Launch{Args: []uint64{in, out}}, mem)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.LaneLoads)
	assert.Equal(t, int64(tgt.WarpSize), stats.LaneStores)

	got, err := mem.Int32s(out, tgt.WarpSize)
	require.NoError(t, err)
	for l := range tgt.WarpSize {
		want := int32(-1)
		if l < 5 {
			want = src[l]
		}
		assert.Equal(t, want, got[l], "lane %d", l)
	}
}

func TestOutOfBounds(t *testing.T) {
	m := ir.NewModule("oob")
	f := m.NewFunc("k", ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	storeLoc := ir.Loc("oob.py", 9, 2)
	bad := b.PtrAdd(loc, f.Param(0), b.Const(loc, ir.I64, 4096))
	b.Store(storeLoc, bad, b.I32(loc, 1), "")
	b.Return(loc)

	mem := interp.NewMemory(0)
	out := mem.Alloc(16)
	_, err := interp.Run(context.Background(), target.SM80(), f, interp.Launch{Args: []uint64{out}}, mem)
	require.Error(t, err)
	assert.ErrorIs(t, err, interp.ErrOutOfBounds)
	var ee *interp.ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "store", ee.Op)
	assert.Equal(t, storeLoc, ee.Loc)
	assert.Contains(t, err.Error(), "oob.py:9:2")
}

func TestMaskedLanesSkipMemory(t *testing.T) {
	m := ir.NewModule("masked")
	f := m.NewFunc("k", ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	bad := b.PtrAdd(loc, f.Param(0), b.Const(loc, ir.I64, 1<<40))
	v := b.MaskedLoad(loc, bad, ir.F32, b.False(loc), b.ConstFloat(loc, ir.F32, 0), "")
	b.MaskedStore(loc, bad, v, b.False(loc), "")
	b.Return(loc)

	_, st := runOut(t, target.GFX90A(), f, 1)
	assert.Zero(t, st.LaneLoads)
	assert.Zero(t, st.LaneStores)
}

func TestUnknownCallee(t *testing.T) {
	m := ir.NewModule("callee")
	f := m.NewFunc("k", ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	d, err := m.LookupOrDeclare("__predicated_load_CS", true)
	require.NoError(t, err)
	b.Call(loc, d, ir.I32, f.Param(0), b.True(loc), b.I32(loc, 0))
	b.Return(loc)

	_, err = interp.Run(context.Background(), target.SM80(), f, interp.Launch{Args: []uint64{0}}, nil)
	assert.ErrorIs(t, err, interp.ErrUnknownCallee)
}

func TestStepLimit(t *testing.T) {
	m := ir.NewModule("spin")
	f := m.NewFunc("k")
	b := ir.NewBuilder(f)
	loop := f.NewBlock()
	b.Br(loc, loop)
	b.SetInsertionPointToEnd(loop)
	b.Br(loc, loop)

	_, err := interp.Run(context.Background(), target.SM80(), f, interp.Launch{MaxSteps: 100}, nil)
	assert.ErrorIs(t, err, interp.ErrStepLimit)
}

func TestBadLaunch(t *testing.T) {
	m := ir.NewModule("bad")
	f := m.NewFunc("k", ir.Ptr(ir.Global))
	ir.NewBuilder(f).Return(loc)

	_, err := interp.Run(context.Background(), target.SM80(), f, interp.Launch{}, nil)
	assert.ErrorIs(t, err, interp.ErrBadLaunch)

	_, err = interp.Run(context.Background(), target.SM80(), f, interp.Launch{Grid: [3]int{-1, 1, 1}, Args: []uint64{0}}, nil)
	assert.ErrorIs(t, err, interp.ErrBadLaunch)

	bad := target.SM80()
	bad.WarpSize = 3
	_, err = interp.Run(context.Background(), bad, f, interp.Launch{Args: []uint64{0}}, nil)
	assert.Error(t, err)
}

func TestCanceled(t *testing.T) {
	m := ir.NewModule("spin")
	f := m.NewFunc("k")
	b := ir.NewBuilder(f)
	loop := f.NewBlock()
	b.Br(loc, loop)
	b.SetInsertionPointToEnd(loop)
	b.Br(loc, loop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := interp.Run(ctx, target.SM80(), f, interp.Launch{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGrid(t *testing.T) {
	m := ir.NewModule("grid")
	f := m.NewFunc("k", ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	x, y, z := b.GetProgramID(loc, 0), b.GetProgramID(loc, 1), b.GetProgramID(loc, 2)
	slot := b.Add(loc, b.Add(loc, x, b.Mul(loc, y, b.I32(loc, 3))), b.Mul(loc, z, b.I32(loc, 6)))
	v := b.Add(loc, b.Add(loc, x, b.Mul(loc, y, b.I32(loc, 10))), b.Mul(loc, z, b.I32(loc, 100)))
	first := b.ICmp(loc, ir.CmpEQ, b.ThreadID(loc, 0), b.I32(loc, 0))
	b.MaskedStore(loc, laneAddr(b, f.Param(0), slot, 4), v, first, "")
	b.Return(loc)

	mem := interp.NewMemory(0)
	out := mem.Alloc(4 * 12)
	launch := interp.Launch{Grid: [3]int{3, 2, 2}, Args: []uint64{out}, Workers: 4}
	st, err := interp.Run(context.Background(), target.SM80(), f, launch, mem)
	require.NoError(t, err)
	assert.Equal(t, int64(12), st.Programs)
	assert.Equal(t, int64(12), st.LaneStores)

	got, err := mem.Int32s(out, 12)
	require.NoError(t, err)
	for pz := range 2 {
		for py := range 2 {
			for px := range 3 {
				assert.Equal(t, int32(px+10*py+100*pz), got[px+3*py+6*pz])
			}
		}
	}
}

func TestSharedMemory(t *testing.T) {
	tgt := target.SM80()
	ws := tgt.WarpSize
	m := ir.NewModule("shared")
	f := m.NewFunc("k", ir.Ptr(ir.Shared), ir.Ptr(ir.Global))
	b := ir.NewBuilder(f)
	lane := b.ThreadID(loc, 0)
	b.Store(loc, laneAddr(b, f.Param(0), lane, 4), b.Mul(loc, lane, lane), "")
	next := b.URem(loc, b.Add(loc, lane, b.I32(loc, 1)), b.I32(loc, int64(ws)))
	v := b.Load(loc, ir.I32, laneAddr(b, f.Param(0), next, 4), "")
	b.Store(loc, laneAddr(b, f.Param(1), lane, 4), v, "")
	b.Return(loc)

	mem := interp.NewMemory(0)
	out := mem.Alloc(4 * ws)
	_, err := interp.Run(context.Background(), tgt, f,
		interp.Launch{Grid: [3]int{2, 1, 1}, SharedBytes: 4 * ws, Args: []uint64{0, out}}, mem)
	require.NoError(t, err)
	got, err := mem.Int32s(out, ws)
	require.NoError(t, err)
	for l := range ws {
		n := (l + 1) % ws
		assert.Equal(t, int32(n*n), got[l])
	}

	_, err = interp.Run(context.Background(), tgt, f, interp.Launch{Args: []uint64{0, out}}, mem)
	assert.ErrorIs(t, err, interp.ErrOutOfBounds, "shared memory defaults to zero bytes")
}

func TestHalfPrecisionArithmetic(t *testing.T) {
	for _, typ := range []ir.Type{ir.F16, ir.BF16} {
		t.Run(typ.String(), func(t *testing.T) {
			m := ir.NewModule("half")
			f := m.NewFunc("k", ir.Ptr(ir.Global))
			b := ir.NewBuilder(f)
			x := b.FMul(loc, b.ConstFloat(loc, typ, 1.5), b.ConstFloat(loc, typ, 2))
			x = b.FAdd(loc, x, b.ConstFloat(loc, typ, 0.25))
			b.Store(loc, f.Param(0), x, "")
			b.Return(loc)

			mem := interp.NewMemory(0)
			out := mem.Alloc(2)
			_, err := interp.Run(context.Background(), target.Generic(), f, interp.Launch{Args: []uint64{out}}, mem)
			require.NoError(t, err)
			raw, err := mem.Float16s(out, 1)
			require.NoError(t, err)
			got := simt.Float16ToFloat32(raw[0])
			if typ == ir.BF16 {
				got = simt.BFloat16ToFloat32(raw[0])
			}
			assert.Equal(t, float32(3.25), got)
		})
	}
}

func TestMemory(t *testing.T) {
	mem := interp.NewMemory(3)
	a := mem.Alloc(5)
	assert.Equal(t, uint64(16), a)
	assert.Equal(t, 21, mem.Size())

	require.NoError(t, mem.SetFloat32s(a, []float32{1.5}))
	got, err := mem.Float32s(a, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5}, got)

	_, err = mem.Read(a, 6)
	assert.ErrorIs(t, err, interp.ErrOutOfBounds)
	assert.ErrorIs(t, mem.Write(1<<62, []byte{1}), interp.ErrOutOfBounds)
}
