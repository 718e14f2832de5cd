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

package interp

import (
	"context"
	"fmt"
	"math"

	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/simt"
)

// Native predicated access symbols understood by the machine.
var predicatedSymbols = map[string]bool{
	"__predicated_load":     true,
	"__predicated_load_CA":  true,
	"__predicated_load_CG":  true,
	"__predicated_store":    false,
	"__predicated_store_CG": false,
	"__predicated_store_CS": false,
	"__predicated_store_WT": false,
}

type warp struct {
	ex    *executor
	prog  *program
	index int
	lanes int
	regs  map[*ir.Value]reg
	ctr   *counters
}

func newWarp(ex *executor, p *program, index int, ctr *counters) *warp {
	return &warp{
		ex:    ex,
		prog:  p,
		index: index,
		lanes: ex.tgt.WarpSize,
		regs:  make(map[*ir.Value]reg),
		ctr:   ctr,
	}
}

func (w *warp) fail(op *ir.Op, err error) error {
	return &ExecError{Program: w.prog.coords, Warp: w.index, Loc: op.Loc, Op: op.Code.String(), Err: err}
}

// run executes the function to completion for every lane.
func (w *warp) run(ctx context.Context) error {
	for i, p := range w.ex.fn.Params() {
		w.regs[p] = broadcastReg(bitset{w.ex.args[i] & lowMask(p.Type.Bits())}, w.lanes)
	}
	pcs := make([]*ir.Block, w.lanes)
	for l := range pcs {
		pcs[l] = w.ex.fn.Entry()
	}

	for steps := 0; ; steps++ {
		cur := w.next(pcs)
		if cur == nil {
			return nil
		}
		if steps >= w.ex.maxSteps {
			return &ExecError{Program: w.prog.coords, Warp: w.index, Op: "block", Err: ErrStepLimit}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		bits := make([]bool, w.lanes)
		for l, b := range pcs {
			bits[l] = b == cur
		}
		active := simt.MaskFromBits(bits)
		w.ctr.blocks++

		for _, op := range cur.Ops {
			if op.Code.IsTerminator() {
				w.branch(op, active, pcs)
				break
			}
			if err := w.exec(op, active); err != nil {
				return w.fail(op, err)
			}
		}
	}
}

// next returns the earliest block in reverse post-order that some lane is
// waiting at, or nil when all lanes have returned.
func (w *warp) next(pcs []*ir.Block) *ir.Block {
	var cur *ir.Block
	best := math.MaxInt
	for _, b := range pcs {
		if b == nil {
			continue
		}
		if n := w.ex.rpo[b]; n < best {
			cur, best = b, n
		}
	}
	return cur
}

// reg returns the register for v; values not yet written read as zero.
func (w *warp) reg(v *ir.Value) reg {
	if r, ok := w.regs[v]; ok {
		return r
	}
	return zeroReg(v.Type, w.lanes)
}

// write updates the active lanes of v.
func (w *warp) write(v *ir.Value, r reg, active simt.Mask) {
	w.regs[v] = blend(active, r, w.reg(v))
}

type argWrite struct {
	dest *ir.Value
	val  reg
	mask simt.Mask
}

func (w *warp) branch(op *ir.Op, active simt.Mask, pcs []*ir.Block) {
	var edges []simt.Mask
	switch op.Code {
	case ir.OpReturn:
		for l := range pcs {
			if active.GetBit(l) {
				pcs[l] = nil
			}
		}
		return
	case ir.OpBr:
		edges = []simt.Mask{active}
	case ir.OpCondBr:
		cond := w.reg(op.Operands[0]).truthy()
		edges = []simt.Mask{simt.MaskAnd(active, cond), simt.MaskAndNot(active, cond)}
	}

	// Read every outgoing argument before writing any block argument.
	var writes []argWrite
	for i, s := range op.Succs {
		for j, a := range s.Block.Args {
			writes = append(writes, argWrite{dest: a, val: w.reg(s.Args[j]), mask: edges[i]})
		}
	}
	for _, wr := range writes {
		w.write(wr.dest, wr.val, wr.mask)
	}
	for i, s := range op.Succs {
		for l := range pcs {
			if edges[i].GetBit(l) {
				pcs[l] = s.Block
			}
		}
	}
}

// perLane builds a register of type t from fn applied to every lane.
func (w *warp) perLane(t ir.Type, fn func(l int) (bitset, error)) (reg, error) {
	r := zeroReg(t, w.lanes)
	for l := range w.lanes {
		v, err := fn(l)
		if err != nil {
			return nil, err
		}
		r.setLane(l, v)
	}
	return r, nil
}

// exec runs one non-terminator op for the active lanes.
func (w *warp) exec(op *ir.Op, active simt.Mask) error {
	var (
		r   reg
		err error
	)
	switch op.Code {
	case ir.OpConst:
		r = broadcastReg(constBits(op), w.lanes)
	case ir.OpUndef:
		r = zeroReg(op.Result().Type, w.lanes)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpURem, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr:
		r, err = w.intBinary(op)
	case ir.OpFAdd, ir.OpFMul:
		r, err = w.floatBinary(op)
	case ir.OpICmp:
		r, err = w.icmp(op)
	case ir.OpSelect:
		r = blend(w.reg(op.Operands[0]).truthy(), w.reg(op.Operands[1]), w.reg(op.Operands[2]))
	case ir.OpZExt, ir.OpTrunc, ir.OpBitcast:
		src := w.reg(op.Operands[0])
		from, to := op.Operands[0].Type.Bits(), op.Result().Type.Bits()
		r, err = w.perLane(op.Result().Type, func(l int) (bitset, error) {
			return src.lane(l).slice(0, min(from, to)), nil
		})
	case ir.OpSExt:
		r, err = w.sext(op)
	case ir.OpExtractElement, ir.OpExtractSlice:
		src := w.reg(op.Operands[0])
		width := op.Operands[0].Type.Elem().Bits()
		n := op.Result().Type.Bits()
		r, err = w.perLane(op.Result().Type, func(l int) (bitset, error) {
			return src.lane(l).slice(int(op.Imm)*width, n), nil
		})
	case ir.OpInsertElement, ir.OpInsertSlice:
		vec, part := w.reg(op.Operands[0]), w.reg(op.Operands[1])
		width := op.Operands[0].Type.Elem().Bits()
		n := op.Operands[1].Type.Bits()
		r, err = w.perLane(op.Result().Type, func(l int) (bitset, error) {
			out := vec.lane(l)
			out.put(int(op.Imm)*width, n, part.lane(l))
			return out, nil
		})
	case ir.OpPtrAdd:
		ptr, off := w.reg(op.Operands[0]), w.reg(op.Operands[1])
		offBits := op.Operands[1].Type.Bits()
		r, err = w.perLane(op.Result().Type, func(l int) (bitset, error) {
			return bitset{ptr.lane(l)[0] + uint64(signExtend(off.lane(l)[0], offBits))}, nil
		})
	case ir.OpThreadID:
		r = w.threadID(int(op.Imm))
	case ir.OpBlockID, ir.OpGetProgramID:
		r = w.programID(int(op.Imm))
	case ir.OpLoad:
		r, err = w.load(op.Result().Type, op.Operands[0], active, nil, nil)
	case ir.OpStore:
		err = w.store(op.Operands[1], op.Operands[0], active, nil)
	case ir.OpCall:
		r, err = w.call(op, active)
	case ir.OpMaskedLoad:
		r, err = w.load(op.Result().Type, op.Operands[0], active, op.Operands[1], op.Operands[2])
	case ir.OpMaskedStore:
		err = w.store(op.Operands[0], op.Operands[1], active, op.Operands[2])
	case ir.OpShflSync, ir.OpDsBpermute, ir.OpDsSwizzle, ir.OpDPP, ir.OpWarpShuffle:
		r, err = w.exchange(op)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupported, op.Code)
	}
	if err != nil {
		return err
	}
	if res := op.Result(); res != nil {
		w.write(res, r, active)
	}
	return nil
}

func constBits(op *ir.Op) bitset {
	t := op.Result().Type
	elem := t.Elem()
	out := newBitset(t.Bits())
	var x uint64
	if elem.IsFloat() {
		x = encodeFloat(elem, op.FImm)
	} else {
		x = uint64(op.Imm) & lowMask(elem.Width)
	}
	n := min(elem.Width, 64)
	for e := range t.Len() {
		out.setField(e*elem.Width, n, x)
	}
	return out
}

func (w *warp) intBinary(op *ir.Op) (reg, error) {
	t := op.Result().Type
	width := t.Elem().Width
	if t.Kind != ir.KindInt || width > 64 {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupported, op.Code, t)
	}
	var fn func(x, y uint64) uint64
	switch op.Code {
	case ir.OpAdd:
		fn = func(x, y uint64) uint64 { return x + y }
	case ir.OpSub:
		fn = func(x, y uint64) uint64 { return x - y }
	case ir.OpMul:
		fn = func(x, y uint64) uint64 { return x * y }
	case ir.OpURem:
		fn = func(x, y uint64) uint64 {
			if y == 0 {
				return 0
			}
			return x % y
		}
	case ir.OpAnd:
		fn = func(x, y uint64) uint64 { return x & y }
	case ir.OpOr:
		fn = func(x, y uint64) uint64 { return x | y }
	case ir.OpXor:
		fn = func(x, y uint64) uint64 { return x ^ y }
	case ir.OpShl:
		fn = func(x, y uint64) uint64 {
			if y >= uint64(width) {
				return 0
			}
			return x << y
		}
	case ir.OpLShr:
		fn = func(x, y uint64) uint64 {
			if y >= uint64(width) {
				return 0
			}
			return x >> y
		}
	}
	a, b := w.reg(op.Operands[0]), w.reg(op.Operands[1])
	return w.perLane(t, func(l int) (bitset, error) {
		return elementwise(t, a.lane(l), b.lane(l), fn), nil
	})
}

func (w *warp) floatBinary(op *ir.Op) (reg, error) {
	t := op.Result().Type
	elem := t.Elem()
	if elem.Kind != ir.KindFloat && elem.Kind != ir.KindBFloat {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupported, op.Code, t)
	}
	fop := func(x, y float64) float64 { return x + y }
	if op.Code == ir.OpFMul {
		fop = func(x, y float64) float64 { return x * y }
	}
	fn := func(x, y uint64) uint64 {
		return encodeFloat(elem, fop(decodeFloat(elem, x), decodeFloat(elem, y)))
	}
	a, b := w.reg(op.Operands[0]), w.reg(op.Operands[1])
	return w.perLane(t, func(l int) (bitset, error) {
		return elementwise(t, a.lane(l), b.lane(l), fn), nil
	})
}

func elementwise(t ir.Type, a, b bitset, fn func(x, y uint64) uint64) bitset {
	width := t.Elem().Width
	out := newBitset(t.Bits())
	for e := range t.Len() {
		out.setField(e*width, width, fn(a.field(e*width, width), b.field(e*width, width)))
	}
	return out
}

func (w *warp) icmp(op *ir.Op) (reg, error) {
	t := op.Operands[0].Type
	if t.IsVector() || t.Bits() > 64 {
		return nil, fmt.Errorf("%w: icmp on %s", ErrUnsupported, t)
	}
	width := t.Bits()
	a, b := w.reg(op.Operands[0]), w.reg(op.Operands[1])
	return w.perLane(ir.I1, func(l int) (bitset, error) {
		x, y := a.lane(l)[0], b.lane(l)[0]
		sx, sy := signExtend(x, width), signExtend(y, width)
		var res bool
		switch op.Pred {
		case ir.CmpEQ:
			res = x == y
		case ir.CmpNE:
			res = x != y
		case ir.CmpSLT:
			res = sx < sy
		case ir.CmpSLE:
			res = sx <= sy
		case ir.CmpSGT:
			res = sx > sy
		case ir.CmpSGE:
			res = sx >= sy
		case ir.CmpULT:
			res = x < y
		case ir.CmpUGE:
			res = x >= y
		}
		if res {
			return bitset{1}, nil
		}
		return bitset{0}, nil
	})
}

func (w *warp) sext(op *ir.Op) (reg, error) {
	from, to := op.Operands[0].Type.Bits(), op.Result().Type.Bits()
	if from > 64 || to > 64 {
		return nil, fmt.Errorf("%w: sext %d to %d bits", ErrUnsupported, from, to)
	}
	src := w.reg(op.Operands[0])
	return w.perLane(op.Result().Type, func(l int) (bitset, error) {
		return bitset{uint64(signExtend(src.lane(l)[0], from)) & lowMask(to)}, nil
	})
}

func (w *warp) threadID(axis int) reg {
	return w.laneValues(func(l int) uint64 {
		if axis != 0 {
			return 0
		}
		return uint64(w.index*w.lanes + l)
	})
}

func (w *warp) programID(axis int) reg {
	return w.laneValues(func(int) uint64 {
		if axis < 0 || axis > 2 {
			return 0
		}
		return uint64(w.prog.coords[axis])
	})
}

func (w *warp) laneValues(fn func(l int) uint64) reg {
	data := make([]uint64, w.lanes)
	for l := range data {
		data[l] = fn(l)
	}
	return reg{simt.Load(data)}
}

// ---- Memory ----

func (w *warp) read(space ir.AddrSpace, addr uint64, n int) ([]byte, error) {
	if space == ir.Shared {
		return readBytes(w.prog.shared, addr, n)
	}
	return w.ex.mem.Read(addr, n)
}

func (w *warp) writeMem(space ir.AddrSpace, addr uint64, b []byte) error {
	if space == ir.Shared {
		return writeBytes(w.prog.shared, addr, b)
	}
	return w.ex.mem.Write(addr, b)
}

// load reads t at ptr for active lanes. With a predicate, lanes whose
// predicate is clear yield other instead and do not access memory.
func (w *warp) load(t ir.Type, ptr *ir.Value, active simt.Mask, pred, other *ir.Value) (reg, error) {
	mask := active
	fallback := zeroReg(t, w.lanes)
	if pred != nil {
		mask = simt.MaskAnd(active, w.reg(pred).truthy())
		fallback = w.reg(other)
	}
	addrs := w.reg(ptr)
	space := ptr.Type.Space
	w.ctr.laneLoads += int64(mask.CountTrue())
	loaded, err := w.perLane(t, func(l int) (bitset, error) {
		if !mask.GetBit(l) {
			return newBitset(t.Bits()), nil
		}
		data, err := w.read(space, addrs.lane(l)[0], t.Bytes())
		if err != nil {
			return nil, err
		}
		return fromBytes(data, t.Bits()), nil
	})
	if err != nil {
		return nil, err
	}
	return blend(mask, loaded, fallback), nil
}

// store writes val at ptr for active lanes whose predicate, if any, is set.
// Lanes are written in lane order.
func (w *warp) store(ptr, val *ir.Value, active simt.Mask, pred *ir.Value) error {
	mask := active
	if pred != nil {
		mask = simt.MaskAnd(active, w.reg(pred).truthy())
	}
	if simt.AllFalse(mask) {
		return nil
	}
	addrs, vals := w.reg(ptr), w.reg(val)
	n := val.Type.Bytes()
	w.ctr.laneStores += int64(mask.CountTrue())
	for l := range w.lanes {
		if !mask.GetBit(l) {
			continue
		}
		if err := w.writeMem(ptr.Type.Space, addrs.lane(l)[0], vals.lane(l).toBytes(n)); err != nil {
			return err
		}
	}
	return nil
}

func (w *warp) call(op *ir.Op, active simt.Mask) (reg, error) {
	isLoad, ok := predicatedSymbols[op.Callee]
	if !ok {
		return nil, fmt.Errorf("%w: @%s", ErrUnknownCallee, op.Callee)
	}
	if len(op.Operands) != 3 {
		return nil, fmt.Errorf("@%s: want 3 operands, got %d", op.Callee, len(op.Operands))
	}
	if isLoad {
		ptr, pred, other := op.Operands[0], op.Operands[1], op.Operands[2]
		return w.load(op.Result().Type, ptr, active, pred, other)
	}
	ptr, val, pred := op.Operands[0], op.Operands[1], op.Operands[2]
	return nil, w.store(ptr, val, active, pred)
}

// ---- Lane exchange ----

// exchange computes the source lane of every lane and gathers the value
// operand from it.
func (w *warp) exchange(op *ir.Op) (reg, error) {
	ws := w.lanes
	src := make([]int32, ws)
	var val *ir.Value

	switch op.Code {
	case ir.OpShflSync:
		val = op.Operands[0]
		lane := w.reg(op.Operands[1])
		clamp := int(op.Imm)
		for l := range ws {
			b := int(lane.lane(l)[0] & math.MaxUint32)
			var j int
			var ok bool
			switch op.Shfl {
			case "up":
				j = l - b
				ok = j >= clamp
			case "bfly":
				j = l ^ b
				ok = j <= clamp
			case "idx":
				j = b & (ws - 1)
				ok = j <= clamp
			default:
				return nil, fmt.Errorf("%w: shfl.sync mode %q", ErrUnsupported, op.Shfl)
			}
			if !ok || j < 0 || j >= ws {
				j = l
			}
			src[l] = int32(j)
		}

	case ir.OpDsBpermute:
		addr := w.reg(op.Operands[0])
		val = op.Operands[1]
		for l := range ws {
			src[l] = int32((addr.lane(l)[0] >> 2) & uint64(ws-1))
		}

	case ir.OpDsSwizzle:
		val = op.Operands[0]
		off := int(op.Imm)
		for l := range ws {
			var j int
			if off&0x8000 != 0 {
				j = (l &^ 3) | ((off >> (2 * (l & 3))) & 3)
			} else {
				and, or, xor := off&0x1f, (off>>5)&0x1f, (off>>10)&0x1f
				j = (l &^ 0x1f) | ((((l & 0x1f) & and) | or) ^ xor)
			}
			if j >= ws {
				j = l
			}
			src[l] = int32(j)
		}

	case ir.OpDPP:
		val = op.Operands[0]
		ctrl := int(op.Imm)
		for l := range ws {
			var j int
			switch {
			case ctrl <= 0xff:
				j = (l &^ 3) | ((ctrl >> (2 * (l & 3))) & 3)
			case ctrl >= 0x121 && ctrl <= 0x12f:
				n := ctrl - 0x120
				j = (l &^ 15) | (((l & 15) - n) & 15)
			default:
				return nil, fmt.Errorf("%w: dpp control %#x", ErrUnsupported, ctrl)
			}
			if j >= ws {
				j = l
			}
			src[l] = int32(j)
		}

	case ir.OpWarpShuffle:
		val = op.Operands[0]
		var index reg
		if len(op.Operands) > 1 {
			index = w.reg(op.Operands[1])
		}
		imm := int(op.Imm)
		for l := range ws {
			var j int
			switch op.Shfl {
			case "xor":
				j = l ^ imm
			case "up":
				j = l - imm
			case "idx":
				if index != nil {
					j = int(index.lane(l)[0] & uint64(ws-1))
				} else {
					j = imm & (ws - 1)
				}
			default:
				return nil, fmt.Errorf("%w: warp_shuffle mode %q", ErrUnsupported, op.Shfl)
			}
			if j < 0 || j >= ws {
				j = l
			}
			src[l] = int32(j)
		}
	}

	w.ctr.exchanges++
	return gather(w.reg(val), src), nil
}
