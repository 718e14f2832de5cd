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

package ir

import (
	"fmt"
	"slices"
)

// Builder inserts operations into a function at an insertion point.
// It is the rewriting context of the lowering: one Builder per function,
// used by a single goroutine at a time.
//
// Usage:
//
//	b := ir.NewBuilder(fn)
//	b.SetInsertionPointBefore(op)
//	v := b.Add(op.Loc, x, y)
type Builder struct {
	fn    *Func
	block *Block
	pos   int
}

// NewBuilder creates a builder positioned at the end of fn's entry block.
func NewBuilder(fn *Func) *Builder {
	b := &Builder{fn: fn}
	b.SetInsertionPointToEnd(fn.Entry())
	return b
}

// Func returns the function being rewritten.
func (b *Builder) Func() *Func { return b.fn }

// Module returns the enclosing module.
func (b *Builder) Module() *Module { return b.fn.Module }

// Block returns the current insertion block.
func (b *Builder) Block() *Block { return b.block }

// SetInsertionPointToEnd positions the builder after the last op of blk.
func (b *Builder) SetInsertionPointToEnd(blk *Block) {
	b.block = blk
	b.pos = len(blk.Ops)
}

// SetInsertionPointToStart positions the builder before the first op of blk.
func (b *Builder) SetInsertionPointToStart(blk *Block) {
	b.block = blk
	b.pos = 0
}

// SetInsertionPointBefore positions the builder right before op.
func (b *Builder) SetInsertionPointBefore(op *Op) {
	b.block = op.Block
	b.pos = op.Block.indexOf(op)
}

// SetInsertionPointAfter positions the builder right after op.
func (b *Builder) SetInsertionPointAfter(op *Op) {
	b.block = op.Block
	b.pos = op.Block.indexOf(op) + 1
}

// SplitBlock moves every op from the insertion point to the end of the
// current block into a new block placed right after it, and positions the
// builder at the start of the new block. The current block is left without
// a terminator; the caller must end it.
func (b *Builder) SplitBlock() *Block {
	cur := b.block
	next := b.fn.newBlockAfter(cur)
	moved := slices.Clone(cur.Ops[b.pos:])
	cur.Ops = cur.Ops[:b.pos]
	for _, op := range moved {
		op.Block = next
	}
	next.Ops = moved
	b.SetInsertionPointToStart(next)
	return next
}

// CreateBlockAfter creates an empty block after prev with the given
// argument types. The insertion point is unchanged.
func (b *Builder) CreateBlockAfter(prev *Block, argTypes ...Type) *Block {
	blk := b.fn.newBlockAfter(prev)
	for _, t := range argTypes {
		blk.AddArg(t)
	}
	return blk
}

// Erase removes op from its block. Its results must have no remaining uses.
func (b *Builder) Erase(op *Op) error {
	for _, r := range op.Results {
		if b.fn.HasUses(r) {
			return fmt.Errorf("erase %s: result %s still has uses", op, r)
		}
	}
	blk := op.Block
	idx := blk.indexOf(op)
	if idx < 0 {
		return fmt.Errorf("erase %s: not in its block", op)
	}
	blk.Ops = slices.Delete(blk.Ops, idx, idx+1)
	if blk == b.block && idx < b.pos {
		b.pos--
	}
	op.Block = nil
	return nil
}

// Replace rewrites all uses of op's single result to repl and erases op.
func (b *Builder) Replace(op *Op, repl *Value) error {
	if r := op.Result(); r != nil {
		b.fn.ReplaceAllUsesWith(r, repl)
	}
	return b.Erase(op)
}

// insert places op at the insertion point and advances past it.
func (b *Builder) insert(op *Op) *Op {
	op.Block = b.block
	b.block.Ops = slices.Insert(b.block.Ops, b.pos, op)
	b.pos++
	return op
}

// Create builds and inserts an op with the given result type (Void for
// none) and operands.
func (b *Builder) Create(loc Location, code Opcode, result Type, operands ...*Value) *Op {
	op := b.fn.newOp(code, loc)
	op.Operands = operands
	if !result.IsVoid() {
		v := b.fn.newValue(result)
		v.Def = op
		op.Results = []*Value{v}
	}
	return b.insert(op)
}

// ---- Constants ----

// Const creates an integer constant of type t.
func (b *Builder) Const(loc Location, t Type, value int64) *Value {
	op := b.Create(loc, OpConst, t)
	op.Imm = value
	return op.Result()
}

// ConstFloat creates a float constant of type t.
func (b *Builder) ConstFloat(loc Location, t Type, value float64) *Value {
	op := b.Create(loc, OpConst, t)
	op.FImm = value
	return op.Result()
}

// I32 creates an i32 constant.
func (b *Builder) I32(loc Location, value int64) *Value {
	return b.Const(loc, I32, value)
}

// True creates the i1 constant 1.
func (b *Builder) True(loc Location) *Value {
	return b.Const(loc, I1, 1)
}

// False creates the i1 constant 0.
func (b *Builder) False(loc Location) *Value {
	return b.Const(loc, I1, 0)
}

// Undef creates a value of type t with unspecified bits.
func (b *Builder) Undef(loc Location, t Type) *Value {
	return b.Create(loc, OpUndef, t).Result()
}

// ---- Arithmetic ----

func (b *Builder) binary(loc Location, code Opcode, x, y *Value) *Value {
	return b.Create(loc, code, x.Type, x, y).Result()
}

// Add creates x + y.
func (b *Builder) Add(loc Location, x, y *Value) *Value { return b.binary(loc, OpAdd, x, y) }

// Sub creates x - y.
func (b *Builder) Sub(loc Location, x, y *Value) *Value { return b.binary(loc, OpSub, x, y) }

// Mul creates x * y.
func (b *Builder) Mul(loc Location, x, y *Value) *Value { return b.binary(loc, OpMul, x, y) }

// URem creates x % y (unsigned).
func (b *Builder) URem(loc Location, x, y *Value) *Value { return b.binary(loc, OpURem, x, y) }

// And creates x & y.
func (b *Builder) And(loc Location, x, y *Value) *Value { return b.binary(loc, OpAnd, x, y) }

// Or creates x | y.
func (b *Builder) Or(loc Location, x, y *Value) *Value { return b.binary(loc, OpOr, x, y) }

// Xor creates x ^ y.
func (b *Builder) Xor(loc Location, x, y *Value) *Value { return b.binary(loc, OpXor, x, y) }

// Shl creates x << y.
func (b *Builder) Shl(loc Location, x, y *Value) *Value { return b.binary(loc, OpShl, x, y) }

// LShr creates x >> y (logical).
func (b *Builder) LShr(loc Location, x, y *Value) *Value { return b.binary(loc, OpLShr, x, y) }

// FAdd creates x + y for floats.
func (b *Builder) FAdd(loc Location, x, y *Value) *Value { return b.binary(loc, OpFAdd, x, y) }

// FMul creates x * y for floats.
func (b *Builder) FMul(loc Location, x, y *Value) *Value { return b.binary(loc, OpFMul, x, y) }

// ICmp compares x and y and yields i1.
func (b *Builder) ICmp(loc Location, pred CmpPredicate, x, y *Value) *Value {
	op := b.Create(loc, OpICmp, I1, x, y)
	op.Pred = pred
	return op.Result()
}

// Select yields x where cond is set and y elsewhere.
func (b *Builder) Select(loc Location, cond, x, y *Value) *Value {
	return b.Create(loc, OpSelect, x.Type, cond, x, y).Result()
}

// ---- Casts ----

// ZExt zero-extends v to t.
func (b *Builder) ZExt(loc Location, v *Value, t Type) *Value {
	return b.Create(loc, OpZExt, t, v).Result()
}

// SExt sign-extends v to t.
func (b *Builder) SExt(loc Location, v *Value, t Type) *Value {
	return b.Create(loc, OpSExt, t, v).Result()
}

// Trunc truncates v to t.
func (b *Builder) Trunc(loc Location, v *Value, t Type) *Value {
	return b.Create(loc, OpTrunc, t, v).Result()
}

// Bitcast reinterprets v as t. Both types must have the same bit width.
func (b *Builder) Bitcast(loc Location, v *Value, t Type) *Value {
	if v.Type == t {
		return v
	}
	return b.Create(loc, OpBitcast, t, v).Result()
}

// ---- Vector element access ----

// ExtractElement reads element idx of vec.
func (b *Builder) ExtractElement(loc Location, vec *Value, idx int) *Value {
	op := b.Create(loc, OpExtractElement, vec.Type.Elem(), vec)
	op.Imm = int64(idx)
	return op.Result()
}

// InsertElement writes elem into element idx of vec.
func (b *Builder) InsertElement(loc Location, vec, elem *Value, idx int) *Value {
	op := b.Create(loc, OpInsertElement, vec.Type, vec, elem)
	op.Imm = int64(idx)
	return op.Result()
}

// ExtractSlice reads n elements of vec starting at start.
func (b *Builder) ExtractSlice(loc Location, vec *Value, start, n int) *Value {
	op := b.Create(loc, OpExtractSlice, Vector(n, vec.Type.Elem()), vec)
	op.Imm = int64(start)
	op.Len = n
	return op.Result()
}

// InsertSlice writes the vector sub into vec starting at start.
func (b *Builder) InsertSlice(loc Location, vec, sub *Value, start int) *Value {
	op := b.Create(loc, OpInsertSlice, vec.Type, vec, sub)
	op.Imm = int64(start)
	return op.Result()
}

// ---- Memory ----

// PtrAdd offsets ptr by a byte count.
func (b *Builder) PtrAdd(loc Location, ptr, offset *Value) *Value {
	return b.Create(loc, OpPtrAdd, ptr.Type, ptr, offset).Result()
}

// Load creates an unpredicated load of t from ptr with a cache hint.
func (b *Builder) Load(loc Location, t Type, ptr *Value, hint string) *Value {
	op := b.Create(loc, OpLoad, t, ptr)
	op.Hint = hint
	return op.Result()
}

// Store creates an unpredicated store of val to ptr with a cache hint.
func (b *Builder) Store(loc Location, ptr, val *Value, hint string) *Op {
	op := b.Create(loc, OpStore, Void, val, ptr)
	op.Hint = hint
	return op
}

// Call calls decl. result is Void for declarations without a result.
func (b *Builder) Call(loc Location, decl *Decl, result Type, args ...*Value) *Op {
	op := b.Create(loc, OpCall, result, args...)
	op.Callee = decl.Name
	return op
}

// ---- Control flow ----

// Br branches to dest passing args.
func (b *Builder) Br(loc Location, dest *Block, args ...*Value) *Op {
	op := b.Create(loc, OpBr, Void)
	op.Succs = []*Successor{{Block: dest, Args: args}}
	return op
}

// CondBr branches to t when cond is set and to f otherwise.
func (b *Builder) CondBr(loc Location, cond *Value, t *Block, targs []*Value, f *Block, fargs []*Value) *Op {
	op := b.Create(loc, OpCondBr, Void, cond)
	op.Succs = []*Successor{{Block: t, Args: targs}, {Block: f, Args: fargs}}
	return op
}

// Return ends the function.
func (b *Builder) Return(loc Location) *Op {
	return b.Create(loc, OpReturn, Void)
}

// ---- Identifiers ----

// ThreadID reads the thread index within the program along axis.
func (b *Builder) ThreadID(loc Location, axis int) *Value {
	op := b.Create(loc, OpThreadID, I32)
	op.Imm = int64(axis)
	return op.Result()
}

// BlockID reads the program index along axis.
func (b *Builder) BlockID(loc Location, axis int) *Value {
	op := b.Create(loc, OpBlockID, I32)
	op.Imm = int64(axis)
	return op.Result()
}

// ---- Target lane exchange ----

// ShflSync creates an nvptx shuffle of val; mode is bfly, up or idx.
func (b *Builder) ShflSync(loc Location, mode string, val, lane *Value, clamp int) *Value {
	op := b.Create(loc, OpShflSync, val.Type, val, lane)
	op.Shfl = mode
	op.Imm = int64(clamp)
	return op.Result()
}

// DsBpermute reads val from the lane whose byte address is addr.
func (b *Builder) DsBpermute(loc Location, addr, val *Value) *Value {
	return b.Create(loc, OpDsBpermute, val.Type, addr, val).Result()
}

// DsSwizzle exchanges val within groups of 32 lanes by offset.
func (b *Builder) DsSwizzle(loc Location, val *Value, offset int) *Value {
	op := b.Create(loc, OpDsSwizzle, val.Type, val)
	op.Imm = int64(offset)
	return op.Result()
}

// DPP moves val between lanes by the DPP control ctrl.
func (b *Builder) DPP(loc Location, val *Value, ctrl int) *Value {
	op := b.Create(loc, OpDPP, val.Type, val)
	op.Imm = int64(ctrl)
	return op.Result()
}

// ---- High-level operations ----

// MaskedLoad creates a high-level predicated load.
func (b *Builder) MaskedLoad(loc Location, ptr *Value, elemTy Type, pred, other *Value, cache string) *Value {
	op := b.Create(loc, OpMaskedLoad, elemTy, ptr, pred, other)
	op.Cache = cache
	return op.Result()
}

// MaskedStore creates a high-level predicated store.
func (b *Builder) MaskedStore(loc Location, ptr, val, pred *Value, cache string) *Op {
	op := b.Create(loc, OpMaskedStore, Void, ptr, val, pred)
	op.Cache = cache
	return op
}

// WarpShuffle creates a high-level lane shuffle. mode is xor, up or idx.
// When index is nil the lane operand is the immediate imm.
func (b *Builder) WarpShuffle(loc Location, mode string, val *Value, imm int, index *Value) *Value {
	operands := []*Value{val}
	if index != nil {
		operands = append(operands, index)
	}
	op := b.Create(loc, OpWarpShuffle, val.Type, operands...)
	op.Shfl = mode
	op.Imm = int64(imm)
	return op.Result()
}

// GetProgramID creates a high-level program index read.
func (b *Builder) GetProgramID(loc Location, axis int) *Value {
	op := b.Create(loc, OpGetProgramID, I32)
	op.Imm = int64(axis)
	return op.Result()
}
