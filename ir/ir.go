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
	"sort"
	"sync"
)

// Value is an SSA value: either the result of an Op or a block argument.
// A Value has no lifetime of its own; it belongs to its Func.
type Value struct {
	// ID is unique within the enclosing function.
	ID int

	// Type is the static type of the value (per lane).
	Type Type

	// Def is the defining operation, or nil for block arguments.
	Def *Op

	// Block is the owning block for block arguments.
	Block *Block

	// ArgIndex is the argument position for block arguments.
	ArgIndex int
}

// IsBlockArg reports whether v is a block argument.
func (v *Value) IsBlockArg() bool {
	return v.Def == nil
}

// String returns a debug form of the value.
func (v *Value) String() string {
	return fmt.Sprintf("%%v%d:%s", v.ID, v.Type)
}

// Successor is a branch target together with the values passed to the
// target block's arguments.
type Successor struct {
	Block *Block
	Args  []*Value
}

// Op is a single operation.
type Op struct {
	// ID is unique within the enclosing function.
	ID int

	// Code is the operation.
	Code Opcode

	// Operands are the input values.
	Operands []*Value

	// Results are the produced values (zero or one in practice).
	Results []*Value

	// Loc is the source position, propagated unchanged from the op being
	// lowered.
	Loc Location

	// Block is the block containing this op.
	Block *Block

	// ---- Attributes; meaning depends on Code ----

	// Imm is the integer immediate: constant value, element index, axis,
	// shuffle lane operand or clamp, swizzle offset, DPP control.
	Imm int64

	// FImm is the float immediate of float constants.
	FImm float64

	// Len is the slice length of OpExtractSlice.
	Len int

	// Pred is the comparison of OpICmp.
	Pred CmpPredicate

	// Callee is the symbol called by OpCall.
	Callee string

	// Hint is the cache hint attached to OpLoad and OpStore.
	Hint string

	// Cache is the cache modifier name of high-level memory ops.
	Cache string

	// Shfl is the shuffle mode of OpShflSync and OpWarpShuffle.
	Shfl string

	// Succs are the branch targets of terminators.
	Succs []*Successor
}

// Result returns the single result of the op, or nil.
func (o *Op) Result() *Value {
	if len(o.Results) == 0 {
		return nil
	}
	return o.Results[0]
}

// String returns a debug string representation of the Op.
func (o *Op) String() string {
	return fmt.Sprintf("Op{ID:%d Code:%s Loc:%s}", o.ID, o.Code, o.Loc)
}

// Block is a basic block: arguments followed by ops, the last of which is
// a terminator once the function is complete.
type Block struct {
	// ID is unique within the enclosing function.
	ID int

	// Args are the block arguments; predecessors pass values for them.
	Args []*Value

	// Ops is the ordered list of operations.
	Ops []*Op

	// Func is the enclosing function.
	Func *Func
}

// Terminator returns the final op if it is a terminator, or nil.
func (b *Block) Terminator() *Op {
	if len(b.Ops) == 0 {
		return nil
	}
	last := b.Ops[len(b.Ops)-1]
	if !last.Code.IsTerminator() {
		return nil
	}
	return last
}

// Succs returns the successor blocks of b.
func (b *Block) Succs() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	out := make([]*Block, len(term.Succs))
	for i, s := range term.Succs {
		out[i] = s.Block
	}
	return out
}

// AddArg appends a block argument of type t.
func (b *Block) AddArg(t Type) *Value {
	v := b.Func.newValue(t)
	v.Block = b
	v.ArgIndex = len(b.Args)
	b.Args = append(b.Args, v)
	return v
}

// indexOf returns the position of op in b.Ops, or -1.
func (b *Block) indexOf(op *Op) int {
	return slices.Index(b.Ops, op)
}

// Func is a kernel function.
type Func struct {
	// Name is the symbol name.
	Name string

	// Blocks are the basic blocks; Blocks[0] is the entry.
	Blocks []*Block

	// Module is the enclosing module.
	Module *Module

	nextValue int
	nextOp    int
	nextBlock int
}

// Entry returns the entry block.
func (f *Func) Entry() *Block {
	return f.Blocks[0]
}

// Params returns the function parameters (entry block arguments).
func (f *Func) Params() []*Value {
	return f.Entry().Args
}

// Param returns parameter i.
func (f *Func) Param(i int) *Value {
	return f.Entry().Args[i]
}

func (f *Func) newValue(t Type) *Value {
	v := &Value{ID: f.nextValue, Type: t}
	f.nextValue++
	return v
}

func (f *Func) newOp(code Opcode, loc Location) *Op {
	op := &Op{ID: f.nextOp, Code: code, Loc: loc}
	f.nextOp++
	return op
}

// NewBlock creates a block and appends it to the function.
func (f *Func) NewBlock() *Block {
	blk := &Block{ID: f.nextBlock, Func: f}
	f.nextBlock++
	f.Blocks = append(f.Blocks, blk)
	return blk
}

// newBlockAfter creates a block positioned right after prev.
func (f *Func) newBlockAfter(prev *Block) *Block {
	blk := &Block{ID: f.nextBlock, Func: f}
	f.nextBlock++
	idx := slices.Index(f.Blocks, prev)
	f.Blocks = slices.Insert(f.Blocks, idx+1, blk)
	return blk
}

// Walk calls fn for every op in block order.
func (f *Func) Walk(fn func(op *Op)) {
	for _, blk := range f.Blocks {
		for _, op := range blk.Ops {
			fn(op)
		}
	}
}

// Collect returns all ops for which keep returns true, in block order.
func (f *Func) Collect(keep func(op *Op) bool) []*Op {
	var out []*Op
	f.Walk(func(op *Op) {
		if keep(op) {
			out = append(out, op)
		}
	})
	return out
}

// ReplaceAllUsesWith rewrites every use of old (operands and successor
// arguments) to use repl instead.
func (f *Func) ReplaceAllUsesWith(old, repl *Value) {
	f.Walk(func(op *Op) {
		for i, v := range op.Operands {
			if v == old {
				op.Operands[i] = repl
			}
		}
		for _, s := range op.Succs {
			for i, v := range s.Args {
				if v == old {
					s.Args[i] = repl
				}
			}
		}
	})
}

// HasUses reports whether v is used by any op in f.
func (f *Func) HasUses(v *Value) bool {
	used := false
	f.Walk(func(op *Op) {
		if slices.Contains(op.Operands, v) {
			used = true
		}
		for _, s := range op.Succs {
			if slices.Contains(s.Args, v) {
				used = true
			}
		}
	})
	return used
}

// Decl is an external function declaration, such as a predicated access
// intrinsic. Declarations are overloaded: each call carries its own
// operand and result types.
type Decl struct {
	// Name is the external symbol name.
	Name string

	// HasResult reports whether calls produce a value.
	HasResult bool
}

// Module is a collection of functions and external declarations.
type Module struct {
	// Name is the module name.
	Name string

	// Funcs are the functions in definition order.
	Funcs []*Func

	mu    sync.Mutex
	decls map[string]*Decl
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, decls: make(map[string]*Decl)}
}

// NewFunc creates a function whose entry block has one argument per
// parameter type.
func (m *Module) NewFunc(name string, params ...Type) *Func {
	f := &Func{Name: name, Module: m}
	entry := f.NewBlock()
	for _, t := range params {
		entry.AddArg(t)
	}
	m.Funcs = append(m.Funcs, f)
	return f
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// LookupOrDeclare returns the declaration for name, creating it on first
// use. It is safe for concurrent use by rewrites of different functions.
func (m *Module) LookupOrDeclare(name string, hasResult bool) (*Decl, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.decls[name]; ok {
		if d.HasResult != hasResult {
			return nil, fmt.Errorf("declaration %s redeclared with hasResult=%v (was %v)", name, hasResult, d.HasResult)
		}
		return d, nil
	}
	d := &Decl{Name: name, HasResult: hasResult}
	m.decls[name] = d
	return d, nil
}

// Lookup returns the declaration for name.
func (m *Module) Lookup(name string) (*Decl, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decls[name]
	return d, ok
}

// Decls returns all declarations sorted by name.
func (m *Module) Decls() []*Decl {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Decl, 0, len(m.decls))
	for _, d := range m.decls {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
