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
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Printer renders IR as text. Values are renumbered %0, %1, ... in
// definition order and blocks ^bb0, ^bb1, ... in layout order, so the
// output does not depend on how many values a rewrite allocated.
type Printer struct {
	buf    *bytes.Buffer
	values map[*Value]int
	blocks map[*Block]int
}

// NewPrinter creates a new printer.
func NewPrinter() *Printer {
	return &Printer{buf: &bytes.Buffer{}}
}

// PrintFunc renders a single function.
func PrintFunc(f *Func) string {
	return NewPrinter().Func(f)
}

// PrintModule renders declarations followed by every function.
func PrintModule(m *Module) string {
	p := NewPrinter()
	var sb strings.Builder
	for _, d := range m.Decls() {
		if d.HasResult {
			fmt.Fprintf(&sb, "declare @%s : value\n", d.Name)
		} else {
			fmt.Fprintf(&sb, "declare @%s\n", d.Name)
		}
	}
	for i, f := range m.Funcs {
		if i > 0 || sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Func(f))
	}
	return sb.String()
}

// Func renders f.
func (p *Printer) Func(f *Func) string {
	p.buf.Reset()
	p.number(f)

	p.writef("func @%s {\n", f.Name)
	for _, blk := range f.Blocks {
		p.block(blk)
	}
	p.writef("}\n")
	return p.buf.String()
}

func (p *Printer) number(f *Func) {
	p.values = make(map[*Value]int)
	p.blocks = make(map[*Block]int)
	next := 0
	for i, blk := range f.Blocks {
		p.blocks[blk] = i
		for _, a := range blk.Args {
			p.values[a] = next
			next++
		}
		for _, op := range blk.Ops {
			for _, r := range op.Results {
				p.values[r] = next
				next++
			}
		}
	}
}

func (p *Printer) writef(format string, args ...any) {
	fmt.Fprintf(p.buf, format, args...)
}

func (p *Printer) val(v *Value) string {
	if n, ok := p.values[v]; ok {
		return "%" + strconv.Itoa(n)
	}
	return "%<undef>"
}

func (p *Printer) vals(vs []*Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = p.val(v)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) succ(s *Successor) string {
	name := fmt.Sprintf("^bb%d", p.blocks[s.Block])
	if len(s.Args) == 0 {
		return name
	}
	return name + "(" + p.vals(s.Args) + ")"
}

func (p *Printer) block(blk *Block) {
	p.writef("^bb%d", p.blocks[blk])
	if len(blk.Args) > 0 {
		parts := make([]string, len(blk.Args))
		for i, a := range blk.Args {
			parts[i] = p.val(a) + ": " + a.Type.String()
		}
		p.writef("(%s)", strings.Join(parts, ", "))
	}
	p.writef(":\n")
	for _, op := range blk.Ops {
		p.writef("  %s\n", p.op(op))
	}
}

// op renders the body of one operation.
func (p *Printer) op(op *Op) string {
	var sb strings.Builder
	if r := op.Result(); r != nil {
		sb.WriteString(p.val(r))
		sb.WriteString(" = ")
	}
	sb.WriteString(op.Code.String())

	switch op.Code {
	case OpConst:
		if op.Result().Type.Elem().IsFloat() {
			sb.WriteString(" " + strconv.FormatFloat(op.FImm, 'g', -1, 64))
		} else {
			sb.WriteString(" " + strconv.FormatInt(op.Imm, 10))
		}
	case OpICmp:
		fmt.Fprintf(&sb, " %s %s", op.Pred, p.vals(op.Operands))
	case OpExtractElement:
		fmt.Fprintf(&sb, " %s[%d]", p.val(op.Operands[0]), op.Imm)
	case OpInsertElement, OpInsertSlice:
		fmt.Fprintf(&sb, " %s[%d], %s", p.val(op.Operands[0]), op.Imm, p.val(op.Operands[1]))
	case OpExtractSlice:
		fmt.Fprintf(&sb, " %s[%d:%d]", p.val(op.Operands[0]), op.Imm, int(op.Imm)+op.Len)
	case OpLoad, OpStore:
		sb.WriteString(" " + p.vals(op.Operands))
		if op.Hint != "" {
			fmt.Fprintf(&sb, " {hint = %q}", op.Hint)
		}
	case OpCall:
		fmt.Fprintf(&sb, " @%s(%s)", op.Callee, p.vals(op.Operands))
	case OpBr:
		sb.WriteString(" " + p.succ(op.Succs[0]))
	case OpCondBr:
		fmt.Fprintf(&sb, " %s, %s, %s", p.val(op.Operands[0]), p.succ(op.Succs[0]), p.succ(op.Succs[1]))
	case OpThreadID, OpBlockID, OpGetProgramID:
		sb.WriteString(" " + AxisName(op.Imm))
	case OpShflSync:
		fmt.Fprintf(&sb, " %s %s {clamp = %d}", op.Shfl, p.vals(op.Operands), op.Imm)
	case OpDsSwizzle:
		fmt.Fprintf(&sb, " %s {offset = %#x}", p.vals(op.Operands), op.Imm)
	case OpDPP:
		fmt.Fprintf(&sb, " %s {ctrl = %#x}", p.vals(op.Operands), op.Imm)
	case OpMaskedLoad, OpMaskedStore:
		sb.WriteString(" " + p.vals(op.Operands))
		if op.Cache != "" {
			fmt.Fprintf(&sb, " {cache = %q}", op.Cache)
		}
	case OpWarpShuffle:
		fmt.Fprintf(&sb, " %s %s", op.Shfl, p.vals(op.Operands))
		if len(op.Operands) == 1 {
			fmt.Fprintf(&sb, " {imm = %d}", op.Imm)
		}
	default:
		if len(op.Operands) > 0 {
			sb.WriteString(" " + p.vals(op.Operands))
		}
	}

	if r := op.Result(); r != nil {
		sb.WriteString(" : " + r.Type.String())
	}
	return sb.String()
}
