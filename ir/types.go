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

// Package ir provides a small typed SSA intermediate representation for
// SIMT kernels: values are per-lane, blocks carry arguments instead of phi
// nodes, and a Builder inserts new operations at an explicit program point.
//
// The lowering in package lower consumes high-level operations
// (masked_load, masked_store, warp_shuffle, get_program_id) and replaces
// them with target-level operations built through the same Builder.
package ir

import (
	"fmt"
	"strings"
)

// Kind is the element kind of a Type.
type Kind uint8

const (
	// KindVoid is the type of operations without a result.
	KindVoid Kind = iota

	// KindInt is a two's-complement integer of arbitrary width (i1 is a predicate).
	KindInt

	// KindFloat is an IEEE 754 float (f16, f32, f64).
	KindFloat

	// KindBFloat is bfloat16.
	KindBFloat

	// KindPtr is a 64-bit pointer into an address space.
	KindPtr
)

// String returns a human-readable name for the Kind.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBFloat:
		return "bfloat"
	case KindPtr:
		return "ptr"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// AddrSpace identifies a memory address space. The numbering follows the
// AMDGPU convention.
type AddrSpace uint8

const (
	Generic AddrSpace = 0
	Global  AddrSpace = 1
	Shared  AddrSpace = 3
)

// String returns the address space name.
func (s AddrSpace) String() string {
	switch s {
	case Generic:
		return "generic"
	case Global:
		return "global"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("addrspace(%d)", s)
	}
}

// Type is the static type of a Value. It is comparable, so two types are
// equal exactly when == holds.
type Type struct {
	// Kind is the element kind.
	Kind Kind

	// Width is the element width in bits.
	Width int

	// Lanes is the vector length, or 0 for scalars.
	Lanes int

	// Space is the address space for pointers.
	Space AddrSpace
}

// Common types.
var (
	Void = Type{Kind: KindVoid}
	I1   = Int(1)
	I8   = Int(8)
	I16  = Int(16)
	I32  = Int(32)
	I64  = Int(64)
	F16  = Type{Kind: KindFloat, Width: 16}
	BF16 = Type{Kind: KindBFloat, Width: 16}
	F32  = Type{Kind: KindFloat, Width: 32}
	F64  = Type{Kind: KindFloat, Width: 64}
)

// Int returns the integer type of the given width.
func Int(width int) Type {
	return Type{Kind: KindInt, Width: width}
}

// Ptr returns a pointer type into space.
func Ptr(space AddrSpace) Type {
	return Type{Kind: KindPtr, Width: 64, Space: space}
}

// Vector returns vector<n x elem>. elem must be a scalar.
func Vector(n int, elem Type) Type {
	elem.Lanes = n
	return elem
}

// IsVector reports whether t is a vector type.
func (t Type) IsVector() bool { return t.Lanes > 0 }

// IsVoid reports whether t is void.
func (t Type) IsVoid() bool { return t.Kind == KindVoid }

// IsInt reports whether t is a scalar integer.
func (t Type) IsInt() bool { return t.Kind == KindInt && t.Lanes == 0 }

// IsFloat reports whether t is a scalar float or bfloat.
func (t Type) IsFloat() bool {
	return (t.Kind == KindFloat || t.Kind == KindBFloat) && t.Lanes == 0
}

// IsPtr reports whether t is a pointer.
func (t Type) IsPtr() bool { return t.Kind == KindPtr && t.Lanes == 0 }

// Elem returns the element type of a vector, or t itself for scalars.
func (t Type) Elem() Type {
	t.Lanes = 0
	return t
}

// Len returns the number of elements: Lanes for vectors, 1 for scalars.
func (t Type) Len() int {
	if t.Lanes > 0 {
		return t.Lanes
	}
	return 1
}

// Bits returns the total bit width of t.
func (t Type) Bits() int {
	if t.Kind == KindVoid {
		return 0
	}
	return t.Width * t.Len()
}

// Bytes returns the storage size of t in bytes, rounding partial bytes up.
func (t Type) Bytes() int {
	return (t.Bits() + 7) / 8
}

// String returns the textual form: i32, f16, bf16, ptr<1>, vector<4xf32>.
func (t Type) String() string {
	if t.Lanes > 0 {
		return fmt.Sprintf("vector<%dx%s>", t.Lanes, t.Elem())
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("i%d", t.Width)
	case KindFloat:
		return fmt.Sprintf("f%d", t.Width)
	case KindBFloat:
		return "bf16"
	case KindPtr:
		return fmt.Sprintf("ptr<%d>", t.Space)
	default:
		return t.Kind.String()
	}
}

// Location is source-position metadata attached to every operation.
// It is informational and propagated unchanged through lowering.
type Location struct {
	File string
	Line int
	Col  int

	// Name optionally labels the location (a kernel or variable name).
	Name string
}

// Loc is shorthand for a file:line:col location.
func Loc(file string, line, col int) Location {
	return Location{File: file, Line: line, Col: col}
}

// UnknownLoc is the location of synthesized code with no source position.
var UnknownLoc = Location{}

// IsUnknown reports whether l carries no position.
func (l Location) IsUnknown() bool {
	return l.File == "" && l.Line == 0 && l.Name == ""
}

// String formats the location as file:line:col, prefixed by the name if set.
func (l Location) String() string {
	if l.IsUnknown() {
		return "unknown"
	}
	var sb strings.Builder
	if l.Name != "" {
		sb.WriteString(l.Name)
		if l.File == "" {
			return sb.String()
		}
		sb.WriteString("@")
	}
	fmt.Fprintf(&sb, "%s:%d:%d", l.File, l.Line, l.Col)
	return sb.String()
}
