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

// Package simt provides warp registers: one value per lane of a SIMT warp,
// plus lane masks for predication and divergence.
//
// Unlike a host SIMD vector, the number of lanes is a property of the
// target warp (32 or 64 lanes typically) and is passed explicitly when a
// register is created:
//
//	lane := simt.Iota[uint64](64)
//	mask := simt.FirstN(64, 40)
//	v := simt.IfThenElse(mask, lane, simt.Set[uint64](64, 0))
package simt

// Floats is a constraint for floating-point types.
type Floats interface {
	~float32 | ~float64
}

// SignedInts is a constraint for signed integer types.
type SignedInts interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// UnsignedInts is a constraint for unsigned integer types.
type UnsignedInts interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Integers is a constraint for all integer types.
type Integers interface {
	SignedInts | UnsignedInts
}

// Lanes is a constraint for all types that can be held in a lane.
type Lanes interface {
	Floats | Integers
}

// Vec is a warp register holding one T per lane.
//
// Vec instances should not be created directly; use Load, Set, Zero or Iota.
type Vec[T Lanes] struct {
	data []T
}

// Data returns the underlying per-lane values.
// This is primarily for testing and inspection.
func (v Vec[T]) Data() []T {
	return v.data
}

// Store writes the register's lanes to a slice.
func (v Vec[T]) Store(dst []T) {
	n := min(len(dst), len(v.data))
	copy(dst[:n], v.data[:n])
}

// Mask is a per-lane boolean, used both for predicates and for the set of
// lanes that are currently executing.
type Mask struct {
	// bit i is set if lane i is active.
	bits []bool
}

// MaskFromBits builds a mask from explicit lane bits. The slice is copied.
func MaskFromBits(bits []bool) Mask {
	out := make([]bool, len(bits))
	copy(out, bits)
	return Mask{bits: out}
}

// Bits returns a copy of the lane bits.
func (m Mask) Bits() []bool {
	out := make([]bool, len(m.bits))
	copy(out, m.bits)
	return out
}

// CountTrue returns the number of active lanes in the mask.
func (m Mask) CountTrue() int {
	count := 0
	for _, bit := range m.bits {
		if bit {
			count++
		}
	}
	return count
}

// GetBit returns whether lane i is active.
func (m Mask) GetBit(i int) bool {
	if i < 0 || i >= len(m.bits) {
		return false
	}
	return m.bits[i]
}
