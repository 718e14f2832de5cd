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

package lower

import (
	"fmt"

	"github.com/ajroetker/go-warplower/ir"
)

// Split maps a logical value of Type onto Count native-width chunks of type
// Chunk, held in declared bit order inside a Carrier value. Vectors whose
// lanes divide evenly are split by lanes; anything else is reinterpreted as
// a vector of integers, zero-extended by PadBits when the width is not a
// multiple of the chunk width.
type Split struct {
	Type    ir.Type
	Carrier ir.Type
	Chunk   ir.Type
	Count   int
	PadBits int

	byLanes bool
}

// SplitWidth returns the chunking of t for memory accesses of at most
// maxBits bits. Types that fit need no split (Count 1, identity packing).
func SplitWidth(t ir.Type, maxBits int) (Split, error) {
	bits := t.Bits()
	if bits <= maxBits {
		return Split{Type: t, Carrier: t, Chunk: t, Count: 1, byLanes: true}, nil
	}
	if bits%8 != 0 {
		return Split{}, fmt.Errorf("%s is %d bits, not a whole number of bytes", t, bits)
	}
	if t.IsVector() {
		elemBits := t.Elem().Bits()
		if per := maxBits / elemBits; per >= 1 && elemBits%8 == 0 && t.Lanes%per == 0 {
			return Split{
				Type:    t,
				Carrier: t,
				Chunk:   ir.Vector(per, t.Elem()),
				Count:   t.Lanes / per,
				byLanes: true,
			}, nil
		}
	}
	chunkBits := maxBits
	for bits%chunkBits != 0 {
		chunkBits /= 2
	}
	chunk := ir.Int(chunkBits)
	return Split{
		Type:    t,
		Carrier: ir.Vector(bits/chunkBits, chunk),
		Chunk:   chunk,
		Count:   bits / chunkBits,
	}, nil
}

// SplitShuffle returns the chunking of t into lane-exchange operands of
// exactly bits bits. Narrow values become one zero-extended chunk.
func SplitShuffle(t ir.Type, bits int) Split {
	total := t.Bits()
	padded := (total + bits - 1) / bits * bits
	count := padded / bits
	chunk := ir.Int(bits)
	carrier := chunk
	if count > 1 {
		carrier = ir.Vector(count, chunk)
	}
	return Split{
		Type:    t,
		Carrier: carrier,
		Chunk:   chunk,
		Count:   count,
		PadBits: padded - total,
	}
}

// identity reports whether packing is a no-op.
func (s Split) identity() bool {
	return s.byLanes
}

// ChunkBytes returns the memory footprint of one chunk.
func (s Split) ChunkBytes() int {
	return s.Chunk.Bytes()
}

// Pack converts v to its carrier form.
func (s Split) Pack(b *ir.Builder, loc ir.Location, v *ir.Value) *ir.Value {
	if s.identity() {
		return v
	}
	total := s.Type.Bits()
	w := b.Bitcast(loc, v, ir.Int(total))
	if s.PadBits > 0 {
		w = b.ZExt(loc, w, ir.Int(total+s.PadBits))
	}
	return b.Bitcast(loc, w, s.Carrier)
}

// Unpack converts a carrier value back to Type.
func (s Split) Unpack(b *ir.Builder, loc ir.Location, c *ir.Value) *ir.Value {
	if s.identity() {
		return c
	}
	total := s.Type.Bits()
	w := b.Bitcast(loc, c, ir.Int(total+s.PadBits))
	if s.PadBits > 0 {
		w = b.Trunc(loc, w, ir.Int(total))
	}
	return b.Bitcast(loc, w, s.Type)
}

// Extract reads chunk k of a packed value.
func (s Split) Extract(b *ir.Builder, loc ir.Location, packed *ir.Value, k int) *ir.Value {
	if s.Count == 1 {
		return packed
	}
	if s.byLanes {
		return b.ExtractSlice(loc, packed, k*s.Chunk.Lanes, s.Chunk.Lanes)
	}
	return b.ExtractElement(loc, packed, k)
}

// Insert writes chunk k into a packed value.
func (s Split) Insert(b *ir.Builder, loc ir.Location, packed, piece *ir.Value, k int) *ir.Value {
	if s.Count == 1 {
		return piece
	}
	if s.byLanes {
		return b.InsertSlice(loc, packed, piece, k*s.Chunk.Lanes)
	}
	return b.InsertElement(loc, packed, piece, k)
}

// Assemble builds a value of Type from Count chunks produced in order by fn.
func (s Split) Assemble(b *ir.Builder, loc ir.Location, fn func(k int) (*ir.Value, error)) (*ir.Value, error) {
	var acc *ir.Value
	if s.Count > 1 {
		acc = b.Undef(loc, s.Carrier)
	}
	for k := range s.Count {
		piece, err := fn(k)
		if err != nil {
			return nil, err
		}
		acc = s.Insert(b, loc, acc, piece, k)
	}
	return s.Unpack(b, loc, acc), nil
}

// Each calls fn on every chunk of v in order.
func (s Split) Each(b *ir.Builder, loc ir.Location, v *ir.Value, fn func(k int, chunk *ir.Value) error) error {
	packed := s.Pack(b, loc, v)
	for k := range s.Count {
		if err := fn(k, s.Extract(b, loc, packed, k)); err != nil {
			return err
		}
	}
	return nil
}

// Apply maps fn over the chunks of v and reassembles the results, so a
// chunk-wise operation behaves like the same operation on the whole value.
func (s Split) Apply(b *ir.Builder, loc ir.Location, v *ir.Value, fn func(k int, chunk *ir.Value) (*ir.Value, error)) (*ir.Value, error) {
	packed := s.Pack(b, loc, v)
	return s.Assemble(b, loc, func(k int) (*ir.Value, error) {
		return fn(k, s.Extract(b, loc, packed, k))
	})
}
