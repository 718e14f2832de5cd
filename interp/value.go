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
	"math"

	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/simt"
)

// A lane value is a little-endian bit container: bit i of the value is bit
// i%64 of word i/64. Vector element e of width W occupies bits
// [e*W, (e+1)*W). Bits above the type width are always zero.
type bitset []uint64

func numWords(bits int) int {
	return max(1, (bits+63)/64)
}

func newBitset(bits int) bitset {
	return make(bitset, numWords(bits))
}

func (b bitset) bit(i int) uint64 {
	if i/64 >= len(b) {
		return 0
	}
	return (b[i/64] >> (i % 64)) & 1
}

// slice returns bits [off, off+n) as a new container.
func (b bitset) slice(off, n int) bitset {
	out := newBitset(n)
	for i := range n {
		out[i/64] |= b.bit(off+i) << (i % 64)
	}
	return out
}

// put overwrites bits [off, off+n) with the low n bits of v.
func (b bitset) put(off, n int, v bitset) {
	for i := range n {
		pos := off + i
		m := uint64(1) << (pos % 64)
		if v.bit(i) == 1 {
			b[pos/64] |= m
		} else {
			b[pos/64] &^= m
		}
	}
}

// field reads a field of at most 64 bits.
func (b bitset) field(off, n int) uint64 {
	if off%64+n <= 64 {
		return (b[off/64] >> (off % 64)) & lowMask(n)
	}
	return b.slice(off, n)[0]
}

// setField writes a field of at most 64 bits.
func (b bitset) setField(off, n int, v uint64) {
	b.put(off, n, bitset{v & lowMask(n)})
}

func lowMask(n int) uint64 {
	if n >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<n - 1
}

// signExtend interprets the low n bits of x as two's complement.
func signExtend(x uint64, n int) int64 {
	if n >= 64 {
		return int64(x)
	}
	shift := 64 - n
	return int64(x<<shift) >> shift
}

// fromBytes builds a container of the given width from little-endian bytes.
func fromBytes(data []byte, bits int) bitset {
	out := newBitset(bits)
	for i, v := range data {
		out[i/8] |= uint64(v) << (8 * (i % 8))
	}
	if bits%64 != 0 {
		out[len(out)-1] &= lowMask(bits % 64)
	}
	return out
}

// toBytes serializes the low n bytes of b.
func (b bitset) toBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(b[i/8] >> (8 * (i % 8)))
	}
	return out
}

// ---- Float element encoding ----

func decodeFloat(t ir.Type, x uint64) float64 {
	switch {
	case t.Kind == ir.KindBFloat:
		return float64(simt.BFloat16ToFloat32(uint16(x)))
	case t.Width == 16:
		return float64(simt.Float16ToFloat32(uint16(x)))
	case t.Width == 32:
		return float64(math.Float32frombits(uint32(x)))
	default:
		return math.Float64frombits(x)
	}
}

func encodeFloat(t ir.Type, f float64) uint64 {
	switch {
	case t.Kind == ir.KindBFloat:
		return uint64(simt.Float32ToBFloat16(float32(f)))
	case t.Width == 16:
		return uint64(simt.Float32ToFloat16(float32(f)))
	case t.Width == 32:
		return uint64(math.Float32bits(float32(f)))
	default:
		return math.Float64bits(f)
	}
}

// ---- Warp registers ----

// reg holds one value per lane as words of warp registers: word w of lane
// l is r[w].Data()[l].
type reg []simt.Vec[uint64]

func zeroReg(t ir.Type, lanes int) reg {
	r := make(reg, numWords(t.Bits()))
	for w := range r {
		r[w] = simt.Zero[uint64](lanes)
	}
	return r
}

// broadcastReg holds the same bits in every lane.
func broadcastReg(v bitset, lanes int) reg {
	r := make(reg, len(v))
	for w := range r {
		r[w] = simt.Set(lanes, v[w])
	}
	return r
}

func (r reg) lane(l int) bitset {
	out := make(bitset, len(r))
	for w := range r {
		out[w] = r[w].Data()[l]
	}
	return out
}

func (r reg) setLane(l int, v bitset) {
	for w := range r {
		if w < len(v) {
			r[w].Data()[l] = v[w]
		} else {
			r[w].Data()[l] = 0
		}
	}
}

// truthy returns the mask of lanes whose low bit is set.
func (r reg) truthy() simt.Mask {
	return simt.TestNonZero(simt.Map(r[0], func(x uint64) uint64 { return x & 1 }))
}

// blend returns a where mask is set and b elsewhere.
func blend(mask simt.Mask, a, b reg) reg {
	out := make(reg, len(a))
	for w := range a {
		out[w] = simt.IfThenElse(mask, a[w], b[w])
	}
	return out
}

// gather returns r permuted by lane: out[l] = r[src[l]].
func gather(r reg, src []int32) reg {
	idx := simt.Load(src)
	out := make(reg, len(r))
	for w := range r {
		out[w] = simt.TableLookupLanes(r[w], idx)
	}
	return out
}
