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
	"math"

	"github.com/ajroetker/go-warplower/ir"
	"github.com/ajroetker/go-warplower/target"
)

// ShuffleKind selects a lane exchange pattern.
type ShuffleKind int

const (
	// ShuffleXor reads from lane (lane ^ Imm).
	ShuffleXor ShuffleKind = iota
	// ShuffleUp reads from lane (lane - Imm); lanes below Imm hold
	// unspecified bits.
	ShuffleUp
	// ShuffleIdx reads from lane Imm, or from the per-lane Index value.
	ShuffleIdx
)

var shuffleKindNames = map[ShuffleKind]string{
	ShuffleXor: "xor",
	ShuffleUp:  "up",
	ShuffleIdx: "idx",
}

// String returns xor, up or idx.
func (k ShuffleKind) String() string {
	if name, ok := shuffleKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ShuffleKind(%d)", int(k))
}

// ParseShuffleKind parses xor, up or idx.
func ParseShuffleKind(s string) (ShuffleKind, error) {
	for k, name := range shuffleKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown shuffle kind %q", s)
}

// Shuffle describes one lane exchange. Index, when set, overrides Imm for
// ShuffleIdx.
type Shuffle struct {
	Kind  ShuffleKind
	Imm   int
	Index *ir.Value
}

// ShuffleXor exchanges v with lane (lane ^ laneMask).
func (l *Lowerer) ShuffleXor(b *ir.Builder, loc ir.Location, v *ir.Value, laneMask int) (*ir.Value, error) {
	return l.Shuffle(b, loc, v, Shuffle{Kind: ShuffleXor, Imm: laneMask})
}

// ShuffleUp reads v from the lane offset positions lower.
func (l *Lowerer) ShuffleUp(b *ir.Builder, loc ir.Location, v *ir.Value, offset int) (*ir.Value, error) {
	return l.Shuffle(b, loc, v, Shuffle{Kind: ShuffleUp, Imm: offset})
}

// ShuffleIdx reads v from lane idx in every lane.
func (l *Lowerer) ShuffleIdx(b *ir.Builder, loc ir.Location, v *ir.Value, idx int) (*ir.Value, error) {
	return l.Shuffle(b, loc, v, Shuffle{Kind: ShuffleIdx, Imm: idx})
}

// ShuffleIdxValue reads v from the lane named by each lane's idx.
func (l *Lowerer) ShuffleIdxValue(b *ir.Builder, loc ir.Location, v, idx *ir.Value) (*ir.Value, error) {
	return l.Shuffle(b, loc, v, Shuffle{Kind: ShuffleIdx, Index: idx})
}

// Shuffle lowers one lane exchange of v. Values of any width are split into
// shuffle-width chunks that all use the same source lane.
func (l *Lowerer) Shuffle(b *ir.Builder, loc ir.Location, v *ir.Value, desc Shuffle) (*ir.Value, error) {
	op := "shuffle_" + desc.Kind.String()
	if v == nil || v.Type.IsVoid() {
		return nil, contractf(loc, op, "missing value")
	}
	ws := l.tgt.WarpSize
	switch desc.Kind {
	case ShuffleXor:
		if desc.Imm < 0 || desc.Imm >= ws {
			return nil, unsupportedf(loc, op, "lane mask %d outside [0, %d)", desc.Imm, ws)
		}
	case ShuffleUp:
		if desc.Imm < 0 || desc.Imm >= ws {
			return nil, unsupportedf(loc, op, "offset %d outside [0, %d)", desc.Imm, ws)
		}
	case ShuffleIdx:
		if desc.Index != nil {
			if !desc.Index.Type.IsInt() || desc.Index.Type.Width > 32 {
				return nil, contractf(loc, op, "index is %s, want an integer of at most 32 bits", desc.Index.Type)
			}
		} else if desc.Imm < 0 || desc.Imm > math.MaxInt32 {
			return nil, contractf(loc, op, "lane index %d is negative or exceeds i32", desc.Imm)
		}
	default:
		return nil, contractf(loc, op, "unknown shuffle kind")
	}

	split := SplitShuffle(v.Type, l.tgt.ShuffleBits)
	l.logger.Debug("lane shuffle", "loc", loc, "kind", desc.Kind, "imm", desc.Imm,
		"family", l.tgt.Family, "chunks", split.Count)

	var exchange func(chunk *ir.Value) *ir.Value
	if l.tgt.Family == target.NVPTX {
		exchange = l.shflSync(b, loc, desc)
	} else {
		exchange = l.amdgpuExchange(b, loc, desc)
	}
	return split.Apply(b, loc, v, func(_ int, chunk *ir.Value) (*ir.Value, error) {
		return exchange(chunk), nil
	})
}

// indexI32 converts a per-lane index to i32.
func indexI32(b *ir.Builder, loc ir.Location, idx *ir.Value) *ir.Value {
	if idx.Type.Width < 32 {
		return b.ZExt(loc, idx, ir.I32)
	}
	return idx
}

// shflSync returns the per-chunk nvptx exchange. The lane operand is
// computed once and shared by all chunks.
func (l *Lowerer) shflSync(b *ir.Builder, loc ir.Location, desc Shuffle) func(*ir.Value) *ir.Value {
	clamp := l.tgt.WarpSize - 1
	var mode string
	var lane *ir.Value
	switch desc.Kind {
	case ShuffleXor:
		mode, lane = "bfly", b.I32(loc, int64(desc.Imm))
	case ShuffleUp:
		mode, lane, clamp = "up", b.I32(loc, int64(desc.Imm)), 0
	default:
		mode = "idx"
		if desc.Index != nil {
			lane = indexI32(b, loc, desc.Index)
		} else {
			lane = b.I32(loc, int64(desc.Imm))
		}
	}
	return func(chunk *ir.Value) *ir.Value {
		return b.ShflSync(loc, mode, chunk, lane, clamp)
	}
}

// DPP controls.
const (
	dppQuadPermXor1 = 0xb1  // quad_perm:[1,0,3,2]
	dppQuadPermXor2 = 0x4e  // quad_perm:[2,3,0,1]
	dppRowRor8      = 0x128 // row_ror:8
)

// swizzleXor16 is the ds_swizzle bit-mode offset for and=0x1f, or=0, xor=16.
const swizzleXor16 = 0x401f

// amdgpuExchange returns the per-chunk amdgpu exchange: DPP or swizzle for
// the xor masks they can express, ds_bpermute otherwise.
func (l *Lowerer) amdgpuExchange(b *ir.Builder, loc ir.Location, desc Shuffle) func(*ir.Value) *ir.Value {
	if desc.Kind == ShuffleXor {
		if l.tgt.DPP {
			ctrl := 0
			switch desc.Imm {
			case 1:
				ctrl = dppQuadPermXor1
			case 2:
				ctrl = dppQuadPermXor2
			case 8:
				ctrl = dppRowRor8
			}
			if ctrl != 0 {
				return func(chunk *ir.Value) *ir.Value {
					return b.DPP(loc, chunk, ctrl)
				}
			}
		}
		if l.tgt.Swizzle && desc.Imm == 16 {
			return func(chunk *ir.Value) *ir.Value {
				return b.DsSwizzle(loc, chunk, swizzleXor16)
			}
		}
	}

	var src *ir.Value
	switch desc.Kind {
	case ShuffleXor:
		src = b.Xor(loc, l.LaneID(b, loc), b.I32(loc, int64(desc.Imm)))
	case ShuffleUp:
		lane := l.LaneID(b, loc)
		off := b.I32(loc, int64(desc.Imm))
		below := b.ICmp(loc, ir.CmpSLT, lane, off)
		src = b.Select(loc, below, lane, b.Sub(loc, lane, off))
	default:
		if desc.Index != nil {
			src = indexI32(b, loc, desc.Index)
		}
	}
	var addr *ir.Value
	if src == nil {
		addr = b.I32(loc, int64(desc.Imm)<<2)
	} else {
		addr = b.Shl(loc, src, b.I32(loc, 2))
	}
	return func(chunk *ir.Value) *ir.Value {
		return b.DsBpermute(loc, addr, chunk)
	}
}
