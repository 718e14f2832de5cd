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

import "fmt"

// Opcode identifies an operation.
type Opcode int

const (
	OpInvalid Opcode = iota

	// ---- Constants ----

	// OpConst is an integer or float constant (Imm or FImm).
	OpConst
	// OpUndef is a value with unspecified bits.
	OpUndef

	// ---- Integer and float arithmetic ----

	OpAdd
	OpSub
	OpMul
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpFAdd
	OpFMul

	// OpICmp compares two integers with Pred and yields i1.
	OpICmp
	// OpSelect picks operand 1 where operand 0 is set, operand 2 otherwise.
	OpSelect

	// ---- Casts ----

	OpZExt
	OpSExt
	OpTrunc
	// OpBitcast reinterprets the bits of a value as another type of equal width.
	OpBitcast

	// ---- Vector element access ----

	// OpExtractElement reads element Imm of a vector.
	OpExtractElement
	// OpInsertElement writes operand 1 into element Imm of operand 0.
	OpInsertElement
	// OpExtractSlice reads Len elements starting at Imm.
	OpExtractSlice
	// OpInsertSlice writes the vector operand 1 into operand 0 starting at Imm.
	OpInsertSlice

	// ---- Memory ----

	// OpPtrAdd offsets a pointer by a byte count.
	OpPtrAdd
	// OpLoad is an unpredicated load; Hint carries the cache hint.
	OpLoad
	// OpStore is an unpredicated store of operand 0 to operand 1.
	OpStore

	// OpCall calls an external declaration named by Callee.
	OpCall

	// ---- Control flow (terminators) ----

	OpBr
	OpCondBr
	OpReturn

	// ---- Identifiers ----

	// OpThreadID is the thread index within the program along axis Imm.
	OpThreadID
	// OpBlockID is the program (workgroup) index along axis Imm.
	OpBlockID

	// ---- Target lane exchange ----

	// OpShflSync is the nvptx shuffle; Shfl is bfly, up or idx; Imm is the clamp.
	OpShflSync
	// OpDsBpermute reads operand 1 from the lane addressed by the byte
	// address in operand 0 (lane*4).
	OpDsBpermute
	// OpDsSwizzle exchanges lanes within groups of 32 by the pattern in Imm.
	OpDsSwizzle
	// OpDPP moves data between lanes of a row by the DPP control in Imm.
	OpDPP

	// ---- High-level operations consumed by the lowering ----

	// OpMaskedLoad loads from operand 0 where operand 1 is set and yields
	// operand 2 elsewhere. Cache names the cache modifier.
	OpMaskedLoad
	// OpMaskedStore stores operand 1 to operand 0 where operand 2 is set.
	OpMaskedStore
	// OpWarpShuffle exchanges operand 0 across lanes; Shfl is xor, up or
	// idx; the lane operand is Imm or operand 1.
	OpWarpShuffle
	// OpGetProgramID reads the program index along axis Imm.
	OpGetProgramID
)

var opcodeNames = map[Opcode]string{
	OpInvalid:        "invalid",
	OpConst:          "const",
	OpUndef:          "undef",
	OpAdd:            "add",
	OpSub:            "sub",
	OpMul:            "mul",
	OpURem:           "urem",
	OpAnd:            "and",
	OpOr:             "or",
	OpXor:            "xor",
	OpShl:            "shl",
	OpLShr:           "lshr",
	OpFAdd:           "fadd",
	OpFMul:           "fmul",
	OpICmp:           "icmp",
	OpSelect:         "select",
	OpZExt:           "zext",
	OpSExt:           "sext",
	OpTrunc:          "trunc",
	OpBitcast:        "bitcast",
	OpExtractElement: "extractelement",
	OpInsertElement:  "insertelement",
	OpExtractSlice:   "extractslice",
	OpInsertSlice:    "insertslice",
	OpPtrAdd:         "ptradd",
	OpLoad:           "load",
	OpStore:          "store",
	OpCall:           "call",
	OpBr:             "br",
	OpCondBr:         "condbr",
	OpReturn:         "return",
	OpThreadID:       "thread_id",
	OpBlockID:        "block_id",
	OpShflSync:       "shfl.sync",
	OpDsBpermute:     "ds_bpermute",
	OpDsSwizzle:      "ds_swizzle",
	OpDPP:            "dpp",
	OpMaskedLoad:     "masked_load",
	OpMaskedStore:    "masked_store",
	OpWarpShuffle:    "warp_shuffle",
	OpGetProgramID:   "get_program_id",
}

// String returns the textual opcode name.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", o)
}

// IsTerminator reports whether o ends a block.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpBr, OpCondBr, OpReturn:
		return true
	default:
		return false
	}
}

// IsHighLevel reports whether o must be rewritten by the lowering before
// the IR is handed to a backend.
func (o Opcode) IsHighLevel() bool {
	switch o {
	case OpMaskedLoad, OpMaskedStore, OpWarpShuffle, OpGetProgramID:
		return true
	default:
		return false
	}
}

// HasMemoryEffect reports whether o reads or writes memory.
func (o Opcode) HasMemoryEffect() bool {
	switch o {
	case OpLoad, OpStore, OpCall, OpMaskedLoad, OpMaskedStore:
		return true
	default:
		return false
	}
}

// CmpPredicate is an integer comparison predicate for OpICmp.
type CmpPredicate int

const (
	CmpEQ CmpPredicate = iota
	CmpNE
	CmpSLT
	CmpSLE
	CmpSGT
	CmpSGE
	CmpULT
	CmpUGE
)

// String returns the predicate mnemonic.
func (p CmpPredicate) String() string {
	switch p {
	case CmpEQ:
		return "eq"
	case CmpNE:
		return "ne"
	case CmpSLT:
		return "slt"
	case CmpSLE:
		return "sle"
	case CmpSGT:
		return "sgt"
	case CmpSGE:
		return "sge"
	case CmpULT:
		return "ult"
	case CmpUGE:
		return "uge"
	default:
		return fmt.Sprintf("CmpPredicate(%d)", p)
	}
}

// AxisName returns x, y or z for axis 0, 1 or 2.
func AxisName(axis int64) string {
	switch axis {
	case 0:
		return "x"
	case 1:
		return "y"
	case 2:
		return "z"
	default:
		return fmt.Sprintf("axis%d", axis)
	}
}
