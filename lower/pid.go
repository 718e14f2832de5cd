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
	"github.com/ajroetker/go-warplower/ir"
)

// ProgramID returns the index of the calling program along axis 0, 1 or 2.
func (l *Lowerer) ProgramID(b *ir.Builder, loc ir.Location, axis int) (*ir.Value, error) {
	if axis < 0 || axis > 2 {
		return nil, contractf(loc, "get_program_id", "axis %d outside [0, 2]", axis)
	}
	return b.BlockID(loc, axis), nil
}

// ThreadID returns the thread index within the program.
func (l *Lowerer) ThreadID(b *ir.Builder, loc ir.Location) *ir.Value {
	return b.ThreadID(loc, 0)
}

// LaneID returns the lane index within the warp.
func (l *Lowerer) LaneID(b *ir.Builder, loc ir.Location) *ir.Value {
	return b.URem(loc, l.ThreadID(b, loc), b.I32(loc, int64(l.tgt.WarpSize)))
}

// WarpID returns the warp index within the program.
func (l *Lowerer) WarpID(b *ir.Builder, loc ir.Location) *ir.Value {
	return b.LShr(loc, l.ThreadID(b, loc), b.I32(loc, int64(l.tgt.LaneBits())))
}
