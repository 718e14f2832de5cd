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

package simt

// FirstN creates an n-lane mask with the first count lanes active.
// count is clamped to [0, n].
//
// This is the tail mask of a partially filled warp:
//
//	mask := simt.FirstN(warpSize, size-offset)
func FirstN(n, count int) Mask {
	count = max(0, min(count, n))
	bits := make([]bool, n)
	for i := range count {
		bits[i] = true
	}
	return Mask{bits: bits}
}

// AllOn returns an n-lane mask with every lane active.
func AllOn(n int) Mask {
	return FirstN(n, n)
}

// MaskAnd returns the lane-wise AND of two masks.
func MaskAnd(a, b Mask) Mask {
	n := min(len(a.bits), len(b.bits))
	bits := make([]bool, n)
	for i := range n {
		bits[i] = a.bits[i] && b.bits[i]
	}
	return Mask{bits: bits}
}

// MaskAndNot returns a AND NOT b.
func MaskAndNot(a, b Mask) Mask {
	n := min(len(a.bits), len(b.bits))
	bits := make([]bool, n)
	for i := range n {
		bits[i] = a.bits[i] && !b.bits[i]
	}
	return Mask{bits: bits}
}

// AllFalse returns true if no lane is active.
func AllFalse(m Mask) bool {
	return m.CountTrue() == 0
}
