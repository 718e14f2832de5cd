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

// This file provides cross-lane data movement on warp registers. These are
// the reference semantics for the exchange instructions the lowering emits.

// TableLookupLanes gathers lanes of tbl: result[i] = tbl[idx[i]].
// Lanes whose index is out of range receive zero.
func TableLookupLanes[T Lanes](tbl Vec[T], idx Vec[int32]) Vec[T] {
	n := min(len(tbl.data), len(idx.data))
	result := make([]T, n)
	for i := range n {
		idxVal := int(idx.data[i])
		if idxVal >= 0 && idxVal < len(tbl.data) {
			result[i] = tbl.data[idxVal]
		}
	}
	return Vec[T]{data: result}
}

// TableLookupLanesOr returns fallback[i] when idx[i] is out of range.
func TableLookupLanesOr[T Lanes](tbl Vec[T], idx Vec[int32], fallback Vec[T]) Vec[T] {
	n := min(len(tbl.data), min(len(idx.data), len(fallback.data)))
	result := make([]T, n)
	for i := range n {
		idxVal := int(idx.data[i])
		if idxVal >= 0 && idxVal < len(tbl.data) {
			result[i] = tbl.data[idxVal]
		} else {
			result[i] = fallback.data[i]
		}
	}
	return Vec[T]{data: result}
}

// XorLanes returns result[i] = v[i ^ laneMask], the butterfly exchange.
// Lanes whose partner is outside the warp keep their own value.
func XorLanes[T Lanes](v Vec[T], laneMask int) Vec[T] {
	n := len(v.data)
	idx := make([]int32, n)
	for i := range n {
		idx[i] = int32(i ^ laneMask)
	}
	return TableLookupLanesOr(v, Vec[int32]{data: idx}, v)
}

// SlideUpLanes shifts all lanes up (toward higher indices) by offset.
// Lower lanes are filled with zeros.
// [1,2,3,4,5,6,7,8] with offset=2 -> [0,0,1,2,3,4,5,6]
func SlideUpLanes[T Lanes](v Vec[T], offset int) Vec[T] {
	n := len(v.data)
	result := make([]T, n)
	if offset <= 0 {
		copy(result, v.data)
		return Vec[T]{data: result}
	}
	if offset >= n {
		return Vec[T]{data: result}
	}
	copy(result[offset:], v.data[:n-offset])
	return Vec[T]{data: result}
}

// Broadcast copies a single lane to all lanes.
// Returns a zero register if lane is out of range.
func Broadcast[T Lanes](v Vec[T], lane int) Vec[T] {
	n := len(v.data)
	if lane < 0 || lane >= n {
		return Zero[T](n)
	}
	return Set(n, v.data[lane])
}

// GetLane extracts a single lane value.
// Returns zero if idx is out of range.
func GetLane[T Lanes](v Vec[T], idx int) T {
	if idx < 0 || idx >= len(v.data) {
		var zero T
		return zero
	}
	return v.data[idx]
}
