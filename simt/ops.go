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

// Load copies src into a new register with len(src) lanes.
func Load[T Lanes](src []T) Vec[T] {
	data := make([]T, len(src))
	copy(data, src)
	return Vec[T]{data: data}
}

// Set broadcasts value to all n lanes.
func Set[T Lanes](n int, value T) Vec[T] {
	data := make([]T, n)
	for i := range data {
		data[i] = value
	}
	return Vec[T]{data: data}
}

// Zero returns a register of n zero lanes.
func Zero[T Lanes](n int) Vec[T] {
	return Vec[T]{data: make([]T, n)}
}

// Iota returns [0, 1, ..., n-1].
func Iota[T Lanes](n int) Vec[T] {
	data := make([]T, n)
	for i := range data {
		data[i] = T(i)
	}
	return Vec[T]{data: data}
}

// Map applies fn to every lane.
func Map[T Lanes](v Vec[T], fn func(T) T) Vec[T] {
	result := make([]T, len(v.data))
	for i, x := range v.data {
		result[i] = fn(x)
	}
	return Vec[T]{data: result}
}

// zip applies fn lane-wise to a and b.
func zip[T Lanes](a, b Vec[T], fn func(x, y T) T) Vec[T] {
	n := min(len(a.data), len(b.data))
	result := make([]T, n)
	for i := range n {
		result[i] = fn(a.data[i], b.data[i])
	}
	return Vec[T]{data: result}
}

// Add performs lane-wise addition (wrapping for integers).
func Add[T Lanes](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x + y })
}

// TestNonZero returns a mask with lane i set where v[i] != 0.
func TestNonZero[T Lanes](v Vec[T]) Mask {
	bits := make([]bool, len(v.data))
	for i, x := range v.data {
		bits[i] = x != 0
	}
	return Mask{bits: bits}
}

// IfThenElse performs per-lane selection: a where mask is set, b otherwise.
func IfThenElse[T Lanes](mask Mask, a, b Vec[T]) Vec[T] {
	n := min(len(b.data), min(len(a.data), len(mask.bits)))
	result := make([]T, n)
	for i := range n {
		if mask.bits[i] {
			result[i] = a.data[i]
		} else {
			result[i] = b.data[i]
		}
	}
	return Vec[T]{data: result}
}

// BlendedStore writes lanes of v into dst only where mask is true and
// leaves the other lanes of dst unchanged.
func BlendedStore[T Lanes](v Vec[T], mask Mask, dst []T) {
	n := min(len(dst), min(len(mask.bits), len(v.data)))
	for i := range n {
		if mask.bits[i] {
			dst[i] = v.data[i]
		}
	}
}
