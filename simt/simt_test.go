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

import (
	"math"
	"reflect"
	"testing"
)

func TestXorLanes(t *testing.T) {
	tests := []struct {
		name   string
		input  []int32
		mask   int
		expect []int32
	}{
		{"xor1", []int32{0, 1, 2, 3, 4, 5, 6, 7}, 1, []int32{1, 0, 3, 2, 5, 4, 7, 6}},
		{"xor4", []int32{0, 1, 2, 3, 4, 5, 6, 7}, 4, []int32{4, 5, 6, 7, 0, 1, 2, 3}},
		// Partners past the last lane keep their own value.
		{"xor8 on 8 lanes", []int32{0, 1, 2, 3, 4, 5, 6, 7}, 8, []int32{0, 1, 2, 3, 4, 5, 6, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := XorLanes(Load(tt.input), tt.mask)
			if !reflect.DeepEqual(result.data, tt.expect) {
				t.Errorf("XorLanes() = %v, want %v", result.data, tt.expect)
			}
		})
	}
}

func TestSlideUpLanes(t *testing.T) {
	v := Iota[float32](8)
	tests := []struct {
		offset int
		expect []float32
	}{
		{0, []float32{0, 1, 2, 3, 4, 5, 6, 7}},
		{2, []float32{0, 0, 0, 1, 2, 3, 4, 5}},
		{8, []float32{0, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		if got := SlideUpLanes(v, tt.offset).Data(); !reflect.DeepEqual(got, tt.expect) {
			t.Errorf("SlideUpLanes(%d) = %v, want %v", tt.offset, got, tt.expect)
		}
	}
}

func TestTableLookupLanes(t *testing.T) {
	tbl := Load([]uint64{10, 11, 12, 13})
	idx := Load([]int32{3, 0, 7, -1})

	if got := TableLookupLanes(tbl, idx).Data(); !reflect.DeepEqual(got, []uint64{13, 10, 0, 0}) {
		t.Errorf("TableLookupLanes() = %v", got)
	}
	fallback := Set[uint64](4, 99)
	if got := TableLookupLanesOr(tbl, idx, fallback).Data(); !reflect.DeepEqual(got, []uint64{13, 10, 99, 99}) {
		t.Errorf("TableLookupLanesOr() = %v", got)
	}
}

func TestBroadcastAndGetLane(t *testing.T) {
	v := Map(Iota[int8](4), func(x int8) int8 { return x * 3 })
	if got := Broadcast(v, 2).Data(); !reflect.DeepEqual(got, []int8{6, 6, 6, 6}) {
		t.Errorf("Broadcast(2) = %v", got)
	}
	if got := Broadcast(v, 9).Data(); !reflect.DeepEqual(got, []int8{0, 0, 0, 0}) {
		t.Errorf("Broadcast(9) = %v", got)
	}
	if GetLane(v, 3) != 9 || GetLane(v, -1) != 0 {
		t.Errorf("GetLane wrong: %v", v.Data())
	}
	if len(v.Data()) != 4 {
		t.Errorf("lanes = %d", len(v.Data()))
	}
}

func TestMasks(t *testing.T) {
	tail := FirstN(8, 5)
	if tail.CountTrue() != 5 || AllFalse(tail) {
		t.Errorf("FirstN(8, 5) = %v", tail.Bits())
	}
	if FirstN(4, 9).CountTrue() != 4 || FirstN(4, -1).CountTrue() != 0 {
		t.Errorf("FirstN does not clamp")
	}
	if AllOn(3).CountTrue() != 3 || len(AllOn(3).Bits()) != 3 {
		t.Errorf("AllOn(3) = %v", AllOn(3).Bits())
	}

	upper := MaskAndNot(AllOn(8), FirstN(8, 2))
	want := []bool{false, false, true, true, true, true, true, true}
	if !reflect.DeepEqual(upper.Bits(), want) {
		t.Errorf("MaskAndNot() = %v, want %v", upper.Bits(), want)
	}
	both := MaskAnd(tail, upper)
	if both.CountTrue() != 3 || both.GetBit(1) || !both.GetBit(4) || both.GetBit(99) {
		t.Errorf("MaskAnd() = %v", both.Bits())
	}
	if !AllFalse(MaskFromBits(make([]bool, 4))) || AllFalse(tail) {
		t.Errorf("AllFalse wrong")
	}

	nz := TestNonZero(Load([]uint32{0, 7, 0, 1}))
	if !reflect.DeepEqual(nz.Bits(), []bool{false, true, false, true}) {
		t.Errorf("TestNonZero() = %v", nz.Bits())
	}
}

func TestIfThenElseAndBlendedStore(t *testing.T) {
	a := Set[int16](4, 1)
	b := Zero[int16](4)
	m := MaskFromBits([]bool{true, false, true, false})
	if got := IfThenElse(m, a, b).Data(); !reflect.DeepEqual(got, []int16{1, 0, 1, 0}) {
		t.Errorf("IfThenElse() = %v", got)
	}

	dst := []int16{-1, -1, -1, -1, -1}
	BlendedStore(Add(a, a), m, dst)
	if !reflect.DeepEqual(dst, []int16{2, -1, 2, -1, -1}) {
		t.Errorf("BlendedStore() = %v", dst)
	}

	full := make([]int16, 2)
	Iota[int16](4).Store(full)
	if !reflect.DeepEqual(full, []int16{0, 1}) {
		t.Errorf("Store() = %v", full)
	}
}

func TestFloat16Conversion(t *testing.T) {
	tests := []struct {
		name string
		f    float32
		h    uint16
	}{
		{"One", 1, 0x3c00},
		{"NegTwo", -2, 0xc000},
		{"Half", 0.5, 0x3800},
		{"ThreeQuarter", 3.25, 0x4280},
		{"Max", 65504, 0x7bff},
		{"Overflow", 1e6, 0x7c00},
		{"Zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Float32ToFloat16(tt.f); got != tt.h {
				t.Errorf("Float32ToFloat16(%v) = %#04x, want %#04x", tt.f, got, tt.h)
			}
			if tt.name == "Overflow" {
				return
			}
			if got := Float16ToFloat32(tt.h); got != tt.f {
				t.Errorf("Float16ToFloat32(%#04x) = %v, want %v", tt.h, got, tt.f)
			}
		})
	}

	if got := Float16ToFloat32(0x0001); got != float32(math.Ldexp(1, -24)) {
		t.Errorf("smallest denormal = %v", got)
	}
	if got := Float16ToFloat32(0x7e00); !math.IsNaN(float64(got)) {
		t.Errorf("0x7e00 = %v, want NaN", got)
	}
}

func TestBFloat16Conversion(t *testing.T) {
	for _, f := range []float32{1, -2, 3.25, 0.15625} {
		b := Float32ToBFloat16(f)
		if got := BFloat16ToFloat32(b); got != f {
			t.Errorf("round trip %v = %v (bits %#04x)", f, got, b)
		}
	}
	if got := Float32ToBFloat16(1); got != 0x3f80 {
		t.Errorf("Float32ToBFloat16(1) = %#04x", got)
	}
	if got := Float32ToBFloat16(float32(math.NaN())); got&0x7fc0 != 0x7fc0 {
		t.Errorf("NaN = %#04x", got)
	}
}
