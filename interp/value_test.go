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
	"testing"

	"github.com/ajroetker/go-warplower/ir"
)

func TestBitsetFieldsCrossWords(t *testing.T) {
	b := newBitset(128)
	b.setField(60, 8, 0xab)
	if got := b.field(60, 8); got != 0xab {
		t.Errorf("field(60, 8) = %#x, want 0xab", got)
	}
	if b[0]>>60 != 0xb || b[1] != 0xa {
		t.Errorf("words = %#x, %#x", b[0], b[1])
	}
	s := b.slice(56, 16)
	if s[0] != 0xab0 {
		t.Errorf("slice(56, 16) = %#x, want 0xab0", s[0])
	}
}

func TestBitsetBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b := fromBytes(data, 80)
	if len(b) != 2 || b[1] != 0x0a09 {
		t.Fatalf("fromBytes = %#x", []uint64(b))
	}
	got := b.toBytes(10)
	for i := range data {
		if got[i] != data[i] {
			t.Errorf("byte %d = %d, want %d", i, got[i], data[i])
		}
	}
	if b := fromBytes([]byte{0xff}, 1); b[0] != 1 {
		t.Errorf("i1 from 0xff = %d, want 1", b[0])
	}
}

func TestSignExtend(t *testing.T) {
	tests := []struct {
		x    uint64
		n    int
		want int64
	}{
		{0xff, 8, -1},
		{0x7f, 8, 127},
		{0xffffffff, 32, -1},
		{1, 1, -1},
		{1 << 63, 64, -1 << 63},
	}
	for _, tt := range tests {
		if got := signExtend(tt.x, tt.n); got != tt.want {
			t.Errorf("signExtend(%#x, %d) = %d, want %d", tt.x, tt.n, got, tt.want)
		}
	}
}

func TestFloatEncoding(t *testing.T) {
	for _, typ := range []ir.Type{ir.F16, ir.BF16, ir.F32, ir.F64} {
		for _, f := range []float64{0, 1, -2.5, 0.125} {
			if got := decodeFloat(typ, encodeFloat(typ, f)); got != f {
				t.Errorf("%s: %g round-trips to %g", typ, f, got)
			}
		}
	}
}
