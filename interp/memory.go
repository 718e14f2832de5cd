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
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// Memory is byte-addressed global memory shared by all programs of a launch.
// Addresses are byte offsets from the start of the memory.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory creates a zeroed memory of size bytes.
func NewMemory(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Alloc grows the memory by n bytes, aligned to 16, and returns the address
// of the new region.
func (m *Memory) Alloc(n int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr := (len(m.data) + 15) &^ 15
	m.data = append(m.data, make([]byte, addr+n-len(m.data))...)
	return uint64(addr)
}

// Read copies n bytes at addr.
func (m *Memory) Read(addr uint64, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return readBytes(m.data, addr, n)
}

// Write copies b to addr.
func (m *Memory) Write(addr uint64, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return writeBytes(m.data, addr, b)
}

func readBytes(mem []byte, addr uint64, n int) ([]byte, error) {
	if addr > uint64(len(mem)) || uint64(n) > uint64(len(mem))-addr {
		return nil, fmt.Errorf("%w: read of %d bytes at %#x (size %d)", ErrOutOfBounds, n, addr, len(mem))
	}
	out := make([]byte, n)
	copy(out, mem[addr:])
	return out, nil
}

func writeBytes(mem []byte, addr uint64, b []byte) error {
	if addr > uint64(len(mem)) || uint64(len(b)) > uint64(len(mem))-addr {
		return fmt.Errorf("%w: write of %d bytes at %#x (size %d)", ErrOutOfBounds, len(b), addr, len(mem))
	}
	copy(mem[addr:], b)
	return nil
}

// ---- Typed helpers ----

// Float32s reads n float32 values at addr.
func (m *Memory) Float32s(addr uint64, n int) ([]float32, error) {
	b, err := m.Read(addr, 4*n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// SetFloat32s writes vals at addr.
func (m *Memory) SetFloat32s(addr uint64, vals []float32) error {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return m.Write(addr, b)
}

// Int32s reads n int32 values at addr.
func (m *Memory) Int32s(addr uint64, n int) ([]int32, error) {
	b, err := m.Read(addr, 4*n)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// SetInt32s writes vals at addr.
func (m *Memory) SetInt32s(addr uint64, vals []int32) error {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return m.Write(addr, b)
}

// Uint64s reads n uint64 values at addr.
func (m *Memory) Uint64s(addr uint64, n int) ([]uint64, error) {
	b, err := m.Read(addr, 8*n)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return out, nil
}

// SetUint64s writes vals at addr.
func (m *Memory) SetUint64s(addr uint64, vals []uint64) error {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[8*i:], v)
	}
	return m.Write(addr, b)
}

// Float16s reads n binary16 values at addr as raw bits.
func (m *Memory) Float16s(addr uint64, n int) ([]uint16, error) {
	b, err := m.Read(addr, 2*n)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return out, nil
}

// SetFloat16s writes raw binary16 bits at addr.
func (m *Memory) SetFloat16s(addr uint64, vals []uint16) error {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return m.Write(addr, b)
}
