// Copyright 2025 Google LLC
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

package epsilon

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	// pageSize defines the size of a WebAssembly page in bytes (64KiB).
	pageSize = 65536
	// maxPages defines the maximum number of pages allowed.
	maxPages = uint32(1 << 15)
)

var ErrMemoryOutOfBounds = errors.New("out of bounds memory access")

// Memory represents a linear memory instance.
// https://webassembly.github.io/spec/core/exec/runtime.html#memory-instances
type Memory struct {
	Limits Limits
	data   []byte

	// backing is non-nil when data is a view into an mmap'd region sized to
	// the memory's max pages up front. Grow re-slices backing instead of
	// reallocating; the pages beyond data's current length are reserved,
	// zeroed address space.
	backing []byte
}

// NewMemory creates a new Memory instance from a MemoryType, backed by a
// plain Go slice that reallocates and copies on every grow.
func NewMemory(memType MemoryType) *Memory {
	return &Memory{
		Limits: memType.Limits,
		data:   make([]byte, memType.Limits.Min*pageSize),
	}
}

// NewMmapBackedMemory creates a Memory whose buffer is an anonymous mmap
// reserved up front for the memory's declared max (or maxPages, if
// unbounded). Growing within that reservation is a re-slice, not a
// copying reallocation.
func NewMmapBackedMemory(memType MemoryType) (*Memory, error) {
	capPages := maxPages
	if memType.Limits.Max != nil {
		capPages = *memType.Limits.Max
	}
	backing, err := unix.Mmap(
		-1, 0, int(capPages)*pageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap linear memory: %w", err)
	}
	return &Memory{
		Limits:  memType.Limits,
		data:    backing[:memType.Limits.Min*pageSize],
		backing: backing,
	}, nil
}

// Close unmaps the memory's backing region when it was created by
// NewMmapBackedMemory. It is a no-op for plain slice-backed memory.
func (m *Memory) Close() error {
	if m.backing == nil {
		return nil
	}
	backing := m.backing
	m.backing = nil
	m.data = nil
	return unix.Munmap(backing)
}

// Grow extends the memory by the given number of pages.
// It returns the original size in pages if successful, otherwise -1.
func (m *Memory) Grow(pages int32) int32 {
	currentSize := m.Size()
	max := maxPages
	if m.Limits.Max != nil {
		max = *m.Limits.Max
	}

	if uint32(pages)+uint32(currentSize) > max {
		return -1
	}

	newLen := (currentSize + pages) * pageSize
	if m.backing != nil {
		if int(newLen) > len(m.backing) {
			return -1
		}
		m.data = m.backing[:newLen]
		return currentSize
	}
	// Append a new zero-initialized slice of the required size.
	m.data = append(m.data, make([]byte, pages*pageSize)...)
	return currentSize
}

// Size returns the size of the memory in pages.
func (m *Memory) Size() int32 {
	return int32(len(m.data) / pageSize)
}

// bytesSize returns the size of the memory in bytes.
func (m *Memory) bytesSize() uint64 {
	return uint64(len(m.data))
}

// Set writes the given byte slice into memory starting at the specified index.
// It returns ErrMemoryOutOfBounds if the write goes beyond the memory bounds.
func (m *Memory) Set(offset, index uint32, values []byte) error {
	// Perform the addition using uint64 to correctly handle potential overflow.
	startIndex := uint64(index) + uint64(offset)
	if startIndex+uint64(len(values)) > m.bytesSize() {
		return ErrMemoryOutOfBounds
	}
	copy(m.data[startIndex:], values)
	return nil
}

// Get reads data from memory between the start and end indices (exclusive).
// It returns a slice that aliases the memory buffer (not a copy), or
// ErrMemoryOutOfBounds if the read is invalid.
func (m *Memory) Get(offset, index, length uint32) ([]byte, error) {
	// Perform the addition using uint64 to correctly handle potential overflow.
	startIndex := uint64(index) + uint64(offset)
	endIndex := startIndex + uint64(length)
	if endIndex > m.bytesSize() {
		return nil, ErrMemoryOutOfBounds
	}
	return m.data[startIndex:endIndex], nil
}

// LoadByte reads a single byte at offset+index. Instructions decode the
// effective address as offset+index rather than index+offset, but the two
// are equivalent since both are added into the same uint64 accumulator.
func (m *Memory) LoadByte(offset, index uint32) (byte, error) {
	data, err := m.Get(offset, index, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// LoadUint16 reads a little-endian uint16 at offset+index.
func (m *Memory) LoadUint16(offset, index uint32) (uint16, error) {
	data, err := m.Get(offset, index, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// LoadUint32 reads a little-endian uint32 at offset+index.
func (m *Memory) LoadUint32(offset, index uint32) (uint32, error) {
	data, err := m.Get(offset, index, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// LoadUint64 reads a little-endian uint64 at offset+index.
func (m *Memory) LoadUint64(offset, index uint32) (uint64, error) {
	data, err := m.Get(offset, index, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// LoadV128 reads a little-endian 128-bit vector at offset+index.
func (m *Memory) LoadV128(offset, index uint32) (V128Value, error) {
	data, err := m.Get(offset, index, 16)
	if err != nil {
		return V128Value{}, err
	}
	return NewV128ValueFromSlice(data), nil
}

// StoreByte writes a single byte at offset+index.
func (m *Memory) StoreByte(offset, index uint32, val byte) error {
	return m.Set(offset, index, []byte{val})
}

// StoreUint16 writes a little-endian uint16 at offset+index.
func (m *Memory) StoreUint16(offset, index uint32, val uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], val)
	return m.Set(offset, index, buf[:])
}

// StoreUint32 writes a little-endian uint32 at offset+index.
func (m *Memory) StoreUint32(offset, index uint32, val uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], val)
	return m.Set(offset, index, buf[:])
}

// StoreUint64 writes a little-endian uint64 at offset+index.
func (m *Memory) StoreUint64(offset, index uint32, val uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	return m.Set(offset, index, buf[:])
}

// StoreV128 writes a little-endian 128-bit vector at offset+index.
func (m *Memory) StoreV128(offset, index uint32, val V128Value) error {
	bytes := val.Bytes()
	return m.Set(offset, index, bytes[:])
}

// Init copies n bytes from a data segment to the memory.
func (m *Memory) Init(n, srcOffset, destOffset uint32, content []byte) error {
	if uint64(srcOffset)+uint64(n) > uint64(len(content)) ||
		uint64(destOffset)+uint64(n) > m.bytesSize() {
		return ErrMemoryOutOfBounds
	}
	copy(m.data[destOffset:destOffset+n], content[srcOffset:srcOffset+n])
	return nil
}

// Copy copies n elements from a source memory to a destination memory.
func (m *Memory) Copy(
	destMemory *Memory,
	n, srcOffset, destOffset uint32,
) error {
	if uint64(srcOffset)+uint64(n) > m.bytesSize() ||
		uint64(destOffset)+uint64(n) > destMemory.bytesSize() {
		return ErrMemoryOutOfBounds
	}

	copy(
		destMemory.data[destOffset:destOffset+n],
		m.data[srcOffset:srcOffset+n],
	)
	return nil
}

// Fill sets n elements to a given value, starting from an index.
func (m *Memory) Fill(n, offset uint32, val byte) error {
	if uint64(offset)+uint64(n) > m.bytesSize() {
		return ErrMemoryOutOfBounds
	}

	for i := range n {
		m.data[offset+i] = val
	}
	return nil
}
