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
	"bytes"
	"fmt"
	"io"

	"github.com/jcalabro/leb128"
)

// handleTable is a per-store table of opaque int32 handles standing in for
// host-supplied values reachable from guest code as externref. A handle
// survives as long as the owning store does; freed slots are reused via a
// free-list.
type handleTable struct {
	values   []any
	occupied []bool
	freeList []int32
}

func newHandleTable() *handleTable {
	return &handleTable{}
}

// register allocates a handle for v, reusing a freed slot when available.
func (h *handleTable) register(v any) int32 {
	if n := len(h.freeList); n > 0 {
		handle := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		h.values[handle] = v
		h.occupied[handle] = true
		return handle
	}
	handle := int32(len(h.values))
	h.values = append(h.values, v)
	h.occupied = append(h.occupied, true)
	return handle
}

// resolve returns the value behind a handle. ok is false for a null
// reference, an out-of-range handle, or one already released.
func (h *handleTable) resolve(handle int32) (any, bool) {
	if handle == NullReference || handle < 0 || handle >= int32(len(h.values)) {
		return nil, false
	}
	if !h.occupied[handle] {
		return nil, false
	}
	return h.values[handle], true
}

// release frees a handle for reuse. Releasing an already-free or
// out-of-range handle is a no-op.
func (h *handleTable) release(handle int32) {
	if handle < 0 || handle >= int32(len(h.values)) || !h.occupied[handle] {
		return
	}
	h.values[handle] = nil
	h.occupied[handle] = false
	h.freeList = append(h.freeList, handle)
}

// snapshot encodes which handles are currently live, for an embedder that
// wants to checkpoint and later restore external-reference bookkeeping
// across repeated invocations. It does not serialize the values
// themselves - only length-prefixed opaque blobs the caller supplies via
// encode, so the VM never needs to know how to marshal a host type.
func (h *handleTable) snapshot(encode func(v any) []byte) []byte {
	var buf bytes.Buffer
	live := make([]int32, 0, len(h.values))
	for handle, occupied := range h.occupied {
		if occupied {
			live = append(live, int32(handle))
		}
	}
	buf.Write(leb128.EncodeU64(uint64(len(live))))
	for _, handle := range live {
		buf.Write(leb128.EncodeU64(uint64(handle)))
		blob := encode(h.values[handle])
		buf.Write(leb128.EncodeU64(uint64(len(blob))))
		buf.Write(blob)
	}
	return buf.Bytes()
}

// restore replaces the table's contents with the handles encoded by a
// prior snapshot, decoding each blob via decode.
func (h *handleTable) restore(data []byte, decode func(blob []byte) any) error {
	r := bytes.NewReader(data)
	count, err := leb128.DecodeU64(r)
	if err != nil {
		return fmt.Errorf("decode handle count: %w", err)
	}

	h.values = nil
	h.occupied = nil
	h.freeList = nil

	var maxHandle int32 = -1
	type entry struct {
		handle int32
		blob   []byte
	}
	entries := make([]entry, 0, count)
	for range count {
		handle, err := leb128.DecodeU64(r)
		if err != nil {
			return fmt.Errorf("decode handle index: %w", err)
		}
		length, err := leb128.DecodeU64(r)
		if err != nil {
			return fmt.Errorf("decode blob length: %w", err)
		}
		blob := make([]byte, length)
		if _, err := io.ReadFull(r, blob); err != nil {
			return fmt.Errorf("read blob: %w", err)
		}
		entries = append(entries, entry{handle: int32(handle), blob: blob})
		if int32(handle) > maxHandle {
			maxHandle = int32(handle)
		}
	}

	size := maxHandle + 1
	h.values = make([]any, size)
	h.occupied = make([]bool, size)
	occupiedSet := make(map[int32]bool, len(entries))
	for _, e := range entries {
		h.values[e.handle] = decode(e.blob)
		h.occupied[e.handle] = true
		occupiedSet[e.handle] = true
	}
	for handle := int32(0); handle < size; handle++ {
		if !occupiedSet[handle] {
			h.freeList = append(h.freeList, handle)
		}
	}
	return nil
}
