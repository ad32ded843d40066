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
	"errors"
	"io"
)

var (
	errIntRepresentationTooLong = errors.New("integer representation too long")
	errIntegerTooLarge          = errors.New("integer too large")
	errMalformedMemopFlags      = errors.New("malformed memop flags")
)

const (
	continuationBit = 0x80
	payloadMask     = 0x7F
	signBit         = 0x40
	sixthBitMask    = uint64(1 << 6)
)

// This buffer exists for performance reasons: it makes sure only a single
// allocation is done to parse the immediates across multiple Decode invocations
// and multiple Decoders. Note that this means immediates should never be stored
// in between Decode calls since their values will be corrupted.
var immediatesBuffer []uint64 = make([]uint64, 16)

type decoder struct {
	code []uint64
	pc   uint
}

func newDecoder(code []uint64) *decoder {
	return &decoder{code: code, pc: 0}
}

func (d *decoder) hasMore() bool {
	return d.pc < uint(len(d.code))
}

func (d *decoder) decode() (instruction, error) {
	opcode, err := d.readOpcode()
	if err != nil {
		return instruction{}, err
	}
	immediates, err := d.readOpcodeImmediates(opcode)
	if err != nil {
		return instruction{}, err
	}
	return instruction{opcode: opcode, immediates: immediates}, nil
}

func (d *decoder) readOpcodeImmediates(opcode opcode) ([]uint64, error) {
	switch opcode {
	case block, loop, ifOp:
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate
		return immediatesBuffer[:1], nil
	case i32Const:
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate
		return immediatesBuffer[:1], nil
	case br,
		brIf,
		call,
		localGet,
		localSet,
		localTee,
		globalGet,
		globalSet,
		tableGet,
		tableSet,
		memoryFill,
		dataDrop,
		elemDrop,
		tableGrow,
		tableSize,
		tableFill,
		refNull,
		refFunc,
		i8x16ExtractLaneS,
		i8x16ExtractLaneU,
		i16x8ExtractLaneS,
		i16x8ExtractLaneU,
		i32x4ExtractLane,
		i64x2ExtractLane,
		f32x4ExtractLane,
		f64x2ExtractLane,
		i8x16ReplaceLane,
		i16x8ReplaceLane,
		i32x4ReplaceLane,
		i64x2ReplaceLane,
		f32x4ReplaceLane,
		f64x2ReplaceLane:
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate
		return immediatesBuffer[:1], nil
	case memorySize, memoryGrow:
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate
		return immediatesBuffer[:1], nil
	case brTable:
		size, err := d.next()
		if err != nil {
			return nil, err
		}
		// TODO remove this allocation
		vector := make([]uint64, size)
		for i := uint64(0); i < size; i++ {
			vector[i], err = d.next()
			if err != nil {
				return nil, err
			}
		}
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		return append(vector, immediate), nil
	case callIndirect,
		memoryInit,
		memoryCopy,
		tableInit,
		tableCopy:
		immediate1, err := d.next()
		if err != nil {
			return nil, err
		}
		immediate2, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate1
		immediatesBuffer[1] = immediate2
		return immediatesBuffer[:2], nil
	case i32Load,
		i64Load,
		f32Load,
		f64Load,
		i32Load8S,
		i32Load8U,
		i32Load16S,
		i32Load16U,
		i64Load8S,
		i64Load8U,
		i64Load16S,
		i64Load16U,
		i64Load32S,
		i64Load32U,
		i32Store,
		i64Store,
		f32Store,
		f64Store,
		i32Store8,
		i32Store16,
		i64Store8,
		i64Store16,
		i64Store32,
		v128Load,
		v128Load32Zero,
		v128Load64Zero,
		v128Load8Splat,
		v128Load16Splat,
		v128Load32Splat,
		v128Load64Splat,
		v128Load8x8S,
		v128Load8x8U,
		v128Load16x4S,
		v128Load16x4U,
		v128Load32x2S,
		v128Load32x2U,
		v128Store:
		align, err := d.next()
		if err != nil {
			return nil, err
		}
		memoryIndex, err := d.next()
		if err != nil {
			return nil, err
		}
		offset, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = align
		immediatesBuffer[1] = memoryIndex
		immediatesBuffer[2] = offset
		return immediatesBuffer[:3], nil
	case selectT:
		size, err := d.next()
		if err != nil {
			return nil, err
		}
		// TODO remove this allocation
		vector := make([]uint64, size)
		for i := uint64(0); i < size; i++ {
			vector[i], err = d.next()
			if err != nil {
				return nil, err
			}
		}
		return vector, nil
	case i64Const:
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate
		return immediatesBuffer[:1], nil
	case f32Const:
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate
		return immediatesBuffer[:1], nil
	case f64Const:
		immediate, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate
		return immediatesBuffer[:1], nil
	case v128Const:
		immediate1, err := d.next()
		if err != nil {
			return nil, err
		}
		immediate2, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = immediate1
		immediatesBuffer[1] = immediate2
		return immediatesBuffer[:2], nil
	case v128Load8Lane,
		v128Load16Lane,
		v128Load32Lane,
		v128Load64Lane,
		v128Store8Lane,
		v128Store16Lane,
		v128Store32Lane,
		v128Store64Lane:
		align, err := d.next()
		if err != nil {
			return nil, err
		}
		memoryIndex, err := d.next()
		if err != nil {
			return nil, err
		}
		offset, err := d.next()
		if err != nil {
			return nil, err
		}
		laneIndex, err := d.next()
		if err != nil {
			return nil, err
		}
		immediatesBuffer[0] = align
		immediatesBuffer[1] = memoryIndex
		immediatesBuffer[2] = offset
		immediatesBuffer[3] = laneIndex
		return immediatesBuffer[:4], nil
	case i8x16Shuffle:
		for i := range 16 {
			val, err := d.next()
			if err != nil {
				return nil, err
			}
			immediatesBuffer[i] = val
		}
		return immediatesBuffer, nil
	default:
		return []uint64{}, nil
	}
}

// readOpcode reads the next Opcode from the instruction stream.
func (d *decoder) readOpcode() (opcode, error) {
	opcodeValue, err := d.next()
	if err != nil {
		return 0, err
	}
	return opcode(opcodeValue), nil
}

func (d *decoder) next() (uint64, error) {
	if d.pc >= uint(len(d.code)) {
		return 0, io.EOF
	}
	val := d.code[d.pc]
	d.pc++
	return val, nil
}

// computeJumpTables walks a function body and precomputes, for every pc that
// starts a block/loop/if, the pc immediately after its matching 'end' (in
// jumpCache) and, for 'if' blocks that have an 'else', the pc immediately
// after it (in jumpElseCache). This is loader-side preparation: the vm never
// scans a body itself, it only ever looks these continuations up.
func computeJumpTables(body []uint64) (map[uint32]uint32, map[uint32]uint32) {
	jumpCache := map[uint32]uint32{}
	jumpElseCache := map[uint32]uint32{}
	d := newDecoder(body)
	walkJumpTableBlock(d, jumpCache, jumpElseCache)
	return jumpCache, jumpElseCache
}

// walkJumpTableBlock decodes instructions on behalf of the innermost
// enclosing block, recursing into nested block/loop/if bodies so their
// caches are populated too, and returns the opcode that terminated it (end
// or else; end is also returned once the decoder is exhausted, to terminate
// the implicit top-level function body).
func walkJumpTableBlock(
	d *decoder,
	jumpCache, jumpElseCache map[uint32]uint32,
) opcode {
	for d.hasMore() {
		inst, err := d.decode()
		if err != nil {
			return end
		}
		switch inst.opcode {
		case block, loop:
			bodyStart := d.pc
			walkJumpTableBlock(d, jumpCache, jumpElseCache)
			jumpCache[uint32(bodyStart)] = uint32(d.pc)
		case ifOp:
			bodyStart := d.pc
			terminator := walkJumpTableBlock(d, jumpCache, jumpElseCache)
			if terminator == elseOp {
				jumpElseCache[uint32(bodyStart)] = uint32(d.pc)
				walkJumpTableBlock(d, jumpCache, jumpElseCache)
			}
			jumpCache[uint32(bodyStart)] = uint32(d.pc)
		case end:
			return end
		case elseOp:
			return elseOp
		}
	}
	return end
}

