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

// opcode identifies a single instruction in a decoded instruction stream.
// Numeric values are internal to this package: translating a module's wire
// encoding (including the 0xFC and 0xFD multi-byte prefixes) into this opcode
// space is the responsibility of the loader, which is out of scope here -
// the interpreter only ever consumes an already-decoded []uint64 instruction
// stream.
type opcode uint64

const (
	// Control
	unreachable opcode = iota
	nop
	block
	loop
	ifOp
	elseOp
	end
	br
	brIf
	brTable
	returnOp
	call
	callIndirect

	// Parametric
	drop
	selectOp
	selectT

	// Variable
	localGet
	localSet
	localTee
	globalGet
	globalSet

	// Table
	elemDrop
	tableCopy
	tableFill
	tableGet
	tableGrow
	tableInit
	tableSet
	tableSize

	// Memory
	dataDrop
	f32Load
	f32Store
	f64Load
	f64Store
	i32Load
	i32Load16S
	i32Load16U
	i32Load8S
	i32Load8U
	i32Store
	i32Store16
	i32Store8
	i64Load
	i64Load16S
	i64Load16U
	i64Load32S
	i64Load32U
	i64Load8S
	i64Load8U
	i64Store
	i64Store16
	i64Store32
	i64Store8
	memoryCopy
	memoryFill
	memoryGrow
	memoryInit
	memorySize

	// Numeric constants
	i32Const
	i64Const
	f32Const
	f64Const

	// i32 numeric
	i32Add
	i32And
	i32Clz
	i32Ctz
	i32DivS
	i32DivU
	i32Eq
	i32Eqz
	i32Extend16S
	i32Extend8S
	i32GeS
	i32GeU
	i32GtS
	i32GtU
	i32LeS
	i32LeU
	i32LtS
	i32LtU
	i32Mul
	i32Ne
	i32Or
	i32Popcnt
	i32ReinterpretF32
	i32RemS
	i32RemU
	i32Rotl
	i32Rotr
	i32Shl
	i32ShrS
	i32ShrU
	i32Sub
	i32TruncF32S
	i32TruncF32U
	i32TruncF64S
	i32TruncF64U
	i32TruncSatF32S
	i32TruncSatF32U
	i32TruncSatF64S
	i32TruncSatF64U
	i32WrapI64
	i32Xor
	i32x4Abs
	i32x4Add
	i32x4AllTrue
	i32x4Bitmask
	i32x4DotI16x8S
	i32x4Eq
	i32x4ExtaddPairwiseI16x8S
	i32x4ExtaddPairwiseI16x8U
	i32x4ExtendHighI16x8S
	i32x4ExtendHighI16x8U
	i32x4ExtendLowI16x8S
	i32x4ExtendLowI16x8U
	i32x4ExtmulHighI16x8S
	i32x4ExtmulHighI16x8U
	i32x4ExtmulLowI16x8S
	i32x4ExtmulLowI16x8U
	i32x4ExtractLane
	i32x4GeS
	i32x4GeU
	i32x4GtS
	i32x4GtU
	i32x4LeS
	i32x4LeU
	i32x4LtS
	i32x4LtU
	i32x4MaxS
	i32x4MaxU
	i32x4MinS
	i32x4MinU
	i32x4Mul
	i32x4Ne
	i32x4Neg
	i32x4ReplaceLane
	i32x4Shl
	i32x4ShrS
	i32x4ShrU
	i32x4Splat
	i32x4Sub
	i32x4TruncSatF32x4S
	i32x4TruncSatF32x4U
	i32x4TruncSatF64x2SZero
	i32x4TruncSatF64x2UZero

	// i64 numeric
	i64Add
	i64And
	i64Clz
	i64Ctz
	i64DivS
	i64DivU
	i64Eq
	i64Eqz
	i64Extend16S
	i64Extend32S
	i64Extend8S
	i64ExtendI32S
	i64ExtendI32U
	i64GeS
	i64GeU
	i64GtS
	i64GtU
	i64LeS
	i64LeU
	i64LtS
	i64LtU
	i64Mul
	i64Ne
	i64Or
	i64Popcnt
	i64ReinterpretF64
	i64RemS
	i64RemU
	i64Rotl
	i64Rotr
	i64Shl
	i64ShrS
	i64ShrU
	i64Sub
	i64TruncF32S
	i64TruncF32U
	i64TruncF64S
	i64TruncF64U
	i64TruncSatF32S
	i64TruncSatF32U
	i64TruncSatF64S
	i64TruncSatF64U
	i64Xor

	// f32 numeric
	f32Abs
	f32Add
	f32Ceil
	f32ConvertI32S
	f32ConvertI32U
	f32ConvertI64S
	f32ConvertI64U
	f32Copysign
	f32DemoteF64
	f32Div
	f32Eq
	f32Floor
	f32Ge
	f32Gt
	f32Le
	f32Lt
	f32Max
	f32Min
	f32Mul
	f32Ne
	f32Nearest
	f32Neg
	f32ReinterpretI32
	f32Sqrt
	f32Sub
	f32Trunc

	// f64 numeric
	f64Abs
	f64Add
	f64Ceil
	f64ConvertI32S
	f64ConvertI32U
	f64ConvertI64S
	f64ConvertI64U
	f64Copysign
	f64Div
	f64Eq
	f64Floor
	f64Ge
	f64Gt
	f64Le
	f64Lt
	f64Max
	f64Min
	f64Mul
	f64Ne
	f64Nearest
	f64Neg
	f64PromoteF32
	f64ReinterpretI64
	f64Sqrt
	f64Sub
	f64Trunc

	// Reference
	refNull
	refIsNull
	refFunc

	// Vector memory
	v128Load
	v128Load16Lane
	v128Load16Splat
	v128Load16x4S
	v128Load16x4U
	v128Load32Lane
	v128Load32Splat
	v128Load32Zero
	v128Load32x2S
	v128Load32x2U
	v128Load64Lane
	v128Load64Splat
	v128Load64Zero
	v128Load8Lane
	v128Load8Splat
	v128Load8x8S
	v128Load8x8U
	v128Store
	v128Store16Lane
	v128Store32Lane
	v128Store64Lane
	v128Store8Lane

	// Vector const/misc
	v128And
	v128Andnot
	v128AnyTrue
	v128Bitselect
	v128Const
	v128Not
	v128Or
	v128Xor

	// Vector lanes
	f32x4Abs
	f32x4Add
	f32x4Ceil
	f32x4ConvertI32x4S
	f32x4ConvertI32x4U
	f32x4DemoteF64x2Zero
	f32x4Div
	f32x4Eq
	f32x4ExtractLane
	f32x4Floor
	f32x4Ge
	f32x4Gt
	f32x4Le
	f32x4Lt
	f32x4Max
	f32x4Min
	f32x4Mul
	f32x4Ne
	f32x4Nearest
	f32x4Neg
	f32x4Pmax
	f32x4Pmin
	f32x4ReplaceLane
	f32x4Splat
	f32x4Sqrt
	f32x4Sub
	f32x4Trunc
	f64x2Abs
	f64x2Add
	f64x2Ceil
	f64x2ConvertLowI32x4S
	f64x2ConvertLowI32x4U
	f64x2Div
	f64x2Eq
	f64x2ExtractLane
	f64x2Floor
	f64x2Ge
	f64x2Gt
	f64x2Le
	f64x2Lt
	f64x2Max
	f64x2Min
	f64x2Mul
	f64x2Ne
	f64x2Nearest
	f64x2Neg
	f64x2Pmax
	f64x2Pmin
	f64x2PromoteLowF32x4
	f64x2ReplaceLane
	f64x2Splat
	f64x2Sqrt
	f64x2Sub
	f64x2Trunc
	i16x8Abs
	i16x8Add
	i16x8AddSatS
	i16x8AddSatU
	i16x8AllTrue
	i16x8AvgrU
	i16x8Bitmask
	i16x8Eq
	i16x8ExtaddPairwiseI8x16S
	i16x8ExtaddPairwiseI8x16U
	i16x8ExtendHighI8x16S
	i16x8ExtendHighI8x16U
	i16x8ExtendLowI8x16S
	i16x8ExtendLowI8x16U
	i16x8ExtmulHighI8x16S
	i16x8ExtmulHighI8x16U
	i16x8ExtmulLowI8x16S
	i16x8ExtmulLowI8x16U
	i16x8ExtractLaneS
	i16x8ExtractLaneU
	i16x8GeS
	i16x8GeU
	i16x8GtS
	i16x8GtU
	i16x8LeS
	i16x8LeU
	i16x8LtS
	i16x8LtU
	i16x8MaxS
	i16x8MaxU
	i16x8MinS
	i16x8MinU
	i16x8Mul
	i16x8NarrowI32x4S
	i16x8NarrowI32x4U
	i16x8Ne
	i16x8Neg
	i16x8Q15mulrSatS
	i16x8ReplaceLane
	i16x8Shl
	i16x8ShrS
	i16x8ShrU
	i16x8Splat
	i16x8Sub
	i16x8SubSatS
	i16x8SubSatU
	i64x2Abs
	i64x2Add
	i64x2AllTrue
	i64x2Bitmask
	i64x2Eq
	i64x2ExtendHighI32x4S
	i64x2ExtendHighI32x4U
	i64x2ExtendLowI32x4S
	i64x2ExtendLowI32x4U
	i64x2ExtmulHighI32x4S
	i64x2ExtmulHighI32x4U
	i64x2ExtmulLowI32x4S
	i64x2ExtmulLowI32x4U
	i64x2ExtractLane
	i64x2GeS
	i64x2GtS
	i64x2LeS
	i64x2LtS
	i64x2Mul
	i64x2Ne
	i64x2Neg
	i64x2ReplaceLane
	i64x2Shl
	i64x2ShrS
	i64x2ShrU
	i64x2Splat
	i64x2Sub
	i8x16Abs
	i8x16Add
	i8x16AddSatS
	i8x16AddSatU
	i8x16AllTrue
	i8x16AvgrU
	i8x16Bitmask
	i8x16Eq
	i8x16ExtractLaneS
	i8x16ExtractLaneU
	i8x16GeS
	i8x16GeU
	i8x16GtS
	i8x16GtU
	i8x16LeS
	i8x16LeU
	i8x16LtS
	i8x16LtU
	i8x16MaxS
	i8x16MaxU
	i8x16MinS
	i8x16MinU
	i8x16NarrowI16x8S
	i8x16NarrowI16x8U
	i8x16Ne
	i8x16Neg
	i8x16Popcnt
	i8x16ReplaceLane
	i8x16Shl
	i8x16ShrS
	i8x16ShrU
	i8x16Shuffle
	i8x16Splat
	i8x16Sub
	i8x16SubSatS
	i8x16SubSatU
	i8x16Swizzle

)

// instruction is a single decoded opcode plus its immediates, as produced by
// decoder.decode.
type instruction struct {
	opcode     opcode
	immediates []uint64
}
