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

import "math"

// NullReference is the internal representation of a null reference.
// It is represented as -1.
const NullReference int32 = -1

// value is the untyped 128-bit cell the operand stack is built from. Every
// scalar WASM value (i32/i64/f32/f64, and the int32 handles of funcref and
// externref) fits in low; v128 uses both words.
type value struct {
	low, high uint64
}

// box packs a scalar of any wasmNumber type into the low word of a value.
// Floats are stored via their IEEE-754 bit pattern so the stack never needs
// to know which lane it is holding.
func box[T wasmNumber](n T) value {
	switch v := any(n).(type) {
	case int32:
		return value{low: uint64(v)}
	case int64:
		return value{low: uint64(v)}
	case float32:
		return value{low: uint64(math.Float32bits(v))}
	case float64:
		return value{low: math.Float64bits(v)}
	default:
		panic("unreachable")
	}
}

// unbox is box's inverse, selected by the caller's instantiation of T rather
// than by inspecting the value itself — a value carries no type tag.
func unbox[T wasmNumber](v value) T {
	var zero T
	switch any(zero).(type) {
	case int32:
		return any(int32(v.low)).(T)
	case int64:
		return any(int64(v.low)).(T)
	case float32:
		return any(math.Float32frombits(uint32(v.low))).(T)
	case float64:
		return any(math.Float64frombits(v.low)).(T)
	default:
		panic("unreachable")
	}
}

func i32(v int32) value { return box(v) }
func i64(v int64) value { return box(v) }
func f32(v float32) value { return box(v) }
func f64(v float64) value { return box(v) }

func v128(v V128Value) value {
	return value{low: v.Low, high: v.High}
}

func (v value) int32() int32     { return unbox[int32](v) }
func (v value) int64() int64     { return unbox[int64](v) }
func (v value) float32() float32 { return unbox[float32](v) }
func (v value) float64() float64 { return unbox[float64](v) }

func (v value) v128() V128Value {
	return V128Value{Low: v.low, High: v.high}
}

// anyValueType unboxes v according to t, for code paths (globals, host-call
// marshalling) that only know the type dynamically.
func (v value) anyValueType(t ValueType) any {
	switch t {
	case I32:
		return v.int32()
	case I64:
		return v.int64()
	case F32:
		return v.float32()
	case F64:
		return v.float64()
	case V128:
		return v.v128()
	case FuncRefType, ExternRefType:
		return v.int32()
	default:
		panic("unreachable")
	}
}

func defaultValue(vt ValueType) value {
	switch vt {
	case I32, I64, F32, F64, V128:
		return value{}
	case FuncRefType, ExternRefType:
		return i32(NullReference)
	default:
		panic("unreachable")
	}
}
