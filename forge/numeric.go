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
	"math"
	"math/bits"
)

// Sentinel errors classified by asTrapCode into the stable trap taxonomy.
var (
	errIntegerDivideByZero        = errors.New("integer divide by zero")
	errIntegerDivideOverflow      = errors.New("integer divide overflow")
	errIntegerOverflow            = errors.New("integer overflow")
	errInvalidConversionToInteger = errors.New("invalid conversion to integer")
)

// One past the largest magnitude a truncation target can hold, used as the
// exclusive upper bound of the in-range test in truncSigned/truncUnsigned.
const (
	maxInt32Plus1  = 2147483648.0
	maxUint32Plus1 = 4294967296.0
	maxInt64Plus1  = 9223372036854775808.0
	maxUint64Plus1 = 18446744073709551616.0
)

type wasmNumber interface {
	int32 | int64 | float32 | float64
}

type wasmFloat interface {
	float32 | float64
}

type wasmInt interface {
	int32 | int64
}

func equal[T wasmNumber](a, b T) bool      { return a == b }
func notEqual[T wasmNumber](a, b T) bool   { return a != b }
func lessThan[T wasmNumber](a, b T) bool   { return a < b }
func lessOrEqual[T wasmNumber](a, b T) bool    { return a <= b }
func greaterThan[T wasmNumber](a, b T) bool    { return a > b }
func greaterOrEqual[T wasmNumber](a, b T) bool { return a >= b }

// asUnsigned reinterprets a's two's-complement bit pattern as the widest
// unsigned integer, so the four unsigned relational operators below can share
// one comparison regardless of whether T is int32 or int64.
func asUnsigned[T wasmInt](a T) uint64 {
	switch v := any(a).(type) {
	case int32:
		return uint64(uint32(v))
	case int64:
		return uint64(v)
	default:
		panic("unreachable")
	}
}

func lessThanU[T wasmInt](a, b T) bool      { return asUnsigned(a) < asUnsigned(b) }
func lessOrEqualU[T wasmInt](a, b T) bool   { return asUnsigned(a) <= asUnsigned(b) }
func greaterThanU[T wasmInt](a, b T) bool   { return asUnsigned(a) > asUnsigned(b) }
func greaterOrEqualU[T wasmInt](a, b T) bool { return asUnsigned(a) >= asUnsigned(b) }

func add[T wasmNumber](a, b T) T { return a + b }
func sub[T wasmNumber](a, b T) T { return a - b }
func mul[T wasmNumber](a, b T) T { return a * b }
func div[T wasmFloat](a, b T) T  { return a / b }

func divS32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	if a == math.MinInt32 && b == -1 {
		return 0, errIntegerDivideOverflow
	}
	return a / b, nil
}

func divS64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, errIntegerDivideOverflow
	}
	return a / b, nil
}

func divU32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	return int32(uint32(a) / uint32(b)), nil
}

func divU64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	return int64(uint64(a) / uint64(b)), nil
}

func remS32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	return a % b, nil
}

func remS64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	return a % b, nil
}

func remU32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	return int32(uint32(a) % uint32(b)), nil
}

func remU64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errIntegerDivideByZero
	}
	return int64(uint64(a) % uint64(b)), nil
}

func and[T wasmInt](a, b T) T { return a & b }
func or[T wasmInt](a, b T) T  { return a | b }
func xor[T wasmInt](a, b T) T { return a ^ b }

func shl32(a, b int32) int32   { return a << (uint32(b) % 32) }
func shrS32(a, b int32) int32  { return a >> (uint32(b) % 32) }
func shrU32(a, b int32) int32  { return int32(uint32(a) >> (uint32(b) % 32)) }
func shl64(a, b int64) int64   { return a << (uint64(b) % 64) }
func shrS64(a, b int64) int64  { return a >> (uint64(b) % 64) }
func shrU64(a, b int64) int64  { return int64(uint64(a) >> (uint64(b) % 64)) }

func rotl32(a, b int32) int32 { return int32(bits.RotateLeft32(uint32(a), int(b))) }
func rotr32(a, b int32) int32 { return int32(bits.RotateLeft32(uint32(a), -int(b))) }
func rotl64(a, b int64) int64 { return int64(bits.RotateLeft64(uint64(a), int(b))) }
func rotr64(a, b int64) int64 { return int64(bits.RotateLeft64(uint64(a), -int(b))) }

func clz32(a int32) int32     { return int32(bits.LeadingZeros32(uint32(a))) }
func clz64(a int64) int64     { return int64(bits.LeadingZeros64(uint64(a))) }
func ctz32(a int32) int32     { return int32(bits.TrailingZeros32(uint32(a))) }
func ctz64(a int64) int64     { return int64(bits.TrailingZeros64(uint64(a))) }
func popcnt32(a int32) int32  { return int32(bits.OnesCount32(uint32(a))) }
func popcnt64(a int64) int64  { return int64(bits.OnesCount64(uint64(a))) }

func abs[T wasmFloat](a T) T    { return T(math.Abs(float64(a))) }
func ceil[T wasmFloat](a T) T   { return T(math.Ceil(float64(a))) }
func floor[T wasmFloat](a T) T  { return T(math.Floor(float64(a))) }
func trunc[T wasmFloat](a T) T  { return T(math.Trunc(float64(a))) }
func sqrt[T wasmFloat](a T) T   { return T(math.Sqrt(float64(a))) }

func nearest[T wasmFloat](a T) T {
	f64 := float64(a)
	return T(math.Copysign(math.RoundToEven(f64), f64))
}

func wasmMin[T wasmFloat](a, b T) T   { return min(a, b) }
func wasmMax[T wasmFloat](a, b T) T   { return max(a, b) }
func copysign[T wasmFloat](a, b T) T  { return T(math.Copysign(float64(a), float64(b))) }

// signedBounds32/64 return the half-open range [min, maxPlus1) an in-range
// float must fall within to truncate to a signed 32/64-bit integer.
func signedBounds32() (float64, float64) { return math.MinInt32, maxInt32Plus1 }
func signedBounds64() (float64, float64) { return math.MinInt64, maxInt64Plus1 }

// truncSigned32/64 implement the fallible float-to-signed-integer conversion
// underlying i32.trunc_f32_s / i32.trunc_f64_s / i64.trunc_f32_s /
// i64.trunc_f64_s: NaN and out-of-range magnitudes trap instead of wrapping.
func truncSigned32[F wasmFloat](a F) (int32, error) {
	f := float64(a)
	if math.IsNaN(f) {
		return 0, errInvalidConversionToInteger
	}
	truncated := math.Trunc(f)
	min, maxPlus1 := signedBounds32()
	if truncated < min || truncated >= maxPlus1 {
		return 0, errIntegerOverflow
	}
	return int32(truncated), nil
}

func truncUnsigned32[F wasmFloat](a F) (int32, error) {
	f := float64(a)
	if math.IsNaN(f) {
		return 0, errInvalidConversionToInteger
	}
	truncated := math.Trunc(f)
	if truncated < 0 || truncated >= maxUint32Plus1 {
		return 0, errIntegerOverflow
	}
	return int32(uint32(truncated)), nil
}

func truncSigned64[F wasmFloat](a F) (int64, error) {
	f := float64(a)
	if math.IsNaN(f) {
		return 0, errInvalidConversionToInteger
	}
	truncated := math.Trunc(f)
	min, maxPlus1 := signedBounds64()
	if truncated < min || truncated >= maxPlus1 {
		return 0, errIntegerOverflow
	}
	return int64(truncated), nil
}

func truncUnsigned64[F wasmFloat](a F) (int64, error) {
	f := float64(a)
	if math.IsNaN(f) {
		return 0, errInvalidConversionToInteger
	}
	truncated := math.Trunc(f)
	if truncated < 0 || truncated >= maxUint64Plus1 {
		return 0, errIntegerOverflow
	}
	return int64(uint64(truncated)), nil
}

// truncSatSigned32/64 and truncSatUnsigned32/64 are the saturating
// counterparts: instead of trapping, an out-of-range or NaN input clamps to
// the nearest representable value (0 for NaN, per the trunc_sat proposal).
func truncSatSigned32[F wasmFloat](a F) int32 {
	f := float64(a)
	if math.IsNaN(f) {
		return 0
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	if f >= maxInt32Plus1 {
		return math.MaxInt32
	}
	return int32(f)
}

func truncSatUnsigned32[F wasmFloat](a F) int32 {
	f := float64(a)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= maxUint32Plus1 {
		return -1
	}
	return int32(uint32(f))
}

func truncSatSigned64[F wasmFloat](a F) int64 {
	f := float64(a)
	if math.IsNaN(f) {
		return 0
	}
	if f < math.MinInt64 {
		return math.MinInt64
	}
	if f >= maxInt64Plus1 {
		return math.MaxInt64
	}
	return int64(f)
}

func truncSatUnsigned64[F wasmFloat](a F) int64 {
	f := float64(a)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= maxUint64Plus1 {
		return -1
	}
	return int64(uint64(f))
}

// convertSigned/convertUnsigned back every i32.convert_*/i64.convert_*
// opcode: a plain numeric conversion for the signed direction, and an
// unsigned-reinterpret-then-convert for the unsigned direction.
func convertSigned[I wasmInt, F wasmFloat](a I) F {
	return F(a)
}

func convertUnsigned[I wasmInt, F wasmFloat](a I) F {
	switch v := any(a).(type) {
	case int32:
		return F(uint32(v))
	case int64:
		return F(uint64(v))
	default:
		panic("unreachable")
	}
}

func demoteF64ToF32(a float64) float32  { return float32(a) }
func promoteF32ToF64(a float32) float64 { return float64(a) }

func reinterpretF32ToI32(a float32) int32 { return int32(math.Float32bits(a)) }
func reinterpretF64ToI64(a float64) int64 { return int64(math.Float64bits(a)) }
func reinterpretI32ToF32(a int32) float32 { return math.Float32frombits(uint32(a)) }
func reinterpretI64ToF64(a int64) float64 { return math.Float64frombits(uint64(a)) }

func wrapI64ToI32(a int64) int32     { return int32(a) }
func extendI32SToI64(a int32) int64  { return int64(a) }
func extendI32UToI64(a int32) int64  { return int64(uint32(a)) }

func extend8STo32(a int32) int32  { return int32(int8(a)) }
func extend16STo32(a int32) int32 { return int32(int16(a)) }
func extend8STo64(a int64) int64  { return int64(int8(a)) }
func extend16STo64(a int64) int64 { return int64(int16(a)) }
func extend32STo64(a int64) int64 { return int64(int32(a)) }

func boolToInt32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func uint32ToInt32(v uint32) int32 { return int32(v) }
func uint64ToInt64(v uint64) int64 { return int64(v) }

func signExtend8To32(v byte) int32    { return int32(int8(v)) }
func zeroExtend8To32(v byte) int32    { return int32(v) }
func signExtend16To32(v uint16) int32 { return int32(int16(v)) }
func zeroExtend16To32(v uint16) int32 { return int32(v) }

func signExtend8To64(v byte) int64    { return int64(int8(v)) }
func zeroExtend8To64(v byte) int64    { return int64(v) }
func signExtend16To64(v uint16) int64 { return int64(int16(v)) }
func zeroExtend16To64(v uint16) int64 { return int64(v) }
func signExtend32To64(v uint32) int64 { return int64(int32(v)) }
func zeroExtend32To64(v uint32) int64 { return int64(v) }
