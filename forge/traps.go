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
	"fmt"
)

// errOutOfGas is returned when fuel metering is enabled and a step is taken
// with no fuel remaining.
var errOutOfGas = errors.New("out of gas")

// TrapCode is a stable, numeric classification of why execution stopped.
// Codes are part of the embedder-facing ABI and must not be renumbered.
type TrapCode uint32

const (
	// CodeSuccess is the zero value and is never set on an actual Trap; it
	// exists so a zero TrapCode reliably means "no trap occurred".
	CodeSuccess TrapCode = iota
	// CodeTerminated marks a deliberate external cancellation, as opposed to
	// a fault raised by the program itself. asTrapCode never produces it;
	// fuel exhaustion is reported as CodeOutOfGas.
	CodeTerminated
	CodeUnreachable
	CodeOutOfBoundsMemory
	CodeOutOfBoundsTable
	CodeDivisionByZero
	CodeIntegerOverflow
	CodeInvalidConversionToInteger
	CodeUndefinedElement
	CodeUninitializedElement
	CodeIndirectCallTypeMismatch
	CodeCallStackExhausted
	CodeOutOfGas
	CodeTypeMismatch
	CodeFuncNotFound
	CodeWrongInstanceAddress
)

func (c TrapCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeTerminated:
		return "terminated"
	case CodeUnreachable:
		return "unreachable"
	case CodeOutOfBoundsMemory:
		return "out of bounds memory access"
	case CodeOutOfBoundsTable:
		return "out of bounds table access"
	case CodeDivisionByZero:
		return "integer divide by zero"
	case CodeIntegerOverflow:
		return "integer overflow"
	case CodeInvalidConversionToInteger:
		return "invalid conversion to integer"
	case CodeUndefinedElement:
		return "undefined element"
	case CodeUninitializedElement:
		return "uninitialized element"
	case CodeIndirectCallTypeMismatch:
		return "indirect call type mismatch"
	case CodeCallStackExhausted:
		return "call stack exhausted"
	case CodeOutOfGas:
		return "out of gas"
	case CodeTypeMismatch:
		return "type mismatch"
	case CodeFuncNotFound:
		return "function not found"
	case CodeWrongInstanceAddress:
		return "wrong instance address"
	default:
		return fmt.Sprintf("trap code %d", uint32(c))
	}
}

// Trap is the error type returned for every fault that originates from
// executing WASM code. Failed export and registered-module lookups are also
// reported as a Trap (CodeFuncNotFound, CodeTypeMismatch,
// CodeWrongInstanceAddress); other Go-level API errors are not. Embedders
// can recover the stable Code to make programmatic decisions without
// matching on error strings.
type Trap struct {
	Code TrapCode
}

func (t *Trap) Error() string { return t.Code.String() }

func trap(code TrapCode) *Trap { return &Trap{Code: code} }

// asTrapCode maps the package's internal sentinel/dynamic errors onto the
// stable trap taxonomy exposed to embedders. Errors it doesn't recognize
// (host function panics, Go-level API errors from resolveImports, etc.) are
// not traps and are returned unchanged.
func asTrapCode(err error) (TrapCode, bool) {
	switch {
	case err == nil:
		return CodeSuccess, false
	case errors.Is(err, errUnreachable):
		return CodeUnreachable, true
	case errors.Is(err, errCallStackExhausted):
		return CodeCallStackExhausted, true
	case errors.Is(err, errOutOfGas):
		return CodeOutOfGas, true
	case errors.Is(err, ErrMemoryOutOfBounds):
		return CodeOutOfBoundsMemory, true
	case errors.Is(err, errTableOutOfBounds):
		return CodeOutOfBoundsTable, true
	case errors.Is(err, errUndefinedElement):
		return CodeUndefinedElement, true
	case errors.Is(err, errFuncNotFound):
		return CodeFuncNotFound, true
	case errors.Is(err, errExportTypeMismatch):
		return CodeTypeMismatch, true
	case errors.Is(err, errModuleNotRegistered):
		return CodeWrongInstanceAddress, true
	case errors.Is(err, errIntegerDivideByZero):
		return CodeDivisionByZero, true
	case errors.Is(err, errIntegerOverflow), errors.Is(err, errIntegerDivideOverflow):
		return CodeIntegerOverflow, true
	case errors.Is(err, errInvalidConversionToInteger):
		return CodeInvalidConversionToInteger, true
	case errors.Is(err, errIndirectCallTypeMismatch):
		return CodeIndirectCallTypeMismatch, true
	case errors.Is(err, errUninitializedElement):
		return CodeUninitializedElement, true
	default:
		return CodeSuccess, false
	}
}
