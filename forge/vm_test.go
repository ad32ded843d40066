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
	"testing"
)

// These tests build moduleDefinition fixtures by hand, one []uint64 opcode
// stream at a time, standing in for a loader/decoder that is out of scope
// for this package.

// Block type immediates follow the real WASM encoding: -0x40 means no
// inputs or outputs, any other negative value means a single output (the
// interpreter does not need to know which value type beyond the count), and
// a non-negative value is an index into moduleDefinition.types.
const (
	emptyBlockType        = uint64(0xFFFFFFC0)
	singleResultBlockType = uint64(0xFFFFFFFF)
)

func ins(op opcode, immediates ...uint64) []uint64 {
	return append([]uint64{uint64(op)}, immediates...)
}

func body(parts ...[]uint64) []uint64 {
	var out []uint64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func fn(typeIndex uint32, locals []ValueType, parts ...[]uint64) function {
	b := body(parts...)
	jumpCache, jumpElseCache := computeJumpTables(b)
	return function{
		typeIndex:     typeIndex,
		locals:        locals,
		body:          b,
		jumpCache:     jumpCache,
		jumpElseCache: jumpElseCache,
	}
}

func instantiate(t *testing.T, module *moduleDefinition) *ModuleInstance {
	t.Helper()
	instance, err := NewRuntime().InstantiateModule(module)
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}
	return instance
}

func instantiateWithImports(
	t *testing.T,
	module *moduleDefinition,
	imports map[string]map[string]any,
) *ModuleInstance {
	t.Helper()
	instance, err := NewRuntime().InstantiateModuleWithImports(module, imports)
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}
	return instance
}

func expectInt32(t *testing.T, results []any, want int32) {
	t.Helper()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got, ok := results[0].(int32)
	if !ok {
		t.Fatalf("expected int32 result, got %T", results[0])
	}
	if got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestExecuteExportedFunctionSum(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{
			ParamTypes:  []ValueType{I32, I32},
			ResultTypes: []ValueType{I32},
		}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(localGet, 1),
			ins(i32Add),
			ins(end),
		)},
		exports: []exportDefinition{{name: "sum", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("sum", int32(1), int32(1))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 2)
}

func TestExecuteExportedFunctionDiff(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{
			ParamTypes:  []ValueType{I32, I32},
			ResultTypes: []ValueType{I32},
		}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(localGet, 1),
			ins(i32Sub),
			ins(end),
		)},
		exports: []exportDefinition{{name: "diff", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("diff", int32(5), int32(2))
	if err != nil {
		t.Fatalf("failed to execute diff: %v", err)
	}
	expectInt32(t, result, 3)
}

func TestExecuteCall(t *testing.T) {
	binary := FunctionType{ParamTypes: []ValueType{I32, I32}, ResultTypes: []ValueType{I32, I32}}
	module := &moduleDefinition{
		types: []FunctionType{
			binary,
			{ParamTypes: []ValueType{I32, I32}, ResultTypes: []ValueType{I32}},
		},
		funcs: []function{
			fn(0, nil, // $swap
				ins(localGet, 1),
				ins(localGet, 0),
				ins(end),
			),
			fn(1, nil, // reverseSub
				ins(localGet, 0),
				ins(localGet, 1),
				ins(call, 0),
				ins(i32Sub),
				ins(end),
			),
		},
		exports: []exportDefinition{{name: "reverseSub", indexType: functionExportKind, index: 1}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("reverseSub", int32(5), int32(3))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, -2)
}

func TestExecuteIf(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{
			ParamTypes:  []ValueType{I32, I32},
			ResultTypes: []ValueType{I32},
		}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(localGet, 1),
			ins(i32LtS),
			ins(ifOp, singleResultBlockType),
			ins(localGet, 0),
			ins(elseOp),
			ins(localGet, 1),
			ins(end),
			ins(end),
		)},
		exports: []exportDefinition{{name: "min", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("min", int32(7), int32(2))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 2)

	result, err = instance.Invoke("min", int32(3), int32(5))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 3)
}

func TestExecuteRecursive(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{
			ParamTypes:  []ValueType{I32},
			ResultTypes: []ValueType{I32},
		}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(i32Const, 1),
			ins(i32LtS),
			ins(ifOp, singleResultBlockType),
			ins(i32Const, 1),
			ins(elseOp),
			ins(localGet, 0),
			ins(localGet, 0),
			ins(i32Const, 1),
			ins(i32Sub),
			ins(call, 0),
			ins(i32Mul),
			ins(end),
			ins(end),
		)},
		exports: []exportDefinition{{name: "fac", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("fac", int32(5))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 120)
}

func TestExecuteBrFromIf(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 1),
			ins(ifOp, singleResultBlockType),
			ins(i32Const, 100),
			ins(br, 0),
			ins(i32Const, 1),
			ins(i32Add),
			ins(elseOp),
			ins(i32Const, 200),
			ins(end),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 100)
}

func TestExecuteBlock(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(block, singleResultBlockType),
			ins(i32Const, 10),
			ins(i32Const, 20),
			ins(i32Add),
			ins(end),
			ins(i32Const, 5),
			ins(i32Add),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 35)
}

func TestExecuteBrFromNestedBlock(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(block, singleResultBlockType),
			ins(i32Const, 10),
			ins(block, singleResultBlockType),
			ins(i32Const, 20),
			ins(br, 1),
			ins(end),
			ins(i32Add),
			ins(end),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 20)
}

func TestExecuteLoop(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{
			ParamTypes:  []ValueType{I32, I32},
			ResultTypes: []ValueType{I32},
		}},
		funcs: []function{fn(0, []ValueType{I32}, // local 2: $sum
			ins(i32Const, 0),
			ins(localSet, 2),
			ins(block, emptyBlockType),
			ins(loop, emptyBlockType),
			ins(localGet, 1),
			ins(i32Eqz),
			ins(ifOp, emptyBlockType),
			ins(br, 2),
			ins(end),
			ins(localGet, 2),
			ins(localGet, 0),
			ins(i32Add),
			ins(localSet, 2),
			ins(localGet, 1),
			ins(i32Const, 1),
			ins(i32Sub),
			ins(localSet, 1),
			ins(br, 0),
			ins(end),
			ins(end),
			ins(localGet, 2),
			ins(end),
		)},
		exports: []exportDefinition{{name: "mul", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("mul", int32(3), int32(5))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 15)
}

func TestExecuteBrIf(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 1),
			ins(localGet, 0),
			ins(brIf, 0),
			ins(drop),
			ins(i32Const, 0),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test", int32(10))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 1)

	result, err = instance.Invoke("test", int32(0))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0)
}

func TestExecuteBrTable(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(block, singleResultBlockType),
			ins(block, singleResultBlockType),
			ins(block, singleResultBlockType),
			ins(i32Const, 99),
			ins(localGet, 0),
			ins(brTable, 3, 0, 1, 2, 2),
			ins(end),
			ins(i32Const, 10),
			ins(i32Add),
			ins(end),
			ins(i32Const, 20),
			ins(i32Add),
			ins(end),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	cases := []struct {
		index, want int32
	}{
		{0, 129},
		{1, 119},
		{2, 99},
		{3, 99},
	}
	for _, c := range cases {
		result, err := instance.Invoke("test", c.index)
		if err != nil {
			t.Fatalf("failed to execute function: %v", err)
		}
		expectInt32(t, result, c.want)
	}
}

func TestExecuteReturn(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 10),
			ins(returnOp),
			ins(i32Const, 20),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 10)
}

func TestExecuteCallIndirect(t *testing.T) {
	t0 := FunctionType{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}
	dispatchType := FunctionType{
		ParamTypes:  []ValueType{I32, I32},
		ResultTypes: []ValueType{I32},
	}
	module := &moduleDefinition{
		types: []FunctionType{t0, dispatchType},
		funcs: []function{
			fn(0, nil, // $add_one
				ins(localGet, 0),
				ins(i32Const, 1),
				ins(i32Add),
				ins(end),
			),
			fn(0, nil, // $sub_one
				ins(localGet, 0),
				ins(i32Const, 1),
				ins(i32Sub),
				ins(end),
			),
			fn(1, nil, // $dispatch
				ins(localGet, 1),
				ins(localGet, 0),
				ins(callIndirect, 0, 0),
				ins(end),
			),
		},
		tables: []TableType{{ReferenceType: FuncRefType, Limits: Limits{Min: 2}}},
		elementSegments: []elementSegment{{
			mode:            activeElementMode,
			kind:            FuncRefType,
			functionIndexes: []int32{0, 1},
			tableIndex:      0,
			offsetExpression: []uint64{
				uint64(i32Const), 0,
			},
		}},
		exports: []exportDefinition{{name: "dispatch", indexType: functionExportKind, index: 2}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("dispatch", int32(0), int32(10))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 11)

	result, err = instance.Invoke("dispatch", int32(1), int32(10))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 9)
}

func TestExecuteSelect(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 1),
			ins(i32Const, 2),
			ins(localGet, 0),
			ins(selectOp),
			ins(end),
		)},
		exports: []exportDefinition{{name: "select", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("select", int32(1))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 1)

	result, err = instance.Invoke("select", int32(0))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 2)
}

func TestExecuteLocalTee(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(i32Const, 10),
			ins(i32Add),
			ins(localTee, 0),
			ins(i32Const, 5),
			ins(i32Mul),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test", int32(1))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 55)
}

func TestExecuteLoadStore(t *testing.T) {
	module := &moduleDefinition{
		types:     []FunctionType{{ParamTypes: []ValueType{I32, I32}, ResultTypes: []ValueType{I32}}},
		memories:  []MemoryType{{Limits: Limits{Min: 1}}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(localGet, 1),
			ins(i32Store, 0, 0, 0),
			ins(localGet, 0),
			ins(i32Load, 0, 0, 0),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test", int32(2), int32(8))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 8)
}

func TestExecuteLoadOutOfBoundsTraps(t *testing.T) {
	module := &moduleDefinition{
		types:    []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		memories: []MemoryType{{Limits: Limits{Min: 1}}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(i32Load, 0, 0, 1),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	_, err := instance.Invoke("test", int32(65532))
	if err == nil {
		t.Fatalf("expected trap")
	}
	var trapErr *Trap
	if !asTrap(err, &trapErr) || trapErr.Code != CodeOutOfBoundsMemory {
		t.Fatalf("expected out of bounds memory trap, got %v", err)
	}
}

func TestFunctionImport(t *testing.T) {
	sumType := FunctionType{ParamTypes: []ValueType{I32, I32}, ResultTypes: []ValueType{I32}}
	module := &moduleDefinition{
		types: []FunctionType{sumType},
		imports: []importDefinition{{
			moduleName: "module", name: "sum", kind: functionImportKind, funcTypeIndex: 0,
		}},
		funcs: []function{fn(0, nil,
			ins(localGet, 0),
			ins(localGet, 1),
			ins(call, 0), // index 0 is the import, imports precede local funcs.
			ins(end),
		)},
		exports: []exportDefinition{{name: "native_sum", indexType: functionExportKind, index: 1}},
	}
	imports := map[string]map[string]any{
		"module": {
			"sum": func(args ...any) []any {
				return []any{args[0].(int32) + args[1].(int32)}
			},
		},
	}
	instance := instantiateWithImports(t, module, imports)

	result, err := instance.Invoke("native_sum", int32(2), int32(3))
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 5)
}

func TestGlobalGet(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		imports: []importDefinition{{
			moduleName: "module", name: "global", kind: globalImportKind,
			globalType: GlobalType{ValueType: I32, IsMutable: false},
		}},
		funcs: []function{fn(0, nil,
			ins(globalGet, 0),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	imports := map[string]map[string]any{
		"module": {"global": int32(42)},
	}
	instance := instantiateWithImports(t, module, imports)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 42)
}

// asTrap reports whether err is itself a *Trap (a wrapped Trap is not
// unwrapped), and if so stores it in out.
func asTrap(err error, out **Trap) bool {
	t, ok := err.(*Trap)
	if !ok {
		return false
	}
	*out = t
	return true
}

func TestNumericFloatComparisonsFollowIEEE754(t *testing.T) {
	nan := math.Float64bits(math.NaN())
	negZero := math.Float64bits(math.Copysign(0, -1))
	posZero := math.Float64bits(0)
	negInf := math.Float64bits(math.Inf(-1))
	posInf := math.Float64bits(math.Inf(1))
	one := math.Float64bits(1)

	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{
			fn(0, nil, ins(f64Const, nan), ins(f64Const, nan), ins(f64Eq), ins(end)),
			fn(0, nil, ins(f64Const, nan), ins(f64Const, nan), ins(f64Ne), ins(end)),
			fn(0, nil, ins(f64Const, posZero), ins(f64Const, negZero), ins(f64Eq), ins(end)),
			fn(0, nil, ins(f64Const, negInf), ins(f64Const, one), ins(f64Lt), ins(end)),
			fn(0, nil, ins(f64Const, posInf), ins(f64Const, one), ins(f64Gt), ins(end)),
			fn(0, nil, ins(f64Const, posInf), ins(f64Const, negInf), ins(f64Gt), ins(end)),
		},
		exports: []exportDefinition{
			{name: "nanEqNan", indexType: functionExportKind, index: 0},
			{name: "nanNeNan", indexType: functionExportKind, index: 1},
			{name: "posZeroEqNegZero", indexType: functionExportKind, index: 2},
			{name: "negInfLtOne", indexType: functionExportKind, index: 3},
			{name: "posInfGtOne", indexType: functionExportKind, index: 4},
			{name: "posInfGtNegInf", indexType: functionExportKind, index: 5},
		},
	}
	instance := instantiate(t, module)

	cases := []struct {
		name string
		want int32
	}{
		// NaN poisons every comparison except !=, which is always true for it.
		{"nanEqNan", 0},
		{"nanNeNan", 1},
		{"posZeroEqNegZero", 1},
		{"negInfLtOne", 1},
		{"posInfGtOne", 1},
		{"posInfGtNegInf", 1},
	}
	for _, c := range cases {
		result, err := instance.Invoke(c.name)
		if err != nil {
			t.Fatalf("%s: failed to execute function: %v", c.name, err)
		}
		expectInt32(t, result, c.want)
	}
}

func TestNumericSignedVsUnsignedComparison(t *testing.T) {
	negOne := uint64(0xFFFFFFFF)
	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{
			fn(0, nil, ins(i32Const, negOne), ins(i32Const, 0), ins(i32LtS), ins(end)),
			fn(0, nil, ins(i32Const, negOne), ins(i32Const, 0), ins(i32LtU), ins(end)),
			fn(0, nil, ins(i32Const, negOne), ins(i32Const, 0), ins(i32GeU), ins(end)),
		},
		exports: []exportDefinition{
			{name: "ltSigned", indexType: functionExportKind, index: 0},
			{name: "ltUnsigned", indexType: functionExportKind, index: 1},
			{name: "geUnsigned", indexType: functionExportKind, index: 2},
		},
	}
	instance := instantiate(t, module)

	// -1 is less than 0 as a signed comparison, but as an unsigned 32-bit
	// comparison -1's bit pattern is the largest uint32, so it's neither less
	// than nor anything but greater-equal when compared against 0.
	result, err := instance.Invoke("ltSigned")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 1)

	result, err = instance.Invoke("ltUnsigned")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0)

	result, err = instance.Invoke("geUnsigned")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 1)
}

func TestNumericDivisionTraps(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{
			{ParamTypes: []ValueType{I32, I32}, ResultTypes: []ValueType{I32}},
			{ParamTypes: []ValueType{I64, I64}, ResultTypes: []ValueType{I64}},
		},
		funcs: []function{
			fn(0, nil, ins(localGet, 0), ins(localGet, 1), ins(i32DivS), ins(end)),
			fn(0, nil, ins(localGet, 0), ins(localGet, 1), ins(i32DivU), ins(end)),
			fn(1, nil, ins(localGet, 0), ins(localGet, 1), ins(i64DivS), ins(end)),
		},
		exports: []exportDefinition{
			{name: "divS32", indexType: functionExportKind, index: 0},
			{name: "divU32", indexType: functionExportKind, index: 1},
			{name: "divS64", indexType: functionExportKind, index: 2},
		},
	}
	instance := instantiate(t, module)

	expectDivisionTrap := func(want TrapCode, name string, args ...any) {
		t.Helper()
		_, err := instance.Invoke(name, args...)
		var trapErr *Trap
		if !asTrap(err, &trapErr) || trapErr.Code != want {
			t.Fatalf("%s%v: expected %v trap, got %v", name, args, want, err)
		}
	}

	// Divide-by-zero, signed and unsigned.
	expectDivisionTrap(CodeDivisionByZero, "divS32", int32(7), int32(0))
	expectDivisionTrap(CodeDivisionByZero, "divU32", int32(7), int32(0))
	// The one (INT_MIN / -1) overflow case, for both widths; it traps with
	// the integer-overflow code, distinct from divide-by-zero.
	expectDivisionTrap(CodeIntegerOverflow, "divS32", int32(math.MinInt32), int32(-1))
	expectDivisionTrap(CodeIntegerOverflow, "divS64", int64(math.MinInt64), int64(-1))
}

func TestFuelExhaustionTraps(t *testing.T) {
	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 1),
			ins(i32Const, 1),
			ins(i32Add),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}

	runtime := NewRuntime().WithConfig(Config{EnableFuel: true, Fuel: 2})
	instance, err := runtime.InstantiateModule(module)
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}

	_, err = instance.Invoke("test")
	var trapErr *Trap
	if !asTrap(err, &trapErr) || trapErr.Code != CodeOutOfGas {
		t.Fatalf("expected out-of-gas trap, got %v", err)
	}
}

func TestReentrancyGuardRejectsNestedInvoke(t *testing.T) {
	var instance *ModuleInstance
	reenterChecked := false

	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		imports: []importDefinition{{
			moduleName: "env", name: "reenter", kind: functionImportKind, funcTypeIndex: 0,
		}},
		funcs: []function{fn(0, nil,
			ins(call, 0), // index 0 is the import, imports precede local funcs.
			ins(end),
		)},
		exports: []exportDefinition{{name: "entry", indexType: functionExportKind, index: 1}},
	}
	imports := map[string]map[string]any{
		"env": {
			"reenter": func(args ...any) []any {
				_, err := instance.Invoke("entry")
				reenterChecked = true
				if !errors.Is(err, errReentrantCall) {
					t.Errorf("expected errReentrantCall from nested invoke, got %v", err)
				}
				return []any{int32(0)}
			},
		},
	}
	instance = instantiateWithImports(t, module, imports)

	result, err := instance.Invoke("entry")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0)
	if !reenterChecked {
		t.Fatalf("host function never ran its reentrancy check")
	}
}

func TestTruncSatSaturatesInsteadOfTrapping(t *testing.T) {
	nan := math.Float64bits(math.NaN())
	posInf := math.Float64bits(math.Inf(1))
	negInf := math.Float64bits(math.Inf(-1))

	module := &moduleDefinition{
		types: []FunctionType{
			{ResultTypes: []ValueType{I32}},
			{ResultTypes: []ValueType{I64}},
		},
		funcs: []function{
			fn(0, nil, ins(f64Const, nan), ins(i32TruncSatF64S), ins(end)),
			fn(0, nil, ins(f64Const, nan), ins(i32TruncSatF64U), ins(end)),
			fn(0, nil, ins(f64Const, posInf), ins(i32TruncSatF64S), ins(end)),
			fn(0, nil, ins(f64Const, negInf), ins(i32TruncSatF64S), ins(end)),
			fn(0, nil, ins(f64Const, posInf), ins(i32TruncSatF64U), ins(end)),
			fn(1, nil, ins(f64Const, posInf), ins(i64TruncSatF64S), ins(end)),
		},
		exports: []exportDefinition{
			{name: "nanSignedI32", indexType: functionExportKind, index: 0},
			{name: "nanUnsignedI32", indexType: functionExportKind, index: 1},
			{name: "posInfSignedI32", indexType: functionExportKind, index: 2},
			{name: "negInfSignedI32", indexType: functionExportKind, index: 3},
			{name: "posInfUnsignedI32", indexType: functionExportKind, index: 4},
			{name: "posInfSignedI64", indexType: functionExportKind, index: 5},
		},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("nanSignedI32")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0)

	result, err = instance.Invoke("nanUnsignedI32")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0)

	result, err = instance.Invoke("posInfSignedI32")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, math.MaxInt32)

	result, err = instance.Invoke("negInfSignedI32")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, math.MinInt32)

	result, err = instance.Invoke("posInfUnsignedI32")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, -1) // 0xFFFFFFFF, the saturated unsigned max.

	result, err = instance.Invoke("posInfSignedI64")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	if len(result) != 1 || result[0].(int64) != math.MaxInt64 {
		t.Fatalf("expected %d, got %v", int64(math.MaxInt64), result)
	}
}

func TestTruncTrapsOnNaNAndOverflow(t *testing.T) {
	nan := math.Float64bits(math.NaN())
	posInf := math.Float64bits(math.Inf(1))

	module := &moduleDefinition{
		types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		funcs: []function{
			fn(0, nil, ins(f64Const, nan), ins(i32TruncF64S), ins(end)),
			fn(0, nil, ins(f64Const, posInf), ins(i32TruncF64S), ins(end)),
		},
		exports: []exportDefinition{
			{name: "nanTraps", indexType: functionExportKind, index: 0},
			{name: "overflowTraps", indexType: functionExportKind, index: 1},
		},
	}
	instance := instantiate(t, module)

	_, err := instance.Invoke("nanTraps")
	var trapErr *Trap
	if !asTrap(err, &trapErr) || trapErr.Code != CodeInvalidConversionToInteger {
		t.Fatalf("expected invalid-conversion trap, got %v", err)
	}

	_, err = instance.Invoke("overflowTraps")
	if !asTrap(err, &trapErr) || trapErr.Code != CodeIntegerOverflow {
		t.Fatalf("expected integer-overflow trap, got %v", err)
	}
}

func TestBulkMemoryInit(t *testing.T) {
	module := &moduleDefinition{
		types:        []FunctionType{{ResultTypes: []ValueType{I32}}},
		memories:     []MemoryType{{Limits: Limits{Min: 1}}},
		dataSegments: []dataSegment{{mode: passiveDataMode, content: []byte{1, 2, 3, 4}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 0), // dest
			ins(i32Const, 0), // src
			ins(i32Const, 4), // n
			ins(memoryInit, 0, 0),
			ins(i32Const, 0),
			ins(i32Load, 0, 0, 0),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0x04030201)
}

func TestBulkMemoryDataDropTraps(t *testing.T) {
	module := &moduleDefinition{
		types:        []FunctionType{{}},
		memories:     []MemoryType{{Limits: Limits{Min: 1}}},
		dataSegments: []dataSegment{{mode: passiveDataMode, content: []byte{1, 2, 3, 4}}},
		funcs: []function{fn(0, nil,
			ins(dataDrop, 0),
			ins(i32Const, 0), // dest
			ins(i32Const, 0), // src
			ins(i32Const, 1), // n
			ins(memoryInit, 0, 0),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	_, err := instance.Invoke("test")
	var trapErr *Trap
	if !asTrap(err, &trapErr) || trapErr.Code != CodeOutOfBoundsMemory {
		t.Fatalf("expected out-of-bounds memory trap after data.drop, got %v", err)
	}
}

func TestBulkMemoryCopyAndFill(t *testing.T) {
	module := &moduleDefinition{
		types:    []FunctionType{{ResultTypes: []ValueType{I32}}},
		memories: []MemoryType{{Limits: Limits{Min: 1}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 0),  // offset
			ins(i32Const, 65), // val ('A')
			ins(i32Const, 4),  // n
			ins(memoryFill, 0),
			ins(i32Const, 8), // dest
			ins(i32Const, 0), // src
			ins(i32Const, 4), // n
			ins(memoryCopy, 0, 0),
			ins(i32Const, 8),
			ins(i32Load8U, 0, 0, 0),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 65)
}

func TestBulkTableInitAndElemDrop(t *testing.T) {
	refType := FunctionType{ResultTypes: []ValueType{I32}}
	noResultType := FunctionType{}
	module := &moduleDefinition{
		types:  []FunctionType{refType, noResultType},
		tables: []TableType{{ReferenceType: FuncRefType, Limits: Limits{Min: 4}}},
		elementSegments: []elementSegment{{
			mode:            passiveElementMode,
			kind:            FuncRefType,
			functionIndexes: []int32{0, 1},
		}},
		funcs: []function{
			fn(0, nil, ins(i32Const, 10), ins(end)), // func0
			fn(0, nil, ins(i32Const, 20), ins(end)), // func1
			fn(0, nil, // test
				ins(i32Const, 0), // dest
				ins(i32Const, 0), // src
				ins(i32Const, 2), // n
				ins(tableInit, 0, 0),
				ins(i32Const, 0),
				ins(tableGet, 0),
				ins(end),
			),
			fn(1, nil, // dropThenInitTraps
				ins(elemDrop, 0),
				ins(i32Const, 0), // dest
				ins(i32Const, 0), // src
				ins(i32Const, 1), // n
				ins(tableInit, 0, 0),
				ins(end),
			),
		},
		exports: []exportDefinition{
			{name: "test", indexType: functionExportKind, index: 2},
			{name: "dropThenInitTraps", indexType: functionExportKind, index: 3},
		},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0) // func0's store address.

	_, err = instance.Invoke("dropThenInitTraps")
	var trapErr *Trap
	if !asTrap(err, &trapErr) || trapErr.Code != CodeOutOfBoundsTable {
		t.Fatalf("expected out-of-bounds table trap after elem.drop, got %v", err)
	}
}

func TestBulkTableCopyAndFill(t *testing.T) {
	module := &moduleDefinition{
		types:  []FunctionType{{ResultTypes: []ValueType{I32}}},
		tables: []TableType{{ReferenceType: FuncRefType, Limits: Limits{Min: 4}}},
		funcs: []function{
			fn(0, nil, ins(i32Const, 42), ins(end)), // func0
			fn(0, nil, // test
				ins(i32Const, 0), // index
				ins(i32Const, 0), // val: func0's store address
				ins(i32Const, 2), // n
				ins(tableFill, 0),
				ins(i32Const, 2), // dest
				ins(i32Const, 0), // src
				ins(i32Const, 2), // n
				ins(tableCopy, 0, 0),
				ins(i32Const, 3),
				ins(tableGet, 0),
				ins(end),
			),
		},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 1}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0)
}

func TestBulkTableGrowAndSize(t *testing.T) {
	max := uint32(5)
	module := &moduleDefinition{
		types:  []FunctionType{{ResultTypes: []ValueType{I32}}},
		tables: []TableType{{ReferenceType: FuncRefType, Limits: Limits{Min: 1, Max: &max}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, uint64(0xFFFFFFFF)), // val: NullReference (-1)
			ins(i32Const, 2),                             // n
			ins(tableGrow, 0),
			ins(drop), // discard the previous size
			ins(tableSize, 0),
			ins(end),
		)},
		exports: []exportDefinition{{name: "test", indexType: functionExportKind, index: 0}},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("test")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 3)
}

func TestRefTypeInstructions(t *testing.T) {
	resultType := FunctionType{ResultTypes: []ValueType{I32}}
	module := &moduleDefinition{
		types: []FunctionType{resultType},
		funcs: []function{
			fn(0, nil, ins(i32Const, 99), ins(end)), // func0
			fn(0, nil, ins(refNull, uint64(FuncRefType)), ins(end)),
			fn(0, nil, ins(refNull, uint64(FuncRefType)), ins(refIsNull), ins(end)),
			fn(0, nil, ins(refFunc, 0), ins(refIsNull), ins(end)),
			fn(0, nil, ins(refFunc, 0), ins(end)),
		},
		exports: []exportDefinition{
			{name: "nullVal", indexType: functionExportKind, index: 1},
			{name: "isNullTrue", indexType: functionExportKind, index: 2},
			{name: "isNullFalse", indexType: functionExportKind, index: 3},
			{name: "funcAddr", indexType: functionExportKind, index: 4},
		},
	}
	instance := instantiate(t, module)

	result, err := instance.Invoke("nullVal")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, NullReference)

	result, err = instance.Invoke("isNullTrue")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 1)

	result, err = instance.Invoke("isNullFalse")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0)

	result, err = instance.Invoke("funcAddr")
	if err != nil {
		t.Fatalf("failed to execute function: %v", err)
	}
	expectInt32(t, result, 0) // func0 is the store's first function.
}

func TestCallIndirectElementTraps(t *testing.T) {
	addOneType := FunctionType{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}
	dispatchType := FunctionType{
		ParamTypes:  []ValueType{I32, I32},
		ResultTypes: []ValueType{I32},
	}
	module := &moduleDefinition{
		types:  []FunctionType{addOneType, dispatchType},
		tables: []TableType{{ReferenceType: FuncRefType, Limits: Limits{Min: 2}}},
		elementSegments: []elementSegment{{
			mode:             activeElementMode,
			kind:             FuncRefType,
			functionIndexes:  []int32{0},
			tableIndex:       0,
			offsetExpression: []uint64{uint64(i32Const), 0},
		}},
		funcs: []function{
			fn(0, nil, // $add_one, the only initialized element (table index 0).
				ins(localGet, 0),
				ins(i32Const, 1),
				ins(i32Add),
				ins(end),
			),
			fn(1, nil, // $dispatch
				ins(localGet, 1),
				ins(localGet, 0),
				ins(callIndirect, 0, 0),
				ins(end),
			),
		},
		exports: []exportDefinition{{name: "dispatch", indexType: functionExportKind, index: 1}},
	}
	instance := instantiate(t, module)

	// Table index 1 is in-range but was never initialized by the element
	// segment (only index 0 was), so it's a null slot: uninitialized, not
	// undefined.
	_, err := instance.Invoke("dispatch", int32(1), int32(10))
	var trapErr *Trap
	if !asTrap(err, &trapErr) || trapErr.Code != CodeUninitializedElement {
		t.Fatalf("expected uninitialized element trap, got %v", err)
	}

	// Table index 5 is out of range for a table of size 2: undefined, not
	// merely uninitialized.
	_, err = instance.Invoke("dispatch", int32(5), int32(10))
	if !asTrap(err, &trapErr) || trapErr.Code != CodeUndefinedElement {
		t.Fatalf("expected undefined element trap, got %v", err)
	}
}

func TestGetExportErrors(t *testing.T) {
	module := &moduleDefinition{
		types:    []FunctionType{{ResultTypes: []ValueType{I32}}},
		memories: []MemoryType{{Limits: Limits{Min: 1}}},
		funcs: []function{fn(0, nil,
			ins(i32Const, 1),
			ins(end),
		)},
		exports: []exportDefinition{
			{name: "fn", indexType: functionExportKind, index: 0},
			{name: "mem", indexType: memoryExportKind, index: 0},
		},
	}
	instance := instantiate(t, module)

	_, err := instance.GetMemory("fn")
	var trapErr *Trap
	if !asTrap(err, &trapErr) || trapErr.Code != CodeTypeMismatch {
		t.Fatalf("expected type-mismatch trap for wrong-kind export, got %v", err)
	}

	_, err = instance.Invoke("missing")
	if !asTrap(err, &trapErr) || trapErr.Code != CodeFuncNotFound {
		t.Fatalf("expected func-not-found trap for unknown export, got %v", err)
	}

	_, err = instance.GetTable("fn")
	if !asTrap(err, &trapErr) || trapErr.Code != CodeTypeMismatch {
		t.Fatalf("expected type-mismatch trap for wrong-kind export, got %v", err)
	}
}

// TestInstantiateMmapTeardownUnmapsOnFailure exercises instantiate's
// mmap teardown path directly against the vm, bypassing Runtime, so the test
// can inspect the store's memories after a failed instantiation and confirm
// they were actually unmapped rather than merely orphaned.
func TestInstantiateMmapTeardownUnmapsOnFailure(t *testing.T) {
	module := &moduleDefinition{
		memories: []MemoryType{{Limits: Limits{Min: 1}}, {Limits: Limits{Min: 1}}},
	}
	vm := newVm(Config{MmapBackedMemory: true})

	_, err := vm.instantiate(module, map[string]map[string]any{})
	if !errors.Is(err, errMultipleMemoriesDisabled) {
		t.Fatalf("expected errMultipleMemoriesDisabled, got %v", err)
	}
	if len(vm.store.memories) != 2 {
		t.Fatalf("expected both memories to remain allocated in the store, got %d", len(vm.store.memories))
	}
	for i, m := range vm.store.memories {
		if m.backing != nil {
			t.Fatalf("memory %d: expected mmap to be unmapped on failed instantiation", i)
		}
	}
}
