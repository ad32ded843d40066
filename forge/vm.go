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
	"math"

	"go.uber.org/multierr"
)

var (
	errUnreachable        = errors.New("unreachable")
	errCallStackExhausted = errors.New("call stack exhausted")
	// errReentrantCall is returned when a vm is invoked while it is already
	// executing, e.g. from a host function closure that calls back into an
	// exported function of a module running on the same vm.
	errReentrantCall = errors.New("reentrant call into running vm")
	// Special error to signal a return instruction was hit.
	errReturn                   = errors.New("return instruction")
	errMultipleMemoriesDisabled = errors.New("module declares more than one memory but ExperimentalMultipleMemories is disabled")
	errIndirectCallTypeMismatch = errors.New("indirect call type mismatch")
	errUninitializedElement     = errors.New("uninitialized element")
	// errUndefinedElement is returned when call_indirect's table index
	// operand is out of range for the table, as distinct from a null
	// (but in-range) slot, which is errUninitializedElement.
	errUndefinedElement = errors.New("undefined element")
)

const (
	controlStackCacheSlotSize = 14 // Control stack slot size per call frame.
	localsCacheSlotSize       = 12 // Locals slot size per call frame.
)

// store represents all global state that can be manipulated by the vm. It
// consists of the runtime representation of all instances of functions,
// tables, memories, globals, element segments, and data segments that have
// been allocated during the vm life time.
type store struct {
	funcs    []FunctionInstance
	tables   []*Table
	memories []*Memory
	globals  []*Global
	elements []elementSegment
	datas    []dataSegment
	handles  *handleTable
}

type callFrame struct {
	code         []uint64
	pc           uint32
	controlStack []controlFrame
	locals       []value
	function     *wasmFunction
}

func (f *callFrame) next() uint64 {
	val := f.code[f.pc]
	f.pc++
	return val
}

// controlFrame represents a block of code that can be branched to.
type controlFrame struct {
	isLoop         bool
	blockType      int32
	continuationPc uint32 // The address to jump to when `br` targets this frame.
	stackHeight    uint32
}

// vm is the WebAssembly Virtual Machine. A vm is single-threaded and
// non-reentrant: invoke rejects any call made while the vm is already
// executing (e.g. a host function calling back into the same vm).
type vm struct {
	store             *store
	stack             *valueStack
	callStack         []callFrame
	controlStackCache []controlFrame
	localsCache       []value
	features          ExperimentalFeatures
	config            Config
	fuel              uint64
	running           bool
	instructionCount  uint64
}

func newVm(config Config) *vm {
	if config.MaxCallStackDepth <= 0 {
		config.MaxCallStackDepth = DefaultConfig().MaxCallStackDepth
	}
	if config.CallStackPreallocationSize <= 0 {
		config.CallStackPreallocationSize = DefaultConfig().CallStackPreallocationSize
	}
	return &vm{
		store:             &store{handles: newHandleTable()},
		stack:             newValueStack(),
		callStack:         make([]callFrame, 0, config.MaxCallStackDepth),
		controlStackCache: make([]controlFrame, config.CallStackPreallocationSize*controlStackCacheSlotSize),
		localsCache:       make([]value, config.CallStackPreallocationSize*localsCacheSlotSize),
		config:            config,
		fuel:              config.Fuel,
		features:          ExperimentalFeatures{MultipleMemories: config.ExperimentalMultipleMemories},
	}
}

// instantiate allocates a module instance's resources into the store and
// runs its active element/data initializers and start function. Failure
// partway through (a later memory's mmap failing, the multiple-memories
// gate, a trapping initializer or start function, ...) unwinds any mmap-backed memories this call itself mmap'd
// for the module's own (non-imported) memories - those are the one
// resource this core allocates during instantiation that outlives a plain
// Go value and must be explicitly released. Every teardown error is
// accumulated onto the instantiation error via multierr rather than
// discarded, so an embedder configured with MmapBackedMemory still learns
// about a failed unmap.
func (vm *vm) instantiate(
	module *moduleDefinition,
	imports map[string]map[string]any,
) (_ *ModuleInstance, err error) {
	var ownedMmaps []*Memory
	defer func() {
		if err == nil {
			return
		}
		for _, m := range ownedMmaps {
			err = multierr.Append(err, m.Close())
		}
	}()

	moduleInstance := &ModuleInstance{
		types: module.types,
		vm:    vm,
	}

	resolvedImports, err := resolveImports(module, imports)
	if err != nil {
		return nil, err
	}

	for _, functionInstance := range resolvedImports.functions {
		storeIndex := uint32(len(vm.store.funcs))
		moduleInstance.funcAddrs = append(moduleInstance.funcAddrs, storeIndex)
		vm.store.funcs = append(vm.store.funcs, functionInstance)
	}

	for _, function := range module.funcs {
		storeIndex := uint32(len(vm.store.funcs))
		funType := module.types[function.typeIndex]
		wasmFunc := &wasmFunction{
			functionType: funType,
			module:       moduleInstance,
			code:         function,
		}
		moduleInstance.funcAddrs = append(moduleInstance.funcAddrs, storeIndex)
		vm.store.funcs = append(vm.store.funcs, wasmFunc)
	}

	for _, table := range resolvedImports.tables {
		storeIndex := uint32(len(vm.store.tables))
		moduleInstance.tableAddrs = append(moduleInstance.tableAddrs, storeIndex)
		vm.store.tables = append(vm.store.tables, table)
	}

	for _, tableType := range module.tables {
		storeIndex := uint32(len(vm.store.tables))
		table := NewTable(tableType)
		moduleInstance.tableAddrs = append(moduleInstance.tableAddrs, storeIndex)
		vm.store.tables = append(vm.store.tables, table)
	}

	for _, memory := range resolvedImports.memories {
		storeIndex := uint32(len(vm.store.memories))
		moduleInstance.memAddrs = append(moduleInstance.memAddrs, storeIndex)
		vm.store.memories = append(vm.store.memories, memory)
	}

	for _, memoryType := range module.memories {
		storeIndex := uint32(len(vm.store.memories))
		var memory *Memory
		if vm.config.MmapBackedMemory {
			memory, err = NewMmapBackedMemory(memoryType)
			if err != nil {
				return nil, err
			}
			ownedMmaps = append(ownedMmaps, memory)
		} else {
			memory = NewMemory(memoryType)
		}
		moduleInstance.memAddrs = append(moduleInstance.memAddrs, storeIndex)
		vm.store.memories = append(vm.store.memories, memory)
	}

	if len(moduleInstance.memAddrs) > 1 && !vm.features.MultipleMemories {
		return nil, errMultipleMemoriesDisabled
	}

	for _, global := range resolvedImports.globals {
		storeIndex := uint32(len(vm.store.globals))
		moduleInstance.globalAddrs = append(moduleInstance.globalAddrs, storeIndex)
		vm.store.globals = append(vm.store.globals, global)
	}

	for _, global := range module.globalVariables {
		val, err := vm.invokeInitExpression(
			global.initExpression,
			global.globalType.ValueType,
			moduleInstance,
		)
		if err != nil {
			return nil, err
		}

		storeIndex := uint32(len(vm.store.globals))
		moduleInstance.globalAddrs = append(moduleInstance.globalAddrs, storeIndex)
		vm.store.globals = append(vm.store.globals, &Global{
			value:   val,
			Mutable: global.globalType.IsMutable,
			Type:    global.globalType.ValueType,
		})
	}

	// TODO: elements and data segments should at the very least be copied, but we
	// should probably have some runtime representation for them.
	for _, elem := range module.elementSegments {
		storeIndex := uint32(len(vm.store.elements))
		moduleInstance.elemAddrs = append(moduleInstance.elemAddrs, storeIndex)
		vm.store.elements = append(vm.store.elements, elem)
	}

	for _, data := range module.dataSegments {
		storeIndex := uint32(len(vm.store.datas))
		moduleInstance.dataAddrs = append(moduleInstance.dataAddrs, storeIndex)
		vm.store.datas = append(vm.store.datas, data)
	}

	if err := vm.initActiveElements(module, moduleInstance); err != nil {
		return nil, err
	}

	if err := vm.initActiveDatas(module, moduleInstance); err != nil {
		return nil, err
	}

	if module.startIndex != nil {
		storeFunctionIndex := moduleInstance.funcAddrs[*module.startIndex]
		function := vm.store.funcs[storeFunctionIndex]
		if err := vm.invokeFunction(function); err != nil {
			return nil, err
		}
	}

	moduleInstance.exports = vm.resolveExports(module, moduleInstance)
	return moduleInstance, nil
}

func (vm *vm) invoke(function FunctionInstance, args []any) ([]any, error) {
	if vm.running {
		return nil, errReentrantCall
	}
	vm.running = true
	defer func() { vm.running = false }()

	vm.stack.pushAll(args)
	if err := vm.invokeFunction(function); err != nil {
		if code, ok := asTrapCode(err); ok {
			return nil, trap(code)
		}
		return nil, err
	}
	return vm.stack.popValueTypes(function.GetType().ResultTypes), nil
}

func (vm *vm) invokeFunction(function FunctionInstance) error {
	switch f := function.(type) {
	case *wasmFunction:
		return vm.invokeWasmFunction(f)
	case *hostFunction:
		return vm.invokeHostFunction(f)
	default:
		return fmt.Errorf("unknown function type")
	}
}

func (vm *vm) invokeWasmFunction(function *wasmFunction) error {
	if len(vm.callStack) >= vm.config.MaxCallStackDepth {
		return errCallStackExhausted
	}
	// Beyond the preallocated depth, the caches below are exhausted and
	// every call frame falls back to a heap allocation.
	cached := len(vm.callStack) < vm.config.CallStackPreallocationSize

	numParams := len(function.functionType.ParamTypes)
	numLocals := numParams + len(function.code.locals)
	var locals []value
	if cached && numLocals <= localsCacheSlotSize {
		blockDepth := len(vm.callStack) * localsCacheSlotSize
		max := blockDepth + localsCacheSlotSize
		locals = vm.localsCache[blockDepth : blockDepth+numLocals : max]
		// Clear non-parameter locals to their zero values. WASM allows reading
		// uninitialized locals, so we must zero them to avoid reusing stale values
		// from previous invocations. Parameters are overwritten below.
		clear(locals[numParams:])
	} else {
		// The cache is not large enough to fit the amount of locals for the current
		// function, therefore we need a new allocation.
		locals = make([]value, numLocals)
	}

	// Copy params and shrink stack by operating on the underlying slice directly.
	newLen := len(vm.stack.data) - numParams
	copy(locals[:numParams], vm.stack.data[newLen:])
	vm.stack.data = vm.stack.data[:newLen]

	var controlStack []controlFrame
	if cached {
		// Use part of the cache for the control stack to avoid allocations.
		blockDepth := len(vm.callStack) * controlStackCacheSlotSize
		// Slice cap to prevent appending into the next slot.
		max := blockDepth + controlStackCacheSlotSize
		controlStack = vm.controlStackCache[blockDepth:blockDepth:max]
	} else {
		controlStack = make([]controlFrame, 0, controlStackCacheSlotSize)
	}
	controlStack = append(controlStack, controlFrame{
		isLoop:         false,
		blockType:      int32(function.code.typeIndex),
		continuationPc: uint32(len(function.code.body)),
		stackHeight:    uint32(vm.stack.size()),
	})

	vm.callStack = append(vm.callStack, callFrame{
		code:         function.code.body,
		pc:           0,
		controlStack: controlStack,
		locals:       locals,
		function:     function,
	})

	for {
		// We must re-fetch the frame pointer on each iteration because nested calls
		// may append to vm.callStack, causing the slice to reallocate and
		// invalidate any previously held pointers. This pointer is safe to use
		// within a single instruction execution since no handler uses it after
		// invoking a nested call.
		frame := &vm.callStack[len(vm.callStack)-1]
		if frame.pc >= uint32(len(frame.code)) {
			break
		}
		if err := vm.executeInstruction(frame); err != nil {
			if errors.Is(err, errReturn) {
				break // A 'return' instruction was executed.
			}
			// Ensure we pop the stack frame even if executeInstruction fails.
			vm.callStack = vm.callStack[:len(vm.callStack)-1]
			return err
		}
	}

	vm.callStack = vm.callStack[:len(vm.callStack)-1]
	return nil
}

func (vm *vm) executeInstruction(frame *callFrame) error {
	if vm.config.EnableFuel {
		if vm.fuel == 0 {
			return errOutOfGas
		}
		vm.fuel--
	}
	if vm.config.EnableInstructionCounter {
		vm.instructionCount++
	}

	op := opcode(frame.next())
	var err error
	// Using a switch instead of a map of opcode -> Handler is significantly
	// faster.
	switch op {
	case unreachable:
		err = errUnreachable
	case nop:
		// Do nothing.
	case block, loop:
		vm.pushBlockFrame(op, int32(frame.next()))
	case ifOp:
		vm.handleIf(frame)
	case elseOp:
		vm.handleElse(frame)
	case end:
		vm.handleEnd()
	case br:
		vm.brToLabel(uint32(frame.next()))
	case brIf:
		vm.handleBrIf(frame)
	case brTable:
		vm.handleBrTable(frame)
	case returnOp:
		err = errReturn
	case call:
		err = vm.handleCall(frame)
	case callIndirect:
		err = vm.handleCallIndirect(frame)
	case drop:
		vm.stack.drop()
	case selectOp:
		vm.handleSelect()
	case selectT:
		count := frame.next()
		frame.pc += uint32(count)
		vm.handleSelect()
	case localGet:
		vm.stack.push(frame.locals[frame.next()])
	case localSet:
		frame.locals[frame.next()] = vm.stack.pop()
	case localTee:
		frame.locals[frame.next()] = vm.stack.data[len(vm.stack.data)-1]
	case globalGet:
		vm.handleGlobalGet(frame)
	case globalSet:
		vm.handleGlobalSet(frame)
	case tableGet:
		err = vm.handleTableGet(frame)
	case tableSet:
		err = vm.handleTableSet(frame)
	case i32Load:
		err = handleLoad(vm, frame, vm.stack.pushInt32, (*Memory).LoadUint32, uint32ToInt32)
	case i64Load:
		err = handleLoad(vm, frame, vm.stack.pushInt64, (*Memory).LoadUint64, uint64ToInt64)
	case f32Load:
		err = handleLoad(vm, frame, vm.stack.pushFloat32, (*Memory).LoadUint32, math.Float32frombits)
	case f64Load:
		err = handleLoad(vm, frame, vm.stack.pushFloat64, (*Memory).LoadUint64, math.Float64frombits)
	case i32Load8S:
		err = handleLoad(vm, frame, vm.stack.pushInt32, (*Memory).LoadByte, signExtend8To32)
	case i32Load8U:
		err = handleLoad(vm, frame, vm.stack.pushInt32, (*Memory).LoadByte, zeroExtend8To32)
	case i32Load16S:
		err = handleLoad(vm, frame, vm.stack.pushInt32, (*Memory).LoadUint16, signExtend16To32)
	case i32Load16U:
		err = handleLoad(vm, frame, vm.stack.pushInt32, (*Memory).LoadUint16, zeroExtend16To32)
	case i64Load8S:
		err = handleLoad(vm, frame, vm.stack.pushInt64, (*Memory).LoadByte, signExtend8To64)
	case i64Load8U:
		err = handleLoad(vm, frame, vm.stack.pushInt64, (*Memory).LoadByte, zeroExtend8To64)
	case i64Load16S:
		err = handleLoad(vm, frame, vm.stack.pushInt64, (*Memory).LoadUint16, signExtend16To64)
	case i64Load16U:
		err = handleLoad(vm, frame, vm.stack.pushInt64, (*Memory).LoadUint16, zeroExtend16To64)
	case i64Load32S:
		err = handleLoad(vm, frame, vm.stack.pushInt64, (*Memory).LoadUint32, signExtend32To64)
	case i64Load32U:
		err = handleLoad(vm, frame, vm.stack.pushInt64, (*Memory).LoadUint32, zeroExtend32To64)
	case i32Store:
		err = handleStore(vm, frame, uint32(vm.stack.popInt32()), (*Memory).StoreUint32)
	case i64Store:
		err = handleStore(vm, frame, uint64(vm.stack.popInt64()), (*Memory).StoreUint64)
	case f32Store:
		err = handleStore(vm, frame, math.Float32bits(vm.stack.popFloat32()), (*Memory).StoreUint32)
	case f64Store:
		err = handleStore(vm, frame, math.Float64bits(vm.stack.popFloat64()), (*Memory).StoreUint64)
	case i32Store8:
		err = handleStore(vm, frame, byte(vm.stack.popInt32()), (*Memory).StoreByte)
	case i32Store16:
		err = handleStore(vm, frame, uint16(vm.stack.popInt32()), (*Memory).StoreUint16)
	case i64Store8:
		err = handleStore(vm, frame, byte(vm.stack.popInt64()), (*Memory).StoreByte)
	case i64Store16:
		err = handleStore(vm, frame, uint16(vm.stack.popInt64()), (*Memory).StoreUint16)
	case i64Store32:
		err = handleStore(vm, frame, uint32(vm.stack.popInt64()), (*Memory).StoreUint32)
	case memorySize:
		vm.handleMemorySize(frame)
	case memoryGrow:
		vm.handleMemoryGrow(frame)
	case i32Const:
		vm.stack.pushInt32(int32(frame.next()))
	case i64Const:
		vm.stack.pushInt64(int64(frame.next()))
	case f32Const:
		vm.stack.pushFloat32(math.Float32frombits(uint32(frame.next())))
	case f64Const:
		vm.stack.pushFloat64(math.Float64frombits(frame.next()))
	case i32Eqz:
		vm.stack.pushInt32(boolToInt32(vm.stack.popInt32() == 0))
	case i32Eq:
		vm.handleBinaryBoolInt32(equal)
	case i32Ne:
		vm.handleBinaryBoolInt32(notEqual)
	case i32LtS:
		vm.handleBinaryBoolInt32(lessThan)
	case i32LtU:
		vm.handleBinaryBoolInt32(lessThanU[int32])
	case i32GtS:
		vm.handleBinaryBoolInt32(greaterThan)
	case i32GtU:
		vm.handleBinaryBoolInt32(greaterThanU[int32])
	case i32LeS:
		vm.handleBinaryBoolInt32(lessOrEqual)
	case i32LeU:
		vm.handleBinaryBoolInt32(lessOrEqualU[int32])
	case i32GeS:
		vm.handleBinaryBoolInt32(greaterOrEqual)
	case i32GeU:
		vm.handleBinaryBoolInt32(greaterOrEqualU[int32])
	case i64Eqz:
		vm.stack.pushInt32(boolToInt32(vm.stack.popInt64() == 0))
	case i64Eq:
		vm.handleBinaryBoolInt64(equal)
	case i64Ne:
		vm.handleBinaryBoolInt64(notEqual)
	case i64LtS:
		vm.handleBinaryBoolInt64(lessThan)
	case i64LtU:
		vm.handleBinaryBoolInt64(lessThanU[int64])
	case i64GtS:
		vm.handleBinaryBoolInt64(greaterThan)
	case i64GtU:
		vm.handleBinaryBoolInt64(greaterThanU[int64])
	case i64LeS:
		vm.handleBinaryBoolInt64(lessOrEqual)
	case i64LeU:
		vm.handleBinaryBoolInt64(lessOrEqualU[int64])
	case i64GeS:
		vm.handleBinaryBoolInt64(greaterOrEqual)
	case i64GeU:
		vm.handleBinaryBoolInt64(greaterOrEqualU[int64])
	case f32Eq:
		vm.handleBinaryBoolFloat32(equal)
	case f32Ne:
		vm.handleBinaryBoolFloat32(notEqual)
	case f32Lt:
		vm.handleBinaryBoolFloat32(lessThan)
	case f32Gt:
		vm.handleBinaryBoolFloat32(greaterThan)
	case f32Le:
		vm.handleBinaryBoolFloat32(lessOrEqual)
	case f32Ge:
		vm.handleBinaryBoolFloat32(greaterOrEqual)
	case f64Eq:
		vm.handleBinaryBoolFloat64(equal)
	case f64Ne:
		vm.handleBinaryBoolFloat64(notEqual)
	case f64Lt:
		vm.handleBinaryBoolFloat64(lessThan)
	case f64Gt:
		vm.handleBinaryBoolFloat64(greaterThan)
	case f64Le:
		vm.handleBinaryBoolFloat64(lessOrEqual)
	case f64Ge:
		vm.handleBinaryBoolFloat64(greaterOrEqual)
	case i32Clz:
		vm.stack.pushInt32(clz32(vm.stack.popInt32()))
	case i32Ctz:
		vm.stack.pushInt32(ctz32(vm.stack.popInt32()))
	case i32Popcnt:
		vm.stack.pushInt32(popcnt32(vm.stack.popInt32()))
	case i32Add:
		vm.handleBinaryInt32(add)
	case i32Sub:
		vm.handleBinaryInt32(sub)
	case i32Mul:
		vm.handleBinaryInt32(mul)
	case i32DivS:
		err = vm.handleBinarySafeInt32(divS32)
	case i32DivU:
		err = vm.handleBinarySafeInt32(divU32)
	case i32RemS:
		err = vm.handleBinarySafeInt32(remS32)
	case i32RemU:
		err = vm.handleBinarySafeInt32(remU32)
	case i32And:
		vm.handleBinaryInt32(and)
	case i32Or:
		vm.handleBinaryInt32(or)
	case i32Xor:
		vm.handleBinaryInt32(xor)
	case i32Shl:
		vm.handleBinaryInt32(shl32)
	case i32ShrS:
		vm.handleBinaryInt32(shrS32)
	case i32ShrU:
		vm.handleBinaryInt32(shrU32)
	case i32Rotl:
		vm.handleBinaryInt32(rotl32)
	case i32Rotr:
		vm.handleBinaryInt32(rotr32)
	case i64Clz:
		vm.stack.pushInt64(clz64(vm.stack.popInt64()))
	case i64Ctz:
		vm.stack.pushInt64(ctz64(vm.stack.popInt64()))
	case i64Popcnt:
		vm.stack.pushInt64(popcnt64(vm.stack.popInt64()))
	case i64Add:
		vm.handleBinaryInt64(add)
	case i64Sub:
		vm.handleBinaryInt64(sub)
	case i64Mul:
		vm.handleBinaryInt64(mul)
	case i64DivS:
		err = vm.handleBinarySafeInt64(divS64)
	case i64DivU:
		err = vm.handleBinarySafeInt64(divU64)
	case i64RemS:
		err = vm.handleBinarySafeInt64(remS64)
	case i64RemU:
		err = vm.handleBinarySafeInt64(remU64)
	case i64And:
		vm.handleBinaryInt64(and)
	case i64Or:
		vm.handleBinaryInt64(or)
	case i64Xor:
		vm.handleBinaryInt64(xor)
	case i64Shl:
		vm.handleBinaryInt64(shl64)
	case i64ShrS:
		vm.handleBinaryInt64(shrS64)
	case i64ShrU:
		vm.handleBinaryInt64(shrU64)
	case i64Rotl:
		vm.handleBinaryInt64(rotl64)
	case i64Rotr:
		vm.handleBinaryInt64(rotr64)
	case f32Abs:
		vm.stack.pushFloat32(abs(vm.stack.popFloat32()))
	case f32Neg:
		vm.stack.pushFloat32(-vm.stack.popFloat32())
	case f32Ceil:
		vm.stack.pushFloat32(ceil(vm.stack.popFloat32()))
	case f32Floor:
		vm.stack.pushFloat32(floor(vm.stack.popFloat32()))
	case f32Trunc:
		vm.stack.pushFloat32(trunc(vm.stack.popFloat32()))
	case f32Nearest:
		vm.stack.pushFloat32(nearest(vm.stack.popFloat32()))
	case f32Sqrt:
		vm.stack.pushFloat32(sqrt(vm.stack.popFloat32()))
	case f32Add:
		vm.handleBinaryFloat32(add[float32])
	case f32Sub:
		vm.handleBinaryFloat32(sub[float32])
	case f32Mul:
		vm.handleBinaryFloat32(mul[float32])
	case f32Div:
		vm.handleBinaryFloat32(div[float32])
	case f32Min:
		vm.handleBinaryFloat32(wasmMin[float32])
	case f32Max:
		vm.handleBinaryFloat32(wasmMax[float32])
	case f32Copysign:
		vm.handleBinaryFloat32(copysign[float32])
	case f64Abs:
		vm.stack.pushFloat64(abs(vm.stack.popFloat64()))
	case f64Neg:
		vm.stack.pushFloat64(-vm.stack.popFloat64())
	case f64Ceil:
		vm.stack.pushFloat64(ceil(vm.stack.popFloat64()))
	case f64Floor:
		vm.stack.pushFloat64(floor(vm.stack.popFloat64()))
	case f64Trunc:
		vm.stack.pushFloat64(trunc(vm.stack.popFloat64()))
	case f64Nearest:
		vm.stack.pushFloat64(nearest(vm.stack.popFloat64()))
	case f64Sqrt:
		vm.stack.pushFloat64(sqrt(vm.stack.popFloat64()))
	case f64Add:
		vm.handleBinaryFloat64(add[float64])
	case f64Sub:
		vm.handleBinaryFloat64(sub[float64])
	case f64Mul:
		vm.handleBinaryFloat64(mul[float64])
	case f64Div:
		vm.handleBinaryFloat64(div[float64])
	case f64Min:
		vm.handleBinaryFloat64(wasmMin[float64])
	case f64Max:
		vm.handleBinaryFloat64(wasmMax[float64])
	case f64Copysign:
		vm.handleBinaryFloat64(copysign[float64])
	case i32WrapI64:
		vm.stack.pushInt32(wrapI64ToI32(vm.stack.popInt64()))
	case i32TruncF32S:
		err = vm.handleUnarySafeFloat32(truncSigned32[float32])
	case i32TruncF32U:
		err = vm.handleUnarySafeFloat32(truncUnsigned32[float32])
	case i32TruncF64S:
		err = vm.handleUnarySafeFloat64(truncSigned32[float64])
	case i32TruncF64U:
		err = vm.handleUnarySafeFloat64(truncUnsigned32[float64])
	case i64ExtendI32S:
		vm.stack.pushInt64(extendI32SToI64(vm.stack.popInt32()))
	case i64ExtendI32U:
		vm.stack.pushInt64(extendI32UToI64(vm.stack.popInt32()))
	case i64TruncF32S:
		err = vm.handleTruncFloat32Int64(truncSigned64[float32])
	case i64TruncF32U:
		err = vm.handleTruncFloat32Int64(truncUnsigned64[float32])
	case i64TruncF64S:
		err = vm.handleTruncFloat64Int64(truncSigned64[float64])
	case i64TruncF64U:
		err = vm.handleTruncFloat64Int64(truncUnsigned64[float64])
	case f32ConvertI32S:
		vm.stack.pushFloat32(convertSigned[int32, float32](vm.stack.popInt32()))
	case f32ConvertI32U:
		vm.stack.pushFloat32(convertUnsigned[int32, float32](vm.stack.popInt32()))
	case f32ConvertI64S:
		vm.stack.pushFloat32(convertSigned[int64, float32](vm.stack.popInt64()))
	case f32ConvertI64U:
		vm.stack.pushFloat32(convertUnsigned[int64, float32](vm.stack.popInt64()))
	case f32DemoteF64:
		vm.stack.pushFloat32(demoteF64ToF32(vm.stack.popFloat64()))
	case f64ConvertI32S:
		vm.stack.pushFloat64(convertSigned[int32, float64](vm.stack.popInt32()))
	case f64ConvertI32U:
		vm.stack.pushFloat64(convertUnsigned[int32, float64](vm.stack.popInt32()))
	case f64ConvertI64S:
		vm.stack.pushFloat64(convertSigned[int64, float64](vm.stack.popInt64()))
	case f64ConvertI64U:
		vm.stack.pushFloat64(convertUnsigned[int64, float64](vm.stack.popInt64()))
	case f64PromoteF32:
		vm.stack.pushFloat64(promoteF32ToF64(vm.stack.popFloat32()))
	case i32ReinterpretF32:
		vm.stack.pushInt32(reinterpretF32ToI32(vm.stack.popFloat32()))
	case i64ReinterpretF64:
		vm.stack.pushInt64(reinterpretF64ToI64(vm.stack.popFloat64()))
	case f32ReinterpretI32:
		vm.stack.pushFloat32(reinterpretI32ToF32(vm.stack.popInt32()))
	case f64ReinterpretI64:
		vm.stack.pushFloat64(reinterpretI64ToF64(vm.stack.popInt64()))
	case i32Extend8S:
		vm.stack.pushInt32(extend8STo32(vm.stack.popInt32()))
	case i32Extend16S:
		vm.stack.pushInt32(extend16STo32(vm.stack.popInt32()))
	case i64Extend8S:
		vm.stack.pushInt64(extend8STo64(vm.stack.popInt64()))
	case i64Extend16S:
		vm.stack.pushInt64(extend16STo64(vm.stack.popInt64()))
	case i64Extend32S:
		vm.stack.pushInt64(extend32STo64(vm.stack.popInt64()))
	case refNull:
		frame.next() // type immediate
		vm.stack.pushInt32(NullReference)
	case refIsNull:
		vm.handleRefIsNull()
	case refFunc:
		vm.handleRefFunc(frame)
	case i32TruncSatF32S:
		vm.stack.pushInt32(truncSatSigned32(vm.stack.popFloat32()))
	case i32TruncSatF32U:
		vm.stack.pushInt32(truncSatUnsigned32(vm.stack.popFloat32()))
	case i32TruncSatF64S:
		vm.stack.pushInt32(truncSatSigned32(vm.stack.popFloat64()))
	case i32TruncSatF64U:
		vm.stack.pushInt32(truncSatUnsigned32(vm.stack.popFloat64()))
	case i64TruncSatF32S:
		vm.stack.pushInt64(truncSatSigned64(vm.stack.popFloat32()))
	case i64TruncSatF32U:
		vm.stack.pushInt64(truncSatUnsigned64(vm.stack.popFloat32()))
	case i64TruncSatF64S:
		vm.stack.pushInt64(truncSatSigned64(vm.stack.popFloat64()))
	case i64TruncSatF64U:
		vm.stack.pushInt64(truncSatUnsigned64(vm.stack.popFloat64()))
	case memoryInit:
		err = vm.handleMemoryInit(frame)
	case dataDrop:
		vm.handleDataDrop(frame)
	case memoryCopy:
		err = vm.handleMemoryCopy(frame)
	case memoryFill:
		err = vm.handleMemoryFill(frame)
	case tableInit:
		err = vm.handleTableInit(frame)
	case elemDrop:
		vm.handleElemDrop(frame)
	case tableCopy:
		err = vm.handleTableCopy(frame)
	case tableGrow:
		vm.handleTableGrow(frame)
	case tableSize:
		vm.handleTableSize(frame)
	case tableFill:
		err = vm.handleTableFill(frame)
	default:
		err = fmt.Errorf("unknown opcode %d", op)
	}
	return err
}

func (vm *vm) currentCallFrame() *callFrame {
	return &vm.callStack[len(vm.callStack)-1]
}

func (vm *vm) currentModuleInstance() *ModuleInstance {
	return vm.currentCallFrame().function.module
}

func (vm *vm) pushBlockFrame(opcode opcode, blockType int32) {
	callFrame := vm.currentCallFrame()
	// For loops, the continuation is a branch back to the start of the block.
	var continuationPc uint32
	if opcode == loop {
		continuationPc = callFrame.pc
	} else {
		continuationPc = callFrame.function.code.jumpCache[callFrame.pc]
	}

	vm.pushControlFrame(controlFrame{
		isLoop:         opcode == loop,
		blockType:      blockType,
		stackHeight:    uint32(vm.stack.size()),
		continuationPc: continuationPc,
	})
}

func (vm *vm) handleIf(frame *callFrame) {
	condition := vm.stack.popInt32()

	vm.pushBlockFrame(ifOp, int32(frame.next()))

	if condition != 0 {
		return
	}

	if elsePc, ok := frame.function.code.jumpElseCache[frame.pc]; ok {
		frame.pc = elsePc
		return
	}
	// No else branch: resume at the if's own end, which pops its label.
	frame.pc = frame.function.code.jumpCache[frame.pc] - 1
}

func (vm *vm) handleElse(frame *callFrame) {
	// When we encounter an 'else' instruction, it means we have just finished
	// executing the 'then' block of an 'if' statement. We need to jump to the
	// 'end' of the 'if' block, skipping the 'else' block.
	ifFrame := vm.popControlFrame()
	frame.pc = ifFrame.continuationPc
}

func (vm *vm) handleEnd() {
	frame := vm.popControlFrame()
	callFrame := vm.currentCallFrame()
	outputCount := vm.getOutputCount(callFrame.function.module, frame.blockType)
	vm.stack.unwind(uint(frame.stackHeight), uint(outputCount))
}

func (vm *vm) handleBrIf(frame *callFrame) {
	labelIndex := uint32(frame.next())
	val := vm.stack.popInt32()
	if val == 0 {
		return
	}
	vm.brToLabel(labelIndex)
}

func (vm *vm) handleBrTable(frame *callFrame) {
	size := frame.next()
	index := vm.stack.popInt32()
	var targetLabel uint32
	if index >= 0 && uint64(index) < size {
		targetLabel = uint32(frame.code[frame.pc+uint32(index)])
	} else {
		targetLabel = uint32(frame.code[frame.pc+uint32(size)])
	}
	frame.pc += uint32(size) + 1
	vm.brToLabel(targetLabel)
}

func (vm *vm) brToLabel(labelIndex uint32) {
	callFrame := vm.currentCallFrame()

	targetIndex := len(callFrame.controlStack) - int(labelIndex) - 1
	targetFrame := callFrame.controlStack[targetIndex]
	callFrame.controlStack = callFrame.controlStack[:targetIndex]

	var arity uint32
	if targetFrame.isLoop {
		arity = vm.getInputCount(callFrame.function.module, targetFrame.blockType)
	} else {
		arity = vm.getOutputCount(callFrame.function.module, targetFrame.blockType)
	}

	vm.stack.unwind(uint(targetFrame.stackHeight), uint(arity))
	if targetFrame.isLoop {
		vm.pushControlFrame(targetFrame)
	}

	callFrame.pc = targetFrame.continuationPc
}

func (vm *vm) handleCall(frame *callFrame) error {
	localIndex := uint32(frame.next())
	function := vm.getFunction(localIndex)
	return vm.invokeFunction(function)
}

func (vm *vm) handleCallIndirect(frame *callFrame) error {
	typeIndex := uint32(frame.next())
	tableIndex := uint32(frame.next())

	expectedType := vm.currentModuleInstance().types[typeIndex]
	table := vm.getTable(tableIndex)

	elementIndex := vm.stack.popInt32()

	tableElement, err := table.Get(elementIndex)
	if err != nil {
		return errUndefinedElement
	}
	if tableElement == NullReference {
		return errUninitializedElement
	}

	function := vm.store.funcs[uint32(tableElement)]
	if !function.GetType().Equal(expectedType) {
		return errIndirectCallTypeMismatch
	}

	return vm.invokeFunction(function)
}

func (vm *vm) handleSelect() {
	data := vm.stack.data
	n := len(data)
	var top value
	if data[n-1].int32() != 0 {
		top = data[n-3]
	} else {
		top = data[n-2]
	}
	data[n-3] = top
	vm.stack.data = data[:n-2]
}

func (vm *vm) handleGlobalGet(frame *callFrame) {
	localIndex := uint32(frame.next())
	global := vm.getGlobal(localIndex)
	vm.stack.push(global.value)
}

func (vm *vm) handleGlobalSet(frame *callFrame) {
	localIndex := uint32(frame.next())
	global := vm.getGlobal(localIndex)
	global.value = vm.stack.pop()
}

func (vm *vm) handleTableGet(frame *callFrame) error {
	tableIndex := uint32(frame.next())
	table := vm.getTable(tableIndex)
	index := vm.stack.popInt32()

	element, err := table.Get(index)
	if err != nil {
		return err
	}

	vm.stack.pushInt32(element)
	return nil
}

func (vm *vm) handleTableSet(frame *callFrame) error {
	tableIndex := uint32(frame.next())
	table := vm.getTable(tableIndex)
	reference := vm.stack.popInt32()
	index := vm.stack.popInt32()
	return table.Set(index, reference)
}

func (vm *vm) handleMemorySize(frame *callFrame) {
	memory := vm.getMemory(uint32(frame.next()))
	vm.stack.pushInt32(memory.Size())
}

func (vm *vm) handleMemoryGrow(frame *callFrame) {
	memory := vm.getMemory(uint32(frame.next()))
	pages := vm.stack.popInt32()
	oldSize := memory.Grow(pages)
	vm.stack.pushInt32(oldSize)
}

func (vm *vm) handleRefFunc(frame *callFrame) {
	funcIndex := uint32(frame.next())
	storeIndex := vm.currentModuleInstance().funcAddrs[funcIndex]
	vm.stack.pushInt32(int32(storeIndex))
}

func (vm *vm) handleRefIsNull() {
	top := vm.stack.popInt32()
	vm.stack.pushInt32(boolToInt32(top == NullReference))
}

func (vm *vm) handleMemoryInit(frame *callFrame) error {
	data := vm.getData(uint32(frame.next()))
	memory := vm.getMemory(uint32(frame.next()))
	n, s, d := vm.stack.pop3Int32()
	return memory.Init(uint32(n), uint32(s), uint32(d), data.content)
}

func (vm *vm) handleDataDrop(frame *callFrame) {
	dataSegment := vm.getData(uint32(frame.next()))
	dataSegment.content = nil
}

func (vm *vm) handleMemoryCopy(frame *callFrame) error {
	destMemory := vm.getMemory(uint32(frame.next()))
	srcMemory := vm.getMemory(uint32(frame.next()))
	n, s, d := vm.stack.pop3Int32()
	return srcMemory.Copy(destMemory, uint32(n), uint32(s), uint32(d))
}

func (vm *vm) handleMemoryFill(frame *callFrame) error {
	memory := vm.getMemory(uint32(frame.next()))
	n, val, offset := vm.stack.pop3Int32()
	return memory.Fill(uint32(n), uint32(offset), byte(val))
}

func (vm *vm) handleTableInit(frame *callFrame) error {
	element := vm.getElement(uint32(frame.next()))
	table := vm.getTable(uint32(frame.next()))
	n, s, d := vm.stack.pop3Int32()

	switch element.mode {
	case activeElementMode:
		// Trap if using an active, non-dropped element segment.
		// A dropped segment has its functionIndexes slice set to nil.
		if element.functionIndexes != nil {
			return errTableOutOfBounds
		}
		return table.Init(n, d, s, element.functionIndexes)
	case passiveElementMode:
		moduleInstance := vm.currentModuleInstance()
		storeIndexes := toStoreFuncIndexes(moduleInstance, element.functionIndexes)
		return table.Init(n, d, s, storeIndexes)
	default:
		return errTableOutOfBounds
	}
}

func (vm *vm) handleElemDrop(frame *callFrame) {
	element := vm.getElement(uint32(frame.next()))
	element.functionIndexes = nil
	element.functionIndexesExpressions = nil
}

func (vm *vm) handleTableCopy(frame *callFrame) error {
	destTable := vm.getTable(uint32(frame.next()))
	srcTable := vm.getTable(uint32(frame.next()))
	n, s, d := vm.stack.pop3Int32()
	return srcTable.Copy(destTable, n, s, d)
}

func (vm *vm) handleTableGrow(frame *callFrame) {
	table := vm.getTable(uint32(frame.next()))
	n := vm.stack.popInt32()
	val := vm.stack.popInt32()
	vm.stack.pushInt32(table.Grow(n, val))
}

func (vm *vm) handleTableSize(frame *callFrame) {
	table := vm.getTable(uint32(frame.next()))
	vm.stack.pushInt32(table.Size())
}

func (vm *vm) handleTableFill(frame *callFrame) error {
	table := vm.getTable(uint32(frame.next()))
	n, val, i := vm.stack.pop3Int32()
	return table.Fill(n, i, val)
}

func (vm *vm) handleBinaryInt32(op func(a, b int32) int32) {
	b := vm.stack.popInt32()
	a := vm.stack.popInt32()
	vm.stack.pushInt32(op(a, b))
}

func (vm *vm) handleBinaryInt64(op func(a, b int64) int64) {
	b := vm.stack.popInt64()
	a := vm.stack.popInt64()
	vm.stack.pushInt64(op(a, b))
}

func (vm *vm) handleBinaryFloat32(op func(a, b float32) float32) {
	b := vm.stack.popFloat32()
	a := vm.stack.popFloat32()
	vm.stack.pushFloat32(op(a, b))
}

func (vm *vm) handleBinaryFloat64(op func(a, b float64) float64) {
	b := vm.stack.popFloat64()
	a := vm.stack.popFloat64()
	vm.stack.pushFloat64(op(a, b))
}


func (vm *vm) handleBinarySafeInt32(op func(a, b int32) (int32, error)) error {
	b := vm.stack.popInt32()
	a := vm.stack.popInt32()
	result, err := op(a, b)
	if err != nil {
		return err
	}
	vm.stack.pushInt32(result)
	return nil
}

func (vm *vm) handleBinarySafeInt64(op func(a, b int64) (int64, error)) error {
	b := vm.stack.popInt64()
	a := vm.stack.popInt64()
	result, err := op(a, b)
	if err != nil {
		return err
	}
	vm.stack.pushInt64(result)
	return nil
}

func (vm *vm) handleBinaryBoolInt32(op func(a, b int32) bool) {
	b := vm.stack.popInt32()
	a := vm.stack.popInt32()
	vm.stack.pushInt32(boolToInt32(op(a, b)))
}

func (vm *vm) handleBinaryBoolInt64(op func(a, b int64) bool) {
	b := vm.stack.popInt64()
	a := vm.stack.popInt64()
	vm.stack.pushInt32(boolToInt32(op(a, b)))
}

func (vm *vm) handleBinaryBoolFloat32(op func(a, b float32) bool) {
	b := vm.stack.popFloat32()
	a := vm.stack.popFloat32()
	vm.stack.pushInt32(boolToInt32(op(a, b)))
}

func (vm *vm) handleBinaryBoolFloat64(op func(a, b float64) bool) {
	b := vm.stack.popFloat64()
	a := vm.stack.popFloat64()
	vm.stack.pushInt32(boolToInt32(op(a, b)))
}

func (vm *vm) handleUnarySafeFloat32(op func(a float32) (int32, error)) error {
	a := vm.stack.popFloat32()
	result, err := op(a)
	if err != nil {
		return err
	}
	vm.stack.pushInt32(result)
	return nil
}

func (vm *vm) handleUnarySafeFloat64(op func(a float64) (int32, error)) error {
	a := vm.stack.popFloat64()
	result, err := op(a)
	if err != nil {
		return err
	}
	vm.stack.pushInt32(result)
	return nil
}

func (vm *vm) handleTruncFloat32Int64(op func(a float32) (int64, error)) error {
	a := vm.stack.popFloat32()
	result, err := op(a)
	if err != nil {
		return err
	}
	vm.stack.pushInt64(result)
	return nil
}

func (vm *vm) handleTruncFloat64Int64(op func(a float64) (int64, error)) error {
	a := vm.stack.popFloat64()
	result, err := op(a)
	if err != nil {
		return err
	}
	vm.stack.pushInt64(result)
	return nil
}

func handleStore[T any](
	vm *vm,
	frame *callFrame,
	val T,
	store func(*Memory, uint32, uint32, T) error,
) error {
	_ = frame.next() // align (unused)
	memory := vm.getMemory(uint32(frame.next()))
	offset := uint32(frame.next())
	index := uint32(vm.stack.popInt32())
	return store(memory, offset, index, val)
}

func handleLoad[T any, R any](
	vm *vm,
	frame *callFrame,
	push func(R),
	load func(*Memory, uint32, uint32) (T, error),
	convert func(T) R,
) error {
	_ = frame.next() // align (unused)
	memory := vm.getMemory(uint32(frame.next()))
	offset := uint32(frame.next())
	index := uint32(vm.stack.popInt32())
	v, err := load(memory, offset, index)
	if err != nil {
		return err
	}
	push(convert(v))
	return nil
}

func (vm *vm) getInputCount(module *ModuleInstance, blockType int32) uint32 {
	if blockType == -0x40 { // empty block type.
		return 0
	}

	if blockType >= 0 { // type index.
		funcType := module.types[blockType]
		return uint32(len(funcType.ParamTypes))
	}

	return 0 // value type.
}

func (vm *vm) getOutputCount(module *ModuleInstance, blockType int32) uint32 {
	if blockType == -0x40 { // empty block type.
		return 0
	}

	if blockType >= 0 { // type index.
		funcType := module.types[blockType]
		return uint32(len(funcType.ResultTypes))
	}

	return 1 // value type.
}

func (vm *vm) pushControlFrame(frame controlFrame) {
	callFrame := vm.currentCallFrame()
	callFrame.controlStack = append(callFrame.controlStack, frame)
}

func (vm *vm) popControlFrame() controlFrame {
	callFrame := vm.currentCallFrame()
	// Validation guarantees the control stack is never empty.
	index := len(callFrame.controlStack) - 1
	frame := callFrame.controlStack[index]
	callFrame.controlStack = callFrame.controlStack[:index]
	return frame
}

func (vm *vm) initActiveElements(
	module *moduleDefinition,
	moduleInstance *ModuleInstance,
) error {
	for _, element := range module.elementSegments {
		if element.mode != activeElementMode {
			continue
		}

		expression := element.offsetExpression
		offsetVal, err := vm.invokeInitExpression(expression, I32, moduleInstance)
		if err != nil {
			return err
		}
		offset := offsetVal.int32()

		storeTableIndex := moduleInstance.tableAddrs[element.tableIndex]
		table := vm.store.tables[storeTableIndex]
		if offset > int32(table.Size()) {
			return errTableOutOfBounds
		}

		if len(element.functionIndexes) > 0 {
			indexes := toStoreFuncIndexes(moduleInstance, element.functionIndexes)
			if err := table.InitFromSlice(offset, indexes); err != nil {
				return err
			}
		}

		if len(element.functionIndexesExpressions) > 0 {
			values := make([]int32, len(element.functionIndexesExpressions))
			for i, expr := range element.functionIndexesExpressions {
				refVal, err := vm.invokeInitExpression(
					expr,
					element.kind,
					moduleInstance,
				)
				if err != nil {
					return err
				}
				values[i] = refVal.int32()
			}

			if err := table.InitFromSlice(offset, values); err != nil {
				return err
			}
		}
	}
	return nil
}

func (vm *vm) initActiveDatas(
	module *moduleDefinition,
	moduleInstance *ModuleInstance,
) error {
	for _, segment := range module.dataSegments {
		if segment.mode != activeDataMode {
			continue
		}

		expression := segment.offsetExpression
		offsetVal, err := vm.invokeInitExpression(expression, I32, moduleInstance)
		if err != nil {
			return err
		}
		offset := offsetVal.int32()
		storeMemoryIndex := moduleInstance.memAddrs[segment.memoryIndex]
		memory := vm.store.memories[storeMemoryIndex]
		if err := memory.Set(uint32(offset), 0, segment.content); err != nil {
			return err
		}
	}

	return nil
}

func (vm *vm) resolveExports(
	module *moduleDefinition,
	instance *ModuleInstance,
) []exportInstance {
	exports := []exportInstance{}
	for _, export := range module.exports {
		var value any
		switch export.indexType {
		case functionExportKind:
			storeIndex := instance.funcAddrs[export.index]
			value = vm.store.funcs[storeIndex]
		case globalExportKind:
			storeIndex := instance.globalAddrs[export.index]
			value = vm.store.globals[storeIndex]
		case memoryExportKind:
			storeIndex := instance.memAddrs[export.index]
			value = vm.store.memories[storeIndex]
		case tableExportKind:
			storeIndex := instance.tableAddrs[export.index]
			value = vm.store.tables[storeIndex]
		}
		exports = append(exports, exportInstance{name: export.name, value: value})
	}
	return exports
}

func (vm *vm) invokeHostFunction(fun *hostFunction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var panicErr error
			switch v := r.(type) {
			case error:
				panicErr = v
			default:
				panicErr = fmt.Errorf("panic: %v", v)
			}
			err = panicErr
		}
	}()

	args := vm.stack.popValueTypes(fun.GetType().ParamTypes)
	res := fun.hostCode(args...)
	vm.stack.pushAll(res)
	return err
}

func (vm *vm) invokeInitExpression(
	expression []uint64,
	resultType ValueType,
	moduleInstance *ModuleInstance,
) (value, error) {
	// We create a fake function to execute the expression.
	// The expression is expected to return a single value.
	function := wasmFunction{
		functionType: FunctionType{
			ParamTypes:  []ValueType{},
			ResultTypes: []ValueType{resultType},
		},
		code:   function{body: expression},
		module: moduleInstance,
	}
	if err := vm.invokeWasmFunction(&function); err != nil {
		return value{}, err
	}
	return vm.stack.pop(), nil
}

func toStoreFuncIndexes(
	moduleInstance *ModuleInstance,
	localIndexes []int32,
) []int32 {
	storeIndices := make([]int32, len(localIndexes))
	for i, localIndex := range localIndexes {
		storeIndices[i] = int32(moduleInstance.funcAddrs[localIndex])
	}
	return storeIndices
}

func (vm *vm) getFunction(localIndex uint32) FunctionInstance {
	functionIndex := vm.currentModuleInstance().funcAddrs[localIndex]
	return vm.store.funcs[functionIndex]
}

func (vm *vm) getTable(localIndex uint32) *Table {
	tableIndex := vm.currentModuleInstance().tableAddrs[localIndex]
	return vm.store.tables[tableIndex]
}

func (vm *vm) getMemory(localIndex uint32) *Memory {
	memoryIndex := vm.currentModuleInstance().memAddrs[localIndex]
	return vm.store.memories[memoryIndex]
}

func (vm *vm) getGlobal(localIndex uint32) *Global {
	globalIndex := vm.currentModuleInstance().globalAddrs[localIndex]
	return vm.store.globals[globalIndex]
}

func (vm *vm) getElement(localIndex uint32) *elementSegment {
	elementIndex := vm.currentModuleInstance().elemAddrs[localIndex]
	return &vm.store.elements[elementIndex]
}

func (vm *vm) getData(localIndex uint32) *dataSegment {
	dataIndex := vm.currentModuleInstance().dataAddrs[localIndex]
	return &vm.store.datas[dataIndex]
}
