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

// errFuncNotFound and errExportTypeMismatch are the sentinels getExport
// wraps so callers (and asTrapCode) can classify a lookup failure without
// parsing its message.
var (
	errFuncNotFound       = errors.New("no export with that name")
	errExportTypeMismatch = errors.New("export is not of the requested kind")
)

// exportInstance is the runtime representation of a single export: a name
// resolved to the store value it denotes.
type exportInstance struct {
	name  string
	value any
}

// ModuleInstance is the runtime representation of an instantiated module: an
// index space mapping the module's local function/table/memory/global/
// element/data indices to addresses in the owning vm's store.
type ModuleInstance struct {
	types       []FunctionType
	funcAddrs   []uint32
	tableAddrs  []uint32
	memAddrs    []uint32
	globalAddrs []uint32
	elemAddrs   []uint32
	dataAddrs   []uint32
	exports     []exportInstance
	vm          *vm
}

// Invoke calls an exported function by name with the given arguments.
//
// Args can be int32, int64, float32, float64, or V128Value. The function
// returns a slice of results as []any, which can be type-asserted to the
// appropriate types. An error raised by the running code itself (division
// by zero, an out of bounds memory access, ...) is always a *Trap. An unknown
// export name is also a *Trap, with CodeFuncNotFound; a reentrant call is a
// plain error.
func (m *ModuleInstance) Invoke(name string, args ...any) ([]any, error) {
	export, err := m.getExport(name, functionExportKind)
	if err != nil {
		return nil, asTrapOrErr(err)
	}
	return m.vm.invoke(export.(FunctionInstance), args)
}

// GetMemory returns an exported memory by name.
func (m *ModuleInstance) GetMemory(name string) (*Memory, error) {
	export, err := m.getExport(name, memoryExportKind)
	if err != nil {
		return nil, asTrapOrErr(err)
	}
	return export.(*Memory), nil
}

// GetTable returns an exported table by name.
func (m *ModuleInstance) GetTable(name string) (*Table, error) {
	export, err := m.getExport(name, tableExportKind)
	if err != nil {
		return nil, asTrapOrErr(err)
	}
	return export.(*Table), nil
}

// GetGlobal returns the current value of an exported global by name.
func (m *ModuleInstance) GetGlobal(name string) (any, error) {
	export, err := m.getExport(name, globalExportKind)
	if err != nil {
		return nil, asTrapOrErr(err)
	}
	global := export.(*Global)
	return global.value.anyValueType(global.Type), nil
}

// asTrapOrErr classifies err against the stable trap taxonomy, returning a
// *Trap when it recognizes it and err unchanged otherwise.
func asTrapOrErr(err error) error {
	if code, ok := asTrapCode(err); ok {
		return trap(code)
	}
	return err
}

// RegisterExternRef allocates a handle for a host value v and returns it as
// the externref (an int32 handle) a host function can push back onto the
// stack or store into an exported global/table slot.
func (m *ModuleInstance) RegisterExternRef(v any) int32 {
	return m.vm.store.handles.register(v)
}

// ResolveExternRef returns the host value behind an externref handle
// received as an argument to a host function. ok is false for null or an
// unknown/released handle.
func (m *ModuleInstance) ResolveExternRef(handle int32) (any, bool) {
	return m.vm.store.handles.resolve(handle)
}

// ReleaseExternRef frees a handle previously returned by RegisterExternRef.
func (m *ModuleInstance) ReleaseExternRef(handle int32) {
	m.vm.store.handles.release(handle)
}

// GetFunction returns an exported function by name.
func (m *ModuleInstance) GetFunction(name string) (FunctionInstance, error) {
	export, err := m.getExport(name, functionExportKind)
	if err != nil {
		return nil, asTrapOrErr(err)
	}
	return export.(FunctionInstance), nil
}

func (m *ModuleInstance) getExport(name string, kind exportKind) (any, error) {
	for _, export := range m.exports {
		if export.name != name {
			continue
		}
		if !exportValueMatchesKind(export.value, kind) {
			return nil, fmt.Errorf("export %q: %w", name, errExportTypeMismatch)
		}
		return export.value, nil
	}
	return nil, fmt.Errorf("export %q: %w", name, errFuncNotFound)
}

func exportValueMatchesKind(value any, kind exportKind) bool {
	switch kind {
	case functionExportKind:
		_, ok := value.(FunctionInstance)
		return ok
	case tableExportKind:
		_, ok := value.(*Table)
		return ok
	case memoryExportKind:
		_, ok := value.(*Memory)
		return ok
	case globalExportKind:
		_, ok := value.(*Global)
		return ok
	default:
		return false
	}
}

// FunctionInstance is the common interface implemented by functions callable
// from within the vm, whether defined by a WASM module or supplied by the
// host.
type FunctionInstance interface {
	GetType() *FunctionType
}

// wasmFunction is the runtime representation of a function defined in a
// WASM module.
type wasmFunction struct {
	functionType FunctionType
	module       *ModuleInstance
	code         function
}

func newWasmFunction(functionType FunctionType, module *ModuleInstance, code function) *wasmFunction {
	if code.jumpCache == nil {
		code.jumpCache = map[uint32]uint32{}
	}
	if code.jumpElseCache == nil {
		code.jumpElseCache = map[uint32]uint32{}
	}
	return &wasmFunction{functionType: functionType, module: module, code: code}
}

func (f *wasmFunction) GetType() *FunctionType { return &f.functionType }

// hostFunction is a function supplied by the embedder.
type hostFunction struct {
	functionType FunctionType
	hostCode     func(...any) []any
}

func (f *hostFunction) GetType() *FunctionType { return &f.functionType }

// Global is the runtime representation of a global variable.
type Global struct {
	value   value
	Mutable bool
	Type    ValueType
}
