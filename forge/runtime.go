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
	"maps"

	"go.uber.org/zap"
)

// errModuleNotRegistered is returned by Invoke/GetGlobalByModule when the
// requested module_name was never registered via RegisterModule.
var errModuleNotRegistered = errors.New("no module registered under that name")

func wrongInstance(moduleName string) error {
	return fmt.Errorf("module %q: %w", moduleName, errModuleNotRegistered)
}

// Runtime provides the main API for instantiating and interacting with WASM
// modules. Runtime owns the execution core only: decoding a .wasm binary
// into a *moduleDefinition and running the static validator over it are the
// job of a loader, external to this package, which hands Runtime an
// already-decoded module. A Runtime is not safe for concurrent use and
// rejects reentrant calls made from within a host function it is currently
// running (see vm.running).
type Runtime struct {
	vm     *vm
	config Config
	logger *zap.Logger

	// registered holds module instances made addressable by name via
	// RegisterModule, for later lookup from Invoke/GetGlobalByModule.
	registered map[string]*ModuleInstance
}

// NewRuntime creates a new Runtime with default settings.
func NewRuntime() *Runtime {
	return &Runtime{config: DefaultConfig(), logger: zap.NewNop()}
}

// RegisterModule makes instance's exports addressable under name for direct
// Invoke/GetGlobalByModule calls against that name.
// ModuleImportBuilder.AddModuleExports takes an instance and does not consult
// this registry.
func (r *Runtime) RegisterModule(name string, instance *ModuleInstance) {
	if r.registered == nil {
		r.registered = make(map[string]*ModuleInstance)
	}
	r.registered[name] = instance
}

// Invoke calls field on the module registered under moduleName. It is the
// multi-module counterpart to (*ModuleInstance).Invoke, for embedders that
// address module instances by name rather than holding onto the instance
// value itself.
func (r *Runtime) Invoke(moduleName, field string, args ...any) ([]any, error) {
	instance, ok := r.registered[moduleName]
	if !ok {
		return nil, asTrapOrErr(wrongInstance(moduleName))
	}
	return instance.Invoke(field, args...)
}

// GetGlobalByModule reads an exported global from the module registered
// under moduleName.
func (r *Runtime) GetGlobalByModule(moduleName, field string) (any, error) {
	instance, ok := r.registered[moduleName]
	if !ok {
		return nil, asTrapOrErr(wrongInstance(moduleName))
	}
	return instance.GetGlobal(field)
}

// WithConfig sets the configuration for the runtime. Must be called before
// instantiating any modules.
func (r *Runtime) WithConfig(config Config) *Runtime {
	r.config = config
	return r
}

// WithLogger attaches a logger the runtime uses for instantiation and
// resource diagnostics. The interpreter's dispatch loop itself never logs -
// only the runtime layer around it does. A nil logger is treated as a no-op
// logger.
func (r *Runtime) WithLogger(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.logger = logger
	return r
}

// InstantiateModule instantiates an already-decoded module with no imports.
func (r *Runtime) InstantiateModule(module *moduleDefinition) (*ModuleInstance, error) {
	return r.InstantiateModuleWithImports(module, map[string]map[string]any{})
}

// InstantiateModuleWithImports instantiates an already-decoded module,
// resolving its imports against the supplied host and module objects. When
// several import maps name the same module, their entries are merged, with
// later maps taking precedence on name collisions.
func (r *Runtime) InstantiateModuleWithImports(
	module *moduleDefinition,
	imports ...map[string]map[string]any,
) (*ModuleInstance, error) {
	r.ensureVm()

	merged := make(map[string]map[string]any)
	for _, importMap := range imports {
		for moduleName, exports := range importMap {
			if _, exists := merged[moduleName]; !exists {
				merged[moduleName] = make(map[string]any)
			}
			maps.Copy(merged[moduleName], exports)
		}
	}

	instance, err := r.vm.instantiate(module, merged)
	if err != nil {
		r.logger.Debug("instantiation failed", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("module instantiated",
		zap.Int("funcs", len(instance.funcAddrs)),
		zap.Int("memories", len(instance.memAddrs)),
	)
	return instance, nil
}

// InstructionCount returns the number of instructions dispatched so far,
// when Config.EnableInstructionCounter is set. It is always 0 otherwise.
func (r *Runtime) InstructionCount() uint64 {
	if r.vm == nil {
		return 0
	}
	return r.vm.instructionCount
}

func (r *Runtime) ensureVm() {
	if r.vm == nil {
		r.vm = newVm(r.config)
	}
}

// ModuleImportBuilder provides a fluent, type-safe API for building import
// objects for a specific WASM module.
//
// Example:
//
//	envImports := epsilon.NewModuleImportBuilder("env").
//	    AddHostFunc("log", func(args ...any) []any {
//	        fmt.Println("WASM says:", args[0])
//	        return nil
//	    }).
//	    AddMemory("memory", epsilon.NewMemory(epsilon.MemoryType{
//	        Limits: epsilon.Limits{Min: 1},
//	    })).
//	    AddGlobal("offset", int32(1024), false, epsilon.I32).
//	    Build()
//
//	instance, err := runtime.InstantiateModuleWithImports(module, envImports)
type ModuleImportBuilder struct {
	moduleName string
	imports    map[string]any
}

func NewModuleImportBuilder(moduleName string) *ModuleImportBuilder {
	return &ModuleImportBuilder{
		moduleName: moduleName,
		imports:    make(map[string]any),
	}
}

func (b *ModuleImportBuilder) AddHostFunc(
	name string,
	fn func(...any) []any,
) *ModuleImportBuilder {
	b.imports[name] = fn
	return b
}

func (b *ModuleImportBuilder) AddMemory(
	name string,
	memory *Memory,
) *ModuleImportBuilder {
	b.imports[name] = memory
	return b
}

func (b *ModuleImportBuilder) AddTable(
	name string,
	table *Table,
) *ModuleImportBuilder {
	b.imports[name] = table
	return b
}

func (b *ModuleImportBuilder) AddGlobal(
	name string,
	initialValue any,
	mutable bool,
	valueType ValueType,
) *ModuleImportBuilder {
	low, high := anyToU64(initialValue)
	b.imports[name] = &Global{
		value:   value{low: low, high: high},
		Mutable: mutable,
		Type:    valueType,
	}
	return b
}

// AddModuleExports adds all exports from a ModuleInstance as imports.
// This is useful when you want to import functions, memories, tables, or
// globals from one module into another.
func (b *ModuleImportBuilder) AddModuleExports(
	instance *ModuleInstance,
) *ModuleImportBuilder {
	for _, export := range instance.exports {
		b.imports[export.name] = export.value
	}
	return b
}

func (b *ModuleImportBuilder) Build() map[string]map[string]any {
	return map[string]map[string]any{
		b.moduleName: b.imports,
	}
}
