// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package epsilon

import "fmt"

type resolvedImports struct {
	functions []FunctionInstance
	tables    []*Table
	memories  []*Memory
	globals   []*Global
}

// resolveImports resolves the imports declared in the given module against
// the provided map of available imports, one sub-map per imported module
// name.
func resolveImports(
	module *moduleDefinition,
	imports map[string]map[string]any,
) (*resolvedImports, error) {
	resolved := &resolvedImports{}
	for _, imp := range module.imports {
		importedModule, ok := imports[imp.moduleName]
		if !ok {
			return nil, fmt.Errorf("missing module %s", imp.moduleName)
		}

		importedObj, ok := importedModule[imp.name]
		if !ok {
			return nil, fmt.Errorf("%s not in module %s", imp.name, imp.moduleName)
		}

		switch imp.kind {
		case functionImportKind:
			funcInstance, err := resolveFunctionImport(module, imp, importedObj)
			if err != nil {
				return nil, err
			}
			resolved.functions = append(resolved.functions, funcInstance)
		case globalImportKind:
			global, err := resolveGlobalImport(imp, importedObj)
			if err != nil {
				return nil, err
			}
			resolved.globals = append(resolved.globals, global)
		case memoryImportKind:
			memory, err := resolveMemoryImport(imp, importedObj)
			if err != nil {
				return nil, err
			}
			resolved.memories = append(resolved.memories, memory)
		case tableImportKind:
			table, err := resolveTableImport(imp, importedObj)
			if err != nil {
				return nil, err
			}
			resolved.tables = append(resolved.tables, table)
		}
	}
	return resolved, nil
}

func resolveFunctionImport(
	module *moduleDefinition,
	imp importDefinition,
	importedObj any,
) (FunctionInstance, error) {
	expectedType := module.types[imp.funcTypeIndex]
	switch f := importedObj.(type) {
	case func(...any) []any:
		return &hostFunction{functionType: expectedType, hostCode: f}, nil
	case FunctionInstance:
		if !f.GetType().Equal(expectedType) {
			return nil, fmt.Errorf(
				"type mismatch for import %s.%s", imp.moduleName, imp.name,
			)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%s.%s not a function", imp.moduleName, imp.name)
	}
}

func resolveGlobalImport(imp importDefinition, importedObj any) (*Global, error) {
	t := imp.globalType
	switch v := importedObj.(type) {
	case int32, int64, float32, float64, V128Value:
		if !valueMatchesType(v, t.ValueType) {
			return nil, fmt.Errorf(
				"incompatible import type for %s.%s: value type mismatch",
				imp.moduleName, imp.name,
			)
		}
		low, high := anyToU64(v)
		return &Global{value: value{low: low, high: high}, Mutable: t.IsMutable, Type: t.ValueType}, nil
	case *Global:
		if v.Mutable != t.IsMutable {
			return nil, fmt.Errorf(
				"incompatible import type for %s.%s: mutability mismatch",
				imp.moduleName, imp.name,
			)
		}
		if v.Type != t.ValueType {
			return nil, fmt.Errorf(
				"incompatible import type for %s.%s: value type mismatch",
				imp.moduleName, imp.name,
			)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%s.%s not a valid global", imp.moduleName, imp.name)
	}
}

func resolveMemoryImport(imp importDefinition, importedObj any) (*Memory, error) {
	memory, ok := importedObj.(*Memory)
	if !ok {
		return nil, fmt.Errorf("%s.%s not a memory", imp.moduleName, imp.name)
	}
	provided := Limits{Min: uint32(memory.Size()), Max: memory.Limits.Max}
	if !limitsMatch(provided, imp.memoryType.Limits) {
		return nil, fmt.Errorf(
			"incompatible import type for %s.%s: limits mismatch",
			imp.moduleName, imp.name,
		)
	}
	return memory, nil
}

func resolveTableImport(imp importDefinition, importedObj any) (*Table, error) {
	table, ok := importedObj.(*Table)
	if !ok {
		return nil, fmt.Errorf("%s.%s not a table", imp.moduleName, imp.name)
	}
	if table.Type.ReferenceType != imp.tableType.ReferenceType {
		return nil, fmt.Errorf(
			"incompatible import type for %s.%s: reference type mismatch",
			imp.moduleName, imp.name,
		)
	}
	provided := Limits{Min: uint32(table.Size()), Max: table.Type.Limits.Max}
	if !limitsMatch(provided, imp.tableType.Limits) {
		return nil, fmt.Errorf(
			"incompatible import type for %s.%s: limits mismatch",
			imp.moduleName, imp.name,
		)
	}
	return table, nil
}

func valueMatchesType(val any, t ValueType) bool {
	switch t {
	case I32:
		_, ok := val.(int32)
		return ok
	case I64:
		_, ok := val.(int64)
		return ok
	case F32:
		_, ok := val.(float32)
		return ok
	case F64:
		_, ok := val.(float64)
		return ok
	case V128:
		_, ok := val.(V128Value)
		return ok
	case FuncRefType, ExternRefType:
		_, ok := val.(int32)
		return ok
	default:
		return false
	}
}

func limitsMatch(provided, required Limits) bool {
	if provided.Min < required.Min {
		return false
	}
	if required.Max != nil {
		if provided.Max == nil {
			return false
		}
		if *provided.Max > *required.Max {
			return false
		}
	}
	return true
}
