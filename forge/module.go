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

// moduleDefinition is the decoded, validated representation of a WebAssembly
// module that the loader and validator hand to the vm at instantiate time.
// Everything here is produced by components outside this package; the vm
// only ever reads it.
type moduleDefinition struct {
	types           []FunctionType
	funcs           []function
	tables          []TableType
	memories        []MemoryType
	globalVariables []globalDefinition
	elementSegments []elementSegment
	dataSegments    []dataSegment
	imports         []importDefinition
	exports         []exportDefinition
	startIndex      *uint32
}

// function is the code of a single function defined in a module: its type
// index into moduleDefinition.types, the value types of its declared locals
// (beyond its parameters), and its body as a decodable instruction stream.
//
// jumpCache and jumpElseCache hold the continuation pc for each block-like
// opcode, filled in ahead of execution by computeJumpTables; the vm only
// reads them. The key is the pc of the first instruction inside the block. They
// live here, rather than on the calling frame, so repeated invocations of
// the same function share the cache.
type function struct {
	typeIndex uint32
	locals    []ValueType
	body      []uint64

	jumpCache     map[uint32]uint32
	jumpElseCache map[uint32]uint32
}

// importKind classifies a moduleDefinition import.
type importKind int

const (
	functionImportKind importKind = iota
	tableImportKind
	memoryImportKind
	globalImportKind
)

// importDefinition describes a single import a module declares.
type importDefinition struct {
	moduleName string
	name       string
	kind       importKind
	// funcTypeIndex is populated when kind == functionImportKind.
	funcTypeIndex uint32
	// tableType, memoryType, globalType are populated for the matching kind.
	tableType  TableType
	memoryType MemoryType
	globalType GlobalType
}

// exportKind classifies an export by the store namespace its index resolves
// into.
type exportKind int

const (
	functionExportKind exportKind = iota
	tableExportKind
	memoryExportKind
	globalExportKind
)

// exportDefinition describes a single export a module declares.
type exportDefinition struct {
	name      string
	indexType exportKind
	index     uint32
}

// elementMode specifies how an element segment is initialized at
// instantiate time.
type elementMode int

const (
	activeElementMode elementMode = iota
	passiveElementMode
	declarativeElementMode
)

// elementSegment is the runtime representation of a module's element
// segment, used to populate table entries at instantiate time.
type elementSegment struct {
	mode elementMode
	kind ValueType

	// functionIndexes holds function indexes directly. Used when
	// functionIndexesExpressions is empty.
	functionIndexes []int32

	// functionIndexesExpressions holds constant expressions that each produce
	// a single reference value. Used when functionIndexes is empty.
	functionIndexesExpressions [][]uint64

	// tableIndex and offsetExpression are only meaningful when
	// mode == activeElementMode.
	tableIndex       uint32
	offsetExpression []uint64
}

// dataMode specifies how a data segment is initialized at instantiate time.
type dataMode int

const (
	activeDataMode dataMode = iota
	passiveDataMode
)

// dataSegment is the runtime representation of a module's data segment.
type dataSegment struct {
	mode    dataMode
	content []byte

	// memoryIndex and offsetExpression are only meaningful when
	// mode == activeDataMode.
	memoryIndex      uint32
	offsetExpression []uint64
}

// globalDefinition is a module-defined global together with the constant
// expression that computes its initial value.
type globalDefinition struct {
	globalType     GlobalType
	initExpression []uint64
}
