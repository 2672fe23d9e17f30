package wasm

// Module is the in-memory representation of a WebAssembly module, built by
// the caller and consumed by Encode. The encoder treats it as immutable
// value data; nothing here is checked for semantic well-formedness (index
// bounds, type compatibility), only turned into its canonical bytes.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for locally defined functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount mirrors len(Data) in the DataCount section (ID 12).
	// Required when data indices appear in code (bulk memory operations).
	DataCount *uint32

	CustomSections []CustomSection

	// MaxNesting bounds block nesting depth during encoding.
	// Zero means DefaultMaxNesting.
	MaxNesting int
}

// Import declares a single imported definition. Exactly one of the
// descriptor fields matching Kind is consulted: TypeIdx for KindFunc,
// Table/Memory/Global for their kinds.
type Import struct {
	Module  string
	Name    string
	Kind    byte
	TypeIdx uint32
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
}

// Export names a definition by index within its kind's index space.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Global pairs a global's type with its constant initializer expression.
type Global struct {
	Type GlobalType
	Init Expr
}

// Element is an element segment. Flags selects one of the eight binary
// forms:
//
//	bit 0 clear: active (Offset present; TableIdx present when bit 1 set)
//	bit 0 set:   passive (bit 1 clear) or declared (bit 1 set)
//	bit 2 clear: FuncIdxs with an elemkind byte in forms 1-3
//	bit 2 set:   Exprs with a reftype byte in forms 5-7
type Element struct {
	Flags    uint32
	TableIdx uint32
	Offset   Expr
	ElemKind byte
	RefType  RefType
	FuncIdxs []uint32
	Exprs    []Expr
}

// DataSegment is a data segment: active (flags 0), passive (flags 1), or
// active with an explicit memory index (flags 2).
type DataSegment struct {
	Flags  uint32
	MemIdx uint32
	Offset Expr
	Init   []byte
}

// LocalEntry declares Count consecutive locals of the same type.
type LocalEntry struct {
	Count uint32
	Type  ValType
}

// FuncBody is one code section entry: local declarations plus the body
// expression.
type FuncBody struct {
	Locals []LocalEntry
	Body   Expr
}

// CustomSection carries an uninterpreted named payload.
type CustomSection struct {
	Name string
	Data []byte
}

func (m *Module) maxNesting() int {
	if m.MaxNesting > 0 {
		return m.MaxNesting
	}
	return DefaultMaxNesting
}
