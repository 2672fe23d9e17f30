package wasm

import (
	"github.com/tim-harding/wasm-bin/wasm/internal/binary"
)

// ValType is a WebAssembly value type, encoded as a single byte.
type ValType byte

// RefType is a reference type (funcref or externref).
type RefType byte

// BlockType is the declared result shape of a block, loop, or if.
//
// The value is the s33 the binary format encodes: negative values are the
// empty shape or a value type, non-negative values reference a function
// type by index. Build value-type shapes with BlockTypeOf and type-index
// shapes with BlockTypeIdx; the uint32 parameter of BlockTypeIdx keeps
// every constructible index inside the non-negative 33-bit range, so the
// encoding can never collide with a value type or the empty marker.
type BlockType int64

// BlockTypeEmpty is the no-result block shape (0x40).
const BlockTypeEmpty BlockType = -64

// BlockTypeOf returns the block shape with a single result of type t.
func BlockTypeOf(t ValType) BlockType {
	// Value type bytes 0x6F..0x7F are the signed LEB128 encodings of
	// -17..-1; 0x40 maps to -64 (BlockTypeEmpty).
	return BlockType(int64(t) - 0x80)
}

// BlockTypeIdx returns the block shape declared by function type index idx.
func BlockTypeIdx(idx uint32) BlockType {
	return BlockType(int64(idx))
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Limits bounds the size of a table or memory. Max is optional.
type Limits struct {
	Min uint32
	Max *uint32
}

// TableType declares a table's element type and size bounds.
type TableType struct {
	Elem   RefType
	Limits Limits
}

// MemoryType declares a linear memory's size bounds in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType declares a global's value type and mutability.
type GlobalType struct {
	Type    ValType
	Mutable bool
}

func writeValTypes(w *binary.Writer, types []ValType) {
	writeVec(w, types, func(w *binary.Writer, t ValType) {
		w.Byte(byte(t))
	})
}

func writeFuncType(w *binary.Writer, ft FuncType) {
	w.Byte(FuncTypeByte)
	writeValTypes(w, ft.Params)
	writeValTypes(w, ft.Results)
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max != nil {
		w.Byte(LimitsHasMax)
		w.WriteU32(l.Min)
		w.WriteU32(*l.Max)
	} else {
		w.Byte(LimitsNoMax)
		w.WriteU32(l.Min)
	}
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.Elem))
	writeLimits(w, t.Limits)
}

func writeMemoryType(w *binary.Writer, m MemoryType) {
	writeLimits(w, m.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.Type))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
