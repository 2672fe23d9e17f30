package wasm_test

import (
	"bytes"
	"testing"

	"github.com/tim-harding/wasm-bin/wasm"
)

func TestEncodeEmptyModule(t *testing.T) {
	m := &wasm.Module{}
	got, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestWritePreamble(t *testing.T) {
	var buf bytes.Buffer
	if err := wasm.WritePreamble(&buf); err != nil {
		t.Fatalf("WritePreamble: %v", err)
	}
	want := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %x, want %x", buf.Bytes(), want)
	}
}

func TestWriteSectionsEmptyModule(t *testing.T) {
	var buf bytes.Buffer
	m := &wasm.Module{}
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty module, got %x", buf.Bytes())
	}
}

// Hand-assembled module covering the type, import, function, export, and
// code sections. Every byte below was computed against the binary format
// directly rather than copied from encoder output.
func TestEncodeModule(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{
			Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
			Results: []wasm.ValType{wasm.ValI32},
		}},
		Imports: []wasm.Import{{
			Module:  "env",
			Name:    "add",
			Kind:    wasm.KindFunc,
			TypeIdx: 0,
		}},
		Funcs: []uint32{0},
		Exports: []wasm.Export{{
			Name: "add2",
			Kind: wasm.KindFunc,
			Idx:  1,
		}},
		Code: []wasm.FuncBody{{
			Body: wasm.Expr{
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
				{Opcode: wasm.OpI32Add},
			},
		}},
	}

	got, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{
		// Preamble
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		// Type section: one type (i32, i32) -> i32
		0x01, 0x07, 0x01, 0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F,
		// Import section: env.add, func type 0
		0x02, 0x0B, 0x01, 0x03, 'e', 'n', 'v', 0x03, 'a', 'd', 'd', 0x00, 0x00,
		// Function section: one function of type 0
		0x03, 0x02, 0x01, 0x00,
		// Export section: "add2" -> func 1
		0x07, 0x08, 0x01, 0x04, 'a', 'd', 'd', '2', 0x00, 0x01,
		// Code section: one body, no locals
		0x0A, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x00, 0x6A, 0x0B,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got  %x\nwant %x", got, want)
	}
}

func TestEncodeTableMemoryGlobal(t *testing.T) {
	max := uint32(2)
	m := &wasm.Module{
		Tables: []wasm.TableType{{
			Elem:   wasm.RefFunc,
			Limits: wasm.Limits{Min: 1, Max: &max},
		}},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Globals: []wasm.Global{{
			Type: wasm.GlobalType{Type: wasm.ValI32, Mutable: true},
			Init: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 7}}},
		}},
	}

	var buf bytes.Buffer
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	want := []byte{
		// Table section: funcref, min 1, max 2
		0x04, 0x05, 0x01, 0x70, 0x01, 0x01, 0x02,
		// Memory section: min 1, no max
		0x05, 0x03, 0x01, 0x00, 0x01,
		// Global section: mutable i32 = 7
		0x06, 0x06, 0x01, 0x7F, 0x01, 0x41, 0x07, 0x0B,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got  %x\nwant %x", buf.Bytes(), want)
	}
}

func TestEncodeStartSection(t *testing.T) {
	start := uint32(3)
	m := &wasm.Module{Start: &start}

	var buf bytes.Buffer
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	want := []byte{0x08, 0x01, 0x03}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %x, want %x", buf.Bytes(), want)
	}
}

func TestEncodeElementSection(t *testing.T) {
	tests := []struct {
		name string
		elem wasm.Element
		want []byte
	}{
		{
			// Form 0: active, table 0, offset expr, funcidx vector.
			name: "active funcidx",
			elem: wasm.Element{
				Flags:    0,
				Offset:   wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}}},
				FuncIdxs: []uint32{0, 1},
			},
			want: []byte{0x00, 0x41, 0x00, 0x0B, 0x02, 0x00, 0x01},
		},
		{
			// Form 1: passive with elemkind byte.
			name: "passive funcidx",
			elem: wasm.Element{
				Flags:    1,
				ElemKind: 0x00,
				FuncIdxs: []uint32{2},
			},
			want: []byte{0x01, 0x00, 0x01, 0x02},
		},
		{
			// Form 2: active with explicit table index and elemkind.
			name: "active explicit table",
			elem: wasm.Element{
				Flags:    2,
				TableIdx: 1,
				Offset:   wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 4}}},
				ElemKind: 0x00,
				FuncIdxs: []uint32{5},
			},
			want: []byte{0x02, 0x01, 0x41, 0x04, 0x0B, 0x00, 0x01, 0x05},
		},
		{
			// Form 4: active with expression initializers, no reftype byte.
			name: "active exprs",
			elem: wasm.Element{
				Flags:  4,
				Offset: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}}},
				Exprs: []wasm.Expr{
					{{Opcode: wasm.OpRefFunc, Imm: wasm.RefFuncImm{FuncIdx: 0}}},
				},
			},
			want: []byte{0x04, 0x41, 0x00, 0x0B, 0x01, 0xD2, 0x00, 0x0B},
		},
		{
			// Form 5: passive with reftype byte and expressions.
			name: "passive exprs",
			elem: wasm.Element{
				Flags:   5,
				RefType: wasm.RefFunc,
				Exprs: []wasm.Expr{
					{{Opcode: wasm.OpRefNull, Imm: wasm.RefNullImm{Type: wasm.RefFunc}}},
				},
			},
			want: []byte{0x05, 0x70, 0x01, 0xD0, 0x70, 0x0B},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &wasm.Module{Elements: []wasm.Element{tt.elem}}
			var buf bytes.Buffer
			if err := m.WriteSections(&buf); err != nil {
				t.Fatalf("WriteSections: %v", err)
			}
			// Frame: section ID 9, payload length, count 1, then the form.
			want := append([]byte{0x09, byte(len(tt.want) + 1), 0x01}, tt.want...)
			if !bytes.Equal(buf.Bytes(), want) {
				t.Errorf("got  %x\nwant %x", buf.Bytes(), want)
			}
		})
	}
}

func TestEncodeDataSection(t *testing.T) {
	count := uint32(3)
	m := &wasm.Module{
		Data: []wasm.DataSegment{
			{
				Flags:  0,
				Offset: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 8}}},
				Init:   []byte("hi"),
			},
			{
				Flags: 1,
				Init:  []byte{0xDE, 0xAD},
			},
			{
				Flags:  2,
				MemIdx: 0,
				Offset: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}}},
				Init:   []byte{0x01},
			},
		},
		DataCount: &count,
	}

	var buf bytes.Buffer
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	want := []byte{
		// DataCount section precedes the data section
		0x0C, 0x01, 0x03,
		// Data section: three segments
		0x0B, 0x13, 0x03,
		// Active: offset i32.const 8, "hi"
		0x00, 0x41, 0x08, 0x0B, 0x02, 'h', 'i',
		// Passive: raw bytes only
		0x01, 0x02, 0xDE, 0xAD,
		// Active with explicit memory index
		0x02, 0x00, 0x41, 0x00, 0x0B, 0x01, 0x01,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got  %x\nwant %x", buf.Bytes(), want)
	}
}

func TestEncodeCustomSection(t *testing.T) {
	m := &wasm.Module{
		CustomSections: []wasm.CustomSection{{
			Name: "meta",
			Data: []byte{0x01, 0x02},
		}},
	}

	var buf bytes.Buffer
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	want := []byte{0x00, 0x07, 0x04, 'm', 'e', 't', 'a', 0x01, 0x02}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %x, want %x", buf.Bytes(), want)
	}
}

func TestEncodeCodeLocals(t *testing.T) {
	m := &wasm.Module{
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{{
			Locals: []wasm.LocalEntry{
				{Count: 2, Type: wasm.ValI32},
				{Count: 1, Type: wasm.ValF64},
			},
			Body: wasm.Expr{{Opcode: wasm.OpNop}},
		}},
	}

	var buf bytes.Buffer
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	want := []byte{
		0x03, 0x02, 0x01, 0x00,
		// Code: body length 7, locals vec {2 x i32, 1 x f64}, nop, end
		0x0A, 0x09, 0x01, 0x07, 0x02, 0x02, 0x7F, 0x01, 0x7C, 0x01, 0x0B,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got  %x\nwant %x", buf.Bytes(), want)
	}
}

func TestEncodeSectionLengthBoundary(t *testing.T) {
	// A custom section payload over 127 bytes forces a two-byte length
	// prefix on the frame.
	data := bytes.Repeat([]byte{0xAA}, 130)
	m := &wasm.Module{
		CustomSections: []wasm.CustomSection{{Name: "big", Data: data}},
	}

	var buf bytes.Buffer
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	got := buf.Bytes()
	// Payload is name (4 bytes) + data (130 bytes) = 134 = 0x86.
	wantHeader := []byte{0x00, 0x86, 0x01, 0x03, 'b', 'i', 'g'}
	if !bytes.Equal(got[:len(wantHeader)], wantHeader) {
		t.Errorf("header: got %x, want %x", got[:len(wantHeader)], wantHeader)
	}
	if len(got) != len(wantHeader)+130 {
		t.Errorf("total length %d, want %d", len(got), len(wantHeader)+130)
	}
}

func TestEncodeNestingLimitPropagates(t *testing.T) {
	ins := wasm.Instruction{Opcode: wasm.OpNop}
	for i := 0; i < 5; i++ {
		ins = wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{
			Type: wasm.BlockTypeEmpty,
			Body: []wasm.Instruction{ins},
		}}
	}
	m := &wasm.Module{
		Funcs:      []uint32{0},
		Code:       []wasm.FuncBody{{Body: wasm.Expr{ins}}},
		MaxNesting: 3,
	}
	if _, err := m.Encode(); err == nil {
		t.Fatal("expected nesting depth error")
	}

	m.MaxNesting = 16
	if _, err := m.Encode(); err != nil {
		t.Fatalf("unexpected error with generous limit: %v", err)
	}
}

func TestEncodeImportKinds(t *testing.T) {
	max := uint32(1)
	m := &wasm.Module{
		Imports: []wasm.Import{
			{Module: "e", Name: "t", Kind: wasm.KindTable,
				Table: &wasm.TableType{Elem: wasm.RefFunc, Limits: wasm.Limits{Min: 1, Max: &max}}},
			{Module: "e", Name: "m", Kind: wasm.KindMemory,
				Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1}}},
			{Module: "e", Name: "g", Kind: wasm.KindGlobal,
				Global: &wasm.GlobalType{Type: wasm.ValI64, Mutable: true}},
		},
	}

	var buf bytes.Buffer
	if err := m.WriteSections(&buf); err != nil {
		t.Fatalf("WriteSections: %v", err)
	}
	want := []byte{
		0x02, 0x18, 0x03,
		0x01, 'e', 0x01, 't', 0x01, 0x70, 0x01, 0x01, 0x01,
		0x01, 'e', 0x01, 'm', 0x02, 0x00, 0x01,
		0x01, 'e', 0x01, 'g', 0x03, 0x7E, 0x01,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got  %x\nwant %x", buf.Bytes(), want)
	}
}
