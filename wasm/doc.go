// Package wasm encodes in-memory WebAssembly modules to the binary format.
//
// This package is a one-directional codec: a fully constructed module AST
// goes in, canonical bytes come out. It does not parse binaries back into
// modules and it does not validate semantics; index bounds, type
// compatibility, and stack effects are the caller's concern. A given
// module value has exactly one encoding and encoding is deterministic.
//
// # Supported Features
//
//	WebAssembly 2.0 core:
//	  - Value types (i32, i64, f32, f64, v128, funcref, externref)
//	  - Functions, tables, memories, globals
//	  - Control flow with nested bodies, calls, local/global access
//	  - Memory and table operations, bulk memory (0xFC space)
//	  - SIMD 128-bit vector operations (0xFD space)
//	  - Import/export of all definitions
//	  - Element and data segments in all flag forms
//	  - Custom sections
//
// # Encoding
//
// Build a module and encode it:
//
//	m := &wasm.Module{
//	    Types: []wasm.FuncType{{
//	        Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
//	        Results: []wasm.ValType{wasm.ValI32},
//	    }},
//	    Funcs: []uint32{0},
//	    Code: []wasm.FuncBody{{Body: wasm.Expr{
//	        {Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
//	        {Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
//	        {Opcode: wasm.OpI32Add},
//	    }}},
//	}
//	data, err := m.Encode()
//
// Encode emits the preamble followed by sections. Callers that own the
// preamble can use WriteSections, which writes the sections alone to any
// io.Writer and reports the sink's first write error.
//
// # Nesting
//
// Structured instructions nest through their immediate values, and the
// encoder recurses through them. Depth is bounded (DefaultMaxNesting,
// overridable per module via MaxNesting) so that hostile input fails with
// ErrNestingTooDeep instead of exhausting the stack.
package wasm
