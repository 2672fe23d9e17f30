package wasm

import (
	"github.com/tim-harding/wasm-bin/wasm/internal/binary"
)

// writeVec encodes a homogeneous sequence as its LEB128 element count
// followed by each element in iteration order. Position in the sequence is
// what later constructs index by, so order is preserved exactly as given.
func writeVec[T any](w *binary.Writer, items []T, enc func(*binary.Writer, T)) {
	w.WriteU32(uint32(len(items)))
	for _, item := range items {
		enc(w, item)
	}
}
