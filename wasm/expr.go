package wasm

import (
	"bytes"
)

// Expr is a finite instruction sequence. Its encoding is each instruction
// in order followed by the end marker; function bodies, global
// initializers, and element/data offset expressions all encode this way.
// Nested block bodies are terminated by the instruction encoder itself and
// never pass through here, so no construct gets a doubled end marker.
type Expr []Instruction

// EncodeExprTo writes the expression and its trailing end marker to buf.
func EncodeExprTo(buf *bytes.Buffer, e Expr) error {
	return encodeExpr(buf, e, DefaultMaxNesting)
}

// EncodeExpr encodes the expression to bytes.
func EncodeExpr(e Expr) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeExprTo(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeExpr(buf *bytes.Buffer, e Expr, maxDepth int) error {
	if err := encodeInstrs(buf, e, 0, maxDepth); err != nil {
		return err
	}
	buf.WriteByte(OpEnd)
	return nil
}
