// Package binary provides the low-level byte sink used when assembling
// WebAssembly binary modules.
package binary

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// Writer accumulates WASM binary encoding output. In buffer mode it grows
// an in-memory payload whose final length feeds a section's length prefix.
// In sink mode it forwards to an io.Writer and latches the first write
// error; once a write fails every later call is a no-op and Err reports
// the failure.
type Writer struct {
	buf  *bytes.Buffer
	sink io.Writer
	err  error
}

// NewWriter creates a buffer-mode Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// NewSinkWriter creates a Writer that forwards to w.
func NewSinkWriter(w io.Writer) *Writer {
	return &Writer{sink: w}
}

// Err returns the first write error, or nil. Buffer-mode writers never fail.
func (w *Writer) Err() error {
	return w.err
}

// Bytes returns the written bytes. Buffer mode only.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Buffer returns the underlying buffer. Buffer mode only.
func (w *Writer) Buffer() *bytes.Buffer {
	return w.buf
}

// Len returns the number of bytes written. Buffer mode only.
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	if w.buf != nil {
		w.buf.Write(p)
		return
	}
	_, w.err = w.sink.Write(p)
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.write([]byte{b})
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.write(data)
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteU32(v uint32) {
	var buf [5]byte
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if v == 0 {
			break
		}
	}
	w.write(buf[:n])
}

// WriteU64 writes an unsigned LEB128 encoded uint64.
func (w *Writer) WriteU64(v uint64) {
	var buf [10]byte
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if v == 0 {
			break
		}
	}
	w.write(buf[:n])
}

// WriteS64 writes a signed LEB128 encoded int64.
func (w *Writer) WriteS64(v int64) {
	var buf [10]byte
	n := 0
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf[n] = b
		n++
	}
	w.write(buf[:n])
}

// WriteName writes a UTF-8 encoded name (length-prefixed).
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.write([]byte(s))
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.write(buf[:])
}

// WriteF32 writes a little-endian float32 (fixed 4 bytes).
func (w *Writer) WriteF32(v float32) {
	w.WriteU32LE(math.Float32bits(v))
}

// WriteF64 writes a little-endian float64 (fixed 8 bytes).
func (w *Writer) WriteF64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.write(buf[:])
}
