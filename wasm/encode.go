package wasm

import (
	"io"

	"github.com/tim-harding/wasm-bin/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format: the preamble
// followed by every non-empty section in ascending ID order.
func (m *Module) Encode() ([]byte, error) {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)
	if err := m.writeSections(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WritePreamble writes the fixed module preamble (magic number and
// version) to w.
func WritePreamble(w io.Writer) error {
	sw := binary.NewSinkWriter(w)
	sw.WriteU32LE(Magic)
	sw.WriteU32LE(Version)
	return sw.Err()
}

// WriteSections writes the module's sections to w without a preamble, for
// callers that supply their own. Sections whose content is empty are
// omitted entirely rather than framed with a zero-length payload.
func (m *Module) WriteSections(w io.Writer) error {
	sw := binary.NewSinkWriter(w)
	if err := m.writeSections(sw); err != nil {
		return err
	}
	return sw.Err()
}

// writeSections emits each present section. Payloads are fully buffered
// before framing: the length prefix needs the payload's byte count, and w
// may be a forward-only sink.
func (m *Module) writeSections(w *binary.Writer) error {
	maxDepth := m.maxNesting()

	// Type section
	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		writeVec(sec, m.Types, writeFuncType)
		writeSection(w, SectionType, sec.Bytes())
	}

	// Import section
	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		writeVec(sec, m.Imports, writeImport)
		writeSection(w, SectionImport, sec.Bytes())
	}

	// Function section
	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		writeVec(sec, m.Funcs, (*binary.Writer).WriteU32)
		writeSection(w, SectionFunction, sec.Bytes())
	}

	// Table section
	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		writeVec(sec, m.Tables, writeTableType)
		writeSection(w, SectionTable, sec.Bytes())
	}

	// Memory section
	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		writeVec(sec, m.Memories, writeMemoryType)
		writeSection(w, SectionMemory, sec.Bytes())
	}

	// Global section
	if len(m.Globals) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(sec, g.Type)
			if err := encodeExpr(sec.Buffer(), g.Init, maxDepth); err != nil {
				return err
			}
		}
		writeSection(w, SectionGlobal, sec.Bytes())
	}

	// Export section
	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		writeVec(sec, m.Exports, func(w *binary.Writer, exp Export) {
			w.WriteName(exp.Name)
			w.Byte(exp.Kind)
			w.WriteU32(exp.Idx)
		})
		writeSection(w, SectionExport, sec.Bytes())
	}

	// Start section
	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		writeSection(w, SectionStart, sec.Bytes())
	}

	// Element section
	if len(m.Elements) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Elements)))
		for _, elem := range m.Elements {
			if err := writeElement(sec, elem, maxDepth); err != nil {
				return err
			}
		}
		writeSection(w, SectionElement, sec.Bytes())
	}

	// DataCount section (must appear before the code section if present)
	if m.DataCount != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.DataCount)
		writeSection(w, SectionDataCount, sec.Bytes())
	}

	// Code section. Each body is independently length-prefixed inside the
	// already length-prefixed section payload, so framing nests.
	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, body := range m.Code {
			bodyBuf := binary.NewWriter()
			writeVec(bodyBuf, body.Locals, func(w *binary.Writer, local LocalEntry) {
				w.WriteU32(local.Count)
				w.Byte(byte(local.Type))
			})
			if err := encodeExpr(bodyBuf.Buffer(), body.Body, maxDepth); err != nil {
				return err
			}
			sec.WriteU32(uint32(bodyBuf.Len()))
			sec.WriteBytes(bodyBuf.Bytes())
		}
		writeSection(w, SectionCode, sec.Bytes())
	}

	// Data section
	if len(m.Data) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.WriteU32(d.Flags)
			if d.Flags == 2 {
				sec.WriteU32(d.MemIdx)
			}
			if d.Flags != 1 {
				if err := encodeExpr(sec.Buffer(), d.Offset, maxDepth); err != nil {
					return err
				}
			}
			sec.WriteU32(uint32(len(d.Init)))
			sec.WriteBytes(d.Init)
		}
		writeSection(w, SectionData, sec.Bytes())
	}

	// Custom sections (at end)
	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, sec.Bytes())
	}

	return nil
}

// writeSection frames an encoded payload: identifier byte, payload byte
// length as unsigned LEB128, then the payload itself.
func writeSection(w *binary.Writer, id byte, data []byte) {
	debugf("section %d: %d byte payload", id, len(data))
	w.Byte(id)
	w.WriteU32(uint32(len(data)))
	w.WriteBytes(data)
}

func writeImport(w *binary.Writer, imp Import) {
	w.WriteName(imp.Module)
	w.WriteName(imp.Name)
	w.Byte(imp.Kind)
	switch imp.Kind {
	case KindFunc:
		w.WriteU32(imp.TypeIdx)
	case KindTable:
		if imp.Table != nil {
			writeTableType(w, *imp.Table)
		}
	case KindMemory:
		if imp.Memory != nil {
			writeMemoryType(w, *imp.Memory)
		}
	case KindGlobal:
		if imp.Global != nil {
			writeGlobalType(w, *imp.Global)
		}
	}
}

func writeElement(sec *binary.Writer, elem Element, maxDepth int) error {
	sec.WriteU32(elem.Flags)

	hasTableIdx := elem.Flags&0x02 != 0 && elem.Flags&0x01 == 0
	hasOffset := elem.Flags&0x01 == 0
	usesExprs := elem.Flags&0x04 != 0

	if hasTableIdx {
		sec.WriteU32(elem.TableIdx)
	}

	if hasOffset {
		if err := encodeExpr(sec.Buffer(), elem.Offset, maxDepth); err != nil {
			return err
		}
	}

	// Forms 1-3 carry an elemkind byte, forms 5-7 a reftype byte
	if elem.Flags&0x03 != 0 {
		if usesExprs {
			sec.Byte(byte(elem.RefType))
		} else {
			sec.Byte(elem.ElemKind)
		}
	}

	if usesExprs {
		sec.WriteU32(uint32(len(elem.Exprs)))
		for _, expr := range elem.Exprs {
			if err := encodeExpr(sec.Buffer(), expr, maxDepth); err != nil {
				return err
			}
		}
	} else {
		writeVec(sec, elem.FuncIdxs, (*binary.Writer).WriteU32)
	}
	return nil
}
