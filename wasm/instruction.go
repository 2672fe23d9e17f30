package wasm

import (
	"bytes"
	"errors"
	"fmt"
)

// Opcode constants are defined in constants.go

// DefaultMaxNesting bounds block nesting depth during encoding when no
// explicit limit is configured. Nesting consumes native stack frames, so
// pathologically deep input fails with ErrNestingTooDeep instead of
// exhausting the goroutine stack.
const DefaultMaxNesting = 1000

// ErrNestingTooDeep is returned when block nesting exceeds the limit.
var ErrNestingTooDeep = errors.New("wasm: block nesting too deep")

// Instruction represents a single WebAssembly instruction: an opcode plus
// exactly the immediates that opcode requires. Structured instructions
// (block, loop, if) own their nested bodies.
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type and nested body for block and loop.
type BlockImm struct {
	Type BlockType
	Body []Instruction
}

// IfImm holds the block type and bodies for if. A nil Else encodes the
// one-armed form; a non-nil Else (even if empty) emits the else marker
// before the second body.
type IfImm struct {
	Type BlockType
	Then []Instruction
	Else []Instruction
}

// BranchImm holds the label index for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds the table index for table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// MemArg holds memory access parameters for load and store instructions.
// Align is the log2 of the hinted natural alignment; Offset is the byte
// displacement added to the dynamic address. Alignment is a hint only, no
// relationship to the access width is enforced.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// I32Imm holds the constant value for i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant value for f64.const.
type F64Imm struct {
	Value float64
}

// RefNullImm holds the reference type for ref.null.
type RefNullImm struct {
	Type RefType
}

// RefFuncImm holds the function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectImm holds the explicit operand types for the typed select opcode.
// Plain select (no type list) uses OpSelect with no immediate.
type SelectImm struct {
	Types []ValType
}

// MiscImm holds the sub-opcode and index operands for 0xFC prefix
// instructions. Operands carries only the real indices an instruction
// encodes; the reserved zero bytes of the memory bulk operations are fixed
// by the encoder and never appear here.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// SIMDImm holds SIMD instruction immediates for the 0xFD prefix space.
// V128Bytes carries the 16 raw bytes of v128.const and i8x16.shuffle.
type SIMDImm struct {
	MemArg    *MemArg
	LaneIdx   *byte
	V128Bytes []byte
	SubOpcode uint32
}

// EncodeInstructionTo writes one instruction, including any nested bodies,
// to the provided buffer.
func EncodeInstructionTo(buf *bytes.Buffer, ins *Instruction) error {
	return encodeInstr(buf, ins, 0, DefaultMaxNesting)
}

// EncodeInstructionsTo writes a flat instruction sequence to the provided
// buffer without a trailing end marker. Use EncodeExprTo for sequences the
// format terminates explicitly.
func EncodeInstructionsTo(buf *bytes.Buffer, instrs []Instruction) error {
	return encodeInstrs(buf, instrs, 0, DefaultMaxNesting)
}

// EncodeInstructions encodes instructions to bytes.
func EncodeInstructions(instrs []Instruction) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(instrs) * 3) // estimate 3 bytes per instruction
	if err := EncodeInstructionsTo(&buf, instrs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeInstrs(buf *bytes.Buffer, instrs []Instruction, depth, maxDepth int) error {
	for i := range instrs {
		if err := encodeInstr(buf, &instrs[i], depth, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

func encodeInstr(buf *bytes.Buffer, ins *Instruction, depth, maxDepth int) error {
	buf.WriteByte(ins.Opcode)

	switch ins.Opcode {
	case OpBlock, OpLoop:
		imm := ins.Imm.(BlockImm)
		if depth >= maxDepth {
			return ErrNestingTooDeep
		}
		WriteLEB128s64(buf, int64(imm.Type))
		if err := encodeInstrs(buf, imm.Body, depth+1, maxDepth); err != nil {
			return err
		}
		buf.WriteByte(OpEnd)

	case OpIf:
		imm := ins.Imm.(IfImm)
		if depth >= maxDepth {
			return ErrNestingTooDeep
		}
		WriteLEB128s64(buf, int64(imm.Type))
		if err := encodeInstrs(buf, imm.Then, depth+1, maxDepth); err != nil {
			return err
		}
		if imm.Else != nil {
			buf.WriteByte(OpElse)
			if err := encodeInstrs(buf, imm.Else, depth+1, maxDepth); err != nil {
				return err
			}
		}
		buf.WriteByte(OpEnd)

	case OpBr, OpBrIf:
		imm := ins.Imm.(BranchImm)
		WriteLEB128u(buf, imm.LabelIdx)

	case OpBrTable:
		imm := ins.Imm.(BrTableImm)
		WriteLEB128u(buf, uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			WriteLEB128u(buf, l)
		}
		WriteLEB128u(buf, imm.Default)

	case OpCall:
		imm := ins.Imm.(CallImm)
		WriteLEB128u(buf, imm.FuncIdx)

	case OpCallIndirect:
		imm := ins.Imm.(CallIndirectImm)
		WriteLEB128u(buf, imm.TypeIdx)
		WriteLEB128u(buf, imm.TableIdx)

	case OpLocalGet, OpLocalSet, OpLocalTee:
		imm := ins.Imm.(LocalImm)
		WriteLEB128u(buf, imm.LocalIdx)

	case OpGlobalGet, OpGlobalSet:
		imm := ins.Imm.(GlobalImm)
		WriteLEB128u(buf, imm.GlobalIdx)

	case OpTableGet, OpTableSet:
		imm := ins.Imm.(TableImm)
		WriteLEB128u(buf, imm.TableIdx)

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		imm := ins.Imm.(MemArg)
		writeMemArg(buf, imm)

	case OpMemorySize, OpMemoryGrow:
		// Single-memory reserved byte
		buf.WriteByte(0x00)

	case OpI32Const:
		imm := ins.Imm.(I32Imm)
		WriteLEB128s(buf, imm.Value)

	case OpI64Const:
		imm := ins.Imm.(I64Imm)
		WriteLEB128s64(buf, imm.Value)

	case OpF32Const:
		imm := ins.Imm.(F32Imm)
		WriteFloat32(buf, imm.Value)

	case OpF64Const:
		imm := ins.Imm.(F64Imm)
		WriteFloat64(buf, imm.Value)

	case OpRefNull:
		imm := ins.Imm.(RefNullImm)
		buf.WriteByte(byte(imm.Type))

	case OpRefFunc:
		imm := ins.Imm.(RefFuncImm)
		WriteLEB128u(buf, imm.FuncIdx)

	case OpSelectType:
		imm := ins.Imm.(SelectImm)
		WriteLEB128u(buf, uint32(len(imm.Types)))
		for _, t := range imm.Types {
			buf.WriteByte(byte(t))
		}

	// Instructions with no immediates
	case OpUnreachable, OpNop, OpReturn, OpDrop, OpSelect, OpRefIsNull,
		OpI32Eqz, OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU,
		OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU,
		OpI64Eqz, OpI64Eq, OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU,
		OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU,
		OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge,
		OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge,
		OpI32Clz, OpI32Ctz, OpI32Popcnt, OpI32Add, OpI32Sub, OpI32Mul,
		OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU, OpI32And, OpI32Or, OpI32Xor,
		OpI32Shl, OpI32ShrS, OpI32ShrU, OpI32Rotl, OpI32Rotr,
		OpI64Clz, OpI64Ctz, OpI64Popcnt, OpI64Add, OpI64Sub, OpI64Mul,
		OpI64DivS, OpI64DivU, OpI64RemS, OpI64RemU, OpI64And, OpI64Or, OpI64Xor,
		OpI64Shl, OpI64ShrS, OpI64ShrU, OpI64Rotl, OpI64Rotr,
		OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt,
		OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign,
		OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt,
		OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign,
		OpI32WrapI64, OpI32TruncF32S, OpI32TruncF32U, OpI32TruncF64S, OpI32TruncF64U,
		OpI64ExtendI32S, OpI64ExtendI32U, OpI64TruncF32S, OpI64TruncF32U,
		OpI64TruncF64S, OpI64TruncF64U,
		OpF32ConvertI32S, OpF32ConvertI32U, OpF32ConvertI64S, OpF32ConvertI64U, OpF32DemoteF64,
		OpF64ConvertI32S, OpF64ConvertI32U, OpF64ConvertI64S, OpF64ConvertI64U, OpF64PromoteF32,
		OpI32ReinterpretF32, OpI64ReinterpretF64, OpF32ReinterpretI32, OpF64ReinterpretI64,
		OpI32Extend8S, OpI32Extend16S, OpI64Extend8S, OpI64Extend16S, OpI64Extend32S:
		// No immediate

	case OpPrefixMisc:
		imm := ins.Imm.(MiscImm)
		if err := encodeMiscImmediate(buf, imm); err != nil {
			return err
		}

	case OpPrefixSIMD:
		encodeSIMDImmediate(buf, ins.Imm.(SIMDImm))

	default:
		return fmt.Errorf("wasm: unknown opcode 0x%02X", ins.Opcode)
	}

	return nil
}

func encodeMiscImmediate(buf *bytes.Buffer, imm MiscImm) error {
	WriteLEB128u(buf, imm.SubOpcode)

	switch imm.SubOpcode {
	case MiscI32TruncSatF32S, MiscI32TruncSatF32U,
		MiscI32TruncSatF64S, MiscI32TruncSatF64U,
		MiscI64TruncSatF32S, MiscI64TruncSatF32U,
		MiscI64TruncSatF64S, MiscI64TruncSatF64U:
		// Saturating truncations: no operands
	case MiscMemoryInit:
		WriteLEB128u(buf, imm.Operands[0]) // dataidx
		buf.WriteByte(0x00)                // reserved memory index
	case MiscDataDrop:
		WriteLEB128u(buf, imm.Operands[0]) // dataidx
	case MiscMemoryCopy:
		buf.WriteByte(0x00) // reserved dst memory index
		buf.WriteByte(0x00) // reserved src memory index
	case MiscMemoryFill:
		buf.WriteByte(0x00) // reserved memory index
	case MiscTableInit:
		WriteLEB128u(buf, imm.Operands[0]) // elemidx
		WriteLEB128u(buf, imm.Operands[1]) // tableidx
	case MiscElemDrop:
		WriteLEB128u(buf, imm.Operands[0]) // elemidx
	case MiscTableCopy:
		WriteLEB128u(buf, imm.Operands[0]) // dst tableidx
		WriteLEB128u(buf, imm.Operands[1]) // src tableidx
	case MiscTableGrow, MiscTableSize, MiscTableFill:
		WriteLEB128u(buf, imm.Operands[0]) // tableidx
	default:
		return fmt.Errorf("wasm: unknown 0xFC sub-opcode 0x%02X", imm.SubOpcode)
	}
	return nil
}

func encodeSIMDImmediate(buf *bytes.Buffer, imm SIMDImm) {
	WriteLEB128u(buf, imm.SubOpcode)

	if imm.MemArg != nil {
		writeMemArg(buf, *imm.MemArg)
	}
	if len(imm.V128Bytes) > 0 {
		buf.Write(imm.V128Bytes)
	}
	if imm.LaneIdx != nil {
		buf.WriteByte(*imm.LaneIdx)
	}
}

// writeMemArg writes alignment then offset, both unsigned LEB128.
func writeMemArg(buf *bytes.Buffer, imm MemArg) {
	WriteLEB128u(buf, imm.Align)
	WriteLEB128u(buf, imm.Offset)
}
