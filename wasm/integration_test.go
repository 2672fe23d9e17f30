package wasm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/tim-harding/wasm-bin/wasm"
)

// The tests below round-trip encoded modules through wazero, exercising
// the output against an independent decoder and runtime.

func TestRuntimeHostImport(t *testing.T) {
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
				{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}},
			},
		}},
	}
	bin, err := m.Encode()
	require.NoError(t, err)

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err = r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(a, b int32) int32 { return a + b }).
		Export("add").
		Instantiate(ctx)
	require.NoError(t, err)

	mod, err := r.Instantiate(ctx, bin)
	require.NoError(t, err)

	res, err := mod.ExportedFunction("add2").Call(ctx, 21, 99)
	require.NoError(t, err)
	require.Equal(t, uint64(42), res[0])
}

func TestRuntimeControlFlow(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{Params: []wasm.ValType{wasm.ValF64}, Results: []wasm.ValType{wasm.ValI32}},
		},
		Funcs: []uint32{0, 1, 2},
		Exports: []wasm.Export{
			{Name: "max", Kind: wasm.KindFunc, Idx: 0},
			{Name: "sum", Kind: wasm.KindFunc, Idx: 1},
			{Name: "trunc", Kind: wasm.KindFunc, Idx: 2},
		},
		Code: []wasm.FuncBody{
			// max(a, b): if a > b (signed) then a else b
			{Body: wasm.Expr{
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
				{Opcode: wasm.OpI32GtS},
				{Opcode: wasm.OpIf, Imm: wasm.IfImm{
					Type: wasm.BlockTypeOf(wasm.ValI32),
					Then: []wasm.Instruction{{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}}},
					Else: []wasm.Instruction{{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}}},
				}},
			}},
			// sum(n): iterative 1+2+...+n with an accumulator and counter
			{
				Locals: []wasm.LocalEntry{{Count: 2, Type: wasm.ValI32}},
				Body: wasm.Expr{
					{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{
						Type: wasm.BlockTypeEmpty,
						Body: []wasm.Instruction{
							{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 2}},
							{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
							{Opcode: wasm.OpI32Add},
							{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: 2}},
							{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
							{Opcode: wasm.OpI32Add},
							{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: 1}},
							{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 2}},
							{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
							{Opcode: wasm.OpI32LtU},
							{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 0}},
						},
					}},
					{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
				},
			},
			// trunc(x): saturating f64 -> i32 conversion
			{Body: wasm.Expr{
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
				{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscI32TruncSatF64S}},
			}},
		},
	}
	bin, err := m.Encode()
	require.NoError(t, err)

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, bin)
	require.NoError(t, err)

	res, err := mod.ExportedFunction("max").Call(ctx, api.EncodeI32(-3), api.EncodeI32(9))
	require.NoError(t, err)
	require.Equal(t, uint64(9), res[0])

	res, err = mod.ExportedFunction("sum").Call(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(15), res[0])

	res, err = mod.ExportedFunction("trunc").Call(ctx, api.EncodeF64(41.9))
	require.NoError(t, err)
	require.Equal(t, uint64(41), res[0])
}

func TestRuntimeTableMemoryGlobal(t *testing.T) {
	tableMax := uint32(2)
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Results: []wasm.ValType{wasm.ValI32}},
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}},
		},
		Funcs: []uint32{0, 0, 1, 2},
		Tables: []wasm.TableType{{
			Elem:   wasm.RefFunc,
			Limits: wasm.Limits{Min: 2, Max: &tableMax},
		}},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Globals: []wasm.Global{{
			Type: wasm.GlobalType{Type: wasm.ValI32},
			Init: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 7}}},
		}},
		Exports: []wasm.Export{
			{Name: "dispatch", Kind: wasm.KindFunc, Idx: 2},
			{Name: "fill", Kind: wasm.KindFunc, Idx: 3},
			{Name: "mem", Kind: wasm.KindMemory, Idx: 0},
			{Name: "g", Kind: wasm.KindGlobal, Idx: 0},
		},
		Elements: []wasm.Element{{
			Flags:    0,
			Offset:   wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}}},
			FuncIdxs: []uint32{0, 1},
		}},
		Code: []wasm.FuncBody{
			{Body: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 10}}}},
			{Body: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 20}}}},
			// dispatch(i): call table slot i expecting signature () -> i32
			{Body: wasm.Expr{
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
				{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 0, TableIdx: 0}},
			}},
			// fill(dst, val, len): bulk memory fill
			{Body: wasm.Expr{
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 2}},
				{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryFill}},
			}},
		},
		Data: []wasm.DataSegment{{
			Flags:  0,
			Offset: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}}},
			Init:   []byte("hi"),
		}},
	}
	bin, err := m.Encode()
	require.NoError(t, err)

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, bin)
	require.NoError(t, err)

	res, err := mod.ExportedFunction("dispatch").Call(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(10), res[0])

	res, err = mod.ExportedFunction("dispatch").Call(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(20), res[0])

	data, ok := mod.ExportedMemory("mem").Read(0, 2)
	require.True(t, ok)
	require.Equal(t, []byte("hi"), data)

	require.Equal(t, uint64(7), mod.ExportedGlobal("g").Get())

	_, err = mod.ExportedFunction("fill").Call(ctx, 16, 0x5A, 4)
	require.NoError(t, err)
	data, ok = mod.ExportedMemory("mem").Read(16, 4)
	require.True(t, ok)
	require.Equal(t, []byte{0x5A, 0x5A, 0x5A, 0x5A}, data)
}
