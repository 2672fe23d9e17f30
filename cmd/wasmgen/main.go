package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/tim-harding/wasm-bin/wasm"
)

func main() {
	var (
		output      = flag.String("o", "out.wasm", "Output file path")
		demo        = flag.String("demo", "add", "Demo module to generate (add, sum, dispatch)")
		runSpec     = flag.String("run", "", "Execute an exported function after encoding (name or name:arg1,arg2)")
		verbose     = flag.Bool("v", false, "Verbose encoder logging")
		interactive = flag.Bool("i", false, "Interactive section inspector TUI")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		wasm.SetLogger(logger)
	}

	if err := run(*demo, *output, *runSpec, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(demo, output, runSpec string, interactive bool) error {
	m, err := buildDemo(demo)
	if err != nil {
		return err
	}

	bin, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if err := os.WriteFile(output, bin, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Printf("Wrote %s: %d bytes\n", output, len(bin))

	if interactive {
		return runInteractive(output, bin)
	}

	if runSpec != "" {
		return runFunction(bin, runSpec)
	}
	return nil
}

// buildDemo assembles one of the bundled demo modules. Each exercises a
// different slice of the binary format.
func buildDemo(name string) (*wasm.Module, error) {
	switch name {
	case "add":
		// add(a, b) = a + b
		return &wasm.Module{
			Types: []wasm.FuncType{{
				Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
				Results: []wasm.ValType{wasm.ValI32},
			}},
			Funcs: []uint32{0},
			Exports: []wasm.Export{
				{Name: "add", Kind: wasm.KindFunc, Idx: 0},
			},
			Code: []wasm.FuncBody{{
				Body: wasm.Expr{
					{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
					{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
					{Opcode: wasm.OpI32Add},
				},
			}},
		}, nil

	case "sum":
		// sum(n) = 1 + 2 + ... + n, via a loop with two scratch locals
		return &wasm.Module{
			Types: []wasm.FuncType{{
				Params:  []wasm.ValType{wasm.ValI32},
				Results: []wasm.ValType{wasm.ValI32},
			}},
			Funcs: []uint32{0},
			Exports: []wasm.Export{
				{Name: "sum", Kind: wasm.KindFunc, Idx: 0},
			},
			Code: []wasm.FuncBody{{
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
			}},
		}, nil

	case "dispatch":
		// dispatch(i) indirect-calls table slot i; the table holds two
		// constant-returning functions. Also carries a memory with a data
		// segment, an exported global, and a custom section.
		tableMax := uint32(2)
		return &wasm.Module{
			Types: []wasm.FuncType{
				{Results: []wasm.ValType{wasm.ValI32}},
				{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			},
			Funcs: []uint32{0, 0, 1},
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
				{Body: wasm.Expr{
					{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
					{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 0, TableIdx: 0}},
				}},
			},
			Data: []wasm.DataSegment{{
				Flags:  0,
				Offset: wasm.Expr{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}}},
				Init:   []byte("hello"),
			}},
			CustomSections: []wasm.CustomSection{{
				Name: "producer",
				Data: []byte("wasmgen"),
			}},
		}, nil

	default:
		return nil, fmt.Errorf("unknown demo %q (want add, sum, or dispatch)", name)
	}
}

// runFunction instantiates the encoded module and calls one exported
// function. The spec is "name" or "name:arg1,arg2" with integer args.
func runFunction(bin []byte, spec string) error {
	name := spec
	var args []uint64
	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		name = spec[:idx]
		for _, s := range strings.Split(spec[idx+1:], ",") {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("argument %q: %w", s, err)
			}
			args = append(args, v)
		}
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	fn := mod.ExportedFunction(name)
	if fn == nil {
		return fmt.Errorf("no exported function %q", name)
	}

	res, err := fn.Call(ctx, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}

	fmt.Printf("%s(%v) = %v\n", name, args, res)
	return nil
}
