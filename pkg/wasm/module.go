// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package wasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/go-interpreter/wagon/disasm"
	"github.com/go-interpreter/wagon/wasm"
	ops "github.com/go-interpreter/wagon/wasm/operators"
	log "github.com/sirupsen/logrus"
)

// DefaultEntry is the name of the exported function where execution begins.
const DefaultEntry = "zkmain"

type signature struct {
	params  []opcode.VarType
	results []opcode.VarType
}

func (s signature) isEmpty() bool {
	return len(s.params) == 0 && len(s.results) == 0
}

func (s signature) equals(o signature) bool {
	return slices.Equal(s.params, o.params) && slices.Equal(s.results, o.results)
}

// function is an entry of the function index space: either a function defined
// by the module, or an imported host function.
type function struct {
	fid       uint32
	typeIndex uint32
	sig       signature
	host      opcode.Opcode
}

type global struct {
	typ     opcode.VarType
	mutable bool
	value   uint64
}

// compiler holds the index spaces of the module being compiled.
type compiler struct {
	cfg      config.Config
	registry *host.Registry
	module   *wasm.Module
	types    []signature
	// Index of the first structurally equal type, for each type.
	canonical []uint32
	functions []function
	globals   []global
	builder   *tables.Builder
}

// Compile decodes a WASM binary, and lowers it into a module whose entry point
// is the function exported under a given name.  Imported functions are
// resolved (by field name) against a given host registry.
func Compile(cfg config.Config, registry *host.Registry, binary []byte, entry string) (*tables.Module, error) {
	stats := util.NewPerfStats()
	//
	m, err := wasm.DecodeModule(bytes.NewReader(binary))
	if err != nil {
		return nil, fmt.Errorf("decoding module: %w", err)
	}
	//
	p := &compiler{cfg: cfg, registry: registry, module: m, builder: tables.NewBuilder(cfg, registry)}
	//
	for _, pass := range []func() error{p.compileTypes, p.compileImports, p.compileFunctions, p.compileGlobals,
		p.compileMemory, p.compileElements, p.compileStart, p.compileCode} {
		if err := pass(); err != nil {
			return nil, err
		}
	}
	//
	fid, err := p.entry(entry)
	if err != nil {
		return nil, err
	}
	//
	module, err := p.builder.Build(fid)
	//
	if err == nil {
		stats.LogRows("Compiling module", module.Code.Len())
	}
	//
	return module, err
}

func (p *compiler) compileTypes() error {
	if p.module.Types == nil {
		return nil
	}
	//
	for i, sig := range p.module.Types.Entries {
		var (
			s   signature
			err error
		)
		//
		if s.params, err = valueTypes(sig.ParamTypes); err != nil {
			return fmt.Errorf("type %d: %w", i, err)
		} else if s.results, err = valueTypes(sig.ReturnTypes); err != nil {
			return fmt.Errorf("type %d: %w", i, err)
		} else if len(s.results) > 1 {
			return fmt.Errorf("type %d: multiple results are not supported", i)
		}
		//
		canonical := uint32(i)
		//
		for j, t := range p.types {
			if t.equals(s) {
				canonical = uint32(j)
				break
			}
		}
		//
		p.types = append(p.types, s)
		p.canonical = append(p.canonical, canonical)
	}
	//
	return nil
}

func (p *compiler) compileImports() error {
	if p.module.Import == nil {
		return nil
	}
	//
	for _, imp := range p.module.Import.Entries {
		name := fmt.Sprintf("%s.%s", imp.ModuleName, imp.FieldName)
		//
		fn, ok := imp.Type.(wasm.FuncImport)
		if !ok {
			return fmt.Errorf("import %s: only functions can be imported", name)
		} else if int(fn.Type) >= len(p.types) {
			return fmt.Errorf("import %s: unknown type %d", name, fn.Type)
		}
		//
		op, ok := p.registry.Resolve(imp.FieldName)
		if !ok {
			return fmt.Errorf("import %s: unknown host function", name)
		}
		//
		sig := p.types[fn.Type]
		//
		if err := checkHost(op, sig); err != nil {
			return fmt.Errorf("import %s: %w", name, err)
		}
		//
		p.functions = append(p.functions, function{typeIndex: fn.Type, sig: sig, host: op})
	}
	//
	return nil
}

// checkHost checks that a host function is imported with the signature it
// implements.
func checkHost(op opcode.Opcode, sig signature) error {
	var expected signature
	//
	switch op := op.(type) {
	case opcode.CallHost:
		expected = signature{op.Params, op.Ret}
	case opcode.ExternalHostCall:
		if op.IsReturn {
			expected.results = []opcode.VarType{opcode.I64}
		} else {
			expected.params = []opcode.VarType{opcode.I64}
		}
	}
	//
	if !expected.equals(sig) {
		return fmt.Errorf("signature mismatch (expected %s, found %s)", expected, sig)
	}
	//
	return nil
}

func (s signature) String() string {
	var (
		params  = make([]string, len(s.params))
		results = make([]string, len(s.results))
	)
	//
	for i, t := range s.params {
		params[i] = t.String()
	}
	//
	for i, t := range s.results {
		results[i] = t.String()
	}
	//
	return fmt.Sprintf("(%s)->(%s)", strings.Join(params, ","), strings.Join(results, ","))
}

func (p *compiler) compileFunctions() error {
	if p.module.Function == nil {
		return nil
	}
	//
	for _, index := range p.module.Function.Types {
		if int(index) >= len(p.types) {
			return fmt.Errorf("function %d: unknown type %d", len(p.functions), index)
		}
		// Function identifiers start from one.
		fid := uint32(len(p.functions)) + 1
		p.functions = append(p.functions, function{fid: fid, typeIndex: index, sig: p.types[index]})
	}
	//
	return nil
}

func (p *compiler) compileGlobals() error {
	if p.module.Global == nil {
		return nil
	}
	//
	for i, g := range p.module.Global.Globals {
		t, err := valueType(g.Type.Type)
		if err != nil {
			return fmt.Errorf("global %d: %w", i, err)
		}
		//
		value, err := p.initExpr(g.Init)
		if err != nil {
			return fmt.Errorf("global %d: %w", i, err)
		}
		//
		p.globals = append(p.globals, global{t, g.Type.Mutable, t.Truncate(value)})
		p.builder.Global(uint32(i), t, g.Type.Mutable, t.Truncate(value))
	}
	//
	return nil
}

// compileMemory determines the heap limits, and expands data segments into the
// initial values of heap blocks.
func (p *compiler) compileMemory() error {
	var pages uint32
	//
	if p.module.Memory != nil && len(p.module.Memory.Entries) > 0 {
		limits := p.module.Memory.Entries[0].Limits
		pages = limits.Initial
		maximum := uint32(0)
		//
		if limits.Flags&1 != 0 {
			maximum = limits.Maximum
		}
		//
		p.builder.Pages(pages, maximum)
	}
	//
	if p.module.Data == nil {
		return nil
	}
	//
	blocks := make(map[uint32][opcode.BlockWidth]byte)
	limit := uint64(pages) * config.WasmPageSize
	//
	for i, segment := range p.module.Data.Entries {
		offset, err := p.initExpr(segment.Offset)
		if err != nil {
			return fmt.Errorf("data segment %d: %w", i, err)
		}
		//
		offset = opcode.I32.Truncate(offset)
		//
		if offset+uint64(len(segment.Data)) > limit {
			return fmt.Errorf("data segment %d out of bounds", i)
		}
		//
		for j, b := range segment.Data {
			address := offset + uint64(j)
			block := blocks[uint32(address/opcode.BlockWidth)]
			block[address%opcode.BlockWidth] = b
			blocks[uint32(address/opcode.BlockWidth)] = block
		}
	}
	//
	for _, index := range slices.Sorted(maps.Keys(blocks)) {
		block := blocks[index]
		//
		if value := binary.LittleEndian.Uint64(block[:]); value != 0 {
			p.builder.Block(index, value)
		}
	}
	//
	return nil
}

func (p *compiler) compileElements() error {
	if p.module.Elements == nil {
		return nil
	}
	//
	for i, segment := range p.module.Elements.Entries {
		offset, err := p.initExpr(segment.Offset)
		if err != nil {
			return fmt.Errorf("element segment %d: %w", i, err)
		}
		//
		for j, index := range segment.Elems {
			if int(index) >= len(p.functions) {
				return fmt.Errorf("element segment %d: unknown function %d", i, index)
			}
			//
			fn := p.functions[index]
			//
			if fn.host != nil {
				return fmt.Errorf("element segment %d: host function %d in table", i, index)
			}
			//
			p.builder.Element(uint32(offset)+uint32(j), p.canonical[fn.typeIndex], fn.fid)
		}
	}
	//
	return nil
}

func (p *compiler) compileStart() error {
	if p.module.Start == nil {
		return nil
	}
	//
	fn, err := p.function(p.module.Start.Index, "start")
	if err != nil {
		return err
	}
	//
	p.builder.Start(fn.fid)
	//
	return nil
}

func (p *compiler) compileCode() error {
	var (
		imports = len(p.functions)
		names   = p.names()
	)
	//
	if p.module.Function != nil {
		imports -= len(p.module.Function.Types)
	}
	//
	if p.module.Code == nil {
		if imports != len(p.functions) {
			return fmt.Errorf("missing code section")
		}
		//
		return nil
	} else if len(p.module.Code.Bodies) != len(p.functions)-imports {
		return fmt.Errorf("function and code sections disagree")
	}
	//
	for i := range p.module.Code.Bodies {
		var (
			fn   = p.functions[imports+i]
			name = names[fn.fid]
		)
		//
		code, err := lowerFunction(p, name, fn.sig, &p.module.Code.Bodies[i])
		if err != nil {
			return err
		}
		//
		log.Debugf("lowered %s into %d instructions", name, len(code))
		p.builder.Function(fn.fid, name, code...)
	}
	//
	return nil
}

// names of functions, taken from their exports where possible.
func (p *compiler) names() map[uint32]string {
	names := make(map[uint32]string)
	//
	for i, fn := range p.functions {
		if fn.host == nil {
			names[fn.fid] = fmt.Sprintf("func_%d", i)
		}
	}
	//
	if p.module.Export == nil {
		return names
	}
	// The first export (by name) of a function names it.
	exported := make(map[uint32]bool)
	//
	for _, name := range slices.Sorted(maps.Keys(p.module.Export.Entries)) {
		export := p.module.Export.Entries[name]
		//
		if export.Kind == wasm.ExternalFunction && int(export.Index) < len(p.functions) {
			if fn := p.functions[export.Index]; fn.host == nil && !exported[fn.fid] {
				names[fn.fid] = name
				exported[fn.fid] = true
			}
		}
	}
	//
	return names
}

func (p *compiler) entry(name string) (uint32, error) {
	if p.module.Export == nil {
		return 0, fmt.Errorf("entry %q not exported", name)
	}
	//
	export, ok := p.module.Export.Entries[name]
	if !ok || export.Kind != wasm.ExternalFunction {
		return 0, fmt.Errorf("entry %q not exported", name)
	}
	//
	fn, err := p.function(export.Index, "entry")
	if err != nil {
		return 0, err
	}
	//
	return fn.fid, nil
}

// function returns a defined function which is called by the host, and so
// must have no parameters or results.
func (p *compiler) function(index uint32, role string) (function, error) {
	if int(index) >= len(p.functions) {
		return function{}, fmt.Errorf("%s function %d is unknown", role, index)
	}
	//
	fn := p.functions[index]
	//
	if fn.host != nil {
		return fn, fmt.Errorf("%s function %d is imported", role, index)
	} else if !fn.sig.isEmpty() {
		return fn, fmt.Errorf("%s function %d has signature %s", role, index, fn.sig)
	}
	//
	return fn, nil
}

// initExpr evaluates a constant initialiser expression.
func (p *compiler) initExpr(expr []byte) (uint64, error) {
	instrs, err := disasm.Disassemble(expr)
	if err != nil {
		return 0, err
	} else if len(instrs) == 0 {
		return 0, fmt.Errorf("empty initialiser")
	}
	//
	ins := instrs[0]
	//
	switch {
	case ins.Op.Code == ops.I32Const && len(ins.Immediates) == 1:
		if v, ok := ins.Immediates[0].(int32); ok {
			return uint64(uint32(v)), nil
		}
	case ins.Op.Code == ops.I64Const && len(ins.Immediates) == 1:
		if v, ok := ins.Immediates[0].(int64); ok {
			return uint64(v), nil
		}
	case ins.Op.Code == ops.GetGlobal && len(ins.Immediates) == 1:
		if index, ok := ins.Immediates[0].(uint32); ok && int(index) < len(p.globals) {
			return p.globals[index].value, nil
		}
	}
	//
	return 0, fmt.Errorf("unsupported initialiser %s", ins.Op.Name)
}

func valueType(t wasm.ValueType) (opcode.VarType, error) {
	switch t {
	case wasm.ValueTypeI32:
		return opcode.I32, nil
	case wasm.ValueTypeI64:
		return opcode.I64, nil
	}
	//
	return 0, fmt.Errorf("unsupported value type %v", t)
}

func valueTypes(types []wasm.ValueType) ([]opcode.VarType, error) {
	var result []opcode.VarType
	//
	for _, t := range types {
		vt, err := valueType(t)
		if err != nil {
			return nil, err
		}
		//
		result = append(result, vt)
	}
	//
	return result, nil
}
