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
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util/collection/stack"
	"github.com/go-interpreter/wagon/disasm"
	"github.com/go-interpreter/wagon/wasm"
	ops "github.com/go-interpreter/wagon/wasm/operators"
)

// CompileError reports an instruction which could not be lowered.
type CompileError struct {
	Function string
	// Position of the offending instruction within the function body.
	Pc      int
	Message string
}

func (p *CompileError) Error() string {
	return fmt.Sprintf("%s (instruction %d): %s", p.Function, p.Pc, p.Message)
}

type labelKind uint8

const (
	bodyLabel labelKind = iota
	blockLabel
	loopLabel
	ifLabel
)

// label is an entry of the control stack.
type label struct {
	kind labelKind
	// Stack height on entry (excluding block results)
	height  uint32
	results []opcode.VarType
	// First instruction (loops only)
	start uint32
	// Branches to the end of this label, whose destination is not yet known.
	forward []fixup
	// The conditional branch of an if, until its else arm is reached.
	cond *uint32
}

// fixup identifies a branch target awaiting its destination.  The arm is only
// meaningful for branch tables.
type fixup struct {
	iid uint32
	arm int
}

// lowerer translates the structured control flow of a single function body
// into flat opcodes with explicit branch destinations and stack depths.  Values
// (including parameters and locals) live on the stack, so every local access is
// resolved to a depth below the stack pointer.
type lowerer struct {
	module *compiler
	name   string
	pc     int
	code   []opcode.Opcode
	// Types of the values on the stack, from the bottom (first parameter).
	types  []opcode.VarType
	nlocal uint32
	labels *stack.Stack[*label]
	// Set after an unconditional transfer of control, until the enclosing
	// block ends.
	unreachable bool
	// Number of blocks opened whilst unreachable.
	skipped uint
}

func newLowerer(module *compiler, name string, sig signature, locals []wasm.LocalEntry) (*lowerer, error) {
	p := &lowerer{module: module, name: name, labels: stack.NewStack[*label]()}
	p.types = append(p.types, sig.params...)
	// Declared locals are zero initialised.
	for _, entry := range locals {
		t, err := valueType(entry.Type)
		if err != nil {
			return nil, p.errorf("local: %v", err)
		}
		//
		for i := uint32(0); i < entry.Count; i++ {
			p.emit(opcode.Const{Type: t})
			p.push(t)
		}
	}
	//
	p.nlocal = p.height()
	p.labels.Push(&label{kind: bodyLabel, height: p.nlocal, results: sig.results})
	//
	return p, nil
}

// lowerFunction translates a function body, returning its opcodes.
func lowerFunction(module *compiler, name string, sig signature, body *wasm.FunctionBody) ([]opcode.Opcode, error) {
	instrs, err := disasm.Disassemble(body.Code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	//
	p, err := newLowerer(module, name, sig, body.Locals)
	if err != nil {
		return nil, err
	}
	//
	for i, ins := range instrs {
		p.pc = i
		//
		if p.labels.IsEmpty() {
			return nil, p.errorf("instructions after end of function")
		} else if err := p.lower(ins); err != nil {
			return nil, err
		}
	}
	//
	if !p.labels.IsEmpty() {
		return nil, p.errorf("missing end of function")
	}
	//
	return p.code, nil
}

func (p *lowerer) lower(ins disasm.Instr) error {
	code := ins.Op.Code
	//
	if p.unreachable {
		return p.skip(code)
	}
	//
	switch code {
	case ops.Nop:
		return nil
	case ops.Unreachable:
		p.emit(opcode.Unreachable{})
		p.unreachable = true
		//
		return nil
	case ops.Block, ops.Loop, ops.If:
		return p.lowerBlock(ins)
	case ops.Else:
		return p.lowerElse()
	case ops.End:
		return p.lowerEnd()
	case ops.Br, ops.BrIf:
		return p.lowerBr(ins)
	case ops.BrTable:
		return p.lowerBrTable(ins)
	case ops.Return:
		results := p.labels.Peek(p.labels.Len() - 1).results
		//
		if err := p.check(results...); err != nil {
			return err
		}
		//
		p.emit(opcode.Return{Drop: p.height() - uint32(len(results)), Keep: results})
		p.unreachable = true
		//
		return nil
	case ops.Call:
		return p.lowerCall(ins)
	case ops.CallIndirect:
		return p.lowerCallIndirect(ins)
	case ops.Drop:
		if _, err := p.popAny(); err != nil {
			return err
		}
		//
		p.emit(opcode.Drop{})
		//
		return nil
	case ops.Select:
		return p.lowerSelect()
	case ops.GetLocal, ops.SetLocal, ops.TeeLocal:
		return p.lowerLocal(ins)
	case ops.GetGlobal, ops.SetGlobal:
		return p.lowerGlobal(ins)
	case ops.I32Const:
		v, err := immediate[int32](p, ins, 0)
		if err != nil {
			return err
		}
		//
		p.emit(opcode.Const{Type: i32, Value: uint64(uint32(v))})
		p.push(i32)
		//
		return nil
	case ops.I64Const:
		v, err := immediate[int64](p, ins, 0)
		if err != nil {
			return err
		}
		//
		p.emit(opcode.Const{Type: i64, Value: uint64(v)})
		p.push(i64)
		//
		return nil
	}
	//
	if op, ok := numeric[code]; ok {
		return p.lowerSimple(ins, op)
	}
	//
	return p.errorf("unsupported instruction %s", ins.Op.Name)
}

// skip an instruction in unreachable code, tracking nested blocks so the end
// of the enclosing block can be found.
func (p *lowerer) skip(code byte) error {
	switch code {
	case ops.Block, ops.Loop, ops.If:
		p.skipped++
	case ops.Else:
		if p.skipped == 0 {
			return p.lowerElse()
		}
	case ops.End:
		if p.skipped == 0 {
			return p.lowerEnd()
		}
		//
		p.skipped--
	}
	//
	return nil
}

func (p *lowerer) lowerBlock(ins disasm.Instr) error {
	results, err := blockResults(p, ins)
	if err != nil {
		return err
	}
	//
	switch ins.Op.Code {
	case ops.Block:
		p.labels.Push(&label{kind: blockLabel, height: p.height(), results: results})
	case ops.Loop:
		p.labels.Push(&label{kind: loopLabel, height: p.height(), results: results, start: p.iid()})
	default:
		if err := p.pop(i32); err != nil {
			return err
		}
		// Skip the then arm when the condition is zero.
		cond := p.iid()
		p.emit(opcode.BrIfEqz{Arg: pop})
		p.labels.Push(&label{kind: ifLabel, height: p.height(), results: results, cond: &cond})
	}
	//
	return nil
}

func (p *lowerer) lowerElse() error {
	l := p.labels.Peek(0)
	//
	if l.kind != ifLabel || l.cond == nil {
		return p.errorf("else outside of if")
	}
	// The then arm (when reachable) branches over the else arm.
	if !p.unreachable {
		if err := p.check(l.results...); err != nil {
			return err
		}
		//
		l.forward = append(l.forward, fixup{p.iid(), 0})
		p.emit(opcode.Br{Target: p.target(l, 0)})
	}
	//
	p.patch(fixup{*l.cond, 0}, p.iid())
	l.cond = nil
	p.reset(l.height)
	//
	return nil
}

func (p *lowerer) lowerEnd() error {
	l := p.labels.Pop()
	//
	if !p.unreachable {
		if err := p.check(l.results...); err != nil {
			return err
		}
	}
	//
	p.reset(l.height)
	p.types = append(p.types, l.results...)
	//
	if l.kind == bodyLabel {
		// Branches to the function label arrive at its return.
		p.resolve(l)
		p.emit(opcode.Return{Drop: l.height, Keep: l.results})
		//
		return nil
	} else if l.cond != nil {
		p.patch(fixup{*l.cond, 0}, p.iid())
	}
	//
	p.resolve(l)
	//
	return nil
}

func (p *lowerer) lowerBr(ins disasm.Instr) error {
	depth, err := immediate[uint32](p, ins, 0)
	if err != nil {
		return err
	}
	//
	if ins.Op.Code == ops.BrIf {
		if err := p.pop(i32); err != nil {
			return err
		}
	}
	//
	l, err := p.label(depth)
	if err != nil {
		return err
	} else if err := p.check(p.arity(l)...); err != nil {
		return err
	}
	//
	p.forward(l, 0)
	//
	if ins.Op.Code == ops.BrIf {
		p.emit(opcode.BrIf{Target: p.target(l, 0), Arg: pop})
	} else {
		p.emit(opcode.Br{Target: p.target(l, 0)})
		p.unreachable = true
	}
	//
	return nil
}

func (p *lowerer) lowerBrTable(ins disasm.Instr) error {
	count, err := immediate[uint32](p, ins, 0)
	if err != nil {
		return err
	} else if len(ins.Immediates) != int(count)+2 {
		return p.errorf("malformed branch table")
	} else if err := p.pop(i32); err != nil {
		return err
	}
	// Targets followed by the default
	targets := make([]opcode.BrTarget, count+1)
	//
	for i := range targets {
		depth, err := immediate[uint32](p, ins, i+1)
		if err != nil {
			return err
		}
		//
		l, err := p.label(depth)
		if err != nil {
			return err
		} else if err := p.check(p.arity(l)...); err != nil {
			return err
		}
		//
		p.forward(l, i)
		targets[i] = p.target(l, 0)
	}
	//
	p.emit(opcode.BrTable{Targets: targets, Arg: pop})
	p.unreachable = true
	//
	return nil
}

func (p *lowerer) lowerCall(ins disasm.Instr) error {
	index, err := immediate[uint32](p, ins, 0)
	if err != nil {
		return err
	} else if int(index) >= len(p.module.functions) {
		return p.errorf("unknown function %d", index)
	}
	//
	fn := p.module.functions[index]
	//
	if err := p.call(fn.sig); err != nil {
		return err
	} else if fn.host != nil {
		p.emit(fn.host)
	} else {
		p.emit(opcode.Call{Index: fn.fid})
	}
	//
	return nil
}

func (p *lowerer) lowerCallIndirect(ins disasm.Instr) error {
	index, err := immediate[uint32](p, ins, 0)
	if err != nil {
		return err
	} else if int(index) >= len(p.module.types) {
		return p.errorf("unknown type %d", index)
	} else if err := p.pop(i32); err != nil {
		return err
	} else if err := p.call(p.module.types[index]); err != nil {
		return err
	}
	//
	p.emit(opcode.CallIndirect{TypeIndex: p.module.canonical[index], Arg: pop})
	//
	return nil
}

// call pops the parameters of a given signature and pushes its results.
func (p *lowerer) call(sig signature) error {
	for i := len(sig.params) - 1; i >= 0; i-- {
		if err := p.pop(sig.params[i]); err != nil {
			return err
		}
	}
	//
	p.types = append(p.types, sig.results...)
	//
	return nil
}

func (p *lowerer) lowerSelect() error {
	if err := p.pop(i32); err != nil {
		return err
	}
	//
	t, err := p.popAny()
	if err != nil {
		return err
	} else if err := p.pop(t); err != nil {
		return err
	}
	//
	p.emit(opcode.Select{Type: t, Arg: [3]opcode.UniArg{pop, pop, pop}})
	p.push(t)
	//
	return nil
}

func (p *lowerer) lowerLocal(ins disasm.Instr) error {
	index, err := immediate[uint32](p, ins, 0)
	if err != nil {
		return err
	} else if index >= p.nlocal {
		return p.errorf("unknown local %d", index)
	}
	//
	t := p.types[index]
	//
	switch ins.Op.Code {
	case ops.GetLocal:
		p.emit(opcode.LocalGet{Type: t, Depth: p.depth(index)})
		p.push(t)
	case ops.SetLocal:
		if err := p.pop(t); err != nil {
			return err
		}
		//
		p.emit(opcode.LocalSet{Type: t, Depth: p.depth(index), Arg: pop})
	default:
		if err := p.check(t); err != nil {
			return err
		}
		//
		p.emit(opcode.LocalTee{Type: t, Depth: p.depth(index)})
	}
	//
	return nil
}

func (p *lowerer) lowerGlobal(ins disasm.Instr) error {
	index, err := immediate[uint32](p, ins, 0)
	if err != nil {
		return err
	} else if int(index) >= len(p.module.globals) {
		return p.errorf("unknown global %d", index)
	}
	//
	g := p.module.globals[index]
	//
	if ins.Op.Code == ops.GetGlobal {
		p.emit(opcode.GlobalGet{Index: index})
		p.push(g.typ)
		//
		return nil
	} else if !g.mutable {
		return p.errorf("global %d is immutable", index)
	} else if err := p.pop(g.typ); err != nil {
		return err
	}
	//
	p.emit(opcode.GlobalSet{Index: index, Arg: pop})
	//
	return nil
}

func (p *lowerer) lowerSimple(ins disasm.Instr, s simple) error {
	for i := len(s.args) - 1; i >= 0; i-- {
		if err := p.pop(s.args[i]); err != nil {
			return err
		}
	}
	// Memory accesses carry a static offset after their alignment hint.
	op := s.op
	//
	switch o := op.(type) {
	case opcode.Load:
		offset, err := immediate[uint32](p, ins, 1)
		if err != nil {
			return err
		}
		//
		o.Offset = offset
		op = o
	case opcode.Store:
		offset, err := immediate[uint32](p, ins, 1)
		if err != nil {
			return err
		}
		//
		o.Offset = offset
		op = o
	}
	//
	p.emit(op)
	p.types = append(p.types, s.result...)
	//
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (p *lowerer) emit(op opcode.Opcode) {
	p.code = append(p.code, op)
}

func (p *lowerer) iid() uint32 {
	return uint32(len(p.code))
}

func (p *lowerer) height() uint32 {
	return uint32(len(p.types))
}

// depth of a given local below the top of the stack.
func (p *lowerer) depth(local uint32) uint32 {
	return p.height() - 1 - local
}

func (p *lowerer) push(t opcode.VarType) {
	p.types = append(p.types, t)
}

func (p *lowerer) popAny() (opcode.VarType, error) {
	n := len(p.types)
	//
	if n == 0 || uint32(n) <= p.labels.Peek(0).height {
		return 0, p.errorf("stack underflow")
	}
	//
	t := p.types[n-1]
	p.types = p.types[:n-1]
	//
	return t, nil
}

func (p *lowerer) pop(expected opcode.VarType) error {
	t, err := p.popAny()
	if err != nil {
		return err
	} else if t != expected {
		return p.errorf("type mismatch (expected %s, found %s)", expected, t)
	}
	//
	return nil
}

// check the top of the stack holds values of given types.
func (p *lowerer) check(types ...opcode.VarType) error {
	var (
		n    = len(p.types)
		base = int(p.labels.Peek(0).height)
	)
	//
	if n-len(types) < base {
		return p.errorf("stack underflow")
	}
	//
	for i, t := range types {
		if p.types[n-len(types)+i] != t {
			return p.errorf("type mismatch (expected %s, found %s)", t, p.types[n-len(types)+i])
		}
	}
	//
	return nil
}

func (p *lowerer) reset(height uint32) {
	p.types = p.types[:height]
	p.unreachable = false
}

func (p *lowerer) label(depth uint32) (*label, error) {
	if uint(depth) >= p.labels.Len() {
		return nil, p.errorf("unknown label %d", depth)
	}
	//
	return p.labels.Peek(uint(depth)), nil
}

// arity returns the types of the values carried by a branch to a given label.
func (p *lowerer) arity(l *label) []opcode.VarType {
	if l.kind == loopLabel {
		return nil
	}
	//
	return l.results
}

// target constructs the target of a branch from the current stack to a given
// label.  The destination of a forward branch is filled in later.
func (p *lowerer) target(l *label, dst uint32) opcode.BrTarget {
	keep := p.arity(l)
	t := opcode.BrTarget{Drop: p.height() - l.height - uint32(len(keep)), Keep: keep, Dst: dst}
	//
	if l.kind == loopLabel {
		t.Dst = l.start
	}
	// Nothing moves when nothing is dropped.
	if t.Drop == 0 {
		t.Keep = nil
	}
	//
	return t
}

// forward records that the next instruction branches to a given label (unless
// it is a loop).
func (p *lowerer) forward(l *label, arm int) {
	if l.kind != loopLabel {
		l.forward = append(l.forward, fixup{p.iid(), arm})
	}
}

// resolve every forward branch to a given label, which ends here.
func (p *lowerer) resolve(l *label) {
	for _, f := range l.forward {
		p.patch(f, p.iid())
	}
}

func (p *lowerer) patch(f fixup, dst uint32) {
	switch op := p.code[f.iid].(type) {
	case opcode.Br:
		op.Target.Dst = dst
		p.code[f.iid] = op
	case opcode.BrIf:
		op.Target.Dst = dst
		p.code[f.iid] = op
	case opcode.BrIfEqz:
		op.Target.Dst = dst
		p.code[f.iid] = op
	case opcode.BrTable:
		targets := make([]opcode.BrTarget, len(op.Targets))
		copy(targets, op.Targets)
		targets[f.arm].Dst = dst
		op.Targets = targets
		p.code[f.iid] = op
	default:
		panic(fmt.Sprintf("cannot patch %s", op))
	}
}

func (p *lowerer) errorf(format string, args ...any) error {
	return &CompileError{p.name, p.pc, fmt.Sprintf(format, args...)}
}

// immediate extracts a decoded immediate of a given type.
func immediate[T any](p *lowerer, ins disasm.Instr, index int) (T, error) {
	var zero T
	//
	if index >= len(ins.Immediates) {
		return zero, p.errorf("missing immediate for %s", ins.Op.Name)
	} else if v, ok := ins.Immediates[index].(T); ok {
		return v, nil
	}
	//
	return zero, p.errorf("malformed immediate for %s", ins.Op.Name)
}

func blockResults(p *lowerer, ins disasm.Instr) ([]opcode.VarType, error) {
	bt, err := immediate[wasm.BlockType](p, ins, 0)
	if err != nil {
		return nil, err
	} else if bt == wasm.BlockTypeEmpty {
		return nil, nil
	}
	//
	t, err := valueType(wasm.ValueType(bt))
	if err != nil {
		return nil, p.errorf("block: %v", err)
	}
	//
	return []opcode.VarType{t}, nil
}
