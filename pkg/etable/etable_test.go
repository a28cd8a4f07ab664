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
package etable

import (
	"errors"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config.ForK(12, config.WithBatchSize(1))

func Test_ETable_00(t *testing.T) {
	// local.get followed by local.set of the same local
	code := program(t, map[uint32][]opcode.Opcode{1: {
		opcode.Const{Type: opcode.I32, Value: 5},
		opcode.LocalGet{Type: opcode.I32, Depth: 0},
		opcode.LocalSet{Type: opcode.I32, Depth: 0, Arg: opcode.PopArg()},
		opcode.Return{Drop: 1},
	}})
	entries := []Entry{
		{1, 1, 0, 101, 0, 0, ConstStep{}},
		{2, 1, 1, 100, 0, 0, LocalGetStep{5}},
		{3, 1, 2, 99, 0, 0, LocalSetStep{5}},
		{4, 1, 3, 100, 0, 0, ReturnStep{}},
	}
	tbl := check_ETable(t, code, entries, Entry{5, 0, 0, 101, 0, 0, nil})
	// Read 5 then write 5 at the same address
	get := tbl.Rows()[1].Transition
	set := tbl.Rows()[2].Transition
	assert.Equal(t, mtable.Entry{Eid: 2, Emid: 0, Offset: 100, Location: mtable.Stack, Access: mtable.Read, Type: opcode.I32, IsMutable: true, Value: 5}, get.Memory[0])
	assert.Equal(t, mtable.Entry{Eid: 3, Emid: 1, Offset: 100, Location: mtable.Stack, Access: mtable.Write, Type: opcode.I32, IsMutable: true, Value: 5}, set.Memory[1])
	assert.Equal(t, int64(0), get.SpDelta+set.SpDelta)
	// Counters
	assert.Equal(t, uint64(5), tbl.RestMops())
	assert.Equal(t, uint64(0), tbl.Rows()[3].RestMops)
	assert.Equal(t, uint32(1), tbl.Rows()[3].RestReturnOps)
}

func Test_ETable_01(t *testing.T) {
	// Cross-block load
	code := program(t, map[uint32][]opcode.Opcode{1: {
		opcode.Const{Type: opcode.I32, Value: 5},
		opcode.Load{Offset: 0, Type: opcode.I32, Size: opcode.U32, Arg: opcode.PopArg()},
		opcode.Return{Drop: 1},
	}})
	var (
		b1      uint64 = 0x0706050403020100
		b2      uint64 = 0x0f0e0d0c0b0a0908
		entries        = []Entry{
			{1, 1, 0, 101, 1, 0, ConstStep{}},
			{2, 1, 1, 100, 1, 0, LoadStep{5, b1, b2, 0x08070605}},
			{3, 1, 2, 100, 1, 0, ReturnStep{}},
		}
	)
	//
	init, err := mtable.NewInitTable(
		mtable.InitEntry{Location: mtable.Heap, IsMutable: true, Offset: 0, Type: opcode.I64, Value: b1},
		mtable.InitEntry{Location: mtable.Heap, IsMutable: true, Offset: 1, Type: opcode.I64, Value: b2})
	require.NoError(t, err)
	//
	tbl := check_ETable(t, code, entries, Entry{4, 0, 0, 101, 1, 0, nil}, init)
	load := tbl.Rows()[1].Transition
	require.Len(t, load.Memory, 4)
	assert.Equal(t, mtable.Entry{Eid: 2, Emid: 1, Offset: 0, Location: mtable.Heap, Access: mtable.Read, Type: opcode.I64, IsMutable: true, Value: b1}, load.Memory[1])
	assert.Equal(t, mtable.Entry{Eid: 2, Emid: 2, Offset: 1, Location: mtable.Heap, Access: mtable.Read, Type: opcode.I64, IsMutable: true, Value: b2}, load.Memory[2])
	assert.Equal(t, uint32(3), load.Memory[3].Emid)
	// Incorrect value
	entries[1].Step = LoadStep{5, b1, b2, 0x07060504}
	_, err = build(code, entries, Entry{4, 0, 0, 101, 1, 0, nil})
	check_LookupMiss(t, err)
}

func Test_ETable_02(t *testing.T) {
	// Out-of-range branch table index selects the default
	targets := []opcode.BrTarget{{Dst: 3}, {Dst: 4}, {Dst: 5}}
	code := program(t, map[uint32][]opcode.Opcode{1: {
		opcode.Const{Type: opcode.I32, Value: 10},
		opcode.BrTable{Targets: targets, Arg: opcode.PopArg()},
		opcode.Drop{},
		opcode.Drop{},
		opcode.Drop{},
		opcode.Return{},
	}})
	entries := []Entry{
		{1, 1, 0, 101, 0, 0, ConstStep{}},
		{2, 1, 1, 100, 0, 0, BrTableStep{10, nil}},
		{3, 1, 5, 101, 0, 0, ReturnStep{}},
	}
	tbl := check_ETable(t, code, entries, Entry{4, 0, 0, 101, 0, 0, nil})
	assert.Equal(t, itable.Address{Fid: 1, Iid: 5}, tbl.Rows()[1].Transition.Target)
	//
	br, err := code.BranchTable().Get(1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), br.Index)
	// Resuming anywhere else is rejected
	entries[2].Iid = 4
	entries[2].Step = DropStep{}
	tbl, err = build(code, entries, Entry{4, 0, 0, 102, 0, 0, nil})
	require.NoError(t, err)
	check_LookupMiss(t, tbl.Check(frames(t, tbl)))
}

func Test_ETable_03(t *testing.T) {
	// Calls and returns
	code := program(t, map[uint32][]opcode.Opcode{
		1: {opcode.Call{Index: 2}, opcode.Return{}},
		2: {opcode.Return{}},
	})
	entries := []Entry{
		{1, 1, 0, 101, 0, 0, CallStep{}},
		{2, 2, 0, 101, 0, 1, ReturnStep{}},
		{3, 1, 1, 101, 0, 0, ReturnStep{}},
	}
	tbl := check_ETable(t, code, entries, Entry{4, 0, 0, 101, 0, 0, nil})
	assert.NoError(t, tbl.Balance(frames(t, tbl)))
	assert.Equal(t, uint32(1), tbl.RestCallOps())
	// Frame is active after the call only
	active, err := tbl.ActiveFrames(nil)
	require.NoError(t, err)
	assert.Empty(t, active)
	// Returning to the wrong instruction
	entries[2].Iid = 0
	entries[2].Step = CallStep{}
	tbl, err = build(code, entries, Entry{4, 2, 0, 101, 0, 3, nil})
	require.NoError(t, err)
	check_FrameMismatch(t, tbl.Check(frames(t, tbl)))
}

func Test_ETable_09(t *testing.T) {
	// Terminal state follows the final return
	code := program(t, map[uint32][]opcode.Opcode{1: {opcode.Const{Type: opcode.I64, Value: 1}, opcode.Return{Drop: 1}}})
	tbl, err := build(code, []Entry{{1, 1, 0, 101, 2, 0, ConstStep{}}, {2, 1, 1, 100, 2, 0, ReturnStep{}}}, Entry{})
	require.NoError(t, err)
	require.NoError(t, tbl.Check(frames(t, tbl)))
	assert.Equal(t, Entry{3, 0, 0, 101, 2, 0, nil}, tbl.Post().Entry)
	// An empty execution has no terminal state
	_, err = build(code, nil, Entry{})
	assert.Error(t, err)
}

func Test_ETable_04(t *testing.T) {
	// Mismatched step info and arithmetic
	code := program(t, map[uint32][]opcode.Opcode{1: {
		opcode.Bin{Op: opcode.Add, Type: opcode.I32, Arg: [2]opcode.UniArg{opcode.PopArg(), opcode.ConstArg(1)}},
	}})
	_, err := build(code, []Entry{{1, 1, 0, 100, 0, 0, BinStep{1, 1, 3}}}, Entry{})
	check_LookupMiss(t, err)
	//
	_, err = build(code, []Entry{{1, 1, 0, 100, 0, 0, ConstStep{}}}, Entry{})
	check_LookupMiss(t, err)
	// Constant operand must agree
	_, err = build(code, []Entry{{1, 1, 0, 100, 0, 0, BinStep{1, 2, 3}}}, Entry{})
	check_LookupMiss(t, err)
	// Correct
	tbl, err := build(code, []Entry{{1, 1, 0, 100, 0, 0, BinStep{1, 1, 2}}}, Entry{})
	require.NoError(t, err)
	// One pop and one push, with the constant occupying a slot
	memory := tbl.Rows()[0].Transition.Memory
	require.Len(t, memory, 2)
	assert.Equal(t, uint32(1), memory[0].Emid)
	assert.Equal(t, uint32(2), memory[1].Emid)
}

func Test_ETable_05(t *testing.T) {
	// Cross-block store touches two blocks
	op := opcode.Store{Offset: 4, Type: opcode.I64, Size: opcode.Byte64,
		Arg: [2]opcode.UniArg{opcode.PopArg(), opcode.PopArg()}}
	post1, post2 := opcode.WriteBytes(4, 8, 0x1122334455667788, 0, 0)
	e := Entry{1, 1, 0, 98, 1, 0, StoreStep{0, 0x1122334455667788, 0, 0, post1, post2}}
	//
	memory, err := MemoryEffects(&e, op)
	require.NoError(t, err)
	require.Len(t, memory, 6)
	assert.Equal(t, uint32(98), memory[0].Offset)
	assert.Equal(t, uint32(99), memory[1].Offset)
	assert.Equal(t, mtable.Write, memory[3].Access)
	assert.Equal(t, uint32(1), memory[5].Offset)
	assert.Equal(t, uint64(0x11223344), memory[5].Value)
	// Out of bounds
	e.AllocatedMemoryPages = 0
	_, err = MemoryEffects(&e, op)
	check_LookupMiss(t, err)
}

func Test_ETable_06(t *testing.T) {
	// memory.grow respects the page limit
	op := opcode.MemoryGrow{Arg: opcode.PopArg()}
	ctx := &Context{MaxPages: 3}
	//
	tr, err := Contract(ctx, &Entry{1, 1, 0, 100, 1, 0, MemoryGrowStep{2, 1}}, op)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tr.PagesDelta)
	//
	_, err = Contract(ctx, &Entry{1, 1, 0, 100, 1, 0, MemoryGrowStep{3, 1}}, op)
	check_LookupMiss(t, err)
	//
	tr, err = Contract(ctx, &Entry{1, 1, 0, 100, 1, 0, MemoryGrowStep{3, GrowFailure}}, op)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), tr.PagesDelta)
}

func Test_ETable_07(t *testing.T) {
	// Host calls update the input index
	registry := host.DefaultRegistry()
	op, ok := registry.Resolve("wasm_input")
	require.True(t, ok)
	//
	ctx := &Context{Registry: registry, MaxPages: 1}
	tr, err := Contract(ctx, &Entry{1, 1, 0, 100, 0, 0, CallHostStep{[]uint64{1}, []uint64{42}}}, op)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), tr.PublicInput)
	require.Len(t, tr.Memory, 2)
	assert.Equal(t, mtable.Read, tr.Memory[0].Access)
	assert.Equal(t, uint32(100), tr.Memory[1].Offset)
	// Private inputs do not
	tr, err = Contract(ctx, &Entry{1, 1, 0, 100, 0, 0, CallHostStep{[]uint64{0}, []uint64{42}}}, op)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), tr.PublicInput)
}

func Test_ETable_08(t *testing.T) {
	// Branch keeping a value
	target := opcode.BrTarget{Drop: 2, Keep: []opcode.VarType{opcode.I64}, Dst: 7}
	tr, err := Contract(nil, &Entry{1, 1, 0, 97, 0, 0, BrIfStep{1, []uint64{9}}},
		opcode.BrIf{Target: target, Arg: opcode.PopArg()})
	require.NoError(t, err)
	assert.Equal(t, Jump, tr.Next)
	assert.Equal(t, int64(3), tr.SpDelta)
	require.Len(t, tr.Memory, 3)
	assert.Equal(t, mtable.Entry{Eid: 1, Emid: 2, Offset: 100, Location: mtable.Stack, Access: mtable.Write, Type: opcode.I64, IsMutable: true, Value: 9}, tr.Memory[2])
	// Not taken keeps nothing
	tr, err = Contract(nil, &Entry{1, 1, 0, 97, 0, 0, BrIfStep{0, nil}},
		opcode.BrIf{Target: target, Arg: opcode.PopArg()})
	require.NoError(t, err)
	assert.Equal(t, Sequential, tr.Next)
	assert.Len(t, tr.Memory, 1)
	assert.Equal(t, int64(1), tr.SpDelta)
}

func Test_ETable_10(t *testing.T) {
	// 64-bit load straddling two blocks
	code := program(t, map[uint32][]opcode.Opcode{1: {
		opcode.Const{Type: opcode.I32, Value: 5},
		opcode.Load{Offset: 0, Type: opcode.I64, Size: opcode.U64, Arg: opcode.PopArg()},
		opcode.Return{Drop: 1},
	}})
	var (
		b1      uint64 = 0x0706050403020100
		b2      uint64 = 0x0f0e0d0c0b0a0908
		value          = opcode.ReadBytes(5, 8, b1, b2)
		entries        = []Entry{
			{1, 1, 0, 101, 1, 0, ConstStep{}},
			{2, 1, 1, 100, 1, 0, LoadStep{5, b1, b2, value}},
			{3, 1, 2, 100, 1, 0, ReturnStep{}},
		}
	)
	//
	assert.Equal(t, uint64(0x0c0b0a0908070605), value)
	//
	init, err := mtable.NewInitTable(
		mtable.InitEntry{Location: mtable.Heap, IsMutable: true, Offset: 0, Type: opcode.I64, Value: b1},
		mtable.InitEntry{Location: mtable.Heap, IsMutable: true, Offset: 1, Type: opcode.I64, Value: b2})
	require.NoError(t, err)
	//
	tbl := check_ETable(t, code, entries, Entry{4, 0, 0, 101, 1, 0, nil}, init)
	load := tbl.Rows()[1].Transition
	require.Len(t, load.Memory, 4)
	assert.Equal(t, mtable.Entry{Eid: 2, Emid: 1, Offset: 0, Location: mtable.Heap, Access: mtable.Read, Type: opcode.I64, IsMutable: true, Value: b1}, load.Memory[1])
	assert.Equal(t, mtable.Entry{Eid: 2, Emid: 2, Offset: 1, Location: mtable.Heap, Access: mtable.Read, Type: opcode.I64, IsMutable: true, Value: b2}, load.Memory[2])
	assert.Equal(t, mtable.Entry{Eid: 2, Emid: 3, Offset: 100, Location: mtable.Stack, Access: mtable.Write, Type: opcode.I64, IsMutable: true, Value: value}, load.Memory[3])
	// A second block which disagrees with memory is rejected
	entries[1].Step = LoadStep{5, b1, 0, opcode.ReadBytes(5, 8, b1, 0)}
	tbl, err = build(code, entries, Entry{4, 0, 0, 101, 1, 0, nil})
	require.NoError(t, err)
	//
	mtbl, err := mtable.Build(tbl.MemoryEvents(), init)
	require.NoError(t, err)
	check_LookupMiss(t, mtbl.Check())
}

func Test_ETable_11(t *testing.T) {
	// A host call which needs more memory slots than a step has
	params := make([]opcode.VarType, MaxSlots+1)
	args := make([]uint64, MaxSlots+1)
	//
	for i := range params {
		params[i] = opcode.I64
	}
	//
	op := opcode.CallHost{Plugin: 0, FunctionIndex: 9, Name: "wide", Params: params}
	_, err := Contract(nil, &Entry{1, 1, 0, 100, 0, 0, CallHostStep{args, nil}}, op)
	check_LookupMiss(t, err)
	// One fewer fits
	op.Params = params[:MaxSlots]
	_, err = Contract(nil, &Entry{1, 1, 0, 100, 0, 0, CallHostStep{args[:MaxSlots], nil}}, op)
	assert.NoError(t, err)
}

func Test_ETable_12(t *testing.T) {
	wide := opcode.ConstArg(1<<32 + 1)
	op := opcode.Bin{Op: opcode.Add, Type: opcode.I32, Arg: [2]opcode.UniArg{opcode.PopArg(), wide}}
	// A constant which only agrees after truncation
	_, err := Contract(nil, &Entry{1, 1, 0, 100, 0, 0, BinStep{1, 1, 2}}, op)
	check_LookupMiss(t, err)
	// A constant which does not fit its type
	_, err = Contract(nil, &Entry{1, 1, 0, 100, 0, 0, BinStep{1, 1<<32 + 1, 2}}, op)
	check_LookupMiss(t, err)
	// The same constant fits an i64
	op.Type = opcode.I64
	_, err = Contract(nil, &Entry{1, 1, 0, 100, 0, 0, BinStep{1, 1<<32 + 1, 1<<32 + 2}}, op)
	assert.NoError(t, err)
}

// ============================================================================
// Helpers
// ============================================================================

func program(t *testing.T, functions map[uint32][]opcode.Opcode) *itable.Table {
	builder := itable.NewBuilder(opcode.NewEncoder(testConfig.ClassShift, testConfig.OpcodeShift))
	//
	for fid, body := range functions {
		require.NoError(t, builder.PushFunction(fid, body))
	}
	//
	return builder.Build()
}

// Build a table, where an empty boundary entry means the terminal state.
func build(code *itable.Table, entries []Entry, post Entry) (*Table, error) {
	ctx := NewContext(testConfig, host.DefaultRegistry(), nil, 0)
	//
	if post == (Entry{}) {
		return Build(testConfig, ctx, code, entries, nil, Counters{})
	}
	//
	return Build(testConfig, ctx, code, entries, &post, Counters{})
}

func frames(t *testing.T, tbl *Table) *jtable.Table {
	frames, err := tbl.Frames(jtable.StaticFrames(1, 0, false), nil)
	require.NoError(t, err)
	//
	return frames
}

// Check a table is built and accepted, and that its memory is consistent.
func check_ETable(t *testing.T, code *itable.Table, entries []Entry, post Entry, init ...*mtable.InitTable) *Table {
	tbl, err := build(code, entries, post)
	require.NoError(t, err)
	require.NoError(t, tbl.Check(frames(t, tbl)))
	//
	imtable, err := mtable.NewInitTable()
	require.NoError(t, err)
	//
	if len(init) > 0 {
		imtable = init[0]
	}
	//
	mtbl, err := mtable.Build(tbl.MemoryEvents(), imtable)
	require.NoError(t, err)
	require.NoError(t, mtbl.Check())
	assert.Equal(t, tbl.RestMops(), mtbl.RestMops())
	//
	return tbl
}

func check_LookupMiss(t *testing.T, err error) {
	var miss *failure.LookupMiss
	//
	if !errors.As(err, &miss) {
		t.Errorf("expected lookup miss, got %v", err)
	}
}

func check_FrameMismatch(t *testing.T, err error) {
	var mismatch *failure.FrameMismatch
	//
	if !errors.As(err, &mismatch) {
		t.Errorf("expected frame mismatch, got %v", err)
	}
}
