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
package circuit

import (
	"context"
	"errors"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/air"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/slice"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	test_util "github.com/DelphinusLab/zkWasm-sub000/pkg/test/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config.ForK(12, config.WithParallel(false))

func Test_Circuit_00(t *testing.T) {
	// Every program is accepted as a whole.
	programs, err := test_util.Programs(testConfig)
	require.NoError(t, err)
	//
	c := New(testConfig)
	//
	for _, p := range programs {
		assert.NoError(t, c.Check(witness(t, testConfig, p)), p.Name)
	}
}

func Test_Circuit_01(t *testing.T) {
	// Every program is accepted slice by slice.
	cfg := config.ForK(12, config.WithMaxRowsPerSlice(5), config.WithBatchSize(2))
	programs, err := test_util.Programs(cfg)
	require.NoError(t, err)
	//
	for _, p := range programs {
		trace, err := vm.Execute(context.Background(), cfg, p.Module, p.Env())
		require.NoError(t, err)
		//
		slices, err := slice.Split(cfg, p.Module, trace)
		require.NoError(t, err)
		assert.NoError(t, CheckSlices(cfg, slices), p.Name)
	}
}

func Test_Circuit_02(t *testing.T) {
	// Instruction lookup
	tr := check_Assign(t, sum(t, 3))
	tamper(tr, EventTable, code, 0, 12345)
	check_LookupMiss(t, tr, EventTable+"->"+CodeTable)
}

func Test_Circuit_03(t *testing.T) {
	// Frame lookup
	p, err := test_util.Factorial(testConfig)
	require.NoError(t, err)
	//
	tr := check_Assign(t, witness(t, testConfig, p))
	// First pushed frame follows the static frames.
	tamper(tr, FrameTable, calleeFid, 2, 9)
	check_LookupMiss(t, tr, EventTable+"->"+FrameTable+":call")
}

func Test_Circuit_04(t *testing.T) {
	// Memory continuity
	tr := check_Assign(t, sum(t, 3))
	tbl, _ := tr.Table(MemoryTable)
	//
	for row := 0; row < int(tbl.Height()); row++ {
		var (
			e = tbl.Get(enabled, row)
			i = tbl.Get(isInit, row)
			w = tbl.Get(isWrite, row)
		)
		//
		if !e.IsZero() && i.IsZero() && w.IsZero() {
			tamper(tr, MemoryTable, value, uint(row), 987654)
			break
		}
	}
	//
	var failed *failure.ConstraintFailure
	//
	err := air.Accepts(New(testConfig).Schema(), tr, false)
	require.Error(t, err)
	assert.True(t, errors.As(err, &failed))
}

func Test_Circuit_05(t *testing.T) {
	// Too many steps for the event table
	cfg := config.ForK(12, config.WithMaxRowsPerSlice(10), config.WithParallel(false))
	_, err := New(cfg).Assign(sum(t, 10))
	//
	var capacity *failure.CapacityExceeded
	//
	require.True(t, errors.As(err, &capacity))
	assert.Equal(t, failure.EventRowsExceedLimit, capacity.Kind)
}

func Test_Circuit_06(t *testing.T) {
	schema := New(testConfig).Schema()
	//
	for _, c := range schema.Constraints() {
		if c.Handle() == eid {
			assert.Equal(t, "(vanish etable:eid (* enabled (- (- (shift eid 1) eid) 1)))", c.Lisp().String())
			return
		}
	}
	//
	t.Fatal("no eid constraint")
}

func Test_Circuit_07(t *testing.T) {
	// Arithmetic results are constrained, even when memory agrees with them.
	tr := check_Assign(t, sum(t, 3))
	add := find(t, tr, EventTable, map[string]uint64{opSelector(opcode.ClassBin): 1, fieldCol(0): 0})
	var (
		rhs   = get(tr, EventTable, slot(0, slotValue), add)
		lhs   = get(tr, EventTable, slot(1, slotValue), add)
		wrong = lhs + rhs + 1
		write = find(t, tr, MemoryTable, map[string]uint64{eid: get(tr, EventTable, eid, add), emid: 2})
	)
	//
	tamper(tr, EventTable, slot(2, slotValue), add, wrong)
	tamper(tr, MemoryTable, value, write, wrong)
	check_Rejects(t, tr, "Bin:result")
}

func Test_Circuit_08(t *testing.T) {
	// Operand fields are those of the instruction.
	tr := check_Assign(t, sum(t, 3))
	add := find(t, tr, EventTable, map[string]uint64{opSelector(opcode.ClassBin): 1, fieldCol(0): 0})
	tamper(tr, EventTable, fieldCol(0), add, uint64(opcode.Sub))
	check_Rejects(t, tr, "decode:Bin")
	// Stack pointer changes are those of the class.
	tr = check_Assign(t, sum(t, 3))
	local := find(t, tr, EventTable, map[string]uint64{opSelector(opcode.ClassLocalGet): 1})
	tamper(tr, EventTable, spDelta, local, 0)
	check_Rejects(t, tr, "LocalGet:sp_delta")
}

func Test_Circuit_09(t *testing.T) {
	// Globals have no implicit initial value.
	p, err := test_util.Memory(testConfig)
	require.NoError(t, err)
	//
	tr := check_Assign(t, witness(t, testConfig, p))
	init := find(t, tr, MemoryTable, map[string]uint64{loc: uint64(mtable.Global), isInit: 1})
	tamper(tr, MemoryTable, explicit, init, 0)
	check_Rejects(t, tr, "init:global")
}

func Test_Circuit_10(t *testing.T) {
	// Stack slots are written before they are read.
	tr := check_Assign(t, sum(t, 3))
	init := find(t, tr, MemoryTable, map[string]uint64{loc: uint64(mtable.Stack), isInit: 1, explicit: 0,
		enabled: 1})
	tamper(tr, MemoryTable, isWrite, init+1, 0)
	check_Rejects(t, tr, "init:stack")
}

func Test_Circuit_11(t *testing.T) {
	// 32-bit values fit their type.
	tr := check_Assign(t, sum(t, 3))
	row := find(t, tr, MemoryTable, map[string]uint64{enabled: 1, loc: uint64(mtable.Stack), varType: 0,
		isInit: 0})
	tamper(tr, MemoryTable, value, row, 1<<32)
	check_Rejects(t, tr, "value:i32")
}

// ============================================================================
// Helpers
// ============================================================================

func sum(t *testing.T, n uint32) Witness {
	p, err := test_util.Sum(testConfig, n)
	require.NoError(t, err)
	//
	return witness(t, testConfig, p)
}

func witness(t *testing.T, cfg config.Config, p test_util.Program) Witness {
	trace, err := vm.Execute(context.Background(), cfg, p.Module, p.Env())
	require.NoError(t, err)
	//
	tbls, err := tables.Build(cfg, p.Module, trace)
	require.NoError(t, err)
	//
	return FromTables(tbls)
}

func check_Assign(t *testing.T, w Witness) *air.Trace {
	c := New(testConfig)
	//
	tr, err := c.Assign(w)
	require.NoError(t, err)
	require.NoError(t, air.Accepts(c.Schema(), tr, false))
	//
	return tr
}

func tamper(tr *air.Trace, table, column string, row uint, val uint64) {
	tbl, _ := tr.Table(table)
	c, _ := tbl.Column(column)
	c.SetUint64(row, val)
}

// find returns the first row of a table whose columns hold given values.
func find(t *testing.T, tr *air.Trace, table string, values map[string]uint64) uint {
	tbl, _ := tr.Table(table)
	//
	for row := uint(0); row < tbl.Height(); row++ {
		match := true
		//
		for c, v := range values {
			match = match && get(tr, table, c, row) == v
		}
		//
		if match {
			return row
		}
	}
	//
	t.Fatalf("no matching row of %s", table)
	//
	return 0
}

func get(tr *air.Trace, table, column string, row uint) uint64 {
	tbl, _ := tr.Table(table)
	val := tbl.Get(column, int(row))
	//
	if !val.IsUint64() {
		return ^uint64(0)
	}
	//
	return val.Uint64()
}

// handles returns the handles of every failing constraint.
func handles(err error) []string {
	var (
		miss   *failure.LookupMiss
		failed *failure.ConstraintFailure
	)
	//
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var names []string
		//
		for _, e := range joined.Unwrap() {
			names = append(names, handles(e)...)
		}
		//
		return names
	} else if errors.As(err, &miss) {
		return []string{miss.Table}
	} else if errors.As(err, &failed) {
		return []string{failed.Handle}
	}
	//
	return []string{err.Error()}
}

func check_Rejects(t *testing.T, tr *air.Trace, handle string) {
	err := air.Accepts(New(testConfig).Schema(), tr, false)
	require.Error(t, err)
	assert.Contains(t, handles(err), handle)
}

func check_LookupMiss(t *testing.T, tr *air.Trace, handle string) {
	var miss *failure.LookupMiss
	//
	err := air.Accepts(New(testConfig).Schema(), tr, false)
	require.Error(t, err)
	require.True(t, errors.As(err, &miss), "expected lookup miss, got %v", err)
	assert.Equal(t, handle, miss.Table)
}
