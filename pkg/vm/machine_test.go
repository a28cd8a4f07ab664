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
package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	test_util "github.com/DelphinusLab/zkWasm-sub000/pkg/test/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config.ForK(12, config.WithParallel(false))

func Test_VM_Sum_00(t *testing.T) {
	p, err := test_util.Sum(testConfig, 10)
	require.NoError(t, err)
	//
	machine, trace := check_Program(t, p)
	assert.Len(t, trace, 12+9*10)
	// Terminal state
	assert.Equal(t, etable.Entry{Eid: 103, Sp: testConfig.StackBase}, machine.State())
	// Doubling happens in its own function
	assert.Equal(t, uint32(2), trace[len(trace)-5].Fid)
}

func Test_VM_Sum_01(t *testing.T) {
	p, err := test_util.Sum(testConfig, 0)
	require.NoError(t, err)
	//
	_, trace := check_Program(t, p)
	assert.Len(t, trace, 12)
}

func Test_VM_Memory_00(t *testing.T) {
	p, err := test_util.Memory(testConfig)
	require.NoError(t, err)
	//
	machine, trace := check_Program(t, p)
	// Store crosses into the second block.
	store := trace[2].Step.(etable.StoreStep)
	assert.Equal(t, uint64(0x6677880000000000), store.PostBlock1)
	assert.Equal(t, uint64(0x0000001122334455), store.PostBlock2)
	assert.Equal(t, uint64(0x6677880000000000), machine.Memory().Read(mtable.Heap, 0))
	// Grown memory
	assert.Equal(t, uint32(3), machine.State().AllocatedMemoryPages)
	assert.Equal(t, uint64(3), machine.Memory().Read(mtable.Global, 0))
}

func Test_VM_Factorial_00(t *testing.T) {
	p, err := test_util.Factorial(testConfig)
	require.NoError(t, err)
	//
	_, trace := check_Program(t, p)
	// Each frame is pushed by the call which created it.
	for _, e := range trace {
		if e.Fid == 2 && e.Iid == 0 {
			caller := trace[e.LastJumpEid-1]
			assert.IsType(t, etable.CallStep{}, caller.Step)
		}
	}
}

func Test_VM_Indirect_00(t *testing.T) {
	p, err := test_util.Indirect(testConfig)
	require.NoError(t, err)
	//
	_, trace := check_Program(t, p)
	assert.Equal(t, etable.CallIndirectStep{Offset: 0, FuncIndex: 3}, trace[2].Step)
}

func Test_VM_Input_00(t *testing.T) {
	p, err := test_util.Input(testConfig)
	require.NoError(t, err)
	//
	machine, _ := check_Program(t, p)
	assert.Equal(t, []uint64{3, 7}, machine.Env().Instance())
}

func Test_VM_Input_01(t *testing.T) {
	p, err := test_util.Input(testConfig)
	require.NoError(t, err)
	// Missing private input
	env := &host.Env{PublicInputs: []uint64{3}}
	_, err = Execute(context.Background(), testConfig, p.Module, env)
	check_Trap(t, err)
	assert.Contains(t, err.Error(), host.ErrInputExhausted.Error())
}

func Test_VM_Branches_00(t *testing.T) {
	p, err := test_util.Branches(testConfig)
	require.NoError(t, err)
	//
	_, trace := check_Program(t, p)
	// Execution begins in the start function
	assert.Equal(t, uint32(2), trace[0].Fid)
	assert.Equal(t, uint32(1), trace[2].Fid)
	assert.Equal(t, etable.BrTableStep{Index: 9}, trace[6].Step)
	assert.Equal(t, uint32(7), trace[7].Iid)
}

func Test_VM_Trap_00(t *testing.T) {
	p, err := test_util.Trap(testConfig)
	require.NoError(t, err)
	//
	trace, err := Execute(context.Background(), testConfig, p.Module, p.Env())
	check_Trap(t, err)
	assert.Len(t, trace, 1)
}

func Test_VM_Trap_01(t *testing.T) {
	b := tables.NewBuilder(testConfig, host.DefaultRegistry()).Pages(1, 0)
	b.Function(1, "main",
		opcode.Load{Offset: 65535, Type: opcode.I32, Size: opcode.U32, Arg: opcode.ConstArg(0)},
		opcode.Return{Drop: 1},
	)
	m, err := b.Build(1)
	require.NoError(t, err)
	//
	_, err = Execute(context.Background(), testConfig, m, nil)
	check_Trap(t, err)
}

func Test_VM_Trap_02(t *testing.T) {
	b := tables.NewBuilder(testConfig, host.DefaultRegistry())
	b.Function(1, "main", opcode.Unreachable{})
	m, err := b.Build(1)
	require.NoError(t, err)
	//
	_, err = Execute(context.Background(), testConfig, m, nil)
	check_Trap(t, err)
}

func Test_VM_StepLimit_00(t *testing.T) {
	p, err := test_util.Sum(testConfig, 10)
	require.NoError(t, err)
	//
	cfg := testConfig
	cfg.MaxSteps = 50
	trace, err := Execute(context.Background(), cfg, p.Module, p.Env())
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Len(t, trace, 50)
}

func Test_VM_Cancel_00(t *testing.T) {
	p, err := test_util.Sum(testConfig, 10)
	require.NoError(t, err)
	//
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	//
	trace, err := Execute(ctx, testConfig, p.Module, p.Env())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, trace)
}

// ============================================================================
// Helpers
// ============================================================================

// Execute a program, checking its outputs and that its trace is accepted by
// the tables.
func check_Program(t *testing.T, p test_util.Program) (*Machine, []etable.Entry) {
	machine, err := New(testConfig, p.Module, p.Env())
	require.NoError(t, err)
	//
	trace, err := machine.Run(context.Background())
	require.NoError(t, err)
	require.True(t, machine.Halted())
	assert.Equal(t, p.Outputs, machine.Env().Outputs)
	//
	tbls, err := tables.Build(testConfig, p.Module, trace)
	require.NoError(t, err)
	require.NoError(t, tbls.Check())
	// Final memory agrees
	for _, e := range tbls.PostMemory.Entries() {
		assert.Equal(t, e.Value, machine.Memory().Read(e.Location, e.Offset), "%s@%d", e.Location, e.Offset)
	}
	//
	return machine, trace
}

func check_Trap(t *testing.T, err error) {
	var trap *Trap
	//
	require.Error(t, err)
	assert.True(t, errors.As(err, &trap), "expected trap, got %v", err)
}
