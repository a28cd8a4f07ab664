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
package itable

import (
	"errors"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, functions ...[]opcode.Opcode) *Table {
	b := NewBuilder(opcode.NewEncoder(224, 240))
	//
	for fid, body := range functions {
		require.NoError(t, b.PushFunction(uint32(fid), body))
	}
	//
	return b.Build()
}

func Test_ITable_00(t *testing.T) {
	tbl := newTable(t,
		[]opcode.Opcode{opcode.Const{Type: opcode.I32, Value: 1}, opcode.Return{}},
		[]opcode.Opcode{opcode.Return{Drop: 1}})
	//
	assert.Equal(t, uint(3), tbl.Len())
	//
	e, err := tbl.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, opcode.Return{Drop: 1}, e.Opcode)
	assert.True(t, tbl.Contains(1, 0, &e.Code))
	assert.False(t, tbl.Contains(0, 1, &e.Code))
	assert.Equal(t, uint32(2), tbl.FunctionLength(0))
}

func Test_ITable_01(t *testing.T) {
	tbl := newTable(t, []opcode.Opcode{opcode.Drop{}})
	//
	_, err := tbl.Get(0, 1)
	//
	var miss *failure.LookupMiss
	require.True(t, errors.As(err, &miss))
	assert.Equal(t, "itable", miss.Table)
}

func Test_ITable_02(t *testing.T) {
	b := NewBuilder(opcode.NewEncoder(224, 240))
	require.NoError(t, b.Push(0, 0, opcode.Drop{}))
	assert.Error(t, b.Push(0, 0, opcode.Drop{}))
	// Encoding overflow surfaces at build time
	tight := NewBuilder(opcode.NewEncoder(8, 240))
	//
	var overflow *failure.EncodingOverflow
	assert.True(t, errors.As(tight.Push(0, 0, opcode.Const{Type: opcode.I32, Value: 1}), &overflow))
}

func Test_BrTable_00(t *testing.T) {
	// Out-of-range index dispatches to the last target
	br := opcode.BrTable{
		Targets: []opcode.BrTarget{
			{Drop: 0, Dst: 10},
			{Drop: 1, Keep: []opcode.VarType{opcode.I64}, Dst: 20},
			{Drop: 2, Dst: 30},
		},
		Arg: opcode.PopArg(),
	}
	tbl := newTable(t, []opcode.Opcode{opcode.Drop{}, br})
	brt := tbl.BranchTable()
	//
	assert.Equal(t, uint(3), brt.Len())
	//
	e, err := brt.Get(0, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), e.Index)
	assert.Equal(t, uint32(30), e.Dst)
	//
	e, err = brt.Get(0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, BrTableEntry{0, 1, 1, 1, 1, opcode.I64, 20}, *e)
	//
	_, err = brt.Get(0, 0, 0)
	assert.Error(t, err)
}

func Test_BrTable_01(t *testing.T) {
	assert.Equal(t, uint32(2), Clamp(10, 3))
	assert.Equal(t, uint32(2), Clamp(^uint64(0), 3))
	assert.Equal(t, uint32(0), Clamp(0, 3))
	assert.Equal(t, uint32(0), Clamp(5, 1))
	assert.Equal(t, uint32(0), Clamp(5, 0))
}

func Test_BrTable_02(t *testing.T) {
	// A branch table must have at least its default target
	builder := NewBuilder(opcode.NewEncoder(224, 240))
	err := builder.Push(1, 0, opcode.BrTable{Arg: opcode.PopArg()})
	assert.ErrorContains(t, err, "no targets")
	//
	require.NoError(t, builder.Push(1, 0, opcode.BrTable{Targets: []opcode.BrTarget{{Dst: 1}}, Arg: opcode.PopArg()}))
	assert.Equal(t, uint(1), builder.Build().BranchTable().Len())
}
