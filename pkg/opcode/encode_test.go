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
package opcode

import (
	"errors"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var encoder = NewEncoder(224, 240)

func Test_Encoder_00(t *testing.T) {
	// Empty layout encodes to the class tag alone
	code, err := encoder.EncodeOpcode(Drop{})
	require.NoError(t, err)
	//
	expected := new(uint256.Int).Lsh(uint256.NewInt(uint64(ClassDrop)), 224)
	assert.Equal(t, expected, code)
}

func Test_Encoder_01(t *testing.T) {
	// Fields are placed most significant first
	code, err := encoder.EncodeOpcode(LocalGet{Type: I64, Depth: 3})
	require.NoError(t, err)
	//
	expected := new(uint256.Int).Lsh(uint256.NewInt(uint64(ClassLocalGet)), 224)
	expected.Or(expected, uint256.NewInt(1<<32|3))
	assert.Equal(t, expected, code)
}

func Test_Encoder_02(t *testing.T) {
	// Uniform arguments occupy a tag above their payload
	code, err := encoder.EncodeOpcode(MemoryGrow{Arg: ConstArg(7)})
	require.NoError(t, err)
	//
	expected := new(uint256.Int).Lsh(uint256.NewInt(uint64(ClassMemoryGrow)), 224)
	tag := new(uint256.Int).Lsh(uint256.NewInt(uint64(IConst)), 64)
	expected.Or(expected, tag)
	expected.Or(expected, uint256.NewInt(7))
	assert.Equal(t, expected, code)
}

func Test_Encoder_03(t *testing.T) {
	// Host calls are tagged by plugin
	code, err := encoder.EncodeOpcode(CallHost{Plugin: 2, FunctionIndex: 5})
	require.NoError(t, err)
	//
	expected := new(uint256.Int).Lsh(uint256.NewInt(ForeignPluginStart+2), 224)
	expected.Or(expected, uint256.NewInt(5))
	assert.Equal(t, expected, code)
}

func Test_Encoder_04(t *testing.T) {
	// Budget overflow is reported
	small := NewEncoder(64, 80)
	_, err := small.EncodeOpcode(Select{Type: I32, Arg: [3]UniArg{PopArg(), PopArg(), PopArg()}})
	//
	var overflow *failure.EncodingOverflow
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, uint(1+3*66), overflow.Width)
}

func Test_Encoder_05(t *testing.T) {
	// Field value overflow is reported
	_, err := encoder.Encode("Test", uint64(ClassConst), Field{Kind: Bit, Value: 2})
	//
	var overflow *failure.EncodingOverflow
	assert.True(t, errors.As(err, &overflow))
}

func Test_Encoder_06(t *testing.T) {
	// Every native class fits the default budget
	assert.NoError(t, CheckBudgets(224, 240, 16))
	// But not a tight one
	assert.Error(t, CheckBudgets(128, 240, 16))
}

func Test_Encoder_07(t *testing.T) {
	// Injectivity within classes over a representative sample
	check_Injective(t, sampleOpcodes())
}

func Test_Encoder_08(t *testing.T) {
	// All codes are bounded by 2^OPCODE_SHIFT
	for _, op := range sampleOpcodes() {
		code, err := encoder.EncodeOpcode(op)
		require.NoError(t, err, op.String())
		assert.LessOrEqual(t, code.BitLen(), 240, op.String())
	}
}

func Test_Encoder_09(t *testing.T) {
	// Field layouts agree with fields produced by opcodes
	for _, op := range sampleOpcodes() {
		layout := Layout(op.Class())
		fields := op.Fields()
		//
		require.Equal(t, len(layout), len(fields), op.String())
		//
		for i := range layout {
			assert.Equal(t, layout[i], fields[i].Kind, op.String())
		}
	}
}

func Test_Shifts_00(t *testing.T) {
	assert.Equal(t, []uint{1 + 66 + 66, 66 + 66, 66, 0}, Shifts(ClassBin))
	assert.Equal(t, []uint{}, Shifts(ClassDrop))
}

func check_Injective(t *testing.T, ops []Opcode) {
	seen := make(map[uint256.Int]Opcode)
	//
	for _, op := range ops {
		code, err := encoder.EncodeOpcode(op)
		require.NoError(t, err)
		//
		if prev, ok := seen[*code]; ok {
			t.Errorf("encoding collision between %s and %s", prev, op)
		}
		//
		seen[*code] = op
	}
}

func sampleOpcodes() []Opcode {
	var (
		ops  []Opcode
		args = []UniArg{PopArg(), StackArg(0), StackArg(1), ConstArg(0), ConstArg(1), ConstArg(^uint64(0))}
	)
	//
	for _, ty := range []VarType{I32, I64} {
		for d := uint32(0); d < 3; d++ {
			ops = append(ops, LocalGet{ty, d}, LocalTee{ty, d})
			//
			for _, a := range args {
				ops = append(ops, LocalSet{ty, d, a})
			}
		}
		//
		for _, v := range []uint64{0, 1, 2, 1 << 40, ^uint64(0)} {
			ops = append(ops, Const{ty, v})
		}
		//
		for _, a := range args {
			for _, b := range args {
				ops = append(ops, Bin{Add, ty, [2]UniArg{a, b}}, Bin{SignedRem, ty, [2]UniArg{a, b}})
				ops = append(ops, Rel{Eq, ty, [2]UniArg{a, b}}, BinShift{Rotr, ty, [2]UniArg{a, b}})
				ops = append(ops, BinBit{Xor, ty, [2]UniArg{a, b}})
				ops = append(ops, Store{4, ty, Byte32, [2]UniArg{a, b}})
			}
			//
			ops = append(ops, Unary{Clz, ty, a}, Test{Eqz, ty, a}, Load{0, ty, S16, a}, Load{8, ty, U64, a})
		}
	}
	//
	for c := ConversionOp(0); c <= I64Extend32S; c++ {
		ops = append(ops, Conversion{c, PopArg()})
	}
	//
	keeps := [][]VarType{nil, {I32}, {I64}}
	for _, k := range keeps {
		for _, drop := range []uint32{0, 1, 5} {
			ops = append(ops, Return{drop, k}, Br{BrTarget{drop, k, 3}}, BrIf{BrTarget{drop, k, 3}, PopArg()})
			ops = append(ops, BrIfEqz{BrTarget{drop, k, 4}, PopArg()})
		}
	}
	//
	ops = append(ops, Drop{}, Unreachable{}, MemorySize{}, MemoryGrow{PopArg()}, Call{0}, Call{1},
		CallIndirect{0, PopArg()}, CallIndirect{1, PopArg()}, GlobalGet{0}, GlobalGet{1},
		GlobalSet{0, PopArg()}, GlobalSet{1, PopArg()}, ExternalHostCall{1, false}, ExternalHostCall{1, true},
		BrTable{[]BrTarget{{}, {}}, PopArg()}, BrTable{[]BrTarget{{}, {}, {}}, PopArg()},
		Select{I32, [3]UniArg{PopArg(), PopArg(), PopArg()}}, Select{I64, [3]UniArg{PopArg(), PopArg(), PopArg()}},
		CallHost{Plugin: 0, FunctionIndex: 0}, CallHost{Plugin: 0, FunctionIndex: 1}, CallHost{Plugin: 1})
	//
	return ops
}
