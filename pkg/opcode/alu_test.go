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
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Conversion_00(t *testing.T) {
	// Signed extension with MSB set pads with ones
	assert.Equal(t, uint64(0xffffff80), I32Extend8S.Apply(0x80))
	assert.Equal(t, uint64(0xffffffffffff8000), I64Extend16S.Apply(0x12348000))
	assert.Equal(t, uint64(0xffffffff80000000), I64ExtendI32S.Apply(0x80000000))
	// MSB clear gives no padding
	assert.Equal(t, uint64(0x7f), I32Extend8S.Apply(0x17f))
	// Unsigned conversions never pad
	assert.Equal(t, uint64(0x80000000), I64ExtendI32U.Apply(0x80000000))
	assert.Equal(t, uint64(0x89abcdef), I32WrapI64.Apply(0x0123456789abcdef))
}

func Test_Conversion_01(t *testing.T) {
	for c := ConversionOp(0); c <= I64Extend32S; c++ {
		op, ok := ConversionFromShape(c.Shape())
		assert.True(t, ok)
		assert.Equal(t, c, op)
	}
}

func Test_CrossBlock_00(t *testing.T) {
	assert.True(t, IsCrossBlock(5, 8))
	assert.True(t, IsCrossBlock(7, 2))
	assert.False(t, IsCrossBlock(0, 8))
	assert.False(t, IsCrossBlock(6, 2))
	assert.False(t, IsCrossBlock(16, 4))
}

func Test_Bytes_00(t *testing.T) {
	var (
		b1 uint64 = 0x0706050403020100
		b2 uint64 = 0x0f0e0d0c0b0a0908
	)
	//
	assert.Equal(t, uint64(0x0c0b0a0908070605), ReadBytes(5, 8, b1, b2))
	assert.Equal(t, uint64(0x0302), ReadBytes(2, 2, b1, b2))
	assert.Equal(t, b1, ReadBytes(0, 8, b1, b2))
	// Write then read back
	n1, n2 := WriteBytes(6, 4, 0xaabbccdd, b1, b2)
	assert.Equal(t, uint64(0xccdd050403020100), n1)
	assert.Equal(t, uint64(0x0f0e0d0c0b0aaabb), n2)
	assert.Equal(t, uint64(0xaabbccdd), ReadBytes(6, 4, n1, n2))
}

func Test_Alu_00(t *testing.T) {
	v, err := Sub.Apply(I32, 0, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0xffffffff), v)
	//
	_, err = UnsignedDiv.Apply(I64, 1, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	//
	_, err = SignedDiv.Apply(I32, 0x80000000, 0xffffffff)
	assert.ErrorIs(t, err, ErrIntegerOverflow)
	//
	v, err = SignedRem.Apply(I32, 0x80000000, 0xffffffff)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), v)
	//
	v, err = SignedDiv.Apply(I32, 0xfffffff9, 2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0xfffffffd), v)
}

func Test_Alu_01(t *testing.T) {
	assert.Equal(t, uint64(0x80000000), Shl.Apply(I32, 1, 31))
	assert.Equal(t, uint64(2), Shl.Apply(I32, 1, 33))
	assert.Equal(t, uint64(0xffffffff), SignedShr.Apply(I32, 0x80000000, 31))
	assert.Equal(t, uint64(1), UnsignedShr.Apply(I32, 0x80000000, 31))
	assert.Equal(t, uint64(1), Rotl.Apply(I32, 0x80000000, 1))
	assert.Equal(t, uint64(0x8000000000000000), Rotr.Apply(I64, 1, 1))
	assert.Equal(t, uint64(32), Clz.Apply(I32, 0))
	assert.Equal(t, uint64(63), Clz.Apply(I64, 1))
	assert.Equal(t, uint64(4), Ctz.Apply(I64, 16))
	assert.Equal(t, uint64(3), Popcnt.Apply(I32, 0x10000000b))
	assert.Equal(t, uint64(1), SignedLt.Apply(I32, 0xffffffff, 0))
	assert.Equal(t, uint64(0), UnsignedLt.Apply(I32, 0xffffffff, 0))
	assert.Equal(t, uint64(1), Eqz.Apply(I32, 0x100000000))
}

func Test_Alu_02(t *testing.T) {
	v, err := Operate(ClassBin, uint64(Add), I32, 0xffffffff, 2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	//
	v, err = Operate(ClassBinBit, uint64(Xor), I64, 0xff, 0x0f)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0xf0), v)
	// Right operand is ignored
	v, err = Operate(ClassTest, uint64(Eqz), I64, 0, 99)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	// Traps
	_, err = Operate(ClassBin, uint64(UnsignedRem), I32, 1, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	// Unknown operators and classes
	_, err = Operate(ClassRel, uint64(len(relNames)), I32, 0, 0)
	assert.Error(t, err)
	_, err = Operate(ClassTest, 1, I32, 0, 0)
	assert.Error(t, err)
	_, err = Operate(ClassLoad, 0, I32, 0, 0)
	assert.Error(t, err)
}

func Test_Load_00(t *testing.T) {
	assert.Equal(t, uint64(0xffffff80), LoadValue(I32, S8, 0x80))
	assert.Equal(t, uint64(0x80), LoadValue(I32, U8, 0x80))
	assert.Equal(t, uint64(0xffffffffffff8001), LoadValue(I64, S16, 0x8001))
	assert.Equal(t, uint64(0x80000000), LoadValue(I64, U32, 0x80000000))
}
