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
package image

import (
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T) *Image {
	builder := itable.NewBuilder(opcode.NewEncoder(224, 240))
	require.NoError(t, builder.PushFunction(1, []opcode.Opcode{
		opcode.Const{Type: opcode.I32, Value: 0},
		opcode.BrTable{Targets: []opcode.BrTarget{{Dst: 2}, {Dst: 3}}, Arg: opcode.PopArg()},
		opcode.Return{},
		opcode.Return{},
	}))
	//
	elements, err := itable.NewElements(itable.Element{Offset: 0, TypeIndex: 0, Fid: 1})
	require.NoError(t, err)
	//
	memory, err := mtable.NewInitTable(mtable.InitEntry{Location: mtable.Global, Offset: 0, Type: opcode.I32, Value: 7})
	require.NoError(t, err)
	//
	return New(builder.Build(), elements, jtable.StaticFrames(1, 0, false), memory)
}

func Test_Image_00(t *testing.T) {
	img := testImage(t)
	//
	assert.Len(t, img.Section(Instructions), 4*InstructionWidth)
	assert.Len(t, img.Section(BranchTable), 2*BranchWidth)
	assert.Len(t, img.Section(InitMemory), MemoryWidth)
	assert.Len(t, img.Section(Elements), ElementWidth)
	assert.Len(t, img.Section(StaticFrames), 2*StaticWidth)
	// Static frames (enable, ..., callee)
	frames := img.Section(StaticFrames)
	assert.True(t, frames[0].IsOne())
	assert.True(t, frames[StaticWidth].IsZero())
	assert.Equal(t, uint64(1), frames[3].Uint64())
}

func Test_Image_01(t *testing.T) {
	// Hashing is deterministic, and sensitive to memory
	img := testImage(t)
	assert.Equal(t, img.Hash(), testImage(t).Hash())
	//
	post := img.Memory().Apply([]mtable.Entry{{Eid: 3, Offset: 0, Location: mtable.Global, Access: mtable.Write,
		Type: opcode.I32, IsMutable: true, Value: 8}})
	assert.NotEqual(t, img.Hash(), img.WithMemory(post).Hash())
	assert.Equal(t, img.Hash(), img.WithMemory(img.Memory().Clone()).Hash())
}

func Test_Image_02(t *testing.T) {
	// Keys are injective over location, mutability and offset
	a := MemoryKey(mtable.Heap, true, 1)
	b := MemoryKey(mtable.Heap, false, 1)
	c := MemoryKey(mtable.Global, true, 1)
	assert.False(t, a.Equal(&b))
	assert.False(t, a.Equal(&c))
	//
	x := Address(1, 2)
	y := Address(2, 1)
	assert.False(t, x.Equal(&y))
}
