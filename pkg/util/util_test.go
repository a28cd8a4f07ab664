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
package util

import (
	"bytes"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Bits_00(t *testing.T) {
	assert.Equal(t, uint(0), BitWidth(uint8(0)))
	assert.Equal(t, uint(8), BitWidth(uint8(255)))
	assert.Equal(t, uint(33), BitWidth(uint64(1)<<32))
	assert.True(t, FitsIn(uint32(65535), 16))
	assert.False(t, FitsIn(uint32(65536), 16))
	assert.True(t, FitsIn(^uint64(0), 64))
}

func Test_Bits_01(t *testing.T) {
	assert.Equal(t, uint64(0xff), Mask(8))
	assert.Equal(t, ^uint64(0), Mask(64))
	assert.Equal(t, uint64(0xffffff80), SignExtend(0x80, 8, 32))
	assert.Equal(t, uint64(0x7f), SignExtend(0x7f, 8, 32))
	assert.Equal(t, ^uint64(0), SignExtend(0xffffffff, 32, 64))
	assert.Equal(t, uint64(1), SignBit(0x8000, 16))
}

func Test_Option_00(t *testing.T) {
	some, none := Some(uint32(3)), None[uint32]()
	//
	v, ok := some.Get()
	assert.True(t, ok)
	assert.Equal(t, uint32(3), v)
	assert.Equal(t, uint32(3), some.UnwrapOr(7))
	assert.Equal(t, uint32(7), none.UnwrapOr(7))
	assert.False(t, none.HasValue())
	assert.Equal(t, "none", none.String())
	assert.Panics(t, func() { none.Unwrap() })
}

func Test_Parallel_00(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		items, err := ParallelMap(103, 10, parallel, func(start, end uint) ([]uint, error) {
			var ith []uint
			//
			for i := start; i < end; i++ {
				ith = append(ith, i*i)
			}
			//
			return ith, nil
		})
		//
		require.NoError(t, err)
		require.Len(t, items, 103)
		//
		for i, v := range items {
			assert.Equal(t, uint(i*i), v)
		}
	}
}

func Test_Parallel_01(t *testing.T) {
	var (
		first  = errors.New("first")
		second = errors.New("second")
	)
	// Errors are reported in row order
	for _, parallel := range []bool{false, true} {
		err := ParallelEach(100, 10, parallel, func(start, _ uint) error {
			switch start {
			case 30:
				return first
			case 70:
				return second
			}
			//
			return nil
		})
		//
		assert.ErrorIs(t, err, first)
	}
}

func Test_Parallel_02(t *testing.T) {
	var count atomic.Int32
	//
	tasks := make([]func() error, 5)
	for i := range tasks {
		tasks[i] = func() error {
			count.Add(1)
			return nil
		}
	}
	//
	require.NoError(t, ParallelTasks(true, tasks...))
	assert.Equal(t, int32(5), count.Load())
	assert.Equal(t, uint(3), NumBatches(21, 10))
	assert.Panics(t, func() { NumBatches(1, 0) })
}

func Test_Table_00(t *testing.T) {
	var out bytes.Buffer
	//
	tp := NewTablePrinter(2, 2)
	tp.SetRow(0, "name", "value")
	tp.SetRow(1, "sp", "8192")
	require.NoError(t, tp.Write(&out))
	assert.Equal(t, " name | value |\n   sp |  8192 |\n", out.String())
}

func Test_Table_01(t *testing.T) {
	var out bytes.Buffer
	//
	tp := NewTablePrinter(2, 1)
	tp.SetRow(0, strings.Repeat("x", 30), "y")
	tp.FitWidth(20)
	require.NoError(t, tp.Write(&out))
	assert.Equal(t, uint(20), tp.Width())
	assert.Equal(t, 20+1, out.Len())
}
