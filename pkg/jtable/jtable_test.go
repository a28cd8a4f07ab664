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
package jtable

import (
	"errors"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_JTable_00(t *testing.T) {
	// Return from a dynamic frame
	tbl, err := NewTable(StaticFrames(1, 0, false))
	require.NoError(t, err)
	require.NoError(t, tbl.Push(5, 0, 2, itable.Address{Fid: 1, Iid: 3}))
	require.NoError(t, tbl.Push(9, 5, 3, itable.Address{Fid: 2, Iid: 7}))
	//
	target, err := tbl.ReturnTarget(12, 9, 3)
	require.NoError(t, err)
	assert.Equal(t, Target{2, 8, 5}, target)
	//
	target, err = tbl.ReturnTarget(14, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, Target{1, 4, 0}, target)
	// Lookups survive reallocation
	e, ok := tbl.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, uint32(2), e.CalleeFid)
}

func Test_JTable_01(t *testing.T) {
	// Returning from the wrong function
	tbl, err := NewTable(StaticFrames(1, 0, false))
	require.NoError(t, err)
	require.NoError(t, tbl.Push(5, 0, 2, itable.Address{Fid: 1, Iid: 3}))
	//
	_, err = tbl.ReturnTarget(6, 5, 4)
	check_FrameMismatch(t, err)
	//
	_, err = tbl.ReturnTarget(6, 7, 2)
	check_FrameMismatch(t, err)
	// Duplicate frames
	assert.Error(t, tbl.Push(5, 0, 2, itable.Address{Fid: 1, Iid: 3}))
}

func Test_JTable_02(t *testing.T) {
	// Static frames
	tbl, err := NewTable(StaticFrames(1, 4, true))
	require.NoError(t, err)
	//
	target, err := tbl.ReturnTarget(3, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, Target{1, 0, 0}, target)
	//
	target, err = tbl.ReturnTarget(7, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, Target{0, 0, 0}, target)
	// Disabled start frame
	tbl, err = NewTable(StaticFrames(1, 4, false))
	require.NoError(t, err)
	//
	_, err = tbl.ReturnTarget(3, 0, 4)
	check_FrameMismatch(t, err)
}

func Test_JTable_03(t *testing.T) {
	// Inherited frames resolve returns
	inherited := []Entry{{3, 0, 2, itable.Address{Fid: 1, Iid: 0}}}
	tbl, err := NewTable(StaticFrames(1, 0, false), inherited...)
	require.NoError(t, err)
	//
	target, err := tbl.ReturnTarget(40, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, Target{1, 1, 0}, target)
	assert.Equal(t, uint(1), tbl.Len())
	assert.Empty(t, tbl.Entries())
	// Frame zero cannot be inherited
	_, err = NewTable(StaticFrames(1, 0, false), Entry{})
	assert.Error(t, err)
}

func Test_JTable_04(t *testing.T) {
	assert.NoError(t, Balance(3, 3))
	check_FrameMismatch(t, Balance(3, 2))
	check_FrameMismatch(t, Balance(2, 3))
}

func Test_JTable_05(t *testing.T) {
	// Deep recursion, mixed with inherited frames
	inherited := []Entry{{1, 0, 2, itable.Address{Fid: 1, Iid: 0}}}
	tbl, err := NewTable(StaticFrames(1, 0, false), inherited...)
	require.NoError(t, err)
	//
	for eid := uint32(2); eid <= 5000; eid++ {
		require.NoError(t, tbl.Push(eid, eid-1, 2, itable.Address{Fid: 2, Iid: 4}))
	}
	//
	assert.Equal(t, uint(5000), tbl.Len())
	// Every frame resolves to its caller
	for eid := uint32(5000); eid > 1; eid-- {
		target, err := tbl.ReturnTarget(eid+5000, eid, 2)
		require.NoError(t, err)
		assert.Equal(t, Target{2, 5, eid - 1}, target)
	}
	//
	e, ok := tbl.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, inherited[0], *e)
}

// ============================================================================
// Helpers
// ============================================================================

func check_FrameMismatch(t *testing.T, err error) {
	var mismatch *failure.FrameMismatch
	//
	if !errors.As(err, &mismatch) {
		t.Errorf("expected frame mismatch, got %v", err)
	}
}
