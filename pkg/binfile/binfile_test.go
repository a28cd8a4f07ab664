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
package binfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	test_util "github.com/DelphinusLab/zkWasm-sub000/pkg/test/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/vm"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/wasm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config.ForK(12, config.WithMaxRowsPerSlice(64), config.WithParallel(false))

func Test_BinFile_00(t *testing.T) {
	binf := check_Record(t, test_util.WasmCalls())
	decoded := check_RoundTrip(t, binf)
	// Tables derived from the decoded trace are identical.
	check_Tables(t, binf, decoded)
}

func Test_BinFile_01(t *testing.T) {
	binf := check_Record(t, test_util.WasmMemory())
	filename := filepath.Join(t.TempDir(), "memory.bin")
	//
	require.NoError(t, WriteBinaryFile(filename, binf))
	decoded, err := ReadBinaryFile(filename)
	require.NoError(t, err)
	//
	assert.Equal(t, binf.Execution, decoded.Execution)
	//
	cfg, err := decoded.Config()
	require.NoError(t, err)
	assert.Equal(t, testConfig, cfg)
}

func Test_BinFile_02(t *testing.T) {
	binf := check_Record(t, test_util.WasmSum())
	data, err := binf.MarshalBinary()
	require.NoError(t, err)
	// Not a binary file
	assert.False(t, IsBinaryFile([]byte("zkwasm")))
	assert.True(t, IsBinaryFile(data))
	// Truncated
	var decoded BinaryFile
	assert.Error(t, decoded.UnmarshalBinary(data[:12]))
	// Newer major version
	binf.Header.MajorVersion++
	data, err = binf.MarshalBinary()
	require.NoError(t, err)
	assert.ErrorContains(t, decoded.UnmarshalBinary(data), "incompatible")
}

func Test_BinFile_03(t *testing.T) {
	binf := check_Record(t, test_util.WasmSum())
	binf.Header.MetaData = []byte("{")
	//
	_, err := binf.Config()
	assert.ErrorContains(t, err, "malformed metadata")
}

func Test_BinFile_04(t *testing.T) {
	// Header claiming far more metadata than the file holds
	data := append([]byte{}, ZKWASMTR[:]...)
	data = binary.BigEndian.AppendUint16(data, BINFILE_MAJOR_VERSION)
	data = binary.BigEndian.AppendUint16(data, BINFILE_MINOR_VERSION)
	data = binary.BigEndian.AppendUint32(data, math.MaxUint32)
	data = append(data, '{', '}')
	//
	var header Header
	assert.ErrorContains(t, header.UnmarshalBinary(bytes.NewReader(data)), "malformed")
	// Exact length is fine
	binary.BigEndian.PutUint32(data[12:16], 2)
	require.NoError(t, header.UnmarshalBinary(bytes.NewReader(data)))
	assert.Equal(t, []byte("{}"), header.MetaData)
}

// ============================================================================
// Helpers
// ============================================================================

// Execute a given binary, and record its execution.
func check_Record(t *testing.T, binary []byte) *BinaryFile {
	m, err := wasm.Compile(testConfig, host.DefaultRegistry(), binary, wasm.DefaultEntry)
	require.NoError(t, err)
	//
	env := &host.Env{}
	trace, err := vm.Execute(context.Background(), testConfig, m, env)
	require.NoError(t, err)
	//
	binf, err := NewBinaryFile(testConfig, Execution{
		Entry: wasm.DefaultEntry, Module: binary, Outputs: env.Outputs, Trace: trace,
	})
	require.NoError(t, err)
	//
	return binf
}

func check_RoundTrip(t *testing.T, binf *BinaryFile) *BinaryFile {
	var decoded BinaryFile
	//
	data, err := binf.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, decoded.UnmarshalBinary(data))
	//
	assert.Equal(t, binf.Header, decoded.Header)
	assert.Equal(t, binf.Execution, decoded.Execution)
	//
	return &decoded
}

func check_Tables(t *testing.T, expected, actual *BinaryFile) {
	build := func(binf *BinaryFile) *tables.Tables {
		m, err := wasm.Compile(testConfig, host.DefaultRegistry(), binf.Execution.Module, binf.Execution.Entry)
		require.NoError(t, err)
		//
		tbls, err := tables.Build(testConfig, m, binf.Execution.Trace)
		require.NoError(t, err)
		require.NoError(t, tbls.Check())
		//
		return tbls
	}
	//
	lhs, rhs := build(expected), build(actual)
	assert.Equal(t, lhs.Events.Entries(), rhs.Events.Entries())
	assert.Equal(t, lhs.Memory.Rows(), rhs.Memory.Rows())
	assert.Equal(t, lhs.Frames.Entries(), rhs.Frames.Entries())
	assert.Equal(t, lhs.PostMemory.Entries(), rhs.PostMemory.Entries())
}
