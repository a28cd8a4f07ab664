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
package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/binfile"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/circuit"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/slice"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/store"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	test_util "github.com/DelphinusLab/zkWasm-sub000/pkg/test/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/vm"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/wasm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Slice sizes (in event rows) used throughout.
var sliceSizes = []uint{8, 17, 64, 1024}

// ===================================================================
// WebAssembly modules
// ===================================================================

func Test_Pipeline_Sum_00(t *testing.T) {
	check_Pipeline(t, test_util.WasmSum(), 55)
}

func Test_Pipeline_Memory_00(t *testing.T) {
	check_Pipeline(t, test_util.WasmMemory(), 0x060504030201, 7)
}

func Test_Pipeline_Calls_00(t *testing.T) {
	check_Pipeline(t, test_util.WasmCalls(), 120, 100, 200, 42)
}

// ===================================================================
// Programs
// ===================================================================

func Test_Pipeline_Programs_00(t *testing.T) {
	for _, rows := range []uint{5, 64} {
		cfg := config.ForK(12, config.WithMaxRowsPerSlice(rows), config.WithParallel(true), config.WithBatchSize(4))
		//
		programs, err := test_util.Programs(cfg)
		require.NoError(t, err)
		//
		for _, p := range programs {
			trace, err := vm.Execute(context.Background(), cfg, p.Module, p.Env())
			require.NoError(t, err, p.Name)
			//
			slices := check_Slices(t, cfg, p.Module, trace)
			require.NoError(t, circuit.CheckSlices(cfg, slices), p.Name)
		}
	}
}

// ===================================================================
// Properties
// ===================================================================

// Opcodes with equal operand fields have equal codes, and those with distinct
// fields have distinct codes.
func Test_Pipeline_Encoding_00(t *testing.T) {
	var (
		cfg    = config.ForK(12)
		codes  = make(map[string]string)
		fields = make(map[string]string)
	)
	//
	for _, m := range check_Modules(t, cfg) {
		for _, e := range m.Code.Entries() {
			code := e.Code.Hex()
			key := fmt.Sprintf("%s %v", e.Opcode.Class(), e.Opcode.Fields())
			//
			if k, ok := codes[code]; ok {
				assert.Equal(t, k, key, "code %s", code)
			}
			//
			if c, ok := fields[key]; ok {
				assert.Equal(t, c, code, "%s", e.Opcode)
			}
			//
			codes[code], fields[key] = key, code
			assert.Less(t, e.Code.BitLen(), int(cfg.OpcodeShift), "%s", e.Opcode)
		}
	}
	//
	assert.Equal(t, len(codes), len(fields))
}

// Slicing neither loses nor duplicates steps or memory operations.
func Test_Pipeline_Conservation_00(t *testing.T) {
	cfg := config.ForK(12, config.WithMaxRowsPerSlice(17), config.WithParallel(false))
	//
	for i, m := range check_Modules(t, cfg) {
		env := &host.Env{PublicInputs: []uint64{3}, PrivateInputs: []uint64{4}}
		//
		trace, err := vm.Execute(context.Background(), cfg, m, env)
		require.NoError(t, err)
		//
		tbls, err := tables.Build(cfg, m, trace)
		require.NoError(t, err)
		//
		slices := check_Slices(t, cfg, m, trace)
		//
		var steps, mops, calls uint
		//
		for _, s := range slices {
			steps += s.Events.Len()
			mops += countMops(s.Memory)
			calls += uint(len(s.Frames.Entries()))
		}
		//
		assert.Equal(t, uint(len(trace)), steps, "module %d", i)
		assert.Equal(t, countMops(tbls.Memory), mops, "module %d", i)
		assert.Equal(t, tbls.Frames.Len(), calls, "module %d", i)
	}
}

// ============================================================================
// Helpers
// ============================================================================

// Compile every test module: the WebAssembly modules and the programs.
func check_Modules(t *testing.T, cfg config.Config) []*tables.Module {
	var modules []*tables.Module
	//
	for _, binary := range [][]byte{test_util.WasmSum(), test_util.WasmMemory(), test_util.WasmCalls()} {
		m, err := wasm.Compile(cfg, host.DefaultRegistry(), binary, wasm.DefaultEntry)
		require.NoError(t, err)
		//
		modules = append(modules, m)
	}
	//
	programs, err := test_util.Programs(cfg)
	require.NoError(t, err)
	//
	for _, p := range programs {
		modules = append(modules, p.Module)
	}
	//
	return modules
}

// Run a module through the whole pipeline (for every slice size): compile,
// execute, record, split, check against the circuit, store and replay.
func check_Pipeline(t *testing.T, binary []byte, outputs ...uint64) {
	for _, rows := range sliceSizes {
		t.Run(fmt.Sprintf("rows_%d", rows), func(t *testing.T) {
			cfg := config.ForK(12, config.WithMaxRowsPerSlice(rows), config.WithParallel(rows%2 == 0))
			//
			m, err := wasm.Compile(cfg, host.DefaultRegistry(), binary, wasm.DefaultEntry)
			require.NoError(t, err)
			//
			env := &host.Env{}
			trace, err := vm.Execute(context.Background(), cfg, m, env)
			require.NoError(t, err)
			assert.Equal(t, outputs, env.Outputs)
			// Record
			binf := check_Record(t, cfg, binary, trace, env.Outputs)
			// Split
			slices := check_Slices(t, cfg, m, binf.Execution.Trace)
			require.NoError(t, circuit.CheckSlices(cfg, slices))
			// Store and replay
			db, err := store.Open("")
			require.NoError(t, err)
			//
			defer db.Close()
			//
			id, err := db.PutExecution(binf)
			require.NoError(t, err)
			require.NoError(t, db.PutSlices(id, slices))
			//
			replayed, err := db.Replay(id, host.DefaultRegistry())
			require.NoError(t, err)
			assert.Len(t, replayed, len(slices))
		})
	}
}

// Record an execution, and check it survives a round trip.
func check_Record(t *testing.T, cfg config.Config, binary []byte, trace []etable.Entry,
	outputs []uint64) *binfile.BinaryFile {
	binf, err := binfile.NewBinaryFile(cfg, binfile.Execution{
		Entry: wasm.DefaultEntry, Module: binary, Outputs: outputs, Trace: trace,
	})
	require.NoError(t, err)
	//
	data, err := binf.MarshalBinary()
	require.NoError(t, err)
	//
	var decoded binfile.BinaryFile
	//
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, trace, decoded.Execution.Trace)
	//
	return &decoded
}

// Split a trace, checking the slices and that they join back into the trace.
func check_Slices(t *testing.T, cfg config.Config, m *tables.Module, trace []etable.Entry) []*slice.Slice {
	slices, err := slice.Split(cfg, m, trace)
	require.NoError(t, err)
	require.NoError(t, slice.CheckAll(cfg, slices))
	//
	joined, err := slice.Join(slices)
	require.NoError(t, err)
	assert.Equal(t, trace, joined)
	//
	for _, s := range slices {
		assert.LessOrEqual(t, s.Events.Len()+1, cfg.MaxRowsPerSlice)
	}
	//
	return slices
}

// Count the memory operations (i.e. non-Init rows) of a memory table.
func countMops(tbl *mtable.Table) uint {
	var n uint
	//
	for _, r := range tbl.Rows() {
		if r.Access != mtable.Init {
			n++
		}
	}
	//
	return n
}
