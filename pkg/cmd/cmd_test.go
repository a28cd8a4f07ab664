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
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/air"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/binfile"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/circuit"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/store"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	test_util "github.com/DelphinusLab/zkWasm-sub000/pkg/test/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/wasm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config.ForK(12, config.WithMaxRowsPerSlice(64), config.WithParallel(false))

func Test_Cmd_00(t *testing.T) {
	binf := check_Run(t, test_util.WasmSum(), 55)
	require.NoError(t, checkExecution(context.Background(), testConfig, binf, true))
}

func Test_Cmd_01(t *testing.T) {
	binf := check_Run(t, test_util.WasmCalls(), 120, 100, 200, 42)
	require.NoError(t, checkExecution(context.Background(), testConfig, binf, false))
	// Tampered trace
	binf.Execution.Trace[3].Sp++
	check_ExitCode(t, EXIT_FAILED_CHECK, checkExecution(context.Background(), testConfig, binf, false))
	binf.Execution.Trace[3].Sp--
	// Tampered outputs
	binf.Execution.Outputs[0]++
	check_ExitCode(t, EXIT_FAILED_CHECK, checkExecution(context.Background(), testConfig, binf, false))
	// Truncated trace
	binf.Execution.Outputs[0]--
	binf.Execution.Trace = binf.Execution.Trace[:10]
	check_ExitCode(t, EXIT_FAILED_CHECK, checkExecution(context.Background(), testConfig, binf, false))
}

func Test_Cmd_02(t *testing.T) {
	var (
		dir     = t.TempDir()
		garbage = filepath.Join(dir, "garbage.bin")
	)
	// Malformed module
	_, err := runModule(context.Background(), testConfig, []byte{0, 1, 2}, wasm.DefaultEntry, binfile.Execution{})
	check_ExitCode(t, EXIT_BAD_INPUT, err)
	// Missing entry
	_, err = runModule(context.Background(), testConfig, test_util.WasmSum(), "main", binfile.Execution{})
	check_ExitCode(t, EXIT_BAD_INPUT, err)
	// Missing file
	_, err = readExecution(filepath.Join(dir, "missing.bin"))
	check_ExitCode(t, EXIT_IO, err)
	// Not a recorded execution
	require.NoError(t, os.WriteFile(garbage, []byte("not a trace"), 0644))
	_, err = readExecution(garbage)
	check_ExitCode(t, EXIT_BAD_INPUT, err)
}

func Test_Cmd_03(t *testing.T) {
	// Trap during execution
	binary := test_util.WasmEntry(0x41, 0x01, 0x41, 0x00, 0x6d, 0x1a, 0x0b)
	_, err := runModule(context.Background(), testConfig, binary, wasm.DefaultEntry, binfile.Execution{})
	check_ExitCode(t, EXIT_FAILED_CHECK, err)
	assert.Contains(t, err.Error(), "execution failed")
}

func Test_Cmd_04(t *testing.T) {
	var (
		cfg  = config.ForK(12, config.WithMaxRowsPerSlice(17), config.WithParallel(false))
		dir  = t.TempDir()
		file = filepath.Join(dir, "sum.bin")
	)
	//
	binf := check_Run(t, test_util.WasmSum(), 55)
	require.NoError(t, binfile.WriteBinaryFile(file, binf))
	// Read back
	binf, err := readExecution(file)
	require.NoError(t, err)
	//
	slices, err := sliceExecution(cfg, binf, true)
	require.NoError(t, err)
	require.Greater(t, len(slices), 1)
	// Store, then replay
	id, err := storeSlices(filepath.Join(dir, "db"), cfg, binf, slices)
	require.NoError(t, err)
	//
	db, err := store.Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	//
	defer db.Close()
	//
	var out bytes.Buffer
	//
	require.NoError(t, listExecutions(&out, db))
	assert.Equal(t, id+"\n", out.String())
	//
	out.Reset()
	require.NoError(t, replayExecution(&out, db, id))
	assert.Contains(t, out.String(), "(last)")
	assert.Equal(t, len(slices)+1, bytes.Count(out.Bytes(), []byte("\n")))
	// Unknown execution
	check_ExitCode(t, EXIT_BAD_INPUT, replayExecution(&out, db, "00"))
}

func Test_Cmd_05(t *testing.T) {
	tbls := check_Tables(t, test_util.WasmMemory())
	//
	check_Inspect(t, tbls, "events", "global.get 0")
	check_Inspect(t, tbls, "memory", "heap@0")
	check_Inspect(t, tbls, "frames", "callee")
	check_Inspect(t, tbls, "code", "return")
	//
	view := inspection{table: "columns"}
	check_ExitCode(t, EXIT_BAD_INPUT, view.write(&bytes.Buffer{}, tbls, 0))
}

func Test_Cmd_06(t *testing.T) {
	tbls := check_Tables(t, test_util.WasmSum())
	// Windows
	view := inspection{table: "events", start: 5, limit: 3}
	lo, hi := view.window(int(tbls.Events.Len()))
	assert.Equal(t, 5, lo)
	assert.Equal(t, 8, hi)
	//
	view = inspection{table: "events", start: 1000}
	lo, hi = view.window(int(tbls.Events.Len()))
	assert.Equal(t, lo, hi)
	// Fitted to a narrow terminal
	var out bytes.Buffer
	//
	view = inspection{table: "events", limit: 4}
	require.NoError(t, view.write(&out, tbls, 40))
	//
	for _, line := range bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n")) {
		assert.LessOrEqual(t, len(line), 40)
	}
}

func Test_Cmd_07(t *testing.T) {
	var out bytes.Buffer
	//
	tbls := check_Tables(t, test_util.WasmMemory())
	require.NoError(t, writeImage(&out, "pre-image", tbls.Image))
	require.NoError(t, writeImage(&out, "post-image", tbls.Image.WithMemory(tbls.PostMemory)))
	//
	pre, post := tbls.Image.Hash(), tbls.Image.WithMemory(tbls.PostMemory).Hash()
	assert.NotEqual(t, pre, post)
	assert.Contains(t, out.String(), "pre-image")
	assert.Contains(t, out.String(), "instructions")
	assert.Contains(t, out.String(), "static_frames")
}

func Test_Cmd_08(t *testing.T) {
	vals, err := parseValues([]string{"1", "0x10", "18446744073709551615"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 16, 18446744073709551615}, vals)
	//
	_, err = parseValues([]string{"-1"})
	assert.Error(t, err)
	//
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(os.ErrClosed))
	assert.Equal(t, EXIT_IO, ExitCode(ioFailure(os.ErrClosed)))
	assert.Nil(t, badInput(nil))
}

func Test_Cmd_09(t *testing.T) {
	require.NoError(t, runCmd.ParseFlags([]string{"--max-rows", "17", "--sequential", "--k", "14"}))
	//
	cfg := getConfig(runCmd)
	assert.Equal(t, uint(14), cfg.K)
	assert.Equal(t, uint(17), cfg.MaxRowsPerSlice)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, config.ForK(14).MaxMemoryRowsPerSlice, cfg.MaxMemoryRowsPerSlice)
	// Recorded configuration
	binf, err := binfile.NewBinaryFile(testConfig, binfile.Execution{})
	require.NoError(t, err)
	//
	cfg, err = executionConfig(runCmd, binf)
	require.NoError(t, err)
	assert.Equal(t, testConfig.K, cfg.K)
	assert.Equal(t, uint(17), cfg.MaxRowsPerSlice)
}

func Test_Cmd_10(t *testing.T) {
	var out bytes.Buffer
	// Every constraint of the circuit prints, and vanishing ones parse back.
	require.NoError(t, writeConstraints(&out, circuit.New(testConfig).Schema()))
	assert.Contains(t, out.String(), "(vanish etable:")
	assert.Contains(t, out.String(), "(lookup etable->itable ")
	assert.Contains(t, out.String(), "(copy rest_mops ")
	// An expression which does not parse back is reported.
	schema := air.NewSchema()
	schema.AddTable("t", "5x")
	schema.AddVanishingConstraint("bad", "t", util.None[int](), air.NewColumnAccess("5x", 0))
	assert.ErrorContains(t, writeConstraints(&out, schema), "bad")
}

// ============================================================================
// Helpers
// ============================================================================

// Run a given module, checking its outputs.
func check_Run(t *testing.T, binary []byte, outputs ...uint64) *binfile.BinaryFile {
	binf, err := runModule(context.Background(), testConfig, binary, wasm.DefaultEntry, binfile.Execution{})
	require.NoError(t, err)
	assert.Equal(t, outputs, binf.Execution.Outputs)
	//
	cfg, err := binf.Config()
	require.NoError(t, err)
	assert.Equal(t, testConfig, cfg)
	//
	return binf
}

// Build the tables of a module executed without inputs.
func check_Tables(t *testing.T, binary []byte) *tables.Tables {
	binf, err := runModule(context.Background(), testConfig, binary, wasm.DefaultEntry, binfile.Execution{})
	require.NoError(t, err)
	//
	m, err := wasm.Compile(testConfig, host.DefaultRegistry(), binary, wasm.DefaultEntry)
	require.NoError(t, err)
	//
	tbls, err := tables.Build(testConfig, m, binf.Execution.Trace)
	require.NoError(t, err)
	//
	return tbls
}

func check_Inspect(t *testing.T, tbls *tables.Tables, table string, expected string) {
	var out bytes.Buffer
	//
	view := inspection{table: table}
	require.NoError(t, view.write(&out, tbls, 0))
	assert.Contains(t, out.String(), expected, table)
}

func check_ExitCode(t *testing.T, code int, err error) {
	require.Error(t, err)
	assert.Equal(t, code, ExitCode(err), "%v", err)
}
