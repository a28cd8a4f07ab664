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
package host

import (
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Registry_00(t *testing.T) {
	r := DefaultRegistry()
	//
	op, ok := r.Resolve("wasm_input")
	require.True(t, ok)
	assert.Equal(t, opcode.CallHost{Plugin: 0, FunctionIndex: WasmInput, Name: "wasm_input",
		Params: []opcode.VarType{opcode.I32}, Ret: []opcode.VarType{opcode.I64}}, op)
	//
	op, ok = r.Resolve("require")
	require.True(t, ok)
	assert.Equal(t, opcode.PluginID(2), op.(opcode.CallHost).Plugin)
	//
	_, ok = r.Resolve("unknown")
	assert.False(t, ok)
}

func Test_Registry_01(t *testing.T) {
	r := DefaultRegistry()
	r.RegisterExternal("host_push", 3, false)
	//
	op, ok := r.Resolve("host_push")
	require.True(t, ok)
	assert.Equal(t, opcode.ExternalHostCall{Op: 3, IsReturn: false}, op)
}

func Test_Registry_02(t *testing.T) {
	// Signatures must fit within a single step
	_, err := NewRegistry(widePlugin{opcode.MaxSlots + 1, 0})
	assert.ErrorContains(t, err, "stack slots")
	//
	_, err = NewRegistry(widePlugin{1, 2})
	assert.ErrorContains(t, err, "results")
	//
	r, err := NewRegistry(widePlugin{opcode.MaxSlots - 1, 1})
	require.NoError(t, err)
	//
	_, ok := r.Resolve("wide")
	assert.True(t, ok)
}

func Test_Input_00(t *testing.T) {
	var (
		env = &Env{PublicInputs: []uint64{7, 8}, PrivateInputs: []uint64{9}}
		p   = InputPlugin{}
	)
	//
	v, err := p.Execute(WasmInput, []uint64{1}, env)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, v)
	//
	v, err = p.Execute(WasmInput, []uint64{0}, env)
	require.NoError(t, err)
	assert.Equal(t, []uint64{9}, v)
	//
	_, err = p.Execute(WasmInput, []uint64{0}, env)
	assert.ErrorIs(t, err, ErrInputExhausted)
	//
	_, err = p.Execute(WasmOutput, []uint64{42}, env)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 42}, env.Instance())
	//
	assert.Equal(t, Effect{PublicInput: 1}, p.Effect(WasmInput, []uint64{1}))
	assert.Equal(t, Effect{}, p.Effect(WasmInput, []uint64{0}))
	assert.Equal(t, Effect{PublicInput: 1}, p.Effect(WasmOutput, []uint64{42}))
}

func Test_Require_00(t *testing.T) {
	p := RequirePlugin{}
	assert.NoError(t, p.Check(0, []uint64{1}, nil))
	assert.ErrorIs(t, p.Check(0, []uint64{0}, nil), ErrRequireFailed)
}

// ============================================================================
// Helpers
// ============================================================================

// widePlugin exposes a single function with a given number of parameters and
// results.
type widePlugin struct {
	params, results int
}

func (widePlugin) Name() string { return "wide" }

func (p widePlugin) Functions() []Function {
	fn := Function{Name: "wide", Index: 0}
	//
	for range p.params {
		fn.Params = append(fn.Params, opcode.I64)
	}
	//
	for range p.results {
		fn.Ret = append(fn.Ret, opcode.I64)
	}
	//
	return []Function{fn}
}

func (widePlugin) Effect(uint32, []uint64) Effect { return Effect{} }

func (widePlugin) Execute(uint32, []uint64, *Env) ([]uint64, error) { return nil, nil }

func (widePlugin) Check(uint32, []uint64, []uint64) error { return nil }
