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
	"errors"
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

// ErrInputExhausted is returned when a program reads more inputs than given.
var ErrInputExhausted = errors.New("host input exhausted")

// Env holds the inputs and outputs exchanged with the host during execution.
type Env struct {
	// Public inputs (consumed in order).
	PublicInputs []uint64
	// Private inputs (consumed in order).
	PrivateInputs []uint64
	// Context inputs (consumed in order).
	ContextInputs []uint64
	// Values returned by external host calls (consumed in order).
	ExternalReturns []uint64
	// Public outputs written by the program.
	Outputs []uint64
	// Context outputs written by the program.
	ContextOutputs []uint64
	// Values passed to external host calls.
	ExternalArgs []uint64
	//
	publicIndex, privateIndex, contextIndex, externalIndex int
}

// Instance returns the public instance of an execution: the public inputs
// consumed followed by the outputs written.
func (e *Env) Instance() []uint64 {
	instance := append([]uint64{}, e.PublicInputs[:e.publicIndex]...)
	//
	return append(instance, e.Outputs...)
}

func next(queue []uint64, index *int, what string) (uint64, error) {
	if *index >= len(queue) {
		return 0, fmt.Errorf("%w (%s)", ErrInputExhausted, what)
	}
	//
	v := queue[*index]
	*index++
	//
	return v, nil
}

// NextExternal returns the next value for an external host call returning a
// value.
func (e *Env) NextExternal() (uint64, error) {
	return next(e.ExternalReturns, &e.externalIndex, "external host call")
}

// ============================================================================
// Input plugin
// ============================================================================

// Functions of the input plugin.
const (
	WasmInput uint32 = iota
	WasmOutput
)

// InputPlugin implements reading public and private inputs, and writing
// public outputs.  Both public inputs and outputs advance the public input
// index, since both form part of the instance.
type InputPlugin struct{}

// Name implementation for Plugin interface.
func (InputPlugin) Name() string { return "wasm_input" }

// Functions implementation for Plugin interface.
func (InputPlugin) Functions() []Function {
	return []Function{
		{"wasm_input", WasmInput, []opcode.VarType{opcode.I32}, []opcode.VarType{opcode.I64}},
		{"wasm_output", WasmOutput, []opcode.VarType{opcode.I64}, nil},
	}
}

// Effect implementation for Plugin interface.
func (InputPlugin) Effect(fn uint32, args []uint64) Effect {
	if fn == WasmInput {
		return Effect{PublicInput: uint32(args[0] & 1)}
	}
	//
	return Effect{PublicInput: 1}
}

// Execute implementation for Plugin interface.
func (InputPlugin) Execute(fn uint32, args []uint64, env *Env) ([]uint64, error) {
	switch {
	case fn == WasmInput && args[0] == 1:
		v, err := next(env.PublicInputs, &env.publicIndex, "public")
		return []uint64{v}, err
	case fn == WasmInput:
		v, err := next(env.PrivateInputs, &env.privateIndex, "private")
		return []uint64{v}, err
	default:
		env.Outputs = append(env.Outputs, args[0])
		return nil, nil
	}
}

// Check implementation for Plugin interface.
func (InputPlugin) Check(fn uint32, args []uint64, _ []uint64) error {
	if fn == WasmInput && args[0] > 1 {
		return fmt.Errorf("wasm_input flag must be 0 or 1 (was %d)", args[0])
	}
	//
	return nil
}

// ============================================================================
// Context plugin
// ============================================================================

// Functions of the context plugin.
const (
	ReadContext uint32 = iota
	WriteContext
)

// ContextPlugin implements reading and writing of the continuation context.
type ContextPlugin struct{}

// Name implementation for Plugin interface.
func (ContextPlugin) Name() string { return "context" }

// Functions implementation for Plugin interface.
func (ContextPlugin) Functions() []Function {
	return []Function{
		{"wasm_read_context", ReadContext, nil, []opcode.VarType{opcode.I64}},
		{"wasm_write_context", WriteContext, []opcode.VarType{opcode.I64}, nil},
	}
}

// Effect implementation for Plugin interface.
func (ContextPlugin) Effect(fn uint32, _ []uint64) Effect {
	if fn == ReadContext {
		return Effect{ContextInput: 1}
	}
	//
	return Effect{ContextOutput: 1}
}

// Execute implementation for Plugin interface.
func (ContextPlugin) Execute(fn uint32, args []uint64, env *Env) ([]uint64, error) {
	if fn == ReadContext {
		v, err := next(env.ContextInputs, &env.contextIndex, "context")
		return []uint64{v}, err
	}
	//
	env.ContextOutputs = append(env.ContextOutputs, args[0])
	//
	return nil, nil
}

// Check implementation for Plugin interface.
func (ContextPlugin) Check(uint32, []uint64, []uint64) error {
	return nil
}

// ============================================================================
// Require plugin
// ============================================================================

// ErrRequireFailed is returned when a require assertion fails.
var ErrRequireFailed = errors.New("require failed")

// RequirePlugin implements an assertion that its argument is non-zero.
type RequirePlugin struct{}

// Name implementation for Plugin interface.
func (RequirePlugin) Name() string { return "require" }

// Functions implementation for Plugin interface.
func (RequirePlugin) Functions() []Function {
	return []Function{{"require", 0, []opcode.VarType{opcode.I32}, nil}}
}

// Effect implementation for Plugin interface.
func (RequirePlugin) Effect(uint32, []uint64) Effect {
	return Effect{}
}

// Execute implementation for Plugin interface.
func (p RequirePlugin) Execute(fn uint32, args []uint64, _ *Env) ([]uint64, error) {
	return nil, p.Check(fn, args, nil)
}

// Check implementation for Plugin interface.
func (RequirePlugin) Check(_ uint32, args []uint64, _ []uint64) error {
	if args[0] == 0 {
		return ErrRequireFailed
	}
	//
	return nil
}
