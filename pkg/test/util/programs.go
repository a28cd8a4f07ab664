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
	"fmt"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
)

// Program is a compiled test program, together with its inputs and expected
// outputs.
type Program struct {
	Name   string
	Module *tables.Module
	// Public and private inputs
	Public, Private []uint64
	// Expected public outputs
	Outputs []uint64
}

// Env returns a fresh host environment holding the inputs of this program.
func (p *Program) Env() *host.Env {
	return &host.Env{PublicInputs: slices.Clone(p.Public), PrivateInputs: slices.Clone(p.Private)}
}

var (
	i32 = opcode.I32
	i64 = opcode.I64
	pop = opcode.PopArg()
)

func extend() opcode.Opcode {
	return opcode.Conversion{Op: opcode.I64ExtendI32U, Arg: pop}
}

func ret(drop uint32, keep ...opcode.VarType) opcode.Opcode {
	return opcode.Return{Drop: drop, Keep: keep}
}

func bin(op opcode.BinOp, t opcode.VarType, lhs, rhs opcode.UniArg) opcode.Opcode {
	return opcode.Bin{Op: op, Type: t, Arg: [2]opcode.UniArg{lhs, rhs}}
}

// Programs returns every test program.
func Programs(cfg config.Config) ([]Program, error) {
	var (
		programs []Program
		makers   = []func(config.Config) (Program, error){
			func(cfg config.Config) (Program, error) { return Sum(cfg, 10) },
			Memory, Factorial, Indirect, Input, Branches,
		}
	)
	//
	for _, fn := range makers {
		p, err := fn(cfg)
		if err != nil {
			return nil, err
		}
		//
		programs = append(programs, p)
	}
	//
	return programs, nil
}

// Sum computes 2 * (1 + ... + n) using a loop and a call, and outputs the
// result.  This executes 12 + 9n steps.
func Sum(cfg config.Config, n uint32) (Program, error) {
	b := tables.NewBuilder(cfg, host.DefaultRegistry())
	//
	b.Function(1, "main",
		opcode.Const{Type: i32, Value: uint64(n)},
		opcode.Const{Type: i32, Value: 0},
		// loop
		opcode.LocalGet{Type: i32, Depth: 1},
		opcode.BrIfEqz{Target: opcode.BrTarget{Dst: 11}, Arg: pop},
		opcode.LocalGet{Type: i32, Depth: 0},
		opcode.LocalGet{Type: i32, Depth: 2},
		bin(opcode.Add, i32, pop, pop),
		opcode.LocalSet{Type: i32, Depth: 0, Arg: pop},
		bin(opcode.Sub, i32, opcode.StackArg(1), opcode.ConstArg(1)),
		opcode.LocalSet{Type: i32, Depth: 1, Arg: pop},
		opcode.Br{Target: opcode.BrTarget{Dst: 2}},
		// exit
		opcode.LocalGet{Type: i32, Depth: 0},
		opcode.Call{Index: 2},
		extend(),
		b.Host("wasm_output"),
		ret(2),
	)
	//
	b.Function(2, "double",
		opcode.LocalGet{Type: i32, Depth: 0},
		bin(opcode.Add, i32, pop, pop),
		ret(0, i32),
	)
	//
	m, err := b.Build(1)
	//
	return Program{Name: fmt.Sprintf("sum_%d", n), Module: m, Outputs: []uint64{uint64(n) * uint64(n+1)}}, err
}

// Memory exercises the heap (including cross-block accesses), memory growth
// and globals.
func Memory(cfg config.Config) (Program, error) {
	b := tables.NewBuilder(cfg, host.DefaultRegistry()).Pages(1, 4).Global(0, i32, true, 0)
	//
	b.Function(1, "main",
		opcode.Const{Type: i32, Value: 5},
		opcode.Const{Type: i64, Value: 0x1122334455667788},
		opcode.Store{Type: i64, Size: opcode.Byte64, Arg: [2]opcode.UniArg{pop, pop}},
		opcode.Load{Type: i32, Size: opcode.U32, Arg: opcode.ConstArg(7)},
		extend(),
		b.Host("wasm_output"),
		opcode.MemoryGrow{Arg: opcode.ConstArg(2)},
		opcode.Drop{},
		opcode.MemorySize{},
		opcode.GlobalSet{Index: 0, Arg: pop},
		opcode.GlobalGet{Index: 0},
		extend(),
		b.Host("wasm_output"),
		ret(0),
	)
	//
	m, err := b.Build(1)
	//
	return Program{Name: "memory", Module: m, Outputs: []uint64{0x33445566, 3}}, err
}

// Factorial computes 5! recursively.
func Factorial(cfg config.Config) (Program, error) {
	b := tables.NewBuilder(cfg, host.DefaultRegistry())
	//
	b.Function(1, "main",
		opcode.Const{Type: i32, Value: 5},
		opcode.Call{Index: 2},
		extend(),
		b.Host("wasm_output"),
		ret(0),
	)
	//
	b.Function(2, "fact",
		opcode.LocalGet{Type: i32, Depth: 0},
		opcode.BrIf{Target: opcode.BrTarget{Dst: 4}, Arg: pop},
		opcode.Const{Type: i32, Value: 1},
		ret(1, i32),
		bin(opcode.Sub, i32, opcode.StackArg(0), opcode.ConstArg(1)),
		opcode.Call{Index: 2},
		bin(opcode.Mul, i32, pop, pop),
		ret(0, i32),
	)
	//
	m, err := b.Build(1)
	//
	return Program{Name: "factorial", Module: m, Outputs: []uint64{120}}, err
}

// Indirect calls a function through the function table.
func Indirect(cfg config.Config) (Program, error) {
	b := tables.NewBuilder(cfg, host.DefaultRegistry()).Element(0, 0, 3)
	//
	b.Function(1, "main",
		opcode.Const{Type: i32, Value: 7},
		opcode.Const{Type: i32, Value: 0},
		opcode.CallIndirect{TypeIndex: 0, Arg: pop},
		extend(),
		b.Host("wasm_output"),
		ret(0),
	)
	//
	b.Function(3, "triple",
		bin(opcode.Mul, i32, pop, opcode.ConstArg(3)),
		ret(0, i32),
	)
	//
	m, err := b.Build(1)
	//
	return Program{Name: "indirect", Module: m, Outputs: []uint64{21}}, err
}

// Input adds a public and a private input, and requires the result to be
// non-zero.
func Input(cfg config.Config) (Program, error) {
	b := tables.NewBuilder(cfg, host.DefaultRegistry())
	//
	b.Function(1, "main",
		opcode.Const{Type: i32, Value: 1},
		b.Host("wasm_input"),
		opcode.Const{Type: i32, Value: 0},
		b.Host("wasm_input"),
		bin(opcode.Add, i64, pop, pop),
		opcode.LocalTee{Type: i64, Depth: 0},
		b.Host("wasm_output"),
		opcode.Const{Type: i32, Value: 1},
		b.Host("require"),
		ret(0),
	)
	//
	m, err := b.Build(1)
	//
	return Program{Name: "input", Module: m, Public: []uint64{3}, Private: []uint64{4}, Outputs: []uint64{7}}, err
}

// Branches exercises select and an out-of-range branch table index, along
// with a start function.
func Branches(cfg config.Config) (Program, error) {
	b := tables.NewBuilder(cfg, host.DefaultRegistry()).Global(0, i32, true, 0).Start(2)
	//
	b.Function(1, "main",
		opcode.Const{Type: i32, Value: 10},
		opcode.GlobalGet{Index: 0},
		opcode.Const{Type: i32, Value: 0},
		opcode.Select{Type: i32, Arg: [3]opcode.UniArg{pop, pop, pop}},
		opcode.BrTable{Targets: []opcode.BrTarget{{Dst: 5}, {Dst: 7}}, Arg: opcode.ConstArg(9)},
		opcode.Unreachable{},
		opcode.Unreachable{},
		extend(),
		b.Host("wasm_output"),
		ret(0),
	)
	//
	b.Function(2, "start",
		opcode.GlobalSet{Index: 0, Arg: opcode.ConstArg(20)},
		ret(0),
	)
	//
	m, err := b.Build(1)
	//
	return Program{Name: "branches", Module: m, Outputs: []uint64{20}}, err
}

// Trap divides by zero.
func Trap(cfg config.Config) (Program, error) {
	b := tables.NewBuilder(cfg, host.DefaultRegistry())
	//
	b.Function(1, "main",
		opcode.Const{Type: i32, Value: 1},
		bin(opcode.UnsignedDiv, i32, pop, opcode.ConstArg(0)),
		ret(1),
	)
	//
	m, err := b.Build(1)
	//
	return Program{Name: "trap", Module: m}, err
}
