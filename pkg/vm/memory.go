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
package vm

import (
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

type cell struct {
	Type  opcode.VarType
	Value uint64
}

// Memory is the sparse memory of a running machine, covering the stack, heap
// and globals.  Addresses which have never been written hold zero.
type Memory struct {
	cells map[mtable.Key]cell
}

// NewMemory constructs a memory holding the contents of a given initial
// memory table.
func NewMemory(init *mtable.InitTable) *Memory {
	m := &Memory{make(map[mtable.Key]cell)}
	//
	if init == nil {
		return m
	}
	//
	for _, e := range init.Entries() {
		m.cells[e.Key()] = cell{e.Type, e.Value}
	}
	//
	return m
}

// Read the value at a given address.
func (p *Memory) Read(loc mtable.Location, offset uint32) uint64 {
	return p.cells[mtable.Key{Location: loc, Offset: offset}].Value
}

// Type returns the type of the value at a given address.  For a global, this
// is its declared type.
func (p *Memory) Type(loc mtable.Location, offset uint32) (opcode.VarType, bool) {
	c, ok := p.cells[mtable.Key{Location: loc, Offset: offset}]
	//
	return c.Type, ok
}

// Apply the writes of a given set of memory accesses.
func (p *Memory) Apply(events []mtable.Entry) {
	for _, e := range events {
		if e.Access == mtable.Write {
			p.cells[e.Key()] = cell{e.Type, e.Value}
		}
	}
}

// Len returns the number of addresses holding a value.
func (p *Memory) Len() uint {
	return uint(len(p.cells))
}

// operands resolves the arguments of a single instruction against memory,
// tracking the stack pointer as arguments are popped.
type operands struct {
	memory *Memory
	sp     uint32
}

func (p *operands) arg(a opcode.UniArg, t opcode.VarType) uint64 {
	switch a.Kind {
	case opcode.Pop:
		v := p.memory.Read(mtable.Stack, p.sp)
		p.sp++
		//
		return v
	case opcode.Stack:
		return p.memory.Read(mtable.Stack, p.sp+a.Depth)
	default:
		return t.Truncate(a.Value)
	}
}

// top returns the value on top of the stack.
func (p *operands) top() uint64 {
	return p.memory.Read(mtable.Stack, p.sp)
}

// kept returns the values kept by a branch or return.
func (p *operands) kept(keep []opcode.VarType) []uint64 {
	if len(keep) == 0 {
		return nil
	}
	//
	return []uint64{p.top()}
}
