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
package itable

import (
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/holiman/uint256"
)

// Address identifies a static instruction by its function and offset.
type Address struct {
	Fid uint32
	Iid uint32
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.Fid, a.Iid)
}

// Entry is a single row of the instruction table.
type Entry struct {
	Fid    uint32
	Iid    uint32
	Opcode opcode.Opcode
	// Encoded opcode
	Code uint256.Int
}

// Address returns the address of this instruction.
func (e *Entry) Address() Address {
	return Address{e.Fid, e.Iid}
}

// Table is the instruction table of a compiled module.  It is immutable once
// built and can be freely shared between slices.
type Table struct {
	entries []Entry
	index   map[Address]uint
	brtable BranchTable
}

// Builder is used to construct an instruction table.  Instructions are appended
// in order of (function, offset).
type Builder struct {
	encoder opcode.Encoder
	entries []Entry
	index   map[Address]uint
}

// NewBuilder constructs a builder using a given encoder.
func NewBuilder(encoder opcode.Encoder) *Builder {
	return &Builder{encoder, nil, make(map[Address]uint)}
}

// Push appends an instruction.  This fails if the address is already taken, or
// the opcode cannot be encoded.
func (p *Builder) Push(fid, iid uint32, op opcode.Opcode) error {
	addr := Address{fid, iid}
	//
	if _, ok := p.index[addr]; ok {
		return fmt.Errorf("duplicate instruction at %s", addr)
	} else if br, ok := op.(opcode.BrTable); ok && len(br.Targets) == 0 {
		return fmt.Errorf("branch table at %s has no targets", addr)
	}
	//
	code, err := p.encoder.EncodeOpcode(op)
	if err != nil {
		return fmt.Errorf("instruction %s (%s): %w", addr, op, err)
	}
	//
	p.index[addr] = uint(len(p.entries))
	p.entries = append(p.entries, Entry{fid, iid, op, *code})
	//
	return nil
}

// PushFunction appends the body of a function, whose instructions are numbered
// from zero.
func (p *Builder) PushFunction(fid uint32, body []opcode.Opcode) error {
	for iid, op := range body {
		if err := p.Push(fid, uint32(iid), op); err != nil {
			return err
		}
	}
	//
	return nil
}

// Build the instruction table, including its branch table.
func (p *Builder) Build() *Table {
	var brtable BranchTable
	//
	for _, e := range p.entries {
		if br, ok := e.Opcode.(opcode.BrTable); ok {
			brtable.push(e.Fid, e.Iid, br)
		}
	}
	//
	return &Table{p.entries, p.index, brtable}
}

// Len returns the number of instructions in this table.
func (p *Table) Len() uint {
	return uint(len(p.entries))
}

// Entries returns the rows of this table.
func (p *Table) Entries() []Entry {
	return p.entries
}

// Get returns the instruction at a given address.  A miss signals a compiler
// or tracer bug, and is reported as a lookup miss.
func (p *Table) Get(fid, iid uint32) (*Entry, error) {
	if i, ok := p.index[Address{fid, iid}]; ok {
		return &p.entries[i], nil
	}
	//
	return nil, &failure.LookupMiss{Table: "itable", Row: uint64(fid)<<32 | uint64(iid),
		Reason: fmt.Sprintf("no instruction at %d:%d", fid, iid)}
}

// Contains checks whether a given (address, code) tuple is in this table.
func (p *Table) Contains(fid, iid uint32, code *uint256.Int) bool {
	e, err := p.Get(fid, iid)
	//
	return err == nil && e.Code.Eq(code)
}

// BranchTable returns the branch table derived from this instruction table.
func (p *Table) BranchTable() *BranchTable {
	return &p.brtable
}

// FunctionLength returns the number of instructions in a given function.
func (p *Table) FunctionLength(fid uint32) uint32 {
	var n uint32
	//
	for _, e := range p.entries {
		if e.Fid == fid {
			n = max(n, e.Iid+1)
		}
	}
	//
	return n
}
