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
)

// BrTableEntry is one arm of a branch table instruction.  Dynamic dispatch is
// proven by looking up (fid, iid, index, drop, keep, dst) in this table.
type BrTableEntry struct {
	Fid   uint32
	Iid   uint32
	Index uint32
	Drop  uint32
	// Number of values kept (0 or 1).
	Keep uint32
	// Type of the kept value (if any).
	KeepType opcode.VarType
	Dst      uint32
}

type brKey struct {
	addr  Address
	index uint32
}

// BranchTable holds one row per target of every branch table instruction.
type BranchTable struct {
	entries []BrTableEntry
	index   map[brKey]uint
	counts  map[Address]uint32
}

func (p *BranchTable) push(fid, iid uint32, br opcode.BrTable) {
	if p.index == nil {
		p.index = make(map[brKey]uint)
		p.counts = make(map[Address]uint32)
	}
	//
	for i, t := range br.Targets {
		key := brKey{Address{fid, iid}, uint32(i)}
		p.index[key] = uint(len(p.entries))
		p.entries = append(p.entries, BrTableEntry{
			fid, iid, uint32(i), t.Drop, uint32(len(t.Keep)), t.KeepType(), t.Dst,
		})
	}
	//
	p.counts[Address{fid, iid}] = uint32(len(br.Targets))
}

// Entries returns the rows of this table.
func (p *BranchTable) Entries() []BrTableEntry {
	return p.entries
}

// Len returns the number of rows in this table.
func (p *BranchTable) Len() uint {
	return uint(len(p.entries))
}

// Clamp maps a dynamic index onto a target index.  Any index outside of
// [0, count) selects the last (i.e. default) target.  An empty table selects
// index zero.
func Clamp(index uint64, count uint32) uint32 {
	if count == 0 {
		return 0
	} else if index >= uint64(count) {
		return count - 1
	}
	//
	return uint32(index)
}

// Get returns the target selected by a dynamic index for the branch table
// instruction at a given address.  Out-of-range indices are clamped to the
// last target.
func (p *BranchTable) Get(fid, iid uint32, index uint64) (*BrTableEntry, error) {
	count, ok := p.counts[Address{fid, iid}]
	//
	if !ok || count == 0 {
		return nil, &failure.LookupMiss{Table: "brtable", Row: uint64(fid)<<32 | uint64(iid),
			Reason: fmt.Sprintf("no branch table at %d:%d", fid, iid)}
	}
	//
	i := p.index[brKey{Address{fid, iid}, Clamp(index, count)}]
	//
	return &p.entries[i], nil
}
