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
package mtable

import (
	"cmp"
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

// Location identifies the kind of memory being accessed.
type Location uint8

const (
	// Stack memory, addressed by stack slot.
	Stack Location = iota
	// Heap memory, addressed by 8-byte block.
	Heap
	// Global variables, addressed by index.
	Global
)

func (l Location) String() string {
	switch l {
	case Stack:
		return "stack"
	case Heap:
		return "heap"
	default:
		return "global"
	}
}

// Access identifies the kind of memory access.
type Access uint8

const (
	// Init introduces the initial value of an address.
	Init Access = iota
	// Read observes the current value of an address.
	Read
	// Write replaces the value of an address.
	Write
)

func (a Access) String() string {
	switch a {
	case Init:
		return "init"
	case Read:
		return "read"
	default:
		return "write"
	}
}

// Entry is a single memory access.  Multiple accesses made by the same step
// are distinguished by their emid (the index of the access within the step).
type Entry struct {
	Eid       uint32
	Emid      uint32
	Offset    uint32
	Location  Location
	Access    Access
	Type      opcode.VarType
	IsMutable bool
	Value     uint64
}

func (e Entry) String() string {
	return fmt.Sprintf("[%d.%d] %s %s@%d %s=%d", e.Eid, e.Emid, e.Access, e.Location, e.Offset, e.Type, e.Value)
}

// Key identifies an address in memory.
type Key struct {
	Location Location
	Offset   uint32
}

// Key returns the address accessed by this entry.
func (e *Entry) Key() Key {
	return Key{e.Location, e.Offset}
}

// Compare orders entries by (location, offset, eid, emid).  Within an address,
// an Init entry is ordered before any access made in the same step.
func Compare(a, b *Entry) int {
	if c := cmp.Compare(a.Location, b.Location); c != 0 {
		return c
	} else if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
		return c
	} else if c := cmp.Compare(a.Eid, b.Eid); c != 0 {
		return c
	} else if (a.Access == Init) != (b.Access == Init) {
		if a.Access == Init {
			return -1
		}
		//
		return 1
	}
	//
	return cmp.Compare(a.Emid, b.Emid)
}

// InitEntry records the initial value of an address.  The eid of an initial
// value is zero for static program data, or the eid of the last write for a
// snapshot taken between slices.
type InitEntry struct {
	Location  Location
	IsMutable bool
	Offset    uint32
	Type      opcode.VarType
	Value     uint64
	Eid       uint32
}

// Key returns the address of this entry.
func (e *InitEntry) Key() Key {
	return Key{e.Location, e.Offset}
}

// ToEntry converts this into an Init row of the memory table.
func (e *InitEntry) ToEntry() Entry {
	return Entry{
		Eid: e.Eid, Offset: e.Offset, Location: e.Location, Access: Init,
		Type: e.Type, IsMutable: e.IsMutable, Value: e.Value,
	}
}
