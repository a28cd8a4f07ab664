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
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
)

// Row is a single row of the (sorted) memory table.
type Row struct {
	Entry
	// RestMops is the number of non-Init rows from this row (inclusive) to the
	// end of the table.
	RestMops uint64
	// Explicit marks an Init row whose value comes from the initial memory
	// table, rather than being an implicit zero.
	Explicit bool
}

// Table is the memory table: every memory access of a slice, together with one
// Init row per accessed address, sorted by (location, offset, eid, emid).
type Table struct {
	rows []Row
}

// Build the memory table from the (unsorted) memory events of a slice and the
// initial memory of that slice.  An Init row is inserted for every accessed
// address: explicitly from the initial memory table if present, otherwise as
// an implicit zero.  Globals are never implicitly zero and, hence, accessing a
// global without an initial value is a lookup miss.
func Build(events []Entry, init *InitTable) (*Table, error) {
	var (
		stats = util.NewPerfStats()
		first = make(map[Key]*Entry)
		rows  = make([]Row, 0, len(events))
	)
	// Identify the first access of each address.
	for i := range events {
		e := &events[i]
		//
		if e.Access == Init {
			return nil, failure.Lookup("mtable", uint64(e.Eid), "unexpected init event %s", e)
		}
		//
		if f, ok := first[e.Key()]; !ok || Compare(e, f) < 0 {
			first[e.Key()] = e
		}
		//
		rows = append(rows, Row{Entry: *e})
	}
	// Insert init rows
	for key, f := range first {
		if ie, ok := init.Get(key.Location, key.Offset); ok {
			rows = append(rows, Row{Entry: ie.ToEntry(), Explicit: true})
		} else if key.Location == Global {
			return nil, failure.Lookup("mtable", uint64(f.Eid), "global %d accessed without initial value", key.Offset)
		} else {
			rows = append(rows, Row{Entry: implicitInit(key, f)})
		}
	}
	// Sorting is the synchronisation point for all derivation.
	slices.SortFunc(rows, func(a, b Row) int {
		return Compare(&a.Entry, &b.Entry)
	})
	// Propagate mutability and compute remaining memory operations.
	var rest uint64
	//
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Access != Init {
			rest++
		}
		//
		rows[i].RestMops = rest
	}
	//
	var mutable bool
	//
	for i := range rows {
		if rows[i].Access == Init {
			mutable = rows[i].IsMutable
		} else {
			rows[i].IsMutable = mutable
		}
	}
	//
	stats.LogRows("Building memory table", uint(len(rows)))
	//
	return &Table{rows}, nil
}

func implicitInit(key Key, first *Entry) Entry {
	ty := first.Type
	//
	if key.Location == Heap {
		ty = opcode.I64
	}
	//
	return Entry{Offset: key.Offset, Location: key.Location, Access: Init, Type: ty, IsMutable: true}
}

// Rows returns the rows of this table.
func (p *Table) Rows() []Row {
	return p.rows
}

// Len returns the number of rows in this table.
func (p *Table) Len() uint {
	return uint(len(p.rows))
}

// RestMops returns the number of non-Init rows in this table.
func (p *Table) RestMops() uint64 {
	if len(p.rows) == 0 {
		return 0
	}
	//
	return p.rows[0].RestMops
}

// Find returns the row for a given access (if it exists).
func (p *Table) Find(e *Entry) (*Row, bool) {
	i, ok := slices.BinarySearchFunc(p.rows, e, func(r Row, t *Entry) int {
		return Compare(&r.Entry, t)
	})
	//
	if !ok {
		return nil, false
	}
	// Mutability is determined by the init row of the address
	found := p.rows[i].Entry
	found.IsMutable = e.IsMutable
	//
	if found != *e {
		return nil, false
	}
	//
	return &p.rows[i], true
}

// Check the consistency argument against every adjacent pair of rows.  The
// first failing row is reported as a lookup miss.
func (p *Table) Check() error {
	var (
		globals = make(map[uint32]uint)
		rest    = p.RestMops()
	)
	//
	for i := range p.rows {
		row := &p.rows[i]
		//
		if err := p.checkRow(i); err != nil {
			return err
		}
		//
		if row.Location == Global && row.Access == Init {
			globals[row.Offset]++
			//
			if globals[row.Offset] != 1 {
				return failure.Lookup("mtable", uint64(i), "global %d has multiple init rows", row.Offset)
			}
		}
		// Remaining memory operations decrement by one per non-Init row.
		if row.RestMops != rest {
			return failure.Lookup("mtable", uint64(i), "remaining memory operations %d (expected %d)",
				row.RestMops, rest)
		} else if row.Access != Init {
			rest--
		}
	}
	//
	if rest != 0 {
		return failure.Lookup("mtable", uint64(len(p.rows)), "remaining memory operations do not reach zero")
	}
	//
	return nil
}

func (p *Table) checkRow(i int) error {
	var (
		row  = &p.rows[i]
		same = i > 0 && p.rows[i-1].Key() == row.Key()
	)
	//
	if i > 0 && Compare(&p.rows[i-1].Entry, &row.Entry) >= 0 {
		return failure.Lookup("mtable", uint64(i), "rows not strictly ordered (%s after %s)", row, p.rows[i-1])
	} else if !same && row.Access != Init {
		return failure.Lookup("mtable", uint64(i), "first access of %s@%d is not init", row.Location, row.Offset)
	} else if same && row.Access == Init {
		return failure.Lookup("mtable", uint64(i), "repeated init of %s@%d", row.Location, row.Offset)
	} else if row.Access == Init && row.Location == Global && !row.Explicit {
		return failure.Lookup("mtable", uint64(i), "global %d has no initial value", row.Offset)
	} else if same && row.Location == Stack && row.Access != Write && !p.rows[i-1].Explicit &&
		p.rows[i-1].Access == Init {
		// An implicit stack slot has no value until something is pushed there
		return failure.Lookup("mtable", uint64(i), "%s reads stack slot %d before it is written", row, row.Offset)
	} else if row.Access == Write && !row.IsMutable {
		return failure.Lookup("mtable", uint64(i), "write to immutable %s@%d", row.Location, row.Offset)
	} else if row.Location == Heap && row.Type != opcode.I64 {
		return failure.Lookup("mtable", uint64(i), "heap access is not a 64-bit block")
	} else if same && row.Access != Write {
		prev := &p.rows[i-1]
		//
		if prev.Value != row.Value || prev.Type != row.Type {
			return failure.Lookup("mtable", uint64(i), "%s observes %s=%d, but last value was %s=%d",
				row, row.Type, row.Value, prev.Type, prev.Value)
		}
	}
	//
	return nil
}

// CheckEvents checks that every access made by the execution has a matching
// row in this table.
func (p *Table) CheckEvents(events []Entry) error {
	for i := range events {
		if _, ok := p.Find(&events[i]); !ok {
			return failure.Lookup("mtable", uint64(events[i].Eid), "%s has no memory row", &events[i])
		}
	}
	//
	return nil
}

// CheckInit checks every explicit Init row against the initial memory table
// from which it should have come.
func (p *Table) CheckInit(init *InitTable) error {
	for i := range p.rows {
		row := &p.rows[i]
		//
		if row.Access != Init || !row.Explicit {
			continue
		}
		//
		ie, ok := init.Get(row.Location, row.Offset)
		//
		if !ok || ie.ToEntry() != row.Entry {
			return failure.Lookup("imtable", uint64(i), "init row %s not in initial memory", row)
		}
	}
	//
	return nil
}
