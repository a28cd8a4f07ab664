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
	"slices"
)

// InitTable holds at most one initial value per address.  It describes either
// the static initial state of a program, or a snapshot of memory between two
// slices.
type InitTable struct {
	entries map[Key]InitEntry
}

// NewInitTable constructs an initial memory table from a set of entries.  This
// fails if two entries share the same address.
func NewInitTable(entries ...InitEntry) (*InitTable, error) {
	t := &InitTable{make(map[Key]InitEntry)}
	//
	for _, e := range entries {
		if err := t.Insert(e); err != nil {
			return nil, err
		}
	}
	//
	return t, nil
}

// Insert a new entry.  This fails if an entry already exists at the address.
func (p *InitTable) Insert(e InitEntry) error {
	if _, ok := p.entries[e.Key()]; ok {
		return fmt.Errorf("duplicate initial value for %s@%d", e.Location, e.Offset)
	}
	//
	p.entries[e.Key()] = e
	//
	return nil
}

// Get returns the initial value at a given address (if it exists).
func (p *InitTable) Get(loc Location, offset uint32) (InitEntry, bool) {
	e, ok := p.entries[Key{loc, offset}]
	return e, ok
}

// Len returns the number of entries in this table.
func (p *InitTable) Len() uint {
	return uint(len(p.entries))
}

// Entries returns all entries in this table, sorted by address.
func (p *InitTable) Entries() []InitEntry {
	entries := make([]InitEntry, 0, len(p.entries))
	//
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	//
	slices.SortFunc(entries, func(a, b InitEntry) int {
		if c := cmp.Compare(a.Location, b.Location); c != 0 {
			return c
		}
		//
		return cmp.Compare(a.Offset, b.Offset)
	})
	//
	return entries
}

// Clone returns a copy of this table.
func (p *InitTable) Clone() *InitTable {
	t := &InitTable{make(map[Key]InitEntry, len(p.entries))}
	//
	for k, v := range p.entries {
		t.entries[k] = v
	}
	//
	return t
}

// Apply all writes from a given set of memory events to produce the snapshot
// of memory after those events.  The eid of each updated entry becomes the eid
// of the last write to it.  Addresses written for the first time are added as
// mutable entries.  Events are assumed to be given in execution order.
func (p *InitTable) Apply(events []Entry) *InitTable {
	t := p.Clone()
	//
	for _, e := range events {
		if e.Access != Write {
			continue
		}
		//
		ith, ok := t.entries[e.Key()]
		if !ok {
			ith = InitEntry{Location: e.Location, IsMutable: true, Offset: e.Offset}
		}
		//
		ith.Type = e.Type
		ith.Value = e.Value
		ith.Eid = e.Eid
		t.entries[e.Key()] = ith
	}
	//
	return t
}

// Equal checks whether two tables hold exactly the same entries.
func (p *InitTable) Equal(o *InitTable) bool {
	if len(p.entries) != len(o.entries) {
		return false
	}
	//
	for k, v := range p.entries {
		if w, ok := o.entries[k]; !ok || v != w {
			return false
		}
	}
	//
	return true
}

// GobEncode an initial memory table as its sorted list of entries.
func (p *InitTable) GobEncode() ([]byte, error) {
	return encodeEntries(p.Entries())
}

// GobDecode a previously encoded table.
func (p *InitTable) GobDecode(data []byte) error {
	entries, err := decodeEntries(data)
	if err != nil {
		return err
	}
	//
	p.entries = make(map[Key]InitEntry, len(entries))
	//
	for _, e := range entries {
		p.entries[e.Key()] = e
	}
	//
	return nil
}
