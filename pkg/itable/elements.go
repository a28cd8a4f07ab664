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
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
)

// Element is a single (initialised) slot of the function table, as used by
// call_indirect.
type Element struct {
	// Offset within the function table.
	Offset uint32
	// Type index of the function
	TypeIndex uint32
	// Function identifier
	Fid uint32
}

// Elements is the (static) relation from table offsets to functions.
type Elements struct {
	entries []Element
}

// NewElements constructs the elements relation, rejecting duplicate offsets.
func NewElements(entries ...Element) (*Elements, error) {
	entries = slices.Clone(entries)
	slices.SortFunc(entries, func(a, b Element) int {
		return int(int64(a.Offset) - int64(b.Offset))
	})
	//
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Offset == entries[i].Offset {
			return nil, fmt.Errorf("duplicate element at offset %d", entries[i].Offset)
		}
	}
	//
	return &Elements{entries}, nil
}

// Entries returns the elements sorted by offset.
func (p *Elements) Entries() []Element {
	if p == nil {
		return nil
	}
	//
	return p.entries
}

// Len returns the number of elements.
func (p *Elements) Len() uint {
	return uint(len(p.Entries()))
}

// Get the element at a given offset.  Uninitialised slots trap, and are
// reported as a lookup miss.
func (p *Elements) Get(offset uint64) (*Element, error) {
	entries := p.Entries()
	//
	i, ok := slices.BinarySearchFunc(entries, offset, func(e Element, t uint64) int {
		switch {
		case uint64(e.Offset) < t:
			return -1
		case uint64(e.Offset) > t:
			return 1
		}
		//
		return 0
	})
	//
	if !ok {
		return nil, failure.Lookup("elements", offset, "uninitialised table slot %d", offset)
	}
	//
	return &entries[i], nil
}
