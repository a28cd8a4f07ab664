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
package air

import (
	"fmt"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Column is a named column of field elements within a table.
type Column struct {
	name string
	data []fr.Element
}

// Name returns the name of this column.
func (p *Column) Name() string {
	return p.name
}

// Get the value at a given row of this column.  Rows outside the column are
// padding and read as zero.
func (p *Column) Get(row int) fr.Element {
	if row < 0 || row >= len(p.data) {
		return fr.Element{}
	}
	//
	return p.data[row]
}

// Set the value at a given row of this column.
func (p *Column) Set(row uint, val fr.Element) {
	p.data[row] = val
}

// SetUint64 sets the value at a given row of this column.
func (p *Column) SetUint64(row uint, val uint64) {
	p.data[row].SetUint64(val)
}

// SetBool sets a given row of this column to one or zero.
func (p *Column) SetBool(row uint, val bool) {
	if val {
		p.data[row].SetOne()
	} else {
		p.data[row].SetZero()
	}
}

// Table is an assigned table: a fixed number of rows across a set of named
// columns.  Every column has the same height, and fresh cells hold zero.
type Table struct {
	name    string
	height  uint
	columns []*Column
	index   map[string]*Column
}

// NewTable constructs an empty table with a given name and height.
func NewTable(name string, height uint) *Table {
	return &Table{name, height, nil, make(map[string]*Column)}
}

// Name returns the name of this table.
func (p *Table) Name() string {
	return p.name
}

// Height returns the number of rows in this table.
func (p *Table) Height() uint {
	return p.height
}

// AddColumn adds a zeroed column to this table, or returns the existing column
// with that name.
func (p *Table) AddColumn(name string) *Column {
	if col, ok := p.index[name]; ok {
		return col
	}
	//
	col := &Column{name, make([]fr.Element, p.height)}
	p.columns = append(p.columns, col)
	p.index[name] = col
	//
	return col
}

// Column returns the column with a given name, if it exists.
func (p *Table) Column(name string) (*Column, bool) {
	col, ok := p.index[name]
	return col, ok
}

// Columns returns the columns of this table, in the order they were added.
func (p *Table) Columns() []*Column {
	return p.columns
}

// Get the value of a given column at a given row.  A column which does not
// exist reads as zero.
func (p *Table) Get(column string, row int) fr.Element {
	if col, ok := p.index[column]; ok {
		return col.Get(row)
	}
	//
	return fr.Element{}
}

// Trace is a collection of assigned tables, indexed by name.
type Trace struct {
	tables []*Table
	index  map[string]*Table
}

// NewTrace constructs a trace from a given set of tables.
func NewTrace(tables ...*Table) (*Trace, error) {
	tr := &Trace{index: make(map[string]*Table)}
	//
	for _, t := range tables {
		if err := tr.Add(t); err != nil {
			return nil, err
		}
	}
	//
	return tr, nil
}

// Add a table to this trace.
func (p *Trace) Add(tbl *Table) error {
	if _, ok := p.index[tbl.name]; ok {
		return fmt.Errorf("duplicate table %s", tbl.name)
	}
	//
	p.tables = append(p.tables, tbl)
	p.index[tbl.name] = tbl
	//
	return nil
}

// Table returns the table with a given name, if it exists.
func (p *Trace) Table(name string) (*Table, bool) {
	tbl, ok := p.index[name]
	return tbl, ok
}

// Tables returns the tables of this trace, in the order they were added.
func (p *Trace) Tables() []*Table {
	return slices.Clone(p.tables)
}

// Cells returns the total number of assigned cells in this trace.
func (p *Trace) Cells() uint {
	var n uint
	//
	for _, t := range p.tables {
		n += t.height * uint(len(t.columns))
	}
	//
	return n
}
