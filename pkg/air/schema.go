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
	"errors"
	"fmt"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Computation fills a computed column of a table from the other columns of
// that table.  Computed columns are assigned after the columns they depend on.
type Computation struct {
	Table  string
	Column string
	Fn     func(row int, tbl *Table) fr.Element
}

// Schema declares the columns of a set of tables, along with the constraints
// which any valid assignment must satisfy.
type Schema struct {
	tables       []string
	columns      map[string][]string
	constraints  []Constraint
	computations []Computation
}

// NewSchema constructs an empty schema.
func NewSchema() *Schema {
	return &Schema{columns: make(map[string][]string)}
}

// AddTable declares a table with a given set of columns.  Declaring a table
// twice extends its columns.
func (p *Schema) AddTable(name string, columns ...string) {
	if _, ok := p.columns[name]; !ok {
		p.tables = append(p.tables, name)
		p.columns[name] = nil
	}
	//
	for _, col := range columns {
		p.AddColumn(name, col)
	}
}

// AddColumn declares a column within a given (declared) table.
func (p *Schema) AddColumn(table, column string) {
	if !slices.Contains(p.columns[table], column) {
		p.columns[table] = append(p.columns[table], column)
	}
}

// HasColumn checks whether a given column is declared.
func (p *Schema) HasColumn(table, column string) bool {
	return slices.Contains(p.columns[table], column)
}

// Tables returns the declared tables, in declaration order.
func (p *Schema) Tables() []string {
	return p.tables
}

// Columns returns the declared columns of a given table.
func (p *Schema) Columns(table string) []string {
	return p.columns[table]
}

// Constraints returns the constraints of this schema.
func (p *Schema) Constraints() []Constraint {
	return p.constraints
}

// AddVanishingConstraint appends a new vanishing constraint.
func (p *Schema) AddVanishingConstraint(handle, table string, domain util.Option[int], expr Expr) {
	p.constraints = append(p.constraints, &VanishingConstraint{handle, table, domain, expr})
}

// AddLookupConstraint appends a new lookup constraint.
func (p *Schema) AddLookupConstraint(handle, source string, sourceSelector Expr, sources []Expr, target string,
	targetSelector Expr, targets []Expr) {
	if len(sources) != len(targets) {
		panic(fmt.Sprintf("lookup %s has %d sources but %d targets", handle, len(sources), len(targets)))
	}
	//
	p.constraints = append(p.constraints,
		&LookupConstraint{handle, source, target, sourceSelector, targetSelector, sources, targets})
}

// AddRangeConstraint appends a new range constraint.
func (p *Schema) AddRangeConstraint(handle, table, column string, bitwidth uint) {
	p.constraints = append(p.constraints, &RangeConstraint{handle, table, column, bitwidth})
}

// AddRelationConstraint appends a new relation constraint.
func (p *Schema) AddRelationConstraint(handle, table string, selector Expr, args []Expr, relation Relation) {
	p.constraints = append(p.constraints, &RelationConstraint{handle, table, selector, args, relation})
}

// AddCopyConstraint appends a new copy constraint.
func (p *Schema) AddCopyConstraint(handle string, left, right CellRef) {
	p.constraints = append(p.constraints, &CopyConstraint{handle, left, right})
}

// AddComputation appends a new computed column.
func (p *Schema) AddComputation(c Computation) {
	p.AddColumn(c.Table, c.Column)
	p.computations = append(p.computations, c)
}

// Validate checks that every column accessed by a constraint is declared.
func (p *Schema) Validate() error {
	var errs []error
	//
	check := func(handle, table string, exprs ...Expr) {
		if _, ok := p.columns[table]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown table %s", handle, table))
			return
		}
		//
		for _, e := range exprs {
			if e == nil {
				continue
			}
			//
			for _, col := range RequiredColumns(e) {
				if !p.HasColumn(table, col) {
					errs = append(errs, fmt.Errorf("%s: unknown column %s.%s", handle, table, col))
				}
			}
		}
	}
	//
	for _, c := range p.constraints {
		switch c := c.(type) {
		case *VanishingConstraint:
			check(c.handle, c.table, c.expr)
		case *LookupConstraint:
			check(c.handle, c.source, append([]Expr{c.sourceSelector}, c.sources...)...)
			check(c.handle, c.target, append([]Expr{c.targetSelector}, c.targets...)...)
		case *RangeConstraint:
			check(c.handle, c.table, NewColumnAccess(c.column, 0))
		case *RelationConstraint:
			check(c.handle, c.table, append([]Expr{c.selector}, c.args...)...)
		case *CopyConstraint:
			check(c.handle, c.left.Table, NewColumnAccess(c.left.Column, 0))
			check(c.handle, c.right.Table, NewColumnAccess(c.right.Column, 0))
		}
	}
	//
	return errors.Join(errs...)
}

// ExpandTrace assigns the computed columns of this schema within a given
// trace, in the order the computations were added.
func (p *Schema) ExpandTrace(tr *Trace) error {
	for _, c := range p.computations {
		tbl, err := table(tr, c.Table)
		if err != nil {
			return err
		}
		//
		col := tbl.AddColumn(c.Column)
		//
		for row := 0; row < int(tbl.Height()); row++ {
			col.Set(uint(row), c.Fn(row, tbl))
		}
	}
	//
	return nil
}

// Accepts checks every constraint of a given schema against a given trace, one
// go-routine per constraint.  All failing constraints are reported, in the
// order they were added to the schema.
func Accepts(schema *Schema, tr *Trace, parallel bool) error {
	stats := util.NewPerfStats()
	//
	for _, name := range schema.tables {
		if _, ok := tr.Table(name); !ok {
			return fmt.Errorf("missing table %s", name)
		}
	}
	//
	failures, err := util.ParallelMap(uint(len(schema.constraints)), 1, parallel,
		func(start, end uint) ([]error, error) {
			var errs []error
			//
			for _, c := range schema.constraints[start:end] {
				if err := c.Accepts(tr); err != nil {
					errs = append(errs, err)
				}
			}
			//
			return errs, nil
		})
	//
	if err != nil {
		return err
	}
	//
	stats.Log(fmt.Sprintf("Checking %d constraints over %d cells", len(schema.constraints), tr.Cells()))
	//
	return errors.Join(failures...)
}
