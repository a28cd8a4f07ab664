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
	"math/big"
	"strings"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/sexp"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Constraint is a named property which an assigned trace must satisfy.
type Constraint interface {
	// Handle identifies this constraint in error reports.
	Handle() string
	// Accepts checks whether this constraint holds on a given trace, reporting
	// the first failing row otherwise.
	Accepts(tr *Trace) error
	// Lisp converts this constraint into an S-Expression.
	Lisp() sexp.SExp
}

func table(tr *Trace, name string) (*Table, error) {
	if tbl, ok := tr.Table(name); ok {
		return tbl, nil
	}
	//
	return nil, fmt.Errorf("unknown table %s", name)
}

// ============================================================================
// Vanishing
// ============================================================================

// VanishingConstraint requires that an expression evaluates to zero on every
// row of a table or, when a domain is given, on a single row.  A negative
// domain counts from the end of the table, such that -1 is the last row.
type VanishingConstraint struct {
	handle string
	table  string
	domain util.Option[int]
	expr   Expr
}

// Handle identifies this constraint in error reports.
func (p *VanishingConstraint) Handle() string { return p.handle }

// Expr returns the expression which must vanish.
func (p *VanishingConstraint) Expr() Expr { return p.expr }

// Accepts checks whether this constraint holds on a given trace.
func (p *VanishingConstraint) Accepts(tr *Trace) error {
	tbl, err := table(tr, p.table)
	if err != nil {
		return err
	}
	//
	start, end := 0, int(tbl.Height())
	//
	if p.domain.HasValue() {
		if start = p.domain.Unwrap(); start < 0 {
			start += end
		}
		//
		end = min(end, start+1)
	}
	//
	for row := max(start, 0); row < end; row++ {
		if val := p.expr.EvalAt(row, tbl); !val.IsZero() {
			return failure.Constraint(p.handle, p.table, uint64(row), "%s evaluates to %s", p.expr, val.String())
		}
	}
	//
	return nil
}

// Lisp converts this constraint into an S-Expression.
func (p *VanishingConstraint) Lisp() sexp.SExp {
	name := sexp.NewSymbol(fmt.Sprintf("%s:%s", p.table, p.handle))
	//
	if p.domain.HasValue() {
		domain := sexp.NewSymbol(fmt.Sprintf("%d", p.domain.Unwrap()))
		return sexp.NewList(sexp.NewSymbol("vanish"), name, domain, p.expr.Lisp())
	}
	//
	return sexp.NewList(sexp.NewSymbol("vanish"), name, p.expr.Lisp())
}

// ============================================================================
// Lookup
// ============================================================================

// LookupConstraint requires that the tuple formed by evaluating the source
// expressions on every selected row of the source table is formed by the
// target expressions on some selected row of the target table.  A nil selector
// selects every row.
type LookupConstraint struct {
	handle         string
	source, target string
	// Selectors (optional)
	sourceSelector, targetSelector Expr
	sources, targets               []Expr
}

// Handle identifies this constraint in error reports.
func (p *LookupConstraint) Handle() string { return p.handle }

// Accepts checks whether this constraint holds on a given trace.
func (p *LookupConstraint) Accepts(tr *Trace) error {
	src, err := table(tr, p.source)
	if err != nil {
		return err
	}
	//
	dst, err := table(tr, p.target)
	if err != nil {
		return err
	}
	//
	index := make(map[string]struct{}, dst.Height())
	//
	for row := 0; row < int(dst.Height()); row++ {
		if selected(p.targetSelector, row, dst) {
			index[tupleKey(p.targets, row, dst)] = struct{}{}
		}
	}
	//
	for row := 0; row < int(src.Height()); row++ {
		if !selected(p.sourceSelector, row, src) {
			continue
		}
		//
		if _, ok := index[tupleKey(p.sources, row, src)]; !ok {
			return failure.Lookup(p.handle, uint64(row), "tuple %s of %s not found in %s",
				tupleString(p.sources, row, src), p.source, p.target)
		}
	}
	//
	return nil
}

// Lisp converts this constraint into an S-Expression.
func (p *LookupConstraint) Lisp() sexp.SExp {
	return sexp.NewList(sexp.NewSymbol("lookup"), sexp.NewSymbol(p.handle),
		tuple2Lisp(p.source, p.sourceSelector, p.sources), tuple2Lisp(p.target, p.targetSelector, p.targets))
}

func selected(selector Expr, row int, tbl *Table) bool {
	if selector == nil {
		return true
	}
	//
	val := selector.EvalAt(row, tbl)
	//
	return !val.IsZero()
}

func tupleKey(exprs []Expr, row int, tbl *Table) string {
	var builder strings.Builder
	//
	for _, e := range exprs {
		val := e.EvalAt(row, tbl)
		bytes := val.Bytes()
		builder.Write(bytes[:])
	}
	//
	return builder.String()
}

func tupleString(exprs []Expr, row int, tbl *Table) string {
	vals := make([]string, len(exprs))
	//
	for i, e := range exprs {
		val := e.EvalAt(row, tbl)
		vals[i] = val.String()
	}
	//
	return fmt.Sprintf("(%s)", strings.Join(vals, ","))
}

func tuple2Lisp(tbl string, selector Expr, exprs []Expr) sexp.SExp {
	elements := []sexp.SExp{sexp.NewSymbol(tbl)}
	//
	if selector != nil {
		elements = append(elements, sexp.NewList(sexp.NewSymbol("when"), selector.Lisp()))
	}
	//
	for _, e := range exprs {
		elements = append(elements, e.Lisp())
	}
	//
	return sexp.NewList(elements...)
}

// ============================================================================
// Range
// ============================================================================

// RangeConstraint requires that every value in a column fits within a given
// number of bits.
type RangeConstraint struct {
	handle   string
	table    string
	column   string
	bitwidth uint
}

// Handle identifies this constraint in error reports.
func (p *RangeConstraint) Handle() string { return p.handle }

// Accepts checks whether this constraint holds on a given trace.
func (p *RangeConstraint) Accepts(tr *Trace) error {
	var bound fr.Element
	//
	tbl, err := table(tr, p.table)
	if err != nil {
		return err
	}
	//
	col, ok := tbl.Column(p.column)
	if !ok {
		return fmt.Errorf("unknown column %s.%s", p.table, p.column)
	}
	//
	bound.SetBigInt(new(big.Int).Lsh(big.NewInt(1), p.bitwidth))
	//
	for row := 0; row < int(tbl.Height()); row++ {
		if val := col.Get(row); val.Cmp(&bound) >= 0 {
			return failure.Constraint(p.handle, p.table, uint64(row), "%s does not fit in u%d", val.String(),
				p.bitwidth)
		}
	}
	//
	return nil
}

// Lisp converts this constraint into an S-Expression.
func (p *RangeConstraint) Lisp() sexp.SExp {
	return sexp.NewList(sexp.NewSymbol("range"), sexp.NewSymbol(p.handle),
		sexp.NewSymbol(fmt.Sprintf("%s.%s", p.table, p.column)), sexp.NewSymbol(fmt.Sprintf("u%d", p.bitwidth)))
}

// ============================================================================
// Relation
// ============================================================================

// Relation is a fixed set of tuples, defined by a membership function rather
// than by the rows of some table.  This models a lookup into a precomputed
// table which is too large to materialise, such as the result of an
// arithmetic operation over all pairs of 64-bit operands.
type Relation interface {
	// Name identifies this relation in error reports.
	Name() string
	// Contains checks whether a given tuple belongs to this relation.
	Contains(args []fr.Element) bool
}

// Range is the relation of single values which fit within a given number of
// bits.
type Range uint

// Name identifies this relation in error reports.
func (r Range) Name() string { return fmt.Sprintf("u%d", uint(r)) }

// Contains checks whether a single value fits within this range.
func (r Range) Contains(args []fr.Element) bool {
	if len(args) != 1 {
		return false
	}
	//
	return args[0].BigInt(new(big.Int)).BitLen() <= int(r)
}

// RelationConstraint requires that the tuple formed by evaluating a set of
// expressions on every selected row of a table belongs to a given relation.
type RelationConstraint struct {
	handle   string
	table    string
	selector Expr
	args     []Expr
	relation Relation
}

// Handle identifies this constraint in error reports.
func (p *RelationConstraint) Handle() string { return p.handle }

// Accepts checks whether this constraint holds on a given trace.
func (p *RelationConstraint) Accepts(tr *Trace) error {
	tbl, err := table(tr, p.table)
	if err != nil {
		return err
	}
	//
	vals := make([]fr.Element, len(p.args))
	//
	for row := 0; row < int(tbl.Height()); row++ {
		if !selected(p.selector, row, tbl) {
			continue
		}
		//
		for i, e := range p.args {
			vals[i] = e.EvalAt(row, tbl)
		}
		//
		if !p.relation.Contains(vals) {
			return failure.Lookup(p.handle, uint64(row), "tuple %s of %s not in %s",
				tupleString(p.args, row, tbl), p.table, p.relation.Name())
		}
	}
	//
	return nil
}

// Lisp converts this constraint into an S-Expression.
func (p *RelationConstraint) Lisp() sexp.SExp {
	return sexp.NewList(sexp.NewSymbol("relation"), sexp.NewSymbol(p.handle), sexp.NewSymbol(p.relation.Name()),
		tuple2Lisp(p.table, p.selector, p.args))
}

// ============================================================================
// Copy
// ============================================================================

// CellRef identifies a cell of a trace.  A negative row counts from the end of
// the table, such that -1 is the last row.
type CellRef struct {
	Table  string
	Column string
	Row    int
}

func (c CellRef) String() string {
	return fmt.Sprintf("%s.%s[%d]", c.Table, c.Column, c.Row)
}

func (c CellRef) get(tr *Trace) (fr.Element, error) {
	tbl, err := table(tr, c.Table)
	if err != nil {
		return fr.Element{}, err
	}
	//
	row := c.Row
	if row < 0 {
		row += int(tbl.Height())
	}
	//
	return tbl.Get(c.Column, row), nil
}

// CopyConstraint requires that two cells, possibly in different tables, hold
// the same value.
type CopyConstraint struct {
	handle      string
	left, right CellRef
}

// Handle identifies this constraint in error reports.
func (p *CopyConstraint) Handle() string { return p.handle }

// Accepts checks whether this constraint holds on a given trace.
func (p *CopyConstraint) Accepts(tr *Trace) error {
	lhs, err := p.left.get(tr)
	if err != nil {
		return err
	}
	//
	rhs, err := p.right.get(tr)
	if err != nil {
		return err
	}
	//
	if !lhs.Equal(&rhs) {
		return failure.Constraint(p.handle, p.left.Table, uint64(max(p.left.Row, 0)), "%s=%s but %s=%s", p.left,
			lhs.String(), p.right, rhs.String())
	}
	//
	return nil
}

// Lisp converts this constraint into an S-Expression.
func (p *CopyConstraint) Lisp() sexp.SExp {
	return sexp.NewList(sexp.NewSymbol("copy"), sexp.NewSymbol(p.handle), sexp.NewSymbol(p.left.String()),
		sexp.NewSymbol(p.right.String()))
}
