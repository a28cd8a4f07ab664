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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/sexp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Expr represents an arithmetic expression over the columns of a single table.
// Any expression in this form can be lowered into a polynomial.  Constraints
// built from expressions are evaluated row by row against an assigned table.
type Expr interface {
	// Add two expressions together, producing a third.
	Add(Expr) Expr
	// Subtract one expression from another
	Sub(Expr) Expr
	// Multiply two expressions together, producing a third.
	Mul(Expr) Expr
	// Equate one expression with another
	Equate(Expr) Expr
	// AsConstant determines whether or not this is a constant expression.  If
	// so, the constant is returned; otherwise, nil is returned.  NOTE: this
	// does not perform any form of simplification to determine this.
	AsConstant() *fr.Element
	// EvalAt evaluates this expression at a given row of a given table.  Rows
	// outside the table evaluate as padding (i.e. zero).
	EvalAt(row int, tbl *Table) fr.Element
	// Lisp converts this expression into an S-Expression.
	Lisp() sexp.SExp
	// String returns the S-Expression form of this expression.
	String() string
}

// ============================================================================
// Addition
// ============================================================================

// Add represents the sum over zero or more expressions.
type Add struct{ Args []Expr }

// Sum constructs the sum of zero or more expressions.
func Sum(args ...Expr) Expr { return &Add{args} }

// Add two expressions together, producing a third.
func (p *Add) Add(other Expr) Expr { return &Add{Args: []Expr{p, other}} }

// Sub (subtract) one expression from another.
func (p *Add) Sub(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// Mul (multiply) two expressions together, producing a third.
func (p *Add) Mul(other Expr) Expr { return &Mul{Args: []Expr{p, other}} }

// Equate one expression with another (equivalent to subtraction).
func (p *Add) Equate(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// AsConstant returns nil, since a sum is never considered constant.
func (p *Add) AsConstant() *fr.Element { return nil }

// EvalAt evaluates this sum at a given row.
func (p *Add) EvalAt(row int, tbl *Table) fr.Element {
	var val fr.Element
	//
	for _, arg := range p.Args {
		ith := arg.EvalAt(row, tbl)
		val.Add(&val, &ith)
	}
	//
	return val
}

// Lisp converts this expression into an S-Expression.
func (p *Add) Lisp() sexp.SExp { return nary2Lisp("+", p.Args) }

func (p *Add) String() string { return p.Lisp().String() }

// ============================================================================
// Subtraction
// ============================================================================

// Sub represents the subtraction over one or more expressions.
type Sub struct{ Args []Expr }

// Add two expressions together, producing a third.
func (p *Sub) Add(other Expr) Expr { return &Add{Args: []Expr{p, other}} }

// Sub (subtract) one expression from another.
func (p *Sub) Sub(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// Mul (multiply) two expressions together, producing a third.
func (p *Sub) Mul(other Expr) Expr { return &Mul{Args: []Expr{p, other}} }

// Equate one expression with another (equivalent to subtraction).
func (p *Sub) Equate(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// AsConstant returns nil, since a subtraction is never considered constant.
func (p *Sub) AsConstant() *fr.Element { return nil }

// EvalAt evaluates this subtraction at a given row.  The first argument is
// taken as is, and every following argument subtracted from it.
func (p *Sub) EvalAt(row int, tbl *Table) fr.Element {
	var val fr.Element
	//
	for i, arg := range p.Args {
		ith := arg.EvalAt(row, tbl)
		//
		if i == 0 {
			val = ith
		} else {
			val.Sub(&val, &ith)
		}
	}
	//
	return val
}

// Lisp converts this expression into an S-Expression.
func (p *Sub) Lisp() sexp.SExp { return nary2Lisp("-", p.Args) }

func (p *Sub) String() string { return p.Lisp().String() }

// ============================================================================
// Multiplication
// ============================================================================

// Mul represents the product over zero or more expressions.
type Mul struct{ Args []Expr }

// Product constructs the product of zero or more expressions.
func Product(args ...Expr) Expr { return &Mul{args} }

// Add two expressions together, producing a third.
func (p *Mul) Add(other Expr) Expr { return &Add{Args: []Expr{p, other}} }

// Sub (subtract) one expression from another.
func (p *Mul) Sub(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// Mul (multiply) two expressions together, producing a third.
func (p *Mul) Mul(other Expr) Expr { return &Mul{Args: []Expr{p, other}} }

// Equate one expression with another (equivalent to subtraction).
func (p *Mul) Equate(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// AsConstant returns nil, since a product is never considered constant.
func (p *Mul) AsConstant() *fr.Element { return nil }

// EvalAt evaluates this product at a given row, short-circuiting on zero.
func (p *Mul) EvalAt(row int, tbl *Table) fr.Element {
	val := fr.One()
	//
	for _, arg := range p.Args {
		if val.IsZero() {
			break
		}
		//
		ith := arg.EvalAt(row, tbl)
		val.Mul(&val, &ith)
	}
	//
	return val
}

// Lisp converts this expression into an S-Expression.
func (p *Mul) Lisp() sexp.SExp { return nary2Lisp("*", p.Args) }

func (p *Mul) String() string { return p.Lisp().String() }

// ============================================================================
// Constant
// ============================================================================

// Constant represents a constant value within an expression.
type Constant struct{ Value fr.Element }

// NewConstant construct an expression representing a given constant.
func NewConstant(val fr.Element) *Constant {
	return &Constant{val}
}

// NewConst64 construct an expression representing a given unsigned constant.
func NewConst64(val uint64) *Constant {
	return &Constant{fr.NewElement(val)}
}

// Add two expressions together, producing a third.
func (p *Constant) Add(other Expr) Expr { return &Add{Args: []Expr{p, other}} }

// Sub (subtract) one expression from another.
func (p *Constant) Sub(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// Mul (multiply) two expressions together, producing a third.
func (p *Constant) Mul(other Expr) Expr { return &Mul{Args: []Expr{p, other}} }

// Equate one expression with another (equivalent to subtraction).
func (p *Constant) Equate(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// AsConstant returns the value of this constant.
func (p *Constant) AsConstant() *fr.Element { return &p.Value }

// EvalAt returns the value of this constant, irrespective of row.
func (p *Constant) EvalAt(int, *Table) fr.Element { return p.Value }

// Lisp converts this expression into an S-Expression.
func (p *Constant) Lisp() sexp.SExp { return sexp.NewSymbol(p.Value.String()) }

func (p *Constant) String() string { return p.Value.String() }

// ============================================================================
// Column Access
// ============================================================================

// ColumnAccess represents reading the value held at a given column in the
// tabular context.  Furthermore, the current row maybe shifted up (or down) by
// a given amount.  Suppose we are evaluating a constraint on row k=5 which
// contains the column access "X(-1)".  Then, the value read is that in column X
// at row 4.
type ColumnAccess struct {
	Column string
	Shift  int
}

// NewColumnAccess constructs an expression representing a column access.
func NewColumnAccess(column string, shift int) *ColumnAccess {
	return &ColumnAccess{column, shift}
}

// Add two expressions together, producing a third.
func (p *ColumnAccess) Add(other Expr) Expr { return &Add{Args: []Expr{p, other}} }

// Sub (subtract) one expression from another.
func (p *ColumnAccess) Sub(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// Mul (multiply) two expressions together, producing a third.
func (p *ColumnAccess) Mul(other Expr) Expr { return &Mul{Args: []Expr{p, other}} }

// Equate one expression with another (equivalent to subtraction).
func (p *ColumnAccess) Equate(other Expr) Expr { return &Sub{Args: []Expr{p, other}} }

// AsConstant returns nil, since a column access is never constant.
func (p *ColumnAccess) AsConstant() *fr.Element { return nil }

// EvalAt reads the accessed column at the given row plus shift.
func (p *ColumnAccess) EvalAt(row int, tbl *Table) fr.Element {
	return tbl.Get(p.Column, row+p.Shift)
}

// Lisp converts this expression into an S-Expression.
func (p *ColumnAccess) Lisp() sexp.SExp {
	access := sexp.NewSymbol(p.Column)
	//
	if p.Shift == 0 {
		return access
	}
	//
	return sexp.NewList(sexp.NewSymbol("shift"), access, sexp.NewSymbol(fmt.Sprintf("%d", p.Shift)))
}

func (p *ColumnAccess) String() string { return p.Lisp().String() }

// ============================================================================
// Helpers
// ============================================================================

func nary2Lisp(op string, exprs []Expr) sexp.SExp {
	arr := make([]sexp.SExp, 1+len(exprs))
	arr[0] = sexp.NewSymbol(op)
	//
	for i, e := range exprs {
		arr[i+1] = e.Lisp()
	}
	//
	return sexp.NewList(arr...)
}

// RequiredColumns returns the columns read by a given expression, in order of
// first occurrence.
func RequiredColumns(e Expr) []string {
	var (
		seen    = make(map[string]bool)
		columns []string
	)
	//
	var visit func(Expr)
	//
	visit = func(e Expr) {
		switch e := e.(type) {
		case *Add:
			visitAll(e.Args, visit)
		case *Sub:
			visitAll(e.Args, visit)
		case *Mul:
			visitAll(e.Args, visit)
		case *ColumnAccess:
			if !seen[e.Column] {
				seen[e.Column] = true
				columns = append(columns, e.Column)
			}
		case *Constant:
		default:
			panic(fmt.Sprintf("unknown expression %T", e))
		}
	}
	//
	visit(e)
	//
	return columns
}

func visitAll(args []Expr, visit func(Expr)) {
	for _, arg := range args {
		visit(arg)
	}
}
