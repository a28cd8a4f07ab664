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
	"testing"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Expr_00(t *testing.T) {
	tbl := counter(4)
	// pc(1) - pc - 1
	e := NewColumnAccess("pc", 1).Sub(NewColumnAccess("pc", 0)).Sub(NewConst64(1))
	//
	for row := 0; row < 3; row++ {
		val := e.EvalAt(row, tbl)
		assert.True(t, val.IsZero(), "row %d", row)
	}
	// Padding reads zero, so the last row does not vanish
	val := e.EvalAt(3, tbl)
	assert.False(t, val.IsZero())
	assert.Equal(t, "(- (- (shift pc 1) pc) 1)", e.String())
}

func Test_Expr_01(t *testing.T) {
	for _, s := range []string{"pc", "12", "(+ pc 1)", "(* x (- x 1))", "(- (shift pc 1) pc 1)", "(+)", "-5",
		"(* (inv (- key (shift key -1))) key)"} {
		e, err := ParseSExp(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, e.String())
	}
	//
	for _, s := range []string{"(shift pc)", "(/ 1 2)", "()", "(-)", "(shift pc x)"} {
		_, err := ParseSExp(s)
		assert.Error(t, err, s)
	}
}

func Test_Expr_02(t *testing.T) {
	e, err := ParseSExp("(* a b (+ c 1))")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, RequiredColumns(e))
	assert.Nil(t, e.AsConstant())
	assert.Equal(t, fr.NewElement(7), *NewConst64(7).AsConstant())
}

func Test_Vanishing_00(t *testing.T) {
	schema := counterSchema()
	check_Accepts(t, schema, counter(8))
	// Break the counter
	tbl := counter(8)
	col, _ := tbl.Column("pc")
	col.SetUint64(5, 9)
	err := check_Rejects(t, schema, tbl)
	check_Constraint(t, err, "increment", 4)
}

func Test_Vanishing_01(t *testing.T) {
	// First and last row constraints
	schema := counterSchema()
	schema.AddVanishingConstraint("first", "counter", util.Some(0), NewColumnAccess("pc", 0))
	schema.AddVanishingConstraint("last", "counter", util.Some(-1), NewColumnAccess("pc", 0).Sub(NewConst64(7)))
	check_Accepts(t, schema, counter(8))
	//
	err := check_Rejects(t, schema, counter(6))
	check_Constraint(t, err, "last", 5)
}

func Test_Lookup_00(t *testing.T) {
	schema := NewSchema()
	schema.AddTable("events", "enabled", "pc")
	schema.AddTable("code", "pc")
	schema.AddLookupConstraint("events->code", "events", NewColumnAccess("enabled", 0),
		[]Expr{NewColumnAccess("pc", 0)}, "code", nil, []Expr{NewColumnAccess("pc", 0)})
	require.NoError(t, schema.Validate())
	//
	code := NewTable("code", 3)
	for i := uint(0); i < 3; i++ {
		code.AddColumn("pc").SetUint64(i, uint64(10+i))
	}
	//
	events := NewTable("events", 4)
	events.AddColumn("enabled")
	events.AddColumn("pc")
	assign(events, "enabled", 1, 1, 1, 0)
	assign(events, "pc", 10, 12, 11, 99)
	check_Accepts(t, schema, events, code)
	// Enable the last row
	assign(events, "enabled", 1, 1, 1, 1)
	err := check_Rejects(t, schema, events, code)
	//
	var miss *failure.LookupMiss
	require.True(t, errors.As(err, &miss))
	assert.Equal(t, "events->code", miss.Table)
	assert.Equal(t, uint64(3), miss.Row)
}

func Test_Range_00(t *testing.T) {
	schema := NewSchema()
	schema.AddTable("t", "x")
	schema.AddRangeConstraint("x:u8", "t", "x", 8)
	//
	tbl := NewTable("t", 2)
	tbl.AddColumn("x")
	assign(tbl, "x", 0, 255)
	check_Accepts(t, schema, tbl)
	assign(tbl, "x", 256, 0)
	check_Constraint(t, check_Rejects(t, schema, tbl), "x:u8", 0)
}

func Test_Relation_00(t *testing.T) {
	schema := NewSchema()
	schema.AddTable("t", "enabled", "x", "y")
	schema.AddRelationConstraint("double", "t", NewColumnAccess("enabled", 0),
		[]Expr{NewColumnAccess("x", 0), NewColumnAccess("y", 0)}, doubled{})
	schema.AddRelationConstraint("x:u4", "t", nil, []Expr{NewColumnAccess("x", 0)}, Range(4))
	require.NoError(t, schema.Validate())
	//
	tbl := NewTable("t", 3)
	tbl.AddColumn("enabled")
	tbl.AddColumn("x")
	tbl.AddColumn("y")
	assign(tbl, "enabled", 1, 1, 0)
	assign(tbl, "x", 3, 15, 7)
	assign(tbl, "y", 6, 30, 0)
	check_Accepts(t, schema, tbl)
	// Unselected rows are ignored, but not selected ones.
	assign(tbl, "enabled", 1, 1, 1)
	err := check_Rejects(t, schema, tbl)
	//
	var miss *failure.LookupMiss
	require.True(t, errors.As(err, &miss))
	assert.Equal(t, "double", miss.Table)
	assert.Equal(t, uint64(2), miss.Row)
	// Out of range
	assign(tbl, "enabled", 1, 1, 0)
	assign(tbl, "x", 3, 16, 7)
	assign(tbl, "y", 6, 32, 0)
	require.True(t, errors.As(check_Rejects(t, schema, tbl), &miss))
	assert.Equal(t, "x:u4", miss.Table)
	assert.Equal(t, uint64(1), miss.Row)
	assert.Equal(t, "(relation double double (t (when enabled) x y))", schema.Constraints()[0].Lisp().String())
}

func Test_Relation_01(t *testing.T) {
	var neg fr.Element
	//
	neg.SetInt64(-1)
	//
	assert.True(t, Range(8).Contains([]fr.Element{fr.NewElement(255)}))
	assert.False(t, Range(8).Contains([]fr.Element{fr.NewElement(256)}))
	assert.False(t, Range(64).Contains([]fr.Element{neg}))
	assert.False(t, Range(8).Contains(nil))
	assert.Equal(t, "u16", Range(16).Name())
}

func Test_Copy_00(t *testing.T) {
	schema := NewSchema()
	schema.AddTable("a", "x")
	schema.AddTable("b", "y")
	schema.AddCopyConstraint("a=b", CellRef{"a", "x", 0}, CellRef{"b", "y", -1})
	//
	a, b := NewTable("a", 2), NewTable("b", 3)
	a.AddColumn("x")
	b.AddColumn("y")
	assign(a, "x", 5, 0)
	assign(b, "y", 0, 0, 5)
	check_Accepts(t, schema, a, b)
	assign(b, "y", 5, 0, 0)
	check_Rejects(t, schema, a, b)
}

func Test_Gadget_00(t *testing.T) {
	schema := NewSchema()
	schema.AddTable("t", "b")
	ApplyBinaryGadget("t", "b", schema)
	//
	tbl := NewTable("t", 3)
	tbl.AddColumn("b")
	assign(tbl, "b", 0, 1, 1)
	check_Accepts(t, schema, tbl)
	assign(tbl, "b", 0, 2, 1)
	check_Rejects(t, schema, tbl)
}

func Test_Gadget_01(t *testing.T) {
	// z == 1 iff x == 0
	schema := NewSchema()
	schema.AddTable("t", "x", "z")
	isZero := ApplyIsZeroGadget("t", NewColumnAccess("x", 0), schema)
	schema.AddVanishingConstraint("z", "t", util.None[int](), NewColumnAccess("z", 0).Equate(isZero))
	require.NoError(t, schema.Validate())
	//
	tbl := NewTable("t", 4)
	tbl.AddColumn("x")
	tbl.AddColumn("z")
	assign(tbl, "x", 0, 3, 0, 17)
	assign(tbl, "z", 1, 0, 1, 0)
	check_Accepts(t, schema, tbl)
	// Recompute the inverse after tampering
	assign(tbl, "z", 1, 1, 1, 0)
	check_Rejects(t, schema, tbl)
}

func Test_Gadget_02(t *testing.T) {
	schema := NewSchema()
	schema.AddTable("t", "x")
	ApplyBitwidthGadget("t", "x", 12, schema)
	//
	tbl := NewTable("t", 3)
	tbl.AddColumn("x")
	assign(tbl, "x", 0, 4095, 300)
	check_Accepts(t, schema, tbl)
	//
	assign(tbl, "x", 0, 4096, 300)
	check_Rejects(t, schema, tbl)
}

func Test_Schema_00(t *testing.T) {
	schema := NewSchema()
	schema.AddTable("t", "x")
	schema.AddVanishingConstraint("bad", "t", util.None[int](), NewColumnAccess("y", 0))
	schema.AddVanishingConstraint("worse", "u", util.None[int](), NewColumnAccess("x", 0))
	assert.Error(t, schema.Validate())
	// Missing table
	assert.Error(t, Accepts(schema, &Trace{index: map[string]*Table{}}, false))
}

// ============================================================================
// Helpers
// ============================================================================

// A table whose pc column counts up from zero.
func counter(height uint) *Table {
	tbl := NewTable("counter", height)
	col := tbl.AddColumn("pc")
	//
	for i := uint(0); i < height; i++ {
		col.SetUint64(i, uint64(i))
	}
	//
	return tbl
}

// Relates each value to its double.
type doubled struct{}

func (doubled) Name() string { return "double" }

func (doubled) Contains(args []fr.Element) bool {
	var twice fr.Element
	//
	twice.Double(&args[0])
	//
	return twice.Equal(&args[1])
}

func counterSchema() *Schema {
	schema := NewSchema()
	schema.AddTable("counter", "pc")
	// pc(1) == pc + 1, except on the last row
	increment, _ := ParseSExp("(* (shift pc 1) (- (shift pc 1) pc 1))")
	schema.AddVanishingConstraint("increment", "counter", util.None[int](), increment)
	//
	return schema
}

func assign(tbl *Table, column string, values ...uint64) {
	col, _ := tbl.Column(column)
	//
	for i, v := range values {
		col.SetUint64(uint(i), v)
	}
}

func check_Accepts(t *testing.T, schema *Schema, tables ...*Table) {
	tr, err := NewTrace(tables...)
	require.NoError(t, err)
	require.NoError(t, schema.ExpandTrace(tr))
	//
	for _, parallel := range []bool{false, true} {
		assert.NoError(t, Accepts(schema, tr, parallel))
	}
}

func check_Rejects(t *testing.T, schema *Schema, tables ...*Table) error {
	tr, err := NewTrace(tables...)
	require.NoError(t, err)
	require.NoError(t, schema.ExpandTrace(tr))
	//
	err = Accepts(schema, tr, true)
	require.Error(t, err)
	//
	return err
}

func check_Constraint(t *testing.T, err error, handle string, row uint64) {
	var failed *failure.ConstraintFailure
	//
	require.True(t, errors.As(err, &failed), "expected constraint failure, got %v", err)
	assert.Equal(t, handle, failed.Handle)
	assert.Equal(t, row, failed.Row)
}
