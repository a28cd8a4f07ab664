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
package circuit

import (
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/air"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Columns holding the decoded instruction of a step.
const (
	class = "class"
	// Maximum number of operand fields in any class layout.
	maxFields = 5
)

func opSelector(c opcode.Class) string { return "op_" + c.String() }

func fieldCol(i int) string { return fmt.Sprintf("f%d", i) }

func argTagCol(i int) string { return fmt.Sprintf("a%d", i) }

func decodeColumns() []string {
	columns := []string{class}
	//
	for _, c := range opcode.Classes() {
		columns = append(columns, opSelector(c))
	}
	//
	for i := 0; i < maxFields; i++ {
		columns = append(columns, fieldCol(i), argTagCol(i))
	}
	//
	return columns
}

// power returns the constant v*2^n.
func power(v uint64, n uint) air.Expr {
	var e fr.Element
	//
	e.SetBigInt(new(big.Int).Lsh(new(big.Int).SetUint64(v), n))
	//
	return air.NewConstant(e)
}

// sumOf is a sum of expressions, avoiding a redundant node for a single term.
func sumOf(exprs []air.Expr) air.Expr {
	if len(exprs) == 1 {
		return exprs[0]
	}
	//
	return air.Sum(exprs...)
}

// emitDecode constrains the code of every step to be the encoding of its class
// selector and operand fields.  Since the encoding is injective when every
// field is within its width, the fields are exactly those of the instruction
// looked up from the code table.
func emitDecode(schema *air.Schema, cfg config.Config) {
	var (
		E         = col(enabled)
		classes   = opcode.Classes()
		selectors = make([]air.Expr, len(classes))
	)
	//
	for i, c := range classes {
		binary(schema, EventTable, opSelector(c))
		selectors[i] = col(opSelector(c))
	}
	// Each enabled row executes exactly one class.
	vanish(schema, EventTable, "class:one", E.Sub(air.Sum(selectors...)))
	vanish(schema, EventTable, "class:disabled", not(E).Mul(col(class)))
	//
	for _, c := range classes {
		S := col(opSelector(c))
		//
		if c == opcode.ClassCallHost {
			// Host plugins are identified by their tag, above the native classes.
			schema.AddRelationConstraint("class:CallHost", EventTable, S,
				[]air.Expr{col(class).Sub(constant(opcode.ForeignPluginStart))}, air.Range(16))
			vanish(schema, EventTable, "decode:CallHost",
				S.Mul(col(code).Sub(col(class).Mul(power(1, cfg.ClassShift))).Sub(col(fieldCol(0)))))
			//
			continue
		}
		//
		var (
			layout = opcode.Layout(c)
			terms  = []air.Expr{power(uint64(c), cfg.ClassShift)}
		)
		//
		for i, shift := range opcode.Shifts(c) {
			terms = append(terms, col(fieldCol(i)).Mul(power(1, shift)))
			//
			if layout[i] == opcode.UniArgField {
				terms = append(terms, col(argTagCol(i)).Mul(power(1, shift+64)))
			}
		}
		//
		vanish(schema, EventTable, "class:"+c.String(), S.Mul(col(class).Sub(constant(uint64(c)))))
		vanish(schema, EventTable, "decode:"+c.String(), S.Mul(col(code).Sub(air.Sum(terms...))))
	}
	//
	for i := 0; i < maxFields; i++ {
		emitField(schema, i)
	}
}

// emitField constrains the i'th operand field of every class to fit its kind,
// and to be zero where a class has no such field.
func emitField(schema *air.Schema, i int) {
	var (
		f, a     = col(fieldCol(i)), col(argTagCol(i))
		widths   = make(map[uint][]air.Expr)
		bits     []air.Expr
		tagged   []air.Expr
		untagged []air.Expr
		unused   []air.Expr
	)
	//
	for _, c := range opcode.Classes() {
		var (
			S      = col(opSelector(c))
			layout = opcode.Layout(c)
		)
		//
		switch {
		case i >= len(layout):
			unused = append(unused, S)
			untagged = append(untagged, S)
		case layout[i] == opcode.Bit:
			bits = append(bits, S)
			untagged = append(untagged, S)
		case layout[i] == opcode.UniArgField:
			// The payload of a uniform argument is a 64-bit value.
			widths[64] = append(widths[64], S)
			tagged = append(tagged, S)
		default:
			widths[layout[i].Width()] = append(widths[layout[i].Width()], S)
			untagged = append(untagged, S)
		}
	}
	//
	if len(unused) > 0 {
		vanish(schema, EventTable, fieldCol(i)+":unused", sumOf(unused).Mul(f))
	}
	//
	if len(bits) > 0 {
		vanish(schema, EventTable, fieldCol(i)+":bit", sumOf(bits).Mul(f).Mul(f.Sub(constant(1))))
	}
	// Tag is one of pop, stack or constant.
	if len(tagged) > 0 {
		vanish(schema, EventTable, argTagCol(i)+":tag",
			sumOf(tagged).Mul(a).Mul(a.Sub(constant(1))).Mul(a.Sub(constant(2))))
	}
	//
	vanish(schema, EventTable, argTagCol(i)+":unused", sumOf(untagged).Mul(a))
	//
	for _, w := range slices.Sorted(maps.Keys(widths)) {
		schema.AddRelationConstraint(fmt.Sprintf("%s:u%d", fieldCol(i), w), EventTable, sumOf(widths[w]),
			[]air.Expr{f}, air.Range(w))
	}
}

// assignDecode assigns the decoded instruction of a given row.
func assignDecode(tbl *air.Table, row uint, op opcode.Opcode) {
	set(tbl, class, row, opcode.Tag(op))
	set(tbl, opSelector(op.Class()), row, 1)
	//
	for i, f := range op.Fields() {
		set(tbl, fieldCol(i), row, f.Value)
		set(tbl, argTagCol(i), row, f.Tag)
	}
}
