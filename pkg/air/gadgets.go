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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ApplyBinaryGadget adds a binarity constraint for a given column in the schema
// which enforces that all values in the given column are either 0 or 1. For a
// column X, this corresponds to the vanishing constraint X * (X-1) == 0.
func ApplyBinaryGadget(table, col string, schema *Schema) {
	X := NewColumnAccess(col, 0)
	// Construct X * (X-1)
	X_X_m1 := X.Mul(X.Sub(NewConst64(1)))
	//
	schema.AddVanishingConstraint(fmt.Sprintf("%s:binary", col), table, util.None[int](), X_X_m1)
}

// ApplyPseudoInverseGadget constructs an expression representing the (pseudo)
// multiplicative inverse of another expression.  Since this cannot be computed
// directly using arithmetic constraints, it is done by adding a new computed
// column which holds the multiplicative inverse.  Constraints are also added to
// ensure it really holds the inverted value.
func ApplyPseudoInverseGadget(table string, e Expr, schema *Schema) Expr {
	name := fmt.Sprintf("(inv %s)", e)
	// Add new column (if it does not already exist)
	if !schema.HasColumn(table, name) {
		schema.AddComputation(Computation{table, name, func(row int, tbl *Table) fr.Element {
			var inv fr.Element
			//
			val := e.EvalAt(row, tbl)
			//
			return *inv.Inverse(&val)
		}})
		//
		inv_e := NewColumnAccess(name, 0)
		// Construct 1 == e/e
		one_e_e := NewConst64(1).Equate(e.Mul(inv_e))
		// Ensure (e != 0) ==> (1 == e/e)
		schema.AddVanishingConstraint(fmt.Sprintf("[%s <=]", name), table, util.None[int](), e.Mul(one_e_e))
		// Ensure (1/e != 0) ==> (1 == e/e)
		schema.AddVanishingConstraint(fmt.Sprintf("[%s =>]", name), table, util.None[int](), inv_e.Mul(one_e_e))
	}
	//
	return NewColumnAccess(name, 0)
}

// ApplyIsZeroGadget constructs an expression which evaluates to 1 when a given
// expression is zero, and to 0 otherwise.
func ApplyIsZeroGadget(table string, e Expr, schema *Schema) Expr {
	inv := ApplyPseudoInverseGadget(table, e, schema)
	//
	return NewConst64(1).Sub(e.Mul(inv))
}

// ApplyBitwidthGadget ensures all values in a given column fit within a given
// number of bits.  This is implemented using a byte decomposition which adds n
// byte columns and a vanishing constraint (where n*8 >= nbits).  The most
// significant byte is range constrained to the remaining bits.
func ApplyBitwidthGadget(table, col string, nbits uint, schema *Schema) {
	if nbits == 0 {
		panic("zero bitwidth constraint encountered")
	}
	//
	var (
		n           = (nbits + 7) / 8
		es          = make([]Expr, n)
		fr256       = fr.NewElement(256)
		coefficient = fr.NewElement(1)
	)
	//
	for i := uint(0); i < n; i++ {
		var (
			byteName = fmt.Sprintf("%s:%d", col, i)
			shift    = 8 * i
			width    = min(8, nbits-shift)
		)
		//
		schema.AddComputation(Computation{table, byteName, func(row int, tbl *Table) fr.Element {
			var (
				val   = tbl.Get(col, row)
				bytes = val.Bytes()
			)
			// Bytes are big-endian
			return fr.NewElement(uint64(bytes[31-i]))
		}})
		//
		schema.AddRangeConstraint(fmt.Sprintf("%s:u%d", byteName, width), table, byteName, width)
		es[i] = NewColumnAccess(byteName, 0).Mul(NewConstant(coefficient))
		//
		coefficient.Mul(&coefficient, &fr256)
	}
	// Construct X == (X:0 * 1) + ... + (X:n * 256^n)
	eq := NewColumnAccess(col, 0).Equate(Sum(es...))
	schema.AddVanishingConstraint(fmt.Sprintf("%s:u%d", col, nbits), table, util.None[int](), eq)
}
