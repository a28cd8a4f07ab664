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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/air"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Columns shared between tables
const (
	enabled     = "enabled"
	restMops    = "rest_mops"
	restCallOps = "rest_call_ops"
	restPushed  = "rest_pushed"
)

var everyRow = util.None[int]()

func col(name string) air.Expr { return air.NewColumnAccess(name, 0) }

func next(name string) air.Expr { return air.NewColumnAccess(name, 1) }

func prev(name string) air.Expr { return air.NewColumnAccess(name, -1) }

func constant(v uint64) air.Expr { return air.NewConst64(v) }

func not(e air.Expr) air.Expr { return constant(1).Sub(e) }

func cols(names ...string) []air.Expr {
	exprs := make([]air.Expr, len(names))
	//
	for i, n := range names {
		exprs[i] = col(n)
	}
	//
	return exprs
}

// vanish adds a constraint which must hold on every row of a table.
func vanish(schema *air.Schema, table, handle string, e air.Expr) {
	schema.AddVanishingConstraint(handle, table, everyRow, e)
}

// binary declares a set of columns which hold only 0 or 1.
func binary(schema *air.Schema, table string, columns ...string) {
	for _, c := range columns {
		air.ApplyBinaryGadget(table, c, schema)
	}
}

func signed(v int64) fr.Element {
	var e fr.Element
	//
	e.SetInt64(v)
	//
	return e
}

func flag(b bool) uint64 {
	if b {
		return 1
	}
	//
	return 0
}
