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
	"strconv"
	"strings"
	"unicode"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/sexp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ParseSExp parses a string representing an expression formatted using
// S-expressions, such as "(- (shift pc 1) (+ pc 1))".
func ParseSExp(s string) (Expr, error) {
	return newTranslator().ParseAndTranslate(s)
}

func newTranslator() *sexp.Translator[Expr] {
	p := sexp.NewTranslator[Expr]()
	//
	p.AddSymbolRule(sexpConstantToAir)
	p.AddSymbolRule(sexpColumnToAir)
	p.AddRecursiveRule("+", sexpAddToAir)
	p.AddRecursiveRule("-", sexpSubToAir)
	p.AddRecursiveRule("*", sexpMulToAir)
	p.AddListRule("shift", sexpShiftToAir)
	p.AddListRule("inv", sexpInverseToAir)
	//
	return p
}

func sexpConstantToAir(symbol string) (Expr, bool, error) {
	var num fr.Element
	//
	digits := strings.TrimPrefix(symbol, "-")
	// Small negative constants print with a sign.
	if len(digits) == 0 || !unicode.IsDigit(rune(digits[0])) {
		return nil, false, nil
	}
	//
	if _, err := num.SetString(symbol); err != nil {
		return nil, true, err
	}
	//
	return &Constant{num}, true, nil
}

func sexpColumnToAir(col string) (Expr, bool, error) {
	return &ColumnAccess{col, 0}, true, nil
}

func sexpAddToAir(args []Expr) (Expr, error) {
	return &Add{args}, nil
}

func sexpSubToAir(args []Expr) (Expr, error) {
	if len(args) == 0 {
		return nil, errors.New("empty subtraction")
	}
	//
	return &Sub{args}, nil
}

func sexpMulToAir(args []Expr) (Expr, error) {
	return &Mul{args}, nil
}

func sexpShiftToAir(elements []sexp.SExp) (Expr, error) {
	if len(elements) != 3 || !elements[1].IsSymbol() || !elements[2].IsSymbol() {
		return nil, errors.New("malformed shift")
	}
	//
	n, err := strconv.Atoi(elements[2].String())
	if err != nil {
		return nil, err
	}
	//
	return &ColumnAccess{elements[1].String(), n}, nil
}

// Inverse columns are named after the expression they invert (see
// ApplyPseudoInverseGadget).
func sexpInverseToAir(elements []sexp.SExp) (Expr, error) {
	if len(elements) != 2 {
		return nil, errors.New("malformed inverse")
	}
	//
	return &ColumnAccess{fmt.Sprintf("(inv %s)", elements[1]), 0}, nil
}
