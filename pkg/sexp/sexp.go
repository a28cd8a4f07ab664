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
package sexp

import "strings"

// SExp is an S-Expression is either a List of zero or more S-Expressions, or
// a Symbol.
type SExp interface {
	// IsList checks whether this S-Expression is a list.
	IsList() bool
	// IsSymbol checks whether this S-Expression is a symbol.
	IsSymbol() bool
	// String generates a string representation.
	String() string
}

// ===================================================================
// List
// ===================================================================

// List represents a list of zero or more S-Expressions.
type List struct {
	Elements []SExp
}

var _ SExp = (*List)(nil)

// NewList constructs a list from a given set of elements.
func NewList(elements ...SExp) *List {
	return &List{elements}
}

// IsList sets that is a list.
func (l *List) IsList() bool { return true }

// IsSymbol that a List is not a Symbol.
func (l *List) IsSymbol() bool { return false }

// Len gets the number of elements in this list.
func (l *List) Len() int { return len(l.Elements) }

func (l *List) String() string {
	var builder strings.Builder
	//
	builder.WriteString("(")
	//
	for i, e := range l.Elements {
		if i != 0 {
			builder.WriteString(" ")
		}
		//
		builder.WriteString(e.String())
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

// MatchSymbols matches a list which starts with at least n symbols, of which the
// first m match the given strings.
func (l *List) MatchSymbols(n int, symbols ...string) bool {
	if len(l.Elements) < n || len(symbols) > n {
		return false
	}
	//
	for i := 0; i < len(symbols); i++ {
		if ith, ok := l.Elements[i].(*Symbol); !ok || ith.Value != symbols[i] {
			return false
		}
	}
	//
	return true
}

// ===================================================================
// Symbol
// ===================================================================

// Symbol represents a terminating symbol.
type Symbol struct {
	Value string
}

var _ SExp = (*Symbol)(nil)

// NewSymbol constructs a symbol.
func NewSymbol(value string) *Symbol {
	return &Symbol{value}
}

// IsList sets that A Symbol is not a List.
func (s *Symbol) IsList() bool { return false }

// IsSymbol sets tha is a Symbol.
func (s *Symbol) IsSymbol() bool { return true }

func (s *Symbol) String() string { return s.Value }
