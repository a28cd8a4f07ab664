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

import (
	"errors"
	"fmt"
)

// SymbolRule is responsible for converting a terminating expression (i.e. a
// symbol) into an expression type T.  For example, a number or a column
// access.  The boolean result indicates whether the rule applied.
type SymbolRule[T any] func(string) (T, bool, error)

// ListRule is responsible converting a list with a given sequence of zero or
// more arguments into an expression type T.
type ListRule[T any] func([]SExp) (T, error)

// RecursiveRule is a wrapper for translating lists whose elements can be built
// by recursively reusing the enclosing translator.
type RecursiveRule[T any] func([]T) (T, error)

// Translator is a generic mechanism for translating S-Expressions into a
// structured form.
type Translator[T any] struct {
	lists   map[string]ListRule[T]
	symbols []SymbolRule[T]
}

// NewTranslator constructs a new Translator instance.
func NewTranslator[T any]() *Translator[T] {
	return &Translator[T]{lists: make(map[string]ListRule[T])}
}

// ParseAndTranslate a given string into a given structured representation T.
func (p *Translator[T]) ParseAndTranslate(s string) (T, error) {
	e, err := Parse(s)
	if err != nil {
		var empty T
		return empty, err
	}
	//
	return p.Translate(e)
}

// Translate an S-Expression into a given structured representation T.  This
// fails when the S-Expression is not well-formed for this translator.
func (p *Translator[T]) Translate(sexp SExp) (T, error) {
	var empty T
	//
	switch e := sexp.(type) {
	case *List:
		if len(e.Elements) == 0 || !e.Elements[0].IsSymbol() {
			return empty, fmt.Errorf("invalid list %s", e)
		}
		//
		name := e.Elements[0].(*Symbol).Value
		//
		if t, ok := p.lists[name]; ok {
			return t(e.Elements)
		}
		//
		return empty, fmt.Errorf("unknown list %q", name)
	case *Symbol:
		for _, rule := range p.symbols {
			if ir, ok, err := rule(e.Value); ok || err != nil {
				return ir, err
			}
		}
		//
		return empty, fmt.Errorf("unknown symbol %q", e.Value)
	}
	//
	return empty, errors.New("invalid S-Expression")
}

// AddListRule adds a new list translator for lists starting with a given name.
func (p *Translator[T]) AddListRule(name string, t ListRule[T]) {
	p.lists[name] = t
}

// AddRecursiveRule adds a new list translator to this expression translator.
func (p *Translator[T]) AddRecursiveRule(name string, t RecursiveRule[T]) {
	p.lists[name] = func(elements []SExp) (T, error) {
		var (
			empty T
			err   error
			args  = make([]T, len(elements)-1)
		)
		//
		for i, s := range elements[1:] {
			if args[i], err = p.Translate(s); err != nil {
				return empty, err
			}
		}
		//
		return t(args)
	}
}

// AddSymbolRule adds a new symbol translator to this expression translator.
// Rules are tried in the order they are added.
func (p *Translator[T]) AddSymbolRule(t SymbolRule[T]) {
	p.symbols = append(p.symbols, t)
}
