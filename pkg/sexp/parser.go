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

import "fmt"

// SyntaxError is a structured error which retains the position in the input
// where the error arose.
type SyntaxError struct {
	// Offset within the input text
	Offset int
	// Error message
	Message string
}

func (p *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", p.Offset, p.Message)
}

// Parse a given string into an S-expression, or return an error if the string
// is malformed.
func Parse(s string) (SExp, error) {
	p := NewParser(s)
	// Parse the input
	sExp, err := p.Parse()
	// Sanity check everything was parsed
	if err == nil && p.skip() != len(p.text) {
		return nil, p.error("unexpected remainder")
	} else if err == nil && sExp == nil {
		return nil, p.error("empty input")
	}
	//
	return sExp, err
}

// ParseAll parses a given string into zero or more S-expressions, whilst
// returning an error if the string is malformed.
func ParseAll(s string) ([]SExp, error) {
	var (
		terms []SExp
		p     = NewParser(s)
	)
	//
	for {
		term, err := p.Parse()
		//
		if err != nil {
			return terms, err
		} else if term == nil {
			return terms, nil
		}
		//
		terms = append(terms, term)
	}
}

// Parser represents a parser in the process of parsing a given string into one
// or more S-expressions.
type Parser struct {
	// Text being parsed
	text []rune
	// Determine current position within text
	index int
}

// NewParser constructs a new instance of Parser
func NewParser(text string) *Parser {
	return &Parser{text: []rune(text)}
}

// Parse the next S-Expression, returning nil at the end of the input.
func (p *Parser) Parse() (SExp, error) {
	token := p.next()
	//
	if token == nil {
		return nil, nil
	} else if len(token) == 1 && token[0] == ')' {
		p.index--
		return nil, p.error("unexpected end-of-list")
	} else if len(token) == 1 && token[0] == '(' {
		var elements []SExp
		//
		for p.skip() == len(p.text) || p.text[p.index] != ')' {
			element, err := p.Parse()
			if err != nil {
				return nil, err
			} else if element == nil {
				return nil, p.error("unexpected end-of-file")
			}
			//
			elements = append(elements, element)
		}
		// Consume right-brace
		p.index++
		//
		return &List{elements}, nil
	}
	//
	return &Symbol{string(token)}, nil
}

// next extracts the next token, or nil at the end of the input.
func (p *Parser) next() []rune {
	index := p.skip()
	//
	if index == len(p.text) {
		return nil
	}
	//
	switch p.text[index] {
	case '(', ')':
		p.index++
		return p.text[index:p.index]
	}
	// Symbol
	for p.index < len(p.text) && !isDelimiter(p.text[p.index]) {
		p.index++
	}
	//
	return p.text[index:p.index]
}

// skip whitespace and comments, returning the resulting position.
func (p *Parser) skip() int {
	for p.index < len(p.text) {
		switch c := p.text[p.index]; {
		case c == ';':
			for p.index < len(p.text) && p.text[p.index] != '\n' {
				p.index++
			}
		case isWhitespace(c):
			p.index++
		default:
			return p.index
		}
	}
	//
	return p.index
}

func isWhitespace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c rune) bool {
	return isWhitespace(c) || c == '(' || c == ')' || c == ';'
}

// Construct a parser error at the current position in the input stream.
func (p *Parser) error(msg string) *SyntaxError {
	return &SyntaxError{p.index, msg}
}
