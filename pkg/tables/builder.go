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
package tables

import (
	"errors"
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
)

// Builder is used to construct a module incrementally.  Errors are
// accumulated, and reported when the module is built.
type Builder struct {
	code     *itable.Builder
	memory   []mtable.InitEntry
	elements []itable.Element
	registry *host.Registry
	names    map[uint32]string
	start    util.Option[uint32]
	pages    uint32
	maxPages uint32
	errs     []error
}

// NewBuilder constructs a builder whose opcodes are encoded according to a
// given configuration, and whose host calls resolve against a given registry.
func NewBuilder(cfg config.Config, registry *host.Registry) *Builder {
	encoder := opcode.NewEncoder(cfg.ClassShift, cfg.OpcodeShift)
	//
	return &Builder{
		code:     itable.NewBuilder(encoder),
		registry: registry,
		names:    make(map[uint32]string),
		start:    util.None[uint32](),
	}
}

// Function adds a function with a given identifier and body.
func (p *Builder) Function(fid uint32, name string, body ...opcode.Opcode) *Builder {
	if err := p.code.PushFunction(fid, body); err != nil {
		p.errs = append(p.errs, fmt.Errorf("function %s: %w", name, err))
	}
	//
	p.names[fid] = name
	//
	return p
}

// Global adds a global with a given initial value.
func (p *Builder) Global(index uint32, t opcode.VarType, mutable bool, value uint64) *Builder {
	p.memory = append(p.memory, mtable.InitEntry{
		Location: mtable.Global, IsMutable: mutable, Offset: index, Type: t, Value: value,
	})
	//
	return p
}

// Block sets the initial value of a given heap block.
func (p *Builder) Block(block uint32, value uint64) *Builder {
	p.memory = append(p.memory, mtable.InitEntry{
		Location: mtable.Heap, IsMutable: true, Offset: block, Type: opcode.I64, Value: value,
	})
	//
	return p
}

// Element adds an entry to the function table.
func (p *Builder) Element(offset, typeIndex, fid uint32) *Builder {
	p.elements = append(p.elements, itable.Element{Offset: offset, TypeIndex: typeIndex, Fid: fid})
	return p
}

// Start sets the start function.
func (p *Builder) Start(fid uint32) *Builder {
	p.start = util.Some(fid)
	return p
}

// Pages sets the initial and maximum (0 for undeclared) number of heap pages.
func (p *Builder) Pages(initial, maximum uint32) *Builder {
	p.pages, p.maxPages = initial, maximum
	return p
}

// Host returns the opcode calling a named host function.  An unknown name is
// reported when the module is built.
func (p *Builder) Host(name string) opcode.Opcode {
	if p.registry != nil {
		if op, ok := p.registry.Resolve(name); ok {
			return op
		}
	}
	//
	p.errs = append(p.errs, fmt.Errorf("unknown host function %q", name))
	//
	return opcode.Unreachable{}
}

// Build a module with a given entry function.
func (p *Builder) Build(entry uint32) (*Module, error) {
	if len(p.errs) != 0 {
		return nil, errors.Join(p.errs...)
	}
	//
	memory, err := mtable.NewInitTable(p.memory...)
	if err != nil {
		return nil, err
	}
	//
	elements, err := itable.NewElements(p.elements...)
	if err != nil {
		return nil, err
	}
	//
	return &Module{
		Code:         p.code.Build(),
		Elements:     elements,
		Memory:       memory,
		Entry:        entry,
		Start:        p.start,
		InitialPages: p.pages,
		MaxPages:     p.maxPages,
		Registry:     p.registry,
		Names:        p.names,
	}, nil
}
