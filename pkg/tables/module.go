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
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/image"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
)

// Module is a compiled module: its instructions, function table and initial
// memory, along with the entry points and memory limits.
type Module struct {
	// Instruction table
	Code *itable.Table
	// Function table (for call_indirect)
	Elements *itable.Elements
	// Initial memory: globals and data segments.
	Memory *mtable.InitTable
	// Entry function
	Entry uint32
	// Start function (if any)
	Start util.Option[uint32]
	// Initial number of heap pages
	InitialPages uint32
	// Declared maximum number of heap pages (0 if undeclared).
	MaxPages uint32
	// Host plugins
	Registry *host.Registry
	// Function names (for diagnostics).
	Names map[uint32]string
}

// StaticFrames returns the bootstrap frames for this module.
func (m *Module) StaticFrames() [2]jtable.StaticEntry {
	start, ok := m.Start.Get()
	//
	return jtable.StaticFrames(m.Entry, start, ok)
}

// Context returns the context for checking steps of this module.
func (m *Module) Context(cfg config.Config) *etable.Context {
	return etable.NewContext(cfg, m.Registry, m.Elements, m.MaxPages)
}

// PageLimit returns the maximum number of pages this module may allocate.
func (m *Module) PageLimit(cfg config.Config) uint32 {
	return m.Context(cfg).MaxPages
}

// Image returns the image of this module, before execution.
func (m *Module) Image() *image.Image {
	return image.New(m.Code, m.Elements, m.StaticFrames(), m.Memory)
}

// Initial returns the state in which execution starts: the first instruction
// of the start function (if any), or the entry function.
func (m *Module) Initial(cfg config.Config) etable.Entry {
	return etable.Entry{Eid: 1, Fid: m.Start.UnwrapOr(m.Entry), Sp: cfg.StackBase, AllocatedMemoryPages: m.InitialPages}
}

// FunctionName returns a printable name for a given function.
func (m *Module) FunctionName(fid uint32) string {
	if name, ok := m.Names[fid]; ok {
		return name
	}
	//
	return fmt.Sprintf("f%d", fid)
}

// Validate that this module can be arithmetized under a given configuration.
func (m *Module) Validate(cfg config.Config) error {
	if m.InitialPages > m.PageLimit(cfg) {
		return fmt.Errorf("initial memory of %d pages exceeds limit of %d", m.InitialPages, m.PageLimit(cfg))
	} else if _, err := m.Code.Get(m.Entry, 0); err != nil {
		return fmt.Errorf("entry function %d: %w", m.Entry, err)
	} else if start, ok := m.Start.Get(); ok {
		if _, err := m.Code.Get(start, 0); err != nil {
			return fmt.Errorf("start function %d: %w", start, err)
		}
	}
	//
	return nil
}
