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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/image"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	log "github.com/sirupsen/logrus"
)

// Tables are the tables of a complete execution, before slicing.
type Tables struct {
	Events *etable.Table
	Memory *mtable.Table
	Frames *jtable.Table
	// Image before execution.
	Image *image.Image
	// Memory after execution.
	PostMemory *mtable.InitTable
	//
	cfg config.Config
}

// Build the tables for a complete execution of a given module.  The trace must
// start in the initial state of the module, and run to completion.
func Build(cfg config.Config, m *Module, trace []etable.Entry) (*Tables, error) {
	stats := util.NewPerfStats()
	//
	if err := m.Validate(cfg); err != nil {
		return nil, err
	} else if err := CheckInitial(cfg, m, trace); err != nil {
		return nil, err
	}
	//
	events, err := etable.Build(cfg, m.Context(cfg), m.Code, trace, nil, etable.Counters{})
	if err != nil {
		return nil, fmt.Errorf("event table: %w", err)
	}
	//
	frames, err := events.Frames(m.StaticFrames(), nil)
	if err != nil {
		return nil, fmt.Errorf("frame table: %w", err)
	}
	//
	accesses := events.MemoryEvents()
	//
	memory, err := mtable.Build(accesses, m.Memory)
	if err != nil {
		return nil, fmt.Errorf("memory table: %w", err)
	}
	//
	stats.Log("Building tables")
	//
	return &Tables{events, memory, frames, m.Image(), m.Memory.Apply(accesses), cfg}, nil
}

// CheckInitial checks that a trace starts in the initial state of a module.
func CheckInitial(cfg config.Config, m *Module, trace []etable.Entry) error {
	initial := m.Initial(cfg)
	//
	if len(trace) == 0 {
		return fmt.Errorf("empty trace")
	} else if !trace[0].SameState(&initial) {
		return failure.Lookup("etable", 0, "trace starts at %s, not %s", trace[0], initial)
	}
	//
	return nil
}

// Check every table of the execution, along with the relationships between
// them.  The tables are checked in parallel.
func (p *Tables) Check() error {
	stats := util.NewPerfStats()
	//
	err := util.ParallelTasks(p.cfg.Parallel,
		func() error { return p.Events.Check(p.Frames) },
		func() error { return p.Events.Balance(p.Frames) },
		func() error { return p.Memory.Check() },
		func() error { return p.Memory.CheckInit(p.Image.Memory()) },
		func() error { return p.Memory.CheckEvents(p.Events.MemoryEvents()) },
	)
	//
	if err != nil {
		return err
	} else if p.Events.RestMops() != p.Memory.RestMops() {
		return failure.Lookup("mtable", 0, "event table has %d memory operations, memory table has %d",
			p.Events.RestMops(), p.Memory.RestMops())
	}
	//
	stats.Log("Checking tables")
	log.Infof("checked %d steps, %d memory rows, %d frames", p.Events.Len(), p.Memory.Len(), p.Frames.Len())
	//
	return nil
}
