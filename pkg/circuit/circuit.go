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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/air"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/image"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/slice"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	log "github.com/sirupsen/logrus"
)

// Table names
const (
	EventTable    = "etable"
	MemoryTable   = "mtable"
	FrameTable    = "jtable"
	CodeTable     = "itable"
	BranchTable   = "brtable"
	InitTable     = "imtable"
	ElementsTable = "elements"
)

// Witness is everything assigned into the circuit for one slice: the dynamic
// tables of the slice, and the image it starts from.
type Witness struct {
	Events *etable.Table
	Memory *mtable.Table
	Frames *jtable.Table
	Image  *image.Image
}

// FromTables constructs the witness of a complete (unsliced) execution.
func FromTables(t *tables.Tables) Witness {
	return Witness{t.Events, t.Memory, t.Frames, t.Image}
}

// FromSlice constructs the witness of a single slice.
func FromSlice(s *slice.Slice) Witness {
	return Witness{s.Events, s.Memory, s.Frames, s.PreImage}
}

// Circuit is the constraint system for a given configuration.  The same circuit
// is used for every slice.
type Circuit struct {
	cfg    config.Config
	schema *air.Schema
}

// New constructs the circuit for a given configuration.
func New(cfg config.Config) *Circuit {
	schema := air.NewSchema()
	//
	emitStatic(schema)
	emitEvents(schema, cfg)
	emitMemory(schema)
	emitFrames(schema)
	// Counts of memory operations and calls agree between tables.
	schema.AddCopyConstraint("rest_mops", air.CellRef{Table: EventTable, Column: restMops},
		air.CellRef{Table: MemoryTable, Column: restMops})
	schema.AddCopyConstraint("rest_call_ops", air.CellRef{Table: EventTable, Column: restCallOps},
		air.CellRef{Table: FrameTable, Column: restPushed})
	//
	if err := schema.Validate(); err != nil {
		panic(fmt.Sprintf("malformed circuit: %v", err))
	}
	//
	return &Circuit{cfg, schema}
}

// Schema returns the constraints of this circuit.
func (c *Circuit) Schema() *air.Schema {
	return c.schema
}

// Assign the columns of every table for a given witness, including computed
// columns.  Tables are assigned in parallel, and the rows of the event table
// in parallel batches.
func (c *Circuit) Assign(w Witness) (*air.Trace, error) {
	var (
		stats  = util.NewPerfStats()
		assign = []func() (*air.Table, error){
			func() (*air.Table, error) { return assignEvents(c.cfg, w.Events) },
			func() (*air.Table, error) { return assignMemory(c.cfg, w.Memory) },
			func() (*air.Table, error) { return assignFrames(w.Frames), nil },
			func() (*air.Table, error) { return assignCode(w.Image), nil },
			func() (*air.Table, error) { return assignBranches(w.Image), nil },
			func() (*air.Table, error) { return assignInit(w.Image), nil },
			func() (*air.Table, error) { return assignElements(w.Image), nil },
		}
		assigned = make([]*air.Table, len(assign))
		tasks    = make([]func() error, len(assign))
	)
	//
	for i, fn := range assign {
		tasks[i] = func() (err error) {
			assigned[i], err = fn()
			return err
		}
	}
	//
	if err := util.ParallelTasks(c.cfg.Parallel, tasks...); err != nil {
		return nil, err
	}
	//
	tr, err := air.NewTrace(assigned...)
	if err != nil {
		return nil, err
	} else if err := c.schema.ExpandTrace(tr); err != nil {
		return nil, err
	}
	//
	stats.Log(fmt.Sprintf("Assigning %d cells", tr.Cells()))
	//
	return tr, nil
}

// Check assigns a given witness and checks it against every constraint of
// this circuit.
func (c *Circuit) Check(w Witness) error {
	tr, err := c.Assign(w)
	if err != nil {
		return err
	}
	//
	if err := air.Accepts(c.schema, tr, c.cfg.Parallel); err != nil {
		return err
	}
	//
	log.Debugf("circuit accepts %d steps (%d constraints)", w.Events.Len(), len(c.schema.Constraints()))
	//
	return nil
}

// CheckSlices checks every slice of an execution against a circuit for a
// given configuration.
func CheckSlices(cfg config.Config, slices []*slice.Slice) error {
	var (
		c     = New(cfg)
		tasks = make([]func() error, len(slices))
	)
	//
	for i, s := range slices {
		tasks[i] = func() error {
			if err := c.Check(FromSlice(s)); err != nil {
				return fmt.Errorf("slice %d: %w", s.Index, err)
			}
			//
			return nil
		}
	}
	//
	return util.ParallelTasks(cfg.Parallel, tasks...)
}
