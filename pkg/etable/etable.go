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
package etable

import (
	"fmt"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util/collection/stack"
	log "github.com/sirupsen/logrus"
)

// Counters are carried from row to row alongside the machine state.  The
// remaining counts decrease towards zero at the end of a slice, whilst the
// indices increase from their values at the start of the slice.
type Counters struct {
	RestMops              uint64
	RestCallOps           uint32
	RestReturnOps         uint32
	PublicInputIndex      uint32
	ExternalHostCallIndex uint32
	ContextInputIndex     uint32
	ContextOutputIndex    uint32
}

// Indices returns a copy of these counters retaining only the indices.
func (c Counters) Indices() Counters {
	return Counters{
		PublicInputIndex:      c.PublicInputIndex,
		ExternalHostCallIndex: c.ExternalHostCallIndex,
		ContextInputIndex:     c.ContextInputIndex,
		ContextOutputIndex:    c.ContextOutputIndex,
	}
}

// Row is an enabled row of the event table.
type Row struct {
	Entry
	Counters
	// Instruction executed
	Instruction *itable.Entry
	// Transition to the following row
	Transition Transition
}

// Table is the event table of a slice.  The enabled rows are followed by a
// single disabled boundary row which records the state after the last enabled
// row.  For all but the last slice, this is the first row of the next slice.
type Table struct {
	rows []Row
	post Row
}

// Build the event table for a given sequence of entries, followed by a given
// boundary entry.  When no boundary entry is given, the entries are the end of
// execution and the boundary is the terminal state following the last entry.
// The instruction of every entry is looked up, its contract determined, and
// the per-row counters computed.  This does not check the transitions between
// rows (see Check).
func Build(cfg config.Config, ctx *Context, code *itable.Table, entries []Entry, post *Entry,
	start Counters) (*Table, error) {
	stats := util.NewPerfStats()
	// Derive transitions in parallel.
	rows, err := util.ParallelMap(uint(len(entries)), cfg.BatchSize, cfg.Parallel,
		func(first, last uint) ([]Row, error) {
			batch := make([]Row, 0, last-first)
			//
			for i := first; i < last; i++ {
				row, err := buildRow(ctx, code, &entries[i])
				if err != nil {
					return nil, err
				}
				//
				batch = append(batch, row)
			}
			//
			return batch, nil
		})
	//
	if err != nil {
		return nil, err
	}
	//
	for i := range rows {
		if rows[i].AllocatedMemoryPages > cfg.MaxMemoryPages {
			return nil, failure.Capacity(failure.PagesExceedLimit, uint64(rows[i].AllocatedMemoryPages),
				uint64(cfg.MaxMemoryPages))
		}
	}
	//
	if post == nil && len(rows) == 0 {
		return nil, fmt.Errorf("empty execution has no terminal state")
	} else if post == nil {
		terminal := Terminal(&rows[len(rows)-1])
		post = &terminal
	}
	//
	tbl := &Table{rows, Row{Entry: *post}}
	tbl.assignCounters(start.Indices())
	stats.LogRows("Building event table", uint(len(rows)))
	//
	return tbl, nil
}

func buildRow(ctx *Context, code *itable.Table, e *Entry) (Row, error) {
	instr, err := code.Get(e.Fid, e.Iid)
	if err != nil {
		return Row{}, err
	}
	//
	t, err := Contract(ctx, e, instr.Opcode)
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", instr.Opcode, err)
	}
	//
	return Row{Entry: *e, Instruction: instr, Transition: t}, nil
}

// Terminal returns the state following the final return of an execution,
// which resumes in the terminal frame at (0,0).
func Terminal(last *Row) Entry {
	return Entry{
		Eid:                  last.Eid + 1,
		Sp:                   uint32(int64(last.Sp) + last.Transition.SpDelta),
		AllocatedMemoryPages: last.AllocatedMemoryPages + last.Transition.PagesDelta,
	}
}

// Forward sweep for indices, backward sweep for remaining counts.
func (p *Table) assignCounters(start Counters) {
	next := start
	//
	for i := range p.rows {
		t := &p.rows[i].Transition
		p.rows[i].Counters = next
		next.PublicInputIndex += t.PublicInput
		next.ExternalHostCallIndex += t.ExternalHostCall
		next.ContextInputIndex += t.ContextInput
		next.ContextOutputIndex += t.ContextOutput
	}
	//
	p.post.Counters = next
	//
	var rest Counters
	//
	for i := len(p.rows) - 1; i >= 0; i-- {
		t := &p.rows[i].Transition
		rest.RestMops += uint64(len(t.Memory))
		rest.RestCallOps += t.CallOps
		rest.RestReturnOps += t.ReturnOps
		//
		p.rows[i].RestMops = rest.RestMops
		p.rows[i].RestCallOps = rest.RestCallOps
		p.rows[i].RestReturnOps = rest.RestReturnOps
	}
}

// Window returns the table formed from the enabled rows [start,end) of this
// table.  Its boundary row is the row at end, or the boundary row of this
// table when end is the length of this table.
func (p *Table) Window(start, end uint) *Table {
	var (
		rows = slices.Clone(p.rows[start:end])
		post = p.post.Entry
		from = p.post.Counters
	)
	//
	if end < uint(len(p.rows)) {
		post = p.rows[end].Entry
	}
	//
	if start < uint(len(p.rows)) {
		from = p.rows[start].Counters
	}
	//
	tbl := &Table{rows, Row{Entry: post}}
	tbl.assignCounters(from.Indices())
	//
	return tbl
}

// Rows returns the enabled rows of this table.
func (p *Table) Rows() []Row {
	return p.rows
}

// Len returns the number of enabled rows.
func (p *Table) Len() uint {
	return uint(len(p.rows))
}

// Post returns the boundary row, which holds the state after the last enabled
// row.
func (p *Table) Post() *Row {
	return &p.post
}

// First returns the first row of the table, which is the boundary row when
// there are no enabled rows.
func (p *Table) First() *Row {
	if len(p.rows) == 0 {
		return &p.post
	}
	//
	return &p.rows[0]
}

// Entries returns the entries of the enabled rows.
func (p *Table) Entries() []Entry {
	entries := make([]Entry, len(p.rows))
	//
	for i := range p.rows {
		entries[i] = p.rows[i].Entry
	}
	//
	return entries
}

// RestMops returns the number of memory operations in this table.
func (p *Table) RestMops() uint64 {
	return p.First().RestMops
}

// RestCallOps returns the number of calls in this table.
func (p *Table) RestCallOps() uint32 {
	return p.First().RestCallOps
}

// MemoryEvents returns the memory accesses of every enabled row, in row order.
func (p *Table) MemoryEvents() []mtable.Entry {
	events := make([]mtable.Entry, 0, p.RestMops())
	//
	for i := range p.rows {
		events = append(events, p.rows[i].Transition.Memory...)
	}
	//
	return events
}

// Frames constructs the frame table of this event table, by pushing a frame
// for every call.
func (p *Table) Frames(static [2]jtable.StaticEntry, inherited []jtable.Entry) (*jtable.Table, error) {
	frames, err := jtable.NewTable(static, inherited...)
	if err != nil {
		return nil, err
	}
	//
	for i := range p.rows {
		row := &p.rows[i]
		//
		if row.Transition.Next == Call {
			if err := frames.Push(row.Eid, row.LastJumpEid, row.Transition.Target.Fid, row.Address()); err != nil {
				return nil, err
			}
		}
	}
	//
	return frames, nil
}

// ActiveFrames determines the call stack after the last enabled row, given the
// call stack before the first.  Frames are ordered from outermost to
// innermost.
func (p *Table) ActiveFrames(inherited []jtable.Entry) ([]jtable.Entry, error) {
	frames := stack.NewStack(inherited...)
	//
	for i := range p.rows {
		row := &p.rows[i]
		//
		switch {
		case row.Transition.Next == Call:
			frames.Push(jtable.Entry{Eid: row.Eid, LastJumpEid: row.LastJumpEid,
				CalleeFid: row.Transition.Target.Fid, Caller: row.Address()})
		case row.Transition.Next == Return && row.LastJumpEid != 0:
			if frames.IsEmpty() || frames.Peek(0).Eid != row.LastJumpEid {
				return nil, failure.Frame(row.Eid, row.LastJumpEid, "return from inactive frame")
			}
			//
			frames.Pop()
		}
	}
	//
	return frames.Items(), nil
}

// Check every transition of this table, including into the boundary row.  The
// boundary row of the last slice is not followed by anything.  Returns are
// resolved against a given frame table.
func (p *Table) Check(frames *jtable.Table) error {
	for i := range p.rows {
		next := &p.post
		//
		if i+1 < len(p.rows) {
			next = &p.rows[i+1]
		}
		//
		if err := p.checkTransition(&p.rows[i], next, frames); err != nil {
			return err
		}
	}
	//
	return nil
}

func (p *Table) checkTransition(row *Row, next *Row, frames *jtable.Table) error {
	var (
		t       = &row.Transition
		target  = jtable.Target{Fid: row.Fid, Iid: row.Iid + 1, FrameID: row.LastJumpEid}
		counted = row.Counters
	)
	//
	switch t.Next {
	case Jump:
		target.Iid = t.Target.Iid
	case Call:
		target = jtable.Target{Fid: t.Target.Fid, Iid: 0, FrameID: row.Eid}
	case Return:
		var err error
		//
		if target, err = frames.ReturnTarget(row.Eid, row.LastJumpEid, row.Fid); err != nil {
			return err
		}
	}
	//
	counted.RestMops -= uint64(len(t.Memory))
	counted.RestCallOps -= t.CallOps
	counted.RestReturnOps -= t.ReturnOps
	counted.PublicInputIndex += t.PublicInput
	counted.ExternalHostCallIndex += t.ExternalHostCall
	counted.ContextInputIndex += t.ContextInput
	counted.ContextOutputIndex += t.ContextOutput
	//
	switch {
	case next.Eid != row.Eid+1:
		return failure.Lookup("etable", uint64(row.Eid), "next eid is %d", next.Eid)
	case int64(next.Sp) != int64(row.Sp)+t.SpDelta:
		return failure.Lookup("etable", uint64(row.Eid), "next sp is %d (expected %d)", next.Sp,
			int64(row.Sp)+t.SpDelta)
	case next.AllocatedMemoryPages != row.AllocatedMemoryPages+t.PagesDelta:
		return failure.Lookup("etable", uint64(row.Eid), "next pages is %d", next.AllocatedMemoryPages)
	case next.Fid != target.Fid || next.Iid != target.Iid:
		if t.Next == Return {
			return failure.Frame(row.Eid, row.LastJumpEid, "resumed at %s (expected %d:%d)", next.Address(),
				target.Fid, target.Iid)
		}
		//
		return failure.Lookup("etable", uint64(row.Eid), "next instruction is %s (expected %d:%d)", next.Address(),
			target.Fid, target.Iid)
	case next.LastJumpEid != target.FrameID:
		return failure.Frame(row.Eid, row.LastJumpEid, "next frame is %d (expected %d)", next.LastJumpEid,
			target.FrameID)
	case next.Counters != counted:
		return failure.Lookup("etable", uint64(row.Eid), "inconsistent counters %+v (expected %+v)", next.Counters,
			counted)
	}
	//
	return nil
}

// FrameOps counts the calls within this table, along with the returns from
// dynamic frames.  Every such return must resolve against a given frame table.
func (p *Table) FrameOps(frames *jtable.Table) (calls uint, returns uint, err error) {
	for i := range p.rows {
		row := &p.rows[i]
		//
		switch row.Transition.Next {
		case Call:
			calls++
		case Return:
			if row.LastJumpEid == 0 {
				continue
			} else if _, err := frames.ReturnTarget(row.Eid, row.LastJumpEid, row.Fid); err != nil {
				return 0, 0, err
			}
			//
			returns++
		}
	}
	//
	return calls, returns, nil
}

// Balance certifies that every call within this (complete) table is matched by
// a return from a dynamic frame.
func (p *Table) Balance(frames *jtable.Table) error {
	calls, returns, err := p.FrameOps(frames)
	if err != nil {
		return err
	}
	//
	log.Debugf("frame balance: %d calls, %d returns", calls, returns)
	//
	return jtable.Balance(calls, returns)
}
