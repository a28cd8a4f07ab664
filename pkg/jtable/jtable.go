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
package jtable

import (
	"fmt"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
)

// Entry is a dynamic frame, pushed by a call.  The frame is identified by the
// eid of the call which pushed it.
type Entry struct {
	Eid uint32
	// Frame of the caller.
	LastJumpEid uint32
	// Function being called.
	CalleeFid uint32
	// Instruction which made the call.
	Caller itable.Address
}

func (e Entry) String() string {
	return fmt.Sprintf("frame %d (caller frame %d, callee %d, from %s)", e.Eid, e.LastJumpEid, e.CalleeFid, e.Caller)
}

// StaticEntry is a bootstrap frame, which exists before execution starts.
// Returning from such a frame resumes at exactly (Fid, Iid), rather than the
// instruction following a call.
type StaticEntry struct {
	Enable      bool
	FrameID     uint32
	NextFrameID uint32
	CalleeFid   uint32
	Fid         uint32
	Iid         uint32
}

// Static frame indices.
const (
	EntryFrame = 0
	StartFrame = 1
)

// StaticFrames constructs the bootstrap frames for a module.  Returning from
// the entry function terminates execution at (0,0).  Returning from the start
// function (when there is one) continues at the first instruction of the entry
// function.
func StaticFrames(entry uint32, start uint32, hasStart bool) [2]StaticEntry {
	var frames [2]StaticEntry
	//
	frames[EntryFrame] = StaticEntry{Enable: true, CalleeFid: entry}
	frames[StartFrame] = StaticEntry{Enable: hasStart, CalleeFid: start, Fid: entry}
	//
	return frames
}

// Target is the state in which execution resumes after a return.
type Target struct {
	Fid     uint32
	Iid     uint32
	FrameID uint32
}

// Table is the frame table of a slice: the frames pushed within the slice,
// together with those inherited from earlier slices and the static frames.
type Table struct {
	static    [2]StaticEntry
	inherited []Entry
	entries   []Entry
	// Position of each frame, where inherited frames come first.
	index map[uint32]int
}

// NewTable constructs a frame table with given static frames and frames
// inherited from earlier slices.
func NewTable(static [2]StaticEntry, inherited ...Entry) (*Table, error) {
	p := &Table{static, slices.Clone(inherited), nil, make(map[uint32]int)}
	//
	for i, e := range p.inherited {
		if _, ok := p.index[e.Eid]; ok || e.Eid == 0 {
			return nil, fmt.Errorf("invalid inherited frame %d", e.Eid)
		}
		//
		p.index[e.Eid] = i
	}
	//
	return p, nil
}

// Push a frame for a call executed at a given eid.
func (p *Table) Push(eid, lastJumpEid, calleeFid uint32, caller itable.Address) error {
	if _, ok := p.index[eid]; ok || eid == 0 {
		return fmt.Errorf("invalid frame %d", eid)
	}
	//
	p.index[eid] = len(p.inherited) + len(p.entries)
	p.entries = append(p.entries, Entry{eid, lastJumpEid, calleeFid, caller})
	//
	return nil
}

// Lookup the frame pushed at a given eid.
func (p *Table) Lookup(eid uint32) (*Entry, bool) {
	i, ok := p.index[eid]
	//
	if !ok {
		return nil, false
	} else if i < len(p.inherited) {
		return &p.inherited[i], true
	}
	//
	return &p.entries[i-len(p.inherited)], true
}

// Entries returns the frames pushed within this slice.
func (p *Table) Entries() []Entry {
	return p.entries
}

// Inherited returns the frames inherited from earlier slices.
func (p *Table) Inherited() []Entry {
	return p.inherited
}

// Static returns the bootstrap frames.
func (p *Table) Static() [2]StaticEntry {
	return p.static
}

// Len returns the number of dynamic frames (inherited or pushed).
func (p *Table) Len() uint {
	return uint(len(p.inherited) + len(p.entries))
}

// ReturnTarget determines where a return executed at a given eid, from a
// given frame within a given function, resumes.  Returns from frame 0 resolve
// against the static frames.  A mismatch is reported as a frame mismatch.
func (p *Table) ReturnTarget(eid, frame, fid uint32) (Target, error) {
	if frame == 0 {
		for _, s := range p.static {
			if s.Enable && s.CalleeFid == fid {
				return Target{s.Fid, s.Iid, s.NextFrameID}, nil
			}
		}
		//
		return Target{}, failure.Frame(eid, frame, "no static frame for function %d", fid)
	}
	//
	e, ok := p.Lookup(frame)
	//
	if !ok {
		return Target{}, failure.Frame(eid, frame, "unknown frame")
	} else if e.CalleeFid != fid {
		return Target{}, failure.Frame(eid, frame, "frame belongs to function %d, not %d", e.CalleeFid, fid)
	}
	//
	return Target{e.Caller.Fid, e.Caller.Iid + 1, e.LastJumpEid}, nil
}

// Balance certifies that every call has been matched by a return.  That is,
// the number of dynamic frames equals the number of returns which resolved
// against them.
func Balance(calls, returns uint) error {
	if calls != returns {
		return failure.Frame(0, 0, "unbalanced frames (%d calls, %d returns)", calls, returns)
	}
	//
	return nil
}
