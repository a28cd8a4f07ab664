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
package slice

import (
	"fmt"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/image"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	log "github.com/sirupsen/logrus"
)

// Slice is a contiguous window of an execution which fits within the
// capacity of a single circuit.  Its event table ends in a boundary row which
// is shared with the next slice.
type Slice struct {
	Index  uint
	Events *etable.Table
	Memory *mtable.Table
	Frames *jtable.Table
	// Image at the start of this slice.
	PreImage *image.Image
	// Image at the end of this slice.
	PostImage *image.Image
	PreState  State
	PostState State
	IsLast    bool
}

// Split an execution of a given module into slices.  Each slice holds at most
// MaxRowsPerSlice event rows (including its boundary row), and its memory table
// is within MaxMemoryRowsPerSlice.  A step whose memory accesses cannot fit
// into an empty slice is reported as exceeding capacity.
func Split(cfg config.Config, m *tables.Module, trace []etable.Entry) ([]*Slice, error) {
	stats := util.NewPerfStats()
	//
	if err := m.Validate(cfg); err != nil {
		return nil, err
	} else if err := tables.CheckInitial(cfg, m, trace); err != nil {
		return nil, err
	}
	//
	full, err := etable.Build(cfg, m.Context(cfg), m.Code, trace, nil, etable.Counters{})
	if err != nil {
		return nil, fmt.Errorf("event table: %w", err)
	}
	//
	bounds, err := Partition(cfg, full)
	if err != nil {
		return nil, err
	}
	//
	var (
		result    = make([]*Slice, 0, len(bounds))
		memory    = m.Memory
		inherited []jtable.Entry
		pre       = m.Image()
		maxPages  = m.PageLimit(cfg)
	)
	//
	for i, b := range bounds {
		events := full.Window(b.Start, b.End)
		//
		frames, err := events.Frames(m.StaticFrames(), inherited)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		//
		accesses := events.MemoryEvents()
		//
		mtbl, err := mtable.Build(accesses, memory)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		} else if mtbl.Len() > cfg.MaxMemoryRowsPerSlice {
			return nil, failure.Capacity(failure.EventRowsExceedLimit, uint64(mtbl.Len()),
				uint64(cfg.MaxMemoryRowsPerSlice))
		}
		//
		post := pre.WithMemory(memory.Apply(accesses))
		//
		result = append(result, &Slice{
			Index:     uint(i),
			Events:    events,
			Memory:    mtbl,
			Frames:    frames,
			PreImage:  pre,
			PostImage: post,
			PreState:  StateOf(events.First(), maxPages),
			PostState: StateOf(events.Post(), maxPages),
			IsLast:    i+1 == len(bounds),
		})
		//
		if inherited, err = events.ActiveFrames(inherited); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		//
		memory, pre = post.Memory(), post
	}
	//
	stats.LogRows(fmt.Sprintf("Splitting execution into %d slices", len(result)), uint(len(trace)))
	//
	return result, nil
}

// Bound identifies the enabled rows [Start,End) of a slice.
type Bound struct {
	Start uint
	End   uint
}

// Partition determines the slice boundaries for a given event table.  Slices
// are filled greedily.  Since every access may require an additional Init row,
// each access is budgeted as two memory rows.
func Partition(cfg config.Config, events *etable.Table) ([]Bound, error) {
	var (
		rows      = events.Rows()
		n         = uint(len(rows))
		maxEvents = cfg.MaxRowsPerSlice - 1
		bounds    []Bound
	)
	//
	for start := uint(0); start < n; {
		var (
			end    = start
			memory uint
		)
		//
		for end < n && end-start < maxEvents {
			ith := 2 * uint(len(rows[end].Transition.Memory))
			//
			if memory+ith > cfg.MaxMemoryRowsPerSlice {
				break
			}
			//
			memory += ith
			end++
		}
		//
		if end == start {
			return nil, failure.Capacity(failure.EventRowsExceedLimit,
				2*uint64(len(rows[start].Transition.Memory)), uint64(cfg.MaxMemoryRowsPerSlice))
		}
		//
		bounds = append(bounds, Bound{start, end})
		start = end
	}
	//
	return bounds, nil
}

// Join reconstructs the trace of an execution from its slices.  The boundary
// row of each slice must be the first row of the next.
func Join(slices []*Slice) ([]etable.Entry, error) {
	var trace []etable.Entry
	//
	for i, s := range slices {
		if i+1 < len(slices) {
			next := slices[i+1].Events.First()
			//
			if !s.Events.Post().SameState(&next.Entry) {
				return nil, fmt.Errorf("slice %d ends at %s, but slice %d starts at %s", i, s.Events.Post().Entry,
					i+1, next.Entry)
			}
		}
		//
		trace = append(trace, s.Events.Entries()...)
	}
	//
	return trace, nil
}

// Check a single slice in isolation.
func (s *Slice) Check() error {
	var (
		events  = s.Events
		post    = s.PreImage.Memory().Apply(events.MemoryEvents())
		first   = StateOf(events.First(), s.PreState.MaxPages)
		last    = StateOf(events.Post(), s.PostState.MaxPages)
		handles = []func() error{
			func() error { return events.Check(s.Frames) },
			func() error { return s.Memory.Check() },
			func() error { return s.Memory.CheckInit(s.PreImage.Memory()) },
			func() error { return s.Memory.CheckEvents(events.MemoryEvents()) },
		}
	)
	//
	for _, fn := range handles {
		if err := fn(); err != nil {
			return fmt.Errorf("slice %d: %w", s.Index, err)
		}
	}
	//
	switch {
	case events.RestMops() != s.Memory.RestMops():
		return failure.Lookup("mtable", 0, "slice %d has %d memory operations, but %d memory rows", s.Index,
			events.RestMops(), s.Memory.RestMops())
	case !post.Equal(s.PostImage.Memory()):
		return fmt.Errorf("slice %d post-image memory is inconsistent", s.Index)
	case first != s.PreState:
		return fmt.Errorf("slice %d starts at %s, not %s", s.Index, first, s.PreState)
	case last != s.PostState:
		return fmt.Errorf("slice %d ends at %s, not %s", s.Index, last, s.PostState)
	case s.IsLast && !s.PostState.IsTerminal():
		return fmt.Errorf("last slice ends at %s", s.PostState)
	}
	//
	return nil
}

// CheckAll checks every slice (in parallel), along with the continuity between
// adjacent slices.  Calls and returns must balance across the execution.
func CheckAll(cfg config.Config, slices []*Slice) error {
	stats := util.NewPerfStats()
	//
	tasks := make([]func() error, len(slices))
	//
	for i, s := range slices {
		tasks[i] = s.Check
	}
	//
	if err := util.ParallelTasks(cfg.Parallel, tasks...); err != nil {
		return err
	} else if err := checkContinuity(slices); err != nil {
		return err
	}
	//
	var calls, returns uint
	//
	for _, s := range slices {
		c, r, err := s.Events.FrameOps(s.Frames)
		if err != nil {
			return err
		}
		//
		calls, returns = calls+c, returns+r
	}
	//
	stats.Log(fmt.Sprintf("Checking %d slices", len(slices)))
	//
	return jtable.Balance(calls, returns)
}

func checkContinuity(slices []*Slice) error {
	var inherited []jtable.Entry
	//
	for i, s := range slices {
		if s.IsLast != (i+1 == len(slices)) {
			return fmt.Errorf("slice %d incorrectly marked as last", i)
		} else if !equalFrames(inherited, s.Frames.Inherited()) {
			return fmt.Errorf("slice %d inherits incorrect frames", i)
		}
		//
		active, err := s.Events.ActiveFrames(inherited)
		if err != nil {
			return fmt.Errorf("slice %d: %w", i, err)
		}
		//
		inherited = active
		//
		if i+1 == len(slices) {
			break
		}
		//
		next := slices[i+1]
		//
		if s.PostState != next.PreState {
			return fmt.Errorf("slice %d ends at %s, but slice %d starts at %s", i, s.PostState, i+1, next.PreState)
		} else if !s.PostImage.Memory().Equal(next.PreImage.Memory()) {
			return fmt.Errorf("slice %d post-image differs from slice %d pre-image", i, i+1)
		} else if s.PostImage.Hash() != next.PreImage.Hash() {
			return fmt.Errorf("slice %d post-image hash differs from slice %d pre-image hash", i, i+1)
		}
	}
	//
	log.Debugf("continuity holds across %d slices", len(slices))
	//
	return nil
}

func equalFrames(a, b []jtable.Entry) bool {
	return slices.Equal(a, b) || (len(a) == 0 && len(b) == 0)
}
