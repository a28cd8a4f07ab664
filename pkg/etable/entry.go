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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
)

// Entry is a single dynamically executed instruction, as emitted by the
// tracer.  The stack pointer and allocated pages describe the state before
// the instruction executes.  Entries are immutable once appended.
type Entry struct {
	Eid                  uint32
	Fid                  uint32
	Iid                  uint32
	Sp                   uint32
	AllocatedMemoryPages uint32
	// Eid of the call which pushed the current frame (0 for bootstrap frames).
	LastJumpEid uint32
	// Step is nil only for the synthesised terminal row.
	Step StepInfo
}

// Address returns the address of the instruction executed by this entry.
func (e *Entry) Address() itable.Address {
	return itable.Address{Fid: e.Fid, Iid: e.Iid}
}

// FrameID returns the frame identifier for this entry.
func (e *Entry) FrameID() uint32 {
	return e.LastJumpEid
}

// SameState checks whether two entries describe the same machine state,
// ignoring the step taken.
func (e *Entry) SameState(o *Entry) bool {
	return e.Eid == o.Eid && e.Fid == o.Fid && e.Iid == o.Iid && e.Sp == o.Sp &&
		e.AllocatedMemoryPages == o.AllocatedMemoryPages && e.LastJumpEid == o.LastJumpEid
}

func (e Entry) String() string {
	return fmt.Sprintf("#%d %d:%d sp=%d pages=%d frame=%d %T", e.Eid, e.Fid, e.Iid, e.Sp,
		e.AllocatedMemoryPages, e.LastJumpEid, e.Step)
}
