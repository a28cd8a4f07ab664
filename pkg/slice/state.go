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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
)

// State is the machine state at a slice boundary.  The post-state of a slice
// must be identical to the pre-state of the next.
type State struct {
	Eid     uint32
	Fid     uint32
	Iid     uint32
	FrameID uint32
	Sp      uint32
	// Allocated pages at the boundary.
	InitialPages uint32
	// Page limit of the module.
	MaxPages              uint32
	PublicInputIndex      uint32
	ContextInputIndex     uint32
	ContextOutputIndex    uint32
	ExternalHostCallIndex uint32
}

// StateOf extracts the state of a given event table row.
func StateOf(row *etable.Row, maxPages uint32) State {
	return State{
		Eid:                   row.Eid,
		Fid:                   row.Fid,
		Iid:                   row.Iid,
		FrameID:               row.LastJumpEid,
		Sp:                    row.Sp,
		InitialPages:          row.AllocatedMemoryPages,
		MaxPages:              maxPages,
		PublicInputIndex:      row.PublicInputIndex,
		ContextInputIndex:     row.ContextInputIndex,
		ContextOutputIndex:    row.ContextOutputIndex,
		ExternalHostCallIndex: row.ExternalHostCallIndex,
	}
}

// IsTerminal checks whether this is the state following the final return.
func (s State) IsTerminal() bool {
	return s.Fid == 0 && s.Iid == 0 && s.FrameID == 0
}

func (s State) String() string {
	return fmt.Sprintf("#%d %d:%d frame=%d sp=%d pages=%d/%d io=(%d,%d,%d,%d)", s.Eid, s.Fid, s.Iid, s.FrameID, s.Sp,
		s.InitialPages, s.MaxPages, s.PublicInputIndex, s.ContextInputIndex, s.ContextOutputIndex,
		s.ExternalHostCallIndex)
}
