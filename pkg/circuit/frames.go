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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/air"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
)

// Frame table columns
const (
	isStatic  = "is_static"
	pushed    = "pushed"
	frameID   = "frame_id"
	nextFrame = "next_frame"
	calleeFid = "callee_fid"
	callerFid = "caller_fid"
	callerIid = "caller_iid"
	resumeIid = "resume_iid"
)

var frameColumns = []string{
	enabled, isStatic, pushed, frameID, nextFrame, calleeFid, callerFid, callerIid, resumeIid, restPushed,
}

func emitFrames(schema *air.Schema) {
	E := col(enabled)
	//
	schema.AddTable(FrameTable, frameColumns...)
	binary(schema, FrameTable, enabled, isStatic, pushed)
	vanish(schema, FrameTable, "pushed:dynamic", col(pushed).Mul(col(isStatic)))
	vanish(schema, FrameTable, "pushed:enabled", col(pushed).Mul(not(E)))
	vanish(schema, FrameTable, "static:frame_id", col(isStatic).Mul(col(frameID)))
	// Returns resume after the call, except from static frames.
	vanish(schema, FrameTable, resumeIid,
		E.Mul(col(resumeIid).Sub(col(callerIid)).Sub(not(col(isStatic)))))
	vanish(schema, FrameTable, restPushed, col(restPushed).Sub(col(pushed)).Sub(next(restPushed)))
	schema.AddRangeConstraint(frameID+":u32", FrameTable, frameID, 32)
}

// assignFrames assigns the frame table: the static frames, followed by the
// inherited frames and those pushed within the slice.
func assignFrames(frames *jtable.Table) *air.Table {
	var (
		static    = frames.Static()
		inherited = frames.Inherited()
		entries   = frames.Entries()
		n         = uint(len(static) + len(inherited) + len(entries))
		tbl       = air.NewTable(FrameTable, n+1)
		row       uint
	)
	//
	for _, c := range frameColumns {
		tbl.AddColumn(c)
	}
	//
	for _, s := range static {
		set(tbl, enabled, row, flag(s.Enable))
		set(tbl, isStatic, row, 1)
		set(tbl, frameID, row, uint64(s.FrameID))
		set(tbl, nextFrame, row, uint64(s.NextFrameID))
		set(tbl, calleeFid, row, uint64(s.CalleeFid))
		set(tbl, callerFid, row, uint64(s.Fid))
		set(tbl, callerIid, row, uint64(s.Iid))
		set(tbl, resumeIid, row, uint64(s.Iid))
		row++
	}
	//
	assign := func(e *jtable.Entry, isPushed bool) {
		set(tbl, enabled, row, 1)
		set(tbl, pushed, row, flag(isPushed))
		set(tbl, frameID, row, uint64(e.Eid))
		set(tbl, nextFrame, row, uint64(e.LastJumpEid))
		set(tbl, calleeFid, row, uint64(e.CalleeFid))
		set(tbl, callerFid, row, uint64(e.Caller.Fid))
		set(tbl, callerIid, row, uint64(e.Caller.Iid))
		set(tbl, resumeIid, row, uint64(e.Caller.Iid)+1)
		row++
	}
	//
	for i := range inherited {
		assign(&inherited[i], false)
	}
	//
	for i := range entries {
		assign(&entries[i], true)
	}
	// Remaining pushed frames
	for i, rest := int(n)-1, uint64(0); i >= 0; i-- {
		rest += flag(i >= len(static)+len(inherited))
		set(tbl, restPushed, uint(i), rest)
	}
	//
	return tbl
}
