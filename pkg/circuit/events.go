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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/image"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Event table columns
const (
	eid            = "eid"
	fid            = "fid"
	iid            = "iid"
	sp             = "sp"
	mpages         = "mpages"
	frame          = "frame"
	code           = "code"
	spDelta        = "sp_delta"
	pagesDelta     = "pages_delta"
	mops           = "mops"
	isSeq          = "is_seq"
	isJump         = "is_jump"
	isCall         = "is_call"
	isReturn       = "is_return"
	targetFid      = "target_fid"
	targetIid      = "target_iid"
	isBrTable      = "is_br_table"
	brIndex        = "br_index"
	isCallIndirect = "is_call_indirect"
	elemOffset     = "elem_offset"
	inputIndex     = "input_index"
	input          = "input"
	externalIndex  = "external_index"
	external       = "external"
	ctxInputIndex  = "context_input_index"
	contextInput   = "context_input"
	ctxOutputIndex = "context_output_index"
	contextOutput  = "context_output"
	restReturnOps  = "rest_return_ops"
)

// Memory slot fields
const (
	slotEnabled = "enabled"
	slotLoc     = "loc"
	slotOffset  = "offset"
	slotAccess  = "access"
	slotType    = "type"
	slotValue   = "value"
)

var slotFields = []string{slotEnabled, slotLoc, slotOffset, slotAccess, slotType, slotValue}

func slot(s uint, field string) string {
	return fmt.Sprintf("m%d_%s", s, field)
}

var eventColumns = append([]string{
	enabled, eid, fid, iid, sp, mpages, frame, code, spDelta, pagesDelta, mops, restMops, restCallOps,
	restReturnOps, isSeq, isJump, isCall, isReturn, targetFid, targetIid, isBrTable, brIndex, brDrop, brKeep,
	brKeepType, isCallIndirect, elemOffset, inputIndex, input, externalIndex, external, ctxInputIndex,
	contextInput, ctxOutputIndex, contextOutput, condInv, heapInner,
}, decodeColumns()...)

func emitEvents(schema *air.Schema, cfg config.Config) {
	var (
		E     = col(enabled)
		kinds = air.Sum(cols(isSeq, isJump, isCall, isReturn)...)
		used  = make([]air.Expr, etable.MaxSlots)
	)
	//
	schema.AddTable(EventTable, eventColumns...)
	binary(schema, EventTable, enabled, isSeq, isJump, isCall, isReturn, isBrTable, isCallIndirect)
	// Enabled rows form a prefix, and each takes exactly one kind of step.
	vanish(schema, EventTable, "enabled:prefix", next(enabled).Mul(not(E)))
	vanish(schema, EventTable, "kind", E.Mul(kinds.Sub(constant(1))))
	vanish(schema, EventTable, "kind:disabled", not(E).Mul(kinds))
	// State transitions
	vanish(schema, EventTable, "eid", E.Mul(next(eid).Sub(col(eid)).Sub(constant(1))))
	vanish(schema, EventTable, "sp", E.Mul(next(sp).Sub(col(sp)).Sub(col(spDelta))))
	vanish(schema, EventTable, "mpages", E.Mul(next(mpages).Sub(col(mpages)).Sub(col(pagesDelta))))
	vanish(schema, EventTable, "seq:fid", col(isSeq).Mul(next(fid).Sub(col(fid))))
	vanish(schema, EventTable, "seq:iid", col(isSeq).Mul(next(iid).Sub(col(iid)).Sub(constant(1))))
	vanish(schema, EventTable, "seq:frame", col(isSeq).Mul(next(frame).Sub(col(frame))))
	vanish(schema, EventTable, "jump:fid", col(isJump).Mul(next(fid).Sub(col(fid))))
	vanish(schema, EventTable, "jump:iid", col(isJump).Mul(next(iid).Sub(col(targetIid))))
	vanish(schema, EventTable, "jump:frame", col(isJump).Mul(next(frame).Sub(col(frame))))
	vanish(schema, EventTable, "call:fid", col(isCall).Mul(next(fid).Sub(col(targetFid))))
	vanish(schema, EventTable, "call:iid", col(isCall).Mul(next(iid)))
	vanish(schema, EventTable, "call:frame", col(isCall).Mul(next(frame).Sub(col(eid))))
	vanish(schema, EventTable, "br_table:jump", col(isBrTable).Mul(not(col(isJump))))
	vanish(schema, EventTable, "call_indirect:call", col(isCallIndirect).Mul(not(col(isCall))))
	// Counters
	vanish(schema, EventTable, "input_index", E.Mul(next(inputIndex).Sub(col(inputIndex)).Sub(col(input))))
	vanish(schema, EventTable, "external_index",
		E.Mul(next(externalIndex).Sub(col(externalIndex)).Sub(col(external))))
	vanish(schema, EventTable, ctxInputIndex,
		E.Mul(next(ctxInputIndex).Sub(col(ctxInputIndex)).Sub(col(contextInput))))
	vanish(schema, EventTable, ctxOutputIndex,
		E.Mul(next(ctxOutputIndex).Sub(col(ctxOutputIndex)).Sub(col(contextOutput))))
	vanish(schema, EventTable, restReturnOps, E.Mul(col(restReturnOps).Sub(col(isReturn)).Sub(next(restReturnOps))))
	vanish(schema, EventTable, "rest_return_ops:disabled", not(E).Mul(col(restReturnOps)))
	vanish(schema, EventTable, "rest_call_ops", E.Mul(col(restCallOps).Sub(col(isCall)).Sub(next(restCallOps))))
	vanish(schema, EventTable, "rest_call_ops:disabled", not(E).Mul(col(restCallOps)))
	vanish(schema, EventTable, "rest_mops", E.Mul(col(restMops).Sub(col(mops)).Sub(next(restMops))))
	vanish(schema, EventTable, "rest_mops:disabled", not(E).Mul(col(restMops)))
	// Memory slots
	for s := uint(0); s < etable.MaxSlots; s++ {
		for _, field := range slotFields {
			schema.AddColumn(EventTable, slot(s, field))
		}
		//
		binary(schema, EventTable, slot(s, slotEnabled))
		vanish(schema, EventTable, slot(s, "disabled"), col(slot(s, slotEnabled)).Mul(not(E)))
		//
		used[s] = col(slot(s, slotEnabled))
		//
		schema.AddLookupConstraint(fmt.Sprintf("%s->%s:%d", EventTable, MemoryTable, s),
			EventTable, col(slot(s, slotEnabled)),
			[]air.Expr{col(eid), constant(uint64(s)), col(slot(s, slotLoc)), col(slot(s, slotOffset)),
				col(slot(s, slotAccess)), col(slot(s, slotType)), col(slot(s, slotValue))},
			MemoryTable, accessSelector(),
			[]air.Expr{col(eid), col(emid), col(loc), col(offset), accessKind(), col(varType), col(value)})
	}
	//
	vanish(schema, EventTable, mops, col(mops).Sub(air.Sum(used...)))
	// Static relations
	schema.AddLookupConstraint(EventTable+"->"+CodeTable, EventTable, E, cols(fid, iid, code),
		CodeTable, col(enabled), cols(fid, iid, code))
	schema.AddLookupConstraint(EventTable+"->"+BranchTable, EventTable, col(isBrTable),
		[]air.Expr{col(fid), col(iid), col(brIndex), next(iid), col(brDrop), col(brKeep), col(brKeepType)},
		BranchTable, col(enabled), cols(fid, iid, brIndex, targetIid, brDrop, brKeep, brKeepType))
	schema.AddLookupConstraint(EventTable+"->"+ElementsTable, EventTable, col(isCallIndirect),
		[]air.Expr{col(elemOffset), col(fieldCol(0)), col(targetFid)}, ElementsTable, col(enabled),
		cols(elemOffset, typeIndex, fid))
	// Frames
	schema.AddLookupConstraint(EventTable+"->"+FrameTable+":call", EventTable, col(isCall),
		[]air.Expr{col(eid), col(frame), col(targetFid), col(fid), col(iid)},
		FrameTable, col(pushed), cols(frameID, nextFrame, calleeFid, callerFid, callerIid))
	schema.AddLookupConstraint(EventTable+"->"+FrameTable+":return", EventTable, col(isReturn),
		[]air.Expr{col(frame), col(fid), next(fid), next(iid), next(frame)},
		FrameTable, col(enabled), cols(frameID, calleeFid, callerFid, resumeIid, nextFrame))
	// Instruction semantics
	emitDecode(schema, cfg)
	emitOpcodes(schema, cfg)
	// Fixed ranges
	for _, c := range []string{eid, sp, frame, inputIndex, externalIndex, ctxInputIndex, ctxOutputIndex} {
		schema.AddRangeConstraint(c+":u32", EventTable, c, 32)
	}
	//
	air.ApplyBitwidthGadget(EventTable, mpages, 17, schema)
}

// assignEvents assigns the event table: one row per step, followed by the
// boundary row and then padding.
func assignEvents(cfg config.Config, events *etable.Table) (*air.Table, error) {
	var (
		n      = events.Len()
		height = cfg.MaxRowsPerSlice
		tbl    = air.NewTable(EventTable, height)
		rows   = events.Rows()
	)
	//
	if n+1 > height {
		return nil, failure.Capacity(failure.EventRowsExceedLimit, uint64(n+1), uint64(height))
	}
	// Allocate columns up front, as rows are assigned concurrently.
	for _, c := range eventColumns {
		tbl.AddColumn(c)
	}
	//
	for s := uint(0); s < etable.MaxSlots; s++ {
		for _, field := range slotFields {
			tbl.AddColumn(slot(s, field))
		}
	}
	//
	err := util.ParallelEach(n, cfg.BatchSize, cfg.Parallel, func(start, end uint) error {
		for i := start; i < end; i++ {
			if err := assignEvent(tbl, i, &rows[i]); err != nil {
				return err
			}
		}
		//
		return nil
	})
	//
	if err != nil {
		return nil, err
	}
	//
	assignState(tbl, n, events.Post())
	//
	return tbl, nil
}

// inverse assigns the inverse of a condition (or zero).
func inverse(tbl *air.Table, row uint, cond uint64) {
	var e fr.Element
	//
	e.SetUint64(cond)
	e.Inverse(&e)
	//
	c, _ := tbl.Column(condInv)
	c.Set(row, e)
}

func set(tbl *air.Table, column string, row uint, val uint64) {
	c, _ := tbl.Column(column)
	c.SetUint64(row, val)
}

// Assign the state and counter indices of a row, which are also held by the
// boundary row.
func assignState(tbl *air.Table, i uint, r *etable.Row) {
	set(tbl, eid, i, uint64(r.Eid))
	set(tbl, fid, i, uint64(r.Fid))
	set(tbl, iid, i, uint64(r.Iid))
	set(tbl, sp, i, uint64(r.Sp))
	set(tbl, mpages, i, uint64(r.AllocatedMemoryPages))
	set(tbl, frame, i, uint64(r.LastJumpEid))
	set(tbl, inputIndex, i, uint64(r.PublicInputIndex))
	set(tbl, externalIndex, i, uint64(r.ExternalHostCallIndex))
	set(tbl, ctxInputIndex, i, uint64(r.ContextInputIndex))
	set(tbl, ctxOutputIndex, i, uint64(r.ContextOutputIndex))
	set(tbl, restReturnOps, i, uint64(r.RestReturnOps))
}

func assignEvent(tbl *air.Table, i uint, r *etable.Row) error {
	t := &r.Transition
	//
	assignState(tbl, i, r)
	set(tbl, enabled, i, 1)
	set(tbl, mops, i, uint64(len(t.Memory)))
	set(tbl, restMops, i, r.RestMops)
	set(tbl, restCallOps, i, uint64(r.RestCallOps))
	set(tbl, pagesDelta, i, uint64(t.PagesDelta))
	set(tbl, input, i, uint64(t.PublicInput))
	set(tbl, external, i, uint64(t.ExternalHostCall))
	set(tbl, contextInput, i, uint64(t.ContextInput))
	set(tbl, contextOutput, i, uint64(t.ContextOutput))
	set(tbl, targetFid, i, uint64(t.Target.Fid))
	set(tbl, targetIid, i, uint64(t.Target.Iid))
	set(tbl, isSeq, i, flag(t.Next == etable.Sequential))
	set(tbl, isJump, i, flag(t.Next == etable.Jump))
	set(tbl, isCall, i, flag(t.Next == etable.Call))
	set(tbl, isReturn, i, flag(t.Next == etable.Return))
	//
	c, _ := tbl.Column(code)
	c.Set(i, image.Opcode(&r.Instruction.Code))
	c, _ = tbl.Column(spDelta)
	c.Set(i, signed(t.SpDelta))
	//
	assignDecode(tbl, i, r.Instruction.Opcode)
	//
	switch step := r.Step.(type) {
	case etable.SelectStep:
		inverse(tbl, i, step.Cond)
	case etable.BrIfStep:
		inverse(tbl, i, step.Cond)
	case etable.BrIfEqzStep:
		inverse(tbl, i, step.Cond)
	case etable.BrTableStep:
		br, ok := r.Instruction.Opcode.(opcode.BrTable)
		if !ok || len(br.Targets) == 0 {
			return fmt.Errorf("br_table step at %s", r.Address())
		}
		//
		index := itable.Clamp(step.Index, uint32(len(br.Targets)))
		target := br.Targets[index]
		//
		set(tbl, isBrTable, i, 1)
		set(tbl, brIndex, i, uint64(index))
		set(tbl, brDrop, i, uint64(target.Drop))
		set(tbl, brKeep, i, uint64(len(target.Keep)))
		set(tbl, brKeepType, i, uint64(target.KeepType()))
	case etable.CallIndirectStep:
		set(tbl, isCallIndirect, i, 1)
		set(tbl, elemOffset, i, step.Offset)
	case etable.LoadStep:
		op, _ := r.Instruction.Opcode.(opcode.Load)
		set(tbl, heapInner, i, (step.Address+uint64(op.Offset))%opcode.BlockWidth)
	case etable.StoreStep:
		op, _ := r.Instruction.Opcode.(opcode.Store)
		set(tbl, heapInner, i, (step.Address+uint64(op.Offset))%opcode.BlockWidth)
	}
	//
	for _, m := range t.Memory {
		s := uint(m.Emid)
		//
		set(tbl, slot(s, slotEnabled), i, 1)
		set(tbl, slot(s, slotLoc), i, uint64(m.Location))
		set(tbl, slot(s, slotOffset), i, uint64(m.Offset))
		set(tbl, slot(s, slotAccess), i, uint64(m.Access))
		set(tbl, slot(s, slotType), i, uint64(m.Type))
		set(tbl, slot(s, slotValue), i, m.Value)
	}
	//
	return nil
}
