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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
)

// Memory table columns
const (
	isInit    = "is_init"
	isWrite   = "is_write"
	explicit  = "explicit"
	loc       = "loc"
	offset    = "offset"
	key       = "key"
	emid      = "emid"
	ord       = "ord"
	varType   = "type"
	value     = "value"
	isMutable = "is_mutable"
	addrDelta = "addr_delta"
	ordDelta  = "ord_delta"
	initEid   = "init_eid"
)

var memoryColumns = []string{
	enabled, isInit, isWrite, explicit, loc, offset, key, eid, emid, ord, varType, value, isMutable, restMops,
	addrDelta, ordDelta,
}

// accessKind is the kind of access made by a row (see mtable.Access).
func accessKind() air.Expr {
	return constant(1).Add(col(isWrite)).Sub(col(isInit))
}

// accessSelector selects the rows which are accesses made by steps.
func accessSelector() air.Expr {
	return col(enabled).Sub(col(isInit))
}

func addressKey(l mtable.Location, off uint32) uint64 {
	return 1 + uint64(l)<<32 + uint64(off)
}

func emitMemory(schema *air.Schema) {
	E := col(enabled)
	//
	schema.AddTable(MemoryTable, memoryColumns...)
	binary(schema, MemoryTable, enabled, isInit, isWrite, explicit, isMutable)
	vanish(schema, MemoryTable, "enabled:prefix", next(enabled).Mul(not(E)))
	vanish(schema, MemoryTable, "is_init:disabled", col(isInit).Mul(not(E)))
	vanish(schema, MemoryTable, "is_write:disabled", col(isWrite).Mul(not(E)))
	vanish(schema, MemoryTable, "is_init:is_write", col(isInit).Mul(col(isWrite)))
	vanish(schema, MemoryTable, "explicit:is_init", col(explicit).Mul(not(col(isInit))))
	// Addresses are packed into a single key, which is never zero.
	vanish(schema, MemoryTable, key, E.Mul(col(key).Sub(constant(1)).Sub(col(loc).Mul(constant(1<<32))).Sub(col(offset))))
	vanish(schema, MemoryTable, ord, col(ord).Sub(col(eid).Mul(constant(8))).Sub(col(emid)))
	// A new address begins whenever the key changes.
	var (
		same = air.ApplyIsZeroGadget(MemoryTable, col(key).Sub(prev(key)), schema)
		N    = not(same)
	)
	//
	vanish(schema, MemoryTable, "init:first", E.Mul(N).Mul(not(col(isInit))))
	vanish(schema, MemoryTable, "init:only", col(isInit).Mul(same))
	vanish(schema, MemoryTable, "init:implicit", col(isInit).Mul(not(col(explicit))).Mul(col(value)))
	// Only the stack and heap have implicit initial values, and a stack slot
	// must be written before it is read.
	var (
		L      = col(loc)
		stack  = L.Sub(constant(1)).Mul(L.Sub(constant(2)))
		global = L.Mul(L.Sub(constant(1)))
	)
	//
	vanish(schema, MemoryTable, "loc", E.Mul(L).Mul(L.Sub(constant(1))).Mul(L.Sub(constant(2))))
	vanish(schema, MemoryTable, "init:global", col(isInit).Mul(not(col(explicit))).Mul(global))
	vanish(schema, MemoryTable, "init:stack",
		E.Mul(same).Mul(prev(isInit)).Mul(not(prev(explicit))).Mul(stack).Mul(not(col(isWrite))))
	// Heap blocks are 64-bit, and 32-bit values fit their type.
	vanish(schema, MemoryTable, "heap:type", E.Mul(L).Mul(constant(2).Sub(L)).Mul(not(col(varType))))
	binary(schema, MemoryTable, varType)
	schema.AddRelationConstraint(value+":i32", MemoryTable, E.Mul(not(col(varType))), cols(value), air.Range(32))
	// Reads observe the last value (and type) written.
	vanish(schema, MemoryTable, "continuity:value",
		E.Mul(same).Mul(not(col(isWrite))).Mul(col(value).Sub(prev(value))))
	vanish(schema, MemoryTable, "continuity:type",
		E.Mul(same).Mul(not(col(isWrite))).Mul(col(varType).Sub(prev(varType))))
	vanish(schema, MemoryTable, "mutable:write", col(isWrite).Mul(not(col(isMutable))))
	vanish(schema, MemoryTable, "mutable:same", E.Mul(same).Mul(col(isMutable).Sub(prev(isMutable))))
	// Ordering by address, then by (eid, emid) within an address.
	vanish(schema, MemoryTable, "order:address",
		E.Mul(N.Mul(col(key).Sub(prev(key)).Sub(constant(1))).Sub(col(addrDelta))))
	vanish(schema, MemoryTable, "order:access",
		E.Mul(same.Mul(col(ord).Sub(prev(ord)).Sub(constant(1))).Sub(col(ordDelta))))
	vanish(schema, MemoryTable, "order:disabled", not(E).Mul(col(addrDelta).Add(col(ordDelta))))
	schema.AddRangeConstraint(addrDelta+":u36", MemoryTable, addrDelta, 36)
	schema.AddRangeConstraint(ordDelta+":u40", MemoryTable, ordDelta, 40)
	// Remaining accesses
	vanish(schema, MemoryTable, restMops, E.Mul(col(restMops).Sub(not(col(isInit))).Sub(next(restMops))))
	vanish(schema, MemoryTable, "rest_mops:disabled", not(E).Mul(col(restMops)))
	// Explicit initial values come from the image.
	schema.AddLookupConstraint(MemoryTable+"->"+InitTable, MemoryTable, col(explicit),
		cols(loc, offset, varType, value, isMutable, eid), InitTable, col(enabled),
		cols(loc, offset, varType, value, isMutable, initEid))
	// Fixed ranges
	schema.AddRangeConstraint(offset+":u32", MemoryTable, offset, 32)
	schema.AddRangeConstraint(value+":u64", MemoryTable, value, 64)
	schema.AddRangeConstraint(emid+":u3", MemoryTable, emid, 3)
}

// assignMemory assigns the memory table: one row per memory table row,
// followed by padding.
func assignMemory(cfg config.Config, memory *mtable.Table) (*air.Table, error) {
	var (
		rows   = memory.Rows()
		height = cfg.MaxMemoryRowsPerSlice
		tbl    = air.NewTable(MemoryTable, height)
	)
	//
	if uint(len(rows)) > height {
		return nil, failure.Capacity(failure.EventRowsExceedLimit, uint64(len(rows)), uint64(height))
	}
	//
	for _, c := range memoryColumns {
		tbl.AddColumn(c)
	}
	//
	for i := range rows {
		var (
			r   = &rows[i]
			row = uint(i)
			k   = addressKey(r.Location, r.Offset)
			o   = uint64(r.Eid)*8 + uint64(r.Emid)
		)
		//
		set(tbl, enabled, row, 1)
		set(tbl, isInit, row, flag(r.Access == mtable.Init))
		set(tbl, isWrite, row, flag(r.Access == mtable.Write))
		set(tbl, explicit, row, flag(r.Explicit))
		set(tbl, loc, row, uint64(r.Location))
		set(tbl, offset, row, uint64(r.Offset))
		set(tbl, key, row, k)
		set(tbl, eid, row, uint64(r.Eid))
		set(tbl, emid, row, uint64(r.Emid))
		set(tbl, ord, row, o)
		set(tbl, varType, row, uint64(r.Type))
		set(tbl, value, row, r.Value)
		set(tbl, isMutable, row, flag(r.IsMutable))
		set(tbl, restMops, row, r.RestMops)
		//
		if i == 0 {
			set(tbl, addrDelta, row, k-1)
		} else if p := &rows[i-1]; p.Key() != r.Key() {
			set(tbl, addrDelta, row, k-addressKey(p.Location, p.Offset)-1)
		} else {
			set(tbl, ordDelta, row, o-(uint64(p.Eid)*8+uint64(p.Emid))-1)
		}
	}
	//
	return tbl, nil
}
