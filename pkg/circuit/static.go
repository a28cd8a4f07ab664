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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/image"
)

// Columns of the static tables
const (
	typeIndex = "type_index"
)

func emitStatic(schema *air.Schema) {
	schema.AddTable(CodeTable, enabled, fid, iid, code)
	schema.AddTable(BranchTable, enabled, fid, iid, brIndex, targetIid, brDrop, brKeep, brKeepType)
	schema.AddTable(InitTable, enabled, loc, offset, varType, value, isMutable, initEid)
	schema.AddTable(ElementsTable, enabled, elemOffset, typeIndex, fid)
	//
	for _, t := range []string{CodeTable, BranchTable, InitTable, ElementsTable} {
		binary(schema, t, enabled)
	}
}

func assignCode(img *image.Image) *air.Table {
	var (
		entries = img.Code().Entries()
		tbl     = air.NewTable(CodeTable, uint(len(entries))+1)
		codes   = tbl.AddColumn(code)
	)
	//
	for _, c := range []string{enabled, fid, iid} {
		tbl.AddColumn(c)
	}
	//
	for i := range entries {
		e, row := &entries[i], uint(i)
		set(tbl, enabled, row, 1)
		set(tbl, fid, row, uint64(e.Fid))
		set(tbl, iid, row, uint64(e.Iid))
		codes.Set(row, image.Opcode(&e.Code))
	}
	//
	return tbl
}

func assignBranches(img *image.Image) *air.Table {
	var (
		entries = img.Code().BranchTable().Entries()
		tbl     = air.NewTable(BranchTable, uint(len(entries))+1)
	)
	//
	for _, c := range []string{enabled, fid, iid, brIndex, targetIid, brDrop, brKeep, brKeepType} {
		tbl.AddColumn(c)
	}
	//
	for i, e := range entries {
		row := uint(i)
		set(tbl, enabled, row, 1)
		set(tbl, fid, row, uint64(e.Fid))
		set(tbl, iid, row, uint64(e.Iid))
		set(tbl, brIndex, row, uint64(e.Index))
		set(tbl, targetIid, row, uint64(e.Dst))
		set(tbl, brDrop, row, uint64(e.Drop))
		set(tbl, brKeep, row, uint64(e.Keep))
		set(tbl, brKeepType, row, uint64(e.KeepType))
	}
	//
	return tbl
}

func assignInit(img *image.Image) *air.Table {
	var (
		entries = img.Memory().Entries()
		tbl     = air.NewTable(InitTable, uint(len(entries))+1)
	)
	//
	for _, c := range []string{enabled, loc, offset, varType, value, isMutable, initEid} {
		tbl.AddColumn(c)
	}
	//
	for i, e := range entries {
		row := uint(i)
		set(tbl, enabled, row, 1)
		set(tbl, loc, row, uint64(e.Location))
		set(tbl, offset, row, uint64(e.Offset))
		set(tbl, varType, row, uint64(e.Type))
		set(tbl, value, row, e.Value)
		set(tbl, isMutable, row, flag(e.IsMutable))
		set(tbl, initEid, row, uint64(e.Eid))
	}
	//
	return tbl
}

func assignElements(img *image.Image) *air.Table {
	var (
		entries = img.Elements().Entries()
		tbl     = air.NewTable(ElementsTable, uint(len(entries))+1)
	)
	//
	for _, c := range []string{enabled, elemOffset, typeIndex, fid} {
		tbl.AddColumn(c)
	}
	//
	for i, e := range entries {
		row := uint(i)
		set(tbl, enabled, row, 1)
		set(tbl, elemOffset, row, uint64(e.Offset))
		set(tbl, typeIndex, row, uint64(e.TypeIndex))
		set(tbl, fid, row, uint64(e.Fid))
	}
	//
	return tbl
}
