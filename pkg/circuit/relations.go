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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// The relations below stand for precomputed tables over machine words, which
// are checked by membership rather than materialised.  Every argument is
// expected to be a machine word; anything else is not a member.

func words(args []fr.Element, n int) ([]uint64, bool) {
	if len(args) != n {
		return nil, false
	}
	//
	vals := make([]uint64, n)
	//
	for i := range args {
		if !args[i].IsUint64() {
			return nil, false
		}
		//
		vals[i] = args[i].Uint64()
	}
	//
	return vals, true
}

func asVarType(v uint64) (opcode.VarType, bool) {
	return opcode.VarType(v), v <= uint64(opcode.I64)
}

// aluRelation holds (op, type, lhs, rhs, result) for the numeric operators of
// a given class.
type aluRelation struct{ class opcode.Class }

func (r aluRelation) Name() string { return fmt.Sprintf("alu:%s", r.class) }

func (r aluRelation) Contains(args []fr.Element) bool {
	vals, ok := words(args, 5)
	if !ok {
		return false
	}
	//
	t, ok := asVarType(vals[1])
	if !ok {
		return false
	}
	//
	result, err := opcode.Operate(r.class, vals[0], t, vals[2], vals[3])
	//
	return err == nil && result == vals[4]
}

// conversionRelation holds (sign, from, input, output, operand, result) for
// every conversion.
type conversionRelation struct{}

func (conversionRelation) Name() string { return "conversion" }

func (conversionRelation) Contains(args []fr.Element) bool {
	vals, ok := words(args, 6)
	if !ok || vals[0] > 1 {
		return false
	}
	//
	input, ok1 := asVarType(vals[2])
	output, ok2 := asVarType(vals[3])
	//
	if !ok1 || !ok2 {
		return false
	}
	//
	op, ok := opcode.ConversionFromShape(opcode.ConversionShape{
		Sign: vals[0] == 1, From: uint(vals[1]), Input: input, Output: output,
	})
	//
	return ok && op.Apply(vals[4]) == vals[5]
}

// loadRelation holds (type, size, inner, block1, block2, cross, value) for
// every load, where inner is the offset of the first byte within block1 and
// block2 is only meaningful when the load crosses into it.
type loadRelation struct{}

func (loadRelation) Name() string { return "load" }

func (loadRelation) Contains(args []fr.Element) bool {
	vals, ok := words(args, 7)
	if !ok || vals[1] > uint64(opcode.U64) || vals[2] >= opcode.BlockWidth {
		return false
	}
	//
	var (
		t, okt = asVarType(vals[0])
		size   = opcode.LoadSize(vals[1])
		nbytes = size.Bytes()
		inner  = vals[2]
		cross  = opcode.IsCrossBlock(inner, nbytes)
		b2     uint64
	)
	//
	if !okt || vals[5] != flag(cross) {
		return false
	} else if cross {
		b2 = vals[4]
	}
	//
	return vals[6] == opcode.LoadValue(t, size, opcode.ReadBytes(inner, nbytes, vals[3], b2))
}

// storeRelation holds (size, inner, value, pre1, post1, pre2, post2, cross)
// for every store.  The second pair of blocks is only meaningful when the
// store crosses into it.
type storeRelation struct{}

func (storeRelation) Name() string { return "store" }

func (storeRelation) Contains(args []fr.Element) bool {
	vals, ok := words(args, 8)
	if !ok || vals[0] > uint64(opcode.Byte64) || vals[1] >= opcode.BlockWidth {
		return false
	}
	//
	var (
		nbytes = opcode.StoreSize(vals[0]).Bytes()
		inner  = vals[1]
		cross  = opcode.IsCrossBlock(inner, nbytes)
		p1, p2 = opcode.WriteBytes(inner, nbytes, vals[2], vals[3], vals[5])
	)
	//
	if vals[7] != flag(cross) {
		return false
	}
	//
	return p1 == vals[4] && (!cross || p2 == vals[6])
}

// boundsRelation holds (effective, size, pages) for every heap access of a
// given size which lies within the allocated pages.
type boundsRelation struct{ store bool }

func (r boundsRelation) Name() string {
	if r.store {
		return "bounds:store"
	}
	//
	return "bounds:load"
}

func (r boundsRelation) Contains(args []fr.Element) bool {
	vals, ok := words(args, 3)
	if !ok || vals[2] > 1<<16 || vals[0] >= 1<<34 {
		return false
	}
	//
	var nbytes uint64
	//
	switch {
	case r.store && vals[1] <= uint64(opcode.Byte64):
		nbytes = opcode.StoreSize(vals[1]).Bytes()
	case !r.store && vals[1] <= uint64(opcode.U64):
		nbytes = opcode.LoadSize(vals[1]).Bytes()
	default:
		return false
	}
	//
	return vals[0]+nbytes <= vals[2]*config.WasmPageSize
}

// growRelation holds (pages, grow, result, delta) for every outcome of
// memory.grow under a given page limit.  Failure is always an admissible
// outcome, since the limit declared by a module may be lower.
type growRelation struct{ max uint32 }

func (r growRelation) Name() string { return fmt.Sprintf("grow:%d", r.max) }

func (r growRelation) Contains(args []fr.Element) bool {
	vals, ok := words(args, 4)
	if !ok {
		return false
	}
	//
	pages, grow, result, delta := vals[0], vals[1], vals[2], vals[3]
	//
	if result == etable.GrowFailure {
		return delta == 0
	}
	//
	return result == pages && delta == grow && pages+grow <= uint64(r.max)
}

// clampRelation holds (index, count, target) for every branch table index
// and non-empty table size.
type clampRelation struct{}

func (clampRelation) Name() string { return "clamp" }

func (clampRelation) Contains(args []fr.Element) bool {
	vals, ok := words(args, 3)
	if !ok || vals[1] == 0 || vals[1] > 0xffffffff {
		return false
	}
	//
	return vals[2] == uint64(itable.Clamp(vals[0], uint32(vals[1])))
}
