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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Witness columns used by particular classes.
const (
	condInv    = "cond_inv"
	heapInner  = "inner"
	brDrop     = "br_drop"
	brKeep     = "br_keep"
	brKeepType = "br_keep_type"
)

var (
	i32Type = constant(uint64(opcode.I32))
	i64Type = constant(uint64(opcode.I64))
)

func location(l mtable.Location) air.Expr { return constant(uint64(l)) }

func accessOf(a mtable.Access) air.Expr { return constant(uint64(a)) }

func half() air.Expr {
	var h fr.Element
	//
	h.SetUint64(2)
	h.Inverse(&h)
	//
	return air.NewConstant(h)
}

// step emits the constraints of a single opcode class.  Memory accesses are
// laid out in slots and the stack pointer is tracked symbolically, in exactly
// the same order as the event table derives the accesses of a step.  Every
// constraint is guarded by the selector of the class.
type step struct {
	schema *air.Schema
	class  opcode.Class
	S      air.Expr
	sp     air.Expr
	slot   uint
}

func newStep(schema *air.Schema, c opcode.Class) *step {
	return &step{schema, c, col(opSelector(c)), col(sp), 0}
}

func (p *step) handle(name string) string {
	return fmt.Sprintf("%s:%s", p.class, name)
}

func (p *step) vanish(name string, e air.Expr) {
	vanish(p.schema, EventTable, p.handle(name), p.S.Mul(e))
}

// when constrains an expression to vanish whenever a given condition holds,
// where nil means always.
func (p *step) when(cond air.Expr, name string, e air.Expr) {
	if cond != nil {
		e = cond.Mul(e)
	}
	//
	p.vanish(name, e)
}

func (p *step) relation(name string, selector air.Expr, args []air.Expr, r air.Relation) {
	if selector == nil {
		selector = p.S
	} else {
		selector = p.S.Mul(selector)
	}
	//
	p.schema.AddRelationConstraint(p.handle(name), EventTable, selector, args, r)
}

func (p *step) field(i int) air.Expr { return col(fieldCol(i)) }

// access constrains the next slot to hold a given access whenever a condition
// holds (nil for always), and to be unused otherwise.  A nil offset, type or
// value is left unconstrained.  The index of the slot is returned.
func (p *step) access(cond air.Expr, acc air.Expr, l mtable.Location, off, ty, val air.Expr) uint {
	s := p.slot
	en := col(slot(s, slotEnabled))
	//
	if cond == nil {
		p.vanish(slot(s, slotEnabled), not(en))
	} else {
		p.vanish(slot(s, slotEnabled), en.Sub(cond))
	}
	//
	p.fill(cond, acc, l, off, ty, val)
	//
	return s
}

// optional is an access which is made only when the slot is enabled, as
// determined elsewhere.
func (p *step) optional(acc air.Expr, l mtable.Location, off, ty, val air.Expr) uint {
	s := p.slot
	//
	p.fill(col(slot(s, slotEnabled)), acc, l, off, ty, val)
	//
	return s
}

func (p *step) fill(cond air.Expr, acc air.Expr, l mtable.Location, off, ty, val air.Expr) {
	s := p.slot
	p.slot++
	//
	p.when(cond, slot(s, slotLoc), col(slot(s, slotLoc)).Sub(location(l)))
	p.when(cond, slot(s, slotAccess), col(slot(s, slotAccess)).Sub(acc))
	//
	for _, c := range []struct {
		field string
		expr  air.Expr
	}{{slotOffset, off}, {slotType, ty}, {slotValue, val}} {
		if c.expr != nil {
			p.when(cond, slot(s, c.field), col(slot(s, c.field)).Sub(c.expr))
		}
	}
}

func (p *step) read(l mtable.Location, off, ty air.Expr) air.Expr {
	return col(slot(p.access(nil, accessOf(mtable.Read), l, off, ty, nil), slotValue))
}

func (p *step) write(l mtable.Location, off, ty, val air.Expr) {
	p.access(nil, accessOf(mtable.Write), l, off, ty, val)
}

// push a value onto the stack, returning the value written.
func (p *step) push(ty, val air.Expr) air.Expr {
	p.sp = p.sp.Sub(constant(1))
	//
	return col(slot(p.access(nil, accessOf(mtable.Write), mtable.Stack, p.sp, ty, val), slotValue))
}

// arg resolves the uniform argument held in a given field, returning its
// value.  Popped and stack arguments read a slot, whilst constants leave it
// unused and must fit their type.
func (p *step) arg(i int, ty air.Expr) air.Expr {
	var (
		tag     = col(argTagCol(i))
		payload = p.field(i)
		isPop   = tag.Sub(constant(1)).Mul(tag.Sub(constant(2))).Mul(half())
		isStack = tag.Mul(constant(2).Sub(tag))
		isConst = tag.Mul(tag.Sub(constant(1))).Mul(half())
		used    = not(isConst)
	)
	//
	s := p.access(used, accessOf(mtable.Read), mtable.Stack, p.sp.Add(isStack.Mul(payload)), ty, nil)
	p.sp = p.sp.Add(isPop)
	//
	if t := ty.AsConstant(); t == nil {
		p.relation(fmt.Sprintf("a%d:const", i), isConst.Mul(not(ty)), []air.Expr{payload}, air.Range(32))
	} else if t.IsZero() {
		p.relation(fmt.Sprintf("a%d:const", i), isConst, []air.Expr{payload}, air.Range(32))
	}
	//
	return isConst.Mul(payload).Add(used.Mul(col(slot(s, slotValue))))
}

// keep moves the kept value (if any) from the top of the stack down over the
// dropped values, whenever a given condition holds (nil for always).
func (p *step) keep(drop, keep, ty, cond air.Expr) {
	var (
		kept  = keep
		moved = drop
	)
	//
	if cond != nil {
		kept, moved = cond.Mul(keep), cond.Mul(drop)
	}
	//
	v := p.access(kept, accessOf(mtable.Read), mtable.Stack, p.sp, ty, nil)
	p.access(kept, accessOf(mtable.Write), mtable.Stack, p.sp.Add(drop), ty, col(slot(v, slotValue)))
	p.sp = p.sp.Add(moved)
}

// isZero returns 1 when a given expression is zero, and 0 otherwise, using the
// inverse witness column.
func (p *step) isZero(e air.Expr) air.Expr {
	zero := not(e.Mul(col(condInv)))
	p.vanish("cond", e.Mul(zero))
	//
	return zero
}

// finish leaves the remaining slots unused, and fixes the stack pointer change.
func (p *step) finish() {
	for s := p.slot; s < etable.MaxSlots; s++ {
		p.vanish(slot(s, "unused"), col(slot(s, slotEnabled)))
	}
	//
	p.vanish(spDelta, col(spDelta).Sub(p.sp.Sub(col(sp))))
}

// kinds accumulates, for each kind of step, the expressions which are one
// exactly when a row takes that kind of step.
type kinds map[string][]air.Expr

// emitOpcodes constrains the semantics of every class: its memory accesses,
// stack pointer change, control flow and counters.
func emitOpcodes(schema *air.Schema, cfg config.Config) {
	var (
		flows = make(kinds)
		E     = col(enabled)
	)
	//
	for _, c := range opcode.Classes() {
		p := newStep(schema, c)
		//
		if c == opcode.ClassCallHost {
			emitHost(p)
		} else {
			emitClass(p, cfg, flows)
		}
		//
		p.finish()
	}
	//
	flows[isSeq] = append(flows[isSeq], col(opSelector(opcode.ClassCallHost)))
	//
	for _, k := range []string{isSeq, isJump, isCall, isReturn} {
		vanish(schema, EventTable, "kind:"+k, col(k).Sub(sumOf(flows[k])))
	}
	//
	var (
		host = col(opSelector(opcode.ClassCallHost))
		grow = col(opSelector(opcode.ClassMemoryGrow))
	)
	// Only host calls consume inputs, and only memory.grow allocates pages.
	vanish(schema, EventTable, "br_table:class", col(isBrTable).Sub(col(opSelector(opcode.ClassBrTable))))
	vanish(schema, EventTable, "call_indirect:class",
		col(isCallIndirect).Sub(col(opSelector(opcode.ClassCallIndirect))))
	vanish(schema, EventTable, "external:class", col(external).Sub(col(opSelector(opcode.ClassExternalHostCall))))
	vanish(schema, EventTable, "pages_delta:class", E.Sub(grow).Mul(col(pagesDelta)))
	//
	for _, c := range []string{input, contextInput, contextOutput} {
		vanish(schema, EventTable, c+":class", E.Sub(host).Mul(col(c)))
	}
}

func emitClass(p *step, cfg config.Config, flows kinds) {
	var (
		S = p.S
		f = p.field
	)
	//
	switch p.class {
	case opcode.ClassLocalGet:
		v := p.read(mtable.Stack, p.sp.Add(f(1)), f(0))
		p.push(f(0), v)
	case opcode.ClassLocalSet:
		v := p.arg(2, f(0))
		p.write(mtable.Stack, p.sp.Add(f(1)), f(0), v)
	case opcode.ClassLocalTee:
		v := p.read(mtable.Stack, p.sp, f(0))
		p.write(mtable.Stack, p.sp.Add(f(1)), f(0), v)
	case opcode.ClassGlobalGet:
		s := p.slot
		v := p.read(mtable.Global, f(0), nil)
		p.push(col(slot(s, slotType)), v)
	case opcode.ClassGlobalSet:
		// The type of a global is that of the value written.
		ty := col(slot(p.slot+1, slotType))
		v := p.arg(1, ty)
		p.write(mtable.Global, f(0), ty, v)
	case opcode.ClassConst:
		p.push(f(0), f(1))
	case opcode.ClassDrop:
		p.sp = p.sp.Add(constant(1))
	case opcode.ClassSelect:
		var (
			cond = p.arg(3, i32Type)
			val2 = p.arg(2, f(0))
			val1 = p.arg(1, f(0))
			zero = p.isZero(cond)
		)
		//
		p.push(f(0), not(zero).Mul(val1).Add(zero.Mul(val2)))
	case opcode.ClassReturn:
		p.keep(f(0), f(1), f(2), nil)
		flows[isReturn] = append(flows[isReturn], S)
		return
	case opcode.ClassBr:
		p.keep(f(0), f(1), f(2), nil)
		p.vanish("target", col(targetIid).Sub(f(3)))
		flows[isJump] = append(flows[isJump], S)
		//
		return
	case opcode.ClassBrIf, opcode.ClassBrIfEqz:
		var (
			cond  = p.arg(4, i32Type)
			taken = p.isZero(cond)
		)
		//
		if p.class == opcode.ClassBrIf {
			taken = not(taken)
		}
		//
		p.keep(f(0), f(1), f(2), taken)
		p.when(taken, "target", col(targetIid).Sub(f(3)))
		flows[isJump] = append(flows[isJump], S.Mul(taken))
		flows[isSeq] = append(flows[isSeq], S.Mul(not(taken)))
		//
		return
	case opcode.ClassBrTable:
		index := p.arg(1, i32Type)
		p.relation("index", nil, []air.Expr{index, f(0), col(brIndex)}, clampRelation{})
		p.keep(col(brDrop), col(brKeep), col(brKeepType), nil)
		flows[isJump] = append(flows[isJump], S)
		//
		return
	case opcode.ClassUnreachable:
		// Traps never execute within a valid trace.
		p.vanish("trap", constant(1))
		return
	case opcode.ClassCall:
		p.vanish("target", col(targetFid).Sub(f(0)))
		flows[isCall] = append(flows[isCall], S)
		//
		return
	case opcode.ClassCallIndirect:
		p.vanish(elemOffset, col(elemOffset).Sub(p.arg(1, i32Type)))
		flows[isCall] = append(flows[isCall], S)
		//
		return
	case opcode.ClassExternalHostCall:
		// Returns push a value, otherwise one is popped.
		ret := f(1)
		p.access(nil, accessOf(mtable.Read).Add(ret), mtable.Stack, p.sp.Sub(ret), i64Type, nil)
		p.sp = p.sp.Add(constant(1)).Sub(ret.Mul(constant(2)))
	case opcode.ClassLoad:
		var (
			effective = p.arg(3, i32Type).Add(f(0))
			b1        = p.access(nil, accessOf(mtable.Read), mtable.Heap, nil, i64Type, nil)
			block     = col(slot(b1, slotOffset))
			b2        = p.optional(accessOf(mtable.Read), mtable.Heap, block.Add(constant(1)), i64Type, nil)
			v         = p.push(f(1), nil)
		)
		//
		p.vanish("effective", effective.Sub(block.Mul(constant(opcode.BlockWidth))).Sub(col(heapInner)))
		p.relation("bounds", nil, []air.Expr{effective, f(2), col(mpages)}, boundsRelation{})
		p.relation("value", nil, []air.Expr{f(1), f(2), col(heapInner), col(slot(b1, slotValue)),
			col(slot(b2, slotValue)), col(slot(b2, slotEnabled)), v}, loadRelation{})
	case opcode.ClassStore:
		var (
			v         = p.arg(4, f(1))
			effective = p.arg(3, i32Type).Add(f(0))
			pre1      = p.access(nil, accessOf(mtable.Read), mtable.Heap, nil, i64Type, nil)
			block     = col(slot(pre1, slotOffset))
			post1     = p.access(nil, accessOf(mtable.Write), mtable.Heap, block, i64Type, nil)
			pre2      = p.optional(accessOf(mtable.Read), mtable.Heap, block.Add(constant(1)), i64Type, nil)
			cross     = col(slot(pre2, slotEnabled))
			post2     = p.access(cross, accessOf(mtable.Write), mtable.Heap, block.Add(constant(1)), i64Type, nil)
		)
		//
		p.vanish("effective", effective.Sub(block.Mul(constant(opcode.BlockWidth))).Sub(col(heapInner)))
		p.relation("bounds", nil, []air.Expr{effective, f(2), col(mpages)}, boundsRelation{store: true})
		p.relation("value", nil, []air.Expr{f(2), col(heapInner), v, col(slot(pre1, slotValue)),
			col(slot(post1, slotValue)), col(slot(pre2, slotValue)), col(slot(post2, slotValue)), cross},
			storeRelation{})
	case opcode.ClassMemorySize:
		p.push(i32Type, col(mpages))
	case opcode.ClassMemoryGrow:
		var (
			grow   = p.arg(0, i32Type)
			result = p.push(i32Type, nil)
		)
		//
		p.relation("result", nil, []air.Expr{col(mpages), grow, result, col(pagesDelta)},
			growRelation{cfg.MaxMemoryPages})
	case opcode.ClassUnary, opcode.ClassTest:
		var (
			operand = p.arg(2, f(1))
			out     = f(1)
		)
		//
		if p.class == opcode.ClassTest {
			out = i32Type
		}
		//
		result := p.push(out, nil)
		p.relation("result", nil, []air.Expr{f(0), f(1), operand, constant(0), result}, aluRelation{p.class})
	case opcode.ClassBin, opcode.ClassBinShift, opcode.ClassBinBit, opcode.ClassRel:
		var (
			rhs = p.arg(3, f(1))
			lhs = p.arg(2, f(1))
			out = f(1)
		)
		//
		if p.class == opcode.ClassRel {
			out = i32Type
		}
		//
		result := p.push(out, nil)
		p.relation("result", nil, []air.Expr{f(0), f(1), lhs, rhs, result}, aluRelation{p.class})
	case opcode.ClassConversion:
		var (
			operand = p.arg(4, f(2))
			result  = p.push(f(3), nil)
		)
		//
		p.relation("result", nil, []air.Expr{f(0), f(1), f(2), f(3), operand, result}, conversionRelation{})
	default:
		panic(fmt.Sprintf("unknown opcode class %s", p.class))
	}
	//
	flows[isSeq] = append(flows[isSeq], S)
}

// emitHost constrains host calls, whose parameters and results are given by
// the plugin rather than the instruction.  Parameters are popped in
// successive slots, followed by at most one result pushed in the next slot.
func emitHost(p *step) {
	var (
		reads, writes []air.Expr
		sp0           = col(sp)
	)
	//
	for s := uint(0); s < etable.MaxSlots; s++ {
		var (
			en      = col(slot(s, slotEnabled))
			acc     = col(slot(s, slotAccess))
			reading = en.Mul(constant(2).Sub(acc))
			writing = en.Mul(acc.Sub(constant(1)))
			off     = col(slot(s, slotOffset))
		)
		//
		p.vanish(slot(s, slotLoc), en.Mul(col(slot(s, slotLoc))))
		p.vanish(slot(s, slotAccess), en.Mul(acc.Sub(constant(1))).Mul(acc.Sub(constant(2))))
		p.vanish(slot(s, "read"), reading.Mul(off.Sub(sp0).Sub(constant(uint64(s)))))
		p.vanish(slot(s, "write"), writing.Mul(off.Sub(sp0).Sub(col(spDelta))))
		//
		if s+1 < etable.MaxSlots {
			following := col(slot(s+1, slotEnabled))
			// Used slots form a prefix, ending with the result (if any).
			p.vanish(slot(s, "prefix"), not(en).Mul(following))
			p.vanish(slot(s, "last"), writing.Mul(following))
		}
		//
		reads = append(reads, reading)
		writes = append(writes, writing)
	}
	//
	p.sp = sp0.Add(air.Sum(reads...)).Sub(air.Sum(writes...))
	p.slot = etable.MaxSlots
}
