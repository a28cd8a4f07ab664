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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

// MaxSlots is the number of memory access slots available to a single step.
// The slot index of an access is its emid.
const MaxSlots = opcode.MaxSlots

// effects accumulates the memory accesses of a single step, whilst tracking
// the stack pointer.  Every access occupies a fixed slot, and slots which are
// not used by a particular execution are skipped so that each slot always
// plays the same role for a given opcode class.
type effects struct {
	eid  uint32
	sp   uint32
	slot uint32
	ops  []mtable.Entry
}

func newEffects(e *Entry) *effects {
	return &effects{eid: e.Eid, sp: e.Sp}
}

func (p *effects) access(access mtable.Access, loc mtable.Location, offset uint32, t opcode.VarType,
	value uint64) error {
	if t.Truncate(value) != value {
		return p.miss("%s value %#x out of range at %s@%d", t, value, loc, offset)
	} else if p.slot >= MaxSlots {
		return p.miss("%s@%d needs memory slot %d (only %d available)", loc, offset, p.slot, MaxSlots)
	}
	//
	p.ops = append(p.ops, mtable.Entry{
		Eid: p.eid, Emid: p.slot, Offset: offset, Location: loc, Access: access, Type: t, IsMutable: true, Value: value,
	})
	p.slot++
	//
	return nil
}

func (p *effects) read(loc mtable.Location, offset uint32, t opcode.VarType, value uint64) error {
	return p.access(mtable.Read, loc, offset, t, value)
}

func (p *effects) write(loc mtable.Location, offset uint32, t opcode.VarType, value uint64) error {
	return p.access(mtable.Write, loc, offset, t, value)
}

// skip a slot which is unused by this execution.
func (p *effects) skip(n uint32) {
	p.slot += n
}

// arg resolves a uniform argument whose value is known to be a given value.
// Popped arguments read the top of the stack, stack arguments read at a given
// depth without popping, and constants must agree exactly with the value.
// Constants are normalised, in that they must already fit the argument type.
func (p *effects) arg(a opcode.UniArg, t opcode.VarType, value uint64) error {
	switch a.Kind {
	case opcode.Pop:
		if err := p.read(mtable.Stack, p.sp, t, value); err != nil {
			return err
		}
		//
		p.sp++
	case opcode.Stack:
		return p.read(mtable.Stack, p.sp+a.Depth, t, value)
	case opcode.IConst:
		if a.Value != value {
			return p.miss("constant argument %d does not match %d", a.Value, value)
		} else if t.Truncate(value) != value {
			return p.miss("constant argument %#x out of range for %s", value, t)
		}
		//
		p.skip(1)
	default:
		panic("unknown argument kind")
	}
	//
	return nil
}

// push a value onto the stack.
func (p *effects) push(t opcode.VarType, value uint64) error {
	if p.sp == 0 {
		return p.miss("stack overflow")
	}
	//
	p.sp--
	//
	return p.write(mtable.Stack, p.sp, t, value)
}

// keep moves the kept value (if any) from the top of the stack to its final
// position, and then drops the remainder.
func (p *effects) keep(drop uint32, keep []opcode.VarType, values []uint64) error {
	if len(keep) != len(values) {
		return p.miss("expected %d kept values, got %d", len(keep), len(values))
	} else if len(keep) > 1 {
		return p.miss("multiple kept values are not supported")
	} else if len(keep) == 1 {
		if err := p.read(mtable.Stack, p.sp, keep[0], values[0]); err != nil {
			return err
		} else if err := p.write(mtable.Stack, p.sp+drop, keep[0], values[0]); err != nil {
			return err
		}
	}
	//
	p.sp += drop
	//
	return nil
}

func (p *effects) miss(format string, args ...any) error {
	return failure.Lookup("etable", uint64(p.eid), format, args...)
}

// MemoryEffects returns the ordered memory accesses made by a given entry when
// executing a given opcode.  This is a pure function of its arguments.
func MemoryEffects(e *Entry, op opcode.Opcode) ([]mtable.Entry, error) {
	t, err := Contract(nil, e, op)
	if err != nil {
		return nil, fmt.Errorf("memory effects of %s: %w", op, err)
	}
	//
	return t.Memory, nil
}
