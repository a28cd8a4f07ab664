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
package vm

import (
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

// Trap is raised when execution cannot continue, such as executing an
// unreachable instruction or dividing by zero.
type Trap struct {
	Eid    uint32
	At     itable.Address
	Reason string
}

func (p *Trap) Error() string {
	return fmt.Sprintf("trap at %s (eid %d): %s", p.At, p.Eid, p.Reason)
}

func trap(e *etable.Entry, format string, args ...any) error {
	return &Trap{e.Eid, e.Address(), fmt.Sprintf(format, args...)}
}

// execute a given opcode in the state of a given entry, determining its step
// info.  Memory is not modified.
func (p *Machine) execute(e *etable.Entry, op opcode.Opcode) (etable.StepInfo, error) {
	args := &operands{p.memory, e.Sp}
	//
	switch op := op.(type) {
	case opcode.LocalGet:
		return etable.LocalGetStep{Value: p.memory.Read(mtable.Stack, e.Sp+op.Depth)}, nil
	case opcode.LocalSet:
		return etable.LocalSetStep{Value: args.arg(op.Arg, op.Type)}, nil
	case opcode.LocalTee:
		return etable.LocalTeeStep{Value: args.top()}, nil
	case opcode.GlobalGet:
		ty, ok := p.memory.Type(mtable.Global, op.Index)
		if !ok {
			return nil, trap(e, "unknown global %d", op.Index)
		}
		//
		return etable.GlobalGetStep{Type: ty, Value: p.memory.Read(mtable.Global, op.Index)}, nil
	case opcode.GlobalSet:
		ty, ok := p.memory.Type(mtable.Global, op.Index)
		if !ok {
			return nil, trap(e, "unknown global %d", op.Index)
		}
		//
		return etable.GlobalSetStep{Type: ty, Value: args.arg(op.Arg, ty)}, nil
	case opcode.Const:
		return etable.ConstStep{}, nil
	case opcode.Drop:
		return etable.DropStep{}, nil
	case opcode.Select:
		s := etable.SelectStep{
			Cond: args.arg(op.Arg[2], opcode.I32),
			Val2: args.arg(op.Arg[1], op.Type),
			Val1: args.arg(op.Arg[0], op.Type),
		}
		//
		if s.Result = s.Val2; s.Cond != 0 {
			s.Result = s.Val1
		}
		//
		return s, nil
	case opcode.Return:
		return etable.ReturnStep{Keep: args.kept(op.Keep)}, nil
	case opcode.Br:
		return etable.BrStep{Keep: args.kept(op.Target.Keep)}, nil
	case opcode.BrIf:
		s := etable.BrIfStep{Cond: args.arg(op.Arg, opcode.I32)}
		//
		if s.Cond != 0 {
			s.Keep = args.kept(op.Target.Keep)
		}
		//
		return s, nil
	case opcode.BrIfEqz:
		s := etable.BrIfEqzStep{Cond: args.arg(op.Arg, opcode.I32)}
		//
		if s.Cond == 0 {
			s.Keep = args.kept(op.Target.Keep)
		}
		//
		return s, nil
	case opcode.BrTable:
		if len(op.Targets) == 0 {
			return nil, trap(e, "empty branch table")
		}
		//
		index := args.arg(op.Arg, opcode.I32)
		target := op.Targets[itable.Clamp(index, uint32(len(op.Targets)))]
		//
		return etable.BrTableStep{Index: index, Keep: args.kept(target.Keep)}, nil
	case opcode.Unreachable:
		return nil, trap(e, "unreachable")
	case opcode.Call:
		return etable.CallStep{}, nil
	case opcode.CallIndirect:
		return p.callIndirect(e, op, args)
	case opcode.CallHost:
		return p.callHost(e, op, args)
	case opcode.ExternalHostCall:
		if op.IsReturn {
			v, err := p.env.NextExternal()
			if err != nil {
				return nil, trap(e, "%v", err)
			}
			//
			return etable.ExternalHostCallStep{Value: v}, nil
		}
		//
		v := args.arg(opcode.PopArg(), opcode.I64)
		p.env.ExternalArgs = append(p.env.ExternalArgs, v)
		//
		return etable.ExternalHostCallStep{Value: v}, nil
	case opcode.Load:
		return p.load(e, op, args)
	case opcode.Store:
		return p.store(e, op, args)
	case opcode.MemorySize:
		return etable.MemorySizeStep{}, nil
	case opcode.MemoryGrow:
		var (
			grow   = args.arg(op.Arg, opcode.I32)
			pages  = uint64(e.AllocatedMemoryPages)
			result = uint64(etable.GrowFailure)
		)
		//
		if pages+grow <= uint64(p.ctx.MaxPages) {
			result = pages
		}
		//
		return etable.MemoryGrowStep{Grow: grow, Result: result}, nil
	case opcode.Unary:
		v := args.arg(op.Arg, op.Type)
		return etable.UnaryStep{Operand: v, Result: op.Op.Apply(op.Type, v)}, nil
	case opcode.Test:
		v := args.arg(op.Arg, op.Type)
		return etable.TestStep{Operand: v, Result: op.Op.Apply(op.Type, v)}, nil
	case opcode.Conversion:
		v := args.arg(op.Arg, op.Op.Shape().Input)
		return etable.ConversionStep{Operand: v, Result: op.Op.Apply(v)}, nil
	case opcode.Bin:
		rhs := args.arg(op.Arg[1], op.Type)
		lhs := args.arg(op.Arg[0], op.Type)
		//
		result, err := op.Op.Apply(op.Type, lhs, rhs)
		if err != nil {
			return nil, trap(e, "%s: %v", op, err)
		}
		//
		return etable.BinStep{Lhs: lhs, Rhs: rhs, Result: result}, nil
	case opcode.BinShift:
		rhs := args.arg(op.Arg[1], op.Type)
		lhs := args.arg(op.Arg[0], op.Type)
		//
		return etable.BinShiftStep{Lhs: lhs, Rhs: rhs, Result: op.Op.Apply(op.Type, lhs, rhs)}, nil
	case opcode.BinBit:
		rhs := args.arg(op.Arg[1], op.Type)
		lhs := args.arg(op.Arg[0], op.Type)
		//
		return etable.BinBitStep{Lhs: lhs, Rhs: rhs, Result: op.Op.Apply(op.Type, lhs, rhs)}, nil
	case opcode.Rel:
		rhs := args.arg(op.Arg[1], op.Type)
		lhs := args.arg(op.Arg[0], op.Type)
		//
		return etable.RelStep{Lhs: lhs, Rhs: rhs, Result: op.Op.Apply(op.Type, lhs, rhs)}, nil
	}
	//
	return nil, fmt.Errorf("unknown opcode %s", op)
}

func (p *Machine) callIndirect(e *etable.Entry, op opcode.CallIndirect, args *operands) (etable.StepInfo, error) {
	offset := args.arg(op.Arg, opcode.I32)
	//
	elem, err := p.module.Elements.Get(offset)
	if err != nil {
		return nil, trap(e, "undefined table element %d", offset)
	} else if elem.TypeIndex != op.TypeIndex {
		return nil, trap(e, "indirect call type mismatch (%d vs %d)", elem.TypeIndex, op.TypeIndex)
	}
	//
	return etable.CallIndirectStep{Offset: offset, FuncIndex: elem.Fid}, nil
}

func (p *Machine) callHost(e *etable.Entry, op opcode.CallHost, args *operands) (etable.StepInfo, error) {
	var (
		s      etable.CallHostStep
		plugin = p.module.Registry
	)
	//
	if len(op.Params) > 0 {
		s.Args = make([]uint64, len(op.Params))
	}
	//
	for i := len(op.Params) - 1; i >= 0; i-- {
		s.Args[i] = args.arg(opcode.PopArg(), op.Params[i])
	}
	//
	if plugin == nil {
		return nil, trap(e, "no host plugins for %s", op.Name)
	}
	//
	impl, err := plugin.Plugin(op.Plugin)
	if err != nil {
		return nil, trap(e, "%v", err)
	}
	//
	if s.Ret, err = impl.Execute(op.FunctionIndex, s.Args, p.env); err != nil {
		return nil, trap(e, "%s: %v", op.Name, err)
	}
	//
	return s, nil
}

// heap determines the effective address of a heap access, trapping when it is
// out of bounds.
func heap(e *etable.Entry, address uint64, offset uint32, nbytes uint64) (uint64, error) {
	var (
		effective = address + uint64(offset)
		limit     = uint64(e.AllocatedMemoryPages) * config.WasmPageSize
	)
	//
	if effective+nbytes > limit {
		return 0, trap(e, "out of bounds memory access %#x+%d", effective, nbytes)
	}
	//
	return effective, nil
}

func (p *Machine) load(e *etable.Entry, op opcode.Load, args *operands) (etable.StepInfo, error) {
	var (
		nbytes  = op.Size.Bytes()
		address = args.arg(op.Arg, opcode.I32)
	)
	//
	effective, err := heap(e, address, op.Offset, nbytes)
	if err != nil {
		return nil, err
	}
	//
	var (
		block = uint32(effective / opcode.BlockWidth)
		s     = etable.LoadStep{Address: address, Block1: p.memory.Read(mtable.Heap, block)}
	)
	//
	if opcode.IsCrossBlock(effective, nbytes) {
		s.Block2 = p.memory.Read(mtable.Heap, block+1)
	}
	//
	raw := opcode.ReadBytes(effective%opcode.BlockWidth, nbytes, s.Block1, s.Block2)
	s.Value = opcode.LoadValue(op.Type, op.Size, raw)
	//
	return s, nil
}

func (p *Machine) store(e *etable.Entry, op opcode.Store, args *operands) (etable.StepInfo, error) {
	var (
		nbytes = op.Size.Bytes()
		s      = etable.StoreStep{Value: args.arg(op.Arg[1], op.Type)}
	)
	//
	s.Address = args.arg(op.Arg[0], opcode.I32)
	//
	effective, err := heap(e, s.Address, op.Offset, nbytes)
	if err != nil {
		return nil, err
	}
	//
	block := uint32(effective / opcode.BlockWidth)
	s.PreBlock1 = p.memory.Read(mtable.Heap, block)
	//
	if opcode.IsCrossBlock(effective, nbytes) {
		s.PreBlock2 = p.memory.Read(mtable.Heap, block+1)
	}
	//
	s.PostBlock1, s.PostBlock2 = opcode.WriteBytes(effective%opcode.BlockWidth, nbytes, s.Value, s.PreBlock1,
		s.PreBlock2)
	//
	return s, nil
}
