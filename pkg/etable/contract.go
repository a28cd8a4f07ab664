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
	"math"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

// GrowFailure is the result of a memory.grow which could not be satisfied.
const GrowFailure = math.MaxUint32

// NextKind determines how the next instruction is chosen.
type NextKind uint8

const (
	// Sequential continues at the next instruction of the same function.
	Sequential NextKind = iota
	// Jump continues at a given instruction of the same function.
	Jump
	// Call continues at the first instruction of a given function, in a new
	// frame.
	Call
	// Return continues at the instruction following the call which pushed
	// the current frame.
	Return
)

func (k NextKind) String() string {
	switch k {
	case Sequential:
		return "sequential"
	case Jump:
		return "jump"
	case Call:
		return "call"
	default:
		return "return"
	}
}

// Transition is the contract of a single step: everything which changes
// between an entry and its successor, as determined by the opcode and step
// info.
type Transition struct {
	Next NextKind
	// Target of a jump or call.
	Target itable.Address
	// Change to the stack pointer.
	SpDelta int64
	// Pages allocated by this step.
	PagesDelta uint32
	// Memory accesses made by this step, ordered by emid.
	Memory []mtable.Entry
	// Counter increments
	CallOps, ReturnOps uint32
	PublicInput       uint32
	ExternalHostCall  uint32
	ContextInput      uint32
	ContextOutput     uint32
}

// Context provides the static information required to check steps which
// depend upon more than their own opcode.  A nil context skips those checks.
type Context struct {
	// Host plugins (for host call counters).
	Registry *host.Registry
	// Function table (for call_indirect).
	Elements *itable.Elements
	// Maximum number of allocated pages.
	MaxPages uint32
}

// NewContext constructs a context whose page limit is the smaller of the
// configured limit and the module's declared maximum (if any).
func NewContext(cfg config.Config, registry *host.Registry, elements *itable.Elements, declared uint32) *Context {
	limit := cfg.MaxMemoryPages
	//
	if declared != 0 {
		limit = min(limit, declared)
	}
	//
	return &Context{registry, elements, limit}
}

// Contract determines the transition of a given entry executing a given
// opcode.  The step info must belong to the same class as the opcode, and its
// values must be consistent with the semantics of the opcode; otherwise, a
// lookup miss is reported.
func Contract(ctx *Context, e *Entry, op opcode.Opcode) (Transition, error) {
	var (
		fx = newEffects(e)
		t  = Transition{Next: Sequential}
	)
	//
	if e.Step == nil {
		return t, fx.miss("missing step info")
	} else if e.Step.Class() != op.Class() {
		return t, fx.miss("step %s does not match opcode %s", e.Step.Class(), op)
	}
	//
	if err := contract(ctx, e, op, fx, &t); err != nil {
		return t, err
	}
	//
	t.SpDelta = int64(fx.sp) - int64(e.Sp)
	t.Memory = fx.ops
	//
	return t, nil
}

func contract(ctx *Context, e *Entry, op opcode.Opcode, fx *effects, t *Transition) error {
	switch op := op.(type) {
	case opcode.LocalGet:
		s := e.Step.(LocalGetStep)
		//
		if err := fx.read(mtable.Stack, fx.sp+op.Depth, op.Type, s.Value); err != nil {
			return err
		}
		//
		return fx.push(op.Type, s.Value)
	case opcode.LocalSet:
		s := e.Step.(LocalSetStep)
		//
		if err := fx.arg(op.Arg, op.Type, s.Value); err != nil {
			return err
		}
		//
		return fx.write(mtable.Stack, fx.sp+op.Depth, op.Type, s.Value)
	case opcode.LocalTee:
		s := e.Step.(LocalTeeStep)
		//
		if err := fx.read(mtable.Stack, fx.sp, op.Type, s.Value); err != nil {
			return err
		}
		//
		return fx.write(mtable.Stack, fx.sp+op.Depth, op.Type, s.Value)
	case opcode.GlobalGet:
		s := e.Step.(GlobalGetStep)
		//
		if err := fx.read(mtable.Global, op.Index, s.Type, s.Value); err != nil {
			return err
		}
		//
		return fx.push(s.Type, s.Value)
	case opcode.GlobalSet:
		s := e.Step.(GlobalSetStep)
		//
		if err := fx.arg(op.Arg, s.Type, s.Value); err != nil {
			return err
		}
		//
		return fx.write(mtable.Global, op.Index, s.Type, s.Value)
	case opcode.Const:
		return fx.push(op.Type, op.Value)
	case opcode.Drop:
		fx.sp++
		return nil
	case opcode.Select:
		return contractSelect(op, e.Step.(SelectStep), fx)
	case opcode.Return:
		s := e.Step.(ReturnStep)
		t.Next = Return
		t.ReturnOps = 1
		//
		return fx.keep(op.Drop, op.Keep, s.Keep)
	case opcode.Br:
		s := e.Step.(BrStep)
		t.Next, t.Target = Jump, itable.Address{Fid: e.Fid, Iid: op.Target.Dst}
		//
		return fx.keep(op.Target.Drop, op.Target.Keep, s.Keep)
	case opcode.BrIf:
		s := e.Step.(BrIfStep)
		return contractBrIf(e, op.Target, op.Arg, s.Cond, s.Cond != 0, s.Keep, fx, t)
	case opcode.BrIfEqz:
		s := e.Step.(BrIfEqzStep)
		return contractBrIf(e, op.Target, op.Arg, s.Cond, s.Cond == 0, s.Keep, fx, t)
	case opcode.BrTable:
		s := e.Step.(BrTableStep)
		//
		if len(op.Targets) == 0 {
			return fx.miss("empty branch table")
		} else if err := fx.arg(op.Arg, opcode.I32, s.Index); err != nil {
			return err
		}
		//
		target := op.Targets[itable.Clamp(s.Index, uint32(len(op.Targets)))]
		t.Next, t.Target = Jump, itable.Address{Fid: e.Fid, Iid: target.Dst}
		//
		return fx.keep(target.Drop, target.Keep, s.Keep)
	case opcode.Unreachable:
		return fx.miss("unreachable executed")
	case opcode.Call:
		t.Next, t.Target = Call, itable.Address{Fid: op.Index, Iid: 0}
		t.CallOps = 1
		//
		return nil
	case opcode.CallIndirect:
		s := e.Step.(CallIndirectStep)
		//
		if err := fx.arg(op.Arg, opcode.I32, s.Offset); err != nil {
			return err
		} else if ctx != nil {
			elem, err := ctx.Elements.Get(s.Offset)
			//
			if err != nil {
				return err
			} else if elem.Fid != s.FuncIndex {
				return fx.miss("table slot %d holds function %d, not %d", s.Offset, elem.Fid, s.FuncIndex)
			} else if elem.TypeIndex != op.TypeIndex {
				return fx.miss("indirect call type mismatch (%d vs %d)", elem.TypeIndex, op.TypeIndex)
			}
		}
		//
		t.Next, t.Target = Call, itable.Address{Fid: s.FuncIndex, Iid: 0}
		t.CallOps = 1
		//
		return nil
	case opcode.CallHost:
		return contractHost(ctx, op, e.Step.(CallHostStep), fx, t)
	case opcode.ExternalHostCall:
		s := e.Step.(ExternalHostCallStep)
		t.ExternalHostCall = 1
		//
		if op.IsReturn {
			return fx.push(opcode.I64, s.Value)
		}
		//
		return fx.arg(opcode.PopArg(), opcode.I64, s.Value)
	case opcode.Load:
		return contractLoad(e, op, e.Step.(LoadStep), fx)
	case opcode.Store:
		return contractStore(e, op, e.Step.(StoreStep), fx)
	case opcode.MemorySize:
		return fx.push(opcode.I32, uint64(e.AllocatedMemoryPages))
	case opcode.MemoryGrow:
		return contractGrow(ctx, e, op, e.Step.(MemoryGrowStep), fx, t)
	case opcode.Unary:
		s := e.Step.(UnaryStep)
		return unary(fx, op.Arg, op.Type, op.Type, s.Operand, s.Result, op.Op.Apply(op.Type, s.Operand))
	case opcode.Test:
		s := e.Step.(TestStep)
		return unary(fx, op.Arg, op.Type, opcode.I32, s.Operand, s.Result, op.Op.Apply(op.Type, s.Operand))
	case opcode.Conversion:
		var (
			s     = e.Step.(ConversionStep)
			shape = op.Op.Shape()
		)
		//
		return unary(fx, op.Arg, shape.Input, shape.Output, s.Operand, s.Result, op.Op.Apply(s.Operand))
	case opcode.Bin:
		s := e.Step.(BinStep)
		//
		expected, err := op.Op.Apply(op.Type, s.Lhs, s.Rhs)
		if err != nil {
			return fx.miss("%s trapped: %v", op, err)
		}
		//
		return binary(fx, op.Arg, op.Type, op.Type, s.Lhs, s.Rhs, s.Result, expected)
	case opcode.BinShift:
		s := e.Step.(BinShiftStep)
		return binary(fx, op.Arg, op.Type, op.Type, s.Lhs, s.Rhs, s.Result, op.Op.Apply(op.Type, s.Lhs, s.Rhs))
	case opcode.BinBit:
		s := e.Step.(BinBitStep)
		return binary(fx, op.Arg, op.Type, op.Type, s.Lhs, s.Rhs, s.Result, op.Op.Apply(op.Type, s.Lhs, s.Rhs))
	case opcode.Rel:
		s := e.Step.(RelStep)
		return binary(fx, op.Arg, op.Type, opcode.I32, s.Lhs, s.Rhs, s.Result, op.Op.Apply(op.Type, s.Lhs, s.Rhs))
	}
	//
	panic(fmt.Sprintf("unknown opcode %s", op))
}

func contractSelect(op opcode.Select, s SelectStep, fx *effects) error {
	// Operands are resolved from the top of the stack downwards.
	if err := fx.arg(op.Arg[2], opcode.I32, s.Cond); err != nil {
		return err
	} else if err := fx.arg(op.Arg[1], op.Type, s.Val2); err != nil {
		return err
	} else if err := fx.arg(op.Arg[0], op.Type, s.Val1); err != nil {
		return err
	}
	//
	expected := s.Val2
	if s.Cond != 0 {
		expected = s.Val1
	}
	//
	if s.Result != expected {
		return fx.miss("select result %d (expected %d)", s.Result, expected)
	}
	//
	return fx.push(op.Type, s.Result)
}

func contractBrIf(e *Entry, target opcode.BrTarget, arg opcode.UniArg, cond uint64, taken bool, keep []uint64,
	fx *effects, t *Transition) error {
	if err := fx.arg(arg, opcode.I32, cond); err != nil {
		return err
	} else if !taken {
		if len(keep) != 0 {
			return fx.miss("branch not taken, but values kept")
		}
		//
		return nil
	}
	//
	t.Next, t.Target = Jump, itable.Address{Fid: e.Fid, Iid: target.Dst}
	//
	return fx.keep(target.Drop, target.Keep, keep)
}

func contractHost(ctx *Context, op opcode.CallHost, s CallHostStep, fx *effects, t *Transition) error {
	if len(s.Args) != len(op.Params) || len(s.Ret) != len(op.Ret) {
		return fx.miss("host call %s has %d arguments and %d results", op.Name, len(s.Args), len(s.Ret))
	} else if len(op.Ret) > 1 {
		return fx.miss("host call %s has multiple results", op.Name)
	}
	// Parameters are popped last first.
	for i := len(op.Params) - 1; i >= 0; i-- {
		if err := fx.arg(opcode.PopArg(), op.Params[i], s.Args[i]); err != nil {
			return err
		}
	}
	//
	for i, ty := range op.Ret {
		if err := fx.push(ty, s.Ret[i]); err != nil {
			return err
		}
	}
	//
	if ctx == nil || ctx.Registry == nil {
		return nil
	}
	//
	plugin, err := ctx.Registry.Plugin(op.Plugin)
	if err != nil {
		return fx.miss("%v", err)
	} else if err := plugin.Check(op.FunctionIndex, s.Args, s.Ret); err != nil {
		return fx.miss("host call %s: %v", op.Name, err)
	}
	//
	effect := plugin.Effect(op.FunctionIndex, s.Args)
	t.PublicInput = effect.PublicInput
	t.ContextInput = effect.ContextInput
	t.ContextOutput = effect.ContextOutput
	//
	return nil
}

// effectiveAddress computes the effective address of a heap access, checking
// it lies within the allocated pages.
func effectiveAddress(e *Entry, fx *effects, address uint64, offset uint32, nbytes uint64) (uint64, error) {
	var (
		effective = address + uint64(offset)
		limit     = uint64(e.AllocatedMemoryPages) * config.WasmPageSize
	)
	//
	if effective+nbytes > limit {
		return 0, fx.miss("heap access %#x+%d out of bounds (%d pages)", effective, nbytes, e.AllocatedMemoryPages)
	}
	//
	return effective, nil
}

func contractLoad(e *Entry, op opcode.Load, s LoadStep, fx *effects) error {
	nbytes := op.Size.Bytes()
	//
	if err := fx.arg(op.Arg, opcode.I32, s.Address); err != nil {
		return err
	}
	//
	effective, err := effectiveAddress(e, fx, s.Address, op.Offset, nbytes)
	if err != nil {
		return err
	}
	//
	var (
		block = uint32(effective / opcode.BlockWidth)
		inner = effective % opcode.BlockWidth
		b2    uint64
	)
	//
	if err := fx.read(mtable.Heap, block, opcode.I64, s.Block1); err != nil {
		return err
	} else if opcode.IsCrossBlock(effective, nbytes) {
		if err := fx.read(mtable.Heap, block+1, opcode.I64, s.Block2); err != nil {
			return err
		}
		//
		b2 = s.Block2
	} else {
		fx.skip(1)
	}
	//
	expected := opcode.LoadValue(op.Type, op.Size, opcode.ReadBytes(inner, nbytes, s.Block1, b2))
	//
	if expected != s.Value {
		return fx.miss("%s loaded %#x (expected %#x)", op, s.Value, expected)
	}
	//
	return fx.push(op.Type, s.Value)
}

func contractStore(e *Entry, op opcode.Store, s StoreStep, fx *effects) error {
	nbytes := op.Size.Bytes()
	// The value is on top of the address.
	if err := fx.arg(op.Arg[1], op.Type, s.Value); err != nil {
		return err
	} else if err := fx.arg(op.Arg[0], opcode.I32, s.Address); err != nil {
		return err
	}
	//
	effective, err := effectiveAddress(e, fx, s.Address, op.Offset, nbytes)
	if err != nil {
		return err
	}
	//
	var (
		block  = uint32(effective / opcode.BlockWidth)
		inner  = effective % opcode.BlockWidth
		cross  = opcode.IsCrossBlock(effective, nbytes)
		p1, p2 = opcode.WriteBytes(inner, nbytes, s.Value, s.PreBlock1, s.PreBlock2)
	)
	//
	if p1 != s.PostBlock1 || (cross && p2 != s.PostBlock2) {
		return fx.miss("%s produced blocks %#x,%#x (expected %#x,%#x)", op, s.PostBlock1, s.PostBlock2, p1, p2)
	} else if err := fx.read(mtable.Heap, block, opcode.I64, s.PreBlock1); err != nil {
		return err
	} else if err := fx.write(mtable.Heap, block, opcode.I64, s.PostBlock1); err != nil {
		return err
	} else if !cross {
		return nil
	} else if err := fx.read(mtable.Heap, block+1, opcode.I64, s.PreBlock2); err != nil {
		return err
	}
	//
	return fx.write(mtable.Heap, block+1, opcode.I64, s.PostBlock2)
}

func contractGrow(ctx *Context, e *Entry, op opcode.MemoryGrow, s MemoryGrowStep, fx *effects, t *Transition) error {
	if err := fx.arg(op.Arg, opcode.I32, s.Grow); err != nil {
		return err
	}
	//
	var (
		pages = uint64(e.AllocatedMemoryPages)
		// Without a context, either outcome is admissible.
		fits = ctx == nil || pages+s.Grow <= uint64(ctx.MaxPages)
		full = ctx == nil || !fits
	)
	//
	switch {
	case s.Result == pages && fits:
		t.PagesDelta = uint32(s.Grow)
	case s.Result == GrowFailure && full:
		t.PagesDelta = 0
	default:
		return fx.miss("memory.grow %d from %d pages returned %d", s.Grow, pages, s.Result)
	}
	//
	return fx.push(opcode.I32, s.Result)
}

func unary(fx *effects, arg opcode.UniArg, in, out opcode.VarType, operand, result, expected uint64) error {
	if result != expected {
		return fx.miss("result %#x (expected %#x)", result, expected)
	} else if err := fx.arg(arg, in, operand); err != nil {
		return err
	}
	//
	return fx.push(out, result)
}

func binary(fx *effects, args [2]opcode.UniArg, in, out opcode.VarType, lhs, rhs, result, expected uint64) error {
	if result != expected {
		return fx.miss("result %#x (expected %#x)", result, expected)
	} else if err := fx.arg(args[1], in, rhs); err != nil {
		return err
	} else if err := fx.arg(args[0], in, lhs); err != nil {
		return err
	}
	//
	return fx.push(out, result)
}
