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
	"encoding/gob"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

// StepInfo carries the concrete runtime values consumed and produced by a
// single executed instruction.  Like opcodes, this is a closed sum type with
// exactly one variant per opcode class.
type StepInfo interface {
	// Class of opcode which this step executes.
	Class() opcode.Class
	// Marker restricting implementations to this package.
	isStep()
}

// LocalGetStep records the value copied by a local.get.
type LocalGetStep struct {
	Value uint64
}

// LocalSetStep records the value written by a local.set.
type LocalSetStep struct {
	Value uint64
}

// LocalTeeStep records the value copied by a local.tee.
type LocalTeeStep struct {
	Value uint64
}

// GlobalGetStep records the value read from a global.
type GlobalGetStep struct {
	Type  opcode.VarType
	Value uint64
}

// GlobalSetStep records the value written into a global.
type GlobalSetStep struct {
	Type  opcode.VarType
	Value uint64
}

// ConstStep records the execution of a constant.
type ConstStep struct{}

// DropStep records the execution of a drop.
type DropStep struct{}

// SelectStep records the operands and result of a select.
type SelectStep struct {
	Val1   uint64
	Val2   uint64
	Cond   uint64
	Result uint64
}

// ReturnStep records the values kept by a return.
type ReturnStep struct {
	Keep []uint64
}

// BrStep records the values kept by a branch.
type BrStep struct {
	Keep []uint64
}

// BrIfStep records the condition of a conditional branch, and the values kept
// when it is taken.
type BrIfStep struct {
	Cond uint64
	Keep []uint64
}

// BrIfEqzStep records the condition of a conditional branch, and the values
// kept when it is taken.
type BrIfEqzStep struct {
	Cond uint64
	Keep []uint64
}

// BrTableStep records the (unclamped) index of a branch table, and the values
// kept.
type BrTableStep struct {
	Index uint64
	Keep  []uint64
}

// UnreachableStep records a trap.
type UnreachableStep struct{}

// CallStep records a direct call.
type CallStep struct{}

// CallIndirectStep records the table offset and the function it resolved to.
type CallIndirectStep struct {
	Offset    uint64
	FuncIndex uint32
}

// CallHostStep records the arguments and results of a host call.
type CallHostStep struct {
	Args []uint64
	Ret  []uint64
}

// ExternalHostCallStep records the value passed to or returned by the host.
type ExternalHostCallStep struct {
	Value uint64
}

// LoadStep records the address, blocks read and value loaded.  Block2 is only
// meaningful when the load crosses a block boundary.
type LoadStep struct {
	Address uint64
	Block1  uint64
	Block2  uint64
	Value   uint64
}

// StoreStep records the address, value stored, and the blocks before and after
// the store.  The second block is only meaningful when the store crosses a
// block boundary.
type StoreStep struct {
	Address    uint64
	Value      uint64
	PreBlock1  uint64
	PreBlock2  uint64
	PostBlock1 uint64
	PostBlock2 uint64
}

// MemorySizeStep records a memory.size.
type MemorySizeStep struct{}

// MemoryGrowStep records the requested growth and its result (the old number
// of pages, or 0xffffffff on failure).
type MemoryGrowStep struct {
	Grow   uint64
	Result uint64
}

// UnaryStep records the operand and result of a unary operator.
type UnaryStep struct {
	Operand uint64
	Result  uint64
}

// BinStep records the operands and result of an arithmetic operator.
type BinStep struct {
	Lhs    uint64
	Rhs    uint64
	Result uint64
}

// BinShiftStep records the operands and result of a shift.
type BinShiftStep struct {
	Lhs    uint64
	Rhs    uint64
	Result uint64
}

// BinBitStep records the operands and result of a bitwise operator.
type BinBitStep struct {
	Lhs    uint64
	Rhs    uint64
	Result uint64
}

// TestStep records the operand and result of a test.
type TestStep struct {
	Operand uint64
	Result  uint64
}

// RelStep records the operands and result of a comparison.
type RelStep struct {
	Lhs    uint64
	Rhs    uint64
	Result uint64
}

// ConversionStep records the operand and result of a conversion.
type ConversionStep struct {
	Operand uint64
	Result  uint64
}

// Class implementation for StepInfo interface.
func (LocalGetStep) Class() opcode.Class         { return opcode.ClassLocalGet }
func (LocalSetStep) Class() opcode.Class         { return opcode.ClassLocalSet }
func (LocalTeeStep) Class() opcode.Class         { return opcode.ClassLocalTee }
func (GlobalGetStep) Class() opcode.Class        { return opcode.ClassGlobalGet }
func (GlobalSetStep) Class() opcode.Class        { return opcode.ClassGlobalSet }
func (ConstStep) Class() opcode.Class            { return opcode.ClassConst }
func (DropStep) Class() opcode.Class             { return opcode.ClassDrop }
func (SelectStep) Class() opcode.Class           { return opcode.ClassSelect }
func (ReturnStep) Class() opcode.Class           { return opcode.ClassReturn }
func (BrStep) Class() opcode.Class               { return opcode.ClassBr }
func (BrIfStep) Class() opcode.Class             { return opcode.ClassBrIf }
func (BrIfEqzStep) Class() opcode.Class          { return opcode.ClassBrIfEqz }
func (BrTableStep) Class() opcode.Class          { return opcode.ClassBrTable }
func (UnreachableStep) Class() opcode.Class      { return opcode.ClassUnreachable }
func (CallStep) Class() opcode.Class             { return opcode.ClassCall }
func (CallIndirectStep) Class() opcode.Class     { return opcode.ClassCallIndirect }
func (CallHostStep) Class() opcode.Class         { return opcode.ClassCallHost }
func (ExternalHostCallStep) Class() opcode.Class { return opcode.ClassExternalHostCall }
func (LoadStep) Class() opcode.Class             { return opcode.ClassLoad }
func (StoreStep) Class() opcode.Class            { return opcode.ClassStore }
func (MemorySizeStep) Class() opcode.Class       { return opcode.ClassMemorySize }
func (MemoryGrowStep) Class() opcode.Class       { return opcode.ClassMemoryGrow }
func (UnaryStep) Class() opcode.Class            { return opcode.ClassUnary }
func (BinStep) Class() opcode.Class              { return opcode.ClassBin }
func (BinShiftStep) Class() opcode.Class         { return opcode.ClassBinShift }
func (BinBitStep) Class() opcode.Class           { return opcode.ClassBinBit }
func (TestStep) Class() opcode.Class             { return opcode.ClassTest }
func (RelStep) Class() opcode.Class              { return opcode.ClassRel }
func (ConversionStep) Class() opcode.Class       { return opcode.ClassConversion }

func (LocalGetStep) isStep()         {}
func (LocalSetStep) isStep()         {}
func (LocalTeeStep) isStep()         {}
func (GlobalGetStep) isStep()        {}
func (GlobalSetStep) isStep()        {}
func (ConstStep) isStep()            {}
func (DropStep) isStep()             {}
func (SelectStep) isStep()           {}
func (ReturnStep) isStep()           {}
func (BrStep) isStep()               {}
func (BrIfStep) isStep()             {}
func (BrIfEqzStep) isStep()          {}
func (BrTableStep) isStep()          {}
func (UnreachableStep) isStep()      {}
func (CallStep) isStep()             {}
func (CallIndirectStep) isStep()     {}
func (CallHostStep) isStep()         {}
func (ExternalHostCallStep) isStep() {}
func (LoadStep) isStep()             {}
func (StoreStep) isStep()            {}
func (MemorySizeStep) isStep()       {}
func (MemoryGrowStep) isStep()       {}
func (UnaryStep) isStep()            {}
func (BinStep) isStep()              {}
func (BinShiftStep) isStep()         {}
func (BinBitStep) isStep()           {}
func (TestStep) isStep()             {}
func (RelStep) isStep()              {}
func (ConversionStep) isStep()       {}

// GobEncode a step which carries no values.
func (ConstStep) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode a step which carries no values.
func (*ConstStep) GobDecode([]byte) error { return nil }

// GobEncode a step which carries no values.
func (DropStep) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode a step which carries no values.
func (*DropStep) GobDecode([]byte) error { return nil }

// GobEncode a step which carries no values.
func (UnreachableStep) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode a step which carries no values.
func (*UnreachableStep) GobDecode([]byte) error { return nil }

// GobEncode a step which carries no values.
func (CallStep) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode a step which carries no values.
func (*CallStep) GobDecode([]byte) error { return nil }

// GobEncode a step which carries no values.
func (MemorySizeStep) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode a step which carries no values.
func (*MemorySizeStep) GobDecode([]byte) error { return nil }

func init() {
	for _, s := range []StepInfo{
		LocalGetStep{}, LocalSetStep{}, LocalTeeStep{}, GlobalGetStep{}, GlobalSetStep{}, ConstStep{},
		DropStep{}, SelectStep{}, ReturnStep{}, BrStep{}, BrIfStep{}, BrIfEqzStep{}, BrTableStep{},
		UnreachableStep{}, CallStep{}, CallIndirectStep{}, CallHostStep{}, ExternalHostCallStep{},
		LoadStep{}, StoreStep{}, MemorySizeStep{}, MemoryGrowStep{}, UnaryStep{}, BinStep{},
		BinShiftStep{}, BinBitStep{}, TestStep{}, RelStep{}, ConversionStep{},
	} {
		gob.Register(s)
	}
}
