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
package opcode

import (
	"fmt"
	"math"
)

// VarType identifies the type of a value held on the stack, in a global or in
// a local.
type VarType uint8

const (
	// I32 is a 32-bit integer.
	I32 VarType = iota
	// I64 is a 64-bit integer.
	I64
)

// Width returns the bitwidth of values of this type.
func (t VarType) Width() uint {
	if t == I32 {
		return 32
	}
	//
	return 64
}

// Truncate a value to the width of this type.
func (t VarType) Truncate(val uint64) uint64 {
	if t == I32 {
		return val & math.MaxUint32
	}
	//
	return val
}

func (t VarType) String() string {
	if t == I32 {
		return "i32"
	}
	//
	return "i64"
}

// UniArgKind identifies how an operand is sourced.
type UniArgKind uint8

const (
	// Pop indicates the operand is popped from the top of the stack.
	Pop UniArgKind = iota
	// Stack indicates the operand is read (without popping) from a given depth
	// below the current stack pointer.
	Stack
	// IConst indicates the operand is an immediate constant folded into the
	// instruction.
	IConst
)

// UniArg is a uniform argument descriptor.  It determines where an instruction
// obtains one of its operands.  Encoded, it occupies a 2-bit tag followed by a
// 64-bit payload.
type UniArg struct {
	Kind UniArgKind
	// Depth below the stack pointer (Stack only).
	Depth uint32
	// Immediate value (IConst only).
	Value uint64
}

// PopArg returns an argument which pops from the stack.
func PopArg() UniArg {
	return UniArg{Kind: Pop}
}

// StackArg returns an argument read from a given depth.
func StackArg(depth uint32) UniArg {
	return UniArg{Kind: Stack, Depth: depth}
}

// ConstArg returns an immediate argument.
func ConstArg(value uint64) UniArg {
	return UniArg{Kind: IConst, Value: value}
}

// IsPop indicates whether this argument pops the stack.
func (a UniArg) IsPop() bool {
	return a.Kind == Pop
}

// ReadsMemory indicates whether resolving this argument reads the stack.
func (a UniArg) ReadsMemory() bool {
	return a.Kind != IConst
}

// Tag returns the 2-bit tag used when encoding this argument.
func (a UniArg) Tag() uint64 {
	return uint64(a.Kind)
}

// Payload returns the 64-bit payload used when encoding this argument.
func (a UniArg) Payload() uint64 {
	switch a.Kind {
	case Stack:
		return uint64(a.Depth)
	case IConst:
		return a.Value
	default:
		return 0
	}
}

func (a UniArg) String() string {
	switch a.Kind {
	case Pop:
		return "pop"
	case Stack:
		return fmt.Sprintf("stack[%d]", a.Depth)
	default:
		return fmt.Sprintf("const(%d)", a.Value)
	}
}

// PopCount returns the number of stack pops performed when resolving a set of
// arguments.
func PopCount(args ...UniArg) uint32 {
	var n uint32
	//
	for _, a := range args {
		if a.IsPop() {
			n++
		}
	}
	//
	return n
}

// BrTarget describes one arm of a branch (or branch table): the number of
// values dropped from the stack, the types of the values kept (at most one),
// and the destination instruction.
type BrTarget struct {
	Drop uint32
	Keep []VarType
	Dst  uint32
}

// KeepType returns the type of the kept value (or I32 if nothing is kept).
func (t BrTarget) KeepType() VarType {
	if len(t.Keep) == 0 {
		return I32
	}
	//
	return t.Keep[0]
}

func keepBit(keep []VarType) uint64 {
	return uint64(len(keep))
}

func keepTypeBit(keep []VarType) uint64 {
	if len(keep) == 0 {
		return 0
	}
	//
	return uint64(keep[0])
}
