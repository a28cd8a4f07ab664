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

import "fmt"

// Class is the tag distinguishing the operand shape and semantics of an
// instruction.  The set of native classes is closed.  Tag zero is reserved for
// padding rows and is never assigned to an instruction.
type Class uint16

// The native opcode classes.
const (
	ClassLocalGet Class = iota + 1
	ClassLocalSet
	ClassLocalTee
	ClassGlobalGet
	ClassGlobalSet
	ClassConst
	ClassDrop
	ClassSelect
	ClassReturn
	ClassBr
	ClassBrIf
	ClassBrIfEqz
	ClassBrTable
	ClassUnreachable
	ClassCall
	ClassCallIndirect
	ClassCallHost
	ClassExternalHostCall
	ClassLoad
	ClassStore
	ClassMemorySize
	ClassMemoryGrow
	ClassUnary
	ClassBin
	ClassBinShift
	ClassBinBit
	ClassTest
	ClassRel
	ClassConversion
	// NumClasses is one more than the largest native class tag.
	NumClasses
)

// MaxSlots is the number of memory accesses a single instruction may make.
const MaxSlots = 6

// ForeignPluginStart is the first class tag available to host plugins.  The
// class tag of plugin i is ForeignPluginStart+i.
const ForeignPluginStart = 64

var classNames = map[Class]string{
	ClassLocalGet:         "LocalGet",
	ClassLocalSet:         "LocalSet",
	ClassLocalTee:         "LocalTee",
	ClassGlobalGet:        "GlobalGet",
	ClassGlobalSet:        "GlobalSet",
	ClassConst:            "Const",
	ClassDrop:             "Drop",
	ClassSelect:           "Select",
	ClassReturn:           "Return",
	ClassBr:               "Br",
	ClassBrIf:             "BrIf",
	ClassBrIfEqz:          "BrIfEqz",
	ClassBrTable:          "BrTable",
	ClassUnreachable:      "Unreachable",
	ClassCall:             "Call",
	ClassCallIndirect:     "CallIndirect",
	ClassCallHost:         "CallHost",
	ClassExternalHostCall: "ExternalHostCall",
	ClassLoad:             "Load",
	ClassStore:            "Store",
	ClassMemorySize:       "MemorySize",
	ClassMemoryGrow:       "MemoryGrow",
	ClassUnary:            "Unary",
	ClassBin:              "Bin",
	ClassBinShift:         "BinShift",
	ClassBinBit:           "BinBit",
	ClassTest:             "Test",
	ClassRel:              "Rel",
	ClassConversion:       "Conversion",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	//
	return fmt.Sprintf("Class(%d)", uint16(c))
}

// Classes returns all native classes in tag order.
func Classes() []Class {
	classes := make([]Class, 0, NumClasses-1)
	//
	for c := ClassLocalGet; c < NumClasses; c++ {
		classes = append(classes, c)
	}
	//
	return classes
}

// Kind identifies the width class of an operand field.
type Kind uint8

const (
	// Bit is a single bit flag.
	Bit Kind = iota
	// SmallRange is a small enumeration or size.
	SmallRange
	// U32Field is a 32-bit value.
	U32Field
	// U64Field is a 64-bit value.
	U64Field
	// FunctionID is a function index.
	FunctionID
	// UniArgField is a uniform argument descriptor (tag and payload).
	UniArgField
)

// Width returns the number of bits occupied by a field of this kind.
func (k Kind) Width() uint {
	switch k {
	case Bit:
		return 1
	case SmallRange:
		return 16
	case U32Field:
		return 32
	case U64Field:
		return 64
	case FunctionID:
		return 16
	case UniArgField:
		return UniArgTagWidth + 64
	}
	//
	panic("unknown field kind")
}

// UniArgTagWidth is the number of bits used for the tag of a uniform argument.
const UniArgTagWidth = 2

// Layout returns the static, ordered list of operand field kinds for a
// native class (most significant first).
func Layout(c Class) []Kind {
	switch c {
	case ClassLocalGet, ClassLocalTee:
		return []Kind{Bit, U32Field}
	case ClassLocalSet:
		return []Kind{Bit, U32Field, UniArgField}
	case ClassGlobalGet:
		return []Kind{U32Field}
	case ClassGlobalSet:
		return []Kind{U32Field, UniArgField}
	case ClassConst:
		return []Kind{Bit, U64Field}
	case ClassDrop, ClassUnreachable, ClassMemorySize:
		return nil
	case ClassSelect:
		return []Kind{Bit, UniArgField, UniArgField, UniArgField}
	case ClassReturn:
		return []Kind{U32Field, Bit, Bit}
	case ClassBr:
		return []Kind{U32Field, Bit, Bit, U32Field}
	case ClassBrIf, ClassBrIfEqz:
		return []Kind{U32Field, Bit, Bit, U32Field, UniArgField}
	case ClassBrTable:
		return []Kind{U32Field, UniArgField}
	case ClassCall:
		return []Kind{FunctionID}
	case ClassCallIndirect:
		return []Kind{U32Field, UniArgField}
	case ClassCallHost:
		// Host calls use their own two-field encoding
		return []Kind{U64Field}
	case ClassExternalHostCall:
		return []Kind{U32Field, Bit}
	case ClassLoad:
		return []Kind{U32Field, Bit, SmallRange, UniArgField}
	case ClassStore:
		return []Kind{U32Field, Bit, SmallRange, UniArgField, UniArgField}
	case ClassMemoryGrow:
		return []Kind{UniArgField}
	case ClassUnary, ClassTest:
		return []Kind{SmallRange, Bit, UniArgField}
	case ClassBin, ClassBinShift, ClassBinBit, ClassRel:
		return []Kind{SmallRange, Bit, UniArgField, UniArgField}
	case ClassConversion:
		return []Kind{Bit, SmallRange, Bit, Bit, UniArgField}
	}
	//
	panic(fmt.Sprintf("unknown opcode class %d", c))
}

// LayoutWidth returns the total number of bits required by the fields of a
// class.
func LayoutWidth(c Class) uint {
	var width uint
	//
	for _, k := range Layout(c) {
		width += k.Width()
	}
	//
	return width
}
