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
	"encoding/gob"
	"fmt"
)

// Opcode represents a single compiled instruction.  This is a closed sum type:
// the only implementations are the structs in this file, and consumers switch
// over them exhaustively.
type Opcode interface {
	// Class returns the class of this opcode.
	Class() Class
	// Fields returns the operand fields of this opcode, in the order of
	// Layout(Class()).
	Fields() []Field
	// Args returns the uniform arguments of this opcode in operand order (i.e.
	// the last argument is resolved first, since it is on top of the stack).
	Args() []UniArg
	//
	String() string
	// Marker restricting implementations to this package.
	isOpcode()
}

// Field is a single operand field of an encoded opcode.
type Field struct {
	Kind Kind
	// Value of the field, or the payload for a uniform argument.
	Value uint64
	// Tag of a uniform argument (otherwise zero).
	Tag uint64
}

func bitField(v uint64) Field      { return Field{Kind: Bit, Value: v} }
func smallField(v uint64) Field    { return Field{Kind: SmallRange, Value: v} }
func u32Field(v uint32) Field      { return Field{Kind: U32Field, Value: uint64(v)} }
func u64Field(v uint64) Field      { return Field{Kind: U64Field, Value: v} }
func fidField(v uint32) Field      { return Field{Kind: FunctionID, Value: uint64(v)} }
func argField(a UniArg) Field      { return Field{Kind: UniArgField, Value: a.Payload(), Tag: a.Tag()} }
func typeField(t VarType) Field    { return bitField(uint64(t)) }
func argFields(args ...UniArg) []Field {
	fields := make([]Field, len(args))
	for i, a := range args {
		fields[i] = argField(a)
	}
	//
	return fields
}

// LocalGet pushes a copy of the value at a given depth below the stack pointer.
type LocalGet struct {
	Type  VarType
	Depth uint32
}

// LocalSet writes its argument into the slot at a given depth below the stack
// pointer (after the argument is popped).
type LocalSet struct {
	Type  VarType
	Depth uint32
	Arg   UniArg
}

// LocalTee copies the top of the stack into the slot at a given depth.
type LocalTee struct {
	Type  VarType
	Depth uint32
}

// GlobalGet pushes the value of a global.
type GlobalGet struct {
	Index uint32
}

// GlobalSet writes its argument into a global.
type GlobalSet struct {
	Index uint32
	Arg   UniArg
}

// Const pushes a constant.
type Const struct {
	Type  VarType
	Value uint64
}

// Drop discards the top of the stack.
type Drop struct{}

// Select pushes one of two values depending on a condition.  The arguments are
// (val1, val2, cond).
type Select struct {
	Type VarType
	Arg  [3]UniArg
}

// Return leaves the current function, dropping a number of values below the
// kept values.
type Return struct {
	Drop uint32
	Keep []VarType
}

// Br is an unconditional branch.
type Br struct {
	Target BrTarget
}

// BrIf branches when its condition is non-zero.
type BrIf struct {
	Target BrTarget
	Arg    UniArg
}

// BrIfEqz branches when its condition is zero.
type BrIfEqz struct {
	Target BrTarget
	Arg    UniArg
}

// BrTable branches to the target selected by its (clamped) index argument.
// The last target is the default.
type BrTable struct {
	Targets []BrTarget
	Arg     UniArg
}

// Unreachable traps unconditionally.
type Unreachable struct{}

// Call invokes a function.
type Call struct {
	Index uint32
}

// CallIndirect invokes a function determined by a table lookup.
type CallIndirect struct {
	TypeIndex uint32
	Arg       UniArg
}

// PluginID identifies a host plugin.
type PluginID uint16

// CallHost invokes a function provided by a host plugin.
type CallHost struct {
	Plugin PluginID
	// Index of the function within the plugin.
	FunctionIndex uint32
	Name          string
	Params        []VarType
	Ret           []VarType
}

// ExternalHostCall passes one value to, or receives one value from, the host.
type ExternalHostCall struct {
	Op       uint32
	IsReturn bool
}

// Load pushes a value read from the heap.
type Load struct {
	Offset uint32
	Type   VarType
	Size   LoadSize
	Arg    UniArg
}

// Store writes a value into the heap.  The arguments are (address, value).
type Store struct {
	Offset uint32
	Type   VarType
	Size   StoreSize
	Arg    [2]UniArg
}

// MemorySize pushes the number of allocated pages.
type MemorySize struct{}

// MemoryGrow grows the heap by its argument (in pages).
type MemoryGrow struct {
	Arg UniArg
}

// Unary applies a unary operator.
type Unary struct {
	Op   UnaryOp
	Type VarType
	Arg  UniArg
}

// Bin applies an arithmetic operator.  The arguments are (lhs, rhs).
type Bin struct {
	Op   BinOp
	Type VarType
	Arg  [2]UniArg
}

// BinShift applies a shift operator.
type BinShift struct {
	Op   ShiftOp
	Type VarType
	Arg  [2]UniArg
}

// BinBit applies a bitwise operator.
type BinBit struct {
	Op   BitOp
	Type VarType
	Arg  [2]UniArg
}

// Test applies a test.
type Test struct {
	Op   TestOp
	Type VarType
	Arg  UniArg
}

// Rel applies a comparison.
type Rel struct {
	Op   RelOp
	Type VarType
	Arg  [2]UniArg
}

// Conversion converts between integer types.
type Conversion struct {
	Op  ConversionOp
	Arg UniArg
}

// ============================================================================
// Class
// ============================================================================

// Class implementation for Opcode interface.
func (LocalGet) Class() Class         { return ClassLocalGet }
func (LocalSet) Class() Class         { return ClassLocalSet }
func (LocalTee) Class() Class         { return ClassLocalTee }
func (GlobalGet) Class() Class        { return ClassGlobalGet }
func (GlobalSet) Class() Class        { return ClassGlobalSet }
func (Const) Class() Class            { return ClassConst }
func (Drop) Class() Class             { return ClassDrop }
func (Select) Class() Class           { return ClassSelect }
func (Return) Class() Class           { return ClassReturn }
func (Br) Class() Class               { return ClassBr }
func (BrIf) Class() Class             { return ClassBrIf }
func (BrIfEqz) Class() Class          { return ClassBrIfEqz }
func (BrTable) Class() Class          { return ClassBrTable }
func (Unreachable) Class() Class      { return ClassUnreachable }
func (Call) Class() Class             { return ClassCall }
func (CallIndirect) Class() Class     { return ClassCallIndirect }
func (CallHost) Class() Class         { return ClassCallHost }
func (ExternalHostCall) Class() Class { return ClassExternalHostCall }
func (Load) Class() Class             { return ClassLoad }
func (Store) Class() Class            { return ClassStore }
func (MemorySize) Class() Class       { return ClassMemorySize }
func (MemoryGrow) Class() Class       { return ClassMemoryGrow }
func (Unary) Class() Class            { return ClassUnary }
func (Bin) Class() Class              { return ClassBin }
func (BinShift) Class() Class         { return ClassBinShift }
func (BinBit) Class() Class           { return ClassBinBit }
func (Test) Class() Class             { return ClassTest }
func (Rel) Class() Class              { return ClassRel }
func (Conversion) Class() Class       { return ClassConversion }

// ============================================================================
// Fields
// ============================================================================

// Fields implementation for Opcode interface.
func (p LocalGet) Fields() []Field { return []Field{typeField(p.Type), u32Field(p.Depth)} }

// Fields implementation for Opcode interface.
func (p LocalSet) Fields() []Field {
	return []Field{typeField(p.Type), u32Field(p.Depth), argField(p.Arg)}
}

// Fields implementation for Opcode interface.
func (p LocalTee) Fields() []Field { return []Field{typeField(p.Type), u32Field(p.Depth)} }

// Fields implementation for Opcode interface.
func (p GlobalGet) Fields() []Field { return []Field{u32Field(p.Index)} }

// Fields implementation for Opcode interface.
func (p GlobalSet) Fields() []Field { return []Field{u32Field(p.Index), argField(p.Arg)} }

// Fields implementation for Opcode interface.
func (p Const) Fields() []Field { return []Field{typeField(p.Type), u64Field(p.Value)} }

// Fields implementation for Opcode interface.
func (p Drop) Fields() []Field { return nil }

// Fields implementation for Opcode interface.
func (p Select) Fields() []Field {
	return append([]Field{typeField(p.Type)}, argFields(p.Arg[:]...)...)
}

// Fields implementation for Opcode interface.
func (p Return) Fields() []Field {
	return []Field{u32Field(p.Drop), bitField(keepBit(p.Keep)), bitField(keepTypeBit(p.Keep))}
}

// Fields implementation for Opcode interface.
func (p Br) Fields() []Field {
	return targetFields(p.Target)
}

// Fields implementation for Opcode interface.
func (p BrIf) Fields() []Field {
	return append(targetFields(p.Target), argField(p.Arg))
}

// Fields implementation for Opcode interface.
func (p BrIfEqz) Fields() []Field {
	return append(targetFields(p.Target), argField(p.Arg))
}

// Fields implementation for Opcode interface.
func (p BrTable) Fields() []Field {
	return []Field{u32Field(uint32(len(p.Targets))), argField(p.Arg)}
}

// Fields implementation for Opcode interface.
func (p Unreachable) Fields() []Field { return nil }

// Fields implementation for Opcode interface.
func (p Call) Fields() []Field { return []Field{fidField(p.Index)} }

// Fields implementation for Opcode interface.
func (p CallIndirect) Fields() []Field { return []Field{u32Field(p.TypeIndex), argField(p.Arg)} }

// Fields implementation for Opcode interface.
func (p CallHost) Fields() []Field { return []Field{u64Field(uint64(p.FunctionIndex))} }

// Fields implementation for Opcode interface.
func (p ExternalHostCall) Fields() []Field {
	return []Field{u32Field(p.Op), bitField(boolValue(p.IsReturn))}
}

// Fields implementation for Opcode interface.
func (p Load) Fields() []Field {
	return []Field{u32Field(p.Offset), typeField(p.Type), smallField(uint64(p.Size)), argField(p.Arg)}
}

// Fields implementation for Opcode interface.
func (p Store) Fields() []Field {
	return append([]Field{u32Field(p.Offset), typeField(p.Type), smallField(uint64(p.Size))},
		argFields(p.Arg[:]...)...)
}

// Fields implementation for Opcode interface.
func (p MemorySize) Fields() []Field { return nil }

// Fields implementation for Opcode interface.
func (p MemoryGrow) Fields() []Field { return []Field{argField(p.Arg)} }

// Fields implementation for Opcode interface.
func (p Unary) Fields() []Field {
	return []Field{smallField(uint64(p.Op)), typeField(p.Type), argField(p.Arg)}
}

// Fields implementation for Opcode interface.
func (p Bin) Fields() []Field {
	return append([]Field{smallField(uint64(p.Op)), typeField(p.Type)}, argFields(p.Arg[:]...)...)
}

// Fields implementation for Opcode interface.
func (p BinShift) Fields() []Field {
	return append([]Field{smallField(uint64(p.Op)), typeField(p.Type)}, argFields(p.Arg[:]...)...)
}

// Fields implementation for Opcode interface.
func (p BinBit) Fields() []Field {
	return append([]Field{smallField(uint64(p.Op)), typeField(p.Type)}, argFields(p.Arg[:]...)...)
}

// Fields implementation for Opcode interface.
func (p Test) Fields() []Field {
	return []Field{smallField(uint64(p.Op)), typeField(p.Type), argField(p.Arg)}
}

// Fields implementation for Opcode interface.
func (p Rel) Fields() []Field {
	return append([]Field{smallField(uint64(p.Op)), typeField(p.Type)}, argFields(p.Arg[:]...)...)
}

// Fields implementation for Opcode interface.
func (p Conversion) Fields() []Field {
	shape := p.Op.Shape()
	//
	return []Field{
		bitField(boolValue(shape.Sign)), smallField(uint64(shape.From)),
		typeField(shape.Input), typeField(shape.Output), argField(p.Arg),
	}
}

func targetFields(t BrTarget) []Field {
	return []Field{u32Field(t.Drop), bitField(keepBit(t.Keep)), bitField(keepTypeBit(t.Keep)), u32Field(t.Dst)}
}

// ============================================================================
// Args
// ============================================================================

// Args implementation for Opcode interface.
func (p LocalGet) Args() []UniArg         { return nil }
func (p LocalSet) Args() []UniArg         { return []UniArg{p.Arg} }
func (p LocalTee) Args() []UniArg         { return nil }
func (p GlobalGet) Args() []UniArg        { return nil }
func (p GlobalSet) Args() []UniArg        { return []UniArg{p.Arg} }
func (p Const) Args() []UniArg            { return nil }
func (p Drop) Args() []UniArg             { return nil }
func (p Select) Args() []UniArg           { return p.Arg[:] }
func (p Return) Args() []UniArg           { return nil }
func (p Br) Args() []UniArg               { return nil }
func (p BrIf) Args() []UniArg             { return []UniArg{p.Arg} }
func (p BrIfEqz) Args() []UniArg          { return []UniArg{p.Arg} }
func (p BrTable) Args() []UniArg          { return []UniArg{p.Arg} }
func (p Unreachable) Args() []UniArg      { return nil }
func (p Call) Args() []UniArg             { return nil }
func (p CallIndirect) Args() []UniArg     { return []UniArg{p.Arg} }
func (p CallHost) Args() []UniArg         { return nil }
func (p ExternalHostCall) Args() []UniArg { return nil }
func (p Load) Args() []UniArg             { return []UniArg{p.Arg} }
func (p Store) Args() []UniArg            { return p.Arg[:] }
func (p MemorySize) Args() []UniArg       { return nil }
func (p MemoryGrow) Args() []UniArg       { return []UniArg{p.Arg} }
func (p Unary) Args() []UniArg            { return []UniArg{p.Arg} }
func (p Bin) Args() []UniArg              { return p.Arg[:] }
func (p BinShift) Args() []UniArg         { return p.Arg[:] }
func (p BinBit) Args() []UniArg           { return p.Arg[:] }
func (p Test) Args() []UniArg             { return []UniArg{p.Arg} }
func (p Rel) Args() []UniArg              { return p.Arg[:] }
func (p Conversion) Args() []UniArg       { return []UniArg{p.Arg} }

// ============================================================================
// String
// ============================================================================

func (p LocalGet) String() string { return fmt.Sprintf("local.get %s %d", p.Type, p.Depth) }
func (p LocalSet) String() string { return fmt.Sprintf("local.set %s %d %s", p.Type, p.Depth, p.Arg) }
func (p LocalTee) String() string { return fmt.Sprintf("local.tee %s %d", p.Type, p.Depth) }
func (p GlobalGet) String() string { return fmt.Sprintf("global.get %d", p.Index) }
func (p GlobalSet) String() string { return fmt.Sprintf("global.set %d %s", p.Index, p.Arg) }
func (p Const) String() string     { return fmt.Sprintf("%s.const %d", p.Type, p.Value) }
func (p Drop) String() string      { return "drop" }
func (p Select) String() string {
	return fmt.Sprintf("select %s %s %s %s", p.Type, p.Arg[0], p.Arg[1], p.Arg[2])
}
func (p Return) String() string  { return fmt.Sprintf("return drop=%d keep=%v", p.Drop, p.Keep) }
func (p Br) String() string      { return fmt.Sprintf("br %s", p.Target) }
func (p BrIf) String() string    { return fmt.Sprintf("br_if %s %s", p.Target, p.Arg) }
func (p BrIfEqz) String() string { return fmt.Sprintf("br_if_eqz %s %s", p.Target, p.Arg) }
func (p BrTable) String() string { return fmt.Sprintf("br_table %v %s", p.Targets, p.Arg) }
func (p Unreachable) String() string {
	return "unreachable"
}
func (p Call) String() string { return fmt.Sprintf("call %d", p.Index) }
func (p CallIndirect) String() string {
	return fmt.Sprintf("call_indirect %d %s", p.TypeIndex, p.Arg)
}
func (p CallHost) String() string {
	return fmt.Sprintf("call_host %s (plugin %d, fn %d)", p.Name, p.Plugin, p.FunctionIndex)
}
func (p ExternalHostCall) String() string {
	return fmt.Sprintf("external_host_call %d ret=%t", p.Op, p.IsReturn)
}
func (p Load) String() string {
	return fmt.Sprintf("%s.load%s offset=%d %s", p.Type, p.Size, p.Offset, p.Arg)
}
func (p Store) String() string {
	return fmt.Sprintf("%s.store%s offset=%d %s %s", p.Type, p.Size, p.Offset, p.Arg[0], p.Arg[1])
}
func (p MemorySize) String() string { return "memory.size" }
func (p MemoryGrow) String() string { return fmt.Sprintf("memory.grow %s", p.Arg) }
func (p Unary) String() string      { return fmt.Sprintf("%s.%s %s", p.Type, p.Op, p.Arg) }
func (p Bin) String() string        { return fmt.Sprintf("%s.%s %s %s", p.Type, p.Op, p.Arg[0], p.Arg[1]) }
func (p BinShift) String() string {
	return fmt.Sprintf("%s.%s %s %s", p.Type, p.Op, p.Arg[0], p.Arg[1])
}
func (p BinBit) String() string {
	return fmt.Sprintf("%s.%s %s %s", p.Type, p.Op, p.Arg[0], p.Arg[1])
}
func (p Test) String() string       { return fmt.Sprintf("%s.%s %s", p.Type, p.Op, p.Arg) }
func (p Rel) String() string        { return fmt.Sprintf("%s.%s %s %s", p.Type, p.Op, p.Arg[0], p.Arg[1]) }
func (p Conversion) String() string { return fmt.Sprintf("%s %s", p.Op, p.Arg) }

func (t BrTarget) String() string {
	return fmt.Sprintf("(drop=%d keep=%v dst=%d)", t.Drop, t.Keep, t.Dst)
}

func (LocalGet) isOpcode()         {}
func (LocalSet) isOpcode()         {}
func (LocalTee) isOpcode()         {}
func (GlobalGet) isOpcode()        {}
func (GlobalSet) isOpcode()        {}
func (Const) isOpcode()            {}
func (Drop) isOpcode()             {}
func (Select) isOpcode()           {}
func (Return) isOpcode()           {}
func (Br) isOpcode()               {}
func (BrIf) isOpcode()             {}
func (BrIfEqz) isOpcode()          {}
func (BrTable) isOpcode()          {}
func (Unreachable) isOpcode()      {}
func (Call) isOpcode()             {}
func (CallIndirect) isOpcode()     {}
func (CallHost) isOpcode()         {}
func (ExternalHostCall) isOpcode() {}
func (Load) isOpcode()             {}
func (Store) isOpcode()            {}
func (MemorySize) isOpcode()       {}
func (MemoryGrow) isOpcode()       {}
func (Unary) isOpcode()            {}
func (Bin) isOpcode()              {}
func (BinShift) isOpcode()         {}
func (BinBit) isOpcode()           {}
func (Test) isOpcode()             {}
func (Rel) isOpcode()              {}
func (Conversion) isOpcode()       {}

func init() {
	// Register opcodes so they can be persisted via gob.
	for _, op := range []Opcode{
		LocalGet{}, LocalSet{}, LocalTee{}, GlobalGet{}, GlobalSet{}, Const{}, Drop{}, Select{}, Return{},
		Br{}, BrIf{}, BrIfEqz{}, BrTable{}, Unreachable{}, Call{}, CallIndirect{}, CallHost{},
		ExternalHostCall{}, Load{}, Store{}, MemorySize{}, MemoryGrow{}, Unary{}, Bin{}, BinShift{},
		BinBit{}, Test{}, Rel{}, Conversion{},
	} {
		gob.Register(op)
	}
}

// GobEncode an opcode which carries no operands.
func (Drop) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode an opcode which carries no operands.
func (*Drop) GobDecode([]byte) error { return nil }

// GobEncode an opcode which carries no operands.
func (Unreachable) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode an opcode which carries no operands.
func (*Unreachable) GobDecode([]byte) error { return nil }

// GobEncode an opcode which carries no operands.
func (MemorySize) GobEncode() ([]byte, error) { return []byte{0}, nil }

// GobDecode an opcode which carries no operands.
func (*MemorySize) GobDecode([]byte) error { return nil }
