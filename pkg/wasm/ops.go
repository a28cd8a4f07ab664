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
package wasm

import (
	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
	ops "github.com/go-interpreter/wagon/wasm/operators"
)

// simple describes an instruction which pops its operands and pushes at most
// one result, and so lowers to exactly one opcode.
type simple struct {
	op     opcode.Opcode
	args   []opcode.VarType
	result []opcode.VarType
}

var (
	pop  = opcode.PopArg()
	pop2 = [2]opcode.UniArg{pop, pop}
	i32  = opcode.I32
	i64  = opcode.I64
)

func unary(op opcode.UnaryOp, t opcode.VarType) simple {
	return simple{opcode.Unary{Op: op, Type: t, Arg: pop}, []opcode.VarType{t}, []opcode.VarType{t}}
}

func bin(op opcode.BinOp, t opcode.VarType) simple {
	return simple{opcode.Bin{Op: op, Type: t, Arg: pop2}, []opcode.VarType{t, t}, []opcode.VarType{t}}
}

func shift(op opcode.ShiftOp, t opcode.VarType) simple {
	return simple{opcode.BinShift{Op: op, Type: t, Arg: pop2}, []opcode.VarType{t, t}, []opcode.VarType{t}}
}

func bit(op opcode.BitOp, t opcode.VarType) simple {
	return simple{opcode.BinBit{Op: op, Type: t, Arg: pop2}, []opcode.VarType{t, t}, []opcode.VarType{t}}
}

func rel(op opcode.RelOp, t opcode.VarType) simple {
	return simple{opcode.Rel{Op: op, Type: t, Arg: pop2}, []opcode.VarType{t, t}, []opcode.VarType{i32}}
}

func eqz(t opcode.VarType) simple {
	return simple{opcode.Test{Op: opcode.Eqz, Type: t, Arg: pop}, []opcode.VarType{t}, []opcode.VarType{i32}}
}

func conversion(op opcode.ConversionOp) simple {
	shape := op.Shape()
	return simple{opcode.Conversion{Op: op, Arg: pop}, []opcode.VarType{shape.Input}, []opcode.VarType{shape.Output}}
}

func load(t opcode.VarType, size opcode.LoadSize) simple {
	return simple{opcode.Load{Type: t, Size: size, Arg: pop}, []opcode.VarType{i32}, []opcode.VarType{t}}
}

func store(t opcode.VarType, size opcode.StoreSize) simple {
	return simple{opcode.Store{Type: t, Size: size, Arg: pop2}, []opcode.VarType{i32, t}, nil}
}

// Numeric instructions, keyed by their binary encoding.
var numeric = map[byte]simple{
	ops.I32Eqz: eqz(i32), ops.I64Eqz: eqz(i64),
	// i32 comparisons
	ops.I32Eq: rel(opcode.Eq, i32), ops.I32Ne: rel(opcode.Ne, i32),
	ops.I32LtS: rel(opcode.SignedLt, i32), ops.I32LtU: rel(opcode.UnsignedLt, i32),
	ops.I32GtS: rel(opcode.SignedGt, i32), ops.I32GtU: rel(opcode.UnsignedGt, i32),
	ops.I32LeS: rel(opcode.SignedLe, i32), ops.I32LeU: rel(opcode.UnsignedLe, i32),
	ops.I32GeS: rel(opcode.SignedGe, i32), ops.I32GeU: rel(opcode.UnsignedGe, i32),
	// i64 comparisons
	ops.I64Eq: rel(opcode.Eq, i64), ops.I64Ne: rel(opcode.Ne, i64),
	ops.I64LtS: rel(opcode.SignedLt, i64), ops.I64LtU: rel(opcode.UnsignedLt, i64),
	ops.I64GtS: rel(opcode.SignedGt, i64), ops.I64GtU: rel(opcode.UnsignedGt, i64),
	ops.I64LeS: rel(opcode.SignedLe, i64), ops.I64LeU: rel(opcode.UnsignedLe, i64),
	ops.I64GeS: rel(opcode.SignedGe, i64), ops.I64GeU: rel(opcode.UnsignedGe, i64),
	// i32 arithmetic
	ops.I32Clz: unary(opcode.Clz, i32), ops.I32Ctz: unary(opcode.Ctz, i32),
	ops.I32Popcnt: unary(opcode.Popcnt, i32),
	ops.I32Add: bin(opcode.Add, i32), ops.I32Sub: bin(opcode.Sub, i32), ops.I32Mul: bin(opcode.Mul, i32),
	ops.I32DivS: bin(opcode.SignedDiv, i32), ops.I32DivU: bin(opcode.UnsignedDiv, i32),
	ops.I32RemS: bin(opcode.SignedRem, i32), ops.I32RemU: bin(opcode.UnsignedRem, i32),
	ops.I32And: bit(opcode.And, i32), ops.I32Or: bit(opcode.Or, i32), ops.I32Xor: bit(opcode.Xor, i32),
	ops.I32Shl: shift(opcode.Shl, i32), ops.I32ShrS: shift(opcode.SignedShr, i32),
	ops.I32ShrU: shift(opcode.UnsignedShr, i32), ops.I32Rotl: shift(opcode.Rotl, i32),
	ops.I32Rotr: shift(opcode.Rotr, i32),
	// i64 arithmetic
	ops.I64Clz: unary(opcode.Clz, i64), ops.I64Ctz: unary(opcode.Ctz, i64),
	ops.I64Popcnt: unary(opcode.Popcnt, i64),
	ops.I64Add: bin(opcode.Add, i64), ops.I64Sub: bin(opcode.Sub, i64), ops.I64Mul: bin(opcode.Mul, i64),
	ops.I64DivS: bin(opcode.SignedDiv, i64), ops.I64DivU: bin(opcode.UnsignedDiv, i64),
	ops.I64RemS: bin(opcode.SignedRem, i64), ops.I64RemU: bin(opcode.UnsignedRem, i64),
	ops.I64And: bit(opcode.And, i64), ops.I64Or: bit(opcode.Or, i64), ops.I64Xor: bit(opcode.Xor, i64),
	ops.I64Shl: shift(opcode.Shl, i64), ops.I64ShrS: shift(opcode.SignedShr, i64),
	ops.I64ShrU: shift(opcode.UnsignedShr, i64), ops.I64Rotl: shift(opcode.Rotl, i64),
	ops.I64Rotr: shift(opcode.Rotr, i64),
	// conversions
	ops.I32WrapI64:    conversion(opcode.I32WrapI64),
	ops.I64ExtendSI32: conversion(opcode.I64ExtendI32S),
	ops.I64ExtendUI32: conversion(opcode.I64ExtendI32U),
	// loads
	ops.I32Load: load(i32, opcode.U32), ops.I64Load: load(i64, opcode.U64),
	ops.I32Load8s: load(i32, opcode.S8), ops.I32Load8u: load(i32, opcode.U8),
	ops.I32Load16s: load(i32, opcode.S16), ops.I32Load16u: load(i32, opcode.U16),
	ops.I64Load8s: load(i64, opcode.S8), ops.I64Load8u: load(i64, opcode.U8),
	ops.I64Load16s: load(i64, opcode.S16), ops.I64Load16u: load(i64, opcode.U16),
	ops.I64Load32s: load(i64, opcode.S32), ops.I64Load32u: load(i64, opcode.U32),
	// stores
	ops.I32Store: store(i32, opcode.Byte32), ops.I64Store: store(i64, opcode.Byte64),
	ops.I32Store8: store(i32, opcode.Byte8), ops.I32Store16: store(i32, opcode.Byte16),
	ops.I64Store8: store(i64, opcode.Byte8), ops.I64Store16: store(i64, opcode.Byte16),
	ops.I64Store32: store(i64, opcode.Byte32),
	// memory
	ops.CurrentMemory: {opcode.MemorySize{}, nil, []opcode.VarType{i32}},
	ops.GrowMemory:    {opcode.MemoryGrow{Arg: pop}, []opcode.VarType{i32}, []opcode.VarType{i32}},
}
