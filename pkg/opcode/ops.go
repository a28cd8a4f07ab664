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

// UnaryOp identifies a unary numeric operation.
type UnaryOp uint8

const (
	// Ctz counts trailing zeros.
	Ctz UnaryOp = iota
	// Clz counts leading zeros.
	Clz
	// Popcnt counts set bits.
	Popcnt
)

var unaryNames = []string{"ctz", "clz", "popcnt"}

func (op UnaryOp) String() string { return unaryNames[op] }

// BinOp identifies an arithmetic binary operation.
type BinOp uint8

const (
	// Add is wrapping addition.
	Add BinOp = iota
	// Sub is wrapping subtraction.
	Sub
	// Mul is wrapping multiplication.
	Mul
	// UnsignedDiv is unsigned division.
	UnsignedDiv
	// UnsignedRem is unsigned remainder.
	UnsignedRem
	// SignedDiv is signed division.
	SignedDiv
	// SignedRem is signed remainder.
	SignedRem
)

var binNames = []string{"add", "sub", "mul", "div_u", "rem_u", "div_s", "rem_s"}

func (op BinOp) String() string { return binNames[op] }

// ShiftOp identifies a shift or rotate operation.
type ShiftOp uint8

const (
	// Shl is a left shift.
	Shl ShiftOp = iota
	// UnsignedShr is a logical right shift.
	UnsignedShr
	// SignedShr is an arithmetic right shift.
	SignedShr
	// Rotl is a left rotation.
	Rotl
	// Rotr is a right rotation.
	Rotr
)

var shiftNames = []string{"shl", "shr_u", "shr_s", "rotl", "rotr"}

func (op ShiftOp) String() string { return shiftNames[op] }

// BitOp identifies a bitwise operation.
type BitOp uint8

const (
	// And is bitwise and.
	And BitOp = iota
	// Or is bitwise or.
	Or
	// Xor is bitwise exclusive or.
	Xor
)

var bitNames = []string{"and", "or", "xor"}

func (op BitOp) String() string { return bitNames[op] }

// TestOp identifies a test operation.
type TestOp uint8

const (
	// Eqz tests for zero.
	Eqz TestOp = iota
)

func (op TestOp) String() string { return "eqz" }

// RelOp identifies a comparison.
type RelOp uint8

const (
	// Eq is equality.
	Eq RelOp = iota
	// Ne is disequality.
	Ne
	// SignedGt is signed greater than.
	SignedGt
	// UnsignedGt is unsigned greater than.
	UnsignedGt
	// SignedGe is signed greater than or equal.
	SignedGe
	// UnsignedGe is unsigned greater than or equal.
	UnsignedGe
	// SignedLt is signed less than.
	SignedLt
	// UnsignedLt is unsigned less than.
	UnsignedLt
	// SignedLe is signed less than or equal.
	SignedLe
	// UnsignedLe is unsigned less than or equal.
	UnsignedLe
)

var relNames = []string{"eq", "ne", "gt_s", "gt_u", "ge_s", "ge_u", "lt_s", "lt_u", "le_s", "le_u"}

func (op RelOp) String() string { return relNames[op] }

// ConversionOp identifies a conversion between integer types, including the
// sign extension operators.
type ConversionOp uint8

const (
	// I32WrapI64 truncates a 64-bit value.
	I32WrapI64 ConversionOp = iota
	// I64ExtendI32S sign extends a 32-bit value.
	I64ExtendI32S
	// I64ExtendI32U zero extends a 32-bit value.
	I64ExtendI32U
	// I32Extend8S sign extends the low byte of a 32-bit value.
	I32Extend8S
	// I32Extend16S sign extends the low half of a 32-bit value.
	I32Extend16S
	// I64Extend8S sign extends the low byte of a 64-bit value.
	I64Extend8S
	// I64Extend16S sign extends the low half of a 64-bit value.
	I64Extend16S
	// I64Extend32S sign extends the low word of a 64-bit value.
	I64Extend32S
)

// ConversionShape gives the structure of a conversion: whether it is signed,
// the width of the kept (narrow) part, and the input and output types.
type ConversionShape struct {
	Sign   bool
	From   uint
	Input  VarType
	Output VarType
}

var conversionShapes = []ConversionShape{
	{false, 32, I64, I32},
	{true, 32, I32, I64},
	{false, 32, I32, I64},
	{true, 8, I32, I32},
	{true, 16, I32, I32},
	{true, 8, I64, I64},
	{true, 16, I64, I64},
	{true, 32, I64, I64},
}

var conversionNames = []string{
	"i32.wrap_i64", "i64.extend_i32_s", "i64.extend_i32_u", "i32.extend8_s",
	"i32.extend16_s", "i64.extend8_s", "i64.extend16_s", "i64.extend32_s",
}

// Shape returns the shape of this conversion.
func (op ConversionOp) Shape() ConversionShape { return conversionShapes[op] }

func (op ConversionOp) String() string { return conversionNames[op] }

// ConversionFromShape finds the conversion with a given shape.
func ConversionFromShape(shape ConversionShape) (ConversionOp, bool) {
	for i, s := range conversionShapes {
		if s == shape {
			return ConversionOp(i), true
		}
	}
	//
	return 0, false
}

// LoadSize identifies the width and signedness of a memory load.
type LoadSize uint8

const (
	// U8 loads one byte, zero extended.
	U8 LoadSize = iota
	// S8 loads one byte, sign extended.
	S8
	// U16 loads two bytes, zero extended.
	U16
	// S16 loads two bytes, sign extended.
	S16
	// U32 loads four bytes, zero extended.
	U32
	// S32 loads four bytes, sign extended.
	S32
	// U64 loads eight bytes.
	U64
)

var loadNames = []string{"8_u", "8_s", "16_u", "16_s", "32_u", "32_s", "64"}

func (s LoadSize) String() string { return loadNames[s] }

// Bytes returns the number of bytes read by a load of this size.
func (s LoadSize) Bytes() uint64 {
	return []uint64{1, 1, 2, 2, 4, 4, 8}[s]
}

// Signed indicates whether this load sign extends.
func (s LoadSize) Signed() bool {
	return s == S8 || s == S16 || s == S32
}

// StoreSize identifies the width of a memory store.
type StoreSize uint8

const (
	// Byte8 stores one byte.
	Byte8 StoreSize = iota
	// Byte16 stores two bytes.
	Byte16
	// Byte32 stores four bytes.
	Byte32
	// Byte64 stores eight bytes.
	Byte64
)

// Bytes returns the number of bytes written by a store of this size.
func (s StoreSize) Bytes() uint64 {
	return []uint64{1, 2, 4, 8}[s]
}

func (s StoreSize) String() string {
	return []string{"8", "16", "32", "64"}[s]
}
