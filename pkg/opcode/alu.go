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
	"errors"
	"fmt"
	"math/bits"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
)

// BlockWidth is the width (in bytes) of a heap block.
const BlockWidth = 8

// ErrDivisionByZero is returned for an integer division (or remainder) by zero.
var ErrDivisionByZero = errors.New("integer divide by zero")

// ErrIntegerOverflow is returned for a signed division overflow.
var ErrIntegerOverflow = errors.New("integer overflow")

// Apply this unary operator to a value of a given type.
func (op UnaryOp) Apply(t VarType, v uint64) uint64 {
	v = t.Truncate(v)
	//
	switch op {
	case Ctz:
		if t == I32 {
			return uint64(bits.TrailingZeros32(uint32(v)))
		}
		//
		return uint64(bits.TrailingZeros64(v))
	case Clz:
		if t == I32 {
			return uint64(bits.LeadingZeros32(uint32(v)))
		}
		//
		return uint64(bits.LeadingZeros64(v))
	default:
		return uint64(bits.OnesCount64(v))
	}
}

// Apply this binary operator to two values of a given type.
func (op BinOp) Apply(t VarType, a, b uint64) (uint64, error) {
	a, b = t.Truncate(a), t.Truncate(b)
	//
	switch op {
	case Add:
		return t.Truncate(a + b), nil
	case Sub:
		return t.Truncate(a - b), nil
	case Mul:
		return t.Truncate(a * b), nil
	}
	//
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	//
	switch op {
	case UnsignedDiv:
		return a / b, nil
	case UnsignedRem:
		return a % b, nil
	}
	// Signed cases
	var sa, sb = toSigned(t, a), toSigned(t, b)
	//
	if op == SignedDiv {
		if sb == -1 && sa == minSigned(t) {
			return 0, ErrIntegerOverflow
		}
		//
		return t.Truncate(uint64(sa / sb)), nil
	} else if sb == -1 {
		return 0, nil
	}
	//
	return t.Truncate(uint64(sa % sb)), nil
}

// Apply this shift operator to two values of a given type.
func (op ShiftOp) Apply(t VarType, a, b uint64) uint64 {
	var (
		width = uint64(t.Width())
		n     = b % width
	)
	//
	a = t.Truncate(a)
	//
	switch op {
	case Shl:
		return t.Truncate(a << n)
	case UnsignedShr:
		return a >> n
	case SignedShr:
		return t.Truncate(uint64(toSigned(t, a) >> n))
	case Rotl:
		if t == I32 {
			return uint64(bits.RotateLeft32(uint32(a), int(n)))
		}
		//
		return bits.RotateLeft64(a, int(n))
	default:
		if t == I32 {
			return uint64(bits.RotateLeft32(uint32(a), -int(n)))
		}
		//
		return bits.RotateLeft64(a, -int(n))
	}
}

// Apply this bitwise operator to two values of a given type.
func (op BitOp) Apply(t VarType, a, b uint64) uint64 {
	switch op {
	case And:
		return t.Truncate(a & b)
	case Or:
		return t.Truncate(a | b)
	default:
		return t.Truncate(a ^ b)
	}
}

// Apply this test to a value of a given type.
func (op TestOp) Apply(t VarType, v uint64) uint64 {
	return boolValue(t.Truncate(v) == 0)
}

// Apply this comparison to two values of a given type.
func (op RelOp) Apply(t VarType, a, b uint64) uint64 {
	a, b = t.Truncate(a), t.Truncate(b)
	sa, sb := toSigned(t, a), toSigned(t, b)
	//
	switch op {
	case Eq:
		return boolValue(a == b)
	case Ne:
		return boolValue(a != b)
	case SignedGt:
		return boolValue(sa > sb)
	case UnsignedGt:
		return boolValue(a > b)
	case SignedGe:
		return boolValue(sa >= sb)
	case UnsignedGe:
		return boolValue(a >= b)
	case SignedLt:
		return boolValue(sa < sb)
	case UnsignedLt:
		return boolValue(a < b)
	case SignedLe:
		return boolValue(sa <= sb)
	default:
		return boolValue(a <= b)
	}
}

// Apply this conversion to a value.  The value is split into the kept low part
// (of the narrow width) and the high padding.  The padding is all ones only
// for signed conversions whose kept part has its most significant bit set.
func (op ConversionOp) Apply(v uint64) uint64 {
	shape := op.Shape()
	kept := v & util.Mask(shape.From)
	//
	if shape.Sign && util.SignBit(kept, shape.From) == 1 {
		kept |= util.Mask(shape.Output.Width()) &^ util.Mask(shape.From)
	}
	//
	return shape.Output.Truncate(kept)
}

// Operate applies the numeric operator with a given class and (encoded)
// index to a given pair of operands.  Unary operators and tests ignore the
// right operand.  This fails for an unknown operator, or when the operator
// traps.
func Operate(c Class, op uint64, t VarType, lhs, rhs uint64) (uint64, error) {
	switch {
	case c == ClassUnary && op < uint64(len(unaryNames)):
		return UnaryOp(op).Apply(t, lhs), nil
	case c == ClassTest && op == uint64(Eqz):
		return TestOp(op).Apply(t, lhs), nil
	case c == ClassBin && op < uint64(len(binNames)):
		return BinOp(op).Apply(t, lhs, rhs)
	case c == ClassBinShift && op < uint64(len(shiftNames)):
		return ShiftOp(op).Apply(t, lhs, rhs), nil
	case c == ClassBinBit && op < uint64(len(bitNames)):
		return BitOp(op).Apply(t, lhs, rhs), nil
	case c == ClassRel && op < uint64(len(relNames)):
		return RelOp(op).Apply(t, lhs, rhs), nil
	}
	//
	return 0, fmt.Errorf("unknown %s operator %d", c, op)
}

// IsCrossBlock determines whether an access of a given number of bytes at a
// given effective address spans two heap blocks.
func IsCrossBlock(address uint64, nbytes uint64) bool {
	return address%BlockWidth+nbytes > BlockWidth
}

// ReadBytes extracts nbytes (little endian) starting at a given offset within
// block1, continuing into block2 when the access crosses the block boundary.
func ReadBytes(inner uint64, nbytes uint64, block1, block2 uint64) uint64 {
	var v uint64
	//
	if inner == 0 {
		v = block1
	} else {
		v = block1>>(8*inner) | block2<<(64-8*inner)
	}
	//
	return v & util.Mask(uint(8*nbytes))
}

// WriteBytes updates nbytes (little endian) of a given value into block1 (and
// block2 if the write crosses the block boundary), starting at a given inner
// offset.  The updated blocks are returned.
func WriteBytes(inner uint64, nbytes uint64, value, block1, block2 uint64) (uint64, uint64) {
	for i := uint64(0); i < nbytes; i++ {
		var (
			pos = inner + i
			b   = (value >> (8 * i)) & 0xff
		)
		//
		if pos < BlockWidth {
			block1 = block1&^(0xff<<(8*pos)) | b<<(8*pos)
		} else {
			pos -= BlockWidth
			block2 = block2&^(0xff<<(8*pos)) | b<<(8*pos)
		}
	}
	//
	return block1, block2
}

// LoadValue computes the value pushed by a load of a given size and type from
// the raw bytes read.
func LoadValue(t VarType, size LoadSize, raw uint64) uint64 {
	if size.Signed() {
		return t.Truncate(util.SignExtend(raw, uint(8*size.Bytes()), 64))
	}
	//
	return t.Truncate(raw)
}

func toSigned(t VarType, v uint64) int64 {
	if t == I32 {
		return int64(int32(uint32(v)))
	}
	//
	return int64(v)
}

func minSigned(t VarType) int64 {
	if t == I32 {
		return -1 << 31
	}
	//
	return -1 << 63
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	//
	return 0
}
