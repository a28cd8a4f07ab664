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
package util

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// BitWidth returns the minimum number of bits required to represent a given
// unsigned value.
func BitWidth[T constraints.Unsigned](val T) uint {
	return uint(bits.Len64(uint64(val)))
}

// FitsIn determines whether a given unsigned value can be represented in the
// given number of bits.
func FitsIn[T constraints.Unsigned](val T, width uint) bool {
	return width >= 64 || BitWidth(val) <= width
}

// Mask returns a mask covering the lowest n bits.
func Mask(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	//
	return (uint64(1) << n) - 1
}

// SignBit returns the most significant bit of a value of the given bitwidth.
func SignBit(val uint64, width uint) uint64 {
	return (val >> (width - 1)) & 1
}

// SignExtend extends a value of a given bitwidth to a value of a larger
// bitwidth, such that the high bits are filled with the sign bit.
func SignExtend(val uint64, from uint, to uint) uint64 {
	val &= Mask(from)
	//
	if SignBit(val, from) == 1 {
		val |= Mask(to) &^ Mask(from)
	}
	//
	return val
}
