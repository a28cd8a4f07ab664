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

	"github.com/DelphinusLab/zkWasm-sub000/pkg/failure"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/holiman/uint256"
)

// Encoder packs opcodes into bounded-width integers ("opcode codes").  The
// class tag is placed at bit ClassShift, and operand fields are accumulated
// most significant first below it.
type Encoder struct {
	// Bit position of the class tag.
	ClassShift uint
	// Every code must be strictly below 2^OpcodeShift.
	OpcodeShift uint
}

// NewEncoder constructs an encoder for the given class and opcode shifts.
func NewEncoder(classShift, opcodeShift uint) Encoder {
	return Encoder{classShift, opcodeShift}
}

// Encode packs a class tag and its ordered operand fields into a single code:
// tag*2^ClassShift + Σ field_i*2^shift_i, where shift_i is the cumulative width
// of all fields placed after field i.  This fails with an EncodingOverflow if
// the fields exceed the class bit budget, or any field value exceeds its width.
func (p Encoder) Encode(name string, tag uint64, fields ...Field) (*uint256.Int, error) {
	var (
		code  = new(uint256.Int)
		width uint
	)
	//
	for _, f := range fields {
		width += f.Kind.Width()
	}
	//
	if width > p.ClassShift {
		return nil, &failure.EncodingOverflow{Class: name, Width: width, Budget: p.ClassShift}
	}
	//
	for i, f := range fields {
		if err := checkField(name, i, f); err != nil {
			return nil, err
		}
		// Make room for this field
		code.Lsh(code, f.Kind.Width())
		//
		if f.Kind == UniArgField {
			var tag = uint256.NewInt(f.Tag)
			//
			code.Or(code, tag.Lsh(tag, 64))
		}
		//
		code.Or(code, uint256.NewInt(f.Value))
	}
	// Class tag
	t := uint256.NewInt(tag)
	code.Or(code, t.Lsh(t, p.ClassShift))
	// Sanity check overall bound
	if code.BitLen() > int(p.OpcodeShift) {
		return nil, &failure.EncodingOverflow{Class: name, Width: uint(code.BitLen()), Budget: p.OpcodeShift,
			Detail: fmt.Sprintf("class tag %d exceeds opcode bound 2^%d", tag, p.OpcodeShift)}
	}
	//
	return code, nil
}

// EncodeOpcode encodes a given opcode.  Host calls use the simpler encoding
// tag*2^ClassShift + function index, where tag is determined by the plugin.
func (p Encoder) EncodeOpcode(op Opcode) (*uint256.Int, error) {
	return p.Encode(op.Class().String(), Tag(op), op.Fields()...)
}

// Tag returns the class tag used to encode a given opcode.  For native opcodes
// this is the class itself, whilst for host calls it identifies the plugin.
func Tag(op Opcode) uint64 {
	if h, ok := op.(CallHost); ok {
		return ForeignPluginStart + uint64(h.Plugin)
	}
	//
	return uint64(op.Class())
}

// Shifts returns the shift of each field in a class layout, that is the
// cumulative width of all fields placed after it.  The uniform argument tag
// of field i sits at Shifts()[i]+64.
func Shifts(c Class) []uint {
	var (
		layout = Layout(c)
		shifts = make([]uint, len(layout))
		shift  uint
	)
	//
	for i := len(layout) - 1; i >= 0; i-- {
		shifts[i] = shift
		shift += layout[i].Width()
	}
	//
	return shifts
}

// CheckBudgets verifies that every native class layout fits within a given
// class shift, and that every class tag (including a given number of host
// plugins) fits below the opcode shift.
func CheckBudgets(classShift, opcodeShift uint, plugins uint) error {
	for _, c := range Classes() {
		if w := LayoutWidth(c); w > classShift {
			return &failure.EncodingOverflow{Class: c.String(), Width: w, Budget: classShift}
		}
	}
	//
	maxTag := uint64(ForeignPluginStart) + uint64(plugins)
	if util.BitWidth(maxTag)+classShift > opcodeShift {
		return &failure.EncodingOverflow{Class: "CallHost", Width: util.BitWidth(maxTag) + classShift,
			Budget: opcodeShift}
	}
	//
	return nil
}

func checkField(name string, index int, f Field) error {
	var ok bool
	//
	switch f.Kind {
	case UniArgField:
		ok = util.FitsIn(f.Tag, UniArgTagWidth) && f.Tag <= uint64(IConst)
	default:
		ok = util.FitsIn(f.Value, f.Kind.Width()) && f.Tag == 0
	}
	//
	if !ok {
		return &failure.EncodingOverflow{Class: name, Width: f.Kind.Width(), Budget: f.Kind.Width(),
			Detail: fmt.Sprintf("field %d value %d does not fit", index, f.Value)}
	}
	//
	return nil
}
