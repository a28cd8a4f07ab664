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
package image

import (
	"encoding/binary"
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"
)

// Section identifies one part of the image.
type Section uint8

const (
	// Instructions holds (address, code) for every instruction.
	Instructions Section = iota
	// BranchTable holds (address, index, drop, keep, dst) for every arm.
	BranchTable
	// InitMemory holds (key, type, value, eid) for every initialised address.
	InitMemory
	// Elements holds (offset, type, fid) for every function table slot.
	Elements
	// StaticFrames holds both bootstrap frames.
	StaticFrames
	// NumSections is the number of sections.
	NumSections
)

var sectionNames = [NumSections]string{"instructions", "brtable", "imtable", "elements", "static_frames"}

func (s Section) String() string {
	return sectionNames[s]
}

// Widths of a single entry in each section.
const (
	InstructionWidth = 2
	BranchWidth      = 5
	MemoryWidth      = 4
	ElementWidth     = 3
	StaticWidth      = 6
)

// Image is the static content of a slice: everything which is fixed before
// execution.  The memory component differs between the pre-image and the
// post-image of a slice, whilst everything else is shared.
type Image struct {
	code     *itable.Table
	elements *itable.Elements
	static   [2]jtable.StaticEntry
	memory   *mtable.InitTable
}

// New constructs an image.
func New(code *itable.Table, elements *itable.Elements, static [2]jtable.StaticEntry,
	memory *mtable.InitTable) *Image {
	return &Image{code, elements, static, memory}
}

// WithMemory returns a copy of this image with different memory (e.g. the
// post-image of a slice).
func (p *Image) WithMemory(memory *mtable.InitTable) *Image {
	return &Image{p.code, p.elements, p.static, memory}
}

// Code returns the instruction table.
func (p *Image) Code() *itable.Table { return p.code }

// Elements returns the function table.
func (p *Image) Elements() *itable.Elements { return p.elements }

// Static returns the bootstrap frames.
func (p *Image) Static() [2]jtable.StaticEntry { return p.static }

// Memory returns the initial memory.
func (p *Image) Memory() *mtable.InitTable { return p.memory }

// Section serialises a given section of this image as field elements, in
// canonical order.
func (p *Image) Section(s Section) []fr.Element {
	var column []fr.Element
	//
	switch s {
	case Instructions:
		for _, e := range p.code.Entries() {
			column = append(column, Address(e.Fid, e.Iid), Opcode(&e.Code))
		}
	case BranchTable:
		for _, e := range p.code.BranchTable().Entries() {
			column = append(column, Address(e.Fid, e.Iid), element(uint64(e.Index)), element(uint64(e.Drop)),
				element(uint64(e.Keep)<<1|uint64(e.KeepType)), element(uint64(e.Dst)))
		}
	case InitMemory:
		for _, e := range p.memory.Entries() {
			column = append(column, MemoryKey(e.Location, e.IsMutable, e.Offset), element(uint64(e.Type)),
				element(e.Value), element(uint64(e.Eid)))
		}
	case Elements:
		for _, e := range p.elements.Entries() {
			column = append(column, element(uint64(e.Offset)), element(uint64(e.TypeIndex)), element(uint64(e.Fid)))
		}
	case StaticFrames:
		for _, e := range p.static {
			var enable uint64
			//
			if e.Enable {
				enable = 1
			}
			//
			column = append(column, element(enable), element(uint64(e.FrameID)), element(uint64(e.NextFrameID)),
				element(uint64(e.CalleeFid)), element(uint64(e.Fid)), element(uint64(e.Iid)))
		}
	default:
		panic(fmt.Sprintf("unknown section %d", s))
	}
	//
	return column
}

// Hash the image.  Every section is prefixed by its length, and elements are
// serialised in big-endian form.
func (p *Image) Hash() [32]byte {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	//
	var length [8]byte
	//
	for s := Section(0); s < NumSections; s++ {
		column := p.Section(s)
		binary.BigEndian.PutUint64(length[:], uint64(len(column)))
		hasher.Write(length[:])
		//
		for i := range column {
			bytes := column[i].Bytes()
			hasher.Write(bytes[:])
		}
	}
	//
	var digest [32]byte
	//
	copy(digest[:], hasher.Sum(nil))
	//
	return digest
}

// Address packs an instruction address into a single element.
func Address(fid, iid uint32) fr.Element {
	return element(uint64(fid)<<32 | uint64(iid))
}

// Opcode converts an encoded opcode into an element.  Encoded opcodes are
// always below the field modulus.
func Opcode(code *uint256.Int) fr.Element {
	var e fr.Element
	//
	bytes := code.Bytes32()
	e.SetBytes(bytes[:])
	//
	return e
}

// MemoryKey packs the key of an initialised memory address into a single
// element.
func MemoryKey(loc mtable.Location, mutable bool, offset uint32) fr.Element {
	var flag uint64
	//
	if mutable {
		flag = 1
	}
	//
	return element(uint64(loc)<<33 | flag<<32 | uint64(offset))
}

func element(v uint64) fr.Element {
	var e fr.Element
	//
	e.SetUint64(v)
	//
	return e
}
