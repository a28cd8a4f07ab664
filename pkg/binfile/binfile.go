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
package binfile

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
)

// BINFILE_MAJOR_VERSION gives the major version of the binary file format.  No
// matter what version, we should always have the ZKWASMTR identifier first,
// followed by a GOB encoding of the header.  What follows after that is
// determined by the major version.
const BINFILE_MAJOR_VERSION uint16 = 1

// BINFILE_MINOR_VERSION gives the minor version of the binary file format.
// Minor versions only add fields, so older files remain readable.
const BINFILE_MINOR_VERSION uint16 = 0

// ZKWASMTR is used as the file identifier for recorded executions.  This just
// helps us identify actual binary files from corrupted files.
var ZKWASMTR [8]byte = [8]byte{'z', 'k', 'w', 'a', 's', 'm', 't', 'r'}

// ============================================================================
// Binary File Format
// ============================================================================

// BinaryFile is a recorded execution of a module.  Everything else (the
// compiled module, the tables and their slices) is derived from it.
type BinaryFile struct {
	// Header for the binary file.  Its metadata holds the configuration under
	// which the execution was recorded.
	Header Header
	// The execution itself.
	Execution Execution
}

// Execution captures the inputs to, and the trace of, a single execution.
type Execution struct {
	// Name of the entry function.
	Entry string
	// The WASM binary.
	Module []byte
	// Inputs
	Public, Private, Context []uint64
	// Values returned by external host calls.
	External []uint64
	// Public outputs
	Outputs []uint64
	// Trace, in order of eid.
	Trace []etable.Entry
}

// Env returns a fresh host environment holding the inputs of this execution.
func (p *Execution) Env() *host.Env {
	return &host.Env{
		PublicInputs:    slices.Clone(p.Public),
		PrivateInputs:   slices.Clone(p.Private),
		ContextInputs:   slices.Clone(p.Context),
		ExternalReturns: slices.Clone(p.External),
	}
}

// NewBinaryFile constructs a new binary file with the default header for the
// currently supported version.
func NewBinaryFile(cfg config.Config, execution Execution) (*BinaryFile, error) {
	metadata, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	//
	return &BinaryFile{
		Header{ZKWASMTR, BINFILE_MAJOR_VERSION, BINFILE_MINOR_VERSION, metadata},
		execution,
	}, nil
}

// Config returns the configuration under which this execution was recorded.
func (p *BinaryFile) Config() (config.Config, error) {
	var cfg config.Config
	//
	if err := json.Unmarshal(p.Header.MetaData, &cfg); err != nil {
		return cfg, fmt.Errorf("malformed metadata: %w", err)
	}
	//
	return cfg, cfg.Validate()
}

// Header provides a structured header for the binary file format.  In
// particular, it supports versioning and embedded (binary) metadata.
type Header struct {
	Identifier   [8]byte
	MajorVersion uint16
	MinorVersion uint16
	MetaData     []byte
}

// MarshalBinary converts the BinaryFile Header into a sequence of bytes.
// Observe that we don't use GobEncoding here to avoid being tied to that
// encoding scheme.
func (p *Header) MarshalBinary() ([]byte, error) {
	var buffer bytes.Buffer
	//
	buffer.Write(p.Identifier[:])
	buffer.Write(binary.BigEndian.AppendUint16(nil, p.MajorVersion))
	buffer.Write(binary.BigEndian.AppendUint16(nil, p.MinorVersion))
	buffer.Write(binary.BigEndian.AppendUint32(nil, uint32(len(p.MetaData))))
	buffer.Write(p.MetaData)
	//
	return buffer.Bytes(), nil
}

// UnmarshalBinary initialises this Header from a given reader.  This should
// match exactly the encoding above.
func (p *Header) UnmarshalBinary(reader io.Reader) error {
	var fixed [16]byte
	//
	if _, err := io.ReadFull(reader, fixed[:]); err != nil {
		return errors.New("malformed binary file")
	}
	//
	copy(p.Identifier[:], fixed[:8])
	p.MajorVersion = binary.BigEndian.Uint16(fixed[8:10])
	p.MinorVersion = binary.BigEndian.Uint16(fixed[10:12])
	// Metadata grows as it is read, so a corrupt length cannot force a large
	// allocation up front.
	var (
		n        = int64(binary.BigEndian.Uint32(fixed[12:16]))
		metadata bytes.Buffer
	)
	//
	if m, err := io.CopyN(&metadata, reader, n); err != nil || m != n {
		return errors.New("malformed binary file")
	}
	//
	p.MetaData = metadata.Bytes()
	//
	return nil
}

// IsCompatible determines whether a given binary file is compatible with this
// version of the format.
func (p *Header) IsCompatible() bool {
	return p.Identifier == ZKWASMTR && p.MajorVersion == BINFILE_MAJOR_VERSION &&
		p.MinorVersion <= BINFILE_MINOR_VERSION
}

// IsBinaryFile checks whether the given data file begins with the expected
// identifier.
func IsBinaryFile(data []byte) bool {
	return len(data) >= len(ZKWASMTR) && bytes.Equal(data[:len(ZKWASMTR)], ZKWASMTR[:])
}

// MarshalBinary converts the BinaryFile into a sequence of bytes.
func (p *BinaryFile) MarshalBinary() ([]byte, error) {
	headerBytes, err := p.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	//
	buffer := bytes.NewBuffer(headerBytes)
	// Encode execution
	if err := gob.NewEncoder(buffer).Encode(&p.Execution); err != nil {
		return nil, err
	}
	//
	return buffer.Bytes(), nil
}

// UnmarshalBinary initialises this BinaryFile from a given set of data bytes.
// This should match exactly the encoding above.
func (p *BinaryFile) UnmarshalBinary(data []byte) error {
	buffer := bytes.NewBuffer(data)
	//
	if err := p.Header.UnmarshalBinary(buffer); err != nil {
		return err
	} else if !p.Header.IsCompatible() {
		return fmt.Errorf("incompatible binary file was v%d.%d, but expected v%d.%d",
			p.Header.MajorVersion, p.Header.MinorVersion, BINFILE_MAJOR_VERSION, BINFILE_MINOR_VERSION)
	}
	//
	return gob.NewDecoder(buffer).Decode(&p.Execution)
}

// ReadBinaryFile reads a binary file from disk.
func ReadBinaryFile(filename string) (*BinaryFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	} else if !IsBinaryFile(data) {
		return nil, fmt.Errorf("%s is not a recorded execution", filename)
	}
	//
	var binf BinaryFile
	//
	if err := binf.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	//
	return &binf, nil
}

// WriteBinaryFile writes a binary file to disk.
func WriteBinaryFile(filename string, binf *BinaryFile) error {
	data, err := binf.MarshalBinary()
	if err != nil {
		return err
	}
	//
	return os.WriteFile(filename, data, 0644)
}
