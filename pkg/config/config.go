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
package config

import (
	"fmt"
)

const (
	// DefaultK is the default circuit size parameter (i.e. 2^K rows).
	DefaultK = 18
	// DefaultClassShift is the bit position at which the opcode class tag is
	// placed.  All operand fields of a native opcode must fit below it.
	DefaultClassShift = 224
	// DefaultOpcodeShift bounds every encoded opcode, i.e. code < 2^OpcodeShift.
	// This must be small enough that codes fit into a single BN254 scalar.
	DefaultOpcodeShift = 240
	// DefaultMaxMemoryPages is the heap limit (in 64KiB pages) used when a
	// module does not declare a maximum.
	DefaultMaxMemoryPages = 2048
	// DefaultStackBase is the stack pointer of an empty stack.  The stack grows
	// downwards from here.
	DefaultStackBase = 8192
	// ReservedRows is the number of rows of each table which are reserved for
	// the backend (blinding, first/last row selectors, etc).
	ReservedRows = 64
	// WasmPageSize is the size of a WASM memory page in bytes.
	WasmPageSize = 65536
	// BlockWidth is the width (in bytes) of a single heap block.
	BlockWidth = 8
)

// Config captures every capacity and layout parameter of the arithmetization.
// A config is an immutable value: it is constructed once, validated, and then
// passed by value into every component which needs it.
type Config struct {
	// K determines the total number of rows (2^K) available to the circuit.
	K uint
	// MaxRowsPerSlice is the maximum number of event table rows in a slice.
	MaxRowsPerSlice uint
	// MaxMemoryRowsPerSlice is the maximum number of memory table rows in a
	// slice.
	MaxMemoryRowsPerSlice uint
	// MaxMemoryPages is the maximum number of heap pages which can be
	// allocated.
	MaxMemoryPages uint32
	// ClassShift is the opcode class bit budget.
	ClassShift uint
	// OpcodeShift is the overall opcode bound.
	OpcodeShift uint
	// StackBase is the stack pointer for an empty stack.
	StackBase uint32
	// MaxSteps bounds the number of steps the reference tracer will execute
	// (0 means unbounded).
	MaxSteps uint
	// Parallel enables fork-join derivation of tables.
	Parallel bool
	// BatchSize is the number of rows handled by a single worker when
	// parallel derivation is enabled.
	BatchSize uint
}

// Option is used to adjust a configuration during construction.
type Option func(*Config)

// Default returns the default configuration for circuit parameter K.
func Default() Config {
	return ForK(DefaultK)
}

// ForK constructs the configuration for a given circuit size 2^k, applying
// any given options.  Capacities are derived from the total row budget.
func ForK(k uint, options ...Option) Config {
	var rows uint = 1 << k
	//
	cfg := Config{
		K:                     k,
		MaxRowsPerSlice:       (rows - ReservedRows) / 4,
		MaxMemoryRowsPerSlice: rows - ReservedRows,
		MaxMemoryPages:        DefaultMaxMemoryPages,
		ClassShift:            DefaultClassShift,
		OpcodeShift:           DefaultOpcodeShift,
		StackBase:             DefaultStackBase,
		Parallel:              true,
		BatchSize:             1024,
	}
	//
	for _, opt := range options {
		opt(&cfg)
	}
	//
	return cfg
}

// WithMaxRowsPerSlice sets the event row capacity of a slice.
func WithMaxRowsPerSlice(n uint) Option {
	return func(c *Config) {
		c.MaxRowsPerSlice = n
	}
}

// WithMaxMemoryRowsPerSlice sets the memory row capacity of a slice.
func WithMaxMemoryRowsPerSlice(n uint) Option {
	return func(c *Config) {
		c.MaxMemoryRowsPerSlice = n
	}
}

// WithMaxMemoryPages sets the heap limit.
func WithMaxMemoryPages(n uint32) Option {
	return func(c *Config) {
		c.MaxMemoryPages = n
	}
}

// WithStackBase sets the stack pointer of an empty stack.
func WithStackBase(sp uint32) Option {
	return func(c *Config) {
		c.StackBase = sp
	}
}

// WithMaxSteps bounds execution of the reference tracer.
func WithMaxSteps(n uint) Option {
	return func(c *Config) {
		c.MaxSteps = n
	}
}

// WithParallel enables or disables parallel derivation.
func WithParallel(flag bool) Option {
	return func(c *Config) {
		c.Parallel = flag
	}
}

// WithBatchSize sets the number of rows processed by each worker.
func WithBatchSize(n uint) Option {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// Rows returns the total number of rows available in the circuit.
func (c Config) Rows() uint {
	return 1 << c.K
}

// Validate checks that this configuration is internally consistent.
func (c Config) Validate() error {
	switch {
	case c.K < 8 || c.K > 28:
		return fmt.Errorf("invalid circuit size k=%d (expected 8..28)", c.K)
	case c.MaxRowsPerSlice < 2:
		return fmt.Errorf("slice capacity %d too small (at least 2 rows required)", c.MaxRowsPerSlice)
	case c.MaxRowsPerSlice+ReservedRows > c.Rows():
		return fmt.Errorf("slice capacity %d exceeds row budget %d", c.MaxRowsPerSlice, c.Rows()-ReservedRows)
	case c.MaxMemoryRowsPerSlice+ReservedRows > c.Rows():
		return fmt.Errorf("memory capacity %d exceeds row budget %d", c.MaxMemoryRowsPerSlice, c.Rows()-ReservedRows)
	case c.ClassShift >= c.OpcodeShift:
		return fmt.Errorf("class shift %d must be below opcode shift %d", c.ClassShift, c.OpcodeShift)
	case c.OpcodeShift > 253:
		return fmt.Errorf("opcode shift %d exceeds field capacity", c.OpcodeShift)
	case uint64(c.MaxMemoryPages)*WasmPageSize > 1<<32:
		return fmt.Errorf("memory limit of %d pages exceeds 32-bit address space", c.MaxMemoryPages)
	case c.BatchSize == 0:
		return fmt.Errorf("batch size must be positive")
	}
	//
	return nil
}

// MemoryLimit returns the heap limit in bytes.
func (c Config) MemoryLimit() uint64 {
	return uint64(c.MaxMemoryPages) * WasmPageSize
}
