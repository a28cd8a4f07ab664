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
package failure

import (
	"fmt"
)

// EncodingOverflow is raised when the packed operand fields of an opcode do
// not fit within the bit budget of its class.  The module containing such an
// instruction cannot be arithmetized.
type EncodingOverflow struct {
	// Name of the opcode class being encoded.
	Class string
	// Total width (in bits) required.
	Width uint
	// Bit budget available.
	Budget uint
	// Additional detail (e.g. offending field)
	Detail string
}

func (p *EncodingOverflow) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("encoding overflow for %s: %s", p.Class, p.Detail)
	}
	//
	return fmt.Sprintf("encoding overflow for %s (%d bits exceeds budget of %d)", p.Class, p.Width, p.Budget)
}

// CapacityKind identifies which capacity was exceeded.
type CapacityKind uint8

const (
	// PagesExceedLimit indicates too many allocated memory pages.
	PagesExceedLimit CapacityKind = iota
	// EventRowsExceedLimit indicates too many event (or dependent) rows.
	EventRowsExceedLimit
)

func (k CapacityKind) String() string {
	switch k {
	case PagesExceedLimit:
		return "PagesExceedLimit"
	case EventRowsExceedLimit:
		return "EventRowsExceedLimit"
	}
	//
	return "unknown"
}

// CapacityExceeded is raised when a slice exceeds the statically configured
// capacity of the circuit.  This can be resolved by choosing a larger
// capacity and rebuilding.
type CapacityExceeded struct {
	Kind CapacityKind
	// Requested amount
	Actual uint64
	// Configured limit
	Limit uint64
}

func (p *CapacityExceeded) Error() string {
	return fmt.Sprintf("capacity exceeded (%s): %d > %d", p.Kind, p.Actual, p.Limit)
}

// LookupMiss is raised when a derived tuple is not found in its target table,
// or when the memory table breaks continuity.  This signals either a tracer
// bug or a tampered trace.
type LookupMiss struct {
	// Table being looked up (e.g. "itable", "mtable").
	Table string
	// Row (or execution id) at which the miss occurred.
	Row uint64
	// Explanation
	Reason string
}

func (p *LookupMiss) Error() string {
	return fmt.Sprintf("lookup miss in %s (row %d): %s", p.Table, p.Row, p.Reason)
}

// FrameMismatch is raised when a return does not match the frame pushed by
// its corresponding call.
type FrameMismatch struct {
	// Execution id of the return.
	Eid uint32
	// Frame identifier being returned from.
	FrameID uint32
	// Explanation
	Reason string
}

func (p *FrameMismatch) Error() string {
	return fmt.Sprintf("frame mismatch at eid %d (frame %d): %s", p.Eid, p.FrameID, p.Reason)
}

// Lookup constructs a lookup miss error.
func Lookup(table string, row uint64, format string, args ...any) error {
	return &LookupMiss{table, row, fmt.Sprintf(format, args...)}
}

// Capacity constructs a capacity exceeded error.
func Capacity(kind CapacityKind, actual, limit uint64) error {
	return &CapacityExceeded{kind, actual, limit}
}

// Frame constructs a frame mismatch error.
func Frame(eid, frame uint32, format string, args ...any) error {
	return &FrameMismatch{eid, frame, fmt.Sprintf(format, args...)}
}

// ConstraintFailure reports a constraint of the circuit which does not hold on
// a given row of an assigned table.
type ConstraintFailure struct {
	// Handle identifying the constraint.
	Handle string
	// Table on which the constraint is defined.
	Table string
	// Row at which the constraint fails.
	Row uint64
	// Explanation
	Reason string
}

func (p *ConstraintFailure) Error() string {
	return fmt.Sprintf("constraint %s fails in %s (row %d): %s", p.Handle, p.Table, p.Row, p.Reason)
}

// Constraint constructs a constraint failure.
func Constraint(handle, table string, row uint64, format string, args ...any) error {
	return &ConstraintFailure{handle, table, row, fmt.Sprintf(format, args...)}
}
