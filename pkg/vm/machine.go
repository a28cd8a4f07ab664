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
package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	log "github.com/sirupsen/logrus"
)

// ErrStepLimit is returned when execution exceeds the configured number of
// steps.
var ErrStepLimit = errors.New("step limit exceeded")

// Machine is the reference tracer.  It executes a compiled module one
// instruction at a time, recording an event table entry for every step.
type Machine struct {
	cfg    config.Config
	module *tables.Module
	ctx    *etable.Context
	env    *host.Env
	memory *Memory
	// Frames pushed so far, used to resolve returns.
	frames *jtable.Table
	// State of the next step to execute (without step info).
	state  etable.Entry
	trace  []etable.Entry
	halted bool
}

// New constructs a machine for a given module, which is booted in the
// module's initial state.
func New(cfg config.Config, m *tables.Module, env *host.Env) (*Machine, error) {
	if err := m.Validate(cfg); err != nil {
		return nil, err
	}
	//
	frames, err := jtable.NewTable(m.StaticFrames())
	if err != nil {
		return nil, err
	}
	//
	if env == nil {
		env = &host.Env{}
	}
	//
	return &Machine{
		cfg:    cfg,
		module: m,
		ctx:    m.Context(cfg),
		env:    env,
		memory: NewMemory(m.Memory),
		frames: frames,
		state:  m.Initial(cfg),
	}, nil
}

// Execute a given module to completion, returning its trace.
func Execute(ctx context.Context, cfg config.Config, m *tables.Module, env *host.Env) ([]etable.Entry, error) {
	machine, err := New(cfg, m, env)
	if err != nil {
		return nil, err
	}
	//
	return machine.Run(ctx)
}

// Run this machine until it halts, traps, exceeds its step limit or the given
// context is cancelled.  The trace recorded so far is returned in all cases.
func (p *Machine) Run(ctx context.Context) ([]etable.Entry, error) {
	stats := util.NewPerfStats()
	//
	for !p.halted {
		if err := ctx.Err(); err != nil {
			return p.trace, err
		} else if p.cfg.MaxSteps != 0 && uint(len(p.trace)) >= p.cfg.MaxSteps {
			return p.trace, fmt.Errorf("%w (%d steps)", ErrStepLimit, p.cfg.MaxSteps)
		} else if err := p.Step(); err != nil {
			return p.trace, err
		}
	}
	//
	stats.LogRows("Tracing execution", uint(len(p.trace)))
	log.Debugf("halted after %d steps with sp=%d and %d pages", len(p.trace), p.state.Sp,
		p.state.AllocatedMemoryPages)
	//
	return p.trace, nil
}

// Step executes a single instruction.
func (p *Machine) Step() error {
	if p.halted {
		return fmt.Errorf("machine has halted")
	}
	//
	instr, err := p.module.Code.Get(p.state.Fid, p.state.Iid)
	if err != nil {
		return err
	}
	//
	entry := p.state
	//
	if entry.Step, err = p.execute(&entry, instr.Opcode); err != nil {
		return err
	}
	//
	t, err := etable.Contract(p.ctx, &entry, instr.Opcode)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", instr.Opcode, entry.Address(), err)
	}
	//
	p.memory.Apply(t.Memory)
	p.trace = append(p.trace, entry)
	//
	return p.advance(&entry, &t)
}

// advance to the state following a given step.
func (p *Machine) advance(e *etable.Entry, t *etable.Transition) error {
	next := etable.Entry{
		Eid:                  e.Eid + 1,
		Fid:                  e.Fid,
		Iid:                  e.Iid + 1,
		Sp:                   uint32(int64(e.Sp) + t.SpDelta),
		AllocatedMemoryPages: e.AllocatedMemoryPages + t.PagesDelta,
		LastJumpEid:          e.LastJumpEid,
	}
	//
	switch t.Next {
	case etable.Jump:
		next.Iid = t.Target.Iid
	case etable.Call:
		if err := p.frames.Push(e.Eid, e.LastJumpEid, t.Target.Fid, e.Address()); err != nil {
			return err
		}
		//
		next.Fid, next.Iid, next.LastJumpEid = t.Target.Fid, 0, e.Eid
	case etable.Return:
		target, err := p.frames.ReturnTarget(e.Eid, e.LastJumpEid, e.Fid)
		if err != nil {
			return err
		}
		//
		next.Fid, next.Iid, next.LastJumpEid = target.Fid, target.Iid, target.FrameID
		p.halted = target == jtable.Target{}
	}
	//
	p.state = next
	//
	return nil
}

// Halted indicates whether this machine has returned from its entry function.
func (p *Machine) Halted() bool {
	return p.halted
}

// Trace returns the entries recorded so far.
func (p *Machine) Trace() []etable.Entry {
	return p.trace
}

// State returns the state of the next step, or the terminal state once
// halted.
func (p *Machine) State() etable.Entry {
	return p.state
}

// Memory returns the current memory of this machine.
func (p *Machine) Memory() *Memory {
	return p.memory
}

// Env returns the host environment of this machine.
func (p *Machine) Env() *host.Env {
	return p.env
}
