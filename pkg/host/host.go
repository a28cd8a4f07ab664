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
package host

import (
	"fmt"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/opcode"
)

// Effect captures how a host call changes the host-facing counters of the
// event table.
type Effect struct {
	PublicInput   uint32
	ContextInput  uint32
	ContextOutput uint32
}

// Function describes the signature of a single function exposed by a plugin.
type Function struct {
	Name   string
	Index  uint32
	Params []opcode.VarType
	Ret    []opcode.VarType
}

// Plugin is the strategy object implementing a family of host functions.  Each
// plugin is assigned its own class tag (see opcode.ForeignPluginStart).
type Plugin interface {
	// Name of this plugin.
	Name() string
	// Functions exposed by this plugin.
	Functions() []Function
	// Effect determines the counter changes arising from calling a given
	// function with given arguments.
	Effect(fn uint32, args []uint64) Effect
	// Execute a given function against the host environment, returning its
	// results.
	Execute(fn uint32, args []uint64, env *Env) ([]uint64, error)
	// Check that given arguments and results are valid for a given function.
	Check(fn uint32, args []uint64, ret []uint64) error
}

// External describes an external host call, which passes exactly one value
// to or from the host.
type External struct {
	Op       uint32
	IsReturn bool
}

// Registry maps host import names onto plugins (or external host calls).
// It is populated before compilation and read-only thereafter.
type Registry struct {
	plugins  []Plugin
	names    map[string]opcode.CallHost
	external map[string]External
}

// NewRegistry constructs a registry from a given set of plugins.  The plugin
// identifier is its position in the list.
func NewRegistry(plugins ...Plugin) (*Registry, error) {
	r := &Registry{nil, make(map[string]opcode.CallHost), make(map[string]External)}
	//
	for _, p := range plugins {
		if _, err := r.Register(p); err != nil {
			return nil, err
		}
	}
	//
	return r, nil
}

// DefaultRegistry returns a registry holding the standard plugins.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(InputPlugin{}, ContextPlugin{}, RequirePlugin{})
	// Standard plugins have valid signatures.
	if err != nil {
		panic(err)
	}
	//
	return r
}

// Register a plugin, returning its identifier.  Every function of the plugin
// must have at most one result, and its parameters and result must fit within
// the memory slots of a single step.
func (r *Registry) Register(p Plugin) (opcode.PluginID, error) {
	for _, fn := range p.Functions() {
		if len(fn.Ret) > 1 {
			return 0, fmt.Errorf("host function %s has %d results", fn.Name, len(fn.Ret))
		} else if n := len(fn.Params) + len(fn.Ret); n > opcode.MaxSlots {
			return 0, fmt.Errorf("host function %s accesses %d stack slots (limit %d)", fn.Name, n,
				opcode.MaxSlots)
		}
	}
	//
	id := opcode.PluginID(len(r.plugins))
	r.plugins = append(r.plugins, p)
	//
	for _, fn := range p.Functions() {
		r.names[fn.Name] = opcode.CallHost{
			Plugin: id, FunctionIndex: fn.Index, Name: fn.Name, Params: fn.Params, Ret: fn.Ret,
		}
	}
	//
	return id, nil
}

// RegisterExternal registers a named external host call.
func (r *Registry) RegisterExternal(name string, op uint32, isReturn bool) {
	r.external[name] = External{op, isReturn}
}

// Len returns the number of registered plugins.
func (r *Registry) Len() uint {
	return uint(len(r.plugins))
}

// Plugin returns the plugin with a given identifier.
func (r *Registry) Plugin(id opcode.PluginID) (Plugin, error) {
	if int(id) >= len(r.plugins) {
		return nil, fmt.Errorf("unknown host plugin %d", id)
	}
	//
	return r.plugins[id], nil
}

// Resolve a host import name to the opcode which calls it.
func (r *Registry) Resolve(name string) (opcode.Opcode, bool) {
	if op, ok := r.names[name]; ok {
		return op, true
	} else if ext, ok := r.external[name]; ok {
		return opcode.ExternalHostCall{Op: ext.Op, IsReturn: ext.IsReturn}, true
	}
	//
	return nil, false
}

// Effect of a host call opcode with given arguments.
func (r *Registry) Effect(op opcode.CallHost, args []uint64) (Effect, error) {
	p, err := r.Plugin(op.Plugin)
	if err != nil {
		return Effect{}, err
	}
	//
	return p.Effect(op.FunctionIndex, args), nil
}
