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

// Hand assembled WASM binaries, used to exercise the front-end and the command
// line.

// WasmSum sums 1..10 in a loop, and outputs the result.
func WasmSum() []byte {
	return binaryOf(
		section(1, vec(
			funcType([]byte{0x7e}, nil),
			funcType(nil, nil))),
		section(2, vec(importFunc("env", "wasm_output", 0))),
		section(3, vec([]byte{0x01})),
		section(7, vec(export("zkmain", 1))),
		section(10, vec(body([]byte{0x02, 0x01, 0x7f, 0x01, 0x7e},
			0x41, 0x0a, // i32.const 10
			0x21, 0x00, // local.set 0
			0x02, 0x40, // block
			0x03, 0x40, // loop
			0x20, 0x00, // local.get 0
			0x45,       // i32.eqz
			0x0d, 0x01, // br_if 1
			0x20, 0x01, // local.get 1
			0x20, 0x00, // local.get 0
			0xad,       // i64.extend_i32_u
			0x7c,       // i64.add
			0x21, 0x01, // local.set 1
			0x20, 0x00, // local.get 0
			0x41, 0x01, // i32.const 1
			0x6b,       // i32.sub
			0x21, 0x00, // local.set 0
			0x0c, 0x00, // br 0
			0x0b,       // end
			0x0b,       // end
			0x20, 0x01, // local.get 1
			0x10, 0x00, // call 0
			0x0b,
		))),
	)
}

// WasmMemory loads from a data segment across a block boundary, and reads a global.
func WasmMemory() []byte {
	return binaryOf(
		section(1, vec(
			funcType([]byte{0x7e}, nil),
			funcType(nil, nil))),
		section(2, vec(importFunc("env", "wasm_output", 0))),
		section(3, vec([]byte{0x01})),
		section(5, vec([]byte{0x00, 0x01})),
		section(6, vec([]byte{0x7f, 0x01, 0x41, 0x07, 0x0b})),
		section(7, vec(export("zkmain", 1))),
		section(10, vec(body(nil,
			0x41, 0x00, // i32.const 0
			0x29, 0x03, 0x04, // i64.load offset=4
			0x10, 0x00, // call 0
			0x23, 0x00, // global.get 0
			0xad,       // i64.extend_i32_u
			0x10, 0x00, // call 0
			0x0b,
		))),
		section(11, vec([]byte{0x00, 0x41, 0x04, 0x0b, 0x06, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})),
	)
}

// WasmCalls exercises direct, indirect and recursive calls, if/else, branch tables,
// early returns and a start function.
func WasmCalls() []byte {
	return binaryOf(
		section(1, vec(
			funcType([]byte{0x7e}, nil),
			funcType(nil, nil),
			funcType([]byte{0x7f}, []byte{0x7f}))),
		section(2, vec(importFunc("env", "wasm_output", 0))),
		section(3, vec([]byte{0x01}, []byte{0x02}, []byte{0x01}, []byte{0x02})),
		section(4, vec([]byte{0x70, 0x00, 0x01})),
		section(6, vec([]byte{0x7f, 0x01, 0x41, 0x00, 0x0b})),
		section(7, vec(export("zkmain", 1))),
		section(8, []byte{0x03}),
		section(9, vec([]byte{0x00, 0x41, 0x00, 0x0b, 0x01, 0x02})),
		section(10, vec(
			// main
			body(nil,
				0x41, 0x05, 0x41, 0x00, 0x11, 0x02, 0x00, 0xad, 0x10, 0x00, // fact(5) via table
				0x41, 0x00, 0x10, 0x04, 0xad, 0x10, 0x00, // pick(0)
				0x41, 0x05, 0x10, 0x04, 0xad, 0x10, 0x00, // pick(5)
				0x23, 0x00, 0xad, 0x10, 0x00, // global 0
				0x0b),
			// fact
			body(nil,
				0x20, 0x00, 0x45, // local.get 0; i32.eqz
				0x04, 0x7f, // if (result i32)
				0x41, 0x01, // i32.const 1
				0x05,                         // else
				0x20, 0x00, 0x20, 0x00, 0x41, 0x01, 0x6b, // n, n - 1
				0x10, 0x02, // call fact
				0x6c, // i32.mul
				0x0b, // end
				0x0b),
			// start
			body(nil, 0x41, 0x2a, 0x24, 0x00, 0x0b),
			// pick
			body(nil,
				0x02, 0x40, 0x02, 0x40, // block block
				0x20, 0x00, // local.get 0
				0x0e, 0x01, 0x00, 0x01, // br_table 0 1
				0x0b,             // end
				0x41, 0xe4, 0x00, // i32.const 100
				0x0f,             // return
				0x0b,             // end
				0x41, 0xc8, 0x01, // i32.const 200
				0x0b),
		)),
	)
}

// WasmImport constructs a module which just imports a given host function,
// with a given signature.
func WasmImport(field string, params, results []byte) []byte {
	return binaryOf(
		section(1, vec(funcType(params, results))),
		section(2, vec(importFunc("env", field, 0))),
	)
}

// WasmEntry constructs a module holding just an entry function (exported as
// zkmain) with a given body.
func WasmEntry(code ...byte) []byte {
	return binaryOf(
		section(1, vec(funcType(nil, nil))),
		section(3, vec([]byte{0x00})),
		section(7, vec(export("zkmain", 0))),
		section(10, vec(body(nil, code...))),
	)
}

func binaryOf(sections ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	//
	for _, s := range sections {
		out = append(out, s...)
	}
	//
	return out
}

func uleb(n int) []byte {
	var out []byte
	//
	for {
		b := byte(n & 0x7f)
		//
		if n >>= 7; n == 0 {
			return append(out, b)
		}
		//
		out = append(out, b|0x80)
	}
}

func section(id byte, payload []byte) []byte {
	out := append([]byte{id}, uleb(len(payload))...)
	return append(out, payload...)
}

func vec(items ...[]byte) []byte {
	out := uleb(len(items))
	//
	for _, item := range items {
		out = append(out, item...)
	}
	//
	return out
}

func name(s string) []byte {
	return append(uleb(len(s)), s...)
}

func funcType(params, results []byte) []byte {
	out := append([]byte{0x60}, uleb(len(params))...)
	out = append(out, params...)
	out = append(out, uleb(len(results))...)
	//
	return append(out, results...)
}

func importFunc(module, field string, typeIndex byte) []byte {
	out := append(name(module), name(field)...)
	return append(out, 0x00, typeIndex)
}

func export(field string, index byte) []byte {
	return append(name(field), 0x00, index)
}

// body of a function, with given local declarations (if any).
func body(locals []byte, code ...byte) []byte {
	if locals == nil {
		locals = []byte{0x00}
	}
	//
	b := append(append([]byte{}, locals...), code...)
	//
	return append(uleb(len(b)), b...)
}
