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

import "fmt"

// Option is an optional value, such as the start function of a module or the
// row domain of a constraint.  Unlike a pointer, an option is a plain value and
// so can be compared and copied freely.
type Option[T any] struct {
	some  bool
	value T
}

// Some constructs an option which holds a value.
func Some[T any](val T) Option[T] {
	return Option[T]{true, val}
}

// None constructs an option which doesn't hold a value.
func None[T any]() Option[T] {
	return Option[T]{}
}

// HasValue indicates whether or not this option holds a value.
func (o Option[T]) HasValue() bool {
	return o.some
}

// Unwrap returns the value held, or panics if this option is empty.
func (o Option[T]) Unwrap() T {
	if !o.some {
		panic("cannot unwrap an empty option")
	}
	//
	return o.value
}

// Get returns the value held (if any), and whether there was one.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.some
}

// UnwrapOr returns the value held, or a given default if this option is empty.
func (o Option[T]) UnwrapOr(def T) T {
	if o.some {
		return o.value
	}
	//
	return def
}

func (o Option[T]) String() string {
	if !o.some {
		return "none"
	}
	//
	return fmt.Sprintf("%v", o.value)
}
