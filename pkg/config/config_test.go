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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_00(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint(1<<18), cfg.Rows())
	assert.Equal(t, (cfg.Rows()-ReservedRows)/4, cfg.MaxRowsPerSlice)
	assert.Equal(t, uint64(DefaultMaxMemoryPages)*WasmPageSize, cfg.MemoryLimit())
	assert.True(t, cfg.Parallel)
}

func Test_Config_01(t *testing.T) {
	cfg := ForK(12, WithMaxRowsPerSlice(17), WithMaxMemoryRowsPerSlice(100), WithMaxMemoryPages(4),
		WithStackBase(1024), WithMaxSteps(50), WithParallel(false), WithBatchSize(8))
	//
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint(17), cfg.MaxRowsPerSlice)
	assert.Equal(t, uint(100), cfg.MaxMemoryRowsPerSlice)
	assert.Equal(t, uint32(4), cfg.MaxMemoryPages)
	assert.Equal(t, uint32(1024), cfg.StackBase)
	assert.Equal(t, uint(50), cfg.MaxSteps)
	assert.False(t, cfg.Parallel)
	assert.Equal(t, uint(8), cfg.BatchSize)
}

func Test_Config_02(t *testing.T) {
	check_Invalid(t, ForK(4))
	check_Invalid(t, ForK(12, WithMaxRowsPerSlice(1)))
	check_Invalid(t, ForK(12, WithMaxRowsPerSlice(4096)))
	check_Invalid(t, ForK(12, WithMaxMemoryRowsPerSlice(4096)))
	check_Invalid(t, ForK(12, WithMaxMemoryPages(65537)))
	check_Invalid(t, ForK(12, WithBatchSize(0)))
	//
	cfg := ForK(12)
	cfg.ClassShift = cfg.OpcodeShift
	check_Invalid(t, cfg)
	//
	cfg = ForK(12)
	cfg.OpcodeShift = 254
	check_Invalid(t, cfg)
}

func Test_Config_03(t *testing.T) {
	// Configurations are recorded as JSON.
	var decoded Config
	//
	cfg := ForK(14, WithMaxRowsPerSlice(33))
	bytes, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(bytes, &decoded))
	assert.Equal(t, cfg, decoded)
}

// ============================================================================
// Helpers
// ============================================================================

func check_Invalid(t *testing.T, cfg Config) {
	assert.Error(t, cfg.Validate(), "%+v", cfg)
}
