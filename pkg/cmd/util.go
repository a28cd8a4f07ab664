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
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/binfile"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/wasm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes used when a command fails.
const (
	EXIT_BAD_INPUT    = 2
	EXIT_FAILED_CHECK = 3
	EXIT_IO           = 4
)

// Failure associates an exit code with the error which caused a command to
// fail.
type Failure struct {
	Code int
	Err  error
}

func (p *Failure) Error() string {
	return p.Err.Error()
}

func (p *Failure) Unwrap() error {
	return p.Err
}

func failWith(code int, err error) error {
	if err == nil {
		return nil
	}
	//
	return &Failure{code, err}
}

func badInput(err error) error    { return failWith(EXIT_BAD_INPUT, err) }
func failedCheck(err error) error { return failWith(EXIT_FAILED_CHECK, err) }
func ioFailure(err error) error   { return failWith(EXIT_IO, err) }

// ExitCode determines the exit code for a given error.
func ExitCode(err error) int {
	var failure *Failure
	//
	if err == nil {
		return 0
	} else if errors.As(err, &failure) {
		return failure.Code
	}
	//
	return 1
}

// Report an error (if any) and exit with the corresponding code.
func exitOnError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(ExitCode(err))
	}
}

// Get an expected flag, or exit if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(EXIT_BAD_INPUT)
	}

	return r
}

// GetUint gets an expected unsigned integer flag, or exits if an error arises.
func GetUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(EXIT_BAD_INPUT)
	}

	return r
}

// GetUint32 gets an expected 32-bit unsigned flag, or exits if an error arises.
func GetUint32(cmd *cobra.Command, flag string) uint32 {
	r, err := cmd.Flags().GetUint32(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(EXIT_BAD_INPUT)
	}

	return r
}

// GetString gets an expected string flag, or exits if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(EXIT_BAD_INPUT)
	}

	return r
}

// GetValues gets a list of 64-bit values, given either in decimal or
// in hex (with a 0x prefix), or exits if an error arises.
func GetValues(cmd *cobra.Command, flag string) []uint64 {
	strs, err := cmd.Flags().GetStringSlice(flag)
	if err == nil {
		var vals []uint64
		//
		if vals, err = parseValues(strs); err == nil {
			return vals
		}
	}
	//
	fmt.Printf("--%s: %v\n", flag, err)
	os.Exit(EXIT_BAD_INPUT)
	// unreachable
	return nil
}

func parseValues(strs []string) ([]uint64, error) {
	vals := make([]uint64, len(strs))
	//
	for i, s := range strs {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", s)
		}
		//
		vals[i] = v
	}
	//
	return vals, nil
}

// Configure the log level from the verbose flag.
func setLogLevel(cmd *cobra.Command) {
	if GetFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
}

// Construct the configuration for a new execution from the command-line flags.
func getConfig(cmd *cobra.Command) config.Config {
	return overrideConfig(cmd, config.ForK(GetUint(cmd, "k")))
}

// Apply any capacity flags given on the command line to an existing
// configuration.  The layout parameters (e.g. opcode shifts) are never
// overridden, since the recorded trace depends upon them.
func overrideConfig(cmd *cobra.Command, cfg config.Config) config.Config {
	var (
		flags   = cmd.Flags()
		options []config.Option
	)
	//
	if flags.Changed("max-rows") {
		options = append(options, config.WithMaxRowsPerSlice(GetUint(cmd, "max-rows")))
	}
	//
	if flags.Changed("max-memory-rows") {
		options = append(options, config.WithMaxMemoryRowsPerSlice(GetUint(cmd, "max-memory-rows")))
	}
	//
	if flags.Changed("max-pages") {
		options = append(options, config.WithMaxMemoryPages(GetUint32(cmd, "max-pages")))
	}
	//
	if flags.Changed("max-steps") {
		options = append(options, config.WithMaxSteps(GetUint(cmd, "max-steps")))
	}
	//
	if flags.Changed("batch") {
		options = append(options, config.WithBatchSize(GetUint(cmd, "batch")))
	}
	//
	if GetFlag(cmd, "sequential") {
		options = append(options, config.WithParallel(false))
	}
	//
	for _, opt := range options {
		opt(&cfg)
	}
	//
	return cfg
}

// Get the command context, falling back to the background context when the
// command was not started via Execute (e.g. in tests).
func getContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	//
	return context.Background()
}

// Read a file, reporting failures as I/O errors.
func readFile(filename string) ([]byte, error) {
	bytes, err := os.ReadFile(filename)
	//
	return bytes, ioFailure(err)
}

// Read a recorded execution.  A missing or unreadable file is an I/O error,
// whilst a malformed file is bad input.
func readExecution(filename string) (*binfile.BinaryFile, error) {
	var pathErr *fs.PathError
	//
	binf, err := binfile.ReadBinaryFile(filename)
	if errors.As(err, &pathErr) {
		return nil, ioFailure(err)
	} else if err != nil {
		return nil, badInput(err)
	}
	//
	return binf, nil
}

// Compile the module of a recorded execution under a given configuration.
func compileExecution(cfg config.Config, binf *binfile.BinaryFile) (*tables.Module, error) {
	m, err := wasm.Compile(cfg, host.DefaultRegistry(), binf.Execution.Module, binf.Execution.Entry)
	//
	return m, badInput(err)
}

// Determine the configuration of a recorded execution, with any overrides
// given on the command line.
func executionConfig(cmd *cobra.Command, binf *binfile.BinaryFile) (config.Config, error) {
	cfg, err := binf.Config()
	if err != nil {
		return cfg, badInput(err)
	}
	//
	cfg = overrideConfig(cmd, cfg)
	//
	return cfg, badInput(cfg.Validate())
}
