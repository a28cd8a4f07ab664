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
	"fmt"
	"os"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/binfile"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/store"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/vm"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/wasm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] module.wasm",
	Short: "Execute a WebAssembly module, recording its trace.",
	Long: `Execute the entry function of a WebAssembly module using the reference
	tracer.  The public outputs are printed and, optionally, the execution is
	recorded in a binary file and/or a slice store.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		setLogLevel(cmd)
		//
		cfg := getConfig(cmd)
		exitOnError(badInput(cfg.Validate()))
		//
		inputs := binfile.Execution{
			Public:   GetValues(cmd, "public"),
			Private:  GetValues(cmd, "private"),
			Context:  GetValues(cmd, "context"),
			External: GetValues(cmd, "external"),
		}
		//
		binary, err := readFile(args[0])
		exitOnError(err)
		//
		binf, err := runModule(getContext(cmd), cfg, binary, GetString(cmd, "entry"), inputs)
		exitOnError(err)
		//
		for _, v := range binf.Execution.Outputs {
			fmt.Println(v)
		}
		//
		if output := GetString(cmd, "output"); output != "" {
			exitOnError(ioFailure(binfile.WriteBinaryFile(output, binf)))
		}
		//
		if dir := GetString(cmd, "store"); dir != "" {
			id, err := storeExecution(dir, binf)
			exitOnError(err)
			log.Infof("stored execution %s", id)
		}
	},
}

// Compile and execute a given WebAssembly binary, recording the execution.
func runModule(ctx context.Context, cfg config.Config, binary []byte, entry string,
	inputs binfile.Execution) (*binfile.BinaryFile, error) {
	m, err := wasm.Compile(cfg, host.DefaultRegistry(), binary, entry)
	if err != nil {
		return nil, badInput(err)
	}
	//
	env := inputs.Env()
	//
	trace, err := vm.Execute(ctx, cfg, m, env)
	if err != nil {
		return nil, failedCheck(fmt.Errorf("execution failed after %d steps: %w", len(trace), err))
	}
	//
	log.Debugf("executed %d steps of %s", len(trace), entry)
	//
	inputs.Entry = entry
	inputs.Module = binary
	inputs.Outputs = env.Outputs
	inputs.Trace = trace
	//
	return binfile.NewBinaryFile(cfg, inputs)
}

// Record an execution in the slice store at a given path, returning its
// identifier.
func storeExecution(path string, binf *binfile.BinaryFile) (string, error) {
	db, err := store.Open(path)
	if err != nil {
		return "", ioFailure(err)
	}
	//
	defer db.Close()
	//
	id, err := db.PutExecution(binf)
	//
	return id, ioFailure(err)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("entry", wasm.DefaultEntry, "name of the exported entry function")
	runCmd.Flags().StringSlice("public", nil, "public inputs (comma separated)")
	runCmd.Flags().StringSlice("private", nil, "private inputs (comma separated)")
	runCmd.Flags().StringSlice("context", nil, "context inputs (comma separated)")
	runCmd.Flags().StringSlice("external", nil, "values returned by external host calls (comma separated)")
	runCmd.Flags().StringP("output", "o", "", "record the execution into a binary file")
	runCmd.Flags().String("store", "", "record the execution into the slice store at this path")
}
