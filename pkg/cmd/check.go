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
	"reflect"
	"slices"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/binfile"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/circuit"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/vm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] trace.bin",
	Short: "Check a recorded execution.",
	Long: `Check a recorded execution: the trace is compared against a fresh execution
	of its module, its tables are derived and checked, and each of its slices is
	checked against the circuit.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		setLogLevel(cmd)
		//
		binf, err := readExecution(args[0])
		exitOnError(err)
		//
		cfg, err := executionConfig(cmd, binf)
		exitOnError(err)
		//
		exitOnError(checkExecution(getContext(cmd), cfg, binf, GetFlag(cmd, "unsliced")))
		//
		fmt.Printf("%s: %d steps ok\n", args[0], len(binf.Execution.Trace))
	},
}

// Check a recorded execution.  When requested, the tables of the complete
// execution are also checked against the circuit (ignoring slice capacities).
func checkExecution(ctx context.Context, cfg config.Config, binf *binfile.BinaryFile, unsliced bool) error {
	stats := util.NewPerfStats()
	//
	m, err := compileExecution(cfg, binf)
	if err != nil {
		return err
	}
	// Re-execute
	env := binf.Execution.Env()
	//
	trace, err := vm.Execute(ctx, cfg, m, env)
	if err != nil {
		return failedCheck(fmt.Errorf("execution failed: %w", err))
	} else if err := compareTraces(binf.Execution.Trace, trace); err != nil {
		return failedCheck(err)
	} else if !slices.Equal(binf.Execution.Outputs, env.Outputs) {
		return failedCheck(fmt.Errorf("recorded outputs %v differ from %v", binf.Execution.Outputs, env.Outputs))
	}
	// Derive tables
	tbls, err := tables.Build(cfg, m, binf.Execution.Trace)
	if err != nil {
		return failedCheck(err)
	} else if err := tbls.Check(); err != nil {
		return failedCheck(err)
	} else if unsliced {
		if err := circuit.New(cfg).Check(circuit.FromTables(tbls)); err != nil {
			return failedCheck(err)
		}
	}
	//
	parts, err := sliceExecution(cfg, binf, true)
	if err != nil {
		return err
	}
	//
	stats.Log(fmt.Sprintf("Checking %d steps in %d slices", len(trace), len(parts)))
	//
	return nil
}

// Compare a recorded trace against a fresh one, reporting the first entry
// where they differ.
func compareTraces(recorded, fresh []etable.Entry) error {
	n := min(len(recorded), len(fresh))
	//
	for i := 0; i < n; i++ {
		if !reflect.DeepEqual(recorded[i], fresh[i]) {
			log.Debugf("recorded %s, executed %s", recorded[i], fresh[i])
			return fmt.Errorf("trace differs from execution at eid %d", fresh[i].Eid)
		}
	}
	//
	if len(recorded) != len(fresh) {
		return fmt.Errorf("trace has %d steps, but execution has %d", len(recorded), len(fresh))
	}
	//
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("unsliced", false, "also check the tables of the complete execution against the circuit")
}
