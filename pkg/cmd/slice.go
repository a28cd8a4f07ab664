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
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/binfile"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/circuit"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/slice"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/store"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var sliceCmd = &cobra.Command{
	Use:   "slice [flags] trace.bin",
	Short: "Split a recorded execution into slices.",
	Long: `Split a recorded execution into slices which fit within the capacity of a
	single circuit, checking that consecutive slices agree at their boundaries.
	Optionally, the slices are checked against the circuit and/or recorded in a
	slice store.`,
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
		slices, err := sliceExecution(cfg, binf, GetFlag(cmd, "circuit"))
		exitOnError(err)
		//
		exitOnError(ioFailure(writeRecords(os.Stdout, recordsOf(slices))))
		//
		if dir := GetString(cmd, "store"); dir != "" {
			id, err := storeSlices(dir, cfg, binf, slices)
			exitOnError(err)
			log.Infof("stored %d slices of execution %s", len(slices), id)
		}
	},
}

// Split a recorded execution into slices, and check them.  When requested,
// every slice is also checked against the circuit.
func sliceExecution(cfg config.Config, binf *binfile.BinaryFile, checkCircuit bool) ([]*slice.Slice, error) {
	m, err := compileExecution(cfg, binf)
	if err != nil {
		return nil, err
	}
	//
	slices, err := slice.Split(cfg, m, binf.Execution.Trace)
	if err != nil {
		return nil, failedCheck(err)
	} else if err := slice.CheckAll(cfg, slices); err != nil {
		return nil, failedCheck(err)
	} else if checkCircuit {
		if err := circuit.CheckSlices(cfg, slices); err != nil {
			return nil, failedCheck(err)
		}
	}
	//
	return slices, nil
}

// Record an execution together with its slices.  The execution is recorded
// under the configuration used to split it, such that replaying it derives the
// same slices.
func storeSlices(path string, cfg config.Config, binf *binfile.BinaryFile, slices []*slice.Slice) (string, error) {
	binf, err := binfile.NewBinaryFile(cfg, binf.Execution)
	if err != nil {
		return "", badInput(err)
	}
	//
	db, err := store.Open(path)
	if err != nil {
		return "", ioFailure(err)
	}
	//
	defer db.Close()
	//
	id, err := db.PutExecution(binf)
	if err != nil {
		return "", ioFailure(err)
	}
	//
	return id, ioFailure(db.PutSlices(id, slices))
}

func recordsOf(slices []*slice.Slice) []store.Record {
	records := make([]store.Record, len(slices))
	//
	for i, s := range slices {
		records[i] = store.RecordOf(s)
	}
	//
	return records
}

// Write a summary of each slice.
func writeRecords(w io.Writer, records []store.Record) error {
	tp := util.NewTablePrinter(7, uint(len(records)+1))
	tp.SetRow(0, "slice", "eids", "events", "memory", "frames", "pre-image", "post-state")
	//
	for i, r := range records {
		last := ""
		if r.IsLast {
			last = " (last)"
		}
		//
		tp.SetRow(uint(i+1),
			fmt.Sprintf("%d%s", r.Index, last),
			fmt.Sprintf("%d..%d", r.FirstEid, r.PostEid),
			fmt.Sprintf("%d", r.EventRows),
			fmt.Sprintf("%d", r.MemoryRows),
			fmt.Sprintf("%d", r.FrameRows),
			hex.EncodeToString(r.PreImage[:8]),
			r.PostState.String())
	}
	//
	return tp.Write(w)
}

func init() {
	rootCmd.AddCommand(sliceCmd)
	sliceCmd.Flags().Bool("circuit", true, "check every slice against the circuit")
	sliceCmd.Flags().String("store", "", "record the execution and its slices into the slice store at this path")
}
