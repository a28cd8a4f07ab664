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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/store"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [flags] store [id]",
	Short: "Replay an execution held in a slice store.",
	Long: `Re-derive the slices of an execution held in a slice store, checking them
	against the stored slice summaries.  Without an identifier, the executions in
	the store are listed.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 || len(args) > 2 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		setLogLevel(cmd)
		//
		db, err := store.Open(args[0])
		exitOnError(ioFailure(err))
		//
		if len(args) == 1 {
			err = listExecutions(os.Stdout, db)
		} else {
			err = replayExecution(os.Stdout, db, args[1])
		}
		//
		db.Close()
		exitOnError(err)
	},
}

// List the identifiers of every execution in a store.
func listExecutions(w io.Writer, db *store.Store) error {
	ids, err := db.Executions()
	if err != nil {
		return ioFailure(err)
	}
	//
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return ioFailure(err)
		}
	}
	//
	return nil
}

// Replay a stored execution, and summarise its slices.
func replayExecution(w io.Writer, db *store.Store, id string) error {
	slices, err := db.Replay(id, host.DefaultRegistry())
	if errors.Is(err, store.ErrNotFound) {
		return badInput(err)
	} else if err != nil {
		return failedCheck(err)
	}
	//
	return ioFailure(writeRecords(w, recordsOf(slices)))
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
