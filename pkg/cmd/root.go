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
	"os/signal"
	"runtime/debug"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/config"
	"github.com/spf13/cobra"
)

// Version is filled when building with make, but *not* when installing via "go
// install".
var Version string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zkwasm",
	Short: "A trace arithmetization toolbox for WebAssembly.",
	Long: `Execute WebAssembly modules, recording their traces, and split those traces
	into slices whose tables are checked against the zkWasm circuit.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !GetFlag(cmd, "version") {
			fmt.Println(cmd.UsageString())
			return
		}
		//
		fmt.Print("zkwasm ")
		//
		if Version != "" {
			// Built via "make"
			fmt.Printf("%s", Version)
		} else if info, ok := debug.ReadBuildInfo(); ok {
			// Built via "go install"
			fmt.Printf("%s", info.Main.Version)
		} else {
			// Unknown, perhaps "go run"
			fmt.Printf("(unknown version)")
		}
		//
		fmt.Println()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	//
	stop()
	//
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "Report version of this executable")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().Uint("k", config.DefaultK, "circuit size parameter (2^k rows) for new executions")
	rootCmd.PersistentFlags().Uint("max-rows", 0, "override the event table rows per slice")
	rootCmd.PersistentFlags().Uint("max-memory-rows", 0, "override the memory table rows per slice")
	rootCmd.PersistentFlags().Uint32("max-pages", 0, "override the maximum number of heap pages")
	rootCmd.PersistentFlags().Uint("max-steps", 0, "override the maximum number of steps executed (0 for unbounded)")
	rootCmd.PersistentFlags().Uint("batch", 0, "override the number of rows handled by a single worker")
	rootCmd.PersistentFlags().Bool("sequential", false, "disable parallel table derivation")
}
