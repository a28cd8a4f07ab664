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
	"fmt"
	"io"
	"os"

	"github.com/DelphinusLab/zkWasm-sub000/pkg/air"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/circuit"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/etable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/itable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/jtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/mtable"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] trace.bin",
	Short: "Inspect the tables of a recorded execution.",
	Long: `Print one of the tables derived from a recorded execution, either for the
	complete execution or for a single slice.  Output is fitted to the width of
	the terminal (when there is one).  With --constraints, print the constraints
	of the circuit instead (no execution is needed).`,
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "constraints") {
			setLogLevel(cmd)
			exitOnError(writeConstraints(os.Stdout, circuit.New(getConfig(cmd)).Schema()))
			//
			return
		} else if len(args) != 1 {
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
		view := inspection{
			table: GetString(cmd, "table"),
			start: GetUint(cmd, "start"),
			limit: GetUint(cmd, "limit"),
		}
		//
		var tbls *tables.Tables
		//
		if cmd.Flags().Changed("slice") {
			slices, err := sliceExecution(cfg, binf, false)
			exitOnError(err)
			//
			index := GetUint(cmd, "slice")
			if index >= uint(len(slices)) {
				exitOnError(badInput(fmt.Errorf("slice %d out of range (%d slices)", index, len(slices))))
			}
			//
			s := slices[index]
			tbls = &tables.Tables{Events: s.Events, Memory: s.Memory, Frames: s.Frames, Image: s.PreImage}
		} else {
			m, err := compileExecution(cfg, binf)
			exitOnError(err)
			//
			tbls, err = tables.Build(cfg, m, binf.Execution.Trace)
			exitOnError(failedCheck(err))
		}
		//
		exitOnError(view.write(os.Stdout, tbls, terminalWidth()))
	},
}

// inspection determines which rows of which table are printed.
type inspection struct {
	table string
	start uint
	// Maximum number of rows (0 for all).
	limit uint
}

// Write the selected rows of a given set of tables, fitted to a given width (0
// for unbounded).
func (p inspection) write(w io.Writer, tbls *tables.Tables, width uint) error {
	tp, err := p.printer(tbls)
	if err != nil {
		return err
	}
	//
	if width != 0 {
		tp.FitWidth(width)
	}
	//
	return ioFailure(tp.Write(w))
}

// Determine the width of the terminal attached to stdout (0 if none).
func terminalWidth() uint {
	fd := int(os.Stdout.Fd())
	//
	if term.IsTerminal(fd) {
		if width, _, err := term.GetSize(fd); err == nil {
			return uint(width)
		}
	}
	//
	return 0
}

func (p inspection) printer(tbls *tables.Tables) (*util.TablePrinter, error) {
	switch p.table {
	case "events":
		rows := tbls.Events.Rows()
		lo, hi := p.window(len(rows))
		//
		return eventsPrinter(rows[lo:hi]), nil
	case "memory":
		rows := tbls.Memory.Rows()
		lo, hi := p.window(len(rows))
		//
		return memoryPrinter(rows[lo:hi]), nil
	case "frames":
		entries := tbls.Frames.Entries()
		lo, hi := p.window(len(entries))
		//
		return framesPrinter(entries[lo:hi]), nil
	case "code":
		entries := tbls.Image.Code().Entries()
		lo, hi := p.window(len(entries))
		//
		return codePrinter(entries[lo:hi]), nil
	}
	//
	return nil, badInput(fmt.Errorf("unknown table %q (expected events, memory, frames or code)", p.table))
}

// Write every constraint of a given schema, one per line.  Vanishing
// constraints are parsed back from their printed form, to ensure what is
// printed is what is checked.
func writeConstraints(w io.Writer, schema *air.Schema) error {
	for _, c := range schema.Constraints() {
		if v, ok := c.(*air.VanishingConstraint); ok {
			printed := v.Expr().String()
			//
			parsed, err := air.ParseSExp(printed)
			if err != nil {
				return fmt.Errorf("%s: %w", v.Handle(), err)
			} else if parsed.String() != printed {
				return fmt.Errorf("%s: printed as %s, but parsed as %s", v.Handle(), printed, parsed)
			}
		}
		//
		if _, err := fmt.Fprintln(w, c.Lisp().String()); err != nil {
			return ioFailure(err)
		}
	}
	//
	return nil
}

// Determine the window of rows to print from a table of n rows.
func (p inspection) window(n int) (int, int) {
	lo := min(int(p.start), n)
	//
	if p.limit == 0 {
		return lo, n
	}
	//
	return lo, min(lo+int(p.limit), n)
}

func eventsPrinter(rows []etable.Row) *util.TablePrinter {
	tp := util.NewTablePrinter(7, uint(len(rows)+1))
	tp.SetRow(0, "eid", "pc", "sp", "pages", "frame", "instruction", "step")
	//
	for i, r := range rows {
		instruction := ""
		if r.Instruction != nil {
			instruction = r.Instruction.Opcode.String()
		}
		//
		tp.SetRow(uint(i+1),
			fmt.Sprintf("%d", r.Eid),
			r.Address().String(),
			fmt.Sprintf("%d", r.Sp),
			fmt.Sprintf("%d", r.AllocatedMemoryPages),
			fmt.Sprintf("%d", r.LastJumpEid),
			instruction,
			fmt.Sprintf("%+v", r.Step))
	}
	//
	return tp
}

func memoryPrinter(rows []mtable.Row) *util.TablePrinter {
	tp := util.NewTablePrinter(8, uint(len(rows)+1))
	tp.SetRow(0, "eid", "emid", "address", "access", "type", "mutable", "value", "rest_mops")
	//
	for i, r := range rows {
		tp.SetRow(uint(i+1),
			fmt.Sprintf("%d", r.Eid),
			fmt.Sprintf("%d", r.Emid),
			fmt.Sprintf("%s@%d", r.Location, r.Offset),
			r.Access.String(),
			r.Type.String(),
			fmt.Sprintf("%t", r.IsMutable),
			fmt.Sprintf("%#x", r.Value),
			fmt.Sprintf("%d", r.RestMops))
	}
	//
	return tp
}

func framesPrinter(entries []jtable.Entry) *util.TablePrinter {
	tp := util.NewTablePrinter(4, uint(len(entries)+1))
	tp.SetRow(0, "frame", "caller frame", "callee", "caller")
	//
	for i, e := range entries {
		tp.SetRow(uint(i+1),
			fmt.Sprintf("%d", e.Eid),
			fmt.Sprintf("%d", e.LastJumpEid),
			fmt.Sprintf("%d", e.CalleeFid),
			e.Caller.String())
	}
	//
	return tp
}

func codePrinter(entries []itable.Entry) *util.TablePrinter {
	tp := util.NewTablePrinter(3, uint(len(entries)+1))
	tp.SetRow(0, "pc", "instruction", "code")
	//
	for i, e := range entries {
		tp.SetRow(uint(i+1), e.Address().String(), e.Opcode.String(), e.Code.Hex())
	}
	//
	return tp
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("table", "events", "table to print (events, memory, frames or code)")
	inspectCmd.Flags().Uint("slice", 0, "print the tables of this slice, rather than the complete execution")
	inspectCmd.Flags().Uint("start", 0, "first row to print")
	inspectCmd.Flags().Uint("limit", 0, "maximum number of rows to print (0 for all)")
	inspectCmd.Flags().Bool("constraints", false, "print the constraints of the circuit")
}
