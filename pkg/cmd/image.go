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
	"github.com/DelphinusLab/zkWasm-sub000/pkg/host"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/image"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/tables"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/util"
	"github.com/DelphinusLab/zkWasm-sub000/pkg/wasm"
	"github.com/spf13/cobra"
)

var imageCmd = &cobra.Command{
	Use:   "image [flags] (module.wasm | trace.bin)",
	Short: "Summarise the image of a module.",
	Long: `Summarise the image (i.e. the static content fixed before execution) of a
	WebAssembly module, or of a recorded execution.  For a recorded execution,
	the image after execution is also summarised.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		setLogLevel(cmd)
		//
		data, err := readFile(args[0])
		exitOnError(err)
		//
		images, err := imagesOf(cmd, data)
		exitOnError(err)
		//
		exitOnError(ioFailure(writeImage(os.Stdout, "pre-image", images[0])))
		//
		if len(images) > 1 {
			exitOnError(ioFailure(writeImage(os.Stdout, "post-image", images[1])))
		}
	},
}

// Determine the images of a WebAssembly module, or a recorded execution.  For
// the latter, the image after execution follows the initial image.
func imagesOf(cmd *cobra.Command, data []byte) ([]*image.Image, error) {
	if !binfile.IsBinaryFile(data) {
		cfg := getConfig(cmd)
		//
		m, err := wasm.Compile(cfg, host.DefaultRegistry(), data, GetString(cmd, "entry"))
		if err != nil {
			return nil, badInput(err)
		}
		//
		return []*image.Image{m.Image()}, nil
	}
	//
	var binf binfile.BinaryFile
	//
	if err := binf.UnmarshalBinary(data); err != nil {
		return nil, badInput(err)
	}
	//
	cfg, err := executionConfig(cmd, &binf)
	if err != nil {
		return nil, err
	}
	//
	m, err := compileExecution(cfg, &binf)
	if err != nil {
		return nil, err
	}
	//
	tbls, err := tables.Build(cfg, m, binf.Execution.Trace)
	if err != nil {
		return nil, failedCheck(err)
	}
	//
	return []*image.Image{tbls.Image, tbls.Image.WithMemory(tbls.PostMemory)}, nil
}

var sectionWidths = [image.NumSections]int{
	image.InstructionWidth, image.BranchWidth, image.MemoryWidth, image.ElementWidth, image.StaticWidth,
}

// Write the number of entries in each section of an image, followed by its
// hash.
func writeImage(w io.Writer, name string, img *image.Image) error {
	tp := util.NewTablePrinter(3, uint(image.NumSections)+1)
	tp.SetRow(0, "section", "entries", "elements")
	//
	for s := image.Section(0); s < image.NumSections; s++ {
		n := len(img.Section(s))
		tp.SetRow(uint(s)+1, s.String(), fmt.Sprintf("%d", n/sectionWidths[s]), fmt.Sprintf("%d", n))
	}
	//
	hash := img.Hash()
	//
	if _, err := fmt.Fprintf(w, "%s %s\n", name, hex.EncodeToString(hash[:])); err != nil {
		return err
	}
	//
	return tp.Write(w)
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.Flags().String("entry", wasm.DefaultEntry, "name of the exported entry function (for modules)")
}
