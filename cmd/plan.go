// Copyright © 2017 Will Rowe <will.rowe@stfc.ac.uk>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/pipeline"
	"github.com/will-rowe/derep/src/sketch"
)

// the command line arguments
var (
	numSketches *int    // number of sketches to plan for
	planList    *string // file list to count the sketches from
)

// the plan command (used by cobra)
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the passes a comparison would take",
	Long:  `Show the passes a comparison would take for a number of sketches and a memory budget, block size or pass count`,
	Run: func(cmd *cobra.Command, args []string) {
		runPlan(cmd)
	},
}

// a function to initialise the command line arguments
func init() {
	numSketches = planCmd.Flags().IntP("numSketches", "n", 0, "number of sketches to compare")
	planList = planCmd.Flags().StringP("input", "i", "", "file list to count the sketches from (instead of --numSketches)")
	planCmd.Flags().StringP("memory", "m", "", "memory budget for one pass's intersection block (e.g. 16GB)")
	planCmd.Flags().IntP("blockSize", "b", 0, "sketches per pass")
	planCmd.Flags().Int("passes", 0, "number of passes")
	RootCmd.AddCommand(planCmd)
}

/*
  The main function for the plan sub-command
*/
func runPlan(cmd *cobra.Command) {
	cfg, _, stop := startSubcommand(cmd)
	defer stop()

	n := *numSketches
	if *planList != "" {
		paths, err := sketch.ReadFileList(*planList)
		misc.ErrorCheck(err)
		n = len(paths)
	}
	p, err := pipeline.PlanFor(pipeline.NewInfo(cfg, *planList), n)
	misc.ErrorCheck(err)
	fmt.Printf("sketches:\t%s\n", humanize.Comma(int64(p.N)))
	fmt.Printf("block size:\t%s\n", humanize.Comma(int64(p.BlockSize)))
	fmt.Printf("passes:\t%d\n", p.NumPasses)
	fmt.Printf("block memory:\t%s\n", humanize.IBytes(p.MatrixBytes()))
	fmt.Printf("index builds:\t%d\n", p.IndexRebuilds())
	for _, block := range p.Passes() {
		fmt.Printf("pass %d:\t[%d, %d)\n", block.ID, block.Start, block.End)
	}
}
