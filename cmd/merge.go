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
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/pipeline"
	"github.com/will-rowe/derep/src/shard"
)

// the command line arguments
var (
	mergeDir *string // directory holding the shards
	mergeOut *string // merged edge file
)

// the merge command (used by cobra)
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the edge shards of a run into a single edge file",
	Long:  `Merge the edge shards of a run into a single edge file`,
	Run: func(cmd *cobra.Command, args []string) {
		runMerge(cmd)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return misc.CheckRequiredFlags(cmd.Flags())
	},
}

// a function to initialise the command line arguments
func init() {
	mergeDir = mergeCmd.Flags().StringP("runDir", "r", "", "directory holding the shards - required")
	mergeOut = mergeCmd.Flags().StringP("out", "o", "", "merged edge file (default edges.csv in the run directory)")
	mergeCmd.MarkFlagRequired("runDir")
	RootCmd.AddCommand(mergeCmd)
}

/*
  The main function for the merge sub-command
*/
func runMerge(cmd *cobra.Command) {
	_, logger, stop := startSubcommand(cmd)
	defer stop()
	start := time.Now()

	misc.ErrorCheck(misc.CheckDir(*mergeDir))
	shards, err := shard.List(*mergeDir)
	misc.ErrorCheck(err)
	logger.Info().Msgf("\tshards found: %d", len(shards))
	out := *mergeOut
	if out == "" {
		out = filepath.Join(*mergeDir, pipeline.EdgesFile)
	}
	count, err := shard.MergeFile(context.Background(), shards, out)
	misc.ErrorCheck(err)
	logger.Info().Msgf("\tedges merged: %d", count)
	logger.Info().Msgf("\twritten to %v", out)
	logger.Info().Msgf("finished in %s", time.Since(start))
}
