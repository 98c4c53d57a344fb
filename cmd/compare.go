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
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/pipeline"
)

// the command line arguments
var (
	input         *string // file list, sketch archive or sketch cache to compare
	cacheSketches *bool   // write a sketch cache to the output directory
)

// the compare command (used by cobra)
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare every sketch against every other and select the representatives",
	Long: `Compare every sketch against every other and select the representatives.

The input is a file listing one signature file per line, a zip/tar archive of
signatures (e.g. a sourmash database) or a sketch cache from a previous run.`,
	Run: func(cmd *cobra.Command, args []string) {
		runCompare(cmd)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return misc.CheckRequiredFlags(cmd.Flags())
	},
}

// a function to initialise the command line arguments
func init() {
	input = compareCmd.Flags().StringP("input", "i", "", "file list, archive or sketch cache to compare - required")
	cacheSketches = compareCmd.Flags().Bool("cache", false, "save the loaded sketches to the output directory for quicker reruns")
	compareCmd.Flags().StringP("outDir", "o", "./derep-out", "directory to write the run to")
	compareCmd.Flags().StringP("memory", "m", "", "memory budget for one pass's intersection block (e.g. 16GB)")
	compareCmd.Flags().IntP("blockSize", "b", 0, "sketches per pass (instead of a memory budget)")
	compareCmd.Flags().Int("passes", 0, "number of passes (instead of a memory budget)")
	compareCmd.Flags().Float64P("threshold", "t", 0.01, "minimum similarity for an edge to be reported")
	compareCmd.Flags().String("policy", "containment", "similarity the threshold applies to (containment/jaccard)")
	compareCmd.Flags().String("strategy", "full", "inverted index built each pass (full/block)")
	compareCmd.Flags().IntP("ksize", "k", 0, "k-mer size of the signatures to use (0 takes the first in each file)")
	compareCmd.Flags().String("inputPolicy", "skip", "what to do with unreadable sketches (skip/abort)")
	compareCmd.Flags().Bool("compressShards", false, "bgzip the edge shards")
	compareCmd.Flags().Bool("progress", false, "show a progress bar for the passes")
	compareCmd.MarkFlagRequired("input")
	RootCmd.AddCommand(compareCmd)
}

/*
  The main function for the compare sub-command
*/
func runCompare(cmd *cobra.Command) {
	cfg, logger, stop := startSubcommand(cmd)
	defer stop()
	start := time.Now()

	// check the supplied files and then log some stuff
	logger.Info().Msg("checking parameters...")
	misc.ErrorCheck(misc.CheckFile(*input))
	logger.Info().Msgf("\tprocessors: %d", cfg.Processors)
	logger.Info().Msgf("\tinput: %v", *input)
	logger.Info().Msgf("\toutput directory: %v", cfg.OutDir)
	logger.Info().Msgf("\tthreshold: %s >= %v", cfg.Policy, cfg.Threshold)
	logger.Info().Msgf("\tindex strategy: %s", cfg.Strategy)
	switch {
	case cfg.Memory != "":
		logger.Info().Msgf("\tmemory budget: %v", cfg.Memory)
	case cfg.BlockSize != 0:
		logger.Info().Msgf("\tblock size: %d", cfg.BlockSize)
	case cfg.Passes != 0:
		logger.Info().Msgf("\tpasses: %d", cfg.Passes)
	}

	// run the pipeline, an interrupt cancels the current pass
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	info := pipeline.NewInfo(cfg, *input)
	info.CacheSketches = *cacheSketches
	logger.Info().Msgf("starting run %v...", info.RunID)
	res, err := pipeline.Compare(ctx, info, logger)
	misc.ErrorCheck(err)
	logger.Info().Msgf("\tedges reported: %d", info.Edges)
	logger.Info().Msgf("\trepresentatives: %d of %d sketches", len(res.Selected), len(info.Sizes))
	logger.Info().Msgf("\tsaved run info to %v", info.Path(pipeline.InfoFile))
	logger.Info().Msgf("finished in %s", time.Since(start))
}
