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
	"time"

	"github.com/spf13/cobra"

	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/pipeline"
)

// the command line arguments
var (
	runDir         *string  // directory of a finished run
	edgesFile      *string  // edge file to select from
	minContainment *float64 // containment threshold for the selection
)

// the select command (used by cobra)
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Rerun the representative selection of a finished run",
	Long: `Rerun the representative selection of a finished run, optionally with a
stricter containment threshold than the one used for the comparison.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSelect(cmd)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return misc.CheckRequiredFlags(cmd.Flags())
	},
}

// a function to initialise the command line arguments
func init() {
	runDir = selectCmd.Flags().StringP("runDir", "r", "", "directory of a finished compare run - required")
	edgesFile = selectCmd.Flags().StringP("edges", "e", "", "edge file to select from (default the run's merged edges)")
	minContainment = selectCmd.Flags().Float64P("containment", "t", -1, "containment threshold (default the run's threshold)")
	selectCmd.MarkFlagRequired("runDir")
	RootCmd.AddCommand(selectCmd)
}

/*
  The main function for the select sub-command
*/
func runSelect(cmd *cobra.Command) {
	_, logger, stop := startSubcommand(cmd)
	defer stop()
	start := time.Now()

	logger.Info().Msg("loading the run...")
	info, err := pipeline.LoadInfo(*runDir)
	misc.ErrorCheck(err)
	threshold := info.Config.Threshold
	if *minContainment >= 0 {
		threshold = *minContainment
	}
	edges := *edgesFile
	if edges == "" {
		edges = info.Path(pipeline.EdgesFile)
	}
	misc.ErrorCheck(misc.CheckFile(edges))
	logger.Info().Msgf("\trun: %v", info.RunID)
	logger.Info().Msgf("\tsketches: %d", len(info.Sizes))
	logger.Info().Msgf("\tcontainment threshold: %v", threshold)

	adj, err := pipeline.AdjacencyFromEdges(info, edges, threshold)
	misc.ErrorCheck(err)
	res, err := pipeline.WriteRepresentatives(info, adj)
	misc.ErrorCheck(err)
	misc.ErrorCheck(info.Dump(info.Path(pipeline.InfoFile)))
	logger.Info().Msgf("\trepresentatives: %d (%d redundant)", len(res.Selected), res.Redundant.GetCardinality())
	logger.Info().Msgf("\twritten to %v", info.Path(pipeline.RepresentativesFile))
	logger.Info().Msgf("finished in %s", time.Since(start))
}
