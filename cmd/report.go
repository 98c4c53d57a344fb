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
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/pipeline"
	"github.com/will-rowe/derep/src/reporting"
)

// the command line arguments
var (
	reportDir *string // directory of a finished run
	bins      *int    // histogram bins
)

// the report command (used by cobra)
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Plot the similarity distributions of a finished run",
	Long:  `Plot the Jaccard, containment and sketch size distributions of a finished run`,
	Run: func(cmd *cobra.Command, args []string) {
		runReport(cmd)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return misc.CheckRequiredFlags(cmd.Flags())
	},
}

// a function to initialise the command line arguments
func init() {
	reportDir = reportCmd.Flags().StringP("runDir", "r", "", "directory of a finished compare run - required")
	bins = reportCmd.Flags().Int("bins", 50, "number of histogram bins")
	reportCmd.MarkFlagRequired("runDir")
	RootCmd.AddCommand(reportCmd)
}

/*
  The main function for the report sub-command
*/
func runReport(cmd *cobra.Command) {
	_, logger, stop := startSubcommand(cmd)
	defer stop()
	start := time.Now()

	info, err := pipeline.LoadInfo(*reportDir)
	misc.ErrorCheck(err)
	plotDir := filepath.Join(*reportDir, "plots")
	misc.ErrorCheck(misc.MakeDir(plotDir))

	dists, err := reporting.CollectEdges(info.Path(pipeline.EdgesFile))
	misc.ErrorCheck(err)
	logger.Info().Msgf("\tedges collected: %d", dists.Len())
	plots := []struct {
		title, xLabel string
		values        []float64
	}{
		{"Jaccard similarity", "jaccard", dists.Jaccard},
		{"Containment", "containment of the query sketch", dists.Containment},
		{"Sketch sizes", "hashes per sketch", reporting.SizeValues(info.Sizes)},
	}
	for _, p := range plots {
		if len(p.values) == 0 {
			logger.Warn().Msgf("\tnothing to plot for %v", p.title)
			continue
		}
		path := filepath.Join(plotDir, reporting.FileName(p.title))
		misc.ErrorCheck(reporting.PlotHistogram(p.values, *bins, p.title, p.xLabel, path))
		logger.Info().Msgf("\tsaved %v", path)
	}
	logger.Info().Msgf("finished in %s", time.Since(start))
}
