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
	"io"
	"os"

	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/will-rowe/derep/src/config"
	"github.com/will-rowe/derep/src/logging"
	"github.com/will-rowe/derep/src/misc"
	"github.com/will-rowe/derep/src/version"
)

// the command line arguments
var (
	profiling  *bool   // create profile for go pprof
	configFile *string // YAML config file
)

// flagKeys maps command line flags to their config keys, a flag only overrides the config when it is set
var flagKeys = map[string]string{
	"processors":     "processors",
	"logLevel":       "log.level",
	"logFile":        "log.file",
	"logJSON":        "log.json",
	"outDir":         "out_dir",
	"memory":         "memory",
	"blockSize":      "block_size",
	"passes":         "passes",
	"threshold":      "threshold",
	"policy":         "policy",
	"strategy":       "strategy",
	"ksize":          "ksize",
	"inputPolicy":    "input_policy",
	"compressShards": "compress_shards",
	"progress":       "progress",
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "derep",
	Short: "dereplicate large collections of genome sketches by containment",
	Long: `
#####################################################################################
		DEREP: all-vs-all sketch comparison and dereplication
#####################################################################################

 DEREP compares every sketch in a collection against every other using an inverted
 index of hash values, in as many passes as the memory budget requires.

 Pairs passing the similarity threshold are written as edges (Jaccard and both
 containments), and a greedy selection keeps every sketch that is not contained
 in a strictly larger one.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

/*
  A function to initalise the command line arguments
*/
func init() {
	RootCmd.PersistentFlags().IntP("processors", "p", 1, "number of processors to use")
	profiling = RootCmd.PersistentFlags().Bool("profiling", false, "create the files needed to profile DEREP using the go tool pprof")
	configFile = RootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (flags and DEREP_* environment variables take precedence)")
	RootCmd.PersistentFlags().String("logLevel", "info", "log level (debug/info/warn/error)")
	RootCmd.PersistentFlags().String("logFile", "", "file to write the log to (default stderr)")
	RootCmd.PersistentFlags().Bool("logJSON", false, "write the log as JSON records")
}

// loadConfig layers the config file, the environment and any flags set on the command line
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]interface{})
	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		var val interface{}
		switch f.Value.Type() {
		case "int":
			val, err = cmd.Flags().GetInt(f.Name)
		case "float64":
			val, err = cmd.Flags().GetFloat64(f.Name)
		case "bool":
			val, err = cmd.Flags().GetBool(f.Name)
		default:
			val = f.Value.String()
		}
		overrides[key] = val
	})
	if err != nil {
		return nil, err
	}
	return config.Load(*configFile, overrides)
}

// startSubcommand loads the config, starts logging and profiling; the returned function stops them
func startSubcommand(cmd *cobra.Command) (*config.Config, zerolog.Logger, func()) {
	cfg, err := loadConfig(cmd)
	misc.ErrorCheck(err)
	cfg.Processors = misc.SetProcessors(cfg.Processors)
	var logCloser io.Closer
	logCloser, err = logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, JSON: cfg.Log.JSON})
	misc.ErrorCheck(err)
	var prof interface{ Stop() }
	if *profiling {
		prof = profile.Start(profile.ProfilePath("./"))
	}
	logger := logging.Logger()
	logger.Info().Msgf("i am derep (version %s)", version.GetVersion())
	logger.Info().Msgf("starting the %s subcommand", cmd.Name())
	return cfg, logger, func() {
		if prof != nil {
			prof.Stop()
		}
		logCloser.Close()
	}
}
