// Package logging sets up the zerolog logger used by the derep sub-commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options control where and how the run is logged
type Options struct {
	Level string // debug, info, warn, error
	File  string // log file, stderr when empty
	JSON  bool   // emit JSON records instead of the console format
}

// Setup configures the global logger and returns a closer for any opened log file
func Setup(opts Options) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", opts.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		fh, err := StartLogging(opts.File)
		if err != nil {
			return nil, err
		}
		out, closer = fh, fh
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006/01/02 15:04:05", NoColor: opts.File != ""}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

// Logger returns the global logger
func Logger() zerolog.Logger {
	return log.Logger
}

// StartLogging opens the log file for appending, creating the parent directory if needed
func StartLogging(logFile string) (*os.File, error) {
	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("can't create specified directory for log: %w", err)
		}
	}
	return os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
