package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "derep.log")
	closer, err := Setup(Options{Level: "debug", File: logFile, JSON: true})
	require.NoError(t, err)
	l := Logger()
	l.Info().Int("passes", 3).Msg("starting the compare subcommand")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"passes":3`)
	assert.Contains(t, string(data), "starting the compare subcommand")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetupBadLevel(t *testing.T) {
	_, err := Setup(Options{Level: "chatty"})
	assert.Error(t, err)
}
