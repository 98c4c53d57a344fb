package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/will-rowe/derep/src/config"
)

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("DEREP_STRATEGY", "block")
	require.NoError(t, compareCmd.ParseFlags([]string{"--threshold", "0.2", "-p", "3", "--compressShards", "--outDir", t.TempDir()}))
	cfg, err := loadConfig(compareCmd)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Threshold)
	assert.Equal(t, 3, cfg.Processors)
	assert.True(t, cfg.CompressShards)

	// unset flags leave the environment and defaults alone
	assert.Equal(t, config.StrategyBlock, cfg.Strategy)
	assert.Equal(t, config.PolicyContainment, cfg.Policy)
}

func TestLoadConfigInvalid(t *testing.T) {
	require.NoError(t, planCmd.ParseFlags([]string{"--memory", "1GB", "--passes", "4"}))
	_, err := loadConfig(planCmd)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
