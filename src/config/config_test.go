package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Processors)
	assert.Equal(t, 0.01, cfg.Threshold)
	assert.Equal(t, PolicyContainment, cfg.Policy)
	assert.Equal(t, StrategyFull, cfg.Strategy)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "derep.yaml")
	yml := "processors: 4\nthreshold: 0.2\nstrategy: block\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))
	t.Setenv("DEREP_MEMORY", "1GiB")
	t.Setenv("DEREP_LOG_JSON", "true")

	cfg, err := Load(path, map[string]interface{}{"threshold": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Processors)
	assert.Equal(t, 0.5, cfg.Threshold)
	assert.Equal(t, StrategyBlock, cfg.Strategy)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	mem, err := cfg.MemoryBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<30), mem)
}

func TestValidation(t *testing.T) {
	for name, overrides := range map[string]map[string]interface{}{
		"no threads":      {"processors": 0},
		"negative block":  {"block_size": -1},
		"threshold":       {"threshold": 1.5},
		"policy":          {"policy": "cosine"},
		"strategy":        {"strategy": "bucket"},
		"memory":          {"memory": "lots"},
		"zero memory":     {"memory": "0B"},
		"two size limits": {"memory": "1GB", "passes": 3},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", overrides)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}
