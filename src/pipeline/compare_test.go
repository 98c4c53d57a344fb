package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/will-rowe/derep/src/config"
	"github.com/will-rowe/derep/src/shard"
	"github.com/will-rowe/derep/src/sketch"
)

// writeSignatures writes one sourmash-style signature per hash set and returns the file list path
func writeSignatures(t *testing.T, dir string, hashes [][]uint64) string {
	t.Helper()
	paths := make([]string, len(hashes))
	for i, set := range hashes {
		mins := make([]string, len(set))
		for j, h := range set {
			mins[j] = fmt.Sprint(h)
		}
		content := fmt.Sprintf(`[{"name":"genome-%d","signatures":[{"ksize":31,"mins":[%s]}]}]`, i, strings.Join(mins, ","))
		paths[i] = filepath.Join(dir, fmt.Sprintf("genome-%d.sig", i))
		require.NoError(t, os.WriteFile(paths[i], []byte(content), 0644))
	}
	list := filepath.Join(dir, "sigs.txt")
	require.NoError(t, os.WriteFile(list, []byte(strings.Join(paths, "\n")+"\n"), 0644))
	return list
}

func rangeHashes(lo, hi uint64) []uint64 {
	hashes := []uint64{}
	for h := lo; h < hi; h++ {
		hashes = append(hashes, h)
	}
	return hashes
}

func testInfo(t *testing.T, input string, edit func(cfg *config.Config)) *Info {
	t.Helper()
	cfg := config.Default()
	cfg.OutDir = filepath.Join(t.TempDir(), "run")
	if edit != nil {
		edit(cfg)
	}
	require.NoError(t, cfg.Validate())
	return NewInfo(cfg, input)
}

func TestCompareContainment(t *testing.T) {
	// genome-0 (100 hashes) sits inside genome-1 (1000 hashes), genome-2 is unrelated and genome-3 is unreadable
	dir := t.TempDir()
	list := writeSignatures(t, dir, [][]uint64{rangeHashes(0, 100), rangeHashes(0, 1000), rangeHashes(5000, 5050)})
	broken := filepath.Join(dir, "genome-3.sig")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0644))
	fh, err := os.OpenFile(list, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = fh.WriteString(broken + "\n")
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	info := testInfo(t, list, func(cfg *config.Config) {
		cfg.Processors = 2
		cfg.Passes = 2
	})
	res, err := Compare(context.Background(), info, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, res.Selected)
	assert.True(t, res.Redundant.Contains(0))
	assert.Equal(t, 1, info.Failed)
	assert.Equal(t, []int{100, 1000, 50, 0}, info.Sizes)

	edges, err := os.ReadFile(info.Path(EdgesFile))
	require.NoError(t, err)
	assert.Equal(t, "0,1,0.1,1,0.1\n1,0,0.1,0.1,1\n", string(edges))

	reps, err := os.ReadFile(info.Path(RepresentativesFile))
	require.NoError(t, err)
	assert.Equal(t, "genome-3\ngenome-2\ngenome-1\n", string(reps))

	// the run info reloads with the plan and shards
	loaded, err := LoadInfo(info.Config.OutDir)
	require.NoError(t, err)
	assert.Equal(t, info.RunID, loaded.RunID)
	assert.Equal(t, 2, loaded.Plan.NumPasses)
	assert.Equal(t, info.Shards, loaded.Shards)
	assert.Equal(t, int64(2), loaded.Edges)
	assert.Equal(t, 3, loaded.Representatives)
	assert.Nil(t, loaded.Store())
	shards, err := shard.List(info.Config.OutDir)
	require.NoError(t, err)
	assert.Len(t, shards, len(loaded.Shards))

	// selection can be rerun from the merged edges
	adj, err := AdjacencyFromEdges(loaded, loaded.Path(EdgesFile), 0.5)
	require.NoError(t, err)
	again, err := WriteRepresentatives(loaded, adj)
	require.NoError(t, err)
	assert.Equal(t, res.Selected, again.Selected)
}

func TestCompareDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sets := make([][]uint64, 23)
	for i := range sets {
		size := rng.Intn(60)
		for j := 0; j < size; j++ {
			sets[i] = append(sets[i], uint64(rng.Intn(150)))
		}
	}
	list := writeSignatures(t, t.TempDir(), sets)

	run := func(edit func(cfg *config.Config)) (string, []int) {
		info := testInfo(t, list, edit)
		res, err := Compare(context.Background(), info, zerolog.Nop())
		require.NoError(t, err)
		edges, err := os.ReadFile(info.Path(EdgesFile))
		require.NoError(t, err)
		return string(edges), res.Selected
	}

	baseEdges, baseSelected := run(func(cfg *config.Config) { cfg.Threshold = 0.2 })
	require.NotEmpty(t, baseEdges)
	for _, edit := range []func(cfg *config.Config){
		func(cfg *config.Config) { cfg.Threshold, cfg.Processors, cfg.BlockSize = 0.2, 3, 4 },
		func(cfg *config.Config) { cfg.Threshold, cfg.Processors, cfg.Passes = 0.2, 8, 23 },
		func(cfg *config.Config) {
			cfg.Threshold, cfg.Processors, cfg.BlockSize, cfg.Strategy = 0.2, 4, 5, config.StrategyBlock
		},
		func(cfg *config.Config) { cfg.Threshold, cfg.Processors, cfg.Passes, cfg.CompressShards = 0.2, 2, 3, true },
	} {
		edges, selected := run(edit)
		assert.Equal(t, baseEdges, edges)
		assert.Equal(t, baseSelected, selected)
	}
}

func TestCompareFailures(t *testing.T) {
	// memory budget too small for one row
	list := writeSignatures(t, t.TempDir(), [][]uint64{{1, 2}, {2, 3}, {3, 4}})
	info := testInfo(t, list, func(cfg *config.Config) { cfg.Memory = "8B" })
	_, err := Compare(context.Background(), info, zerolog.Nop())
	assert.ErrorIs(t, err, config.ErrConfiguration)
	_, statErr := os.Stat(info.Path(RepresentativesFile))
	assert.True(t, os.IsNotExist(statErr))

	// unreadable input under the abort policy
	dir := t.TempDir()
	list = writeSignatures(t, dir, [][]uint64{{1, 2}})
	require.NoError(t, os.WriteFile(list, []byte(filepath.Join(dir, "missing.sig")+"\n"), 0644))
	info = testInfo(t, list, func(cfg *config.Config) { cfg.InputPolicy = "abort" })
	_, err = Compare(context.Background(), info, zerolog.Nop())
	assert.ErrorIs(t, err, sketch.ErrInput)
}

func TestSketchCache(t *testing.T) {
	list := writeSignatures(t, t.TempDir(), [][]uint64{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}})
	info := testInfo(t, list, nil)
	info.CacheSketches = true
	_, err := Compare(context.Background(), info, zerolog.Nop())
	require.NoError(t, err)

	// a second run from the cache gives the same edges
	cached := testInfo(t, info.Path(SketchCacheFile), nil)
	_, err = Compare(context.Background(), cached, zerolog.Nop())
	require.NoError(t, err)
	want, err := os.ReadFile(info.Path(EdgesFile))
	require.NoError(t, err)
	got, err := os.ReadFile(cached.Path(EdgesFile))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.Contains(t, string(got), "0,1,0.5,0.6666666666666666,0.6666666666666666\n")
}
