package shard

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/will-rowe/derep/src/similarity"
)

func TestRecord(t *testing.T) {
	e := similarity.Edge{I: 3, J: 7, Jaccard: 0.1, ContainmentIJ: 1, ContainmentJI: 0.25}
	line := FormatRecord(e)
	assert.Equal(t, "3,7,0.1,1,0.25", line)
	got, err := ParseRecord(line + "\n")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	for _, bad := range []string{"", "1,2,3", "a,2,0.1,0.1,0.1", "1,2,x,0.1,0.1", "1,2,0.1,0.1,0.1,9"} {
		_, err := ParseRecord(bad)
		assert.Error(t, err, bad)
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "pass-2-worker-10.csv", Name(2, 10, false))
	assert.Equal(t, "pass-0-worker-1.csv.gz", Name(0, 1, true))
	p, w, err := parseName("/tmp/run/pass-3-worker-4.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, 3, p)
	assert.Equal(t, 4, w)
	_, _, err = parseName("edges.csv")
	assert.Error(t, err)
}

func writeShard(t *testing.T, dir string, pass, worker int, compressed bool, edges ...similarity.Edge) string {
	t.Helper()
	w, err := Create(dir, pass, worker, compressed)
	require.NoError(t, err)
	for _, e := range edges {
		require.NoError(t, w.Write(e))
	}
	assert.Equal(t, int64(len(edges)), w.Count())
	require.NoError(t, w.Close())
	return w.Path()
}

func TestListOrder(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, 1, 0, false)
	writeShard(t, dir, 0, 10, false)
	writeShard(t, dir, 0, 2, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "edges.csv"), nil, 0644))

	shards, err := List(dir)
	require.NoError(t, err)
	var names []string
	for _, s := range shards {
		names = append(names, filepath.Base(s))
	}
	assert.Equal(t, []string{"pass-0-worker-2.csv.gz", "pass-0-worker-10.csv", "pass-1-worker-0.csv"}, names)
}

func TestMerge(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		dir := t.TempDir()
		a := similarity.Edge{I: 0, J: 1, Jaccard: 0.5, ContainmentIJ: 1, ContainmentJI: 0.5}
		b := similarity.Edge{I: 1, J: 0, Jaccard: 0.5, ContainmentIJ: 0.5, ContainmentJI: 1}
		c := similarity.Edge{I: 2, J: 0, Jaccard: 0.2, ContainmentIJ: 0.3, ContainmentJI: 0.4}
		writeShard(t, dir, 0, 0, compressed, a)
		writeShard(t, dir, 0, 1, compressed, b)
		writeShard(t, dir, 1, 0, compressed)
		writeShard(t, dir, 1, 1, compressed, c)

		shards, err := List(dir)
		require.NoError(t, err)
		require.Len(t, shards, 4)

		var sb strings.Builder
		n, err := Merge(context.Background(), shards, &sb)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.Equal(t, "0,1,0.5,1,0.5\n1,0,0.5,0.5,1\n2,0,0.2,0.3,0.4\n", sb.String())

		// a merged file reads back to the same edges
		merged := filepath.Join(dir, "edges.csv")
		_, err = MergeFile(context.Background(), shards, merged)
		require.NoError(t, err)
		var got []similarity.Edge
		require.NoError(t, ReadEdgesFile(merged, func(e similarity.Edge) error {
			got = append(got, e)
			return nil
		}))
		assert.Equal(t, []similarity.Edge{a, b, c}, got)
	}
}

func TestEachErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, Name(0, 0, false))
	require.NoError(t, os.WriteFile(bad, []byte("0,1,0.5\n"), 0644))
	err := Each(context.Background(), []string{bad}, func(similarity.Edge) error { return nil })
	assert.Error(t, err)

	err = Each(context.Background(), []string{filepath.Join(dir, "missing.csv")}, func(similarity.Edge) error { return nil })
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Each(ctx, []string{bad}, func(similarity.Edge) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateFailure(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing"), 0, 0, false)
	assert.ErrorIs(t, err, ErrShardWrite)
}

func TestWriterIsSink(t *testing.T) {
	var _ similarity.Sink = (*Writer)(nil)
}
