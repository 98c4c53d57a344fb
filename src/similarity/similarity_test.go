package similarity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/will-rowe/derep/src/config"
	"github.com/will-rowe/derep/src/intersect"
	"github.com/will-rowe/derep/src/plan"
	"github.com/will-rowe/derep/src/sketch"
)

type memSink struct {
	sync.Mutex
	edges []Edge
	fail  bool
}

func (s *memSink) Write(e Edge) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.Lock()
	s.edges = append(s.edges, e)
	s.Unlock()
	return nil
}

func TestScore(t *testing.T) {
	e, ok := Score(0, 1, 2, 3, 3)
	require.True(t, ok)
	assert.Equal(t, 0.5, e.Jaccard)
	assert.InDelta(t, 2.0/3.0, e.ContainmentIJ, 1e-12)

	// 100 hashes fully inside 1000
	e, ok = Score(0, 1, 100, 100, 1000)
	require.True(t, ok)
	assert.Equal(t, 1.0, e.ContainmentIJ)
	assert.Equal(t, 0.1, e.ContainmentJI)
	assert.Equal(t, 0.1, e.Jaccard)

	_, ok = Score(0, 1, 0, 3, 3)
	assert.False(t, ok)
	_, ok = Score(0, 1, 2, 0, 3)
	assert.False(t, ok)
	_, ok = Score(0, 1, 2, 3, 0)
	assert.False(t, ok)
	_, ok = Score(0, 1, 4, 2, 2)
	assert.False(t, ok)
}

func TestPolicy(t *testing.T) {
	p, err := NewPolicy("containment", 0.5)
	require.NoError(t, err)
	assert.True(t, p.Accept(Edge{ContainmentIJ: 0.5, Jaccard: 0.1}))
	assert.False(t, p.Accept(Edge{ContainmentIJ: 0.4, ContainmentJI: 0.9, Jaccard: 0.9}))

	p, err = NewPolicy("jaccard", 0.5)
	require.NoError(t, err)
	assert.True(t, p.Accept(Edge{Jaccard: 0.6}))
	assert.False(t, p.Accept(Edge{ContainmentIJ: 1, Jaccard: 0.1}))

	_, err = NewPolicy("cosine", 0.5)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	_, err = NewPolicy("jaccard", 1.1)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func countBlock(t *testing.T, store *sketch.Store, block plan.Block) *intersect.Matrix {
	t.Helper()
	e := &intersect.Engine{Workers: 2}
	m, _, err := e.Count(context.Background(), store, block)
	require.NoError(t, err)
	return m
}

func TestFilter(t *testing.T) {
	store := sketch.FromHashes([][]uint64{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {}, {1, 2, 3}})
	m := countBlock(t, store, plan.Block{Start: 0, End: store.Len()})
	policy, err := NewPolicy("containment", 0.5)
	require.NoError(t, err)

	sinks := []Sink{&memSink{}, &memSink{}, &memSink{}}
	n, err := Filter(context.Background(), m, store.Sizes(), policy, sinks)
	require.NoError(t, err)

	got := map[[2]int]Edge{}
	for _, s := range sinks {
		for _, e := range s.(*memSink).edges {
			got[[2]int{e.I, e.J}] = e
			assert.NotEqual(t, e.I, e.J)
			assert.GreaterOrEqual(t, e.ContainmentIJ, 0.5)
			for _, v := range []float64{e.Jaccard, e.ContainmentIJ, e.ContainmentJI} {
				assert.True(t, v >= 0 && v <= 1)
			}
		}
	}
	assert.Equal(t, int64(len(got)), n)

	// 0-1 share {2,3}, 0-2 share only {3} (1/3 < 0.5)
	assert.Equal(t, 0.5, got[[2]int{0, 1}].Jaccard)
	assert.Equal(t, 0.5, got[[2]int{1, 0}].Jaccard)
	assert.NotContains(t, got, [2]int{0, 2})
	assert.Equal(t, 1.0, got[[2]int{0, 4}].Jaccard)

	// the empty sketch appears nowhere
	for key := range got {
		assert.NotEqual(t, 3, key[0])
		assert.NotEqual(t, 3, key[1])
	}
}

func TestFilterJaccardPolicy(t *testing.T) {
	store := sketch.FromHashes([][]uint64{{1}, {1, 2, 3, 4, 5, 6, 7, 8, 9, 10}})
	m := countBlock(t, store, plan.Block{Start: 0, End: 2})
	sink := &memSink{}

	policy, _ := NewPolicy("jaccard", 0.5)
	n, err := Filter(context.Background(), m, store.Sizes(), policy, []Sink{sink})
	require.NoError(t, err)
	assert.Zero(t, n)

	policy, _ = NewPolicy("containment", 0.5)
	n, err = Filter(context.Background(), m, store.Sizes(), policy, []Sink{sink})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, sink.edges[0].I)
}

func TestFilterSinkFailure(t *testing.T) {
	store := sketch.FromHashes([][]uint64{{1, 2}, {1, 2}})
	m := countBlock(t, store, plan.Block{Start: 0, End: 2})
	policy, _ := NewPolicy("containment", 0.01)
	_, err := Filter(context.Background(), m, store.Sizes(), policy, []Sink{&memSink{fail: true}})
	assert.Error(t, err)

	_, err = Filter(context.Background(), m, []int{2}, policy, []Sink{&memSink{}})
	assert.Error(t, err)
	_, err = Filter(context.Background(), m, store.Sizes(), policy, nil)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
