package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/will-rowe/derep/src/config"
)

func TestMemoryBudget(t *testing.T) {
	// 10 entities, 4 byte counts: 40 bytes per row
	p, err := New(10, Options{MemoryBytes: 130})
	require.NoError(t, err)
	assert.Equal(t, 3, p.BlockSize)
	assert.Equal(t, 4, p.NumPasses)
	assert.Equal(t, uint64(120), p.MatrixBytes())

	blocks := p.Passes()
	require.Len(t, blocks, 4)
	assert.Equal(t, Block{ID: 0, Start: 0, End: 3}, blocks[0])
	assert.Equal(t, Block{ID: 3, Start: 9, End: 10}, blocks[3])
	assert.Equal(t, 1, blocks[3].Rows())
}

func TestBudgetTooSmall(t *testing.T) {
	_, err := New(10, Options{MemoryBytes: 39})
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestBlockAndPasses(t *testing.T) {
	p, err := New(10, Options{BlockSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, p.NumPasses)

	p, err = New(10, Options{Passes: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, p.BlockSize)
	assert.Equal(t, 3, p.NumPasses)

	p, err = New(10, Options{BlockSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 10, p.BlockSize)
	assert.Equal(t, 1, p.NumPasses)

	p, err = New(10, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumPasses)

	_, err = New(10, Options{BlockSize: -1})
	assert.ErrorIs(t, err, config.ErrConfiguration)
	_, err = New(10, Options{Passes: -2})
	assert.ErrorIs(t, err, config.ErrConfiguration)
	_, err = New(0, Options{})
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestPassesCoverAllRows(t *testing.T) {
	for _, block := range []int{1, 2, 3, 7, 16, 17} {
		p, err := New(17, Options{BlockSize: block})
		require.NoError(t, err)
		next := 0
		for _, b := range p.Passes() {
			assert.Equal(t, next, b.Start)
			assert.Greater(t, b.End, b.Start)
			next = b.End
		}
		assert.Equal(t, 17, next)
		assert.Equal(t, p.NumPasses, p.IndexRebuilds())
	}
}
