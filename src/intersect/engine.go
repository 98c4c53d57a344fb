// Package intersect counts pairwise sketch intersections for one pass by co-occurrence in posting lists.
//
// Workers never share a matrix cell: with the full index each worker owns a contiguous
// run of the block's rows, with the block index each worker owns a contiguous run of the
// querying entities (columns). Either way the counts need no locks.
package intersect

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/will-rowe/derep/src/config"
	"github.com/will-rowe/derep/src/index"
	"github.com/will-rowe/derep/src/plan"
	"github.com/will-rowe/derep/src/sketch"
)

// Strategy selects how the pass's inverted index is built
type Strategy int

const (
	// StrategyFull indexes every entity each pass and the block's rows query it
	StrategyFull Strategy = iota

	// StrategyBlock indexes only the block and every entity queries it
	StrategyBlock
)

// ParseStrategy converts a config value to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case config.StrategyFull:
		return StrategyFull, nil
	case config.StrategyBlock:
		return StrategyBlock, nil
	}
	return 0, fmt.Errorf("%w: unknown index strategy %q", config.ErrConfiguration, s)
}

func (s Strategy) String() string {
	if s == StrategyBlock {
		return config.StrategyBlock
	}
	return config.StrategyFull
}

// Stats records what a pass did
type Stats struct {
	Index      index.Stats
	Pruned     int           // singleton posting lists removed
	EmptySkips int64         // empty sketches skipped while scanning
	Increments int64         // matrix increments performed
	IndexTime  time.Duration // time spent building the index
	CountTime  time.Duration // time spent counting
}

// Engine counts intersections for a block of entities
type Engine struct {
	Workers  int
	Strategy Strategy
	Logger   zerolog.Logger
}

// Count builds the pass's index and fills a fresh matrix for the block.
// The first worker error (or context cancellation) fails the pass and no matrix is returned.
func (e *Engine) Count(ctx context.Context, store *sketch.Store, block plan.Block) (*Matrix, Stats, error) {
	stats := Stats{}
	if e.Workers < 1 {
		return nil, stats, fmt.Errorf("%w: need at least one worker (got %d)", config.ErrConfiguration, e.Workers)
	}
	if block.Start < 0 || block.End > store.Len() || block.Start >= block.End {
		return nil, stats, fmt.Errorf("block [%d, %d) is outside the store (%d sketches)", block.Start, block.End, store.Len())
	}

	// build the index for this pass
	indexStart := time.Now()
	lo, hi := 0, store.Len()
	if e.Strategy == StrategyBlock {
		lo, hi = block.Start, block.End
	}
	idx, err := index.Build(store, lo, hi)
	if err != nil {
		return nil, stats, err
	}

	// singletons can only be dropped when the whole store is indexed, a block singleton may still match an outside entity
	if e.Strategy == StrategyFull {
		stats.Pruned = idx.Prune()
	}
	stats.Index = idx.Stats()
	stats.IndexTime = time.Since(indexStart)
	e.Logger.Debug().Int("pass", block.ID).Int("hashes", stats.Index.Hashes).Int("pruned", stats.Pruned).Dur("took", stats.IndexTime).Msg("built inverted index")

	// count
	countStart := time.Now()
	m := NewMatrix(block, store.Len())
	var emptySkips, increments atomic.Int64
	var ranges []Range
	if e.Strategy == StrategyFull {
		ranges = Partition(block.Start, block.End, e.Workers)
	} else {
		ranges = Partition(0, store.Len(), e.Workers)
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, owned := range ranges {
		owned := owned
		g.Go(func() error {
			var done, empty int64
			var err error
			if e.Strategy == StrategyFull {
				done, empty, err = countRows(ctx, store, idx, m, owned)
			} else {
				done, empty, err = countColumns(ctx, store, idx, m, owned)
			}
			increments.Add(done)
			emptySkips.Add(empty)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, fmt.Errorf("pass %d failed: %w", block.ID, err)
	}
	stats.EmptySkips = emptySkips.Load()
	stats.Increments = increments.Load()
	stats.CountTime = time.Since(countStart)
	return m, stats, nil
}

// countRows scans the hashes of the owned rows against a full index, writing only to those rows
func countRows(ctx context.Context, store *sketch.Store, idx *index.InvertedIndex, m *Matrix, owned Range) (int64, int64, error) {
	var done, empty int64
	for r := owned.Start; r < owned.End; r++ {
		if err := ctx.Err(); err != nil {
			return done, empty, err
		}
		hashes := store.Hashes(r)
		if len(hashes) == 0 {
			empty++
			continue
		}
		row := m.Row(r)
		for _, h := range hashes {
			list := idx.Lookup(h)
			for _, c := range list {
				row[c]++
			}
			done += int64(len(list))
		}
	}
	return done, empty, nil
}

// countColumns scans the hashes of the owned query entities against a block index, writing only to those columns
func countColumns(ctx context.Context, store *sketch.Store, idx *index.InvertedIndex, m *Matrix, owned Range) (int64, int64, error) {
	var done, empty int64
	start, cols := m.block.Start, m.cols
	for c := owned.Start; c < owned.End; c++ {
		if err := ctx.Err(); err != nil {
			return done, empty, err
		}
		hashes := store.Hashes(c)
		if len(hashes) == 0 {
			empty++
			continue
		}
		for _, h := range hashes {
			list := idx.Lookup(h)
			for _, r := range list {
				m.cells[(int(r)-start)*cols+c]++
			}
			done += int64(len(list))
		}
	}
	return done, empty, nil
}
