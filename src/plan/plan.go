// Package plan decides how many passes a comparison takes and which entities each pass owns.
//
// Each pass holds one dense block of intersection counts (block rows x N columns), so the
// block size is bounded by the memory budget. More passes lower the peak memory but every
// pass rebuilds its inverted index, so the smallest workable number of passes is used.
package plan

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/will-rowe/derep/src/config"
)

// CellBytes is the width of one intersection count (uint32)
const CellBytes = 4

// Options sets the block size directly, via a pass count or via a memory budget (checked in that order)
type Options struct {
	BlockSize   int    // rows per pass
	Passes      int    // number of passes
	MemoryBytes uint64 // memory available to one intersection block
}

// Block is the contiguous row range [Start, End) owned by one pass
type Block struct {
	ID    int
	Start int
	End   int
}

// Rows returns the number of entities owned by the block
func (b Block) Rows() int {
	return b.End - b.Start
}

// Plan is the pass layout for a run
type Plan struct {
	N         int `msgpack:"n"`
	BlockSize int `msgpack:"block_size"`
	NumPasses int `msgpack:"num_passes"`
}

// New is the constructor, it returns a configuration error if a block can't hold a single row
func New(n int, opts Options) (*Plan, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: no sketches to compare", config.ErrConfiguration)
	}
	var blockSize int
	switch {
	case opts.BlockSize != 0:
		blockSize = opts.BlockSize
	case opts.Passes != 0:
		if opts.Passes < 0 {
			return nil, fmt.Errorf("%w: number of passes must be positive (got %d)", config.ErrConfiguration, opts.Passes)
		}
		blockSize = (n + opts.Passes - 1) / opts.Passes
	case opts.MemoryBytes != 0:
		blockSize = int(opts.MemoryBytes / (CellBytes * uint64(n)))
		if blockSize < 1 {
			return nil, fmt.Errorf("%w: memory budget of %v can't hold one row of %d counts (need %v)", config.ErrConfiguration, humanize.IBytes(opts.MemoryBytes), n, humanize.IBytes(CellBytes*uint64(n)))
		}
	default:
		blockSize = n
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("%w: block size must be at least 1 (got %d)", config.ErrConfiguration, blockSize)
	}
	blockSize = min(blockSize, n)
	return &Plan{
		N:         n,
		BlockSize: blockSize,
		NumPasses: (n + blockSize - 1) / blockSize,
	}, nil
}

// Passes returns the blocks in pass order
func (p *Plan) Passes() []Block {
	blocks := make([]Block, 0, p.NumPasses)
	for i := 0; i < p.NumPasses; i++ {
		start := i * p.BlockSize
		blocks = append(blocks, Block{ID: i, Start: start, End: min(start+p.BlockSize, p.N)})
	}
	return blocks
}

// MatrixBytes returns the peak size of one pass's intersection block
func (p *Plan) MatrixBytes() uint64 {
	return uint64(p.BlockSize) * uint64(p.N) * CellBytes
}

// IndexRebuilds returns how many inverted indexes the run will build (one per pass)
func (p *Plan) IndexRebuilds() int {
	return p.NumPasses
}

// String summarises the plan for logging
func (p *Plan) String() string {
	return fmt.Sprintf("%d passes of up to %d rows (%v per block)", p.NumPasses, p.BlockSize, humanize.IBytes(p.MatrixBytes()))
}
