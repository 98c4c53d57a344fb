package intersect

import "github.com/will-rowe/derep/src/plan"

// Matrix holds the intersection counts for one pass: a row for every entity in the
// pass's block and a column for every entity in the store. It belongs to the pass that
// allocated it and is dropped when the pass ends.
type Matrix struct {
	block plan.Block
	cols  int
	cells []uint32
}

// NewMatrix allocates a zeroed matrix for a block
func NewMatrix(block plan.Block, cols int) *Matrix {
	return &Matrix{
		block: block,
		cols:  cols,
		cells: make([]uint32, block.Rows()*cols),
	}
}

// Block returns the rows covered by the matrix
func (m *Matrix) Block() plan.Block {
	return m.block
}

// Cols returns the number of columns (entities in the store)
func (m *Matrix) Cols() int {
	return m.cols
}

// Row returns the counts for entity r (a global id inside the block)
func (m *Matrix) Row(r int) []uint32 {
	offset := (r - m.block.Start) * m.cols
	return m.cells[offset : offset+m.cols]
}

// At returns the intersection count of entities r and c
func (m *Matrix) At(r, c int) uint32 {
	return m.cells[(r-m.block.Start)*m.cols+c]
}

// Bytes returns the size of the count storage
func (m *Matrix) Bytes() int {
	return len(m.cells) * plan.CellBytes
}
