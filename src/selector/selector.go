// Package selector picks a non-redundant set of representative entities from containment edges.
//
// An entity is redundant when it is contained (at or above the threshold) in a strictly larger
// entity. Entities of equal size never make each other redundant.
package selector

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/will-rowe/derep/src/similarity"
)

// Adjacency holds, for each entity, the entities it is contained in
type Adjacency struct {
	containedIn []*roaring.Bitmap
	edges       int64
}

// NewAdjacency returns an empty adjacency for n entities
func NewAdjacency(n int) *Adjacency {
	return &Adjacency{containedIn: make([]*roaring.Bitmap, n)}
}

// Add records that e.I is contained in e.J if the containment reaches the threshold.
// It reports whether the edge was kept.
func (a *Adjacency) Add(e similarity.Edge, threshold float64) (bool, error) {
	if e.I < 0 || e.I >= len(a.containedIn) || e.J < 0 || e.J >= len(a.containedIn) {
		return false, fmt.Errorf("edge (%d, %d) is outside the %d entities", e.I, e.J, len(a.containedIn))
	}
	if e.I == e.J || e.ContainmentIJ < threshold {
		return false, nil
	}
	if a.containedIn[e.I] == nil {
		a.containedIn[e.I] = roaring.New()
	}
	if a.containedIn[e.I].CheckedAdd(uint32(e.J)) {
		a.edges++
	}
	return true, nil
}

// ContainedIn returns the entities i is contained in, ascending
func (a *Adjacency) ContainedIn(i int) []uint32 {
	if i < 0 || i >= len(a.containedIn) || a.containedIn[i] == nil {
		return nil
	}
	return a.containedIn[i].ToArray()
}

// Len returns the number of entities
func (a *Adjacency) Len() int {
	return len(a.containedIn)
}

// Edges returns the number of distinct containment relations held
func (a *Adjacency) Edges() int64 {
	return a.edges
}

// Result is the outcome of a selection
type Result struct {
	Order         []int           // entities in processing order (ascending size, ties by id)
	Selected      []int           // representatives in processing order
	Redundant     *roaring.Bitmap // entities contained in a larger entity
	RepresentedBy []int           // the largest entity containing each redundant entity, -1 for representatives
}

// Select runs the greedy dereplication over the sizes and the adjacency
func Select(sizes []int, adj *Adjacency) (*Result, error) {
	if adj.Len() != len(sizes) {
		return nil, fmt.Errorf("adjacency covers %d entities but %d sizes were given", adj.Len(), len(sizes))
	}
	res := &Result{
		Order:         make([]int, len(sizes)),
		Selected:      make([]int, 0, len(sizes)),
		Redundant:     roaring.New(),
		RepresentedBy: make([]int, len(sizes)),
	}
	for i := range res.Order {
		res.Order[i] = i
	}
	sort.SliceStable(res.Order, func(a, b int) bool {
		return sizes[res.Order[a]] < sizes[res.Order[b]]
	})
	for _, i := range res.Order {
		best := -1
		if set := adj.containedIn[i]; set != nil {
			it := set.Iterator()
			for it.HasNext() {
				j := int(it.Next())
				if sizes[j] <= sizes[i] {
					continue
				}
				if best == -1 || sizes[j] > sizes[best] {
					best = j
				}
			}
		}
		res.RepresentedBy[i] = best
		if best != -1 {
			res.Redundant.Add(uint32(i))
			continue
		}
		res.Selected = append(res.Selected, i)
	}
	return res, nil
}

// WriteList writes one identifier per line, using the names when given
func WriteList(w io.Writer, ids []int, names []string) error {
	buf := bufio.NewWriter(w)
	for _, id := range ids {
		var err error
		if names != nil && id < len(names) && names[id] != "" {
			_, err = fmt.Fprintln(buf, names[id])
		} else {
			_, err = fmt.Fprintln(buf, id)
		}
		if err != nil {
			return err
		}
	}
	return buf.Flush()
}
