// Package index builds the transient inverted index (hash -> posting list) used by a pass.
package index

import (
	"fmt"

	"github.com/will-rowe/derep/src/sketch"
)

// PostingList is the ascending list of entity ids that share a hash value
type PostingList []uint32

// InvertedIndex maps each hash value to the entities whose sketch contains it.
// It is built once per pass over an id range and is read-only once built, so any
// number of workers can query it concurrently.
type InvertedIndex struct {
	lo, hi   int
	postings map[uint64]PostingList
	pruned   bool
}

// Stats describes the shape of an index
type Stats struct {
	Range       [2]int // the indexed id range [lo, hi)
	Hashes      int    // distinct hash values held
	Occurrences int    // total posting list entries
	MaxPosting  int    // longest posting list
	Pruned      bool
}

// Build is the constructor, it indexes the entities with ids in [lo, hi)
func Build(store *sketch.Store, lo, hi int) (*InvertedIndex, error) {
	if lo < 0 || hi > store.Len() || lo > hi {
		return nil, fmt.Errorf("index range [%d, %d) is outside the store (%d sketches)", lo, hi, store.Len())
	}

	// size the map from the number of hash occurrences in the range
	occurrences := 0
	for id := lo; id < hi; id++ {
		occurrences += store.Size(id)
	}
	idx := &InvertedIndex{
		lo:       lo,
		hi:       hi,
		postings: make(map[uint64]PostingList, occurrences/2+1),
	}

	// ids are visited in ascending order, so every posting list is sorted
	for id := lo; id < hi; id++ {
		for _, h := range store.Hashes(id) {
			idx.postings[h] = append(idx.postings[h], uint32(id))
		}
	}
	return idx, nil
}

// Prune removes every posting list with a single member and returns how many were dropped.
// A singleton hash cannot contribute to the intersection of two different entities.
func (idx *InvertedIndex) Prune() int {
	removed := 0
	for h, list := range idx.postings {
		if len(list) == 1 {
			delete(idx.postings, h)
			removed++
		}
	}
	idx.pruned = true
	return removed
}

// Lookup returns the posting list for a hash value, nil if absent or pruned
func (idx *InvertedIndex) Lookup(h uint64) PostingList {
	return idx.postings[h]
}

// Len returns the number of distinct hash values in the index
func (idx *InvertedIndex) Len() int {
	return len(idx.postings)
}

// Range returns the indexed id range
func (idx *InvertedIndex) Range() (int, int) {
	return idx.lo, idx.hi
}

// Stats returns summary information for logging
func (idx *InvertedIndex) Stats() Stats {
	stats := Stats{
		Range:  [2]int{idx.lo, idx.hi},
		Hashes: len(idx.postings),
		Pruned: idx.pruned,
	}
	for _, list := range idx.postings {
		stats.Occurrences += len(list)
		stats.MaxPosting = max(stats.MaxPosting, len(list))
	}
	return stats
}
