// Package sketch holds the immutable collection of hash sketches that derep compares.
//
// A sketch is the ordered set of 64-bit hash values (e.g. FracMinHash "mins" from a
// sourmash signature) representing one entity. Entities are identified by a dense id
// in [0, N) that is assigned at load time and never changes.
package sketch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrInput is returned when a sketch cannot be loaded and the input policy is to abort
var ErrInput = errors.New("sketch input error")

// InputPolicy decides what happens when a sketch cannot be read
type InputPolicy string

const (
	// SkipBadInput loads an unreadable sketch as an empty sketch and carries on
	SkipBadInput InputPolicy = "skip"

	// AbortOnBadInput fails the whole load
	AbortOnBadInput InputPolicy = "abort"
)

// Sketch is a single entity's hash set
type Sketch struct {
	ID     int      `msgpack:"id"`
	Name   string   `msgpack:"name"`
	Hashes []uint64 `msgpack:"hashes"`
}

// Size returns the sketch cardinality
func (s *Sketch) Size() int {
	return len(s.Hashes)
}

// Store is the loaded collection of sketches, indexed by entity id
type Store struct {
	sketches []*Sketch
	empty    *roaring.Bitmap
	failed   int
}

// newStore normalises the sketches and records the empty ones
func newStore(sketches []*Sketch, failed int) *Store {
	store := &Store{
		sketches: sketches,
		empty:    roaring.New(),
		failed:   failed,
	}
	for id, s := range sketches {
		s.ID = id
		s.Hashes = normalise(s.Hashes)
		if len(s.Hashes) == 0 {
			store.empty.Add(uint32(id))
		}
	}
	return store
}

// FromHashes builds a store directly from in-memory hash lists, ids follow slice order
func FromHashes(hashes [][]uint64) *Store {
	sketches := make([]*Sketch, len(hashes))
	for i, h := range hashes {
		sketches[i] = &Sketch{
			Name:   fmt.Sprintf("sketch-%d", i),
			Hashes: append([]uint64(nil), h...),
		}
	}
	return newStore(sketches, 0)
}

// FromSketches builds a store from sketches that were created elsewhere, ids are reassigned to slice order
func FromSketches(sketches []*Sketch) *Store {
	return newStore(sketches, 0)
}

// Len returns the number of entities
func (store *Store) Len() int {
	return len(store.sketches)
}

// Get returns the sketch for an entity id
func (store *Store) Get(id int) *Sketch {
	return store.sketches[id]
}

// Hashes returns the hash values of an entity
func (store *Store) Hashes(id int) []uint64 {
	return store.sketches[id].Hashes
}

// Size returns the sketch size of an entity
func (store *Store) Size(id int) int {
	return len(store.sketches[id].Hashes)
}

// Sizes returns the sketch size of every entity, indexed by id
func (store *Store) Sizes() []int {
	sizes := make([]int, len(store.sketches))
	for i, s := range store.sketches {
		sizes[i] = len(s.Hashes)
	}
	return sizes
}

// Names returns the name of every entity, indexed by id
func (store *Store) Names() []string {
	names := make([]string, len(store.sketches))
	for i, s := range store.sketches {
		names[i] = s.Name
	}
	return names
}

// Empty returns a copy of the set of entity ids with an empty sketch
func (store *Store) Empty() *roaring.Bitmap {
	return store.empty.Clone()
}

// NumEmpty returns the number of empty sketches
func (store *Store) NumEmpty() int {
	return int(store.empty.GetCardinality())
}

// Failed returns how many sketches could not be read and were loaded as empty
func (store *Store) Failed() int {
	return store.failed
}

// TotalHashes returns the number of hash occurrences across all sketches
func (store *Store) TotalHashes() int {
	total := 0
	for _, s := range store.sketches {
		total += len(s.Hashes)
	}
	return total
}

// normalise sorts the hashes and drops duplicates
func normalise(hashes []uint64) []uint64 {
	if len(hashes) == 0 {
		return nil
	}
	if !slices.IsSorted(hashes) {
		slices.Sort(hashes)
	}
	return slices.Compact(hashes)
}
