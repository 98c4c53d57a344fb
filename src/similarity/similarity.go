// Package similarity turns intersection counts into thresholded Jaccard / containment edges.
package similarity

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/will-rowe/derep/src/config"
	"github.com/will-rowe/derep/src/intersect"
)

// Edge is the similarity of entity I to entity J. Jaccard is symmetric, containment is not:
// ContainmentIJ is the fraction of I's hashes found in J.
type Edge struct {
	I             int
	J             int
	Jaccard       float64
	ContainmentIJ float64
	ContainmentJI float64
}

// Kind is the value a threshold is applied to
type Kind int

const (
	// Containment thresholds ContainmentIJ
	Containment Kind = iota

	// Jaccard thresholds the Jaccard similarity
	Jaccard
)

// Policy is the single thresholding rule used for a whole run
type Policy struct {
	Kind      Kind
	Threshold float64
}

// NewPolicy builds a policy from the config values
func NewPolicy(kind string, threshold float64) (Policy, error) {
	if threshold < 0 || threshold > 1 {
		return Policy{}, fmt.Errorf("%w: threshold must be in [0, 1] (got %v)", config.ErrConfiguration, threshold)
	}
	switch kind {
	case config.PolicyContainment:
		return Policy{Kind: Containment, Threshold: threshold}, nil
	case config.PolicyJaccard:
		return Policy{Kind: Jaccard, Threshold: threshold}, nil
	}
	return Policy{}, fmt.Errorf("%w: unknown threshold policy %q", config.ErrConfiguration, kind)
}

// Accept reports whether an edge passes the threshold
func (p Policy) Accept(e Edge) bool {
	if p.Kind == Jaccard {
		return e.Jaccard >= p.Threshold
	}
	return e.ContainmentIJ >= p.Threshold
}

func (p Policy) String() string {
	if p.Kind == Jaccard {
		return fmt.Sprintf("jaccard >= %v", p.Threshold)
	}
	return fmt.Sprintf("containment >= %v", p.Threshold)
}

// Score computes the similarity of i to j from their intersection and sizes.
// It returns false when there is nothing to report or a ratio is undefined.
func Score(i, j int, inter uint32, sizeI, sizeJ int) (Edge, bool) {
	if inter == 0 || sizeI == 0 || sizeJ == 0 {
		return Edge{}, false
	}
	union := sizeI + sizeJ - int(inter)
	if union <= 0 {
		return Edge{}, false
	}
	n := float64(inter)
	return Edge{
		I:             i,
		J:             j,
		Jaccard:       n / float64(union),
		ContainmentIJ: n / float64(sizeI),
		ContainmentJI: n / float64(sizeJ),
	}, true
}

// Sink receives the edges from one worker
type Sink interface {
	Write(Edge) error
}

// Filter scores every off-diagonal cell of the matrix and writes the accepted edges.
// The block's rows are split across the sinks, one worker per sink, so no sink is shared.
// It returns the number of edges written.
func Filter(ctx context.Context, m *intersect.Matrix, sizes []int, policy Policy, sinks []Sink) (int64, error) {
	if len(sinks) == 0 {
		return 0, fmt.Errorf("%w: no edge sinks supplied", config.ErrConfiguration)
	}
	if len(sizes) != m.Cols() {
		return 0, fmt.Errorf("have %d sizes for a matrix of %d columns", len(sizes), m.Cols())
	}
	block := m.Block()
	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, owned := range intersect.Partition(block.Start, block.End, len(sinks)) {
		owned := owned
		sink := sinks[owned.Worker]
		g.Go(func() error {
			var count int64
			defer func() { written.Add(count) }()
			for r := owned.Start; r < owned.End; r++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if sizes[r] == 0 {
					continue
				}
				for c, inter := range m.Row(r) {
					if c == r {
						continue
					}
					edge, ok := Score(r, c, inter, sizes[r], sizes[c])
					if !ok || !policy.Accept(edge) {
						continue
					}
					if err := sink.Write(edge); err != nil {
						return err
					}
					count++
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return written.Load(), err
}
