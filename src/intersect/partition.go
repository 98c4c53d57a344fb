package intersect

// Range is a contiguous, half-open id range owned by one worker
type Range struct {
	Worker int
	Start  int
	End    int
}

// Partition splits [lo, hi) into at most workers disjoint contiguous ranges of near equal size.
// Empty ranges are not returned, so fewer ranges than workers come back for small inputs.
func Partition(lo, hi, workers int) []Range {
	n := hi - lo
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	workers = min(workers, n)
	ranges := make([]Range, 0, workers)
	chunk, extra := n/workers, n%workers
	start := lo
	for w := 0; w < workers; w++ {
		end := start + chunk
		if w < extra {
			end++
		}
		ranges = append(ranges, Range{Worker: w, Start: start, End: end})
		start = end
	}
	return ranges
}
