package replay

import (
	"fmt"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// Order of a loaded history array. The entry path decides it: cache reads
// arrive oldest-first, network merges newest-first.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// DetectOrder derives the array order from the first and last timestamps.
func DetectOrder(history []telemetry.Sample) Order {
	if len(history) >= 2 && history[0].Timestamp > history[len(history)-1].Timestamp {
		return NewestFirst
	}
	return OldestFirst
}

// filterKey encodes (direction, index); the trim is recomputed only when the
// key changes, so bursts resolving to the same index do no geometry work.
func filterKey(order Order, k int) string {
	if order == NewestFirst {
		return fmt.Sprintf("desc:%d", k)
	}
	return fmt.Sprintf("asc:%d", k)
}

// TrimBounds returns the half-open index range [lo,hi) of the path segments
// behind a scrub position k in an n-sample history. The comparison flips
// with the array order: oldest-first keeps indices below k, newest-first
// keeps indices at or above the mirrored bound.
func TrimBounds(n, k int, order Order) (lo, hi int) {
	if n <= 0 {
		return 0, 0
	}
	if k < 0 {
		k = 0
	}
	if k > n-1 {
		k = n - 1
	}
	if order == NewestFirst {
		return k, n
	}
	return 0, k
}

// trimPath materializes the behind-the-scrub geometry.
func trimPath(history []telemetry.Sample, k int, order Order) []telemetry.Sample {
	lo, hi := TrimBounds(len(history), k, order)
	return history[lo:hi]
}
