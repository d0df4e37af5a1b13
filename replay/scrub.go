package replay

import (
	"math"
)

// ScrubInput is the tagged union of accepted scrub input shapes. The UI
// layer historically delivered bare numbers, array-wrapped values and
// event-detail objects; each becomes one variant normalized at the boundary.
type ScrubInput interface {
	scrubValue() (float64, bool)
}

// ScrubValue is a bare normalized-or-percent scrub position.
type ScrubValue float64

func (v ScrubValue) scrubValue() (float64, bool) { return float64(v), true }

// ScrubVector is an array-wrapped scrub position; the first element counts.
type ScrubVector []float64

func (v ScrubVector) scrubValue() (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// ScrubEvent is an event-detail-wrapped scrub position.
type ScrubEvent struct {
	Detail float64
}

func (v ScrubEvent) scrubValue() (float64, bool) { return v.Detail, true }

// NormalizeScrub resolves an input to a playback position in [0,1].
// Magnitudes above 1 are treated as a 0-100 scale and divided by 100.
func NormalizeScrub(in ScrubInput) (float64, bool) {
	if in == nil {
		return 0, false
	}
	v, ok := in.scrubValue()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if math.Abs(v) > 1 {
		v = v / 100
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, true
}

// indexFor maps a normalized position to a history index:
// floor(v * (N-1)), clamped to [0, N-1].
func indexFor(v float64, n int) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Floor(v * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}
