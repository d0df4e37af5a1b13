package store

import (
	"context"
	"strconv"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// Direction selects range traversal order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// DuplicatePolicy controls what a batch insert does on a timestamp collision.
type DuplicatePolicy int

const (
	// UpdateOnDuplicate overwrites the stored record (default).
	UpdateOnDuplicate DuplicatePolicy = iota
	// SkipOnDuplicate keeps the first-written record.
	SkipOnDuplicate
)

// GetOptions narrows a range query.
type GetOptions struct {
	Direction Direction
	// Limit truncates the result; 0 means unlimited.
	Limit int
	// Filters are exact-match predicates on "ignition" and "driver_card_id".
	Filters map[string]string
}

// AddOptions controls batch insert behavior.
type AddOptions struct {
	OnDuplicate DuplicatePolicy
}

// AddResult reports the outcome of a batch insert. Errors holds one entry
// per rejected record; the batch itself always completes.
type AddResult struct {
	Inserted int
	Updated  int
	Errors   []error
}

// Stats is a point-in-time summary of cache contents.
type Stats struct {
	Devices int `json:"devices"`
	Samples int `json:"samples"`
}

// Store is the local telemetry cache contract.
type Store interface {
	// EnsureDevice guarantees the device's keyed bucket exists. Safe to
	// call concurrently for the same device.
	EnsureDevice(ctx context.Context, deviceID string) error
	// Get returns samples with from <= ts <= to in the requested order.
	// An unknown device yields an empty result, not an error.
	Get(ctx context.Context, deviceID string, from, to int64, opts GetOptions) ([]telemetry.Sample, error)
	// AddMany sanitizes and upserts a batch of raw records.
	AddMany(ctx context.Context, deviceID string, records []telemetry.RawSample, opts AddOptions) (AddResult, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Covers reports whether the sample set spans the window using the
// conservative extrema test: non-empty and min(ts) <= from && max(ts) >= to.
// Internal gaps are not detected; callers accept that as a known trade-off.
func Covers(samples []telemetry.Sample, from, to int64) bool {
	if len(samples) == 0 {
		return false
	}
	min, max := samples[0].Timestamp, samples[0].Timestamp
	for _, s := range samples[1:] {
		if s.Timestamp < min {
			min = s.Timestamp
		}
		if s.Timestamp > max {
			max = s.Timestamp
		}
	}
	return min <= from && max >= to
}

// matchFilters applies the exact-match predicates supported by Get.
func matchFilters(s telemetry.Sample, filters map[string]string) bool {
	for k, want := range filters {
		switch k {
		case "ignition":
			if strconv.Itoa(s.Ignition()) != want {
				return false
			}
		case "driver_card_id":
			if s.IO.DriverCardID == nil || *s.IO.DriverCardID != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}
