package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// LocalStore keeps samples in memory keyed by device id, each bucket sorted
// ascending by timestamp, and snapshots the whole structure to disk. It is
// the durable session cache used when no database is configured.
type LocalStore struct {
	mu      sync.RWMutex
	path    string
	devices map[string][]telemetry.Sample
	dirty   bool

	// saveMu serializes snapshot writes. The state copy is taken while it
	// is held, so a later rename always carries a later state.
	saveMu sync.Mutex
}

var (
	openMu     sync.Mutex
	openStores = map[string]*LocalStore{}
)

// Open establishes the store handle for a snapshot path. Opening the same
// path twice returns the same handle: the store lifecycle is process-wide.
// A missing or unreadable snapshot yields an empty store, not an error.
func Open(path string) *LocalStore {
	openMu.Lock()
	defer openMu.Unlock()
	if s, ok := openStores[path]; ok {
		return s
	}
	s := &LocalStore{path: path, devices: map[string][]telemetry.Sample{}}
	if path != "" {
		if devices, err := loadSnapshot(path); err != nil {
			log.Printf("store: snapshot load failed, starting empty: %v", err)
		} else {
			s.devices = devices
		}
	}
	openStores[path] = s
	return s
}

// NewLocalStore returns a standalone in-memory store with no snapshot file.
func NewLocalStore() *LocalStore {
	return &LocalStore{devices: map[string][]telemetry.Sample{}}
}

// EnsureDevice creates the device bucket if missing. Racing callers are
// serialized on the store mutex.
func (s *LocalStore) EnsureDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("store: empty device id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[deviceID]; !ok {
		s.devices[deviceID] = []telemetry.Sample{}
	}
	return nil
}

// Get returns samples with from <= ts <= to for the device, traversed in the
// requested direction and truncated at opts.Limit.
func (s *LocalStore) Get(ctx context.Context, deviceID string, from, to int64, opts GetOptions) ([]telemetry.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.devices[deviceID]
	if !ok || len(bucket) == 0 {
		return nil, nil
	}
	lo := sort.Search(len(bucket), func(i int) bool { return bucket[i].Timestamp >= from })
	hi := sort.Search(len(bucket), func(i int) bool { return bucket[i].Timestamp > to })
	if lo >= hi {
		return nil, nil
	}
	out := make([]telemetry.Sample, 0, hi-lo)
	if opts.Direction == Descending {
		for i := hi - 1; i >= lo; i-- {
			if !matchFilters(bucket[i], opts.Filters) {
				continue
			}
			out = append(out, bucket[i])
			if opts.Limit > 0 && len(out) >= opts.Limit {
				break
			}
		}
	} else {
		for i := lo; i < hi; i++ {
			if !matchFilters(bucket[i], opts.Filters) {
				continue
			}
			out = append(out, bucket[i])
			if opts.Limit > 0 && len(out) >= opts.Limit {
				break
			}
		}
	}
	return out, nil
}

// AddMany upserts a batch. Each record's timestamp is resolved during
// sanitization; records without one are rejected and counted, never fatal.
func (s *LocalStore) AddMany(ctx context.Context, deviceID string, records []telemetry.RawSample, opts AddOptions) (AddResult, error) {
	var res AddResult
	if deviceID == "" {
		return res, fmt.Errorf("store: empty device id")
	}
	s.mu.Lock()
	bucket := s.devices[deviceID]
	for _, r := range records {
		sample, ok := telemetry.Sanitize(r)
		if !ok {
			res.Errors = append(res.Errors, fmt.Errorf("record %q: %w", r.ID, telemetry.ErrNoTimestamp))
			continue
		}
		i := sort.Search(len(bucket), func(i int) bool { return bucket[i].Timestamp >= sample.Timestamp })
		if i < len(bucket) && bucket[i].Timestamp == sample.Timestamp {
			if opts.OnDuplicate == SkipOnDuplicate {
				continue
			}
			bucket[i] = sample
			res.Updated++
			continue
		}
		bucket = append(bucket, telemetry.Sample{})
		copy(bucket[i+1:], bucket[i:])
		bucket[i] = sample
		res.Inserted++
	}
	s.devices[deviceID] = bucket
	if res.Inserted > 0 || res.Updated > 0 {
		s.dirty = true
	}
	s.mu.Unlock()

	s.save()
	return res, nil
}

// save writes the current state to the snapshot file if anything changed
// since the last save. Saves are serialized; each one copies the state
// after taking its turn, so concurrent AddMany calls can never rename an
// older copy over a newer one.
func (s *LocalStore) save() {
	if s.path == "" {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.dirty = false
	s.mu.Unlock()

	if err := saveSnapshot(s.path, snap); err != nil {
		log.Printf("store: snapshot save failed: %v", err)
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
}

// Stats summarizes cache contents for the health endpoint.
func (s *LocalStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Devices: len(s.devices)}
	for _, bucket := range s.devices {
		st.Samples += len(bucket)
	}
	return st, nil
}

// Close drops the handle from the open-store registry. Snapshot state is
// already on disk; there is nothing else to tear down.
func (s *LocalStore) Close() error {
	openMu.Lock()
	defer openMu.Unlock()
	for path, open := range openStores {
		if open == s {
			delete(openStores, path)
		}
	}
	return nil
}

// snapshotLocked copies the device map for serialization outside the lock.
func (s *LocalStore) snapshotLocked() map[string][]telemetry.Sample {
	copied := make(map[string][]telemetry.Sample, len(s.devices))
	for id, bucket := range s.devices {
		b := make([]telemetry.Sample, len(bucket))
		copy(b, bucket)
		copied[id] = b
	}
	return copied
}
