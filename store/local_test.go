package store

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

func rawAt(ts int64) telemetry.RawSample {
	return telemetry.RawSample{
		Timestamp: json.Number(strconv.FormatInt(ts, 10)),
		GPS:       map[string]any{"longitude": 13.4, "latitude": 52.5, "speed": 50.0},
		IO:        map[string]any{"ignition": 1.0},
	}
}

func TestAddManyUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	if err := s.EnsureDevice(ctx, "123456789012345"); err != nil {
		t.Fatal(err)
	}

	res, err := s.AddMany(ctx, "123456789012345", []telemetry.RawSample{rawAt(1712345678000)}, AddOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Updated != 0 {
		t.Fatalf("expected 1 insert, got %+v", res)
	}

	// Same timestamp, new speed: update policy overwrites.
	updated := rawAt(1712345678000)
	updated.GPS["speed"] = 80.0
	res, err = s.AddMany(ctx, "123456789012345", []telemetry.RawSample{updated}, AddOptions{OnDuplicate: UpdateOnDuplicate})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Updated != 1 {
		t.Fatalf("expected 1 update, got %+v", res)
	}
	rows, _ := s.Get(ctx, "123456789012345", 0, 9999999999999, GetOptions{})
	if len(rows) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(rows))
	}
	if rows[0].GPS.Speed != 80.0 {
		t.Errorf("expected overwritten speed 80, got %g", rows[0].GPS.Speed)
	}

	// Skip policy preserves the stored value.
	skipped := rawAt(1712345678000)
	skipped.GPS["speed"] = 10.0
	res, err = s.AddMany(ctx, "123456789012345", []telemetry.RawSample{skipped}, AddOptions{OnDuplicate: SkipOnDuplicate})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Updated != 0 {
		t.Fatalf("expected no writes under skip, got %+v", res)
	}
	rows, _ = s.Get(ctx, "123456789012345", 0, 9999999999999, GetOptions{})
	if rows[0].GPS.Speed != 80.0 {
		t.Errorf("expected preserved speed 80, got %g", rows[0].GPS.Speed)
	}
}

func TestAddManyRejectsUnstamped(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	res, err := s.AddMany(ctx, "dev", []telemetry.RawSample{
		rawAt(1712345678000),
		{ID: "no-time"},
		rawAt(1712345679000),
	}, AddOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 {
		t.Errorf("expected 2 inserts, got %d", res.Inserted)
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected 1 per-record error, got %d", len(res.Errors))
	}
}

func TestGetRange(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	base := int64(1712345678000)
	var batch []telemetry.RawSample
	for i := int64(0); i < 10; i++ {
		batch = append(batch, rawAt(base+i*1000))
	}
	if _, err := s.AddMany(ctx, "dev", batch, AddOptions{}); err != nil {
		t.Fatal(err)
	}

	// Inclusive bounds.
	rows, err := s.Get(ctx, "dev", base+2000, base+5000, GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].Timestamp != base+2000 || rows[3].Timestamp != base+5000 {
		t.Errorf("unexpected bounds: %d..%d", rows[0].Timestamp, rows[3].Timestamp)
	}

	// Descending traversal with a limit.
	rows, err = s.Get(ctx, "dev", base, base+9000, GetOptions{Direction: Descending, Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Timestamp != base+9000 || rows[2].Timestamp != base+7000 {
		t.Errorf("unexpected descending order: %d, %d", rows[0].Timestamp, rows[2].Timestamp)
	}

	// Unknown device is a normal empty state, not a fault.
	rows, err = s.Get(ctx, "missing", base, base+9000, GetOptions{})
	if err != nil {
		t.Fatalf("unexpected error for unknown device: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty result, got %d rows", len(rows))
	}
}

func TestGetFilters(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	base := int64(1712345678000)
	on := rawAt(base)
	off := rawAt(base + 1000)
	off.IO["ignition"] = 0.0
	if _, err := s.AddMany(ctx, "dev", []telemetry.RawSample{on, off}, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	rows, err := s.Get(ctx, "dev", base, base+1000, GetOptions{Filters: map[string]string{"ignition": "0"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Timestamp != base+1000 {
		t.Fatalf("expected only the ignition-off row, got %d rows", len(rows))
	}
}

func TestCovers(t *testing.T) {
	sampleAt := func(ts int64) telemetry.Sample { return telemetry.Sample{Timestamp: ts} }
	tests := []struct {
		name     string
		samples  []telemetry.Sample
		from, to int64
		expected bool
	}{
		{name: "empty never covers", samples: nil, from: 0, to: 10, expected: false},
		{
			name:     "exact span covers",
			samples:  []telemetry.Sample{sampleAt(100), sampleAt(150), sampleAt(200)},
			from:     100, to: 200,
			expected: true,
		},
		{
			name:     "short at the far end",
			samples:  []telemetry.Sample{sampleAt(100), sampleAt(150)},
			from:     100, to: 200,
			expected: false,
		},
		{
			name:     "short at the near end",
			samples:  []telemetry.Sample{sampleAt(150), sampleAt(200)},
			from:     100, to: 200,
			expected: false,
		},
		{
			// The extrema test is deliberately blind to interior gaps.
			name:     "interior gap still covers",
			samples:  []telemetry.Sample{sampleAt(100), sampleAt(110), sampleAt(190), sampleAt(200)},
			from:     100, to: 200,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Covers(tt.samples, tt.from, tt.to); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "samples.data-cache")

	s := Open(path)
	if _, err := s.AddMany(ctx, "dev", []telemetry.RawSample{rawAt(1712345678000)}, AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := Open(path)
	defer reopened.Close()
	rows, err := reopened.Get(ctx, "dev", 0, 9999999999999, GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Timestamp != 1712345678000 {
		t.Fatalf("expected persisted sample after reopen, got %+v", rows)
	}
}

func TestSnapshotConcurrentWritesAllDurable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "samples.data-cache")
	base := int64(1712345600000)

	s := Open(path)
	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var batch []telemetry.RawSample
			for i := 0; i < perWriter; i++ {
				batch = append(batch, rawAt(base+int64(w*perWriter+i)*1000))
			}
			if _, err := s.AddMany(ctx, "dev", batch, AddOptions{}); err != nil {
				t.Error(err)
			}
		}(w)
	}
	wg.Wait()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Every record whose AddMany returned must be in the durable snapshot.
	reopened := Open(path)
	defer reopened.Close()
	rows, err := reopened.Get(ctx, "dev", 0, 9999999999999, GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != writers*perWriter {
		t.Fatalf("expected %d durable records, got %d", writers*perWriter, len(rows))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.data-cache")
	a := Open(path)
	defer a.Close()
	b := Open(path)
	if a != b {
		t.Error("expected Open to return the same handle for the same path")
	}
}

func TestSnapshotMigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.data-cache")

	// Write a v1-layout snapshot by hand: flat record list, no device map.
	old := snapshot{
		Metadata: snapshotMetadata{SchemaVersion: 1},
		Records: []flatRecord{
			{DeviceID: "dev", Sample: telemetry.Sample{Timestamp: 200}},
			{DeviceID: "dev", Sample: telemetry.Sample{Timestamp: 100}},
			{DeviceID: "dev", Sample: telemetry.Sample{Timestamp: 200}}, // duplicate ts
			{DeviceID: "", Sample: telemetry.Sample{Timestamp: 300}},    // dropped
		},
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := gob.NewEncoder(file).Encode(&old); err != nil {
		t.Fatal(err)
	}
	file.Close()

	devices, err := loadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	bucket := devices["dev"]
	if len(bucket) != 2 {
		t.Fatalf("expected 2 migrated samples, got %d", len(bucket))
	}
	if bucket[0].Timestamp != 100 || bucket[1].Timestamp != 200 {
		t.Errorf("expected ascending migrated bucket, got %d, %d", bucket[0].Timestamp, bucket[1].Timestamp)
	}
}
