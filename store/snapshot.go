package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// schemaVersion is advanced only on structural change of the snapshot.
// v1 stored a flat record list; v2 keys samples by device id.
const schemaVersion = 2

type snapshotMetadata struct {
	SchemaVersion int
	SavedAt       time.Time
}

type snapshot struct {
	Metadata snapshotMetadata
	// Devices is the v2 layout: device id -> ascending samples.
	Devices map[string][]telemetry.Sample
	// Records is the retired v1 layout, kept so old snapshots still decode.
	Records []flatRecord
}

type flatRecord struct {
	DeviceID string
	Sample   telemetry.Sample
}

// loadSnapshot reads a snapshot from disk, migrating older schema versions
// in place. A missing file yields an empty store.
func loadSnapshot(path string) (map[string][]telemetry.Sample, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string][]telemetry.Sample{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Metadata.SchemaVersion < schemaVersion {
		migrateSnapshot(&snap)
	}
	if snap.Devices == nil {
		snap.Devices = map[string][]telemetry.Sample{}
	}
	return snap.Devices, nil
}

// migrateSnapshot upgrades older layouts to the current keyed structure.
// The caller holds the store open exclusively during load, so migration is
// a critical section by construction.
func migrateSnapshot(snap *snapshot) {
	if snap.Devices == nil {
		snap.Devices = map[string][]telemetry.Sample{}
	}
	for _, rec := range snap.Records {
		if rec.DeviceID == "" || rec.Sample.Timestamp <= 0 {
			continue
		}
		snap.Devices[rec.DeviceID] = append(snap.Devices[rec.DeviceID], rec.Sample)
	}
	for id := range snap.Devices {
		bucket := snap.Devices[id]
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Timestamp < bucket[j].Timestamp })
		snap.Devices[id] = dedupeAscending(bucket)
	}
	snap.Records = nil
	snap.Metadata.SchemaVersion = schemaVersion
}

// dedupeAscending keeps the last record per timestamp in a sorted bucket.
func dedupeAscending(bucket []telemetry.Sample) []telemetry.Sample {
	out := bucket[:0]
	for _, s := range bucket {
		if len(out) > 0 && out[len(out)-1].Timestamp == s.Timestamp {
			out[len(out)-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

// saveSnapshot writes atomically: a uniquely named temp file in the target
// directory first, then rename.
func saveSnapshot(path string, devices map[string][]telemetry.Sample) error {
	snap := snapshot{
		Metadata: snapshotMetadata{SchemaVersion: schemaVersion, SavedAt: time.Now()},
		Devices:  devices,
	}
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := file.Name()
	if err := gob.NewEncoder(file).Encode(&snap); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}
