// Package store implements the local telemetry cache.
//
// The cache is a per-device, timestamp-ordered collection of sanitized
// samples with idempotent batch upserts and inclusive range queries. Two
// backends share one contract:
//
// - LocalStore: an in-memory keyed structure (device id -> ascending
// samples) durably snapshotted to disk with encoding/gob, carrying a schema
// version that is migrated on load.
// - SQLStore: a Postgres table keyed (device_id, ts) via sqlx, with ordered
// versioned migrations.
//
// Absence of cache is a normal state: reads of unknown devices return empty
// results, never errors. Write failures are per-record and accumulated;
// a batch never aborts.
package store
