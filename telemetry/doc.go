// Package telemetry defines the wire and storage models for vehicle
// telemetry samples and discrete fuel/driver events.
//
// This package handles:
// - The Sample model (GPS + IO sections, epoch-millisecond timestamps)
// - Timestamp resolution from heterogeneous upstream records
// - Allow-list sanitization of raw payloads into the stable minimal schema
// - Fuel event normalization
//
// All timestamps in this package are epoch milliseconds. Upstream values
// below 10^10 are treated as epoch seconds and scaled by 1000.
package telemetry
