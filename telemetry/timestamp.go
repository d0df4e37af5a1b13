package telemetry

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNoTimestamp is returned when a record carries no resolvable timestamp.
// Such records are rejected individually; they never abort a batch.
var ErrNoTimestamp = errors.New("telemetry: record has no resolvable timestamp")

// secondsCutoff separates epoch-second from epoch-millisecond values.
// Anything below it is interpreted as seconds and scaled by 1000.
const secondsCutoff = int64(1e10)

// NormalizeEpochMS converts an epoch value of unknown precision to
// milliseconds. Non-positive values are passed through unchanged.
func NormalizeEpochMS(v int64) int64 {
	if v > 0 && v < secondsCutoff {
		return v * 1000
	}
	return v
}

// ResolveTimestamp extracts the epoch-millisecond timestamp of a raw record.
// Sources are tried in priority order:
//  1. the explicit numeric timestamp field
//  2. a parseable time string (RFC3339 or bare epoch digits)
//  3. a nested GPS or IO timestamp
//  4. a leading monotonic millisecond component of the record ID
func ResolveTimestamp(r RawSample) (int64, error) {
	if ts, ok := epochFromNumber(string(r.Timestamp)); ok {
		return ts, nil
	}
	if ts, ok := epochFromString(r.Time); ok {
		return ts, nil
	}
	if ts, ok := epochFromSection(r.GPS); ok {
		return ts, nil
	}
	if ts, ok := epochFromSection(r.IO); ok {
		return ts, nil
	}
	if ts, ok := epochFromID(r.ID); ok {
		return ts, nil
	}
	return 0, ErrNoTimestamp
}

func epochFromNumber(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
		return NormalizeEpochMS(v), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return NormalizeEpochMS(int64(f)), true
	}
	return 0, false
}

func epochFromString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC().UnixMilli(), true
	}
	return epochFromNumber(s)
}

func epochFromSection(section map[string]any) (int64, bool) {
	if section == nil {
		return 0, false
	}
	v, ok := section["timestamp"]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return NormalizeEpochMS(int64(t)), true
		}
	case int64:
		if t > 0 {
			return NormalizeEpochMS(t), true
		}
	case string:
		return epochFromString(t)
	}
	return 0, false
}

// epochFromID recognizes identifiers like "1712345678901-a3f" where the
// leading digit run is an epoch-millisecond allocation counter. Short digit
// runs are sequence numbers, not times, and are rejected.
func epochFromID(id string) (int64, bool) {
	id = strings.TrimSpace(id)
	i := 0
	for i < len(id) && id[i] >= '0' && id[i] <= '9' {
		i++
	}
	if i < 10 {
		return 0, false
	}
	v, err := strconv.ParseInt(id[:i], 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return NormalizeEpochMS(v), true
}
