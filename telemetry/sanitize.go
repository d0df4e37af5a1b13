package telemetry

import (
	"encoding/json"
	"math"
	"strconv"
)

// The allow lists pin the cached schema: any upstream field not named here
// is dropped, regardless of payload drift on the provider side.
var (
	gpsFields = map[string]bool{
		"timestamp": true,
		"longitude": true,
		"latitude":  true,
		"speed":     true,
		"odometer":  true,
		"angle":     true,
	}
	ioFields = map[string]bool{
		"ignition":          true,
		"speed":             true,
		"fuel_level":        true,
		"fuel_counter":      true,
		"driver_card_id":    true,
		"driver_work_state": true,
	}
)

// Sanitize converts a raw upstream record into the stable Sample schema.
// Fields outside the allow lists are dropped. Records without a resolvable
// finite timestamp are rejected (ok = false).
func Sanitize(r RawSample) (Sample, bool) {
	ts, err := ResolveTimestamp(r)
	if err != nil || ts <= 0 {
		return Sample{}, false
	}
	s := Sample{Timestamp: ts}
	for k, v := range r.GPS {
		if !gpsFields[k] {
			continue
		}
		switch k {
		case "timestamp":
			if n, ok := toFloat(v); ok {
				s.GPS.Timestamp = NormalizeEpochMS(int64(n))
			}
		case "longitude":
			if n, ok := toFloat(v); ok {
				s.GPS.Longitude = n
			}
		case "latitude":
			if n, ok := toFloat(v); ok {
				s.GPS.Latitude = n
			}
		case "speed":
			if n, ok := toFloat(v); ok {
				s.GPS.Speed = n
			}
		case "odometer":
			if n, ok := toFloat(v); ok {
				s.GPS.Odometer = n
			}
		case "angle":
			if n, ok := toFloat(v); ok {
				s.GPS.Angle = &n
			}
		}
	}
	for k, v := range r.IO {
		if !ioFields[k] {
			continue
		}
		switch k {
		case "ignition":
			if n, ok := toFloat(v); ok {
				ign := int(n)
				s.IO.Ignition = &ign
			}
		case "speed":
			if n, ok := toFloat(v); ok {
				s.IO.Speed = &n
			}
		case "fuel_level":
			if n, ok := toFloat(v); ok {
				s.IO.FuelLevel = &n
			}
		case "fuel_counter":
			if n, ok := toFloat(v); ok {
				s.IO.FuelCounter = &n
			}
		case "driver_card_id":
			if str, ok := v.(string); ok && str != "" {
				s.IO.DriverCardID = &str
			}
		case "driver_work_state":
			if n, ok := toFloat(v); ok {
				ws := int(n)
				s.IO.DriverWorkState = &ws
			}
		}
	}
	return s, true
}

// SanitizeAll sanitizes a batch, discarding records that fail.
func SanitizeAll(raw []RawSample) []Sample {
	out := make([]Sample, 0, len(raw))
	for _, r := range raw {
		if s, ok := Sanitize(r); ok {
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
