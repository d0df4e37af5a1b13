package telemetry

import (
	"encoding/json"
	"math"
)

// GPS is the position section of a sample.
type GPS struct {
	Timestamp int64    `json:"timestamp,omitempty" db:"gps_ts"`
	Longitude float64  `json:"longitude" db:"longitude"`
	Latitude  float64  `json:"latitude" db:"latitude"`
	Speed     float64  `json:"speed" db:"speed"`
	Odometer  float64  `json:"odometer" db:"odometer"`
	Angle     *float64 `json:"angle,omitempty" db:"angle"`
}

// IO is the discrete-input section of a sample.
type IO struct {
	Ignition        *int     `json:"ignition,omitempty" db:"ignition"`
	Speed           *float64 `json:"speed,omitempty" db:"io_speed"`
	FuelLevel       *float64 `json:"fuel_level,omitempty" db:"fuel_level"`
	FuelCounter     *float64 `json:"fuel_counter,omitempty" db:"fuel_counter"`
	DriverCardID    *string  `json:"driver_card_id,omitempty" db:"driver_card_id"`
	DriverWorkState *int     `json:"driver_work_state,omitempty" db:"driver_work_state"`
}

// Sample is one timestamped GPS+IO telemetry reading. Samples are immutable
// once cached; the store only appends or overwrites whole records.
type Sample struct {
	Timestamp int64 `json:"timestamp" db:"ts"`
	GPS       GPS   `json:"gps"`
	IO        IO    `json:"io"`
}

// RawSample is the loose upstream record shape before sanitization. The gps
// and io sections stay untyped so that unknown fields can be dropped by the
// allow list rather than silently round-tripped.
type RawSample struct {
	ID        string         `json:"id,omitempty"`
	Timestamp json.Number    `json:"timestamp,omitempty"`
	Time      string         `json:"time,omitempty"`
	GPS       map[string]any `json:"gps,omitempty"`
	IO        map[string]any `json:"io,omitempty"`
}

// Speed returns the best available speed reading in km/h, preferring the GPS
// section over the IO section.
func (s Sample) Speed() float64 {
	if s.GPS.Speed > 0 {
		return s.GPS.Speed
	}
	if s.IO.Speed != nil {
		return *s.IO.Speed
	}
	return s.GPS.Speed
}

// Ignition returns the ignition input, treating a missing value as off.
func (s Sample) Ignition() int {
	if s.IO.Ignition == nil {
		return 0
	}
	return *s.IO.Ignition
}

// HasValidFix reports whether the sample carries a usable GPS position.
// A (0,0) fix is treated as a cold-start placeholder, not a real position.
func (s Sample) HasValidFix() bool {
	lat, lng := s.GPS.Latitude, s.GPS.Longitude
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
