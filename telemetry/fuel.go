package telemetry

import (
	"encoding/json"
	"strings"
)

// FuelEvent is a server-detected fuel level change. Events are read-only on
// this side: fetched, cached per query window, never mutated.
type FuelEvent struct {
	EventID   string   `json:"event_id"`
	Start     int64    `json:"start"`
	End       int64    `json:"end"`
	Liters    *float64 `json:"liters,omitempty"`
	Delta     *float64 `json:"delta,omitempty"`
	Type      string   `json:"type"`
	StartFuel *float64 `json:"start_fuel,omitempty"`
	EndFuel   *float64 `json:"end_fuel,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// RawFuelEvent is the upstream fuel event shape before normalization.
type RawFuelEvent struct {
	EventID   string      `json:"eventId"`
	Start     json.Number `json:"start"`
	End       json.Number `json:"end"`
	Liters    *float64    `json:"liters"`
	Delta     *float64    `json:"delta"`
	Type      string      `json:"type"`
	StartFuel *float64    `json:"startFuel"`
	EndFuel   *float64    `json:"endFuel"`
	Lat       *float64    `json:"lat"`
	Lng       *float64    `json:"lng"`
}

// Event is a discrete occurrence shown on the replay timeline: a fuel event
// or a driver-compliance event. OwnerID scopes dedup buckets; an empty owner
// falls into the shared global bucket.
type Event struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id,omitempty"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	Fuel *FuelEvent `json:"fuel,omitempty"`
}

// NormalizeFuelType collapses upstream type spellings into the fixed
// vocabulary used by the dashboard: refuel, drain, theft or unknown.
func NormalizeFuelType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(t, "theft"):
		return "theft"
	case strings.Contains(t, "drain"), strings.Contains(t, "leak"):
		return "drain"
	case strings.Contains(t, "refuel"), strings.Contains(t, "fill"), strings.Contains(t, "fuel_up"):
		return "refuel"
	case t == "":
		return "unknown"
	default:
		return "unknown"
	}
}

// NormalizeFuelEvent converts a raw fuel event, scaling its bounds to
// epoch milliseconds. Events without an id or start time are rejected.
func NormalizeFuelEvent(r RawFuelEvent) (FuelEvent, bool) {
	if r.EventID == "" {
		return FuelEvent{}, false
	}
	start, ok := epochFromNumber(string(r.Start))
	if !ok {
		return FuelEvent{}, false
	}
	end, _ := epochFromNumber(string(r.End))
	return FuelEvent{
		EventID:   r.EventID,
		Start:     start,
		End:       end,
		Liters:    r.Liters,
		Delta:     r.Delta,
		Type:      NormalizeFuelType(r.Type),
		StartFuel: r.StartFuel,
		EndFuel:   r.EndFuel,
		Lat:       r.Lat,
		Lng:       r.Lng,
	}, true
}

// EventFromFuel wraps a fuel event as a timeline event keyed for dedup.
func EventFromFuel(f FuelEvent, ownerID string) Event {
	return Event{
		ID:        f.EventID,
		OwnerID:   ownerID,
		Type:      f.Type,
		Timestamp: f.Start,
		Fuel:      &f,
	}
}
