package history

import (
	"context"
	"log"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

type fuelCall struct {
	done   chan struct{}
	events []telemetry.FuelEvent
}

// GetFuelEvents resolves fuel events for a window through a memoized fetch:
// a result cache keyed (device, from, to) returns immediately on hit, an
// in-flight map coalesces concurrent identical misses, and a fetch error
// yields an empty list. Fuel events are advisory; callers treat "no events"
// and "fetch failed" identically.
func (c *Coordinator) GetFuelEvents(ctx context.Context, deviceID string, from, to int64) []telemetry.FuelEvent {
	from = telemetry.NormalizeEpochMS(from)
	to = telemetry.NormalizeEpochMS(to)
	if deviceID == "" || from <= 0 || to <= 0 || from >= to {
		return nil
	}
	key := requestKey(deviceID, from, to)

	c.fuelMu.Lock()
	if events, ok := c.fuelResults[key]; ok {
		c.fuelMu.Unlock()
		return events
	}
	if call, ok := c.fuelInflight[key]; ok {
		c.fuelMu.Unlock()
		select {
		case <-call.done:
			return call.events
		case <-ctx.Done():
			return nil
		}
	}
	call := &fuelCall{done: make(chan struct{})}
	c.fuelInflight[key] = call
	c.fuelMu.Unlock()

	raw, err := c.client.FetchFuelEvents(ctx, deviceID, from, to)
	if err != nil {
		log.Printf("history: fuel events fetch failed for %s: %v", deviceID, err)
	}
	var events []telemetry.FuelEvent
	for _, r := range raw {
		if e, ok := telemetry.NormalizeFuelEvent(r); ok {
			events = append(events, e)
		}
	}
	call.events = events

	c.fuelMu.Lock()
	delete(c.fuelInflight, key)
	if err == nil {
		// Failures stay uncached so a later request can retry.
		c.fuelResults[key] = events
	}
	c.fuelMu.Unlock()
	close(call.done)
	return events
}
