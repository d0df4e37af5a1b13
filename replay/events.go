package replay

import (
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// FilterEvents drops recurring events that fall inside their type's minimum
// recurrence window. Events are considered in chronological order; each
// accepted event updates its (owner, type) bucket. Types without a
// configured window, and events without a resolvable timestamp, always pass.
// The output preserves the input's relative order.
func FilterEvents(events []telemetry.Event, windows map[string]time.Duration) []telemetry.Event {
	if len(events) == 0 || len(windows) == 0 {
		return events
	}
	order := make([]int, 0, len(events))
	for i := range events {
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return events[order[a]].Timestamp < events[order[b]].Timestamp
	})

	accepted := make([]bool, len(events))
	lastAccepted := map[string]int64{}
	for _, i := range order {
		e := events[i]
		window, configured := windows[e.Type]
		if !configured || e.Timestamp <= 0 {
			accepted[i] = true
			continue
		}
		bucket := e.OwnerID
		if bucket == "" {
			bucket = "global"
		}
		bucket += "|" + e.Type
		if last, seen := lastAccepted[bucket]; seen && e.Timestamp-last < window.Milliseconds() {
			continue
		}
		accepted[i] = true
		lastAccepted[bucket] = e.Timestamp
	}

	out := make([]telemetry.Event, 0, len(events))
	for i, e := range events {
		if accepted[i] {
			out = append(out, e)
		}
	}
	return out
}

// DedupWindows converts the configured per-type minute values to durations.
func DedupWindows(minutes map[string]int) map[string]time.Duration {
	out := make(map[string]time.Duration, len(minutes))
	for t, m := range minutes {
		if m > 0 {
			out[t] = time.Duration(m) * time.Minute
		}
	}
	return out
}
