package replay

import (
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

func eventAt(id, owner, typ string, ts int64) telemetry.Event {
	return telemetry.Event{ID: id, OwnerID: owner, Type: typ, Timestamp: ts}
}

func eventIDs(events []telemetry.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestFilterEventsRecurrenceWindow(t *testing.T) {
	base := int64(1712345600000)
	min := int64(60 * 1000)
	windows := map[string]time.Duration{"rest": 180 * time.Minute}

	events := []telemetry.Event{
		eventAt("a", "driver-1", "rest", base),
		eventAt("b", "driver-1", "rest", base+60*min),  // inside the window
		eventAt("c", "driver-1", "rest", base+200*min), // outside again
	}
	kept := FilterEvents(events, windows)
	if got := eventIDs(kept); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("expected [a c], got %v", got)
	}
}

func TestFilterEventsSeparateOwners(t *testing.T) {
	base := int64(1712345600000)
	min := int64(60 * 1000)
	windows := map[string]time.Duration{"rest": 180 * time.Minute}

	events := []telemetry.Event{
		eventAt("a", "driver-1", "rest", base),
		eventAt("b", "driver-2", "rest", base+60*min),
	}
	kept := FilterEvents(events, windows)
	if len(kept) != 2 {
		t.Errorf("expected both owners kept, got %v", eventIDs(kept))
	}
}

func TestFilterEventsGlobalBucket(t *testing.T) {
	base := int64(1712345600000)
	min := int64(60 * 1000)
	windows := map[string]time.Duration{"theft": 30 * time.Minute}

	// Ownerless events of the same type share one bucket.
	events := []telemetry.Event{
		eventAt("a", "", "theft", base),
		eventAt("b", "", "theft", base+10*min),
	}
	kept := FilterEvents(events, windows)
	if got := eventIDs(kept); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected [a], got %v", got)
	}
}

func TestFilterEventsUnconfiguredTypePasses(t *testing.T) {
	base := int64(1712345600000)
	windows := map[string]time.Duration{"rest": 180 * time.Minute}

	events := []telemetry.Event{
		eventAt("a", "", "refuel", base),
		eventAt("b", "", "refuel", base+1000),
		eventAt("c", "", "refuel", base+2000),
	}
	kept := FilterEvents(events, windows)
	if len(kept) != 3 {
		t.Errorf("expected all unconfigured-type events, got %v", eventIDs(kept))
	}
}

func TestFilterEventsPreservesInputOrder(t *testing.T) {
	base := int64(1712345600000)
	min := int64(60 * 1000)
	windows := map[string]time.Duration{"rest": 180 * time.Minute}

	// Newest-first input: the window is evaluated chronologically, but the
	// survivors keep their original positions.
	events := []telemetry.Event{
		eventAt("c", "driver-1", "rest", base+200*min),
		eventAt("b", "driver-1", "rest", base+60*min),
		eventAt("a", "driver-1", "rest", base),
	}
	kept := FilterEvents(events, windows)
	if got := eventIDs(kept); len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Errorf("expected [c a], got %v", got)
	}
}

func TestDedupWindows(t *testing.T) {
	windows := DedupWindows(map[string]int{"rest": 180, "theft": 30, "broken": 0})
	if windows["rest"] != 180*time.Minute || windows["theft"] != 30*time.Minute {
		t.Errorf("unexpected windows: %v", windows)
	}
	if _, ok := windows["broken"]; ok {
		t.Error("expected non-positive minutes to be dropped")
	}
}
