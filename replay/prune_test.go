package replay

import (
	"testing"

	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

func intPtr(v int) *int { return &v }

func movingAt(ts int64) telemetry.Sample {
	return telemetry.Sample{
		Timestamp: ts,
		GPS:       telemetry.GPS{Longitude: 13.4, Latitude: 52.5, Speed: 40},
		IO:        telemetry.IO{Ignition: intPtr(1)},
	}
}

func stoppedOffAt(ts int64) telemetry.Sample {
	return telemetry.Sample{
		Timestamp: ts,
		GPS:       telemetry.GPS{Longitude: 13.4, Latitude: 52.5},
		IO:        telemetry.IO{Ignition: intPtr(0)},
	}
}

func stoppedOnAt(ts int64) telemetry.Sample {
	return telemetry.Sample{
		Timestamp: ts,
		GPS:       telemetry.GPS{Longitude: 13.4, Latitude: 52.5},
		IO:        telemetry.IO{Ignition: intPtr(1)},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		sample   telemetry.Sample
		expected string
	}{
		{name: "above threshold", sample: movingAt(0), expected: StateMoving},
		{name: "parked", sample: stoppedOffAt(0), expected: StateStoppedOff},
		{name: "idling", sample: stoppedOnAt(0), expected: StateStoppedOn},
		{name: "missing ignition treated as off", sample: telemetry.Sample{}, expected: StateStoppedOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.sample, 3); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestPruneInactiveCollapsesLongStops(t *testing.T) {
	const minStop = int64(10 * 60 * 1000)
	base := int64(1712345600000)
	min := int64(60 * 1000)

	// drive, 50 minutes parked in 5 points, drive again
	history := []telemetry.Sample{
		movingAt(base),
		stoppedOffAt(base + 1*min),
		stoppedOffAt(base + 13*min),
		stoppedOffAt(base + 26*min),
		stoppedOffAt(base + 39*min),
		stoppedOffAt(base + 51*min),
		movingAt(base + 52*min),
	}

	pruned := PruneInactive(history, 3, minStop)
	if len(pruned) != 4 {
		t.Fatalf("expected 4 samples after pruning, got %d", len(pruned))
	}
	want := []int64{base, base + 1*min, base + 51*min, base + 52*min}
	for i, ts := range want {
		if pruned[i].Timestamp != ts {
			t.Errorf("sample %d: expected ts %d, got %d", i, ts, pruned[i].Timestamp)
		}
	}
}

func TestPruneInactiveKeepsShortOrSparseRuns(t *testing.T) {
	const minStop = int64(10 * 60 * 1000)
	base := int64(1712345600000)
	min := int64(60 * 1000)

	tests := []struct {
		name    string
		history []telemetry.Sample
	}{
		{
			// Two points never collapse regardless of span.
			name: "two-point run",
			history: []telemetry.Sample{
				movingAt(base),
				stoppedOffAt(base + 1*min),
				stoppedOffAt(base + 30*min),
				movingAt(base + 31*min),
			},
		},
		{
			// Three points within the minimum duration stay.
			name: "short run",
			history: []telemetry.Sample{
				movingAt(base),
				stoppedOffAt(base + 1*min),
				stoppedOffAt(base + 4*min),
				stoppedOffAt(base + 8*min),
				movingAt(base + 9*min),
			},
		},
		{
			// Ignition-on idling is not inactive.
			name: "idling run",
			history: []telemetry.Sample{
				movingAt(base),
				stoppedOnAt(base + 1*min),
				stoppedOnAt(base + 20*min),
				stoppedOnAt(base + 40*min),
				movingAt(base + 41*min),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruned := PruneInactive(tt.history, 3, minStop)
			if len(pruned) != len(tt.history) {
				t.Errorf("expected %d samples untouched, got %d", len(tt.history), len(pruned))
			}
		})
	}
}

func TestPruneInactiveTrailingRun(t *testing.T) {
	const minStop = int64(10 * 60 * 1000)
	base := int64(1712345600000)
	min := int64(60 * 1000)

	history := []telemetry.Sample{
		movingAt(base),
		stoppedOffAt(base + 1*min),
		stoppedOffAt(base + 20*min),
		stoppedOffAt(base + 45*min),
	}
	pruned := PruneInactive(history, 3, minStop)
	if len(pruned) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(pruned))
	}
	if pruned[1].Timestamp != base+1*min || pruned[2].Timestamp != base+45*min {
		t.Errorf("expected run endpoints, got %d, %d", pruned[1].Timestamp, pruned[2].Timestamp)
	}
}
