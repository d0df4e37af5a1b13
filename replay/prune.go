package replay

import (
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// Vehicle state classes derived from (speed, ignition).
const (
	StateMoving     = "moving"
	StateStoppedOff = "stopped-off"
	StateStoppedOn  = "stopped-on"
)

// Classify maps a sample to its vehicle state class.
func Classify(s telemetry.Sample, speedThreshold float64) string {
	if s.Speed() > speedThreshold {
		return StateMoving
	}
	if s.Ignition() == 0 {
		return StateStoppedOff
	}
	return StateStoppedOn
}

// PruneInactive collapses long stationary stretches in an ascending history.
// A run of consecutive samples classified stopped-off whose span exceeds
// minDuration and which holds more than two points is reduced to its first
// and last sample; shorter or sparser runs stay untouched, preserving the
// visual continuity of genuine stops.
func PruneInactive(samples []telemetry.Sample, speedThreshold float64, minDurationMS int64) []telemetry.Sample {
	if len(samples) <= 2 {
		return samples
	}
	out := make([]telemetry.Sample, 0, len(samples))
	runStart := -1
	flush := func(end int) {
		// [runStart, end) is a maximal inactive run.
		n := end - runStart
		span := samples[end-1].Timestamp - samples[runStart].Timestamp
		if n > 2 && span > minDurationMS {
			out = append(out, samples[runStart], samples[end-1])
		} else {
			out = append(out, samples[runStart:end]...)
		}
		runStart = -1
	}
	for i, s := range samples {
		inactive := Classify(s, speedThreshold) == StateStoppedOff
		if inactive {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			flush(i)
		}
		out = append(out, s)
	}
	if runStart >= 0 {
		flush(len(samples))
	}
	return out
}
