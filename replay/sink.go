package replay

import (
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// Frame is one render instruction emitted per applied scrub position.
// The rendering layer consumes it; nothing in this package draws.
type Frame struct {
	Index        int                `json:"index"`
	Timestamp    int64              `json:"timestamp"`
	Position     telemetry.GPS      `json:"position"`
	Heading      float64            `json:"heading"`
	State        string             `json:"state"`
	Path         []telemetry.Sample `json:"path"`
	ActiveEvents []telemetry.Event  `json:"active_events"`
}

// Sink receives render frames.
type Sink interface {
	Render(Frame)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Frame)

func (f SinkFunc) Render(fr Frame) { f(fr) }

// Scheduler defers render work to a later tick. The default runs the work
// asynchronously; tests substitute a manual scheduler to drain ticks
// deterministically.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

func asyncScheduler() Scheduler {
	return SchedulerFunc(func(fn func()) { go fn() })
}
