package replay

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/fleet-replay/config"
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// SessionState is the replay session lifecycle phase.
type SessionState int

const (
	Idle SessionState = iota
	Loaded
	Scrubbing
)

// Engine is the per-device replay session. History is replaced wholesale on
// a new window or device switch; scrub position and last rendered index are
// reset whenever that happens.
type Engine struct {
	cfg   config.ReplayConfig
	sink  Sink
	sched Scheduler

	mu      sync.Mutex
	state   SessionState
	session uuid.UUID

	// full is the caller's history in its original order; it is the
	// reference array for index mapping and direction-aware trimming.
	full []telemetry.Sample
	// path is the pruned ascending geometry computed at load.
	path   []telemetry.Sample
	events []telemetry.Event
	from   int64
	to     int64

	scrub     float64
	lastIndex int
	filterKey string
	trimmed   []telemetry.Sample

	pending         float64
	hasPending      bool
	renderScheduled bool
}

// NewEngine creates an idle replay engine. A nil scheduler gets the default
// asynchronous one.
func NewEngine(cfg config.ReplayConfig, sink Sink, sched Scheduler) *Engine {
	if sched == nil {
		sched = asyncScheduler()
	}
	return &Engine{
		cfg:       cfg,
		sink:      sink,
		sched:     sched,
		session:   uuid.New(),
		lastIndex: -1,
	}
}

// BeginSession rotates the session token. A load started before the
// rotation carries the old token and will be discarded on apply; this is
// how a superseded in-flight fetch is cancelled.
func (e *Engine) BeginSession() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = uuid.New()
	return e.session
}

// LoadPath installs a history for playback: sorts ascending, collapses
// inactive runs, dedups timeline events and resets the scrub state. It
// reports false, leaving the engine untouched, when the token no longer
// matches the current session.
func (e *Engine) LoadPath(token uuid.UUID, history []telemetry.Sample, events []telemetry.Event, from, to int64) bool {
	sorted := make([]telemetry.Sample, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	pruned := PruneInactive(sorted, e.cfg.SpeedThresholdKPH, e.cfg.MinStopDurationMS)
	deduped := FilterEvents(events, DedupWindows(e.cfg.DedupWindowsMin))

	e.mu.Lock()
	defer e.mu.Unlock()
	if token != e.session {
		return false
	}
	e.full = history
	e.path = pruned
	e.events = deduped
	e.from, e.to = from, to
	e.state = Loaded
	e.scrub = 0
	e.lastIndex = -1
	e.filterKey = ""
	e.trimmed = nil
	e.hasPending = false
	return true
}

// Clear drops the session back to idle and rotates the token so any
// in-flight load for the old window is discarded.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = uuid.New()
	e.state = Idle
	e.full = nil
	e.path = nil
	e.events = nil
	e.scrub = 0
	e.lastIndex = -1
	e.filterKey = ""
	e.trimmed = nil
	e.hasPending = false
}

// State returns the current lifecycle phase.
func (e *Engine) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Path returns the pruned geometry computed at load.
func (e *Engine) Path() []telemetry.Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// Events returns the deduped timeline events of the loaded window.
func (e *Engine) Events() []telemetry.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

// Scrub accepts a scrub input, keeps only the latest value of a burst and
// schedules at most one render per tick. Invalid inputs are dropped.
func (e *Engine) Scrub(in ScrubInput) {
	v, ok := NormalizeScrub(in)
	if !ok {
		return
	}
	e.mu.Lock()
	e.pending = v
	e.hasPending = true
	if e.renderScheduled {
		e.mu.Unlock()
		return
	}
	e.renderScheduled = true
	e.mu.Unlock()
	e.sched.Schedule(e.renderPending)
}

// renderPending drains the single-slot pending cell and emits one frame.
// A position resolving to the previously rendered index with the path
// filter already applied produces no work at all.
func (e *Engine) renderPending() {
	e.mu.Lock()
	e.renderScheduled = false
	if !e.hasPending || len(e.full) == 0 {
		e.mu.Unlock()
		return
	}
	v := e.pending
	e.hasPending = false
	e.scrub = v
	e.state = Scrubbing

	k := indexFor(v, len(e.full))
	if k == e.lastIndex && e.filterKey != "" {
		e.mu.Unlock()
		return
	}
	e.lastIndex = k

	order := DetectOrder(e.full)
	key := filterKey(order, k)
	if key != e.filterKey {
		e.filterKey = key
		e.trimmed = trimPath(e.full, k, order)
	}

	current := e.full[k]
	frame := Frame{
		Index:        k,
		Timestamp:    current.Timestamp,
		Position:     current.GPS,
		Heading:      headingAt(e.full, k),
		State:        Classify(current, e.cfg.SpeedThresholdKPH),
		Path:         e.trimmed,
		ActiveEvents: activeEvents(e.events, current.Timestamp),
	}
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink.Render(frame)
	}
}

// activeEvents returns the events at or before the scrub time: markers
// accumulate as the cursor travels the path.
func activeEvents(events []telemetry.Event, cutoff int64) []telemetry.Event {
	var out []telemetry.Event
	for _, e := range events {
		if e.Timestamp > 0 && e.Timestamp <= cutoff {
			out = append(out, e)
		}
	}
	return out
}

// Window returns the loaded window bounds as times, for logging.
func (e *Engine) Window() (time.Time, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.UnixMilli(e.from), time.UnixMilli(e.to)
}
