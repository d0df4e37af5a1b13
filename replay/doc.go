// Package replay drives scrub-position-indexed playback of a loaded
// telemetry history against a rendered path.
//
// This package handles:
// - The per-device replay session (Idle -> Loaded -> Scrubbing)
// - Run-length collapsing of inactive stretches (engine off, not moving)
// - Scrub input normalization and per-tick render coalescing
// - Heading resolution (reported angle or great-circle bearing)
// - Direction-aware trimming of the path behind the scrub position
// - Windowed deduplication of discrete driver/fuel events
//
// All scrub and load operations are serialized by the render scheduler: at
// most one render runs per tick and only the latest scrub value survives a
// burst. A superseded load is discarded via its session token.
package replay
