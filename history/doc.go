// Package history orchestrates telemetry retrieval for a device and time
// window: local cache first, chunked parallel remote fetch when the cache
// does not cover the window, write-through persistence, and a separately
// memoized fuel event fetch.
//
// Concurrency contract: identical concurrent requests (same device and
// window) are coalesced into a single execution whose result all callers
// share. Cache writes are fire-and-forget relative to the read path.
// Errors degrade to less data; nothing here is fatal to the host.
package history
