// Package fleetreplay exposes the vehicle history cache and replay engine
// over HTTP: history and fuel event queries backed by the fetch
// coordinator, and a websocket replay channel driving a per-connection
// playback engine.
//
// The heavy lifting lives in the subpackages: store (local cache),
// history (fetch coordination) and replay (playback).
package fleetreplay
