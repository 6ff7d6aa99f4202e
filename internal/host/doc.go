// Package host is the local device runtime the pool bridge commits into.
//
// A Host fronts one pool on the MQTT bus. It keeps the capability set in
// memory, persists every value to SQLite so state survives restarts, and
// mirrors commits to retained MQTT state topics where automation and UIs
// pick them up.
//
// # Topics
//
// For a pool with ID "pool-1" and capability "ph":
//
//	poolbridge/state/pool-1/ph        retained state (JSON value + timestamp)
//	poolbridge/command/pool-1/ph      inbound set-requests
//	poolbridge/ack/pool-1/ph          per-command acknowledgement
//	poolbridge/event/pool-1/<event>   edge events (non-retained)
//	poolbridge/status/pool-1          retained availability + warning
//
// # Commands
//
// Set-requests are JSON objects of the form {"value": <v>}. Every command
// produces an acknowledgement with status "ok" or "error"; a command for a
// capability with no registered listener is rejected as not writable.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package host
