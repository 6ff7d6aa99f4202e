// Package pool implements the pool controller cloud bridge.
//
// This package maps a remote pool controller's cloud document onto local
// device capabilities. It polls the vendor cloud on a timer, decodes the
// flattened document, and keeps the local capability set in sync.
//
// # Architecture
//
// The bridge operates as a translator between the vendor cloud and the
// local automation runtime:
//
//	┌─────────────────┐            ┌─────────────────┐
//	│   Device Host   │  commits   │   Pool Bridge   │   HTTPS
//	│  (MQTT+SQLite)  │◄──────────►│   (this pkg)    │◄────────► Vendor Cloud
//	└─────────────────┘            └─────────────────┘
//
// # Key Responsibilities
//
//   - Poll the remote pool document on a fixed interval
//   - Translate raw document fields into capability values (scaling,
//     enum labels, unit conversion)
//   - Provision capabilities dynamically as fields appear
//   - Fire edge-triggered events on boolean transitions
//   - Apply capability writes back through partial document updates,
//     followed by a delayed reconciliation poll
//
// # Mappings
//
// Field mappings are declarative tables in mappings.go. Each entry binds a
// flat document key to a capability name with an optional value transform;
// settable entries additionally carry the nested write path and the inverse
// transform for the write direction.
//
// # State Machine
//
// Each bridge runs a small per-pool state machine: Uninitialized until the
// first successful fetch, Polling in steady state, and NeedsCredentials
// after an authentication failure. NeedsCredentials is terminal until
// ResetCredentials signals that new credentials were supplied.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package pool
