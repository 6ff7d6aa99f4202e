// Package poolcloud implements the cloud side of the pool bridge: the
// identity-provider session lifecycle, the typed-value document codec, and
// the token-aware document store client.
//
// # Architecture
//
// The package sits between the mapping engine and two remote services:
//
//	┌─────────────────┐            ┌─────────────────┐   HTTPS
//	│  Pool Bridge    │  FlatState │    poolcloud    │◄─────────► identity provider
//	│  (mapping eng.) │◄──────────►│   (this pkg)    │◄─────────► document store
//	└─────────────────┘            └─────────────────┘
//
// # Key Responsibilities
//
//   - Exchange account credentials for short-lived access tokens, refresh
//     them proactively, and fall back to full authentication when a
//     refresh is rejected
//   - Decode the document store's typed-value variants into plain Go
//     values and flatten the nested document into separator-joined keys
//   - Encode single-leaf partial updates for write-backs
//   - Retry a document read exactly once after invalidating a rejected
//     session
//
// # Error Taxonomy
//
// *AuthError means "needs re-authentication": invalid credentials, revoked
// refresh token, or an unreachable provider. *APIError means a recoverable
// document store failure: the caller keeps stale data and retries on its
// next scheduled poll.
//
// # Thread Safety
//
// SessionManager and Client are safe for concurrent use.
package poolcloud
