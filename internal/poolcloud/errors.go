package poolcloud

import (
	"errors"
	"fmt"
)

// Sentinel errors for the poolcloud package.
var (
	// ErrNoRefreshToken is returned by Refresh when no refresh token is held.
	ErrNoRefreshToken = errors.New("poolcloud: no refresh token held")

	// ErrUnknownVariant is returned when a typed value carries no recognised
	// variant tag.
	ErrUnknownVariant = errors.New("poolcloud: unknown typed-value variant")

	// ErrDecodeFailed is returned when a typed value cannot be decoded.
	ErrDecodeFailed = errors.New("poolcloud: decoding failed")

	// ErrInvalidPath is returned when a document field path is malformed.
	ErrInvalidPath = errors.New("poolcloud: invalid field path")
)

// AuthError indicates a failure against the identity provider: invalid
// credentials, a revoked refresh token, or the provider being unreachable.
//
// It surfaces as "needs re-authentication" to the bridge, which marks the
// device unavailable. It is never retried beyond the single refresh →
// authenticate fallback in EnsureValid.
type AuthError struct {
	// Op is the failing operation: "authenticate" or "refresh".
	Op string

	// StatusCode is the provider's HTTP status, or 0 if the provider
	// was unreachable.
	StatusCode int

	// Message is the provider's error description, if any.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poolcloud: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("poolcloud: %s failed: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError indicates a failure against the document store: a non-2xx
// response or an undecodable document.
//
// It surfaces as a recoverable warning; the device stays available with
// stale data and the next scheduled poll retries naturally.
type APIError struct {
	// Op is the failing operation: "fetch" or "write".
	Op string

	// StatusCode is the document store's HTTP status, or 0 for
	// transport/decode failures.
	StatusCode int

	// Message is the response body or error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poolcloud: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("poolcloud: %s failed: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }
