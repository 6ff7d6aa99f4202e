package pool

import "errors"

// Domain-specific errors for the pool bridge.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNeedsCredentials indicates polling is suspended until new
	// credentials are supplied via ResetCredentials.
	ErrNeedsCredentials = errors.New("pool: needs re-authentication")

	// ErrPollInFlight indicates a poll was requested while a previous
	// cycle's round-trip is still outstanding.
	ErrPollInFlight = errors.New("pool: poll already in flight")
)
