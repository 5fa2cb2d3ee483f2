package token

import "errors"

var (
	// ErrInvalidOrExpired is the only failure callers see from Validate and
	// Consume. It deliberately does not distinguish between a wrong secret,
	// an unknown resource, expiry, or prior consumption.
	ErrInvalidOrExpired = errors.New("invalid or expired token")
)
