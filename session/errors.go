package session

import "errors"

var (
	// ErrNotStarted is returned when an operation needs an active primary
	// session and none exists.
	ErrNotStarted = errors.New("session: no active session")

	// ErrSessionExpired is returned when the primary session has expired.
	// Primary expiry is terminal for the process session.
	ErrSessionExpired = errors.New("session: session expired")

	// ErrActionSessionExpired gates mutating actions once the action window
	// has run out. It is recoverable through re-authentication.
	ErrActionSessionExpired = errors.New("session: action session expired")

	// ErrReadOnly gates mutating actions while read-only mode is on.
	ErrReadOnly = errors.New("session: read-only mode")
)
