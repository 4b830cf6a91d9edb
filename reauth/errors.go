package reauth

import "errors"

// ErrInFlight is returned by Begin while a previous handshake is still
// unresolved.
var ErrInFlight = errors.New("reauth: handshake already in flight")
