package flow

import "errors"

var (
	// ErrNotAllowed: the event is not legal in the current phase.
	ErrNotAllowed = errors.New("operation not permitted in current state")

	// ErrLoginInFlight: a login is already being processed; the duplicate
	// submission is rejected rather than racing two credential writes.
	ErrLoginInFlight = errors.New("login already in progress")

	// ErrStaleResult: a network completion arrived after the flow had
	// already transitioned away; the result was discarded.
	ErrStaleResult = errors.New("stale result discarded")
)
