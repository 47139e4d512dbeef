package pubsub

import "errors"

// Failure classes surfaced by channels and transport layers. Callers match
// with errors.Is; concrete causes are wrapped underneath.
var (
	// ErrConfig indicates a malformed or missing connection configuration at
	// open time.
	ErrConfig = errors.New("invalid connection configuration")

	// ErrResourceExhausted indicates an allocation failure while opening a
	// channel.
	ErrResourceExhausted = errors.New("resource allocation failed")

	// ErrConnectionClosed indicates an operation attempted on a channel that
	// is not in the Ready state.
	ErrConnectionClosed = errors.New("channel not ready")

	// ErrTransportFailure indicates an underlying network or broker error.
	ErrTransportFailure = errors.New("transport failure")

	// ErrMissingArguments indicates an absent or mistyped transport settings
	// object.
	ErrMissingArguments = errors.New("transport settings missing or invalid")

	// ErrNotFound indicates an unknown transport profile.
	ErrNotFound = errors.New("not found")
)
