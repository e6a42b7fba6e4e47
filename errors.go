package omni

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrEmptyInput indicates a submit with blank text.
	ErrEmptyInput = errors.New("empty input")

	// ErrTurnInFlight indicates a submit while another turn is still sending.
	ErrTurnInFlight = errors.New("turn already in flight")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrAborted is recorded when a turn's stream is cancelled by the user.
	ErrAborted = errors.New("aborted")

	// ErrSessionNotFound indicates a persisted session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)
