package omni

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving events.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

// String returns a lowercase name for the state.
func (s StreamState) String() string {
	switch s {
	case StreamStateNew:
		return "new"
	case StreamStateStreaming:
		return "streaming"
	case StreamStateComplete:
		return "complete"
	case StreamStateError:
		return "error"
	case StreamStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream uses a pull-based iterator pattern over the events of one assistant
// turn. Cancellation flows through the context passed to Streamer.Stream().
//
// Next() returns io.EOF once the backend closes the stream. Malformed and
// unknown envelopes are skipped by the implementation and never surface.
// After a terminal state Next() keeps returning the terminal error.
// Close() releases the transport; calling it mid-stream moves the stream to
// StreamStateClosed and subsequent Next() calls return ErrStreamClosed.
type Stream interface {
	Next() (Event, error)
	State() StreamState
	Close() error
}
