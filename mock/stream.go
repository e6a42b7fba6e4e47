package mock

import (
	"io"
	"sync"

	"github.com/fwojciec/omni"
)

// Interface compliance check.
var _ omni.Stream = (*Stream)(nil)

// Stream is a test double for omni.Stream.
// Set the function fields for the methods you need. NextFn panics when nil
// to catch missing setup. CloseFn and StateFn are nil-safe (no-op and zero
// value) because test code commonly calls defer stream.Close() and these
// methods rarely need custom behavior.
type Stream struct {
	NextFn  func() (omni.Event, error)
	StateFn func() omni.StreamState
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (omni.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() omni.StreamState {
	if s.StateFn == nil {
		return omni.StreamStateNew
	}
	return s.StateFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// NewStream returns a Stream that yields events in order and then ends
// with err, or io.EOF when err is nil.
func NewStream(err error, events ...omni.Event) *Stream {
	if err == nil {
		err = io.EOF
	}
	var (
		mu     sync.Mutex
		i      int
		closed bool
		state  = omni.StreamStateNew
	)
	return &Stream{
		NextFn: func() (omni.Event, error) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return nil, omni.ErrStreamClosed
			}
			if i < len(events) {
				e := events[i]
				i++
				state = omni.StreamStateStreaming
				return e, nil
			}
			if err == io.EOF {
				state = omni.StreamStateComplete
			} else {
				state = omni.StreamStateError
			}
			return nil, err
		},
		StateFn: func() omni.StreamState {
			mu.Lock()
			defer mu.Unlock()
			return state
		},
		CloseFn: func() error {
			mu.Lock()
			defer mu.Unlock()
			if state != omni.StreamStateComplete && state != omni.StreamStateError {
				state = omni.StreamStateClosed
				closed = true
			}
			return nil
		},
	}
}
