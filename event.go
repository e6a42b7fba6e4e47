package omni

// Event is a sealed interface representing one decoded stream envelope.
// Events are purely semantic. Transport failures come from Next()'s error
// return, not from events; an EventError is a backend-reported error that
// does not end the stream.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventToken carries a plain-text delta for the assistant turn's text.
type EventToken struct {
	Text string
}

func (EventToken) event() {}

// EventBlockStart announces a block. Title and Kind may be empty.
type EventBlockStart struct {
	BlockID string
	Title   string
	Kind    BlockKind
}

func (EventBlockStart) event() {}

// EventBlockToken carries a streamed markdown delta for a block.
type EventBlockToken struct {
	BlockID string
	Text    string
}

func (EventBlockToken) event() {}

// EventBlockEnd carries a block's terminal payload. Payload is nil when the
// backend closed the block without a result.
type EventBlockEnd struct {
	BlockID string
	Payload *Payload
}

func (EventBlockEnd) event() {}

// EventTaskResult is an out-of-band completion for the block whose id
// equals TaskID.
type EventTaskResult struct {
	TaskID string
	Kind   BlockKind
	OK     bool
	Data   PayloadData
}

func (EventTaskResult) event() {}

// EventError is a non-fatal error reported inside the stream.
type EventError struct {
	Message string
}

func (EventError) event() {}

// Interface compliance checks.
var (
	_ Event = EventToken{}
	_ Event = EventBlockStart{}
	_ Event = EventBlockToken{}
	_ Event = EventBlockEnd{}
	_ Event = EventTaskResult{}
	_ Event = EventError{}
)
