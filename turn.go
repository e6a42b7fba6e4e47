package omni

import "time"

// TurnStatus is the lifecycle state of a turn.
type TurnStatus string

const (
	TurnIdle                   TurnStatus = "idle"
	TurnSending                TurnStatus = "sending"
	TurnAwaitingReconciliation TurnStatus = "awaiting_reconciliation"
	TurnSettled                TurnStatus = "settled"
)

// Turn is one side of a user/assistant exchange. User turns are settled on
// creation. Assistant turns accumulate text and blocks while sending and are
// immutable once settled.
type Turn struct {
	ID        string
	Role      Role
	Text      string
	Blocks    *BlockStore
	Status    TurnStatus
	CreatedAt time.Time
}

// Settled reports whether the turn no longer changes.
func (t *Turn) Settled() bool {
	return t.Status == TurnSettled
}

// Clone returns a deep copy of the turn.
func (t *Turn) Clone() *Turn {
	cp := *t
	cp.Blocks = t.Blocks.Clone()
	return &cp
}
