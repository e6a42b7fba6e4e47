// Package coalesce batches high-frequency text deltas into bounded commits.
package coalesce

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the flush cadence used when none is configured.
const DefaultInterval = 40 * time.Millisecond

// CommitFunc receives one batch of buffered text keyed by turn id.
// It is called without any coalescer lock besides the flush lock, so it may
// take its own locks but must not call back into FlushNow or Stop.
type CommitFunc func(batch map[string]string)

// Coalescer buffers text deltas per turn and commits them on a fixed cadence.
// At most one flush timer is outstanding at any time. Commits are serialized,
// so batches reach the CommitFunc in the order they were buffered.
type Coalescer struct {
	interval time.Duration
	commit   CommitFunc
	logger   zerolog.Logger

	// flushMu serializes take+commit so an earlier batch is always
	// committed before a later one.
	flushMu sync.Mutex

	mu    sync.Mutex
	buf   map[string]*strings.Builder
	timer *time.Timer
	gen   uint64
}

// Option configures a [Coalescer].
type Option func(*Coalescer)

// WithInterval sets the flush cadence. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *Coalescer) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger used for flush diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coalescer) { c.logger = l }
}

// New creates a Coalescer that hands batches to commit.
func New(commit CommitFunc, opts ...Option) *Coalescer {
	c := &Coalescer{
		interval: DefaultInterval,
		commit:   commit,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Append buffers delta for turnID and schedules a flush unless one is
// already pending.
func (c *Coalescer) Append(turnID, delta string) {
	if delta == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		c.buf = make(map[string]*strings.Builder)
	}
	b, ok := c.buf[turnID]
	if !ok {
		b = &strings.Builder{}
		c.buf[turnID] = b
	}
	b.WriteString(delta)
	if c.timer != nil {
		return
	}
	gen := c.gen
	c.timer = time.AfterFunc(c.interval, func() { c.flush(gen, true) })
}

// FlushNow cancels the pending timer and commits everything buffered before
// returning.
func (c *Coalescer) FlushNow() {
	c.flush(0, false)
}

// Stop cancels the pending timer and discards buffered text. A flush already
// committing finishes before Stop returns; nothing is committed afterwards
// for text appended before the call.
func (c *Coalescer) Stop() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	if n := len(c.buf); n > 0 {
		c.logger.Debug().Int("turns", n).Msg("coalescer stopped with buffered text")
	}
	c.buf = nil
}

// Pending reports whether a flush is scheduled.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Coalescer) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// Invalidates any timer callback that already fired but has not yet
	// taken the lock.
	c.gen++
}

func (c *Coalescer) flush(gen uint64, timed bool) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if timed && gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.cancelTimerLocked()
	pending := c.buf
	c.buf = nil
	c.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	batch := make(map[string]string, len(pending))
	size := 0
	for id, b := range pending {
		batch[id] = b.String()
		size += b.Len()
	}
	c.logger.Trace().Bool("timed", timed).Int("bytes", size).Msg("coalescer flush")
	c.commit(batch)
}
