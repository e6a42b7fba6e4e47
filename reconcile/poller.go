package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/omni"
	"github.com/rs/zerolog"
)

// Defaults for the polling cadence and the total polling horizon.
const (
	DefaultInterval = 2500 * time.Millisecond
	DefaultHorizon  = 30 * time.Second
)

// Job identifies what a poll reconciles. Baseline and Tracked are captured
// once per turn and never change while the poll runs.
type Job struct {
	SessionID string
	TurnID    string
	Baseline  omni.Baseline
	Tracked   omni.ExpectedMedia
}

// Outcome is how a poll ended on its own.
type Outcome int

const (
	OutcomeResolved Outcome = iota // The apply callback reported settled.
	OutcomeTimedOut                // The horizon elapsed first.
)

// String returns a lowercase name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ApplyFunc applies fetched state to the job's turn and reports whether the
// turn is settled.
type ApplyFunc func(job Job, state omni.ArtifactState) bool

// DoneFunc is called once when a poll ends on its own. It is not called for
// polls ended by Stop or by starting another job. It runs on the poll
// goroutine and must not call Stop.
type DoneFunc func(job Job, outcome Outcome)

// Poller runs at most one reconciliation poll at a time.
type Poller struct {
	source   omni.ArtifactSource
	interval time.Duration
	horizon  time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	job    Job
}

// Option configures a [Poller].
type Option func(*Poller)

// WithInterval sets the time between polls. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithHorizon sets how long a poll may run in total. Non-positive values are
// ignored.
func WithHorizon(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.horizon = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a Poller reading from source.
func NewPoller(source omni.ArtifactSource, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		interval: DefaultInterval,
		horizon:  DefaultHorizon,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start stops any running poll and begins polling for job. The first fetch
// happens one interval after Start.
func (p *Poller) Start(job Job, apply ApplyFunc, done DoneFunc) {
	p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = finished
	p.job = job
	p.mu.Unlock()

	p.logger.Debug().
		Str("turn_id", job.TurnID).
		Strs("tracked", kindNames(job.Tracked)).
		Dur("interval", p.interval).
		Dur("horizon", p.horizon).
		Msg("reconcile: poll started")

	go p.run(ctx, job, apply, done, finished)
}

// Stop cancels the running poll, if any, and waits for it to exit. After
// Stop returns the stopped poll never calls apply or done again.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, finished := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-finished
}

// Active reports whether a poll is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	finished := p.done
	p.mu.Unlock()
	if finished == nil {
		return false
	}
	select {
	case <-finished:
		return false
	default:
		return true
	}
}

// Job returns the job of the running poll.
func (p *Poller) Job() (Job, bool) {
	if !p.Active() {
		return Job{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.job, true
}

func (p *Poller) run(ctx context.Context, job Job, apply ApplyFunc, done DoneFunc, finished chan struct{}) {
	defer close(finished)

	lg := p.logger.With().Str("turn_id", job.TurnID).Logger()
	deadline := time.NewTimer(p.horizon)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			lg.Debug().Int("ticks", ticks).Msg("reconcile: poll stopped")
			return
		case <-deadline.C:
			lg.Info().Int("ticks", ticks).Msg("reconcile: horizon elapsed with blocks unresolved")
			p.finish(ctx, job, done, OutcomeTimedOut)
			return
		case <-ticker.C:
			ticks++
			if p.tick(ctx, lg, job, apply) {
				lg.Info().Int("ticks", ticks).Msg("reconcile: turn settled")
				p.finish(ctx, job, done, OutcomeResolved)
				return
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context, lg zerolog.Logger, job Job, apply ApplyFunc) bool {
	state, err := p.source.Artifacts(ctx, job.SessionID)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		lg.Warn().Err(err).Msg("reconcile: artifact fetch failed")
		return false
	}
	return apply(job, state)
}

func (p *Poller) finish(ctx context.Context, job Job, done DoneFunc, outcome Outcome) {
	if ctx.Err() != nil || done == nil {
		return
	}
	done(job, outcome)
}

func kindNames(e omni.ExpectedMedia) []string {
	kinds := e.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
