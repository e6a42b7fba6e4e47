// Package engine drives chat turns: it streams one assistant turn at a time,
// folds stream events into the turn, and hands turns with missing media to a
// reconciliation poll.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/omni"
	"github.com/fwojciec/omni/coalesce"
	"github.com/fwojciec/omni/reconcile"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fetchTimeout bounds the artifact reads made outside the poller.
const fetchTimeout = 10 * time.Second

// Interface compliance check.
var _ omni.Conversation = (*Controller)(nil)

// Controller owns one session and runs its turns.
type Controller struct {
	streamer   omni.Streamer
	artifacts  omni.ArtifactSource
	sessions   omni.SessionService
	classifier omni.Classifier
	notifier   omni.Notifier
	logger     zerolog.Logger
	provider   string
	model      string

	flushInterval time.Duration
	pollInterval  time.Duration
	pollHorizon   time.Duration

	coalescer *coalesce.Coalescer
	poller    *reconcile.Poller

	mu      sync.Mutex
	session omni.Session
	current string // id of the assistant turn that is sending
	cancel  context.CancelFunc
	aborted bool
	pollGen uint64
}

// Option configures a [Controller].
type Option func(*Controller)

// WithSessionService sets the backend session control surface used by
// [Controller.Reset] and [Controller.CheckBoot].
func WithSessionService(s omni.SessionService) Option {
	return func(c *Controller) { c.sessions = s }
}

// WithClassifier sets the classifier deciding which media a message asks
// for. Without one no media is expected.
func WithClassifier(cl omni.Classifier) Option {
	return func(c *Controller) { c.classifier = cl }
}

// WithNotifier sets the receiver of change notifications.
func WithNotifier(n omni.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithModel sets the provider and model sent with every request. Empty
// strings leave the choice to the backend.
func WithModel(provider, model string) Option {
	return func(c *Controller) {
		c.provider = provider
		c.model = model
	}
}

// WithFlushInterval sets the token coalescing window.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Controller) { c.flushInterval = d }
}

// WithPollInterval sets the time between reconciliation polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithPollHorizon sets how long a reconciliation poll may run.
func WithPollHorizon(d time.Duration) Option {
	return func(c *Controller) { c.pollHorizon = d }
}

// New creates a Controller for sess. Turns restored in a non-terminal
// status are settled as they are, so their unresolved blocks stay pending.
func New(sess omni.Session, streamer omni.Streamer, artifacts omni.ArtifactSource, opts ...Option) *Controller {
	c := &Controller{
		streamer:  streamer,
		artifacts: artifacts,
		logger:    zerolog.Nop(),
		session:   sess.Clone(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With().Str("session_id", sess.ID).Logger()
	c.coalescer = coalesce.New(c.commitText,
		coalesce.WithInterval(c.flushInterval),
		coalesce.WithLogger(c.logger),
	)
	c.poller = reconcile.NewPoller(artifacts,
		reconcile.WithInterval(c.pollInterval),
		reconcile.WithHorizon(c.pollHorizon),
		reconcile.WithLogger(c.logger),
	)
	for _, t := range c.session.Turns {
		if t.Blocks == nil {
			t.Blocks = omni.NewBlockStore()
		}
		if !t.Settled() {
			t.Status = omni.TurnSettled
		}
	}
	return c
}

// SessionID returns the id of the controlled session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// Snapshot returns a deep copy of the session.
func (c *Controller) Snapshot() omni.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Sending reports whether a turn is streaming.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != ""
}

// Reconciling reports whether a reconciliation poll is running.
func (c *Controller) Reconciling() bool {
	return c.poller.Active()
}

// Submit runs one turn for text and returns the assistant turn id once the
// stream has ended. Stream failures do not fail the turn: they are recorded
// in the turn text. The turn may still be awaiting reconciliation when
// Submit returns.
func (c *Controller) Submit(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", omni.ErrEmptyInput
	}

	c.mu.Lock()
	if c.current != "" {
		c.mu.Unlock()
		return "", omni.ErrTurnInFlight
	}
	now := time.Now()
	abandoned := c.settleAwaitingLocked()
	userTurn := &omni.Turn{
		ID:        uuid.NewString(),
		Role:      omni.RoleUser,
		Text:      text,
		Blocks:    omni.NewBlockStore(),
		Status:    omni.TurnSettled,
		CreatedAt: now,
	}
	turn := &omni.Turn{
		ID:        uuid.NewString(),
		Role:      omni.RoleAssistant,
		Blocks:    omni.NewBlockStore(),
		Status:    omni.TurnSending,
		CreatedAt: now,
	}
	c.session.Turns = append(c.session.Turns, userTurn, turn)
	c.session.UpdatedAt = now
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.current = turn.ID
	c.cancel = cancel
	c.aborted = false
	c.pollGen++
	sessionID := c.session.ID
	c.mu.Unlock()

	c.poller.Stop()
	for _, id := range abandoned {
		c.notify(omni.Update{TurnID: id, Kind: omni.UpdateStatus, Status: omni.TurnSettled})
	}
	c.notify(omni.Update{TurnID: turn.ID, Kind: omni.UpdateTurnStarted, Status: omni.TurnSending})

	lg := c.logger.With().Str("turn_id", turn.ID).Logger()
	baseline := c.baseline(ctx, lg, sessionID)
	expected := c.expect(ctx, lg, text)
	lg.Info().Strs("expected", kindNames(expected)).Msg("engine: turn started")

	streamErr := c.run(ctx, turn.ID, omni.ChatRequest{
		SessionID: sessionID,
		Provider:  c.provider,
		Model:     c.model,
		Text:      text,
	})
	c.finish(ctx, lg, turn.ID, sessionID, baseline, expected, streamErr)
	return turn.ID, nil
}

// Abort cancels the sending turn's stream. The turn still flushes and
// reconciles. It reports whether a stream was cancelled.
func (c *Controller) Abort() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.aborted = true
	c.cancel()
	return true
}

// Reset abandons all local state for the session and clears the backend's
// state for it.
func (c *Controller) Reset(ctx context.Context) error {
	sessionID := c.resetLocal()
	if c.sessions == nil {
		return nil
	}
	if err := c.sessions.ClearSession(ctx, sessionID); err != nil {
		return fmt.Errorf("engine: clear session: %w", err)
	}
	return nil
}

// CheckBoot compares the backend boot identity with the one the session was
// built against. When the backend has restarted, local state is reset and
// CheckBoot reports true.
func (c *Controller) CheckBoot(ctx context.Context) (bool, error) {
	if c.sessions == nil {
		return false, nil
	}
	id, err := c.sessions.BootID(ctx)
	if err != nil {
		return false, fmt.Errorf("engine: boot id: %w", err)
	}

	c.mu.Lock()
	prev := c.session.BootID
	c.session.BootID = id
	c.mu.Unlock()

	if prev == "" || prev == id {
		return false, nil
	}
	c.logger.Info().Str("prev_boot_id", prev).Str("boot_id", id).Msg("engine: backend restarted, resetting session")
	c.resetLocal()
	return true, nil
}

// Close stops background work. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.Abort()
	c.coalescer.Stop()
	c.poller.Stop()
}

func (c *Controller) resetLocal() string {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.current = ""
	c.pollGen++
	c.session.Reset(time.Now())
	sessionID := c.session.ID
	c.mu.Unlock()

	c.coalescer.Stop()
	c.poller.Stop()
	c.notify(omni.Update{Kind: omni.UpdateReset})
	return sessionID
}

// settleAwaitingLocked settles turns whose poll is about to be replaced and
// returns their ids.
func (c *Controller) settleAwaitingLocked() []string {
	var ids []string
	for _, t := range c.session.Turns {
		if t.Status == omni.TurnAwaitingReconciliation {
			t.Status = omni.TurnSettled
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// baseline captures the artifact state before the turn. An abort must not
// cut the fetch short, so it ignores ctx cancellation. A failed fetch yields
// an unknown baseline.
func (c *Controller) baseline(ctx context.Context, lg zerolog.Logger, sessionID string) omni.Baseline {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	defer cancel()
	state, err := c.artifacts.Artifacts(ctx, sessionID)
	if err != nil {
		lg.Warn().Err(err).Msg("engine: baseline fetch failed, media will not be recovered")
		return nil
	}
	return state.Baseline()
}

func (c *Controller) expect(ctx context.Context, lg zerolog.Logger, text string) omni.ExpectedMedia {
	if c.classifier == nil {
		return omni.ExpectedMedia{}
	}
	e, err := c.classifier.Classify(ctx, text)
	if err != nil {
		lg.Warn().Err(err).Msg("engine: classify failed")
		return omni.ExpectedMedia{}
	}
	return e
}

// run streams the turn and dispatches its events. It returns the error that
// ended the stream, or nil when the stream completed.
func (c *Controller) run(ctx context.Context, turnID string, req omni.ChatRequest) error {
	stream, err := c.streamer.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		evt, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		c.dispatch(turnID, evt)
	}
}

func (c *Controller) dispatch(turnID string, evt omni.Event) {
	if e, ok := evt.(omni.EventToken); ok {
		c.coalescer.Append(turnID, e.Text)
		return
	}

	// Text that arrived before this event lands first.
	c.coalescer.FlushNow()

	c.mu.Lock()
	turn, ok := c.liveTurnLocked(turnID)
	if !ok {
		c.mu.Unlock()
		return
	}
	kind := omni.UpdateBlocks
	changed := true
	switch e := evt.(type) {
	case omni.EventBlockStart:
		turn.Blocks.Start(e.BlockID, e.Title, e.Kind)
	case omni.EventBlockToken:
		turn.Blocks.AppendToken(e.BlockID, e.Text)
	case omni.EventBlockEnd:
		changed = turn.Blocks.End(e.BlockID, e.Payload)
	case omni.EventTaskResult:
		changed = turn.Blocks.TaskResult(e.TaskID, e.Kind, e.OK, e.Data)
	case omni.EventError:
		turn.Text += "\n[error] " + e.Message + "\n"
		kind = omni.UpdateText
	default:
		changed = false
	}
	c.mu.Unlock()

	if changed {
		c.notify(omni.Update{TurnID: turnID, Kind: kind, Status: omni.TurnSending})
	}
}

// finish moves a turn whose stream has ended to awaiting_reconciliation or
// settled.
func (c *Controller) finish(ctx context.Context, lg zerolog.Logger, turnID, sessionID string, baseline omni.Baseline, expected omni.ExpectedMedia, streamErr error) {
	c.coalescer.FlushNow()

	var state omni.ArtifactState
	if baseline.Known() {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		var err error
		state, err = c.artifacts.Artifacts(fetchCtx, sessionID)
		cancel()
		if err != nil {
			lg.Warn().Err(err).Msg("engine: artifact fetch failed")
		}
	}

	c.mu.Lock()
	turn, ok := c.liveTurnLocked(turnID)
	if !ok {
		if c.current == turnID {
			c.current, c.cancel = "", nil
		}
		c.mu.Unlock()
		return
	}
	if streamErr != nil {
		msg := streamErr.Error()
		if c.aborted || errors.Is(streamErr, context.Canceled) {
			msg = omni.ErrAborted.Error()
		}
		turn.Text += "\n\n[error] " + msg
		lg.Warn().Err(streamErr).Bool("aborted", c.aborted).Msg("engine: stream ended with error")
	}
	tracked := reconcile.Tracked(turn.Blocks, expected)
	var res reconcile.Result
	poll := false
	if baseline.Known() {
		res = reconcile.Apply(turn.Blocks, state, baseline, tracked)
		poll = reconcile.NeedsPolling(turn.Blocks, expected, res)
	}
	status := omni.TurnSettled
	if poll {
		status = omni.TurnAwaitingReconciliation
	}
	turn.Status = status
	c.pollGen++
	gen := c.pollGen
	c.mu.Unlock()

	if res.Changed() {
		c.notify(omni.Update{TurnID: turnID, Kind: omni.UpdateBlocks, Status: status})
		lg.Info().Strs("attached", res.Attached).Strs("synthesized", res.Synthesized).Msg("engine: healed at stream end")
	}

	if poll {
		c.poller.Start(reconcile.Job{
			SessionID: sessionID,
			TurnID:    turnID,
			Baseline:  baseline,
			Tracked:   tracked,
		}, c.applyFunc(gen), c.doneFunc(gen))
	} else {
		lg.Info().Msg("engine: turn settled")
	}

	c.mu.Lock()
	if c.current == turnID {
		c.current, c.cancel = "", nil
	}
	c.mu.Unlock()
	c.notify(omni.Update{TurnID: turnID, Kind: omni.UpdateStatus, Status: status})
}

// applyFunc returns the poll callback for generation gen. A poll started
// for an earlier generation never writes.
func (c *Controller) applyFunc(gen uint64) reconcile.ApplyFunc {
	return func(job reconcile.Job, state omni.ArtifactState) bool {
		c.mu.Lock()
		turn, ok := c.liveTurnLocked(job.TurnID)
		if gen != c.pollGen || !ok || turn.Status != omni.TurnAwaitingReconciliation {
			c.mu.Unlock()
			return true
		}
		res := reconcile.Apply(turn.Blocks, state, job.Baseline, job.Tracked)
		settled := res.Settled()
		if settled {
			turn.Status = omni.TurnSettled
		}
		status := turn.Status
		c.mu.Unlock()

		if res.Changed() {
			c.logger.Info().
				Str("turn_id", job.TurnID).
				Strs("attached", res.Attached).
				Strs("synthesized", res.Synthesized).
				Msg("engine: healed from artifact state")
			c.notify(omni.Update{TurnID: job.TurnID, Kind: omni.UpdateBlocks, Status: status})
		}
		if settled {
			c.notify(omni.Update{TurnID: job.TurnID, Kind: omni.UpdateStatus, Status: status})
		}
		return settled
	}
}

func (c *Controller) doneFunc(gen uint64) reconcile.DoneFunc {
	return func(job reconcile.Job, outcome reconcile.Outcome) {
		c.mu.Lock()
		turn, ok := c.liveTurnLocked(job.TurnID)
		if gen != c.pollGen || !ok || turn.Status != omni.TurnAwaitingReconciliation {
			c.mu.Unlock()
			return
		}
		turn.Status = omni.TurnSettled
		pending := len(turn.Blocks.Pending())
		c.mu.Unlock()

		c.logger.Info().
			Str("turn_id", job.TurnID).
			Stringer("outcome", outcome).
			Int("pending", pending).
			Msg("engine: turn settled")
		c.notify(omni.Update{TurnID: job.TurnID, Kind: omni.UpdateStatus, Status: omni.TurnSettled})
	}
}

// commitText appends a coalesced batch to the turns it belongs to.
func (c *Controller) commitText(batch map[string]string) {
	c.mu.Lock()
	var updated []string
	for id, text := range batch {
		turn, ok := c.liveTurnLocked(id)
		if !ok || turn.Status != omni.TurnSending {
			continue
		}
		turn.Text += text
		updated = append(updated, id)
	}
	c.mu.Unlock()

	for _, id := range updated {
		c.notify(omni.Update{TurnID: id, Kind: omni.UpdateText, Status: omni.TurnSending})
	}
}

// liveTurnLocked finds an unsettled assistant turn.
func (c *Controller) liveTurnLocked(id string) (*omni.Turn, bool) {
	t, ok := c.session.Turn(id)
	if !ok || t.Role != omni.RoleAssistant || t.Settled() {
		return nil, false
	}
	return t, true
}

func (c *Controller) notify(u omni.Update) {
	if c.notifier == nil {
		return
	}
	u.SessionID = c.SessionID()
	c.notifier.Notify(u)
}

func kindNames(e omni.ExpectedMedia) []string {
	kinds := e.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
