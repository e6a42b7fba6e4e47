// Package mock provides test doubles for omni interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/omni"
)

// Interface compliance checks.
var (
	_ omni.Streamer       = (*Streamer)(nil)
	_ omni.ArtifactSource = (*ArtifactSource)(nil)
	_ omni.SessionService = (*SessionService)(nil)
	_ omni.Classifier     = (*Classifier)(nil)
	_ omni.Notifier       = (*Notifier)(nil)
	_ omni.Conversation   = (*Conversation)(nil)
	_ omni.SessionStore   = (*SessionStore)(nil)
)

// Streamer is a test double for omni.Streamer.
// Set StreamFn before calling Stream.
type Streamer struct {
	StreamFn func(ctx context.Context, req omni.ChatRequest) (omni.Stream, error)
}

// Stream delegates to StreamFn.
func (s *Streamer) Stream(ctx context.Context, req omni.ChatRequest) (omni.Stream, error) {
	return s.StreamFn(ctx, req)
}

// ArtifactSource is a test double for omni.ArtifactSource.
// Set ArtifactsFn before calling Artifacts.
type ArtifactSource struct {
	ArtifactsFn func(ctx context.Context, sessionID string) (omni.ArtifactState, error)
}

// Artifacts delegates to ArtifactsFn.
func (a *ArtifactSource) Artifacts(ctx context.Context, sessionID string) (omni.ArtifactState, error) {
	return a.ArtifactsFn(ctx, sessionID)
}

// SessionService is a test double for omni.SessionService.
type SessionService struct {
	ClearSessionFn func(ctx context.Context, sessionID string) error
	BootIDFn       func(ctx context.Context) (string, error)
}

// ClearSession delegates to ClearSessionFn.
func (s *SessionService) ClearSession(ctx context.Context, sessionID string) error {
	return s.ClearSessionFn(ctx, sessionID)
}

// BootID delegates to BootIDFn.
func (s *SessionService) BootID(ctx context.Context) (string, error) {
	return s.BootIDFn(ctx)
}

// Classifier is a test double for omni.Classifier.
// Set ClassifyFn before calling Classify.
type Classifier struct {
	ClassifyFn func(ctx context.Context, text string) (omni.ExpectedMedia, error)
}

// Classify delegates to ClassifyFn.
func (c *Classifier) Classify(ctx context.Context, text string) (omni.ExpectedMedia, error) {
	return c.ClassifyFn(ctx, text)
}

// Notifier is a test double for omni.Notifier. Notify is a no-op when
// NotifyFn is nil.
type Notifier struct {
	NotifyFn func(u omni.Update)
}

// Notify delegates to NotifyFn.
func (n *Notifier) Notify(u omni.Update) {
	if n.NotifyFn == nil {
		return
	}
	n.NotifyFn(u)
}

// Conversation is a test double for omni.Conversation. SnapshotFn, SendingFn
// and ReconcilingFn are nil-safe and return zero values.
type Conversation struct {
	SnapshotFn    func() omni.Session
	SubmitFn      func(ctx context.Context, text string) (string, error)
	AbortFn       func() bool
	ResetFn       func(ctx context.Context) error
	SendingFn     func() bool
	ReconcilingFn func() bool
}

// Snapshot delegates to SnapshotFn.
func (c *Conversation) Snapshot() omni.Session {
	if c.SnapshotFn == nil {
		return omni.Session{}
	}
	return c.SnapshotFn()
}

// Submit delegates to SubmitFn.
func (c *Conversation) Submit(ctx context.Context, text string) (string, error) {
	return c.SubmitFn(ctx, text)
}

// Abort delegates to AbortFn.
func (c *Conversation) Abort() bool {
	return c.AbortFn()
}

// Reset delegates to ResetFn.
func (c *Conversation) Reset(ctx context.Context) error {
	return c.ResetFn(ctx)
}

// Sending delegates to SendingFn.
func (c *Conversation) Sending() bool {
	if c.SendingFn == nil {
		return false
	}
	return c.SendingFn()
}

// Reconciling delegates to ReconcilingFn.
func (c *Conversation) Reconciling() bool {
	if c.ReconcilingFn == nil {
		return false
	}
	return c.ReconcilingFn()
}

// SessionStore is a test double for omni.SessionStore.
type SessionStore struct {
	LoadFn   func(ctx context.Context, id string) (omni.Session, error)
	SaveFn   func(ctx context.Context, s omni.Session) error
	DeleteFn func(ctx context.Context, id string) error
	ListFn   func(ctx context.Context) ([]omni.SessionSummary, error)
}

// Load delegates to LoadFn.
func (s *SessionStore) Load(ctx context.Context, id string) (omni.Session, error) {
	return s.LoadFn(ctx, id)
}

// Save delegates to SaveFn.
func (s *SessionStore) Save(ctx context.Context, sess omni.Session) error {
	return s.SaveFn(ctx, sess)
}

// Delete delegates to DeleteFn.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.DeleteFn(ctx, id)
}

// List delegates to ListFn.
func (s *SessionStore) List(ctx context.Context) ([]omni.SessionSummary, error) {
	return s.ListFn(ctx)
}
