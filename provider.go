package omni

import (
	"context"
	"time"
)

// Streamer opens the event stream for one assistant turn.
type Streamer interface {
	Stream(ctx context.Context, req ChatRequest) (Stream, error)
}

// ArtifactSource reads the authoritative artifact state of a session.
type ArtifactSource interface {
	Artifacts(ctx context.Context, sessionID string) (ArtifactState, error)
}

// SessionService is the backend's session control surface.
type SessionService interface {
	// ClearSession discards the backend's state for the session.
	ClearSession(ctx context.Context, sessionID string) error
	// BootID identifies the running backend process. It changes when the
	// backend restarts and its in-memory sessions are gone.
	BootID(ctx context.Context) (string, error)
}

// Catalog lists the providers and models the backend accepts.
type Catalog struct {
	Providers       []string
	Models          map[string][]string
	DefaultProvider string
	DefaultModel    string
}

// ModelLister reads the backend's model catalog.
type ModelLister interface {
	Models(ctx context.Context) (Catalog, error)
}

// SessionStore persists sessions between runs. Load returns an error
// wrapping ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
	// List returns stored sessions, most recently updated first.
	List(ctx context.Context) ([]SessionSummary, error)
}

// SessionSummary describes a stored session without its turns.
type SessionSummary struct {
	ID        string
	Turns     int
	UpdatedAt time.Time
}

// Classifier derives the media kinds a user message asks for.
type Classifier interface {
	Classify(ctx context.Context, text string) (ExpectedMedia, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (ExpectedMedia, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text string) (ExpectedMedia, error) {
	return f(ctx, text)
}

// UpdateKind describes what changed in a session.
type UpdateKind string

const (
	UpdateTurnStarted UpdateKind = "turn_started"
	UpdateText        UpdateKind = "text"
	UpdateBlocks      UpdateKind = "blocks"
	UpdateStatus      UpdateKind = "status"
	UpdateReset       UpdateKind = "reset"
)

// Update is a change notification. It carries no state; consumers read a
// fresh snapshot from the controller.
type Update struct {
	SessionID string
	TurnID    string
	Kind      UpdateKind
	Status    TurnStatus
}

// Notifier receives change notifications. Implementations must not block.
type Notifier interface {
	Notify(u Update)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(u Update)

// Notify calls f.
func (f NotifierFunc) Notify(u Update) { f(u) }

// Conversation is the session controller a front end drives. Reads return
// copies; callers learn about changes through a Notifier.
type Conversation interface {
	Snapshot() Session
	Submit(ctx context.Context, text string) (string, error)
	Abort() bool
	Reset(ctx context.Context) error
	Sending() bool
	Reconciling() bool
}

// Interface compliance checks.
var (
	_ Classifier = ClassifierFunc(nil)
	_ Notifier   = NotifierFunc(nil)
)
