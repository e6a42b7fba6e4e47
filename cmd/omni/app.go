package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/omni"
	"github.com/fwojciec/omni/engine"
	"github.com/fwojciec/omni/gemini"
	"github.com/fwojciec/omni/intent"
	omnijson "github.com/fwojciec/omni/json"
	"github.com/fwojciec/omni/omniagent"
	"github.com/fwojciec/omni/sqlite"
	omniwm "github.com/fwojciec/omni/watermill"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// saveTimeout bounds the final save on exit.
const saveTimeout = 5 * time.Second

// app holds the wired components of one command run.
type app struct {
	logger zerolog.Logger
	client *omniagent.Client
	store  omni.SessionStore
	bus    *omniwm.Bus
	ctrl   *engine.Controller

	closers []io.Closer
}

func newClient(cfg config, logger zerolog.Logger) *omniagent.Client {
	return omniagent.New(
		omniagent.WithBaseURL(cfg.APIBase),
		omniagent.WithLogger(logger),
	)
}

// openStore opens the configured history store. The closer releases it.
func openStore(cfg config) (omni.SessionStore, io.Closer, error) {
	switch cfg.History {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("history: %w", err)
		}
		store, err := sqlite.Open(cfg.HistoryPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return omnijson.NewStore(cfg.HistoryPath), nopCloser{}, nil
	}
}

// newClassifier builds the media intent classifier. The gemini classifier
// falls back to the regex rules when the model call fails.
func newClassifier(ctx context.Context, cfg config, logger zerolog.Logger) (omni.Classifier, error) {
	patterns := intent.DefaultPatterns()
	if cfg.IntentPatterns != "" {
		p, err := intent.LoadFile(cfg.IntentPatterns)
		if err != nil {
			return nil, err
		}
		patterns = p
	}
	rules, err := intent.New(patterns)
	if err != nil {
		return nil, err
	}
	if cfg.Classifier != "gemini" {
		return rules, nil
	}
	cl, err := gemini.New(ctx, cfg.GeminiAPIKey,
		gemini.WithModel(cfg.GeminiModel),
		gemini.WithFallback(rules),
		gemini.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// loadSession picks the session to continue: the one named by --session,
// otherwise the most recently updated stored session. --new and an empty
// store start a fresh session.
func loadSession(ctx context.Context, store omni.SessionStore, cfg config) (omni.Session, error) {
	id := cfg.SessionID
	if !cfg.NewSession {
		if id == "" {
			list, err := store.List(ctx)
			if err != nil {
				return omni.Session{}, err
			}
			if len(list) > 0 {
				id = list[0].ID
			}
		}
		if id != "" {
			sess, err := store.Load(ctx, id)
			if err == nil {
				return sess, nil
			}
			if !errors.Is(err, omni.ErrSessionNotFound) {
				return omni.Session{}, err
			}
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return omni.Session{ID: id, CreatedAt: now, UpdatedAt: now}, nil
}

// newApp wires the controller for the configured session.
func newApp(ctx context.Context, cfg config, logger zerolog.Logger) (*app, error) {
	a := &app{
		logger: logger,
		client: newClient(cfg, logger),
	}

	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closer)

	classifier, err := newClassifier(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	sess, err := loadSession(ctx, store, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug().Str("session_id", sess.ID).Int("turns", len(sess.Turns)).Msg("omni: session loaded")

	a.bus = omniwm.New(omniwm.WithLogger(logger))
	a.closers = append(a.closers, a.bus)

	a.ctrl = engine.New(sess, a.client, a.client,
		engine.WithSessionService(a.client),
		engine.WithClassifier(classifier),
		engine.WithNotifier(a.bus),
		engine.WithLogger(logger),
		engine.WithModel(cfg.Provider, cfg.Model),
		engine.WithFlushInterval(cfg.FlushInterval),
		engine.WithPollInterval(cfg.PollInterval),
		engine.WithPollHorizon(cfg.PollHorizon),
	)
	return a, nil
}

// checkBoot resets the session when the backend restarted since it was
// saved. Failures are logged; the backend may simply be starting.
func (a *app) checkBoot(ctx context.Context) {
	reset, err := a.ctrl.CheckBoot(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("omni: boot check failed")
		return
	}
	if reset {
		a.logger.Info().Str("session_id", a.ctrl.SessionID()).Msg("omni: backend restarted, session cleared")
	}
}

// persist saves the session whenever a turn changes status or the session
// is reset, until updates closes or ctx ends.
func (a *app) persist(ctx context.Context, updates <-chan omni.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Kind != omni.UpdateStatus && u.Kind != omni.UpdateReset {
				continue
			}
			if err := a.save(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("omni: save session")
			}
		}
	}
}

func (a *app) save(ctx context.Context) error {
	return a.store.Save(ctx, a.ctrl.Snapshot())
}

// saveFinal saves the session on exit and reports whether it wrote one.
// Empty sessions are not written.
func (a *app) saveFinal() (bool, error) {
	snap := a.ctrl.Snapshot()
	if len(snap.Turns) == 0 {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.store.Save(ctx, snap); err != nil {
		return false, fmt.Errorf("save session: %w", err)
	}
	return true, nil
}

// Close stops the controller and releases the bus and the store.
func (a *app) Close() error {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
