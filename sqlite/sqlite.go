// Package sqlite persists omni sessions in a SQLite database.
//
// Each session is one row holding the JSON document produced by the json
// package, plus a few columns for listing.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/omni"
	omnijson "github.com/fwojciec/omni/json"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Interface compliance check.
var _ omni.SessionStore = (*Store)(nil)

// Store keeps sessions in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dsn and applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: connect: %w", err)
	}

	// One connection: a single writer, and in-memory databases are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads session id.
func (s *Store) Load(ctx context.Context, id string) (omni.Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload_json FROM sessions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return omni.Session{}, fmt.Errorf("sqlite: session %q: %w", id, omni.ErrSessionNotFound)
	}
	if err != nil {
		return omni.Session{}, fmt.Errorf("sqlite: load %q: %w", id, err)
	}
	sess, err := omnijson.UnmarshalSession([]byte(payload))
	if err != nil {
		return omni.Session{}, fmt.Errorf("sqlite: decode %q: %w", id, err)
	}
	return sess, nil
}

// Save inserts or replaces sess.
func (s *Store) Save(ctx context.Context, sess omni.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("sqlite: empty session id: %w", omni.ErrValidation)
	}
	payload, err := omnijson.MarshalSession(sess)
	if err != nil {
		return fmt.Errorf("sqlite: encode %q: %w", sess.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, boot_id, turn_count, payload_json, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			boot_id = excluded.boot_id,
			turn_count = excluded.turn_count,
			payload_json = excluded.payload_json,
			updated_at_ms = excluded.updated_at_ms`,
		sess.ID, sess.BootID, len(sess.Turns), string(payload),
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save %q: %w", sess.ID, err)
	}
	return nil
}

// Delete removes session id. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete %q: %w", id, err)
	}
	return nil
}

// List returns stored sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]omni.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, turn_count, updated_at_ms FROM sessions ORDER BY updated_at_ms DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	var out []omni.SessionSummary
	for rows.Next() {
		var (
			sum omni.SessionSummary
			ms  int64
		)
		if err := rows.Scan(&sum.ID, &sum.Turns, &ms); err != nil {
			return nil, fmt.Errorf("sqlite: list: %w", err)
		}
		sum.UpdatedAt = time.UnixMilli(ms).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return out, nil
}
