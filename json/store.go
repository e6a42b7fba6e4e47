package json

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fwojciec/omni"
)

// Interface compliance check.
var _ omni.SessionStore = (*Store)(nil)

// Store keeps one JSON file per session in a directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file that holds session id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads session id.
func (s *Store) Load(_ context.Context, id string) (omni.Session, error) {
	if err := checkID(id); err != nil {
		return omni.Session{}, err
	}
	sess, err := Load(s.Path(id))
	if err != nil {
		return omni.Session{}, fmt.Errorf("json: %w", err)
	}
	return sess, nil
}

// Save writes sess atomically.
func (s *Store) Save(_ context.Context, sess omni.Session) error {
	if err := checkID(sess.ID); err != nil {
		return err
	}
	if err := Save(s.Path(sess.ID), sess); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// Delete removes session id. Deleting an unknown session is not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// List decodes every session file in the directory. A missing directory
// lists nothing.
func (s *Store) List(_ context.Context) ([]omni.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("json: list: %w", err)
	}
	var out []omni.SessionSummary
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || e.IsDir() || checkID(id) != nil {
			continue
		}
		sess, err := Load(s.Path(id))
		if err != nil {
			return nil, fmt.Errorf("json: list: %w", err)
		}
		out = append(out, omni.SessionSummary{ID: sess.ID, Turns: len(sess.Turns), UpdatedAt: sess.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("json: invalid session id %q: %w", id, omni.ErrValidation)
	}
	return nil
}
