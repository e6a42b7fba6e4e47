// Package json persists omni sessions as versioned JSON documents.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/omni"
)

const version = 1

// envelope is the v1 wire format for a persisted session.
type envelope struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	BootID    string    `json:"boot_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []turnDTO `json:"turns"`
}

type turnDTO struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Text      string     `json:"text"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Blocks    []blockDTO `json:"blocks,omitempty"`
}

// MarshalSession serializes a Session to JSON in v1 envelope format.
func MarshalSession(s omni.Session) ([]byte, error) {
	env := envelope{
		Version:   version,
		ID:        s.ID,
		BootID:    s.BootID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Turns:     make([]turnDTO, len(s.Turns)),
	}
	for i, t := range s.Turns {
		if t == nil {
			return nil, fmt.Errorf("turn %d: nil", i)
		}
		dto := turnDTO{
			ID:        t.ID,
			Role:      string(t.Role),
			Text:      t.Text,
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt,
		}
		if t.Blocks != nil {
			for _, b := range t.Blocks.Blocks() {
				dto.Blocks = append(dto.Blocks, marshalBlock(b))
			}
		}
		env.Turns[i] = dto
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalSession deserializes a Session from JSON in v1 envelope format.
func UnmarshalSession(data []byte) (omni.Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return omni.Session{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != version {
		return omni.Session{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	s := omni.Session{
		ID:        env.ID,
		BootID:    env.BootID,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
		Turns:     make([]*omni.Turn, len(env.Turns)),
	}
	for i, dto := range env.Turns {
		role := omni.Role(dto.Role)
		if role != omni.RoleUser && role != omni.RoleAssistant {
			return omni.Session{}, fmt.Errorf("turn %d: unknown role %q", i, dto.Role)
		}
		blocks := make([]omni.Block, len(dto.Blocks))
		for j, b := range dto.Blocks {
			blocks[j] = unmarshalBlock(b)
		}
		s.Turns[i] = &omni.Turn{
			ID:        dto.ID,
			Role:      role,
			Text:      dto.Text,
			Status:    omni.TurnStatus(dto.Status),
			CreatedAt: dto.CreatedAt,
			Blocks:    omni.NewBlockStore(blocks...),
		}
	}
	return s, nil
}

// Save writes a Session to a JSON file, creating parent directories as needed.
func Save(path string, s omni.Session) error {
	data, err := MarshalSession(s)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Session from a JSON file. A missing file yields an error
// wrapping [omni.ErrSessionNotFound].
func Load(path string) (omni.Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return omni.Session{}, fmt.Errorf("read file %s: %w", path, omni.ErrSessionNotFound)
	}
	if err != nil {
		return omni.Session{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalSession(data)
}
