package omni

import (
	"fmt"
	"strings"
)

// Validate checks universal constraints on ChatRequest.
func (r ChatRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("session_id must not be empty: %w", ErrValidation)
	}
	if strings.ContainsAny(r.SessionID, "/?#") {
		return fmt.Errorf("session_id %q contains reserved characters: %w", r.SessionID, ErrValidation)
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("text must not be blank: %w", ErrValidation)
	}
	if r.Model != "" && r.Provider == "" {
		return fmt.Errorf("model %q set without provider: %w", r.Model, ErrValidation)
	}
	return nil
}
