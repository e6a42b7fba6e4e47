package omni

import "time"

// Session is the explicit context a controller owns: the backend session id,
// the backend boot identity it was built against, and the ordered turns.
type Session struct {
	ID        string
	BootID    string
	Turns     []*Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn returns the turn with the given id.
func (s *Session) Turn(id string) (*Turn, bool) {
	for _, t := range s.Turns {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Reset drops every turn. The session id is kept.
func (s *Session) Reset(now time.Time) {
	s.Turns = nil
	s.UpdatedAt = now
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() Session {
	cp := *s
	cp.Turns = make([]*Turn, len(s.Turns))
	for i, t := range s.Turns {
		cp.Turns[i] = t.Clone()
	}
	return cp
}
