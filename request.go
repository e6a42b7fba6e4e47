package omni

// ChatRequest is one user submission sent to the backend.
// The backend uses its own defaults when Provider or Model are empty.
type ChatRequest struct {
	SessionID string
	Provider  string
	Model     string
	Text      string
}
