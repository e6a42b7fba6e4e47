// Package omniagent implements the omni backend interfaces over the
// OmniAgent HTTP API.
//
// Chat turns stream as server-sent events: each record carries one JSON
// envelope on its data lines. The parser decodes envelopes into the sealed
// [omni.Event] types and skips records it cannot use.
package omniagent

const (
	defaultBaseURL = "http://localhost:8000"

	chatStreamPath = "/api/chat/stream"
	sessionPath    = "/api/session/"
	bootPath       = "/api/boot"
	modelsPath     = "/api/models"

	// maxRecordSize bounds one SSE line. Payloads may inline document text.
	maxRecordSize = 4 << 20
)

// chatRequest is the JSON body of a chat stream request.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Text      string `json:"text"`
}

// envelope is one stream record.
type envelope struct {
	Type    string       `json:"type"`
	RunID   string       `json:"run_id,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
	TsMs    int64        `json:"ts_ms,omitempty"`
	Data    envelopeData `json:"data"`
}

// envelopeData is the union of the fields any event type carries.
type envelopeData struct {
	Text     string      `json:"text,omitempty"`
	BlockID  string      `json:"block_id,omitempty"`
	Title    string      `json:"title,omitempty"`
	Kind     string      `json:"kind,omitempty"`
	Payload  *payloadDTO `json:"payload,omitempty"`
	Error    string      `json:"error,omitempty"`
	Message  string      `json:"message,omitempty"`
	TaskID   string      `json:"task_id,omitempty"`
	OK       *bool       `json:"ok,omitempty"`
	URL      string      `json:"url,omitempty"`
	Filename string      `json:"filename,omitempty"`
	Mime     string      `json:"mime,omitempty"`
	// Data is the nested result body some task results carry.
	Data map[string]any `json:"data,omitempty"`
}

// payloadDTO mirrors the backend's tool result.
type payloadDTO struct {
	TaskID    string         `json:"task_id"`
	Kind      string         `json:"kind"`
	OK        *bool          `json:"ok"`
	Data      map[string]any `json:"data"`
	Citations []citationDTO  `json:"citations"`
	Error     string         `json:"error"`
}

type citationDTO struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// artifactDTO is one entry of the session artifact state.
type artifactDTO struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	TsMs     int64  `json:"ts_ms"`
}

type artifactsResponse struct {
	Image *artifactDTO `json:"image"`
	Audio *artifactDTO `json:"audio"`
	Doc   *artifactDTO `json:"doc"`
}

type bootResponse struct {
	BootID string `json:"boot_id"`
}

type modelsResponse struct {
	Providers []string            `json:"providers"`
	Models    map[string][]string `json:"models"`
	Default   struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	} `json:"default"`
}

type apiErrorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}
