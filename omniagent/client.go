package omniagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/omni"
	"github.com/rs/zerolog"
)

// Interface compliance checks.
var (
	_ omni.Streamer       = (*Client)(nil)
	_ omni.ArtifactSource = (*Client)(nil)
	_ omni.SessionService = (*Client)(nil)
	_ omni.ModelLister    = (*Client)(nil)
)

// Client talks to an OmniAgent backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for envelope diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new [Client] with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Stream opens the event stream for one chat turn and returns an
// [omni.Stream] that emits semantic events.
func (c *Client) Stream(ctx context.Context, req omni.ChatRequest) (omni.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("omniagent: %w", err)
	}
	body, err := json.Marshal(chatRequest{
		SessionID: req.SessionID,
		Provider:  req.Provider,
		Model:     req.Model,
		Text:      req.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("omniagent: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatStreamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("omniagent: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("omniagent: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	return newStream(ctx, resp.Body, c.logger.With().Str("session_id", req.SessionID).Logger()), nil
}

// Artifacts returns the most recent artifact per media kind stored for the
// session.
func (c *Client) Artifacts(ctx context.Context, sessionID string) (omni.ArtifactState, error) {
	var out artifactsResponse
	if err := c.getJSON(ctx, sessionPath+url.PathEscape(sessionID)+"/artifacts", &out); err != nil {
		return nil, err
	}
	state := make(omni.ArtifactState)
	for kind, a := range map[omni.MediaKind]*artifactDTO{
		omni.MediaImage: out.Image,
		omni.MediaAudio: out.Audio,
		omni.MediaDoc:   out.Doc,
	} {
		if a == nil {
			continue
		}
		state[kind] = omni.Artifact{
			ID:       a.ID,
			URL:      a.URL,
			Text:     a.Text,
			Filename: a.Filename,
			Mime:     a.Mime,
			TsMs:     a.TsMs,
		}
	}
	return state, nil
}

// ClearSession discards the backend's state for the session.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+sessionPath+url.PathEscape(sessionID), nil)
	if err != nil {
		return fmt.Errorf("omniagent: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("omniagent: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return parseHTTPError(resp)
	}
}

// BootID returns the identity of the running backend process.
func (c *Client) BootID(ctx context.Context) (string, error) {
	var out bootResponse
	if err := c.getJSON(ctx, bootPath, &out); err != nil {
		return "", err
	}
	return out.BootID, nil
}

// Models returns the backend's provider and model catalog.
func (c *Client) Models(ctx context.Context) (omni.Catalog, error) {
	var out modelsResponse
	if err := c.getJSON(ctx, modelsPath, &out); err != nil {
		return omni.Catalog{}, err
	}
	return omni.Catalog{
		Providers:       out.Providers,
		Models:          out.Models,
		DefaultProvider: out.Default.Provider,
		DefaultModel:    out.Default.Model,
	}, nil
}

// AssetURL resolves a payload URL against the API base. Absolute URLs are
// returned unchanged.
func (c *Client) AssetURL(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("omniagent: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("omniagent: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("omniagent: decode %s: %w", path, err)
	}
	return nil
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("omniagent: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("omniagent: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	msg := apiErr.Detail
	if msg == "" {
		msg = apiErr.Error
	}
	return fmt.Errorf("omniagent: HTTP %d: %s", resp.StatusCode, msg)
}
