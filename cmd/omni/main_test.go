package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// execute runs the command tree with an empty config file so the user's own
// config never leaks into a test.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, nil, 0o644))
	return executeWithConfig(t, cfg, args...)
}

func executeWithConfig(t *testing.T, cfg string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	var errOut lockedBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config="+cfg))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// backend fakes the OmniAgent API. artifacts receives the number of
// artifact reads since the chat stream was served, zero before it.
type backend struct {
	stream    string
	artifacts func(afterStream int) string

	mu         sync.Mutex
	streamed   bool
	postStream int
	requests   []string
	deleted    []string
}

func newBackend(t *testing.T, b *backend) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/boot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"boot_id":"boot-1"}`)
	})
	mux.HandleFunc("POST /api/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.streamed = true
		b.requests = append(b.requests, string(body))
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, b.stream)
	})
	mux.HandleFunc("GET /api/session/{id}/artifacts", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		n := 0
		if b.streamed {
			b.postStream++
			n = b.postStream
		}
		b.mu.Unlock()
		body := `{}`
		if b.artifacts != nil {
			body = b.artifacts(n)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("DELETE /api/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deleted = append(b.deleted, r.PathValue("id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"providers": ["gemini", "openai"],
			"models": {"gemini": ["gemini-2.5-flash", "gemini-2.5-pro"], "openai": ["gpt-4o"]},
			"default": {"provider": "gemini", "model": "gemini-2.5-flash"}
		}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (b *backend) deletedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

func (b *backend) chatRequests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// sse frames each envelope as one server-sent event.
func sse(envelopes ...string) string {
	var b bytes.Buffer
	for _, e := range envelopes {
		fmt.Fprintf(&b, "data: %s\n\n", e)
	}
	return b.String()
}
