package gemini_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fwojciec/omni"
	"github.com/fwojciec/omni/gemini"
	"github.com/fwojciec/omni/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelAnswer serves a generateContent response whose text is answer.
func modelAnswer(t *testing.T, answer string, gotBody *map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		if gotBody != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, gotBody)
		}
		text, _ := json.Marshal(answer)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":%s}]},"finishReason":"STOP"}]}`, text)
	}
}

func newClassifier(t *testing.T, h http.Handler, opts ...gemini.Option) *gemini.Classifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]gemini.Option{gemini.WithBaseURL(srv.URL + "/")}, opts...)
	c, err := gemini.New(context.Background(), "test-key", opts...)
	require.NoError(t, err)
	return c
}

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()
	var body map[string]any
	c := newClassifier(t, modelAnswer(t, `{"image":true,"audio":false,"doc":true}`, &body))

	got, err := c.Classify(context.Background(), "make a poster and a pdf about it")
	require.NoError(t, err)
	assert.Equal(t, omni.ExpectedMedia{Image: true, Doc: true}, got)

	cfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "request carries a generation config")
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.NotNil(t, cfg["responseSchema"])
	assert.NotNil(t, body["systemInstruction"])
}

func TestClassifier_RequestsConfiguredModel(t *testing.T) {
	t.Parallel()
	var path string
	c := newClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		modelAnswer(t, `{"image":false,"audio":false,"doc":false}`, nil)(w, r)
	}), gemini.WithModel("gemini-2.5-flash-lite"))

	_, err := c.Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, path, "gemini-2.5-flash-lite")
}

func TestClassifier_FallbackOnAPIError(t *testing.T) {
	t.Parallel()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	})

	t.Run("with fallback", func(t *testing.T) {
		t.Parallel()
		c := newClassifier(t, h, gemini.WithFallback(intent.Default()))

		got, err := c.Classify(context.Background(), "generate an image of a cat")
		require.NoError(t, err)
		assert.Equal(t, omni.ExpectedMedia{Image: true}, got)
	})

	t.Run("without fallback", func(t *testing.T) {
		t.Parallel()
		c := newClassifier(t, h)

		_, err := c.Classify(context.Background(), "generate an image of a cat")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gemini:")
	})
}

func TestClassifier_FallbackOnMalformedAnswer(t *testing.T) {
	t.Parallel()
	c := newClassifier(t, modelAnswer(t, "I think an image", nil), gemini.WithFallback(intent.Default()))

	got, err := c.Classify(context.Background(), "please read this aloud")
	require.NoError(t, err)
	assert.Equal(t, omni.ExpectedMedia{Audio: true}, got)
}
