package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/omni"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ omni.Classifier = (*Classifier)(nil)

// Classifier implements [omni.Classifier] with a Gemini model.
type Classifier struct {
	client   *genai.Client
	model    string
	baseURL  string
	fallback omni.Classifier
	logger   zerolog.Logger
}

// Option configures a [Classifier].
type Option func(*Classifier)

// WithModel sets the model ID. Default is gemini-2.5-flash.
func WithModel(model string) Option {
	return func(c *Classifier) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API endpoint. Useful for testing with httptest.
func WithBaseURL(u string) Option {
	return func(c *Classifier) { c.baseURL = u }
}

// WithFallback sets the classifier used when the model call fails.
func WithFallback(f omni.Classifier) Option {
	return func(c *Classifier) { c.fallback = f }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New creates a Gemini [Classifier] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		model:  defaultModel,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c.client = gc
	return c, nil
}

// Classify asks the model which media text requests.
func (c *Classifier) Classify(ctx context.Context, text string) (omni.ExpectedMedia, error) {
	e, err := c.classify(ctx, text)
	if err == nil {
		return e, nil
	}
	if c.fallback == nil {
		return omni.ExpectedMedia{}, err
	}
	c.logger.Warn().Err(err).Str("model", c.model).Msg("gemini: classify failed, using fallback")
	return c.fallback.Classify(ctx, text)
}

func (c *Classifier) classify(ctx context.Context, text string) (omni.ExpectedMedia, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(text), config)
	if err != nil {
		return omni.ExpectedMedia{}, fmt.Errorf("gemini: %w", err)
	}

	raw := strings.TrimSpace(resp.Text())
	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return omni.ExpectedMedia{}, fmt.Errorf("gemini: decode verdict %q: %w", raw, err)
	}
	c.logger.Debug().
		Bool("image", v.Image).
		Bool("audio", v.Audio).
		Bool("doc", v.Doc).
		Msg("gemini: classified")
	return omni.ExpectedMedia{Image: v.Image, Audio: v.Audio, Doc: v.Doc}, nil
}
