// Package gemini wraps Google's Gemini API for JSON-constrained generation.
package gemini

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gemini-2.5-flash"

// Client generates JSON documents constrained by a response schema.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) (*Response, error)
}

// Request is a single-turn generation request.
type Request struct {
	Model           string
	System          string
	Prompt          string
	Schema          *genai.Schema
	MaxOutputTokens int32
	Temperature     *float32
}

// Response is the generated text plus token accounting.
type Response struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
}

type settings struct {
	baseURL string
	http    *http.Client
}

// Option configures the client.
type Option func(*settings)

// WithBaseURL points the client at another endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(s *settings) {
		s.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.http = hc
	}
}

type genaiClient struct {
	client *genai.Client
}

// NewClient creates a Gemini API client authenticated by apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}
	if s.http != nil {
		cfg.HTTPClient = s.http
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &genaiClient{client: client}, nil
}

func (c *genaiClient) GenerateJSON(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
		Temperature:      req.Temperature,
		MaxOutputTokens:  req.MaxOutputTokens,
	}
	if req.System != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), gc)
	if err != nil {
		return nil, classify(eris.Wrap(err, "gemini: generate content"), err)
	}

	out := &Response{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}

// classify maps API status codes onto the resilience error taxonomy.
func classify(wrapped, cause error) error {
	var apiErr genai.APIError
	if !errors.As(cause, &apiErr) {
		return wrapped
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return resilience.NewRateLimitError(wrapped, 0)
	case resilience.IsTransientHTTPStatus(apiErr.Code):
		return resilience.NewTransientError(wrapped, apiErr.Code)
	}
	return wrapped
}
