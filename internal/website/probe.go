package website

import (
	"context"
	"io"
	"net/http"
)

// Prober checks whether a URL answers, following redirects.
type Prober interface {
	// Probe returns the final URL after redirects and whether it answered
	// with a status below 400.
	Probe(ctx context.Context, rawURL string) (string, bool)
}

// HTTPProber issues a HEAD request and falls back to GET when the server
// rejects HEAD with 405.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates an HTTPProber using client.
func NewHTTPProber(client *http.Client) *HTTPProber {
	return &HTTPProber{client: client}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) (string, bool) {
	final, status, err := p.do(ctx, http.MethodHead, rawURL)
	if err == nil && status == http.StatusMethodNotAllowed {
		final, status, err = p.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return "", false
	}
	return final, status < 400
}

func (p *HTTPProber) do(ctx context.Context, method, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.Request.URL.String(), resp.StatusCode, nil
}
