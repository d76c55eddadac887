package fetcher

import (
	"net/http"
	"strings"
	"time"
)

// Options configures a rate-limited client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// HostRates maps a host (exact, or a suffix starting with ".") to
	// requests per second. Hosts without an entry use DefaultRate.
	HostRates   map[string]float64
	DefaultRate float64
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper
}

// NewClient returns an *http.Client whose transport waits on a per-host
// limiter before each request. Every client built from the same Limiters
// shares its token buckets, which is how the directory API budget is
// enforced across concurrent pipeline workers.
func NewClient(opts Options, limiters *Limiters) *http.Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if limiters == nil {
		limiters = NewLimiters(opts.HostRates, opts.DefaultRate)
	}
	base := opts.Base
	if base == nil {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &limitedTransport{
			base:      base,
			limiters:  limiters,
			userAgent: opts.UserAgent,
		},
	}
}

type limitedTransport struct {
	base      http.RoundTripper
	limiters  *Limiters
	userAgent string
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	lim := t.limiters.For(req.URL.Hostname())
	if err := lim.Wait(req.Context()); err != nil {
		return nil, err
	}

	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		lim.OnRateLimit()
	case resp.StatusCode < 400:
		lim.OnSuccess()
	}
	return resp, nil
}

func hostKey(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
