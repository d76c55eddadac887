// Package ddg scrapes the DuckDuckGo HTML endpoint for organic result links.
package ddg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Client defines the web search operation.
type Client interface {
	// Search returns the outbound result URLs for query, in page order.
	Search(ctx context.Context, query string) ([]string, error)
}

// Option configures the search client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryDelay sets the wait before retrying a 202 "try again" answer.
func WithRetryDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.retryDelay = d
	}
}

// WithUserAgent sets the browser User-Agent sent with each query.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL    string
	http       *http.Client
	retryDelay time.Duration
	userAgent  string
}

// NewClient creates a search client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    "https://html.duckduckgo.com/html/",
		http:       &http.Client{Timeout: 8 * time.Second},
		retryDelay: 5 * time.Second,
		userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) ([]string, error) {
	policy := resilience.TransientPolicy(c.retryDelay)
	policy.ShouldRetry = func(err error) bool {
		var te *resilience.TransientError
		return errors.As(err, &te) && te.StatusCode == http.StatusAccepted
	}
	policy.OnRetry = resilience.RetryLogger("ddg", "search")

	body, err := resilience.DoVal(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return ParseResults(body)
}

func (c *httpClient) fetch(ctx context.Context, query string) ([]byte, error) {
	reqURL := c.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ddg: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ddg: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resilience.FromResponse(resp, eris.Errorf("ddg: unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, eris.Wrap(err, "ddg: read response body")
	}
	return body, nil
}

// ParseResults extracts outbound http(s) targets from a results page.
// DuckDuckGo wraps them as "/l/?uddg=<escaped target>"; plain links are
// kept as-is. Duplicates are dropped, order is preserved.
func ParseResults(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ddg: parse html")
	}

	var out []string
	seen := make(map[string]struct{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				target := decodeTarget(a.Val)
				if target == "" {
					continue
				}
				if _, dup := seen[target]; !dup {
					seen[target] = struct{}{}
					out = append(out, target)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return out, nil
}

func decodeTarget(href string) string {
	if strings.Contains(href, "uddg=") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("uddg")
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}
