// Package annuaire provides a client for the French public company
// directory API (recherche-entreprises.api.gouv.fr).
package annuaire

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

// ErrNotFound is returned by Lookup when the directory has no match.
var ErrNotFound = eris.New("annuaire: company not found")

// Client defines the directory operations.
type Client interface {
	// Search returns one page of companies matching params.
	Search(ctx context.Context, params SearchParams) (*SearchResponse, error)
	// Lookup runs a single-result query (typically a SIREN) and returns the
	// first match.
	Lookup(ctx context.Context, query string) (*Company, error)
}

// SearchParams are the server-side filters of one search page.
type SearchParams struct {
	Page    int
	PerPage int
	// Query is the free-text "q" parameter.
	Query string
	// ActiveOnly restricts to companies with etat_administratif=A.
	ActiveOnly       bool
	EmployeeBrackets []string
	// Activity is a full NAF code such as "62.01Z".
	Activity string
	// Section is a NAF section letter such as "J".
	Section string
	// Region is an INSEE region code such as "11". The API matches it on
	// any establishment, not only the headquarters.
	Region      string
	NatureCodes []string
	RevenueMin  *int64
	RevenueMax  *int64
}

// Values encodes params as query-string values.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	if p.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.ActiveOnly {
		v.Set("etat_administratif", "A")
	}
	if len(p.EmployeeBrackets) > 0 {
		v.Set("tranche_effectif_salarie", strings.Join(p.EmployeeBrackets, ","))
	}
	if p.Activity != "" {
		v.Set("activite_principale", p.Activity)
	}
	if p.Section != "" {
		v.Set("section_activite_principale", p.Section)
	}
	if p.Region != "" {
		v.Set("region", p.Region)
	}
	if len(p.NatureCodes) > 0 {
		v.Set("nature_juridique", strings.Join(p.NatureCodes, ","))
	}
	if p.RevenueMin != nil && *p.RevenueMin > 0 {
		v.Set("ca_min", strconv.FormatInt(*p.RevenueMin, 10))
	}
	if p.RevenueMax != nil && *p.RevenueMax > 0 {
		v.Set("ca_max", strconv.FormatInt(*p.RevenueMax, 10))
	}
	return v
}

// Option configures the directory client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryDelay sets the pause before the single retry of a transient failure.
func WithRetryDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.retryDelay = d
	}
}

type httpClient struct {
	baseURL    string
	http       *http.Client
	retryDelay time.Duration
}

// NewClient creates a directory client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    "https://recherche-entreprises.api.gouv.fr",
		http:       &http.Client{Timeout: 10 * time.Second},
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	policy := resilience.TransientPolicy(c.retryDelay)
	policy.OnRetry = resilience.RetryLogger("annuaire", "search")

	return resilience.DoVal(ctx, policy, func(ctx context.Context) (*SearchResponse, error) {
		return c.get(ctx, params.Values())
	})
}

func (c *httpClient) Lookup(ctx context.Context, query string) (*Company, error) {
	resp, err := c.Search(ctx, SearchParams{Query: query, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Results[0], nil
}

func (c *httpClient) get(ctx context.Context, values url.Values) (*SearchResponse, error) {
	reqURL := c.baseURL + "/search?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "annuaire: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "annuaire: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "annuaire: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("annuaire: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
		return nil, resilience.FromResponse(resp, statusErr)
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "annuaire: decode response")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
