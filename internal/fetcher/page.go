package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"

	"github.com/rotisserie/eris"
)

// ErrNotHTML is returned by FetchPage when the response is not an HTML document.
var ErrNotHTML = eris.New("fetcher: not an html document")

// Page is a fetched HTML document.
type Page struct {
	URL  string
	Body []byte
}

// FetchPage GETs rawURL and returns at most maxBytes of its body. Only
// text/html (or xhtml) responses with a 2xx status are accepted; anti-bot
// interstitials yield ErrBlocked.
func FetchPage(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if blocked, kind := DetectBlock(resp, nil); blocked {
		return nil, eris.Wrapf(ErrBlocked, "fetcher: %s on %s", kind, rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return nil, ErrNotHTML
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "fetcher: %s on %s", kind, rawURL)
	}
	return &Page{URL: resp.Request.URL.String(), Body: body}, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
