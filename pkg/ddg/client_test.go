package ddg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsHTML = `<html><body>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.acme-industrie.fr%2F&amp;rut=abc">ACME</a></div>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.societe.com%2Fsociete%2Facme.html&amp;rut=def">societe.com</a></div>
<div class="result"><a href="https://www.linkedin.com/company/acme">LinkedIn</a></div>
<a href="/html/?q=next">Next</a>
<a href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.acme-industrie.fr%2F&amp;rut=zzz">dup</a>
</body></html>`

func TestParseResults(t *testing.T) {
	got, err := ParseResults([]byte(resultsHTML))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.acme-industrie.fr/",
		"https://www.societe.com/societe/acme.html",
		"https://www.linkedin.com/company/acme",
	}, got)
}

func TestSearch_SendsBrowserHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"ACME INDUSTRIE" site officiel`, r.URL.Query().Get("q"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "fr-FR")
		assert.Equal(t, "test-agent", r.UserAgent())
		_, _ = w.Write([]byte(resultsHTML))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/html/"), WithUserAgent("test-agent"))
	got, err := c.Search(context.Background(), `"ACME INDUSTRIE" site officiel`)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearch_RetriesOnceOn202(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write([]byte(resultsHTML))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetryDelay(time.Millisecond))
	got, err := c.Search(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_Persistent202Fails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetryDelay(time.Millisecond))
	_, err := c.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_OtherStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetryDelay(time.Millisecond))
	_, err := c.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
