package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		resp   *http.Response
		body   string
		want   bool
		reason BlockType
	}{
		{"nil response", nil, "", false, BlockNone},
		{"cloudflare 403", &http.Response{StatusCode: 403, Header: http.Header{"Cf-Ray": {"abc"}}}, "", true, BlockCloudflare},
		{"cloudflare 503 server", &http.Response{StatusCode: 503, Header: http.Header{"Server": {"cloudflare"}}}, "", true, BlockCloudflare},
		{"challenge page", &http.Response{StatusCode: 200, Header: http.Header{}}, "<p>Checking your browser before accessing</p>", true, BlockCloudflare},
		{"captcha interstitial", &http.Response{StatusCode: 200, Header: http.Header{}}, "<html>Please complete the reCAPTCHA</html>", true, BlockCaptcha},
		{"js shell", &http.Response{StatusCode: 200, Header: http.Header{}}, "<html><noscript>Enable JavaScript</noscript></html>", true, BlockJSShell},
		{"clean page", &http.Response{StatusCode: 200, Header: http.Header{}}, "<html><body>ACME, fabricant depuis 1987.</body></html>", false, BlockNone},
		{
			"captcha widget on a full page",
			&http.Response{StatusCode: 200, Header: http.Header{}},
			"<html><body>" + strings.Repeat("<p>contenu</p>", 600) + `<div class="g-recaptcha"></div></body></html>`,
			false, BlockNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, kind := DetectBlock(tt.resp, []byte(tt.body))
			assert.Equal(t, tt.want, blocked)
			assert.Equal(t, tt.reason, kind)
		})
	}
}

func TestFetchPage_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/cf" {
			w.Header().Set("Cf-Ray", "123")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("<html>captcha required</html>"))
	}))
	defer srv.Close()

	client := NewClient(Options{}, nil)

	_, err := FetchPage(context.Background(), client, srv.URL+"/cf", 1<<20)
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = FetchPage(context.Background(), client, srv.URL+"/", 1<<20)
	assert.ErrorIs(t, err, ErrBlocked)
}
