package resilience

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 503)))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(errors.New("x"), 503), "annuaire: search")))
	assert.True(t, IsTransient(NewRateLimitError(errors.New("x"), 0)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
	assert.False(t, IsTransient(errors.New("invalid siren")))
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.True(t, IsRateLimited(NewRateLimitError(errors.New("x"), time.Second)))
	assert.True(t, IsRateLimited(eris.Wrap(NewTransientError(errors.New("x"), 429), "wrapped")))
	assert.False(t, IsRateLimited(NewTransientError(errors.New("x"), 503)))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{202, 408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestFromResponse(t *testing.T) {
	base := errors.New("status")

	resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"7"}}}
	var rl *RateLimitError
	assert.ErrorAs(t, FromResponse(resp, base), &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)

	resp = &http.Response{StatusCode: 503, Header: http.Header{}}
	var te *TransientError
	assert.ErrorAs(t, FromResponse(resp, base), &te)
	assert.Equal(t, 503, te.StatusCode)

	resp = &http.Response{StatusCode: 404, Header: http.Header{}}
	assert.Equal(t, base, FromResponse(resp, base))
	assert.Equal(t, base, FromResponse(nil, base))
}
