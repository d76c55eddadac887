// Package fetcher provides the shared outbound HTTP client: per-host token
// bucket limiters, a default User-Agent and size-capped page retrieval.
package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial, or up to the
// initial rate when capped). On 429 it halves the rate (down to initial/4
// minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	host        string
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
	unlimited   bool
}

// NewAdaptiveLimiter creates an adaptive rate limiter for host.
func NewAdaptiveLimiter(host string, initialRate rate.Limit, burst int) *AdaptiveLimiter {
	if burst < 1 {
		burst = 1
	}
	return &AdaptiveLimiter{
		host:        host,
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
		unlimited:   initialRate == rate.Inf,
	}
}

// NewCappedLimiter creates an adaptive limiter that never exceeds
// initialRate. It is used for hosts with a documented request budget.
func NewCappedLimiter(host string, initialRate rate.Limit, burst int) *AdaptiveLimiter {
	a := NewAdaptiveLimiter(host, initialRate, burst)
	a.maxRate = initialRate
	return a
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to the ceiling.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unlimited {
		return
	}
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unlimited {
		return
	}
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.String("host", a.host),
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}
