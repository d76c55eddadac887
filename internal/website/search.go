package website

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/ddg"
)

// Search runs web search queries for the search-backed strategies. Queries
// are paced by a shared limiter and guarded by a circuit breaker; results
// are filtered through the Excluder.
type Search struct {
	client  ddg.Client
	excl    *Excluder
	breaker *resilience.CircuitBreaker
	pace    *rate.Limiter

	failures atomic.Uint64
}

// NewSearch creates a Search. A stepDelay of zero disables pacing.
func NewSearch(client ddg.Client, excl *Excluder, stepDelay time.Duration) *Search {
	pace := rate.NewLimiter(rate.Inf, 1)
	if stepDelay > 0 {
		pace = rate.NewLimiter(rate.Every(stepDelay), 1)
	}
	return &Search{
		client: client,
		excl:   excl,
		breaker: resilience.NewCircuitBreaker(resilience.BreakerConfig{
			Name:             "ddg",
			FailureThreshold: 5,
			ResetTimeout:     2 * time.Minute,
		}),
		pace: pace,
	}
}

// Available reports whether the search engine is currently usable.
func (s *Search) Available() bool {
	return s.breaker.State() != resilience.CircuitOpen
}

// Failures counts queries that failed or were refused by the open breaker.
func (s *Search) Failures() uint64 {
	return s.failures.Load()
}

// First returns the first non-excluded result for query.
func (s *Search) First(ctx context.Context, query string) (string, bool) {
	results, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]string, error) {
		if err := s.pace.Wait(ctx); err != nil {
			return nil, err
		}
		return s.client.Search(ctx, query)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		s.failures.Add(1)
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			zap.L().Debug("website: search failed", zap.String("query", query), zap.Error(err))
		}
		return "", false
	}

	for _, r := range results {
		if !s.excl.IsExcluded(r) {
			return r, true
		}
	}
	return "", false
}
