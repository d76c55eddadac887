package fetcher

import (
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters is a registry of adaptive per-host limiters created on demand.
type Limiters struct {
	mu          sync.Mutex
	rates       map[string]float64
	defaultRate float64
	byHost      map[string]*AdaptiveLimiter
}

// NewLimiters creates a registry. A rate <= 0 means unlimited. Hosts listed
// in hostRates never run above their rate; hosts on defaultRate may ramp up.
func NewLimiters(hostRates map[string]float64, defaultRate float64) *Limiters {
	rates := make(map[string]float64, len(hostRates))
	for h, r := range hostRates {
		rates[strings.ToLower(h)] = r
	}
	return &Limiters{
		rates:       rates,
		defaultRate: defaultRate,
		byHost:      make(map[string]*AdaptiveLimiter),
	}
}

// For returns the limiter for host, creating it on first use.
func (l *Limiters) For(host string) *AdaptiveLimiter {
	key := hostKey(host)

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.byHost[key]; ok {
		return lim
	}

	r, configured := l.rateFor(key)
	limit := rate.Inf
	burst := 1
	if r > 0 {
		limit = rate.Limit(r)
		burst = max(1, int(r))
	}
	newLimiter := NewAdaptiveLimiter
	if configured {
		newLimiter = NewCappedLimiter
	}
	lim := newLimiter(key, limit, burst)
	l.byHost[key] = lim
	return lim
}

// rateFor reports the rate for host and whether it came from hostRates.
func (l *Limiters) rateFor(host string) (float64, bool) {
	if r, ok := l.rates[host]; ok {
		return r, true
	}
	for pattern, r := range l.rates {
		if strings.HasPrefix(pattern, ".") && strings.HasSuffix(host, pattern) {
			return r, true
		}
	}
	return l.defaultRate, false
}
