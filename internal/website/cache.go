package website

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix = "prospect:website:"
	// missMarker records a lookup that found nothing.
	missMarker = "-"
)

// SearchHealth reports the state of the search engine behind a Lookup.
// *Search implements it.
type SearchHealth interface {
	Available() bool
	Failures() uint64
}

// CachedLookup memoises another Lookup in Redis. Misses are cached too.
type CachedLookup struct {
	next    Lookup
	rdb     redis.Cmdable
	ttl     time.Duration
	health  SearchHealth
	missTTL time.Duration
}

// CacheOption configures a CachedLookup.
type CacheOption func(*CachedLookup)

// WithSearchHealth keeps a miss for only missTTL when the search engine was
// unavailable or failed while the lookup ran. A missTTL <= 0 skips caching
// such misses.
func WithSearchHealth(h SearchHealth, missTTL time.Duration) CacheOption {
	return func(c *CachedLookup) {
		c.health = h
		c.missTTL = missTTL
	}
}

// NewCachedLookup wraps next with a Redis cache. It returns next unchanged
// when rdb is nil.
func NewCachedLookup(next Lookup, rdb redis.Cmdable, ttl time.Duration, opts ...CacheOption) Lookup {
	if rdb == nil {
		return next
	}
	c := &CachedLookup{next: next, rdb: rdb, ttl: ttl}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CacheKey normalises name and city into the Redis key used for them.
func CacheKey(name, city string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(StripAccents(s))), " ")
	}
	return cacheKeyPrefix + norm(name) + "|" + norm(city)
}

// Resolve implements Lookup.
func (c *CachedLookup) Resolve(ctx context.Context, name, city string) (string, bool) {
	key := CacheKey(name, city)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if val == missMarker {
			return "", false
		}
		return val, true
	case !errors.Is(err, redis.Nil):
		zap.L().Warn("website: cache read failed", zap.String("key", key), zap.Error(err))
	}

	var failuresBefore uint64
	searchUp := true
	if c.health != nil {
		searchUp = c.health.Available()
		failuresBefore = c.health.Failures()
	}

	u, ok := c.next.Resolve(ctx, name, city)
	if ctx.Err() != nil {
		return u, ok
	}

	store, ttl := missMarker, c.ttl
	switch {
	case ok:
		store = u
	case c.health != nil:
		if !searchUp || !c.health.Available() || c.health.Failures() != failuresBefore {
			// The miss may only reflect a search outage.
			if c.missTTL <= 0 {
				return u, ok
			}
			ttl = c.missTTL
		}
	}
	if err := c.rdb.Set(ctx, key, store, ttl).Err(); err != nil {
		zap.L().Warn("website: cache write failed", zap.String("key", key), zap.Error(err))
	}
	return u, ok
}
