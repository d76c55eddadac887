// Package website finds a company's own website from its name and city.
package website

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Lookup resolves a company website.
type Lookup interface {
	Resolve(ctx context.Context, name, city string) (string, bool)
}

// Resolver tries its strategies in order and returns the first hit.
type Resolver struct {
	strategies []Strategy
}

// NewResolver creates a Resolver over the given strategies.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// DefaultStrategies returns the standard cascade: exact name, acronym,
// name + city, then domain guessing.
func DefaultStrategies(search *Search, prober Prober, excl *Excluder, tlds []string) []Strategy {
	return []Strategy{
		ExactName{Search: search},
		Acronym{Search: search},
		NameCity{Search: search},
		DomainGuess{Prober: prober, Excluder: excl, TLDs: tlds},
	}
}

// Resolve implements Lookup.
func (r *Resolver) Resolve(ctx context.Context, name, city string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			return "", false
		}
		if u, ok := s.TryResolve(ctx, name, city); ok {
			zap.L().Debug("website: resolved",
				zap.String("name", name),
				zap.String("strategy", s.Name()),
				zap.String("url", u),
			)
			return u, true
		}
	}
	return "", false
}
