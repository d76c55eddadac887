package website

import (
	"context"
	"fmt"
	"strings"
)

// Strategy is one step of the website cascade.
type Strategy interface {
	Name() string
	TryResolve(ctx context.Context, name, city string) (string, bool)
}

// ExactName searches for the quoted company name.
type ExactName struct {
	Search *Search
}

func (s ExactName) Name() string { return "exact_name" }

func (s ExactName) TryResolve(ctx context.Context, name, _ string) (string, bool) {
	base := BaseName(name)
	if base == "" {
		return "", false
	}
	return s.Search.First(ctx, fmt.Sprintf("%q site officiel", base))
}

// Acronym searches for each parenthetical alias of the name on its own.
type Acronym struct {
	Search *Search
}

func (s Acronym) Name() string { return "acronym" }

func (s Acronym) TryResolve(ctx context.Context, name, _ string) (string, bool) {
	for _, a := range Acronyms(name) {
		if ctx.Err() != nil {
			return "", false
		}
		if u, ok := s.Search.First(ctx, a); ok {
			return u, true
		}
	}
	return "", false
}

// NameCity searches for the name followed by the headquarters city.
type NameCity struct {
	Search *Search
}

func (s NameCity) Name() string { return "name_city" }

func (s NameCity) TryResolve(ctx context.Context, name, city string) (string, bool) {
	base := BaseName(name)
	city = strings.TrimSpace(city)
	if base == "" || city == "" {
		return "", false
	}
	return s.Search.First(ctx, base+" "+city)
}

// DomainGuess probes https://www.<slug>.<tld> for each candidate slug and TLD.
type DomainGuess struct {
	Prober   Prober
	Excluder *Excluder
	TLDs     []string
}

func (s DomainGuess) Name() string { return "domain_guess" }

func (s DomainGuess) TryResolve(ctx context.Context, name, _ string) (string, bool) {
	for _, slug := range Slugs(name) {
		// DNS labels are limited to 63 bytes.
		if len(slug) > 63 {
			continue
		}
		for _, tld := range s.TLDs {
			if ctx.Err() != nil {
				return "", false
			}
			final, ok := s.Prober.Probe(ctx, "https://www."+slug+"."+strings.TrimPrefix(tld, "."))
			if ok && !s.Excluder.IsExcluded(final) {
				return final, true
			}
		}
	}
	return "", false
}
