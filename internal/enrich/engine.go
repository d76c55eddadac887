// Package enrich completes resolved company records with financial history,
// director details, website, logo and optional contact details.
package enrich

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resolve"
	"github.com/sells-group/prospect-cli/internal/website"
	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

// Engine enriches one record at a time. It is safe for concurrent use as
// long as its collaborators are.
type Engine struct {
	dir       annuaire.Client
	directors *resolve.DirectorFinder
	sites     website.Lookup
	contacts  *ContactExtractor
	logoBase  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithWebsiteLookup enables website resolution.
func WithWebsiteLookup(l website.Lookup) Option {
	return func(e *Engine) {
		e.sites = l
	}
}

// WithContacts enables home-page contact extraction.
func WithContacts(c *ContactExtractor) Option {
	return func(e *Engine) {
		e.contacts = c
	}
}

// WithLogoBaseURL sets the logo-by-domain service; empty disables logos.
func WithLogoBaseURL(u string) Option {
	return func(e *Engine) {
		e.logoBase = u
	}
}

// WithDirectorFinder overrides the director finder built from the directory.
func WithDirectorFinder(f *resolve.DirectorFinder) Option {
	return func(e *Engine) {
		e.directors = f
	}
}

// NewEngine creates an Engine backed by the directory client dir.
func NewEngine(dir annuaire.Client, opts ...Option) *Engine {
	e := &Engine{
		dir:       dir,
		directors: resolve.NewDirectorFinder(dir),
		logoBase:  "https://logo.clearbit.com",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich gathers everything known about rec from secondary sources. Contact
// extraction runs only when contacts is set and an extractor is configured.
// Every failure is logged and leaves the corresponding fields empty.
func (e *Engine) Enrich(ctx context.Context, rec model.CompanyRecord, contacts bool) model.EnrichmentResult {
	res := e.registry(ctx, rec)

	site := rec.Website
	if site == "" && e.sites != nil && ctx.Err() == nil {
		if u, ok := e.sites.Resolve(ctx, rec.Name, rec.Address.City); ok {
			site = u
			res.Website = u
		}
	}
	if site == "" {
		return res
	}
	res.Logo = website.Logo(e.logoBase, site)

	if contacts && e.contacts != nil && ctx.Err() == nil {
		found, err := e.contacts.Extract(ctx, site)
		if err != nil {
			zap.L().Debug("enrich: contact extraction failed",
				zap.String("siren", rec.SIREN),
				zap.String("stage", "contacts"),
				zap.String("url", site),
				zap.Error(err),
			)
		} else {
			res = model.Combine(res, model.EnrichmentResult{
				Phone:       found.Phone,
				Email:       found.Email,
				Description: found.Description,
			})
		}
	}
	return res
}

// Record enriches rec and merges the result into it.
func (e *Engine) Record(ctx context.Context, rec model.CompanyRecord, contacts bool) model.CompanyRecord {
	return model.Merge(rec, e.Enrich(ctx, rec, contacts))
}

// registry performs the secondary directory lookup: trend, latest accounts
// and director.
func (e *Engine) registry(ctx context.Context, rec model.CompanyRecord) model.EnrichmentResult {
	var res model.EnrichmentResult
	if e.dir == nil || rec.SIREN == "" {
		return res
	}

	co, err := e.dir.Lookup(ctx, rec.SIREN)
	if err != nil {
		level := zap.L().Warn
		if errors.Is(err, annuaire.ErrNotFound) {
			level = zap.L().Debug
		}
		level("enrich: directory lookup failed",
			zap.String("siren", rec.SIREN),
			zap.String("stage", "lookup"),
			zap.Error(err),
		)
		return res
	}
	// A full-text query can surface a different company first.
	if co.SIREN != rec.SIREN {
		zap.L().Debug("enrich: lookup returned another company",
			zap.String("siren", rec.SIREN),
			zap.String("stage", "lookup"),
			zap.String("got", co.SIREN),
		)
		return res
	}

	res.Trend = Trend(co.FinancesByYear())
	latest := resolve.RecordFromCompany(*co)
	res.Revenue = latest.Revenue
	res.NetResult = latest.NetResult

	if rec.Director == "" || rec.DirectorAge == nil {
		if d, ok := e.directors.Find(ctx, rec.SIREN, co.Dirigeants); ok {
			res.Director = d.Label
			res.DirectorAge = d.Age
		}
	}
	return res
}
