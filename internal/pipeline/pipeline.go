// Package pipeline composes resolution, enrichment and scoring into one run.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/scorer"
)

// ErrNoResults is returned when the resolver finds no company.
var ErrNoResults = eris.New("pipeline: no companies matched the filter")

// Resolver lists companies matching a filter.
type Resolver interface {
	Resolve(ctx context.Context, f model.SearchFilter) ([]model.CompanyRecord, error)
}

// Enricher completes a record. It must never return a record with fewer
// populated fields than it was given.
type Enricher interface {
	Record(ctx context.Context, rec model.CompanyRecord, contacts bool) model.CompanyRecord
}

// Options tune one run.
type Options struct {
	// Concurrency bounds per-record enrichment and scoring. Default 4.
	Concurrency int
	// Scorer grades records. Defaults to a RuleScorer with the default table.
	Scorer scorer.Scorer
	// Contacts enables home-page contact extraction.
	Contacts bool
	// RevenueMode overrides the filter's mode when set.
	RevenueMode model.RevenueMode
	// Progress is called after each record completes.
	Progress func(done, total int)
}

// Stats summarise a run.
type Stats struct {
	Total         int `json:"total"`
	A             int `json:"score_a"`
	B             int `json:"score_b"`
	C             int `json:"score_c"`
	D             int `json:"score_d"`
	WebsitesFound int `json:"websites_found"`
}

// Result is the output of a run, in resolution order.
type Result struct {
	Records []model.ScoredRecord `json:"prospects"`
	Stats   Stats                `json:"stats"`
}

// Pipeline runs SearchResolver, EnrichmentEngine and Scorer in sequence.
type Pipeline struct {
	resolver Resolver
	enricher Enricher
}

// New creates a Pipeline.
func New(resolver Resolver, enricher Enricher) *Pipeline {
	return &Pipeline{resolver: resolver, enricher: enricher}
}

// Run resolves companies for f, then enriches and scores each one. Only a
// resolver failure or cancellation fails the run; per-record problems
// degrade that record.
func (p *Pipeline) Run(ctx context.Context, f model.SearchFilter, opts Options) (*Result, error) {
	opts = withDefaults(opts)
	if opts.RevenueMode != "" {
		f.RevenueMode = opts.RevenueMode
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := p.resolver.Resolve(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve")
	}
	if len(records) == 0 {
		return nil, ErrNoResults
	}
	zap.L().Info("pipeline: resolved companies",
		zap.Int("count", len(records)),
		zap.String("revenue_mode", string(f.Mode())),
		zap.Duration("elapsed", time.Since(start)),
	)

	var scored []model.ScoredRecord
	if f.Mode() == model.RevenuePost {
		scored, err = p.qualifyInBand(ctx, records, f, opts)
	} else {
		scored, err = p.qualifyAll(ctx, records, opts, nil)
	}
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, ErrNoResults
	}

	res := &Result{Records: scored, Stats: Summarize(scored)}
	zap.L().Info("pipeline: run complete",
		zap.Int("total", res.Stats.Total),
		zap.Int("score_a", res.Stats.A),
		zap.Int("score_b", res.Stats.B),
		zap.Int("websites", res.Stats.WebsitesFound),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// Qualify enriches and scores a single record.
func (p *Pipeline) Qualify(ctx context.Context, rec model.CompanyRecord, opts Options) model.ScoredRecord {
	opts = withDefaults(opts)
	rec = p.enricher.Record(ctx, rec, opts.Contacts)
	return model.ScoredRecord{Record: rec, Score: opts.Scorer.Score(ctx, rec)}
}

// qualifyAll enriches and scores records concurrently, keeping resolution
// order. When keep is set, enriched records it rejects are dropped unscored.
func (p *Pipeline) qualifyAll(ctx context.Context, records []model.CompanyRecord, opts Options, keep func(model.CompanyRecord) bool) ([]model.ScoredRecord, error) {
	out := make([]model.ScoredRecord, len(records))
	kept := make([]bool, len(records))
	var done atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, rec := range records {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rec = p.enricher.Record(gCtx, rec, opts.Contacts)
			if keep == nil || keep(rec) {
				out[i] = model.ScoredRecord{Record: rec, Score: opts.Scorer.Score(gCtx, rec)}
				kept[i] = true
			}
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(records))
			}
			return nil
		})
	}
	// Workers only fail on cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for i := range out {
		if kept[i] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n], nil
}

// qualifyInBand serves post revenue mode. Candidates whose known revenue is
// out of band are dropped before enrichment; the rest are qualified in
// batches sized to the remaining cap, re-checking the band once enrichment
// has filled revenue in, until the cap is met or candidates run out.
func (p *Pipeline) qualifyInBand(ctx context.Context, records []model.CompanyRecord, f model.SearchFilter, opts Options) ([]model.ScoredRecord, error) {
	candidates := make([]model.CompanyRecord, 0, len(records))
	for _, rec := range records {
		if f.RevenueMatches(rec.Revenue) {
			candidates = append(candidates, rec)
		}
	}
	zap.L().Debug("pipeline: revenue pre-filter",
		zap.Int("resolved", len(records)),
		zap.Int("candidates", len(candidates)),
	)

	inBand := func(rec model.CompanyRecord) bool { return f.RevenueMatches(rec.Revenue) }
	out := make([]model.ScoredRecord, 0, f.Cap)
	for len(candidates) > 0 && len(out) < f.Cap {
		n := min(f.Cap-len(out), len(candidates))
		batch, err := p.qualifyAll(ctx, candidates[:n], opts, inBand)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		candidates = candidates[n:]
	}
	return out, nil
}

func withDefaults(opts Options) Options {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Scorer == nil {
		opts.Scorer = scorer.NewRuleScorer(scorer.DefaultRules())
	}
	return opts
}

// Summarize counts grades and resolved websites.
func Summarize(records []model.ScoredRecord) Stats {
	s := Stats{Total: len(records)}
	for _, sr := range records {
		switch sr.Score.Grade {
		case model.GradeA:
			s.A++
		case model.GradeB:
			s.B++
		case model.GradeC:
			s.C++
		case model.GradeD:
			s.D++
		}
		if sr.Record.Website != "" {
			s.WebsitesFound++
		}
	}
	return s
}
