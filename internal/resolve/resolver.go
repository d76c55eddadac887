// Package resolve turns a SearchFilter into company records by paging
// through the directory API and applying the filters it cannot express.
package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

// Config tunes pagination.
type Config struct {
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
	// Overfetch multiplies the cap in post-filter revenue mode so enough
	// records survive the later revenue filter.
	Overfetch int
}

// DefaultConfig matches the directory API limits: 25 per page, 400 pages.
func DefaultConfig() Config {
	return Config{PageSize: 25, MaxPages: 400, PageDelay: 150 * time.Millisecond, Overfetch: 3}
}

// Resolver is the paginated, post-filtered directory search.
type Resolver struct {
	dir       annuaire.Client
	directors *DirectorFinder
	cfg       Config
	now       func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(dir annuaire.Client, cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = 1
	}
	return &Resolver{dir: dir, directors: NewDirectorFinder(dir), cfg: cfg, now: time.Now}
}

// Target returns how many records Resolve collects for f.
func (r *Resolver) Target(f model.SearchFilter) int {
	if f.Mode() == model.RevenuePost {
		return f.Cap * r.cfg.Overfetch
	}
	return f.Cap
}

// Resolve pages through the directory until Target(f) records pass the
// post-filters, a short page signals exhaustion, or MaxPages is reached.
// Only a failure on the first page is returned as an error; later page
// failures end pagination and the records gathered so far are returned.
func (r *Resolver) Resolve(ctx context.Context, f model.SearchFilter) ([]model.CompanyRecord, error) {
	target := r.Target(f)
	params, divisionPrefix := r.baseParams(f)
	seen := make(map[string]struct{})
	var out []model.CompanyRecord

	log := zap.L().With(zap.String("stage", "resolve"))

	for page := 1; page <= r.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "resolve: cancelled")
		}

		params.Page = page
		resp, err := r.dir.Search(ctx, params)
		if err != nil {
			if page == 1 {
				return nil, eris.Wrap(err, "resolve: directory unavailable")
			}
			log.Warn("directory page failed, returning partial results",
				zap.Int("page", page), zap.Int("collected", len(out)), zap.Error(err))
			break
		}
		if msg := resp.APIError(); msg != "" {
			log.Warn("directory declared an error, stopping", zap.Int("page", page), zap.String("erreur", msg))
			break
		}

		for _, co := range resp.Results {
			if co.SIREN == "" {
				continue
			}
			if _, dup := seen[co.SIREN]; dup {
				continue
			}
			seen[co.SIREN] = struct{}{}

			rec, ok := r.accept(ctx, f, divisionPrefix, co)
			if !ok {
				continue
			}
			out = append(out, rec)
			if len(out) >= target {
				break
			}
		}

		log.Debug("directory page processed",
			zap.Int("page", page), zap.Int("results", len(resp.Results)), zap.Int("collected", len(out)))

		if len(out) >= target || len(resp.Results) < r.cfg.PageSize {
			break
		}
		if !sleep(ctx, r.cfg.PageDelay) {
			return out, eris.Wrap(ctx.Err(), "resolve: cancelled")
		}
	}

	if len(out) > target {
		out = out[:target]
	}
	return out, nil
}

// baseParams builds the server-side part of the query. The second return is
// the "NN." prefix to post-filter on when only a 2-digit division was asked.
func (r *Resolver) baseParams(f model.SearchFilter) (annuaire.SearchParams, string) {
	p := annuaire.SearchParams{
		PerPage:          r.cfg.PageSize,
		ActiveOnly:       true,
		EmployeeBrackets: f.Brackets(),
		Region:           f.Region,
	}

	var prefix string
	sector := strings.ToUpper(strings.TrimSpace(f.Sector))
	switch {
	case sector == "":
	case strings.Contains(sector, "."):
		p.Activity = sector
	default:
		if section := model.SectionForDivision(sector); section != "" {
			p.Section = section
			prefix = sector + "."
		} else {
			zap.L().Warn("sector code has no NAF section, ignoring", zap.String("sector", f.Sector))
		}
	}

	if f.LegalForm != "" {
		p.NatureCodes = model.NatureCodes(f.LegalForm)
		if len(p.NatureCodes) == 0 {
			zap.L().Warn("unknown legal form, ignoring", zap.String("legal_form", f.LegalForm))
		}
	}

	if f.Mode() == model.RevenueServer {
		p.RevenueMin = f.RevenueMin
		p.RevenueMax = f.RevenueMax
	}
	return p, prefix
}

// accept applies the post-filters and builds the record.
func (r *Resolver) accept(ctx context.Context, f model.SearchFilter, divisionPrefix string, co annuaire.Company) (model.CompanyRecord, bool) {
	// The API matches a region on any establishment; we want the headquarters.
	if f.Region != "" && !model.RegionHasDepartment(f.Region, co.Siege.Departement) {
		return model.CompanyRecord{}, false
	}
	if divisionPrefix != "" && !strings.HasPrefix(co.ActivitePrincipale, divisionPrefix) {
		return model.CompanyRecord{}, false
	}

	rec := RecordFromCompany(co)

	if f.MinCompanyAge > 0 {
		age := rec.CompanyAge(r.now())
		if age < 0 || age < f.MinCompanyAge {
			return model.CompanyRecord{}, false
		}
	}

	if d, ok := r.directors.Find(ctx, co.SIREN, co.Dirigeants); ok {
		rec.Director = d.Label
		rec.DirectorAge = d.Age
	}
	if !f.DirectorAgeMatches(rec.DirectorAge) {
		return model.CompanyRecord{}, false
	}
	return rec, true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
