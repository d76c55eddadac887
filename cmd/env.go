package main

import (
	"context"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/fetcher"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/resolve"
	"github.com/sells-group/prospect-cli/internal/scorer"
	"github.com/sells-group/prospect-cli/internal/website"
	"github.com/sells-group/prospect-cli/pkg/annuaire"
	anthropicpkg "github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/ddg"
	"github.com/sells-group/prospect-cli/pkg/gemini"
)

const (
	scorerAI = "ai"
	// outageMissTTL bounds how long a miss seen during a search outage is
	// cached.
	outageMissTTL = 5 * time.Minute
)

// prospectEnv holds the initialized clients and the pipeline needed by the
// run/lookup/serve commands.
type prospectEnv struct {
	Directory annuaire.Client
	Engine    *enrich.Engine
	Pipeline  *pipeline.Pipeline
	Scorer    scorer.Scorer

	redis *redis.Client
}

// Close releases resources held by the environment.
func (pe *prospectEnv) Close() {
	if pe.redis != nil {
		_ = pe.redis.Close()
	}
}

// Options returns pipeline options using the configured defaults.
func (pe *prospectEnv) Options(contacts bool) pipeline.Options {
	return pipeline.Options{
		Concurrency: cfg.Pipeline.Concurrency,
		Scorer:      pe.Scorer,
		Contacts:    contacts,
	}
}

// initEnv validates the config for mode, builds every client and returns
// the wired pipeline. scorerMode overrides scorer.mode when non-empty.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode, scorerMode string) (*prospectEnv, error) {
	if scorerMode != "" {
		cfg.Scorer.Mode = scorerMode
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	// One registry so the directory budget is shared by the resolver, the
	// engine and the director deep lookups.
	limiters := fetcher.NewLimiters(map[string]float64{
		hostOf(cfg.Directory.BaseURL): cfg.Directory.RatePerSec,
		hostOf(cfg.Search.BaseURL):    cfg.Search.RatePerSec,
	}, 0)

	dir := annuaire.NewClient(
		annuaire.WithBaseURL(cfg.Directory.BaseURL),
		annuaire.WithHTTPClient(fetcher.NewClient(fetcher.Options{
			UserAgent: cfg.Directory.UserAgent,
			Timeout:   seconds(cfg.Directory.TimeoutSecs),
		}, limiters)),
	)

	resolver := resolve.NewResolver(dir, resolve.Config{
		PageSize:  cfg.Directory.PageSize,
		MaxPages:  cfg.Directory.MaxPages,
		PageDelay: millis(cfg.Directory.PageDelayMS),
		Overfetch: cfg.Directory.Overfetch,
	})

	env := &prospectEnv{Directory: dir}

	lookup, search := initWebsiteLookup(limiters)
	if rdb := initRedis(ctx); rdb != nil {
		env.redis = rdb
		lookup = website.NewCachedLookup(lookup, rdb, time.Duration(cfg.Redis.TTLHours)*time.Hour,
			website.WithSearchHealth(search, outageMissTTL))
	}

	contactHTTP := fetcher.NewClient(fetcher.Options{
		UserAgent: cfg.Search.UserAgent,
		Timeout:   seconds(cfg.Website.ProbeTimeoutSecs),
	}, limiters)

	env.Engine = enrich.NewEngine(dir,
		enrich.WithWebsiteLookup(lookup),
		enrich.WithContacts(enrich.NewContactExtractor(contactHTTP)),
		enrich.WithLogoBaseURL(cfg.Website.LogoBaseURL),
		enrich.WithDirectorFinder(resolve.NewDirectorFinder(dir)),
	)

	sc, err := buildScorer(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Scorer = sc
	env.Pipeline = pipeline.New(resolver, env.Engine)

	return env, nil
}

func initWebsiteLookup(limiters *fetcher.Limiters) (website.Lookup, *website.Search) {
	search := ddg.NewClient(
		ddg.WithBaseURL(cfg.Search.BaseURL),
		ddg.WithUserAgent(cfg.Search.UserAgent),
		ddg.WithRetryDelay(millis(cfg.Search.RetryDelayMS)),
		ddg.WithHTTPClient(fetcher.NewClient(fetcher.Options{
			Timeout: seconds(cfg.Search.TimeoutSecs),
		}, limiters)),
	)
	excl := website.NewExcluder(cfg.Website.ExcludeDomains...)
	prober := website.NewHTTPProber(fetcher.NewClient(fetcher.Options{
		UserAgent: cfg.Search.UserAgent,
		Timeout:   seconds(cfg.Website.ProbeTimeoutSecs),
	}, limiters))

	s := website.NewSearch(search, excl, millis(cfg.Search.StepDelayMS))
	return website.NewResolver(website.DefaultStrategies(s, prober, excl, cfg.Website.TLDs)...), s
}

// initRedis connects the website cache. A missing address or an unreachable
// server disables caching rather than failing the run.
func initRedis(ctx context.Context) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zap.L().Warn("redis unavailable, website cache disabled",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	zap.L().Info("website cache enabled", zap.String("addr", cfg.Redis.Addr))
	return rdb
}

// buildScorer returns the configured Scorer. AI mode without credentials
// falls back to the rule table.
func buildScorer(ctx context.Context) (scorer.Scorer, error) {
	if cfg.Scorer.Mode == scorerAI {
		if cfg.AIConfigured() {
			c, err := newCompleter(ctx)
			if err != nil {
				return nil, err
			}
			return scorer.NewAIScorer(c, scorer.AIConfig{
				MaxAttempts:      cfg.Scorer.MaxAttempts,
				RateLimitBackoff: seconds(cfg.Scorer.RateLimitBackoffSecs),
				RatePerSec:       cfg.Scorer.RatePerSec,
			}), nil
		}
		zap.L().Warn("ai scorer requested without credentials, using rules",
			zap.String("provider", cfg.Scorer.Provider))
	}

	rules, err := scorer.LoadRules(cfg.Scorer.RulesPath)
	if err != nil {
		return nil, err
	}
	return scorer.NewRuleScorer(rules), nil
}

func newCompleter(ctx context.Context) (scorer.Completer, error) {
	switch cfg.Scorer.Provider {
	case "gemini":
		var opts []gemini.Option
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
		}
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key, opts...)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		return scorer.NewGeminiCompleter(client, cfg.Gemini.Model, int32(cfg.Scorer.MaxTokens)), nil
	default:
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		return scorer.NewAnthropicCompleter(client, cfg.Anthropic.Model, int64(cfg.Scorer.MaxTokens)), nil
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
