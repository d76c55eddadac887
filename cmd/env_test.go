package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/fetcher"
	"github.com/sells-group/prospect-cli/internal/scorer"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func baseConfig() *config.Config {
	return &config.Config{
		Directory: config.DirectoryConfig{
			BaseURL:  "https://recherche-entreprises.api.gouv.fr",
			PageSize: 25,
			MaxPages: 400,
		},
		Search:   config.SearchConfig{BaseURL: "https://html.duckduckgo.com/html/"},
		Scorer:   config.ScorerConfig{Mode: "rules", Provider: "anthropic", MaxTokens: 1024, MaxAttempts: 2},
		Pipeline: config.PipelineConfig{Concurrency: 4},
		Website:  config.WebsiteConfig{TLDs: []string{"fr", "com"}, ProbeTimeoutSecs: 5},
	}
}

func TestBuildScorer_Rules(t *testing.T) {
	withConfig(t, baseConfig())

	sc, err := buildScorer(context.Background())

	require.NoError(t, err)
	assert.IsType(t, &scorer.RuleScorer{}, sc)
}

func TestBuildScorer_AIWithoutKeyFallsBack(t *testing.T) {
	c := baseConfig()
	c.Scorer.Mode = scorerAI
	withConfig(t, c)

	sc, err := buildScorer(context.Background())

	require.NoError(t, err)
	assert.IsType(t, &scorer.RuleScorer{}, sc)
}

func TestBuildScorer_AIAnthropic(t *testing.T) {
	c := baseConfig()
	c.Scorer.Mode = scorerAI
	c.Anthropic.Key = "sk-ant-test"
	c.Anthropic.Model = "claude-sonnet-4-5-20250929"
	withConfig(t, c)

	sc, err := buildScorer(context.Background())

	require.NoError(t, err)
	assert.IsType(t, &scorer.AIScorer{}, sc)
}

func TestBuildScorer_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grades: [oops"), 0o644))
	c := baseConfig()
	c.Scorer.RulesPath = path
	withConfig(t, c)

	_, err := buildScorer(context.Background())

	assert.Error(t, err)
}

func TestInitEnv(t *testing.T) {
	withConfig(t, baseConfig())

	env, err := initEnv(context.Background(), "run", "")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Directory)
	assert.NotNil(t, env.Engine)
	assert.Nil(t, env.redis)

	opts := env.Options(true)
	assert.Equal(t, 4, opts.Concurrency)
	assert.True(t, opts.Contacts)
	assert.Same(t, env.Scorer, opts.Scorer)
}

func TestInitEnv_ScorerOverrideValidated(t *testing.T) {
	withConfig(t, baseConfig())

	_, err := initEnv(context.Background(), "run", "magic")

	assert.Error(t, err)
}

func TestInitRedis_Disabled(t *testing.T) {
	withConfig(t, baseConfig())

	assert.Nil(t, initRedis(context.Background()))
}

func TestInitWebsiteLookup_ExposesSearchHealth(t *testing.T) {
	withConfig(t, baseConfig())

	lookup, search := initWebsiteLookup(fetcher.NewLimiters(nil, 0))

	assert.NotNil(t, lookup)
	require.NotNil(t, search)
	assert.True(t, search.Available())
	assert.Zero(t, search.Failures())
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "recherche-entreprises.api.gouv.fr", hostOf("https://recherche-entreprises.api.gouv.fr"))
	assert.Equal(t, "html.duckduckgo.com", hostOf("https://html.duckduckgo.com/html/"))
	assert.Equal(t, "", hostOf("://bad"))
}
