package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Directory  DirectoryConfig  `yaml:"directory" mapstructure:"directory"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Website    WebsiteConfig    `yaml:"website" mapstructure:"website"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DirectoryConfig configures the company directory API client and the
// paginated resolver that drives it.
type DirectoryConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	MaxPages    int     `yaml:"max_pages" mapstructure:"max_pages"`
	PageDelayMS int     `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Overfetch   int     `yaml:"overfetch" mapstructure:"overfetch"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig configures the web search engine used for website discovery.
type SearchConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	StepDelayMS  int     `yaml:"step_delay_ms" mapstructure:"step_delay_ms"`
	RetryDelayMS int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// WebsiteConfig configures website resolution and contact extraction.
type WebsiteConfig struct {
	ProbeTimeoutSecs int      `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
	TLDs             []string `yaml:"tlds" mapstructure:"tlds"`
	ExcludeDomains   []string `yaml:"exclude_domains" mapstructure:"exclude_domains"`
	LogoBaseURL      string   `yaml:"logo_base_url" mapstructure:"logo_base_url"`
	Contacts         bool     `yaml:"contacts" mapstructure:"contacts"`
}

// ScorerConfig selects and tunes the grading strategy.
type ScorerConfig struct {
	Mode                 string  `yaml:"mode" mapstructure:"mode"`
	Provider             string  `yaml:"provider" mapstructure:"provider"`
	RulesPath            string  `yaml:"rules_path" mapstructure:"rules_path"`
	MaxTokens            int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimitBackoffSecs int     `yaml:"rate_limit_backoff_secs" mapstructure:"rate_limit_backoff_secs"`
	MaxAttempts          int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec           float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures per-record parallelism.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// RedisConfig configures the optional website lookup cache. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// NotionConfig holds Notion API credentials and the prospect database ID.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	ProspectDB string `yaml:"prospect_db" mapstructure:"prospect_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServerConfig configures the HTTP job trigger.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	OutputDir   string   `yaml:"output_dir" mapstructure:"output_dir"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("directory.base_url", "https://recherche-entreprises.api.gouv.fr")
	v.SetDefault("directory.page_size", 25)
	v.SetDefault("directory.max_pages", 400)
	v.SetDefault("directory.page_delay_ms", 150)
	v.SetDefault("directory.timeout_secs", 10)
	v.SetDefault("directory.rate_per_sec", 7)
	v.SetDefault("directory.overfetch", 3)
	v.SetDefault("directory.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.step_delay_ms", 1500)
	v.SetDefault("search.retry_delay_ms", 5000)
	v.SetDefault("search.rate_per_sec", 0.5)
	v.SetDefault("search.timeout_secs", 8)
	v.SetDefault("search.user_agent", browserUserAgent)
	v.SetDefault("website.probe_timeout_secs", 5)
	v.SetDefault("website.tlds", []string{"fr", "com", "org"})
	v.SetDefault("website.logo_base_url", "https://logo.clearbit.com")
	v.SetDefault("website.contacts", false)
	v.SetDefault("scorer.mode", "rules")
	v.SetDefault("scorer.provider", "anthropic")
	v.SetDefault("scorer.max_tokens", 1024)
	v.SetDefault("scorer.rate_limit_backoff_secs", 10)
	v.SetDefault("scorer.max_attempts", 2)
	v.SetDefault("scorer.rate_per_sec", 1)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("redis.ttl_hours", 168)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.output_dir", "outputs")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "run",
// "lookup" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Scorer.Mode {
	case "rules", "ai":
	default:
		problems = append(problems, fmt.Sprintf("scorer.mode must be rules or ai, got %q", c.Scorer.Mode))
	}
	switch c.Scorer.Provider {
	case "anthropic", "gemini":
	default:
		problems = append(problems, fmt.Sprintf("scorer.provider must be anthropic or gemini, got %q", c.Scorer.Provider))
	}
	if c.Directory.PageSize <= 0 || c.Directory.MaxPages <= 0 {
		problems = append(problems, "directory.page_size and directory.max_pages must be > 0")
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 32 {
		problems = append(problems, "pipeline.concurrency must be between 1 and 32")
	}

	switch mode {
	case "run", "lookup":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.OutputDir == "" {
			problems = append(problems, "server.output_dir is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// AIConfigured reports whether the selected LLM provider has credentials.
func (c *Config) AIConfigured() bool {
	if c.Scorer.Provider == "gemini" {
		return c.Gemini.Key != ""
	}
	return c.Anthropic.Key != ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
