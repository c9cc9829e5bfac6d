package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Everything is
// constructor-injected; no package carries global client state.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-record database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the two model passes.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ExtractModel    string `yaml:"extract_model" mapstructure:"extract_model"`
	VerifyModel     string `yaml:"verify_model" mapstructure:"verify_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// JinaConfig holds Jina AI Search settings for URL discovery.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
	MaxResults    int    `yaml:"max_results" mapstructure:"max_results"`
}

// FetchConfig configures the per-source content fetcher.
type FetchConfig struct {
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxConcurrent     int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// PipelineConfig configures verification and merge behavior.
type PipelineConfig struct {
	MinConfidence float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	RunBudget     time.Duration `yaml:"run_budget" mapstructure:"run_budget"`
	SourceTimeout time.Duration `yaml:"source_timeout" mapstructure:"source_timeout"`
	MaxSources    int           `yaml:"max_sources" mapstructure:"max_sources"`
}

// PolicyConfig overrides the built-in domain policy tables.
type PolicyConfig struct {
	// RestrictedDomains are additional domains that must never be scraped.
	RestrictedDomains []string `yaml:"restricted_domains" mapstructure:"restricted_domains"`
	// FirstPartyDomains are the subject's own declared domains.
	FirstPartyDomains []string `yaml:"first_party_domains" mapstructure:"first_party_domains"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "profile-enrich.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.verify_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_output_tokens", 4096)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.max_results", 5)
	v.SetDefault("fetch.user_agent", "ProfileEnrichBot/1.0 (+https://sellsadvisors.com/bot)")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_body_bytes", 512*1024)
	v.SetDefault("fetch.max_concurrent", 5)
	v.SetDefault("fetch.requests_per_second", 1.0)
	v.SetDefault("fetch.cache_ttl", "1h")
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("pipeline.min_confidence", 0.6)
	v.SetDefault("pipeline.run_budget", "5m")
	v.SetDefault("pipeline.source_timeout", "20s")
	v.SetDefault("pipeline.max_sources", 16)

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
