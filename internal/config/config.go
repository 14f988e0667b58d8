package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Zoho       ZohoConfig       `yaml:"zoho" mapstructure:"zoho"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Fireflies  FirefliesConfig  `yaml:"fireflies" mapstructure:"fireflies"`
	Scraper    ScraperConfig    `yaml:"scraper" mapstructure:"scraper"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Marketing  MarketingConfig  `yaml:"marketing" mapstructure:"marketing"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the analysis cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ZohoConfig holds Zoho CRM OAuth credentials and endpoints.
type ZohoConfig struct {
	ClientID          string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret      string `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken      string `yaml:"refresh_token" mapstructure:"refresh_token"`
	AccountsURL       string `yaml:"accounts_url" mapstructure:"accounts_url"`
	APIDomain         string `yaml:"api_domain" mapstructure:"api_domain"`
	RefreshBufferSecs int    `yaml:"refresh_buffer_secs" mapstructure:"refresh_buffer_secs"`
	RefreshRetrySecs  int    `yaml:"refresh_retry_secs" mapstructure:"refresh_retry_secs"`
	RequestsPerSecond int    `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	RetryMaxAttempts  int    `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs    int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// FirefliesConfig holds Fireflies.ai GraphQL API settings.
type FirefliesConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxMeetings int    `yaml:"max_meetings" mapstructure:"max_meetings"`
}

// ScraperConfig configures website content fetching.
type ScraperConfig struct {
	FirecrawlKey     string `yaml:"firecrawl_key" mapstructure:"firecrawl_key"`
	FirecrawlBaseURL string `yaml:"firecrawl_base_url" mapstructure:"firecrawl_base_url"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EmbeddingsConfig holds the embeddings provider settings.
type EmbeddingsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// MarketingConfig configures the marketing materials index.
type MarketingConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
	IndexPath   string `yaml:"index_path" mapstructure:"index_path"`
	TopK        int    `yaml:"top_k" mapstructure:"top_k"`
}

// AnalysisConfig configures the enrichment generation calls.
type AnalysisConfig struct {
	Temperature        float64 `yaml:"temperature" mapstructure:"temperature"`
	SimilarTemperature float64 `yaml:"similar_temperature" mapstructure:"similar_temperature"`
	MaxSimilar         int     `yaml:"max_similar" mapstructure:"max_similar"`
	PricingCatalogPath string  `yaml:"pricing_catalog_path" mapstructure:"pricing_catalog_path"`
}

// ExtractConfig configures attachment text extraction.
type ExtractConfig struct {
	MaxDocChars      int    `yaml:"max_doc_chars" mapstructure:"max_doc_chars"`
	MaxCombinedChars int    `yaml:"max_combined_chars" mapstructure:"max_combined_chars"`
	PdfToTextPath    string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// BatchConfig configures batch enrichment.
type BatchConfig struct {
	MaxConcurrentRecords int `yaml:"max_concurrent_records" mapstructure:"max_concurrent_records"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRMENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.database_url", "crm-enrich.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_records", 5)
	v.SetDefault("zoho.accounts_url", "https://accounts.zoho.com")
	v.SetDefault("zoho.api_domain", "https://www.zohoapis.com")
	v.SetDefault("zoho.refresh_buffer_secs", 300)
	v.SetDefault("zoho.refresh_retry_secs", 60)
	v.SetDefault("zoho.requests_per_second", 10)
	v.SetDefault("zoho.retry_max_attempts", 3)
	v.SetDefault("zoho.retry_backoff_ms", 500)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("fireflies.base_url", "https://api.fireflies.ai/graphql")
	v.SetDefault("fireflies.max_meetings", 5)
	v.SetDefault("scraper.firecrawl_base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("scraper.timeout_secs", 30)
	v.SetDefault("embeddings.base_url", "https://api.jina.ai/v1")
	v.SetDefault("embeddings.model", "jina-embeddings-v3")
	v.SetDefault("marketing.catalog_path", "marketing_materials.xlsx")
	v.SetDefault("marketing.index_path", "marketing_index.json")
	v.SetDefault("marketing.top_k", 5)
	v.SetDefault("analysis.temperature", 0.3)
	v.SetDefault("analysis.similar_temperature", 0.5)
	v.SetDefault("analysis.max_similar", 3)
	v.SetDefault("analysis.pricing_catalog_path", "pricing_catalog.yaml")
	v.SetDefault("extract.max_doc_chars", 15000)
	v.SetDefault("extract.max_combined_chars", 30000)
	v.SetDefault("extract.pdftotext_path", "pdftotext")

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
