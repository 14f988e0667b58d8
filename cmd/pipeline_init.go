package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/cache"
	"github.com/sells-group/crm-enrich/internal/enrich"
	"github.com/sells-group/crm-enrich/internal/extract"
	"github.com/sells-group/crm-enrich/internal/monitoring"
	"github.com/sells-group/crm-enrich/internal/pipeline"
	"github.com/sells-group/crm-enrich/internal/prompts"
	"github.com/sells-group/crm-enrich/internal/resilience"
	"github.com/sells-group/crm-enrich/internal/vector"
	"github.com/sells-group/crm-enrich/pkg/anthropic"
	"github.com/sells-group/crm-enrich/pkg/embeddings"
	"github.com/sells-group/crm-enrich/pkg/fireflies"
	"github.com/sells-group/crm-enrich/pkg/scraper"
	"github.com/sells-group/crm-enrich/pkg/zoho"
)

// pipelineEnv holds every initialized collaborator for the lifetime of a
// command.
type pipelineEnv struct {
	Store       cache.Store
	Prompts     prompts.Store
	Tokens      *zoho.TokenManager
	CRM         zoho.Client
	Analyzer    *enrich.Analyzer
	Materials   *vector.Index
	Metrics     *monitoring.Collector
	Coordinator *pipeline.Coordinator
}

// initPipeline builds the full enrichment environment from config. The Zoho
// and Anthropic credentials are required; Fireflies, Firecrawl and the
// embeddings provider are optional and their sources simply stay empty when
// no key is configured.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Zoho.ClientID == "" || cfg.Zoho.ClientSecret == "" || cfg.Zoho.RefreshToken == "" {
		return nil, eris.New("zoho client_id, client_secret and refresh_token are required")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required")
	}

	store, err := openCacheStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, eris.Wrap(err, "migrate cache store")
	}

	promptStore, err := openPromptStore(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := promptStore.Migrate(ctx); err != nil {
		promptStore.Close()
		store.Close()
		return nil, eris.Wrap(err, "migrate prompt store")
	}
	if n, err := promptStore.Seed(ctx); err != nil {
		zap.L().Warn("prompt seeding failed, falling back to built-in templates", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("seeded default prompts", zap.Int("count", n))
	}

	tokens := zoho.NewTokenManager(zoho.Credentials{
		ClientID:     cfg.Zoho.ClientID,
		ClientSecret: cfg.Zoho.ClientSecret,
		RefreshToken: cfg.Zoho.RefreshToken,
		AccountsURL:  cfg.Zoho.AccountsURL,
	},
		zoho.WithRefreshBuffer(time.Duration(cfg.Zoho.RefreshBufferSecs)*time.Second),
		zoho.WithRefreshRetryDelay(time.Duration(cfg.Zoho.RefreshRetrySecs)*time.Second),
	)
	// First refresh happens here so bad credentials fail the command up
	// front instead of surfacing on the first CRM call. This also starts
	// the proactive renewal loop that Close later tears down.
	if err := tokens.Initialize(ctx); err != nil {
		promptStore.Close()
		store.Close()
		tokens.Close()
		return nil, eris.Wrap(err, "zoho credentials rejected")
	}

	crm := zoho.NewClient(tokens,
		zoho.WithAPIDomain(cfg.Zoho.APIDomain),
		zoho.WithRateLimit(float64(cfg.Zoho.RequestsPerSecond)),
		zoho.WithRetry(resilience.FromRetryConfig(
			cfg.Zoho.RetryMaxAttempts, cfg.Zoho.RetryBackoffMs, 0, 0, -1)),
	)

	catalog, err := enrich.LoadCatalog(cfg.Analysis.PricingCatalogPath)
	if err != nil {
		promptStore.Close()
		store.Close()
		tokens.Close()
		return nil, eris.Wrap(err, "load pricing catalog")
	}

	analyzer := enrich.New(anthropic.NewClient(cfg.Anthropic.Key), promptStore, catalog, enrich.Config{
		Model:              cfg.Anthropic.Model,
		MaxTokens:          cfg.Anthropic.MaxTokens,
		Temperature:        cfg.Analysis.Temperature,
		SimilarTemperature: cfg.Analysis.SimilarTemperature,
		MaxSimilar:         cfg.Analysis.MaxSimilar,
		MaxSideChars:       cfg.Extract.MaxDocChars,
		MaxCombinedChars:   cfg.Extract.MaxCombinedChars,
	})

	extractor := extract.NewExtractor(
		extract.WithMaxDocChars(cfg.Extract.MaxDocChars),
		extract.WithMaxCombinedChars(cfg.Extract.MaxCombinedChars),
		extract.WithPdfToTextPath(cfg.Extract.PdfToTextPath),
	)

	opts := []pipeline.Option{}
	if cfg.Fireflies.Key != "" {
		opts = append(opts, pipeline.WithTranscripts(
			fireflies.NewClient(cfg.Fireflies.Key, fireflies.WithBaseURL(cfg.Fireflies.BaseURL))))
	}
	if cfg.Scraper.FirecrawlKey != "" {
		opts = append(opts, pipeline.WithScraper(scraper.NewClient(cfg.Scraper.FirecrawlKey,
			scraper.WithBaseURL(cfg.Scraper.FirecrawlBaseURL),
			scraper.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Scraper.TimeoutSecs) * time.Second,
			}))))
	}

	var materials *vector.Index
	if cfg.Embeddings.Key != "" {
		embedder := embeddings.NewClient(cfg.Embeddings.Key,
			embeddings.WithBaseURL(cfg.Embeddings.BaseURL),
			embeddings.WithModel(cfg.Embeddings.Model),
		)
		materials = vector.New(embedder, cfg.Marketing.IndexPath)
		opts = append(opts, pipeline.WithMaterials(materials))
	}

	metrics := monitoring.NewCollector()
	opts = append(opts, pipeline.WithMetrics(metrics))

	coordinator := pipeline.New(crm, analyzer, store, extractor, pipeline.Config{
		MarketingTopK: cfg.Marketing.TopK,
		MaxMeetings:   cfg.Fireflies.MaxMeetings,
	}, opts...)

	return &pipelineEnv{
		Store:       store,
		Prompts:     promptStore,
		Tokens:      tokens,
		CRM:         crm,
		Analyzer:    analyzer,
		Materials:   materials,
		Metrics:     metrics,
		Coordinator: coordinator,
	}, nil
}

func (e *pipelineEnv) Close() {
	e.Tokens.Close()
	if err := e.Prompts.Close(); err != nil {
		zap.L().Warn("prompt store close failed", zap.Error(err))
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("cache store close failed", zap.Error(err))
	}
}

func openCacheStore(ctx context.Context) (cache.Store, error) {
	switch cfg.Cache.Driver {
	case "postgres":
		return cache.NewPostgres(ctx, cfg.Cache.DatabaseURL)
	case "", "sqlite":
		return cache.NewSQLite(cfg.Cache.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

func openPromptStore(ctx context.Context) (prompts.Store, error) {
	switch cfg.Cache.Driver {
	case "postgres":
		return prompts.NewPostgres(ctx, cfg.Cache.DatabaseURL)
	case "", "sqlite":
		return prompts.NewSQLite(cfg.Cache.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}
