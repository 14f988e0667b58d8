// Package server exposes the enrichment pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/monitoring"
	"github.com/sells-group/crm-enrich/internal/pipeline"
	"github.com/sells-group/crm-enrich/internal/prompts"
	"github.com/sells-group/crm-enrich/internal/vector"
	"github.com/sells-group/crm-enrich/pkg/zoho"
)

// Enricher runs the enrichment pipeline for one record or website.
type Enricher interface {
	EnrichLead(ctx context.Context, id string, opts pipeline.Options) (*pipeline.EnrichedRecord, error)
	EnrichDeal(ctx context.Context, id string, opts pipeline.Options) (*pipeline.EnrichedRecord, error)
	EnrichWebsite(ctx context.Context, url string, opts pipeline.Options) (*pipeline.EnrichedRecord, error)
}

// RecordUpdater writes field changes back to the CRM.
type RecordUpdater interface {
	UpdateRecord(ctx context.Context, module, id string, fields map[string]any) error
}

// TokenStatuser reports credential health.
type TokenStatuser interface {
	Status() zoho.TokenStatus
}

// MaterialIndex is the marketing collateral surface the server needs.
type MaterialIndex interface {
	Search(ctx context.Context, query string, topK int) ([]model.MarketingMaterial, error)
	IndexMaterials(ctx context.Context, materials []vector.Material) (int, error)
	Count() int
}

// Config holds server settings.
type Config struct {
	AllowedOrigins []string
	// CatalogPath is the default marketing materials workbook used by the
	// reindex endpoint when the request names no path.
	CatalogPath string
	TopK        int
	// Metrics backs the stats endpoint. A nil collector still serves zeros.
	Metrics *monitoring.Collector
}

// Server wires the HTTP routes to the pipeline collaborators. Optional
// collaborators left nil disable their routes with 503.
type Server struct {
	enricher  Enricher
	updater   RecordUpdater
	tokens    TokenStatuser
	promptDB  prompts.Store
	materials MaterialIndex
	cfg       Config
}

// New builds a Server.
func New(enricher Enricher, updater RecordUpdater, tokens TokenStatuser, promptDB prompts.Store, materials MaterialIndex, cfg Config) *Server {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{
		enricher:  enricher,
		updater:   updater,
		tokens:    tokens,
		promptDB:  promptDB,
		materials: materials,
		cfg:       cfg,
	}
}

// Handler assembles the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/leads/{id}", s.handleEnrich(model.KindLead))
		r.Put("/leads/{id}", s.handleUpdate(model.KindLead))
		r.Get("/deals/{id}", s.handleEnrich(model.KindDeal))
		r.Put("/deals/{id}", s.handleUpdate(model.KindDeal))

		r.Post("/web/fetch", s.handleWebFetch)

		r.Get("/auth/status", s.handleAuthStatus)
		r.Get("/stats", s.handleStats)

		r.Get("/settings/prompts", s.handleListPrompts)
		r.Put("/settings/prompts/{key}", s.handleSetPrompt)

		r.Post("/marketing/search", s.handleMaterialSearch)
		r.Post("/marketing/index", s.handleMaterialIndex)
		r.Get("/marketing/stats", s.handleMaterialStats)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Metrics.Snapshot())
}
