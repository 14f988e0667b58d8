package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/pipeline"
	"github.com/sells-group/crm-enrich/internal/vector"
)

// enrichResponse is the wire shape for enriched records.
type enrichResponse struct {
	Data               map[string]any            `json:"data"`
	Analysis           *model.AnalysisResult     `json:"analysis"`
	AnalysisAvailable  bool                      `json:"analysis_available"`
	FromCache          bool                      `json:"from_cache"`
	MarketingMaterials []model.MarketingMaterial `json:"marketing_materials"`
	SimilarCustomers   []model.SimilarCustomer   `json:"similar_customers"`
	Meetings           any                       `json:"meetings,omitempty"`
}

func toEnrichResponse(rec *pipeline.EnrichedRecord) enrichResponse {
	resp := enrichResponse{
		Analysis:           rec.Analysis,
		AnalysisAvailable:  rec.AnalysisAvailable,
		FromCache:          rec.FromCache,
		MarketingMaterials: rec.MarketingMaterials,
		SimilarCustomers:   rec.SimilarCustomers,
	}
	if rec.Record != nil {
		resp.Data = rec.Record.Fields
	}
	if len(rec.Meetings) > 0 {
		resp.Meetings = rec.Meetings
	}
	return resp
}

func parseOptions(r *http.Request) pipeline.Options {
	q := r.URL.Query()
	return pipeline.Options{
		SkipAnalysis: boolParam(q.Get("skip_analysis")),
		Refresh:      boolParam(q.Get("refresh_analysis")),
	}
}

func boolParam(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func (s *Server) handleEnrich(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.enricher == nil {
			writeError(w, http.StatusServiceUnavailable, "enrichment not configured")
			return
		}
		id := chi.URLParam(r, "id")
		opts := parseOptions(r)

		var (
			rec *pipeline.EnrichedRecord
			err error
		)
		if kind == model.KindDeal {
			rec, err = s.enricher.EnrichDeal(r.Context(), id, opts)
		} else {
			rec, err = s.enricher.EnrichLead(r.Context(), id, opts)
		}
		if err != nil {
			zap.L().Error("enrichment request failed",
				zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, "enrichment failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toEnrichResponse(rec))
	}
}

func (s *Server) handleUpdate(kind model.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.updater == nil {
			writeError(w, http.StatusServiceUnavailable, "CRM updates not configured")
			return
		}
		id := chi.URLParam(r, "id")

		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(fields) == 0 {
			writeError(w, http.StatusBadRequest, "no fields to update")
			return
		}
		if err := s.updater.UpdateRecord(r.Context(), kind.ModuleName(), id, fields); err != nil {
			zap.L().Error("record update failed",
				zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, "update failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "id": id})
	}
}

func (s *Server) handleWebFetch(w http.ResponseWriter, r *http.Request) {
	if s.enricher == nil {
		writeError(w, http.StatusServiceUnavailable, "enrichment not configured")
		return
	}
	var req struct {
		URL             string `json:"url"`
		SkipAnalysis    bool   `json:"skip_analysis"`
		RefreshAnalysis bool   `json:"refresh_analysis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	rec, err := s.enricher.EnrichWebsite(r.Context(), req.URL, pipeline.Options{
		SkipAnalysis: req.SkipAnalysis,
		Refresh:      req.RefreshAnalysis,
	})
	if err != nil {
		zap.L().Error("website enrichment failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusBadGateway, "enrichment failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toEnrichResponse(rec))
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "credential manager not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.tokens.Status())
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	if s.promptDB == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt store not configured")
		return
	}
	all, err := s.promptDB.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "prompt store read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": all})
}

func (s *Server) handleSetPrompt(w http.ResponseWriter, r *http.Request) {
	if s.promptDB == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt store not configured")
		return
	}
	key := chi.URLParam(r, "key")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == "" {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	if err := s.promptDB.Set(r.Context(), key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "prompt store write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "key": key})
}

func (s *Server) handleMaterialSearch(w http.ResponseWriter, r *http.Request) {
	if s.materials == nil {
		writeError(w, http.StatusServiceUnavailable, "marketing index not configured")
		return
	}
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.TopK
	}
	results, err := s.materials.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		zap.L().Error("material search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []model.MarketingMaterial{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleMaterialIndex(w http.ResponseWriter, r *http.Request) {
	if s.materials == nil {
		writeError(w, http.StatusServiceUnavailable, "marketing index not configured")
		return
	}
	var req struct {
		CatalogPath string `json:"catalog_path"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	path := req.CatalogPath
	if path == "" {
		path = s.cfg.CatalogPath
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, "no catalog path configured")
		return
	}
	materials, err := vector.ReadCatalog(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "catalog read failed: "+err.Error())
		return
	}
	indexed, err := s.materials.IndexMaterials(r.Context(), materials)
	if err != nil {
		zap.L().Error("material indexing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "indexing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "indexed", "count": indexed})
}

func (s *Server) handleMaterialStats(w http.ResponseWriter, r *http.Request) {
	if s.materials == nil {
		writeError(w, http.StatusServiceUnavailable, "marketing index not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexed_materials": s.materials.Count()})
}
