// Package pipeline coordinates one enrichment request end to end: record
// fetch, cache check, side-source gathering, generation, artifact search and
// the cache write. Side-source and cache failures degrade to empty
// contributions; only a record fetch failure (or missing credentials behind
// it) fails the request.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rotisserie/eris"
	"github.com/sells-group/crm-enrich/internal/cache"
	"github.com/sells-group/crm-enrich/internal/enrich"
	"github.com/sells-group/crm-enrich/internal/extract"
	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/monitoring"
	"github.com/sells-group/crm-enrich/pkg/fireflies"
	"github.com/sells-group/crm-enrich/pkg/scraper"
	"github.com/sells-group/crm-enrich/pkg/zoho"
)

// Analyzer is the generation boundary the coordinator drives.
type Analyzer interface {
	Analyze(ctx context.Context, req enrich.Request) *model.AnalysisResult
	FindSimilarCustomers(ctx context.Context, req enrich.Request, analysis *model.AnalysisResult) []model.SimilarCustomer
}

// MaterialSearcher matches marketing collateral to a record.
type MaterialSearcher interface {
	SearchForRecord(ctx context.Context, fields map[string]any, topK int) ([]model.MarketingMaterial, error)
}

// Options are the per-request caller flags.
type Options struct {
	// SkipAnalysis returns the record without running generation.
	SkipAnalysis bool
	// Refresh reruns the full pipeline even when a cached result exists.
	Refresh bool
}

// EnrichedRecord is the complete response for one record.
type EnrichedRecord struct {
	Record             *model.Record             `json:"record"`
	Analysis           *model.AnalysisResult     `json:"analysis"`
	AnalysisAvailable  bool                      `json:"analysis_available"`
	FromCache          bool                      `json:"from_cache"`
	MarketingMaterials []model.MarketingMaterial `json:"marketing_materials"`
	SimilarCustomers   []model.SimilarCustomer   `json:"similar_customers"`
	Meetings           []model.MeetingNote       `json:"meetings,omitempty"`
}

// Config sets the coordinator's artifact limits.
type Config struct {
	MarketingTopK int
	MaxMeetings   int
}

// Coordinator runs the enrichment sequence. Optional collaborators
// (transcripts, scraper, materials) may be nil; their contribution is then
// simply absent.
type Coordinator struct {
	crm         zoho.Client
	analyzer    Analyzer
	store       cache.Store
	transcripts fireflies.Client
	web         scraper.Client
	extractor   *extract.Extractor
	materials   MaterialSearcher
	metrics     *monitoring.Collector
	cfg         Config
}

// New builds a Coordinator. crm, analyzer, store and extractor are required.
func New(crm zoho.Client, analyzer Analyzer, store cache.Store, extractor *extract.Extractor, cfg Config, opts ...Option) *Coordinator {
	if cfg.MarketingTopK <= 0 {
		cfg.MarketingTopK = 5
	}
	if cfg.MaxMeetings <= 0 {
		cfg.MaxMeetings = 5
	}
	c := &Coordinator{crm: crm, analyzer: analyzer, store: store, extractor: extractor, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option wires an optional collaborator.
type Option func(*Coordinator)

// WithTranscripts enables meeting-note lookup by contact email.
func WithTranscripts(fc fireflies.Client) Option {
	return func(c *Coordinator) { c.transcripts = fc }
}

// WithScraper enables website content fetching.
func WithScraper(sc scraper.Client) Option {
	return func(c *Coordinator) { c.web = sc }
}

// WithMaterials enables marketing collateral matching.
func WithMaterials(ms MaterialSearcher) Option {
	return func(c *Coordinator) { c.materials = ms }
}

// WithMetrics enables request counters.
func WithMetrics(m *monitoring.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// EnrichLead runs the pipeline for a lead.
func (c *Coordinator) EnrichLead(ctx context.Context, id string, opts Options) (*EnrichedRecord, error) {
	return c.enrichRecord(ctx, model.KindLead, id, opts)
}

// EnrichDeal runs the pipeline for a deal.
func (c *Coordinator) EnrichDeal(ctx context.Context, id string, opts Options) (*EnrichedRecord, error) {
	return c.enrichRecord(ctx, model.KindDeal, id, opts)
}

func (c *Coordinator) enrichRecord(ctx context.Context, kind model.RecordKind, id string, opts Options) (*EnrichedRecord, error) {
	fields, err := c.crm.GetRecord(ctx, kind.ModuleName(), id)
	if err != nil {
		c.metrics.RecordFailure()
		return nil, eris.Wrapf(err, "pipeline: fetch %s %s", kind, id)
	}
	record := &model.Record{Kind: kind, ID: id, Fields: fields}

	if opts.SkipAnalysis {
		return &EnrichedRecord{
			Record:   record,
			Analysis: skippedAnalysis(record),
		}, nil
	}

	if !opts.Refresh {
		if cached := c.cachedResult(ctx, record); cached != nil {
			return cached, nil
		}
	}
	return c.runPipeline(ctx, record, id, true)
}

// EnrichWebsite enriches a company from its website alone: no CRM record,
// just scraped content analyzed as a lead. The cache id is derived from the
// normalized domain so repeat lookups of the same site hit the cache.
func (c *Coordinator) EnrichWebsite(ctx context.Context, rawURL string, opts Options) (*EnrichedRecord, error) {
	domain := normalizeDomain(rawURL)
	if domain == "" {
		return nil, eris.Errorf("pipeline: no usable domain in %q", rawURL)
	}
	id := "web:" + domain
	record := &model.Record{
		Kind: model.KindLead,
		ID:   id,
		Fields: map[string]any{
			"Company": domain,
			"Website": rawURL,
		},
	}

	if opts.SkipAnalysis {
		return &EnrichedRecord{Record: record, Analysis: skippedAnalysis(record)}, nil
	}
	if !opts.Refresh {
		if cached := c.cachedResult(ctx, record); cached != nil {
			return cached, nil
		}
	}
	return c.runPipeline(ctx, record, id, false)
}

// runPipeline gathers side texts, generates, searches artifacts and writes
// the cache. All side-source fetches complete (or degrade) before the
// generation call; the scoring call inside Analyze already depends on the
// main call, and the cache write comes last. fromCRM gates the sources that
// only exist for a real CRM record.
func (c *Coordinator) runPipeline(ctx context.Context, record *model.Record, cacheID string, fromCRM bool) (*EnrichedRecord, error) {
	req := enrich.Request{
		Kind:        record.Kind,
		ID:          record.ID,
		Fields:      record.Fields,
		WebsiteText: c.websiteText(ctx, record),
	}
	var meetings []model.MeetingNote
	if fromCRM {
		req.DocumentText = c.attachmentText(ctx, record)
		meetings = meetingNotes(c.meetings(ctx, record))
		req.MeetingText = meetingText(meetings)
	}

	c.metrics.RecordEnrichment()
	analysis := c.analyzer.Analyze(ctx, req)
	if analysis != nil && analysis.ConfidenceLevel == "Low" && len(analysis.Notes) > 0 {
		c.metrics.RecordDegraded()
	}

	var materials []model.MarketingMaterial
	if c.materials != nil {
		var err error
		materials, err = c.materials.SearchForRecord(ctx, record.Fields, c.cfg.MarketingTopK)
		if err != nil {
			zap.L().Warn("marketing material search failed",
				zap.String("record_id", record.ID), zap.Error(err))
			materials = nil
		}
	}

	similar := c.analyzer.FindSimilarCustomers(ctx, req, analysis)

	c.writeCache(ctx, cacheID, analysis, materials, similar, meetings)

	return &EnrichedRecord{
		Record:             record,
		Analysis:           analysis,
		AnalysisAvailable:  true,
		MarketingMaterials: materials,
		SimilarCustomers:   similar,
		Meetings:           meetings,
	}, nil
}

// cachedResult returns the cached response for the record, or nil on a miss.
// A store error is logged and treated as a miss.
func (c *Coordinator) cachedResult(ctx context.Context, record *model.Record) *EnrichedRecord {
	rec, err := c.store.Get(ctx, record.ID)
	if err != nil {
		zap.L().Warn("cache read failed, treating as miss",
			zap.String("record_id", record.ID), zap.Error(err))
		c.metrics.RecordCacheMiss()
		return nil
	}
	if rec == nil || rec.Analysis == nil {
		c.metrics.RecordCacheMiss()
		return nil
	}
	c.metrics.RecordCacheHit()
	zap.L().Debug("cache hit", zap.String("record_id", record.ID))
	return &EnrichedRecord{
		Record:             record,
		Analysis:           rec.Analysis,
		AnalysisAvailable:  true,
		FromCache:          true,
		MarketingMaterials: rec.MarketingMaterials,
		SimilarCustomers:   rec.SimilarCustomers,
		Meetings:           rec.MeetingNotes,
	}
}

// writeCache persists the result, best effort. Two concurrent passes for the
// same id race as last-writer-wins, which the whole-record overwrite makes
// safe.
func (c *Coordinator) writeCache(ctx context.Context, id string, analysis *model.AnalysisResult, materials []model.MarketingMaterial, similar []model.SimilarCustomer, meetings []model.MeetingNote) {
	err := c.store.Put(ctx, &model.CacheRecord{
		ID:                 id,
		Analysis:           analysis,
		MarketingMaterials: materials,
		SimilarCustomers:   similar,
		MeetingNotes:       meetings,
		CompanyName:        analysis.CompanyName,
		FitScore:           int(analysis.FitScore),
	})
	if err != nil {
		zap.L().Warn("cache write failed", zap.String("record_id", id), zap.Error(err))
	}
}

// attachmentText downloads and extracts every attachment on the record.
// Individual document failures skip that document; a listing failure skips
// the source entirely.
func (c *Coordinator) attachmentText(ctx context.Context, record *model.Record) string {
	metas, err := c.crm.ListAttachments(ctx, record.Kind.ModuleName(), record.ID)
	if err != nil {
		c.metrics.RecordSideSourceError()
		zap.L().Warn("attachment listing failed",
			zap.String("record_id", record.ID), zap.Error(err))
		return ""
	}
	var docs []extract.Document
	for _, meta := range metas {
		content, err := c.crm.DownloadAttachment(ctx, record.Kind.ModuleName(), record.ID, meta.ID)
		if err != nil {
			zap.L().Warn("attachment download failed",
				zap.String("record_id", record.ID), zap.String("file", meta.FileName), zap.Error(err))
			continue
		}
		text, err := c.extractor.Extract(ctx, meta.FileName, content)
		if err != nil {
			zap.L().Debug("attachment extraction skipped",
				zap.String("file", meta.FileName), zap.Error(err))
			continue
		}
		docs = append(docs, extract.Document{Name: meta.FileName, Text: text})
	}
	return c.extractor.Combine(docs)
}

func (c *Coordinator) websiteText(ctx context.Context, record *model.Record) string {
	if c.web == nil {
		return ""
	}
	site := record.Website()
	if site == "" {
		return ""
	}
	page, err := c.web.Fetch(ctx, site)
	if err != nil {
		c.metrics.RecordSideSourceError()
		zap.L().Warn("website fetch failed",
			zap.String("record_id", record.ID), zap.String("url", site), zap.Error(err))
		return ""
	}
	return page.Content
}

// meetings looks up recorded meetings by the record's contact email. For
// deals without an email field, the related contact's email is tried.
func (c *Coordinator) meetings(ctx context.Context, record *model.Record) []fireflies.Transcript {
	if c.transcripts == nil {
		return nil
	}
	email := record.Email()
	if email == "" && record.Kind == model.KindDeal {
		email = c.relatedContactEmail(ctx, record.ID)
	}
	if email == "" {
		return nil
	}
	transcripts, err := c.transcripts.TranscriptsByParticipant(ctx, email, c.cfg.MaxMeetings)
	if err != nil {
		c.metrics.RecordSideSourceError()
		zap.L().Warn("meeting lookup failed",
			zap.String("record_id", record.ID), zap.String("email", email), zap.Error(err))
		return nil
	}
	return transcripts
}

func (c *Coordinator) relatedContactEmail(ctx context.Context, dealID string) string {
	contacts, err := c.crm.GetRelatedContacts(ctx, dealID)
	if err != nil {
		zap.L().Debug("related contact lookup failed",
			zap.String("deal_id", dealID), zap.Error(err))
		return ""
	}
	for _, contact := range contacts {
		if email, ok := contact["Email"].(string); ok && email != "" {
			return email
		}
	}
	return ""
}

// meetingNotes converts transcripts to the compact form that is cached and
// returned to callers.
func meetingNotes(transcripts []fireflies.Transcript) []model.MeetingNote {
	if len(transcripts) == 0 {
		return nil
	}
	notes := make([]model.MeetingNote, 0, len(transcripts))
	for _, tr := range transcripts {
		notes = append(notes, model.MeetingNote{
			Title:       tr.Title,
			Date:        tr.When(),
			Overview:    tr.Overview,
			ActionItems: tr.ActionItems,
		})
	}
	return notes
}

func meetingText(notes []model.MeetingNote) string {
	var parts []string
	for _, note := range notes {
		var b strings.Builder
		fmt.Fprintf(&b, "Meeting: %s (%s)\n", note.Title, note.Date.Format("2006-01-02"))
		if note.Overview != "" {
			b.WriteString("Overview: " + note.Overview + "\n")
		}
		if note.ActionItems != "" {
			b.WriteString("Action items: " + note.ActionItems + "\n")
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// skippedAnalysis is the placeholder returned when the caller asked for the
// record without analysis.
func skippedAnalysis(record *model.Record) *model.AnalysisResult {
	a := model.DefaultAnalysis(record.Kind, record.CompanyName(), "skipped by user request")
	a.ProductDescription = "Analysis skipped"
	a.FitAssessment = "Analysis was explicitly skipped"
	if v := record.StringField("Country"); v != "" {
		a.Country = v
	}
	if v := record.StringField("Industry"); v != "" {
		a.Vertical = v
	}
	a.KeyInsights = nil
	a.QuestionsToAsk = nil
	a.Notes = []string{"Analysis was skipped by user request"}
	return a
}

// normalizeDomain reduces a URL or hostname to its bare lowercase domain.
func normalizeDomain(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}
