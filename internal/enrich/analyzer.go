// Package enrich runs the generation calls that turn a raw CRM record and
// its side-texts into a structured analysis. The external contract is that
// Analyze always returns a usable result: every internal failure, from a
// network timeout to unparseable output, degrades to deterministic defaults
// with the reason recorded in the notes.
package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/prompts"
	"github.com/sells-group/crm-enrich/pkg/anthropic"
)

// Config holds the generation parameters for the analyzer.
type Config struct {
	Model     string
	MaxTokens int64

	// Temperature for the main and scoring calls. Kept below the API
	// default to bias toward consistent structured output.
	Temperature float64

	// SimilarTemperature is used for similar-customer suggestions, where
	// some variation is wanted.
	SimilarTemperature float64
	MaxSimilar         int

	// Per-side-text and combined caps on prompt context, in bytes.
	MaxSideChars     int
	MaxCombinedChars int
}

func (c *Config) setDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 8192
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.3
	}
	if c.SimilarTemperature <= 0 {
		c.SimilarTemperature = 0.5
	}
	if c.MaxSimilar <= 0 {
		c.MaxSimilar = 3
	}
	if c.MaxSideChars <= 0 {
		c.MaxSideChars = 15000
	}
	if c.MaxCombinedChars <= 0 {
		c.MaxCombinedChars = 30000
	}
}

// Analyzer issues the generation calls for one record and assembles the
// typed result. Safe for concurrent use.
type Analyzer struct {
	llm     anthropic.Client
	prompts prompts.Store
	catalog *PricingCatalog
	cfg     Config
}

// New builds an Analyzer. A nil catalog disables pricing normalization
// against the service list; generated line items are then kept as parsed.
func New(llm anthropic.Client, store prompts.Store, catalog *PricingCatalog, cfg Config) *Analyzer {
	cfg.setDefaults()
	return &Analyzer{llm: llm, prompts: store, catalog: catalog, cfg: cfg}
}

// scoringPayload is the scoring call's response shape. Only these fields
// are merged back into the main result.
type scoringPayload struct {
	ScoringRubric map[string]model.Score `json:"scoring_rubric"`
	FitScore      model.Score            `json:"fit_score"`
	FitAssessment string                 `json:"fit_assessment"`
}

// Analyze runs the enrichment for one record and never returns an error.
// Leads get a single generation call; deals get a second, separate scoring
// call whose context is a condensed summary of the first call's output.
// A failure on either call degrades only that call's contribution.
func (a *Analyzer) Analyze(ctx context.Context, req Request) *model.AnalysisResult {
	recordContext := buildContext(req, a.cfg.MaxSideChars, a.cfg.MaxCombinedChars)

	result := a.mainCall(ctx, req, recordContext)
	if req.Kind == model.KindDeal {
		a.scoringCall(ctx, recordContext, result)
	}

	a.normalize(req, result)
	return result
}

func (a *Analyzer) mainCall(ctx context.Context, req Request, recordContext string) *model.AnalysisResult {
	sysKey, userKey := prompts.KeySystemPrompt, prompts.KeyAnalysisPrompt
	if req.Kind == model.KindDeal {
		sysKey, userKey = prompts.KeyDealSystemPrompt, prompts.KeyDealAnalysisPrompt
	}
	system := a.prompt(ctx, sysKey)
	user := prompts.Render(a.prompt(ctx, userKey), map[string]string{
		"record_data": recordContext,
	})

	raw, err := a.generate(ctx, system, user, a.cfg.Temperature)
	if err != nil {
		zap.L().Warn("main analysis call failed, using defaults",
			zap.String("record_id", req.ID), zap.Error(err))
		return model.DefaultAnalysis(req.Kind, req.CompanyName(), err.Error())
	}

	var result model.AnalysisResult
	stage, err := parseInto(raw, &result)
	if err != nil {
		zap.L().Warn("main analysis output unparseable, using defaults",
			zap.String("record_id", req.ID), zap.Int("output_len", len(raw)))
		return model.DefaultAnalysis(req.Kind, req.CompanyName(), "failed to parse generation output")
	}
	if stage != stageStrict {
		zap.L().Info("main analysis output needed repair",
			zap.String("record_id", req.ID), zap.Stringer("stage", stage))
	}
	return &result
}

// scoringCall issues the rubric-scoring call and merges its fields into the
// main result. Only the rubric, fit score and fit assessment are
// overwritten; a failure here leaves the main call's values in place (or
// the defaults, when the main call also failed).
func (a *Analyzer) scoringCall(ctx context.Context, recordContext string, result *model.AnalysisResult) {
	system := a.prompt(ctx, prompts.KeyDealScoringSystemPrompt)
	user := prompts.Render(a.prompt(ctx, prompts.KeyDealScoringPrompt), map[string]string{
		"record_data":      recordContext,
		"analysis_summary": condensedSummary(result),
	})

	raw, err := a.generate(ctx, system, user, a.cfg.Temperature)
	if err != nil {
		zap.L().Warn("scoring call failed, keeping main call scores", zap.Error(err))
		return
	}
	var scoring scoringPayload
	if _, err := parseInto(raw, &scoring); err != nil {
		zap.L().Warn("scoring output unparseable, keeping main call scores",
			zap.Int("output_len", len(raw)))
		return
	}

	if len(scoring.ScoringRubric) > 0 {
		result.ScoringRubric = scoring.ScoringRubric
	}
	if scoring.FitScore != 0 {
		result.FitScore = scoring.FitScore
	}
	if scoring.FitAssessment != "" {
		result.FitAssessment = scoring.FitAssessment
	}
}

// normalize enforces the invariants the rest of the system relies on:
// pricing totals recomputed from quantity and unit price, scores clamped to
// [1,10], and a display name present even when generation omitted one.
func (a *Analyzer) normalize(req Request, result *model.AnalysisResult) {
	if result.CompanyName == "" || result.CompanyName == "Unknown" {
		if name := req.CompanyName(); name != "" {
			result.CompanyName = name
		}
	}
	if result.FitScore == 0 {
		result.FitScore = 5
	}
	if result.ConfidenceLevel == "" {
		result.ConfidenceLevel = "Medium"
	}
	if result.Pricing != nil {
		a.catalog.NormalizeLineItems(result.Pricing)
		result.Pricing.Recompute()
	}
	result.ClampFitScore()
}

func (a *Analyzer) generate(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := a.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: system}},
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if resp.StopReason == "max_tokens" {
		zap.L().Warn("generation output truncated at token cap",
			zap.Int64("max_tokens", a.cfg.MaxTokens))
	}
	resp.Usage.LogCost(a.cfg.Model, "enrich")
	return resp.Text(), nil
}

// prompt fetches a template from the store, falling back to the shipped
// default when the store cannot serve the read.
func (a *Analyzer) prompt(ctx context.Context, key string) string {
	text, err := a.prompts.Get(ctx, key)
	if err != nil || text == "" {
		zap.L().Warn("prompt store read failed, using built-in template",
			zap.String("key", key), zap.Error(err))
		return prompts.Default(key)
	}
	return text
}
