package model

import "fmt"

// DefaultAnalysis returns the fallback assessment used when generation or
// parsing fails. Callers get a complete, well-typed result with a neutral
// score and the failure reason in the notes, never an error.
func DefaultAnalysis(kind RecordKind, companyName, reason string) *AnalysisResult {
	a := &AnalysisResult{
		CompanyName:        companyName,
		Country:            "Unknown",
		Region:             "Unknown",
		Summary:            "Analysis could not be completed.",
		ProductDescription: "Unknown",
		Vertical:           "Unknown",
		BusinessModel:      "Unknown",
		Motion:             "Unknown",
		RaiseStage:         "Unknown",
		CompanySize:        "Unknown",
		FitScore:           5,
		FitAssessment:      "Unable to assess fit with available information.",
		LikelyICP:          "Unknown",
		KeyInsights:        []string{"Insufficient data for analysis."},
		QuestionsToAsk: []string{
			"What does your company do?",
			"Who are your target customers?",
			"What is your current stage of growth?",
		},
		ConfidenceLevel: "Low",
		Notes:           []string{fmt.Sprintf("Automated analysis failed: %s", reason)},
	}
	if kind == KindDeal {
		a.ScoringRubric = map[string]Score{
			"product_market_fit":      5,
			"canada_market_readiness": 5,
			"gtm_clarity":             5,
			"team_capability":         5,
			"revenue_potential":       5,
		}
	}
	return a
}
