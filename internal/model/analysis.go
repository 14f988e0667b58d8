package model

import (
	"math"
	"strconv"
	"strings"
)

// Score is a 1-10 rubric value. Generated output cannot be trusted to emit a
// well-formed integer, so decoding accepts any JSON number (or a quoted one)
// and rounds it; anything unparseable decodes as zero rather than failing the
// surrounding object.
type Score int

func (s *Score) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*s = 0
		return nil
	}
	*s = Score(math.Round(f))
	return nil
}

// RevenueCustomer describes one of a company's top revenue-generating
// customers as identified by the analysis.
type RevenueCustomer struct {
	Name         string `json:"name"`
	Industry     string `json:"industry"`
	Contribution string `json:"revenue_contribution"`
	Description  string `json:"description"`
}

// PricingLineItem is a single recommended service in a pricing summary.
// TotalPrice is always derived as Quantity * UnitPrice; the generated value
// is discarded.
type PricingLineItem struct {
	Service     string  `json:"service_name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price_eur"`
	TotalPrice  float64 `json:"total_price_eur"`
}

// PricingSummary holds the recommended program services for a deal.
// TotalCost is always derived as the sum of line item totals.
type PricingSummary struct {
	LineItems []PricingLineItem `json:"recommended_services"`
	TotalCost float64           `json:"total_cost_eur"`
	Notes     []string          `json:"pricing_notes,omitempty"`
}

// Recompute derives every line item's TotalPrice and the summary's TotalCost
// from quantities and unit prices, ignoring whatever the generator produced.
func (p *PricingSummary) Recompute() {
	var total float64
	for i := range p.LineItems {
		li := &p.LineItems[i]
		if li.Quantity < 1 {
			li.Quantity = 1
		}
		li.TotalPrice = float64(li.Quantity) * li.UnitPrice
		total += li.TotalPrice
	}
	p.TotalCost = total
}

// AnalysisResult is the structured assessment produced by one enrichment
// pass. Built once per pass and immutable thereafter; stored verbatim in the
// cache.
type AnalysisResult struct {
	CompanyName        string `json:"company_name"`
	Country            string `json:"country"`
	Region             string `json:"region"`
	Summary            string `json:"summary"`
	ProductDescription string `json:"product_description"`
	Vertical           string `json:"vertical"`
	BusinessModel      string `json:"business_model"`
	Motion             string `json:"motion"`
	RaiseStage         string `json:"raise_stage"`
	CompanySize        string `json:"company_size"`

	// Deal-only reformatted fields. Empty for leads.
	RevenueSummary      string `json:"revenue_summary,omitempty"`
	TopCustomersSummary string `json:"top_5_customers_summary,omitempty"`

	TopRevenueCustomers []RevenueCustomer `json:"revenue_top_5_customers,omitempty"`
	Pricing             *PricingSummary   `json:"pricing_summary,omitempty"`

	ScoringRubric map[string]Score `json:"scoring_rubric,omitempty"`
	FitScore      Score            `json:"fit_score"`
	FitAssessment string           `json:"fit_assessment"`

	ICPMapping string `json:"icp_mapping,omitempty"`
	LikelyICP  string `json:"likely_icp_canada"`

	SupportRequired        string   `json:"support_required,omitempty"`
	SupportRecommendations []string `json:"support_recommendations,omitempty"`

	KeyInsights     []string `json:"key_insights"`
	QuestionsToAsk  []string `json:"questions_to_ask"`
	ConfidenceLevel string   `json:"confidence_level"`
	Notes           []string `json:"notes"`
}

// ClampFitScore forces the fit score (and every rubric entry) into [1, 10].
func (a *AnalysisResult) ClampFitScore() {
	a.FitScore = clampScore(a.FitScore)
	for k, v := range a.ScoringRubric {
		a.ScoringRubric[k] = clampScore(v)
	}
}

func clampScore(v Score) Score {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// SimilarCustomer is a company suggested as a comparable existing customer.
type SimilarCustomer struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	Website     string `json:"website"`
	WhySimilar  string `json:"why_similar"`
}

// MarketingMaterial is a piece of collateral matched to a record by vector
// similarity.
type MarketingMaterial struct {
	ID             string  `json:"material_id,omitempty"`
	Title          string  `json:"title"`
	Link           string  `json:"link,omitempty"`
	Industry       string  `json:"industry,omitempty"`
	BusinessTopics string  `json:"business_topics,omitempty"`
	Score          float64 `json:"similarity_score"`
}
