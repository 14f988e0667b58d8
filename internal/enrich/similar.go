package enrich

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/internal/prompts"
)

const similarSystemPrompt = `You are an expert B2B market analyst who helps identify ideal customer profiles and finds real companies that match. Always suggest real, existing companies.`

const similarPromptTemplate = `Based on the following company information, identify their typical customer profile and suggest {max_similar} real companies in Canada or North America that would be ideal customers for this product/service.

Company Information:
{record_data}

Analyze the company's:
- Product/service offering
- Target market and industry vertical
- Business model (B2B, B2C, etc.)
- Company size they typically serve

Then identify {max_similar} REAL, SPECIFIC companies (not generic descriptions) that would be ideal customers. These should be actual companies that exist and operate in Canada or North America.

Respond with a JSON object in this exact format:
{
  "typical_customer_profile": "A brief description of their ideal customer profile",
  "target_industries": ["Industry 1", "Industry 2"],
  "target_company_size": "SMB / Mid-Market / Enterprise",
  "similar_customers": [
    {
      "name": "Actual Company Name",
      "description": "Brief description of what this company does",
      "industry": "Their industry",
      "website": "company-website.com (if known, otherwise leave empty)",
      "why_similar": "Why this company would be a good customer"
    }
  ]
}

IMPORTANT:
- Only suggest REAL companies that actually exist
- Focus on Canadian companies first, then North American
- Be specific with company names (e.g., "Shopify" not "e-commerce platform")
- If unsure about a company's existence, choose well-known companies in the target industry

Respond ONLY with the JSON object.`

// Fields that carry customer-profile signal for the similar-customer call.
var similarContextFields = []string{
	"Company", "Deal_Name", "Account_Name", "Website", "Company_Website",
	"Industry", "Description", "Typical_Customer", "Target_Group",
	"Business_Model", "Lead_Source",
}

type similarPayload struct {
	SimilarCustomers []model.SimilarCustomer `json:"similar_customers"`
}

// FindSimilarCustomers suggests companies that match the record's ideal
// customer profile. Runs at a higher temperature than analysis so repeated
// calls surface some variety. Failure means an empty list, never an error.
func (a *Analyzer) FindSimilarCustomers(ctx context.Context, req Request, analysis *model.AnalysisResult) []model.SimilarCustomer {
	recordContext := similarContext(req, analysis)

	user := prompts.Render(similarPromptTemplate, map[string]string{
		"record_data": recordContext,
		"max_similar": strconv.Itoa(a.cfg.MaxSimilar),
	})
	raw, err := a.generate(ctx, similarSystemPrompt, user, a.cfg.SimilarTemperature)
	if err != nil {
		zap.L().Warn("similar customers call failed",
			zap.String("record_id", req.ID), zap.Error(err))
		return nil
	}

	var payload similarPayload
	if _, err := parseInto(raw, &payload); err != nil {
		zap.L().Warn("similar customers output unparseable",
			zap.String("record_id", req.ID), zap.Int("output_len", len(raw)))
		return nil
	}

	out := make([]model.SimilarCustomer, 0, a.cfg.MaxSimilar)
	for _, c := range payload.SimilarCustomers {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		out = append(out, c)
		if len(out) == a.cfg.MaxSimilar {
			break
		}
	}
	return out
}

// similarContext renders the profile-relevant record fields, enriched with
// whatever the main analysis already worked out.
func similarContext(req Request, analysis *model.AnalysisResult) string {
	var lines []string
	for _, f := range similarContextFields {
		if v := fieldValue(req.Fields[f]); v != "" {
			lines = append(lines, fieldLine(f, v))
		}
	}
	if analysis != nil {
		add := func(label, value string) {
			if strings.TrimSpace(value) != "" {
				lines = append(lines, "- "+label+": "+value)
			}
		}
		add("Product", analysis.ProductDescription)
		add("Vertical", analysis.Vertical)
		add("Business Model", analysis.BusinessModel)
		add("Target ICP in Canada", analysis.LikelyICP)
	}
	if len(lines) == 0 {
		return "No company information available"
	}
	return strings.Join(lines, "\n")
}
