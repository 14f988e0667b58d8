// Package prompts stores and renders the generation prompt templates.
// Templates live in the database so the team can tune them without a
// deploy; the seed values here are only written when a key is missing.
package prompts

import (
	"context"
	"strings"
)

// Well-known prompt keys.
const (
	KeySystemPrompt            = "system_prompt"
	KeyAnalysisPrompt          = "analysis_prompt"
	KeyDealSystemPrompt        = "deal_system_prompt"
	KeyDealAnalysisPrompt      = "deal_analysis_prompt"
	KeyDealScoringSystemPrompt = "deal_scoring_system_prompt"
	KeyDealScoringPrompt       = "deal_scoring_prompt"
)

// Keys lists every prompt key in seed order.
var Keys = []string{
	KeySystemPrompt,
	KeyAnalysisPrompt,
	KeyDealSystemPrompt,
	KeyDealAnalysisPrompt,
	KeyDealScoringSystemPrompt,
	KeyDealScoringPrompt,
}

// Store defines the prompt persistence interface.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)

	// Seed writes the default template for every key that has no row yet.
	// Existing rows are never touched.
	Seed(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Render substitutes template placeholders with their values. Placeholders
// are literal markers like {record_data}; the template text is user-edited
// and frequently contains JSON braces, so this is plain string replacement,
// never a template language.
func Render(template string, vars map[string]string) string {
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}
