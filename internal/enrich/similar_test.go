package enrich

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/pkg/anthropic"
)

func TestFindSimilarCustomers(t *testing.T) {
	out := "```json\n" + `{
  "typical_customer_profile": "mid-market retailers",
  "similar_customers": [
    {"name": "Shopify", "description": "Commerce platform", "industry": "E-commerce", "website": "shopify.com", "why_similar": "sells to the same merchants"},
    {"name": "", "description": "nameless entries are dropped"},
    {"name": "Lightspeed", "description": "POS systems", "industry": "Retail tech"},
    {"name": "Clio", "description": "Legal software"},
    {"name": "Wave", "description": "SMB accounting"}
  ]
}` + "\n```"

	var captured anthropic.MessageRequest
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(anthropic.MessageRequest)
		}).
		Return(textResponse(out), nil).
		Once()

	a := newTestAnalyzer(t, llm)
	got := a.FindSimilarCustomers(context.Background(), Request{
		Kind:   model.KindLead,
		ID:     "1001",
		Fields: map[string]any{"Company": "Acme", "Industry": "Retail tech"},
	}, &model.AnalysisResult{ProductDescription: "inventory sync", LikelyICP: "Canadian retailers"})

	require.Len(t, got, 3, "capped at the configured maximum")
	assert.Equal(t, "Shopify", got[0].Name)
	assert.Equal(t, "Lightspeed", got[1].Name)
	assert.Equal(t, "Clio", got[2].Name)

	require.Len(t, captured.Messages, 1)
	user := captured.Messages[0].Content
	assert.Contains(t, user, "- Company: Acme")
	assert.Contains(t, user, "- Product: inventory sync")
	assert.Contains(t, user, "suggest 3 real companies")
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.5, *captured.Temperature, 0.001)
}

func TestFindSimilarCustomers_CallFailure(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(nil, eris.New("overloaded"))

	a := newTestAnalyzer(t, llm)
	got := a.FindSimilarCustomers(context.Background(), Request{
		Kind:   model.KindLead,
		Fields: map[string]any{"Company": "Acme"},
	}, nil)

	assert.Empty(t, got)
}

func TestFindSimilarCustomers_UnparseableOutput(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse("no structured answer"), nil)

	a := newTestAnalyzer(t, llm)
	got := a.FindSimilarCustomers(context.Background(), Request{
		Kind:   model.KindLead,
		Fields: map[string]any{"Company": "Acme"},
	}, nil)

	assert.Empty(t, got)
}
