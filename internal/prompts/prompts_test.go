package prompts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "prompts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSeed_WritesAllKeysOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Keys), n)

	// Second seed is a no-op.
	n, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(Keys))
	for _, key := range Keys {
		assert.NotEmpty(t, all[key], key)
	}
}

func TestSeed_PreservesEditedPrompts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeySystemPrompt, "custom system prompt"))

	_, err := s.Seed(ctx)
	require.NoError(t, err)

	got, err := s.Get(ctx, KeySystemPrompt)
	require.NoError(t, err)
	assert.Equal(t, "custom system prompt", got)
}

func TestGet_MissingKey(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "no_such_prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSet_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyAnalysisPrompt, "v1"))
	require.NoError(t, s.Set(ctx, KeyAnalysisPrompt, "v2"))

	got, err := s.Get(ctx, KeyAnalysisPrompt)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestSeedPrompts_ContainPlaceholders(t *testing.T) {
	assert.Contains(t, seedPrompts[KeyAnalysisPrompt], "{record_data}")
	assert.Contains(t, seedPrompts[KeyDealAnalysisPrompt], "{record_data}")
	assert.Contains(t, seedPrompts[KeyDealScoringPrompt], "{record_data}")
	assert.Contains(t, seedPrompts[KeyDealScoringPrompt], "{analysis_summary}")
}

func TestRender_LiteralSubstitution(t *testing.T) {
	out := Render("Data:\n{record_data}\nSummary:\n{analysis_summary}", map[string]string{
		"record_data":      `{"Company": "Acme"}`,
		"analysis_summary": "Strong fit.",
	})
	assert.Equal(t, "Data:\n{\"Company\": \"Acme\"}\nSummary:\nStrong fit.", out)
}

func TestRender_LeavesJSONBracesAlone(t *testing.T) {
	// Templates are full of JSON examples; only known placeholders change.
	tpl := `{"fit_score": 1-10} {record_data}`
	out := Render(tpl, map[string]string{"record_data": "X"})
	assert.Equal(t, `{"fit_score": 1-10} X`, out)
}

func TestRender_MissingVarLeavesPlaceholder(t *testing.T) {
	out := Render("before {record_data} after", nil)
	assert.Equal(t, "before {record_data} after", out)
}
