package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRecord(id string) *model.CacheRecord {
	return &model.CacheRecord{
		ID: id,
		Analysis: &model.AnalysisResult{
			CompanyName:     "Acme",
			FitScore:        7,
			FitAssessment:   "Strong Canada fit.",
			ConfidenceLevel: "High",
			KeyInsights:     []string{"growing fast"},
		},
		MarketingMaterials: []model.MarketingMaterial{
			{Title: "Scale-up Guide", Industry: "SaaS", Score: 0.92},
		},
		SimilarCustomers: []model.SimilarCustomer{
			{Name: "Globex", Industry: "SaaS", WhySimilar: "same vertical"},
		},
		MeetingNotes: []model.MeetingNote{
			{Title: "Intro call", Date: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), Overview: "Discussed rollout"},
		},
		CompanyName: "Acme",
		FitScore:    7,
	}
}

func TestSQLite_GetMiss(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_PutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, sampleRecord("lead-1")))

	got, err := s.Get(ctx, "lead-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "lead-1", got.ID)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, 7, got.FitScore)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "Strong Canada fit.", got.Analysis.FitAssessment)
	require.Len(t, got.MarketingMaterials, 1)
	assert.Equal(t, "Scale-up Guide", got.MarketingMaterials[0].Title)
	require.Len(t, got.SimilarCustomers, 1)
	assert.Equal(t, "Globex", got.SimilarCustomers[0].Name)
	require.Len(t, got.MeetingNotes, 1)
	assert.Equal(t, "Intro call", got.MeetingNotes[0].Title)
	assert.Equal(t, "Discussed rollout", got.MeetingNotes[0].Overview)
	assert.True(t, got.MeetingNotes[0].Date.Equal(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)))
	assert.WithinDuration(t, time.Now().UTC(), got.CreatedAt, 5*time.Second)
}

func TestSQLite_PutOverwritesWholeRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, sampleRecord("deal-1")))

	first, err := s.Get(ctx, "deal-1")
	require.NoError(t, err)

	updated := sampleRecord("deal-1")
	updated.Analysis.FitScore = 3
	updated.FitScore = 3
	updated.SimilarCustomers = nil
	updated.MeetingNotes = nil
	require.NoError(t, s.Put(ctx, updated))

	got, err := s.Get(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.FitScore)
	assert.Equal(t, model.Score(3), got.Analysis.FitScore)
	assert.Empty(t, got.SimilarCustomers, "stale collections must not survive an overwrite")
	assert.Empty(t, got.MeetingNotes)
	// created_at is the only field an update preserves.
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
}

func TestSQLite_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, sampleRecord("lead-2")))
	require.NoError(t, s.Delete(ctx, "lead-2"))

	rec, err := s.Get(ctx, "lead-2")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Deleting a missing id is not an error.
	require.NoError(t, s.Delete(ctx, "lead-2"))
}

func TestSQLite_ReadsLegacyRowWithoutNewColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Simulate a row written before marketing/similar columns were populated.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (id, analysis) VALUES (?, ?)`,
		"old-1", `{"company_name":"Legacy Co","fit_score":6}`,
	)
	require.NoError(t, err)

	got, err := s.Get(ctx, "old-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Legacy Co", got.Analysis.CompanyName)
	assert.Empty(t, got.MarketingMaterials)
	assert.Empty(t, got.SimilarCustomers)
	assert.Empty(t, got.MeetingNotes)
	assert.Zero(t, got.FitScore)
}
