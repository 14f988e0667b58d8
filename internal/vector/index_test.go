package vector

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/pkg/embeddings"
)

// mockEmbedder implements embeddings.Client.
type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// keywordEmbedder assigns axis-aligned vectors by keyword so similarity
// ordering in tests is deterministic.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 3)
		for j, kw := range []string{"fintech", "health", "logistics"} {
			if strings.Contains(strings.ToLower(t), kw) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func testMaterials() []Material {
	return []Material{
		{ID: "mat_0", Title: "Fintech Expansion Guide", Industry: "Fintech", Link: "https://example.com/fintech"},
		{ID: "mat_1", Title: "Healthtech Market Brief", Industry: "Health"},
		{ID: "mat_2", Title: "Logistics Playbook", Industry: "Logistics"},
	}
}

func TestIndexAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	idx := New(keywordEmbedder{}, path)

	n, err := idx.IndexMaterials(context.Background(), testMaterials())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, idx.Count())

	got, err := idx.Search(context.Background(), "a fintech startup in payments", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Fintech Expansion Guide", got[0].Title)
	assert.Equal(t, "https://example.com/fintech", got[0].Link)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestIndex_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "index.json")

	idx := New(keywordEmbedder{}, path)
	_, err := idx.IndexMaterials(context.Background(), testMaterials())
	require.NoError(t, err)

	reopened := New(keywordEmbedder{}, path)
	assert.Equal(t, 3, reopened.Count())

	got, err := reopened.Search(context.Background(), "health clinics", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Healthtech Market Brief", got[0].Title)
}

func TestSearch_EmptyIndexAndEmptyQuery(t *testing.T) {
	idx := New(keywordEmbedder{}, filepath.Join(t.TempDir(), "index.json"))

	got, err := idx.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = idx.IndexMaterials(context.Background(), testMaterials())
	require.NoError(t, err)

	got, err = idx.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIndexMaterials_EmbedFailureWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")

	me := new(mockEmbedder)
	me.On("Embed", mock.Anything, mock.Anything).Return(nil, eris.New("quota exceeded"))

	idx := New(me, path)
	_, err := idx.IndexMaterials(context.Background(), testMaterials())
	require.Error(t, err)
	assert.Zero(t, idx.Count())
}

func TestSearchForRecord_BuildsQueryFromFields(t *testing.T) {
	me := new(mockEmbedder)
	var captured []string
	me.On("Embed", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).([]string) }).
		Return([][]float32{{1, 0, 0}}, nil)

	idx := New(me, filepath.Join(t.TempDir(), "index.json"))
	idx.items = []indexedMaterial{{Material: Material{Title: "Guide"}, Vector: []float32{1, 0, 0}}}

	got, err := idx.SearchForRecord(context.Background(), map[string]any{
		"Company":  "Acme",
		"Industry": "Fintech",
		"$private": "hidden",
		"Amount":   120000.0,
	}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.Len(t, captured, 1)
	assert.Contains(t, captured[0], "Company: Acme")
	assert.Contains(t, captured[0], "Industry: Fintech")
	assert.NotContains(t, captured[0], "hidden")
}

var _ embeddings.Client = keywordEmbedder{}
