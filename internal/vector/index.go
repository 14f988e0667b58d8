// Package vector maintains the marketing materials index: collateral rows
// ingested from a spreadsheet, embedded once, persisted to disk, and served
// as cosine-similarity lookups during enrichment.
package vector

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/crm-enrich/internal/model"
	"github.com/sells-group/crm-enrich/pkg/embeddings"
)

// embedBatchSize caps texts per Embed call; embedWorkers caps concurrent
// calls during indexing.
const (
	embedBatchSize = 32
	embedWorkers   = 4
)

// Material is one collateral entry from the marketing catalog.
type Material struct {
	ID             string `json:"material_id"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	Industry       string `json:"industry,omitempty"`
	BusinessTopics string `json:"business_topics,omitempty"`
	OtherNotes     string `json:"other_notes,omitempty"`
}

// SearchText renders the material as the text that gets embedded.
func (m *Material) SearchText() string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Title", m.Title)
	add("Industry", m.Industry)
	add("Business Topics", m.BusinessTopics)
	add("Notes", m.OtherNotes)
	return norm.NFC.String(strings.Join(parts, "\n"))
}

type indexedMaterial struct {
	Material Material  `json:"material"`
	Vector   []float32 `json:"vector"`
}

// indexFile is the on-disk shape of a persisted index.
type indexFile struct {
	Model string            `json:"model,omitempty"`
	Items []indexedMaterial `json:"items"`
}

// Index is the in-process vector index. Search is safe under concurrent
// readers; indexing swaps the item slice atomically under the lock.
type Index struct {
	embedder embeddings.Client
	path     string

	mu    sync.RWMutex
	items []indexedMaterial
}

// New creates an index persisted at path. An existing index file is loaded;
// a missing or unreadable one just starts empty (indexing rebuilds it).
func New(embedder embeddings.Client, path string) *Index {
	idx := &Index{embedder: embedder, path: path}
	if err := idx.load(); err != nil {
		zap.L().Warn("vector index not loaded, starting empty",
			zap.String("path", path), zap.Error(err))
	}
	return idx
}

// Count returns the number of indexed materials.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.items)
}

// IndexMaterials embeds the given materials and replaces the index contents,
// persisting the result. Batches run in parallel; one failed batch fails the
// whole rebuild so a partial index is never written.
func (i *Index) IndexMaterials(ctx context.Context, materials []Material) (int, error) {
	if len(materials) == 0 {
		return 0, eris.New("vector: no materials to index")
	}

	items := make([]indexedMaterial, len(materials))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	for start := 0; start < len(materials); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(materials) {
			end = len(materials)
		}
		batch := materials[start:end]
		offset := start
		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, m := range batch {
				texts[j] = m.SearchText()
			}
			vecs, err := i.embedder.Embed(gctx, texts)
			if err != nil {
				return eris.Wrapf(err, "vector: embed batch at %d", offset)
			}
			for j, v := range vecs {
				normalize(v)
				items[offset+j] = indexedMaterial{Material: batch[j], Vector: v}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	i.mu.Lock()
	i.items = items
	i.mu.Unlock()

	if err := i.save(); err != nil {
		return len(items), err
	}
	zap.L().Info("marketing materials indexed", zap.Int("count", len(items)))
	return len(items), nil
}

// Search returns the topK materials most similar to the query text, best
// first. An empty index or empty query yields an empty result, not an error.
func (i *Index) Search(ctx context.Context, query string, topK int) ([]model.MarketingMaterial, error) {
	query = strings.TrimSpace(query)
	if query == "" || i.Count() == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}

	vecs, err := i.embedder.Embed(ctx, []string{norm.NFC.String(query)})
	if err != nil {
		return nil, eris.Wrap(err, "vector: embed query")
	}
	q := vecs[0]
	normalize(q)

	i.mu.RLock()
	defer i.mu.RUnlock()

	type scored struct {
		mat   Material
		score float64
	}
	results := make([]scored, 0, len(i.items))
	for _, item := range i.items {
		results = append(results, scored{mat: item.Material, score: dot(q, item.Vector)})
	}
	sort.Slice(results, func(a, b int) bool { return results[a].score > results[b].score })

	if topK > len(results) {
		topK = len(results)
	}
	out := make([]model.MarketingMaterial, 0, topK)
	for _, r := range results[:topK] {
		out = append(out, model.MarketingMaterial{
			ID:             r.mat.ID,
			Title:          r.mat.Title,
			Link:           r.mat.Link,
			Industry:       r.mat.Industry,
			BusinessTopics: r.mat.BusinessTopics,
			Score:          r.score,
		})
	}
	return out, nil
}

// Record fields that carry signal for collateral matching.
var queryFields = []struct {
	field string
	label string
}{
	{"Company", "Company"},
	{"Deal_Name", "Company"},
	{"Industry", "Industry"},
	{"Description", "Description"},
	{"Title", "Role"},
	{"Lead_Source", "Source"},
	{"Website", "Website"},
	{"Notes", "Notes"},
	{"Requirements", "Requirements"},
	{"Pain_Points", "Pain Points"},
	{"Use_Case", "Use Case"},
}

// SearchForRecord matches materials against a CRM record's profile fields.
func (i *Index) SearchForRecord(ctx context.Context, fields map[string]any, topK int) ([]model.MarketingMaterial, error) {
	var parts []string
	for _, qf := range queryFields {
		if v, ok := fields[qf.field].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, qf.label+": "+v)
			}
		}
	}
	return i.Search(ctx, strings.Join(parts, "\n"), topK)
}

func (i *Index) load() error {
	data, err := os.ReadFile(i.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "vector: read index file")
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return eris.Wrap(err, "vector: parse index file")
	}
	i.mu.Lock()
	i.items = f.Items
	i.mu.Unlock()
	zap.L().Info("vector index loaded",
		zap.String("path", i.path), zap.Int("count", len(f.Items)))
	return nil
}

func (i *Index) save() error {
	i.mu.RLock()
	data, err := json.Marshal(indexFile{Items: i.items})
	i.mu.RUnlock()
	if err != nil {
		return eris.Wrap(err, "vector: marshal index")
	}
	if dir := filepath.Dir(i.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "vector: create index dir")
		}
	}
	if err := os.WriteFile(i.path, data, 0o644); err != nil {
		return eris.Wrap(err, "vector: write index file")
	}
	return nil
}

// normalize scales v to unit length in place so dot products are cosine
// similarities.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for j := range v {
		v[j] = float32(float64(v[j]) * inv)
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for j := 0; j < n; j++ {
		sum += float64(a[j]) * float64(b[j])
	}
	return sum
}
