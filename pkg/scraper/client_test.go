package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Fetch(ctx context.Context, url string) (*Page, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Page), args.Error(1)
}

func TestFetch_Firecrawl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))

		var req scrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://acme.io", req.URL)

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"markdown": "# Acme\nWe make anvils.",
				"metadata": map[string]any{"title": "Acme Inc"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("fc-key", WithBaseURL(srv.URL))
	page, err := client.Fetch(context.Background(), "https://acme.io")
	require.NoError(t, err)
	assert.Equal(t, "firecrawl", page.Source)
	assert.Equal(t, "Acme Inc", page.Title)
	assert.Contains(t, page.Content, "We make anvils.")
}

func TestFetch_FallsBackToLocal(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><style>body{}</style></head><body><h1>Acme</h1><p>We make anvils.</p><script>track()</script></body></html>`))
	}))
	defer site.Close()

	firecrawl := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer firecrawl.Close()

	client := NewClient("fc-key", WithBaseURL(firecrawl.URL))
	page, err := client.Fetch(context.Background(), site.URL)
	require.NoError(t, err)
	assert.Equal(t, "local", page.Source)
	assert.Contains(t, page.Content, "Acme")
	assert.Contains(t, page.Content, "We make anvils.")
	assert.NotContains(t, page.Content, "track()")
	assert.NotContains(t, page.Content, "body{}")
}

func TestFetch_NoAPIKeyUsesLocal(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body>plain page</body></html>"))
	}))
	defer site.Close()

	client := NewClient("")
	page, err := client.Fetch(context.Background(), site.URL)
	require.NoError(t, err)
	assert.Equal(t, "local", page.Source)
	assert.Equal(t, "plain page", page.Content)
}

func TestFetch_LocalHTTPError(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer site.Close()

	client := NewClient("")
	_, err := client.Fetch(context.Background(), site.URL)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestStripHTML(t *testing.T) {
	in := `<div>  Hello <b>world</b>
	</div><script>var x = "<p>";</script> done`
	assert.Equal(t, "Hello world done", stripHTML(in))
}
