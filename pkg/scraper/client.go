// Package scraper fetches website content as markdown-ish text for
// enrichment context. It prefers the Firecrawl API and falls back to a
// plain HTTP fetch when no API key is configured or the API fails.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Default base URL for the Firecrawl v2 API.
const defaultBaseURL = "https://api.firecrawl.dev/v2"

// Client fetches the text content of a web page.
type Client interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Page is the fetched content of a single URL.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"` // "firecrawl" or "local"
}

// APIError is returned when Firecrawl responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scraper: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the fetcher.
type Option func(*fetcher)

// WithBaseURL overrides the Firecrawl base URL.
func WithBaseURL(url string) Option {
	return func(c *fetcher) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *fetcher) {
		c.http = hc
	}
}

// fetcher implements Client. An empty apiKey disables Firecrawl entirely.
type fetcher struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new scraper client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &fetcher{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if c.apiKey != "" {
		page, err := c.scrapeFirecrawl(ctx, url)
		if err == nil {
			return page, nil
		}
		zap.L().Warn("firecrawl fetch failed, using local fallback",
			zap.String("url", url),
			zap.Error(err))
	}
	return c.fetchLocal(ctx, url)
}

// scrapeRequest is the body for POST /scrape.
type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats,omitempty"`
}

// scrapeResponse is the response from POST /scrape.
type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

func (c *fetcher) scrapeFirecrawl(ctx context.Context, url string) (*Page, error) {
	buf, err := json.Marshal(scrapeRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out scrapeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "decode response")
	}
	if !out.Success {
		return nil, eris.New("scraper: firecrawl reported failure")
	}

	return &Page{
		URL:     url,
		Title:   out.Data.Metadata.Title,
		Content: out.Data.Markdown,
		Source:  "firecrawl",
	}, nil
}

// maxLocalBodyBytes caps how much of a page the local fallback reads.
const maxLocalBodyBytes = 2 << 20

func (c *fetcher) fetchLocal(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: create request")
	}
	req.Header.Set("User-Agent", "crm-enrich/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("scraper: fetch %s", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLocalBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scraper: read body")
	}

	return &Page{
		URL:     url,
		Content: stripHTML(string(data)),
		Source:  "local",
	}, nil
}

// stripHTML removes tags, scripts, and styles, leaving readable text.
// Crude compared to the Firecrawl output but good enough for a fallback.
func stripHTML(s string) string {
	var b bytes.Buffer
	inTag := false
	skipDepth := 0
	i := 0
	for i < len(s) {
		if s[i] == '<' {
			rest := s[i:]
			switch {
			case hasFoldPrefix(rest, "<script"), hasFoldPrefix(rest, "<style"):
				skipDepth++
			case hasFoldPrefix(rest, "</script"), hasFoldPrefix(rest, "</style"):
				if skipDepth > 0 {
					skipDepth--
				}
			}
			inTag = true
			i++
			continue
		}
		if s[i] == '>' {
			inTag = false
			i++
			continue
		}
		if !inTag && skipDepth == 0 {
			b.WriteByte(s[i])
		}
		i++
	}
	return collapseWhitespace(b.String())
}

func hasFoldPrefix(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	var b bytes.Buffer
	lastSpace := true
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return string(bytes.TrimSpace(b.Bytes()))
}
