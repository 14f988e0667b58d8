// Package fireflies fetches meeting transcripts from the Fireflies.ai
// GraphQL API.
package fireflies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default endpoint for the Fireflies GraphQL API.
const defaultBaseURL = "https://api.fireflies.ai/graphql"

// Client defines the Fireflies API operations used by the pipeline.
type Client interface {
	TranscriptsByParticipant(ctx context.Context, email string, limit int) ([]Transcript, error)
}

// Transcript is a single recorded meeting with its AI-generated summary.
type Transcript struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Date        int64    `json:"date"` // epoch millis
	Overview    string   `json:"overview"`
	ActionItems string   `json:"action_items"`
	Keywords    []string `json:"keywords"`
}

// When returns the meeting date as a time.Time.
func (t Transcript) When() time.Time {
	return time.UnixMilli(t.Date)
}

// APIError is returned when Fireflies responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fireflies: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default GraphQL endpoint.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Fireflies client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
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

const transcriptsQuery = `query Transcripts($email: String!, $limit: Int) {
  transcripts(participant_email: $email, limit: $limit) {
    id
    title
    date
    summary {
      overview
      action_items
      keywords
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type transcriptsResponse struct {
	Data struct {
		Transcripts []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Date    int64  `json:"date"`
			Summary struct {
				Overview    string   `json:"overview"`
				ActionItems string   `json:"action_items"`
				Keywords    []string `json:"keywords"`
			} `json:"summary"`
		} `json:"transcripts"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (c *httpClient) TranscriptsByParticipant(ctx context.Context, email string, limit int) ([]Transcript, error) {
	if limit <= 0 {
		limit = 5
	}
	var resp transcriptsResponse
	err := c.query(ctx, graphQLRequest{
		Query: transcriptsQuery,
		Variables: map[string]any{
			"email": email,
			"limit": limit,
		},
	}, &resp)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("fireflies: transcripts for %s", email))
	}
	if len(resp.Errors) > 0 {
		return nil, eris.Errorf("fireflies: graphql: %s", resp.Errors[0].Message)
	}

	out := make([]Transcript, 0, len(resp.Data.Transcripts))
	for _, t := range resp.Data.Transcripts {
		out = append(out, Transcript{
			ID:          t.ID,
			Title:       t.Title,
			Date:        t.Date,
			Overview:    t.Summary.Overview,
			ActionItems: t.Summary.ActionItems,
			Keywords:    t.Summary.Keywords,
		})
	}
	return out, nil
}

func (c *httpClient) query(ctx context.Context, body graphQLRequest, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
