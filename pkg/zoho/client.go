package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/crm-enrich/internal/resilience"
)

// Client defines the Zoho CRM API operations used by the enrichment pipeline.
type Client interface {
	GetRecord(ctx context.Context, module, id string) (map[string]any, error)
	SearchRecords(ctx context.Context, module, criteria string) ([]map[string]any, error)
	ListAttachments(ctx context.Context, module, id string) ([]AttachmentMeta, error)
	DownloadAttachment(ctx context.Context, module, recordID, attachmentID string) ([]byte, error)
	GetRelatedContacts(ctx context.Context, dealID string) ([]map[string]any, error)
	UpdateRecord(ctx context.Context, module, id string, fields map[string]any) error
}

// AttachmentMeta describes a file attached to a CRM record.
type AttachmentMeta struct {
	ID       string `json:"id"`
	FileName string `json:"File_Name"`
	Size     int64  `json:"Size,string"`
}

// APIError is returned when Zoho responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zoho: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether the error is a Zoho 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return eris.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithAPIDomain overrides the API base URL reported by the token manager.
func WithAPIDomain(domain string) Option {
	return func(c *httpClient) {
		c.apiDomain = domain
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for CRM API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// httpClient implements Client using net/http. A 401 response invalidates
// the cached token and the request is retried exactly once with a fresh one;
// 429 and 5xx responses are retried with backoff.
type httpClient struct {
	tokens    *TokenManager
	apiDomain string
	http      *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
}

// NewClient creates a new Zoho CRM client backed by the given token manager.
func NewClient(tokens *TokenManager, opts ...Option) Client {
	c := &httpClient{
		tokens: tokens,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// recordList is the envelope Zoho wraps record payloads in.
type recordList struct {
	Data []map[string]any `json:"data"`
}

func (c *httpClient) GetRecord(ctx context.Context, module, id string) (map[string]any, error) {
	var out recordList
	if err := c.getJSON(ctx, fmt.Sprintf("/crm/v2/%s/%s", module, id), &out); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("zoho: get %s %s", module, id))
	}
	if len(out.Data) == 0 {
		return nil, eris.Errorf("zoho: %s %s not found", module, id)
	}
	return out.Data[0], nil
}

func (c *httpClient) SearchRecords(ctx context.Context, module, criteria string) ([]map[string]any, error) {
	path := fmt.Sprintf("/crm/v2/%s/search?criteria=%s", module, url.QueryEscape(criteria))
	var out recordList
	if err := c.getJSON(ctx, path, &out); err != nil {
		// Zoho answers an empty search with 204 and no body.
		var apiErr *APIError
		if eris.As(err, &apiErr) && apiErr.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		return nil, eris.Wrap(err, fmt.Sprintf("zoho: search %s", module))
	}
	return out.Data, nil
}

func (c *httpClient) ListAttachments(ctx context.Context, module, id string) ([]AttachmentMeta, error) {
	var out struct {
		Data []AttachmentMeta `json:"data"`
	}
	path := fmt.Sprintf("/crm/v2/%s/%s/Attachments", module, id)
	if err := c.getJSON(ctx, path, &out); err != nil {
		var apiErr *APIError
		if eris.As(err, &apiErr) && apiErr.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		return nil, eris.Wrap(err, fmt.Sprintf("zoho: list attachments %s %s", module, id))
	}
	return out.Data, nil
}

func (c *httpClient) DownloadAttachment(ctx context.Context, module, recordID, attachmentID string) ([]byte, error) {
	path := fmt.Sprintf("/crm/v2/%s/%s/Attachments/%s", module, recordID, attachmentID)
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("zoho: download attachment %s", attachmentID))
	}
	return data, nil
}

func (c *httpClient) GetRelatedContacts(ctx context.Context, dealID string) ([]map[string]any, error) {
	var out recordList
	path := fmt.Sprintf("/crm/v2/Deals/%s/Contact_Roles", dealID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		var apiErr *APIError
		if eris.As(err, &apiErr) && apiErr.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		return nil, eris.Wrap(err, fmt.Sprintf("zoho: related contacts %s", dealID))
	}
	return out.Data, nil
}

func (c *httpClient) UpdateRecord(ctx context.Context, module, id string, fields map[string]any) error {
	body, err := json.Marshal(recordList{Data: []map[string]any{fields}})
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}
	path := fmt.Sprintf("/crm/v2/%s/%s", module, id)
	if _, err := c.do(ctx, http.MethodPut, path, body); err != nil {
		return eris.Wrap(err, fmt.Sprintf("zoho: update %s %s", module, id))
	}
	return nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return &APIError{StatusCode: http.StatusNoContent}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func (c *httpClient) baseURL() string {
	if c.apiDomain != "" {
		return c.apiDomain
	}
	return c.tokens.APIDomain()
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}
	}

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("zoho", method+" "+path)
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		data, status, err := c.doOnce(ctx, method, path, body)
		if status == http.StatusUnauthorized {
			// Token was revoked out from under us. Refresh and retry once.
			c.tokens.Invalidate()
			data, status, err = c.doOnce(ctx, method, path, body)
		}
		if err != nil {
			return nil, err
		}
		if status == http.StatusNoContent {
			return nil, nil
		}
		if status < 200 || status >= 300 {
			apiErr := &APIError{StatusCode: status, Body: string(data)}
			if resilience.IsTransientHTTPStatus(status) {
				return nil, resilience.NewTransientError(apiErr, status)
			}
			return nil, apiErr
		}
		return data, nil
	})
}

func (c *httpClient) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return nil, 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read response body")
	}
	return data, resp.StatusCode, nil
}
