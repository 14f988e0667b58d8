package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/resilience"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetRecord(ctx context.Context, module, id string) (map[string]any, error) {
	args := m.Called(ctx, module, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockClient) SearchRecords(ctx context.Context, module, criteria string) ([]map[string]any, error) {
	args := m.Called(ctx, module, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockClient) ListAttachments(ctx context.Context, module, id string) ([]AttachmentMeta, error) {
	args := m.Called(ctx, module, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]AttachmentMeta), args.Error(1)
}

func (m *MockClient) DownloadAttachment(ctx context.Context, module, recordID, attachmentID string) ([]byte, error) {
	args := m.Called(ctx, module, recordID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockClient) GetRelatedContacts(ctx context.Context, dealID string) ([]map[string]any, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockClient) UpdateRecord(ctx context.Context, module, id string, fields map[string]any) error {
	args := m.Called(ctx, module, id, fields)
	return args.Error(0)
}

// newTestClient wires a Client to the given CRM handler with a token manager
// pointed at a stub accounts server.
func newTestClient(t *testing.T, crmHandler http.HandlerFunc) (Client, *atomic.Int64) {
	t.Helper()
	var refreshes atomic.Int64
	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := refreshes.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_in":   3600,
		})
	}))
	t.Cleanup(accounts.Close)

	crm := httptest.NewServer(crmHandler)
	t.Cleanup(crm.Close)

	tokens := NewTokenManager(testCreds(accounts.URL))
	client := NewClient(tokens, WithAPIDomain(crm.URL), WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}))
	return client, &refreshes
}

func TestGetRecord(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v2/Leads/123", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "123", "Company": "Acme"}},
		})
	})

	rec, err := client.GetRecord(context.Background(), "Leads", "123")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec["Company"])
}

func TestGetRecord_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})

	_, err := client.GetRecord(context.Background(), "Leads", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRetryOnceOn401(t *testing.T) {
	var calls atomic.Int64
	client, refreshes := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// First call rejects the token as revoked.
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"code":"INVALID_TOKEN"}`)
			return
		}
		assert.Equal(t, "Zoho-oauthtoken tok-2", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "123"}},
		})
	})

	rec, err := client.GetRecord(context.Background(), "Deals", "123")
	require.NoError(t, err)
	assert.Equal(t, "123", rec["id"])
	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 2, refreshes.Load())
}

func TestNoSecondRetryOnPersistent401(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetRecord(context.Background(), "Leads", "123")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.EqualValues(t, 2, calls.Load(), "exactly one retry after refresh")
}

func TestRateLimitedResponse(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetRecord(context.Background(), "Leads", "123")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.EqualValues(t, 3, calls.Load(), "429 is retried until attempts are exhausted")
}

func TestRetriesTransient500(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "123"}},
		})
	})

	rec, err := client.GetRecord(context.Background(), "Leads", "123")
	require.NoError(t, err)
	assert.Equal(t, "123", rec["id"])
	assert.EqualValues(t, 3, calls.Load())
}

func TestNoRetryOn404(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"RESOURCE_NOT_FOUND"}`)
	})

	_, err := client.GetRecord(context.Background(), "Leads", "123")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSearchRecords_EmptyResult(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	recs, err := client.SearchRecords(context.Background(), "Leads", "(Email:equals:a@b.com)")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestListAndDownloadAttachments(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v2/Deals/d1/Attachments":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": "a1", "File_Name": "pitch.pdf", "Size": "2048"},
				},
			})
		case "/crm/v2/Deals/d1/Attachments/a1":
			w.Write([]byte("%PDF-1.4 fake"))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	metas, err := client.ListAttachments(context.Background(), "Deals", "d1")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "pitch.pdf", metas[0].FileName)
	assert.EqualValues(t, 2048, metas[0].Size)

	content, err := client.DownloadAttachment(context.Background(), "Deals", "d1", "a1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), content)
}

func TestUpdateRecord(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/crm/v2/Leads/123", r.URL.Path)

		var body recordList
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, float64(7), body.Data[0]["Fit_Score"])

		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"status": "success"}}})
	})

	err := client.UpdateRecord(context.Background(), "Leads", "123", map[string]any{"Fit_Score": 7})
	require.NoError(t, err)
}

func TestGetRelatedContacts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v2/Deals/d1/Contact_Roles", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"Email": "founder@acme.io"}},
		})
	})

	contacts, err := client.GetRelatedContacts(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "founder@acme.io", contacts[0]["Email"])
}
