package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, refreshes *atomic.Int64, respond func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth/v2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "client-id", r.PostForm.Get("client_id"))
		require.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		require.Equal(t, "refresh-token", r.PostForm.Get("refresh_token"))
		refreshes.Add(1)
		respond(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testCreds(accountsURL string) Credentials {
	return Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
		AccountsURL:  accountsURL,
	}
}

func TestTokenManager_InitializeAndToken(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
			"api_domain":   "https://www.zohoapis.com",
		})
	})

	m := NewTokenManager(testCreds(srv.URL))
	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, "https://www.zohoapis.com", m.APIDomain())
	assert.EqualValues(t, 1, refreshes.Load())

	status := m.Status()
	assert.True(t, status.Initialized)
	assert.WithinDuration(t, time.Now().Add(time.Hour), status.ExpiresAt, 5*time.Second)
}

func TestTokenManager_DefaultExpiry(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		// No expires_in in the payload; manager assumes one hour.
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1"})
	})

	m := NewTokenManager(testCreds(srv.URL))
	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()

	assert.WithinDuration(t, time.Now().Add(time.Hour), m.Status().ExpiresAt, 5*time.Second)
}

func TestTokenManager_ErrorKeyInBody(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		// Zoho reports credential errors with HTTP 200 and an "error" key.
		json.NewEncoder(w).Encode(map[string]any{"error": "invalid_code"})
	})

	m := NewTokenManager(testCreds(srv.URL))
	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_code")
	assert.False(t, m.Status().Initialized)
}

func TestTokenManager_HTTPError(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	})

	m := NewTokenManager(testCreds(srv.URL))
	err := m.Initialize(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestTokenManager_RefreshesWithinBuffer(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		n := refreshes.Load()
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_in":   3600,
		})
	})

	m := NewTokenManager(testCreds(srv.URL), WithRefreshBuffer(5*time.Minute))

	base := time.Now()
	m.now = func() time.Time { return base }
	m.mu.Lock()
	require.NoError(t, m.refreshLocked(context.Background()))
	m.mu.Unlock()
	require.EqualValues(t, 1, refreshes.Load())

	// Still comfortably before expiry minus the buffer: no refresh.
	m.now = func() time.Time { return base.Add(30 * time.Minute) }
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.EqualValues(t, 1, refreshes.Load())

	// Inside the buffer window: token counts as stale even though the
	// nominal expiry has not passed.
	m.now = func() time.Time { return base.Add(56 * time.Minute) }
	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.EqualValues(t, 2, refreshes.Load())
}

func TestTokenManager_SingleRefreshUnderContention(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(20 * time.Millisecond) // widen the race window
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-shared",
			"expires_in":   3600,
		})
	})

	m := NewTokenManager(testCreds(srv.URL))

	const goroutines = 25
	var wg sync.WaitGroup
	tokens := make([]string, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-shared", tokens[i])
	}
	assert.EqualValues(t, 1, refreshes.Load(), "concurrent callers must share one refresh")
}

func TestTokenManager_InvalidateForcesRefresh(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		n := refreshes.Load()
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_in":   3600,
		})
	})

	m := NewTokenManager(testCreds(srv.URL))
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	m.Invalidate()

	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.EqualValues(t, 2, refreshes.Load())
}

func TestTokenManager_CloseStopsRenewLoop(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	})

	m := NewTokenManager(testCreds(srv.URL))
	require.NoError(t, m.Initialize(context.Background()))
	m.Close()

	// Close waits for the loop to exit, so a second Close must not hang.
	m.Close()
}

func TestTokenManager_CloseWithoutInitialize(t *testing.T) {
	m := NewTokenManager(Credentials{ClientID: "id", ClientSecret: "sec", RefreshToken: "rt"})

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked with no renewal loop running")
	}
}

func TestTokenManager_CloseAfterFailedInitialize(t *testing.T) {
	var refreshes atomic.Int64
	srv := newTokenServer(t, &refreshes, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	m := NewTokenManager(testCreds(srv.URL))
	require.Error(t, m.Initialize(context.Background()))

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked after a failed Initialize")
	}
}
