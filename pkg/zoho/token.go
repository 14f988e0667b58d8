// Package zoho provides OAuth-refreshed REST API access to Zoho CRM.
package zoho

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Default accounts endpoint for token refresh.
const defaultAccountsURL = "https://accounts.zoho.com"

// Credentials holds the long-lived OAuth material used to mint access tokens.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountsURL  string
}

// TokenStatus is a point-in-time snapshot of the token manager state.
type TokenStatus struct {
	Initialized bool      `json:"initialized"`
	ExpiresAt   time.Time `json:"expires_at"`
	APIDomain   string    `json:"api_domain"`
}

// TokenOption configures the TokenManager.
type TokenOption func(*TokenManager)

// WithRefreshBuffer sets how long before expiry a token is treated as stale.
func WithRefreshBuffer(d time.Duration) TokenOption {
	return func(m *TokenManager) {
		if d >= 0 {
			m.buffer = d
		}
	}
}

// WithRefreshRetryDelay sets how long the background loop waits after a
// failed refresh before trying again.
func WithRefreshRetryDelay(d time.Duration) TokenOption {
	return func(m *TokenManager) {
		if d > 0 {
			m.retryDelay = d
		}
	}
}

// WithTokenHTTPClient sets a custom *http.Client for the refresh endpoint.
func WithTokenHTTPClient(hc *http.Client) TokenOption {
	return func(m *TokenManager) {
		m.http = hc
	}
}

// TokenManager mints and rotates Zoho access tokens from a refresh token.
// A background loop renews the token shortly before expiry so callers on the
// hot path almost never pay the refresh round trip. All methods are safe for
// concurrent use; at most one refresh is in flight at a time.
type TokenManager struct {
	creds      Credentials
	http       *http.Client
	buffer     time.Duration
	retryDelay time.Duration
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	apiDomain   string
	initialized bool
	loopStarted bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewTokenManager creates a TokenManager for the given credentials. Call
// Initialize before first use and Close on shutdown.
func NewTokenManager(creds Credentials, opts ...TokenOption) *TokenManager {
	if creds.AccountsURL == "" {
		creds.AccountsURL = defaultAccountsURL
	}
	m := &TokenManager{
		creds:      creds,
		buffer:     5 * time.Minute,
		retryDelay: 60 * time.Second,
		now:        time.Now,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize performs the first refresh and starts the background renewal
// loop. It fails fast if the credentials cannot mint a token.
func (m *TokenManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	err := m.refreshLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return eris.Wrap(err, "zoho: initialize token")
	}
	m.loopStarted = true
	m.mu.Unlock()
	go m.renewLoop()
	return nil
}

// Token returns a currently valid access token, refreshing synchronously if
// the cached one is within the staleness buffer of expiry. Concurrent callers
// holding an expired token trigger exactly one refresh; the rest reuse its
// result.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.validLocked() {
		return m.accessToken, nil
	}
	if err := m.refreshLocked(ctx); err != nil {
		return "", eris.Wrap(err, "zoho: refresh token")
	}
	return m.accessToken, nil
}

// Invalidate discards the cached token so the next Token call refreshes.
// Used when the API rejects a token the manager still thought was valid.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

// APIDomain returns the API base URL reported by the last refresh, or the
// empty string before initialization.
func (m *TokenManager) APIDomain() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiDomain
}

// Status reports the current token state without forcing a refresh.
func (m *TokenManager) Status() TokenStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TokenStatus{
		Initialized: m.initialized,
		ExpiresAt:   m.expiresAt,
		APIDomain:   m.apiDomain,
	}
}

// Close stops the background renewal loop. It returns immediately when
// Initialize never ran (or failed), since no loop owns the done channel then.
func (m *TokenManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		started := m.loopStarted
		m.mu.Unlock()
		if started {
			<-m.done
		}
	})
}

func (m *TokenManager) validLocked() bool {
	return m.accessToken != "" && m.now().Before(m.expiresAt.Add(-m.buffer))
}

// tokenResponse is the Zoho accounts token endpoint payload. Error responses
// come back with HTTP 200 and an "error" key.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	APIDomain   string `json:"api_domain"`
	Error       string `json:"error"`
}

// refreshLocked exchanges the refresh token for a new access token. Caller
// must hold m.mu.
func (m *TokenManager) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"refresh_token": {m.creds.RefreshToken},
		"client_id":     {m.creds.ClientID},
		"client_secret": {m.creds.ClientSecret},
		"grant_type":    {"refresh_token"},
	}

	endpoint := strings.TrimRight(m.creds.AccountsURL, "/") + "/oauth/v2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return eris.Wrap(err, "decode response")
	}
	if tok.Error != "" {
		return eris.Errorf("token endpoint: %s", tok.Error)
	}
	if tok.AccessToken == "" {
		return eris.New("token endpoint: empty access_token")
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = 3600
	}

	m.accessToken = tok.AccessToken
	m.expiresAt = m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.APIDomain != "" {
		m.apiDomain = tok.APIDomain
	}
	m.initialized = true

	zap.L().Debug("zoho token refreshed",
		zap.Time("expires_at", m.expiresAt),
		zap.String("api_domain", m.apiDomain))
	return nil
}

// renewLoop refreshes the token in the background shortly before it expires.
// A failed refresh is retried after retryDelay; callers on the request path
// still refresh on demand through Token, so the loop never blocks them.
func (m *TokenManager) renewLoop() {
	defer close(m.done)
	for {
		m.mu.Lock()
		wait := m.expiresAt.Add(-m.buffer).Sub(m.now())
		m.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-m.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		m.mu.Lock()
		var err error
		if !m.validLocked() {
			err = m.refreshLocked(ctx)
		}
		m.mu.Unlock()
		cancel()

		if err != nil {
			zap.L().Warn("background token refresh failed, will retry",
				zap.Duration("retry_in", m.retryDelay),
				zap.Error(err))
			timer := time.NewTimer(m.retryDelay)
			select {
			case <-m.stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}
