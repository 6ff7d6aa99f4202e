package poolcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// expiryBuffer is how much remaining validity a token must have before
// EnsureValid hands it out. Tokens closer than this to expiry are refreshed
// first, so callers always receive at least this much runway.
const expiryBuffer = 5 * time.Minute

// maxAuthBodySize caps how much of an identity provider response is read.
const maxAuthBodySize = 1 << 20 // 1MB

// Credentials identify the pool-controller account. They are process-held
// and replaced wholesale on repair; the core never persists them.
type Credentials struct {
	Email    string
	Password string
}

// Session is one authenticated exchange with the identity provider:
// an access token, the refresh token that renews it, the token's absolute
// expiry and the opaque subject id the provider assigned.
type Session struct {
	AccessToken  string
	RefreshToken string
	SubjectID    string
	Expiry       time.Time
}

// SessionConfig contains identity provider endpoints and the client API key.
type SessionConfig struct {
	// IdentityURL is the base URL of the identity provider; the password
	// sign-in endpoint lives under it.
	IdentityURL string

	// TokenURL is the refresh-token exchange endpoint.
	TokenURL string

	// APIKey is the fixed client API key both endpoints require.
	APIKey string

	// HTTPClient is the client used for provider calls.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// Logger is the minimal logging interface poolcloud components accept.
// Compatible with logging.Logger. A nil logger disables logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SessionManager owns credential state and the current token pair for one
// pool account. It authenticates, refreshes proactively, and retries with a
// full re-authentication when a refresh is rejected.
//
// Thread Safety: all methods are safe for concurrent use. A single mutex
// guards the session; call frequency is low (one fetch per few minutes,
// occasional writes), so holding it across the provider round-trip keeps
// concurrent callers from racing to authenticate.
type SessionManager struct {
	mu    sync.Mutex
	creds Credentials
	sess  *Session

	cfg  SessionConfig
	http *http.Client

	// now is a clock hook for tests.
	now func() time.Time

	logger Logger
}

// NewSessionManager creates a session manager for the given account.
// No network call is made until the first EnsureValid or Authenticate.
func NewSessionManager(cfg SessionConfig, creds Credentials) *SessionManager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SessionManager{
		creds: creds,
		cfg:   cfg,
		http:  httpClient,
		now:   time.Now,
	}
}

// SetLogger sets an optional logger.
func (m *SessionManager) SetLogger(logger Logger) {
	m.mu.Lock()
	m.logger = logger
	m.mu.Unlock()
}

// Authenticate exchanges the held email and password for a fresh session.
//
// Returns:
//   - error: *AuthError carrying the provider's status code on invalid
//     credentials or provider outage
func (m *SessionManager) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticateLocked(ctx)
}

// Refresh exchanges the current refresh token for a new session.
//
// If no refresh token is held, or the provider rejects it (e.g. revoked),
// the session is cleared so the next EnsureValid falls back to a full
// authentication, and an *AuthError is returned.
func (m *SessionManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

// EnsureValid returns a usable access token.
//
// If no session exists it authenticates. If the session expires within
// expiryBuffer it refreshes first; a failed refresh falls back to a full
// authentication. The returned token therefore always has at least the
// buffer's worth of remaining validity, unless authentication itself is
// failing, which propagates as *AuthError.
func (m *SessionManager) EnsureValid(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		if err := m.authenticateLocked(ctx); err != nil {
			return "", err
		}
		return m.sess.AccessToken, nil
	}

	if m.now().Add(expiryBuffer).After(m.sess.Expiry) {
		if err := m.refreshLocked(ctx); err != nil {
			m.logWarn("refresh failed, falling back to authentication", "error", err)
			if authErr := m.authenticateLocked(ctx); authErr != nil {
				return "", authErr
			}
		}
	}

	return m.sess.AccessToken, nil
}

// Invalidate forces the next EnsureValid to re-authenticate.
//
// Used after a 401/403 from the data API: the provider's own expiry
// estimate may be stale, or the token revoked out of band.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	m.sess = nil
	m.mu.Unlock()
}

// UpdateCredentials replaces the stored credentials and invalidates the
// session. It does not itself re-authenticate; the next EnsureValid will.
func (m *SessionManager) UpdateCredentials(email, password string) {
	m.mu.Lock()
	m.creds = Credentials{Email: email, Password: password}
	m.sess = nil
	m.mu.Unlock()
}

// signInResponse is the identity provider's password sign-in reply.
// ExpiresIn is seconds, string-encoded.
type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

// refreshResponse is the token endpoint's refresh reply.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    string `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
}

// authenticateLocked performs the password sign-in. Caller holds m.mu.
func (m *SessionManager) authenticateLocked(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"email":             m.creds.Email,
		"password":          m.creds.Password,
		"returnSecureToken": true,
	})
	if err != nil {
		return &AuthError{Op: "authenticate", Err: err}
	}

	endpoint := fmt.Sprintf("%s/accounts:signInWithPassword?key=%s",
		strings.TrimSuffix(m.cfg.IdentityURL, "/"), url.QueryEscape(m.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &AuthError{Op: "authenticate", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return &AuthError{Op: "authenticate", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthBodySize))
	if err != nil {
		return &AuthError{Op: "authenticate", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &AuthError{Op: "authenticate", StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var signIn signInResponse
	if err := json.Unmarshal(respBody, &signIn); err != nil {
		return &AuthError{Op: "authenticate", StatusCode: resp.StatusCode, Err: err}
	}

	m.sess = &Session{
		AccessToken:  signIn.IDToken,
		RefreshToken: signIn.RefreshToken,
		SubjectID:    signIn.LocalID,
		Expiry:       m.now().Add(parseLifetime(signIn.ExpiresIn)),
	}
	m.logDebug("authenticated", "subject", signIn.LocalID)
	return nil
}

// refreshLocked performs the refresh-token exchange. Caller holds m.mu.
// The session is cleared on any failure so the next call starts clean.
func (m *SessionManager) refreshLocked(ctx context.Context) error {
	if m.sess == nil || m.sess.RefreshToken == "" {
		m.sess = nil
		return &AuthError{Op: "refresh", Err: ErrNoRefreshToken}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.sess.RefreshToken)

	endpoint := fmt.Sprintf("%s?key=%s", m.cfg.TokenURL, url.QueryEscape(m.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		m.sess = nil
		return &AuthError{Op: "refresh", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		m.sess = nil
		return &AuthError{Op: "refresh", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthBodySize))
	if err != nil {
		m.sess = nil
		return &AuthError{Op: "refresh", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		m.sess = nil
		return &AuthError{Op: "refresh", StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var refreshed refreshResponse
	if err := json.Unmarshal(respBody, &refreshed); err != nil {
		m.sess = nil
		return &AuthError{Op: "refresh", StatusCode: resp.StatusCode, Err: err}
	}

	m.sess = &Session{
		AccessToken:  refreshed.IDToken,
		RefreshToken: refreshed.RefreshToken,
		SubjectID:    refreshed.UserID,
		Expiry:       m.now().Add(parseLifetime(refreshed.ExpiresIn)),
	}
	m.logDebug("session refreshed", "subject", refreshed.UserID)
	return nil
}

// defaultTokenLifetime is assumed when the provider omits or mangles the
// declared lifetime. One hour matches the provider's documented default.
const defaultTokenLifetime = time.Hour

// parseLifetime converts the provider's string-encoded seconds to a Duration.
func parseLifetime(expiresIn string) time.Duration {
	seconds, err := strconv.ParseInt(expiresIn, 10, 64)
	if err != nil || seconds <= 0 {
		return defaultTokenLifetime
	}
	return time.Duration(seconds) * time.Second
}

// logDebug logs a debug message if a logger is set. Caller holds m.mu.
func (m *SessionManager) logDebug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

// logWarn logs a warning if a logger is set. Caller holds m.mu.
func (m *SessionManager) logWarn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
