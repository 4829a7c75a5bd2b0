// Google OAuth2 token lifecycle for Drive access
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
)

// DriveReadOnlyScope is the only scope drivetune requests.
const DriveReadOnlyScope = "https://www.googleapis.com/auth/drive.readonly"

// NewGoogleOAuthConfig builds the OAuth2 client config for Drive read access.
func NewGoogleOAuthConfig(c shared.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       []string{DriveReadOnlyScope},
		Endpoint:     google.Endpoint,
	}
}

// TokenStore persists the OAuth2 credential between runs.
type TokenStore interface {
	// Load returns the stored token, or nil when none has been saved.
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileTokenStore keeps the token as JSON on disk.
type FileTokenStore struct {
	Path string
}

func (f FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &tok, nil
}

func (f FileTokenStore) Save(tok *oauth2.Token) error {
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// TokenManager owns the Drive access token. It is safe for concurrent use; concurrent
// refreshes collapse into a single call to the token endpoint.
type TokenManager struct {
	config     *oauth2.Config
	store      TokenStore
	httpClient *http.Client
	logger     *log.Logger

	mu     sync.RWMutex
	token  *oauth2.Token
	loaded bool
	group  singleflight.Group
}

// TokenManagerOption configures a [TokenManager].
type TokenManagerOption func(*TokenManager)

// WithTokenHTTPClient sets the client used to reach the token endpoint.
func WithTokenHTTPClient(c *http.Client) TokenManagerOption {
	return func(m *TokenManager) { m.httpClient = c }
}

// WithTokenLogger sets the logger.
func WithTokenLogger(l *log.Logger) TokenManagerOption {
	return func(m *TokenManager) { m.logger = shared.WithLogger(l, "component", "tokens") }
}

// NewTokenManager creates a manager backed by store. The token is loaded lazily.
func NewTokenManager(config *oauth2.Config, store TokenStore, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{config: config, store: store, logger: shared.WithLogger(nil, "component", "tokens")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *TokenManager) oauthContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// current returns the cached token, loading it from the store on first use.
func (m *TokenManager) current() (*oauth2.Token, error) {
	m.mu.RLock()
	tok, loaded := m.token, m.loaded
	m.mu.RUnlock()
	if loaded {
		return tok, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return m.token, nil
	}

	if m.store != nil {
		stored, err := m.store.Load()
		if err != nil {
			return nil, err
		}
		m.token = stored
	}
	m.loaded = true
	return m.token, nil
}

// HasCredential reports whether any token, valid or not, is available.
func (m *TokenManager) HasCredential() bool {
	tok, err := m.current()
	return err == nil && tok != nil
}

// Token returns a copy of the cached token, or nil.
func (m *TokenManager) Token() *oauth2.Token {
	tok, err := m.current()
	if err != nil || tok == nil {
		return nil
	}
	cp := *tok
	return &cp
}

// AccessToken returns a valid access token, refreshing it when expired.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	tok, err := m.current()
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", shared.ErrAuthUnavailable
	}
	if tok.Valid() {
		return tok.AccessToken, nil
	}
	return m.refresh(ctx, "expired")
}

// ForceRefresh exchanges the refresh token for a new access token even if the
// cached one has not expired.
func (m *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	return m.refresh(ctx, "forced")
}

// refreshTimeout bounds a shared refresh; callers leave early through their own context.
const refreshTimeout = 30 * time.Second

func (m *TokenManager) refresh(ctx context.Context, reason string) (string, error) {
	ch := m.group.DoChan("refresh", func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		tok, err := m.current()
		if err != nil {
			return "", err
		}
		if tok == nil || tok.RefreshToken == "" {
			return "", shared.ErrAuthUnavailable
		}

		stale := *tok
		stale.Expiry = time.Now().Add(-time.Minute)

		fresh, err := m.config.TokenSource(m.oauthContext(refreshCtx), &stale).Token()
		if err != nil {
			m.logger.Error("token refresh failed", "reason", reason, "error", err)
			return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
		}
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = tok.RefreshToken
		}

		if err := m.SetToken(fresh); err != nil {
			m.logger.Warn("failed to persist refreshed token", "error", err)
		}
		m.logger.Debug("refreshed access token", "reason", reason, "expiry", fresh.Expiry)
		return fresh.AccessToken, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			m.logger.Debug("shared in-flight token refresh", "reason", reason)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SetToken replaces the cached token and persists it.
func (m *TokenManager) SetToken(tok *oauth2.Token) error {
	m.mu.Lock()
	m.token = tok
	m.loaded = true
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Save(tok)
}

// AuthCodeURL returns the consent page URL, requesting offline access with a forced consent prompt.
func (m *TokenManager) AuthCodeURL(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token and stores it.
func (m *TokenManager) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := m.config.Exchange(m.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	if err := m.SetToken(tok); err != nil {
		return nil, err
	}
	return tok, nil
}
