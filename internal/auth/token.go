// Package auth implements the OAuth 2.0 password-grant token lifecycle for
// the provider directory API.
package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"provider-lake/internal/common/errors"
	"provider-lake/internal/common/logging"
)

const (
	// expiryBuffer is subtracted from the reported lifetime so a token is
	// refreshed before it actually lapses mid-request.
	expiryBuffer = 60 * time.Second

	// minRefreshInterval guards the token endpoint against stampedes when
	// many workers ask for a token at once and the refresh keeps failing.
	minRefreshInterval = 5 * time.Second

	// defaultTokenLifetime applies when the endpoint reports no expiry at
	// all, not even a JWT exp claim.
	defaultTokenLifetime = time.Hour
)

// Config holds token endpoint settings
type Config struct {
	TokenURL string
	Username string
	Password string
}

// tokenResponse represents the response from the token endpoint
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// TokenManager acquires and caches a password-grant access token.
//
// GetValidToken returns the cached token while it is still comfortably
// inside its lifetime and refreshes it otherwise. Refreshes are serialized
// with double-checked locking so concurrent geocode workers trigger at most
// one request to the token endpoint.
type TokenManager struct {
	config Config
	client *http.Client
	logger logging.Logger

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
	lastRefresh time.Time
}

// NewTokenManager creates a token manager for the given endpoint
func NewTokenManager(config Config, client *http.Client) (*TokenManager, error) {
	if config.TokenURL == "" {
		return nil, errors.ConfigError("token URL is required")
	}
	if config.Username == "" || config.Password == "" {
		return nil, errors.ConfigError("username and password are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &TokenManager{
		config: config,
		client: client,
		logger: logging.GetGlobalLogger().WithFields(logging.String("component", "auth")),
	}, nil
}

// GetValidToken returns a valid access token, refreshing if necessary
func (tm *TokenManager) GetValidToken(ctx context.Context) (string, error) {
	tm.mu.RLock()
	if tm.accessToken != "" && time.Now().Before(tm.expiresAt.Add(-expiryBuffer)) {
		token := tm.accessToken
		tm.mu.RUnlock()
		return token, nil
	}
	tm.mu.RUnlock()

	return tm.refreshToken(ctx)
}

// refreshToken obtains a new access token
func (tm *TokenManager) refreshToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock
	if tm.accessToken != "" && time.Now().Before(tm.expiresAt.Add(-expiryBuffer)) {
		return tm.accessToken, nil
	}

	if !tm.lastRefresh.IsZero() && time.Since(tm.lastRefresh) < minRefreshInterval {
		return "", errors.AuthError("token refresh attempted too recently")
	}
	tm.lastRefresh = time.Now()

	resp, err := tm.requestToken(ctx)
	if err != nil {
		return "", err
	}

	tm.accessToken = resp.AccessToken
	tm.expiresAt = tm.resolveExpiry(resp)

	tm.logger.Debug("Access token refreshed",
		logging.Time("expires_at", tm.expiresAt),
	)

	return tm.accessToken, nil
}

// requestToken performs the password-grant request
func (tm *TokenManager) requestToken(ctx context.Context) (*tokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", tm.config.Username)
	data.Set("password", tm.config.Password)

	req, err := http.NewRequestWithContext(ctx, "POST", tm.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.InternalError("failed to create token request", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := tm.client.Do(req)
	if err != nil {
		return nil, errors.ConnectionError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.InternalError("failed to read token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.AuthError("token request failed").
			WithCode(http.StatusText(resp.StatusCode)).
			WithContext("status", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.ParseError("failed to decode token response", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, errors.AuthError("no access token in response")
	}

	return &tokenResp, nil
}

// resolveExpiry determines when the token lapses. Preference order:
// the expires_in field, the token's own JWT exp claim, a fixed default.
func (tm *TokenManager) resolveExpiry(resp *tokenResponse) time.Time {
	if resp.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if exp, ok := jwtExpiry(resp.AccessToken); ok {
		return exp
	}

	return time.Now().Add(defaultTokenLifetime)
}

// jwtExpiry extracts the exp claim from a JWT access token without
// verifying the signature. The token is trusted because it came straight
// from the token endpoint over TLS; we only need its lifetime.
func jwtExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// Invalidate clears the cached token, forcing the next call to refresh
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.accessToken = ""
	tm.expiresAt = time.Time{}
	tm.lastRefresh = time.Time{}
}
