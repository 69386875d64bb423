package authsdk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// expiryLeeway refreshes tokens shortly before they actually expire.
const expiryLeeway = 30 * time.Second

// Session represents an authenticated session with automatic token refresh.
// User sessions refresh with their refresh token; client sessions request a
// new client_credentials token.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time // zero for tokens that never expire
	scopes       map[string]bool
	clientScopes []string
}

// newSession creates a new authenticated session from a token response.
func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	s := &Session{client: client}
	s.apply(tokenResp)
	return s
}

func (s *Session) apply(tokenResp *TokenResponse) {
	s.accessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		s.refreshToken = tokenResp.RefreshToken
	}
	s.expiresAt = time.Time{}
	if tokenResp.ExpiresIn > 0 {
		s.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - expiryLeeway)
	}
	s.scopes = parseScopes(tokenResp.Scope)
}

// Revoke revokes the refresh token of the session, or its access token when
// it has none. The session is unusable afterwards.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.RLock()
	token := s.refreshToken
	if token == "" {
		token = s.accessToken
	}
	s.mu.RUnlock()

	if token == "" {
		return fmt.Errorf("no token to revoke")
	}
	return s.client.RevokeToken(ctx, token)
}

// parseScopes parses a space-delimited scope string into a map for fast lookup.
func parseScopes(scopeStr string) map[string]bool {
	parts := strings.Fields(scopeStr)
	scopes := make(map[string]bool, len(parts))
	for _, scope := range parts {
		scopes[scope] = true
	}
	return scopes
}

func (s *Session) expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if !s.expired(time.Now()) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed meanwhile.
	if !s.expired(time.Now()) {
		return s.accessToken, nil
	}

	var (
		tokenResp *TokenResponse
		err       error
	)
	switch {
	case s.refreshToken != "":
		tokenResp, err = s.client.RefreshGrant(ctx, s.refreshToken)
	case s.client.ClientSecret != "":
		tokenResp, err = s.client.ClientCredentialsGrant(ctx, s.clientScopes)
	default:
		return "", fmt.Errorf("access token expired and no refresh token available")
	}
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.apply(tokenResp)
	return s.accessToken, nil
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Scopes returns a copy of the current granted scopes as a slice.
func (s *Session) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scopes := make([]string, 0, len(s.scopes))
	for scope := range s.scopes {
		scopes = append(scopes, scope)
	}
	return scopes
}

// HasScope returns true if the session has the specified scope.
func (s *Session) HasScope(scope string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopes[scope]
}
