// Package stateless implements a token store with no server side state.
// Tokens are self-contained JWTs and every read decodes and verifies them.
package stateless

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/warden/internal/auth/claims"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// TokenStore reads tokens straight from their signed value. Writes and
// removals are no-ops, so a revoked token stays valid until it expires.
type TokenStore struct {
	codec *claims.Codec
}

var (
	_ store.TokenStore = (*TokenStore)(nil)
	_ store.Revoker    = (*TokenStore)(nil)
)

func NewTokenStore(codec *claims.Codec) *TokenStore {
	return &TokenStore{codec: codec}
}

// decode returns ErrNotFound for anything we did not sign, and for tokens of
// the wrong kind: refresh tokens carry ati, access tokens do not.
func (s *TokenStore) decode(value string, refresh bool) (*jwtx.Claims, error) {
	cl, err := s.codec.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	if (cl.ATI != "") != refresh {
		return nil, store.ErrNotFound
	}
	return cl, nil
}

// CanRevoke is false: a signed token cannot be taken back.
func (s *TokenStore) CanRevoke() bool { return false }

func (s *TokenStore) StoreAccessToken(context.Context, *domain.AccessToken, *domain.Authentication) error {
	return nil
}

func (s *TokenStore) ReadAccessToken(ctx context.Context, value string) (*domain.AccessToken, error) {
	cl, err := s.decode(value, false)
	if err != nil {
		return nil, err
	}
	return claims.AccessToken(value, cl), nil
}

func (s *TokenStore) ReadAuthentication(ctx context.Context, accessValue string) (*domain.Authentication, error) {
	cl, err := s.decode(accessValue, false)
	if err != nil {
		return nil, err
	}
	return claims.Authentication(cl), nil
}

func (s *TokenStore) RemoveAccessToken(context.Context, string) error { return nil }

func (s *TokenStore) StoreRefreshToken(context.Context, *domain.RefreshToken, *domain.Authentication) error {
	return nil
}

func (s *TokenStore) ReadRefreshToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	cl, err := s.decode(value, true)
	if err != nil {
		return nil, err
	}
	return claims.RefreshToken(value, cl), nil
}

func (s *TokenStore) ReadAuthenticationForRefreshToken(ctx context.Context, refreshValue string) (*domain.Authentication, error) {
	cl, err := s.decode(refreshValue, true)
	if err != nil {
		return nil, err
	}
	return claims.Authentication(cl), nil
}

func (s *TokenStore) RemoveRefreshToken(context.Context, string) error { return nil }

func (s *TokenStore) RemoveAccessTokenUsingRefreshToken(context.Context, string) error { return nil }

// GetAccessToken always misses: without state there is no index by
// authentication, so every grant mints a fresh token.
func (s *TokenStore) GetAccessToken(context.Context, *domain.Authentication) (*domain.AccessToken, error) {
	return nil, store.ErrNotFound
}
