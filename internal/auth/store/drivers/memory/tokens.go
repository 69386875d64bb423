// Package memory keeps tokens in process memory. Suited to single-node
// deployments and tests.
package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
)

const (
	prefixAccess          = "access:"
	prefixAuth            = "auth:"
	prefixAuthToAccess    = "auth_to_access:"
	prefixRefresh         = "refresh:"
	prefixRefreshAuth     = "refresh_auth:"
	prefixAccessToRefresh = "access_to_refresh:"
	prefixRefreshToAccess = "refresh_to_access:"
)

// TokenStore implements store.TokenStore on go-cache. Entries expire with
// their token; tokens without expiry stay until removed.
type TokenStore struct {
	c *cache.Cache
}

var _ store.TokenStore = (*TokenStore)(nil)

func NewTokenStore() *TokenStore {
	return &TokenStore{c: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func ttl(exp time.Time) time.Duration {
	if exp.IsZero() {
		return cache.NoExpiration
	}
	d := time.Until(exp)
	if d <= 0 {
		// Already expired tokens are kept briefly so the service can
		// still find and evict them.
		return time.Second
	}
	return d
}

func refreshExpiry(rt *domain.RefreshToken) time.Time {
	if rt.ExpiresAt == nil {
		return time.Time{}
	}
	return *rt.ExpiresAt
}

func (s *TokenStore) StoreAccessToken(ctx context.Context, token *domain.AccessToken, authn *domain.Authentication) error {
	d := ttl(token.ExpiresAt)
	s.c.Set(prefixAccess+token.Value, token, d)
	s.c.Set(prefixAuth+token.Value, authn, d)
	s.c.Set(prefixAuthToAccess+authn.Key(), token, d)

	if rt := token.RefreshToken; rt != nil {
		rd := ttl(refreshExpiry(rt))
		s.c.Set(prefixRefreshToAccess+rt.Value, token.Value, rd)
		s.c.Set(prefixAccessToRefresh+token.Value, rt.Value, d)
	}
	return nil
}

func (s *TokenStore) ReadAccessToken(ctx context.Context, value string) (*domain.AccessToken, error) {
	v, ok := s.c.Get(prefixAccess + value)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*domain.AccessToken), nil
}

func (s *TokenStore) ReadAuthentication(ctx context.Context, accessValue string) (*domain.Authentication, error) {
	v, ok := s.c.Get(prefixAuth + accessValue)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*domain.Authentication), nil
}

func (s *TokenStore) RemoveAccessToken(ctx context.Context, value string) error {
	if v, ok := s.c.Get(prefixAuth + value); ok {
		key := prefixAuthToAccess + v.(*domain.Authentication).Key()
		if cur, ok := s.c.Get(key); ok && cur.(*domain.AccessToken).Value == value {
			s.c.Delete(key)
		}
	}
	s.c.Delete(prefixAccess + value)
	s.c.Delete(prefixAuth + value)
	s.c.Delete(prefixAccessToRefresh + value)
	return nil
}

func (s *TokenStore) StoreRefreshToken(ctx context.Context, token *domain.RefreshToken, authn *domain.Authentication) error {
	d := ttl(refreshExpiry(token))
	s.c.Set(prefixRefresh+token.Value, token, d)
	s.c.Set(prefixRefreshAuth+token.Value, authn, d)
	return nil
}

func (s *TokenStore) ReadRefreshToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	v, ok := s.c.Get(prefixRefresh + value)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*domain.RefreshToken), nil
}

func (s *TokenStore) ReadAuthenticationForRefreshToken(ctx context.Context, refreshValue string) (*domain.Authentication, error) {
	v, ok := s.c.Get(prefixRefreshAuth + refreshValue)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*domain.Authentication), nil
}

func (s *TokenStore) RemoveRefreshToken(ctx context.Context, value string) error {
	s.c.Delete(prefixRefresh + value)
	s.c.Delete(prefixRefreshAuth + value)
	s.c.Delete(prefixRefreshToAccess + value)
	return nil
}

func (s *TokenStore) RemoveAccessTokenUsingRefreshToken(ctx context.Context, refreshValue string) error {
	v, ok := s.c.Get(prefixRefreshToAccess + refreshValue)
	if !ok {
		return nil
	}
	s.c.Delete(prefixRefreshToAccess + refreshValue)
	return s.RemoveAccessToken(ctx, v.(string))
}

func (s *TokenStore) GetAccessToken(ctx context.Context, authn *domain.Authentication) (*domain.AccessToken, error) {
	v, ok := s.c.Get(prefixAuthToAccess + authn.Key())
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*domain.AccessToken), nil
}
