package store

import (
	"context"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

// TokenStore keeps issued tokens and the authentications behind them.
// Reads of unknown values return ErrNotFound; removals of unknown values
// succeed.
type TokenStore interface {
	StoreAccessToken(ctx context.Context, token *domain.AccessToken, authn *domain.Authentication) error
	ReadAccessToken(ctx context.Context, value string) (*domain.AccessToken, error)
	ReadAuthentication(ctx context.Context, accessValue string) (*domain.Authentication, error)
	RemoveAccessToken(ctx context.Context, value string) error

	StoreRefreshToken(ctx context.Context, token *domain.RefreshToken, authn *domain.Authentication) error
	ReadRefreshToken(ctx context.Context, value string) (*domain.RefreshToken, error)
	ReadAuthenticationForRefreshToken(ctx context.Context, refreshValue string) (*domain.Authentication, error)
	RemoveRefreshToken(ctx context.Context, value string) error

	// RemoveAccessTokenUsingRefreshToken removes the access token last
	// issued alongside the refresh token.
	RemoveAccessTokenUsingRefreshToken(ctx context.Context, refreshValue string) error

	// GetAccessToken returns the live access token of an authentication,
	// matched by Authentication.Key.
	GetAccessToken(ctx context.Context, authn *domain.Authentication) (*domain.AccessToken, error)
}

// Revoker is implemented by token stores that can report they keep no state
// to remove. Stores without it are assumed to revoke.
type Revoker interface {
	CanRevoke() bool
}
