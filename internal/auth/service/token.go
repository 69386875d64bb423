package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/warden/internal/auth/claims"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// ClientLookup finds the registration of a client of the tenant in ctx.
type ClientLookup interface {
	LookupClient(ctx context.Context, clientID string) (domain.Client, error)
}

// ClientLookupFunc adapts a function to ClientLookup.
type ClientLookupFunc func(ctx context.Context, clientID string) (domain.Client, error)

func (f ClientLookupFunc) LookupClient(ctx context.Context, clientID string) (domain.Client, error) {
	return f(ctx, clientID)
}

// Reauthenticator reloads the principal of a stored authentication so that
// a locked or removed user can no longer refresh.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context, authn *domain.Authentication) (*domain.Principal, error)
}

// TokenService creates, refreshes, loads and revokes access tokens.
type TokenService struct {
	Store    store.TokenStore
	Codec    *claims.Codec
	Validity *ValidityResolver
	Clients  ClientLookup
	Settings SettingsSource // optional, enables the multi_role claim

	// Reauthenticator is optional. When set, refreshes re-check the user.
	Reauthenticator Reauthenticator

	// ReuseRefreshToken keeps the refresh token across refreshes instead
	// of rotating it.
	ReuseRefreshToken bool

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateAccessToken issues a token for authn. A live token already issued
// for the same authentication is returned unchanged.
func (s *TokenService) CreateAccessToken(ctx context.Context, authn *domain.Authentication) (*domain.AccessToken, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	existing, err := s.Store.GetAccessToken(ctx, authn)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup existing token: %w", err)
	}

	var refresh *domain.RefreshToken
	if existing != nil {
		if !existing.IsExpired(now) {
			if err := s.Store.StoreAccessToken(ctx, existing, authn); err != nil {
				return nil, fmt.Errorf("store access token: %w", err)
			}
			return existing, nil
		}

		if existing.RefreshToken != nil {
			refresh = existing.RefreshToken
			if err := s.Store.RemoveRefreshToken(ctx, refresh.Value); err != nil {
				return nil, fmt.Errorf("remove refresh token: %w", err)
			}
		}
		if err := s.Store.RemoveAccessToken(ctx, existing.Value); err != nil {
			return nil, fmt.Errorf("remove access token: %w", err)
		}
		l.Debug("replaced expired access token", slog.String("client_id", authn.Request.ClientID))
	}

	client, err := s.Clients.LookupClient(ctx, authn.Request.ClientID)
	if err != nil {
		return nil, err
	}

	if refresh == nil || refresh.IsExpired(now) {
		refresh, err = s.newRefreshToken(ctx, authn, &client, now)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.newAccessToken(ctx, authn, &client, refresh, now)
	if err != nil {
		return nil, err
	}
	if err := s.Store.StoreAccessToken(ctx, token, authn); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}
	if token.RefreshToken != nil {
		if err := s.Store.StoreRefreshToken(ctx, token.RefreshToken, authn); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	}
	return token, nil
}

// TokenRequest is an authenticated client's request at the token endpoint.
type TokenRequest struct {
	Client     domain.Client
	GrantType  string
	Scope      []string
	Parameters map[string]string
}

// RefreshAccessToken exchanges a refresh token for a new access token.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshValue string, req TokenRequest) (*domain.AccessToken, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	if !req.Client.AllowsGrant(domain.GrantRefreshToken) {
		return nil, fmt.Errorf("%w: refresh not allowed for client", ErrInvalidGrant)
	}

	refresh, err := s.Store.ReadRefreshToken(ctx, refreshValue)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrInvalidGrant)
	}
	if err != nil {
		return nil, fmt.Errorf("read refresh token: %w", err)
	}

	authn, err := s.Store.ReadAuthenticationForRefreshToken(ctx, refreshValue)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrInvalidGrant)
	}
	if err != nil {
		return nil, fmt.Errorf("read refresh authentication: %w", err)
	}

	if s.Reauthenticator != nil && authn.Principal != nil {
		p, err := s.Reauthenticator.Reauthenticate(ctx, authn)
		if err != nil {
			if errors.Is(err, ErrAuthenticationFailed) {
				l.Info("refresh denied, user no longer valid", slog.String("user_key", authn.Principal.UserKey))
				return nil, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
			}
			return nil, err
		}
		authn = withPrincipal(authn, p)
	}

	if authn.Request.ClientID != req.Client.ClientID {
		l.Warn("refresh token presented by another client",
			slog.String("client_id", req.Client.ClientID),
			slog.String("issued_to", authn.Request.ClientID))
		return nil, fmt.Errorf("%w: client mismatch", ErrInvalidGrant)
	}

	if err := s.Store.RemoveAccessTokenUsingRefreshToken(ctx, refreshValue); err != nil {
		return nil, fmt.Errorf("remove bound access token: %w", err)
	}

	if refresh.IsExpired(now) {
		if err := s.Store.RemoveRefreshToken(ctx, refreshValue); err != nil {
			return nil, fmt.Errorf("remove refresh token: %w", err)
		}
		return nil, fmt.Errorf("%w: refresh token expired", ErrInvalidToken)
	}

	authn, err = narrowScope(authn, req.Scope)
	if err != nil {
		return nil, err
	}

	if !s.ReuseRefreshToken {
		if err := s.Store.RemoveRefreshToken(ctx, refreshValue); err != nil {
			return nil, fmt.Errorf("remove refresh token: %w", err)
		}
		refresh, err = s.newRefreshToken(ctx, authn, &req.Client, now)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.newAccessToken(ctx, authn, &req.Client, refresh, now)
	if err != nil {
		return nil, err
	}
	if err := s.Store.StoreAccessToken(ctx, token, authn); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}
	if !s.ReuseRefreshToken && token.RefreshToken != nil {
		if err := s.Store.StoreRefreshToken(ctx, token.RefreshToken, authn); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	}
	return token, nil
}

// LoadAuthentication returns the authentication behind a live access token.
// Unknown, expired and TFA pending tokens are all ErrInvalidToken.
func (s *TokenService) LoadAuthentication(ctx context.Context, value string) (*domain.Authentication, error) {
	token, err := s.ReadAccessToken(ctx, value)
	if err != nil {
		return nil, err
	}
	if token.IsTfaPending() {
		return nil, fmt.Errorf("%w: tfa verification pending", ErrInvalidToken)
	}
	if token.IsExpired(s.now()) {
		if err := s.Store.RemoveAccessToken(ctx, value); err != nil {
			return nil, fmt.Errorf("remove access token: %w", err)
		}
		return nil, fmt.Errorf("%w: access token expired", ErrInvalidToken)
	}

	authn, err := s.Store.ReadAuthentication(ctx, value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: authentication not found", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("read authentication: %w", err)
	}
	return authn, nil
}

// ReadAccessToken returns the stored access token, expired or not.
func (s *TokenService) ReadAccessToken(ctx context.Context, value string) (*domain.AccessToken, error) {
	token, err := s.Store.ReadAccessToken(ctx, value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: token not found", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	return token, nil
}

// RevokeToken removes an access token with its refresh token, or a refresh
// token with the access token bound to it. It reports false when value is
// neither, when the token belongs to another tenant, or when the store
// cannot forget tokens at all. A token of the tenant issued to another
// client than clientID is refused with ErrUnauthorizedClient.
func (s *TokenService) RevokeToken(ctx context.Context, value, clientID string) (bool, error) {
	if r, ok := s.Store.(store.Revoker); ok && !r.CanRevoke() {
		return false, nil
	}

	token, err := s.Store.ReadAccessToken(ctx, value)
	switch {
	case err == nil:
		owned, err := s.owns(ctx, clientID, func() (*domain.Authentication, error) {
			return s.Store.ReadAuthentication(ctx, value)
		})
		if !owned || err != nil {
			return false, err
		}
		if token.RefreshToken != nil {
			if err := s.Store.RemoveRefreshToken(ctx, token.RefreshToken.Value); err != nil {
				return false, fmt.Errorf("remove refresh token: %w", err)
			}
		}
		if err := s.Store.RemoveAccessToken(ctx, value); err != nil {
			return false, fmt.Errorf("remove access token: %w", err)
		}
		return true, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, fmt.Errorf("read access token: %w", err)
	}

	if _, err := s.Store.ReadRefreshToken(ctx, value); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read refresh token: %w", err)
	}
	owned, err := s.owns(ctx, clientID, func() (*domain.Authentication, error) {
		return s.Store.ReadAuthenticationForRefreshToken(ctx, value)
	})
	if !owned || err != nil {
		return false, err
	}
	if err := s.Store.RemoveAccessTokenUsingRefreshToken(ctx, value); err != nil {
		return false, fmt.Errorf("remove bound access token: %w", err)
	}
	if err := s.Store.RemoveRefreshToken(ctx, value); err != nil {
		return false, fmt.Errorf("remove refresh token: %w", err)
	}
	return true, nil
}

// owns reports whether the token behind read was issued in the tenant of
// ctx. Tokens of other tenants read as unknown.
func (s *TokenService) owns(ctx context.Context, clientID string, read func() (*domain.Authentication, error)) (bool, error) {
	authn, err := read()
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read authentication: %w", err)
	}
	if !tenant.Equal(authn.TenantKey, tenant.Key(ctx)) {
		return false, nil
	}
	if authn.Request.ClientID != clientID {
		return false, fmt.Errorf("%w: token was issued to another client", ErrUnauthorizedClient)
	}
	return true, nil
}

// newRefreshToken mints a refresh token, or returns nil when the client may
// not refresh or no user takes part.
func (s *TokenService) newRefreshToken(ctx context.Context, authn *domain.Authentication, client *domain.Client, now time.Time) (*domain.RefreshToken, error) {
	if authn.IsClientOnly() || !client.AllowsGrant(domain.GrantRefreshToken) {
		return nil, nil
	}

	ttl, err := s.Validity.RefreshTTL(ctx, authn.Principal, client)
	if err != nil {
		return nil, fmt.Errorf("resolve refresh validity: %w", err)
	}

	rt := &domain.RefreshToken{Value: uuid.NewString()}
	if ttl > 0 {
		exp := now.Add(ttl)
		rt.ExpiresAt = &exp
	}
	return rt, nil
}

func (s *TokenService) newAccessToken(ctx context.Context, authn *domain.Authentication, client *domain.Client, refresh *domain.RefreshToken, now time.Time) (*domain.AccessToken, error) {
	ttl, err := s.Validity.AccessTTL(ctx, authn.Principal, client)
	if err != nil {
		return nil, fmt.Errorf("resolve access validity: %w", err)
	}

	info, err := s.enhance(ctx, authn, now)
	if err != nil {
		return nil, err
	}

	token := &domain.AccessToken{
		Value:                 uuid.NewString(),
		TokenType:             domain.TokenTypeBearer,
		RefreshToken:          refresh,
		Scope:                 slices.Clone(authn.Request.Scope),
		AdditionalInformation: info,
	}
	if ttl > 0 {
		token.ExpiresAt = now.Add(ttl)
	}

	encoded, err := s.Codec.Encode(token, authn)
	if err != nil {
		return nil, err
	}
	return encoded, nil
}

// enhance builds the custom claims of a full access token.
func (s *TokenService) enhance(ctx context.Context, authn *domain.Authentication, now time.Time) (map[string]any, error) {
	info := map[string]any{
		domain.ClaimTenant:          authn.TenantKey,
		domain.ClaimCreateTokenTime: now.UnixMilli(),
	}
	if details := additionalDetails(authn.Request.Parameters); len(details) > 0 {
		info[domain.ClaimAdditionalDetails] = details
	}

	p := authn.Principal
	if p == nil {
		return info, nil
	}

	info[domain.ClaimUserKey] = p.UserKey
	if role := p.PrimaryRole(); role != "" {
		info[domain.ClaimRoleKey] = role
	}
	if len(p.Logins) > 0 {
		info[domain.ClaimLogins] = slices.Clone(p.Logins)
	}

	if s.Settings != nil {
		settings, err := s.Settings.Settings(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tenant settings: %w", err)
		}
		if settings.Security.MultiRoleEnabled {
			info[domain.ClaimMultiRole] = true
		}
	}
	return info, nil
}

// credentialParams never leave the token endpoint.
var credentialParams = []string{
	"grant_type", "username", "client_secret", "password",
	"otp", "tfa_access_token", "tfa_access_token_type", "refresh_token",
}

func additionalDetails(params map[string]string) map[string]string {
	details := maps.Clone(params)
	for _, k := range credentialParams {
		delete(details, k)
	}
	return details
}

func narrowScope(authn *domain.Authentication, requested []string) (*domain.Authentication, error) {
	if len(requested) == 0 {
		return authn, nil
	}
	for _, s := range requested {
		if !slices.Contains(authn.Request.Scope, s) {
			return nil, fmt.Errorf("%w: %q was not originally granted", ErrInvalidScope, s)
		}
	}

	narrowed := *authn
	narrowed.Request.Scope = slices.Clone(requested)
	return &narrowed, nil
}

func withPrincipal(authn *domain.Authentication, p *domain.Principal) *domain.Authentication {
	out := *authn
	out.Principal = p
	out.Authorities = slices.Clone(p.RoleKeys)
	return &out
}
