package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

// Hard validity defaults, used when nothing else is configured.
const (
	DefaultAccessTokenValidity    = 12 * time.Hour
	DefaultRefreshTokenValidity   = 30 * 24 * time.Hour
	DefaultTfaAccessTokenValidity = 5 * time.Minute
)

// SettingsSource returns the settings of the tenant in ctx.
type SettingsSource interface {
	Settings(ctx context.Context) (domain.TenantSettings, error)
}

// ValidityDefaults are the application wide validity settings in seconds.
// Nil falls through to the hard defaults.
type ValidityDefaults struct {
	AccessTokenSeconds    *int
	RefreshTokenSeconds   *int
	TfaAccessTokenSeconds *int
}

// ValidityResolver picks token lifetimes. The first configured value wins,
// in order: principal, client, tenant, application, hard default.
type ValidityResolver struct {
	Settings SettingsSource // optional
	Defaults ValidityDefaults
}

// AccessTTL resolves the access token lifetime. A non-positive result
// means the token does not expire.
func (r *ValidityResolver) AccessTTL(ctx context.Context, p *domain.Principal, c *domain.Client) (time.Duration, error) {
	s, err := r.security(ctx)
	if err != nil {
		return 0, err
	}

	var user, client *int
	if p != nil {
		user = p.AccessTokenValiditySeconds
	}
	if c != nil {
		client = c.AccessTokenValiditySeconds
	}
	return resolve(DefaultAccessTokenValidity,
		user, client, s.AccessTokenValiditySeconds, r.Defaults.AccessTokenSeconds), nil
}

// RefreshTTL resolves the refresh token lifetime. A non-positive result
// means the token does not expire.
func (r *ValidityResolver) RefreshTTL(ctx context.Context, p *domain.Principal, c *domain.Client) (time.Duration, error) {
	s, err := r.security(ctx)
	if err != nil {
		return 0, err
	}

	var user, client *int
	if p != nil {
		user = p.RefreshTokenValiditySeconds
	}
	if c != nil {
		client = c.RefreshTokenValiditySeconds
	}
	return resolve(DefaultRefreshTokenValidity,
		user, client, s.RefreshTokenValiditySeconds, r.Defaults.RefreshTokenSeconds), nil
}

// TfaTTL resolves the lifetime of a TFA pending token.
func (r *ValidityResolver) TfaTTL(ctx context.Context, p *domain.Principal, c *domain.Client) (time.Duration, error) {
	s, err := r.security(ctx)
	if err != nil {
		return 0, err
	}

	var user, client *int
	if p != nil {
		user = p.TfaAccessTokenValiditySeconds
	}
	if c != nil {
		client = c.TfaAccessTokenValiditySeconds
	}
	return resolve(DefaultTfaAccessTokenValidity,
		user, client, s.TfaAccessTokenValiditySeconds, r.Defaults.TfaAccessTokenSeconds), nil
}

func (r *ValidityResolver) security(ctx context.Context) (domain.SecuritySettings, error) {
	if r.Settings == nil {
		return domain.SecuritySettings{}, nil
	}
	s, err := r.Settings.Settings(ctx)
	if err != nil {
		return domain.SecuritySettings{}, err
	}
	return s.Security, nil
}

func resolve(fallback time.Duration, levels ...*int) time.Duration {
	for _, v := range levels {
		if v != nil {
			return time.Duration(*v) * time.Second
		}
	}
	return fallback
}
