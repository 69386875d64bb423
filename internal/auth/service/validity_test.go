package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
)

type staticSettings struct {
	settings domain.TenantSettings
	err      error
}

func (s *staticSettings) Settings(ctx context.Context) (domain.TenantSettings, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return domain.TenantSettings{}, err
	}
	return s.settings, s.err
}

func seconds(n int) *int { return &n }

func TestValidityPrecedence(t *testing.T) {
	ctx := tenant.WithKey(context.Background(), "acme")

	settings := &staticSettings{settings: domain.DefaultTenantSettings()}
	settings.settings.Security.AccessTokenValiditySeconds = seconds(300)

	r := &ValidityResolver{
		Settings: settings,
		Defaults: ValidityDefaults{AccessTokenSeconds: seconds(400)},
	}
	principal := &domain.Principal{AccessTokenValiditySeconds: seconds(100)}
	client := &domain.Client{AccessTokenValiditySeconds: seconds(200)}

	ttl, err := r.AccessTTL(ctx, principal, client)
	require.NoError(t, err)
	require.Equal(t, 100*time.Second, ttl)

	principal.AccessTokenValiditySeconds = nil
	ttl, err = r.AccessTTL(ctx, principal, client)
	require.NoError(t, err)
	require.Equal(t, 200*time.Second, ttl)

	client.AccessTokenValiditySeconds = nil
	ttl, err = r.AccessTTL(ctx, principal, client)
	require.NoError(t, err)
	require.Equal(t, 300*time.Second, ttl)

	settings.settings.Security.AccessTokenValiditySeconds = nil
	ttl, err = r.AccessTTL(ctx, principal, client)
	require.NoError(t, err)
	require.Equal(t, 400*time.Second, ttl)

	r.Defaults.AccessTokenSeconds = nil
	ttl, err = r.AccessTTL(ctx, principal, client)
	require.NoError(t, err)
	require.Equal(t, DefaultAccessTokenValidity, ttl)
}

func TestValidityPrincipalBeatsShorterClient(t *testing.T) {
	r := &ValidityResolver{}
	ctx := context.Background()

	ttl, err := r.RefreshTTL(ctx,
		&domain.Principal{RefreshTokenValiditySeconds: seconds(3600)},
		&domain.Client{RefreshTokenValiditySeconds: seconds(60)})
	require.NoError(t, err)
	require.Equal(t, time.Hour, ttl)
}

func TestValidityHardDefaults(t *testing.T) {
	r := &ValidityResolver{}
	ctx := context.Background()

	access, err := r.AccessTTL(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 12*time.Hour, access)

	refresh, err := r.RefreshTTL(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 30*24*time.Hour, refresh)

	tfa, err := r.TfaTTL(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, tfa)
}

func TestValidityZeroIsConfigured(t *testing.T) {
	r := &ValidityResolver{Defaults: ValidityDefaults{RefreshTokenSeconds: seconds(7200)}}

	ttl, err := r.RefreshTTL(context.Background(), nil, &domain.Client{RefreshTokenValiditySeconds: seconds(0)})
	require.NoError(t, err)
	require.Zero(t, ttl)
}

func TestValiditySettingsError(t *testing.T) {
	boom := errors.New("boom")
	r := &ValidityResolver{Settings: &staticSettings{err: boom}}

	_, err := r.TfaTTL(tenant.WithKey(context.Background(), "acme"), nil, nil)
	require.ErrorIs(t, err, boom)

	_, err = r.TfaTTL(context.Background(), nil, nil)
	require.ErrorIs(t, err, tenant.ErrTenantNotProvided)
}
