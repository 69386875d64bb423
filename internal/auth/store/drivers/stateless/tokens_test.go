package stateless

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/claims"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

func TestTokenStore(t *testing.T) {
	ctx := context.Background()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "warden-test",
		NumKeys:   1,
	})
	require.NoError(t, err)
	codec := &claims.Codec{Keys: km, Issuer: "warden-test"}
	s := NewTokenStore(codec)
	require.False(t, s.CanRevoke())

	authn := &domain.Authentication{
		TenantKey: "acme",
		Request:   domain.OAuth2Request{ClientID: "web", Scope: []string{"openid"}},
		Principal: &domain.Principal{Username: "alice", UserKey: "u-1"},
	}
	encoded, err := codec.Encode(&domain.AccessToken{
		Value:        "a1",
		ExpiresAt:    time.Now().Add(time.Hour),
		Scope:        []string{"openid"},
		RefreshToken: &domain.RefreshToken{Value: "r1"},
		AdditionalInformation: map[string]any{
			domain.ClaimTenant:  "acme",
			domain.ClaimUserKey: "u-1",
		},
	}, authn)
	require.NoError(t, err)

	require.NoError(t, s.StoreAccessToken(ctx, encoded, authn))

	got, err := s.ReadAccessToken(ctx, encoded.Value)
	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, got.Scope)

	gotAuthn, err := s.ReadAuthentication(ctx, encoded.Value)
	require.NoError(t, err)
	require.Equal(t, "acme", gotAuthn.TenantKey)
	require.Equal(t, "u-1", gotAuthn.Principal.UserKey)

	rt, err := s.ReadRefreshToken(ctx, encoded.RefreshToken.Value)
	require.NoError(t, err)
	require.Nil(t, rt.ExpiresAt)

	t.Run("token kinds are not interchangeable", func(t *testing.T) {
		_, err := s.ReadAccessToken(ctx, encoded.RefreshToken.Value)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.ReadRefreshToken(ctx, encoded.Value)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("garbage is not found", func(t *testing.T) {
		_, err := s.ReadAccessToken(ctx, "garbage")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("no index by authentication", func(t *testing.T) {
		_, err := s.GetAccessToken(ctx, authn)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
