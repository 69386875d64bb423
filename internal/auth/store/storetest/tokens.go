// Package storetest holds behaviour tests shared by the store.TokenStore
// drivers.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
)

func authentication(user string) *domain.Authentication {
	return &domain.Authentication{
		TenantKey: "acme",
		Request: domain.OAuth2Request{
			ClientID:  "web",
			Scope:     []string{"openid"},
			GrantType: domain.GrantPassword,
		},
		Principal: &domain.Principal{
			TenantKey: "acme",
			UserKey:   "key-" + user,
			Username:  user,
			RoleKeys:  []string{"ROLE_USER"},
		},
		Authorities: []string{"ROLE_USER"},
	}
}

// RunTokenStoreTests exercises a stateful TokenStore. newStore must return
// an empty store.
func RunTokenStoreTests(t *testing.T, newStore func(t *testing.T) store.TokenStore) {
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	refreshExp := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	newPair := func(access, refresh string) *domain.AccessToken {
		return &domain.AccessToken{
			Value:        access,
			TokenType:    domain.TokenTypeBearer,
			ExpiresAt:    exp,
			Scope:        []string{"openid"},
			RefreshToken: &domain.RefreshToken{Value: refresh, ExpiresAt: &refreshExp},
			AdditionalInformation: map[string]any{
				domain.ClaimTenant: "acme",
			},
		}
	}

	t.Run("unknown values", func(t *testing.T) {
		s := newStore(t)

		_, err := s.ReadAccessToken(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.ReadAuthentication(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.ReadRefreshToken(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetAccessToken(ctx, authentication("nobody"))
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.RemoveAccessToken(ctx, "nope"))
		require.NoError(t, s.RemoveRefreshToken(ctx, "nope"))
		require.NoError(t, s.RemoveAccessTokenUsingRefreshToken(ctx, "nope"))
	})

	t.Run("store and read", func(t *testing.T) {
		s := newStore(t)
		authn := authentication("alice")
		token := newPair("a1", "r1")

		require.NoError(t, s.StoreAccessToken(ctx, token, authn))
		require.NoError(t, s.StoreRefreshToken(ctx, token.RefreshToken, authn))

		got, err := s.ReadAccessToken(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "a1", got.Value)
		require.True(t, exp.Equal(got.ExpiresAt))
		require.Equal(t, "r1", got.RefreshToken.Value)
		require.Equal(t, "acme", got.AdditionalInformation[domain.ClaimTenant])

		gotAuthn, err := s.ReadAuthentication(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, authn.Key(), gotAuthn.Key())
		require.Equal(t, "key-alice", gotAuthn.Principal.UserKey)

		byAuthn, err := s.GetAccessToken(ctx, authentication("alice"))
		require.NoError(t, err)
		require.Equal(t, "a1", byAuthn.Value)

		rt, err := s.ReadRefreshToken(ctx, "r1")
		require.NoError(t, err)
		require.True(t, refreshExp.Equal(*rt.ExpiresAt))

		rAuthn, err := s.ReadAuthenticationForRefreshToken(ctx, "r1")
		require.NoError(t, err)
		require.Equal(t, "alice", rAuthn.Name())
	})

	t.Run("remove access token using refresh token", func(t *testing.T) {
		s := newStore(t)
		authn := authentication("bob")
		token := newPair("a2", "r2")

		require.NoError(t, s.StoreAccessToken(ctx, token, authn))
		require.NoError(t, s.StoreRefreshToken(ctx, token.RefreshToken, authn))
		require.NoError(t, s.RemoveAccessTokenUsingRefreshToken(ctx, "r2"))

		_, err := s.ReadAccessToken(ctx, "a2")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetAccessToken(ctx, authn)
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.ReadRefreshToken(ctx, "r2")
		require.NoError(t, err, "refresh token outlives the access token")
	})

	t.Run("removing a stale token keeps the newer one for the authentication", func(t *testing.T) {
		s := newStore(t)
		authn := authentication("carol")

		require.NoError(t, s.StoreAccessToken(ctx, newPair("old", "r-old"), authn))
		require.NoError(t, s.StoreAccessToken(ctx, newPair("new", "r-new"), authn))
		require.NoError(t, s.RemoveAccessToken(ctx, "old"))

		got, err := s.GetAccessToken(ctx, authn)
		require.NoError(t, err)
		require.Equal(t, "new", got.Value)
	})

	t.Run("remove refresh token", func(t *testing.T) {
		s := newStore(t)
		authn := authentication("dave")
		token := newPair("a3", "r3")

		require.NoError(t, s.StoreRefreshToken(ctx, token.RefreshToken, authn))
		require.NoError(t, s.RemoveRefreshToken(ctx, "r3"))

		_, err := s.ReadRefreshToken(ctx, "r3")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.ReadAuthenticationForRefreshToken(ctx, "r3")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
