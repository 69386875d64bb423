package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
)

// TestLoginRefresh tests the complete flow:
// 1. Login with the password grant
// 2. Refresh the token
// 3. Verify a new access token was minted for the same refresh token
func TestLoginRefresh(t *testing.T) {
	srv := setupAuthServer(t)
	client := srv.client()

	tokenResp, challenge, err := client.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.NoError(t, err)
	require.Nil(t, challenge)
	assertTokenResponse(t, tokenResp)

	require.Equal(t, testTenant, tokenResp.Extra["tenant"])
	require.Equal(t, "u-admin", tokenResp.Extra["user_key"])
	require.Equal(t, "ROLE_ADMIN", tokenResp.Extra["role_key"])
	require.NotContains(t, tokenResp.Extra, "tfa_otp_hash")

	refreshed, err := client.RefreshGrant(t.Context(), tokenResp.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, refreshed)

	require.NotEqual(t, tokenResp.AccessToken, refreshed.AccessToken, "access token should be rotated")
	require.Equal(t, tokenResp.RefreshToken, refreshed.RefreshToken, "refresh token is reused")

	// The replaced access token is gone, the new one is active.
	old, err := client.CheckToken(t.Context(), tokenResp.AccessToken)
	require.NoError(t, err)
	require.False(t, old.Active)

	current, err := client.CheckToken(t.Context(), refreshed.AccessToken)
	require.NoError(t, err)
	require.True(t, current.Active)
}

// TestLoginWithNickname verifies every login of a user can sign in.
func TestLoginWithNickname(t *testing.T) {
	srv := setupAuthServer(t)

	session := srv.login(t, userUsername, userPassword)
	require.True(t, session.HasScope("openid"))
	require.ElementsMatch(t, clientScopes, session.Scopes())
}

// TestRefreshNarrowsScope verifies a refresh can request a subset of the
// original scope but never more.
func TestRefreshNarrowsScope(t *testing.T) {
	srv := setupAuthServer(t)
	client := srv.client()
	session := srv.login(t, adminUsername, adminPassword)

	narrowed, err := client.RefreshGrant(t.Context(), session.RefreshToken(), "openid")
	require.NoError(t, err)
	require.Equal(t, "openid", narrowed.Scope)

	_, err = client.RefreshGrant(t.Context(), session.RefreshToken(), "openid", "admin")
	require.ErrorIs(t, err, authsdk.ErrInvalidScope)
}

// TestRefreshWithUnknownToken verifies a made up refresh token is rejected.
func TestRefreshWithUnknownToken(t *testing.T) {
	srv := setupAuthServer(t)

	_, err := srv.client().RefreshGrant(t.Context(), "not-a-refresh-token")
	require.Error(t, err)

	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	require.Contains(t, []string{authsdk.ErrorCodeInvalidGrant, authsdk.ErrorCodeInvalidToken}, oauthErr.Code)
}

// TestRevokeRefreshToken verifies revoking a refresh token also revokes the
// access token minted with it, and that revocation is idempotent.
func TestRevokeRefreshToken(t *testing.T) {
	srv := setupAuthServer(t)
	client := srv.client()
	session := srv.login(t, adminUsername, adminPassword)

	require.NoError(t, session.Revoke(t.Context()))

	info, err := client.CheckToken(t.Context(), session.AccessToken())
	require.NoError(t, err)
	require.False(t, info.Active, "access token should be revoked with its refresh token")

	_, err = client.RefreshGrant(t.Context(), session.RefreshToken())
	require.Error(t, err, "revoked refresh token should not refresh")

	// Revoking again is not an error.
	require.NoError(t, client.RevokeToken(t.Context(), session.RefreshToken()))
	require.NoError(t, client.RevokeToken(t.Context(), "never-issued"))
}
