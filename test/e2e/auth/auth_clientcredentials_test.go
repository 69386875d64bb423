package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
)

// createBot registers a confidential client that may only use the
// client_credentials grant.
func createBot(t *testing.T, srv *testServer, scopes []string) *authsdk.SDKClient {
	t.Helper()

	_, secret, err := srv.App.Clients.CreateClient(tenant.WithKey(context.Background(), testTenant), service.NewClient{
		ClientID:     "bot",
		Confidential: true,
		Scopes:       scopes,
		GrantTypes:   []string{domain.GrantClientCredentials},
	})
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	return authsdk.NewSDKClient(srv.URL, testTenant, "bot", secret)
}

// TestClientCredentialsFlow tests the client_credentials grant:
// 1. A bot authenticates as itself
// 2. The token has no refresh token and no user
// 3. check_token reports the bot as the owner
func TestClientCredentialsFlow(t *testing.T) {
	srv := setupAuthServer(t)
	bot := createBot(t, srv, []string{"svc:read", "svc:write"})

	resp, err := bot.ClientCredentialsGrant(t.Context(), []string{"svc:read"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Empty(t, resp.RefreshToken, "client credentials should not return a refresh token")
	require.Equal(t, "svc:read", resp.Scope)
	require.Equal(t, testTenant, resp.Extra["tenant"])
	require.NotContains(t, resp.Extra, "user_key")

	info, err := bot.CheckToken(t.Context(), resp.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "bot", info.ClientID)
	require.Empty(t, info.UserName)
	require.Empty(t, info.UserKey)
	require.Equal(t, domain.GrantClientCredentials, info.GrantType)

	// Resource servers holding other credentials see the same token.
	info, err = srv.client().CheckToken(t.Context(), resp.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
}

// TestClientCredentialsDefaultScope verifies an empty scope request gets
// every scope of the client.
func TestClientCredentialsDefaultScope(t *testing.T) {
	srv := setupAuthServer(t)
	bot := createBot(t, srv, []string{"svc:read", "svc:write"})

	session, err := bot.AuthenticateWithClientCredentials(t.Context(), nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"svc:read", "svc:write"}, session.Scopes())
	require.Empty(t, session.RefreshToken())
}

// TestClientCredentialsRejections verifies scopes and grants a client is not
// registered for are refused.
func TestClientCredentialsRejections(t *testing.T) {
	srv := setupAuthServer(t)
	bot := createBot(t, srv, []string{"svc:read"})

	_, err := bot.ClientCredentialsGrant(t.Context(), []string{"svc:admin"})
	require.ErrorIs(t, err, authsdk.ErrInvalidScope)

	_, _, err = bot.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.ErrorIs(t, err, authsdk.ErrUnauthorizedClient)
}
