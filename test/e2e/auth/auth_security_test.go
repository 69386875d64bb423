package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
)

// TestTenantHeaderRequired verifies tenant scoped endpoints reject requests
// without X-Tenant.
func TestTenantHeaderRequired(t *testing.T) {
	srv := setupAuthServer(t)
	client := authsdk.NewSDKClient(srv.URL, "", webClientID, srv.ClientSecret)

	_, _, err := client.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.ErrorIs(t, err, authsdk.ErrTenantNotProvided)

	_, err = client.CheckToken(t.Context(), "anything")
	require.ErrorIs(t, err, authsdk.ErrTenantNotProvided)
}

// TestClientAuthentication verifies the token endpoint rejects wrong and
// unknown client credentials.
func TestClientAuthentication(t *testing.T) {
	srv := setupAuthServer(t)

	wrongSecret := authsdk.NewSDKClient(srv.URL, testTenant, webClientID, "not-the-secret")
	_, _, err := wrongSecret.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidClient)

	unknown := authsdk.NewSDKClient(srv.URL, testTenant, "nobody", "secret")
	_, _, err = unknown.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidClient)

	// Clients are registered per tenant.
	globex := authsdk.NewSDKClient(srv.URL, otherTenant, webClientID, srv.ClientSecret)
	_, _, err = globex.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidClient)
}

// TestBadCredentials verifies wrong passwords and unknown users get the same
// answer.
func TestBadCredentials(t *testing.T) {
	srv := setupAuthServer(t)
	client := srv.client()

	_, _, err := client.PasswordGrant(t.Context(), adminUsername, "wrong-password", nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)

	_, _, err = client.PasswordGrant(t.Context(), "nobody@acme.test", adminPassword, nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)

	_, _, err = client.PasswordGrant(t.Context(), adminUsername, adminPassword, []string{"admin"})
	require.ErrorIs(t, err, authsdk.ErrInvalidScope)
}

// TestAdminEndpointsRequireAdmin verifies the role endpoints need a valid
// admin token of the same tenant.
func TestAdminEndpointsRequireAdmin(t *testing.T) {
	srv := setupAuthServer(t)
	client := srv.client()

	// No valid token
	forged := client.NewSessionFromTokens("not-a-token", "", 0)
	_, err := forged.ListRoles(t.Context())
	require.ErrorIs(t, err, authsdk.ErrInvalidToken)

	// A user without the admin authority
	user := srv.login(t, userUsername, userPassword)
	_, err = user.ListRoles(t.Context())
	require.ErrorIs(t, err, authsdk.ErrAccessDenied)

	// An admin of acme presenting the token to globex
	admin := srv.login(t, adminUsername, adminPassword)
	foreign := authsdk.NewSDKClient(srv.URL, otherTenant, webClientID, srv.ClientSecret).
		NewSessionFromTokens(admin.AccessToken(), "", 0)
	_, err = foreign.ListRoles(t.Context())
	require.ErrorIs(t, err, authsdk.ErrAccessDenied)

	// A revoked admin token
	require.NoError(t, admin.Revoke(t.Context()))
	_, err = admin.ListRoles(t.Context())
	require.ErrorIs(t, err, authsdk.ErrInvalidToken)
}

// TestCheckTokenOtherTenant verifies introspection of another tenant's
// token reports it inactive.
func TestCheckTokenOtherTenant(t *testing.T) {
	srv := setupAuthServer(t)
	session := srv.login(t, adminUsername, adminPassword)

	ctx := t.Context()
	_, secret, err := srv.App.Clients.CreateClient(tenantCtx(otherTenant), newResourceServer())
	require.NoError(t, err)

	globex := authsdk.NewSDKClient(srv.URL, otherTenant, "resource", secret)
	info, err := globex.CheckToken(ctx, session.AccessToken())
	require.NoError(t, err)
	require.False(t, info.Active)
}

// TestRevokeOtherTenant verifies a client of another tenant cannot revoke a
// token, and that a client of the same tenant cannot revoke a token issued
// to a different client.
func TestRevokeOtherTenant(t *testing.T) {
	srv := setupAuthServer(t)
	session := srv.login(t, adminUsername, adminPassword)
	ctx := t.Context()

	_, globexSecret, err := srv.App.Clients.CreateClient(tenantCtx(otherTenant), newResourceServer())
	require.NoError(t, err)
	globex := authsdk.NewSDKClient(srv.URL, otherTenant, "resource", globexSecret)

	// Foreign tokens read as unknown, so the answer is still 200 OK.
	require.NoError(t, globex.RevokeToken(ctx, session.AccessToken()))
	require.NoError(t, globex.RevokeToken(ctx, session.RefreshToken()))

	_, acmeSecret, err := srv.App.Clients.CreateClient(tenantCtx(testTenant), newResourceServer())
	require.NoError(t, err)
	resource := authsdk.NewSDKClient(srv.URL, testTenant, "resource", acmeSecret)
	err = resource.RevokeToken(ctx, session.RefreshToken())
	require.ErrorIs(t, err, authsdk.ErrUnauthorizedClient)

	info, err := srv.client().CheckToken(ctx, session.AccessToken())
	require.NoError(t, err)
	require.True(t, info.Active, "the token must survive revocation attempts by other clients")
}
