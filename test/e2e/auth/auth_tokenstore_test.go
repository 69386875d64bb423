package auth_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/warden/internal/auth/app"
)

// TestStatelessTokenStore verifies sign in, introspection and refresh work
// without any server side token state.
func TestStatelessTokenStore(t *testing.T) {
	srv := setupAuthServer(t, withTokenStore(app.TokenStoreStateless, ""))
	client := srv.client()

	session := srv.login(t, adminUsername, adminPassword)

	info, err := client.CheckToken(t.Context(), session.AccessToken())
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "u-admin", info.UserKey)
	require.Equal(t, testTenant, info.Tenant)

	refreshed, err := client.RefreshGrant(t.Context(), session.RefreshToken(), "openid")
	require.NoError(t, err)
	require.Equal(t, "openid", refreshed.Scope)
	require.Equal(t, session.RefreshToken(), refreshed.RefreshToken)

	// An access token is not a refresh token.
	_, err = client.RefreshGrant(t.Context(), session.AccessToken())
	require.Error(t, err)

	// Revocation is accepted but cannot take back a signed token.
	require.NoError(t, client.RevokeToken(t.Context(), session.AccessToken()))
	info, err = client.CheckToken(t.Context(), session.AccessToken())
	require.NoError(t, err)
	require.True(t, info.Active)
}

// startRedis runs a Redis container for the test and returns its URL.
func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

// TestRedisTokenStore runs the token lifecycle against a real Redis server.
func TestRedisTokenStore(t *testing.T) {
	srv := setupAuthServer(t, withTokenStore(app.TokenStoreRedis, startRedis(t)))
	client := srv.client()

	health, err := client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.Equal(t, "ok", health.Checks.TokenStore)

	tokenResp, _, err := client.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.NoError(t, err)
	assertTokenResponse(t, tokenResp)

	// A second sign in of the same user and client reuses the live token.
	again, _, err := client.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.NoError(t, err)
	require.Equal(t, tokenResp.AccessToken, again.AccessToken)

	refreshed, err := client.RefreshGrant(t.Context(), tokenResp.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, tokenResp.AccessToken, refreshed.AccessToken)

	info, err := client.CheckToken(t.Context(), refreshed.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)

	require.NoError(t, client.RevokeToken(t.Context(), tokenResp.RefreshToken))

	info, err = client.CheckToken(t.Context(), refreshed.AccessToken)
	require.NoError(t, err)
	require.False(t, info.Active)
}
