package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/internal/auth/app"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	srv := setupAuthServer(t)

	health, err := srv.client().GetLiveness(t.Context())
	assertHealthy(t, health, err)
	require.Equal(t, app.BuildVersion, health.Version)
}

// TestReadyzEndpoint verifies the readiness check reports the database and
// the signer.
func TestReadyzEndpoint(t *testing.T) {
	srv := setupAuthServer(t)

	health, err := srv.client().GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
	require.Empty(t, health.Checks.TokenStore, "the memory token store has nothing to ping")
}
