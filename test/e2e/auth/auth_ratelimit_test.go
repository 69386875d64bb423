package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
)

// TestTokenEndpointRateLimit verifies the token endpoint throttles repeated
// password attempts with the default strict limit of 10 requests.
func TestTokenEndpointRateLimit(t *testing.T) {
	srv := setupAuthServer(t, withDefaultRateLimits())
	client := srv.client()

	for i := range 10 {
		_, _, err := client.PasswordGrant(t.Context(), adminUsername, "wrong-password", nil)
		require.ErrorIs(t, err, authsdk.ErrInvalidGrant, "attempt %d should reach the granter", i+1)
	}

	_, _, err := client.PasswordGrant(t.Context(), adminUsername, adminPassword, nil)
	require.ErrorIs(t, err, authsdk.ErrRateLimited)
	var oauthErr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, http.StatusTooManyRequests, oauthErr.StatusCode)

	// Other endpoints have their own budget.
	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
}
