package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// TestJWKSEndpoint verifies the public keys are published.
func TestJWKSEndpoint(t *testing.T) {
	srv := setupAuthServer(t)

	jwks, err := srv.client().GetJWKS(t.Context())
	require.NoError(t, err)
	require.NotNil(t, jwks)
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	require.Equal(t, "OKP", key.Kty)
	require.Equal(t, jwtx.AlgorithmEdDSA, key.Alg)
	require.NotEmpty(t, key.Kid)
}

// TestJWKSVerification verifies that access tokens can be verified offline
// with the published keys:
// 1. Login with the admin user
// 2. Fetch the JWKS
// 3. Verify the access token and check its claims
func TestJWKSVerification(t *testing.T) {
	srv := setupAuthServer(t)
	client := srv.client()

	session := srv.login(t, adminUsername, adminPassword)

	jwksResp, err := client.GetJWKS(t.Context())
	require.NoError(t, err)

	keySet := jwtx.NewKeySet()
	require.NoError(t, keySet.ResetFromJWKS(jwtx.JWKS(*jwksResp)))

	claims, err := jwtx.NewVerifier(keySet, testIssuer, nil).Verify(session.AccessToken())
	require.NoError(t, err, "access token should verify against the JWKS")

	require.Equal(t, "u-admin", claims.Subject)
	require.Equal(t, adminUsername, claims.UserName)
	require.Equal(t, webClientID, claims.ClientID)
	require.Equal(t, testIssuer, claims.Issuer)
	require.NotEmpty(t, claims.ID, "jti should not be empty")
	require.NotNil(t, claims.ExpiresAt)
	require.ElementsMatch(t, clientScopes, claims.Scope)
	require.Equal(t, []string{"ROLE_ADMIN"}, claims.Authorities)
	require.Equal(t, testTenant, claims.StringClaim("tenant"))

	// The SDK builds the same verifier; one of another issuer rejects the token.
	v, err := client.NewVerifier(t.Context(), testIssuer)
	require.NoError(t, err)
	_, err = v.Verify(session.AccessToken())
	require.NoError(t, err)

	other, err := client.NewVerifier(t.Context(), "someone-else")
	require.NoError(t, err)
	_, err = other.Verify(session.AccessToken())
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}
