package jwtx_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestClaims_ExtraIsFlattened(t *testing.T) {
	c := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1", Issuer: "warden"},
		ClientID:         "web",
		UserName:         "alice",
		Scope:            []string{"read"},
		Extra: map[string]any{
			"tenant":     "acme",
			"multi_role": true,
			"jti":        "must-not-override",
		},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "acme", raw["tenant"])
	require.Equal(t, true, raw["multi_role"])
	require.Equal(t, "jti-1", raw["jti"])
	require.Equal(t, "alice", raw["user_name"])

	var back jwtx.Claims
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, "web", back.ClientID)
	require.Equal(t, "acme", back.StringClaim("tenant"))
	require.True(t, back.BoolClaim("multi_role"))
	require.False(t, back.HasClaim("jti"))
	require.False(t, back.HasClaim("client_id"))
}

func TestClaims_TypedAccessorsTolerateAbsence(t *testing.T) {
	var c jwtx.Claims
	require.Empty(t, c.StringClaim("tenant"))
	require.False(t, c.BoolClaim("multi_role"))
	require.Zero(t, c.Int64Claim("create_token_time"))
	require.True(t, c.Expiry().IsZero())

	c.Extra = map[string]any{"create_token_time": float64(1700000000000), "tenant": 3}
	require.Equal(t, int64(1700000000000), c.Int64Claim("create_token_time"))
	require.Empty(t, c.StringClaim("tenant"))
}

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "warden"}}

	require.NoError(t, c.ValidateIssuer("warden"))
	require.NoError(t, c.ValidateIssuer(""))
	require.ErrorIs(t, c.ValidateIssuer("other"), jwtx.ErrIssuer)
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Audience: []string{"api", "admin"}}}

	require.NoError(t, c.ValidateAudience(nil))
	require.NoError(t, c.ValidateAudience([]string{"x", "admin"}))
	require.ErrorIs(t, c.ValidateAudience([]string{"x"}), jwtx.ErrAudience)
}

func TestValidateExpiryAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		exp  *jwt.NumericDate
		nbf  *jwt.NumericDate
		want error
	}{
		{"no exp", nil, nil, nil},
		{"valid", jwt.NewNumericDate(now.Add(time.Minute)), nil, nil},
		{"expired", jwt.NewNumericDate(now.Add(-time.Second)), nil, jwtx.ErrExpired},
		{"expires exactly now", jwt.NewNumericDate(now), nil, jwtx.ErrExpired},
		{"not yet valid", nil, jwt.NewNumericDate(now.Add(time.Minute)), jwtx.ErrNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: tt.exp, NotBefore: tt.nbf}}
			err := c.ValidateExpiryAt(now)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}
