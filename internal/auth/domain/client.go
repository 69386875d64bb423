package domain

import (
	"slices"
	"time"
)

// OAuth2 grant types.
const (
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
	GrantTfaOtpToken       = "tfa_otp_token"
)

// Client is a registered OAuth2 client of a tenant.
type Client struct {
	ID                   string
	TenantKey            string
	ClientID             string
	SecretHash           string
	Scopes               []string
	AuthorizedGrantTypes []string

	AccessTokenValiditySeconds    *int
	RefreshTokenValiditySeconds   *int
	TfaAccessTokenValiditySeconds *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllowsGrant reports whether the client may use grantType.
func (c Client) AllowsGrant(grantType string) bool {
	return slices.Contains(c.AuthorizedGrantTypes, grantType)
}
