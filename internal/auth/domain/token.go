package domain

import (
	"math"
	"time"
)

// TokenTypeBearer is the only token type the server issues.
const TokenTypeBearer = "bearer"

// Custom claim names carried in AccessToken.AdditionalInformation.
const (
	ClaimTenant            = "tenant"
	ClaimUserKey           = "user_key"
	ClaimRoleKey           = "role_key"
	ClaimMultiRole         = "multi_role"
	ClaimLogins            = "logins"
	ClaimCreateTokenTime   = "create_token_time"
	ClaimAdditionalDetails = "additional_details"
	ClaimTfaOtpHash        = "tfa_otp_hash"
	ClaimTfaOtpID          = "tfa_otp_id"
	ClaimTfaOtpChannel     = "tfa_otp_channel"
)

// AccessToken is an issued access token. ExpiresAt is zero for tokens that
// never expire.
type AccessToken struct {
	Value                 string         `json:"value"`
	TokenType             string         `json:"tokenType"`
	ExpiresAt             time.Time      `json:"expiresAt"`
	RefreshToken          *RefreshToken  `json:"refreshToken,omitempty"`
	Scope                 []string       `json:"scope,omitempty"`
	AdditionalInformation map[string]any `json:"additionalInformation,omitempty"`
}

// IsExpired reports whether the token is past its expiry at now.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// ExpiresIn is the remaining lifetime in whole seconds, 0 for tokens that
// never expire or already have.
func (t *AccessToken) ExpiresIn(now time.Time) int {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	return int(math.Max(0, t.ExpiresAt.Sub(now).Seconds()))
}

// IsTfaPending reports whether the token only proves the first factor.
func (t *AccessToken) IsTfaPending() bool {
	_, hash := t.AdditionalInformation[ClaimTfaOtpHash]
	_, id := t.AdditionalInformation[ClaimTfaOtpID]
	return hash || id
}

// RefreshToken is a refresh token. A nil ExpiresAt never expires.
type RefreshToken struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// IsExpired reports whether the refresh token is past its expiry at now.
func (r *RefreshToken) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
