package jwtx

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the OAuth2 claim set issued by the auth server. Registered and
// well-known OAuth2 claims are typed fields; anything else the issuer wants
// to carry (tenant, role, TFA proof) lives in Extra and is flattened into the
// top-level JSON object on the wire.
type Claims struct {
	jwt.RegisteredClaims

	// ClientID of the OAuth2 client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	// UserName is the principal's primary login. Empty for client-only tokens.
	UserName string `json:"user_name,omitempty"`

	// Scope granted to the token.
	Scope []string `json:"scope,omitempty"`

	// Authorities are the role keys held by the principal.
	Authorities []string `json:"authorities,omitempty"`

	// ATI links a refresh token to the jti of the access token it was
	// minted with. Only set on refresh tokens.
	ATI string `json:"ati,omitempty"`

	// Extra holds custom claims.
	Extra map[string]any `json:"-"`
}

// reserved claim names that can never be overridden through Extra.
var reserved = []string{
	"iss", "sub", "aud", "exp", "nbf", "iat", "jti",
	"client_id", "user_name", "scope", "authorities", "ati",
}

// MarshalJSON merges Extra into the encoded object.
func (c Claims) MarshalJSON() ([]byte, error) {
	type alias Claims
	base, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+8)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if slices.Contains(reserved, k) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the typed claims and collects the remainder in Extra.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type alias Claims
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range reserved {
		delete(all, k)
	}

	*c = Claims(a)
	if len(all) > 0 {
		c.Extra = all
	}
	return nil
}

// StringClaim returns the custom claim k as a string, or "" when absent.
func (c *Claims) StringClaim(k string) string {
	s, _ := c.Extra[k].(string)
	return s
}

// BoolClaim returns the custom claim k as a bool, false when absent.
func (c *Claims) BoolClaim(k string) bool {
	b, _ := c.Extra[k].(bool)
	return b
}

// Int64Claim returns the custom claim k as an int64. JSON numbers decode as
// float64, so both representations are accepted.
func (c *Claims) Int64Claim(k string) int64 {
	switch v := c.Extra[k].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// HasClaim reports whether the custom claim k is present.
func (c *Claims) HasClaim(k string) bool {
	_, ok := c.Extra[k]
	return ok
}

// Expiry returns the exp claim, or the zero time when the token does not
// expire.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiryAt ensures the token hasn't expired at now and isn't used
// before nbf.
func (c *Claims) ValidateExpiryAt(now time.Time) error {
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
