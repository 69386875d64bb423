// Package claims converts tokens and authentications to signed JWTs and
// back.
package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// Codec signs tokens with the instance keys. Decode checks signature, kid,
// issuer and audience; expiry is left to the caller so expired tokens can
// still be identified and evicted.
type Codec struct {
	Keys     *jwtx.KeyManager
	Issuer   string
	Audience []string

	// Now is the clock stamped into iat. Defaults to time.Now.
	Now func() time.Time
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Encode returns a copy of token whose value is the signed JWT. The original
// value becomes the jti. An attached refresh token is encoded too, linked to
// the access token by its ati claim, unless it already is one of our JWTs.
func (c *Codec) Encode(token *domain.AccessToken, authn *domain.Authentication) (*domain.AccessToken, error) {
	if token == nil || authn == nil {
		return nil, errors.New("claims: token and authentication are required")
	}

	out := *token
	out.Scope = append([]string(nil), token.Scope...)
	out.AdditionalInformation = maps.Clone(token.AdditionalInformation)

	cl := c.baseClaims(authn, token.AdditionalInformation)
	cl.ID = token.Value
	cl.Scope = out.Scope
	if !token.ExpiresAt.IsZero() {
		cl.ExpiresAt = jwt.NewNumericDate(token.ExpiresAt)
	}

	signed, err := c.Keys.Sign(cl)
	if err != nil {
		return nil, fmt.Errorf("claims: sign access token: %w", err)
	}
	out.Value = signed

	if rt := token.RefreshToken; rt != nil {
		encoded := *rt
		if !c.isOwnRefreshToken(rt.Value) {
			rcl := c.baseClaims(authn, token.AdditionalInformation)
			rcl.ID = rt.Value
			rcl.ATI = token.Value
			rcl.Scope = out.Scope
			if rt.ExpiresAt != nil {
				rcl.ExpiresAt = jwt.NewNumericDate(*rt.ExpiresAt)
			}
			encoded.Value, err = c.Keys.Sign(rcl)
			if err != nil {
				return nil, fmt.Errorf("claims: sign refresh token: %w", err)
			}
		}
		out.RefreshToken = &encoded
	}

	return &out, nil
}

func (c *Codec) baseClaims(authn *domain.Authentication, extra map[string]any) jwtx.Claims {
	cl := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.Issuer,
			Audience: c.Audience,
			IssuedAt: jwt.NewNumericDate(c.now()),
		},
		ClientID:    authn.Request.ClientID,
		Authorities: authn.Authorities,
		Extra:       maps.Clone(extra),
	}
	if authn.Principal != nil {
		cl.UserName = authn.Principal.Username
		cl.Subject = authn.Principal.UserKey
	} else {
		cl.Subject = authn.Request.ClientID
	}
	return cl
}

func (c *Codec) isOwnRefreshToken(value string) bool {
	if strings.Count(value, ".") != 2 {
		return false
	}
	cl, err := c.Decode(value)
	return err == nil && cl.ATI != ""
}

// Decode verifies value and returns its claims. Errors wrap the jwtx
// sentinels (ErrMalformed, ErrInvalidSig, ErrUnknownKID, ...).
func (c *Codec) Decode(value string) (*jwtx.Claims, error) {
	cl, err := c.Keys.Verifier.VerifySignature(value)
	if err != nil {
		return nil, fmt.Errorf("claims: decode: %w", err)
	}
	return cl, nil
}

// AccessToken rebuilds the access token carried by decoded claims.
func AccessToken(value string, cl *jwtx.Claims) *domain.AccessToken {
	return &domain.AccessToken{
		Value:                 value,
		TokenType:             domain.TokenTypeBearer,
		ExpiresAt:             cl.Expiry(),
		Scope:                 cl.Scope,
		AdditionalInformation: maps.Clone(cl.Extra),
	}
}

// RefreshToken rebuilds a refresh token from decoded claims.
func RefreshToken(value string, cl *jwtx.Claims) *domain.RefreshToken {
	rt := &domain.RefreshToken{Value: value}
	if exp := cl.Expiry(); !exp.IsZero() {
		rt.ExpiresAt = &exp
	}
	return rt
}

// Authentication rebuilds the authentication a token was issued for.
// Claims missing from older tokens are left at their zero values.
func Authentication(cl *jwtx.Claims) *domain.Authentication {
	a := &domain.Authentication{
		TenantKey: cl.StringClaim(domain.ClaimTenant),
		Request: domain.OAuth2Request{
			ClientID: cl.ClientID,
			Scope:    cl.Scope,
		},
		Authorities: cl.Authorities,
	}
	if details, ok := cl.Extra[domain.ClaimAdditionalDetails].(map[string]any); ok {
		a.Request.Parameters = make(map[string]string, len(details))
		for k, v := range details {
			if s, ok := v.(string); ok {
				a.Request.Parameters[k] = s
			}
		}
	}

	if cl.UserName != "" {
		a.Principal = &domain.Principal{
			TenantKey: a.TenantKey,
			UserKey:   cl.StringClaim(domain.ClaimUserKey),
			Username:  cl.UserName,
			RoleKeys:  cl.Authorities,
			Logins:    Logins(cl),
		}
		if len(a.Principal.RoleKeys) == 0 {
			if role := cl.StringClaim(domain.ClaimRoleKey); role != "" {
				a.Principal.RoleKeys = []string{role}
			}
		}
	}
	return a
}

// Logins decodes the logins claim. It holds []domain.Login before signing
// and generic JSON after a round trip.
func Logins(cl *jwtx.Claims) []domain.Login {
	switch v := cl.Extra[domain.ClaimLogins].(type) {
	case []domain.Login:
		return v
	case nil:
		return nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var logins []domain.Login
		if err := json.Unmarshal(raw, &logins); err != nil {
			return nil
		}
		return logins
	}
}
