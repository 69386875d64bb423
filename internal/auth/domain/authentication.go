package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// OAuth2Request is the client side of an authentication: who asked, for
// what, and with which parameters.
type OAuth2Request struct {
	ClientID   string            `json:"clientId"`
	Scope      []string          `json:"scope,omitempty"`
	GrantType  string            `json:"grantType"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Authentication pairs an OAuth2 request with the principal it was granted
// for. Principal is nil for client-only authentications.
type Authentication struct {
	TenantKey   string        `json:"tenant"`
	Request     OAuth2Request `json:"request"`
	Principal   *Principal    `json:"principal,omitempty"`
	Authorities []string      `json:"authorities,omitempty"`
}

// IsClientOnly reports whether no user takes part in this authentication.
func (a *Authentication) IsClientOnly() bool {
	return a.Principal == nil
}

// Name is the username, or the client id for client-only authentications.
func (a *Authentication) Name() string {
	if a.Principal != nil {
		return a.Principal.Username
	}
	return a.Request.ClientID
}

// Key identifies "the same authentication": same tenant, client, user and
// scope. Token stores index live tokens by it.
func (a *Authentication) Key() string {
	scope := slices.Clone(a.Request.Scope)
	slices.Sort(scope)

	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(a.TenantKey),
		a.Request.ClientID,
		a.Name(),
		strings.Join(scope, " "),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
