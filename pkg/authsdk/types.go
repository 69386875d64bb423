package authsdk

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// Headers of the token endpoint.
const (
	// TenantHeader selects the tenant of every tenant scoped request.
	TenantHeader = "X-Tenant"

	// TfaOtpHeader is "required" on a token response carrying a TFA
	// pending token instead of a usable access token.
	TfaOtpHeader = "X-Tfa-Otp"

	// TfaOtpChannelHeader names the channel the one-time code was sent to.
	TfaOtpChannelHeader = "X-Tfa-Otp-Channel"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// The additional claims of the token (tenant, user_key, role_key, logins, ...)
// are flattened into the same JSON object and collected in Extra.
type TokenResponse struct {
	// AccessToken is the signed JWT access token
	AccessToken string `json:"access_token"`

	// RefreshToken is omitted for client-only grants and clients not
	// registered for refresh_token
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the remaining lifetime in seconds, 0 for tokens that never expire
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`

	// Extra holds every other member of the response
	Extra map[string]any `json:"-"`
}

type tokenResponseFields TokenResponse

var tokenResponseKeys = []string{"access_token", "refresh_token", "token_type", "expires_in", "scope"}

// MarshalJSON flattens Extra next to the standard members.
func (t TokenResponse) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(tokenResponseFields(t))
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return base, nil
	}

	out := make(map[string]any, len(t.Extra)+len(tokenResponseKeys))
	maps.Copy(out, t.Extra)
	var std map[string]any
	if err := json.Unmarshal(base, &std); err != nil {
		return nil, err
	}
	maps.Copy(out, std)
	return json.Marshal(out)
}

// UnmarshalJSON reads the standard members and keeps the rest in Extra.
func (t *TokenResponse) UnmarshalJSON(data []byte) error {
	var std tokenResponseFields
	if err := json.Unmarshal(data, &std); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range tokenResponseKeys {
		delete(all, k)
	}
	*t = TokenResponse(std)
	if len(all) > 0 {
		t.Extra = all
	}
	return nil
}

// TfaChallenge is set when a password grant returned a pending token. The
// token must be redeemed with the code sent over Channel.
type TfaChallenge struct {
	PendingToken string
	Channel      string
}

// IntrospectionResponse is the check_token response. An inactive token only
// carries Active=false.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Scope       string   `json:"scope,omitempty"`
	ClientID    string   `json:"client_id,omitempty"`
	UserName    string   `json:"user_name,omitempty"`
	Tenant      string   `json:"tenant,omitempty"`
	UserKey     string   `json:"user_key,omitempty"`
	RoleKey     string   `json:"role_key,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	GrantType   string   `json:"grant_type,omitempty"`
	Exp         int64    `json:"exp,omitempty"`
}

// ============================================================================
// Role Types
// ============================================================================

// RoleInfo represents a role of the tenant.
type RoleInfo struct {
	Key         string     `json:"key"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ListRolesResponse contains the roles of the tenant ordered by key.
type ListRolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

// CreateRoleRequest creates a role. When BasedOn names an existing role its
// permissions are copied to the new one.
type CreateRoleRequest struct {
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	BasedOn     string `json:"based_on,omitempty"`
}

// UpdateRoleRequest replaces the description of a role.
type UpdateRoleRequest struct {
	Description string `json:"description"`
}

// PermissionInfo grants (or withholds, when Disabled) a privilege of an
// application to a role.
type PermissionInfo struct {
	App               string `json:"app"`
	Privilege         string `json:"privilege"`
	Disabled          bool   `json:"disabled"`
	ReactionStrategy  string `json:"reaction_strategy,omitempty"`
	EnvCondition      string `json:"env_condition,omitempty"`
	ResourceCondition string `json:"resource_condition,omitempty"`
	Description       string `json:"description,omitempty"`
}

// RolePermissionsResponse lists the permissions of one role. Catalog
// privileges the role has no permission for are listed as disabled.
type RolePermissionsResponse struct {
	Role        string           `json:"role"`
	Permissions []PermissionInfo `json:"permissions"`
}

// UpdateRolePermissionsRequest replaces every permission of a role.
type UpdateRolePermissionsRequest struct {
	Permissions []PermissionInfo `json:"permissions"`
}

// SweepRequest removes, in every tenant, the permissions of App on
// privileges not listed in Privileges. Custom privileges are kept.
type SweepRequest struct {
	App        string   `json:"app"`
	Privileges []string `json:"privileges"`
}

// SweepResponse reports how many tenants were swept and which failed.
type SweepResponse struct {
	Tenants int      `json:"tenants"`
	Failed  []string `json:"failed,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the relational store status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`

	// TokenStore indicates the remote token store status, omitted when
	// tokens are kept in process
	TokenStore string `json:"token_store,omitempty"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS
