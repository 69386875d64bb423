package domain

import "time"

// User is the stored account behind a Principal.
type User struct {
	ID           string
	TenantKey    string
	UserKey      string
	PasswordHash string // argon2 encoded
	RoleKeys     []string
	Activated    bool

	TfaEnabled    bool
	TfaOtpSecret  string // TOTP secret, base32 encoded
	TfaOtpChannel string

	AccessTokenValiditySeconds    *int
	RefreshTokenValiditySeconds   *int
	TfaAccessTokenValiditySeconds *int

	AutoLogoutEnabled        bool
	AutoLogoutTimeoutSeconds int

	Logins []Login

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal builds the authenticated identity for a sign-in with username.
func (u User) Principal(username string) *Principal {
	return &Principal{
		TenantKey:                     u.TenantKey,
		UserKey:                       u.UserKey,
		Username:                      username,
		RoleKeys:                      append([]string(nil), u.RoleKeys...),
		TfaEnabled:                    u.TfaEnabled,
		TfaOtpSecret:                  u.TfaOtpSecret,
		TfaOtpChannel:                 u.TfaOtpChannel,
		AccessTokenValiditySeconds:    u.AccessTokenValiditySeconds,
		RefreshTokenValiditySeconds:   u.RefreshTokenValiditySeconds,
		TfaAccessTokenValiditySeconds: u.TfaAccessTokenValiditySeconds,
		AutoLogoutEnabled:             u.AutoLogoutEnabled,
		AutoLogoutTimeoutSeconds:      u.AutoLogoutTimeoutSeconds,
		Logins:                        append([]Login(nil), u.Logins...),
	}
}
