package domain

// Login types a user can sign in with. The value of any of them is accepted
// as the username of a password grant.
const (
	LoginEmail    = "LOGIN.EMAIL"
	LoginMsisdn   = "LOGIN.MSISDN"
	LoginNickname = "LOGIN.NICKNAME"
)

// OTP delivery channels.
const (
	OtpChannelEmail = "email"
	OtpChannelSMS   = "sms"
)

// Login is a secondary identifier of a user.
type Login struct {
	TypeKey string `json:"typeKey" yaml:"typeKey"`
	Value   string `json:"value" yaml:"value"`
}

// Principal is the identity produced by a successful primary authentication.
// It is built once per authentication and not modified afterwards.
type Principal struct {
	TenantKey string   `json:"tenant"`
	UserKey   string   `json:"userKey"`
	Username  string   `json:"username"`
	RoleKeys  []string `json:"roleKeys"`

	TfaEnabled    bool   `json:"tfaEnabled"`
	TfaOtpSecret  string `json:"-"`
	TfaOtpChannel string `json:"tfaOtpChannel,omitempty"`

	// Per-user validity overrides in seconds; nil means not set.
	AccessTokenValiditySeconds    *int `json:"accessTokenValiditySeconds,omitempty"`
	RefreshTokenValiditySeconds   *int `json:"refreshTokenValiditySeconds,omitempty"`
	TfaAccessTokenValiditySeconds *int `json:"tfaAccessTokenValiditySeconds,omitempty"`

	AutoLogoutEnabled        bool `json:"autoLogoutEnabled"`
	AutoLogoutTimeoutSeconds int  `json:"autoLogoutTimeoutSeconds,omitempty"`

	Logins []Login `json:"logins,omitempty"`
}

// PrimaryRole is the first role key, or "" when the principal has none.
func (p *Principal) PrimaryRole() string {
	if p == nil || len(p.RoleKeys) == 0 {
		return ""
	}
	return p.RoleKeys[0]
}

// Login returns the value of the first login of typeKey.
func (p *Principal) Login(typeKey string) (string, bool) {
	for _, l := range p.Logins {
		if l.TypeKey == typeKey {
			return l.Value, true
		}
	}
	return "", false
}

// OtpDestination maps an OTP channel to the login it is delivered to.
func (p *Principal) OtpDestination(channel string) (string, bool) {
	switch channel {
	case OtpChannelSMS:
		return p.Login(LoginMsisdn)
	default:
		return p.Login(LoginEmail)
	}
}
