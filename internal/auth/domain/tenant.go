package domain

// Permission storage modes.
const (
	PermissionsModeConfig   = "config"
	PermissionsModeDatabase = "database"
)

// TFA OTP strategies.
const (
	TfaStrategyEmbedded  = "embedded"
	TfaStrategyDelegated = "delegated"
)

// TenantSettings are the per-tenant knobs read from tenant-config.yml.
type TenantSettings struct {
	Security SecuritySettings `yaml:"security"`
}

// SecuritySettings holds token, TFA and permission settings of a tenant.
type SecuritySettings struct {
	AccessTokenValiditySeconds    *int `yaml:"accessTokenValiditySeconds"`
	RefreshTokenValiditySeconds   *int `yaml:"refreshTokenValiditySeconds"`
	TfaAccessTokenValiditySeconds *int `yaml:"tfaAccessTokenValiditySeconds"`

	TfaEnabled           bool   `yaml:"tfaEnabled"`
	TfaOtpStrategy       string `yaml:"tfaOtpStrategy"`
	TfaDefaultOtpChannel string `yaml:"tfaDefaultOtpChannel"`

	DefaultUserRole  string `yaml:"defaultUserRole"`
	MultiRoleEnabled bool   `yaml:"multiRoleEnabled"`
	PermissionsMode  string `yaml:"permissionsMode"`
}

// DefaultTenantSettings are applied under whatever a tenant configures.
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		Security: SecuritySettings{
			TfaOtpStrategy:       TfaStrategyEmbedded,
			TfaDefaultOtpChannel: OtpChannelEmail,
			DefaultUserRole:      "ROLE_USER",
			PermissionsMode:      PermissionsModeConfig,
		},
	}
}
