package app

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// Token store backends selected by AUTH_TOKEN_STORE.
const (
	TokenStoreStateless = "stateless"
	TokenStoreMemory    = "memory"
	TokenStoreRedis     = "redis"
)

// Key storage modes selected by AUTH_KEY_STORAGE_MODE.
const (
	KeyStorageEphemeral  = "ephemeral"
	KeyStoragePersistent = "persistent"
)

type Config struct {
	Issuer string // Optional: issuer claim for tokens (default: warden)

	Algorithm      string        // Optional: JWT signing algorithm (RS256, ES256, EdDSA) (default: EdDSA)
	RSABits        int           // Optional: RSA key size for RS256 (default: 4096)
	NumKeys        int           // Optional: number of signing keys (default: 3, min: 1, max: 10)
	KeyStorageMode string        // Optional: key storage mode (ephemeral, persistent) (default: ephemeral)
	KeyGracePeriod time.Duration // Optional: how long persisted keys keep verifying (default: 30 days)
	MasterKeyPath  string        // Optional: master key file for persistent keys, falls back to AUTH_MASTER_KEY
	MasterKey      string        // Optional: master key value for persistent keys

	DatabaseFile string // Optional: path to SQLite database file (default: ./warden.db)
	PepperFile   string // Optional: path to the password pepper, created when missing (default: ./pepper)
	ConfigRoot   string // Optional: root of the tenant documents (default: ./config)

	TokenStore string // Optional: token store (stateless, memory, redis) (default: stateless)
	RedisURL   string // Required for the redis token store

	// Deployment wide validity defaults, overridden per tenant and per client.
	AccessTokenValiditySeconds    *int
	RefreshTokenValiditySeconds   *int
	TfaAccessTokenValiditySeconds *int

	ReuseRefreshToken bool          // Optional: keep the refresh token on refresh (default: true)
	TenantCacheTTL    time.Duration // Optional: tenant settings cache lifetime (default: 1m)

	OtpServiceURL string // Optional: external OTP service for the delegated TFA strategy
	SMTPHost      string // Optional: SMTP host for email codes, codes are logged when empty
	SMTPPort      int    // Optional: SMTP port (default: 587)
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	SMTPTLSMode   string // Optional: auto, starttls, ssl, none (default: auto)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	LogOutput            io.Writer     // Not from env; defaults to stdout
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	RateLimits httpx.RateLimits
}

// LoadConfig reads the configuration from the environment. A .env file in
// the working directory is loaded first when present.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "warden"),
		Algorithm:      getEnvOrDefault("AUTH_ALGORITHM", "EdDSA"),
		RSABits:        getEnvIntOrDefault("AUTH_RSA_BITS", 0), // 0 lets the KeyManager pick
		NumKeys:        getEnvIntOrDefault("AUTH_NUM_KEYS", 0),
		KeyStorageMode: getEnvOrDefault("AUTH_KEY_STORAGE_MODE", KeyStorageEphemeral),
		KeyGracePeriod: getEnvDurationOrDefault("AUTH_KEY_GRACE_PERIOD", 30*24*time.Hour),
		MasterKeyPath:  os.Getenv("AUTH_MASTER_KEY_PATH"),
		MasterKey:      os.Getenv("AUTH_MASTER_KEY"),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "warden.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		ConfigRoot:   getEnvOrDefault("AUTH_CONFIG_ROOT", "config"),

		TokenStore: strings.ToLower(getEnvOrDefault("AUTH_TOKEN_STORE", TokenStoreStateless)),
		RedisURL:   os.Getenv("AUTH_REDIS_URL"),

		AccessTokenValiditySeconds:    getEnvSecondsPtr("AUTH_ACCESS_TOKEN_VALIDITY_SECONDS"),
		RefreshTokenValiditySeconds:   getEnvSecondsPtr("AUTH_REFRESH_TOKEN_VALIDITY_SECONDS"),
		TfaAccessTokenValiditySeconds: getEnvSecondsPtr("AUTH_TFA_TOKEN_VALIDITY_SECONDS"),

		ReuseRefreshToken: getEnvBool("AUTH_REUSE_REFRESH_TOKEN", true),
		TenantCacheTTL:    getEnvDurationOrDefault("AUTH_TENANT_CACHE_TTL", time.Minute),

		OtpServiceURL: os.Getenv("AUTH_OTP_SERVICE_URL"),
		SMTPHost:      os.Getenv("AUTH_SMTP_HOST"),
		SMTPPort:      getEnvIntOrDefault("AUTH_SMTP_PORT", 587),
		SMTPUser:      os.Getenv("AUTH_SMTP_USER"),
		SMTPPass:      os.Getenv("AUTH_SMTP_PASS"),
		SMTPFrom:      os.Getenv("AUTH_SMTP_FROM"),
		SMTPTLSMode:   getEnvOrDefault("AUTH_SMTP_TLS", "auto"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		RateLimits: httpx.RateLimitsFromEnv(),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvSecondsPtr returns nil when key is unset or not an integer, so the
// next level of the validity chain applies.
func getEnvSecondsPtr(key string) *int {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}
