package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/warden/internal/auth/claims"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/warden/internal/auth/http"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/otp"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/filesystem"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/memory"
	redisstore "github.com/aussiebroadwan/warden/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/stateless"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	docs       *filesystem.Documents
	redis      *goredis.Client // only with the redis token store
	keyManager *jwtx.KeyManager
	metrics    *metrics.Metrics
	hasher     *cryptox.PasswordHasher
	settings   *tenant.SettingsProvider

	// Services
	Users       *service.UserService
	Clients     *service.ClientService
	Roles       *service.RolesService
	Permissions *service.PermissionReconciler
	Sweeper     *service.PrivilegeSweeper

	tokenService        *service.TokenService
	granter             *service.CompositeGranter
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// Open connects the stores and builds the account and permission services.
// It is enough for one-shot administrative commands; use New to serve.
func Open(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "warden",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  cfg.LogOutput,
		}),
		metrics: metrics.New(),
	}

	if err := app.initStorage(); err != nil {
		return nil, err
	}
	app.initAccounts()

	return app, nil
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	// Keys come after the database, persistent mode loads them from it
	ctx := context.Background()
	keyManager, err := InitAuthKeys(ctx, app.cfg, app.db, app.logger)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initTokens(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("warden starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"token_store", app.cfg.TokenStore,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down warden...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("warden stopped")
	return nil
}

// Close releases the database and the redis connection.
func (app *Application) Close() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initStorage opens the relational store, applies migrations and opens the
// tenant documents.
func (app *Application) initStorage() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	version, err := db.SchemaVersion()
	if err != nil {
		_ = db.Close()
		return err
	}
	app.logger.Info("database schema ready", "version", version)

	docs, err := filesystem.New(app.cfg.ConfigRoot)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open tenant documents: %w", err)
	}
	app.docs = docs

	hasher, err := cryptox.LoadPasswordHasher(app.cfg.PepperFile)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = hasher

	app.settings = tenant.NewSettingsProvider(docs, app.cfg.TenantCacheTTL)
	return nil
}

// initAccounts builds the services that only need the stores.
func (app *Application) initAccounts() {
	app.Users = &service.UserService{
		Store:    app.db,
		Hasher:   app.hasher,
		Settings: app.settings,
		Issuer:   app.cfg.Issuer,
	}
	app.Clients = &service.ClientService{Store: app.db, Hasher: app.hasher}

	config := &service.ConfigBackedSource{Docs: app.docs}
	database := &service.DatabaseBackedSource{Store: app.db, Privileges: config}

	app.Permissions = &service.PermissionReconciler{Settings: app.settings, Metrics: app.metrics}
	app.Permissions.Register(domain.PermissionsModeConfig, config)
	app.Permissions.Register(domain.PermissionsModeDatabase, database)

	app.Roles = &service.RolesService{Permissions: app.Permissions}
	app.Sweeper = &service.PrivilegeSweeper{
		Tenants:     app.docs,
		Permissions: app.Permissions,
		Catalog:     config,
		Metrics:     app.metrics,
	}
}

// initTokens builds the token service, the TFA flow and the granters.
func (app *Application) initTokens(ctx context.Context) error {
	codec := &claims.Codec{Keys: app.keyManager, Issuer: app.cfg.Issuer}

	tokenStore, err := app.openTokenStore(ctx, codec)
	if err != nil {
		return err
	}

	app.tokenService = &service.TokenService{
		Store: tokenStore,
		Codec: codec,
		Validity: &service.ValidityResolver{
			Settings: app.settings,
			Defaults: service.ValidityDefaults{
				AccessTokenSeconds:    app.cfg.AccessTokenValiditySeconds,
				RefreshTokenSeconds:   app.cfg.RefreshTokenValiditySeconds,
				TfaAccessTokenSeconds: app.cfg.TfaAccessTokenValiditySeconds,
			},
		},
		Clients:           app.Clients,
		Settings:          app.settings,
		Reauthenticator:   &service.StoreReauthenticator{Users: app.db.Users()},
		ReuseRefreshToken: app.cfg.ReuseRefreshToken,
	}

	users := app.db.Users()
	otpHasher := cryptox.OTPHasher{}
	providers := []service.AuthenticationProvider{
		&service.PasswordProvider{Users: users, Hasher: app.hasher},
		&service.TfaOtpProvider{Users: users, Hasher: otpHasher},
	}

	var otpService service.OtpService
	if app.cfg.OtpServiceURL != "" {
		otpService = otp.NewRemoteService(app.cfg.OtpServiceURL)
		providers = append(providers, &service.TfaDelegatedProvider{Users: users, Otp: otpService})
		app.logger.Info("delegated tfa enabled", "otp_service", app.cfg.OtpServiceURL)
	}
	auth := &service.AuthenticationManager{Providers: providers}

	flow := &service.TfaChallengeFlow{
		Tokens:     app.tokenService,
		Auth:       auth,
		Settings:   app.settings,
		Generator:  service.TotpGenerator{},
		Hasher:     otpHasher,
		Sender:     app.otpSenders(),
		OtpService: otpService,
		Metrics:    app.metrics,
	}

	app.granter = &service.CompositeGranter{
		Granters: []service.TokenGranter{
			&service.PasswordGranter{Auth: auth, Tokens: app.tokenService, Tfa: flow, Settings: app.settings},
			&service.RefreshTokenGranter{Tokens: app.tokenService},
			&service.ClientCredentialsGranter{Tokens: app.tokenService},
			&service.TfaOtpGranter{Flow: flow},
		},
		Metrics: app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.Sweeper,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

func (app *Application) openTokenStore(ctx context.Context, codec *claims.Codec) (store.TokenStore, error) {
	switch app.cfg.TokenStore {
	case TokenStoreStateless, "":
		return stateless.NewTokenStore(codec), nil
	case TokenStoreMemory:
		app.logger.Warn("memory token store: tokens are lost on restart and not shared between instances")
		return memory.NewTokenStore(), nil
	case TokenStoreRedis:
		if app.cfg.RedisURL == "" {
			return nil, fmt.Errorf("AUTH_REDIS_URL is required for the redis token store")
		}
		rdb, err := redisstore.Open(ctx, app.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = rdb
		return redisstore.NewTokenStore(rdb, "warden:"), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", app.cfg.TokenStore)
	}
}

// otpSenders delivers email codes over SMTP when a host is configured. In
// dev every channel falls back to the log.
func (app *Application) otpSenders() otp.Router {
	senders := otp.Router{}
	if app.cfg.SMTPHost != "" {
		senders[domain.OtpChannelEmail] = &otp.MailSender{
			Host:    app.cfg.SMTPHost,
			Port:    app.cfg.SMTPPort,
			From:    app.cfg.SMTPFrom,
			User:    app.cfg.SMTPUser,
			Pass:    app.cfg.SMTPPass,
			TLSMode: app.cfg.SMTPTLSMode,
		}
	}
	if app.cfg.Env == "dev" {
		for _, ch := range []string{domain.OtpChannelEmail, domain.OtpChannelSMS} {
			if _, ok := senders[ch]; !ok {
				senders[ch] = otp.LogSender{}
			}
		}
	}
	return senders
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		BuildVersion,
		app.db,
		app.metrics,
		app.cfg.RateLimits,
		app.logger,
	)

	router.Granter = app.granter
	router.TokenService = app.tokenService
	router.ClientService = app.Clients
	router.RolesService = app.Roles
	router.Permissions = app.Permissions
	router.Sweeper = app.Sweeper
	if p, ok := app.tokenService.Store.(httpapi.Pinger); ok {
		router.TokenStorePinger = p
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
