package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/slogx"

	_ "github.com/aussiebroadwan/warden/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// AdminAuthority is the authority required by the admin endpoints.
const AdminAuthority = "ROLE_ADMIN"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimits
	metrics      *metrics.Metrics

	store         store.Store
	Granter       service.TokenGranter
	TokenService  *service.TokenService
	ClientService *service.ClientService
	RolesService  *service.RolesService
	Permissions   PermissionMigrator
	Sweeper       PrivilegeSweeper

	// TokenStorePinger is set when tokens live in a remote store.
	TokenStorePinger Pinger
}

func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	limits httpx.RateLimits,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		limits:       limits,
		metrics:      m,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		httpx.Recover(),
		slogx.HTTPMiddleware(r.logger),
		TenantMiddleware(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerRoles()
	r.registerPermissions()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Warden Authorization Service API
//	@version		0.1.0
//	@description	Multi-tenant OAuth2 authorization server issuing JWT access tokens, with two factor authentication and role permission administration.
//	@description
//	@description				Every tenant scoped request carries the tenant key in the X-Tenant header. Tokens can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/warden
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.basic	BasicAuth
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token of a tenant administrator. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern with request metrics labelled by pattern.
func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	r.Mux.Handle(pattern, r.metrics.Instrument(pattern, httpx.Chain(h, mws...)))
}

func (r *Router) registerOAuth2() {
	// POST /token - strict limit by IP, and per tenant and username for
	// password attempts
	r.handle("POST /v1/oauth2/token", &TokenHandler{
		Clients: r.ClientService,
		Granter: r.Granter,
	},
		httpx.RateLimitByIP(r.limits.Strict),
		httpx.RateLimitLogins(r.limits.Strict, authsdk.TenantHeader),
		RequireTenant(),
	)

	// POST /revoke - moderate rate limit
	r.handle("POST /v1/oauth2/revoke", &RevokeHandler{
		Clients: r.ClientService,
		Tokens:  r.TokenService,
	},
		httpx.RateLimitByIP(r.limits.Moderate),
		RequireTenant(),
	)

	// POST /check_token - resource servers introspect on every request
	r.handle("POST /v1/oauth2/check_token", &CheckTokenHandler{
		Clients: r.ClientService,
		Tokens:  r.TokenService,
	},
		httpx.RateLimitByIP(r.limits.Public),
		RequireTenant(),
	)

	// GET /jwks.json - public endpoint with high limit
	r.handle("GET /.well-known/jwks.json", http.HandlerFunc(r.health().HandleJWKS),
		httpx.RateLimitByIP(r.limits.Public),
	)
}

func (r *Router) health() *Health {
	return &Health{
		Version:    r.buildVersion,
		Started:    r.startTime,
		Keys:       r.keys,
		Database:   r.store,
		TokenStore: r.TokenStorePinger,
	}
}

func (r *Router) admin() []httpx.Middleware {
	return adminChain(&TokenAuthenticator{Tokens: r.TokenService}, r.limits.Moderate)
}

// adminChain is the chain in front of every admin endpoint: a bearer token
// of the X-Tenant tenant carrying the admin authority.
func adminChain(a httpx.BearerAuthenticator, limit httpx.RateLimitConfig) []httpx.Middleware {
	return []httpx.Middleware{
		RequireTenant(),
		httpx.AuthnMiddleware(a),
		RequireTenantMatch(),
		httpx.RequireAnyAuthority(AdminAuthority),
		httpx.RateLimitByUser(limit),
	}
}

func (r *Router) registerRoles() {
	h := &RolesHandler{RolesService: r.RolesService}

	r.handle("GET /v1/roles", http.HandlerFunc(h.HandleList), r.admin()...)
	r.handle("POST /v1/roles", http.HandlerFunc(h.HandleCreate), r.admin()...)
	r.handle("PUT /v1/roles/{key}", http.HandlerFunc(h.HandleUpdate), r.admin()...)
	r.handle("DELETE /v1/roles/{key}", http.HandlerFunc(h.HandleDelete), r.admin()...)
	r.handle("GET /v1/roles/{key}/permissions", http.HandlerFunc(h.HandleGetPermissions), r.admin()...)
	r.handle("PUT /v1/roles/{key}/permissions", http.HandlerFunc(h.HandleUpdatePermissions), r.admin()...)
}

func (r *Router) registerPermissions() {
	h := &PermissionsHandler{Migrator: r.Permissions, Sweeper: r.Sweeper}

	r.handle("POST /v1/permissions/migrate", http.HandlerFunc(h.HandleMigrate), r.admin()...)
	r.handle("POST /v1/privileges/sweep", http.HandlerFunc(h.HandleSweep), r.admin()...)
}

func (r *Router) registerSystem() {
	// Health check endpoints - public limits (monitoring systems may poll frequently)
	h := r.health()
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(h.HandleLivez), httpx.RateLimitByIP(r.limits.Public)),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.HandleReadyz), httpx.RateLimitByIP(r.limits.Public)),
	)
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
