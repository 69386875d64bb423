package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// Pinger reports whether a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health serves the probes and the key set of the server.
type Health struct {
	Version string
	Started time.Time
	Keys    *jwtx.KeySet

	Database Pinger
	// TokenStore is nil for stores kept in process.
	TokenStore Pinger
}

func (h *Health) base(status string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.Started).Round(time.Second).String(),
		Version: h.Version,
	}
}

// HandleLivez godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process serves requests.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func (h *Health) HandleLivez(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.base("ok"))
}

// HandleReadyz godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the database, the signing keys and a remote token store.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"all checks ok"
//	@Failure		503	{object}	authsdk.HealthResponse	"at least one check failed"
//	@Router			/readyz [get].
func (h *Health) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ready := true
	check := func(p Pinger) string {
		if err := p.Ping(ctx); err != nil {
			ready = false
			return "error: " + err.Error()
		}
		return "ok"
	}

	checks := &authsdk.HealthChecks{
		Database: check(h.Database),
		Signer:   "ok",
	}
	if !h.Keys.IsReady() {
		ready = false
		checks.Signer = "error: no keys loaded"
	}
	if h.TokenStore != nil {
		checks.TokenStore = check(h.TokenStore)
	}

	resp, code := h.base("ok"), http.StatusOK
	if !ready {
		resp.Status, code = "degraded", http.StatusServiceUnavailable
	}
	resp.Checks = checks
	httpx.WriteJSON(w, code, resp)
}

// HandleJWKS godoc
//
//	@Summary		Get JWKS
//	@Description	Public keys verifying the access tokens of every tenant.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func (h *Health) HandleJWKS(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(h.Keys.PublicJWKS()))
}
