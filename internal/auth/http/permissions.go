package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// PermissionMigrator copies the configured permissions of the tenant in ctx
// into the database.
type PermissionMigrator interface {
	MigrateToDatabase(ctx context.Context) error
}

// PrivilegeSweeper removes permissions on privileges an application no
// longer declares.
type PrivilegeSweeper interface {
	Sweep(ctx context.Context, app string, active []string) (service.SweepReport, error)
}

// PermissionsHandler serves the permission maintenance endpoints.
type PermissionsHandler struct {
	Migrator PermissionMigrator
	Sweeper  PrivilegeSweeper
}

// HandleMigrate godoc
//
//	@Summary		Migrate permissions to the database
//	@Description	Copies the roles and permissions of the tenant's configuration documents into the database. Requires ROLE_ADMIN.
//	@Tags			Permissions
//	@Param			X-Tenant	header	string	true	"Tenant key"
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		403	{object}	authsdk.ErrorResponse
//	@Failure		500	{object}	authsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/permissions/migrate [post].
func (h *PermissionsHandler) HandleMigrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Migrator.MigrateToDatabase(ctx); err != nil {
		writeError(w, r, "permission migration failed", err)
		return
	}
	slogx.FromContext(ctx).Info("permissions migrated to database", "actor", actor(r))
	w.WriteHeader(http.StatusNoContent)
}

// HandleSweep godoc
//
//	@Summary		Sweep removed privileges
//	@Description	Removes, in every tenant, the permissions of an application on privileges not listed. Custom privileges are kept. Requires ROLE_ADMIN.
//	@Tags			Permissions
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant	header		string					true	"Tenant key"
//	@Param			request		body		authsdk.SweepRequest	true	"Active privileges of the application"
//	@Success		200			{object}	authsdk.SweepResponse
//	@Failure		400			{object}	authsdk.ErrorResponse
//	@Failure		500			{object}	authsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/privileges/sweep [post].
func (h *PermissionsHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SweepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	app := strings.TrimSpace(req.App)
	if app == "" {
		authsdk.ErrInvalidRequest.WithDescription("app is required").WriteError(w)
		return
	}

	slogx.FromContext(r.Context()).Info("privilege sweep requested",
		"app", app, "privileges", len(req.Privileges), "actor", actor(r))

	report, err := h.Sweeper.Sweep(r.Context(), app, req.Privileges)
	if err != nil {
		writeError(w, r, "privilege sweep failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.SweepResponse{
		Tenants: report.Tenants,
		Failed:  report.Failed,
	})
}
