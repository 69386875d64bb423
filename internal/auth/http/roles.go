package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// RolesHandler administers the roles of the caller's tenant.
type RolesHandler struct {
	RolesService *service.RolesService
}

// HandleList handles the list roles endpoint
//
//	@Summary		List roles
//	@Description	Returns the roles of the tenant ordered by key. Requires ROLE_ADMIN.
//	@Tags			Roles
//	@Produce		json
//	@Param			X-Tenant	header		string						true	"Tenant key"
//	@Success		200			{object}	authsdk.ListRolesResponse	"List of roles"
//	@Failure		401			{object}	authsdk.ErrorResponse		"Unauthorized - missing or invalid token"
//	@Failure		403			{object}	authsdk.ErrorResponse		"Forbidden - not an administrator of the tenant"
//	@Failure		500			{object}	authsdk.ErrorResponse		"Internal server error"
//	@Security		BearerAuth
//	@Router			/v1/roles [get].
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RolesService.ListRoles(r.Context())
	if err != nil {
		writeError(w, r, "failed to list roles", err)
		return
	}

	response := authsdk.ListRolesResponse{
		Roles: make([]authsdk.RoleInfo, len(roles)),
	}
	for i, role := range roles {
		response.Roles[i] = roleInfo(role)
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

// HandleCreate handles the create role endpoint
//
//	@Summary		Create role
//	@Description	Creates a role. When based_on names an existing role its permissions are copied. Requires ROLE_ADMIN.
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant	header		string						true	"Tenant key"
//	@Param			request		body		authsdk.CreateRoleRequest	true	"Role"
//	@Success		201			{object}	authsdk.RoleInfo
//	@Failure		400			{object}	authsdk.ErrorResponse
//	@Failure		409			{object}	authsdk.ErrorResponse	"Role already exists"
//	@Security		BearerAuth
//	@Router			/v1/roles [post].
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CreateRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		authsdk.ErrInvalidRequest.WithDescription("key is required").WriteError(w)
		return
	}

	role, err := h.RolesService.CreateRole(r.Context(), domain.Role{
		Key:         req.Key,
		Description: req.Description,
		BasedOn:     strings.TrimSpace(req.BasedOn),
	}, actor(r))
	if err != nil {
		writeError(w, r, "failed to create role", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, roleInfo(role))
}

// HandleUpdate handles the update role endpoint
//
//	@Summary		Update role
//	@Description	Replaces the description of a role. Requires ROLE_ADMIN.
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant	header		string						true	"Tenant key"
//	@Param			key			path		string						true	"Role key"
//	@Param			request		body		authsdk.UpdateRoleRequest	true	"Role"
//	@Success		200			{object}	authsdk.RoleInfo
//	@Failure		404			{object}	authsdk.ErrorResponse	"Role not found"
//	@Security		BearerAuth
//	@Router			/v1/roles/{key} [put].
func (h *RolesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UpdateRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	role, err := h.RolesService.UpdateRole(r.Context(), r.PathValue("key"), req.Description, actor(r))
	if err != nil {
		writeError(w, r, "failed to update role", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, roleInfo(role))
}

// HandleDelete handles the delete role endpoint
//
//	@Summary		Delete role
//	@Description	Deletes a role and its permissions. Requires ROLE_ADMIN.
//	@Tags			Roles
//	@Param			X-Tenant	header	string	true	"Tenant key"
//	@Param			key			path	string	true	"Role key"
//	@Success		204
//	@Failure		404	{object}	authsdk.ErrorResponse	"Role not found"
//	@Security		BearerAuth
//	@Router			/v1/roles/{key} [delete].
func (h *RolesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.RolesService.DeleteRole(r.Context(), r.PathValue("key")); err != nil {
		writeError(w, r, "failed to delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPermissions handles the role permissions endpoint
//
//	@Summary		List role permissions
//	@Description	Returns the permissions of a role. Catalog privileges the role has no permission for are listed as disabled. Requires ROLE_ADMIN.
//	@Tags			Roles
//	@Produce		json
//	@Param			X-Tenant	header		string	true	"Tenant key"
//	@Param			key			path		string	true	"Role key"
//	@Success		200			{object}	authsdk.RolePermissionsResponse
//	@Failure		404			{object}	authsdk.ErrorResponse	"Role not found"
//	@Security		BearerAuth
//	@Router			/v1/roles/{key}/permissions [get].
func (h *RolesHandler) HandleGetPermissions(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	perms, err := h.RolesService.RolePermissions(r.Context(), key)
	if err != nil {
		writeError(w, r, "failed to read role permissions", err)
		return
	}

	response := authsdk.RolePermissionsResponse{
		Role:        key,
		Permissions: make([]authsdk.PermissionInfo, len(perms)),
	}
	for i, p := range perms {
		response.Permissions[i] = authsdk.PermissionInfo{
			App:               p.AppName,
			Privilege:         p.PrivilegeKey,
			Disabled:          p.Disabled,
			ReactionStrategy:  p.ReactionStrategy,
			EnvCondition:      p.EnvCondition,
			ResourceCondition: p.ResourceCondition,
			Description:       p.Description,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

// HandleUpdatePermissions handles the replace role permissions endpoint
//
//	@Summary		Replace role permissions
//	@Description	Replaces every permission of a role. Requires ROLE_ADMIN.
//	@Tags			Roles
//	@Accept			json
//	@Param			X-Tenant	header	string									true	"Tenant key"
//	@Param			key			path	string									true	"Role key"
//	@Param			request		body	authsdk.UpdateRolePermissionsRequest	true	"Permissions"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse
//	@Failure		404	{object}	authsdk.ErrorResponse	"Role not found"
//	@Security		BearerAuth
//	@Router			/v1/roles/{key}/permissions [put].
func (h *RolesHandler) HandleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UpdateRolePermissionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	key := r.PathValue("key")
	perms := make([]domain.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		if strings.TrimSpace(p.App) == "" || strings.TrimSpace(p.Privilege) == "" {
			authsdk.ErrInvalidRequest.WithDescription("app and privilege are required").WriteError(w)
			return
		}
		perms = append(perms, domain.Permission{
			AppName:           strings.TrimSpace(p.App),
			RoleKey:           key,
			PrivilegeKey:      strings.TrimSpace(p.Privilege),
			Disabled:          p.Disabled,
			ReactionStrategy:  p.ReactionStrategy,
			EnvCondition:      p.EnvCondition,
			ResourceCondition: p.ResourceCondition,
			Description:       p.Description,
		})
	}

	if err := h.RolesService.UpdateRolePermissions(r.Context(), key, perms); err != nil {
		writeError(w, r, "failed to update role permissions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func roleInfo(role domain.Role) authsdk.RoleInfo {
	return authsdk.RoleInfo{
		Key:         role.Key,
		Description: role.Description,
		CreatedBy:   role.CreatedBy,
		CreatedAt:   timePtr(role.CreatedAt),
		UpdatedBy:   role.UpdatedBy,
		UpdatedAt:   timePtr(role.UpdatedAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// actor is the caller recorded in audit columns.
func actor(r *http.Request) string {
	auth, _ := httpx.AuthFromContext(r.Context())
	return auth.Subject
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		authsdk.ErrInvalidJSONBody.WriteError(w)
		return false
	}
	return true
}
