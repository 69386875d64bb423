package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// The role and permission endpoints require a token of the session's tenant
// carrying the ROLE_ADMIN authority.

// ListRoles returns the roles of the tenant.
func (s *Session) ListRoles(ctx context.Context) (*ListRolesResponse, error) {
	var out ListRolesResponse
	if err := s.doAuthJSON(ctx, http.MethodGet, "/v1/roles", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRole creates a role, copying the permissions of req.BasedOn if set.
func (s *Session) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleInfo, error) {
	var out RoleInfo
	if err := s.doAuthJSON(ctx, http.MethodPost, "/v1/roles", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRole replaces the description of a role.
func (s *Session) UpdateRole(ctx context.Context, key string, req UpdateRoleRequest) (*RoleInfo, error) {
	var out RoleInfo
	if err := s.doAuthJSON(ctx, http.MethodPut, rolePath(key), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRole deletes a role together with its permissions.
func (s *Session) DeleteRole(ctx context.Context, key string) error {
	return s.doAuthJSON(ctx, http.MethodDelete, rolePath(key), nil, nil, http.StatusNoContent)
}

// RolePermissions returns the permissions of a role.
func (s *Session) RolePermissions(ctx context.Context, key string) (*RolePermissionsResponse, error) {
	var out RolePermissionsResponse
	if err := s.doAuthJSON(ctx, http.MethodGet, rolePath(key)+"/permissions", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRolePermissions replaces the permissions of a role.
func (s *Session) UpdateRolePermissions(ctx context.Context, key string, req UpdateRolePermissionsRequest) error {
	return s.doAuthJSON(ctx, http.MethodPut, rolePath(key)+"/permissions", req, nil, http.StatusNoContent)
}

// MigratePermissions copies the configured permissions of the tenant into
// the database.
func (s *Session) MigratePermissions(ctx context.Context) error {
	return s.doAuthJSON(ctx, http.MethodPost, "/v1/permissions/migrate", nil, nil, http.StatusNoContent)
}

// SweepPrivileges removes, in every tenant, permissions of an application
// on privileges it no longer declares.
func (s *Session) SweepPrivileges(ctx context.Context, req SweepRequest) (*SweepResponse, error) {
	var out SweepResponse
	if err := s.doAuthJSON(ctx, http.MethodPost, "/v1/privileges/sweep", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func rolePath(key string) string {
	return "/v1/roles/" + url.PathEscape(key)
}
