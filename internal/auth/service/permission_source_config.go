package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
)

// Documents read and written by ConfigBackedSource.
const (
	RolesDocument            = "roles.yml"
	PermissionsDocument      = "permissions.yml"
	CustomPrivilegesDocument = "custom-privileges.yml"

	// PrivilegesPath is the catalog shared by every tenant.
	PrivilegesPath = "/tenants/privileges.yml"
)

// PermissionSource reads and replaces the role and permission state of the
// tenant in ctx. Updates take the full state, never a patch.
type PermissionSource interface {
	PrivilegeReader

	GetRoles(ctx context.Context) (map[string]domain.Role, error)
	GetPermissions(ctx context.Context) (domain.PermissionSet, error)
	GetRolePermissions(ctx context.Context, roleKey string) ([]domain.Permission, error)

	UpdateRoles(ctx context.Context, roles map[string]domain.Role) error
	UpdatePermissions(ctx context.Context, perms domain.PermissionSet) error

	// DeletePermissionsForRemovedPrivileges drops the app's permissions on
	// privileges that are not in active. An empty active set drops all of
	// the app's permissions.
	DeletePermissionsForRemovedPrivileges(ctx context.Context, app string, active []string) error
}

// PrivilegeReader reads the privilege catalog.
type PrivilegeReader interface {
	// GetPrivileges returns the catalog published by the applications.
	GetPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error)

	// GetCustomPrivileges returns the privileges the tenant defined itself.
	GetCustomPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error)
}

// ConfigBackedSource keeps roles and permissions as YAML documents under the
// tenant's directory.
type ConfigBackedSource struct {
	Docs store.Documents
}

var _ PermissionSource = (*ConfigBackedSource)(nil)

func (s *ConfigBackedSource) tenantPath(ctx context.Context, name string) (string, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return "", err
	}
	return tenant.Path(key, name), nil
}

// read decodes the document at path into out. Missing and blank documents
// leave out untouched.
func (s *ConfigBackedSource) read(ctx context.Context, path string, out any) error {
	data, err := s.Docs.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (s *ConfigBackedSource) write(ctx context.Context, path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := s.Docs.Put(ctx, path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *ConfigBackedSource) GetRoles(ctx context.Context) (map[string]domain.Role, error) {
	path, err := s.tenantPath(ctx, RolesDocument)
	if err != nil {
		return nil, err
	}

	roles := make(map[string]domain.Role)
	if err := s.read(ctx, path, &roles); err != nil {
		return nil, err
	}
	for key, r := range roles {
		r.Key = key
		roles[key] = r
	}
	return roles, nil
}

func (s *ConfigBackedSource) GetPermissions(ctx context.Context) (domain.PermissionSet, error) {
	path, err := s.tenantPath(ctx, PermissionsDocument)
	if err != nil {
		return nil, err
	}

	perms := make(domain.PermissionSet)
	if err := s.read(ctx, path, &perms); err != nil {
		return nil, err
	}
	perms.Normalize()
	return perms, nil
}

func (s *ConfigBackedSource) GetRolePermissions(ctx context.Context, roleKey string) ([]domain.Permission, error) {
	perms, err := s.GetPermissions(ctx)
	if err != nil {
		return nil, err
	}
	return perms.ForRole(roleKey), nil
}

func (s *ConfigBackedSource) GetPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error) {
	catalog := make(domain.PrivilegeCatalog)
	if err := s.read(ctx, PrivilegesPath, &catalog); err != nil {
		return nil, err
	}
	catalog.Normalize()
	return catalog, nil
}

func (s *ConfigBackedSource) GetCustomPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error) {
	path, err := s.tenantPath(ctx, CustomPrivilegesDocument)
	if err != nil {
		return nil, err
	}

	catalog := make(domain.PrivilegeCatalog)
	if err := s.read(ctx, path, &catalog); err != nil {
		return nil, err
	}
	catalog.Normalize()
	return catalog, nil
}

func (s *ConfigBackedSource) UpdateRoles(ctx context.Context, roles map[string]domain.Role) error {
	path, err := s.tenantPath(ctx, RolesDocument)
	if err != nil {
		return err
	}
	if roles == nil {
		roles = map[string]domain.Role{}
	}
	return s.write(ctx, path, roles)
}

func (s *ConfigBackedSource) UpdatePermissions(ctx context.Context, perms domain.PermissionSet) error {
	path, err := s.tenantPath(ctx, PermissionsDocument)
	if err != nil {
		return err
	}
	if perms == nil {
		perms = domain.PermissionSet{}
	}
	return s.write(ctx, path, perms)
}

// DeletePermissionsForRemovedPrivileges does nothing: permission documents
// are declarative and entries on unknown privileges are simply ignored.
func (s *ConfigBackedSource) DeletePermissionsForRemovedPrivileges(context.Context, string, []string) error {
	return nil
}
