package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// RolesService administers roles and their permissions. Every change reads
// the full state, edits it and writes it back through the reconciler.
type RolesService struct {
	Permissions PermissionSource

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *RolesService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ListRoles returns the tenant's roles ordered by key.
func (s *RolesService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.Permissions.GetRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Role, 0, len(roles))
	for _, key := range sortedKeys(roles) {
		out = append(out, roles[key])
	}
	return out, nil
}

// CreateRole adds role. When role.BasedOn names an existing role, its
// permissions are copied to the new one.
func (s *RolesService) CreateRole(ctx context.Context, role domain.Role, actor string) (domain.Role, error) {
	role.Key = strings.TrimSpace(role.Key)
	if role.Key == "" {
		return domain.Role{}, fmt.Errorf("role key is required")
	}

	roles, err := s.Permissions.GetRoles(ctx)
	if err != nil {
		return domain.Role{}, err
	}
	if _, ok := roles[role.Key]; ok {
		return domain.Role{}, fmt.Errorf("%w: %s", ErrRoleExists, role.Key)
	}
	if role.BasedOn != "" {
		if _, ok := roles[role.BasedOn]; !ok {
			return domain.Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, role.BasedOn)
		}
	}

	now := s.now()
	role.CreatedBy, role.CreatedAt = actor, now
	role.UpdatedBy, role.UpdatedAt = actor, now
	roles[role.Key] = role
	if err := s.Permissions.UpdateRoles(ctx, roles); err != nil {
		return domain.Role{}, err
	}

	if role.BasedOn != "" {
		perms, err := s.Permissions.GetPermissions(ctx)
		if err != nil {
			return domain.Role{}, err
		}
		for _, p := range perms.ForRole(role.BasedOn) {
			p.ID = ""
			p.RoleKey = role.Key
			perms.Add(p)
		}
		if err := s.Permissions.UpdatePermissions(ctx, perms); err != nil {
			return domain.Role{}, err
		}
	}

	slogx.FromContext(ctx).Info("role created", "role_key", role.Key, "based_on", role.BasedOn)
	return role, nil
}

// UpdateRole changes the description of role key.
func (s *RolesService) UpdateRole(ctx context.Context, key, description, actor string) (domain.Role, error) {
	roles, err := s.Permissions.GetRoles(ctx)
	if err != nil {
		return domain.Role{}, err
	}
	role, ok := roles[key]
	if !ok {
		return domain.Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, key)
	}

	role.Description = description
	role.UpdatedBy, role.UpdatedAt = actor, s.now()
	roles[key] = role
	if err := s.Permissions.UpdateRoles(ctx, roles); err != nil {
		return domain.Role{}, err
	}
	return role, nil
}

// DeleteRole removes the permissions of role key and then the role.
func (s *RolesService) DeleteRole(ctx context.Context, key string) error {
	roles, err := s.Permissions.GetRoles(ctx)
	if err != nil {
		return err
	}
	if _, ok := roles[key]; !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, key)
	}

	perms, err := s.Permissions.GetPermissions(ctx)
	if err != nil {
		return err
	}
	dropRole(perms, key)
	if err := s.Permissions.UpdatePermissions(ctx, perms); err != nil {
		return err
	}

	delete(roles, key)
	if err := s.Permissions.UpdateRoles(ctx, roles); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("role deleted", "role_key", key)
	return nil
}

// RolePermissions lists the permissions of role key. Privileges of the
// catalog the role has no permission for are listed as disabled.
func (s *RolesService) RolePermissions(ctx context.Context, key string) ([]domain.Permission, error) {
	roles, err := s.Permissions.GetRoles(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := roles[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, key)
	}

	perms, err := s.Permissions.GetRolePermissions(ctx, key)
	if err != nil {
		return nil, err
	}
	have := make(map[domain.PermissionKey]bool, len(perms))
	for _, p := range perms {
		have[p.Key()] = true
	}

	catalog, err := s.Permissions.GetPrivileges(ctx)
	if err != nil {
		return nil, err
	}
	custom, err := s.Permissions.GetCustomPrivileges(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range []domain.PrivilegeCatalog{catalog, custom} {
		for app, privs := range c {
			for _, priv := range privs {
				k := domain.PermissionKey{AppName: app, PrivilegeKey: priv.Key}
				if have[k] {
					continue
				}
				have[k] = true
				perms = append(perms, domain.Permission{
					AppName:      app,
					RoleKey:      key,
					PrivilegeKey: priv.Key,
					Disabled:     true,
					Description:  priv.Description,
				})
			}
		}
	}

	slices.SortFunc(perms, func(a, b domain.Permission) int {
		return cmp.Or(cmp.Compare(a.AppName, b.AppName), cmp.Compare(a.PrivilegeKey, b.PrivilegeKey))
	})
	return perms, nil
}

// UpdateRolePermissions replaces every permission of role key with perms.
func (s *RolesService) UpdateRolePermissions(ctx context.Context, key string, perms []domain.Permission) error {
	roles, err := s.Permissions.GetRoles(ctx)
	if err != nil {
		return err
	}
	if _, ok := roles[key]; !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, key)
	}

	all, err := s.Permissions.GetPermissions(ctx)
	if err != nil {
		return err
	}
	dropRole(all, key)
	for _, p := range perms {
		if p.AppName == "" || p.PrivilegeKey == "" {
			return fmt.Errorf("permission needs an application and a privilege")
		}
		p.ID = ""
		p.RoleKey = key
		all.Add(p)
	}
	return s.Permissions.UpdatePermissions(ctx, all)
}

// dropRole removes every permission of roleKey from set.
func dropRole(set domain.PermissionSet, roleKey string) {
	for app, roles := range set {
		delete(roles, roleKey)
		if len(roles) == 0 {
			delete(set, app)
		}
	}
}
