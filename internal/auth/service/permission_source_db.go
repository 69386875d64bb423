package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// DatabaseBackedSource keeps roles and permissions in the relational store.
// Privileges always come from the catalog documents.
type DatabaseBackedSource struct {
	Store      store.Store
	Privileges PrivilegeReader
}

var _ PermissionSource = (*DatabaseBackedSource)(nil)

// Atomic reports true: every write runs in one transaction.
func (s *DatabaseBackedSource) Atomic() bool { return true }

func (s *DatabaseBackedSource) GetRoles(ctx context.Context) (map[string]domain.Role, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.Store.Roles().ListRoles(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	roles := make(map[string]domain.Role, len(rows))
	for _, r := range rows {
		roles[r.Key] = r
	}
	return roles, nil
}

func (s *DatabaseBackedSource) GetPermissions(ctx context.Context) (domain.PermissionSet, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.Store.Permissions().ListPermissions(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	perms := make(domain.PermissionSet)
	for _, p := range rows {
		perms.Add(p)
	}
	return perms, nil
}

func (s *DatabaseBackedSource) GetRolePermissions(ctx context.Context, roleKey string) ([]domain.Permission, error) {
	key, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	perms, err := s.Store.Permissions().ListRolePermissions(ctx, key, roleKey)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	return perms, nil
}

func (s *DatabaseBackedSource) GetPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error) {
	return s.Privileges.GetPrivileges(ctx)
}

func (s *DatabaseBackedSource) GetCustomPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error) {
	return s.Privileges.GetCustomPrivileges(ctx)
}

// UpdateRoles replaces the tenant's roles with roles: new keys are
// inserted, known keys updated and missing keys deleted, all in one
// transaction.
func (s *DatabaseBackedSource) UpdateRoles(ctx context.Context, roles map[string]domain.Role) error {
	key, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Roles().ListRoles(ctx, key)
		if err != nil {
			return fmt.Errorf("list roles: %w", err)
		}
		current := make(map[string]domain.Role, len(rows))
		for _, r := range rows {
			current[r.Key] = r
		}

		var (
			toInsert []domain.Role
			toUpdate []domain.Role
			toDelete []string
		)
		now := time.Now().UTC()

		for _, roleKey := range sortedKeys(roles) {
			r := roles[roleKey]
			r.Key = roleKey

			if cur, ok := current[roleKey]; ok {
				r.ID = cur.ID
				r.BasedOn = cur.BasedOn
				r.CreatedBy = cur.CreatedBy
				r.CreatedAt = cur.CreatedAt
				if r.UpdatedAt.IsZero() {
					r.UpdatedAt = now
				}
				toUpdate = append(toUpdate, r)
				continue
			}

			r.ID = idx.New()
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			if r.UpdatedAt.IsZero() {
				r.UpdatedAt = r.CreatedAt
			}
			toInsert = append(toInsert, r)
		}
		for roleKey, cur := range current {
			if _, ok := roles[roleKey]; !ok {
				toDelete = append(toDelete, cur.ID)
			}
		}

		if len(toInsert) > 0 {
			if err := tx.Roles().InsertRoles(ctx, key, toInsert); err != nil {
				return fmt.Errorf("insert roles: %w", err)
			}
		}
		for _, r := range toUpdate {
			if err := tx.Roles().UpdateRole(ctx, key, r); err != nil {
				return fmt.Errorf("update role %s: %w", r.Key, err)
			}
		}
		if len(toDelete) > 0 {
			if err := tx.Roles().DeleteRoles(ctx, key, toDelete); err != nil {
				return fmt.Errorf("delete roles: %w", err)
			}
		}

		slogx.FromContext(ctx).Debug("roles reconciled",
			slog.Int("inserted", len(toInsert)),
			slog.Int("updated", len(toUpdate)),
			slog.Int("deleted", len(toDelete)))
		return nil
	})
}

// UpdatePermissions replaces the tenant's permissions with perms. Within
// each role a permission is identified by application and privilege. Every
// role in perms must exist already; otherwise nothing is applied.
func (s *DatabaseBackedSource) UpdatePermissions(ctx context.Context, perms domain.PermissionSet) error {
	key, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		roles, err := tx.Roles().ListRoles(ctx, key)
		if err != nil {
			return fmt.Errorf("list roles: %w", err)
		}
		known := make(map[string]bool, len(roles))
		for _, r := range roles {
			known[r.Key] = true
		}

		rows, err := tx.Permissions().ListPermissions(ctx, key)
		if err != nil {
			return fmt.Errorf("list permissions: %w", err)
		}
		current := make(map[string]map[domain.PermissionKey]domain.Permission)
		for _, p := range rows {
			if current[p.RoleKey] == nil {
				current[p.RoleKey] = make(map[domain.PermissionKey]domain.Permission)
			}
			current[p.RoleKey][p.Key()] = p
		}

		var (
			toInsert []domain.Permission
			toUpdate []domain.Permission
			toDelete []string
		)
		seen := make(map[string]map[domain.PermissionKey]bool)

		for _, app := range sortedKeys(perms) {
			for _, roleKey := range sortedKeys(perms[app]) {
				if !known[roleKey] {
					return fmt.Errorf("%w: %s", ErrRoleNotFound, roleKey)
				}
				if seen[roleKey] == nil {
					seen[roleKey] = make(map[domain.PermissionKey]bool)
				}

				for _, p := range perms[app][roleKey] {
					p.AppName = app
					p.RoleKey = roleKey
					k := p.Key()
					if seen[roleKey][k] {
						// Duplicate entry in the desired state; the first wins.
						continue
					}
					seen[roleKey][k] = true

					if cur, ok := current[roleKey][k]; ok {
						p.ID = cur.ID
						if p != cur {
							toUpdate = append(toUpdate, p)
						}
						continue
					}
					p.ID = idx.New()
					toInsert = append(toInsert, p)
				}
			}
		}
		for roleKey, byKey := range current {
			for k, p := range byKey {
				if !seen[roleKey][k] {
					toDelete = append(toDelete, p.ID)
				}
			}
		}

		if len(toInsert) > 0 {
			if err := tx.Permissions().InsertPermissions(ctx, key, toInsert); err != nil {
				return fmt.Errorf("insert permissions: %w", err)
			}
		}
		for _, p := range toUpdate {
			if err := tx.Permissions().UpdatePermission(ctx, key, p); err != nil {
				return fmt.Errorf("update permission %s/%s: %w", p.AppName, p.PrivilegeKey, err)
			}
		}
		if len(toDelete) > 0 {
			if err := tx.Permissions().DeletePermissions(ctx, key, toDelete); err != nil {
				return fmt.Errorf("delete permissions: %w", err)
			}
		}

		slogx.FromContext(ctx).Debug("permissions reconciled",
			slog.Int("inserted", len(toInsert)),
			slog.Int("updated", len(toUpdate)),
			slog.Int("deleted", len(toDelete)))
		return nil
	})
}

func (s *DatabaseBackedSource) DeletePermissionsForRemovedPrivileges(ctx context.Context, app string, active []string) error {
	key, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	n, err := s.Store.Permissions().DeleteAppPermissionsExcept(ctx, key, app, active)
	if err != nil {
		return fmt.Errorf("delete permissions of %s: %w", app, err)
	}
	if n > 0 {
		slogx.FromContext(ctx).Info("deleted permissions for removed privileges",
			slog.String("app", app), slog.Int64("count", n))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
