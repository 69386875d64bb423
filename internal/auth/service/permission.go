package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// PermissionReconciler routes reads to the source selected by the tenant's
// permissionsMode and fans writes out to every registered source, so a
// tenant can switch modes without a backfill.
type PermissionReconciler struct {
	Settings SettingsSource
	Metrics  *metrics.Metrics

	modes   []string
	sources map[string]PermissionSource
}

var _ PermissionSource = (*PermissionReconciler)(nil)

// atomicSource is implemented by sources whose rejected writes leave them
// unchanged.
type atomicSource interface {
	Atomic() bool
}

// Register adds src under mode. Writes reach atomic sources first, then the
// rest in registration order.
func (r *PermissionReconciler) Register(mode string, src PermissionSource) {
	if r.sources == nil {
		r.sources = make(map[string]PermissionSource)
	}
	if _, ok := r.sources[mode]; !ok {
		r.modes = append(r.modes, mode)
	}
	r.sources[mode] = src
}

// Mode returns the permissions mode of the tenant in ctx.
func (r *PermissionReconciler) Mode(ctx context.Context) (string, error) {
	if r.Settings == nil {
		return domain.PermissionsModeConfig, nil
	}
	s, err := r.Settings.Settings(ctx)
	if err != nil {
		return "", err
	}
	if s.Security.PermissionsMode == "" {
		return domain.PermissionsModeConfig, nil
	}
	return s.Security.PermissionsMode, nil
}

// Source returns the source reads go to for the tenant in ctx.
func (r *PermissionReconciler) Source(ctx context.Context) (PermissionSource, error) {
	mode, err := r.Mode(ctx)
	if err != nil {
		return nil, err
	}
	return r.source(mode)
}

func (r *PermissionReconciler) source(mode string) (PermissionSource, error) {
	src, ok := r.sources[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	return src, nil
}

func (r *PermissionReconciler) GetRoles(ctx context.Context) (map[string]domain.Role, error) {
	src, err := r.Source(ctx)
	if err != nil {
		return nil, err
	}
	return src.GetRoles(ctx)
}

func (r *PermissionReconciler) GetPermissions(ctx context.Context) (domain.PermissionSet, error) {
	src, err := r.Source(ctx)
	if err != nil {
		return nil, err
	}
	return src.GetPermissions(ctx)
}

func (r *PermissionReconciler) GetRolePermissions(ctx context.Context, roleKey string) ([]domain.Permission, error) {
	src, err := r.Source(ctx)
	if err != nil {
		return nil, err
	}
	return src.GetRolePermissions(ctx, roleKey)
}

func (r *PermissionReconciler) GetPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error) {
	src, err := r.Source(ctx)
	if err != nil {
		return nil, err
	}
	return src.GetPrivileges(ctx)
}

func (r *PermissionReconciler) GetCustomPrivileges(ctx context.Context) (domain.PrivilegeCatalog, error) {
	src, err := r.Source(ctx)
	if err != nil {
		return nil, err
	}
	return src.GetCustomPrivileges(ctx)
}

func (r *PermissionReconciler) UpdateRoles(ctx context.Context, roles map[string]domain.Role) error {
	return r.fanOut(ctx, "update_roles", func(src PermissionSource) error {
		return src.UpdateRoles(ctx, roles)
	})
}

// UpdatePermissions mirrors the active source's roles into the other sources
// before the write, so a role known only to the active source is accepted
// everywhere.
func (r *PermissionReconciler) UpdatePermissions(ctx context.Context, perms domain.PermissionSet) error {
	if err := r.syncRoles(ctx); err != nil {
		return err
	}
	return r.fanOut(ctx, "update_permissions", func(src PermissionSource) error {
		return src.UpdatePermissions(ctx, perms)
	})
}

func (r *PermissionReconciler) DeletePermissionsForRemovedPrivileges(ctx context.Context, app string, active []string) error {
	return r.fanOut(ctx, "delete_removed_privileges", func(src PermissionSource) error {
		return src.DeletePermissionsForRemovedPrivileges(ctx, app, active)
	})
}

// writeOrder lists the modes atomic sources first. A write rejected by the
// first source then leaves every source untouched.
func (r *PermissionReconciler) writeOrder() []string {
	order := make([]string, 0, len(r.modes))
	for _, mode := range r.modes {
		if a, ok := r.sources[mode].(atomicSource); ok && a.Atomic() {
			order = append(order, mode)
		}
	}
	for _, mode := range r.modes {
		if a, ok := r.sources[mode].(atomicSource); !ok || !a.Atomic() {
			order = append(order, mode)
		}
	}
	return order
}

func (r *PermissionReconciler) syncRoles(ctx context.Context) error {
	if len(r.modes) < 2 {
		return nil
	}
	active, err := r.Mode(ctx)
	if err != nil {
		return err
	}
	src, err := r.source(active)
	if err != nil {
		return err
	}
	roles, err := src.GetRoles(ctx)
	if err != nil {
		return fmt.Errorf("read %s roles: %w", active, err)
	}
	for _, mode := range r.writeOrder() {
		if mode == active {
			continue
		}
		if err := r.apply(ctx, "sync_roles", mode, func(s PermissionSource) error {
			return s.UpdateRoles(ctx, roles)
		}); err != nil {
			return err
		}
	}
	return nil
}

// fanOut applies op to every source in write order and stops at the first
// failure.
func (r *PermissionReconciler) fanOut(ctx context.Context, op string, fn func(PermissionSource) error) error {
	for _, mode := range r.writeOrder() {
		if err := r.apply(ctx, op, mode, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *PermissionReconciler) apply(ctx context.Context, op, mode string, fn func(PermissionSource) error) error {
	err := fn(r.sources[mode])
	r.Metrics.PermissionWrite(op, mode, err)
	if err != nil {
		slogx.FromContext(ctx).Error("permission write failed",
			slog.String("operation", op),
			slog.String("mode", mode),
			slog.Any("error", err))
		return fmt.Errorf("%s (%s): %w", op, mode, err)
	}
	return nil
}

// MigrateToDatabase seeds the database source from the config source: roles
// first, then permissions.
func (r *PermissionReconciler) MigrateToDatabase(ctx context.Context) error {
	from, err := r.source(domain.PermissionsModeConfig)
	if err != nil {
		return err
	}
	to, err := r.source(domain.PermissionsModeDatabase)
	if err != nil {
		return err
	}

	roles, err := from.GetRoles(ctx)
	if err != nil {
		return fmt.Errorf("read config roles: %w", err)
	}
	perms, err := from.GetPermissions(ctx)
	if err != nil {
		return fmt.Errorf("read config permissions: %w", err)
	}

	err = to.UpdateRoles(ctx, roles)
	r.Metrics.PermissionWrite("migrate_roles", domain.PermissionsModeDatabase, err)
	if err != nil {
		return fmt.Errorf("migrate roles: %w", err)
	}
	err = to.UpdatePermissions(ctx, perms)
	r.Metrics.PermissionWrite("migrate_permissions", domain.PermissionsModeDatabase, err)
	if err != nil {
		return fmt.Errorf("migrate permissions: %w", err)
	}

	slogx.FromContext(ctx).Info("permissions migrated to database",
		slog.Int("roles", len(roles)),
		slog.Int("applications", len(perms)))
	return nil
}
