package sqlite

import (
	"context"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type permissionsRepo struct {
	db DBTX
}

const permissionColumns = `id, role_key, app_name, privilege_key, disabled,
	reaction_strategy, env_condition, resource_condition, description`

func (r *permissionsRepo) ListPermissions(ctx context.Context, tenant string) ([]domain.Permission, error) {
	return r.query(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE tenant = ?
		 ORDER BY role_key, app_name, privilege_key`, tenant)
}

func (r *permissionsRepo) ListRolePermissions(ctx context.Context, tenant, roleKey string) ([]domain.Permission, error) {
	return r.query(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE tenant = ? AND role_key = ?
		 ORDER BY app_name, privilege_key`, tenant, roleKey)
}

func (r *permissionsRepo) query(ctx context.Context, q string, args ...any) ([]domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.RoleKey, &p.AppName, &p.PrivilegeKey, &p.Disabled,
			&p.ReactionStrategy, &p.EnvCondition, &p.ResourceCondition, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// InsertPermissions resolves role_id from the role key inside the statement,
// so a permission for an unknown role violates the NOT NULL constraint.
func (r *permissionsRepo) InsertPermissions(ctx context.Context, tenant string, perms []domain.Permission) error {
	const row = `(?, (SELECT id FROM roles WHERE tenant = ? AND role_key = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for start := 0; start < len(perms); start += bulkChunk {
		chunk := perms[start:min(start+bulkChunk, len(perms))]

		values := ""
		args := make([]any, 0, len(chunk)*12)
		for i, p := range chunk {
			if i > 0 {
				values += ", "
			}
			values += row
			args = append(args, p.ID, tenant, p.RoleKey, tenant, p.RoleKey, p.AppName, p.PrivilegeKey,
				p.Disabled, p.ReactionStrategy, p.EnvCondition, p.ResourceCondition, p.Description)
		}
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO permissions (id, role_id, tenant, role_key, app_name, privilege_key, disabled,
				reaction_strategy, env_condition, resource_condition, description) VALUES `+values,
			args...)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *permissionsRepo) UpdatePermission(ctx context.Context, tenant string, p domain.Permission) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE permissions SET disabled = ?, reaction_strategy = ?, env_condition = ?,
			resource_condition = ?, description = ?
		 WHERE tenant = ? AND id = ?`,
		p.Disabled, p.ReactionStrategy, p.EnvCondition, p.ResourceCondition, p.Description,
		tenant, p.ID)
	return requireAffected(res, err)
}

func (r *permissionsRepo) DeletePermissions(ctx context.Context, tenant string, ids []string) error {
	for start := 0; start < len(ids); start += bulkChunk {
		chunk := ids[start:min(start+bulkChunk, len(ids))]
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM permissions WHERE tenant = ? AND id IN `+inClause(len(chunk)),
			stringArgs([]any{tenant}, chunk)...)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *permissionsRepo) DeleteAppPermissionsExcept(ctx context.Context, tenant, app string, keep []string) (int64, error) {
	q := `DELETE FROM permissions WHERE tenant = ? AND app_name = ?`
	if len(keep) > 0 {
		q += ` AND privilege_key NOT IN ` + inClause(len(keep))
	}
	res, err := r.db.ExecContext(ctx, q, stringArgs([]any{tenant, app}, keep)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
