package sqlite

import (
	"context"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type rolesRepo struct {
	db DBTX
}

const roleColumns = `id, tenant, role_key, description, based_on,
	created_by, created_at, updated_by, updated_at`

func (r *rolesRepo) ListRoles(ctx context.Context, tenant string) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant = ? ORDER BY role_key`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var (
			role                 domain.Role
			tenantKey            string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&role.ID, &tenantKey, &role.Key, &role.Description, &role.BasedOn,
			&role.CreatedBy, &createdAt, &role.UpdatedBy, &updatedAt); err != nil {
			return nil, err
		}
		role.CreatedAt = fromMillis(createdAt)
		role.UpdatedAt = fromMillis(updatedAt)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *rolesRepo) InsertRoles(ctx context.Context, tenant string, roles []domain.Role) error {
	for start := 0; start < len(roles); start += bulkChunk {
		chunk := roles[start:min(start+bulkChunk, len(roles))]

		args := make([]any, 0, len(chunk)*9)
		for _, role := range chunk {
			args = append(args, role.ID, tenant, role.Key, role.Description, role.BasedOn,
				role.CreatedBy, toMillis(nowOr(role.CreatedAt)),
				role.UpdatedBy, toMillis(nowOr(role.UpdatedAt)))
		}
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO roles (`+roleColumns+`) VALUES `+placeholders(len(chunk), 9), args...)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *rolesRepo) UpdateRole(ctx context.Context, tenant string, role domain.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE roles SET description = ?, updated_by = ?, updated_at = ?
		 WHERE tenant = ? AND id = ?`,
		role.Description, role.UpdatedBy, toMillis(nowOr(role.UpdatedAt)), tenant, role.ID)
	return requireAffected(res, err)
}

func (r *rolesRepo) DeleteRoles(ctx context.Context, tenant string, ids []string) error {
	for start := 0; start < len(ids); start += bulkChunk {
		chunk := ids[start:min(start+bulkChunk, len(ids))]
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM roles WHERE tenant = ? AND id IN `+inClause(len(chunk)),
			stringArgs([]any{tenant}, chunk)...)
		if err != nil {
			return err
		}
	}
	return nil
}
