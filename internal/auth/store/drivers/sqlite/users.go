package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
)

type usersRepo struct {
	db DBTX
}

const userColumns = `id, tenant, user_key, password_hash, role_keys, activated,
	tfa_enabled, tfa_otp_secret, tfa_otp_channel,
	access_token_validity, refresh_token_validity, tfa_access_token_validity,
	auto_logout_enabled, auto_logout_timeout, created_at, updated_at`

func (r *usersRepo) GetUserByKey(ctx context.Context, tenant, userKey string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant = ? AND user_key = ?`,
		tenant, userKey)
	return r.scanWithLogins(ctx, row)
}

func (r *usersRepo) GetUserByLogin(ctx context.Context, tenant, login string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE tenant = ?
		   AND id = (SELECT user_id FROM user_logins WHERE tenant = ? AND value = ?)`,
		tenant, tenant, login)
	return r.scanWithLogins(ctx, row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	created := nowOr(u.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES `+placeholders(1, 16),
		u.ID, u.TenantKey, u.UserKey, u.PasswordHash, joinFields(u.RoleKeys), u.Activated,
		u.TfaEnabled, mapStringNull(u.TfaOtpSecret), mapStringNull(u.TfaOtpChannel),
		mapOptionalInt(u.AccessTokenValiditySeconds),
		mapOptionalInt(u.RefreshTokenValiditySeconds),
		mapOptionalInt(u.TfaAccessTokenValiditySeconds),
		u.AutoLogoutEnabled, u.AutoLogoutTimeoutSeconds,
		toMillis(created), toMillis(nowOr(u.UpdatedAt)),
	)
	if err != nil {
		return mapConstraint(err)
	}

	if len(u.Logins) == 0 {
		return nil
	}
	args := make([]any, 0, len(u.Logins)*5)
	for i, l := range u.Logins {
		args = append(args, u.ID, u.TenantKey, l.TypeKey, l.Value, i)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_logins (user_id, tenant, type_key, value, position) VALUES `+
			placeholders(len(u.Logins), 5),
		args...)
	return mapConstraint(err)
}

func (r *usersRepo) SetActivated(ctx context.Context, tenant, userKey string, activated bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET activated = ?, updated_at = ? WHERE tenant = ? AND user_key = ?`,
		activated, toMillis(time.Now().UTC()), tenant, userKey)
	return requireAffected(res, err)
}

func (r *usersRepo) SetTfa(ctx context.Context, tenant, userKey string, enabled bool, secret, channel string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET tfa_enabled = ?, tfa_otp_secret = ?, tfa_otp_channel = ?, updated_at = ?
		 WHERE tenant = ? AND user_key = ?`,
		enabled, mapStringNull(secret), mapStringNull(channel), toMillis(time.Now().UTC()), tenant, userKey)
	return requireAffected(res, err)
}

func (r *usersRepo) DeleteUser(ctx context.Context, tenant, userKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE tenant = ? AND user_key = ?`, tenant, userKey)
	return err
}

func (r *usersRepo) scanWithLogins(ctx context.Context, row *sql.Row) (domain.User, error) {
	var (
		u                    domain.User
		roleKeys             string
		secret, channel      sql.NullString
		access, refresh, tfa sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.TenantKey, &u.UserKey, &u.PasswordHash, &roleKeys, &u.Activated,
		&u.TfaEnabled, &secret, &channel,
		&access, &refresh, &tfa,
		&u.AutoLogoutEnabled, &u.AutoLogoutTimeoutSeconds, &createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.RoleKeys = splitAndFilter(roleKeys)
	u.TfaOtpSecret = mapNullString(secret)
	u.TfaOtpChannel = mapNullString(channel)
	u.AccessTokenValiditySeconds = mapNullIntPtr(access)
	u.RefreshTokenValiditySeconds = mapNullIntPtr(refresh)
	u.TfaAccessTokenValiditySeconds = mapNullIntPtr(tfa)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)

	rows, err := r.db.QueryContext(ctx,
		`SELECT type_key, value FROM user_logins WHERE user_id = ? ORDER BY position`, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Login
		if err := rows.Scan(&l.TypeKey, &l.Value); err != nil {
			return domain.User{}, err
		}
		u.Logins = append(u.Logins, l)
	}
	return u, rows.Err()
}

func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
