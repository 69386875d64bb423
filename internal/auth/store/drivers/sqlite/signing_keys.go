package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

type signingKeysRepo struct {
	db DBTX
}

const signingKeyColumns = `id, kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at`

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key jwtx.SigningKeyRecord) error {
	var retired sql.NullInt64
	if key.RetiredAt != nil {
		retired = sql.NullInt64{Int64: toMillis(*key.RetiredAt), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signing_keys (`+signingKeyColumns+`) VALUES `+placeholders(1, 7),
		key.ID, key.Kid, key.Algorithm, key.PrivateKeyEncrypted,
		toMillis(nowOr(key.CreatedAt)), retired, toMillis(key.ExpiresAt))
	return mapConstraint(err)
}

// ListActiveSigningKeys returns keys that are neither retired nor expired,
// newest first.
func (r *signingKeysRepo) ListActiveSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	return r.query(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE retired_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC`, time.Now().UnixMilli())
}

// ListAllSigningKeys returns every unexpired key, retired ones included, so
// tokens they signed still verify.
func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	return r.query(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE expires_at > ?
		 ORDER BY created_at DESC`, time.Now().UnixMilli())
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM signing_keys WHERE expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *signingKeysRepo) query(ctx context.Context, q string, args ...any) ([]jwtx.SigningKeyRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []jwtx.SigningKeyRecord
	for rows.Next() {
		var (
			k                    jwtx.SigningKeyRecord
			createdAt, expiresAt int64
			retired              sql.NullInt64
		)
		if err := rows.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted,
			&createdAt, &retired, &expiresAt); err != nil {
			return nil, err
		}
		k.CreatedAt = fromMillis(createdAt)
		k.ExpiresAt = fromMillis(expiresAt)
		if retired.Valid {
			t := fromMillis(retired.Int64)
			k.RetiredAt = &t
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
