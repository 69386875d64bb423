package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type clientsRepo struct {
	db DBTX
}

const clientColumns = `id, tenant, client_id, secret_hash, scopes, grant_types,
	access_token_validity, refresh_token_validity, tfa_access_token_validity,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *clientsRepo) GetClient(ctx context.Context, tenant, clientID string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE tenant = ? AND client_id = ?`,
		tenant, clientID)
	c, err := scanClient(row)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	return c, nil
}

func (r *clientsRepo) ListClients(ctx context.Context, tenant string) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE tenant = ? ORDER BY client_id`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES `+placeholders(1, 11),
		c.ID, c.TenantKey, c.ClientID, mapStringNull(c.SecretHash),
		joinFields(c.Scopes), joinFields(c.AuthorizedGrantTypes),
		mapOptionalInt(c.AccessTokenValiditySeconds),
		mapOptionalInt(c.RefreshTokenValiditySeconds),
		mapOptionalInt(c.TfaAccessTokenValiditySeconds),
		toMillis(nowOr(c.CreatedAt)), toMillis(nowOr(c.UpdatedAt)),
	)
	return mapConstraint(err)
}

func (r *clientsRepo) DeleteClient(ctx context.Context, tenant, clientID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM clients WHERE tenant = ? AND client_id = ?`, tenant, clientID)
	return requireAffected(res, err)
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c                    domain.Client
		secret               sql.NullString
		scopes, grants       string
		access, refresh, tfa sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&c.ID, &c.TenantKey, &c.ClientID, &secret, &scopes, &grants,
		&access, &refresh, &tfa, &createdAt, &updatedAt)
	if err != nil {
		return domain.Client{}, err
	}

	c.SecretHash = mapNullString(secret)
	c.Scopes = splitAndFilter(scopes)
	c.AuthorizedGrantTypes = splitAndFilter(grants)
	c.AccessTokenValiditySeconds = mapNullIntPtr(access)
	c.RefreshTokenValiditySeconds = mapNullIntPtr(refresh)
	c.TfaAccessTokenValiditySeconds = mapNullIntPtr(tfa)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}
