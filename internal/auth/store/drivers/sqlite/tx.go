package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/warden/internal/auth/store"
)

// ErrNestedTx is returned when a transaction is started from inside one.
var ErrNestedTx = errors.New("sqlite: transaction already open")

// txStore hands out the repositories bound to one transaction.
type txStore struct {
	tx *sql.Tx
}

var _ store.Tx = (*txStore)(nil)

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// WithTx runs fn in the open transaction. Commit and rollback stay with
// the caller that opened it.
func (t *txStore) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(t)
}

func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, ErrNestedTx }

func (t *txStore) Users() store.Users             { return &usersRepo{db: t.tx} }
func (t *txStore) Clients() store.Clients         { return &clientsRepo{db: t.tx} }
func (t *txStore) Roles() store.Roles             { return &rolesRepo{db: t.tx} }
func (t *txStore) Permissions() store.Permissions { return &permissionsRepo{db: t.tx} }
func (t *txStore) SigningKeys() store.SigningKeys { return &signingKeysRepo{db: t.tx} }

// The connection and the schema belong to the Store that opened the
// transaction.
func (t *txStore) ApplyMigrations() error     { return nil }
func (t *txStore) Ping(context.Context) error { return nil }
func (t *txStore) Close() error               { return nil }
