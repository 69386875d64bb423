package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the relational data access interface. Sub-repositories are
// reached through methods so a Tx-scoped Store can hand out the same repos
// bound to the transaction.
type Store interface {
	Users() Users
	Clients() Clients
	Roles() Roles
	Permissions() Permissions
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise. Called on a Tx, fn joins that transaction.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByKey returns a user by its tenant-unique key.
	GetUserByKey(ctx context.Context, tenant, userKey string) (domain.User, error)

	// GetUserByLogin is used during the password grant. Any login value of
	// the user matches, case-insensitively.
	GetUserByLogin(ctx context.Context, tenant, login string) (domain.User, error)

	// CreateUser inserts a user with its logins. Returns ErrAlreadyExists
	// when the key or one of the logins is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// SetActivated locks or unlocks a user.
	SetActivated(ctx context.Context, tenant, userKey string, activated bool) error

	// SetTfa replaces the second factor settings of a user.
	SetTfa(ctx context.Context, tenant, userKey string, enabled bool, secret, channel string) error

	DeleteUser(ctx context.Context, tenant, userKey string) error
}

type Clients interface {
	// GetClient fetches a client by its OAuth2 client id.
	GetClient(ctx context.Context, tenant, clientID string) (domain.Client, error)

	// ListClients returns the tenant's clients ordered by client id.
	ListClients(ctx context.Context, tenant string) ([]domain.Client, error)

	CreateClient(ctx context.Context, c domain.Client) error

	// DeleteClient returns ErrNotFound for unknown clients.
	DeleteClient(ctx context.Context, tenant, clientID string) error
}

type Roles interface {
	// ListRoles returns the tenant's roles ordered by key.
	ListRoles(ctx context.Context, tenant string) ([]domain.Role, error)

	// InsertRoles inserts all roles in one statement.
	InsertRoles(ctx context.Context, tenant string, roles []domain.Role) error

	// UpdateRole rewrites the mutable columns of the role with r.ID.
	UpdateRole(ctx context.Context, tenant string, r domain.Role) error

	// DeleteRoles removes roles by id in one statement. Their permissions
	// go with them.
	DeleteRoles(ctx context.Context, tenant string, ids []string) error
}

type Permissions interface {
	// ListPermissions returns every permission of the tenant ordered by
	// role, application and privilege.
	ListPermissions(ctx context.Context, tenant string) ([]domain.Permission, error)

	// ListRolePermissions returns the permissions of one role.
	ListRolePermissions(ctx context.Context, tenant, roleKey string) ([]domain.Permission, error)

	// InsertPermissions inserts all permissions in one statement.
	InsertPermissions(ctx context.Context, tenant string, perms []domain.Permission) error

	// UpdatePermission rewrites the mutable columns of the permission with p.ID.
	UpdatePermission(ctx context.Context, tenant string, p domain.Permission) error

	// DeletePermissions removes permissions by id in one statement.
	DeletePermissions(ctx context.Context, tenant string, ids []string) error

	// DeleteAppPermissionsExcept removes the app's permissions whose
	// privilege key is not in keep. An empty keep removes all of them.
	DeleteAppPermissionsExcept(ctx context.Context, tenant, app string, keep []string) (int64, error)
}

// SigningKeys persists encrypted JWT signing keys. It satisfies
// jwtx.KeyStore directly.
type SigningKeys interface {
	jwtx.KeyStore

	// DeleteExpiredSigningKeys removes keys past their expiry.
	DeleteExpiredSigningKeys(ctx context.Context) (int64, error)
}
