package store

import "context"

// Documents is a hierarchical store of configuration documents addressed by
// slash separated paths such as /tenants/ACME/roles.yml.
type Documents interface {
	// Get returns the document at path or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put creates or replaces the document at path.
	Put(ctx context.Context, path string, data []byte) error

	// Delete removes the document at path. Missing documents are ignored.
	Delete(ctx context.Context, path string) error

	// ListTenants returns the keys of every tenant directory.
	ListTenants(ctx context.Context) ([]string, error)
}
