// Package filesystem stores configuration documents as files under a root
// directory, so a version-controlled checkout can serve as the config source.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aussiebroadwan/warden/internal/auth/store"
)

// Documents implements store.Documents on a directory tree.
type Documents struct {
	root string
	mu   sync.RWMutex
}

var _ store.Documents = (*Documents)(nil)

// New serves documents from root, creating it when missing.
func New(root string) (*Documents, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filesystem: create root: %w", err)
	}
	return &Documents{root: root}, nil
}

// resolve maps a document path onto the root. Paths escaping the root are
// rejected.
func (d *Documents) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(path))
	if clean == "/" {
		return "", fmt.Errorf("filesystem: empty document path")
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *Documents) Get(ctx context.Context, path string) ([]byte, error) {
	p, err := d.resolve(path)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	return data, err
}

// Put writes through a temp file and rename so readers never see a
// partially written document.
func (d *Documents) Put(ctx context.Context, path string, data []byte) error {
	p, err := d.resolve(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".doc-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (d *Documents) Delete(ctx context.Context, path string) error {
	p, err := d.resolve(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListTenants returns the directory names under /tenants.
func (d *Documents) ListTenants(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(d.root, "tenants"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tenants []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			tenants = append(tenants, e.Name())
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}
