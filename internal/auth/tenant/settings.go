package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// SettingsDocument is the name of the per-tenant settings document.
const SettingsDocument = "tenant-config.yml"

// SettingsProvider loads tenant-config.yml, merges it over the defaults and
// keeps the result for TTL. Concurrent misses for one tenant share a single
// load.
type SettingsProvider struct {
	docs     store.Documents
	defaults domain.TenantSettings

	cache *cache.Cache
	group singleflight.Group
}

// NewSettingsProvider creates a provider caching settings for ttl. A
// non-positive ttl disables caching.
func NewSettingsProvider(docs store.Documents, ttl time.Duration) *SettingsProvider {
	p := &SettingsProvider{
		docs:     docs,
		defaults: domain.DefaultTenantSettings(),
	}
	if ttl > 0 {
		p.cache = cache.New(ttl, 2*ttl)
	}
	return p
}

// Settings returns the settings of the tenant in ctx.
func (p *SettingsProvider) Settings(ctx context.Context) (domain.TenantSettings, error) {
	key, err := Require(ctx)
	if err != nil {
		return domain.TenantSettings{}, err
	}
	key = strings.ToUpper(key)

	if p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			return v.(domain.TenantSettings), nil
		}
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		s, err := p.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if p.cache != nil {
			p.cache.SetDefault(key, s)
		}
		return s, nil
	})
	if err != nil {
		return domain.TenantSettings{}, err
	}
	return v.(domain.TenantSettings), nil
}

// Invalidate drops the cached settings of tenant key.
func (p *SettingsProvider) Invalidate(key string) {
	if p.cache != nil {
		p.cache.Delete(strings.ToUpper(key))
	}
}

func (p *SettingsProvider) load(ctx context.Context, key string) (domain.TenantSettings, error) {
	var s domain.TenantSettings

	data, err := p.docs.Get(ctx, Path(key, SettingsDocument))
	switch {
	case errors.Is(err, store.ErrNotFound):
		slogx.FromContext(ctx).Debug("no tenant settings document, using defaults", "tenant", key)
	case err != nil:
		return s, fmt.Errorf("load tenant settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse tenant settings: %w", err)
		}
	}

	if err := mergo.Merge(&s, p.defaults); err != nil {
		return s, fmt.Errorf("merge tenant settings: %w", err)
	}
	return s, nil
}
