// internal/catalog/cache.go
package catalog

import (
	"context"
	"sync"
	"time"

	domainerrors "convocore/internal/common/errors"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type cacheEntry struct {
	snapshot *Snapshot
	loadedAt time.Time
}

// Cache keeps per-tenant catalog snapshots hot in memory. Snapshots are
// replaced wholesale on refresh, never mutated, so readers holding one keep
// a consistent view for the whole turn. A failed refresh serves the stale
// snapshot rather than failing the turn; only a cold miss surfaces the load
// error.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

func NewCache(store Store, ttl time.Duration, log Logger) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		logger:  log,
		entries: make(map[string]*cacheEntry),
	}
}

func (c *Cache) GetSnapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	c.mu.RLock()
	entry := c.entries[tenantID]
	c.mu.RUnlock()

	if entry != nil && time.Since(entry.loadedAt) < c.ttl {
		return entry.snapshot, nil
	}

	snapshot, err := c.store.GetSnapshot(ctx, tenantID)
	if err != nil {
		// Unknown tenant is authoritative, stale data must not mask it.
		if domainerrors.CodeOf(err) == domainerrors.ErrCodeUnknownTenant {
			c.Invalidate(tenantID)
			return nil, err
		}
		if entry != nil {
			if c.logger != nil {
				c.logger.Warn("catalog refresh failed, serving stale snapshot", map[string]interface{}{
					"tenantId": tenantID,
					"age":      time.Since(entry.loadedAt).String(),
					"error":    err.Error(),
				})
			}
			return entry.snapshot, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[tenantID] = &cacheEntry{snapshot: snapshot, loadedAt: time.Now()}
	c.mu.Unlock()

	return snapshot, nil
}

// Invalidate drops a tenant's cached snapshot so the next turn reloads.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}
