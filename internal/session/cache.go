package session

import (
	"context"
	"fmt"

	"atlauth/internal/config"
	"atlauth/pkg/logging"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// BuildFunc constructs a session on a cache miss. It typically runs the full
// pipeline: credential resolution, instance detection, and the factory.
type BuildFunc func(ctx context.Context) (*Session, error)

// FreshenFunc brings a session's credentials up to date before it is handed
// out (OAuth proactive refresh). Injected so the cache does not depend on
// the OAuth machinery. A nil FreshenFunc disables freshening.
type FreshenFunc func(ctx context.Context, s *Session) error

// Cache is the process-wide keyed store of long-lived sessions.
//
// It is an explicitly constructed, injectable service with a defined
// lifecycle: create it in main, pass it by reference into request handlers,
// Close it on shutdown. It is never a hidden package-level singleton.
//
// Concurrency: reads are lock-free from the caller's perspective (the LRU
// synchronizes internally, briefly, for structural mutation); concurrent
// misses for the same key collapse into one construction via singleflight,
// scoped per key so unrelated tenants make progress independently.
type Cache struct {
	entries *lru.LRU[string, *Session]
	group   singleflight.Group
	freshen FreshenFunc
}

// NewCache creates a session cache bounded by cfg.MaxEntries with idle-TTL
// eviction after cfg.IdleTTL.
func NewCache(cfg config.CacheConfig, freshen FreshenFunc) *Cache {
	onEvict := func(key string, s *Session) {
		logging.Debug("Session", "evicted session %s for tenant %s", s.ID, key)
	}
	return &Cache{
		entries: lru.NewLRU(cfg.MaxEntries, onEvict, cfg.IdleTTL),
		freshen: freshen,
	}
}

// GetOrCreate returns the live cached session for tenantKey, or calls build
// and caches the result. Concurrent misses for the same key share a single
// construction; concurrent hits share a single freshen through the same
// mechanism.
//
// Before any session is returned it is freshened; if freshening fails the
// entry is evicted and the error propagates, so the next call re-runs build
// and surfaces the underlying condition (e.g. re-authorization required).
func (c *Cache) GetOrCreate(ctx context.Context, tenantKey string, build BuildFunc) (*Session, error) {
	result, err, _ := c.group.Do(tenantKey, func() (interface{}, error) {
		if sess, ok := c.entries.Get(tenantKey); ok {
			if err := c.freshenSession(ctx, sess); err != nil {
				c.entries.Remove(tenantKey)
				return nil, err
			}
			// Re-add to restart the idle-TTL clock on use, unless a
			// concurrent Invalidate removed the entry while it was being
			// freshened. The already-resolved session is still handed to
			// this caller (one stale round); the next call rebuilds.
			if c.entries.Contains(tenantKey) {
				c.entries.Add(tenantKey, sess)
			}
			return sess, nil
		}

		sess, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if sess.Ephemeral {
			// Header-derived sessions must never be shared across
			// requests; refusing here prevents cross-tenant bleed even
			// if a caller wires the paths together by mistake.
			return nil, fmt.Errorf("refusing to cache ephemeral session %s", sess.ID)
		}
		if err := c.freshenSession(ctx, sess); err != nil {
			return nil, err
		}

		c.entries.Add(tenantKey, sess)
		logging.Debug("Session", "cached session %s for tenant %s", sess.ID, tenantKey)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}

	sess := result.(*Session)
	sess.Touch()
	return sess, nil
}

func (c *Cache) freshenSession(ctx context.Context, sess *Session) error {
	if c.freshen == nil {
		return nil
	}
	return c.freshen(ctx, sess)
}

// Invalidate removes the entry for tenantKey. Callers invoke this after
// observing a 401/403 from the wrapped API or on explicit credential
// rotation.
func (c *Cache) Invalidate(tenantKey string) {
	if c.entries.Remove(tenantKey) {
		logging.Info("Session", "invalidated session for tenant %s", tenantKey)
	}
}

// Peek returns the cached session without freshening or touching it.
// Intended for status reporting and tests.
func (c *Cache) Peek(tenantKey string) (*Session, bool) {
	return c.entries.Peek(tenantKey)
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Close evicts every entry. The cache must not be used afterwards.
func (c *Cache) Close() {
	c.entries.Purge()
}
