package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-battles/internal/ruleset/models"
	"go-battles/pkg/database"
)

// Loader fetches the active ruleset from durable storage.
type Loader interface {
	GetActive(ctx context.Context) (*models.Ruleset, error)
}

// Provider is what the ingestion filter depends on.
type Provider interface {
	Get(ctx context.Context) (*models.Ruleset, error)
}

// Cache holds the active ruleset in memory. Freshness comes from two
// mechanisms: a TTL bound, and the cross-replica invalidation channel. When
// pub/sub is down only the TTL bound remains.
type Cache struct {
	loader Loader
	ttl    time.Duration

	mu        sync.RWMutex
	cached    *models.Ruleset
	fetchedAt time.Time

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewCache creates a ruleset cache with the given TTL.
func NewCache(loader Loader, ttl time.Duration) *Cache {
	return &Cache{
		loader: loader,
		ttl:    ttl,
		nowFn:  time.Now,
	}
}

// Get returns the active ruleset, serving from memory while fresh. When no
// ruleset has ever been written, the permissive default applies.
func (c *Cache) Get(ctx context.Context) (*models.Ruleset, error) {
	c.mu.RLock()
	if c.cached != nil && c.nowFn().Sub(c.fetchedAt) < c.ttl {
		ruleset := c.cached
		c.mu.RUnlock()
		return ruleset, nil
	}
	c.mu.RUnlock()

	ruleset, err := c.loader.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset: %w", err)
	}
	if ruleset == nil {
		ruleset = models.DefaultRuleset()
	}

	c.mu.Lock()
	c.cached = ruleset
	c.fetchedAt = c.nowFn()
	c.mu.Unlock()
	return ruleset, nil
}

// Invalidate drops the cached copy; the next Get reloads from storage.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// SubscribeInvalidations runs a goroutine that drops the cache whenever a
// mutation is announced on the shared channel. Subscription loss is logged
// and freshness degrades to the TTL bound.
func (c *Cache) SubscribeInvalidations(ctx context.Context, redis *database.Redis) {
	pubsub := redis.Subscribe(ctx, models.InvalidateChannel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					slog.Warn("Ruleset invalidation subscription closed, relying on TTL")
					return
				}
				c.Invalidate()
				slog.Debug("Ruleset cache invalidated by broadcast")
			}
		}
	}()
}
