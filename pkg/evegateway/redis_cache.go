package evegateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-battles/pkg/database"

	"github.com/redis/go-redis/v9"
)

// RedisCacheManager implements the shared L2 cache tier backed by Redis, so
// replicas reuse each other's upstream responses.
type RedisCacheManager struct {
	redis *database.Redis
	ctx   context.Context
}

// NewRedisCacheManager creates a Redis-based cache manager.
func NewRedisCacheManager(r *database.Redis) *RedisCacheManager {
	return &RedisCacheManager{
		redis: r,
		ctx:   context.Background(),
	}
}

func (r *RedisCacheManager) key(key string) string {
	return fmt.Sprintf("esi:cache:%s", key)
}

func (r *RedisCacheManager) fetch(key string) (*CacheEntry, error) {
	entryJSON, err := r.redis.Get(r.ctx, r.key(key))
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var entry CacheEntry
	if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

func (r *RedisCacheManager) Get(key string) ([]byte, bool, error) {
	entry, err := r.fetch(key)
	if err != nil || entry == nil {
		return nil, false, err
	}
	if entry.Expires.Before(time.Now()) {
		_ = r.redis.Delete(r.ctx, r.key(key))
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (r *RedisCacheManager) GetForNotModified(key string) ([]byte, bool, error) {
	entry, err := r.fetch(key)
	if err != nil || entry == nil {
		return nil, false, err
	}
	return entry.Data, true, nil
}

func (r *RedisCacheManager) Set(key string, data []byte, ttl time.Duration, headers http.Header) error {
	entry := &CacheEntry{
		Data:    data,
		Expires: time.Now().Add(ttl),
	}
	if headers != nil {
		entry.ETag = headers.Get("ETag")
		entry.LastModified = headers.Get("Last-Modified")
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	// Keep the Redis key slightly past the logical expiry so 304 revalidation
	// can still reuse the stale body.
	return r.redis.Set(r.ctx, r.key(key), entryJSON, ttl+time.Hour)
}

func (r *RedisCacheManager) RefreshExpiry(key string, ttl time.Duration) error {
	entry, err := r.fetch(key)
	if err != nil || entry == nil {
		return err
	}
	entry.Expires = time.Now().Add(ttl)

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return r.redis.Set(r.ctx, r.key(key), entryJSON, ttl+time.Hour)
}

func (r *RedisCacheManager) SetConditionalHeaders(req *http.Request, key string) error {
	entry, err := r.fetch(key)
	if err != nil || entry == nil {
		return err
	}
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	}
	if entry.LastModified != "" {
		req.Header.Set("If-Modified-Since", entry.LastModified)
	}
	return nil
}
