package evegateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CacheEntry represents a cached upstream response
type CacheEntry struct {
	Data         []byte    `json:"data"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Expires      time.Time `json:"expires"`
}

// CacheManager interface for caching operations
type CacheManager interface {
	Get(key string) ([]byte, bool, error)
	GetForNotModified(key string) ([]byte, bool, error)
	Set(key string, data []byte, ttl time.Duration, headers http.Header) error
	RefreshExpiry(key string, ttl time.Duration) error
	SetConditionalHeaders(req *http.Request, key string) error
}

// RetryClient interface for retry operations
type RetryClient interface {
	DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error)
}

// Resource-class cache lifetimes. Universe-static data changes only on game
// patches; identity records can be transferred or renamed.
const (
	TTLStatic   = 24 * time.Hour
	TTLIdentity = 1 * time.Hour
)

// ClassTTL maps an upstream name category to its cache lifetime.
func ClassTTL(category string) time.Duration {
	switch category {
	case "character", "corporation", "alliance", "faction":
		return TTLIdentity
	default:
		// solar_system, inventory_type, region, constellation, station
		return TTLStatic
	}
}

// MemoryCacheManager implements the in-process L1 cache.
type MemoryCacheManager struct {
	cache map[string]*CacheEntry
	mu    sync.RWMutex
}

// NewMemoryCacheManager creates the in-process cache tier.
func NewMemoryCacheManager() *MemoryCacheManager {
	return &MemoryCacheManager{cache: make(map[string]*CacheEntry)}
}

func (m *MemoryCacheManager) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.cache[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if entry.Expires.Before(time.Now()) {
		m.mu.Lock()
		delete(m.cache, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// GetForNotModified returns cached data even when expired, for 304 handling.
func (m *MemoryCacheManager) GetForNotModified(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if entry, ok := m.cache[key]; ok {
		return entry.Data, true, nil
	}
	return nil, false, nil
}

func (m *MemoryCacheManager) Set(key string, data []byte, ttl time.Duration, headers http.Header) error {
	entry := &CacheEntry{
		Data:    data,
		Expires: time.Now().Add(ttl),
	}
	if headers != nil {
		entry.ETag = headers.Get("ETag")
		entry.LastModified = headers.Get("Last-Modified")
	}

	m.mu.Lock()
	m.cache[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryCacheManager) RefreshExpiry(key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.cache[key]; ok {
		entry.Expires = time.Now().Add(ttl)
	}
	return nil
}

func (m *MemoryCacheManager) SetConditionalHeaders(req *http.Request, key string) error {
	m.mu.RLock()
	entry, ok := m.cache[key]
	m.mu.RUnlock()

	if !ok {
		return nil
	}
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	}
	if entry.LastModified != "" {
		req.Header.Set("If-Modified-Since", entry.LastModified)
	}
	return nil
}

// parseCacheControlMaxAge extracts max-age seconds from a Cache-Control header.
func parseCacheControlMaxAge(cacheControl string) int {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if strings.HasPrefix(directive, "max-age=") {
			if maxAge, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil {
				return maxAge
			}
		}
	}
	return 0
}
