package evegateway

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCacheManager()
	require.NoError(t, cache.Set("k", []byte("v"), -time.Second, nil))

	// The stale body remains available for 304 revalidation.
	data, ok, err := cache.GetForNotModified("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), data)

	// A plain Get is a miss and evicts the entry.
	_, ok, err = cache.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.GetForNotModified("k")
	require.NoError(t, err)
	assert.False(t, ok, "eviction removes the stale body too")
}

func TestMemoryCacheRefreshExpiry(t *testing.T) {
	cache := NewMemoryCacheManager()
	require.NoError(t, cache.Set("k", []byte("v"), -time.Second, nil))
	require.NoError(t, cache.RefreshExpiry("k", time.Minute))

	data, ok, err := cache.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), data)
}

func TestMemoryCacheConditionalHeaders(t *testing.T) {
	cache := NewMemoryCacheManager()
	headers := http.Header{}
	headers.Set("ETag", `"abc"`)
	headers.Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
	require.NoError(t, cache.Set("k", []byte("v"), time.Minute, headers))

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, cache.SetConditionalHeaders(req, "k"))
	assert.Equal(t, `"abc"`, req.Header.Get("If-None-Match"))
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", req.Header.Get("If-Modified-Since"))

	// Unknown key adds nothing.
	req2, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, cache.SetConditionalHeaders(req2, "missing"))
	assert.Empty(t, req2.Header.Get("If-None-Match"))
}

func TestClassTTL(t *testing.T) {
	assert.Equal(t, TTLIdentity, ClassTTL("character"))
	assert.Equal(t, TTLIdentity, ClassTTL("alliance"))
	assert.Equal(t, TTLStatic, ClassTTL("solar_system"))
	assert.Equal(t, TTLStatic, ClassTTL("inventory_type"))
}

func TestParseCacheControlMaxAge(t *testing.T) {
	assert.Equal(t, 3600, parseCacheControlMaxAge("public, max-age=3600"))
	assert.Equal(t, 0, parseCacheControlMaxAge("no-store"))
	assert.Equal(t, 0, parseCacheControlMaxAge(""))
}
