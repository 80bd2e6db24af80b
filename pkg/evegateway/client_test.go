package evegateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveTTL(t *testing.T) {
	c := &Client{}
	assert.Equal(t, TTLStatic, c.effectiveTTL(TTLStatic), "no override keeps the class TTL")

	c.cacheTTL = 2 * time.Minute
	assert.Equal(t, 2*time.Minute, c.effectiveTTL(TTLStatic))
	assert.Equal(t, 2*time.Minute, c.effectiveTTL(TTLIdentity))
}

func TestNewClientCacheTTLBounds(t *testing.T) {
	t.Setenv("CACHE_TTL_SECONDS", "120")
	c, err := NewClient(nil)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, c.cacheTTL)

	t.Setenv("CACHE_TTL_SECONDS", "90000")
	_, err = NewClient(nil)
	assert.Error(t, err, "above the one-day ceiling")

	t.Setenv("CACHE_TTL_SECONDS", "0")
	c, err = NewClient(nil)
	require.NoError(t, err)
	assert.Zero(t, c.cacheTTL, "zero disables the override")
}

func TestGetHonorsServerMaxAge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Write([]byte(`{"name":"Jita"}`))
	}))
	defer srv.Close()

	l1 := NewMemoryCacheManager()
	c := &Client{
		httpClient: srv.Client(),
		baseURL:    srv.URL,
		userAgent:  "go-battles test",
		l1:         l1,
		retry:      NewDefaultRetryClient(srv.Client(), NewErrorWindow()),
	}

	body, err := c.get(context.Background(), "/thing", TTLStatic, false)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"name":"Jita"}`), body)

	l1.mu.RLock()
	entry, ok := l1.cache["GET /thing"]
	l1.mu.RUnlock()
	require.True(t, ok)

	// Server max-age wins over the 24h class TTL.
	remaining := time.Until(entry.Expires)
	assert.LessOrEqual(t, remaining, 61*time.Second)
	assert.Greater(t, remaining, 30*time.Second)
}
