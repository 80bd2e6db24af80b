package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-battles/internal/ruleset/models"
)

type fakeLoader struct {
	ruleset *models.Ruleset
	err     error
	calls   int
}

func (l *fakeLoader) GetActive(_ context.Context) (*models.Ruleset, error) {
	l.calls++
	return l.ruleset, l.err
}

func TestCacheServesFromMemory(t *testing.T) {
	loader := &fakeLoader{ruleset: &models.Ruleset{ID: models.ActiveRulesetID, MinPilots: 5}}
	cache := NewCache(loader, time.Minute)

	ctx := context.Background()
	first, err := cache.Get(ctx)
	require.NoError(t, err)
	second, err := cache.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, first.MinPilots)
	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.calls)
}

func TestCacheTTLExpiry(t *testing.T) {
	loader := &fakeLoader{ruleset: &models.Ruleset{ID: models.ActiveRulesetID}}
	cache := NewCache(loader, time.Minute)

	now := time.Now()
	cache.nowFn = func() time.Time { return now }

	ctx := context.Background()
	_, err := cache.Get(ctx)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls, "still fresh just under the TTL")

	now = now.Add(2 * time.Second)
	_, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls, "stale copy reloaded")
}

func TestCacheInvalidate(t *testing.T) {
	loader := &fakeLoader{ruleset: &models.Ruleset{ID: models.ActiveRulesetID}}
	cache := NewCache(loader, time.Hour)

	ctx := context.Background()
	_, err := cache.Get(ctx)
	require.NoError(t, err)

	cache.Invalidate()
	_, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestCacheDefaultsWhenUnset(t *testing.T) {
	loader := &fakeLoader{}
	cache := NewCache(loader, time.Minute)

	got, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ActiveRulesetID, got.ID)
	assert.Equal(t, 1, got.MinPilots, "permissive default admits everything")
}

func TestCachePropagatesLoadErrors(t *testing.T) {
	loader := &fakeLoader{err: errors.New("mongo down")}
	cache := NewCache(loader, time.Minute)

	_, err := cache.Get(context.Background())
	assert.Error(t, err)
}
