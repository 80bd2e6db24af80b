package evegateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of passing real time.
func fakeClock(l *RateLimiter, start time.Time) *time.Time {
	now := start
	l.nowFn = func() time.Time { return now }
	l.sleepFn = func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	return &now
}

func TestParseQuota(t *testing.T) {
	tests := []struct {
		in      string
		want    Quota
		wantErr bool
	}{
		{"150/15m", Quota{Limit: 150, Window: 15 * time.Minute}, false},
		{"100/60s", Quota{Limit: 100, Window: time.Minute}, false},
		{"100/60", Quota{Limit: 100, Window: time.Minute}, false}, // bare seconds
		{" 20 / 1h ", Quota{Limit: 20, Window: time.Hour}, false},
		{"150", Quota{}, true},
		{"0/15m", Quota{}, true},
		{"-5/15m", Quota{}, true},
		{"abc/15m", Quota{}, true},
		{"150/soon", Quota{}, true},
	}

	for _, tt := range tests {
		got, err := ParseQuota(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCostForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   int
	}{
		{http.StatusOK, 2},
		{http.StatusCreated, 2},
		{http.StatusNotModified, 1},
		{http.StatusNotFound, 5},
		{http.StatusBadRequest, 5},
		{http.StatusTooManyRequests, 0},
		{http.StatusInternalServerError, 0},
		{http.StatusBadGateway, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CostForStatus(tt.status), "status %d", tt.status)
	}
}

func TestSumLedgerCosts(t *testing.T) {
	members := []string{
		"a1b2:2",
		"c3d4:5",
		"malformed",
		"e5f6:notanumber",
		"g7h8:1",
	}
	assert.Equal(t, 8, SumLedgerCosts(members))
	assert.Equal(t, 0, SumLedgerCosts(nil))
}

func TestQuotaObservation(t *testing.T) {
	l := NewRateLimiter(nil, Quota{Limit: 150, Window: 15 * time.Minute})

	assert.Equal(t, 150, l.QuotaFor("esi").Limit, "unknown groups use the default")

	l.ObserveQuota("esi", Quota{Limit: 20, Window: time.Minute})
	assert.Equal(t, Quota{Limit: 20, Window: time.Minute}, l.QuotaFor("esi"))
	assert.Equal(t, 150, l.QuotaFor("other").Limit)
}

func TestAcquireSlidingWindow(t *testing.T) {
	l := NewRateLimiter(nil, Quota{Limit: 6, Window: 10 * time.Second})
	now := fakeClock(l, time.Unix(1000, 0))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := l.Acquire(ctx, "esi", 2)
		require.NoError(t, err)
	}

	// The window holds its full budget; the next spend must wait until the
	// oldest one ages out.
	start := *now
	_, err := l.Acquire(ctx, "esi", 2)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, now.Sub(start), 10*time.Second)
}

func TestAcquireWaitCeiling(t *testing.T) {
	l := NewRateLimiter(nil, Quota{Limit: 2, Window: time.Hour})
	l.maxWait = 12 * time.Second
	fakeClock(l, time.Unix(1000, 0))

	ctx := context.Background()
	_, err := l.Acquire(ctx, "esi", 2)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "esi", 2)
	assert.ErrorIs(t, err, ErrQuotaWaitExceeded)
}

func TestSettleReleasesCapacity(t *testing.T) {
	l := NewRateLimiter(nil, Quota{Limit: 4, Window: time.Minute})
	l.nowFn = func() time.Time { return time.Unix(1000, 0) }
	l.sleepFn = func(_ context.Context, _ time.Duration) error {
		return errors.New("would block")
	}

	ctx := context.Background()
	first, err := l.Acquire(ctx, "esi", 2)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "esi", 2)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "esi", 2)
	require.Error(t, err, "budget exhausted")

	// Settling to zero (a 5xx: the upstream does not bill its own failures)
	// frees the provisional spend.
	require.NoError(t, l.Settle(ctx, "esi", first, 0))
	_, err = l.Acquire(ctx, "esi", 2)
	assert.NoError(t, err)
}

func TestSettleRaisesCostOnClientError(t *testing.T) {
	l := NewRateLimiter(nil, Quota{Limit: 8, Window: time.Minute})
	l.nowFn = func() time.Time { return time.Unix(1000, 0) }
	l.sleepFn = func(_ context.Context, _ time.Duration) error {
		return errors.New("would block")
	}

	ctx := context.Background()
	member, err := l.Acquire(ctx, "esi", 2)
	require.NoError(t, err)

	// A 4xx settles at cost 5, leaving room for only one more 2-token spend.
	require.NoError(t, l.Settle(ctx, "esi", member, CostForStatus(http.StatusBadRequest)))

	_, err = l.Acquire(ctx, "esi", 2)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "esi", 2)
	assert.Error(t, err, "5+2+2 would exceed the limit of 8")
}
