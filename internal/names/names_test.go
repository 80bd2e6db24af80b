package names

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-battles/pkg/evegateway"
)

// fakeGateway serves canned name records and counts batch calls. Each ID is
// served from the canned map on every call, mimicking the gateway's own cache.
type fakeGateway struct {
	refs    map[int64]evegateway.NameRef
	tickers map[int64]string

	batches atomic.Int64
	mu      sync.Mutex
	asked   map[int64]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		refs:    make(map[int64]evegateway.NameRef),
		tickers: make(map[int64]string),
		asked:   make(map[int64]int),
	}
}

func (f *fakeGateway) add(id int64, name, category string) {
	f.refs[id] = evegateway.NameRef{ID: id, Name: name, Category: category}
}

func (f *fakeGateway) ResolveNames(_ context.Context, ids []int64) (map[int64]evegateway.NameRef, error) {
	f.batches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]evegateway.NameRef)
	for _, id := range ids {
		f.asked[id]++
		if ref, ok := f.refs[id]; ok {
			out[id] = ref
		}
	}
	return out, nil
}

func (f *fakeGateway) GetAllianceInfo(_ context.Context, id int64) (*evegateway.AffiliationInfo, error) {
	if ticker, ok := f.tickers[id]; ok {
		return &evegateway.AffiliationInfo{Ticker: ticker}, nil
	}
	return nil, nil
}

func (f *fakeGateway) GetCorporationInfo(ctx context.Context, id int64) (*evegateway.AffiliationInfo, error) {
	return f.GetAllianceInfo(ctx, id)
}

func TestResolveAttachesTickers(t *testing.T) {
	gw := newFakeGateway()
	gw.add(99001234, "Goonswarm Federation", "alliance")
	gw.add(98000001, "Karmafleet", "corporation")
	gw.add(90001, "Some Pilot", "character")
	gw.tickers[99001234] = "CONDI"
	gw.tickers[98000001] = "KF"

	svc := NewService(gw)
	got, err := svc.Resolve(context.Background(), []int64{99001234, 98000001, 90001})
	require.NoError(t, err)

	assert.Equal(t, "CONDI", got[99001234].Ticker)
	assert.Equal(t, "KF", got[98000001].Ticker)
	assert.Empty(t, got[90001].Ticker, "characters carry no ticker")
	assert.Equal(t, "Some Pilot", got[90001].Name)
}

func TestResolveOmitsUnresolvable(t *testing.T) {
	gw := newFakeGateway()
	gw.add(1, "Known", "character")

	svc := NewService(gw)
	got, err := svc.Resolve(context.Background(), []int64{1, 2, 0, -5, 1})
	require.NoError(t, err)

	assert.Len(t, got, 1)
	_, ok := got[2]
	assert.False(t, ok, "unknown id omitted, not zero-valued")

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 1, gw.asked[1], "duplicates collapsed before the batch")
	assert.Zero(t, gw.asked[0])
	assert.Zero(t, gw.asked[-5])
}

func TestResolveEmptyInput(t *testing.T) {
	svc := NewService(newFakeGateway())
	got, err := svc.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	// No upstream call at all.
}

func TestResolveCoalescesConcurrentCallers(t *testing.T) {
	gw := newFakeGateway()
	for id := int64(1); id <= 10; id++ {
		gw.add(id, "entity", "character")
	}

	svc := NewService(gw)
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]map[int64]Entity, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Resolve(context.Background(), ids)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], len(ids), "every caller sees the full result")
	}

	// Waiters re-read through the gateway after the claimer finishes, so
	// batch count exceeds one, but no ID is ever fetched by two claimers at
	// the same time; the inflight map must be empty afterwards.
	svc.mu.Lock()
	assert.Empty(t, svc.inflight)
	svc.mu.Unlock()
}
