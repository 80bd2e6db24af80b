package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-battles/internal/enrichment/models"
	killmodels "go-battles/internal/killmails/models"
	"go-battles/pkg/evegateway"
)

type fakeRecordStore struct {
	claimed   bool
	claimErr  error
	succeeded []int64
	pending   []string
	failed    map[int64]string
	entities  []models.ResolvedEntity
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{claimed: true, failed: make(map[int64]string)}
}

func (s *fakeRecordStore) Claim(_ context.Context, _ int64) (bool, error) {
	return s.claimed, s.claimErr
}

func (s *fakeRecordStore) MarkSucceeded(_ context.Context, killmailID int64, entities []models.ResolvedEntity) error {
	s.succeeded = append(s.succeeded, killmailID)
	s.entities = entities
	return nil
}

func (s *fakeRecordStore) MarkPending(_ context.Context, _ int64, lastError string) error {
	s.pending = append(s.pending, lastError)
	return nil
}

func (s *fakeRecordStore) MarkFailed(_ context.Context, killmailID int64, tag string) error {
	s.failed[killmailID] = tag
	return nil
}

type fakeEventLoader struct {
	event *killmodels.KillmailEvent
	err   error
}

func (l *fakeEventLoader) GetByKillmailID(_ context.Context, _ int64) (*killmodels.KillmailEvent, error) {
	return l.event, l.err
}

type fakeResolver struct {
	result map[int64]models.ResolvedEntity
	err    error
}

func (r *fakeResolver) Resolve(_ context.Context, _ []int64) (map[int64]models.ResolvedEntity, error) {
	return r.result, r.err
}

func charID(v int64) *int64 { return &v }

func testEvent() *killmodels.KillmailEvent {
	return &killmodels.KillmailEvent{
		KillmailID:    128000001,
		SolarSystemID: 30000142,
		Victim:        killmodels.Victim{CharacterID: charID(90001), ShipTypeID: 587},
	}
}

func newTestWorker(records RecordStore, events EventLoader, resolver EntityResolver) *Worker {
	w := NewWorker(nil, records, events, resolver, 1, 3)
	w.backoffBase = time.Millisecond
	w.backoffCap = time.Millisecond
	return w
}

func TestProcessSuccess(t *testing.T) {
	records := newFakeRecordStore()
	resolver := &fakeResolver{result: map[int64]models.ResolvedEntity{
		90001: {ID: 90001, Name: "Some Pilot", Category: "character"},
	}}
	w := newTestWorker(records, &fakeEventLoader{event: testEvent()}, resolver)

	w.process(context.Background(), 128000001)

	require.Equal(t, []int64{128000001}, records.succeeded)
	require.Len(t, records.entities, 1)
	assert.Equal(t, "Some Pilot", records.entities[0].Name)
	assert.Empty(t, records.failed)
}

func TestProcessSkipsUnclaimed(t *testing.T) {
	records := newFakeRecordStore()
	records.claimed = false
	loader := &fakeEventLoader{err: errors.New("must not be called")}
	w := newTestWorker(records, loader, &fakeResolver{})

	w.process(context.Background(), 128000001)

	assert.Empty(t, records.succeeded)
	assert.Empty(t, records.failed)
	assert.Empty(t, records.pending)
}

func TestProcessMissingEvent(t *testing.T) {
	records := newFakeRecordStore()
	w := newTestWorker(records, &fakeEventLoader{}, &fakeResolver{})

	w.process(context.Background(), 128000001)

	assert.Equal(t, TagMissingEvent, records.failed[128000001])
	assert.Empty(t, records.succeeded)
}

func TestRetryableFailureResetsToPending(t *testing.T) {
	records := newFakeRecordStore()
	resolver := &fakeResolver{err: errors.New("upstream timeout")}
	w := newTestWorker(records, &fakeEventLoader{event: testEvent()}, resolver)

	// Cancelled context keeps the test off the queue: the record still moves
	// back to pending, the requeue is skipped.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.retryOrFail(ctx, 128000001, resolver.err)

	require.Len(t, records.pending, 1)
	assert.Contains(t, records.pending[0], "upstream timeout")
	assert.Empty(t, records.failed)
}

func TestNonRetryableFailureParksRecord(t *testing.T) {
	records := newFakeRecordStore()
	w := newTestWorker(records, &fakeEventLoader{event: testEvent()}, &fakeResolver{})

	w.retryOrFail(context.Background(), 128000001, evegateway.ErrNoTokens)

	require.Contains(t, records.failed, int64(128000001))
	assert.Empty(t, records.pending)
}

func TestRetryBudgetExhaustion(t *testing.T) {
	records := newFakeRecordStore()
	w := newTestWorker(records, &fakeEventLoader{event: testEvent()}, &fakeResolver{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cause := errors.New("flaky upstream")
	for i := 0; i < 3; i++ {
		w.retryOrFail(ctx, 128000001, cause)
	}

	assert.Equal(t, TagRetryExceeded, records.failed[128000001])
	assert.Len(t, records.pending, 2, "first two attempts reset to pending")

	// The attempt counter is cleared once the record is parked.
	w.attemptsMu.Lock()
	_, tracked := w.attempts[128000001]
	w.attemptsMu.Unlock()
	assert.False(t, tracked)
}

func TestBumpAttemptConcurrent(t *testing.T) {
	w := newTestWorker(newFakeRecordStore(), &fakeEventLoader{}, &fakeResolver{})

	const bumps = 64
	var wg sync.WaitGroup
	for i := 0; i < bumps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.bumpAttempt(1)
		}()
	}
	wg.Wait()

	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	assert.Equal(t, bumps, w.attempts[1], "no increment lost under contention")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(context.DeadlineExceeded))
	assert.False(t, isRetryable(evegateway.ErrNoTokens))
	assert.True(t, isRetryable(errors.New("connection reset")))
}
