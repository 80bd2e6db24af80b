package services

import (
	"context"
	"testing"
	"time"

	killmodels "go-battles/internal/killmails/models"
	"go-battles/pkg/sde"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type markCall struct {
	ids      []int64
	battleID string
}

// fakeEventSource mimics the event store's processed_at gate in memory.
type fakeEventSource struct {
	events    []killmodels.KillmailEvent
	processed map[int64]bool
	calls     []markCall

	// stealBeforeMark simulates another replica claiming these IDs between
	// fetch and mark.
	stealBeforeMark map[int64]bool
}

func newFakeEventSource(events ...killmodels.KillmailEvent) *fakeEventSource {
	return &fakeEventSource{
		events:          events,
		processed:       make(map[int64]bool),
		stealBeforeMark: make(map[int64]bool),
	}
}

func (f *fakeEventSource) FetchUnprocessed(ctx context.Context, limit int, olderThan time.Time) ([]killmodels.KillmailEvent, error) {
	var out []killmodels.KillmailEvent
	for _, ev := range f.events {
		if f.processed[ev.KillmailID] || !ev.OccurredAt.Before(olderThan) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEventSource) MarkProcessed(ctx context.Context, killmailIDs []int64, battleID string, ts time.Time) (int64, error) {
	f.calls = append(f.calls, markCall{ids: killmailIDs, battleID: battleID})
	var matched int64
	for _, id := range killmailIDs {
		if f.processed[id] || f.stealBeforeMark[id] {
			continue
		}
		f.processed[id] = true
		matched++
	}
	return matched, nil
}

// fakeBattleStore records committed battles and discards rolled-back ones.
type fakeBattleStore struct {
	committed []BattleRows
	staged    []BattleRows
}

func (f *fakeBattleStore) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	f.staged = nil
	if err := fn(ctx); err != nil {
		f.staged = nil
		return err
	}
	f.committed = append(f.committed, f.staged...)
	f.staged = nil
	return nil
}

func (f *fakeBattleStore) UpsertBattleRows(ctx context.Context, rows *BattleRows) error {
	f.staged = append(f.staged, *rows)
	return nil
}

// fakeClassifier returns a fixed space type.
type fakeClassifier struct{}

func (fakeClassifier) GetSolarSystem(systemID int64) *sde.SolarSystem { return nil }
func (fakeClassifier) Classify(systemID int64) sde.SpaceType          { return sde.SpaceTypeLowsec }
func (fakeClassifier) IsLoaded() bool                                 { return false }

func newTestEngine(source EventSource, store BattleStore, now time.Time) *Engine {
	e := NewEngine(source, store, fakeClassifier{}, defaultParams(), 30*time.Minute, time.Minute, 500)
	e.nowFn = func() time.Time { return now }
	return e
}

func TestEngineTickCreatesBattleAndNullMarksLeftovers(t *testing.T) {
	// Kills at 0, 5, 25: the first two form a battle, the third closes as
	// an undersized cluster and is processed without a battle.
	source := newFakeEventSource(
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 5),
		eventAt(30000142, 3, 25),
	)
	store := &fakeBattleStore{}
	engine := newTestEngine(source, store, clusterBase.Add(2*time.Hour))

	require.NoError(t, engine.Tick(context.Background()))

	require.Len(t, store.committed, 1)
	battle := store.committed[0].Battle
	assert.Equal(t, int64(2), battle.TotalKills)
	assert.Equal(t, "lowsec", battle.SecurityType)
	assert.NotEmpty(t, battle.ID)

	// Every event is processed exactly once; the leftover got no battle ID.
	assert.True(t, source.processed[1])
	assert.True(t, source.processed[2])
	assert.True(t, source.processed[3])

	var nullMarks, battleMarks int
	for _, call := range source.calls {
		if call.battleID == "" {
			nullMarks++
			assert.Equal(t, []int64{3}, call.ids)
		} else {
			battleMarks++
			assert.Equal(t, battle.ID, call.battleID)
		}
	}
	assert.Equal(t, 1, nullMarks)
	assert.Equal(t, 1, battleMarks)

	stats := engine.Stats()
	assert.Equal(t, int64(3), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.BattlesCreated)
}

func TestEngineTickHonorsProcessingDelay(t *testing.T) {
	source := newFakeEventSource(
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 5),
	)
	store := &fakeBattleStore{}
	// "Now" is only 10 minutes past the kills; the 30-minute straggler
	// delay keeps them out of this tick.
	engine := newTestEngine(source, store, clusterBase.Add(10*time.Minute))

	require.NoError(t, engine.Tick(context.Background()))
	assert.Empty(t, store.committed)
	assert.Empty(t, source.calls)
}

func TestEngineTickDiscardsLostRace(t *testing.T) {
	source := newFakeEventSource(
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 5),
	)
	source.stealBeforeMark[2] = true

	store := &fakeBattleStore{}
	engine := newTestEngine(source, store, clusterBase.Add(2*time.Hour))

	require.NoError(t, engine.Tick(context.Background()))

	// The transaction rolled back: no battle committed, race counted.
	assert.Empty(t, store.committed)
	assert.Equal(t, int64(1), engine.Stats().LostRaces)
	assert.Equal(t, int64(0), engine.Stats().BattlesCreated)
}

func TestEngineTickIdempotent(t *testing.T) {
	source := newFakeEventSource(
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 5),
	)
	store := &fakeBattleStore{}
	engine := newTestEngine(source, store, clusterBase.Add(2*time.Hour))

	require.NoError(t, engine.Tick(context.Background()))
	require.NoError(t, engine.Tick(context.Background()))

	// Second tick sees nothing unprocessed.
	assert.Len(t, store.committed, 1)
	assert.Equal(t, int64(1), engine.Stats().BattlesCreated)
}
