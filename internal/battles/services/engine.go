package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	killmodels "go-battles/internal/killmails/models"
	"go-battles/pkg/sde"

	"github.com/google/uuid"
)

// errLostClaimRace aborts a battle transaction when another engine replica
// already claimed part of the cluster.
var errLostClaimRace = errors.New("cluster events claimed by another replica")

// EventSource is the slice of the event store the engine consumes.
type EventSource interface {
	FetchUnprocessed(ctx context.Context, limit int, olderThan time.Time) ([]killmodels.KillmailEvent, error)
	MarkProcessed(ctx context.Context, killmailIDs []int64, battleID string, ts time.Time) (int64, error)
}

// BattleStore is the slice of the battle repository the engine writes
// through.
type BattleStore interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
	UpsertBattleRows(ctx context.Context, rows *BattleRows) error
}

// EngineStats is a point-in-time snapshot of the engine's progress.
type EngineStats struct {
	LastTick         time.Time `json:"last_tick,omitempty"`
	LastTickDuration string    `json:"last_tick_duration,omitempty"`
	EventsProcessed  int64     `json:"events_processed"`
	BattlesCreated   int64     `json:"battles_created"`
	LostRaces        int64     `json:"lost_races"`
	TickErrors       int64     `json:"tick_errors"`
}

// Engine is the clustering tick driver: it drains unprocessed events past
// the straggler delay, walks them into clusters, and commits each
// qualifying cluster as a battle in one transaction.
type Engine struct {
	source EventSource
	store  BattleStore
	sdeSvc sde.SDEService

	params    ClusterParams
	delay     time.Duration
	interval  time.Duration
	batchSize int

	nowFn func() time.Time

	mu    sync.Mutex
	stats EngineStats

	stop chan struct{}
	done chan struct{}
}

// NewEngine creates the clustering engine.
func NewEngine(source EventSource, store BattleStore, sdeSvc sde.SDEService, params ClusterParams, delay, interval time.Duration, batchSize int) *Engine {
	return &Engine{
		source:    source,
		store:     store,
		sdeSvc:    sdeSvc,
		params:    params,
		delay:     delay,
		interval:  interval,
		batchSize: batchSize,
		nowFn:     time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the tick loop.
func (e *Engine) Start(ctx context.Context) {
	slog.Info("Clustering engine started",
		"interval", e.interval,
		"window", e.params.Window,
		"gap_max", e.params.GapMax,
		"min_kills", e.params.MinKills,
		"processing_delay", e.delay)
	go e.loop(ctx)
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.mu.Lock()
				e.stats.TickErrors++
				e.mu.Unlock()
				slog.Error("Clustering tick failed", "error", err)
			}
		}
	}
}

// Tick runs one clustering pass. A tick is stateless: the processed_at gate
// on the event store is the only cursor, so re-running on the same inputs
// changes nothing.
func (e *Engine) Tick(ctx context.Context) error {
	started := e.nowFn()

	events, err := e.source.FetchUnprocessed(ctx, e.batchSize, started.Add(-e.delay))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		e.recordTick(started, 0, 0)
		return nil
	}

	clusters := BuildClusters(events, e.params)

	var processed, created int64
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(cluster.Events) < e.params.MinKills {
			matched, err := e.source.MarkProcessed(ctx, cluster.KillmailIDs(), "", e.nowFn())
			if err != nil {
				return err
			}
			processed += matched
			continue
		}

		committed, err := e.commitBattle(ctx, cluster)
		if err != nil {
			return err
		}
		if committed {
			processed += int64(len(cluster.Events))
			created++
		}
	}

	e.recordTick(started, processed, created)
	if processed > 0 {
		slog.Info("Clustering tick complete",
			"events", processed,
			"battles", created,
			"duration", e.nowFn().Sub(started))
	}
	return nil
}

// commitBattle writes one cluster's battle rows and marks its events in a
// single transaction. Losing the claim race to another replica rolls the
// whole battle back and is not an error.
func (e *Engine) commitBattle(ctx context.Context, cluster Cluster) (bool, error) {
	battleID := uuid.New().String()
	securityType := string(e.sdeSvc.Classify(cluster.SystemID))
	rows := BuildBattleRows(cluster, battleID, securityType, e.nowFn())
	ids := cluster.KillmailIDs()

	err := e.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.store.UpsertBattleRows(txCtx, &rows); err != nil {
			return err
		}
		matched, err := e.source.MarkProcessed(txCtx, ids, battleID, e.nowFn())
		if err != nil {
			return err
		}
		if matched != int64(len(ids)) {
			return errLostClaimRace
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errLostClaimRace) {
			e.mu.Lock()
			e.stats.LostRaces++
			e.mu.Unlock()
			slog.Debug("Discarded cluster claimed by another replica",
				"system_id", cluster.SystemID, "events", len(ids))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (e *Engine) recordTick(started time.Time, processed, created int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.LastTick = started
	e.stats.LastTickDuration = e.nowFn().Sub(started).String()
	e.stats.EventsProcessed += processed
	e.stats.BattlesCreated += created
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
