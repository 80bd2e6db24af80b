package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go-battles/internal/enrichment/models"
	killmodels "go-battles/internal/killmails/models"
	"go-battles/pkg/database"
	"go-battles/pkg/evegateway"

	"github.com/redis/go-redis/v9"
)

// EntityResolver resolves a mixed identifier list; unresolved IDs are absent
// from the map.
type EntityResolver interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]models.ResolvedEntity, error)
}

// EventLoader loads stored killmail events.
type EventLoader interface {
	GetByKillmailID(ctx context.Context, killmailID int64) (*killmodels.KillmailEvent, error)
}

// RecordStore is the slice of the repository the worker needs.
type RecordStore interface {
	Claim(ctx context.Context, killmailID int64) (bool, error)
	MarkSucceeded(ctx context.Context, killmailID int64, entities []models.ResolvedEntity) error
	MarkPending(ctx context.Context, killmailID int64, lastError string) error
	MarkFailed(ctx context.Context, killmailID int64, tag string) error
}

// Failure tags written on non-retryable outcomes.
const (
	TagMissingEvent  = "missing_event"
	TagRetryExceeded = "retry_budget_exhausted"
)

const popTimeout = 5 * time.Second

// Worker runs the enrichment consumers. Each consumer blocks on the shared
// queue, resolves every identity on the killmail through the gateway, and
// drives the record state machine. Multiple workers and replicas are safe:
// claims and payload writes are idempotent.
type Worker struct {
	redis    *database.Redis
	records  RecordStore
	events   EventLoader
	resolver EntityResolver

	workers     int
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration

	// attempts counts retries per killmail as seen by this replica.
	attemptsMu sync.Mutex
	attempts   map[int64]int

	wg sync.WaitGroup
}

// NewWorker creates the worker pool.
func NewWorker(redis *database.Redis, records RecordStore, events EventLoader, resolver EntityResolver, workers, maxAttempts int) *Worker {
	return &Worker{
		redis:       redis,
		records:     records,
		events:      events,
		resolver:    resolver,
		workers:     workers,
		maxAttempts: maxAttempts,
		backoffBase: 2 * time.Second,
		backoffCap:  60 * time.Second,
		attempts:    make(map[int64]int),
	}
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
	slog.Info("Enrichment workers started", "workers", w.workers)
}

// Wait blocks until all consumers have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := w.redis.Client.BRPop(ctx, popTimeout, models.QueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Error("Enrichment queue pop failed", "worker", id, "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}
		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		killmailID, err := strconv.ParseInt(res[1], 10, 64)
		if err != nil {
			slog.Warn("Dropping malformed queue entry", "payload", res[1])
			continue
		}

		w.process(ctx, killmailID)
	}
}

// process drives one killmail through the state machine.
func (w *Worker) process(ctx context.Context, killmailID int64) {
	claimed, err := w.records.Claim(ctx, killmailID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to claim enrichment record",
			"killmail_id", killmailID, "error", err)
		w.requeueLater(ctx, killmailID)
		return
	}
	if !claimed {
		// Already succeeded; a replayed queue entry.
		return
	}

	event, err := w.events.GetByKillmailID(ctx, killmailID)
	if err != nil {
		w.retryOrFail(ctx, killmailID, fmt.Errorf("failed to load event: %w", err))
		return
	}
	if event == nil {
		// The queue references a killmail the store never admitted.
		_ = w.records.MarkFailed(ctx, killmailID, TagMissingEvent)
		slog.WarnContext(ctx, "Enrichment for unknown killmail", "killmail_id", killmailID)
		return
	}

	resolved, err := w.resolver.Resolve(ctx, event.EntityIDs())
	if err != nil {
		w.retryOrFail(ctx, killmailID, err)
		return
	}

	entities := make([]models.ResolvedEntity, 0, len(resolved))
	for _, e := range resolved {
		entities = append(entities, e)
	}

	if err := w.records.MarkSucceeded(ctx, killmailID, entities); err != nil {
		w.retryOrFail(ctx, killmailID, fmt.Errorf("failed to persist enrichment: %w", err))
		return
	}

	slog.DebugContext(ctx, "Killmail enriched",
		"killmail_id", killmailID, "entities", len(entities))
}

// retryOrFail classifies a failure: retryable errors reset the record to
// pending and requeue with backoff, everything past the budget is parked as
// failed.
func (w *Worker) retryOrFail(ctx context.Context, killmailID int64, cause error) {
	attempt := w.bumpAttempt(killmailID)

	if attempt >= w.maxAttempts {
		_ = w.records.MarkFailed(ctx, killmailID, TagRetryExceeded)
		w.clearAttempts(killmailID)
		slog.ErrorContext(ctx, "Enrichment retry budget exhausted",
			"killmail_id", killmailID, "attempts", attempt, "error", cause)
		return
	}

	if !isRetryable(cause) {
		_ = w.records.MarkFailed(ctx, killmailID, shortTag(cause))
		w.clearAttempts(killmailID)
		slog.WarnContext(ctx, "Enrichment failed permanently",
			"killmail_id", killmailID, "error", cause)
		return
	}

	if err := w.records.MarkPending(ctx, killmailID, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to reset enrichment record",
			"killmail_id", killmailID, "error", err)
	}

	backoff := w.backoffBase << uint(attempt-1)
	if backoff > w.backoffCap {
		backoff = w.backoffCap
	}
	slog.WarnContext(ctx, "Enrichment failed, requeueing",
		"killmail_id", killmailID, "attempt", attempt, "backoff", backoff, "error", cause)

	sleepCtx(ctx, backoff)
	w.requeueLater(ctx, killmailID)
}

func (w *Worker) bumpAttempt(killmailID int64) int {
	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	w.attempts[killmailID]++
	return w.attempts[killmailID]
}

func (w *Worker) clearAttempts(killmailID int64) {
	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	delete(w.attempts, killmailID)
}

func (w *Worker) requeueLater(ctx context.Context, killmailID int64) {
	if ctx.Err() != nil {
		return
	}
	if err := w.redis.Client.LPush(ctx, models.QueueKey, strconv.FormatInt(killmailID, 10)).Err(); err != nil {
		slog.ErrorContext(ctx, "Failed to requeue killmail",
			"killmail_id", killmailID, "error", err)
	}
}

// isRetryable separates transient upstream conditions from permanent ones.
// Network errors and quota waits retry; context cancellation does not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, evegateway.ErrNoTokens) {
		return false
	}
	// Quota and error-limit waits, 5xx retries, and transport failures all
	// surface as plain errors from the gateway; treat them as transient.
	return true
}

func shortTag(err error) string {
	msg := err.Error()
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
