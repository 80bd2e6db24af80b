package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	enrichmodels "go-battles/internal/enrichment/models"
	"go-battles/pkg/database"
)

// enqueueRetryDelay is how long the producer waits before re-checking a full
// queue.
const enqueueRetryDelay = 500 * time.Millisecond

// Queue is the bounded producer side of the enrichment queue. When the list
// is at capacity the producer blocks and retries; events are never dropped.
type Queue struct {
	redis *database.Redis
	max   int64
}

// NewQueue creates the producer with the given capacity bound.
func NewQueue(redis *database.Redis, max int) *Queue {
	return &Queue{redis: redis, max: int64(max)}
}

// Enqueue pushes a killmail ID for enrichment, blocking while the queue is
// saturated. Returns only on success or context cancellation.
func (q *Queue) Enqueue(ctx context.Context, killmailID int64) error {
	payload := strconv.FormatInt(killmailID, 10)
	warned := false

	for {
		length, err := q.redis.Client.LLen(ctx, enrichmodels.QueueKey).Result()
		if err != nil {
			return fmt.Errorf("failed to check enrichment queue depth: %w", err)
		}

		if length < q.max {
			if err := q.redis.Client.LPush(ctx, enrichmodels.QueueKey, payload).Err(); err != nil {
				return fmt.Errorf("failed to enqueue killmail %d: %w", killmailID, err)
			}
			return nil
		}

		if !warned {
			slog.WarnContext(ctx, "Enrichment queue saturated, blocking producer",
				"depth", length, "max", q.max)
			warned = true
		}

		timer := time.NewTimer(enqueueRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Depth returns the current queue length.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.redis.Client.LLen(ctx, enrichmodels.QueueKey).Result()
}
