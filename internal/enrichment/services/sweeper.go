package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go-battles/internal/enrichment/models"
	"go-battles/pkg/database"

	"github.com/robfig/cron/v3"
)

// Sweeper is the crash-recovery cron: records stuck in processing (their
// worker died) go back to pending, and failed records still under the
// attempt budget get another chance.
type Sweeper struct {
	repository  *Repository
	redis       *database.Redis
	maxAttempts int
	staleAfter  time.Duration

	cron *cron.Cron
}

// NewSweeper creates the sweeper.
func NewSweeper(repository *Repository, redis *database.Redis, maxAttempts int, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		repository:  repository,
		redis:       redis,
		maxAttempts: maxAttempts,
		staleAfter:  staleAfter,
		cron:        cron.New(),
	}
}

// Start schedules the sweep.
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("Enrichment sweeper started", "schedule", schedule, "stale_after", s.staleAfter)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stale, err := s.repository.SweepStale(ctx, time.Now().Add(-s.staleAfter))
	if err != nil {
		slog.Error("Stale enrichment sweep failed", "error", err)
	} else if len(stale) > 0 {
		s.requeue(ctx, stale)
		slog.Info("Requeued stale enrichment records", "count", len(stale))
	}

	retries, err := s.repository.RetryFailed(ctx, s.maxAttempts)
	if err != nil {
		slog.Error("Failed enrichment retry sweep failed", "error", err)
	} else if len(retries) > 0 {
		s.requeue(ctx, retries)
		slog.Info("Requeued failed enrichment records", "count", len(retries))
	}
}

func (s *Sweeper) requeue(ctx context.Context, killmailIDs []int64) {
	payloads := make([]interface{}, 0, len(killmailIDs))
	for _, id := range killmailIDs {
		payloads = append(payloads, strconv.FormatInt(id, 10))
	}
	if err := s.redis.Client.LPush(ctx, models.QueueKey, payloads...).Err(); err != nil {
		slog.Error("Failed to requeue swept records", "error", err)
	}
}
