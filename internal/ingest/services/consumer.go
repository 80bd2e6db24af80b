package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go-battles/internal/ingest/dto"
	"go-battles/internal/ingest/models"
	killmodels "go-battles/internal/killmails/models"
	killservices "go-battles/internal/killmails/services"
	ruleservices "go-battles/internal/ruleset/services"
	"go-battles/pkg/config"
	"go-battles/pkg/sde"
)

// EventStore persists admitted killmails, reporting duplicates as a result,
// not an error.
type EventStore interface {
	Store(ctx context.Context, event *killmodels.KillmailEvent) (killservices.InsertResult, error)
}

// Enqueuer hands stored killmail IDs to the enrichment pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, killmailID int64) error
}

// IterationResult is the outcome of one pull iteration.
type IterationResult string

const (
	ResultStored    IterationResult = "stored"
	ResultDuplicate IterationResult = "duplicate"
	ResultFiltered  IterationResult = "filtered"
	ResultEmpty     IterationResult = "empty"
)

// ConsumerState values.
const (
	StateStopped  = "stopped"
	StateRunning  = "running"
	StateDraining = "draining"
)

// consumerMetrics tracks counters across the consumer goroutine and the
// status route.
type consumerMetrics struct {
	totalPolls    atomic.Int64
	emptyPolls    atomic.Int64
	stored        atomic.Int64
	duplicates    atomic.Int64
	filtered      atomic.Int64
	httpErrors    atomic.Int64
	parseErrors   atomic.Int64
	storeErrors   atomic.Int64
	enqueueErrors atomic.Int64
	lastKillmail  atomic.Int64
}

// Consumer is the long-poll ingestion loop: pull, parse, filter against the
// live ruleset, persist exactly-once, enqueue for enrichment.
type Consumer struct {
	httpClient *http.Client
	store      EventStore
	rules      ruleservices.Provider
	queue      Enqueuer
	classifier sde.SDEService
	repository *Repository

	sourceURL    string
	queueID      string
	userAgent    string
	pollInterval time.Duration

	// Adaptive long-poll wait: back off to ttwMax after a streak of empty
	// responses, snap back to ttwMin on the next kill.
	ttwMin        int
	ttwMax        int
	nullThreshold int

	mu         sync.RWMutex
	state      string
	nullStreak int
	lastPoll   time.Time
	startTime  time.Time

	metrics consumerMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer builds the consumer from the environment.
func NewConsumer(store EventStore, rules ruleservices.Provider, queue Enqueuer, classifier sde.SDEService, repository *Repository) (*Consumer, error) {
	sourceURL := config.GetEnv("SOURCE_URL", "https://zkillredisq.stream/listen.php")
	if _, err := url.Parse(sourceURL); err != nil {
		return nil, fmt.Errorf("invalid SOURCE_URL: %w", err)
	}

	queueID := config.GetEnv("QUEUE_ID", "")
	if queueID == "" {
		hostname, _ := os.Hostname()
		queueID = fmt.Sprintf("go-battles-%s-%d", hostname, time.Now().Unix())
	}

	pollIntervalMS := config.GetIntEnvClamped("POLL_INTERVAL_MS", 5000, 500, 600000)

	return &Consumer{
		httpClient: &http.Client{
			Timeout: config.GetDurationEnv("SOURCE_TIMEOUT_MS", 30*time.Second),
		},
		store:         store,
		rules:         rules,
		queue:         queue,
		classifier:    classifier,
		repository:    repository,
		sourceURL:     sourceURL,
		queueID:       queueID,
		userAgent:     config.GetEnv("SOURCE_USER_AGENT", "go-battles/1.0 contact@example.com"),
		pollInterval:  time.Duration(pollIntervalMS) * time.Millisecond,
		ttwMin:        config.GetIntEnvClamped("SOURCE_TTW_MIN", 1, 1, 10),
		ttwMax:        config.GetIntEnvClamped("SOURCE_TTW_MAX", 10, 1, 10),
		nullThreshold: config.GetIntEnvClamped("SOURCE_NULL_THRESHOLD", 5, 1, 100),
		state:         StateStopped,
	}, nil
}

// Start launches the poll loop.
func (c *Consumer) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.state = StateRunning
	c.startTime = time.Now()
	c.nullStreak = 0
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop(loopCtx)

	slog.Info("Ingestion consumer started",
		"source", c.sourceURL, "queue_id", c.queueID, "poll_interval", c.pollInterval)
}

// Stop drains the loop: the in-flight iteration completes, then the loop
// exits. Blocks up to 30 s.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.state = StateDraining
		c.cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		slog.Warn("Ingestion consumer stop timeout")
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	state := c.snapshot()
	now := time.Now().UTC()
	state.StoppedAt = &now
	if err := c.repository.SaveConsumerState(context.Background(), state); err != nil {
		slog.Warn("Failed to save final consumer state", "error", err)
	}
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()

	stateTicker := time.NewTicker(30 * time.Second)
	defer stateTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Ingestion loop cancelled")
			return
		case <-stateTicker.C:
			if err := c.repository.SaveConsumerState(ctx, c.snapshot()); err != nil {
				slog.Warn("Failed to save consumer state", "error", err)
			}
		default:
		}

		result, err := c.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Ingestion iteration failed", "error", err)
			c.sleep(ctx, c.pollInterval)
			continue
		}

		// Only idle polls wait out the interval; while kills are flowing the
		// long-poll wait is the pacing.
		if result == ResultEmpty {
			c.sleep(ctx, c.pollInterval)
		}
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// PollOnce performs one pull-parse-filter-persist-enqueue iteration.
func (c *Consumer) PollOnce(ctx context.Context) (IterationResult, error) {
	c.metrics.totalPolls.Add(1)
	c.mu.Lock()
	c.lastPoll = time.Now()
	c.mu.Unlock()

	pkg, err := c.pull(ctx)
	if err != nil {
		c.metrics.httpErrors.Add(1)
		return "", err
	}
	if pkg == nil {
		c.metrics.emptyPolls.Add(1)
		c.mu.Lock()
		c.nullStreak++
		c.mu.Unlock()
		return ResultEmpty, nil
	}

	c.mu.Lock()
	c.nullStreak = 0
	c.mu.Unlock()

	event, err := ParsePackage(pkg, c.classifier)
	if err != nil {
		c.metrics.parseErrors.Add(1)
		slog.WarnContext(ctx, "Dropping malformed package", "kill_id", pkg.KillID, "error", err)
		return ResultFiltered, nil
	}

	ruleset, err := c.rules.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load ruleset: %w", err)
	}
	if ok, reason := Admit(ruleset, event); !ok {
		c.metrics.filtered.Add(1)
		slog.DebugContext(ctx, "Killmail rejected by ruleset",
			"killmail_id", event.KillmailID, "reason", reason)
		return ResultFiltered, nil
	}

	result, err := c.store.Store(ctx, event)
	if err != nil {
		c.metrics.storeErrors.Add(1)
		return "", err
	}
	if result == killservices.InsertDuplicate {
		c.metrics.duplicates.Add(1)
		return ResultDuplicate, nil
	}

	c.metrics.stored.Add(1)
	c.metrics.lastKillmail.Store(event.KillmailID)

	// Enqueue failure does not roll back storage; the sweep cron picks up
	// killmails that have no enrichment record.
	if err := c.queue.Enqueue(ctx, event.KillmailID); err != nil {
		c.metrics.enqueueErrors.Add(1)
		slog.ErrorContext(ctx, "Failed to enqueue killmail for enrichment",
			"killmail_id", event.KillmailID, "error", err)
	}

	slog.InfoContext(ctx, "Killmail stored",
		"killmail_id", event.KillmailID,
		"system_id", event.SolarSystemID,
		"space_type", event.SpaceType,
		"value", event.TotalValue)
	return ResultStored, nil
}

// pull performs one long-poll GET; a null package means no kill was waiting.
func (c *Consumer) pull(ctx context.Context) (*dto.SourcePackage, error) {
	u := fmt.Sprintf("%s?queueID=%s&ttw=%d", c.sourceURL, url.QueryEscape(c.queueID), c.currentTTW())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create source request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 10 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if d, err := time.ParseDuration(v + "s"); err == nil {
				retryAfter = d
			}
		}
		slog.WarnContext(ctx, "Source rate limited", "retry_after", retryAfter)
		c.sleep(ctx, retryAfter)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	var sr dto.SourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode source response: %w", err)
	}
	return sr.Package, nil
}

func (c *Consumer) currentTTW() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.nullStreak >= c.nullThreshold {
		return c.ttwMax
	}
	return c.ttwMin
}

// Status exposes the current snapshot to the status route.
func (c *Consumer) Status() *models.ConsumerState {
	return c.snapshot()
}

// snapshot captures the consumer state for persistence and the status route.
func (c *Consumer) snapshot() *models.ConsumerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &models.ConsumerState{
		QueueID:        c.queueID,
		State:          c.state,
		LastPollTime:   c.lastPoll,
		LastKillmailID: c.metrics.lastKillmail.Load(),
		TotalPolls:     c.metrics.totalPolls.Load(),
		EmptyPolls:     c.metrics.emptyPolls.Load(),
		Stored:         c.metrics.stored.Load(),
		Duplicates:     c.metrics.duplicates.Load(),
		Filtered:       c.metrics.filtered.Load(),
		HTTPErrors:     c.metrics.httpErrors.Load(),
		ParseErrors:    c.metrics.parseErrors.Load(),
		StoreErrors:    c.metrics.storeErrors.Load(),
		EnqueueErrors:  c.metrics.enqueueErrors.Load(),
		CurrentTTW:     c.currentTTWLocked(),
		NullStreak:     c.nullStreak,
		StartedAt:      c.startTime,
		UpdatedAt:      time.Now().UTC(),
	}
}

func (c *Consumer) currentTTWLocked() int {
	if c.nullStreak >= c.nullThreshold {
		return c.ttwMax
	}
	return c.ttwMin
}
