package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"go-battles/internal/killmails/models"
	"go-battles/pkg/database"
)

// subscriberBuffer bounds each stream subscriber; a consumer that cannot
// keep up loses deltas rather than stalling the fanout.
const subscriberBuffer = 64

// Broadcaster relays stored killmails from the shared pub/sub channel to
// in-process stream subscribers. Every replica runs one, so an SSE client
// sees kills ingested by any replica.
type Broadcaster struct {
	redis *database.Redis

	mu   sync.RWMutex
	subs map[chan models.KillmailEvent]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewBroadcaster(redis *database.Redis) *Broadcaster {
	return &Broadcaster{
		redis:  redis,
		subs:   make(map[chan models.KillmailEvent]struct{}),
		stopCh: make(chan struct{}),
	}
}

// Start consumes the firehose channel until the context ends or Stop is
// called.
func (b *Broadcaster) Start(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, models.FirehoseChannel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.KillmailEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("Dropping malformed firehose message", "error", err)
					continue
				}
				b.fanout(event)
			}
		}
	}()
}

func (b *Broadcaster) fanout(event models.KillmailEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop the delta.
		}
	}
}

// Subscribe registers a stream consumer. The returned cancel func must be
// called when the consumer goes away.
func (b *Broadcaster) Subscribe() (<-chan models.KillmailEvent, func()) {
	ch := make(chan models.KillmailEvent, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish announces a stored killmail on the shared channel. Publish failure
// only degrades liveness of streams, so it is logged, not propagated.
func (b *Broadcaster) Publish(ctx context.Context, event *models.KillmailEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal firehose event", "error", err)
		return
	}
	if err := b.redis.Publish(ctx, models.FirehoseChannel, payload); err != nil {
		slog.WarnContext(ctx, "Failed to publish firehose event",
			"killmail_id", event.KillmailID, "error", err)
	}
}

// Stop terminates the relay goroutine.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}
