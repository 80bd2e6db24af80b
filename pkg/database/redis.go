package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go-battles/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Redis struct {
	Client *redis.Client
	tracer trace.Tracer
}

func NewRedis(ctx context.Context) (*Redis, error) {
	redisURL := config.GetEnv("REDIS_URL", "redis://localhost:6379")

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("Connected to Redis at: %s", opt.Addr)

	r := &Redis{Client: client}
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		r.tracer = otel.Tracer("redis-client")
	}

	return r, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// span wraps an operation in a trace span when telemetry is enabled.
func (r *Redis) span(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	if r.tracer == nil {
		return fn(ctx)
	}
	ctx, span := r.tracer.Start(ctx, "redis."+op,
		trace.WithAttributes(
			attribute.String("redis.key", key),
			attribute.String("redis.operation", op),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil && err != redis.Nil {
		span.RecordError(err)
	}
	return err
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.span(ctx, "set", key, func(ctx context.Context) error {
		return r.Client.Set(ctx, key, value, expiration).Err()
	})
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	var result string
	err := r.span(ctx, "get", key, func(ctx context.Context) error {
		var err error
		result, err = r.Client.Get(ctx, key).Result()
		return err
	})
	return result, err
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	key := ""
	if len(keys) > 0 {
		key = keys[0]
	}
	return r.span(ctx, "del", key, func(ctx context.Context) error {
		return r.Client.Del(ctx, keys...).Err()
	})
}

// SetJSON stores a JSON-serializable object in Redis with expiration
func (r *Redis) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return r.Set(ctx, key, jsonData, expiration)
}

// GetJSON retrieves and unmarshals a JSON object from Redis
func (r *Redis) GetJSON(ctx context.Context, key string, dest interface{}) error {
	jsonData, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

// Publish sends a message on a pub/sub channel.
func (r *Redis) Publish(ctx context.Context, channel string, payload interface{}) error {
	return r.span(ctx, "publish", channel, func(ctx context.Context) error {
		return r.Client.Publish(ctx, channel, payload).Err()
	})
}

// Subscribe opens a pub/sub subscription. The caller owns the returned
// subscription and must Close it.
func (r *Redis) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.Client.Subscribe(ctx, channels...)
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}
