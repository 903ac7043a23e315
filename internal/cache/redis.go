package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed Cache for cross-trial memoization.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// Config configures a Redis cache connection.
type Config struct {
	Host       string
	Port       int
	DB         int
	Password   string
	MaxRetries int
	PoolSize   int
}

// DefaultConfig returns sensible defaults for a local development Redis.
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       6379,
		DB:         0,
		MaxRetries: 3,
		PoolSize:   10,
	}
}

// NewRedis connects to Redis and verifies the connection with a Ping
// before returning, so a misconfigured cache fails fast at startup rather
// than on the first simulation lookup. The Ping is retried with
// exponential backoff for a few seconds, since a Redis started alongside
// mpsim-worker in the same compose stack may not be accepting connections
// yet on the first attempt.
func NewRedis(config Config, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		DB:         config.DB,
		Password:   config.Password,
		MaxRetries: config.MaxRetries,
		PoolSize:   config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	pingErr := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, bo)
	if pingErr != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", pingErr)
	}

	logger.Info("redis cache connected", "host", config.Host, "port", config.Port)
	return &Redis{client: client, logger: logger}, nil
}

// Get returns the cached value for key, or a clean miss if it is absent.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL. A zero TTL means no
// expiry.
func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
