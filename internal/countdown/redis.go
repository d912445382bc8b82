package countdown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/arena-gamesync/internal/config"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gamesync:countdown:"

// RedisStore shares countdowns between server instances. Each entry holds
// the start time as epoch milliseconds and expires after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client. A zero ttl keeps entries forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(lobbyID string) string {
	return keyPrefix + lobbyID
}

func (s *RedisStore) Set(ctx context.Context, lobbyID string, startAt time.Time) error {
	err := s.client.Set(ctx, s.key(lobbyID), startAt.UnixMilli(), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("setting countdown: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, lobbyID string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.key(lobbyID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("getting countdown: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing countdown %q: %w", val, err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RedisStore) Delete(ctx context.Context, lobbyID string) error {
	if err := s.client.Del(ctx, s.key(lobbyID)).Err(); err != nil {
		return fmt.Errorf("deleting countdown: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
