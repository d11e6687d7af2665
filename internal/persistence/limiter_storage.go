package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimiterStorage adapts Redis to fiber.Storage so the limiter middleware
// shares per-IP counters across instances.
type LimiterStorage struct {
	redis *Redis
}

// NewLimiterStorage builds the adapter.
func NewLimiterStorage(r *Redis) *LimiterStorage {
	return &LimiterStorage{redis: r}
}

func (s *LimiterStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, err := s.redis.Client.Get(context.Background(), s.redis.key("limiter", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *LimiterStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.redis.Client.Set(context.Background(), s.redis.key("limiter", key), val, exp).Err()
}

func (s *LimiterStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.redis.Client.Del(context.Background(), s.redis.key("limiter", key)).Err()
}

// Reset removes every limiter key under the configured prefix.
func (s *LimiterStorage) Reset() error {
	ctx := context.Background()
	iter := s.redis.Client.Scan(ctx, 0, s.redis.key("limiter", "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op; the shared client is closed by its owner.
func (s *LimiterStorage) Close() error {
	return nil
}
