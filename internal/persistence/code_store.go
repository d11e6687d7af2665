package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/utility-crm/internal/auth"
)

// RedisCodeStore keeps hashed verification codes in Redis hashes with a TTL.
type RedisCodeStore struct {
	redis *Redis
}

// NewRedisCodeStore builds a code store on top of the shared client.
func NewRedisCodeStore(r *Redis) *RedisCodeStore {
	return &RedisCodeStore{redis: r}
}

func (s *RedisCodeStore) Save(ctx context.Context, phone, hash string, ttl time.Duration) error {
	key := s.redis.key("otp", phone)
	_, err := s.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", hash, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisCodeStore) Get(ctx context.Context, phone string) (*auth.StoredCode, error) {
	values, err := s.redis.Client.HGetAll(ctx, s.redis.key("otp", phone)).Result()
	if err != nil {
		return nil, err
	}
	hash, ok := values["hash"]
	if !ok {
		return nil, auth.ErrCodeNotFound
	}
	attempts, _ := strconv.Atoi(values["attempts"])
	return &auth.StoredCode{Hash: hash, Attempts: attempts}, nil
}

func (s *RedisCodeStore) IncrementAttempts(ctx context.Context, phone string) (int, error) {
	n, err := s.redis.Client.HIncrBy(ctx, s.redis.key("otp", phone), "attempts", 1).Result()
	return int(n), err
}

func (s *RedisCodeStore) Delete(ctx context.Context, phone string) error {
	return s.redis.Client.Del(ctx, s.redis.key("otp", phone)).Err()
}
