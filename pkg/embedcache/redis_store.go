package embedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "embcache:"

// RedisStore keeps durable entries as redis hashes that expire on their own.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(key Key) string {
	return redisKeyPrefix + key.Hash()
}

func (s *RedisStore) Get(ctx context.Context, key Key) ([]float32, bool, error) {
	k := redisKey(key)
	raw, err := s.rdb.HGet(ctx, k, "vector").Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget %s: %w", k, err)
	}

	var values []float32
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, false, fmt.Errorf("decode cached vector: %w", err)
	}

	// usage bookkeeping is best effort
	_, _ = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, k, "use_count", 1)
		pipe.HSet(ctx, k, "last_used_at", time.Now().UTC().Format(time.RFC3339Nano))
		return nil
	})

	return values, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key Key, values []float32, ttl time.Duration) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	k := redisKey(key)
	now := time.Now().UTC()

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			"model", key.Model,
			"vector", string(payload),
			"inserted_at", now.Format(time.RFC3339Nano),
			"last_used_at", now.Format(time.RFC3339Nano),
		)
		pipe.HIncrBy(ctx, k, "use_count", 1)
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", k, err)
	}
	return nil
}
