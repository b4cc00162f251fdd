package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces cache entries in Redis.
const RedisKeyPrefix = "catalog:"

// RedisStore keeps cache entries in Redis as JSON documents.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed store. Retention bounds how long Redis
// keeps an entry after it was written; 0 keeps it until overwritten.
// Retention is housekeeping only and is independent of the reader's TTL.
func NewRedisStore(redisClient *redis.Client, retention time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:     redisClient,
		retention: retention,
	}
}

func redisKey(key Key) string {
	return RedisKeyPrefix + key.String()
}

// Get retrieves a cache entry by key.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(storeRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(storeRedis, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(storeRedis, "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Set stores a cache entry, overwriting any previous one for the same key.
func (s *RedisStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(storeRedis, "set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, redisKey(key), data, s.retention).Err(); err != nil {
		CacheErrors.WithLabelValues(storeRedis, "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheStoredBytes.WithLabelValues(storeRedis).Add(float64(len(entry.Payload)))
	return nil
}

// Has reports whether key has an entry.
func (s *RedisStore) Has(ctx context.Context, key Key) (bool, error) {
	n, err := s.redis.Exists(ctx, redisKey(key)).Result()
	if err != nil {
		CacheErrors.WithLabelValues(storeRedis, "has").Inc()
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
