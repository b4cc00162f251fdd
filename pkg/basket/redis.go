package basket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces lists in Redis.
const RedisKeyPrefix = "basket:"

// RedisStore keeps lists in Redis as JSON documents without expiry.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed list store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) Load(ctx context.Context, username string, kind Kind) (*List, error) {
	if err := checkKey(username, kind); err != nil {
		return nil, err
	}
	basketOperationsTotal.WithLabelValues(string(kind), "load").Inc()

	data, err := s.redis.Get(ctx, storeKey(username, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &List{Products: []Item{}}, nil
		}
		basketErrorsTotal.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		basketErrorsTotal.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("decode %s list: %w", kind, err)
	}
	if list.Products == nil {
		list.Products = []Item{}
	}
	return &list, nil
}

func (s *RedisStore) Save(ctx context.Context, username string, kind Kind, list *List) error {
	if err := checkKey(username, kind); err != nil {
		return err
	}
	if list == nil {
		list = &List{}
	}
	basketOperationsTotal.WithLabelValues(string(kind), "save").Inc()

	data, err := json.Marshal(list)
	if err != nil {
		basketErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("encode %s list: %w", kind, err)
	}
	if err := s.redis.Set(ctx, storeKey(username, kind), data, 0).Err(); err != nil {
		basketErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
