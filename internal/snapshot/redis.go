package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot blob under a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedis builds a Redis-backed snapshot store.
func NewRedis(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Save writes the snapshot blob. The key has no TTL: the snapshot must
// outlive any redeployment gap.
func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot blob, returning ErrNotFound when the key is absent.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}
