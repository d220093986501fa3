package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/distlock"
)

// RedisBackend stores each stream as a JSON value under
// "<prefix>:state:<stream>".
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(stream string) string {
	return fmt.Sprintf("%s:state:%s", r.prefix, stream)
}

func (r *RedisBackend) Load(ctx context.Context, stream string) (*domain.StreamState, error) {
	data, err := r.client.Get(ctx, r.key(stream)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key(stream), err)
	}
	var s domain.StreamState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding redis state %s: %w", r.key(stream), err)
	}
	return &s, nil
}

func (r *RedisBackend) Save(ctx context.Context, stream string, s *domain.StreamState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(stream), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key(stream), err)
	}
	return nil
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Lock(key string, ttl time.Duration) distlock.DistLock {
	return distlock.NewRedisLock(r.client, key, ttl)
}
