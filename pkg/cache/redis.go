package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a shared Redis instance, for deployments
// running more than one process. Values are JSON-encoded; Redis handles
// expiry server-side. Any Redis error reads as a miss — the caller then
// re-resolves from the source of truth, which is always safe.
type Redis[T any] struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the given redis:// URL.
func NewRedis[T any](url, prefix string) (*Redis[T], error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &Redis[T]{client: redis.NewClient(opts), prefix: prefix}, nil
}

func (r *Redis[T]) key(k string) string {
	return r.prefix + ":" + k
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false
	}
	return value, true
}

func (r *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, r.key(key), raw, ttl).Err()
}

func (r *Redis[T]) Delete(ctx context.Context, key string) {
	_ = r.client.Del(ctx, r.key(key)).Err()
}

// Close releases the underlying connection pool.
func (r *Redis[T]) Close() error {
	return r.client.Close()
}
