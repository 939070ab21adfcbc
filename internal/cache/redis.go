package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisConfig describes the shared cache connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis stores JSON-encoded values in a shared Redis instance. Redis failures
// never surface: a broken backend behaves like a permanent miss.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	flight singleflight.Group
	opts   options
}

// NewRedisClient opens and pings a client.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedis wraps an existing client.
func NewRedis[V any](client *redis.Client, prefix string, opts ...Option) *Redis[V] {
	if prefix == "" {
		prefix = "econsnap"
	}
	return &Redis[V]{client: client, prefix: prefix, opts: buildOptions("redis_cache", opts)}
}

// GetOrCompute reads the key from Redis, computing and writing it back on a miss.
func (r *Redis[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc[V]) V {
	if v, ok := r.read(ctx, key); ok {
		r.opts.observe(key, true)
		return v
	}

	r.opts.observe(key, false)
	res, _, _ := r.flight.Do(key, func() (any, error) {
		v := compute(ctx)
		r.write(ctx, key, v, ttl)
		return v, nil
	})
	return res.(V)
}

// Clear removes every key under the prefix.
func (r *Redis[V]) Clear(ctx context.Context) error {
	var cursor uint64
	pattern := r.wrapKey("*")
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("unlink cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	r.opts.logger.Info().Str("prefix", r.prefix).Msg("cache cleared")
	return nil
}

func (r *Redis[V]) read(ctx context.Context, key string) (V, bool) {
	var zero V
	data, err := r.client.Get(ctx, r.wrapKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.opts.logger.Warn().Err(err).Str("key", key).Msg("redis read failed")
		}
		return zero, false
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		r.opts.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return zero, false
	}
	r.opts.logger.Debug().Str("key", key).Msg("cache hit")
	return v, true
}

func (r *Redis[V]) write(ctx context.Context, key string, v V, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		r.opts.logger.Warn().Err(err).Str("key", key).Msg("encode cache entry")
		return
	}
	if err := r.client.Set(ctx, r.wrapKey(key), data, ttl).Err(); err != nil {
		r.opts.logger.Warn().Err(err).Str("key", key).Msg("redis write failed")
	}
}

func (r *Redis[V]) wrapKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}
