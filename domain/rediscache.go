package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Biscgit/streamlet/frame"
	"github.com/Biscgit/streamlet/module"
)

// RedisConfig is the `connection` block for cache.redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache is a Transform that enriches every Metric's attributes with a
// value looked up from Redis under the key "<task name>:<metric name>"
// (Apply only reads; Store writes), modeled on a small Get/Set cache wrapper
// (`module/cache_redis.go`, Get/Set behind a small client interface) but
// plugged in as a Transform instead of a standalone cache facade, since
// the transform stage is the only place that mutates per-metric
// attributes.
type RedisCache struct {
	name    string
	cfg     RedisConfig
	attrKey string
	logger  *slog.Logger
	client  RedisClient
}

// RedisClient is the subset of *redis.Client used here, kept as an
// interface so tests can substitute a fake without a live server.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
}

func NewRedisCache(name string, cfg RedisConfig, attrKey string, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	if attrKey == "" {
		attrKey = "cached"
	}
	return &RedisCache{name: name, cfg: cfg, attrKey: attrKey, logger: logger}
}

func (r *RedisCache) Name() string { return r.name }

func (r *RedisCache) OnConnect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     r.cfg.Addr,
		Password: r.cfg.Password,
		DB:       r.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache.redis %q: %w", r.name, err)
	}
	r.client = client
	return nil
}

func (r *RedisCache) OnPreShutdown(ctx context.Context) error { return nil }

func (r *RedisCache) OnShutdown(ctx context.Context) error {
	if c, ok := r.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}

// Apply fills in f.Metrics[i].Attributes[attrKey] from Redis, reading the
// key "<task name>:<metric name>". A cache miss leaves that metric unchanged
// and is not an error. Any other lookup failure stops the walk and is
// returned (the dispatcher logs it), leaving the remaining metrics
// untouched. Apply never adds or removes metrics, so Frame.Len() is
// unchanged.
func (r *RedisCache) Apply(ctx context.Context, f *frame.Frame) error {
	if r.client == nil {
		return fmt.Errorf("cache.redis %q: not connected", r.name)
	}
	for i := range f.Metrics {
		key := f.TaskName + ":" + f.Metrics[i].Name
		val, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("cache.redis %q: get %s: %w", r.name, key, err)
		}
		if f.Metrics[i].Attributes == nil {
			f.Metrics[i].Attributes = map[string]any{}
		}
		f.Metrics[i].Attributes[r.attrKey] = val
	}
	return nil
}

// Store writes value under key with the configured TTL. Exposed for
// callers (e.g. an Output further down the same chain) that want to
// populate the cache rather than just read it.
func (r *RedisCache) Store(ctx context.Context, key string, value any) error {
	if r.client == nil {
		return fmt.Errorf("cache.redis %q: not connected", r.name)
	}
	return r.client.Set(ctx, key, value, r.cfg.TTL).Err()
}
