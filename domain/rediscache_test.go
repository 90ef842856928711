package domain

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biscgit/streamlet/frame"
)

type fakeRedisClient struct {
	store map[string]string
}

func (f *fakeRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if v, ok := f.store[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeRedisClient) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if f.store == nil {
		f.store = map[string]string{}
	}
	f.store[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

func TestRedisCache_Apply_FillsAttributeOnHit(t *testing.T) {
	fake := &fakeRedisClient{store: map[string]string{"orders:count": "warm"}}
	c := NewRedisCache("rc1", RedisConfig{}, "tier", nil)
	c.client = fake

	f := &frame.Frame{TaskName: "orders", Metrics: []frame.Metric{{Name: "count", Value: 1}}}
	require.NoError(t, c.Apply(context.Background(), f))
	assert.Equal(t, "warm", f.Metrics[0].Attributes["tier"])
}

func TestRedisCache_Apply_MissLeavesMetricUnchanged(t *testing.T) {
	fake := &fakeRedisClient{store: map[string]string{}}
	c := NewRedisCache("rc1", RedisConfig{}, "tier", nil)
	c.client = fake

	f := &frame.Frame{TaskName: "orders", Metrics: []frame.Metric{{Name: "count", Value: 1}}}
	require.NoError(t, c.Apply(context.Background(), f))
	assert.Nil(t, f.Metrics[0].Attributes)
}

func TestRedisCache_Apply_NeverChangesMetricCount(t *testing.T) {
	fake := &fakeRedisClient{store: map[string]string{}}
	c := NewRedisCache("rc1", RedisConfig{}, "tier", nil)
	c.client = fake

	f := &frame.Frame{TaskName: "orders", Metrics: []frame.Metric{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	require.NoError(t, c.Apply(context.Background(), f))
	assert.Equal(t, 3, f.Len())
}

func TestRedisCache_Store_WritesThroughClient(t *testing.T) {
	fake := &fakeRedisClient{}
	c := NewRedisCache("rc1", RedisConfig{TTL: time.Minute}, "tier", nil)
	c.client = fake

	require.NoError(t, c.Store(context.Background(), "orders:count", "chilled"))
	assert.Equal(t, "chilled", fake.store["orders:count"])
}
