package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	return s, client
}

func samplePlan() *domain.PlanResult {
	ten := 10
	return &domain.PlanResult{
		RunID:       "run-1",
		Fingerprint: "fp-1",
		LastMonth:   time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC),
		SKUs:        []string{"A1"},
		Forecast: []domain.ForecastPoint{
			{SKU: "A1", Segment: domain.SegmentProjection, Forecast: &ten, Method: domain.MethodMA4},
		},
		Totals: domain.PlanTotals{SKUsToBuy: 1},
	}
}

func TestPlanCacheRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	c := NewRedisPlanCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "fp-1", samplePlan()))

	got, ok, err := c.Get(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, []string{"A1"}, got.SKUs)
	require.Len(t, got.Forecast, 1)
	assert.Equal(t, 10, *got.Forecast[0].Forecast)
	assert.Equal(t, domain.SegmentProjection, got.Forecast[0].Segment)
	assert.True(t, got.LastMonth.Equal(samplePlan().LastMonth))

	byRun, ok, err := c.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fp-1", byRun.Fingerprint)
}

func TestPlanCacheExpires(t *testing.T) {
	s, client := setupTestRedis(t)
	c := NewRedisPlanCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp-1", samplePlan()))
	assert.Equal(t, time.Minute, s.TTL(planKeyPrefix+"fp-1"))
	assert.Equal(t, time.Minute, s.TTL(runKeyPrefix+"run-1"))

	s.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlanCacheInvalidate(t *testing.T) {
	s, client := setupTestRedis(t)
	c := NewRedisPlanCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp-1", samplePlan()))
	require.NoError(t, c.Set(ctx, "fp-2", samplePlan()))

	require.NoError(t, c.Invalidate(ctx, "fp-1"))
	_, ok, err := c.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.InvalidateAll(ctx))
	assert.Empty(t, s.Keys())
}

func TestPlanCacheCorruptPayload(t *testing.T) {
	s, client := setupTestRedis(t)
	c := NewRedisPlanCache(client, time.Minute)

	require.NoError(t, s.Set(planKeyPrefix+"fp-1", "{not json"))
	_, ok, err := c.Get(context.Background(), "fp-1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewPlanCacheDisabled(t *testing.T) {
	c, err := NewPlanCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	_, ok, err := c.Get(context.Background(), "anything")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestNewPlanCacheUsesConfiguredTTL(t *testing.T) {
	s, _ := setupTestRedis(t)

	c, err := NewPlanCache(config.CacheConfig{Enabled: true, RedisURL: "redis://" + s.Addr(), PlanTTLSeconds: 30})
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "fp-1", samplePlan()))
	assert.Equal(t, 30*time.Second, s.TTL(planKeyPrefix+"fp-1"))
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "://bad"})
	assert.Error(t, err)
}
