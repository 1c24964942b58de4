// Package cache stores finished plan results in Redis, keyed by the input
// fingerprint, so repeated runs over identical inputs skip the engine.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

const (
	planKeyPrefix = "plan:result:"
	runKeyPrefix  = "plan:run:"
	planScanBatch = 100
)

type PlanCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.PlanResult, bool, error)
	Set(ctx context.Context, fingerprint string, res *domain.PlanResult) error
	GetByRunID(ctx context.Context, runID string) (*domain.PlanResult, bool, error)
	Invalidate(ctx context.Context, fingerprint string) error
	InvalidateAll(ctx context.Context) error
}

type redisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPlanCache struct{}

// NewPlanCache connects to Redis when caching is enabled and returns a
// cache that never hits otherwise.
func NewPlanCache(cfg config.CacheConfig) (PlanCache, error) {
	if !cfg.Enabled {
		return &noopPlanCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPlanCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// NewRedisPlanCache wraps an existing client.
func NewRedisPlanCache(client *redis.Client, ttl time.Duration) PlanCache {
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}
	return &redisPlanCache{client: client, ttl: ttl}
}

func NewNoopPlanCache() PlanCache {
	return &noopPlanCache{}
}

func (c *redisPlanCache) Get(ctx context.Context, fingerprint string) (*domain.PlanResult, bool, error) {
	payload, err := c.client.Get(ctx, planKeyPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var res domain.PlanResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, false, fmt.Errorf("decode plan cache: %w", err)
	}

	return &res, true, nil
}

// Set stores the plan and a run ID pointer to it with the same TTL.
func (c *redisPlanCache) Set(ctx context.Context, fingerprint string, res *domain.PlanResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode plan cache: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, planKeyPrefix+fingerprint, payload, c.ttl)
		if res.RunID != "" {
			pipe.Set(ctx, runKeyPrefix+res.RunID, fingerprint, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPlanCache) GetByRunID(ctx context.Context, runID string) (*domain.PlanResult, bool, error) {
	fingerprint, err := c.client.Get(ctx, runKeyPrefix+runID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return c.Get(ctx, fingerprint)
}

func (c *redisPlanCache) Invalidate(ctx context.Context, fingerprint string) error {
	return c.client.Del(ctx, planKeyPrefix+fingerprint).Err()
}

func (c *redisPlanCache) InvalidateAll(ctx context.Context) error {
	if err := deleteKeysWithPrefix(ctx, c.client, planKeyPrefix, planScanBatch); err != nil {
		return err
	}
	return deleteKeysWithPrefix(ctx, c.client, runKeyPrefix, planScanBatch)
}

func (n *noopPlanCache) Get(ctx context.Context, fingerprint string) (*domain.PlanResult, bool, error) {
	return nil, false, nil
}

func (n *noopPlanCache) Set(ctx context.Context, fingerprint string, res *domain.PlanResult) error {
	return nil
}

func (n *noopPlanCache) GetByRunID(ctx context.Context, runID string) (*domain.PlanResult, bool, error) {
	return nil, false, nil
}

func (n *noopPlanCache) Invalidate(ctx context.Context, fingerprint string) error {
	return nil
}

func (n *noopPlanCache) InvalidateAll(ctx context.Context) error {
	return nil
}
