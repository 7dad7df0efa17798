// Package cache provides a short-TTL Redis cache for certificate facts.
// It only ever fronts the pure verification path; scan and consume always go
// to the store and invalidate here afterwards. Facts are cached rather than
// verdicts so the engine re-evaluates every hit at the request time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sigil/internal/verification/ports"
	id "sigil/pkg/domain"
)

// RedisCache caches certificate facts keyed by brand and certificate ID. A
// miss is (nil, nil); callers fall through to the store.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func factsKey(brand id.BrandID, certID id.CertificateID) string {
	return fmt.Sprintf("sigil:facts:%s:%s", brand.String(), certID)
}

func (c *RedisCache) Get(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*ports.CertificateFacts, error) {
	data, err := c.client.Get(ctx, factsKey(brand, certID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var facts ports.CertificateFacts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("unmarshal cached facts: %w", err)
	}
	return &facts, nil
}

func (c *RedisCache) Set(ctx context.Context, brand id.BrandID, certID id.CertificateID, facts ports.CertificateFacts) error {
	data, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	if err := c.client.Set(ctx, factsKey(brand, certID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, brand id.BrandID, certID id.CertificateID) error {
	if err := c.client.Del(ctx, factsKey(brand, certID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
