package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ErrCacheMiss is returned when the key is not cached.
var ErrCacheMiss = errors.New("cache miss")

type CacheRepository interface {
	Get(ctx context.Context, slug string) (*models.Link, error)
	Set(ctx context.Context, slug string, link *models.Link, ttl time.Duration) error
	Delete(ctx context.Context, slug string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	data, err := r.redis.Client.Get(ctx, r.key(slug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}

	return &link, nil
}

func (r *cacheRepository) Set(ctx context.Context, slug string, link *models.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(slug), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, slug string) error {
	return r.redis.Client.Del(ctx, r.key(slug)).Err()
}

func (r *cacheRepository) key(slug string) string {
	return "link:" + slug
}

// RateCache caches pricing rates by (audience, country).
type RateCache interface {
	GetRate(ctx context.Context, audience models.Audience, country string) (decimal.Decimal, error)
	SetRate(ctx context.Context, audience models.Audience, country string, rate decimal.Decimal, ttl time.Duration) error
}

type rateCache struct {
	redis *RedisDB
}

func NewRateCache(redis *RedisDB) RateCache {
	return &rateCache{redis: redis}
}

func (r *rateCache) GetRate(ctx context.Context, audience models.Audience, country string) (decimal.Decimal, error) {
	raw, err := r.redis.Client.Get(ctx, r.key(audience, country)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, ErrCacheMiss
		}
		return decimal.Zero, err
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse cached rate: %w", err)
	}

	return rate, nil
}

func (r *rateCache) SetRate(ctx context.Context, audience models.Audience, country string, rate decimal.Decimal, ttl time.Duration) error {
	return r.redis.Client.Set(ctx, r.key(audience, country), rate.String(), ttl).Err()
}

func (r *rateCache) key(audience models.Audience, country string) string {
	return "rate:" + string(audience) + ":" + country
}
