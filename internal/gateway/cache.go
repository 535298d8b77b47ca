package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultResultTTL = 60 * time.Second

// ResultCache holds resolved URLs for a short time so bursts of refresh
// calls for one image reach the content source once.
type ResultCache interface {
	Get(ctx context.Context, key string) (Result, bool)
	Set(ctx context.Context, key string, result Result, ttl time.Duration)
}

type MemoryCache struct {
	cache *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}

	return &MemoryCache{cache: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Result, bool) {
	value, ok := m.cache.Get(key)
	if !ok {
		return Result{}, false
	}
	result, ok := value.(Result)

	return result, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, result Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(key, result, ttl)
}

const redisKeyPrefix = "imgurl:"

// RedisCache shares results between server instances. Redis failures
// degrade to cache misses.
type RedisCache struct {
	client  redis.UniversalClient
	timeout time.Duration
	logger  *zap.Logger
}

func NewRedisCache(client redis.UniversalClient, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisCache{client: client, timeout: 2 * time.Second, logger: logger}
}

func (r *RedisCache) Get(ctx context.Context, key string) (Result, bool) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.client.Get(timeoutCtx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return Result{}, false
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil || result.URL == "" {
		return Result{}, false
	}

	return result, true
}

func (r *RedisCache) Set(ctx context.Context, key string, result Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(timeoutCtx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		r.logger.Debug("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Tiered reads through its layers in order and backfills the faster ones.
type Tiered struct {
	layers []ResultCache
	ttl    time.Duration
}

func NewTiered(ttl time.Duration, layers ...ResultCache) *Tiered {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}

	return &Tiered{layers: layers, ttl: ttl}
}

func (t *Tiered) Get(ctx context.Context, key string) (Result, bool) {
	for i, layer := range t.layers {
		result, ok := layer.Get(ctx, key)
		if !ok {
			continue
		}
		for _, faster := range t.layers[:i] {
			faster.Set(ctx, key, result, t.ttl)
		}
		return result, true
	}

	return Result{}, false
}

func (t *Tiered) Set(ctx context.Context, key string, result Result, ttl time.Duration) {
	for _, layer := range t.layers {
		layer.Set(ctx, key, result, ttl)
	}
}
