package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const keyIdempotency = "idem:%s:%s"

// *redis.Client が満たす最小限
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// 完了済み冪等結果のRedisキャッシュ。正はDBなので、消えても困らない
type IdempotencyCache struct {
	rdb redisCmdable
	ttl time.Duration
}

func NewIdempotencyCache(rdb redisCmdable, ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyCache{rdb: rdb, ttl: ttl}
}

func cacheKey(scope, key string) string {
	return fmt.Sprintf(keyIdempotency, scope, key)
}

func (c *IdempotencyCache) Get(ctx context.Context, scope, key string) (model.IdempotencyRecord, bool, error) {
	b, err := c.rdb.Get(ctx, cacheKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return model.IdempotencyRecord{}, false, err
	}

	var rec model.IdempotencyRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.IdempotencyRecord{}, false, fmt.Errorf("decode cached idempotency record: %w", err)
	}
	return rec, true, nil
}

func (c *IdempotencyCache) Set(ctx context.Context, rec model.IdempotencyRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(rec.Scope, rec.Key), b, c.ttl).Err()
}
