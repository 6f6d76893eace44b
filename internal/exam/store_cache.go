package exam

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cachePrefix       = "qbtusul:test:"
	cachePublishedKey = "qbtusul:tests:published"
)

// CachedStore is a read-through Redis cache in front of another Store.
// Cache failures never fail a request; they fall through to the inner store.
type CachedStore struct {
	next Store
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

func NewCachedStore(next Store, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedStore{next: next, rdb: rdb, ttl: ttl, log: log}
}

func (c *CachedStore) FindByID(ctx context.Context, id string) (Test, error) {
	raw, err := c.rdb.Get(ctx, cachePrefix+id).Bytes()
	if err == nil {
		if t, derr := DecodeDocument(raw); derr == nil {
			return t, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("test cache get failed", zap.String("test_id", id), zap.Error(err))
	}

	t, err := c.next.FindByID(ctx, id)
	if err != nil {
		return Test{}, err
	}
	c.put(ctx, cachePrefix+id, t)
	return t, nil
}

func (c *CachedStore) FindPublished(ctx context.Context) ([]Test, error) {
	raw, err := c.rdb.Get(ctx, cachePublishedKey).Bytes()
	if err == nil {
		var ts []Test
		if json.Unmarshal(raw, &ts) == nil {
			return ts, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("published cache get failed", zap.Error(err))
	}

	ts, err := c.next.FindPublished(ctx)
	if err != nil {
		return nil, err
	}
	c.put(ctx, cachePublishedKey, ts)
	return ts, nil
}

// FindAll is an admin path and always reads through.
func (c *CachedStore) FindAll(ctx context.Context) ([]Test, error) {
	return c.next.FindAll(ctx)
}

func (c *CachedStore) Create(ctx context.Context, t Test) (Test, error) {
	out, err := c.next.Create(ctx, t)
	if err != nil {
		return Test{}, err
	}
	c.invalidate(ctx, out.ID)
	return out, nil
}

func (c *CachedStore) Update(ctx context.Context, id string, t Test) (Test, error) {
	out, err := c.next.Update(ctx, id, t)
	if err != nil {
		return Test{}, err
	}
	c.invalidate(ctx, id)
	return out, nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedStore) put(ctx context.Context, key string, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, buf, c.ttl).Err(); err != nil {
		c.log.Warn("test cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedStore) invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, cachePrefix+id, cachePublishedKey).Err(); err != nil {
		c.log.Warn("test cache invalidate failed", zap.String("test_id", id), zap.Error(err))
	}
}
