package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements the few commands CachedStore uses. While down is set
// every command fails as if the server were unreachable.
type fakeRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	down bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

var errRedisDown = errors.New("dial tcp: connection refused")

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewStringResult("", errRedisDown)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewStatusResult("", errRedisDown)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewIntResult(0, errRedisDown)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeRedis) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

// countingStore counts the reads that reach the backing store.
type countingStore struct {
	Store
	byID, published int
}

func (c *countingStore) FindByID(ctx context.Context, id string) (Test, error) {
	c.byID++
	return c.Store.FindByID(ctx, id)
}

func (c *countingStore) FindPublished(ctx context.Context) ([]Test, error) {
	c.published++
	return c.Store.FindPublished(ctx)
}

func newCached(t *testing.T) (*CachedStore, *countingStore, *fakeRedis) {
	t.Helper()
	inner := &countingStore{Store: newMemStore()}
	rdb := newFakeRedis()
	return NewCachedStore(inner, rdb, time.Minute, nil), inner, rdb
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	c, inner, rdb := newCached(t)
	created, err := c.Create(ctx, sampleTest())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		got, err := c.FindByID(ctx, created.ID)
		if err != nil || got.Title != "Mock A" || got.MCQuestions[0].Key() != 1 {
			t.Fatalf("FindByID #%d: %+v %v", i, got, err)
		}
	}
	if inner.byID != 1 {
		t.Fatalf("inner FindByID calls = %d, want 1", inner.byID)
	}
	if ttl := rdb.ttls[cachePrefix+created.ID]; ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	for i := 0; i < 2; i++ {
		if ts, err := c.FindPublished(ctx); err != nil || len(ts) != 1 {
			t.Fatalf("FindPublished: %v %v", ts, err)
		}
	}
	if inner.published != 1 {
		t.Fatalf("inner FindPublished calls = %d, want 1", inner.published)
	}

	if _, err := c.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
	if rdb.has(cachePrefix + "missing") {
		t.Fatal("a miss must not be cached")
	}
}

func TestCachedStoreWritesInvalidate(t *testing.T) {
	ctx := context.Background()
	c, inner, rdb := newCached(t)
	created, err := c.Create(ctx, sampleTest())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.FindByID(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FindPublished(ctx); err != nil {
		t.Fatal(err)
	}

	changed := created
	changed.Title = "Mock A (fixed key)"
	two := 2
	changed.MCQuestions = append([]MCQuestion(nil), created.MCQuestions...)
	changed.MCQuestions[0].CorrectAnswer = &two
	if _, err := c.Update(ctx, created.ID, changed); err != nil {
		t.Fatal(err)
	}
	if rdb.has(cachePrefix+created.ID) || rdb.has(cachePublishedKey) {
		t.Fatal("Update left cached entries behind")
	}
	got, err := c.FindByID(ctx, created.ID)
	if err != nil || got.Title != "Mock A (fixed key)" || got.MCQuestions[0].Key() != 2 {
		t.Fatalf("after update: %+v %v", got, err)
	}
	if inner.byID != 2 {
		t.Fatalf("inner FindByID calls = %d, want 2", inner.byID)
	}

	// Create must drop the published list too
	if _, err := c.FindPublished(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Create(ctx, sampleTest()); err != nil {
		t.Fatal(err)
	}
	if ts, err := c.FindPublished(ctx); err != nil || len(ts) != 2 {
		t.Fatalf("published after create: %d %v", len(ts), err)
	}

	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if rdb.has(cachePrefix+created.ID) || rdb.has(cachePublishedKey) {
		t.Fatal("Delete left cached entries behind")
	}
	if _, err := c.FindByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted test still served: %v", err)
	}
	if err := c.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCachedStoreFallsThroughWhenRedisFails(t *testing.T) {
	ctx := context.Background()
	c, inner, rdb := newCached(t)
	rdb.setDown(true)

	created, err := c.Create(ctx, sampleTest())
	if err != nil {
		t.Fatalf("Create with redis down: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.FindByID(ctx, created.ID); err != nil {
			t.Fatalf("FindByID with redis down: %v", err)
		}
		if ts, err := c.FindPublished(ctx); err != nil || len(ts) != 1 {
			t.Fatalf("FindPublished with redis down: %v %v", ts, err)
		}
	}
	if inner.byID != 2 || inner.published != 2 {
		t.Fatalf("inner calls = %d/%d, want every read to reach the store", inner.byID, inner.published)
	}
	if _, err := c.Update(ctx, created.ID, created); err != nil {
		t.Fatalf("Update with redis down: %v", err)
	}

	rdb.setDown(false)
	rdb.data[cachePrefix+created.ID] = "{not json"
	got, err := c.FindByID(ctx, created.ID)
	if err != nil || got.ID != created.ID {
		t.Fatalf("corrupt entry: %+v %v", got, err)
	}
	if inner.byID != 3 {
		t.Fatalf("corrupt entry was served instead of reading through")
	}
}
