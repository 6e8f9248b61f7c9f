package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

// Cache memoises JSON-serialisable results under a string key.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Key hashes any JSON-serialisable value into a stable cache key.
func Key(v interface{}) string {
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// ==========================
// Redis
// ==========================

type RedisCache struct {
	client redis.Cmdable
	name   string
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, name, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, name: name, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues(c.name, "error").Inc()
		return false, errors.NewCacheUnavailableError(err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		// A payload from an older layout counts as a miss and gets overwritten.
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return false, nil
	}
	metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewProcessingError("cache", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

// ==========================
// In-process
// ==========================

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is the single-process fallback used when no redis is configured.
type MemoryCache struct {
	mu      sync.Mutex
	name    string
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(name string, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		name:    name,
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.ttl > 0 && c.now().After(entry.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, errors.NewProcessingError("cache", err)
	}
	metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewProcessingError("cache", err)
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{data: data, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}
