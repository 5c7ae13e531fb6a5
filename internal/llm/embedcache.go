package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultEmbedCacheSize = 1000
	defaultEmbedCacheTTL  = 1 * time.Hour
)

// EmbedCache caches query-embedding vectors so repeated queries (common for
// the document and web retrievers' semantic fallbacks) skip the
// embedding round-trip. Generalized from token_cache.go's in-memory
// LRU+TTL pattern to a pluggable backend.
type EmbedCache interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Set(ctx context.Context, text string, vector []float32)
}

// MemoryEmbedCache is the default in-process cache, used when no redis
// address is configured.
type MemoryEmbedCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEmbedEntry
	maxSize int
	ttl     time.Duration
}

type memoryEmbedEntry struct {
	vector     []float32
	expiration time.Time
	lastAccess time.Time
}

// NewMemoryEmbedCache builds a MemoryEmbedCache. maxSize <= 0 and ttl <= 0
// fall back to sane defaults.
func NewMemoryEmbedCache(maxSize int, ttl time.Duration) *MemoryEmbedCache {
	if maxSize <= 0 {
		maxSize = defaultEmbedCacheSize
	}
	if ttl <= 0 {
		ttl = defaultEmbedCacheTTL
	}
	c := &MemoryEmbedCache{
		entries: make(map[string]memoryEmbedEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
	return c
}

func (c *MemoryEmbedCache) Get(ctx context.Context, text string) ([]float32, bool) {
	key := hashEmbedKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiration) {
		delete(c.entries, key)
		return nil, false
	}
	entry.lastAccess = time.Now()
	c.entries[key] = entry
	return entry.vector, true
}

func (c *MemoryEmbedCache) Set(ctx context.Context, text string, vector []float32) {
	key := hashEmbedKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	now := time.Now()
	c.entries[key] = memoryEmbedEntry{
		vector:     vector,
		expiration: now.Add(c.ttl),
		lastAccess: now,
	}
}

func (c *MemoryEmbedCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.lastAccess.Before(oldestTime) {
			oldestKey, oldestTime, first = key, entry.lastAccess, false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func hashEmbedKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:16])
}

// RedisEmbedCache stores vectors in redis, keyed by a hash of the query
// text, serialized as JSON float32 arrays under a TTL.
type RedisEmbedCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisEmbedCache builds a RedisEmbedCache against addr ("host:port").
func NewRedisEmbedCache(addr string, ttl time.Duration) *RedisEmbedCache {
	if ttl <= 0 {
		ttl = defaultEmbedCacheTTL
	}
	return &RedisEmbedCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		prefix: "freshness:embed:",
	}
}

func (c *RedisEmbedCache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.prefix+hashEmbedKey(text)).Bytes()
	if err != nil {
		return nil, false
	}
	vector, err := decodeVector(raw)
	if err != nil {
		return nil, false
	}
	return vector, true
}

func (c *RedisEmbedCache) Set(ctx context.Context, text string, vector []float32) {
	raw, err := encodeVector(vector)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.prefix+hashEmbedKey(text), raw, c.ttl)
}

// Close releases the redis connection pool.
func (c *RedisEmbedCache) Close() error {
	return c.client.Close()
}

func encodeVector(vector []float32) ([]byte, error) {
	ints := make([]uint32, len(vector))
	for i, v := range vector {
		ints[i] = math.Float32bits(v)
	}
	return json.Marshal(ints)
}

func decodeVector(raw []byte) ([]float32, error) {
	var ints []uint32
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, err
	}
	vector := make([]float32, len(ints))
	for i, v := range ints {
		vector[i] = math.Float32frombits(v)
	}
	return vector, nil
}
