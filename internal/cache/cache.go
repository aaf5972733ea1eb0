// Package cache keeps chat recipient lists in Redis using the cache-aside
// pattern, so the hub does not hit the database for every message that
// arrives without a recipient list.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// KeyPrefix namespaces every key the cache writes.
const KeyPrefix = "roomchat:recipients:"

// loadTimeout bounds a Source load. Loads are shared by every waiting caller,
// so they do not inherit any single caller's cancellation.
const loadTimeout = 5 * time.Second

// Source loads the member ids of a chat from the system of record.
type Source interface {
	ChatMembers(ctx context.Context, chatID string) ([]string, error)
}

// Stats tracks cache statistics.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Loads         uint64 `json:"loads"`
	Invalidations uint64 `json:"invalidations"`
	Errors        uint64 `json:"errors"`
}

// RecipientCache answers recipient lookups from Redis and falls back to the
// Source on a miss. A nil Redis client turns it into a pass-through that
// still collapses concurrent loads of the same chat.
type RecipientCache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	group  singleflight.Group
	stats  Stats
	logger *slog.Logger

	// versions counts invalidations per chat; a load only writes back if
	// the count did not move while it ran.
	mu       sync.Mutex
	versions map[string]uint64
}

// New creates a RecipientCache over source. client may be nil.
func New(client *redis.Client, source Source, ttl time.Duration, logger *slog.Logger) *RecipientCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecipientCache{
		client:   client,
		source:   source,
		ttl:      ttl,
		logger:   logger.With("component", "recipient_cache"),
		versions: make(map[string]uint64),
	}
}

// NewClient creates a Redis client for addr. It does not connect until first use.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func key(chatID string) string {
	return KeyPrefix + chatID
}

// Recipients returns the member ids of chatID. Redis errors are logged and
// the Source is used instead.
func (c *RecipientCache) Recipients(ctx context.Context, chatID string) ([]string, error) {
	if ids, ok := c.get(ctx, chatID); ok {
		return ids, nil
	}

	val, err, _ := c.group.Do(chatID, func() (any, error) {
		return c.load(ctx, chatID)
	})
	if err != nil {
		return nil, fmt.Errorf("load recipients of chat %s: %w", chatID, err)
	}
	return val.([]string), nil
}

func (c *RecipientCache) load(ctx context.Context, chatID string) ([]string, error) {
	atomic.AddUint64(&c.stats.Loads, 1)
	version := c.version(chatID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	ids, err := c.source.ChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[chatID] != version {
		c.logger.Debug("chat invalidated during load, not caching", "chat", chatID)
		return ids, nil
	}
	c.set(ctx, chatID, ids)
	return ids, nil
}

func (c *RecipientCache) version(chatID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[chatID]
}

func (c *RecipientCache) get(ctx context.Context, chatID string) ([]string, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, key(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		atomic.AddUint64(&c.stats.Misses, 1)
		return nil, false
	}
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		c.logger.Warn("cache get failed", "chat", chatID, "error", err)
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		c.logger.Warn("discarding corrupt cache entry", "chat", chatID, "error", err)
		return nil, false
	}
	atomic.AddUint64(&c.stats.Hits, 1)
	return ids, true
}

func (c *RecipientCache) set(ctx context.Context, chatID string, ids []string) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(ids)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return
	}
	if err := c.client.Set(ctx, key(chatID), data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		c.logger.Warn("cache set failed", "chat", chatID, "error", err)
	}
}

// Invalidate drops the cached recipient list of chatID. Call it after any
// membership change. A load already in flight for chatID still answers its
// own callers but is not written back, and later lookups start a new load.
func (c *RecipientCache) Invalidate(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.versions[chatID]++
	c.mu.Unlock()
	c.group.Forget(chatID)

	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, key(chatID)).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	atomic.AddUint64(&c.stats.Invalidations, 1)
	return nil
}

// Stats returns a snapshot of the counters.
func (c *RecipientCache) Stats() Stats {
	return Stats{
		Hits:          atomic.LoadUint64(&c.stats.Hits),
		Misses:        atomic.LoadUint64(&c.stats.Misses),
		Loads:         atomic.LoadUint64(&c.stats.Loads),
		Invalidations: atomic.LoadUint64(&c.stats.Invalidations),
		Errors:        atomic.LoadUint64(&c.stats.Errors),
	}
}

// Ping checks if the Redis connection is healthy.
func (c *RecipientCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *RecipientCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
