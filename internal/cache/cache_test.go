package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Redis-backed tests need a server on localhost:6379 and skip otherwise.
const testRedisAddr = "localhost:6379"

type fakeSource struct {
	mu      sync.Mutex
	members map[string][]string
	calls   atomic.Int64
	// gate blocks every load; holdFirst blocks only the first one.
	gate      chan struct{}
	holdFirst chan struct{}
	started   chan struct{}
}

func (f *fakeSource) ChatMembers(ctx context.Context, chatID string) ([]string, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	ids, ok := f.members[chatID]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if n == 1 && f.holdFirst != nil {
		<-f.holdFirst
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("chat not found")
	}
	return ids, nil
}

func (f *fakeSource) setMembers(chatID string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[chatID] = ids
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPassThroughWithoutRedis(t *testing.T) {
	src := &fakeSource{members: map[string][]string{"c1": {"alice", "bob"}}}
	c := New(nil, src, time.Minute, discardLogger())
	ctx := context.Background()

	for range 3 {
		ids, err := c.Recipients(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, ids)
	}
	assert.EqualValues(t, 3, src.calls.Load())

	_, err := c.Recipients(ctx, "missing")
	assert.Error(t, err)

	assert.NoError(t, c.Invalidate(ctx, "c1"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
	assert.Zero(t, c.Stats().Hits)
}

func TestConcurrentLoadsAreCollapsed(t *testing.T) {
	src := &fakeSource{
		members: map[string][]string{"c1": {"alice", "bob"}},
		gate:    make(chan struct{}),
	}
	c := New(nil, src, time.Minute, discardLogger())

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := c.Recipients(context.Background(), "c1")
			assert.NoError(t, err)
			results[i] = ids
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
	for _, ids := range results {
		assert.Equal(t, []string{"alice", "bob"}, ids)
	}
}

func TestRedisCacheAside(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	chatID := "cache-test-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { client.Del(ctx, key(chatID)) })

	src := &fakeSource{members: map[string][]string{chatID: {"alice", "bob"}}}
	c := New(client, src, time.Minute, discardLogger())

	ids, err := c.Recipients(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)

	ids, err = c.Recipients(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
	assert.EqualValues(t, 1, src.calls.Load(), "second lookup should be served from Redis")

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)

	ttl, err := client.TTL(ctx, key(chatID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	src.setMembers(chatID, "alice", "bob", "carol")
	require.NoError(t, c.Invalidate(ctx, chatID))

	ids, err = c.Recipients(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestRedisCorruptEntryFallsBack(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	chatID := "cache-corrupt-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { client.Del(ctx, key(chatID)) })

	require.NoError(t, client.Set(ctx, key(chatID), "not json", time.Minute).Err())

	src := &fakeSource{members: map[string][]string{chatID: {"alice"}}}
	c := New(client, src, time.Minute, discardLogger())

	ids, err := c.Recipients(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)
	assert.EqualValues(t, 1, c.Stats().Errors)
}

func TestInvalidateStartsFreshLoad(t *testing.T) {
	src := &fakeSource{
		members:   map[string][]string{"c1": {"alice", "bob"}},
		holdFirst: make(chan struct{}),
		started:   make(chan struct{}, 4),
	}
	c := New(nil, src, time.Minute, discardLogger())
	ctx := context.Background()

	stale := make(chan []string, 1)
	go func() {
		ids, err := c.Recipients(ctx, "c1")
		assert.NoError(t, err)
		stale <- ids
	}()
	<-src.started

	src.setMembers("c1", "alice")
	require.NoError(t, c.Invalidate(ctx, "c1"))

	ids, err := c.Recipients(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids, "lookup after invalidation must not join the old load")
	assert.EqualValues(t, 2, src.calls.Load())

	close(src.holdFirst)
	assert.Equal(t, []string{"alice", "bob"}, <-stale)
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	src := &fakeSource{
		members: map[string][]string{"c1": {"alice", "bob"}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 4),
	}
	c := New(nil, src, time.Minute, discardLogger())

	first, cancel := context.WithCancel(context.Background())
	go func() { _, _ = c.Recipients(first, "c1") }()
	<-src.started

	waiter := make(chan error, 1)
	go func() {
		_, err := c.Recipients(context.Background(), "c1")
		waiter <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	close(src.gate)

	assert.NoError(t, <-waiter)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestRedisSkipsWriteBackAfterInvalidation(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	chatID := "cache-race-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { client.Del(ctx, key(chatID)) })

	src := &fakeSource{
		members:   map[string][]string{chatID: {"alice", "bob"}},
		holdFirst: make(chan struct{}),
		started:   make(chan struct{}, 4),
	}
	c := New(client, src, time.Minute, discardLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Recipients(ctx, chatID)
		assert.NoError(t, err)
	}()
	<-src.started

	src.setMembers(chatID, "alice")
	require.NoError(t, c.Invalidate(ctx, chatID))
	close(src.holdFirst)
	<-done

	exists, err := client.Exists(ctx, key(chatID)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "stale list must not be cached")

	ids, err := c.Recipients(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)
}
