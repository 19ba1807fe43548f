package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBucket(t *testing.T, clock *fakeClock) *TokenBucket {
	t.Helper()
	b := NewTokenBucket(context.Background(), 1, 5, WithClock(clock.Now))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestTokenBucket_Consume(t *testing.T) {
	clock := newFakeClock()
	b := newTestBucket(t, clock)
	ctx := context.Background()

	d, err := b.Consume(ctx, "ip:1", 3)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 2, d.Remaining)

	d, err = b.Consume(ctx, "ip:1", 3)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, 2, d.Remaining, "rejected batches do not consume tokens")
	assert.Equal(t, time.Second, d.RetryAfter)

	clock.Advance(time.Second)
	d, err = b.Consume(ctx, "ip:1", 3)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 0, d.Remaining)
}

func TestTokenBucket_BatchLargerThanBurst(t *testing.T) {
	b := newTestBucket(t, newFakeClock())

	d, err := b.Consume(context.Background(), "ip:1", 6)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Zero(t, d.RetryAfter, "a batch above capacity can never be admitted")
	assert.Equal(t, 5, d.Remaining)
}

func TestTokenBucket_KeysAreIsolated(t *testing.T) {
	b := newTestBucket(t, newFakeClock())
	ctx := context.Background()

	d, err := b.Consume(ctx, "tenant:a", 5)
	require.NoError(t, err)
	require.True(t, d.Accepted)

	d, err = b.Consume(ctx, "tenant:b", 5)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 2, b.Len())
}

func TestTokenBucket_Prune(t *testing.T) {
	clock := newFakeClock()
	b := NewTokenBucket(context.Background(), 1, 5, WithClock(clock.Now), WithIdleTTL(time.Minute))
	defer b.Close()

	_, err := b.Consume(context.Background(), "old", 1)
	require.NoError(t, err)
	clock.Advance(45 * time.Second)
	_, err = b.Consume(context.Background(), "fresh", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, b.Prune(clock.Now().Add(30*time.Second)))
	assert.Equal(t, 1, b.Len())
}

func TestTokenBucket_ZeroItems(t *testing.T) {
	b := newTestBucket(t, newFakeClock())

	d, err := b.Consume(context.Background(), "k", 0)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 5, d.Remaining)
}

func TestTokenBucket_CloseIsIdempotent(t *testing.T) {
	b := NewTokenBucket(context.Background(), 1, 1)
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Ping(context.Background()))
}
