package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewLimiter(client, limit, time.Minute), mr
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "login", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := l.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	// separate purpose and ip have their own counters
	ok, err = l.Allow(ctx, "register", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "login", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "login", "ip")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "login", "ip")
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = l.Allow(ctx, "login", "ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_RearmsCounterWithoutTTL(t *testing.T) {
	l, mr := newTestLimiter(t, 2)
	ctx := context.Background()

	// a counter over the limit with no expiry would otherwise block forever
	require.NoError(t, mr.Set(key("login", "ip"), "5"))

	ok, err := l.Allow(ctx, "login", "ip")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key("login", "ip")))

	mr.FastForward(time.Minute + time.Second)

	ok, err = l.Allow(ctx, "login", "ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_WindowNotExtendedByLaterHits(t *testing.T) {
	l, mr := newTestLimiter(t, 5)
	ctx := context.Background()

	_, err := l.Allow(ctx, "login", "ip")
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)
	_, err = l.Allow(ctx, "login", "ip")
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, mr.TTL(key("login", "ip")))
}

type failFirstPipeline struct {
	failed bool
}

func (h *failFirstPipeline) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failFirstPipeline) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *failFirstPipeline) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if !h.failed {
			h.failed = true
			return errors.New("connection reset by peer")
		}
		return next(ctx, cmds)
	}
}

func TestLimiter_FailedWriteDoesNotLockOut(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	client.AddHook(&failFirstPipeline{})

	l := NewLimiter(client, 2, time.Minute)
	ctx := context.Background()

	_, err := l.Allow(ctx, "login", "ip")
	require.Error(t, err)

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "login", "ip")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, time.Minute, mr.TTL(key("login", "ip")))

	mr.FastForward(24 * time.Hour)

	ok, err := l.Allow(ctx, "login", "ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	mr.Close()

	_, err := l.Allow(context.Background(), "login", "ip")
	assert.Error(t, err)
}
