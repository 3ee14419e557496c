package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Defaults: 10 requests per 15 minutes per IP and purpose.
const (
	DefaultLimit  = 10
	DefaultWindow = 15 * time.Minute
)

// Limiter is a fixed-window request counter stored in Redis.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

func NewLimiter(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: int64(limit), window: window}
}

func key(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:%s:ip:%s", purpose, ip)
}

// Allow records one request for (purpose, ip) and reports whether it is
// within the limit. INCR and EXPIRE NX run in one transaction, so the window
// is anchored at the first request and a key that somehow lost its TTL is
// re-armed on the next hit.
func (l *Limiter) Allow(ctx context.Context, purpose, ip string) (bool, error) {
	k := key(purpose, ip)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record request: %w", err)
	}

	return incr.Val() <= l.limit, nil
}
