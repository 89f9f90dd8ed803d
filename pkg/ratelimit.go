package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter gates calls to a shared downstream such as the payment provider.
type Limiter interface {
	Allow(ctx context.Context) bool
}

// windowCounter increments the counter for key and returns the new value. The key expires after ttl.
type windowCounter func(ctx context.Context, key string, ttl time.Duration) (int64, error)

// DistributedLimiter enforces a per-replica token bucket and, when Redis is available,
// a fixed-window budget shared by every order-api replica.
type DistributedLimiter struct {
	local  *rate.Limiter
	count  windowCounter
	key    string
	window time.Duration
	budget int64
	logger *zap.Logger
	now    func() time.Time
}

// NewDistributedLimiter allows perWindow calls per window across replicas. perWindow <= 0 disables limiting.
// A nil redis client enforces the local bucket only.
func NewDistributedLimiter(redisClient *redis.Client, key string, perWindow, burst int, window time.Duration, logger *zap.Logger) *DistributedLimiter {
	if window <= 0 {
		window = time.Second
	}
	d := &DistributedLimiter{key: key, window: window, budget: int64(perWindow), logger: logger, now: time.Now}
	if perWindow <= 0 {
		return d
	}
	if burst <= 0 {
		burst = perWindow
	}
	d.local = rate.NewLimiter(rate.Limit(float64(perWindow)/window.Seconds()), burst)
	if redisClient != nil {
		d.count = redisWindowCounter(redisClient)
	}
	return d
}

func redisWindowCounter(client *redis.Client) windowCounter {
	return func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
		pipe := client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return incr.Val(), nil
	}
}

// Allow takes a local token first, then a slot in the current shared window.
// Redis errors fall back to the local decision.
func (d *DistributedLimiter) Allow(ctx context.Context) bool {
	if d.local == nil {
		return true
	}
	if !d.local.Allow() {
		return false
	}
	if d.count == nil {
		return true
	}

	slot := d.now().UnixNano() / int64(d.window)
	key := fmt.Sprintf("%s:%d", d.key, slot)
	n, err := d.count(ctx, key, 2*d.window)
	if err != nil {
		d.logger.Error("shared rate limit unavailable, using local limit", zap.String("key", key), zap.Error(err))
		return true
	}
	if n > d.budget {
		d.logger.Warn("shared rate limit exceeded", zap.String("key", key), zap.Int64("count", n), zap.Int64("budget", d.budget))
		return false
	}
	return true
}
