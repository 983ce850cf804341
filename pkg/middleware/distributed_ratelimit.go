package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter is a fixed-window counter in Redis, shared by every
// instance pointing at the same server.
type DistributedRateLimiter struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, prefix string) *DistributedRateLimiter {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "whiskey:ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (rl *DistributedRateLimiter) key(class LimitClass, client string) string {
	return fmt.Sprintf("%s:%s:%s", rl.prefix, class.Name, client)
}

// Allow increments the window counter. The window starts with the first
// request, when the key is given its expiry. On Redis errors it returns an
// allowing Decision together with the error.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, class LimitClass, client string) (Decision, error) {
	redisKey := rl.key(class, client)

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: class.Max, Remaining: class.Max}, fmt.Errorf("redis error: %w", err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		if err := rl.redis.PExpire(ctx, redisKey, class.Window).Err(); err != nil {
			return Decision{Allowed: true, Limit: class.Max, Remaining: class.Max}, fmt.Errorf("redis error: %w", err)
		}
		ttl = class.Window
	}

	return decide(class, int(incr.Val()), rl.now().Add(ttl)), nil
}

// Reset clears the counter for a client.
func (rl *DistributedRateLimiter) Reset(ctx context.Context, class LimitClass, client string) error {
	return rl.redis.Del(ctx, rl.key(class, client)).Err()
}
