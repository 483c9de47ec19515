package security

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// SlidingWindowLimiter caps request counts per key over a trailing window.
// State lives in a shared-store sorted set keyed by timestamp score, so the
// limit holds across all bridge instances. Eviction, counting, insertion
// and TTL refresh execute as one MULTI/EXEC transaction per check; eviction
// runs first so expired entries never count against the cap.
type SlidingWindowLimiter struct {
	redis   *redis.Client
	limit   int
	window  time.Duration
	timeout time.Duration
}

// NewSlidingWindowLimiter creates a limiter with the given per-window cap.
func NewSlidingWindowLimiter(client *redis.Client, limit int, window, timeout time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:   client,
		limit:   limit,
		window:  window,
		timeout: timeout,
	}
}

// Admit records a request for the key and reports whether it is within the
// limit. The admitted request itself is always recorded, so a throttled
// caller keeps pushing its window forward by retrying.
//
// On store failure Admit fails open (admitted=true) together with the
// error; availability wins over strict enforcement for this check.
func (l *SlidingWindowLimiter) Admit(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	now := time.Now()
	redisKey := ratePrefix + key
	cutoff := strconv.FormatFloat(unixSeconds(now.Add(-l.window)), 'f', 6, 64)

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", cutoff)
	card := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, &redis.Z{
		Score: unixSeconds(now),
		// Unique member per request; a plain timestamp would collapse
		// concurrent requests arriving in the same instant.
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}

	return card.Val() < int64(l.limit), nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
