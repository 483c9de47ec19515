package security

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// nonceConsumed is the opaque value stored for a burnt nonce. Presence of
// the key is what matters, not the value.
const nonceConsumed = "consumed"

// ReplayGuard ensures each token nonce is consumable exactly once within
// the token's validity window. The check-and-set is a single atomic SETNX
// against the shared store, so concurrent requests presenting the same
// token race there and exactly one wins, across all bridge instances.
type ReplayGuard struct {
	redis   *redis.Client
	timeout time.Duration
}

// NewReplayGuard creates a replay guard.
func NewReplayGuard(client *redis.Client, timeout time.Duration) *ReplayGuard {
	return &ReplayGuard{redis: client, timeout: timeout}
}

// Consume atomically claims the nonce. It returns true when this caller is
// the first to present it (Fresh) and false when the nonce was already
// consumed. The nonce record expires with the token's remaining validity,
// so a present record always means "already used".
//
// On store failure Consume fails open: it returns fresh=true together with
// the error so the caller can log the degraded path.
func (g *ReplayGuard) Consume(ctx context.Context, nonceID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// Already past the token's expiry; nothing worth recording. The
		// validator rejects expired tokens before this point.
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	fresh, err := g.redis.SetNX(ctx, noncePrefix+nonceID, nonceConsumed, ttl).Result()
	if err != nil {
		// Fail open: never block authentication on an infrastructure
		// outage. The caller logs this as a degraded check.
		return true, err
	}

	return fresh, nil
}
