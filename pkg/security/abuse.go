package security

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/chatterdocs/entbridge/pkg/config"
)

// AbuseDetector tracks recent authentication failures per user identity and
// per origin address in separate shared-store ledgers, and flags either as
// suspicious once failures cross the configured threshold inside the
// suspicion window. A successful authentication wipes both ledgers.
type AbuseDetector struct {
	redis   *redis.Client
	cfg     config.AbuseConfig
	timeout time.Duration
}

// NewAbuseDetector creates an abuse detector.
func NewAbuseDetector(client *redis.Client, cfg config.AbuseConfig, timeout time.Duration) *AbuseDetector {
	return &AbuseDetector{redis: client, cfg: cfg, timeout: timeout}
}

// IsSuspicious reports whether the user or the origin has accumulated too
// many recent failures. Store errors yield false (not suspicious) plus the
// error; blocking everyone during an outage would be worse than letting
// the remaining checks decide.
func (d *AbuseDetector) IsSuspicious(ctx context.Context, userID, clientIP string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	now := time.Now()
	min := strconv.FormatFloat(unixSeconds(now.Add(-d.cfg.SuspicionWindow)), 'f', 6, 64)
	max := strconv.FormatFloat(unixSeconds(now), 'f', 6, 64)

	for _, key := range d.ledgerKeys(userID, clientIP) {
		count, err := d.redis.ZCount(ctx, key, min, max).Result()
		if err != nil {
			return false, err
		}
		if count >= int64(d.cfg.MaxFailures) {
			return true, nil
		}
	}

	return false, nil
}

// RecordFailure appends a timestamped failure to both ledgers, prunes
// entries older than the ledger TTL and refreshes each key's expiry.
func (d *AbuseDetector) RecordFailure(ctx context.Context, userID, clientIP string) error {
	keys := d.ledgerKeys(userID, clientIP)
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	now := time.Now()
	cutoff := strconv.FormatFloat(unixSeconds(now.Add(-d.cfg.LedgerTTL)), 'f', 6, 64)

	pipe := d.redis.TxPipeline()
	for _, key := range keys {
		pipe.ZAdd(ctx, key, &redis.Z{Score: unixSeconds(now), Member: uuid.NewString()})
		pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
		pipe.Expire(ctx, key, d.cfg.LedgerTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ClearFailures deletes both ledgers. Called only after a fully successful
// authentication and provisioning cycle.
func (d *AbuseDetector) ClearFailures(ctx context.Context, userID, clientIP string) error {
	keys := d.ledgerKeys(userID, clientIP)
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.redis.Del(ctx, keys...).Err()
}

func (d *AbuseDetector) ledgerKeys(userID, clientIP string) []string {
	var keys []string
	if userID != "" {
		keys = append(keys, failurePrefix+"user:"+userID)
	}
	if clientIP != "" {
		keys = append(keys, failurePrefix+"ip:"+clientIP)
	}
	return keys
}
