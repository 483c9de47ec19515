package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// unreachableRedis returns a client whose every command fails.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:       "127.0.0.1:1",
		MaxRetries: -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestReplayGuardConsumeOnce(t *testing.T) {
	_, client := newTestRedis(t)
	guard := NewReplayGuard(client, time.Second)
	ctx := context.Background()

	fresh, err := guard.Consume(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = guard.Consume(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestReplayGuardIndependentNonces(t *testing.T) {
	_, client := newTestRedis(t)
	guard := NewReplayGuard(client, time.Second)
	ctx := context.Background()

	fresh, err := guard.Consume(ctx, "nonce-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = guard.Consume(ctx, "nonce-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestReplayGuardRecordExpiresWithToken(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewReplayGuard(client, time.Second)

	_, err := guard.Consume(context.Background(), "nonce-ttl", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL(noncePrefix+"nonce-ttl"))

	// Once the token itself has expired the record is gone and the nonce
	// could be presented again; the validator rejects it first.
	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists(noncePrefix+"nonce-ttl"))
}

func TestReplayGuardSkipsExpiredTokens(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewReplayGuard(client, time.Second)

	fresh, err := guard.Consume(context.Background(), "nonce-dead", 0)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.False(t, mr.Exists(noncePrefix+"nonce-dead"))
}

func TestReplayGuardFailsOpen(t *testing.T) {
	guard := NewReplayGuard(unreachableRedis(t), 100*time.Millisecond)

	fresh, err := guard.Consume(context.Background(), "nonce-x", time.Minute)
	require.Error(t, err)
	assert.True(t, fresh)
}
