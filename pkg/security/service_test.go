package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterdocs/entbridge/pkg/auth"
	"github.com/chatterdocs/entbridge/pkg/config"
	"github.com/chatterdocs/entbridge/pkg/observability"
)

type fakeProvisioner struct {
	calls    int
	lastRole auth.Role
	err      error
}

func (f *fakeProvisioner) Provision(ctx context.Context, claims *ClaimSet, role auth.Role) (*auth.User, error) {
	f.calls++
	f.lastRole = role
	if f.err != nil {
		return nil, f.err
	}
	return &auth.User{
		ID:               "user-1",
		EnterpriseUserID: claims.UserID,
		Email:            claims.Email,
		Nickname:         claims.Nickname,
		IsActive:         true,
	}, nil
}

func testEnterpriseConfig() config.EnterpriseConfig {
	return config.EnterpriseConfig{
		Enabled:      true,
		JWTSecret:    testSecret,
		TokenMaxAge:  time.Hour,
		RoleMapping:  testRoleMapping(),
		RateLimit:    config.RateLimitConfig{Limit: 10, Window: time.Minute},
		Abuse:        testAbuseConfig(),
		Audit:        testAuditConfig(),
		StoreTimeout: time.Second,
	}
}

func newTestService(t *testing.T, mutate func(*config.EnterpriseConfig)) (*Service, *miniredis.Miniredis, *fakeProvisioner) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := testEnterpriseConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	prov := &fakeProvisioner{}
	svc := NewService(cfg, client, prov, observability.NewMetrics(nil), quietLogger())
	t.Cleanup(svc.Close)
	return svc, mr, prov
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, mr, prov := newTestService(t, nil)

	token := signToken(t, testSecret, nil)
	result, err := svc.Authenticate(context.Background(), token, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "ent-1", result.User.EnterpriseUserID)
	assert.Equal(t, auth.RoleAdmin, result.Role)
	assert.True(t, result.Permissions[auth.PermissionManageKnowledge])
	assert.True(t, result.Permissions[auth.PermissionChat])
	assert.Equal(t, 1, prov.calls)
	assert.Equal(t, auth.RoleAdmin, prov.lastRole)

	// The token's nonce is burnt in the shared store.
	keys := mr.Keys()
	var nonceFound bool
	for _, k := range keys {
		if len(k) > len(noncePrefix) && k[:len(noncePrefix)] == noncePrefix {
			nonceFound = true
		}
	}
	assert.True(t, nonceFound)
}

func TestAuthenticateDisabled(t *testing.T) {
	svc, _, prov := newTestService(t, func(cfg *config.EnterpriseConfig) {
		cfg.Enabled = false
	})

	_, err := svc.Authenticate(context.Background(), signToken(t, testSecret, nil), "10.0.0.1")
	require.ErrorIs(t, err, ErrDisabled)
	assert.Zero(t, prov.calls)
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	svc, mr, prov := newTestService(t, nil)

	_, err := svc.Authenticate(context.Background(), "not-a-token", "10.0.0.1")
	requireRejection(t, err, ReasonInvalidToken)
	assert.Zero(t, prov.calls)

	// The failure lands in the origin's ledger even without an identity.
	assert.True(t, mr.Exists(failurePrefix+"ip:10.0.0.1"))
}

func TestAuthenticateRejectsDisallowedOrigin(t *testing.T) {
	svc, _, prov := newTestService(t, func(cfg *config.EnterpriseConfig) {
		cfg.AllowedOrigins = []string{"10.0.0.0/8"}
	})

	_, err := svc.Authenticate(context.Background(), signToken(t, testSecret, nil), "192.168.1.5")
	requireRejection(t, err, ReasonOriginRejected)
	assert.Zero(t, prov.calls)
}

func TestAuthenticateAllowsListedOrigin(t *testing.T) {
	svc, _, _ := newTestService(t, func(cfg *config.EnterpriseConfig) {
		cfg.AllowedOrigins = []string{"10.0.0.0/8"}
	})

	_, err := svc.Authenticate(context.Background(), signToken(t, testSecret, nil), "10.20.30.40")
	require.NoError(t, err)
}

func TestAuthenticateDetectsReplay(t *testing.T) {
	svc, _, prov := newTestService(t, nil)
	token := signToken(t, testSecret, nil)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, token, "10.0.0.1")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, token, "10.0.0.1")
	requireRejection(t, err, ReasonReplayDetected)
	assert.Equal(t, 1, prov.calls, "replayed token must not reach provisioning")
}

func TestAuthenticateRateLimits(t *testing.T) {
	svc, _, _ := newTestService(t, func(cfg *config.EnterpriseConfig) {
		cfg.RateLimit = config.RateLimitConfig{Limit: 2, Window: time.Minute}
	})
	ctx := context.Background()

	// Fresh token each time; the limit binds the identity, not the token.
	for i := 0; i < 2; i++ {
		_, err := svc.Authenticate(ctx, signToken(t, testSecret, func(c *ClaimSet) {
			c.ID = uuid.NewString()
		}), "10.0.0.1")
		require.NoError(t, err)
	}

	_, err := svc.Authenticate(ctx, signToken(t, testSecret, func(c *ClaimSet) {
		c.ID = uuid.NewString()
	}), "10.0.0.1")
	requireRejection(t, err, ReasonRateLimited)
}

func TestAuthenticateBlocksSuspiciousIdentity(t *testing.T) {
	svc, _, prov := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.abuse.RecordFailure(ctx, "ent-1", "10.0.0.1"))
	}

	_, err := svc.Authenticate(ctx, signToken(t, testSecret, nil), "10.0.0.1")
	requireRejection(t, err, ReasonSuspiciousActivity)
	assert.Zero(t, prov.calls, "suspicious identities never reach the user store")
}

func TestAuthenticateProvisioningFailure(t *testing.T) {
	svc, _, prov := newTestService(t, nil)
	prov.err = errors.New("database unavailable")

	_, err := svc.Authenticate(context.Background(), signToken(t, testSecret, nil), "10.0.0.1")

	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonProvisioningFailed, rej.Reason)
	assert.False(t, rej.Reason.Security())
	assert.ErrorIs(t, err, prov.err)
}

func TestAuthenticateSuccessClearsLedger(t *testing.T) {
	svc, mr, _ := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.abuse.RecordFailure(ctx, "ent-1", "10.0.0.1"))
	}
	require.True(t, mr.Exists(failurePrefix+"user:ent-1"))

	_, err := svc.Authenticate(ctx, signToken(t, testSecret, nil), "10.0.0.1")
	require.NoError(t, err)

	assert.False(t, mr.Exists(failurePrefix+"user:ent-1"))
	assert.False(t, mr.Exists(failurePrefix+"ip:10.0.0.1"))
}

func TestAuthenticateWritesAuditTrail(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, signToken(t, testSecret, nil), "10.0.0.1")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "garbage", "10.0.0.1")
	require.Error(t, err)

	svc.Close()

	summary, err := svc.Summarize(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessfulLogins)
	assert.Equal(t, 1, summary.FailedLogins)
	assert.Equal(t, 1, summary.ActiveUsers)
	assert.GreaterOrEqual(t, summary.TotalEvents, 4)
}
