package security

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/chatterdocs/entbridge/pkg/auth"
	"github.com/chatterdocs/entbridge/pkg/config"
	"github.com/chatterdocs/entbridge/pkg/observability"
)

// ErrDisabled is returned when enterprise authentication is switched off.
var ErrDisabled = errors.New("enterprise authentication is disabled")

// Provisioner creates or updates the local user and tenant-role mapping for
// a verified enterprise identity.
type Provisioner interface {
	Provision(ctx context.Context, claims *ClaimSet, role auth.Role) (*auth.User, error)
}

// Result is a successful authentication outcome.
type Result struct {
	User        *auth.User         `json:"user"`
	Role        auth.Role          `json:"role"`
	Permissions auth.PermissionSet `json:"permissions"`
}

// Service runs the full token security-validation pipeline:
//
//	validate -> origin -> replay -> rate limit -> abuse check -> provision
//
// Each instance is stateless; all cross-request coordination happens in the
// shared store, so any number of bridge processes can run this pipeline
// concurrently against the same tokens.
type Service struct {
	cfg         config.EnterpriseConfig
	validator   *Validator
	origins     *OriginFilter
	replay      *ReplayGuard
	limiter     *SlidingWindowLimiter
	abuse       *AbuseDetector
	audit       *AuditRecorder
	provisioner Provisioner
	metrics     *observability.Metrics
	log         *logrus.Logger
}

// NewService wires the pipeline from its parts.
func NewService(
	cfg config.EnterpriseConfig,
	client *redis.Client,
	provisioner Provisioner,
	metrics *observability.Metrics,
	log *logrus.Logger,
) *Service {
	return &Service{
		cfg:         cfg,
		validator:   NewValidator(cfg.JWTSecret, cfg.TokenMaxAge, cfg.RoleMapping),
		origins:     NewOriginFilter(cfg.AllowedOrigins, log),
		replay:      NewReplayGuard(client, cfg.StoreTimeout),
		limiter:     NewSlidingWindowLimiter(client, cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.StoreTimeout),
		abuse:       NewAbuseDetector(client, cfg.Abuse, cfg.StoreTimeout),
		audit:       NewAuditRecorder(client, cfg.Audit, cfg.StoreTimeout, log, metrics),
		provisioner: provisioner,
		metrics:     metrics,
		log:         log,
	}
}

// Audit exposes the recorder for the summary endpoint and for shutdown.
func (s *Service) Audit() *AuditRecorder {
	return s.audit
}

// Authenticate verifies the token, enforces the security checks, and
// provisions the user. It returns the authenticated user with resolved
// permissions, or a *Rejection describing why the attempt was refused.
// No retries happen inside; the enterprise system issues a fresh token and
// retries the whole flow.
func (s *Service) Authenticate(ctx context.Context, token, clientIP string) (*Result, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}

	claims, err := s.validator.Validate(token)
	if err != nil {
		s.fail(ctx, EventTokenRejected, "", clientIP, err)
		return nil, err
	}

	if !s.origins.Allowed(clientIP) {
		rej := reject(ReasonOriginRejected, "request from unauthorized origin", nil)
		s.fail(ctx, EventTokenRejected, claims.UserID, clientIP, rej)
		return nil, rej
	}

	fresh, err := s.replay.Consume(ctx, claims.NonceID(), claims.RemainingValidity(time.Now()))
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("replay_guard").Inc()
		s.log.WithError(err).Warn("replay check degraded, store unavailable")
	}
	if !fresh {
		rej := reject(ReasonReplayDetected, "token replay detected", nil)
		s.fail(ctx, EventTokenRejected, claims.UserID, clientIP, rej)
		return nil, rej
	}

	if !s.admit(ctx, claims.UserID, clientIP) {
		rej := reject(ReasonRateLimited, "rate limit exceeded", nil)
		s.fail(ctx, EventTokenRejected, claims.UserID, clientIP, rej)
		return nil, rej
	}

	// Consulted before any provisioning attempt; a suspicious identity
	// short-circuits without touching the user store or the ledger.
	suspicious, err := s.abuse.IsSuspicious(ctx, claims.UserID, clientIP)
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("abuse_detector").Inc()
		s.log.WithError(err).Warn("suspicious-activity check degraded, store unavailable")
	}
	if suspicious {
		rej := reject(ReasonSuspiciousActivity, "too many recent failures", nil)
		s.metrics.AuthAttemptsTotal.WithLabelValues("rejected", string(ReasonSuspiciousActivity)).Inc()
		s.audit.Record(EventSuspiciousActivity, claims.UserID, nil, false, clientIP)
		s.audit.Record(EventLogin, claims.UserID, map[string]interface{}{"reason": string(ReasonSuspiciousActivity)}, false, clientIP)
		return nil, rej
	}

	s.audit.Record(EventTokenValidated, claims.UserID, nil, true, clientIP)

	role := auth.MapEnterpriseRole(claims.Role, s.cfg.RoleMapping)

	user, err := s.provisioner.Provision(ctx, claims, role)
	if err != nil {
		s.metrics.ProvisioningTotal.WithLabelValues("failure").Inc()
		rej := reject(ReasonProvisioningFailed, "user provisioning failed", err)
		s.fail(ctx, EventProvisionFailed, claims.UserID, clientIP, rej)
		return nil, rej
	}
	s.metrics.ProvisioningTotal.WithLabelValues("success").Inc()

	if err := s.abuse.ClearFailures(ctx, claims.UserID, clientIP); err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("failure_ledger").Inc()
		s.log.WithError(err).Warn("failed to clear failure ledger")
	}

	s.metrics.AuthAttemptsTotal.WithLabelValues("authenticated", "").Inc()
	s.audit.Record(EventLogin, claims.UserID, map[string]interface{}{"email": claims.Email}, true, clientIP)

	return &Result{
		User:        user,
		Role:        role,
		Permissions: auth.PermissionsForRole(role),
	}, nil
}

// Summarize aggregates recent audit activity.
func (s *Service) Summarize(ctx context.Context, days int) (*AuditSummary, error) {
	return s.audit.Summarize(ctx, days)
}

// Close flushes the audit queue.
func (s *Service) Close() {
	s.audit.Close()
}

// admit applies the sliding-window limit to the user identity and the
// origin address; both must admit. Store failures fail open.
func (s *Service) admit(ctx context.Context, userID, clientIP string) bool {
	keys := make([]string, 0, 2)
	if userID != "" {
		keys = append(keys, "user:"+userID)
	}
	if clientIP != "" {
		keys = append(keys, "ip:"+clientIP)
	}

	for _, key := range keys {
		admitted, err := s.limiter.Admit(ctx, key)
		if err != nil {
			s.metrics.StoreErrorsTotal.WithLabelValues("rate_limiter").Inc()
			s.log.WithError(err).Warn("rate limit check degraded, store unavailable")
			continue
		}
		if !admitted {
			s.metrics.SecurityChecksTotal.WithLabelValues("rate_limit", "throttled").Inc()
			return false
		}
	}
	return true
}

// fail records a failed attempt in the audit log and the failure ledger.
func (s *Service) fail(ctx context.Context, eventType, userID, clientIP string, cause error) {
	reason := "unknown"
	var rej *Rejection
	if errors.As(cause, &rej) {
		reason = string(rej.Reason)
	}

	s.metrics.AuthAttemptsTotal.WithLabelValues("rejected", reason).Inc()
	s.audit.Record(eventType, userID, map[string]interface{}{"reason": reason}, false, clientIP)
	s.audit.Record(EventLogin, userID, map[string]interface{}{"reason": reason}, false, clientIP)

	if err := s.abuse.RecordFailure(ctx, userID, clientIP); err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("failure_ledger").Inc()
		s.log.WithError(err).Warn("failed to record authentication failure")
	}
}
