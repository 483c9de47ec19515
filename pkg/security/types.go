package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Redis key prefixes. All bridge state is namespaced under "entbridge:" so
// it can share a store with other applications without collisions.
const (
	noncePrefix   = "entbridge:nonce:"
	ratePrefix    = "entbridge:rate:"
	failurePrefix = "entbridge:failures:"
	auditPrefix   = "entbridge:audit:"
)

// ClaimSet is the decoded payload of an enterprise bearer token.
type ClaimSet struct {
	jwt.RegisteredClaims

	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

// NonceID derives the replay-protection identifier for the token: the jti
// claim when the issuer set one, otherwise a deterministic hash of the
// issue time and subject so every distinct token still gets a stable ID.
func (c *ClaimSet) NonceID() string {
	if c.ID != "" {
		return c.ID
	}

	var iat int64
	if c.IssuedAt != nil {
		iat = c.IssuedAt.Unix()
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%d_%s", iat, c.UserID))
	return hex.EncodeToString(sum[:])
}

// RemainingValidity returns how long the token is still valid from now.
// Zero or negative means already expired.
func (c *ClaimSet) RemainingValidity(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// RejectionReason classifies why an authentication attempt was refused.
type RejectionReason string

const (
	ReasonInvalidToken       RejectionReason = "invalid_token"
	ReasonExpiredToken       RejectionReason = "expired_token"
	ReasonMissingClaim       RejectionReason = "missing_claim"
	ReasonInvalidRole        RejectionReason = "invalid_role"
	ReasonOriginRejected     RejectionReason = "origin_rejected"
	ReasonReplayDetected     RejectionReason = "replay_detected"
	ReasonRateLimited        RejectionReason = "rate_limited"
	ReasonSuspiciousActivity RejectionReason = "suspicious_activity"
	ReasonProvisioningFailed RejectionReason = "provisioning_failed"
)

// Security reports whether the reason is a security rejection, as opposed
// to a downstream provisioning failure.
func (r RejectionReason) Security() bool {
	return r != ReasonProvisioningFailed
}

// Rejection is the terminal failure of an authentication attempt. The
// reason is preserved for logging and audit; callers presenting results to
// external parties should collapse it to a generic message.
type Rejection struct {
	Reason RejectionReason
	Detail string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("authentication rejected: %s: %s", r.Reason, r.Detail)
	}
	return fmt.Sprintf("authentication rejected: %s", r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// reject builds a Rejection.
func reject(reason RejectionReason, detail string, err error) *Rejection {
	return &Rejection{Reason: reason, Detail: detail, Err: err}
}

// Audit event types. EventLogin is the literal matched by Summarize when
// counting successful and failed logins.
const (
	EventLogin              = "enterprise_login"
	EventTokenValidated     = "token_validation_success"
	EventTokenRejected      = "token_validation_failed"
	EventSuspiciousActivity = "suspicious_activity"
	EventUserCreated        = "enterprise_user_created"
	EventUserUpdated        = "enterprise_user_updated"
	EventProvisionFailed    = "enterprise_user_creation_failed"
)
