package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatterdocs/entbridge/pkg/auth"
)

// Validator verifies the structural and temporal validity of enterprise
// bearer tokens. Only HS256 is accepted; a token signed (or claiming to be
// signed) with any other algorithm fails verification, which closes the
// algorithm-confusion hole.
type Validator struct {
	secret      []byte
	maxTokenAge time.Duration
	roleMapping map[string]auth.Role
	parser      *jwt.Parser
}

// NewValidator creates a token validator from the enterprise config.
func NewValidator(secret string, maxTokenAge time.Duration, roleMapping map[string]auth.Role) *Validator {
	return &Validator{
		secret:      []byte(secret),
		maxTokenAge: maxTokenAge,
		roleMapping: roleMapping,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Validate parses and verifies the token and returns its claim set.
// Failures are *Rejection values with reasons InvalidToken, ExpiredToken,
// MissingClaim or InvalidRole.
func (v *Validator) Validate(tokenStr string) (*ClaimSet, error) {
	token, err := v.parser.ParseWithClaims(tokenStr, &ClaimSet{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, reject(ReasonExpiredToken, "token has expired", err)
		}
		// Signature mismatch, corrupt payload, wrong algorithm, missing
		// exp: all structural failures.
		return nil, reject(ReasonInvalidToken, "token verification failed", err)
	}

	claims, ok := token.Claims.(*ClaimSet)
	if !ok || !token.Valid {
		return nil, reject(ReasonInvalidToken, "unexpected claims type", nil)
	}

	if err := v.checkRequiredClaims(claims); err != nil {
		return nil, err
	}

	// Bound token lifetime by issue time independently of exp, so a far
	// future exp cannot keep a stale token alive.
	now := time.Now()
	if claims.IssuedAt != nil && now.Sub(claims.IssuedAt.Time) > v.maxTokenAge {
		return nil, reject(ReasonExpiredToken, "token exceeds maximum age", nil)
	}

	if _, ok := v.roleMapping[claims.Role]; !ok {
		return nil, reject(ReasonInvalidRole, "unrecognized enterprise role", nil)
	}

	return claims, nil
}

func (v *Validator) checkRequiredClaims(claims *ClaimSet) error {
	required := map[string]string{
		"user_id":   claims.UserID,
		"email":     claims.Email,
		"nickname":  claims.Nickname,
		"role":      claims.Role,
		"tenant_id": claims.TenantID,
	}
	for name, value := range required {
		if value == "" {
			return reject(ReasonMissingClaim, "missing required claim: "+name, nil)
		}
	}
	return nil
}
