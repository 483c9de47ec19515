// Package security implements the enterprise token security-validation
// pipeline and its replay/rate-limit state machine.
//
// # Pipeline
//
// A request travels through the checks in order; any failure is terminal
// for that request:
//
//	Received -> StructurallyValid -> SecurityChecked -> Provisioning -> Authenticated
//	     \            \                  \                  \
//	      +------------+------------------+------------------+--> Rejected(reason)
//
//   - Validator: HS256 signature, expiry, max token age, required claims,
//     role whitelist
//   - OriginFilter: caller IP against the configured allow-list (IP/CIDR)
//   - ReplayGuard: at-most-once nonce consumption via atomic SETNX
//   - SlidingWindowLimiter: per-user and per-origin request caps
//   - AbuseDetector: failure-ledger suspicion check before provisioning
//   - AuditRecorder: asynchronous, bounded, time-partitioned event log
//
// # State
//
// All mutable state lives in the shared Redis store under the "entbridge:"
// namespace; the components themselves are stateless and safe for
// concurrent use from any number of processes. Replay and rate-limit
// updates are single atomic store operations (SETNX and MULTI/EXEC
// transactions), never read-then-write round-trips.
//
// # Failure policy
//
// Replay and rate-limit checks fail open on store outages (logged as
// degraded); token validation has no store dependency and fails closed on
// malformed input. Audit writes are fire-and-forget: errors are logged and
// swallowed, and the bounded queue drops its oldest entry on overflow so
// the authentication path never blocks on log persistence.
//
// # Usage
//
//	svc := security.NewService(cfg.Enterprise, redisClient, provisioner, metrics, log)
//	defer svc.Close()
//
//	result, err := svc.Authenticate(ctx, token, httputil.ClientIP(r))
//	var rej *security.Rejection
//	if errors.As(err, &rej) {
//		// rej.Reason for logs; present a generic failure to the caller
//	}
package security
