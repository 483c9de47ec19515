package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/chatterdocs/entbridge/pkg/httputil"
	"github.com/chatterdocs/entbridge/pkg/security"
)

// maxSummaryDays caps the audit summary range a caller can request.
const maxSummaryDays = 30

// AuthService is the authentication pipeline behind the handlers.
type AuthService interface {
	Authenticate(ctx context.Context, token, clientIP string) (*security.Result, error)
	Summarize(ctx context.Context, days int) (*security.AuditSummary, error)
}

// AuthHandlers handles enterprise authentication HTTP requests
type AuthHandlers struct {
	service AuthService
	log     *logrus.Logger
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(service AuthService, log *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{service: service, log: log}
}

// RegisterRoutes registers enterprise authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auth/enterprise/login", h.login).Methods("POST")
	router.HandleFunc("/api/v1/auth/enterprise/security/summary", h.securitySummary).Methods("GET")
}

// login handles POST /api/v1/auth/enterprise/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		var req struct {
			Token string `json:"token"`
		}
		if err := httputil.ParseJSON(r, &req); err == nil {
			token = req.Token
		}
	}
	if token == "" {
		httputil.WriteBadRequest(w, "missing authentication token")
		return
	}

	result, err := h.service.Authenticate(r.Context(), token, httputil.ClientIP(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// writeAuthError collapses every rejection into one generic message.
// The specific reason stays in the logs and the audit trail; echoing it to
// the caller would tell an attacker which check to work around.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, security.ErrDisabled) {
		httputil.WriteError(w, http.StatusNotImplemented, "enterprise authentication is not enabled")
		return
	}

	var rej *security.Rejection
	if errors.As(err, &rej) {
		h.log.WithFields(logrus.Fields{
			"reason": string(rej.Reason),
			"remote": httputil.ClientIP(r),
		}).Warn("enterprise login rejected")

		if rej.Reason == security.ReasonRateLimited {
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		if !rej.Reason.Security() {
			httputil.WriteInternalError(w, "authentication failed")
			return
		}
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	h.log.WithError(err).Error("enterprise login failed")
	httputil.WriteInternalError(w, "authentication failed")
}

// securitySummary handles GET /api/v1/auth/enterprise/security/summary?days=N
func (h *AuthHandlers) securitySummary(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.ParseQueryInt(r, "days", 7)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if days < 1 || days > maxSummaryDays {
		httputil.WriteBadRequest(w, "days must be between 1 and 30")
		return
	}

	summary, err := h.service.Summarize(r.Context(), days)
	if err != nil {
		h.log.WithError(err).Error("failed to build security summary")
		httputil.WriteInternalError(w, "failed to build security summary")
		return
	}

	httputil.WriteSuccess(w, summary)
}

// bearerToken extracts a bearer credential from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
