package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/chatterdocs/entbridge/pkg/config"
	"github.com/chatterdocs/entbridge/pkg/httputil"
)

// Server represents the bridge API server
type Server struct {
	router *mux.Router
	auth   *AuthHandlers
	log    *logrus.Logger
}

// NewServer creates a new API server
func NewServer(authHandlers *AuthHandlers, log *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		auth:   authHandlers,
		log:    log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RecoveryMiddleware(s.log))
	s.router.Use(httputil.LoggingMiddleware(s.log))

	s.auth.RegisterRoutes(s.router)
}

// Router exposes the configured router for embedding in an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAddr builds the bind address from server config.
func ListenAddr(cfg config.ServerConfig) string {
	return cfg.Host + ":" + cfg.Port
}
