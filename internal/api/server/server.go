// Package server provides the HTTP server implementation
package server

// @title           authguard API
// @version         1.0
// @description     Authentication, session and security audit API.
// @x-skip-model-definitions true
//
// @description.markdown
// All API endpoints under /api/v1 are subject to a per-IP token bucket:
// * Default rate: 1000 requests per 60 seconds
// * Burst allowance: 50 requests
//
// Credential endpoints (register, login, resend-verification,
// forgot-password) share an additional fixed window of 100 requests per
// 15 minutes per IP.
//
// When a rate limit is exceeded:
// * Status code 429 (Too Many Requests) is returned
// * Headers:
//   - X-RateLimit-Remaining / RateLimit-Remaining: Requests left in the window
//   - X-RateLimit-Reset / RateLimit-Reset: When the limit resets
//   - Retry-After: Seconds to wait before retrying
//
// @host            localhost:5000
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token authentication
//
// @response 429 {object} models.ErrorResponse "Rate limit exceeded"

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"authguard/internal/api/routes"
	"authguard/internal/config"

	log "github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	http *http.Server
}

// New creates a new server instance for app
func New(cfg *config.Config, app *routes.App) (*Server, error) {
	port, err := strconv.Atoi(cfg.API.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port number: %w", err)
	}

	return &Server{
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: app.Engine,
		},
	}, nil
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	log.WithField("addr", s.http.Addr).Info("Starting server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
