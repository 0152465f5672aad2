// Package http is the HTTP adapter: routing, request decoding, auth
// middleware and the mapping from service errors to statuses. All domain
// decisions live below it.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"snipr/internal/auth"
)

// ServerConfig carries the pieces the router needs beyond the handlers.
type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// Server owns the http.Server and the route table.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer wires the route table. API routes sit behind the key
// middleware, admin routes behind the admin token, and the redirect surface
// is public.
func NewServer(
	cfg ServerConfig,
	mw *auth.Middleware,
	links *LinksHandler,
	redirect *RedirectHandler,
	admin *AdminHandler,
	health *HealthHandler,
	log *zap.Logger,
) *Server {
	mux := http.NewServeMux()

	// Public surface.
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /ready", health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{code}", redirect.Redirect)
	mux.HandleFunc("POST /{code}", redirect.Resolve)

	// Authenticated link management.
	mux.HandleFunc("POST /api/shorten", mw.RequireAPIKey(links.Create))
	mux.HandleFunc("POST /api/shorten/bulk", mw.RequireAPIKey(links.BulkCreate))
	mux.HandleFunc("GET /api/links", mw.RequireAPIKey(links.List))
	mux.HandleFunc("GET /api/links/{code}", mw.RequireAPIKey(links.Get))
	mux.HandleFunc("PATCH /api/links/{code}", mw.RequireAPIKey(links.Update))
	mux.HandleFunc("DELETE /api/links/{code}", mw.RequireAPIKey(links.Delete))
	mux.HandleFunc("POST /api/links/{code}/toggle", mw.RequireAPIKey(links.Toggle))
	mux.HandleFunc("POST /api/links/{code}/clone", mw.RequireAPIKey(links.Clone))
	mux.HandleFunc("GET /api/stats/{code}", mw.RequireAPIKey(links.Stats))

	// Super-admin surface.
	mux.HandleFunc("POST /api/admin/keys", mw.RequireAdmin(admin.CreateKey))
	mux.HandleFunc("GET /api/admin/keys", mw.RequireAdmin(admin.ListKeys))
	mux.HandleFunc("PATCH /api/admin/keys/{id}", mw.RequireAdmin(admin.UpdateKey))
	mux.HandleFunc("DELETE /api/admin/keys/{id}", mw.RequireAdmin(admin.DeleteKey))
	mux.HandleFunc("POST /api/admin/keys/{id}/reset", mw.RequireAdmin(admin.ResetKeyUsage))
	mux.HandleFunc("GET /api/admin/links/{code}", mw.RequireAdmin(admin.GetLink))
	mux.HandleFunc("DELETE /api/admin/links/{code}", mw.RequireAdmin(admin.DeleteLink))

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", auth.APIKeyHeader, auth.AdminTokenHeader, accessTokenHeader},
	})

	var handler http.Handler = mux
	handler = corsWrapper.Handler(handler)
	handler = loggingMiddleware(log)(handler)
	handler = metricsMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
