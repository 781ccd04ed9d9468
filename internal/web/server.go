// Package web provides the HTTP server and handlers for the import service.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/config"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
	mw "github.com/welleazyhts/CRM-p360-frontend-sub007/internal/web/middleware"
)

// Server is the HTTP server for the import service.
type Server struct {
	service  *importer.Service
	cfg      *config.Config
	gatherer prometheus.Gatherer
	ready    func(context.Context) error

	router      *chi.Mux
	server      *http.Server
	rateLimiter *mw.RateLimiter
	stop        context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithReadiness makes /healthz report 503 while fn fails.
func WithReadiness(fn func(context.Context) error) Option {
	return func(s *Server) { s.ready = fn }
}

// NewServer creates a Server. gatherer backs /metrics and may be nil.
func NewServer(cfg *config.Config, service *importer.Service, gatherer prometheus.Gatherer, opts ...Option) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.rateLimiter = mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.rateLimiter.Handler)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))
		if s.cfg.Import.Timeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Import.Timeout))
		}

		// Duplicate settings
		r.Get("/dedupe/settings", s.handleGetSettings)
		r.Put("/dedupe/settings", s.handleSaveSettings)
		r.Post("/dedupe/check/{source}", s.handleCheckRecord)

		// Imports
		r.Get("/import/columns", s.handleListColumns)
		r.Get("/import/history", s.handleHistory)
		r.Get("/import/status", s.handleImportStatus)
		r.Post("/import/{source}", s.handleImport)
		r.Post("/import/{source}/preview", s.handlePreview)
	})
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	if s.rateLimiter != nil {
		go s.rateLimiter.RunCleanup(ctx)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status. Encoding errors are logged since
// headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode", "error", err)
	}
}
