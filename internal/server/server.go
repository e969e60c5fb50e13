// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: it opens storage, builds the services
// and handlers, and decides which middleware runs on which routes.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → logger → server.New(cfg, logger)
//	server.New: sqlite.DB (+ redis denylist) → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/sprintium/internal/auth"
	"github.com/sakif/sprintium/internal/config"
	"github.com/sakif/sprintium/internal/handler"
	"github.com/sakif/sprintium/internal/metrics"
	"github.com/sakif/sprintium/internal/middleware"
	"github.com/sakif/sprintium/internal/repository"
	redisRepo "github.com/sakif/sprintium/internal/repository/redis"
	sqliteRepo "github.com/sakif/sprintium/internal/repository/sqlite"
	"github.com/sakif/sprintium/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection, the optional Redis client and
// the rate limiter's cleanup goroutine. Close releases all three; Start
// calls it on the way out.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	redis    *redisRepo.Denylist // nil when the denylist lives in SQLite
	denylist repository.TokenDenylist
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry

	passwords *auth.PasswordService
}

// Option customises a Server.
type Option func(*Server)

// WithPasswordService replaces the bcrypt settings. Tests pass a low cost.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// New opens storage and wires every route.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		logger:    logger,
		db:        db,
		denylist:  db,
		registry:  prometheus.NewRegistry(),
		passwords: auth.NewPasswordService(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Redis.URL != "" {
		rd, err := redisRepo.New(ctx, cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.redis = rd
		s.denylist = rd
	} else {
		n, err := db.PurgeRevoked(ctx, time.Now())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("purging revoked tokens: %w", err)
		}
		if n > 0 {
			logger.Info("purged expired denylist entries", slog.Int64("count", n))
		}
	}

	s.limiter = middleware.NewRateLimiter(
		middleware.PerMinute(cfg.Rate.AuthPerMinute, cfg.Rate.APIPerMinute), logger)

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                                liveness + DB ping
//	GET    /metrics                                Prometheus
//	POST   /auth/register|login                    rate limited per IP
//	POST   /auth/forgot-password|reset-password    rate limited per IP
//	POST   /auth/logout                  (bearer)
//	GET    /auth/me                      (bearer)
//	GET    /projects                     (bearer)  callers' projects
//	POST   /projects                     (bearer)
//	GET    /projects/{id}                (bearer)
//	PUT    /projects/{id}                (bearer)  Admin
//	DELETE /projects/{id}                (bearer)  Admin
//	POST   /projects/{id}/members        (bearer)  Admin
//	PATCH  /projects/{id}/members/{email}(bearer)  Admin
//	DELETE /projects/{id}/members/{email}(bearer)  Admin
//	GET    /projects/{id}/issues         (bearer)  any member
//	POST   /projects/{id}/issues         (bearer)  Admin, Member
//	DELETE /projects/{id}/issues/{iid}   (bearer)  Admin, Member
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so the log line and error logs carry it, Recoverer before
// anything that could panic, metrics and logging around the whole route.
func (s *Server) setupRoutes() error {
	collector := metrics.NewCollector(s.registry)
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	access, err := auth.NewTokenService(s.cfg.JWTSecret, auth.WithTTL(s.cfg.AccessTTL))
	if err != nil {
		return fmt.Errorf("access tokens: %w", err)
	}
	reset, err := auth.NewTokenService(s.cfg.ResetSecret,
		auth.WithAudience(auth.AudienceReset), auth.WithTTL(s.cfg.ResetTTL))
	if err != nil {
		return fmt.Errorf("reset tokens: %w", err)
	}

	authService := service.NewAuthService(service.AuthDeps{
		Users:     s.db,
		Denylist:  s.denylist,
		Access:    access,
		Reset:     reset,
		Passwords: s.passwords,
		Metrics:   collector,
	}, s.logger)
	projectService := service.NewProjectService(s.db, s.db, s.logger)
	membershipService := service.NewMembershipService(s.db, s.db, collector, s.logger)
	issueService := service.NewIssueService(s.db, s.db, s.db, collector, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	projectHandler := handler.NewProjectHandler(projectService, membershipService, s.logger)
	issueHandler := handler.NewIssueHandler(issueService, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(collector.Middleware)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	// === Public auth routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(s.limiter.AuthMiddleware())
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/forgot-password", authHandler.HandleForgotPassword)
		r.Post("/auth/reset-password", authHandler.HandleResetPassword)
	})

	// === Protected routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(access, s.denylist, s.logger))
		r.Use(s.limiter.APIMiddleware())

		r.Post("/auth/logout", authHandler.HandleLogout)
		r.Get("/auth/me", authHandler.HandleMe)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectHandler.HandleList)
			r.Post("/", projectHandler.HandleCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.HandleGet)
				r.Put("/", projectHandler.HandleUpdate)
				r.Delete("/", projectHandler.HandleDelete)

				r.Post("/members", projectHandler.HandleAddMember)
				r.Patch("/members/{email}", projectHandler.HandleSetMemberRole)
				r.Delete("/members/{email}", projectHandler.HandleRemoveMember)

				r.Get("/issues", issueHandler.HandleList)
				r.Post("/issues", issueHandler.HandleCreate)
				r.Delete("/issues/{iid}", issueHandler.HandleDelete)
			})
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, `{"status":"unavailable"}`)
		return
	}
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// Handler returns the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the rate limiter and closes storage.
func (s *Server) Close() error {
	s.limiter.Stop()
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
			slog.String("database", s.cfg.DBPath),
			slog.Bool("redis_denylist", s.redis != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
