// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, services, the
// catalog core, handlers and middleware, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.FileConfig → Server.New() creates:
//	  sqlite.DB ─┬→ SpeciesService ─→ catalog.Sessions ─→ CatalogHandler
//	             │        ↓ publishes      ↑ re-fetch
//	             │    events.Hub ──(Redis relay, optional)
//	             └→ AuthService ─→ AuthHandler
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
	"github.com/redis/go-redis/v9"

	"github.com/sakif/species-catalog/internal/auth"
	"github.com/sakif/species-catalog/internal/catalog"
	"github.com/sakif/species-catalog/internal/config"
	"github.com/sakif/species-catalog/internal/events"
	"github.com/sakif/species-catalog/internal/handler"
	"github.com/sakif/species-catalog/internal/metrics"
	"github.com/sakif/species-catalog/internal/middleware"
	"github.com/sakif/species-catalog/internal/ratelimit"
	sqliteRepo "github.com/sakif/species-catalog/internal/repository/sqlite"
	"github.com/sakif/species-catalog/internal/service"
	"github.com/sakif/species-catalog/web"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and, when configured, the Redis
// client. Both are closed in Close, after in-flight requests have finished.
type Server struct {
	router *chi.Mux
	config config.FileConfig
	logger *slog.Logger

	db      *sqliteRepo.DB
	redis   *redis.Client // nil without REDIS_ADDR
	relay   *events.RedisRelay
	limiter middleware.Limiter
	metrics *metrics.Metrics

	tokens   *auth.TokenService
	hub      *events.Hub
	sessions *catalog.Sessions
}

// New creates a new Server with the given config.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - The catalog core gets the SpeciesService as its Store
// - Handlers get services and the session registry
func New(cfg config.FileConfig, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		hub:    events.NewHub(logger),
	}

	if err := s.setup(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup() error {
	m, err := metrics.New()
	if err != nil {
		return err
	}
	s.metrics = m

	s.tokens, err = auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === OPTIONAL REDIS ===
	// With Redis, changes are relayed to every instance and mutations are
	// rate limited. Without it the server runs as a single instance.
	if s.config.RedisEnabled() {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.config.RedisAddr,
			Password: s.config.RedisPassword,
		})
		s.relay = events.NewRedisRelay(s.redis, "", s.hub, s.logger)
		s.hub.SetForwarder(s.relay)

		limiter, err := ratelimit.NewFixedWindowLimiter(s.redis, "", s.config.MutationRateLimitPerMinute, time.Minute)
		if err != nil {
			return fmt.Errorf("creating rate limiter: %w", err)
		}
		s.limiter = limiter
	}

	speciesService := service.NewSpeciesService(s.db, s.hub, s.metrics, s.logger)
	s.sessions = catalog.NewSessions(speciesService, s.metrics, s.config.SessionIdle())

	authService := service.NewAuthService(s.db, s.tokens, auth.NewPasswordService(), s.logger)
	github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)

	if err := s.setupRoutes(speciesService, authService, github); err != nil {
		return fmt.Errorf("setting up routes: %w", err)
	}
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                             → Catalog page (HTML, redirects to /login)
// GET    /login                        → Sign-in page
// GET    /static/*                     → Embedded CSS
// GET    /auth/github/login|callback   → GitHub OAuth
// POST   /auth/register|login|logout   → Local accounts
// GET    /api/me                       → Current user (JSON)
// GET    /api/species[/{id}]           → Read the catalog (JSON)
// POST   /api/species                  → Create (JSON, rate limited)
// PUT    /api/species/{id}             → Update (JSON, author only, rate limited)
// DELETE /api/species/{id}             → Delete (JSON, author only, rate limited)
// GET    /ui/events                    → Live list re-fetch (SSE)
// POST   /ui/...                       → Catalog UI triggers (SSE patches)
// GET    /metrics, /healthz            → Operations
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, 2. RealIP (the rate limiter keys anonymous callers by IP),
// 3. Logger (also records request metrics), 4. Recoverer.
func (s *Server) setupRoutes(speciesService *service.SpeciesService, authService *service.AuthService, github *auth.GitHubProvider) error {
	views, err := handler.NewViews(web.Assets)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	static, err := handler.StaticHandler(web.Assets)
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}

	speciesHandler := handler.NewSpeciesHandler(speciesService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, views, s.config.CookieSecure, s.logger)
	catalogHandler := handler.NewCatalogHandler(s.sessions, authService, s.hub, views, s.logger)

	health := handler.NewHealthHandler(s.logger)
	health.Add("database", s.db.Ping)
	if s.redis != nil {
		health.Add("redis", func(ctx context.Context) error { return s.redis.Ping(ctx).Err() })
	}

	apiLimit := middleware.RateLimit(s.limiter, s.metrics, s.logger, handler.RejectJSON)
	uiLimit := middleware.RateLimit(s.limiter, s.metrics, s.logger, catalogHandler.RejectUI)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger, s.metrics))
	r.Use(chimiddleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", static))
	r.Get("/healthz", health.HandleHealth)
	r.Handle("/metrics", s.metrics.Handler(s.logger))

	// === Pages ===
	r.With(auth.OptionalAuth(s.tokens)).Get("/login", authHandler.HandleLoginPage)
	r.With(auth.RequirePage(s.tokens, "/login")).Get("/", catalogHandler.HandlePage)

	// === Sign-in ===
	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === JSON API ===
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens))
		r.Get("/me", authHandler.HandleMe)
		r.Get("/species", speciesHandler.HandleList)
		r.Get("/species/{id}", speciesHandler.HandleGetByID)
		r.With(apiLimit).Post("/species", speciesHandler.HandleCreate)
		r.With(apiLimit).Put("/species/{id}", speciesHandler.HandleUpdate)
		r.With(apiLimit).Delete("/species/{id}", speciesHandler.HandleDelete)
	})

	// === Catalog UI (datastar) ===
	r.Route("/ui", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens))
		r.Get("/events", catalogHandler.HandleEvents)
		r.Post("/order", catalogHandler.HandleOrder)
		r.With(uiLimit).Post("/species", catalogHandler.HandleCreate)
		r.Route("/species/{id}", func(r chi.Router) {
			r.Post("/open", catalogHandler.HandleOpen)
			r.Post("/edit", catalogHandler.HandleEdit)
			r.Post("/delete", catalogHandler.HandleDelete)
			r.Post("/cancel", catalogHandler.HandleCancel)
			r.Post("/close", catalogHandler.HandleClose)
			r.With(uiLimit).Post("/submit", catalogHandler.HandleSubmit)
			r.With(uiLimit).Post("/confirm", catalogHandler.HandleConfirm)
		})
	})

	return nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and Redis connections.
func (s *Server) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the Redis relay and close the database
func (s *Server) Start() error {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The relay feeds changes made on other instances into the local hub.
	if s.relay != nil {
		go func() {
			if err := s.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("redis relay stopped", slog.String("error", err.Error()))
			}
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second, // the SSE stream lifts this per request
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("redis", s.redis != nil),
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

		// SSE streams never finish on their own; cancelling ctx is not
		// enough, Shutdown waits for handlers. Their request contexts end
		// when Shutdown closes the connections after the timeout.
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
