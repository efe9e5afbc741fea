// Package server sets up the HTTP server, router, and all route
// definitions.
//
// This package is the "wiring" layer — the composition root where the
// whole dependency chain is assembled in one place:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// Handlers never touch the database; services never touch HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/handler"
	"github.com/sakif/storefront/internal/middleware"
	sqliteRepo "github.com/sakif/storefront/internal/repository/sqlite"
	"github.com/sakif/storefront/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port   int
	DBPath string

	// AuthSecret signs the session tokens. Mandatory — the server refuses
	// to start without it, since every route's access control depends on
	// token integrity.
	AuthSecret string

	// Production selects the session cookie name (__Secure- prefixed) and
	// turns on the Secure cookie flag. It must match how the app is
	// actually served: the secure cookie never round-trips over plain HTTP.
	Production bool

	// GitHub OAuth app credentials. Optional — with an empty client ID the
	// OAuth routes respond 501 and credential auth still works.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB // owned by the server, closed on shutdown
}

// New creates a Server: opens the database, builds the service graph and
// registers routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("server: AUTH_SECRET is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and all route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID / RealIP — request identity for tracing
//  2. Recoverer — panics become 500s instead of crashes
//  3. Logger — structured request log
//  4. auth.Guard — the route-level access table; it must run after the
//     plumbing middleware but before ANY handler, protected content
//     included
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.AuthSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	users := s.db.Users()
	authService := service.NewAuthService(users, tokens, passwords, s.logger)
	productService := service.NewProductService(s.db.Products(), s.db.Comments(), s.logger)

	authHandler := handler.NewAuthHandler(authService, tokens, github, s.config.Production, s.logger)
	productHandler := handler.NewProductHandler(productService, tokens, s.config.Production, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(auth.Guard(tokens, s.config.Production))

	s.router.Get("/", productHandler.HandleHome)

	// Auth flows
	s.router.Get("/login", authHandler.HandleLoginPage)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Get("/signup", authHandler.HandleSignupPage)
	s.router.Post("/signup", authHandler.HandleSignup)
	s.router.Post("/logout", authHandler.HandleLogout)
	s.router.Get("/me", authHandler.HandleMe)
	s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	// Storefront
	s.router.Route("/products", func(r chi.Router) {
		r.Get("/", productHandler.HandleList)
		r.Get("/{id}", productHandler.HandleGet)
		r.Get("/{id}/comments", productHandler.HandleComments)
		r.Post("/{id}/comments", productHandler.HandlePostComment)
	})

	// Admin dashboard
	s.router.Route("/dashboard", func(r chi.Router) {
		r.Get("/", productHandler.HandleDashboard)
		r.Post("/products", productHandler.HandleCreate)
		r.Put("/products/{id}", productHandler.HandleUpdate)
		r.Delete("/products/{id}", productHandler.HandleDelete)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown:
// stop accepting connections, drain in-flight requests (30s), close the
// database (flushes the WAL and releases the file lock).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
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
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("production", s.config.Production),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
