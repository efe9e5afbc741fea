// Package main is the entry point for the storefront server.
//
// main stays minimal: read configuration, create dependencies, start the
// application. All actual logic lives in the internal packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sakif/storefront/internal/server"
)

func main() {
	// .env is optional — real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// APP_ENV=production switches the session cookie to the __Secure-
	// prefixed name and marks it Secure. Everything else counts as
	// development.
	production := os.Getenv("APP_ENV") == "production"

	// AUTH_SECRET signs every session token. Generate with:
	//   AUTH_SECRET=$(openssl rand -hex 32)
	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret == "" {
		logger.Error("AUTH_SECRET is not set — refusing to start without a signing secret")
		os.Exit(1)
	}

	dbPath := "data/storefront.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	// os.MkdirAll creates all parent directories if needed (like mkdir -p).
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}
	if githubClientID == "" {
		logger.Warn("GITHUB_CLIENT_ID not set — OAuth login is disabled")
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		AuthSecret:         authSecret,
		Production:         production,
		GitHubClientID:     githubClientID,
		GitHubClientSecret: githubClientSecret,
		GitHubCallbackURL:  githubCallbackURL,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
