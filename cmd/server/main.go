// Command server runs the profile web app.
//
// Configuration comes from internal/config: defaults, then the YAML file
// named by CONFIG_FILE, then environment variables (PORT, DB_PATH,
// SESSION_SECRET, PRIVATE_KEY, GITHUB_TOKEN and friends).
//
// Run it from the repo root:
//
//	go run ./cmd/server
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cryptonite/profiles/internal/config"
	"github.com/cryptonite/profiles/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	if cfg.SessionSecret == config.DefaultSessionSecret {
		logger.Warn("SESSION_SECRET not set, using the development secret")
	}
	if cfg.Verification.PrivateKey == "" {
		logger.Warn("PRIVATE_KEY not set, verification requests will be rejected upstream")
	}

	// mkdir -p for the database directory.
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
