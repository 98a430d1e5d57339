// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/newsroomkit/publisher/internal/cache"
	"github.com/newsroomkit/publisher/internal/config"
	"github.com/newsroomkit/publisher/internal/handler/api"
	"github.com/newsroomkit/publisher/internal/logging"
	"github.com/newsroomkit/publisher/internal/media"
	"github.com/newsroomkit/publisher/internal/publisher"
	"github.com/newsroomkit/publisher/internal/queue"
	"github.com/newsroomkit/publisher/internal/scheduler"
	"github.com/newsroomkit/publisher/internal/store"
	"github.com/newsroomkit/publisher/internal/taxonomy"
	"github.com/newsroomkit/publisher/internal/wordpress"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "publisher - Article Publication Service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PUBLISHER_WORDPRESS_URL    Remote CMS base URL (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PUBLISHER_WP_TOKEN         Bearer token of the publishing account (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PUBLISHER_WP_AUTHOR_ID     Remote author ID for created posts (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PUBLISHER_DB_PATH          SQLite database path (default: ./data/publisher.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PUBLISHER_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PUBLISHER_WORKERS          Delivery worker count (default: 3)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PUBLISHER_REDIS_URL        Redis URL for the taxonomy cache (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("publisher %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Initialize database
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	// Run migrations
	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	queries := store.New(db)

	// Taxonomy cache: Redis when configured, in-memory otherwise
	cacheConfig := cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}
	tagCache := cache.New(cacheConfig, logger)
	defer func() { _ = tagCache.Close() }()
	if cfg.UseRedisCache() {
		slog.Info("cache initialized", "backend", "redis")
	} else {
		slog.Info("cache initialized", "backend", "memory")
	}

	// Remote CMS client
	wp, err := wordpress.New(wordpress.Config{
		BaseURL:       cfg.WordPressURL,
		Token:         cfg.WPToken,
		RatePerSecond: cfg.RemoteRate,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("initializing remote CMS client: %w", err)
	}
	slog.Info("remote CMS client initialized", "base_url", cfg.WordPressURL)

	// Publication pipeline
	taxonomyResolver := taxonomy.NewResolver(queries, wp, tagCache, logger)
	mediaResolver := media.NewResolver(wp, nil, logger)

	wake := make(chan struct{}, 1)
	dispatcher := queue.NewDispatcher(queries, logger, wake)

	workerCfg := queue.DefaultConfig()
	workerCfg.Workers = cfg.Workers
	workers := queue.NewWorkerPool(queries, logger, wake, workerCfg)
	workers.Start(context.Background())
	defer workers.Stop()

	pub := publisher.New(queries, taxonomyResolver, mediaResolver, dispatcher, wp, cfg.Identity(), logger)

	// Queue maintenance scheduler
	sched := scheduler.New(queries, workers.Wake, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Create router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	apiHandler := api.NewHandler(pub, queries, logger)
	r.Get("/health", apiHandler.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/publish", apiHandler.Publish)
		r.Post("/posts/edit", apiHandler.EditPost)
		r.Get("/jobs/{id}", apiHandler.JobStatus)
	})

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
