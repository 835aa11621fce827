// Copyright (c) 2025-2026 the navtree authors
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

	"github.com/navtree/navtree/internal/cache"
	"github.com/navtree/navtree/internal/config"
	"github.com/navtree/navtree/internal/handler/api"
	"github.com/navtree/navtree/internal/middleware"
	"github.com/navtree/navtree/internal/resource"
	"github.com/navtree/navtree/internal/scheduler"
	"github.com/navtree/navtree/internal/service"
	"github.com/navtree/navtree/internal/store"
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
	createAPIKey := flag.String("create-api-key", "", "Create an admin API key with the given name and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "navtree - Navigation Menu Service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  NAVTREE_DB_PATH          SQLite database path (default: ./data/navtree.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  NAVTREE_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  NAVTREE_ENV              Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  NAVTREE_REDIS_URL        Redis URL for distributed caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  NAVTREE_RATE_LIMIT_RPS   Public API rate limit per IP (default: 10)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  NAVTREE_DO_SEED          Seed default menus on startup (default: false)\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Printf("navtree %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if *createAPIKey != "" {
		if err := runCreateAPIKey(*createAPIKey); err != nil {
			slog.Error("failed to create API key", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// openDatabase loads config, opens the SQLite database and applies
// migrations.
func openDatabase() (*config.Config, *sql.DB, error) {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing database: %w", err)
	}

	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return cfg, db, nil
}

// runCreateAPIKey creates a new admin API key and prints it once.
func runCreateAPIKey(name string) error {
	_, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rawKey, key, err := store.NewAPIKeyStore(db).Create(context.Background(), name)
	if err != nil {
		return err
	}

	fmt.Printf("Created API key %q (prefix %s)\n", key.Name, key.KeyPrefix)
	fmt.Printf("Key (shown once, store it now): %s\n", rawKey)
	return nil
}

func run() error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

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
	slog.Info("database ready", "path", cfg.DBPath)

	// Seed default data
	ctx := context.Background()
	if err := store.Seed(ctx, db, cfg.DoSeed); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	// Stores
	trees := store.NewTreeStore(db)
	pages := store.NewPageStore(db)
	apiKeys := store.NewAPIKeyStore(db)
	if cfg.IsDevelopment() {
		trees.SetObserver(store.SlogObserver(logger))
	}

	// Cache backend: Redis when configured, in-process memory otherwise
	cacheTTL := time.Duration(cfg.CacheTTL) * time.Second
	var backend cache.Cache
	if cfg.UseRedisCache() {
		redisOpts := cache.DefaultRedisOptions()
		redisOpts.URL = cfg.RedisURL
		redisOpts.Prefix = cfg.CachePrefix
		redisOpts.DefaultTTL = cacheTTL
		rc, err := cache.NewRedisCache(redisOpts)
		if err != nil {
			slog.Warn("redis unavailable, falling back to memory cache", "error", err)
			backend = cache.NewMemoryCache(cacheTTL, time.Minute)
		} else {
			backend = rc
			slog.Info("cache backend initialized", "backend", "redis", "url", cfg.RedisURL)
		}
	} else {
		backend = cache.NewMemoryCache(cacheTTL, time.Minute)
		slog.Info("cache backend initialized", "backend", "memory")
	}
	defer func() { _ = backend.Close() }()

	menuCache := cache.NewMenuCache(backend, cacheTTL)

	// Resource resolver with the built-in page type
	resolver := resource.NewResolver()
	if err := resolver.Register("page", resource.Config{
		URLPattern:         "/{slug}",
		SupportsSoftDelete: true,
		Lookup:             pages,
	}); err != nil {
		return fmt.Errorf("registering page resource type: %w", err)
	}

	// Services
	menuService := service.NewMenuService(trees, resolver, menuCache)
	menuEditor := service.NewMenuEditor(trees, resolver, menuService)

	// Scheduler for visibility window boundaries
	sched := scheduler.New(trees, menuService, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(chimw.Timeout(30 * time.Second))

	apiHandler := api.NewHandler(menuService, menuEditor, resolver)

	// Health check route
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			api.WriteInternalError(w, "database unavailable")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public menu routes, rate limited per client IP
	publicRateLimiter := middleware.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitMaxIPs)
	slog.Info("public rate limiter initialized", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", apiHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(publicRateLimiter.Middleware())
			r.Get("/menus", apiHandler.GetMenus)
			r.Get("/menus/{slug}", apiHandler.GetMenu)
		})

		// Admin routes (API key required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(apiKeys))

			r.Get("/menus", apiHandler.ListMenus)
			r.Post("/menus", apiHandler.CreateMenu)
			r.Get("/menus/{id}", apiHandler.GetAdminMenu)
			r.Put("/menus/{id}", apiHandler.UpdateMenu)
			r.Delete("/menus/{id}", apiHandler.DeleteMenu)
			r.Post("/menus/{id}/items", apiHandler.CreateItem)
			r.Post("/menus/{id}/reorder", apiHandler.ReorderItems)
			r.Post("/menus/{id}/rebuild", apiHandler.RebuildMenu)
			r.Put("/items/{id}", apiHandler.UpdateItem)
			r.Delete("/items/{id}", apiHandler.DeleteItem)
			r.Post("/items/{id}/move", apiHandler.MoveItem)
			r.Get("/resource-types", apiHandler.ListResourceTypes)
			r.Get("/resources/{type}/search", apiHandler.SearchResources)
		})
	})

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
