// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/gemcraft/gemcms/internal/auth"
	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/config"
	"github.com/gemcraft/gemcms/internal/handler"
	"github.com/gemcraft/gemcms/internal/handler/api"
	"github.com/gemcraft/gemcms/internal/logging"
	"github.com/gemcraft/gemcms/internal/middleware"
	"github.com/gemcraft/gemcms/internal/scheduler"
	"github.com/gemcraft/gemcms/internal/storage"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	cfg, base, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	events := store.NewEventStore(db)
	slog.SetDefault(slog.New(logging.NewEventLogHandler(base, events)))
	slog.Info("event log integration enabled", "min_level", "warn")

	if cfg.DoSeed {
		if err := store.Seed(ctx, db, seedAdmin(cfg)); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	c, backend := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:    cfg.CacheMaxSize,
	})
	cacheManager := cache.NewManager(c, backend, time.Duration(cfg.CacheTTL)*time.Second)
	defer func() { _ = cacheManager.Close() }()
	slog.Info("cache manager initialized", "backend", backend)

	backendStore, uploadsDir, err := newStorageBackend(ctx, cfg)
	if err != nil {
		return err
	}
	uploader := storage.NewUploader(backendStore, storage.NewImagePipeline(cfg.MaxUploadSize, cfg.MaxImageSide))

	sched := scheduler.New(slog.Default())
	now := time.Now
	for _, job := range []scheduler.Job{
		scheduler.ExpirePopupsJob(store.NewPopupStore(db), cacheManager, now),
		scheduler.PurgeLeadsJob(store.NewLeadStore(db), days(cfg.LeadRetentionDays), now),
		scheduler.PruneEventsJob(events, days(cfg.EventRetentionDays), now),
	} {
		if err := sched.Add(job); err != nil {
			return fmt.Errorf("registering job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Stop()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)
	versionInfo := version.Get()

	apiHandler := api.NewHandler(api.Config{
		DB:              db,
		Tokens:          tokens,
		Storage:         uploader,
		Cache:           cacheManager,
		LoginProtection: loginProtection,
		Development:     cfg.IsDevelopment(),
		MaxUploadSize:   cfg.MaxUploadSize,
		LeadRateLimit:   cfg.LeadRateLimit,
		AdminRateLimit:  cfg.AdminRateLimit,
		AdminRateBurst:  cfg.AdminRateBurst,
		Version:         versionInfo,
		Jobs:            sched,
	})
	healthHandler := handler.NewHealthHandler(db, uploadsDir, versionInfo).WithCache(cacheManager)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))                    // Gzip compression with level 5
	r.Use(chimw.GetHead)                        // Handle HEAD requests for uptime monitoring
	r.Use(middleware.Timeout(30 * time.Second)) // 30 second request timeout
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check routes (public, more details for admins)
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalJWTAuth(tokens, store.NewAdminStore(db)))
		r.Get("/health", healthHandler.Health)
		r.Get("/health/live", healthHandler.Liveness)
		r.Get("/health/ready", healthHandler.Readiness)
	})

	apiLimiter := middleware.NewIPRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst)
	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimiter.Middleware())
		r.Mount("/", apiHandler.Routes())
	})

	// Uploads: cache for 1 week (604800 seconds)
	if uploadsDir != "" {
		uploadsHandler := middleware.StaticCache(604800)(http.StripPrefix(storage.UploadsRoute+"/", http.FileServer(http.Dir(uploadsDir))))
		r.Handle(storage.UploadsRoute+"/*", uploadsHandler)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for large uploads
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newStorageBackend returns the configured upload backend and, for local
// storage, the directory to serve.
func newStorageBackend(ctx context.Context, cfg *config.Config) (storage.Backend, string, error) {
	if cfg.UseS3Storage() {
		s3, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("initializing s3 storage: %w", err)
		}
		slog.Info("upload storage initialized", "backend", config.StorageS3, "bucket", cfg.S3Bucket)
		return s3, "", nil
	}

	local, err := storage.NewLocalStorage(cfg.UploadsDir, cfg.PublicURL)
	if err != nil {
		return nil, "", fmt.Errorf("initializing uploads directory: %w", err)
	}
	slog.Info("upload storage initialized", "backend", config.StorageLocal, "dir", local.Dir())
	return local, local.Dir(), nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
