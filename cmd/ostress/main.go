// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/ostress-go/internal/auth"
	"github.com/olegiv/ostress-go/internal/cache"
	"github.com/olegiv/ostress-go/internal/config"
	"github.com/olegiv/ostress-go/internal/detect"
	"github.com/olegiv/ostress-go/internal/emotion"
	"github.com/olegiv/ostress-go/internal/handler"
	"github.com/olegiv/ostress-go/internal/logging"
	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/scheduler"
	"github.com/olegiv/ostress-go/internal/service"
	"github.com/olegiv/ostress-go/internal/session"
	"github.com/olegiv/ostress-go/internal/store"
	"github.com/olegiv/ostress-go/internal/stress"
	"github.com/olegiv/ostress-go/internal/version"
	"github.com/olegiv/ostress-go/internal/vision"
	"github.com/olegiv/ostress-go/internal/vision/opencv"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "ostress - stress detection service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_SESSION_SECRET        Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_DB_PATH               SQLite database path (default: ./data/ostress.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_SERVER_PORT           Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_ENV                   Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_SUPERADMIN_PASSWORD   Super-admin password (empty disables it)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_CLASSIFIER_BACKEND    Emotion classifier: none|remote|openai (default: none)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_CASCADE_PATH          Haar cascade file for face location\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_CAMERA_DEVICE         Camera index for /video_feed, -1 disables (default: 0)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSTRESS_REDIS_URL             Redis URL for shared login counters (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("ostress %s\n", version.Get())
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

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

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

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

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

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	eventService := service.NewEventService(db)

	// Persist WARN and ERROR records to the system event log as well.
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, eventService))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx := context.Background()
	if err := store.SeedAdmin(ctx, db, cfg.SeedAdminUsername, cfg.SeedAdminPassword); err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}

	avail := store.NewAvailability(db, 2*time.Second)
	if err := avail.Ping(ctx); err != nil {
		slog.Warn("database ping failed at startup", "error", err)
	}

	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	cacheResult, err := cache.New(cache.Config{
		RedisURL:         cfg.RedisURL,
		Prefix:           cfg.CachePrefix,
		FallbackToMemory: true,
		DefaultTTL:       time.Hour,
		CleanupInterval:  time.Minute,
	})
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = cacheResult.Cache.Close() }()
	slog.Info("login counter cache initialized", "backend", cacheResult.BackendType, "fallback", cacheResult.IsFallback)

	loginProtection := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit:       cfg.LoginIPRate,
		IPBurst:           cfg.LoginIPBurst,
		MaxFailedAttempts: cfg.LoginMaxAttempts,
		LockoutDuration:   cfg.LoginLockout,
		AttemptWindow:     cfg.LoginAttemptWindow,
	}, cacheResult.Cache)

	locator, err := opencv.NewCascadeLocator(cfg.CascadePath, cfg.MinFaceSize)
	if err != nil {
		return fmt.Errorf("loading face cascade: %w", err)
	}
	defer func() { _ = locator.Close() }()

	classifierURL := cfg.ClassifierURL
	if cfg.ClassifierBackend == emotion.BackendOpenAI {
		classifierURL = cfg.OpenAIBaseURL
	}
	classifier, err := emotion.New(emotion.Config{
		Backend: cfg.ClassifierBackend,
		URL:     classifierURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.ClassifierTimeout,
	})
	if err != nil {
		return fmt.Errorf("initializing classifier: %w", err)
	}
	slog.Info("emotion classifier initialized", "backend", classifier.Name())

	var source vision.SourceOpener
	if cfg.StreamEnabled() {
		source = opencv.CameraOpener{Device: cfg.CameraDevice}
	}
	pipeline := detect.New(locator, classifier, stress.NewScorer(nil), detect.Options{
		Workers:         cfg.DetectWorkers,
		ClassifyTimeout: cfg.ClassifierTimeout,
		JPEGQuality:     cfg.JPEGQuality,
		Source:          source,
	})

	accountService := service.NewAccountService(db)
	stressLogService := service.NewStressLogService(db)

	authn := auth.NewAuthenticator(accountService, auth.SuperAdmin{
		Username: cfg.SuperAdminUsername,
		Password: cfg.SuperAdminPassword,
	}, logger)
	if !authn.SuperAdminEnabled() {
		slog.Info("super-admin credential disabled")
	}

	sched := scheduler.New(logger)
	if err := sched.Add(scheduler.JobStoreCheck, "Check database availability", cfg.HealthCheckSchedule, scheduler.StoreCheckJob(avail)); err != nil {
		return fmt.Errorf("scheduling store check: %w", err)
	}
	if err := sched.Add(scheduler.JobLimiterCleanup, "Trim per-IP login limiters", scheduler.DefaultCleanupSchedule, scheduler.LimiterCleanupJob(loginProtection)); err != nil {
		return fmt.Errorf("scheduling limiter cleanup: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	router := handler.NewRouter(handler.RouterConfig{
		Sessions:        sessionManager,
		LoginProtection: loginProtection,
		Availability:    avail,
		AuthEvents:      eventService,
		CSRFKey:         []byte(cfg.SessionSecret),
		IsDevelopment:   cfg.IsDevelopment(),
		RequestTimeout:  cfg.RequestTimeout,
		Auth:            handler.NewAuthHandler(authn, sessionManager, eventService, loginProtection, avail),
		Users:           handler.NewUsersHandler(accountService),
		Detect:          handler.NewDetectHandler(pipeline, stressLogService, avail),
		Logs:            handler.NewLogsHandler(stressLogService, eventService),
		Health:          handler.NewHealthHandler(avail, cacheResult.Cache, cacheResult.BackendType, pipeline.ClassifierName(), source != nil),
	})

	// Request contexts derive from baseCtx so open video feeds end on shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	// No WriteTimeout: /video_feed streams indefinitely. Other routes are
	// bounded by the request timeout middleware.
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", version.Get().Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
