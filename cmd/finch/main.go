package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finchapp/finch/internal/config"
	"github.com/finchapp/finch/internal/handler"
	"github.com/finchapp/finch/internal/infra/cache"
	"github.com/finchapp/finch/internal/infra/observability"
	"github.com/finchapp/finch/internal/infra/resilience"
	"github.com/finchapp/finch/internal/infra/sqlite"
	"github.com/finchapp/finch/internal/infra/webdav"
	"github.com/finchapp/finch/internal/port"
	"github.com/finchapp/finch/internal/schedule"
	"github.com/finchapp/finch/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.Duration("run_interval", cfg.RunInterval),
		zap.Bool("run_on_startup", cfg.RunOnStartup),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Bool("webdav_enabled", cfg.WebDAVURL != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "finch")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Storage ---
	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	// --- Remote vault (optional) ---
	var vault port.RemoteVault
	if cfg.WebDAVURL != "" {
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		cb := resilience.NewCircuitBreaker("webdav")
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		vault = webdav.NewClient(httpClient, cfg.WebDAVURL, cfg.WebDAVUser, cfg.WebDAVPassword, cb, resilienceCfg, logger)
		logger.Info("remote backup enabled", zap.String("webdav_url", cfg.WebDAVURL))
	}

	// --- Cache ---
	summaryCache := cache.New[*service.Summary](cfg.CacheTTL)

	// --- Services ---
	snapshotSvc := service.NewSnapshotService(store, summaryCache, metrics, logger)
	ledgerSvc := service.NewLedgerService(store, metrics, logger)
	authSvc := service.NewAuthService(store, cfg.JWTSecret, cfg.UnlockTTL, logger)
	backupSvc := service.NewBackupService(store, vault, metrics, logger)

	// --- Schedule engine ---
	engine := schedule.NewEngine(store, store, snapshotSvc, metrics, logger)
	recurringSvc := service.NewRecurringService(store, engine, metrics, logger)

	trigger := schedule.NewTrigger(engine, cfg.RunInterval, logger)
	if err := trigger.Start(); err != nil {
		logger.Fatal("failed to start schedule trigger", zap.Error(err))
	}
	defer trigger.Stop()

	if cfg.RunOnStartup {
		trigger.Resume()
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Recurring: recurringSvc,
		Ledger:    ledgerSvc,
		Snapshots: snapshotSvc,
		Auth:      authSvc,
		Backup:    backupSvc,
	}, metrics, store, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
