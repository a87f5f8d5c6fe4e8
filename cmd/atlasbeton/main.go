package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlasbeton/atlasbeton/internal/app"
	"github.com/atlasbeton/atlasbeton/internal/audit"
	"github.com/atlasbeton/atlasbeton/internal/bank"
	"github.com/atlasbeton/atlasbeton/internal/ledger"
	"github.com/atlasbeton/atlasbeton/internal/observability"
	"github.com/atlasbeton/atlasbeton/internal/platform/cache"
	"github.com/atlasbeton/atlasbeton/internal/platform/db"
	"github.com/atlasbeton/atlasbeton/internal/recon"
	"github.com/atlasbeton/atlasbeton/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stats caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	statsCache := bank.NewCache(redisClient, cfg.StatsCacheTTL)

	bankRepo := bank.NewRepository(pool)
	bankService := bank.NewService(logger, bankRepo, statsCache)
	bankHandler := bank.NewHandler(logger, bankService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	scorer := recon.NewScorer(recon.ScorerConfig{
		AmountTolerance: cfg.ReconAmountTolerance,
		DateWindowDays:  cfg.ReconDateWindowDays,
	})
	reconRepo := recon.NewRepository(pool)
	reconService := recon.NewService(logger, reconRepo, scorer, bankService)
	reconHandler := recon.NewHandler(logger, reconService, cfg.ReconAutoThreshold)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		BankHandler:   bankHandler,
		LedgerHandler: ledgerHandler,
		ReconHandler:  reconHandler,
		AuditHandler:  auditHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
