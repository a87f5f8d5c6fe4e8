package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atlasbeton/atlasbeton/internal/app"
	"github.com/atlasbeton/atlasbeton/internal/bank"
	jobmetrics "github.com/atlasbeton/atlasbeton/internal/jobs"
	"github.com/atlasbeton/atlasbeton/internal/platform/cache"
	"github.com/atlasbeton/atlasbeton/internal/platform/db"
	"github.com/atlasbeton/atlasbeton/internal/recon"
	"github.com/atlasbeton/atlasbeton/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	bankService := bank.NewService(logger, bank.NewRepository(pool), statsCache)

	scorer := recon.NewScorer(recon.ScorerConfig{
		AmountTolerance: cfg.ReconAmountTolerance,
		DateWindowDays:  cfg.ReconDateWindowDays,
	})
	reconService := recon.NewService(logger, recon.NewRepository(pool), scorer, bankService)

	metrics := jobmetrics.NewMetrics(nil)

	autoMatchTask, err := jobs.NewAutoMatchTask(jobs.AutoMatchPayload{Threshold: cfg.ReconAutoThreshold})
	if err != nil {
		logger.Error("build auto-match task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAutoMatch, Handler: jobs.NewAutoMatchHandler(reconService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: autoMatchTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
