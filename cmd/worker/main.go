package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/rencana-app/rencana/internal/app"
	"github.com/rencana-app/rencana/internal/observability"
	"github.com/rencana-app/rencana/internal/platform/cache"
	"github.com/rencana-app/rencana/internal/platform/db"
	"github.com/rencana-app/rencana/internal/pricing"
	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/project/analyses"
	"github.com/rencana-app/rencana/internal/project/boq"
	"github.com/rencana-app/rencana/internal/project/rollup"
	"github.com/rencana-app/rencana/jobs"
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	projectRepo := project.NewRepository(pool)
	boqRepo := boq.NewRepository(pool)
	rollupService := rollup.NewService(logger, projectRepo, boqRepo, redisClient, cfg.RollupCacheTTL)

	// The worker never enqueues; recalculation requests made while a
	// job runs fall back to cache invalidation.
	projectService := project.NewService(projectRepo, nil, rollupService)
	boqService := boq.NewService(boqRepo, projectService, analyses.NewRepository(pool), rollupService)

	pricingService := pricing.NewService(pricing.NewRepository(pool))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:     asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:        logger,
		RecalcHandler: jobs.NewProjectRecalcHandler(logger, boqService, metrics),
		SweepHandler:  jobs.NewPricingSweepHandler(logger, pricingService),
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
