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

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/app"
	"github.com/rencana-app/rencana/internal/auth"
	"github.com/rencana-app/rencana/internal/masterdata/items"
	"github.com/rencana-app/rencana/internal/masterdata/regions"
	"github.com/rencana-app/rencana/internal/masterdata/units"
	"github.com/rencana-app/rencana/internal/observability"
	"github.com/rencana-app/rencana/internal/platform/cache"
	"github.com/rencana-app/rencana/internal/platform/db"
	"github.com/rencana-app/rencana/internal/pricing"
	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/project/analyses"
	"github.com/rencana-app/rencana/internal/project/boq"
	"github.com/rencana-app/rencana/internal/project/rollup"
	"github.com/rencana-app/rencana/internal/rbac"
	"github.com/rencana-app/rencana/internal/shared"
	"github.com/rencana-app/rencana/internal/users"
	"github.com/rencana-app/rencana/jobs"
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "rencana_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	unitsService := units.NewService(units.NewRepository(pool))
	itemsService := items.NewService(items.NewRepository(pool))
	regionsService := regions.NewService(regions.NewRepository(pool))

	pricingService := pricing.NewService(pricing.NewRepository(pool))

	ahspService := ahsp.NewService(ahsp.NewRepository(pool), pricingService)
	ahspService.WithAudit(auditLogger)

	jobsClient := jobs.NewClient(logger, asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	projectRepo := project.NewRepository(pool)
	boqRepo := boq.NewRepository(pool)
	rollupService := rollup.NewService(logger, projectRepo, boqRepo, redisClient, cfg.RollupCacheTTL)

	projectService := project.NewService(projectRepo, jobsClient, rollupService)
	projectService.WithAudit(auditLogger)

	analysesRepo := analyses.NewRepository(pool)
	analysesService := analyses.NewService(analysesRepo, projectService)
	boqService := boq.NewService(boqRepo, projectService, analysesRepo, rollupService)

	usersService := users.NewService(users.NewRepository(pool))
	authService := auth.NewService(users.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Metrics:        metrics,
		AuthHandler:     auth.NewHandler(logger, authService, sessionManager, csrfManager),
		UnitsHandler:    units.NewHandler(logger, unitsService, rbacMiddleware),
		ItemsHandler:    items.NewHandler(logger, itemsService, rbacMiddleware),
		RegionsHandler:  regions.NewHandler(logger, regionsService, rbacMiddleware),
		PricingHandler:  pricing.NewHandler(logger, pricingService, rbacMiddleware),
		AHSPHandler:     ahsp.NewHandler(logger, ahspService, rbacMiddleware),
		ProjectHandler:  project.NewHandler(logger, projectService, rbacMiddleware),
		AnalysesHandler: analyses.NewHandler(logger, analysesService, rbacMiddleware),
		BoqHandler:      boq.NewHandler(logger, boqService, rbacMiddleware),
		RollupHandler:   rollup.NewHandler(logger, rollupService, rbacMiddleware),
		UsersHandler:    users.NewHandler(logger, usersService, rbacService, rbacMiddleware),
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
