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
	"github.com/redis/go-redis/v9"

	"github.com/shoplytics/shoplytics/internal/app"
	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/coupons"
	"github.com/shoplytics/shoplytics/internal/expenses"
	jobmetrics "github.com/shoplytics/shoplytics/internal/jobs"
	"github.com/shoplytics/shoplytics/internal/metrics"
	"github.com/shoplytics/shoplytics/internal/observability"
	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/platform/db"
	"github.com/shoplytics/shoplytics/internal/shipping"
	storesync "github.com/shoplytics/shoplytics/internal/sync"
	"github.com/shoplytics/shoplytics/internal/woo"
	"github.com/shoplytics/shoplytics/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	ordersRepo := orders.NewRepository(pool)
	productsRepo := catalog.NewRepository(pool)
	couponsRepo := coupons.NewRepository(pool)
	expensesRepo := expenses.NewRepository(pool)

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	ingestor := storesync.NewIngestor(ordersRepo, productsRepo, couponsRepo, queueClient, logger)

	orchestrator := storesync.NewOrchestrator(storesync.OrchestratorConfig{
		Source: woo.NewClient(woo.ClientConfig{
			BaseURL:        cfg.WooBaseURL,
			ConsumerKey:    cfg.WooConsumerKey,
			ConsumerSecret: cfg.WooConsumerSecret,
			PageSize:       cfg.WooPageSize,
			Timeout:        cfg.WooTimeout,
		}),
		Ingestor:  ingestor,
		Orders:    ordersRepo,
		Products:  productsRepo,
		Coupons:   couponsRepo,
		State:     storesync.NewStateRepository(pool),
		Logger:    logger,
		ItemDelay: cfg.SyncItemDelay,
	})

	resolver := orders.NewResolver(ordersRepo, logger)
	shippingService := shipping.NewService(shipping.ServiceConfig{
		Rater:    shipping.NewClient(cfg.ShippoBaseURL, cfg.ShippoAPIToken),
		Resolver: resolver,
		Orders:   ordersRepo,
		Expenses: expensesRepo,
		Origin: shipping.Address{
			Name:    cfg.ShipOriginName,
			Street1: cfg.ShipOriginStreet1,
			City:    cfg.ShipOriginCity,
			State:   cfg.ShipOriginState,
			Zip:     cfg.ShipOriginZip,
			Country: cfg.ShipOriginCountry,
		},
		Currency: cfg.ShipCurrency,
		Logger:   logger,
	})

	metricsCache := metrics.NewCache(redisClient, cfg.MetricsCacheTTL)
	metricsService := metrics.NewService(metrics.NewRepository(pool), metricsCache)
	if err := metricsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	obs := observability.NewMetrics()
	tracker := jobmetrics.NewMetrics(obs.Registerer())

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: obs.Handler()}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}()

	shippingJob := jobs.NewShippingSyncJob(shippingService, metricsService, logger, tracker)
	storeSyncJob := jobs.NewStoreSyncJob(orchestrator, metricsService, logger, tracker)
	warmupJob := jobs.NewMetricsWarmupJob(metricsService, logger, tracker)

	nightlySync, err := jobs.NewStoreSyncTask(jobs.StoreSyncPayload{Mode: "incremental"})
	if err != nil {
		logger.Error("build store sync task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskShippingSync, Handler: shippingJob.Handle},
			{Type: jobs.TaskStoreSync, Handler: storeSyncJob.Handle},
			{Type: jobs.TaskMetricsWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: nightlySync, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: jobs.NewMetricsWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
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
