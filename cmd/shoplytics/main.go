package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shoplytics/shoplytics/cmd/shoplytics/cli"
	"github.com/shoplytics/shoplytics/internal/app"
	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/coupons"
	"github.com/shoplytics/shoplytics/internal/expenses"
	"github.com/shoplytics/shoplytics/internal/importer"
	"github.com/shoplytics/shoplytics/internal/metrics"
	"github.com/shoplytics/shoplytics/internal/observability"
	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/platform/cache"
	"github.com/shoplytics/shoplytics/internal/platform/db"
	"github.com/shoplytics/shoplytics/internal/recon"
	storesync "github.com/shoplytics/shoplytics/internal/sync"
	"github.com/shoplytics/shoplytics/internal/webhook"
	"github.com/shoplytics/shoplytics/internal/woo"
	"github.com/shoplytics/shoplytics/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	if err := run(ctx, stop, command, args); err != nil {
		slog.Default().Error("command failed", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, command string, args []string) error {
	switch command {
	case "serve":
		return runServe(ctx, stop)
	case "sync":
		return runSync(ctx, args)
	case "import":
		return runImport(ctx, args)
	case "reconcile":
		return runReconcile(ctx, args)
	case "env":
		return runEnv(args)
	case "diag":
		return runDiag(ctx)
	case "jobs":
		return runJobs(ctx, args)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: shoplytics [command]

commands:
  serve       run the HTTP API (default)
  sync        pull products, coupons and orders from the store
  import      load the spreadsheet export from a directory
  reconcile   compare a spreadsheet export against the database
  env check   report missing required environment variables
  diag        verify database connectivity and table access
  jobs        trigger or inspect background jobs`)
}

// bootstrap loads config, the logger and the database pool shared by every
// command that touches the system.
func bootstrap(ctx context.Context) (*app.Config, *slog.Logger, *pgxpool.Pool, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, logger, pool, nil
}

func runServe(ctx context.Context, stop context.CancelFunc) error {
	cfg, logger, pool, err := bootstrap(ctx)
	if err != nil {
		return err
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

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	ingestor := storesync.NewIngestor(ordersRepo, productsRepo, couponsRepo, queueClient, logger)

	metricsRepo := metrics.NewRepository(pool)
	metricsCache := metrics.NewCache(redisClient, cfg.MetricsCacheTTL)
	metricsService := metrics.NewService(metricsRepo, metricsCache)
	if err := metricsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	resolver := orders.NewResolver(ordersRepo, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Pool:           pool,
		Metrics:        observability.NewMetrics(),
		MetricsHandler: metrics.NewHandler(logger, metricsService),
		OrdersHandler:  orders.NewHandler(logger, ordersRepo, resolver, queueClient),
		CatalogHandler: catalog.NewHandler(logger, productsRepo),
		WebhookHandler: webhook.NewHandler(logger, cfg.WebhookSecret, ingestor, metricsService),
		JobHandler:     jobs.NewHandler(inspector, logger),
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
	return nil
}

func runSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	full := fs.Bool("full", false, "walk the entire store instead of changes since the last run")
	resource := fs.String("resource", "", "sync a single resource (products, coupons, orders)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, pool, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	mode := storesync.ModeIncremental
	if *full {
		mode = storesync.ModeFull
	}

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	ordersRepo := orders.NewRepository(pool)
	productsRepo := catalog.NewRepository(pool)
	couponsRepo := coupons.NewRepository(pool)
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

	var results []storesync.Result
	if *resource != "" {
		res, err := orchestrator.Run(ctx, storesync.Resource(*resource), mode)
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		results = orchestrator.RunAll(ctx, mode)
	}

	failed := false
	for _, res := range results {
		fmt.Printf("%-10s synced=%d skipped=%d errors=%d\n", res.Resource, res.Synced, res.Skipped, res.Errors)
		if res.ErrorSummary != "" {
			fmt.Printf("           last error: %s\n", res.ErrorSummary)
		}
		if res.Errors > 0 {
			failed = true
		}
	}

	if err := bumpMetricsCache(ctx, cfg, logger); err != nil {
		logger.Warn("metrics cache bump", slog.Any("error", err))
	}
	if failed {
		return errors.New("sync finished with errors")
	}
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dir := fs.String("dir", "", "directory holding the exported csv files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return errors.New("import: --dir is required")
	}

	cfg, logger, pool, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	ordersRepo := orders.NewRepository(pool)
	productsRepo := catalog.NewRepository(pool)
	couponsRepo := coupons.NewRepository(pool)
	expensesRepo := expenses.NewRepository(pool)

	// Historical rows should not trigger carrier pricing, so no enqueuer.
	ingestor := storesync.NewIngestor(ordersRepo, productsRepo, couponsRepo, nil, logger)

	imp := importer.New(productsRepo, couponsRepo, expensesRepo, ingestor, logger)
	results, err := imp.Run(ctx, *dir)
	if err != nil {
		return err
	}

	failed := false
	for _, res := range results {
		fmt.Printf("%-20s rows=%d imported=%d skipped=%d errors=%d\n",
			res.File, res.Rows, res.Imported, res.Skipped, res.Errors)
		if res.Errors > 0 {
			failed = true
		}
	}

	if err := bumpMetricsCache(ctx, cfg, logger); err != nil {
		logger.Warn("metrics cache bump", slog.Any("error", err))
	}
	if failed {
		return errors.New("import finished with errors")
	}
	return nil
}

func runReconcile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	dir := fs.String("dir", "", "directory holding the exported csv files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return errors.New("reconcile: --dir is required")
	}

	_, logger, pool, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	reconciler := recon.New(
		orders.NewRepository(pool),
		metrics.NewRepository(pool),
		expenses.NewRepository(pool),
		logger,
	)
	report, err := reconciler.Run(ctx, *dir)
	if err != nil {
		return err
	}
	report.Render(os.Stdout)
	if !report.Clean() {
		return fmt.Errorf("reconciliation found %d issue(s)", len(report.Findings))
	}
	return nil
}

// runEnv implements `env check` without loading the full config; the point is
// to report which required variables are missing, and LoadConfig would abort
// on the first one.
func runEnv(args []string) error {
	if len(args) == 0 || args[0] != "check" {
		return errors.New("env: expected subcommand `check`")
	}
	missing := 0
	for _, name := range app.RequiredSecrets() {
		if os.Getenv(name) == "" {
			fmt.Printf("MISSING  %s\n", name)
			missing++
		} else {
			fmt.Printf("ok       %s\n", name)
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d required variable(s) missing", missing)
	}
	return nil
}

func runDiag(ctx context.Context) error {
	cfg, _, pool, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := cli.Diagnose(ctx, os.Stdout, pool, cfg.PGReadOnlyDSN); err != nil {
		return err
	}
	return nil
}

func runJobs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("jobs: expected subcommand `trigger <task>` or `stats`")
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			slog.Default().Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("jobs trigger: task name required")
		}
		arg := ""
		if len(args) > 2 {
			arg = args[2]
		}
		if err := jobsCLI.Trigger(ctx, args[1], arg); err != nil {
			return err
		}
		fmt.Printf("enqueued %s\n", args[1])
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		scheduled, err := jobsCLI.ListScheduled(ctx, 10)
		if err != nil {
			return err
		}
		for _, task := range scheduled {
			fmt.Printf("  scheduled %s id=%s at=%s\n",
				task.Type, task.ID, task.NextProcessAt.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
}

// bumpMetricsCache invalidates cached aggregates after a write-heavy command.
func bumpMetricsCache(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	return metrics.NewCache(redisClient, cfg.MetricsCacheTTL).Bump(ctx)
}
