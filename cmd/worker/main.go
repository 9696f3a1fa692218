package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/eaxy/eaxy/internal/app"
	jobmetrics "github.com/eaxy/eaxy/internal/jobs"
	"github.com/eaxy/eaxy/internal/ledger"
	"github.com/eaxy/eaxy/internal/observability"
	"github.com/eaxy/eaxy/internal/platform/db"
	"github.com/eaxy/eaxy/internal/shared"
	"github.com/eaxy/eaxy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if cfg.RedisAddr == "" {
		logger.Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}
	location, err := cfg.Location()
	if err != nil {
		logger.Error("load timezone", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.PGDSN, db.RetryPolicy{Attempts: cfg.DBConnectAttempts, Interval: cfg.DBConnectInterval}, logger)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	ledgerService := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(pool),
		Logger: logger,
		Config: ledger.ServiceConfig{DefaultCurrency: cfg.DefaultCurrency, Location: location},
	})
	observer := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(observer.Registerer())
	backupJob := jobs.NewBackupJob(ledgerService, cfg.BackupDir, logger, metrics, observer)
	cleanupJob := &jobs.CleanupJob{Store: shared.NewIdempotencyStore(pool), Logger: logger, Metrics: metrics}

	backupTask, err := jobs.NewBackupTask(jobs.BackupPayload{})
	if err != nil {
		logger.Error("build backup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewCleanupTask(jobs.DefaultIdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  location,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerBackup, Handler: backupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BackupCron, Task: backupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 4 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		mux := chi.NewRouter()
		mux.Method(http.MethodGet, "/metrics", observer.Handler())
		srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: cfg.AppReadTimeout}
		go func() {
			if err := app.Serve(ctx, srv, logger, cfg.AppWriteTimeout); err != nil {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
