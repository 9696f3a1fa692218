package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/eaxy/eaxy/internal/app"
	"github.com/eaxy/eaxy/internal/audit"
	audithttp "github.com/eaxy/eaxy/internal/audit/http"
	"github.com/eaxy/eaxy/internal/auth"
	"github.com/eaxy/eaxy/internal/events"
	"github.com/eaxy/eaxy/internal/ledger"
	"github.com/eaxy/eaxy/internal/observability"
	"github.com/eaxy/eaxy/internal/platform/cache"
	"github.com/eaxy/eaxy/internal/platform/db"
	"github.com/eaxy/eaxy/internal/shared"
	"github.com/eaxy/eaxy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.PGDSN, db.RetryPolicy{Attempts: cfg.DBConnectAttempts, Interval: cfg.DBConnectInterval}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, login throttle and job queue disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	metrics := observability.NewMetrics()

	tokens, err := auth.NewTokenCodec(cfg.TokenSecret, cfg.TokenTTL, shared.SystemClock)
	if err != nil {
		return err
	}
	authService := auth.NewService(auth.ServiceParams{
		Repo:     auth.NewRepository(pool),
		Tokens:   tokens,
		Throttle: auth.NewThrottle(redisClient, cfg.LoginMaxAttempts, cfg.LoginLockout),
		Metrics:  metrics,
		Logger:   logger,
	})
	if cfg.SeedAccounts {
		seeded, err := authService.SeedDefaults(ctx)
		if err != nil {
			return err
		}
		if seeded > 0 {
			logger.Info("seeded default accounts", slog.Int("count", seeded))
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("kafka close", slog.Any("error", err))
			}
		}()
		publisher = kafkaPublisher
	}

	ledgerService := ledger.NewService(ledger.ServiceParams{
		Repo:        ledger.NewRepository(pool),
		Idempotency: shared.NewIdempotencyStore(pool),
		Audit:       shared.NewAuditLogger(pool),
		Events:      publisher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      ledger.ServiceConfig{DefaultCurrency: cfg.DefaultCurrency, Location: location},
	})

	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient := jobs.NewClient(redisOpts)
		defer jobClient.Close()
		inspector := asynq.NewInspector(redisOpts)
		defer inspector.Close()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    auth.NewHandler(logger, authService),
		AuthMiddleware: auth.Middleware{Service: authService, Logger: logger},
		LedgerHandler:  ledger.NewHandler(logger, ledgerService),
		AuditHandler:   audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), location),
		JobHandler:     jobHandler,
		Metrics:        metrics,
		AccessLog:      true,
	})

	return app.Serve(ctx, app.NewServer(cfg, router), logger, cfg.AppWriteTimeout)
}
