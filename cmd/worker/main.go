package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/weftpos/weftpos/internal/app"
	"github.com/weftpos/weftpos/internal/ledger"
	"github.com/weftpos/weftpos/internal/memo"
	"github.com/weftpos/weftpos/internal/platform/db"
	"github.com/weftpos/weftpos/internal/store"
	"github.com/weftpos/weftpos/internal/txn"
	"github.com/weftpos/weftpos/jobs"
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

	var docs store.Store
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		docs = store.NewPostgres(pool)
	default:
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping", slog.Any("error", err))
		}
		docs = store.NewRedis(redisClient, cfg.StorePrefix)
	}

	coordinator := txn.NewCoordinator(docs, logger)
	ledgerRepo := ledger.NewRepository(docs)
	memoRepo := memo.NewRepository(docs)
	ledgerService := ledger.NewService(ledgerRepo, memoRepo, coordinator, docs, logger)

	refreshJob := jobs.NewSupplierDueRefreshJob(ledgerService, logger, nil)

	refreshTask, err := jobs.NewSupplierDueRefreshTask(jobs.SupplierDueRefreshPayload{ScheduledFor: time.Now().UTC()})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSupplierDueRefresh, Handler: refreshJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
