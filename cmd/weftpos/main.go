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

	"github.com/weftpos/weftpos/internal/app"
	"github.com/weftpos/weftpos/internal/inventory"
	"github.com/weftpos/weftpos/internal/ledger"
	"github.com/weftpos/weftpos/internal/memo"
	"github.com/weftpos/weftpos/internal/observability"
	"github.com/weftpos/weftpos/internal/platform/db"
	"github.com/weftpos/weftpos/internal/shared"
	"github.com/weftpos/weftpos/internal/store"
	"github.com/weftpos/weftpos/internal/txn"
	"github.com/weftpos/weftpos/jobs"
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

	var (
		docs  store.Store
		locks shared.LockManager
		idem  *shared.IdempotencyStore
	)
	switch cfg.StoreBackend {
	case "memory":
		docs = store.NewMemory()
		locks = shared.NewMemoryLockManager()
	case "postgres":
		dbpool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbpool.Close()
		docs = store.NewPostgres(dbpool)
		idem = shared.NewIdempotencyStore(dbpool)
		locks = newRedisLocks(ctx, cfg, logger)
	default:
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping", slog.Any("error", err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		docs = store.NewRedis(redisClient, cfg.StorePrefix)
		locks = shared.NewRedisLockManager(redisClient, cfg.BatchLockTTL)

		dbpool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Warn("connect postgres, idempotency disabled", slog.Any("error", err))
		} else {
			defer dbpool.Close()
			idem = shared.NewIdempotencyStore(dbpool)
		}
	}

	coordinator := txn.NewCoordinator(docs, logger)
	auditLogger := shared.NewAuditLogger(docs)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	inventoryRepo := inventory.NewRepository(docs)
	inventoryService := inventory.NewService(inventoryRepo, locks, coordinator, docs, auditLogger, idem, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	memoRepo := memo.NewRepository(docs)
	memoService := memo.NewService(memoRepo, coordinator, docs, logger)
	memoHandler := memo.NewHandler(logger, memoService)

	ledgerRepo := ledger.NewRepository(docs)
	ledgerService := ledger.NewService(ledgerRepo, memoRepo, coordinator, docs, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, jobsClient)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventoryHandler,
		LedgerHandler:    ledgerHandler,
		MemoHandler:      memoHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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

func newRedisLocks(ctx context.Context, cfg *app.Config, logger *slog.Logger) shared.LockManager {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	return shared.NewRedisLockManager(redisClient, cfg.BatchLockTTL)
}
